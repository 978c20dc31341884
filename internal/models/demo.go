package models

import (
	"math/big"
	"time"

	"hashauth/blockchain/types"
)

// DemoProducts returns two sample products: one whose expiry moves with the
// clock, so it is always new, and a static one that stays registered once
// added.
func DemoProducts(now time.Time) []types.ProductRecord {
	production := big.NewInt(time.Date(2020, 5, 25, 0, 0, 0, 0, time.UTC).Unix())
	scan := big.NewInt(now.Unix())

	return []types.ProductRecord{
		{
			Name: "Rebus", BatchNo: "2020.05.0141321", BarcodeNo: "2020050141321",
			ExpiryDate:     big.NewInt(now.Add(180 * 24 * time.Hour).Unix()),
			ProductionDate: production,
			FdaNo:          big.NewInt(73737373),
			ProducerName:   "Factorem Productum", ScanLocation: "Forum Loco", ScanStatus: "ok",
			ScanTime: scan, ScanDate: scan,
		},
		{
			Name: "Viribus", BatchNo: "2020.01.151615", BarcodeNo: "202001151615",
			ExpiryDate:     big.NewInt(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC).Unix()),
			ProductionDate: production,
			FdaNo:          big.NewInt(73737373),
			ProducerName:   "Factorem Productum", ScanLocation: "Forum Loco", ScanStatus: "ok",
			ScanTime: scan, ScanDate: scan,
		},
	}
}
