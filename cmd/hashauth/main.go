// Command hashauth runs the registry flow by hand: it checks the node, asks
// whether each product is registered, registers it and asks again.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	blockchain "hashauth/blockchain/client"
	"hashauth/blockchain/types"
	"hashauth/internal/logging"
	"hashauth/internal/models"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

const usage = `usage: hashauth [flags] <command>

commands:
  test       print the block height and the registration status of each product
  add        register each product
  roundtrip  test, add, then test again

flags:
`

type productEntry struct {
	Name           string `yaml:"name"`
	BatchNo        string `yaml:"batch_no"`
	BarcodeNo      string `yaml:"barcode_no"`
	ExpiryDate     int64  `yaml:"expiry_date"`
	ProductionDate int64  `yaml:"production_date"`
	FdaNo          int64  `yaml:"fda_no"`
	ProducerName   string `yaml:"producer_name"`
	ScanLocation   string `yaml:"scan_location"`
	ScanStatus     string `yaml:"scan_status"`
	ScanTime       int64  `yaml:"scan_time"`
	ScanDate       int64  `yaml:"scan_date"`
}

func (p productEntry) record() *types.ProductRecord {
	return &types.ProductRecord{
		Name:           p.Name,
		BatchNo:        p.BatchNo,
		BarcodeNo:      p.BarcodeNo,
		ExpiryDate:     big.NewInt(p.ExpiryDate),
		ProductionDate: big.NewInt(p.ProductionDate),
		FdaNo:          big.NewInt(p.FdaNo),
		ProducerName:   p.ProducerName,
		ScanLocation:   p.ScanLocation,
		ScanStatus:     p.ScanStatus,
		ScanTime:       big.NewInt(p.ScanTime),
		ScanDate:       big.NewInt(p.ScanDate),
	}
}

// loadProducts reads a YAML list of products. An empty path selects the
// built-in demo products.
func loadProducts(path string) ([]*types.ProductRecord, error) {
	if path == "" {
		demo := models.DemoProducts(time.Now())
		out := make([]*types.ProductRecord, len(demo))
		for i := range demo {
			out[i] = &demo[i]
		}
		return out, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read product file '%s': %w", path, err)
	}
	var entries []productEntry
	if err := yaml.UnmarshalStrict(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse product file: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("product file '%s' lists no products", path)
	}
	out := make([]*types.ProductRecord, len(entries))
	for i, e := range entries {
		out[i] = e.record()
	}
	return out, nil
}

func main() {
	fs := flag.NewFlagSet("hashauth", flag.ExitOnError)
	clientConfig := fs.String("client-config", "./config/client_config.yml", "blockchain client configuration file")
	productFile := fs.String("products", "", "YAML product list (default: demo products)")
	logLevel := fs.String("log-level", "warn", "log level")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	logger, err := logging.New("hashauth", *logLevel, "console")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	products, err := loadProducts(*productFile)
	if err != nil {
		logger.Fatal("Failed to load products", zap.Error(err))
	}

	client, err := blockchain.NewBlockchainClientFromFile(*clientConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize blockchain client", zap.Error(err))
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, fs.Arg(0), client, products, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, client blockchain.RegistryClient, products []*types.ProductRecord, out io.Writer) error {
	switch command {
	case "test", "add", "roundtrip":
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	if command != "test" {
		if _, ok := client.Sender(); !ok {
			return fmt.Errorf("%s needs a signing key: set the variable named by sender_key_env", command)
		}
	}

	height, err := client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("node check failed: %w", err)
	}
	fmt.Fprintf(out, "block height: %d\n", height)

	for _, rec := range products {
		if command != "add" {
			if err := printAuth(ctx, client, rec, out); err != nil {
				return err
			}
		}
		if command == "test" {
			continue
		}
		receipt, err := client.AddProduct(ctx, rec)
		if err != nil {
			return fmt.Errorf("add %s: %w", rec.Name, err)
		}
		fmt.Fprintf(out, "%s: added in block %d, tx %s\n", rec.Name, receipt.BlockNumber, receipt.TransactionHash.Hex())
		if command == "roundtrip" {
			if err := printAuth(ctx, client, rec, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func printAuth(ctx context.Context, client blockchain.RegistryClient, rec *types.ProductRecord, out io.Writer) error {
	status, err := client.AuthProduct(ctx, rec)
	if err != nil {
		return fmt.Errorf("auth %s: %w", rec.Name, err)
	}
	fmt.Fprintf(out, "%s: known=%t registered=%s\n", rec.Name, status.Known, status.Formatted)
	return nil
}
