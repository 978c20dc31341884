package models

import "hashauth/blockchain/types"

// ProductMessage defines the message structure for product registrations
// Used across ingestion, processing, and messaging layers
type ProductMessage struct {
	RequestID         string              `json:"RequestID"`
	Product           types.ProductRecord `json:"Product"`
	ReceivedTimestamp string              `json:"ReceivedTimestamp"` // RFC 3339
}
