package models

import "time"

// PaymentRecord is a raw on-chain payment as reported by Horizon, before
// business attribution turns it into a loyalty Transaction.
type PaymentRecord struct {
	ID            string    `json:"id"`
	SourceAccount string    `json:"source_account"`
	Destination   string    `json:"destination"`
	Amount        float64   `json:"amount"`
	Asset         string    `json:"asset"`
	Memo          string    `json:"memo"`
	Timestamp     time.Time `json:"timestamp"`
}
