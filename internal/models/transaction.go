package models

import (
	"time"
)

type TxType string

const (
	TxTypeEarn     TxType = "earn"
	TxTypeRedeem   TxType = "redeem"
	TxTypeTransfer TxType = "transfer"
)

type TxStatus string

const (
	TxStatusCompleted TxStatus = "completed"
	TxStatusPending   TxStatus = "pending"
)

// Transaction is one entry of a customer's loyalty history. Entries are
// immutable once created: the list only grows by appends, or is replaced
// wholesale when the remote history is re-fetched.
type Transaction struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	WalletAddress string    `gorm:"size:56;not null;index:idx_wallet_time" json:"wallet_address"`
	Type          TxType    `gorm:"size:16;not null" json:"type"`
	Amount        int64     `gorm:"not null" json:"amount"`
	TokenSymbol   string    `gorm:"size:12;not null" json:"token_symbol"`
	BusinessName  string    `gorm:"size:100;not null" json:"business_name"`
	Description   string    `gorm:"size:255" json:"description"`
	Timestamp     time.Time `gorm:"not null;index:idx_wallet_time" json:"timestamp"`
	Status        TxStatus  `gorm:"size:16;not null" json:"status"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
