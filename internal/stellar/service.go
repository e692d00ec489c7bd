package stellar

import (
	"context"

	"loyalty-rewards-system/internal/models"
)

// WalletStatus describes an on-chain account as seen by the service.
type WalletStatus struct {
	Address string `json:"address"`
	Exists  bool   `json:"exists"`
	Balance string `json:"balance"`
	Error   string `json:"error,omitempty"`
}

// Outcome is a success/message pair for operations whose failure is a
// reportable condition rather than an error (friendbot funding and the
// like).
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// UnsignedTransaction is a payment prepared for wallet signing.
type UnsignedTransaction struct {
	Source         string `json:"source"`
	SourceSequence string `json:"source_sequence"`
	Destination    string `json:"destination"`
	Amount         int64  `json:"amount"`
	Memo           string `json:"memo"`
	XDR            string `json:"xdr"`
}

// BuildResult reports a transaction build attempt. The service may fail
// softly (Success=false with a message) without returning an error.
type BuildResult struct {
	Success     bool                 `json:"success"`
	Message     string               `json:"message"`
	Transaction *UnsignedTransaction `json:"transaction,omitempty"`
}

// SubmitResult reports a signed submission.
type SubmitResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	TransactionHash string `json:"transaction_hash,omitempty"`
}

// Service is the blockchain collaborator boundary. Implementations talk
// to the remote network; everything above this interface treats it as
// opaque. All calls may fail and may be slow, so every method takes a
// context.
type Service interface {
	// Probe is a lightweight reachability check against the remote
	// network, used to fail fast before building a transaction.
	Probe(ctx context.Context) error

	TestBusinessWallet(ctx context.Context) (*WalletStatus, error)
	FundBusinessWalletIfNeeded(ctx context.Context) (*Outcome, error)

	// BuildPurchase prepares an unsigned payment of price XLM from the
	// customer to the business, credited with loyaltyPoints on success.
	BuildPurchase(ctx context.Context, customer, business string, price, loyaltyPoints int64) (*BuildResult, error)

	// SignAndSubmit signs the prepared transaction through the wallet and
	// submits it. idempotencyKey identifies the purchase attempt; the
	// remote network offers no dedupe for it, so at-most-once is not
	// guaranteed (it is carried for traceability).
	SignAndSubmit(ctx context.Context, tx *UnsignedTransaction, walletAddress, idempotencyKey string) (*SubmitResult, error)

	GetTransactionHistory(ctx context.Context, address string, limit int) ([]models.PaymentRecord, error)
	GetAccountBalance(ctx context.Context, address string) (string, error)
	CheckAccountExists(ctx context.Context, address string) (bool, error)
	AccountStatus(ctx context.Context, address string) *WalletStatus
	FundTestAccount(ctx context.Context, address string) (*Outcome, error)
}
