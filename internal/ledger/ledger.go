package ledger

import (
	"fmt"
	"math"
	"strings"

	"loyalty-rewards-system/internal/config"
	"loyalty-rewards-system/internal/models"
)

// Service derives loyalty balances from transaction history and
// attributes raw on-chain payments to configured businesses. It holds no
// state beyond the business table and is safe for concurrent use.
type Service struct {
	businesses []config.BusinessConfig
}

func NewService(businesses []config.BusinessConfig) *Service {
	return &Service{businesses: businesses}
}

func (s *Service) Businesses() []config.BusinessConfig {
	return s.businesses
}

func (s *Service) byTokenSymbol(symbol string) *config.BusinessConfig {
	for i := range s.businesses {
		if s.businesses[i].TokenSymbol == symbol {
			return &s.businesses[i]
		}
	}
	return nil
}

// Balances recomputes every token balance from the full transaction
// list. A token's balance is max(0, sum of earns - sum of redeems),
// independent of list order. Transfer transactions do not participate.
// Balances are a pure projection of their source transactions and are
// never stored independently.
func (s *Service) Balances(txs []models.Transaction) map[string]int64 {
	earned := make(map[string]int64)
	redeemed := make(map[string]int64)

	for _, tx := range txs {
		if s.byTokenSymbol(tx.TokenSymbol) == nil {
			continue
		}
		switch tx.Type {
		case models.TxTypeEarn:
			earned[tx.TokenSymbol] += tx.Amount
		case models.TxTypeRedeem:
			redeemed[tx.TokenSymbol] += tx.Amount
		}
	}

	balances := make(map[string]int64, len(s.businesses))
	for _, b := range s.businesses {
		balance := earned[b.TokenSymbol] - redeemed[b.TokenSymbol]
		if balance < 0 {
			balance = 0
		}
		balances[b.TokenSymbol] = balance
	}
	return balances
}

// BalanceFor returns one token's derived balance.
func (s *Service) BalanceFor(txs []models.Transaction, tokenSymbol string) int64 {
	return s.Balances(txs)[tokenSymbol]
}

// Attribution is the result of mapping a raw payment to a business.
type Attribution struct {
	Business      *config.BusinessConfig
	LoyaltyPoints int64
}

// Attribute decides which configured business a raw payment belongs to.
// Only outbound payments from the wallet are considered. The destination
// address is compared against each business wallet first; failing that,
// the memo is scanned for each business's keyword list. Businesses are
// checked in configuration order and the first match wins, so a memo
// matching several keyword sets attributes to the earliest configured
// business.
func (s *Service) Attribute(record models.PaymentRecord, walletAddress string) *Attribution {
	if record.SourceAccount != walletAddress {
		return nil
	}

	for i := range s.businesses {
		b := &s.businesses[i]
		if record.Destination == b.WalletAddress {
			return &Attribution{Business: b, LoyaltyPoints: earnPoints(record.Amount, b.EarnRate)}
		}
	}

	if record.Memo == "" {
		return nil
	}
	memo := strings.ToLower(record.Memo)
	for i := range s.businesses {
		b := &s.businesses[i]
		for _, keyword := range b.MemoKeywords {
			if strings.Contains(memo, keyword) {
				return &Attribution{Business: b, LoyaltyPoints: earnPoints(record.Amount, b.EarnRate)}
			}
		}
	}

	return nil
}

func earnPoints(amount, rate float64) int64 {
	return int64(math.Floor(amount * rate))
}

// Convert turns a raw payment into a loyalty transaction for the wallet.
// Business payments become earn transactions carrying the credited
// points; anything else becomes a transfer, which the balance projection
// ignores.
func (s *Service) Convert(record models.PaymentRecord, walletAddress string) models.Transaction {
	attribution := s.Attribute(record, walletAddress)

	if attribution == nil {
		description := record.Memo
		if description == "" {
			description = fmt.Sprintf("%s transaction", record.Asset)
		}
		return models.Transaction{
			ID:            record.ID,
			WalletAddress: walletAddress,
			Type:          models.TxTypeTransfer,
			Amount:        int64(math.Floor(record.Amount)),
			TokenSymbol:   record.Asset,
			BusinessName:  "External",
			Description:   description,
			Timestamp:     record.Timestamp,
			Status:        models.TxStatusCompleted,
		}
	}

	b := attribution.Business
	description := fmt.Sprintf("Purchase (%g XLM -> %d %s)", record.Amount, attribution.LoyaltyPoints, b.TokenSymbol)
	if record.Memo != "" && !strings.Contains(strings.ToLower(record.Memo), "purchase") {
		description = fmt.Sprintf("%s (%g XLM -> %d %s)", record.Memo, record.Amount, attribution.LoyaltyPoints, b.TokenSymbol)
	}

	return models.Transaction{
		ID:            record.ID,
		WalletAddress: walletAddress,
		Type:          models.TxTypeEarn,
		Amount:        attribution.LoyaltyPoints,
		TokenSymbol:   b.TokenSymbol,
		BusinessName:  b.Name,
		Description:   description,
		Timestamp:     record.Timestamp,
		Status:        models.TxStatusCompleted,
	}
}

// ConvertAll maps a page of raw payments, preserving order.
func (s *Service) ConvertAll(records []models.PaymentRecord, walletAddress string) []models.Transaction {
	txs := make([]models.Transaction, 0, len(records))
	for _, record := range records {
		txs = append(txs, s.Convert(record, walletAddress))
	}
	return txs
}
