package repository

import (
	"context"

	"gorm.io/gorm"
	"loyalty-rewards-system/internal/models"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// ListByWallet returns a wallet's transactions newest first.
func (r *TransactionRepository) ListByWallet(ctx context.Context, walletAddress string, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	query := r.db.WithContext(ctx).
		Where("wallet_address = ?", walletAddress).
		Order("timestamp DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&txs).Error
	return txs, err
}

// ReplaceForWallet swaps a wallet's stored history for the freshly
// fetched one in a single database transaction, so readers never observe
// a half-replaced list.
func (r *TransactionRepository) ReplaceForWallet(ctx context.Context, walletAddress string, txs []models.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("wallet_address = ?", walletAddress).
			Delete(&models.Transaction{}).Error; err != nil {
			return err
		}
		if len(txs) == 0 {
			return nil
		}
		return tx.Create(&txs).Error
	})
}

// CountByWallet reports the full history size so a limited listing can
// still tell the client how much it left out.
func (r *TransactionRepository) CountByWallet(ctx context.Context, walletAddress string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("wallet_address = ?", walletAddress).
		Count(&count).Error
	return count, err
}
