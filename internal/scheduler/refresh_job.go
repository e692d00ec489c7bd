package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"

	"loyalty-rewards-system/internal/config"
	"loyalty-rewards-system/internal/purchase"
	"loyalty-rewards-system/internal/wallet"
	"loyalty-rewards-system/pkg/logger"
)

// RefreshScheduler periodically re-pulls the connected wallet's
// transaction history so derived balances track the remote ledger even
// when the user never hits refresh.
type RefreshScheduler struct {
	cron        *cron.Cron
	purchaseSvc *purchase.Service
	session     *wallet.Session
	cfg         *config.SchedulerConfig
}

func NewRefreshScheduler(
	purchaseSvc *purchase.Service,
	session *wallet.Session,
	cfg *config.SchedulerConfig,
) *RefreshScheduler {
	return &RefreshScheduler{
		cron:        cron.New(cron.WithSeconds()),
		purchaseSvc: purchaseSvc,
		session:     session,
		cfg:         cfg,
	}
}

func (s *RefreshScheduler) Start() error {
	if !s.cfg.Enabled {
		logger.Info("History refresh scheduler disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.cfg.RefreshCron, s.refreshHistory)
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("History refresh scheduler started")
	return nil
}

func (s *RefreshScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("History refresh scheduler stopped")
}

func (s *RefreshScheduler) refreshHistory() {
	address := s.session.Address()
	if address == "" {
		return
	}

	// Each firing gets its own deadline so a stuck refresh cannot pile
	// up goroutines across cron ticks.
	ctx := context.Background()
	if s.cfg.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RefreshTimeout)
		defer cancel()
	}

	txs, err := s.purchaseSvc.RefreshHistory(ctx, address)
	if err != nil {
		logger.WithError(err).Error("Scheduled history refresh failed")
		return
	}

	logger.WithFields(map[string]interface{}{
		"address":      address,
		"transactions": len(txs),
	}).Info("Scheduled history refresh completed")
}
