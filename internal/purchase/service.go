package purchase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"loyalty-rewards-system/internal/catalog"
	"loyalty-rewards-system/internal/config"
	"loyalty-rewards-system/internal/ledger"
	"loyalty-rewards-system/internal/metrics"
	"loyalty-rewards-system/internal/models"
	"loyalty-rewards-system/internal/notify"
	"loyalty-rewards-system/internal/stellar"
	"loyalty-rewards-system/internal/wallet"
	"loyalty-rewards-system/pkg/errors"
	"loyalty-rewards-system/pkg/logger"
)

// TransactionStore is the slice of the repository the orchestrator
// needs.
type TransactionStore interface {
	Create(ctx context.Context, tx *models.Transaction) error
	ListByWallet(ctx context.Context, walletAddress string, limit int) ([]models.Transaction, error)
	ReplaceForWallet(ctx context.Context, walletAddress string, txs []models.Transaction) error
}

// state names one step of a purchase attempt's driver loop.
type state int

const (
	stateWalletCheck state = iota
	stateNetworkCheck
	stateBuildTx
	stateSubmit
	stateReconcile
	stateDone
)

// Receipt is the outcome of a purchase attempt. Deferred means no remote
// work happened: the purchase was queued behind a wallet connection and
// will run once the wallet connects.
type Receipt struct {
	Deferred        bool   `json:"deferred"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	PointsEarned    int64  `json:"points_earned,omitempty"`
	TokenSymbol     string `json:"token_symbol,omitempty"`
	Message         string `json:"message"`
}

// Service drives wallet-gated purchases end to end: wallet check,
// reachability probe, transaction build under a deadline, bounded
// submission retries with exponential backoff, optimistic history
// append, and asynchronous reconciliation against the remote ledger.
type Service struct {
	cfg          *config.PurchaseConfig
	historyLimit int
	svc          stellar.Service
	session      *wallet.Session
	connector    *wallet.Connector
	ledger       *ledger.Service
	catalog      *catalog.Catalog
	store        TransactionStore
	notify       *notify.Center
	metrics      *metrics.Metrics

	refreshGroup singleflight.Group
}

func NewService(
	cfg *config.PurchaseConfig,
	historyLimit int,
	svc stellar.Service,
	session *wallet.Session,
	connector *wallet.Connector,
	ledgerSvc *ledger.Service,
	cat *catalog.Catalog,
	store TransactionStore,
	center *notify.Center,
	m *metrics.Metrics,
) *Service {
	return &Service{
		cfg:          cfg,
		historyLimit: historyLimit,
		svc:          svc,
		session:      session,
		connector:    connector,
		ledger:       ledgerSvc,
		catalog:      cat,
		store:        store,
		notify:       center,
		metrics:      m,
	}
}

// Buy purchases a shop item with XLM and credits its loyalty points.
//
// Without a connected wallet nothing remote runs: the intent is queued
// as a pending action and the receipt comes back Deferred. Submission
// retries reuse one idempotency key per call, but the remote network
// does not dedupe on it, so a retry after a timed-out attempt that
// actually landed can double-submit; that risk is accepted here.
func (s *Service) Buy(ctx context.Context, itemID string) (*Receipt, error) {
	item, err := s.catalog.ItemByID(itemID)
	if err != nil {
		return nil, err
	}
	business, err := s.businessForToken(item.TokenSymbol)
	if err != nil {
		return nil, err
	}

	var (
		buildResult  *stellar.BuildResult
		submitResult *stellar.SubmitResult
	)
	idempotencyKey := uuid.NewString()
	address := s.session.Address()

	for current := stateWalletCheck; current != stateDone; {
		switch current {
		case stateWalletCheck:
			if address == "" {
				s.session.Defer(models.PendingAction{Kind: models.ActionBuyItem, Payload: item.ID})
				logger.WithFields(map[string]interface{}{
					"item": item.Name,
				}).Info("Purchase deferred until wallet connects")
				return &Receipt{Deferred: true, Message: "connect a wallet to complete the purchase"}, nil
			}
			if info := s.connector.ExtensionInfo(ctx); !info.IsAvailable {
				return nil, s.fail(item.Name, errors.New(errors.ErrWalletNotInstalled, info.Message, nil))
			}
			current = stateNetworkCheck

		case stateNetworkCheck:
			if err := s.svc.Probe(ctx); err != nil {
				return nil, s.fail(item.Name, err)
			}
			current = stateBuildTx

		case stateBuildTx:
			s.notify.Info("Creating transaction... Please wait.")
			buildResult, err = s.buildTx(ctx, address, business.WalletAddress, item)
			if err != nil {
				return nil, s.fail(item.Name, err)
			}
			current = stateSubmit

		case stateSubmit:
			s.notify.Info("Transaction created. Please sign with your wallet...")
			submitResult, err = s.submitWithRetry(ctx, buildResult.Transaction, address, idempotencyKey)
			if err != nil {
				return nil, s.fail(item.Name, err)
			}
			if !submitResult.Success {
				return nil, s.fail(item.Name,
					errors.New(errors.ErrSubmitFailed, submitResult.Message, nil))
			}
			current = stateReconcile

		case stateReconcile:
			if err := s.reconcile(ctx, address, item, business, submitResult.TransactionHash); err != nil {
				return nil, s.fail(item.Name, err)
			}
			current = stateDone
		}
	}

	s.metrics.Purchases.WithLabelValues("success").Inc()
	message := fmt.Sprintf("%s purchased successfully! Earned %d %s tokens. Transaction hash: %s",
		item.Name, item.LoyaltyPoints, item.TokenSymbol, submitResult.TransactionHash)
	s.notify.Success(message)

	return &Receipt{
		TransactionHash: submitResult.TransactionHash,
		PointsEarned:    item.LoyaltyPoints,
		TokenSymbol:     item.TokenSymbol,
		Message:         message,
	}, nil
}

// buildTx races the remote build against the configured budget. A lost
// race is reported as congestion, distinct from a plain build failure.
func (s *Service) buildTx(ctx context.Context, customer, business string, item *models.ShopItem) (*stellar.BuildResult, error) {
	buildCtx, cancel := context.WithTimeout(ctx, s.cfg.BuildTimeout)
	defer cancel()

	result, err := s.svc.BuildPurchase(buildCtx, customer, business, item.Price, item.LoyaltyPoints)
	if err != nil {
		if buildCtx.Err() == context.DeadlineExceeded {
			return nil, errors.New(errors.ErrBuildTimeout,
				fmt.Sprintf("transaction creation timed out after %s, the network may be congested", s.cfg.BuildTimeout), err)
		}
		return nil, errors.New(errors.ErrBuildFailed, "transaction creation failed", err)
	}
	if !result.Success {
		// The service's own message is surfaced verbatim.
		return nil, errors.New(errors.ErrBuildFailed, result.Message, nil)
	}
	if result.Transaction == nil {
		return nil, errors.New(errors.ErrBuildFailed, "no transaction object returned", nil)
	}
	return result, nil
}

// submitWithRetry signs and submits the transaction, retrying transport
// failures up to the configured attempt count with exponential backoff.
// Each attempt runs under its own deadline; a late result from a timed
// out attempt is discarded, never applied.
func (s *Service) submitWithRetry(ctx context.Context, tx *stellar.UnsignedTransaction, address, idempotencyKey string) (*stellar.SubmitResult, error) {
	var lastErr error

	for attempt := 1; attempt <= s.cfg.SubmitAttempts; attempt++ {
		s.metrics.SubmitAttempts.Inc()
		logger.WithFields(map[string]interface{}{
			"attempt": attempt,
			"max":     s.cfg.SubmitAttempts,
		}).Info("Submitting transaction")

		result, err := s.submitOnce(ctx, tx, address, idempotencyKey)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// A declined signature will not succeed on retry.
		if errors.HasCode(err, errors.ErrWalletDeclined) {
			return nil, err
		}
		if attempt == s.cfg.SubmitAttempts {
			break
		}

		wait := backoffDelay(s.cfg.BackoffBase, attempt)
		s.notify.Info(fmt.Sprintf("Transaction submission failed (attempt %d/%d). Retrying in %s...",
			attempt, s.cfg.SubmitAttempts, wait))
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, errors.New(errors.ErrSubmitFailed,
		fmt.Sprintf("transaction submission failed after %d attempts", s.cfg.SubmitAttempts), lastErr)
}

// submitOnce runs a single submission attempt under its own deadline.
// The result travels through a per-attempt channel so a resolution
// arriving after the deadline fired cannot mutate anything.
func (s *Service) submitOnce(ctx context.Context, tx *stellar.UnsignedTransaction, address, idempotencyKey string) (*stellar.SubmitResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
	defer cancel()

	type outcome struct {
		result *stellar.SubmitResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := s.svc.SignAndSubmit(attemptCtx, tx, address, idempotencyKey)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.New(errors.ErrSubmitTimeout,
			fmt.Sprintf("transaction submission timeout after %s", s.cfg.SubmitTimeout), attemptCtx.Err())
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		return out.result, nil
	}
}

// reconcile appends the optimistic earn transaction so balances move
// before the remote ledger catches up, then kicks off the asynchronous
// history refresh.
func (s *Service) reconcile(ctx context.Context, address string, item *models.ShopItem, business *config.BusinessConfig, txHash string) error {
	optimistic := &models.Transaction{
		ID:            "local_" + uuid.NewString(),
		WalletAddress: address,
		Type:          models.TxTypeEarn,
		Amount:        item.LoyaltyPoints,
		TokenSymbol:   item.TokenSymbol,
		BusinessName:  business.Name,
		Description:   fmt.Sprintf("%s purchase", item.Name),
		Timestamp:     time.Now(),
		Status:        models.TxStatusCompleted,
	}
	if err := s.store.Create(ctx, optimistic); err != nil {
		return errors.New(errors.ErrHistoryRefresh, "failed to record purchase locally", err)
	}

	logger.WithFields(map[string]interface{}{
		"hash":   txHash,
		"points": item.LoyaltyPoints,
		"token":  item.TokenSymbol,
	}).Info("Purchase submitted, reconciling history")

	// The refresh outlives the request that triggered it.
	go s.refreshWithRetry(context.WithoutCancel(ctx), address)
	return nil
}

// refreshWithRetry re-fetches the authoritative history after a
// submission. The remote ledger can lag, so the first attempt waits, and
// failures retry with a linearly growing delay. Exhaustion stops
// silently; the user still has the manual refresh control.
func (s *Service) refreshWithRetry(ctx context.Context, address string) {
	if err := sleepCtx(ctx, s.cfg.RefreshInitialDelay); err != nil {
		return
	}

	for attempt := 1; attempt <= s.cfg.RefreshAttempts; attempt++ {
		if _, err := s.RefreshHistory(ctx, address); err == nil {
			return
		} else if ctx.Err() != nil {
			return
		} else {
			logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"max":     s.cfg.RefreshAttempts,
			}).WithError(err).Warn("Transaction history refresh failed")
		}

		if attempt == s.cfg.RefreshAttempts {
			logger.Warn("Giving up on transaction history refresh")
			s.metrics.Refreshes.WithLabelValues("exhausted").Inc()
			return
		}
		if err := sleepCtx(ctx, time.Duration(attempt)*s.cfg.RefreshDelayStep); err != nil {
			return
		}
	}
}

// RefreshHistory replaces the wallet's stored history with the remote
// one. Refreshes are serialized per address: a request arriving while
// one is in flight joins it instead of racing on the shared list. A
// joiner whose context expires gives up on its own; the shared fetch
// keeps running for whoever is still waiting, bounded by the Horizon
// client timeout.
func (s *Service) RefreshHistory(ctx context.Context, address string) ([]models.Transaction, error) {
	ch := s.refreshGroup.DoChan(address, func() (interface{}, error) {
		// The fetch is shared between callers, so it must not die with
		// whichever caller happened to start it.
		return s.refreshOnce(context.WithoutCancel(ctx), address)
	})

	select {
	case <-ctx.Done():
		return nil, errors.New(errors.ErrHistoryRefresh, "history refresh abandoned", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]models.Transaction), nil
	}
}

func (s *Service) refreshOnce(ctx context.Context, address string) ([]models.Transaction, error) {
	records, err := s.svc.GetTransactionHistory(ctx, address, s.historyLimit)
	if err != nil {
		s.metrics.Refreshes.WithLabelValues("error").Inc()
		return nil, errors.New(errors.ErrHistoryRefresh, "failed to refresh transaction history", err)
	}

	txs := s.ledger.ConvertAll(records, address)
	if err := s.store.ReplaceForWallet(ctx, address, txs); err != nil {
		s.metrics.Refreshes.WithLabelValues("error").Inc()
		return nil, errors.New(errors.ErrHistoryRefresh, "failed to store refreshed history", err)
	}

	s.metrics.Refreshes.WithLabelValues("success").Inc()
	balances := s.ledger.Balances(txs)
	logger.WithFields(map[string]interface{}{
		"address":      address,
		"transactions": len(txs),
		"balances":     balances,
	}).Info("Transaction history refreshed")

	return txs, nil
}

func (s *Service) businessForToken(symbol string) (*config.BusinessConfig, error) {
	for _, b := range s.ledger.Businesses() {
		if b.TokenSymbol == symbol {
			business := b
			return &business, nil
		}
	}
	return nil, errors.New(errors.ErrItemNotFound, "no business configured for token "+symbol, nil)
}

// fail classifies the error, notifies the user, and bumps the failure
// metric. The classified message is for display only; callers still get
// the typed error.
func (s *Service) fail(itemName string, err error) error {
	s.metrics.Purchases.WithLabelValues("failure").Inc()
	s.notify.Error(fmt.Sprintf("%s purchase failed: %s", itemName, userMessage(err)))
	return err
}

// userMessage maps a failure to the human-readable explanation shown in
// notifications. Classification never drives control flow.
func userMessage(err error) string {
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case errors.HasCode(err, errors.ErrBuildTimeout),
		errors.HasCode(err, errors.ErrSubmitTimeout),
		strings.Contains(lower, "timed out"),
		strings.Contains(lower, "timeout"):
		return "Transaction timed out. The Stellar network may be busy. Please try again in a few moments."
	case strings.Contains(lower, "504"), strings.Contains(lower, "gateway"):
		return "Network gateway timeout. The Stellar servers are temporarily overloaded. Please wait 30 seconds and try again."
	case errors.HasCode(err, errors.ErrNetworkUnreachable),
		strings.Contains(lower, "network connectivity"):
		return "Network connection issue. Please check your internet connection and try again."
	case strings.Contains(lower, "insufficient"):
		return "Insufficient funds. Please ensure your wallet has enough XLM for the transaction."
	case errors.HasCode(err, errors.ErrWalletDeclined),
		strings.Contains(lower, "declined"):
		return "Transaction was cancelled. Please try again if you want to complete the purchase."
	case strings.Contains(lower, "not found"), strings.Contains(lower, "account"):
		return "Account not found. Please ensure your wallet is properly funded and try again."
	default:
		return msg
	}
}

// backoffDelay is the wait before retrying attempt+1: base doubled per
// completed attempt (base 2s gives 2s, 4s, 8s).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << (attempt - 1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
