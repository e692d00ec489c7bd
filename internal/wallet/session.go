package wallet

import (
	"context"
	"sync"

	"loyalty-rewards-system/internal/models"
	"loyalty-rewards-system/pkg/errors"
	"loyalty-rewards-system/pkg/logger"
)

// BalanceFetcher queries the native balance of an address. The Stellar
// service satisfies this.
type BalanceFetcher interface {
	GetAccountBalance(ctx context.Context, address string) (string, error)
}

// State is a snapshot of the session for consumers.
type State struct {
	IsConnected        bool   `json:"is_connected"`
	Address            string `json:"address"`
	Balance            string `json:"balance"`
	IsLoading          bool   `json:"is_loading"`
	Error              string `json:"error,omitempty"`
	ExtensionInstalled bool   `json:"extension_installed"`
}

// Session is the single source of truth for "is a wallet usable right
// now". It is constructed explicitly at startup and torn down on
// disconnect; nothing else may cache connection state beyond reading a
// snapshot. It also holds the one-slot pending action executed after a
// connection completes.
type Session struct {
	connector *Connector
	balances  BalanceFetcher
	network   string

	mu        sync.RWMutex
	connected bool
	address   string
	balance   string
	loading   bool
	lastErr   string
	pending   *models.PendingAction

	// onConnect consumes the pending action after a successful connect.
	onConnect func(models.PendingAction)
}

func NewSession(connector *Connector, balances BalanceFetcher, requiredNetwork string) *Session {
	return &Session{
		connector: connector,
		balances:  balances,
		network:   requiredNetwork,
		balance:   "0",
	}
}

// OnConnect registers the pending action consumer. It must be set before
// any wallet-gated operation defers work; the purchase service does this
// during wiring.
func (s *Session) OnConnect(fn func(models.PendingAction)) {
	s.mu.Lock()
	s.onConnect = fn
	s.mu.Unlock()
}

func (s *Session) Snapshot(ctx context.Context) State {
	installed := s.connector.DetectInstalled(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		IsConnected:        s.connected,
		Address:            s.address,
		Balance:            s.balance,
		IsLoading:          s.loading,
		Error:              s.lastErr,
		ExtensionInstalled: installed,
	}
}

// Address returns the connected address, or empty when no wallet is
// usable.
func (s *Session) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return ""
	}
	return s.address
}

// Connect drives the extension connect flow, enforces the required
// network, loads the balance, and runs the queued pending action exactly
// once.
func (s *Session) Connect(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()

	publicKey, network, err := s.connector.Connect(ctx)
	if err != nil {
		s.failConnect(err)
		return "", err
	}

	if s.network != "" && network != s.network {
		err := errors.New(errors.ErrWrongNetwork,
			"please switch the wallet to "+s.network, nil)
		s.failConnect(err)
		return "", err
	}

	s.mu.Lock()
	s.connected = true
	s.address = publicKey
	s.loading = false
	action := s.pending
	s.pending = nil
	consumer := s.onConnect
	s.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"address": publicKey,
		"network": network,
	}).Info("Wallet connected")

	s.loadBalance(ctx, publicKey)

	if action != nil && consumer != nil {
		logger.WithFields(map[string]interface{}{
			"kind":    action.Kind,
			"payload": action.Payload,
		}).Info("Executing pending action")
		consumer(*action)
	}

	return publicKey, nil
}

func (s *Session) failConnect(err error) {
	s.mu.Lock()
	s.loading = false
	s.lastErr = err.Error()
	s.mu.Unlock()
}

// Disconnect tears the session down. The extension keeps its own grant;
// only local state is cleared.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.connected = false
	s.address = ""
	s.balance = "0"
	s.lastErr = ""
	s.pending = nil
	s.mu.Unlock()
	logger.Info("Wallet disconnected")
}

func (s *Session) RefreshBalance(ctx context.Context) error {
	addr := s.Address()
	if addr == "" {
		return errors.New(errors.ErrWalletNotConnected, "no wallet connected", nil)
	}
	return s.loadBalance(ctx, addr)
}

func (s *Session) loadBalance(ctx context.Context, address string) error {
	balance, err := s.balances.GetAccountBalance(ctx, address)
	if err != nil {
		logger.WithError(err).Warn("Failed to load wallet balance")
		return err
	}
	s.mu.Lock()
	s.balance = balance
	s.mu.Unlock()
	return nil
}

// Defer queues an action to run once a wallet connects. A newer deferred
// action overwrites an unconsumed one.
func (s *Session) Defer(action models.PendingAction) {
	s.mu.Lock()
	if s.pending != nil {
		logger.WithFields(map[string]interface{}{
			"old": s.pending.Kind,
			"new": action.Kind,
		}).Debug("Overwriting pending action")
	}
	s.pending = &action
	s.mu.Unlock()
}

// PendingAction returns the queued action without consuming it, for
// status surfaces.
func (s *Session) PendingAction() *models.PendingAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pending == nil {
		return nil
	}
	copied := *s.pending
	return &copied
}
