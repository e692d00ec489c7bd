package wallet

import (
	"context"
	"strings"
	"sync"
	"time"

	"loyalty-rewards-system/internal/config"
	"loyalty-rewards-system/pkg/errors"
	"loyalty-rewards-system/pkg/logger"
)

// Extension is the browser wallet extension boundary. Every call crosses
// a process boundary and may fail or prompt the user.
type Extension interface {
	IsConnected() (bool, error)
	GetPublicKey() (string, error)
	GetNetwork() (string, error)
	GetNetworkDetails() (map[string]interface{}, error)
	SignTransaction(xdr string, opts map[string]string) (string, error)
}

// Probe looks up one possible extension binding and returns nil when the
// binding is absent. Extensions inject themselves asynchronously under
// different names, so the connector tries several.
type Probe func() Extension

// Info mirrors the extension availability report shown to users before a
// wallet-gated operation.
type Info struct {
	IsAvailable bool   `json:"is_available"`
	Message     string `json:"message"`
}

// Connector abstracts presence, connection and signing capability of the
// wallet extension.
type Connector struct {
	probes   []Probe
	interval time.Duration
	attempts int

	mu  sync.Mutex
	api Extension
}

func NewConnector(cfg *config.WalletConfig, probes ...Probe) *Connector {
	return &Connector{
		probes:   probes,
		interval: cfg.DetectInterval,
		attempts: cfg.DetectAttempts,
	}
}

func (c *Connector) tryProbes() Extension {
	for _, probe := range c.probes {
		if api := probe(); api != nil {
			return api
		}
	}
	return nil
}

// DetectInstalled reports whether a conforming extension is present. A
// hit is cached. On a miss it keeps polling at a fixed interval for a
// bounded number of attempts to tolerate asynchronous injection, then
// gives up.
func (c *Connector) DetectInstalled(ctx context.Context) bool {
	c.mu.Lock()
	if c.api != nil {
		c.mu.Unlock()
		return true
	}
	if api := c.tryProbes(); api != nil {
		c.api = api
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.attempts; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if api := c.tryProbes(); api != nil {
				c.mu.Lock()
				c.api = api
				c.mu.Unlock()
				return true
			}
		}
	}

	logger.Debug("Wallet extension not detected after polling")
	return false
}

// Reset drops the cached extension handle so the next detection probes
// again.
func (c *Connector) Reset() {
	c.mu.Lock()
	c.api = nil
	c.mu.Unlock()
}

func (c *Connector) extension() (Extension, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api == nil {
		return nil, errors.New(errors.ErrWalletNotInstalled, "wallet extension is not installed", nil)
	}
	return c.api, nil
}

// Connect retrieves the public key and network from the extension. The
// public key call may prompt the user inside the extension; a refusal
// comes back as a distinguished declined error.
func (c *Connector) Connect(ctx context.Context) (publicKey, network string, err error) {
	if !c.DetectInstalled(ctx) {
		return "", "", errors.New(errors.ErrWalletNotInstalled, "wallet extension is not installed", nil)
	}

	api, err := c.extension()
	if err != nil {
		return "", "", err
	}

	publicKey, err = api.GetPublicKey()
	if err != nil {
		return "", "", classifyConnectError(err)
	}

	network, err = api.GetNetwork()
	if err != nil {
		return "", "", classifyConnectError(err)
	}

	return publicKey, network, nil
}

func (c *Connector) SignTransaction(xdr string, opts map[string]string) (string, error) {
	api, err := c.extension()
	if err != nil {
		return "", err
	}

	signed, err := api.SignTransaction(xdr, opts)
	if err != nil {
		if isDeclined(err) {
			return "", errors.New(errors.ErrWalletDeclined, "transaction signature was declined by user", err)
		}
		return "", errors.New(errors.ErrWalletConnection, "failed to sign transaction with wallet", err)
	}
	return signed, nil
}

// ExtensionInfo reports availability for user-facing preflight checks.
func (c *Connector) ExtensionInfo(ctx context.Context) *Info {
	if c.DetectInstalled(ctx) {
		return &Info{IsAvailable: true, Message: "Wallet extension is available."}
	}
	return &Info{
		IsAvailable: false,
		Message:     "Wallet extension is not installed. Please install it and reload.",
	}
}

func isDeclined(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "declined") || strings.Contains(msg, "denied") ||
		strings.Contains(msg, "rejected")
}

func classifyConnectError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case isDeclined(err):
		return errors.New(errors.ErrWalletDeclined, "wallet connection was declined by user", err)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "not installed"):
		return errors.New(errors.ErrWalletNotInstalled, "wallet extension not found", err)
	default:
		return errors.New(errors.ErrWalletConnection, "wallet connection failed", err)
	}
}
