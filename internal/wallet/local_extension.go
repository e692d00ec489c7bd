package wallet

import (
	"fmt"

	"loyalty-rewards-system/pkg/errors"
)

// LocalExtension is an in-process stand-in for the browser extension,
// used in development and demos where no real extension can inject
// itself. It always connects as the configured account and signs by
// tagging the envelope; it never prompts.
type LocalExtension struct {
	publicKey string
	network   string
}

func NewLocalExtension(publicKey, network string) *LocalExtension {
	return &LocalExtension{publicKey: publicKey, network: network}
}

func (e *LocalExtension) IsConnected() (bool, error) {
	return true, nil
}

func (e *LocalExtension) GetPublicKey() (string, error) {
	if e.publicKey == "" {
		return "", errors.New(errors.ErrWalletConnection, "no public key configured", nil)
	}
	return e.publicKey, nil
}

func (e *LocalExtension) GetNetwork() (string, error) {
	return e.network, nil
}

func (e *LocalExtension) GetNetworkDetails() (map[string]interface{}, error) {
	return map[string]interface{}{
		"network": e.network,
	}, nil
}

func (e *LocalExtension) SignTransaction(xdr string, opts map[string]string) (string, error) {
	if xdr == "" {
		return "", errors.New(errors.ErrWalletConnection, "empty transaction envelope", nil)
	}
	return fmt.Sprintf("%s|signed:%s", xdr, e.publicKey), nil
}
