package wallet

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loyalty-rewards-system/internal/models"
	"loyalty-rewards-system/pkg/errors"
)

type stubBalances struct {
	balance string
	err     error
}

func (b *stubBalances) GetAccountBalance(ctx context.Context, address string) (string, error) {
	if b.err != nil {
		return "0", b.err
	}
	return b.balance, nil
}

func newTestSession(ext Extension, requiredNetwork string) *Session {
	var probes []Probe
	if ext != nil {
		probes = append(probes, func() Extension { return ext })
	}
	connector := NewConnector(fastWalletConfig(), probes...)
	return NewSession(connector, &stubBalances{balance: "42.5"}, requiredNetwork)
}

func TestSessionConnectLoadsState(t *testing.T) {
	s := newTestSession(&stubExtension{publicKey: "GKEY", network: "TESTNET"}, "TESTNET")

	address, err := s.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "GKEY", address)
	assert.Equal(t, "GKEY", s.Address())

	state := s.Snapshot(context.Background())
	assert.True(t, state.IsConnected)
	assert.Equal(t, "42.5", state.Balance)
	assert.True(t, state.ExtensionInstalled)
	assert.False(t, state.IsLoading)
}

func TestSessionConnectRejectsWrongNetwork(t *testing.T) {
	s := newTestSession(&stubExtension{publicKey: "GKEY", network: "PUBLIC"}, "TESTNET")

	_, err := s.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrWrongNetwork))
	assert.Empty(t, s.Address())

	state := s.Snapshot(context.Background())
	assert.False(t, state.IsConnected)
	assert.NotEmpty(t, state.Error)
}

func TestSessionConnectFailureRecordsError(t *testing.T) {
	s := newTestSession(&stubExtension{keyErr: fmt.Errorf("extension crashed")}, "TESTNET")

	_, err := s.Connect(context.Background())
	require.Error(t, err)

	state := s.Snapshot(context.Background())
	assert.False(t, state.IsConnected)
	assert.NotEmpty(t, state.Error)
}

func TestSessionDisconnectClearsState(t *testing.T) {
	s := newTestSession(&stubExtension{publicKey: "GKEY", network: "TESTNET"}, "TESTNET")
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	s.Defer(models.PendingAction{Kind: models.ActionScanQR})
	s.Disconnect()

	assert.Empty(t, s.Address())
	assert.Nil(t, s.PendingAction())
	state := s.Snapshot(context.Background())
	assert.Equal(t, "0", state.Balance)
}

func TestSessionPendingActionOneSlot(t *testing.T) {
	s := newTestSession(nil, "TESTNET")

	s.Defer(models.PendingAction{Kind: models.ActionBuyItem, Payload: "1"})
	s.Defer(models.PendingAction{Kind: models.ActionRedeemReward, Payload: "2"})

	pending := s.PendingAction()
	require.NotNil(t, pending)
	assert.Equal(t, models.ActionRedeemReward, pending.Kind)
	assert.Equal(t, "2", pending.Payload)
}

func TestSessionPendingActionRunsExactlyOnceOnConnect(t *testing.T) {
	s := newTestSession(&stubExtension{publicKey: "GKEY", network: "TESTNET"}, "TESTNET")

	var executed []models.PendingAction
	s.OnConnect(func(action models.PendingAction) {
		executed = append(executed, action)
	})

	s.Defer(models.PendingAction{Kind: models.ActionBuyItem, Payload: "3"})

	_, err := s.Connect(context.Background())
	require.NoError(t, err)
	require.Len(t, executed, 1)
	assert.Equal(t, "3", executed[0].Payload)
	assert.Nil(t, s.PendingAction())

	// Reconnecting must not replay the consumed action.
	s.Disconnect()
	_, err = s.Connect(context.Background())
	require.NoError(t, err)
	assert.Len(t, executed, 1)
}

func TestSessionConnectWithoutPendingSkipsConsumer(t *testing.T) {
	s := newTestSession(&stubExtension{publicKey: "GKEY", network: "TESTNET"}, "TESTNET")

	called := false
	s.OnConnect(func(models.PendingAction) { called = true })

	_, err := s.Connect(context.Background())
	require.NoError(t, err)
	assert.False(t, called)
}

func TestSessionRefreshBalanceRequiresConnection(t *testing.T) {
	s := newTestSession(nil, "TESTNET")

	err := s.RefreshBalance(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrWalletNotConnected))
}
