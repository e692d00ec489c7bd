package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loyalty-rewards-system/internal/config"
	"loyalty-rewards-system/internal/wallet"
)

func testSession() *wallet.Session {
	walletCfg := &config.WalletConfig{DetectInterval: time.Millisecond, DetectAttempts: 1}
	return wallet.NewSession(wallet.NewConnector(walletCfg), nil, "TESTNET")
}

func TestStartDisabled(t *testing.T) {
	s := NewRefreshScheduler(nil, testSession(), &config.SchedulerConfig{Enabled: false})
	require.NoError(t, s.Start())
	s.Stop()
}

func TestStartRejectsInvalidCron(t *testing.T) {
	s := NewRefreshScheduler(nil, testSession(), &config.SchedulerConfig{
		Enabled:     true,
		RefreshCron: "not a cron expression",
	})
	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	s := NewRefreshScheduler(nil, testSession(), &config.SchedulerConfig{
		Enabled:     true,
		RefreshCron: "0 */5 * * * *",
	})
	require.NoError(t, s.Start())
	s.Stop()
}

// Without a connected wallet the job returns before touching the
// purchase service, so a nil service is safe here.
func TestRefreshHistorySkipsWithoutWallet(t *testing.T) {
	s := NewRefreshScheduler(nil, testSession(), &config.SchedulerConfig{Enabled: true})
	s.refreshHistory()
}
