package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://horizon-testnet.stellar.org", cfg.Stellar.HorizonURL)
	assert.Equal(t, "TESTNET", cfg.Stellar.Network)
	assert.Equal(t, 10*time.Second, cfg.Stellar.ProbeTimeout)
	assert.Equal(t, 30*time.Second, cfg.Stellar.RequestTimeout)
	assert.Equal(t, 15, cfg.Stellar.HistoryLimit)

	assert.Equal(t, 45*time.Second, cfg.Purchase.BuildTimeout)
	assert.Equal(t, 60*time.Second, cfg.Purchase.SubmitTimeout)
	assert.Equal(t, 3, cfg.Purchase.SubmitAttempts)
	assert.Equal(t, 2*time.Second, cfg.Purchase.BackoffBase)
	assert.Equal(t, 5, cfg.Purchase.RefreshAttempts)
	assert.Equal(t, int64(10), cfg.Purchase.TokensPerXLM)
	assert.Equal(t, 0.1, cfg.Purchase.RedeemBonusRate)

	assert.Equal(t, 100*time.Millisecond, cfg.Wallet.DetectInterval)
	assert.Equal(t, 30, cfg.Wallet.DetectAttempts)

	assert.Equal(t, 10*time.Second, cfg.Notifications.InfoTTL)
	assert.Equal(t, 15*time.Second, cfg.Notifications.ErrorTTL)

	assert.Equal(t, 2*time.Minute, cfg.Scheduler.RefreshTimeout)
	assert.True(t, cfg.Scheduler.Enabled)
}

func TestLoadFallsBackToDefaultBusinesses(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Businesses, 2)
	assert.Equal(t, "COFFEE", cfg.Businesses[0].TokenSymbol)
	assert.Equal(t, "CAKE", cfg.Businesses[1].TokenSymbol)
	assert.Equal(t, 1.5, cfg.Businesses[1].EarnRate)
	assert.NotEmpty(t, cfg.Businesses[0].MemoKeywords)
}

func TestLoadExplicitBusinesses(t *testing.T) {
	path := writeConfig(t, `
businesses:
  - token_symbol: TEA
    token_name: Tea Corner Points
    name: Tea Corner
    wallet_address: GTEA000000000000000000000000000000000000000000000000000C
    earn_rate: 2
    memo_keywords: [tea, chai]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Businesses, 1)
	assert.Equal(t, "TEA", cfg.Businesses[0].TokenSymbol)
	assert.Equal(t, float64(2), cfg.Businesses[0].EarnRate)
	assert.Equal(t, []string{"tea", "chai"}, cfg.Businesses[0].MemoKeywords)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBusinessLookups(t *testing.T) {
	cfg := &Config{Businesses: DefaultBusinesses()}

	byToken, err := cfg.BusinessByTokenSymbol("CAKE")
	require.NoError(t, err)
	assert.Equal(t, "Stellar Cake House", byToken.Name)

	byName, err := cfg.BusinessByName("Stellar Coffee Co.")
	require.NoError(t, err)
	assert.Equal(t, "COFFEE", byName.TokenSymbol)

	_, err = cfg.BusinessByTokenSymbol("PIZZA")
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "localhost", Port: 3306, User: "u", Password: "p", DBName: "loyalty"}
	assert.Equal(t, "u:p@tcp(localhost:3306)/loyalty?charset=utf8mb4&parseTime=True&loc=Local", db.DSN())
}
