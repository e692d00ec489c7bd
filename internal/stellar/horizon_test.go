package stellar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loyalty-rewards-system/internal/config"
)

const (
	customerAddr = "GCUSTOMER0000000000000000000000000000000000000000000000A"
	businessAddr = "GBUSINESS0000000000000000000000000000000000000000000000B"
)

type stubSigner struct {
	lastXDR  string
	lastOpts map[string]string
	err      error
}

func (s *stubSigner) SignTransaction(xdr string, opts map[string]string) (string, error) {
	s.lastXDR = xdr
	s.lastOpts = opts
	if s.err != nil {
		return "", s.err
	}
	return xdr + "|signed", nil
}

func newTestService(t *testing.T, handler http.Handler) (*HorizonService, *stubSigner) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	signer := &stubSigner{}
	cfg := &config.StellarConfig{
		HorizonURL:        server.URL,
		FriendbotURL:      server.URL + "/friendbot",
		NetworkPassphrase: "Test SDF Network ; September 2015",
		Network:           "TESTNET",
		ProbeTimeout:      time.Second,
		HistoryLimit:      15,
	}
	return NewHorizonService(cfg, signer, businessAddr), signer
}

func TestProbe(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	assert.NoError(t, svc.Probe(context.Background()))
}

func TestProbeUnreachable(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	assert.Error(t, svc.Probe(context.Background()))
}

func TestCheckAccountExists(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/accounts/"+customerAddr {
			w.Write([]byte(`{"id":"` + customerAddr + `","sequence":"77"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	exists, err := svc.CheckAccountExists(context.Background(), customerAddr)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = svc.CheckAccountExists(context.Background(), "GMISSING")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetAccountBalanceNative(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "` + customerAddr + `",
			"sequence": "77",
			"balances": [
				{"balance": "12.0000000", "asset_type": "credit_alphanum4", "asset_code": "USDC"},
				{"balance": "250.5000000", "asset_type": "native"}
			]
		}`))
	}))

	balance, err := svc.GetAccountBalance(context.Background(), customerAddr)
	require.NoError(t, err)
	assert.Equal(t, "250.5000000", balance)
}

func TestAccountStatusNeverFails(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	status := svc.AccountStatus(context.Background(), customerAddr)
	require.NotNil(t, status)
	assert.False(t, status.Exists)
	assert.NotEmpty(t, status.Error)
}

func TestBuildPurchasePreparesPayment(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"` + customerAddr + `","sequence":"1234"}`))
	}))

	result, err := svc.BuildPurchase(context.Background(), customerAddr, businessAddr, 25, 20)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.Transaction)
	assert.Equal(t, customerAddr, result.Transaction.Source)
	assert.Equal(t, "1234", result.Transaction.SourceSequence)
	assert.Equal(t, businessAddr, result.Transaction.Destination)
	assert.Equal(t, int64(25), result.Transaction.Amount)
	assert.NotEmpty(t, result.Transaction.XDR)
}

func TestBuildPurchaseUnfundedAccountSoftFails(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	result, err := svc.BuildPurchase(context.Background(), customerAddr, businessAddr, 25, 20)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "not found")
}

func TestSignAndSubmitSuccess(t *testing.T) {
	var gotRequestID, gotTx string
	svc, signer := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transactions", r.URL.Path)
		gotRequestID = r.Header.Get("X-Client-Request-Id")
		require.NoError(t, r.ParseForm())
		gotTx = r.PostFormValue("tx")
		w.Write([]byte(`{"hash":"abc123","successful":true}`))
	}))

	tx := &UnsignedTransaction{Source: customerAddr, Destination: businessAddr, Amount: 25, XDR: "envelope"}
	result, err := svc.SignAndSubmit(context.Background(), tx, customerAddr, "key-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "abc123", result.TransactionHash)
	assert.Equal(t, "key-1", gotRequestID)
	assert.Equal(t, "envelope|signed", gotTx)
	assert.Equal(t, customerAddr, signer.lastOpts["accountToSign"])
}

func TestSignAndSubmitRejectedSoftFails(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"successful":false,"detail":"tx_bad_seq"}`))
	}))

	tx := &UnsignedTransaction{XDR: "envelope"}
	result, err := svc.SignAndSubmit(context.Background(), tx, customerAddr, "key-2")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "tx_bad_seq", result.Message)
}

func TestGetTransactionHistoryParsesPayments(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "desc", r.URL.Query().Get("order"))
		assert.Equal(t, "15", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"_embedded":{"records":[
			{"id":"p1","type":"payment","from":"` + customerAddr + `","to":"` + businessAddr + `",
			 "amount":"7.5000000","asset_type":"native","created_at":"2024-03-01T10:00:00Z",
			 "transaction":{"memo":"morning latte"}},
			{"id":"p2","type":"set_options"},
			{"id":"p3","type":"payment","from":"` + customerAddr + `","to":"GELSEWHERE",
			 "amount":"3.0000000","asset_type":"credit_alphanum4","asset_code":"USDC",
			 "created_at":"2024-03-01T09:00:00Z","transaction":{}}
		]}}`))
	}))

	records, err := svc.GetTransactionHistory(context.Background(), customerAddr, 15)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "p1", records[0].ID)
	assert.Equal(t, customerAddr, records[0].SourceAccount)
	assert.Equal(t, businessAddr, records[0].Destination)
	assert.Equal(t, 7.5, records[0].Amount)
	assert.Equal(t, "XLM", records[0].Asset)
	assert.Equal(t, "morning latte", records[0].Memo)

	assert.Equal(t, "USDC", records[1].Asset)
}

func TestFundBusinessWalletIfNeeded(t *testing.T) {
	funded := false
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/friendbot" {
			funded = true
			w.Write([]byte(`{}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	outcome, err := svc.FundBusinessWalletIfNeeded(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.True(t, funded)
}

func TestFundBusinessWalletAlreadyFunded(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"` + businessAddr + `","sequence":"5"}`))
	}))

	outcome, err := svc.FundBusinessWalletIfNeeded(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Contains(t, outcome.Message, "already")
}
