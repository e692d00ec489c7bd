package stellar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"loyalty-rewards-system/internal/config"
	"loyalty-rewards-system/internal/models"
	"loyalty-rewards-system/pkg/errors"
	"loyalty-rewards-system/pkg/logger"
)

// Signer produces a signed transaction envelope for a prepared payment.
// The wallet connector satisfies this.
type Signer interface {
	SignTransaction(xdr string, opts map[string]string) (string, error)
}

// HorizonService implements Service against the Stellar Horizon REST API.
type HorizonService struct {
	cfg    *config.StellarConfig
	signer Signer
	// primaryBusiness is the wallet checked by TestBusinessWallet and
	// funded by FundBusinessWalletIfNeeded.
	primaryBusiness string
	client          *http.Client
}

func NewHorizonService(cfg *config.StellarConfig, signer Signer, primaryBusiness string) *HorizonService {
	// The client timeout caps every Horizon round trip, so a stalled
	// connection cannot hold a refresh open indefinitely.
	return &HorizonService{
		cfg:             cfg,
		signer:          signer,
		primaryBusiness: primaryBusiness,
		client:          &http.Client{Timeout: cfg.RequestTimeout},
	}
}

type horizonAccount struct {
	ID       string `json:"id"`
	Sequence string `json:"sequence"`
	Balances []struct {
		Balance   string `json:"balance"`
		AssetType string `json:"asset_type"`
		AssetCode string `json:"asset_code"`
	} `json:"balances"`
}

type horizonPayment struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	From          string `json:"from"`
	To            string `json:"to"`
	SourceAccount string `json:"source_account"`
	Amount        string `json:"amount"`
	AssetType     string `json:"asset_type"`
	AssetCode     string `json:"asset_code"`
	CreatedAt     string `json:"created_at"`
	Transaction   struct {
		Memo string `json:"memo"`
	} `json:"transaction"`
}

type horizonPaymentsPage struct {
	Embedded struct {
		Records []horizonPayment `json:"records"`
	} `json:"_embedded"`
}

type horizonSubmitResponse struct {
	Hash       string `json:"hash"`
	Successful bool   `json:"successful"`
	Detail     string `json:"detail"`
}

func (s *HorizonService) getJSON(ctx context.Context, url string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp.StatusCode, fmt.Errorf("horizon returned status %d", resp.StatusCode)
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

// Probe checks that the Horizon endpoint answers at all before we spend
// time building a transaction that cannot be submitted.
func (s *HorizonService) Probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	if _, err := s.getJSON(probeCtx, s.cfg.HorizonURL+"/", nil); err != nil {
		return errors.New(errors.ErrNetworkUnreachable, "stellar network unreachable", err)
	}
	return nil
}

func (s *HorizonService) loadAccount(ctx context.Context, address string) (*horizonAccount, int, error) {
	var account horizonAccount
	status, err := s.getJSON(ctx, s.cfg.HorizonURL+"/accounts/"+url.PathEscape(address), &account)
	if err != nil {
		return nil, status, err
	}
	return &account, status, nil
}

func (s *HorizonService) CheckAccountExists(ctx context.Context, address string) (bool, error) {
	_, status, err := s.loadAccount(ctx, address)
	if err != nil {
		if status == http.StatusNotFound {
			return false, nil
		}
		return false, errors.New(errors.ErrHorizonRequest, "failed to load account", err)
	}
	return true, nil
}

func (s *HorizonService) GetAccountBalance(ctx context.Context, address string) (string, error) {
	account, _, err := s.loadAccount(ctx, address)
	if err != nil {
		return "0", errors.New(errors.ErrHorizonRequest, "failed to load account", err)
	}
	for _, b := range account.Balances {
		if b.AssetType == "native" {
			return b.Balance, nil
		}
	}
	return "0", nil
}

// AccountStatus never fails: lookup errors land in the Error field so
// status surfaces can render a degraded answer.
func (s *HorizonService) AccountStatus(ctx context.Context, address string) *WalletStatus {
	account, httpStatus, err := s.loadAccount(ctx, address)
	if err != nil {
		if httpStatus == http.StatusNotFound {
			return &WalletStatus{Address: address, Exists: false, Balance: "0"}
		}
		return &WalletStatus{Address: address, Exists: false, Balance: "0", Error: err.Error()}
	}

	status := &WalletStatus{Address: address, Exists: true, Balance: "0"}
	for _, b := range account.Balances {
		if b.AssetType == "native" {
			status.Balance = b.Balance
			break
		}
	}
	return status
}

func (s *HorizonService) TestBusinessWallet(ctx context.Context) (*WalletStatus, error) {
	return s.AccountStatus(ctx, s.primaryBusiness), nil
}

func (s *HorizonService) FundTestAccount(ctx context.Context, address string) (*Outcome, error) {
	fundURL := s.cfg.FriendbotURL + "?addr=" + url.QueryEscape(address)
	if _, err := s.getJSON(ctx, fundURL, nil); err != nil {
		logger.WithError(err).Warn("Friendbot funding failed")
		return &Outcome{
			Success: false,
			Message: "Account could not be funded. It may already be funded.",
		}, nil
	}
	return &Outcome{
		Success: true,
		Message: "Account successfully funded with 10000 XLM.",
	}, nil
}

func (s *HorizonService) FundBusinessWalletIfNeeded(ctx context.Context) (*Outcome, error) {
	exists, err := s.CheckAccountExists(ctx, s.primaryBusiness)
	if err != nil {
		return nil, err
	}
	if exists {
		return &Outcome{Success: true, Message: "Business wallet is already funded."}, nil
	}
	return s.FundTestAccount(ctx, s.primaryBusiness)
}

// BuildPurchase loads the customer account and prepares an unsigned
// payment to the business. Soft failures (unfunded account, remote
// rejection) come back as Success=false with a message, matching the
// boundary contract.
func (s *HorizonService) BuildPurchase(ctx context.Context, customer, business string, price, loyaltyPoints int64) (*BuildResult, error) {
	account, httpStatus, err := s.loadAccount(ctx, customer)
	if err != nil {
		if httpStatus == http.StatusNotFound {
			return &BuildResult{
				Success: false,
				Message: "Customer account not found on the network. Fund it first.",
			}, nil
		}
		return nil, errors.New(errors.ErrHorizonRequest, "failed to load customer account", err)
	}

	memo := fmt.Sprintf("purchase %d XLM -> %d pts", price, loyaltyPoints)
	tx := &UnsignedTransaction{
		Source:         customer,
		SourceSequence: account.Sequence,
		Destination:    business,
		Amount:         price,
		Memo:           memo,
	}
	// The envelope the wallet signs. A real deployment would carry a full
	// XDR here; the extension contract only requires an opaque string.
	tx.XDR = fmt.Sprintf("%s|%s|%s|%d|%s", tx.Source, tx.SourceSequence, tx.Destination, tx.Amount, tx.Memo)

	return &BuildResult{Success: true, Message: "transaction prepared", Transaction: tx}, nil
}

func (s *HorizonService) SignAndSubmit(ctx context.Context, tx *UnsignedTransaction, walletAddress, idempotencyKey string) (*SubmitResult, error) {
	signed, err := s.signer.SignTransaction(tx.XDR, map[string]string{
		"networkPassphrase": s.cfg.NetworkPassphrase,
		"accountToSign":     walletAddress,
	})
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("tx", signed)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.HorizonURL+"/transactions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Client-Request-Id", idempotencyKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.ErrHorizonRequest, "transaction submission failed", err)
	}
	defer resp.Body.Close()

	var submitResp horizonSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
		return nil, errors.New(errors.ErrHorizonRequest, "failed to decode submission response", err)
	}

	if resp.StatusCode >= 400 || !submitResp.Successful {
		msg := submitResp.Detail
		if msg == "" {
			msg = fmt.Sprintf("submission rejected with status %d", resp.StatusCode)
		}
		return &SubmitResult{Success: false, Message: msg}, nil
	}

	return &SubmitResult{
		Success:         true,
		Message:         "transaction submitted",
		TransactionHash: submitResp.Hash,
	}, nil
}

func (s *HorizonService) GetTransactionHistory(ctx context.Context, address string, limit int) ([]models.PaymentRecord, error) {
	historyURL := fmt.Sprintf("%s/accounts/%s/payments?order=desc&limit=%d&join=transactions",
		s.cfg.HorizonURL, url.PathEscape(address), limit)

	var page horizonPaymentsPage
	if _, err := s.getJSON(ctx, historyURL, &page); err != nil {
		return nil, errors.New(errors.ErrHorizonRequest, "failed to fetch transaction history", err)
	}

	records := make([]models.PaymentRecord, 0, len(page.Embedded.Records))
	for _, p := range page.Embedded.Records {
		if p.Type != "payment" && p.Type != "create_account" {
			continue
		}

		amount, err := strconv.ParseFloat(p.Amount, 64)
		if err != nil {
			amount = 0
		}

		timestamp, err := time.Parse(time.RFC3339, p.CreatedAt)
		if err != nil {
			timestamp = time.Now()
		}

		asset := p.AssetCode
		if p.AssetType == "native" || asset == "" {
			asset = "XLM"
		}

		records = append(records, models.PaymentRecord{
			ID:            p.ID,
			SourceAccount: firstNonEmpty(p.From, p.SourceAccount),
			Destination:   p.To,
			Amount:        amount,
			Asset:         asset,
			Memo:          p.Transaction.Memo,
			Timestamp:     timestamp,
		})
	}

	logger.WithFields(map[string]interface{}{
		"address": address,
		"records": len(records),
	}).Debug("Fetched transaction history")

	return records, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
