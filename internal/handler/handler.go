package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"loyalty-rewards-system/internal/catalog"
	"loyalty-rewards-system/internal/ledger"
	"loyalty-rewards-system/internal/models"
	"loyalty-rewards-system/internal/notify"
	"loyalty-rewards-system/internal/purchase"
	"loyalty-rewards-system/internal/repository"
	"loyalty-rewards-system/internal/stellar"
	"loyalty-rewards-system/internal/wallet"
	"loyalty-rewards-system/pkg/errors"
)

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeAppError picks the HTTP status from the typed error code so
// clients can tell a bad request from a remote failure.
func writeAppError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.HasCode(err, errors.ErrItemNotFound),
		errors.HasCode(err, errors.ErrRewardNotFound):
		status = http.StatusNotFound
	case errors.HasCode(err, errors.ErrInsufficientBalance),
		errors.HasCode(err, errors.ErrRewardUnavailable),
		errors.HasCode(err, errors.ErrWalletNotConnected),
		errors.HasCode(err, errors.ErrWrongNetwork):
		status = http.StatusBadRequest
	case errors.HasCode(err, errors.ErrNetworkUnreachable),
		errors.HasCode(err, errors.ErrBuildTimeout),
		errors.HasCode(err, errors.ErrSubmitTimeout):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  errors.CodeOf(err),
	})
}

type WalletHandler struct {
	session *wallet.Session
}

func NewWalletHandler(session *wallet.Session) *WalletHandler {
	return &WalletHandler{session: session}
}

func (h *WalletHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.session.Snapshot(r.Context()))
}

func (h *WalletHandler) Connect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	address, err := h.session.Connect(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":     address,
		"connectedAt": time.Now().Format(time.RFC3339),
	})
}

func (h *WalletHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.session.Disconnect()
	writeJSON(w, http.StatusOK, map[string]string{"message": "wallet disconnected"})
}

func (h *WalletHandler) RefreshBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := h.session.RefreshBalance(r.Context()); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Snapshot(r.Context()))
}

type ShopHandler struct {
	catalog     *catalog.Catalog
	purchaseSvc *purchase.Service
}

func NewShopHandler(cat *catalog.Catalog, purchaseSvc *purchase.Service) *ShopHandler {
	return &ShopHandler{catalog: cat, purchaseSvc: purchaseSvc}
}

func (h *ShopHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token := r.URL.Query().Get("token")
	if token != "" {
		writeJSON(w, http.StatusOK, h.catalog.ItemsForBusiness(token))
		return
	}
	writeJSON(w, http.StatusOK, h.catalog.Items())
}

// BuyItem handles /api/shop/buy/{item_id}. With ?method=loyalty the item
// is paid in loyalty tokens instead of XLM.
func (h *ShopHandler) BuyItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 4 {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/shop/buy/{item_id}")
		return
	}
	itemID := pathParts[3]
	if itemID == "" {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}

	var (
		receipt *purchase.Receipt
		err     error
	)
	if r.URL.Query().Get("method") == "loyalty" {
		receipt, err = h.purchaseSvc.LoyaltyPay(r.Context(), itemID)
	} else {
		receipt, err = h.purchaseSvc.Buy(r.Context(), itemID)
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type RewardsHandler struct {
	catalog     *catalog.Catalog
	purchaseSvc *purchase.Service
}

func NewRewardsHandler(cat *catalog.Catalog, purchaseSvc *purchase.Service) *RewardsHandler {
	return &RewardsHandler{catalog: cat, purchaseSvc: purchaseSvc}
}

func (h *RewardsHandler) ListRewards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	term := r.URL.Query().Get("search")
	category := r.URL.Query().Get("category")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rewards":    h.catalog.FilterRewards(term, category),
		"categories": h.catalog.Categories(),
	})
}

func (h *RewardsHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 4 {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/rewards/redeem/{reward_id}")
		return
	}
	rewardID := pathParts[3]
	if rewardID == "" {
		writeError(w, http.StatusBadRequest, "reward_id is required")
		return
	}

	result, err := h.purchaseSvc.Redeem(r.Context(), rewardID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type HistoryHandler struct {
	txRepo      *repository.TransactionRepository
	ledgerSvc   *ledger.Service
	purchaseSvc *purchase.Service
	session     *wallet.Session
}

func NewHistoryHandler(
	txRepo *repository.TransactionRepository,
	ledgerSvc *ledger.Service,
	purchaseSvc *purchase.Service,
	session *wallet.Session,
) *HistoryHandler {
	return &HistoryHandler{txRepo: txRepo, ledgerSvc: ledgerSvc, purchaseSvc: purchaseSvc, session: session}
}

func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	address := h.session.Address()
	if address == "" {
		writeError(w, http.StatusBadRequest, "no wallet connected")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 0 {
		limit = 0
	}

	txs, err := h.txRepo.ListByWallet(r.Context(), address, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get history: "+err.Error())
		return
	}
	total, err := h.txRepo.CountByWallet(r.Context(), address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count history: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"balances":     h.ledgerSvc.Balances(txs),
		"total":        total,
	})
}

func (h *HistoryHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	address := h.session.Address()
	if address == "" {
		writeError(w, http.StatusBadRequest, "no wallet connected")
		return
	}

	txs, err := h.purchaseSvc.RefreshHistory(r.Context(), address)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"balances":     h.ledgerSvc.Balances(txs),
		"refreshedAt":  time.Now().Format(time.RFC3339),
	})
}

// OverviewHandler assembles the dashboard landing data: wallet state,
// per-token balances, recent activity, and the reward the user is
// closest to affording.
type OverviewHandler struct {
	txRepo    *repository.TransactionRepository
	ledgerSvc *ledger.Service
	catalog   *catalog.Catalog
	session   *wallet.Session
}

func NewOverviewHandler(
	txRepo *repository.TransactionRepository,
	ledgerSvc *ledger.Service,
	cat *catalog.Catalog,
	session *wallet.Session,
) *OverviewHandler {
	return &OverviewHandler{txRepo: txRepo, ledgerSvc: ledgerSvc, catalog: cat, session: session}
}

func (h *OverviewHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx := r.Context()
	state := h.session.Snapshot(ctx)

	response := map[string]interface{}{
		"wallet":     state,
		"businesses": h.ledgerSvc.Businesses(),
	}

	if state.IsConnected {
		history, err := h.txRepo.ListByWallet(ctx, state.Address, 5)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get activity: "+err.Error())
			return
		}
		full, err := h.txRepo.ListByWallet(ctx, state.Address, 0)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get balances: "+err.Error())
			return
		}
		balances := h.ledgerSvc.Balances(full)
		response["balances"] = balances
		response["recent_activity"] = history
		response["next_reward"] = h.nextReward(balances)
	}

	writeJSON(w, http.StatusOK, response)
}

// nextReward picks the cheapest still-unaffordable available reward, or
// the cheapest affordable one when everything is within reach.
func (h *OverviewHandler) nextReward(balances map[string]int64) *models.RewardProgress {
	var best *models.RewardProgress
	for _, reward := range h.catalog.Rewards() {
		if !reward.IsAvailable {
			continue
		}
		business := h.ledgerSvc.Businesses()
		var symbol string
		for _, b := range business {
			if b.Name == reward.BusinessName {
				symbol = b.TokenSymbol
				break
			}
		}
		if symbol == "" {
			continue
		}
		progress := &models.RewardProgress{
			Reward:  reward,
			Balance: balances[symbol],
		}
		if progress.Balance >= reward.Cost {
			progress.Affordable = true
		} else {
			progress.Missing = reward.Cost - progress.Balance
		}
		if best == nil {
			best = progress
			continue
		}
		// Unaffordable-but-closest beats affordable; among peers the
		// cheaper cost wins.
		if !progress.Affordable && best.Affordable {
			best = progress
		} else if progress.Affordable == best.Affordable && progress.Reward.Cost < best.Reward.Cost {
			best = progress
		}
	}
	return best
}

// TokensHandler serves the per-business token balances and the earn
// entry points.
type TokensHandler struct {
	txRepo      *repository.TransactionRepository
	ledgerSvc   *ledger.Service
	purchaseSvc *purchase.Service
	session     *wallet.Session
}

func NewTokensHandler(
	txRepo *repository.TransactionRepository,
	ledgerSvc *ledger.Service,
	purchaseSvc *purchase.Service,
	session *wallet.Session,
) *TokensHandler {
	return &TokensHandler{txRepo: txRepo, ledgerSvc: ledgerSvc, purchaseSvc: purchaseSvc, session: session}
}

func (h *TokensHandler) GetTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	balances := map[string]int64{}
	if address := h.session.Address(); address != "" {
		txs, err := h.txRepo.ListByWallet(r.Context(), address, 0)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load history: "+err.Error())
			return
		}
		balances = h.ledgerSvc.Balances(txs)
	}

	tokens := make([]map[string]interface{}, 0)
	for _, b := range h.ledgerSvc.Businesses() {
		tokens = append(tokens, map[string]interface{}{
			"token_symbol": b.TokenSymbol,
			"token_name":   b.TokenName,
			"business":     b.Name,
			"location":     b.Location,
			"earn_rate":    b.EarnRate,
			"balance":      balances[b.TokenSymbol],
		})
	}
	writeJSON(w, http.StatusOK, tokens)
}

// Earn handles /api/tokens/earn/{business_name}. Without a wallet the
// intent is queued until one connects.
func (h *TokensHandler) Earn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 4 {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/tokens/earn/{business_name}")
		return
	}

	if err := h.purchaseSvc.EarnTokens(r.Context(), pathParts[3]); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"queued": h.session.Address() == "",
	})
}

func (h *TokensHandler) Scan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := h.purchaseSvc.ScanQR(r.Context()); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"queued": h.session.Address() == "",
	})
}

// AccountHandler exposes the raw account helpers: status lookup and
// friendbot funding of customer test accounts.
type AccountHandler struct {
	stellarSvc stellar.Service
}

func NewAccountHandler(stellarSvc stellar.Service) *AccountHandler {
	return &AccountHandler{stellarSvc: stellarSvc}
}

func (h *AccountHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 4 || pathParts[3] == "" {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/account/status/{address}")
		return
	}

	writeJSON(w, http.StatusOK, h.stellarSvc.AccountStatus(r.Context(), pathParts[3]))
}

func (h *AccountHandler) Fund(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 4 || pathParts[3] == "" {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/account/fund/{address}")
		return
	}

	outcome, err := h.stellarSvc.FundTestAccount(r.Context(), pathParts[3])
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type BusinessHandler struct {
	stellarSvc stellar.Service
}

func NewBusinessHandler(stellarSvc stellar.Service) *BusinessHandler {
	return &BusinessHandler{stellarSvc: stellarSvc}
}

func (h *BusinessHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status, err := h.stellarSvc.TestBusinessWallet(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *BusinessHandler) Fund(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	outcome, err := h.stellarSvc.FundBusinessWalletIfNeeded(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type NotificationHandler struct {
	center *notify.Center
}

func NewNotificationHandler(center *notify.Center) *NotificationHandler {
	return &NotificationHandler{center: center}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.center.List())
}

func (h *NotificationHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 4 {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/notifications/dismiss/{id}")
		return
	}
	h.center.Dismiss(pathParts[3])
	writeJSON(w, http.StatusOK, map[string]string{"message": "dismissed"})
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
