package purchase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"loyalty-rewards-system/internal/config"
	"loyalty-rewards-system/internal/models"
	"loyalty-rewards-system/pkg/errors"
	"loyalty-rewards-system/pkg/logger"
)

// RedeemResult reports a successful redemption: the pickup code to show
// at the counter, plus the bonus credited for redeeming.
type RedeemResult struct {
	Deferred    bool   `json:"deferred"`
	Code        string `json:"code,omitempty"`
	BonusPoints int64  `json:"bonus_points,omitempty"`
	Message     string `json:"message"`
}

// Redeem exchanges loyalty tokens for a reward. The reward must exist,
// be available, and be covered by the wallet's balance; nothing is
// recorded otherwise. A successful redemption appends the redeem
// transaction plus a 10% bonus earn when the bonus rounds above zero.
func (s *Service) Redeem(ctx context.Context, rewardID string) (*RedeemResult, error) {
	// Validate before gating on the wallet: a bogus id must never
	// occupy the pending slot.
	reward, err := s.catalog.RewardByID(rewardID)
	if err != nil {
		return nil, err
	}

	address := s.session.Address()
	if address == "" {
		s.session.Defer(models.PendingAction{Kind: models.ActionRedeemReward, Payload: reward.ID})
		logger.WithFields(map[string]interface{}{
			"reward": reward.Title,
		}).Info("Redemption deferred until wallet connects")
		return &RedeemResult{Deferred: true, Message: "connect a wallet to redeem this reward"}, nil
	}

	if !reward.IsAvailable {
		return nil, errors.New(errors.ErrRewardUnavailable,
			fmt.Sprintf("%s is currently unavailable", reward.Title), nil)
	}

	business := s.businessForName(reward.BusinessName)
	if business == nil {
		return nil, errors.New(errors.ErrRewardUnavailable,
			fmt.Sprintf("no business configured for %s", reward.BusinessName), nil)
	}

	balance, err := s.balanceFor(ctx, address, business.TokenSymbol)
	if err != nil {
		return nil, err
	}
	if balance < reward.Cost {
		s.notify.Error(fmt.Sprintf("Not enough %s tokens. You need %d but have %d.",
			business.TokenSymbol, reward.Cost, balance))
		return nil, errors.New(errors.ErrInsufficientBalance,
			fmt.Sprintf("need %d %s, have %d", reward.Cost, business.TokenSymbol, balance), nil)
	}

	now := time.Now()
	redeem := &models.Transaction{
		ID:            "redeem_" + uuid.NewString(),
		WalletAddress: address,
		Type:          models.TxTypeRedeem,
		Amount:        reward.Cost,
		TokenSymbol:   business.TokenSymbol,
		BusinessName:  business.Name,
		Description:   fmt.Sprintf("Redeemed: %s", reward.Title),
		Timestamp:     now,
		Status:        models.TxStatusCompleted,
	}
	if err := s.store.Create(ctx, redeem); err != nil {
		return nil, errors.New(errors.ErrHistoryRefresh, "failed to record redemption", err)
	}

	bonus := int64(math.Floor(float64(reward.Cost) * s.cfg.RedeemBonusRate))
	if bonus > 0 {
		earn := &models.Transaction{
			ID:            "reward_" + uuid.NewString(),
			WalletAddress: address,
			Type:          models.TxTypeEarn,
			Amount:        bonus,
			TokenSymbol:   business.TokenSymbol,
			BusinessName:  business.Name,
			Description:   fmt.Sprintf("Redemption bonus: %s", reward.Title),
			Timestamp:     now,
			Status:        models.TxStatusCompleted,
		}
		if err := s.store.Create(ctx, earn); err != nil {
			return nil, errors.New(errors.ErrHistoryRefresh, "failed to record redemption bonus", err)
		}
	}

	code := redemptionCode(reward.ID, now)
	s.metrics.Redemptions.WithLabelValues("success").Inc()

	message := fmt.Sprintf("%s redeemed! Show code %s at the counter.", reward.Title, code)
	if bonus > 0 {
		message = fmt.Sprintf("%s redeemed! Show code %s at the counter. Bonus: +%d %s tokens.",
			reward.Title, code, bonus, business.TokenSymbol)
	}
	s.notify.Success(message)

	logger.WithFields(map[string]interface{}{
		"reward": reward.Title,
		"cost":   reward.Cost,
		"bonus":  bonus,
		"code":   code,
	}).Info("Reward redeemed")

	return &RedeemResult{Code: code, BonusPoints: bonus, Message: message}, nil
}

// LoyaltyPay pays for a shop item entirely with loyalty tokens instead
// of XLM. The token price is the XLM price scaled by the configured
// rate. No network traffic: the spend is a local ledger entry.
func (s *Service) LoyaltyPay(ctx context.Context, itemID string) (*Receipt, error) {
	item, err := s.catalog.ItemByID(itemID)
	if err != nil {
		return nil, err
	}
	business, err := s.businessForToken(item.TokenSymbol)
	if err != nil {
		return nil, err
	}

	address := s.session.Address()
	if address == "" {
		s.session.Defer(models.PendingAction{Kind: models.ActionBuyItem, Payload: loyaltyPayloadPrefix + item.ID})
		return &Receipt{Deferred: true, Message: "connect a wallet to pay with loyalty tokens"}, nil
	}

	required := item.Price * s.cfg.TokensPerXLM
	balance, err := s.balanceFor(ctx, address, item.TokenSymbol)
	if err != nil {
		return nil, err
	}
	if balance < required {
		s.notify.Error(fmt.Sprintf("Not enough %s tokens. You need %d but have %d.",
			item.TokenSymbol, required, balance))
		return nil, errors.New(errors.ErrInsufficientBalance,
			fmt.Sprintf("need %d %s, have %d", required, item.TokenSymbol, balance), nil)
	}

	spend := &models.Transaction{
		ID:            "loyalty_" + uuid.NewString(),
		WalletAddress: address,
		Type:          models.TxTypeRedeem,
		Amount:        required,
		TokenSymbol:   item.TokenSymbol,
		BusinessName:  business.Name,
		Description:   fmt.Sprintf("Loyalty payment: %s", item.Name),
		Timestamp:     time.Now(),
		Status:        models.TxStatusCompleted,
	}
	if err := s.store.Create(ctx, spend); err != nil {
		return nil, errors.New(errors.ErrHistoryRefresh, "failed to record loyalty payment", err)
	}

	s.metrics.Redemptions.WithLabelValues("loyalty_pay").Inc()
	message := fmt.Sprintf("%s purchased with %d %s tokens!", item.Name, required, item.TokenSymbol)
	s.notify.Success(message)

	return &Receipt{
		PointsEarned: -required,
		TokenSymbol:  item.TokenSymbol,
		Message:      message,
	}, nil
}

// EarnTokens points the user at a business to earn with. Earning happens
// through real payments picked up by the history refresh, so without a
// wallet the intent is queued and otherwise it is informational.
func (s *Service) EarnTokens(ctx context.Context, businessName string) error {
	business := s.businessForName(businessName)
	if business == nil {
		return errors.New(errors.ErrItemNotFound, "unknown business "+businessName, nil)
	}
	if s.session.Address() == "" {
		s.session.Defer(models.PendingAction{Kind: models.ActionEarnTokens, Payload: business.Name})
		return nil
	}
	s.notify.Info(fmt.Sprintf("Pay %s with your wallet to earn %s tokens at %gx rate.",
		business.Name, business.TokenSymbol, business.EarnRate))
	return nil
}

// ScanQR queues the scanner behind a wallet connection, so connecting
// drops the user straight into it.
func (s *Service) ScanQR(ctx context.Context) error {
	if s.session.Address() == "" {
		s.session.Defer(models.PendingAction{Kind: models.ActionScanQR})
		return nil
	}
	s.notify.Info("Point your camera at the business QR code to pay.")
	return nil
}

const loyaltyPayloadPrefix = "loyalty:"

// ExecutePending runs a queued action after the wallet connects. Wire it
// up with session.OnConnect. Errors are logged, not returned: the user
// already sees failures through notifications.
func (s *Service) ExecutePending(action models.PendingAction) {
	ctx := context.Background()
	logger.WithFields(map[string]interface{}{
		"kind":    action.Kind,
		"payload": action.Payload,
	}).Info("Executing pending action")

	var err error
	switch action.Kind {
	case models.ActionBuyItem:
		if strings.HasPrefix(action.Payload, loyaltyPayloadPrefix) {
			_, err = s.LoyaltyPay(ctx, strings.TrimPrefix(action.Payload, loyaltyPayloadPrefix))
		} else {
			_, err = s.Buy(ctx, action.Payload)
		}
	case models.ActionRedeemReward:
		_, err = s.Redeem(ctx, action.Payload)
	case models.ActionEarnTokens:
		err = s.EarnTokens(ctx, action.Payload)
	case models.ActionScanQR:
		err = s.ScanQR(ctx)
	default:
		logger.WithFields(map[string]interface{}{"kind": action.Kind}).Warn("Unknown pending action kind")
	}
	if err != nil {
		logger.WithError(err).Error("Pending action failed")
	}
}

// balanceFor derives the wallet's balance of one token from its stored
// transaction history.
func (s *Service) balanceFor(ctx context.Context, address, tokenSymbol string) (int64, error) {
	txs, err := s.store.ListByWallet(ctx, address, 0)
	if err != nil {
		return 0, errors.New(errors.ErrHistoryRefresh, "failed to load transaction history", err)
	}
	return s.ledger.BalanceFor(txs, tokenSymbol), nil
}

func (s *Service) businessForName(name string) *config.BusinessConfig {
	for _, b := range s.ledger.Businesses() {
		if b.Name == name {
			business := b
			return &business
		}
	}
	return nil
}

// redemptionCode derives the counter code from the redemption time and
// reward id, e.g. RDM-123456-1.
func redemptionCode(rewardID string, at time.Time) string {
	ms := fmt.Sprintf("%d", at.UnixMilli())
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return fmt.Sprintf("RDM-%s-%s", ms, rewardID)
}
