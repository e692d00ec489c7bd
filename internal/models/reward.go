package models

// RewardOption is one redeemable entry of the static reward catalog.
type RewardOption struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Cost          int64  `json:"cost"`
	Category      string `json:"category"`
	BusinessName  string `json:"business_name"`
	IsAvailable   bool   `json:"is_available"`
	Discount      int    `json:"discount,omitempty"`
	OriginalPrice int64  `json:"original_price,omitempty"`
	Image         string `json:"image,omitempty"`
}

// RewardProgress pairs a reward with how close the wallet's balance is
// to affording it.
type RewardProgress struct {
	Reward     RewardOption `json:"reward"`
	Balance    int64        `json:"balance"`
	Missing    int64        `json:"missing,omitempty"`
	Affordable bool         `json:"affordable"`
}

// ShopItem is a purchasable item of one of the configured businesses.
// Price is denominated in XLM, LoyaltyPoints is what a purchase credits.
type ShopItem struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	LoyaltyPoints int64  `json:"loyalty_points"`
	Description   string `json:"description"`
	TokenSymbol   string `json:"token_symbol"`
	Image         string `json:"image,omitempty"`
}
