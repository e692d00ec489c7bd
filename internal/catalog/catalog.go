package catalog

import (
	"strings"

	"loyalty-rewards-system/internal/models"
	"loyalty-rewards-system/pkg/errors"
)

// Catalog is the static reward and shop item table of the demo
// businesses. Read-only after construction.
type Catalog struct {
	rewards    []models.RewardOption
	items      []models.ShopItem
	categories []string
}

func NewCatalog() *Catalog {
	return &Catalog{
		rewards:    defaultRewards(),
		items:      defaultItems(),
		categories: []string{"all", "Beverage", "Dessert", "Discount", "Premium"},
	}
}

func (c *Catalog) Rewards() []models.RewardOption {
	return c.rewards
}

func (c *Catalog) Categories() []string {
	return c.categories
}

// FilterRewards narrows the catalog by a case-insensitive substring match
// on title or business name, and by category ("all" or empty matches
// everything).
func (c *Catalog) FilterRewards(term, category string) []models.RewardOption {
	term = strings.ToLower(term)
	out := make([]models.RewardOption, 0, len(c.rewards))
	for _, r := range c.rewards {
		if term != "" &&
			!strings.Contains(strings.ToLower(r.Title), term) &&
			!strings.Contains(strings.ToLower(r.BusinessName), term) {
			continue
		}
		if category != "" && category != "all" && r.Category != category {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (c *Catalog) RewardByID(id string) (*models.RewardOption, error) {
	for i := range c.rewards {
		if c.rewards[i].ID == id {
			return &c.rewards[i], nil
		}
	}
	return nil, errors.New(errors.ErrRewardNotFound, "reward not found", nil)
}

func (c *Catalog) Items() []models.ShopItem {
	return c.items
}

func (c *Catalog) ItemsForBusiness(tokenSymbol string) []models.ShopItem {
	out := make([]models.ShopItem, 0, len(c.items))
	for _, item := range c.items {
		if item.TokenSymbol == tokenSymbol {
			out = append(out, item)
		}
	}
	return out
}

func (c *Catalog) ItemByID(id string) (*models.ShopItem, error) {
	for i := range c.items {
		if c.items[i].ID == id {
			return &c.items[i], nil
		}
	}
	return nil, errors.New(errors.ErrItemNotFound, "shop item not found", nil)
}

func defaultRewards() []models.RewardOption {
	return []models.RewardOption{
		{
			ID:            "1",
			Title:         "Free Coffee",
			Description:   "Free medium coffee of your choice",
			Cost:          100,
			Category:      "Beverage",
			BusinessName:  "Stellar Coffee Co.",
			IsAvailable:   true,
			OriginalPrice: 25,
		},
		{
			ID:            "2",
			Title:         "Free Cake Slice",
			Description:   "Delicious cake slice of your choice",
			Cost:          80,
			Category:      "Dessert",
			BusinessName:  "Stellar Cake House",
			IsAvailable:   true,
			OriginalPrice: 35,
		},
		{
			ID:           "3",
			Title:        "10% Coffee Discount",
			Description:  "10% discount on your next coffee purchase",
			Cost:         50,
			Category:     "Discount",
			BusinessName: "Stellar Coffee Co.",
			IsAvailable:  true,
			Discount:     10,
		},
		{
			ID:            "4",
			Title:         "Premium Cake Experience",
			Description:   "Special cake varieties with decorations",
			Cost:          150,
			Category:      "Premium",
			BusinessName:  "Stellar Cake House",
			IsAvailable:   true,
			OriginalPrice: 60,
		},
		{
			ID:            "5",
			Title:         "Premium Coffee Experience",
			Description:   "Special coffee varieties and latte art",
			Cost:          200,
			Category:      "Premium",
			BusinessName:  "Stellar Coffee Co.",
			IsAvailable:   true,
			OriginalPrice: 50,
		},
	}
}

func defaultItems() []models.ShopItem {
	return []models.ShopItem{
		{ID: "1", Name: "Espresso", Price: 15, LoyaltyPoints: 10, Description: "Strong and rich espresso shot", TokenSymbol: "COFFEE"},
		{ID: "2", Name: "Cappuccino", Price: 25, LoyaltyPoints: 20, Description: "Creamy cappuccino with steamed milk", TokenSymbol: "COFFEE"},
		{ID: "3", Name: "Latte", Price: 30, LoyaltyPoints: 25, Description: "Smooth latte with milk foam art", TokenSymbol: "COFFEE"},
		{ID: "4", Name: "Americano", Price: 20, LoyaltyPoints: 15, Description: "Bold americano with hot water", TokenSymbol: "COFFEE"},
		{ID: "5", Name: "Chocolate Cake", Price: 40, LoyaltyPoints: 30, Description: "Rich and moist chocolate cake", TokenSymbol: "CAKE"},
		{ID: "6", Name: "Cheesecake", Price: 45, LoyaltyPoints: 35, Description: "Creamy New York style cheesecake", TokenSymbol: "CAKE"},
		{ID: "7", Name: "Red Velvet", Price: 35, LoyaltyPoints: 25, Description: "Classic red velvet with cream cheese frosting", TokenSymbol: "CAKE"},
		{ID: "8", Name: "Tiramisu", Price: 50, LoyaltyPoints: 40, Description: "Italian coffee-flavored dessert", TokenSymbol: "CAKE"},
	}
}
