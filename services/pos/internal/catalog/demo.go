package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	DemoBurgerID    = uuid.MustParse("6a1f0c2e-7c1b-4d0e-9a51-1b9f3c100001")
	DemoSaladID     = uuid.MustParse("6a1f0c2e-7c1b-4d0e-9a51-1b9f3c100002")
	DemoSoupID      = uuid.MustParse("6a1f0c2e-7c1b-4d0e-9a51-1b9f3c100003")
	DemoTiramisuID  = uuid.MustParse("6a1f0c2e-7c1b-4d0e-9a51-1b9f3c100004")
	DemoEspressoID  = uuid.MustParse("6a1f0c2e-7c1b-4d0e-9a51-1b9f3c100005")
	DemoLemonadeID  = uuid.MustParse("6a1f0c2e-7c1b-4d0e-9a51-1b9f3c100006")
	DemoHouseWineID = uuid.MustParse("6a1f0c2e-7c1b-4d0e-9a51-1b9f3c100007")
)

// DemoSource serves a fixed catalog. It backs local runs and seeds the
// mongo catalog on first start.
type DemoSource struct{}

func (DemoSource) Load(ctx context.Context) (*Snapshot, error) {
	return DemoSnapshot(), nil
}

func DemoSnapshot() *Snapshot {
	return &Snapshot{
		Categories: []Category{
			{ID: "starters", Name: "Starters", DisplayOrder: 1},
			{ID: "mains", Name: "Mains", DisplayOrder: 2},
			{ID: "desserts", Name: "Desserts", DisplayOrder: 3},
			{ID: "drinks", Name: "Drinks", DisplayOrder: 4},
		},
		Items: []Item{
			{
				ID: DemoSoupID, Code: "SOUP", Name: "Soup of the Day", CategoryID: "starters",
				Price: decimal.RequireFromString("6.50"), Station: "kitchen", Active: true,
			},
			{
				ID: DemoSaladID, Code: "SALAD", Name: "Caesar Salad", CategoryID: "starters",
				Price: decimal.RequireFromString("8.00"), Station: "kitchen", Active: true,
				ModifierGroups: []ModifierGroup{
					{
						ID: "protein", Name: "Add Protein", MaxSelections: 1,
						Options: []ModifierOption{
							{ID: "chicken", Name: "Chicken", PriceDelta: decimal.RequireFromString("3.00")},
							{ID: "shrimp", Name: "Shrimp", PriceDelta: decimal.RequireFromString("4.50")},
						},
					},
				},
			},
			{
				ID: DemoBurgerID, Code: "BURGER", Name: "House Burger", CategoryID: "mains",
				Price: decimal.RequireFromString("14.00"), Station: "kitchen", Active: true,
				ModifierGroups: []ModifierGroup{
					{
						ID: "doneness", Name: "Doneness", Required: true, MaxSelections: 1,
						Options: []ModifierOption{
							{ID: "rare", Name: "Rare", PriceDelta: decimal.Zero},
							{ID: "medium", Name: "Medium", PriceDelta: decimal.Zero},
							{ID: "well", Name: "Well Done", PriceDelta: decimal.Zero},
						},
					},
					{
						ID: "extras", Name: "Extras",
						Options: []ModifierOption{
							{ID: "cheese", Name: "Cheddar", PriceDelta: decimal.RequireFromString("1.00")},
							{ID: "bacon", Name: "Bacon", PriceDelta: decimal.RequireFromString("1.50")},
						},
					},
				},
			},
			{
				ID: DemoTiramisuID, Code: "TIRAMISU", Name: "Tiramisu", CategoryID: "desserts",
				Price: decimal.RequireFromString("7.00"), Station: "kitchen", Active: true,
			},
			{
				ID: DemoEspressoID, Code: "ESPRESSO", Name: "Espresso", CategoryID: "drinks",
				Price: decimal.RequireFromString("4.50"), Station: "bar", Active: true,
				ModifierGroups: []ModifierGroup{
					{
						ID: "milk", Name: "Milk",
						Options: []ModifierOption{
							{ID: "oat", Name: "Oat Milk", PriceDelta: decimal.RequireFromString("1.00")},
							{ID: "whole", Name: "Whole Milk", PriceDelta: decimal.Zero},
						},
					},
				},
			},
			{
				ID: DemoLemonadeID, Code: "LEMONADE", Name: "Lemonade", CategoryID: "drinks",
				Price: decimal.RequireFromString("3.50"), Station: "bar", Active: true,
			},
			{
				ID: DemoHouseWineID, Code: "WINE", Name: "House Wine", CategoryID: "drinks",
				Price: decimal.RequireFromString("6.00"), Station: "bar", Active: false,
			},
		},
		LoadedAt: time.Now(),
	}
}
