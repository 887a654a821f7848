package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/pos/pkg/enums/station"
)

// menuItemResource mirrors the menu item returned by the menu service.
type menuItemResource struct {
	ID             string                  `json:"id"`
	ShortCode      string                  `json:"short_code"`
	Name           map[string]string       `json:"name"`
	Prices         []priceResource         `json:"prices"`
	Active         bool                    `json:"active"`
	Categories     []string                `json:"categories"`
	Station        string                  `json:"station"`
	ModifierGroups []modifierGroupResource `json:"modifier_groups"`
	DisplayOrder   int                     `json:"display_order"`
}

type priceResource struct {
	Amount       float64 `json:"amount"`
	CurrencyCode string  `json:"currency_code"`
}

type modifierGroupResource struct {
	ID            string                   `json:"id"`
	Name          string                   `json:"name"`
	Required      bool                     `json:"required"`
	MaxSelections int                      `json:"max_selections"`
	Options       []modifierOptionResource `json:"options"`
}

type modifierOptionResource struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	PriceDelta float64 `json:"price_delta"`
}

type categoryResource struct {
	ID           string            `json:"id"`
	Name         map[string]string `json:"name"`
	DisplayOrder int               `json:"display_order"`
}

// ServiceSource reads the catalog from the menu service.
type ServiceSource struct {
	client   *aqm.ServiceClient
	currency string
	language string
	logger   aqm.Logger
}

func NewServiceSource(client *aqm.ServiceClient, currency, language string, logger aqm.Logger) *ServiceSource {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if language == "" {
		language = "en"
	}
	return &ServiceSource{
		client:   client,
		currency: strings.ToUpper(currency),
		language: language,
		logger:   logger,
	}
}

func (s *ServiceSource) Load(ctx context.Context) (*Snapshot, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("menu client not configured")
	}

	resp, err := s.client.Request(ctx, "GET", "/menu/items", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}

	var resources []menuItemResource
	if err := decodeSuccessResponse(resp, &resources); err != nil {
		return nil, fmt.Errorf("failed to decode menu items: %w", err)
	}

	snap := &Snapshot{}
	for _, res := range resources {
		item, ok := s.toItem(res)
		if !ok {
			continue
		}
		snap.Items = append(snap.Items, item)
	}

	// Categories are optional; a menu service without them still yields a usable catalog.
	if catResp, err := s.client.Request(ctx, "GET", "/menu/categories", nil); err == nil {
		var cats []categoryResource
		if err := decodeSuccessResponse(catResp, &cats); err == nil {
			for _, c := range cats {
				snap.Categories = append(snap.Categories, Category{
					ID:           c.ID,
					Name:         s.localized(c.Name),
					DisplayOrder: c.DisplayOrder,
				})
			}
		}
	} else {
		s.logger.Debug("menu categories unavailable", "error", err)
	}

	sort.SliceStable(snap.Items, func(i, j int) bool {
		return snap.Items[i].Name < snap.Items[j].Name
	})
	return snap, nil
}

func (s *ServiceSource) toItem(res menuItemResource) (Item, bool) {
	id, err := uuid.Parse(res.ID)
	if err != nil {
		s.logger.Debug("skipping menu item with invalid id", "id", res.ID)
		return Item{}, false
	}

	price, ok := s.price(res.Prices)
	if !ok {
		s.logger.Debug("skipping menu item without price", "id", res.ID, "currency", s.currency)
		return Item{}, false
	}

	dest := station.Resolve(res.Station).Code()

	item := Item{
		ID:      id,
		Code:    res.ShortCode,
		Name:    s.localized(res.Name),
		Price:   price,
		Station: dest,
		Active:  res.Active,
	}
	if len(res.Categories) > 0 {
		item.CategoryID = res.Categories[0]
	}

	for _, g := range res.ModifierGroups {
		group := ModifierGroup{
			ID:            g.ID,
			Name:          g.Name,
			Required:      g.Required,
			MaxSelections: g.MaxSelections,
		}
		for _, o := range g.Options {
			group.Options = append(group.Options, ModifierOption{
				ID:         o.ID,
				Name:       o.Name,
				PriceDelta: decimal.NewFromFloat(o.PriceDelta).Round(2),
			})
		}
		item.ModifierGroups = append(item.ModifierGroups, group)
	}

	return item, true
}

func (s *ServiceSource) price(prices []priceResource) (decimal.Decimal, bool) {
	for _, p := range prices {
		if s.currency == "" || strings.EqualFold(p.CurrencyCode, s.currency) {
			return decimal.NewFromFloat(p.Amount).Round(2), true
		}
	}
	return decimal.Zero, false
}

func (s *ServiceSource) localized(names map[string]string) string {
	if name, ok := names[s.language]; ok && name != "" {
		return name
	}
	if name, ok := names["en"]; ok && name != "" {
		return name
	}
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if names[k] != "" {
			return names[k]
		}
	}
	return ""
}

func decodeSuccessResponse(resp *aqm.SuccessResponse, target interface{}) error {
	if resp == nil {
		return fmt.Errorf("nil success response")
	}

	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, target)
}
