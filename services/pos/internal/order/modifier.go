package order

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/appetiteclub/pos/services/pos/internal/catalog"
)

// Modifier is an option applied to an order item. PriceDelta is copied from
// the catalog when the option is chosen and never re-read afterwards.
type Modifier struct {
	GroupID    string          `json:"group_id" bson:"group_id"`
	OptionID   string          `json:"option_id" bson:"option_id"`
	Name       string          `json:"name" bson:"name"`
	Quantity   int             `json:"quantity" bson:"quantity"`
	PriceDelta decimal.Decimal `json:"price_delta" bson:"price_delta"`
}

// Total is the per-unit surcharge of the modifier.
func (m Modifier) Total() decimal.Decimal {
	return m.PriceDelta.Mul(decimal.NewFromInt(int64(m.Quantity)))
}

// Label is the short text shown on tickets and displays.
func (m Modifier) Label() string {
	if m.Quantity > 1 {
		return fmt.Sprintf("%dx %s", m.Quantity, m.Name)
	}
	return m.Name
}

// Selection is an operator's choice of one option in one group.
type Selection struct {
	GroupID  string `json:"group_id"`
	OptionID string `json:"option_id"`
	Quantity int    `json:"quantity,omitempty"`
}

// Resolve validates selections against the item's modifier groups and prices them.
func Resolve(item catalog.Item, selections []Selection) ([]Modifier, error) {
	var mods []Modifier
	chosen := make(map[string]map[string]int)

	for _, sel := range selections {
		group, ok := item.Group(sel.GroupID)
		if !ok {
			return nil, fmt.Errorf("%w: unknown group %q for %s", ErrInvalidModifier, sel.GroupID, item.Name)
		}
		option, ok := group.Option(sel.OptionID)
		if !ok {
			return nil, fmt.Errorf("%w: unknown option %q in %s", ErrInvalidModifier, sel.OptionID, group.Name)
		}
		qty := sel.Quantity
		if qty < 0 {
			return nil, fmt.Errorf("%w: negative quantity for %s", ErrInvalidModifier, option.Name)
		}
		if qty == 0 {
			qty = 1
		}

		if chosen[group.ID] == nil {
			chosen[group.ID] = make(map[string]int)
		}
		if idx, seen := chosen[group.ID][option.ID]; seen {
			mods[idx].Quantity += qty
			continue
		}
		if group.MaxSelections > 0 && len(chosen[group.ID]) >= group.MaxSelections {
			return nil, fmt.Errorf("%w: %s allows %d selection(s)", ErrInvalidModifier, group.Name, group.MaxSelections)
		}

		chosen[group.ID][option.ID] = len(mods)
		mods = append(mods, Modifier{
			GroupID:    group.ID,
			OptionID:   option.ID,
			Name:       option.Name,
			Quantity:   qty,
			PriceDelta: option.PriceDelta,
		})
	}

	if missing := missingGroups(item, chosen); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrIncompleteModifierSelection, missing)
	}

	return mods, nil
}

func missingGroups(item catalog.Item, chosen map[string]map[string]int) []string {
	var missing []string
	for _, g := range item.ModifierGroups {
		if g.Required && len(chosen[g.ID]) == 0 {
			missing = append(missing, g.Name)
		}
	}
	return missing
}
