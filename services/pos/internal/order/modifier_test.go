package order

import (
	"errors"
	"strings"
	"testing"

	"github.com/appetiteclub/pos/services/pos/internal/catalog"
)

func demoItem(id string) catalog.Item {
	for _, item := range catalog.DemoSnapshot().Items {
		if item.Code == id {
			return item
		}
	}
	panic("demo item not found: " + id)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		item       catalog.Item
		selections []Selection
		wantErr    error
		wantMods   int
		wantDelta  string
	}{
		{
			name:      "noGroups",
			item:      demoItem("SOUP"),
			wantMods:  0,
			wantDelta: "0",
		},
		{
			name:       "optionalGroupSelected",
			item:       demoItem("ESPRESSO"),
			selections: []Selection{{GroupID: "milk", OptionID: "oat"}},
			wantMods:   1,
			wantDelta:  "1.00",
		},
		{
			name:      "optionalGroupSkipped",
			item:      demoItem("ESPRESSO"),
			wantMods:  0,
			wantDelta: "0",
		},
		{
			name:    "requiredGroupMissing",
			item:    demoItem("BURGER"),
			wantErr: ErrIncompleteModifierSelection,
		},
		{
			name:       "requiredGroupMissingWithExtras",
			item:       demoItem("BURGER"),
			selections: []Selection{{GroupID: "extras", OptionID: "bacon"}},
			wantErr:    ErrIncompleteModifierSelection,
		},
		{
			name: "requiredGroupSatisfied",
			item: demoItem("BURGER"),
			selections: []Selection{
				{GroupID: "doneness", OptionID: "medium"},
				{GroupID: "extras", OptionID: "cheese"},
				{GroupID: "extras", OptionID: "bacon"},
			},
			wantMods:  3,
			wantDelta: "2.50",
		},
		{
			name: "duplicateOptionMerges",
			item: demoItem("BURGER"),
			selections: []Selection{
				{GroupID: "doneness", OptionID: "rare"},
				{GroupID: "extras", OptionID: "bacon"},
				{GroupID: "extras", OptionID: "bacon"},
			},
			wantMods:  2,
			wantDelta: "3.00",
		},
		{
			name: "maxSelectionsExceeded",
			item: demoItem("BURGER"),
			selections: []Selection{
				{GroupID: "doneness", OptionID: "rare"},
				{GroupID: "doneness", OptionID: "well"},
			},
			wantErr: ErrInvalidModifier,
		},
		{
			name:       "unknownGroup",
			item:       demoItem("SOUP"),
			selections: []Selection{{GroupID: "bread", OptionID: "rye"}},
			wantErr:    ErrInvalidModifier,
		},
		{
			name:       "unknownOption",
			item:       demoItem("ESPRESSO"),
			selections: []Selection{{GroupID: "milk", OptionID: "goat"}},
			wantErr:    ErrInvalidModifier,
		},
		{
			name:       "negativeQuantity",
			item:       demoItem("ESPRESSO"),
			selections: []Selection{{GroupID: "milk", OptionID: "oat", Quantity: -1}},
			wantErr:    ErrInvalidModifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mods, err := Resolve(tt.item, tt.selections)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if len(mods) != tt.wantMods {
				t.Errorf("Resolve() modifiers = %d, want %d", len(mods), tt.wantMods)
			}
			total := dec("0")
			for _, m := range mods {
				total = total.Add(m.Total())
			}
			if !total.Equal(dec(tt.wantDelta)) {
				t.Errorf("Resolve() delta = %s, want %s", total, tt.wantDelta)
			}
		})
	}
}

func TestResolveSnapshotsPriceDelta(t *testing.T) {
	item := demoItem("ESPRESSO")
	mods, err := Resolve(item, []Selection{{GroupID: "milk", OptionID: "oat"}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	item.ModifierGroups[0].Options[0].PriceDelta = dec("2.00")

	if !mods[0].PriceDelta.Equal(dec("1.00")) {
		t.Errorf("resolved delta changed with catalog: got %s, want 1.00", mods[0].PriceDelta)
	}
}

func TestResolveNamesMissingGroups(t *testing.T) {
	_, err := Resolve(demoItem("BURGER"), nil)
	if !errors.Is(err, ErrIncompleteModifierSelection) {
		t.Fatalf("Resolve() error = %v, want %v", err, ErrIncompleteModifierSelection)
	}
	if !strings.Contains(err.Error(), "Doneness") {
		t.Errorf("Resolve() error = %q, want it to name Doneness", err)
	}

	if _, err := Resolve(demoItem("BURGER"), []Selection{{GroupID: "doneness", OptionID: "rare"}}); err != nil {
		t.Errorf("Resolve() error = %v, want nil", err)
	}
}
