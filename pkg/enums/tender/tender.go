package tender

import "strings"

type Type struct {
	Name string
}

func (t Type) Code() string {
	return t.Name
}

func (t Type) Label() string {
	parts := strings.Split(t.Name, "-")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

type Enum struct {
	Cash       Type
	Card       Type
	GiftCard   Type
	Tab        Type
	Split      Type
	Partial    Type
	RoomCharge Type
}

var Types = Enum{
	Cash:       Type{Name: "cash"},
	Card:       Type{Name: "card"},
	GiftCard:   Type{Name: "gift-card"},
	Tab:        Type{Name: "tab"},
	Split:      Type{Name: "split"},
	Partial:    Type{Name: "partial"},
	RoomCharge: Type{Name: "room-charge"},
}

var All = []Type{
	Types.Cash,
	Types.Card,
	Types.GiftCard,
	Types.Tab,
	Types.Split,
	Types.Partial,
	Types.RoomCharge,
}

// ByName returns the tender type for a given name, or nil if not found
func ByName(name string) *Type {
	for _, t := range All {
		if t.Name == name {
			return &t
		}
	}
	return nil
}
