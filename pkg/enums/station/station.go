package station

import "strings"

// Station is a production destination items are dispatched to. Every
// catalog item routes to exactly one station; kitchen is the fallback.
type Station struct {
	Name  string
	Title string
}

func (s Station) Code() string {
	return s.Name
}

func (s Station) Label() string {
	return s.Title
}

type Enum struct {
	Kitchen Station
	Bar     Station
}

var Stations = Enum{
	Kitchen: Station{Name: "kitchen", Title: "Kitchen"},
	Bar:     Station{Name: "bar", Title: "Bar"},
}

var All = []Station{
	Stations.Kitchen,
	Stations.Bar,
}

// ByName matches case-insensitively, so KITCHEN from a terminal and kitchen
// from the catalog are the same destination. Unknown names return nil.
func ByName(name string) *Station {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range All {
		if All[i].Name == name {
			s := All[i]
			return &s
		}
	}
	return nil
}

// Resolve returns the named station or the kitchen when the name is empty
// or unknown.
func Resolve(name string) Station {
	if s := ByName(name); s != nil {
		return *s
	}
	return Stations.Kitchen
}
