package kitchenstatus

import (
	"strings"
)

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	parts := strings.Split(s.Name, "-")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

// OnMainTrack reports whether the status belongs to the new → sent → fired progression.
func (s Status) OnMainTrack() bool {
	return s == Statuses.New || s == Statuses.Sent || s == Statuses.Fired
}

type Enum struct {
	New    Status
	Sent   Status
	Fired  Status
	Held   Status
	Rush   Status
	Voided Status
}

var Statuses = Enum{
	New:    Status{Name: "new"},
	Sent:   Status{Name: "sent"},
	Fired:  Status{Name: "fired"},
	Held:   Status{Name: "held"},
	Rush:   Status{Name: "rush"},
	Voided: Status{Name: "voided"},
}

var All = []Status{
	Statuses.New,
	Statuses.Sent,
	Statuses.Fired,
	Statuses.Held,
	Statuses.Rush,
	Statuses.Voided,
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

var mainTrackRank = map[string]int{
	"new":   0,
	"sent":  1,
	"fired": 2,
}

// Rank is the position of a status on the main track, -1 for side branches
// and unknown names.
func Rank(name string) int {
	if r, ok := mainTrackRank[name]; ok {
		return r
	}
	return -1
}

// CanTransition tells whether an item may move from one kitchen status to another.
// The main track only moves forward. Held and rush are side branches reachable from
// any live status and may return to the main track. Voided is terminal and
// only reachable through a void.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	if from == Statuses.Voided.Name || to == Statuses.Voided.Name {
		return false
	}
	if ByName(from) == nil || ByName(to) == nil {
		return false
	}
	if to == Statuses.Held.Name || to == Statuses.Rush.Name {
		return true
	}
	if from == Statuses.Held.Name || from == Statuses.Rush.Name {
		return true
	}
	return Rank(to) > Rank(from)
}

// CanResume tells whether an item leaving the held or rush branch may land on
// the main track status to, given the furthest main track status it reached
// before. An item never goes back behind what the kitchen already received.
func CanResume(to, reached string) bool {
	s := ByName(to)
	if s == nil || !s.OnMainTrack() {
		return false
	}
	return Rank(to) >= Rank(reached)
}
