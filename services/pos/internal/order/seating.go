package order

import (
	"sort"

	"github.com/shopspring/decimal"
)

type CourseGroup struct {
	Course int          `json:"course"`
	Items  []*OrderItem `json:"items"`
}

type SeatGroup struct {
	Seat    int           `json:"seat"`
	Courses []CourseGroup `json:"courses"`
}

// SeatCourseIndex is seat → course → items, seats and courses ascending.
type SeatCourseIndex []SeatGroup

// Project groups active items by seat and course. It is recomputed on every
// call and never stored, so it cannot drift from the item list.
func Project(items []*OrderItem) SeatCourseIndex {
	seats := make(map[int]map[int][]*OrderItem)
	for _, item := range items {
		if item.IsVoided() {
			continue
		}
		if seats[item.Seat] == nil {
			seats[item.Seat] = make(map[int][]*OrderItem)
		}
		seats[item.Seat][item.Course] = append(seats[item.Seat][item.Course], item)
	}

	index := make(SeatCourseIndex, 0, len(seats))
	for seat, courses := range seats {
		group := SeatGroup{Seat: seat}
		for course, list := range courses {
			sort.SliceStable(list, func(i, j int) bool { return list[i].Sequence < list[j].Sequence })
			group.Courses = append(group.Courses, CourseGroup{Course: course, Items: list})
		}
		sort.Slice(group.Courses, func(i, j int) bool { return group.Courses[i].Course < group.Courses[j].Course })
		index = append(index, group)
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Seat < index[j].Seat })
	return index
}

func (idx SeatCourseIndex) Seat(seat int) (SeatGroup, bool) {
	for _, g := range idx {
		if g.Seat == seat {
			return g, true
		}
	}
	return SeatGroup{}, false
}

// Seats lists occupied seats ascending.
func (idx SeatCourseIndex) Seats() []int {
	seats := make([]int, 0, len(idx))
	for _, g := range idx {
		seats = append(seats, g.Seat)
	}
	return seats
}

// Course collects the items of one course across all seats.
func (idx SeatCourseIndex) Course(course int) []*OrderItem {
	var items []*OrderItem
	for _, g := range idx {
		for _, c := range g.Courses {
			if c.Course == course {
				items = append(items, c.Items...)
			}
		}
	}
	return items
}

// MaxSeat is the highest occupied seat, 0 when empty.
func (idx SeatCourseIndex) MaxSeat() int {
	if len(idx) == 0 {
		return 0
	}
	return idx[len(idx)-1].Seat
}

func (g SeatGroup) Items() []*OrderItem {
	var items []*OrderItem
	for _, c := range g.Courses {
		items = append(items, c.Items...)
	}
	return items
}

func (g SeatGroup) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range g.Items() {
		total = total.Add(item.LineTotal())
	}
	return total
}
