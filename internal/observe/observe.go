package observe

import (
	"sort"
)

// Point is one observation: a count reported Day days after a reference date.
type Point struct {
	Day   int     `json:"day"`
	Count float64 `json:"count"`
}

// Set is an immutable, day-ordered series of observations.
type Set struct {
	Name      string
	Reference Date
	points    []Point
}

// NewSet copies points and orders them by day.
func NewSet(name string, reference Date, points []Point) Set {
	cp := make([]Point, len(points))
	copy(cp, points)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Day < cp[j].Day })
	return Set{Name: name, Reference: reference, points: cp}
}

func (s Set) Len() int { return len(s.points) }

// Points returns a copy of the observations with their original offsets.
func (s Set) Points() []Point {
	cp := make([]Point, len(s.points))
	copy(cp, s.points)
	return cp
}

// DateOf returns the calendar date of p.
func (s Set) DateOf(p Point) Date {
	return s.Reference.AddDays(p.Day)
}

// Latest returns the last observation and its date.
func (s Set) Latest() (Date, Point, bool) {
	if len(s.points) == 0 {
		return Date{}, Point{}, false
	}
	p := s.points[len(s.points)-1]
	return s.DateOf(p), p, true
}

// At returns the observation reported on date d.
func (s Set) At(d Date) (Point, bool) {
	day := d.DaysSince(s.Reference)
	i := sort.Search(len(s.points), func(i int) bool { return s.points[i].Day >= day })
	if i < len(s.points) && s.points[i].Day == day {
		return s.points[i], true
	}
	return Point{}, false
}

// Align re-expresses the offsets relative to epoch.
func (s Set) Align(epoch Date) []Point {
	return Align(s.points, s.Reference, epoch)
}

// Shift is the number of days to add to an offset measured from reference
// to make it relative to epoch.
func Shift(reference, epoch Date) int {
	return reference.DaysSince(epoch)
}

// Align returns a new slice with every offset translated from reference to
// epoch. Counts and spacing are unchanged.
func Align(points []Point, reference, epoch Date) []Point {
	shift := Shift(reference, epoch)
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{Day: p.Day + shift, Count: p.Count}
	}
	return out
}
