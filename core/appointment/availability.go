package appointment

import (
	"sort"
	"time"

	"github.com/trezcool/spadesk/core/employee"
)

// Interval is the half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// DayBounds returns the UTC interval covering the calendar day of date in loc.
func DayBounds(date time.Time, loc *time.Location) Interval {
	y, m, d := date.In(loc).Date()
	return Interval{
		Start: time.Date(y, m, d, 0, 0, 0, 0, loc).UTC(),
		End:   time.Date(y, m, d+1, 0, 0, 0, 0, loc).UTC(),
	}
}

// ShiftIntervals returns the UTC working intervals of the shifts falling on the day of date in loc.
// Shift clocks are wall-clock times, so they follow DST changes.
func ShiftIntervals(date time.Time, loc *time.Location, shifts []employee.Shift) []Interval {
	local := date.In(loc)
	y, m, d := local.Date()
	wd := local.Weekday()

	var ivs []Interval
	for _, s := range shifts {
		if s.Weekday != wd {
			continue
		}
		start, end := s.StartMinute(), s.EndMinute()
		if start < 0 || end <= start {
			continue
		}
		ivs = append(ivs, Interval{
			Start: time.Date(y, m, d, 0, start, 0, 0, loc).UTC(),
			End:   time.Date(y, m, d, 0, end, 0, 0, loc).UTC(),
		})
	}
	sortIntervals(ivs)
	return ivs
}

// Subtract removes the busy intervals from base and returns what is left, sorted.
func Subtract(base, busy []Interval) []Interval {
	busy = append([]Interval(nil), busy...)
	sortIntervals(busy)

	var out []Interval
	for _, iv := range base {
		curr := iv
		for _, b := range busy {
			if !b.Overlaps(curr) {
				continue
			}
			if b.Start.After(curr.Start) {
				out = append(out, Interval{Start: curr.Start, End: b.Start})
			}
			if !b.End.Before(curr.End) {
				curr.Start = curr.End
				break
			}
			curr.Start = b.End
		}
		if curr.Start.Before(curr.End) {
			out = append(out, curr)
		}
	}
	sortIntervals(out)
	return out
}

// FreeSlots lists the slots of the given duration starting every step from the start of each working
// interval, fitting inside it, missing every busy interval and not starting before notBefore.
func FreeSlots(working, busy []Interval, duration, step time.Duration, notBefore time.Time) []Slot {
	if duration <= 0 || step <= 0 {
		return nil
	}
	slots := make([]Slot, 0)
	for _, w := range working {
		for start := w.Start; !start.Add(duration).After(w.End); start = start.Add(step) {
			if start.Before(notBefore) {
				continue
			}
			slot := Slot{Start: start, End: start.Add(duration)}
			if !overlapsAny(slot, busy) {
				slots = append(slots, slot)
			}
		}
	}
	return slots
}

// fitsSchedule reports whether iv lies inside one working interval and misses every busy one.
func fitsSchedule(iv Interval, working, busy []Interval) (inShift, free bool) {
	for _, w := range working {
		if w.Contains(iv) {
			inShift = true
			break
		}
	}
	return inShift, !overlapsAny(iv, busy)
}

func overlapsAny(iv Interval, others []Interval) bool {
	for _, o := range others {
		if iv.Overlaps(o) {
			return true
		}
	}
	return false
}

func sortIntervals(ivs []Interval) {
	sort.Slice(ivs, func(i, j int) bool {
		if ivs[i].Start.Equal(ivs[j].Start) {
			return ivs[i].End.Before(ivs[j].End)
		}
		return ivs[i].Start.Before(ivs[j].Start)
	})
}
