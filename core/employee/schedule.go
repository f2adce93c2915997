package employee

import (
	"fmt"
	"sort"

	"github.com/trezcool/spadesk/core"
)

var (
	errShiftOrder   = "shift must end after it starts"
	errShiftOverlap = "shift overlaps another shift of the same day"
)

// checkShifts rejects inverted shifts and shifts overlapping on the same weekday.
func checkShifts(shifts []Shift) error {
	var fldErrs []core.FieldError
	for i, s := range shifts {
		if s.StartMinute() >= s.EndMinute() {
			fldErrs = append(fldErrs, core.FieldError{Field: fmt.Sprintf("shifts[%d].end", i), Error: errShiftOrder})
		}
	}
	if len(fldErrs) > 0 {
		return core.NewValidationError(nil, fldErrs...)
	}

	idx := make([]int, len(shifts))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		sa, sb := shifts[idx[a]], shifts[idx[b]]
		if sa.Weekday != sb.Weekday {
			return sa.Weekday < sb.Weekday
		}
		return sa.StartMinute() < sb.StartMinute()
	})
	for n := 1; n < len(idx); n++ {
		prev, curr := shifts[idx[n-1]], shifts[idx[n]]
		if prev.Weekday == curr.Weekday && curr.StartMinute() < prev.EndMinute() {
			fldErrs = append(fldErrs, core.FieldError{Field: fmt.Sprintf("shifts[%d]", idx[n]), Error: errShiftOverlap})
		}
	}
	if len(fldErrs) > 0 {
		return core.NewValidationError(nil, fldErrs...)
	}
	return nil
}

// SortShifts orders shifts by weekday then start time.
func SortShifts(shifts []Shift) {
	sort.SliceStable(shifts, func(i, j int) bool {
		if shifts[i].Weekday != shifts[j].Weekday {
			return shifts[i].Weekday < shifts[j].Weekday
		}
		return shifts[i].StartMinute() < shifts[j].StartMinute()
	})
}
