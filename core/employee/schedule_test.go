package employee

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/spadesk/core"
)

func TestClockMinutes(t *testing.T) {
	tests := []struct {
		clock string
		want  int
	}{
		{"00:00", 0},
		{"09:30", 570},
		{"23:59", 1439},
		{"24:00", 1440},
		{"24:01", -1},
		{"9h30", -1},
		{"", -1},
		{"10:75", -1},
	}
	for _, tt := range tests {
		t.Run(tt.clock, func(t *testing.T) {
			assert.Equal(t, tt.want, ClockMinutes(tt.clock))
		})
	}
	assert.Equal(t, "09:30", MinutesClock(570))
	assert.Equal(t, "24:00", MinutesClock(1440))
}

func Test_checkShifts(t *testing.T) {
	tests := []struct {
		name    string
		shifts  []Shift
		wantErr map[string]string
	}{
		{
			name:   "empty schedule",
			shifts: []Shift{},
		},
		{
			name: "split day",
			shifts: []Shift{
				{Weekday: time.Monday, Start: "13:00", End: "18:00"},
				{Weekday: time.Monday, Start: "09:00", End: "12:00"},
				{Weekday: time.Tuesday, Start: "09:00", End: "18:00"},
			},
		},
		{
			name: "back to back",
			shifts: []Shift{
				{Weekday: time.Friday, Start: "09:00", End: "12:00"},
				{Weekday: time.Friday, Start: "12:00", End: "16:00"},
			},
		},
		{
			name:    "inverted",
			shifts:  []Shift{{Weekday: time.Sunday, Start: "12:00", End: "09:00"}},
			wantErr: map[string]string{"shifts[0].end": errShiftOrder},
		},
		{
			name:    "empty interval",
			shifts:  []Shift{{Weekday: time.Sunday, Start: "12:00", End: "12:00"}},
			wantErr: map[string]string{"shifts[0].end": errShiftOrder},
		},
		{
			name: "overlap",
			shifts: []Shift{
				{Weekday: time.Wednesday, Start: "11:00", End: "15:00"},
				{Weekday: time.Wednesday, Start: "09:00", End: "12:00"},
			},
			wantErr: map[string]string{"shifts[0]": errShiftOverlap},
		},
		{
			name: "same hours on different days",
			shifts: []Shift{
				{Weekday: time.Wednesday, Start: "09:00", End: "12:00"},
				{Weekday: time.Thursday, Start: "09:00", End: "12:00"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkShifts(tt.shifts)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			var vErr *core.ValidationError
			require.ErrorAs(t, err, &vErr)
			got := make(map[string]string)
			for _, f := range vErr.Fields {
				got[f.Field] = f.Error
			}
			assert.Equal(t, tt.wantErr, got)
		})
	}
}

func TestEmployee_Performs(t *testing.T) {
	assert.True(t, Employee{}.Performs("any"))

	emp := Employee{TreatmentIDs: []string{"a", "b"}}
	assert.True(t, emp.Performs("b"))
	assert.False(t, emp.Performs("c"))
}

func Test_uniqueStrings(t *testing.T) {
	assert.Nil(t, uniqueStrings(nil))
	assert.Equal(t, []string{"a", "b"}, uniqueStrings([]string{" a", "b", "a ", ""}))
}
