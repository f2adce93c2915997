package quotation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuotation_RefreshStatus(t *testing.T) {
	validUntil := time.Date(2026, 5, 31, 23, 59, 59, 0, time.UTC)
	before := validUntil.Add(-time.Hour)
	after := validUntil.Add(time.Second)

	tests := []struct {
		status Status
		now    time.Time
		want   Status
	}{
		{StatusDraft, before, StatusDraft},
		{StatusDraft, after, StatusExpired},
		{StatusSent, validUntil, StatusSent},
		{StatusSent, after, StatusExpired},
		{StatusAccepted, after, StatusAccepted},
		{StatusRejected, after, StatusRejected},
		{StatusInvoiced, after, StatusInvoiced},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			q := Quotation{Status: tt.status, ValidUntil: validUntil}
			q.RefreshStatus(tt.now)
			assert.Equal(t, tt.want, q.Status)
		})
	}
}

func TestQueryFilter_Clean(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	qf := QueryFilter{Search: " Q-0001 ", Status: StatusExpired}
	qf.Clean(now)
	assert.Equal(t, "Q-0001", qf.Search)
	assert.Equal(t, []Status{StatusDraft, StatusSent}, qf.Statuses)
	assert.Equal(t, now, qf.ValidBefore)
	assert.True(t, qf.ValidAfter.IsZero())

	qf = QueryFilter{Status: StatusSent}
	qf.Clean(now)
	assert.Equal(t, []Status{StatusSent}, qf.Statuses)
	assert.Equal(t, now, qf.ValidAfter)

	qf = QueryFilter{Status: StatusInvoiced}
	qf.Clean(now)
	assert.Equal(t, []Status{StatusInvoiced}, qf.Statuses)
	assert.True(t, qf.ValidAfter.IsZero())

	qf = QueryFilter{}
	qf.Clean(now)
	assert.Nil(t, qf.Statuses)
}
