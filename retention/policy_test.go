package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testPolicy(t *testing.T, duration time.Duration) *Policy {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return NewPolicy(duration, loc)
}

func TestIsExpired(t *testing.T) {
	p := testPolicy(t, 15*time.Minute)
	uploaded := time.Date(2025, 6, 25, 12, 0, 0, 0, p.Location)
	stamp := p.FormatTime(uploaded)

	tests := []struct {
		name    string
		now     time.Time
		expired bool
	}{
		{"well before deadline", uploaded.Add(5 * time.Minute), false},
		{"one second before deadline", uploaded.Add(15*time.Minute - time.Second), false},
		{"exactly at deadline is not expired", uploaded.Add(15 * time.Minute), false},
		{"one second past deadline", uploaded.Add(15*time.Minute + time.Second), true},
		{"long past deadline", uploaded.Add(24 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expired, p.IsExpired(stamp, tt.now))
		})
	}
}

func TestIsExpired_UnparseableFailsClosed(t *testing.T) {
	p := testPolicy(t, time.Minute)
	farFuture := time.Date(2100, 1, 1, 0, 0, 0, 0, p.Location)

	for _, stamp := range []string{
		"",
		"not a timestamp",
		"2025-06-25",                // date only
		"2025-06-25T12:00:00Z",      // RFC 3339, wrong layout
		"2025-06-25 12:00:00",       // seconds not part of the contract
		"25-06-2025 12:00",          // wrong field order
	} {
		require.False(t, p.IsExpired(stamp, farFuture), "stamp %q must never expire", stamp)
	}
}

func TestDeleteDeadline(t *testing.T) {
	p := testPolicy(t, 7*24*time.Hour)

	deadline, err := p.DeleteDeadline("2025-06-25 12:00")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 7, 2, 12, 0, 0, 0, p.Location), deadline)

	_, err = p.DeleteDeadline("garbage")
	require.Error(t, err)
}

func TestDeadlineIsZoneIndependent(t *testing.T) {
	p := testPolicy(t, time.Hour)

	// The same wire timestamp must yield the same instant no matter where
	// the process runs; only the configured zone matters.
	deadline, err := p.DeleteDeadline("2025-06-25 12:00")
	require.NoError(t, err)
	require.Equal(t, deadline.UTC(), deadline.In(time.FixedZone("anywhere", -7*3600)).UTC())
}

func TestFormatRoundTrip(t *testing.T) {
	p := testPolicy(t, time.Minute)
	now := time.Date(2025, 6, 25, 23, 59, 0, 0, p.Location)

	stamp := p.FormatTime(now)
	require.Equal(t, "2025-06-25 23:59", stamp)

	parsed, err := p.ParseTimestamp(stamp)
	require.NoError(t, err)
	require.True(t, parsed.Equal(now))

	require.Equal(t, "2025-06-25", p.FormatDate(now))
}

func TestNewPolicy_NilLocationDefaultsToUTC(t *testing.T) {
	p := NewPolicy(time.Minute, nil)
	require.Equal(t, time.UTC, p.Location)
}
