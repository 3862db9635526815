package timespec

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	tests := []struct {
		name string
		spec string
		loc  *time.Location
		want time.Time
	}{
		{"duration", "1h30m", time.UTC, now.Add(-90 * time.Minute)},
		{"days", "7d", time.UTC, now.AddDate(0, 0, -7)},
		{"rfc3339", "2025-03-01T12:00:00Z", time.UTC, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"date in utc", "2025-03-01", time.UTC, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"date in ist", "2025-03-01", ist, time.Date(2025, 2, 28, 18, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.spec, now, tt.loc)
			require.NoError(t, err)
			assert.Equal(t, tt.want.UnixMilli(), got)
		})
	}

	for _, bad := range []string{"", "yesterday", "-d", "2025-13-01"} {
		_, err := Parse(bad, now, time.UTC)
		assert.Error(t, err, "spec %q", bad)
	}
}

func TestParseRange(t *testing.T) {
	since, until, err := ParseRange("2d", "1h", now, time.UTC)
	require.NoError(t, err)
	assert.Less(t, since, until)

	since, until, err = ParseRange("", "", now, time.UTC)
	require.NoError(t, err)
	assert.Zero(t, since)
	assert.Zero(t, until)

	_, _, err = ParseRange("1h", "2d", now, time.UTC)
	assert.ErrorContains(t, err, "--since must be before --until")

	_, _, err = ParseRange("bogus", "", now, time.UTC)
	assert.ErrorContains(t, err, "invalid --since")
}
