package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoplant/internal/model"
)

func TestParseValidLine(t *testing.T) {
	s, errs, err := Parse(strings.NewReader("30 6 * * * pump 45\n"))
	require.NoError(t, err)
	assert.Empty(t, errs)

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, model.DevicePump, entries[0].Device)
	assert.Equal(t, 45*time.Second, entries[0].Duration)
	assert.Equal(t, "30 6 * * *", entries[0].Spec)
}

func TestParseDefaultDuration(t *testing.T) {
	s, errs, err := Parse(strings.NewReader("0 18 * * * lamp\n"))
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, DefaultDuration, s.Entries()[0].Duration)
}

func TestParseSkipsCommentsAndBlanks(t *testing.T) {
	input := `# water in the morning
30 6 * * * pump 45

# light in the evening
0 18 * * * lamp 3600
`
	s, errs, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Len(t, s.Entries(), 2)
}

func TestParseMalformedLinesDoNotDropValidOnes(t *testing.T) {
	input := `30 6 * * * pump 45
not a cron line
61 6 * * * pump 45
30 6 * * * heater 45
30 6 * * * pump -5
0 18 * * * lamp 3600
`
	s, errs, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, s.Entries(), 2)
	assert.Equal(t, model.DevicePump, s.Entries()[0].Device)
	assert.Equal(t, model.DeviceLamp, s.Entries()[1].Device)

	require.Len(t, errs, 4)
	assert.Equal(t, 2, errs[0].Line)
	assert.Equal(t, 3, errs[1].Line)
	assert.ErrorContains(t, errs[2], "unknown device")
	assert.ErrorContains(t, errs[3], "positive")
}

func TestParseEmptyFileIsAnError(t *testing.T) {
	_, _, err := Parse(strings.NewReader("# only comments\n"))
	assert.Error(t, err)
}

func TestNextGroupsSimultaneousJobs(t *testing.T) {
	input := `30 6 * * * pump 45
30 6 * * * lamp 600
0 18 * * * lamp 3600
`
	s, _, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	now := time.Date(2020, 5, 1, 6, 0, 0, 0, time.UTC)
	next := s.Next(now)
	require.Len(t, next, 2)
	want := time.Date(2020, 5, 1, 6, 30, 0, 0, time.UTC)
	assert.Equal(t, want, next[0].At)
	assert.Equal(t, want, next[1].At)
}

func TestDueWindow(t *testing.T) {
	input := `30 6 * * * pump 45
0 18 * * * lamp 3600
`
	s, _, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	now := time.Date(2020, 5, 1, 6, 29, 30, 0, time.UTC)
	due := s.Due(now, time.Minute)
	require.Len(t, due, 1)
	assert.Equal(t, model.DevicePump, due[0].Entry.Device)

	// nothing within a minute at midday
	assert.Empty(t, s.Due(time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC), time.Minute))
}

func TestEntryNextHonoursCronFields(t *testing.T) {
	s, _, err := Parse(strings.NewReader("15 7 * * 1 pump 30\n"))
	require.NoError(t, err)

	// Friday; next Monday is the 4th
	now := time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)
	next := s.Entries()[0].Next(now)
	assert.Equal(t, time.Date(2020, 5, 4, 7, 15, 0, 0, time.UTC), next)
}
