package draw

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sgt(t *testing.T) *time.Location {
	t.Helper()
	loc, err := LoadLocation("")
	require.NoError(t, err)
	return loc
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Mon, 01 Jan 2024, 6:30pm", "Mon, 01 Jan 2024, 6:30pm"},
		{"Mon, 01 Jan 2024 , 6.30pm", "Mon, 01 Jan 2024, 6:30pm"},
		{"  Thu ,  15 Feb 2024 ,  9.30 PM ", "Thu, 15 Feb 2024, 9:30pm"},
		{"Mon, 01 Jan 2024, 6.30p.m.", "Mon, 01 Jan 2024, 6:30pm"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonical(tt.in))
		})
	}
}

func TestParseDrawTime(t *testing.T) {
	loc := sgt(t)
	want := time.Date(2024, time.January, 1, 18, 30, 0, 0, loc)

	for _, in := range []string{
		"Mon, 01 Jan 2024, 6:30pm",
		"Mon, 1 Jan 2024, 6.30pm",
		"Mon, 01 Jan 2024 , 6.30pm",
		"Monday, 1 January 2024, 6:30 PM",
		"Mon, 01 Jan 2024 6:30pm",
	} {
		got, err := ParseDrawTime(in, loc)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s: got %v", in, got)
	}
}

func TestParseDrawTimeUsesOperatingZone(t *testing.T) {
	got, err := ParseDrawTime("Mon, 01 Jan 2024, 6:30pm", sgt(t))
	require.NoError(t, err)
	// 18:30 in Singapore is 10:30 UTC.
	assert.Equal(t, time.Date(2024, time.January, 1, 10, 30, 0, 0, time.UTC), got.UTC())
}

func TestIsStale(t *testing.T) {
	loc := sgt(t)
	draw := time.Date(2024, time.January, 1, 18, 30, 0, 0, loc)
	const text = "Mon, 01 Jan 2024, 6:30pm"

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"well before", draw.Add(-72 * time.Hour), false},
		{"one minute before", draw.Add(-time.Minute), false},
		{"exactly at draw", draw, false},
		{"one second after", draw.Add(time.Second), true},
		{"days after", draw.Add(96 * time.Hour), true},
		{"now given in UTC", draw.UTC().Add(-time.Minute), false},
		{"now in another zone after draw", draw.In(time.FixedZone("X", -5*3600)).Add(time.Minute), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStale(text, tt.now, loc))
		})
	}
}

func TestIsStaleMalformedIsStale(t *testing.T) {
	loc := sgt(t)
	farPast := time.Date(2000, 1, 1, 0, 0, 0, 0, loc)
	for _, in := range []string{
		"",
		"   ",
		"soon",
		"Mon, 32 Jan 2024, 6:30pm",
		"Mon, 01 Foo 2024, 6:30pm",
		"2024-01-01T18:30:00+08:00",
		"Mon, 01 Jan 2024, 13:30pm",
	} {
		assert.True(t, IsStale(in, farPast, loc), "%q should be stale", in)
	}
}

func TestStateValid(t *testing.T) {
	assert.True(t, State{Jackpot: "$1,000,000", DrawAt: "Mon, 01 Jan 2024, 6:30pm"}.Valid())
	assert.False(t, State{Jackpot: "$1,000,000"}.Valid())
	assert.False(t, State{DrawAt: "Mon, 01 Jan 2024, 6:30pm"}.Valid())
	assert.False(t, State{Jackpot: " ", DrawAt: " "}.Valid())
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "memory", TierMemory.String())
	assert.Equal(t, "store", TierStore.String())
	assert.Equal(t, "live", TierLive.String())
	assert.Equal(t, "none", TierNone.String())
}
