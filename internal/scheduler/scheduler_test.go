package scheduler_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/model"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/scheduler"
)

func assertConsistent(t *testing.T, slots []model.Slot) {
	t.Helper()
	for i, s := range slots {
		if s.Booked {
			assert.NotEmpty(t, s.DonorID, "booked slot %d has no donor", i)
		} else {
			assert.Empty(t, s.DonorID, "free slot %d carries donor", i)
		}
	}
}

func TestGenerateSlots_Count(t *testing.T) {
	cases := []struct {
		start, end         string
		interval, capacity int
		want               int
	}{
		{"09:00", "10:00", 30, 2, 4},
		{"09:00", "17:00", 15, 5, 160},
		{"09:00", "10:10", 30, 3, 6},
		{"09:00", "09:20", 30, 4, 0},
		{"00:00", "23:59", 60, 1, 23},
	}
	for _, tc := range cases {
		slots, err := scheduler.GenerateSlots(tc.start, tc.end, tc.interval, tc.capacity)
		require.NoError(t, err)
		assert.Len(t, slots, tc.want, "%s-%s/%d x%d", tc.start, tc.end, tc.interval, tc.capacity)
		for _, s := range slots {
			assert.False(t, s.Booked)
			assert.Empty(t, s.DonorID)
		}
	}
}

func TestGenerateSlots_Ordering(t *testing.T) {
	slots, err := scheduler.GenerateSlots("09:00", "10:00", 30, 2)
	require.NoError(t, err)
	want := []model.Slot{
		{Start: "09:00", End: "09:30"},
		{Start: "09:00", End: "09:30"},
		{Start: "09:30", End: "10:00"},
		{Start: "09:30", End: "10:00"},
	}
	assert.Equal(t, want, slots)
}

func TestGenerateSlots_PartialTrailingIntervalDropped(t *testing.T) {
	slots, err := scheduler.GenerateSlots("09:00", "10:45", 30, 1)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, "10:30", slots[2].End)
}

func TestGenerateSlots_Invalid(t *testing.T) {
	cases := []struct {
		name               string
		start, end         string
		interval, capacity int
	}{
		{"zero interval", "09:00", "10:00", 0, 1},
		{"negative interval", "09:00", "10:00", -15, 1},
		{"zero capacity", "09:00", "10:00", 15, 0},
		{"negative capacity", "09:00", "10:00", 15, -2},
		{"equal times", "10:00", "10:00", 15, 1},
		{"reversed times", "11:00", "10:00", 15, 1},
		{"bad start", "9am", "10:00", 15, 1},
		{"bad end", "09:00", "25:00", 15, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := scheduler.GenerateSlots(tc.start, tc.end, tc.interval, tc.capacity)
			assert.ErrorIs(t, err, scheduler.ErrInvalidConfiguration)
		})
	}
}

func TestClaim_Scenario(t *testing.T) {
	slots, err := scheduler.GenerateSlots("09:00", "10:00", 30, 2)
	require.NoError(t, err)

	for i, donor := range []string{"d1", "d2", "d3", "d4"} {
		idx, err := scheduler.Claim(slots, donor)
		require.NoError(t, err)
		assert.Equal(t, i, idx)
		assert.Equal(t, donor, slots[idx].DonorID)
		assertConsistent(t, slots)
	}
	assert.Equal(t, "09:00", slots[1].Start)
	assert.Equal(t, "09:30", slots[2].Start)

	_, err = scheduler.Claim(slots, "d5")
	assert.ErrorIs(t, err, scheduler.ErrNoSlotsAvailable)

	require.True(t, scheduler.Release(slots, "09:00", "09:30", "d1"))
	idx, err := scheduler.Claim(slots, "d6")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "09:00", slots[idx].Start)
}

func TestClaimRelease_RoundTrip(t *testing.T) {
	slots, err := scheduler.GenerateSlots("08:00", "12:00", 20, 3)
	require.NoError(t, err)
	_, err = scheduler.Claim(slots, "a")
	require.NoError(t, err)
	before := append([]model.Slot(nil), slots...)

	idx, err := scheduler.Claim(slots, "b")
	require.NoError(t, err)
	require.True(t, scheduler.Release(slots, slots[idx].Start, slots[idx].End, "b"))
	assert.Equal(t, before, slots)
}

func TestRelease_Idempotent(t *testing.T) {
	slots, err := scheduler.GenerateSlots("09:00", "10:00", 30, 2)
	require.NoError(t, err)
	_, _ = scheduler.Claim(slots, "a")
	_, _ = scheduler.Claim(slots, "b")

	require.True(t, scheduler.Release(slots, "09:00", "09:30", "a"))
	snapshot := append([]model.Slot(nil), slots...)
	assert.False(t, scheduler.Release(slots, "09:00", "09:30", "a"))
	assert.Equal(t, snapshot, slots)
	assert.Equal(t, "b", slots[1].DonorID)
}

func TestRelease_MatchesDonor(t *testing.T) {
	slots, err := scheduler.GenerateSlots("09:00", "09:30", 30, 2)
	require.NoError(t, err)
	_, _ = scheduler.Claim(slots, "a")
	_, _ = scheduler.Claim(slots, "b")

	require.True(t, scheduler.Release(slots, "09:00", "09:30", "b"))
	assert.True(t, slots[0].Booked)
	assert.Equal(t, "a", slots[0].DonorID)
	assert.False(t, slots[1].Booked)
}

func TestExhaustion(t *testing.T) {
	slots, err := scheduler.GenerateSlots("07:00", "19:00", 45, 4)
	require.NoError(t, err)
	for i := range slots {
		_, err := scheduler.Claim(slots, "donor-"+strconv.Itoa(i))
		require.NoError(t, err)
	}
	_, err = scheduler.Claim(slots, "late")
	assert.ErrorIs(t, err, scheduler.ErrNoSlotsAvailable)
	assertConsistent(t, slots)

	total, booked := scheduler.Counts(slots)
	assert.Equal(t, total, booked)
}

func TestNewToken(t *testing.T) {
	for i := 0; i < 200; i++ {
		tok, err := scheduler.NewToken()
		require.NoError(t, err)
		require.Len(t, tok, 6)
		n, err := strconv.Atoi(tok)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestParseFormatClock(t *testing.T) {
	m, err := scheduler.ParseClock("13:05")
	require.NoError(t, err)
	assert.Equal(t, 785, m)
	assert.Equal(t, "13:05", scheduler.FormatClock(m))
	assert.Equal(t, "00:00", scheduler.FormatClock(0))
}

func TestNormalizeClock(t *testing.T) {
	for in, want := range map[string]string{"9:00": "09:00", "09:05": "09:05", "23:59": "23:59", "0:30": "00:30"} {
		got, err := scheduler.NormalizeClock(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := scheduler.NormalizeClock("24:00")
	assert.ErrorIs(t, err, scheduler.ErrInvalidConfiguration)
}
