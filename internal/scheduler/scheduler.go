// Package scheduler generates bookable slots for a camp and applies
// claim/release transitions to them.
//
// Everything here is pure: callers own persistence and serialization.
package scheduler

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/model"
)

// ErrInvalidConfiguration is returned for malformed camp parameters.
var ErrInvalidConfiguration = errors.New("invalid camp configuration")

// ErrNoSlotsAvailable is returned when every slot of a camp is booked.
var ErrNoSlotsAvailable = errors.New("no slots available")

const clockLayout = "15:04"

// ParseClock converts an HH:MM wall-clock string to minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidConfiguration, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock converts minutes since midnight back to HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeClock returns s in zero-padded HH:MM form, so "9:00" becomes
// "09:00". Stored times compare and sort as strings.
func NormalizeClock(s string) (string, error) {
	m, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return FormatClock(m), nil
}

// GenerateSlots returns the ordered slots for the window [startTime, endTime).
// Each whole interval yields capacity identical unbooked slots; a trailing
// partial interval is dropped. The result is empty, not an error, when no
// whole interval fits.
func GenerateSlots(startTime, endTime string, intervalMinutes, capacity int) ([]model.Slot, error) {
	if intervalMinutes <= 0 {
		return nil, fmt.Errorf("%w: slot interval must be positive", ErrInvalidConfiguration)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: slot capacity must be positive", ErrInvalidConfiguration)
	}
	start, err := ParseClock(startTime)
	if err != nil {
		return nil, err
	}
	end, err := ParseClock(endTime)
	if err != nil {
		return nil, err
	}
	if end <= start {
		return nil, fmt.Errorf("%w: end time must be after start time", ErrInvalidConfiguration)
	}

	periods := (end - start) / intervalMinutes
	slots := make([]model.Slot, 0, periods*capacity)
	for cursor := start; cursor+intervalMinutes <= end; cursor += intervalMinutes {
		from, to := FormatClock(cursor), FormatClock(cursor+intervalMinutes)
		for i := 0; i < capacity; i++ {
			slots = append(slots, model.Slot{Start: from, End: to})
		}
	}
	return slots, nil
}

// Claim books the first free slot for donorID in place and returns its index.
func Claim(slots []model.Slot, donorID string) (int, error) {
	for i := range slots {
		if !slots[i].Booked {
			slots[i].Booked = true
			slots[i].DonorID = donorID
			return i, nil
		}
	}
	return -1, ErrNoSlotsAvailable
}

// Release frees the booked slot matching (start, end, donorID) in place.
// It returns false when nothing matches, which callers treat as a no-op.
func Release(slots []model.Slot, start, end, donorID string) bool {
	i := FindBooked(slots, start, end, donorID)
	if i < 0 {
		return false
	}
	slots[i].Booked = false
	slots[i].DonorID = ""
	return true
}

// FindBooked returns the index of the booked slot matching (start, end,
// donorID), or -1.
func FindBooked(slots []model.Slot, start, end, donorID string) int {
	for i, s := range slots {
		if s.Booked && s.Start == start && s.End == end && s.DonorID == donorID {
			return i
		}
	}
	return -1
}

// Counts returns the total and booked slot counts.
func Counts(slots []model.Slot) (total, booked int) {
	for _, s := range slots {
		if s.Booked {
			booked++
		}
	}
	return len(slots), booked
}

var tokenSpan = big.NewInt(900000)

// NewToken returns a uniform random six-digit display code in [100000, 999999].
// Tokens are not unique.
func NewToken() (string, error) {
	n, err := rand.Int(rand.Reader, tokenSpan)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
