// Package schedule turns a medication's wall-clock time list into
// concrete instants and draft ledger entries. Everything here is pure;
// persistence and trigger registration live elsewhere.
package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/gmsas95/dosetrack/internal/medication"
)

// ParseTimeOfDay parses an "HH:MM" token on a 24-hour clock. Tokens with
// the wrong part count, non-numeric parts, or out-of-range values are
// rejected.
func ParseTimeOfDay(token string) (hour, minute int, ok bool) {
	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}

	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// Slot is one valid reminder time with its position in the medication's
// time list. The index is part of the trigger key, so slots keep the
// positions of the original list even when malformed tokens are dropped.
type Slot struct {
	Index  int
	Hour   int
	Minute int
}

// ExpandTimes returns the medication's valid reminder times in list
// order. Malformed tokens are dropped silently.
func ExpandTimes(med *medication.Medication) []Slot {
	times := med.TimesList()
	slots := make([]Slot, 0, len(times))
	for i, token := range times {
		h, m, ok := ParseTimeOfDay(token)
		if !ok {
			continue
		}
		slots = append(slots, Slot{Index: i, Hour: h, Minute: m})
	}
	return slots
}

// At returns the instant for the given calendar day at the wall-clock
// hour and minute, seconds and sub-seconds zeroed, in local time.
func At(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

// Materialize emits draft pending occurrences for the medication on the
// given calendar day, one per valid reminder time. Drafts carry the
// denormalized medication name. Idempotence across repeated calls is the
// ledger's job (unique slot index), not this function's.
func Materialize(med *medication.Medication, day time.Time) []medication.DoseOccurrence {
	date := day.Format(medication.DateFormat)
	slots := ExpandTimes(med)

	drafts := make([]medication.DoseOccurrence, 0, len(slots))
	for _, slot := range slots {
		drafts = append(drafts, medication.DoseOccurrence{
			MedicationID:   med.ID,
			MedicationName: med.Name,
			ScheduledAt:    At(day, slot.Hour, slot.Minute),
			Status:         medication.StatusPending,
			Date:           date,
		})
	}
	return drafts
}
