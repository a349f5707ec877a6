package medication

import (
	"time"
)

// Medication represents a recurring prescription or supplement with a
// dosing schedule and inventory count
type Medication struct {
	ID     int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Name   string `json:"name"`
	Dosage string `json:"dosage"` // e.g., "10mg", "1 tablet"

	// Schedule
	Frequency string   `json:"frequency"` // advisory label, see Frequency* constants
	Times     []string `json:"times" gorm:"-"`
	TimesJSON string   `json:"-" gorm:"column:times;type:text"`

	Instructions string `json:"instructions,omitempty"` // "Take with food", "Before meals", etc.
	Active       bool   `json:"active" gorm:"index;default:true"`

	// Inventory
	PillsRemaining int `json:"pills_remaining"`
	PillsPerDose   int `json:"pills_per_dose" gorm:"default:1"`
	RefillReminder int `json:"refill_reminder" gorm:"default:10"` // alert when this few pills remain

	StartDate time.Time `json:"start_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Frequency labels. These describe the schedule for display; the Times
// list is what actually drives materialization and triggers.
const (
	FrequencyDaily           = "Daily"
	FrequencyTwiceDaily      = "Twice Daily"
	FrequencyThreeTimesDaily = "Three Times Daily"
	FrequencyWeekly          = "Weekly"
	FrequencyAsNeeded        = "As Needed"
)

// TimesList returns the configured reminder times with blank entries removed
func (m *Medication) TimesList() []string {
	out := make([]string, 0, len(m.Times))
	for _, t := range m.Times {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// NeedsRefill reports whether the remaining supply is at or below the
// refill reminder threshold
func (m *Medication) NeedsRefill() bool {
	return m.RefillReminder > 0 && m.PillsRemaining <= m.RefillReminder
}

// DoseStatus is the lifecycle state of a dose occurrence
type DoseStatus string

const (
	StatusPending DoseStatus = "pending"
	StatusTaken   DoseStatus = "taken"
	StatusSkipped DoseStatus = "skipped"
	StatusMissed  DoseStatus = "missed"
)

// Terminal reports whether the status can no longer change by user action
func (s DoseStatus) Terminal() bool {
	return s == StatusTaken || s == StatusSkipped
}

// DoseOccurrence is one concrete "take this medication at this time on
// this date" entry. The medication name is denormalized at creation so
// history survives renames and deletes.
type DoseOccurrence struct {
	ID             int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	MedicationID   int64      `json:"medication_id" gorm:"index;uniqueIndex:idx_dose_slot"`
	MedicationName string     `json:"medication_name"`
	ScheduledAt    time.Time  `json:"scheduled_at" gorm:"uniqueIndex:idx_dose_slot"`
	TakenAt        *time.Time `json:"taken_at,omitempty"`
	Status         DoseStatus `json:"status" gorm:"index;default:pending"`
	Date           string     `json:"date" gorm:"index;uniqueIndex:idx_dose_slot"` // "2024-01-15"
	CreatedAt      time.Time  `json:"created_at"`
}

// DateFormat is the calendar-day key format for ledger rows
const DateFormat = "2006-01-02"

// DailyAggregate is the derived taken/total count for one calendar date
type DailyAggregate struct {
	Date  string `json:"date"`
	Taken int    `json:"taken"`
	Total int    `json:"total"`
}
