package api

import (
	"time"

	"github.com/gmsas95/dosetrack/internal/medication"
)

// medicationRequest is the create/update payload for a medication
type medicationRequest struct {
	Name           string   `json:"name"`
	Dosage         string   `json:"dosage"`
	Frequency      string   `json:"frequency"`
	Times          []string `json:"times"`
	Instructions   string   `json:"instructions"`
	Active         *bool    `json:"active"`
	PillsRemaining int      `json:"pills_remaining"`
	PillsPerDose   int      `json:"pills_per_dose"`
	RefillReminder int      `json:"refill_reminder"`
	StartDate      string   `json:"start_date"` // YYYY-MM-DD, defaults to today
}

func (r medicationRequest) toMedication() *medication.Medication {
	med := &medication.Medication{
		Name:           r.Name,
		Dosage:         r.Dosage,
		Frequency:      r.Frequency,
		Times:          r.Times,
		Instructions:   r.Instructions,
		Active:         true,
		PillsRemaining: r.PillsRemaining,
		PillsPerDose:   r.PillsPerDose,
		RefillReminder: r.RefillReminder,
	}
	if r.Active != nil {
		med.Active = *r.Active
	}
	if r.StartDate != "" {
		if start, err := time.Parse(medication.DateFormat, r.StartDate); err == nil {
			med.StartDate = start
		}
	}
	return med
}
