// Package reminder maintains the 1:1 mapping from (medication, time
// slot) pairs to recurring daily wake-up registrations.
package reminder

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gmsas95/dosetrack/internal/medication"
	"github.com/gmsas95/dosetrack/internal/metrics"
	"github.com/gmsas95/dosetrack/internal/notify"
	"github.com/gmsas95/dosetrack/internal/schedule"
)

// TriggerKey derives the stable composite key for a medication time slot.
// Slot indexes are capped well below 100 in practice, so the key stays
// unique and survives restarts.
func TriggerKey(medicationID int64, slotIndex int) int64 {
	return medicationID*100 + int64(slotIndex)
}

// Manager owns the cron registrations for all medications
type Manager struct {
	cron       *cron.Cron
	registry   *Registry
	dispatcher *notify.Dispatcher
	logger     *zap.Logger

	mu      sync.Mutex
	entries map[int64]cron.EntryID
}

func NewManager(registry *Registry, dispatcher *notify.Dispatcher, logger *zap.Logger) *Manager {
	return &Manager{
		cron:       cron.New(),
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger,
		entries:    make(map[int64]cron.EntryID),
	}
}

// Start begins firing registered triggers
func (m *Manager) Start() {
	m.cron.Start()
}

// Stop halts the cron scheduler and waits for in-flight jobs
func (m *Manager) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

// ScheduleAll registers a daily trigger for each valid time slot of the
// medication. Re-registering replaces any prior registrations for the
// medication. A slot whose wall-clock time has already passed today
// first fires tomorrow; cron's day boundary handles that.
func (m *Manager) ScheduleAll(med *medication.Medication) error {
	m.CancelAll(med)

	slots := schedule.ExpandTimes(med)
	if len(slots) == 0 {
		return nil
	}

	payloadBase := notify.Reminder{
		Kind:         notify.KindDose,
		MedicationID: med.ID,
		Name:         med.Name,
		Dosage:       med.Dosage,
		Instructions: med.Instructions,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]int64, 0, len(slots))
	for _, slot := range slots {
		key := TriggerKey(med.ID, slot.Index)
		spec := fmt.Sprintf("%d %d * * *", slot.Minute, slot.Hour)

		payload := payloadBase
		entryID, err := m.cron.AddFunc(spec, func() {
			m.fire(payload)
		})
		if err != nil {
			// Registration denial is not fatal; the dose ledger keeps
			// working without the live reminder.
			m.logger.Warn("Trigger registration failed",
				zap.Int64("medication_id", med.ID),
				zap.Int64("key", key),
				zap.String("spec", spec),
				zap.Error(err),
			)
			continue
		}

		m.entries[key] = entryID
		keys = append(keys, key)
	}

	if err := m.registry.Put(med.ID, keys); err != nil {
		m.logger.Warn("Failed to persist trigger registrations",
			zap.Int64("medication_id", med.ID),
			zap.Error(err),
		)
	}

	metrics.Default().TriggerRegistrations.Set(float64(len(m.entries)))

	m.logger.Info("Scheduled reminder triggers",
		zap.Int64("medication_id", med.ID),
		zap.Int("slots", len(keys)),
	)
	return nil
}

// CancelAll removes every registration recorded for the medication. It
// prefers the registry's record of the previously scheduled shape over
// the medication's current time list, so slots removed by an edit are
// still cancelled.
func (m *Manager) CancelAll(med *medication.Medication) {
	keys, err := m.registry.Get(med.ID)
	if err != nil {
		m.logger.Warn("Failed to read trigger registrations",
			zap.Int64("medication_id", med.ID),
			zap.Error(err),
		)
	}
	if len(keys) == 0 {
		// No record: fall back to keys derived from the current list
		for _, slot := range schedule.ExpandTimes(med) {
			keys = append(keys, TriggerKey(med.ID, slot.Index))
		}
	}

	m.mu.Lock()
	for _, key := range keys {
		if entryID, ok := m.entries[key]; ok {
			m.cron.Remove(entryID)
			delete(m.entries, key)
		}
	}
	registered := len(m.entries)
	m.mu.Unlock()

	if err := m.registry.Delete(med.ID); err != nil {
		m.logger.Warn("Failed to clear trigger registrations",
			zap.Int64("medication_id", med.ID),
			zap.Error(err),
		)
	}

	metrics.Default().TriggerRegistrations.Set(float64(registered))
}

// RescheduleAll re-registers triggers for every active medication, used
// at startup since registrations do not survive the process.
func (m *Manager) RescheduleAll(meds []medication.Medication) {
	for i := range meds {
		if !meds[i].Active {
			continue
		}
		if err := m.ScheduleAll(&meds[i]); err != nil {
			m.logger.Warn("Failed to reschedule triggers",
				zap.Int64("medication_id", meds[i].ID),
				zap.Error(err),
			)
		}
	}
}

// ActiveCount returns the number of live registrations
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Manager) fire(r notify.Reminder) {
	metrics.Default().RemindersFired.Inc()

	delivered := m.dispatcher.Dispatch(context.Background(), r)
	if delivered == 0 {
		metrics.Default().DeliveryFailures.Inc()
		return
	}
	metrics.Default().RemindersDelivered.Add(float64(delivered))
}
