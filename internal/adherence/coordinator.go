// Package adherence orchestrates medication writes across the record
// store, the schedule expander, and the reminder trigger manager, and
// exposes the observable read surface the presentation layer consumes.
package adherence

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/gmsas95/dosetrack/internal/errors"
	"github.com/gmsas95/dosetrack/internal/medication"
	"github.com/gmsas95/dosetrack/internal/metrics"
	"github.com/gmsas95/dosetrack/internal/schedule"
)

// TriggerScheduler is the reminder trigger facility the coordinator
// drives. Registration failures are the implementation's problem; the
// coordinator treats them as non-fatal.
type TriggerScheduler interface {
	ScheduleAll(med *medication.Medication) error
	CancelAll(med *medication.Medication)
}

// Coordinator is the only component with side effects across multiple
// collaborators
type Coordinator struct {
	store    *medication.Store
	triggers TriggerScheduler
	bus      *Bus
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	selected *medication.Medication
}

func NewCoordinator(store *medication.Store, triggers TriggerScheduler, bus *Bus, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		triggers: triggers,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock swaps the time source, used by tests
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// Bus returns the change-event bus for subscribers
func (c *Coordinator) Bus() *Bus {
	return c.bus
}

func (c *Coordinator) validate(med *medication.Medication) error {
	if strings.TrimSpace(med.Name) == "" {
		return apperrors.ErrEmptyName
	}
	if strings.TrimSpace(med.Dosage) == "" {
		return apperrors.ErrEmptyDosage
	}
	if med.Active && len(schedule.ExpandTimes(med)) == 0 {
		return apperrors.ErrNoReminderTimes
	}
	return nil
}

// AddMedication persists the draft, materializes today's ledger entries,
// and registers reminder triggers. The three steps are one logical unit
// but completed steps are not rolled back when a later one fails.
func (c *Coordinator) AddMedication(ctx context.Context, med *medication.Medication) error {
	if err := c.validate(med); err != nil {
		return err
	}

	if err := c.store.CreateMedication(med); err != nil {
		return apperrors.Wrap(err, "MED_002", "failed to persist medication")
	}

	created, err := c.store.InsertDoses(schedule.Materialize(med, c.now()))
	if err != nil {
		return apperrors.Wrap(err, "DOSE_003", "failed to materialize ledger entries")
	}
	metrics.Default().DosesMaterialized.Add(float64(created))

	if err := c.triggers.ScheduleAll(med); err != nil {
		c.logger.Warn("Trigger registration failed", zap.Int64("medication_id", med.ID), zap.Error(err))
	}

	c.publishMedications(ctx)
	c.publishLedger(ctx, c.today())

	c.logger.Info("Medication added",
		zap.Int64("id", med.ID),
		zap.String("name", med.Name),
		zap.Int("times", len(med.TimesList())),
	)
	return nil
}

// UpdateMedication cancels triggers for the previously stored version,
// persists the update, then re-registers from the new version. The
// cancel-before-register order avoids a window with two registrations
// for the same slot; historic ledger rows keep their old denormalized
// name.
func (c *Coordinator) UpdateMedication(ctx context.Context, med *medication.Medication) error {
	if err := c.validate(med); err != nil {
		return err
	}

	prev, err := c.store.GetMedication(med.ID)
	if err != nil {
		return apperrors.Wrap(err, "MED_002", "failed to load medication")
	}
	if prev == nil {
		return apperrors.ErrMedicationNotFound
	}

	c.triggers.CancelAll(prev)

	if err := c.store.UpdateMedication(med); err != nil {
		return apperrors.Wrap(err, "MED_002", "failed to persist medication update")
	}

	if med.Active {
		if err := c.triggers.ScheduleAll(med); err != nil {
			c.logger.Warn("Trigger re-registration failed", zap.Int64("medication_id", med.ID), zap.Error(err))
		}
	}

	c.mu.Lock()
	if c.selected != nil && c.selected.ID == med.ID {
		c.selected = med
	}
	c.mu.Unlock()

	c.publishMedications(ctx)

	c.logger.Info("Medication updated", zap.Int64("id", med.ID), zap.String("name", med.Name))
	return nil
}

// DeleteMedication cancels triggers and removes the record. Ledger rows
// keep their non-owning reference so history survives.
func (c *Coordinator) DeleteMedication(ctx context.Context, id int64) error {
	med, err := c.store.GetMedication(id)
	if err != nil {
		return apperrors.Wrap(err, "MED_002", "failed to load medication")
	}
	if med == nil {
		return apperrors.ErrMedicationNotFound
	}

	c.triggers.CancelAll(med)

	if err := c.store.DeleteMedication(id); err != nil {
		return apperrors.Wrap(err, "MED_002", "failed to delete medication")
	}

	c.mu.Lock()
	if c.selected != nil && c.selected.ID == id {
		c.selected = nil
	}
	c.mu.Unlock()

	c.publishMedications(ctx)

	c.logger.Info("Medication deleted", zap.Int64("id", id), zap.String("name", med.Name))
	return nil
}

// MarkDoseTaken transitions a pending occurrence to taken, stamps the
// time, and decrements the owning medication's supply by its
// pills-per-dose, clamped at zero.
func (c *Coordinator) MarkDoseTaken(ctx context.Context, doseID int64) error {
	dose, err := c.store.GetDose(doseID)
	if err != nil {
		return apperrors.Wrap(err, "DOSE_001", "failed to load dose")
	}
	if dose == nil {
		return apperrors.ErrDoseNotFound
	}

	now := c.now()
	ok, err := c.store.MarkDose(doseID, medication.StatusTaken, &now)
	if err != nil {
		return apperrors.Wrap(err, "DOSE_002", "failed to mark dose taken")
	}
	if !ok {
		return apperrors.ErrDoseFinalized
	}

	med, err := c.store.GetMedication(dose.MedicationID)
	if err != nil {
		c.logger.Warn("Failed to load medication for pill decrement",
			zap.Int64("medication_id", dose.MedicationID), zap.Error(err))
	} else if med != nil {
		if err := c.store.DecrementPills(med.ID, med.PillsPerDose); err != nil {
			c.logger.Warn("Failed to decrement pills",
				zap.Int64("medication_id", med.ID), zap.Error(err))
		}
	}

	metrics.Default().DosesTaken.Inc()

	c.publishLedger(ctx, dose.Date)
	c.publishMedications(ctx)
	return nil
}

// MarkDoseSkipped transitions a pending occurrence to skipped; the taken
// timestamp stays null and inventory is untouched.
func (c *Coordinator) MarkDoseSkipped(ctx context.Context, doseID int64) error {
	dose, err := c.store.GetDose(doseID)
	if err != nil {
		return apperrors.Wrap(err, "DOSE_001", "failed to load dose")
	}
	if dose == nil {
		return apperrors.ErrDoseNotFound
	}

	ok, err := c.store.MarkDose(doseID, medication.StatusSkipped, nil)
	if err != nil {
		return apperrors.Wrap(err, "DOSE_002", "failed to mark dose skipped")
	}
	if !ok {
		return apperrors.ErrDoseFinalized
	}

	metrics.Default().DosesSkipped.Inc()

	c.publishLedger(ctx, dose.Date)
	return nil
}

// DailyAggregate counts taken vs. total ledger rows for a calendar date
func (c *Coordinator) DailyAggregate(ctx context.Context, date string) (medication.DailyAggregate, error) {
	taken, err := c.store.TakenCountForDate(date)
	if err != nil {
		return medication.DailyAggregate{}, err
	}
	total, err := c.store.TotalCountForDate(date)
	if err != nil {
		return medication.DailyAggregate{}, err
	}
	return medication.DailyAggregate{Date: date, Taken: int(taken), Total: int(total)}, nil
}

// Medications lists medication records for readers
func (c *Coordinator) Medications(ctx context.Context, activeOnly bool) ([]medication.Medication, error) {
	return c.store.ListMedications(activeOnly)
}

// Medication loads one medication record
func (c *Coordinator) Medication(ctx context.Context, id int64) (*medication.Medication, error) {
	med, err := c.store.GetMedication(id)
	if err != nil {
		return nil, err
	}
	if med == nil {
		return nil, apperrors.ErrMedicationNotFound
	}
	return med, nil
}

// Ledger returns the dose occurrences for a calendar date
func (c *Coordinator) Ledger(ctx context.Context, date string) ([]medication.DoseOccurrence, error) {
	return c.store.DosesForDate(date)
}

// History returns recent occurrences for one medication
func (c *Coordinator) History(ctx context.Context, medicationID int64, limit int) ([]medication.DoseOccurrence, error) {
	if limit <= 0 {
		limit = 30
	}
	return c.store.DosesForMedication(medicationID, limit)
}

// MaterializeDay writes today's ledger entries for every active
// medication, skipping rows that already exist. Returns how many rows
// were created.
func (c *Coordinator) MaterializeDay(ctx context.Context, day time.Time) (int64, error) {
	meds, err := c.store.ListMedications(true)
	if err != nil {
		return 0, err
	}

	var created int64
	for i := range meds {
		n, err := c.store.InsertDoses(schedule.Materialize(&meds[i], day))
		if err != nil {
			return created, err
		}
		created += n
	}

	if created > 0 {
		metrics.Default().DosesMaterialized.Add(float64(created))
		c.publishLedger(ctx, day.Format(medication.DateFormat))
	}
	return created, nil
}

// SweepMissed marks every pending dose scheduled before the cutoff as
// missed. Returns how many rows changed.
func (c *Coordinator) SweepMissed(ctx context.Context, cutoff time.Time) (int64, error) {
	missed, err := c.store.MarkMissedBefore(cutoff)
	if err != nil {
		return 0, err
	}
	if missed > 0 {
		metrics.Default().DosesMissed.Add(float64(missed))
		c.logger.Info("marked overdue doses as missed",
			zap.Int64("count", missed),
			zap.Time("cutoff", cutoff))
		c.publishLedger(ctx, c.today())
	}
	return missed, nil
}

// SelectMedication loads a medication into the selection slot
func (c *Coordinator) SelectMedication(ctx context.Context, id int64) (*medication.Medication, error) {
	med, err := c.store.GetMedication(id)
	if err != nil {
		return nil, err
	}
	if med == nil {
		return nil, apperrors.ErrMedicationNotFound
	}

	c.mu.Lock()
	c.selected = med
	c.mu.Unlock()
	return med, nil
}

// Selected returns the currently selected medication, if any
func (c *Coordinator) Selected() *medication.Medication {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected
}

// ClearSelected empties the selection slot
func (c *Coordinator) ClearSelected() {
	c.mu.Lock()
	c.selected = nil
	c.mu.Unlock()
}

func (c *Coordinator) today() string {
	return c.now().Format(medication.DateFormat)
}

func (c *Coordinator) publishMedications(ctx context.Context) {
	meds, err := c.store.ListMedications(false)
	if err != nil {
		c.logger.Warn("Failed to load medications for publish", zap.Error(err))
		return
	}

	active := 0
	for i := range meds {
		if meds[i].Active {
			active++
		}
	}
	metrics.Default().ActiveMedications.Set(float64(active))

	c.bus.Publish(Event{Topic: TopicMedications, Payload: meds})
}

func (c *Coordinator) publishLedger(ctx context.Context, date string) {
	doses, err := c.store.DosesForDate(date)
	if err != nil {
		c.logger.Warn("Failed to load ledger for publish", zap.String("date", date), zap.Error(err))
		return
	}
	c.bus.Publish(Event{Topic: TopicLedger, Date: date, Payload: doses})

	agg, err := c.DailyAggregate(ctx, date)
	if err != nil {
		c.logger.Warn("Failed to compute aggregate for publish", zap.String("date", date), zap.Error(err))
		return
	}
	c.bus.Publish(Event{Topic: TopicAggregate, Date: date, Payload: agg})
}
