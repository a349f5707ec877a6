package adherence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/gmsas95/dosetrack/internal/errors"
	"github.com/gmsas95/dosetrack/internal/medication"
)

// fakeTriggers records trigger calls in order so tests can assert the
// cancel-before-register invariant
type fakeTriggers struct {
	calls []string
}

func (f *fakeTriggers) ScheduleAll(med *medication.Medication) error {
	f.calls = append(f.calls, fmt.Sprintf("schedule:%d:%d", med.ID, len(med.TimesList())))
	return nil
}

func (f *fakeTriggers) CancelAll(med *medication.Medication) {
	f.calls = append(f.calls, fmt.Sprintf("cancel:%d:%d", med.ID, len(med.TimesList())))
}

func setupCoordinator(t *testing.T) (*Coordinator, *medication.Store, *fakeTriggers) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	store, err := medication.NewStore(db)
	require.NoError(t, err)

	triggers := &fakeTriggers{}
	coord := NewCoordinator(store, triggers, NewBus(), zap.NewNop())
	return coord, store, triggers
}

func TestAddMedicationValidation(t *testing.T) {
	coord, _, _ := setupCoordinator(t)
	ctx := context.Background()

	err := coord.AddMedication(ctx, &medication.Medication{
		Dosage: "10mg", Times: []string{"08:00"}, Active: true,
	})
	assert.ErrorIs(t, err, apperrors.ErrEmptyName)

	err = coord.AddMedication(ctx, &medication.Medication{
		Name: "Lisinopril", Times: []string{"08:00"}, Active: true,
	})
	assert.ErrorIs(t, err, apperrors.ErrEmptyDosage)

	err = coord.AddMedication(ctx, &medication.Medication{
		Name: "Lisinopril", Dosage: "10mg", Times: []string{"8", "banana"}, Active: true,
	})
	assert.ErrorIs(t, err, apperrors.ErrNoReminderTimes)
}

func TestAddMedicationMaterializesAndSchedules(t *testing.T) {
	coord, store, triggers := setupCoordinator(t)
	ctx := context.Background()

	med := &medication.Medication{
		Name:           "Lisinopril",
		Dosage:         "10mg",
		Frequency:      medication.FrequencyThreeTimesDaily,
		Times:          []string{"08:00", "14:00", "20:00"},
		Active:         true,
		PillsRemaining: 90,
	}
	require.NoError(t, coord.AddMedication(ctx, med))
	require.NotZero(t, med.ID)

	today := time.Now().Format(medication.DateFormat)
	doses, err := store.DosesForDate(today)
	require.NoError(t, err)
	assert.Len(t, doses, 3)
	for _, d := range doses {
		assert.Equal(t, medication.StatusPending, d.Status)
		assert.Equal(t, "Lisinopril", d.MedicationName)
	}

	assert.Equal(t, []string{fmt.Sprintf("schedule:%d:3", med.ID)}, triggers.calls)
}

func TestAddMedicationSkipsMalformedTimes(t *testing.T) {
	coord, store, _ := setupCoordinator(t)
	ctx := context.Background()

	med := &medication.Medication{
		Name: "Aspirin", Dosage: "81mg",
		Times:  []string{"8", "09:15"},
		Active: true,
	}
	require.NoError(t, coord.AddMedication(ctx, med))

	today := time.Now().Format(medication.DateFormat)
	doses, err := store.DosesForDate(today)
	require.NoError(t, err)
	require.Len(t, doses, 1)
}

func TestMaterializeDayIsIdempotent(t *testing.T) {
	coord, _, _ := setupCoordinator(t)
	ctx := context.Background()

	med := &medication.Medication{
		Name: "Metformin", Dosage: "500mg",
		Times:  []string{"08:00", "20:00"},
		Active: true,
	}
	require.NoError(t, coord.AddMedication(ctx, med))

	created, err := coord.MaterializeDay(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), created)
}

func TestUpdateMedicationCancelsOldShapeFirst(t *testing.T) {
	coord, _, triggers := setupCoordinator(t)
	ctx := context.Background()

	med := &medication.Medication{
		Name: "Lisinopril", Dosage: "10mg",
		Times:  []string{"08:00", "14:00", "20:00"},
		Active: true,
	}
	require.NoError(t, coord.AddMedication(ctx, med))
	triggers.calls = nil

	updated := *med
	updated.Times = []string{"09:00"}
	require.NoError(t, coord.UpdateMedication(ctx, &updated))

	// Cancellation uses the previously stored three-slot shape, then
	// registration uses the new single-slot one.
	require.Len(t, triggers.calls, 2)
	assert.Equal(t, fmt.Sprintf("cancel:%d:3", med.ID), triggers.calls[0])
	assert.Equal(t, fmt.Sprintf("schedule:%d:1", med.ID), triggers.calls[1])
}

func TestUpdateMedicationKeepsHistoricName(t *testing.T) {
	coord, store, _ := setupCoordinator(t)
	ctx := context.Background()

	med := &medication.Medication{
		Name: "Old Name", Dosage: "10mg",
		Times:  []string{"08:00"},
		Active: true,
	}
	require.NoError(t, coord.AddMedication(ctx, med))

	updated := *med
	updated.Name = "New Name"
	require.NoError(t, coord.UpdateMedication(ctx, &updated))

	today := time.Now().Format(medication.DateFormat)
	doses, err := store.DosesForDate(today)
	require.NoError(t, err)
	require.Len(t, doses, 1)
	assert.Equal(t, "Old Name", doses[0].MedicationName)
}

func TestUpdateMissingMedication(t *testing.T) {
	coord, _, _ := setupCoordinator(t)

	err := coord.UpdateMedication(context.Background(), &medication.Medication{
		ID: 999, Name: "Ghost", Dosage: "1mg", Times: []string{"08:00"}, Active: true,
	})
	assert.ErrorIs(t, err, apperrors.ErrMedicationNotFound)
}

func TestDeleteMedicationRetainsLedger(t *testing.T) {
	coord, store, triggers := setupCoordinator(t)
	ctx := context.Background()

	med := &medication.Medication{
		Name: "Lisinopril", Dosage: "10mg",
		Times:  []string{"08:00"},
		Active: true,
	}
	require.NoError(t, coord.AddMedication(ctx, med))
	triggers.calls = nil

	require.NoError(t, coord.DeleteMedication(ctx, med.ID))

	assert.Equal(t, []string{fmt.Sprintf("cancel:%d:1", med.ID)}, triggers.calls)

	gone, err := store.GetMedication(med.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	today := time.Now().Format(medication.DateFormat)
	doses, err := store.DosesForDate(today)
	require.NoError(t, err)
	assert.Len(t, doses, 1)
}

func TestMarkDoseTakenDecrementsInventory(t *testing.T) {
	coord, store, _ := setupCoordinator(t)
	ctx := context.Background()

	med := &medication.Medication{
		Name: "Lisinopril", Dosage: "10mg",
		Times:          []string{"08:00"},
		Active:         true,
		PillsRemaining: 3,
		PillsPerDose:   5,
	}
	require.NoError(t, coord.AddMedication(ctx, med))

	today := time.Now().Format(medication.DateFormat)
	doses, err := store.DosesForDate(today)
	require.NoError(t, err)
	require.Len(t, doses, 1)

	require.NoError(t, coord.MarkDoseTaken(ctx, doses[0].ID))

	// Inventory clamps at zero, never negative
	after, err := store.GetMedication(med.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.PillsRemaining)

	dose, err := store.GetDose(doses[0].ID)
	require.NoError(t, err)
	assert.Equal(t, medication.StatusTaken, dose.Status)
	assert.NotNil(t, dose.TakenAt)
}

func TestTerminalTransitionsRejected(t *testing.T) {
	coord, store, _ := setupCoordinator(t)
	ctx := context.Background()

	med := &medication.Medication{
		Name: "Lisinopril", Dosage: "10mg",
		Times: []string{"08:00"}, Active: true, PillsRemaining: 10,
	}
	require.NoError(t, coord.AddMedication(ctx, med))

	today := time.Now().Format(medication.DateFormat)
	doses, err := store.DosesForDate(today)
	require.NoError(t, err)
	require.Len(t, doses, 1)

	require.NoError(t, coord.MarkDoseTaken(ctx, doses[0].ID))

	err = coord.MarkDoseSkipped(ctx, doses[0].ID)
	assert.ErrorIs(t, err, apperrors.ErrDoseFinalized)

	err = coord.MarkDoseTaken(ctx, doses[0].ID)
	assert.ErrorIs(t, err, apperrors.ErrDoseFinalized)

	dose, err := store.GetDose(doses[0].ID)
	require.NoError(t, err)
	assert.Equal(t, medication.StatusTaken, dose.Status)
}

func TestMarkDoseSkippedLeavesInventory(t *testing.T) {
	coord, store, _ := setupCoordinator(t)
	ctx := context.Background()

	med := &medication.Medication{
		Name: "Lisinopril", Dosage: "10mg",
		Times: []string{"08:00"}, Active: true, PillsRemaining: 10,
	}
	require.NoError(t, coord.AddMedication(ctx, med))

	today := time.Now().Format(medication.DateFormat)
	doses, err := store.DosesForDate(today)
	require.NoError(t, err)

	require.NoError(t, coord.MarkDoseSkipped(ctx, doses[0].ID))

	after, err := store.GetMedication(med.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, after.PillsRemaining)

	dose, err := store.GetDose(doses[0].ID)
	require.NoError(t, err)
	assert.Equal(t, medication.StatusSkipped, dose.Status)
	assert.Nil(t, dose.TakenAt)
}

func TestDailyAggregate(t *testing.T) {
	coord, store, _ := setupCoordinator(t)
	ctx := context.Background()

	med := &medication.Medication{
		Name: "Lisinopril", Dosage: "10mg",
		Times:  []string{"08:00", "14:00", "20:00"},
		Active: true, PillsRemaining: 10,
	}
	require.NoError(t, coord.AddMedication(ctx, med))

	today := time.Now().Format(medication.DateFormat)
	doses, err := store.DosesForDate(today)
	require.NoError(t, err)
	require.Len(t, doses, 3)

	require.NoError(t, coord.MarkDoseTaken(ctx, doses[0].ID))
	require.NoError(t, coord.MarkDoseTaken(ctx, doses[1].ID))

	agg, err := coord.DailyAggregate(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Taken)
	assert.Equal(t, 3, agg.Total)
}

func TestCoordinatorPublishesEvents(t *testing.T) {
	coord, _, _ := setupCoordinator(t)
	ctx := context.Background()

	events, cancel := coord.Bus().Subscribe(TopicMedications)
	defer cancel()

	med := &medication.Medication{
		Name: "Lisinopril", Dosage: "10mg",
		Times: []string{"08:00"}, Active: true,
	}
	require.NoError(t, coord.AddMedication(ctx, med))

	select {
	case e := <-events:
		assert.Equal(t, TopicMedications, e.Topic)
	case <-time.After(time.Second):
		t.Fatal("expected a medications event")
	}
}

func TestSelection(t *testing.T) {
	coord, _, _ := setupCoordinator(t)
	ctx := context.Background()

	med := &medication.Medication{
		Name: "Lisinopril", Dosage: "10mg",
		Times: []string{"08:00"}, Active: true,
	}
	require.NoError(t, coord.AddMedication(ctx, med))

	selected, err := coord.SelectMedication(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, med.ID, selected.ID)
	assert.Equal(t, med.ID, coord.Selected().ID)

	coord.ClearSelected()
	assert.Nil(t, coord.Selected())

	_, err = coord.SelectMedication(ctx, 12345)
	assert.ErrorIs(t, err, apperrors.ErrMedicationNotFound)
}
