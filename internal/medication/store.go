package medication

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store handles medication and dose ledger persistence
type Store struct {
	db *gorm.DB
}

// NewStore creates a new medication store
func NewStore(db *gorm.DB) (*Store, error) {
	store := &Store{db: db}

	if err := db.AutoMigrate(&Medication{}, &DoseOccurrence{}); err != nil {
		return nil, fmt.Errorf("failed to migrate medication schemas: %w", err)
	}

	return store, nil
}

// Medication operations

func (s *Store) CreateMedication(med *Medication) error {
	serializeTimes(med)
	if med.PillsPerDose <= 0 {
		med.PillsPerDose = 1
	}
	if med.StartDate.IsZero() {
		med.StartDate = time.Now()
	}
	med.CreatedAt = time.Now()
	med.UpdatedAt = time.Now()
	return s.db.Create(med).Error
}

func (s *Store) GetMedication(id int64) (*Medication, error) {
	var med Medication
	err := s.db.Where("id = ?", id).First(&med).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	deserializeTimes(&med)
	return &med, nil
}

func (s *Store) UpdateMedication(med *Medication) error {
	serializeTimes(med)
	med.UpdatedAt = time.Now()
	return s.db.Save(med).Error
}

func (s *Store) DeleteMedication(id int64) error {
	return s.db.Where("id = ?", id).Delete(&Medication{}).Error
}

func (s *Store) ListMedications(activeOnly bool) ([]Medication, error) {
	query := s.db.Order("name ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var meds []Medication
	err := query.Find(&meds).Error
	for i := range meds {
		deserializeTimes(&meds[i])
	}
	return meds, err
}

// DecrementPills reduces the remaining supply by amount, clamped at zero
func (s *Store) DecrementPills(id int64, amount int) error {
	return s.db.Model(&Medication{}).
		Where("id = ?", id).
		Update("pills_remaining", gorm.Expr("MAX(pills_remaining - ?, 0)", amount)).Error
}

func serializeTimes(med *Medication) {
	timesJSON, _ := json.Marshal(med.TimesList())
	med.TimesJSON = string(timesJSON)
}

func deserializeTimes(med *Medication) {
	if med.TimesJSON != "" {
		json.Unmarshal([]byte(med.TimesJSON), &med.Times)
	}
}

// Dose ledger operations

// InsertDoses persists draft occurrences and reports how many rows were
// actually created. Rows for a (medication, date, scheduled time) slot
// that already exists are left untouched, so re-materializing a date
// never duplicates the ledger.
func (s *Store) InsertDoses(drafts []DoseOccurrence) (int64, error) {
	if len(drafts) == 0 {
		return 0, nil
	}
	for i := range drafts {
		drafts[i].CreatedAt = time.Now()
		if drafts[i].Status == "" {
			drafts[i].Status = StatusPending
		}
	}
	res := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "medication_id"}, {Name: "scheduled_at"}, {Name: "date"},
		},
		DoNothing: true,
	}).Create(&drafts)
	return res.RowsAffected, res.Error
}

func (s *Store) GetDose(id int64) (*DoseOccurrence, error) {
	var dose DoseOccurrence
	err := s.db.Where("id = ?", id).First(&dose).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dose, nil
}

func (s *Store) DosesForDate(date string) ([]DoseOccurrence, error) {
	var doses []DoseOccurrence
	err := s.db.Where("date = ?", date).Order("scheduled_at ASC").Find(&doses).Error
	return doses, err
}

func (s *Store) DosesForMedication(medicationID int64, limit int) ([]DoseOccurrence, error) {
	var doses []DoseOccurrence
	err := s.db.Where("medication_id = ?", medicationID).
		Order("scheduled_at DESC").
		Limit(limit).
		Find(&doses).Error
	return doses, err
}

func (s *Store) DosesForMedicationOnDate(medicationID int64, date string) ([]DoseOccurrence, error) {
	var doses []DoseOccurrence
	err := s.db.Where("medication_id = ? AND date = ?", medicationID, date).
		Find(&doses).Error
	return doses, err
}

// MarkDose transitions a pending occurrence to a terminal status. It
// returns false when the occurrence does not exist or is already final.
func (s *Store) MarkDose(id int64, status DoseStatus, takenAt *time.Time) (bool, error) {
	res := s.db.Model(&DoseOccurrence{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(map[string]interface{}{
			"status":   status,
			"taken_at": takenAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkMissedBefore flips pending occurrences scheduled before the cutoff
// to missed and returns how many rows changed
func (s *Store) MarkMissedBefore(cutoff time.Time) (int64, error) {
	res := s.db.Model(&DoseOccurrence{}).
		Where("status = ? AND scheduled_at < ?", StatusPending, cutoff).
		Update("status", StatusMissed)
	return res.RowsAffected, res.Error
}

func (s *Store) TakenCountForDate(date string) (int64, error) {
	var count int64
	err := s.db.Model(&DoseOccurrence{}).
		Where("date = ? AND status = ?", date, StatusTaken).
		Count(&count).Error
	return count, err
}

func (s *Store) TotalCountForDate(date string) (int64, error) {
	var count int64
	err := s.db.Model(&DoseOccurrence{}).
		Where("date = ?", date).
		Count(&count).Error
	return count, err
}

func (s *Store) TakenCountForMedication(medicationID int64) (int64, error) {
	var count int64
	err := s.db.Model(&DoseOccurrence{}).
		Where("medication_id = ? AND status = ?", medicationID, StatusTaken).
		Count(&count).Error
	return count, err
}
