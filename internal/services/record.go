package services

import (
	"errors"
	"time"

	"medtrack/internal/config"
	"medtrack/internal/models"

	"gorm.io/gorm"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrRecordExists   = errors.New("record already exists for this date")
	ErrInvalidDate    = errors.New("date must be in YYYY-MM-DD format")
)

const dateLayout = "2006-01-02"

type RecordService struct {
	cfg *config.Config
}

func NewRecordService(cfg *config.Config) *RecordService {
	return &RecordService{cfg: cfg}
}

// RecordData is the payload shape shared by create and update.
type RecordData struct {
	Date           string
	MorningTaken   bool
	AfternoonTaken bool
	EveningTaken   bool
	Notes          string
}

// GetRecords returns all records owned by the user
func (s *RecordService) GetRecords(userID uint) ([]models.MedicationRecord, error) {
	var records []models.MedicationRecord
	if err := models.DB.Where("user_id = ?", userID).Order("date desc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// GetRecentRecords returns the user's records from the configured recent
// window, today inclusive, most recent first.
func (s *RecordService) GetRecentRecords(userID uint) ([]models.MedicationRecord, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -(s.cfg.Records.RecentDays - 1))

	var records []models.MedicationRecord
	err := models.DB.
		Where("user_id = ? AND date >= ? AND date <= ?",
			userID, start.Format(dateLayout), end.Format(dateLayout)).
		Order("date desc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CreateRecord inserts a new record for the user. At most one record may
// exist per (user, date); a second create for the same date fails.
func (s *RecordService) CreateRecord(userID uint, data RecordData) (*models.MedicationRecord, error) {
	if _, err := time.Parse(dateLayout, data.Date); err != nil {
		return nil, ErrInvalidDate
	}

	var existing models.MedicationRecord
	if err := models.DB.Where("user_id = ? AND date = ?", userID, data.Date).First(&existing).Error; err == nil {
		return nil, ErrRecordExists
	}

	record := &models.MedicationRecord{
		UserID:         userID,
		Date:           data.Date,
		MorningTaken:   data.MorningTaken,
		AfternoonTaken: data.AfternoonTaken,
		EveningTaken:   data.EveningTaken,
		Notes:          data.Notes,
	}

	if err := models.DB.Create(record).Error; err != nil {
		// The composite unique index backs the check above under races.
		return nil, ErrRecordExists
	}

	return record, nil
}

// UpdateRecord updates the flags and notes of an existing record owned by the
// user. The record's date and owner are identity and never change.
func (s *RecordService) UpdateRecord(userID, recordID uint, data RecordData) (*models.MedicationRecord, error) {
	var record models.MedicationRecord
	if err := models.DB.Where("id = ? AND user_id = ?", recordID, userID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	record.MorningTaken = data.MorningTaken
	record.AfternoonTaken = data.AfternoonTaken
	record.EveningTaken = data.EveningTaken
	record.Notes = data.Notes

	if err := models.DB.Save(&record).Error; err != nil {
		return nil, err
	}

	return &record, nil
}

// GetAllRecords returns every record in the system (admin use only)
func (s *RecordService) GetAllRecords() ([]models.MedicationRecord, error) {
	var records []models.MedicationRecord
	if err := models.DB.Order("date desc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
