package models

import (
	"time"
)

// MedicationRecord holds one day's dose flags for one user. The composite
// unique index is the source of truth for the one-record-per-(user, date)
// invariant; the service layer checks it first to return a friendlier error.
type MedicationRecord struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	UserID         uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_user_date"`
	Date           string    `json:"date" gorm:"type:varchar(10);not null;uniqueIndex:idx_user_date"` // YYYY-MM-DD
	MorningTaken   bool      `json:"morning_taken" gorm:"default:false"`
	AfternoonTaken bool      `json:"afternoon_taken" gorm:"default:false"`
	EveningTaken   bool      `json:"evening_taken" gorm:"default:false"`
	Notes          string    `json:"notes" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
