package models

import "time"

// Assignment records one round-robin selection and whether the ticketing
// system accepted the resulting assignee change.
type Assignment struct {
	ID        string    `gorm:"primaryKey;size:36"`
	IssueKey  string    `gorm:"size:64;index"`
	RuleID    string    `gorm:"size:64;index"`
	AccountID string    `gorm:"size:128;index"`
	Source    string    `gorm:"size:16"`
	Committed bool      `gorm:"default:false"`
	Error     string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}
