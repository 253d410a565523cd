// Package domain defines the persistence model for interview sessions.
// The types are mapped with GORM and shared across the repository and
// service layers.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Interview status values. A record is created as StatusStarted when the
// session is provisioned, moves to StatusCompleted once the end-of-call
// notification has been reconciled, and may be moved to StatusTerminated by
// an administrative action. Terminated is terminal.
const (
	StatusStarted    = "started"
	StatusCompleted  = "completed"
	StatusTerminated = "terminated"
)

// Interview is one mock-interview session and its generated feedback.
//
// CallID is the provider-issued call identifier and the natural idempotency
// key: the reconciler finds-or-creates by CallID, so the column carries a
// unique index. When the provider supplies no id, a locally generated
// "call_<epoch-millis>" value is stored instead; such records can never be
// merge targets for a later notification.
//
// Merge rules enforced by the reconciler:
//   - UserID, once non-empty, is never overwritten with an empty value.
//   - Duration, once non-zero, is preserved; a derived duration only fills
//     a missing/zero value.
//   - JobRole is preserved when a later payload carries no role label of its
//     own (the "Software Engineer" default never clobbers a stored role).
//   - Feedback is always populated (generated or fallback text) before
//     Status becomes completed.
type Interview struct {
	ID         string         `json:"id"         gorm:"type:char(36);primaryKey"`
	CallID     string         `json:"callId"     gorm:"type:varchar(128);not null;uniqueIndex:ux_interviews_call_id"`
	UserID     string         `json:"userId,omitempty" gorm:"type:varchar(64);index"`
	JobRole    string         `json:"jobRole"    gorm:"type:varchar(255);not null;default:'Software Engineer'"`
	Transcript string         `json:"transcript" gorm:"type:text"`
	Feedback   string         `json:"feedback"   gorm:"type:text"`
	Status     string         `json:"status"     gorm:"type:varchar(16);not null;index;check:status IN ('started','completed','terminated')"`
	Duration   int            `json:"duration"   gorm:"not null;default:0"` // seconds
	StartedAt  *time.Time     `json:"startedAt,omitempty"`
	EndedAt    *time.Time     `json:"endedAt,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"  gorm:"index"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	DeletedAt  gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Interview.
func (Interview) TableName() string { return "interviews" }
