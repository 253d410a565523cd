// Package repo implements the data persistence layer for interview records,
// backed by GORM. This file provides the repository functions for the
// Interview model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. The merge semantics for reconciliation
// live in the service layer, which runs these functions inside a transaction.
//
// Error semantics:
//   - When an interview is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - An insert that violates the unique call_id index returns ErrDuplicateCallID
//     so the caller can fall back to the update path.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mockvox/go-interview-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicateCallID indicates an insert raced with another writer for the
// same call_id. The caller should re-fetch and update instead.
var ErrDuplicateCallID = errors.New("interview with this call id already exists")

// CreateInterview inserts a new interview row. The ID is assigned here when
// empty, and CreatedAt is set to UTC. A unique-constraint violation on
// call_id is mapped to ErrDuplicateCallID.
func CreateInterview(ctx context.Context, db *gorm.DB, rec *domain.Interview) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCallID
		}
		return err
	}
	return nil
}

// GetInterview fetches a single interview by its primary key.
// Returns ErrNotFound when missing.
func GetInterview(ctx context.Context, db *gorm.DB, id string) (*domain.Interview, error) {
	var rec domain.Interview
	if err := db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetInterviewByCallID fetches the interview holding the given call id.
// At most one row can match thanks to the unique index. Returns ErrNotFound
// when missing.
func GetInterviewByCallID(ctx context.Context, db *gorm.DB, callID string) (*domain.Interview, error) {
	var rec domain.Interview
	if err := db.WithContext(ctx).Where("call_id = ?", callID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveInterview persists all fields of an already-loaded record.
func SaveInterview(ctx context.Context, db *gorm.DB, rec *domain.Interview) error {
	return db.WithContext(ctx).Save(rec).Error
}

// LatestInterview returns the most recently created record, or ErrNotFound
// when the store is empty.
func LatestInterview(ctx context.Context, db *gorm.DB) (*domain.Interview, error) {
	var rec domain.Interview
	if err := db.WithContext(ctx).Order("created_at desc").First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountInterviews returns the total number of interviews, optionally
// restricted to a status ("" counts all).
func CountInterviews(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.Interview{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Count(&total).Error
	return total, err
}

// ListInterviewsPage returns a page of interviews ordered by creation time
// descending. Use CountInterviews to obtain the total for pagination
// metadata. The caller computes offset and limit.
func ListInterviewsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Interview, error) {
	var out []domain.Interview
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkTerminated transitions a record to the terminated status and stamps
// EndedAt. The transition is unconditional: it applies whether or not the
// provider-side hangup succeeded. Returns ErrNotFound when no row matched.
func MarkTerminated(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Interview{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":   domain.StatusTerminated,
			"ended_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// isUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
