// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Lesson
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a lesson is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// The two Mark* functions implement the lesson's single terminal transition:
// a row leaves the "generating" state exactly once, to "generated" or
// "failed". Both guard the update with a status predicate so a second write
// (crashed orchestrator restarted, reconciliation sweep racing a late
// update) affects zero rows instead of clobbering a terminal state.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/unknown-lord/Pro-lessons/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service
// layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateLesson inserts a new Lesson row with the given outline and derived
// title, status "generating" and a fresh UUID primary key.
func CreateLesson(ctx context.Context, db *gorm.DB, outline, title string) (*domain.Lesson, error) {
	l := &domain.Lesson{
		ID:        uuid.NewString(),
		Outline:   outline,
		Title:     title,
		Status:    domain.StatusGenerating,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

// GetLesson fetches a single lesson by ID, or ErrNotFound if missing.
func GetLesson(ctx context.Context, db *gorm.DB, id string) (*domain.Lesson, error) {
	var l domain.Lesson
	err := db.WithContext(ctx).Where("id = ?", id).First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLessons returns all lessons ordered by creation time descending
// (most recent first). It returns an empty slice when the table is empty.
func ListLessons(ctx context.Context, db *gorm.DB) ([]domain.Lesson, error) {
	var out []domain.Lesson
	err := db.WithContext(ctx).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CountLessons returns the total number of lessons.
func CountLessons(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Lesson{}).
		Count(&total).Error
	return total, err
}

// ListLessonsPage returns a paginated slice of lessons ordered by creation
// time descending. Use CountLessons to obtain the total for pagination
// metadata. The caller computes offset and limit (e.g., (page-1)*pageSize).
func ListLessonsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Lesson, error) {
	var out []domain.Lesson
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkLessonGenerated performs the success terminal update: status, content
// and trace are written together. Only a row still in "generating" is
// updated; ErrNotFound is returned otherwise so the caller can tell a lost
// race from a missing row.
func MarkLessonGenerated(ctx context.Context, db *gorm.DB, id, content string, trace domain.GenerationTrace) error {
	tr := datatypes.NewJSONType(trace)
	res := db.WithContext(ctx).
		Model(&domain.Lesson{}).
		Where("id = ? AND status = ?", id, domain.StatusGenerating).
		Updates(map[string]any{
			"status":  domain.StatusGenerated,
			"content": content,
			"trace":   &tr,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkLessonFailed performs the failure terminal update. Content stays NULL;
// the trace carries the error description. Guarded like MarkLessonGenerated.
func MarkLessonFailed(ctx context.Context, db *gorm.DB, id string, trace domain.GenerationTrace) error {
	tr := datatypes.NewJSONType(trace)
	res := db.WithContext(ctx).
		Model(&domain.Lesson{}).
		Where("id = ? AND status = ?", id, domain.StatusGenerating).
		Updates(map[string]any{
			"status": domain.StatusFailed,
			"trace":  &tr,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SweepStuckLessons marks lessons still "generating" after the given age as
// failed with a timeout trace. Returns the affected lesson IDs so callers
// can publish change events for them.
func SweepStuckLessons(ctx context.Context, db *gorm.DB, olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	var stuck []domain.Lesson
	if err := db.WithContext(ctx).
		Select("id").
		Where("status = ? AND created_at < ?", domain.StatusGenerating, cutoff).
		Find(&stuck).Error; err != nil {
		return nil, err
	}
	if len(stuck) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(stuck))
	for _, l := range stuck {
		trace := domain.GenerationTrace{
			Error:     "generation timed out",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if err := MarkLessonFailed(ctx, db, l.ID, trace); err != nil {
			// Row may have reached a terminal state between the select
			// and the update; skip it.
			continue
		}
		ids = append(ids, l.ID)
	}
	return ids, nil
}

// LessonsStats returns aggregate metadata for the lessons table: the total
// row count and the maximum UpdatedAt timestamp. Used for weak ETag
// generation on the list endpoint. When the table is empty, count is 0 and
// maxUpdatedAt is nil.
func LessonsStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Lesson{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
