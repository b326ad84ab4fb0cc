// Package services – LessonService
//
// This file implements the LessonService, which owns the lesson lifecycle on
// the request path: it validates outlines, derives titles, creates records,
// and dispatches the generation orchestrator without awaiting it. Read
// operations (get, list with pagination) also live here.
//
// The orchestrator dispatch is deliberately detached: Create returns as soon
// as the row exists, and the HTTP response is unordered with respect to the
// terminal generation update. Clients observe the outcome via the change
// feed, never via this call.
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/unknown-lord/Pro-lessons/internal/domain"
	"github.com/unknown-lord/Pro-lessons/internal/realtime"
)

const (
	// titleWordCount is how many leading outline words form the title.
	titleWordCount = 6
	// titleMaxRunes caps the derived title before the ellipsis is appended.
	titleMaxRunes = 50
)

// LessonRepo defines the repository contract required by LessonService.
type LessonRepo interface {
	// CreateLesson inserts a new lesson row with status "generating".
	CreateLesson(ctx context.Context, db *gorm.DB, outline, title string) (*domain.Lesson, error)

	// GetLesson fetches a lesson by ID.
	GetLesson(ctx context.Context, db *gorm.DB, id string) (*domain.Lesson, error)

	// ListLessons returns all lessons, newest first (non-paginated).
	ListLessons(ctx context.Context, db *gorm.DB) ([]domain.Lesson, error)

	// CountLessons returns the total number of lessons for pagination.
	CountLessons(ctx context.Context, db *gorm.DB) (int64, error)

	// ListLessonsPage returns a page of lessons, newest first.
	ListLessonsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Lesson, error)
}

// Orchestrator runs the generation fallback chain for one lesson and
// performs its terminal store update. Run must never panic past its
// boundary; see GenerationService.
type Orchestrator interface {
	Run(ctx context.Context, lessonID, outline string)
}

// FeedPublisher pushes change events onto the realtime feed. Satisfied by
// realtime.Bus.
type FeedPublisher interface {
	Publish(ctx context.Context, ev realtime.Event) error
}

// LessonService provides lesson-level operations: validated creation with
// detached generation, and reads.
type LessonService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the lesson repository used by this service.
	Repo LessonRepo
	// Orch generates content for newly created lessons. Optional in tests.
	Orch Orchestrator
	// Feed receives row-change events. Optional; nil disables notifications.
	Feed FeedPublisher
}

// NewLessonService constructs a LessonService.
func NewLessonService(db *gorm.DB, r LessonRepo, orch Orchestrator, feed FeedPublisher) *LessonService {
	return &LessonService{DB: db, Repo: r, Orch: orch, Feed: feed}
}

// Create validates the outline, derives the title, inserts the record with
// status "generating", dispatches the orchestrator in the background, and
// returns the new record immediately. A store failure is returned as-is and
// no generation is attempted.
func (s *LessonService) Create(ctx context.Context, outline string) (*domain.Lesson, error) {
	tr := otel.Tracer("services/LessonService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	outline = strings.TrimSpace(outline)
	if outline == "" {
		return nil, ErrEmptyOutline
	}

	lesson, err := s.Repo.CreateLesson(ctx, s.DB, outline, DeriveTitle(outline))
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("lesson.id", lesson.ID))

	if s.Feed != nil {
		_ = s.Feed.Publish(ctx, realtime.Event{
			Type:     realtime.EventLessonCreated,
			LessonID: lesson.ID,
			Status:   lesson.Status,
		})
	}

	// Fire-and-forget: the HTTP response must not wait for generation.
	// context.Background is deliberate — the request context dies when the
	// response is written, while generation outlives it.
	if s.Orch != nil {
		go s.Orch.Run(context.Background(), lesson.ID, lesson.Outline)
	}

	return lesson, nil
}

// Get returns a single lesson or ErrLessonNotFound.
func (s *LessonService) Get(ctx context.Context, id string) (*domain.Lesson, error) {
	lesson, err := s.Repo.GetLesson(ctx, s.DB, id)
	if err != nil {
		return nil, ErrLessonNotFound
	}
	return lesson, nil
}

// List returns all lessons, newest first. Prefer ListPage for large tables.
func (s *LessonService) List(ctx context.Context) ([]domain.Lesson, error) {
	return s.Repo.ListLessons(ctx, s.DB)
}

// ListPage returns a page of lessons plus the total count, applying
// defaults for invalid page/pageSize.
func (s *LessonService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Lesson, int64, error) {
	tr := otel.Tracer("services/LessonService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountLessons(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Lesson{}, 0, nil
	}

	items, err := s.Repo.ListLessonsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// DeriveTitle builds the lesson title from its outline: the first six
// whitespace-separated words joined by single spaces. When that exceeds 50
// runes it is cut to exactly 50 and an ellipsis is appended.
func DeriveTitle(outline string) string {
	words := strings.Fields(outline)
	if len(words) > titleWordCount {
		words = words[:titleWordCount]
	}
	title := strings.Join(words, " ")
	if utf8.RuneCountInString(title) > titleMaxRunes {
		title = string([]rune(title)[:titleMaxRunes]) + "…"
	}
	return title
}
