package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/unknown-lord/Pro-lessons/internal/domain"
	"github.com/unknown-lord/Pro-lessons/internal/realtime"
)

// fakeLessonRepo captures arguments and returns canned results.
type fakeLessonRepo struct {
	createOutline string
	createTitle   string
	createErr     error
	created       *domain.Lesson

	getErr error
	lesson *domain.Lesson

	listOut  []domain.Lesson
	count    int64
	countErr error

	pageOffset int
	pageLimit  int
}

func (f *fakeLessonRepo) CreateLesson(_ context.Context, _ *gorm.DB, outline, title string) (*domain.Lesson, error) {
	f.createOutline = outline
	f.createTitle = title
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.created == nil {
		f.created = &domain.Lesson{ID: "l-1", Outline: outline, Title: title, Status: domain.StatusGenerating}
	}
	return f.created, nil
}

func (f *fakeLessonRepo) GetLesson(context.Context, *gorm.DB, string) (*domain.Lesson, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.lesson, nil
}

func (f *fakeLessonRepo) ListLessons(context.Context, *gorm.DB) ([]domain.Lesson, error) {
	return f.listOut, nil
}

func (f *fakeLessonRepo) CountLessons(context.Context, *gorm.DB) (int64, error) {
	return f.count, f.countErr
}

func (f *fakeLessonRepo) ListLessonsPage(_ context.Context, _ *gorm.DB, offset, limit int) ([]domain.Lesson, error) {
	f.pageOffset = offset
	f.pageLimit = limit
	return f.listOut, nil
}

// fakeOrchestrator records dispatches; done is closed after the first Run.
type fakeOrchestrator struct {
	mu       sync.Mutex
	lessonID string
	outline  string
	done     chan struct{}
}

func newFakeOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{done: make(chan struct{})}
}

func (f *fakeOrchestrator) Run(_ context.Context, lessonID, outline string) {
	f.mu.Lock()
	f.lessonID = lessonID
	f.outline = outline
	f.mu.Unlock()
	close(f.done)
}

// fakeFeed collects published events.
type fakeFeed struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (f *fakeFeed) Publish(_ context.Context, ev realtime.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func TestLessonService_Create_EmptyOutline(t *testing.T) {
	svc := NewLessonService(nil, &fakeLessonRepo{}, nil, nil)
	for _, outline := range []string{"", "   ", "\n\t"} {
		if _, err := svc.Create(context.Background(), outline); !errors.Is(err, ErrEmptyOutline) {
			t.Fatalf("Create(%q) err = %v, want ErrEmptyOutline", outline, err)
		}
	}
}

func TestLessonService_Create_StoreError_NoDispatch(t *testing.T) {
	repo := &fakeLessonRepo{createErr: errors.New("disk full")}
	orch := newFakeOrchestrator()
	svc := NewLessonService(nil, repo, orch, nil)

	_, err := svc.Create(context.Background(), "an outline")
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected store error, got %v", err)
	}

	select {
	case <-orch.done:
		t.Fatalf("orchestrator must not run when the create fails")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLessonService_Create_DispatchesGeneration(t *testing.T) {
	repo := &fakeLessonRepo{}
	orch := newFakeOrchestrator()
	feed := &fakeFeed{}
	svc := NewLessonService(nil, repo, orch, feed)

	lesson, err := svc.Create(context.Background(), "  A quiz on Florida history  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lesson.Status != domain.StatusGenerating {
		t.Fatalf("status = %q, want %q", lesson.Status, domain.StatusGenerating)
	}
	if repo.createOutline != "A quiz on Florida history" {
		t.Fatalf("outline not trimmed: %q", repo.createOutline)
	}
	if repo.createTitle != "A quiz on Florida history" {
		t.Fatalf("title mismatch: %q", repo.createTitle)
	}

	select {
	case <-orch.done:
	case <-time.After(time.Second):
		t.Fatalf("orchestrator was not dispatched")
	}
	if orch.lessonID != lesson.ID || orch.outline != "A quiz on Florida history" {
		t.Fatalf("dispatch args mismatch: %q %q", orch.lessonID, orch.outline)
	}

	feed.mu.Lock()
	defer feed.mu.Unlock()
	if len(feed.events) != 1 || feed.events[0].Type != realtime.EventLessonCreated {
		t.Fatalf("expected one created event, got %+v", feed.events)
	}
}

func TestLessonService_Get_NotFound(t *testing.T) {
	svc := NewLessonService(nil, &fakeLessonRepo{getErr: gorm.ErrRecordNotFound}, nil, nil)
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrLessonNotFound) {
		t.Fatalf("expected ErrLessonNotFound, got %v", err)
	}
}

func TestLessonService_ListPage_OffsetAndDefaults(t *testing.T) {
	repo := &fakeLessonRepo{count: 45, listOut: []domain.Lesson{{ID: "a"}}}
	svc := NewLessonService(nil, repo, nil, nil)

	items, total, err := svc.ListPage(context.Background(), 3, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 45 || len(items) != 1 {
		t.Fatalf("total/items mismatch: %d %d", total, len(items))
	}
	if repo.pageOffset != 20 || repo.pageLimit != 10 {
		t.Fatalf("offset/limit = %d/%d, want 20/10", repo.pageOffset, repo.pageLimit)
	}

	// Invalid inputs fall back to defaults.
	if _, _, err := svc.ListPage(context.Background(), 0, -1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.pageOffset != 0 || repo.pageLimit != 20 {
		t.Fatalf("defaults not applied: %d/%d", repo.pageOffset, repo.pageLimit)
	}
}

func TestLessonService_ListPage_EmptyTable(t *testing.T) {
	svc := NewLessonService(nil, &fakeLessonRepo{count: 0}, nil, nil)
	items, total, err := svc.ListPage(context.Background(), 1, 20)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("expected empty page, got items=%v total=%d err=%v", items, total, err)
	}
}

func TestDeriveTitle(t *testing.T) {
	cases := []struct {
		name    string
		outline string
		want    string
	}{
		{"short", "Basic algebra", "Basic algebra"},
		{"exactly six words", "one two three four five six", "one two three four five six"},
		{"truncated to six words", "one two three four five six seven eight", "one two three four five six"},
		{"collapses whitespace", "  a \t b\nc  ", "a b c"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveTitle(tc.outline); got != tc.want {
				t.Fatalf("DeriveTitle(%q) = %q, want %q", tc.outline, got, tc.want)
			}
		})
	}
}

func TestDeriveTitle_LongWordsEllipsis(t *testing.T) {
	long := strings.Repeat("abcdefghij", 7) // one 70-char word
	got := DeriveTitle(long)
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 51 { // 50 runes + ellipsis
		t.Fatalf("rune count = %d, want 51", n)
	}
	if !strings.HasPrefix(long, strings.TrimSuffix(got, "…")) {
		t.Fatalf("truncation must preserve the prefix")
	}
}

func TestDeriveTitle_FiftyRunesExactly_NoEllipsis(t *testing.T) {
	exact := strings.Repeat("x", 50)
	if got := DeriveTitle(exact); got != exact {
		t.Fatalf("exactly 50 runes must pass through unchanged, got %q", got)
	}
}
