// Lesson HTTP handlers.
//
// This file exposes the REST endpoints for lesson resources:
//   - POST /lessons          (create + detached generation)
//   - GET  /lessons          (list, paginated, ETag support)
//   - GET  /lessons/:id      (fetch one)
//   - GET  /lessons/events   (SSE change feed)
//   - GET  /status           (provider credential probe)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses. The create endpoint
// returns before generation completes; clients observe the outcome through
// the change feed.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/unknown-lord/Pro-lessons/internal/domain"
	"github.com/unknown-lord/Pro-lessons/internal/http/middleware"
	"github.com/unknown-lord/Pro-lessons/internal/realtime"
	"github.com/unknown-lord/Pro-lessons/internal/repo"
	"github.com/unknown-lord/Pro-lessons/internal/services"
	"github.com/unknown-lord/Pro-lessons/internal/utils"
)

//
// Service contracts (context-aware)
//

// LessonService defines the lesson operations consumed by HTTP handlers.
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation and timeouts.
type LessonService interface {
	// Create validates the outline, persists a "generating" lesson, and
	// dispatches generation without awaiting it.
	Create(ctx context.Context, outline string) (*domain.Lesson, error)
	// Get returns a single lesson.
	Get(ctx context.Context, id string) (*domain.Lesson, error)
	// ListPage returns a page of lessons and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Lesson, int64, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for lessons and the status probe.
type Handlers struct {
	lessonSvc LessonService
	db        *gorm.DB // idempotency + ETag queries; nil disables both
	hub       *realtime.Hub

	hasPrimaryKey  bool
	idempotencyTTL time.Duration
}

// New constructs a Handlers instance. hasPrimaryKey is what the status
// probe reports; the credential value itself never reaches this layer.
func New(lessonSvc LessonService, db *gorm.DB, hub *realtime.Hub, hasPrimaryKey bool, idempotencyTTL time.Duration) *Handlers {
	return &Handlers{
		lessonSvc:      lessonSvc,
		db:             db,
		hub:            hub,
		hasPrimaryKey:  hasPrimaryKey,
		idempotencyTTL: idempotencyTTL,
	}
}

// userID extracts the caller identity from the Gin context (set by upstream
// middleware), falling back to the "X-User-ID" header and finally to
// "demo-user". Only idempotency scoping uses it.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CreateLessonRequest is the JSON payload for creating a lesson.
type CreateLessonRequest struct {
	// Outline is the natural-language lesson description to generate from.
	Outline string `json:"outline" example:"A quiz on Florida history and geography"`
}

// CreateLessonResponse acknowledges a created lesson before generation
// completes.
type CreateLessonResponse struct {
	LessonID string `json:"lessonId" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	Status   string `json:"status"   example:"generating"`
}

// StatusResponse is the provider credential probe payload.
type StatusResponse struct {
	OK     bool `json:"ok"`
	HasKey bool `json:"hasKey"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListLessonsResponse wraps a page of lessons and pagination information.
type ListLessonsResponse struct {
	Lessons    []domain.Lesson `json:"lessons"`
	Pagination Pagination      `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

//
// Handlers
//

// CreateLesson godoc
// @ID          createLesson
// @Summary     Create a lesson
// @Description Creates a lesson record and starts content generation in the background. Returns immediately with status "generating".
// @Tags        Lessons
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"        example(user123)
// @Param       Idempotency-Key  header  string  false "Safe-retry key for this create"
// @Param       body             body    handlers.CreateLessonRequest  true  "Create lesson payload"
//
// @Success     200  {object}  handlers.CreateLessonResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing or empty outline"
// @Failure     500  {object}  handlers.ErrorResponse  "Store failure"
// @Router      /lessons [post]
func (h *Handlers) CreateLesson(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	// Replay: serve the originally created lesson without re-generating.
	if middleware.IsReplay(c) {
		if key, okKey := middleware.GetIdempotencyKey(c); okKey && h.db != nil {
			if rec, err := repo.GetIdempotency(ctx, h.db, uid, key, time.Now().UTC()); err == nil && rec != nil {
				if lesson, err := h.lessonSvc.Get(ctx, rec.LessonID); err == nil {
					ok(c, rec.Status, CreateLessonResponse{LessonID: lesson.ID, Status: lesson.Status})
					return
				}
			}
		}
	}

	var req CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	lesson, err := h.lessonSvc.Create(ctx, req.Outline)
	if err != nil {
		if errors.Is(err, services.ErrEmptyOutline) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "outline required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}

	// Record the idempotency key (best effort) so a retry replays this id.
	if key, okKey := middleware.GetIdempotencyKey(c); okKey && h.db != nil {
		_, _ = repo.CreateIdempotency(ctx, h.db, uid, key, lesson.ID, http.StatusOK, h.idempotencyTTL)
	}

	ok(c, http.StatusOK, CreateLessonResponse{LessonID: lesson.ID, Status: lesson.Status})
}

// ListLessons godoc
// @ID          listLessons
// @Summary     List lessons (paginated)
// @Description Returns a page of lessons, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Lessons
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListLessonsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /lessons [get]
func (h *Handlers) ListLessons(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort). Nanosecond timestamp so back-to-back
	// updates inside the same second still change the tag.
	if h.db != nil {
		count, maxTS, err := repo.LessonsStats(ctx, h.db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"lessons:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.lessonSvc.ListPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListLessonsResponse{
		Lessons: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// GetLesson godoc
// @ID          getLesson
// @Summary     Fetch a single lesson
// @Description Returns a lesson with its current status, content and generation trace.
// @Tags        Lessons
// @Produce     json
//
// @Param       id  path  string  true  "Lesson ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.Lesson
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Lesson not found"
// @Router      /lessons/{id} [get]
func (h *Handlers) GetLesson(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lesson id must be a UUID")
		return
	}

	lesson, err := h.lessonSvc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "lesson not found")
		return
	}
	ok(c, http.StatusOK, lesson)
}

// Status godoc
// @ID          status
// @Summary     Provider credential probe
// @Description Reports whether a primary-provider API key is configured. Never exposes the key itself.
// @Tags        System
// @Produce     json
//
// @Success     200  {object} handlers.StatusResponse
// @Router      /status [get]
func (h *Handlers) Status(c *gin.Context) {
	ok(c, http.StatusOK, StatusResponse{OK: true, HasKey: h.hasPrimaryKey})
}

// StreamEvents godoc
// @ID          streamEvents
// @Summary     Lesson change feed (SSE)
// @Description Streams lesson row-change events as server-sent events. Clients re-read the list on any event.
// @Tags        Lessons
// @Produce     text/event-stream
//
// @Success     200  {string} string "event stream"
// @Router      /lessons/events [get]
func (h *Handlers) StreamEvents(c *gin.Context) {
	if h.hub == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "change feed unavailable")
		return
	}

	ch, cancel := h.hub.Subscribe()
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("lesson", ev)
			return true
		case <-heartbeat.C:
			// Comment frame keeps proxies from idling the connection out.
			_, _ = io.WriteString(w, ": keepalive\n\n")
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
