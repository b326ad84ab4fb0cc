// Package services – GenerationService
//
// This file implements the generation orchestrator: given a freshly created
// lesson, it walks a strict priority chain of generators — secondary
// provider, then primary provider as a nested fallback, then the
// deterministic mock — until one yields content, and persists the result in
// exactly one terminal store update together with a structured trace of
// what happened.
//
// The chain is sequential, never a race: at most one adapter attempt is in
// flight at any time, and every failure is absorbed and converted into the
// next fallback. The mock generator cannot fail, so the only path to a
// "failed" lesson is the store update itself failing or a panic escaping an
// attempt; both are contained here and turned into a best-effort Failed
// write. Nothing is retried beyond the fixed chain.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/unknown-lord/Pro-lessons/internal/domain"
	"github.com/unknown-lord/Pro-lessons/internal/provider"
	"github.com/unknown-lord/Pro-lessons/internal/realtime"
)

var genRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lesson_generations_total",
		Help: "Terminal generation outcomes by path.",
	},
	[]string{"path", "outcome"}, // path: gemini|groq|mock, outcome: generated|failed
)

func init() {
	prometheus.MustRegister(genRuns)
}

// GenerationRepo is the slice of the repository the orchestrator needs: the
// two terminal transitions.
type GenerationRepo interface {
	MarkLessonGenerated(ctx context.Context, db *gorm.DB, id, content string, trace domain.GenerationTrace) error
	MarkLessonFailed(ctx context.Context, db *gorm.DB, id string, trace domain.GenerationTrace) error
}

// GenerationService coordinates the provider fallback chain and owns the
// lesson's terminal update.
//
// Primary and Secondary are nil when the corresponding credential is not
// configured; their presence is the entire decision policy. Mock defaults
// to provider.MockLesson and is the terminal fallback.
type GenerationService struct {
	DB   *gorm.DB
	Repo GenerationRepo

	Primary   provider.Generator
	Secondary provider.Generator
	Mock      func(outline string, easterEgg bool) string

	// Feed receives a change event after the terminal update. Optional.
	Feed FeedPublisher
}

// NewGenerationService constructs a GenerationService with the mock
// generator wired as the terminal fallback.
func NewGenerationService(db *gorm.DB, repo GenerationRepo, primary, secondary provider.Generator, feed FeedPublisher) *GenerationService {
	return &GenerationService{
		DB:        db,
		Repo:      repo,
		Primary:   primary,
		Secondary: secondary,
		Mock:      provider.MockLesson,
		Feed:      feed,
	}
}

// Run executes the fallback chain for one lesson and performs its single
// terminal update. It never panics past its boundary: an escaping panic is
// converted into a best-effort Failed write.
//
// Decision policy, evaluated once per invocation:
//  1. secondary credential configured → attempt secondary; on failure
//     attempt primary iff configured; otherwise/afterwards fall through to
//     the mock.
//  2. only primary configured → attempt primary; on failure mock.
//  3. no credentials → mock directly.
func (s *GenerationService) Run(ctx context.Context, lessonID, outline string) {
	tr := otel.Tracer("services/GenerationService")
	ctx, span := tr.Start(ctx, "Run",
		trace.WithAttributes(attribute.String("lesson.id", lessonID)),
	)
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("lesson_id", lessonID).
				Interface("panic", rec).
				Msg("generation panicked")
			s.markFailed(ctx, lessonID, fmt.Sprintf("generation panicked: %v", rec))
		}
	}()

	easterEgg := provider.IsEasterEgg(outline)
	prompt := provider.BuildPrompt(outline, easterEgg)
	startedAt := time.Now().UTC().Format(time.RFC3339)

	var lastErr error

	// Live attempts in priority order: secondary first, primary as the
	// nested fallback.
	if s.Secondary != nil {
		done, err := s.tryProvider(ctx, lessonID, s.Secondary, prompt, startedAt)
		if done {
			return
		}
		lastErr = err
		if s.Primary != nil {
			done, err = s.tryProvider(ctx, lessonID, s.Primary, prompt, startedAt)
			if done {
				return
			}
			lastErr = err
		}
	} else if s.Primary != nil {
		done, err := s.tryProvider(ctx, lessonID, s.Primary, prompt, startedAt)
		if done {
			return
		}
		lastErr = err
	}

	// Terminal fallback: the mock never fails, so every run that reaches
	// this point still ends "generated".
	mock := s.Mock
	if mock == nil {
		mock = provider.MockLesson
	}
	content := mock(outline, easterEgg)

	genTrace := domain.GenerationTrace{
		Prompt:    prompt,
		Timestamp: startedAt,
		Output:    content,
		Mock:      true,
	}
	if lastErr != nil {
		genTrace.FallbackReason = lastErr.Error()
	}

	if err := s.Repo.MarkLessonGenerated(ctx, s.DB, lessonID, content, genTrace); err != nil {
		log.Error().Err(err).Str("lesson_id", lessonID).Msg("terminal update failed")
		s.markFailed(ctx, lessonID, "failed to store generated content: "+err.Error())
		return
	}
	genRuns.WithLabelValues("mock", "generated").Inc()
	s.notify(ctx, lessonID, domain.StatusGenerated)
	log.Info().
		Str("lesson_id", lessonID).
		Bool("mock", true).
		Bool("fallback", lastErr != nil).
		Msg("lesson generated")
}

// tryProvider performs a single live attempt. done is true when a terminal
// update has been written (success, or a store failure that already
// triggered the Failed path); on an adapter failure it returns the error
// so the next link in the chain can record it as the fallback reason.
func (s *GenerationService) tryProvider(ctx context.Context, lessonID string, gen provider.Generator, prompt, startedAt string) (done bool, attemptErr error) {
	res, err := gen.Generate(ctx, prompt)
	if err != nil {
		log.Warn().
			Err(err).
			Str("lesson_id", lessonID).
			Str("provider", gen.Name()).
			Msg("provider attempt failed, falling back")
		return false, err
	}

	genTrace := domain.GenerationTrace{
		Prompt:    prompt,
		Timestamp: startedAt,
		Provider:  gen.Name(),
		Model:     res.Model,
		Output:    res.Text,
	}
	if err := s.Repo.MarkLessonGenerated(ctx, s.DB, lessonID, res.Text, genTrace); err != nil {
		log.Error().Err(err).Str("lesson_id", lessonID).Msg("terminal update failed")
		s.markFailed(ctx, lessonID, "failed to store generated content: "+err.Error())
		return true, nil // terminal state reached, do not continue the chain
	}

	genRuns.WithLabelValues(gen.Name(), "generated").Inc()
	s.notify(ctx, lessonID, domain.StatusGenerated)
	log.Info().
		Str("lesson_id", lessonID).
		Str("provider", gen.Name()).
		Str("model", res.Model).
		Str("response_id", res.ResponseID).
		Msg("lesson generated")
	return true, nil
}

// markFailed writes the Failed terminal state, best effort: a store that is
// down stays down, and nothing is retried.
func (s *GenerationService) markFailed(ctx context.Context, lessonID, msg string) {
	genTrace := domain.GenerationTrace{
		Error:     msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.Repo.MarkLessonFailed(ctx, s.DB, lessonID, genTrace); err != nil {
		log.Error().Err(err).Str("lesson_id", lessonID).Msg("failed-state write lost")
		return
	}
	genRuns.WithLabelValues("none", "failed").Inc()
	s.notify(ctx, lessonID, domain.StatusFailed)
}

// notify publishes a change event after a terminal update.
func (s *GenerationService) notify(ctx context.Context, lessonID, status string) {
	if s.Feed == nil {
		return
	}
	if err := s.Feed.Publish(ctx, realtime.Event{
		Type:     realtime.EventLessonUpdated,
		LessonID: lessonID,
		Status:   status,
	}); err != nil {
		log.Warn().Err(err).Str("lesson_id", lessonID).Msg("feed publish failed")
	}
}
