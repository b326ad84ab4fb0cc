// Package domain defines the persistence models for lessons. These types are
// mapped with GORM and form the core data layer of the lesson-generation
// application.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Lesson status values. A lesson is created as StatusGenerating and receives
// exactly one terminal transition, to StatusGenerated or StatusFailed.
const (
	StatusGenerating = "generating"
	StatusGenerated  = "generated"
	StatusFailed     = "failed"
)

// GenerationTrace is the structured diagnostic record describing which
// generation path produced a lesson's final content. It is built once per
// orchestrator run and stored as a JSON column on the lesson row.
//
// Provider and Model are empty for mock-generated content. FallbackReason is
// set when a live provider attempt failed and the chain advanced. Error is
// only set on terminal failure.
type GenerationTrace struct {
	Prompt         string `json:"prompt"`
	Timestamp      string `json:"timestamp"`
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
	Output         string `json:"output,omitempty"`
	Mock           bool   `json:"mock,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Lesson represents a single generated lesson. The outline is user input and
// immutable after creation; title is derived from the outline at creation
// time; content and trace are written by the generation orchestrator in one
// terminal update.
//
// Invariants enforced by the service layer:
//   - status = generating ⇒ content is NULL
//   - status = generated  ⇒ content is non-empty and trace is present
//   - status = failed     ⇒ content is NULL and trace carries an error
type Lesson struct {
	ID        string                                     `json:"id"         gorm:"type:char(36);primaryKey"`
	Outline   string                                     `json:"outline"    gorm:"type:text;not null"`
	Title     string                                     `json:"title"      gorm:"type:varchar(255);not null"`
	Content   *string                                    `json:"content,omitempty" gorm:"type:text"`
	Status    string                                     `json:"status"     gorm:"type:varchar(16);not null;index;check:status IN ('generating','generated','failed')"`
	Trace     *datatypes.JSONType[GenerationTrace]       `json:"trace,omitempty" gorm:"type:text"`
	CreatedAt time.Time                                  `json:"created_at" gorm:"index"`
	UpdatedAt time.Time                                  `json:"updated_at"`
}

// TableName returns the database table name for Lesson.
func (Lesson) TableName() string { return "lessons" }

// TraceData returns the decoded trace, or nil when none has been stored yet.
func (l *Lesson) TraceData() *GenerationTrace {
	if l.Trace == nil {
		return nil
	}
	t := l.Trace.Data()
	return &t
}
