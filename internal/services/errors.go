// Package services defines the business logic for lesson creation and
// generation. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed
// at the handler layer.
package services

import "errors"

var (
	// ErrEmptyOutline is returned when a lesson-creation request contains
	// an empty or whitespace-only outline.
	ErrEmptyOutline = errors.New("outline is empty")

	// ErrLessonNotFound indicates that the requested lesson does not exist.
	ErrLessonNotFound = errors.New("lesson not found")
)
