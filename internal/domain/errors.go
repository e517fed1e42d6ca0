package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by the core wraps exactly one of these.
var (
	ErrNotFound          = errors.New("not found")
	ErrAttemptNotAllowed = errors.New("attempt not allowed")
	ErrInvalidInput      = errors.New("invalid input")
)

var (
	// ErrQuizNotFound indicates the quiz is absent or unpublished.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrQuestionNotFound indicates a submitted question id is not part of the attempt's quiz.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	// ErrClueNotFound indicates a submitted clue id is not part of the attempt's quiz.
	ErrClueNotFound = fmt.Errorf("clue %w", ErrNotFound)
	// ErrAttemptNotFound covers missing, foreign and already submitted attempts.
	ErrAttemptNotFound = fmt.Errorf("active attempt %w", ErrNotFound)

	// ErrQuizInactive is returned outside the quiz time window.
	ErrQuizInactive = fmt.Errorf("%w: quiz is not active", ErrAttemptNotAllowed)
	// ErrAttemptLimitReached is returned once max_attempts submitted attempts exist.
	ErrAttemptLimitReached = fmt.Errorf("%w: attempt limit reached", ErrAttemptNotAllowed)

	// ErrInvalidOption is returned for MCQ values other than A, B, C or D.
	ErrInvalidOption = fmt.Errorf("%w: option must be one of A, B, C, D", ErrInvalidInput)
	// ErrMissingField is returned when a required request field is empty.
	ErrMissingField = fmt.Errorf("%w: missing required field", ErrInvalidInput)
	// ErrUnknownItemKind is returned for item references that are neither mcq nor crossword.
	ErrUnknownItemKind = fmt.Errorf("%w: unknown item kind", ErrInvalidInput)
)
