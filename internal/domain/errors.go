package domain

import (
	"errors"
	"fmt"
)

// ErrCycleInProgress is returned when a poll cycle is requested while another one runs.
var ErrCycleInProgress = errors.New("poll cycle already in progress")

// ErrUnknownSource is returned when a source name is not registered.
var ErrUnknownSource = errors.New("source is not registered")

// ErrSchedulerStopped is returned when a poll cycle is requested after shutdown began.
var ErrSchedulerStopped = errors.New("poll scheduler stopped")

// FetchError reports a transport or parse failure of one source.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch source %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ClassificationError reports a label model failure for one article.
type ClassificationError struct {
	ArticleID string
	Err       error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify article %s: %v", e.ArticleID, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// PersistenceError reports a failed store write for one article.
type PersistenceError struct {
	Source    string
	ArticleID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist article %s/%s: %v", e.Source, e.ArticleID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError rejects one externally submitted article.
type ValidationError struct {
	Index  int
	ID     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("article %d (%s): %s %s", e.Index, e.ID, e.Field, e.Reason)
	}
	return fmt.Sprintf("article %d: %s %s", e.Index, e.Field, e.Reason)
}
