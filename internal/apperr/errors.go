package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrNotOwned  = errors.New("planet is not owned by this node")
	ErrLeaseHeld = errors.New("planet is busy")
)

type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func NewValidation(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func NewValidationWrap(msg string, err error) *ValidationError {
	return &ValidationError{Message: msg, Err: err}
}

// FetchError is a transport failure or a non-200 response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewFetchStatus(url string, status int) *FetchError {
	return &FetchError{URL: url, StatusCode: status}
}

func NewFetchWrap(url string, err error) *FetchError {
	return &FetchError{URL: url, Err: err}
}

// ParseError means a whole feed document could not be understood.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "parse feed: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func NewParse(err error) *ParseError {
	return &ParseError{Err: err}
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func NewPersistence(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

type PublishStage string

const (
	StageRender  PublishStage = "render"
	StagePublish PublishStage = "publish"
	StagePointer PublishStage = "pointer"
)

// PublishStageError aborts a publish run. Stages completed before it are kept.
type PublishStageError struct {
	Stage PublishStage
	Err   error
}

func (e *PublishStageError) Error() string {
	return fmt.Sprintf("publish stage %s: %v", e.Stage, e.Err)
}

func (e *PublishStageError) Unwrap() error {
	return e.Err
}

func NewPublishStage(stage PublishStage, err error) *PublishStageError {
	return &PublishStageError{Stage: stage, Err: err}
}

func IsFetchFailure(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

func IsParseFailure(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func IsPersistenceFailure(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsRetryable reports failures the next scheduler cycle is expected to clear.
func IsRetryable(err error) bool {
	return IsFetchFailure(err) || IsPersistenceFailure(err) || errors.Is(err, ErrLeaseHeld)
}
