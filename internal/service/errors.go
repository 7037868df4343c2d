package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MimeLyc/hardsub-pipeline/pkg/log"
)

type ErrorType int

const (
	ErrEmptyDiscovery ErrorType = iota
	ErrStageProcessFailure
	ErrMissingArtifact
	ErrCollaboratorUnavailable
	ErrCheckpoint
	ErrSetup
	ErrConfig
	ErrUnknown
)

// PipelineError describes why a batch or a single item stopped.
//
// Stage is the step that failed ("audio-extraction", "transcription",
// "burn-in", "checkpoint"), empty for batch level errors. Detail holds the
// collaborator's captured diagnostic output.
type PipelineError struct {
	Type    ErrorType
	Stage   string
	Stem    string
	Message string
	Detail  string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *PipelineError {
	return &PipelineError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

// newStageError is the item level constructor used by Pipeline
func newStageError(errorType ErrorType, item *WorkItem, stage, message string) *PipelineError {
	err := NewError(errorType, message)
	err.Stage = stage
	if item != nil {
		err.Stem = item.Stem
	}
	return err
}

func (e *PipelineError) Error() string {
	var parts []string
	head := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.Stage != "" {
		head = fmt.Sprintf("[%s] %s: %s", e.Type.String(), e.Stage, e.Message)
	}
	parts = append(parts, head)

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	if e.Detail != "" {
		parts = append(parts, "\n"+e.Detail)
	}

	return strings.Join(parts, " | ")
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func (e *PipelineError) WithContext(key string, value any) *PipelineError {
	e.Context[key] = value
	return e
}

func (e *PipelineError) WithDetail(detail string) *PipelineError {
	e.Detail = detail
	return e
}

func (e *PipelineError) WithCause(cause error) *PipelineError {
	e.Cause = cause
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrEmptyDiscovery:
		return "EmptyDiscovery"
	case ErrStageProcessFailure:
		return "StageProcessFailure"
	case ErrMissingArtifact:
		return "MissingExpectedArtifact"
	case ErrCollaboratorUnavailable:
		return "CollaboratorUnavailable"
	case ErrCheckpoint:
		return "Checkpoint"
	case ErrSetup:
		return "Setup"
	case ErrConfig:
		return "Config"
	default:
		return "Unknown"
	}
}

type ErrorHandler interface {
	Handle(err error) bool
	GetAdvice(err *PipelineError) string
}

type DefaultErrorHandler struct{}

func NewDefaultErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{}
}

func (h *DefaultErrorHandler) Handle(err error) bool {
	var pErr *PipelineError
	if !errors.As(err, &pErr) {
		log.Error("Unknown Error: %v", err)
		return false
	}

	advice := h.GetAdvice(pErr)
	log.Error("Error Detail: %v\n advice: %s", err, advice)

	return true
}

// GetAdvice returns error handling advice
func (h *DefaultErrorHandler) GetAdvice(err *PipelineError) string {
	switch err.Type {
	case ErrEmptyDiscovery:
		return "Put source videos into the input directory"
	case ErrStageProcessFailure:
		return "Check the collaborator output above; rerun the batch once the cause is fixed"
	case ErrMissingArtifact:
		return "The collaborator exited cleanly but did not produce its output; check its output directory arguments"
	case ErrCollaboratorUnavailable:
		return "Install the missing tool or point EXTRACT_CMD, TRANSCRIBE_CMD or BURN_CMD at it"
	case ErrCheckpoint:
		return "Check that the archive directories are writable and on the same filesystem"
	case ErrSetup:
		return "Please ensure the output directories can be created and are writable"
	case ErrConfig:
		return "Please check that the settings file or environment variables are set correctly"
	default:
		return "Please review detailed error information and check relevant configuration and files"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var pErr *PipelineError
	if errors.As(err, &pErr) {
		return pErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *PipelineError {
	return NewErrorWithCause(errorType, message, err)
}

// SafeExecute runs fn and turns a panic into an ErrUnknown error
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
