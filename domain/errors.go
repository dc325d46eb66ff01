package domain

import (
	"errors"
	"fmt"
)

// ErrNoSpeechDetected is returned by a recognizer when the audio holds no recognizable speech.
var ErrNoSpeechDetected = errors.New("no speech detected")

// ServiceError is a transient failure of the recognition service. It is retried once.
type ServiceError struct {
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s service error", e.Service)
	}
	return fmt.Sprintf("%s service error: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// ConversionError reports that the source could not be turned into the canonical waveform.
type ConversionError struct {
	Stage   string
	Message string
	Stderr  string
	Err     error
}

func (e *ConversionError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "audio conversion failed"
	}
	if e.Stage != "" {
		msg = e.Stage + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// SegmentationError is returned when not even the fixed-window pass can produce a segment.
type SegmentationError struct {
	Message string
}

func (e *SegmentationError) Error() string {
	return "segmentation failed: " + e.Message
}

// UnexpectedError wraps a failure the pipeline has no specific handling for.
type UnexpectedError struct {
	Err   error
	Trace string
}

func (e *UnexpectedError) Error() string {
	return e.Err.Error()
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}

// ValidationError rejects a request before any job is created
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsServiceError reports whether err is, or wraps, a *ServiceError.
func IsServiceError(err error) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr)
}

// ErrUploadNotFound is returned when a stored upload does not exist
var ErrUploadNotFound = errors.New("upload not found")
