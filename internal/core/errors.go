package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable is returned when the message source is missing or not ready
	ErrSourceUnavailable = errors.New("message source unavailable")
	// ErrMessageNotFound is returned when a requested message is not in the visible set
	ErrMessageNotFound = errors.New("no message found")
)

// ClassificationErrorKind names the failure class of a remote classification
type ClassificationErrorKind string

const (
	KindTransport ClassificationErrorKind = "transport"
	KindTimeout   ClassificationErrorKind = "timeout"
	KindStatus    ClassificationErrorKind = "status"
	KindDecode    ClassificationErrorKind = "decode"
)

// ClassificationError is returned when the remote classifier could not produce a verdict
type ClassificationError struct {
	Kind       ClassificationErrorKind
	StatusCode int
	Err        error
}

func (e *ClassificationError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("classification failed: unexpected status %d", e.StatusCode)
	}
	if e.Err == nil {
		return fmt.Sprintf("classification failed: %s", e.Kind)
	}
	return fmt.Sprintf("classification failed (%s): %v", e.Kind, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}
