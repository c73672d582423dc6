// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound          = errors.New("not found")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Detection errors.
	ErrDetectionUnavailable = errors.New("detection unavailable")
	ErrDetectionActive      = errors.New("detection already active")
	ErrNoCandidates         = errors.New("classifier returned no candidates")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// CameraAccessError reports that the camera stream could not be acquired.
type CameraAccessError struct {
	Err              error
	Device           string
	PermissionDenied bool
}

func (e *CameraAccessError) Error() string {
	if e.PermissionDenied {
		return fmt.Sprintf("camera access denied for %s: %v", e.Device, e.Err)
	}
	return fmt.Sprintf("camera unavailable (%s): %v", e.Device, e.Err)
}

func (e *CameraAccessError) Unwrap() error {
	return e.Err
}

// Banner is the persistent message shown while the camera is unavailable.
func (e *CameraAccessError) Banner() string {
	if e.PermissionDenied {
		return "Camera permission denied. Grant access and restart detection."
	}
	return "Camera unavailable. Check the device and restart detection."
}

// ClassifierLoadError reports a bad or unreachable classifier configuration.
type ClassifierLoadError struct {
	Err error
	URL string
}

func (e *ClassifierLoadError) Error() string {
	return fmt.Sprintf("failed to load classifier from %s: %v", e.URL, e.Err)
}

func (e *ClassifierLoadError) Unwrap() error {
	return e.Err
}

// ClassifierInferenceError reports a failed prediction for a single frame.
type ClassifierInferenceError struct {
	Err      error
	Sequence uint64
}

func (e *ClassifierInferenceError) Error() string {
	return fmt.Sprintf("inference failed for frame %d: %v", e.Sequence, e.Err)
}

func (e *ClassifierInferenceError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
