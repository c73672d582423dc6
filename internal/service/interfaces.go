// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/dosewatch/internal/model"
)

// Blob store keys.
const (
	KeyAdherenceData = "adherence_data"
	KeyClassifierURL = "classifier_url"
)

// BlobStore defines the contract for our persistence layer: opaque values
// under fixed string keys.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Classifier turns a frame into ranked label probabilities.
type Classifier interface {
	Predict(ctx context.Context, frame model.Frame) ([]model.Prediction, error)
	Labels() []model.DetectionLabel
}

// ClassifierLoader builds a Classifier from a configuration URL.
type ClassifierLoader interface {
	Load(ctx context.Context, configURL string) (Classifier, error)
}

// FrameSource is a camera stream. Open acquires the device, Close releases it.
type FrameSource interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) (model.Frame, error)
	Close() error
}

// Notifier delivers a system notification. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Tone plays the audible confirmation for an accepted dose.
type Tone interface {
	Play()
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Clock abstracts wall-clock time so periodic work can be tested.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// SystemClock is the real wall clock.
type SystemClock struct{}

// Now returns the current local time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules f on the runtime timer.
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
