package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Veraticus/dosewatch/internal/model"
)

// Notification is one delivered notification.
type Notification struct {
	Title string
	Body  string
}

// RecordingNotifier captures notifications in memory.
type RecordingNotifier struct {
	Err  error
	sent []Notification
	mu   sync.Mutex
}

// Notify records the notification and returns n.Err.
func (n *RecordingNotifier) Notify(_ context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{Title: title, Body: body})
	return n.Err
}

// Sent returns a copy of every notification received.
func (n *RecordingNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

// CountingTone counts how often the confirmation tone played.
type CountingTone struct {
	plays atomic.Int32
}

// Play increments the counter.
func (c *CountingTone) Play() {
	c.plays.Add(1)
}

// Plays returns the number of plays so far.
func (c *CountingTone) Plays() int {
	return int(c.plays.Load())
}

// StaticFrames is a FrameSource that always yields the same frame.
type StaticFrames struct {
	OpenErr error
	seq     atomic.Uint64
	opened  atomic.Bool
	closed  atomic.Int32
}

// Open marks the source opened or returns OpenErr.
func (s *StaticFrames) Open(context.Context) error {
	if s.OpenErr != nil {
		return s.OpenErr
	}
	s.opened.Store(true)
	return nil
}

// Next returns a small placeholder frame.
func (s *StaticFrames) Next(context.Context) (model.Frame, error) {
	return model.Frame{
		Sequence:    s.seq.Add(1),
		Source:      "static",
		ContentType: "image/jpeg",
		Data:        []byte{0xff, 0xd8, 0xff},
	}, nil
}

// Close records the release.
func (s *StaticFrames) Close() error {
	s.opened.Store(false)
	s.closed.Add(1)
	return nil
}

// IsOpen reports whether Open succeeded without a matching Close.
func (s *StaticFrames) IsOpen() bool {
	return s.opened.Load()
}

// Closes returns how many times Close was called.
func (s *StaticFrames) Closes() int {
	return int(s.closed.Load())
}
