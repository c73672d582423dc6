package cli

import (
	"io"
	"os"
	"sync"
)

// Bell plays the confirmation tone by ringing the terminal bell.
type Bell struct {
	w  io.Writer
	mu sync.Mutex
}

// NewBell creates a bell on w; nil selects stderr.
func NewBell(w io.Writer) *Bell {
	if w == nil {
		w = os.Stderr
	}
	return &Bell{w: w}
}

// Play rings once.
func (b *Bell) Play() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = io.WriteString(b.w, "\a")
}

// Silent is a Tone that does nothing.
type Silent struct{}

// Play does nothing.
func (Silent) Play() {}
