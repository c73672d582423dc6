package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/dosewatch/internal/service"
)

// maxPending bounds messages held before the dashboard starts.
const maxPending = 16

// Bridge is a Notifier and Tone that delivers into a running dashboard
// instead of writing to the terminal the dashboard owns. Messages sent
// before the program attaches are queued.
type Bridge struct {
	clock   service.Clock
	bell    service.Tone
	program *tea.Program
	pending []tea.Msg
	mu      sync.Mutex
}

// NewBridge creates a bridge. bell is played from the dashboard's update
// loop when a tone is requested; nil keeps the dashboard silent.
func NewBridge(bell service.Tone, clock service.Clock) *Bridge {
	if clock == nil {
		clock = service.SystemClock{}
	}
	return &Bridge{bell: bell, clock: clock}
}

// Notify queues a notice for the dashboard. It never fails.
func (b *Bridge) Notify(_ context.Context, title, body string) error {
	b.send(noticeMsg{title: title, body: body, at: b.clock.Now()})
	return nil
}

// Play asks the dashboard to ring the bell.
func (b *Bridge) Play() {
	b.send(toneMsg{})
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	p := b.program
	if p == nil {
		if len(b.pending) == maxPending {
			b.pending = b.pending[1:]
		}
		b.pending = append(b.pending, msg)
	}
	b.mu.Unlock()

	if p != nil {
		p.Send(msg)
	}
}

func (b *Bridge) attach(p *tea.Program) {
	b.mu.Lock()
	b.program = p
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, msg := range pending {
		p.Send(msg)
	}
}

// detach stops delivery; later messages queue again.
func (b *Bridge) detach() {
	b.mu.Lock()
	b.program = nil
	b.mu.Unlock()
}
