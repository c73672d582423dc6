// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/Veraticus/dosewatch/internal/model"
)

// InterruptHandler is the process wide signal path. The first SIGINT or
// SIGTERM cancels the command context; the closing summary is printed by
// the command after detection has stopped and the terminal is restored.
type InterruptHandler struct {
	writer      io.Writer
	signals     chan os.Signal
	cancel      context.CancelFunc
	interrupted bool
	mu          sync.Mutex
}

// NewInterruptHandler creates a new interrupt handler.
func NewInterruptHandler(writer io.Writer) *InterruptHandler {
	if writer == nil {
		writer = os.Stdout
	}
	return &InterruptHandler{
		writer:  writer,
		signals: make(chan os.Signal, 1),
	}
}

// HandleInterrupts returns a context canceled by the first signal. stop
// releases signal delivery and cancels the context.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	signal.Notify(h.signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-h.signals:
			h.interrupt(sig)
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(h.signals)
		cancel()
	}
}

func (h *InterruptHandler) interrupt(sig os.Signal) {
	h.mu.Lock()
	first := !h.interrupted
	h.interrupted = true
	cancel := h.cancel
	h.mu.Unlock()

	if first {
		slog.Info("Received signal, stopping", "signal", sig.String())
	}
	if cancel != nil {
		cancel()
	}
}

// WasInterrupted returns true if the process was interrupted.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

// Summary prints the closing adherence stats. An interrupted watch also
// gets the resume hint.
func (h *InterruptHandler) Summary(stats model.Stats) {
	interrupted := h.WasInterrupted()

	var b strings.Builder
	if interrupted {
		b.WriteString("\n" + FormatWarning("Detection stopped.") + "\n")
	}
	b.WriteString(RenderStats(stats) + "\n")
	if interrupted {
		b.WriteString(FormatInfo("Adherence history is saved. Resume with: dosewatch watch") + "\n")
	}

	if _, err := fmt.Fprint(h.writer, b.String()); err != nil {
		slog.Debug("Failed to write summary", "error", err)
	}
}
