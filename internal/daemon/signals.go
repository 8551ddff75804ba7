package daemon

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// shutdownSignals end the daemon.
var shutdownSignals = []os.Signal{
	syscall.SIGINT,  // Ctrl+C
	syscall.SIGTERM, // daemon stop, service managers
	syscall.SIGHUP,  // terminal hangup
}

// SignalHandler turns shutdown signals into context cancellation.
type SignalHandler struct {
	signals  chan os.Signal
	mu       sync.Mutex
	received os.Signal
}

// NewSignalHandler creates a new signal handler.
func NewSignalHandler() *SignalHandler {
	return &SignalHandler{signals: make(chan os.Signal, 1)}
}

// Context returns a child of parent that is cancelled on the first shutdown
// signal. Call the returned stop function to release the registration.
func (h *SignalHandler) Context(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	signal.Notify(h.signals, shutdownSignals...)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-h.signals:
			h.mu.Lock()
			h.received = sig
			h.mu.Unlock()
			cancel()
		case <-ctx.Done():
		case <-done:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			signal.Stop(h.signals)
			close(done)
			cancel()
		})
	}
}

// Received returns the signal that ended the daemon, or nil.
func (h *SignalHandler) Received() os.Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.received
}
