package tui

import (
	"context"
	"time"

	"github.com/kyukei-panda/timescribe/internal/api"
	"github.com/kyukei-panda/timescribe/internal/output"
	"github.com/kyukei-panda/timescribe/internal/runtime"
)

// Source supplies the dashboard with the timer status and applies the
// timer actions bound to keys.
type Source interface {
	Status(ctx context.Context) (*output.Status, error)
	Transition(ctx context.Context, action string) error
}

// LocalSource reads and writes the database directly.
type LocalSource struct {
	RT *runtime.Context
}

// Status implements Source.
func (s LocalSource) Status(ctx context.Context) (*output.Status, error) {
	return s.RT.Status(ctx)
}

// Transition implements Source.
func (s LocalSource) Transition(ctx context.Context, action string) error {
	_, err := s.RT.Transition(ctx, action, time.Time{}, "")
	return err
}

// RemoteSource goes through the daemon's HTTP API.
type RemoteSource struct {
	Client *api.Client
}

// Status implements Source.
func (s RemoteSource) Status(ctx context.Context) (*output.Status, error) {
	return s.Client.Status(ctx)
}

// Transition implements Source.
func (s RemoteSource) Transition(ctx context.Context, action string) error {
	_, err := s.Client.Transition(ctx, action, "", "")
	return err
}
