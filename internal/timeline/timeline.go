// Package timeline reconstructs chronological event timelines from the
// ops warehouse's unified event view. It defines the Event model, the
// Store interface (persistence), and the Service that applies window
// validation, limit capping, and rendering.
package timeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

const (
	// DefaultLimit is used when a caller asks for zero or negative events.
	DefaultLimit = 200

	// MaxLimit is the hard cap on returned events regardless of the
	// requested limit.
	MaxLimit = 500
)

// Window selects a slice of the unified timeline.
type Window struct {
	Start        time.Time
	End          time.Time
	EntityFilter string // case-insensitive substring match on entity, empty = all
	Limit        int
}

// EffectiveLimit returns the limit after applying defaults and the hard cap.
func (w Window) EffectiveLimit() int {
	switch {
	case w.Limit <= 0:
		return DefaultLimit
	case w.Limit > MaxLimit:
		return MaxLimit
	}
	return w.Limit
}

// Store is the read-only persistence interface for the unified event view.
type Store interface {
	Events(ctx context.Context, w Window) ([]Event, error)
}

// Service is the business boundary for timeline reconstruction.
type Service struct {
	store  Store
	logger log.Logger
}

// NewService creates a timeline service.
func NewService(store Store, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{store: store, logger: logger}
}

// Reconstruct returns events in [w.Start, w.End] inclusive, ascending by
// occurrence time. An empty result is a valid outcome, not an error.
func (s *Service) Reconstruct(ctx context.Context, w Window) ([]Event, error) {
	events, err := s.store.Events(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("timeline events: %w", err)
	}

	s.logger.Info(ctx, "timeline reconstructed",
		"start", w.Start,
		"end", w.End,
		"entity_filter", w.EntityFilter,
		"events", len(events),
	)
	return events, nil
}

// Render produces the compact human-scannable timeline report: one line per
// event with a one-character source tag, second-precision timestamp,
// source/type, entity, and environment. This encoding is the contract for
// anything that stores or replays timeline output.
func Render(events []Event, w Window) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Incident Timeline** (%d events)\n", len(events))
	fmt.Fprintf(&b, "Window: %s → %s\n\n", w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339))

	for _, ev := range events {
		b.WriteString(ev.Line())
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderEmpty is the "no events" report for a window. Empty windows are a
// successful outcome and render as text, never as an error.
func RenderEmpty(w Window) string {
	msg := fmt.Sprintf("No events found between %s and %s",
		w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339))
	if w.EntityFilter != "" {
		msg += fmt.Sprintf(" for entity '%s'", w.EntityFilter)
	}
	return msg
}
