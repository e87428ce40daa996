// Package pgstore provides a PostgreSQL implementation of timeline.Store
// backed by the ops_unified_timeline view.
package pgstore

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/opsdash/internal/timeline"
)

var tracer = otel.Tracer("github.com/linnemanlabs/opsdash/internal/timeline/pgstore")

// Store reads the unified event view. The view itself is maintained by the
// warehouse ETL, so no schema is applied here.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store using the given connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Events returns events in the window, ascending by occurred_at, capped at
// the window's effective limit.
func (s *Store) Events(ctx context.Context, w timeline.Window) ([]timeline.Event, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Events", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT occurred_at, source, event_type, entity, environment, details
		FROM ops_unified_timeline
		WHERE occurred_at BETWEEN $1 AND $2`
	args := []any{w.Start, w.End}

	if w.EntityFilter != "" {
		query += ` AND entity ILIKE $3`
		args = append(args, "%"+w.EntityFilter+"%")
	}
	query += fmt.Sprintf(` ORDER BY occurred_at LIMIT $%d`, len(args)+1)
	args = append(args, w.EffectiveLimit())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	var events []timeline.Event
	for rows.Next() {
		var (
			ev          timeline.Event
			entity      *string
			environment *string
		)
		if err := rows.Scan(&ev.OccurredAt, &ev.Source, &ev.EventType, &entity, &environment, &ev.Details); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if entity != nil {
			ev.Entity = *entity
		}
		if environment != nil {
			ev.Environment = *environment
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	span.SetAttributes(attribute.Int("opsdash.timeline.events", len(events)))
	return events, nil
}
