// Package pgstore provides a PostgreSQL implementation of incident.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/opsdash/internal/incident"
)

var tracer = otel.Tracer("github.com/linnemanlabs/opsdash/internal/incident/pgstore")

//go:embed schema.sql
var schema string

// Store persists incident markers in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const incidentColumns = `id, title, severity, started_at, resolved_at,
	affected_services, root_cause, resolution, timeline_query, knowledge_pack`

// Create inserts a new incident marker and returns its assigned id.
func (s *Store) Create(ctx context.Context, inc *incident.Incident) (int64, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Create", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	packJSON, err := json.Marshal(inc.Pack)
	if err != nil {
		return 0, fmt.Errorf("marshal knowledge pack: %w", err)
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO incident_markers
			(title, severity, started_at, resolved_at, affected_services, root_cause, resolution, timeline_query, knowledge_pack)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		inc.Title, string(inc.Severity), inc.StartedAt, inc.ResolvedAt, inc.AffectedServices,
		nullable(inc.RootCause), nullable(inc.Resolution), inc.TimelineQuery, packJSON,
	).Scan(&id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("insert incident: %w", err)
	}

	span.SetAttributes(attribute.Int64("opsdash.incident.id", id))
	return id, nil
}

// Get retrieves an incident marker by id.
func (s *Store) Get(ctx context.Context, id int64) (*incident.Incident, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + incidentColumns + ` FROM incident_markers WHERE id = $1`
	inc, err := scanIncident(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if inc == nil {
		return nil, false, nil
	}
	return inc, true, nil
}

// Resolve performs the conditional close: a single UPDATE guarded by
// resolved_at IS NULL, so two concurrent resolutions yield exactly one
// winner. ok=false means no open incident with that id exists.
func (s *Store) Resolve(ctx context.Context, id int64, resolvedAt time.Time, rootCause, resolution string, pack incident.KnowledgePack) (*incident.Incident, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Resolve", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	packJSON, err := json.Marshal(pack)
	if err != nil {
		return nil, false, fmt.Errorf("marshal knowledge pack: %w", err)
	}

	query := `UPDATE incident_markers
		SET resolved_at = $2, root_cause = $3, resolution = $4, knowledge_pack = $5
		WHERE id = $1 AND resolved_at IS NULL
		RETURNING ` + incidentColumns

	inc, err := scanIncident(s.pool.QueryRow(ctx, query, id, resolvedAt, rootCause, resolution, packJSON))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if inc == nil {
		return nil, false, nil
	}
	return inc, true, nil
}

// Search returns incidents matching the filter, most recent first. Service
// and keyword conditions are OR-combined.
func (s *Store) Search(ctx context.Context, f incident.SearchFilter) ([]incident.Incident, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Search", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var conditions []string
	var args []any

	if len(f.Services) > 0 {
		args = append(args, f.Services)
		conditions = append(conditions, fmt.Sprintf("affected_services && $%d::TEXT[]", len(args)))
	}
	if f.Keyword != "" {
		args = append(args, "%"+f.Keyword+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR root_cause ILIKE $%d)", n, n))
	}

	args = append(args, f.Limit)
	query := `SELECT ` + incidentColumns + ` FROM incident_markers WHERE ` +
		strings.Join(conditions, " OR ") +
		fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("search incidents: %w", err)
	}
	defer rows.Close()

	var matches []incident.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		matches = append(matches, *inc)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}

	span.SetAttributes(attribute.Int("opsdash.incident.matches", len(matches)))
	return matches, nil
}

// UpdateKnowledgePack replaces the stored pack document.
func (s *Store) UpdateKnowledgePack(ctx context.Context, id int64, pack incident.KnowledgePack) error {
	ctx, span := tracer.Start(ctx, "pgstore.UpdateKnowledgePack", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	packJSON, err := json.Marshal(pack)
	if err != nil {
		return fmt.Errorf("marshal knowledge pack: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE incident_markers SET knowledge_pack = $2 WHERE id = $1`, id, packJSON)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("update knowledge pack: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update knowledge pack: incident %d: %w", id, incident.ErrNotFound)
	}
	return nil
}

// scanIncident scans one incident row. Returns (nil, nil) when no row is
// found.
func scanIncident(row pgx.Row) (*incident.Incident, error) {
	var (
		inc        incident.Incident
		severity   string
		rootCause  *string
		resolution *string
		packJSON   []byte
	)

	err := row.Scan(
		&inc.ID, &inc.Title, &severity, &inc.StartedAt, &inc.ResolvedAt,
		&inc.AffectedServices, &rootCause, &resolution, &inc.TimelineQuery, &packJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan incident: %w", err)
	}

	inc.Severity = incident.Severity(severity)
	if rootCause != nil {
		inc.RootCause = *rootCause
	}
	if resolution != nil {
		inc.Resolution = *resolution
	}
	if len(packJSON) > 0 {
		if err := json.Unmarshal(packJSON, &inc.Pack); err != nil {
			return nil, fmt.Errorf("unmarshal knowledge pack: %w", err)
		}
	}
	return &inc, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
