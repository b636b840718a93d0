// Auditrail - Asynchronous Request Audit Trail
// Copyright 2026 N. Vallette (nvallette)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvallette/auditrail

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/nvallette/auditrail/internal/logging"
)

// DuckDBStore implements Store using DuckDB for durable persistence.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore creates a new DuckDB-backed audit store.
// Call CreateTable during initialization before first use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the audit_logs table and its indexes if absent.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			actor_id TEXT,
			actor_email TEXT,
			action TEXT NOT NULL,
			resource_type TEXT,
			resource_id TEXT,
			previous_value JSON,
			new_value JSON,
			client_ip TEXT,
			user_agent TEXT,
			metadata JSON,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_audit_actor_id ON audit_logs(actor_id);
		CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_logs(action);
		CREATE INDEX IF NOT EXISTS idx_audit_resource_type ON audit_logs(resource_type);
		CREATE INDEX IF NOT EXISTS idx_audit_resource_id ON audit_logs(resource_id);
		CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_logs(created_at DESC);
	`

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	logging.Info().Msg("Audit logs table created/verified")
	return nil
}

// Create persists a record, assigning ID and CreatedAt if unset.
func (s *DuckDBStore) Create(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Action == "" {
		rec.Action = ActionCustom
	}

	query := `
		INSERT INTO audit_logs (
			id, actor_id, actor_email, action, resource_type, resource_id,
			previous_value, new_value, client_ip, user_agent, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.ActorID,
		rec.ActorEmail,
		string(rec.Action),
		rec.ResourceType,
		rec.ResourceID,
		marshalValueMap(rec.PreviousValue),
		marshalValueMap(rec.NewValue),
		rec.ClientIP,
		rec.UserAgent,
		marshalValueMap(rec.Metadata),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save audit record: %w", err)
	}
	return nil
}

// marshalValueMap marshals a nested value map to a JSON string for DuckDB.
func marshalValueMap(m map[string]any) *string {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	str := string(data)
	return &str
}

// GetByID returns the record with the given ID, or ErrNotFound.
func (s *DuckDBStore) GetByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM audit_logs WHERE id = ?", id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get audit record: %w", err)
	}
	return rec, nil
}

// FindByActor lists records for one actor ID.
func (s *DuckDBStore) FindByActor(ctx context.Context, actorID string, opts ListOptions) (*Page, error) {
	return s.page(ctx, "actor_id = ?", []any{actorID}, opts)
}

// FindByAction lists records with one action type.
func (s *DuckDBStore) FindByAction(ctx context.Context, action ActionType, opts ListOptions) (*Page, error) {
	return s.page(ctx, "action = ?", []any{string(action)}, opts)
}

// FindByResource lists records for a resource type, optionally narrowed to a
// single resource ID.
func (s *DuckDBStore) FindByResource(ctx context.Context, resourceType, resourceID string, opts ListOptions) (*Page, error) {
	if resourceID != "" {
		return s.page(ctx, "resource_type = ? AND resource_id = ?", []any{resourceType, resourceID}, opts)
	}
	return s.page(ctx, "resource_type = ?", []any{resourceType}, opts)
}

// FindByDateRange lists records with start <= created_at < end.
func (s *DuckDBStore) FindByDateRange(ctx context.Context, start, end time.Time, opts ListOptions) (*Page, error) {
	return s.page(ctx, "created_at >= ? AND created_at < ?", []any{start, end}, opts)
}

// FindAll lists all records.
func (s *DuckDBStore) FindAll(ctx context.Context, opts ListOptions) (*Page, error) {
	return s.page(ctx, "", nil, opts)
}

// DeleteOlderThan removes records created strictly before the cutoff.
func (s *DuckDBStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM audit_logs WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit records: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	return count, nil
}

// page runs the count and select queries for one filtered page.
func (s *DuckDBStore) page(ctx context.Context, where string, args []any, opts ListOptions) (*Page, error) {
	opts = opts.normalize()

	countQuery := "SELECT COUNT(*) FROM audit_logs"
	listQuery := selectColumns + " FROM audit_logs"
	if where != "" {
		countQuery += " WHERE " + where
		listQuery += " WHERE " + where
	}
	listQuery += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", opts.Limit, opts.Offset)

	var total int64
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count audit records: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, opts.Limit)
	for rows.Next() {
		rec, err := scanRecordFromRows(rows)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to scan audit record row")
			continue
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return &Page{Records: records, Total: total}, nil
}

// selectColumns casts JSON columns to VARCHAR for proper scanning.
const selectColumns = `
	SELECT
		id, actor_id, actor_email, action, resource_type, resource_id,
		CAST(previous_value AS VARCHAR) AS previous_value,
		CAST(new_value AS VARCHAR) AS new_value,
		client_ip, user_agent,
		CAST(metadata AS VARCHAR) AS metadata,
		created_at`

// scannedRecordData holds raw scanned values from the database.
type scannedRecordData struct {
	rec           Record
	action        string
	actorID       sql.NullString
	actorEmail    sql.NullString
	resourceType  sql.NullString
	resourceID    sql.NullString
	previousValue sql.NullString
	newValue      sql.NullString
	clientIP      sql.NullString
	userAgent     sql.NullString
	metadata      sql.NullString
}

func (d *scannedRecordData) scanDestinations() []any {
	return []any{
		&d.rec.ID,
		&d.actorID,
		&d.actorEmail,
		&d.action,
		&d.resourceType,
		&d.resourceID,
		&d.previousValue,
		&d.newValue,
		&d.clientIP,
		&d.userAgent,
		&d.metadata,
		&d.rec.CreatedAt,
	}
}

func (d *scannedRecordData) toRecord() *Record {
	d.rec.Action = ActionType(d.action)
	d.rec.ActorID = d.actorID.String
	d.rec.ActorEmail = d.actorEmail.String
	d.rec.ResourceType = d.resourceType.String
	d.rec.ResourceID = d.resourceID.String
	d.rec.ClientIP = d.clientIP.String
	d.rec.UserAgent = d.userAgent.String
	d.rec.PreviousValue = unmarshalValueMap(d.previousValue)
	d.rec.NewValue = unmarshalValueMap(d.newValue)
	d.rec.Metadata = unmarshalValueMap(d.metadata)
	return &d.rec
}

// unmarshalValueMap parses a JSON column back into a nested value map.
func unmarshalValueMap(ns sql.NullString) map[string]any {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		logging.Debug().Err(err).Msg("Failed to parse audit value JSON")
		return nil
	}
	return m
}

func scanRecord(row *sql.Row) (*Record, error) {
	var data scannedRecordData
	if err := row.Scan(data.scanDestinations()...); err != nil {
		return nil, err
	}
	return data.toRecord(), nil
}

func scanRecordFromRows(rows *sql.Rows) (*Record, error) {
	var data scannedRecordData
	if err := rows.Scan(data.scanDestinations()...); err != nil {
		return nil, err
	}
	return data.toRecord(), nil
}
