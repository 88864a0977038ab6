// Package audit persists terminal command outcomes to the command_log
// table and answers history queries over them.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/jarvis-core/internal/orchestrator"
)

// CommandRecord is one row of the command_log table.
type CommandRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Source      string    `json:"source"`
	Input       string    `json:"input,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	Action      string    `json:"action,omitempty"`
	Room        string    `json:"room,omitempty"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	FailedRooms string    `json:"failed_rooms,omitempty"`
	LatencyMS   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter controls which command records to return.
type Filter struct {
	UserID string // optional: filter by user
	Status string // optional: filter by terminal status (success, rejected, failed)
	Kind   string // optional: filter by device kind
	Limit  int    // default 50, max 200
	Offset int    // pagination offset
}

// Pagination bounds for List.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ListResult contains paginated command history.
type ListResult struct {
	Records []CommandRecord `json:"records"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// Repository defines command log persistence operations.
type Repository interface {
	RecordOutcome(ctx context.Context, o *orchestrator.Outcome) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores command records in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a command log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordOutcome inserts a terminal outcome into the command log.
func (r *SQLiteRepository) RecordOutcome(ctx context.Context, o *orchestrator.Outcome) error {
	rec := fromOutcome(o)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log
		   (id, user_id, source, input, kind, action, room, status, reason, detail, failed_rooms, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Source,
		nullableString(rec.Input), nullableString(rec.Kind),
		nullableString(rec.Action), nullableString(rec.Room),
		rec.Status, nullableString(rec.Reason), nullableString(rec.Detail),
		nullableString(rec.FailedRooms),
		rec.LatencyMS, rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting command record: %w", err)
	}
	return nil
}

// List returns command records matching the filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// WHERE is assembled from fixed parameterised conditions, never from
	// caller-supplied SQL.
	countQuery := "SELECT COUNT(*) FROM command_log " + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command records: %w", err)
	}

	query := "SELECT id, user_id, source, input, kind, action, room, status, reason, detail, failed_rooms, latency_ms, created_at FROM command_log " +
		where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command records: %w", err)
	}
	defer rows.Close()

	var records []CommandRecord
	for rows.Next() {
		var rec CommandRecord
		var input, kind, action, room, reason, detail, failedRooms sql.NullString
		var createdAt string
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Source,
			&input, &kind, &action, &room,
			&rec.Status, &reason, &detail, &failedRooms,
			&rec.LatencyMS, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning command record: %w", err)
		}
		rec.Input = input.String
		rec.Kind = kind.String
		rec.Action = action.String
		rec.Room = room.String
		rec.Reason = reason.String
		rec.Detail = detail.String
		rec.FailedRooms = failedRooms.String
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			rec.CreatedAt = t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command records: %w", err)
	}

	return &ListResult{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// fromOutcome flattens a terminal outcome into a storable record.
func fromOutcome(o *orchestrator.Outcome) CommandRecord {
	rec := CommandRecord{
		ID:        o.ID,
		UserID:    o.UserID,
		Source:    string(o.Source),
		Input:     o.Input,
		Status:    string(o.Status),
		Reason:    o.Reason,
		Detail:    o.Detail,
		LatencyMS: o.LatencyMS,
		CreatedAt: o.StartedAt.UTC(),
	}
	if o.Intent != nil {
		rec.Kind = string(o.Intent.Kind)
		rec.Action = string(o.Intent.Action)
		rec.Room = o.Intent.Room
	}
	if len(o.FailedRooms) > 0 {
		rec.FailedRooms = strings.Join(o.FailedRooms, ",")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec
}

// nullableString returns nil for empty strings so the column stores NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
