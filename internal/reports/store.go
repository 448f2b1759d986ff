package reports

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"keytrack-backend/internal/platform/db"
)

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

// RecentEvents は全キー横断で新しい順に limit 件
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]ActivityRow, error) {
	const q = `
	SELECT h.id, h.key_id, k.name, h.action, h.person, h.department, h.faculty, h.notes, h.actor, h.occurred_at
	FROM key_history h
	JOIN access_keys k ON k.id = h.key_id
	ORDER BY h.occurred_at DESC, h.id DESC
	LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()
	return scanActivity(rows)
}

// EventsBetween は [from, to) の履歴を古い順に返す
func (s *Store) EventsBetween(ctx context.Context, from, to time.Time) ([]ActivityRow, error) {
	const q = `
	SELECT h.id, h.key_id, k.name, h.action, h.person, h.department, h.faculty, h.notes, h.actor, h.occurred_at
	FROM key_history h
	JOIN access_keys k ON k.id = h.key_id
	WHERE h.occurred_at >= ? AND h.occurred_at < ?
	ORDER BY h.occurred_at, h.id`
	rows, err := s.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("events between: %w", err)
	}
	defer rows.Close()
	return scanActivity(rows)
}

// KeysWhere は status / department で絞ったキー一覧。空文字は条件なし
func (s *Store) KeysWhere(ctx context.Context, status, department string) ([]KeyRow, error) {
	q := `
	SELECT id, name, type, status, assigned_to, department, faculty, building, room, notes, last_updated
	FROM access_keys WHERE 1=1`
	args := []any{}
	if status != "" {
		q += " AND status = ?"
		args = append(args, status)
	}
	if department != "" {
		q += " AND department = ?"
		args = append(args, department)
	}
	q += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("report keys: %w", err)
	}
	defer rows.Close()

	out := []KeyRow{}
	for rows.Next() {
		var r KeyRow
		var assigned sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.Type, &r.Status, &assigned, &r.Department,
			&r.Faculty, &r.Building, &r.Room, &r.Notes, &r.LastUpdated); err != nil {
			return nil, err
		}
		if assigned.Valid {
			v := assigned.String
			r.AssignedTo = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanActivity(rows *sql.Rows) ([]ActivityRow, error) {
	out := []ActivityRow{}
	for rows.Next() {
		var r ActivityRow
		var person sql.NullString
		if err := rows.Scan(&r.ID, &r.KeyID, &r.KeyName, &r.Action, &person,
			&r.Department, &r.Faculty, &r.Notes, &r.Actor, &r.Date); err != nil {
			return nil, err
		}
		if person.Valid {
			v := person.String
			r.Person = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
