package keys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"keytrack-backend/internal/platform/db"
)

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

const keyColumns = `id, name, type, status, assigned_to, department, faculty, building, room, notes, last_updated`

func scanKey(row interface{ Scan(...any) error }) (*Key, error) {
	var k Key
	var status string
	if err := row.Scan(&k.ID, &k.Name, &k.Type, &status, &k.AssignedTo,
		&k.Department, &k.Faculty, &k.Building, &k.Room, &k.Notes, &k.LastUpdated); err != nil {
		return nil, err
	}
	k.Status = Status(status)
	return &k, nil
}

// ===== access_keys =====

func (s *Store) InsertKey(ctx context.Context, k *Key) error {
	const q = `
	INSERT INTO access_keys
	(name, type, status, assigned_to, department, faculty, building, room, notes, last_updated)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		k.Name, k.Type, string(k.Status), k.AssignedTo,
		k.Department, k.Faculty, k.Building, k.Room, k.Notes, k.LastUpdated)
	if err != nil {
		return fmt.Errorf("insert key: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	k.ID = id
	return nil
}

// 見つからない場合は (nil, nil)
func (s *Store) GetKey(ctx context.Context, id int64) (*Key, error) {
	k, err := scanKey(s.db.QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM access_keys WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get key: %w", err)
	}
	return k, nil
}

func (s *Store) ListKeys(ctx context.Context, f Filter) ([]*Key, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + keyColumns + ` FROM access_keys WHERE 1=1`)
	args := []any{}

	if f.Status != nil {
		sb.WriteString(" AND status = ?")
		args = append(args, string(*f.Status))
	}
	if f.Department != nil {
		sb.WriteString(" AND department = ?")
		args = append(args, *f.Department)
	}
	if f.Search != nil && *f.Search != "" {
		sb.WriteString(" AND (name LIKE ? OR room LIKE ? OR assigned_to LIKE ?)")
		like := "%" + *f.Search + "%"
		args = append(args, like, like, like)
	}
	sb.WriteString(" ORDER BY id")

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var out []*Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// UpdateFields は非 nil のフィールドだけ SET する。戻り値は更新行数
func (s *Store) UpdateFields(ctx context.Context, id int64, in UpdateKeyRequest, clearAssignee bool, now time.Time) (int64, error) {
	sets := []string{}
	args := []any{}

	if in.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *in.Name)
	}
	if in.Type != nil {
		sets = append(sets, "type = ?")
		args = append(args, *in.Type)
	}
	if in.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*in.Status))
	}
	if clearAssignee {
		sets = append(sets, "assigned_to = NULL")
	}
	if in.Department != nil {
		sets = append(sets, "department = ?")
		args = append(args, *in.Department)
	}
	if in.Faculty != nil {
		sets = append(sets, "faculty = ?")
		args = append(args, *in.Faculty)
	}
	if in.Building != nil {
		sets = append(sets, "building = ?")
		args = append(args, *in.Building)
	}
	if in.Room != nil {
		sets = append(sets, "room = ?")
		args = append(args, *in.Room)
	}
	if in.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *in.Notes)
	}
	if len(sets) == 0 {
		return 0, nil
	}
	sets = append(sets, "last_updated = ?")
	args = append(args, now, id)

	q := fmt.Sprintf(`UPDATE access_keys SET %s WHERE id = ?`, strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("update key: %w", err)
	}
	return res.RowsAffected()
}

// MarkAssigned は Available の時だけ Assigned に遷移させる。
// 条件付き UPDATE なので並行した assign のうち片方だけが 1 行更新になる
func (s *Store) MarkAssigned(ctx context.Context, id int64, person string, now time.Time) (int64, error) {
	const q = `
	UPDATE access_keys
	SET status = ?, assigned_to = ?, last_updated = ?
	WHERE id = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, q, string(StatusAssigned), person, now, id, string(StatusAvailable))
	if err != nil {
		return 0, fmt.Errorf("assign key: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) MarkReturned(ctx context.Context, id int64, now time.Time) (int64, error) {
	const q = `
	UPDATE access_keys
	SET status = ?, assigned_to = NULL, last_updated = ?
	WHERE id = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, q, string(StatusAvailable), now, id, string(StatusAssigned))
	if err != nil {
		return 0, fmt.Errorf("return key: %w", err)
	}
	return res.RowsAffected()
}

// DeleteKey は履歴も同じ接続（通常は Tx）で消す
func (s *Store) DeleteKey(ctx context.Context, id int64) (int64, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM key_history WHERE key_id = ?`, id); err != nil {
		return 0, fmt.Errorf("delete history: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM access_keys WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete key: %w", err)
	}
	return res.RowsAffected()
}

// Stats は1回の集計クエリで数える。キャッシュしない
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	const q = `
	SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'Assigned'  THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'Available' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'Lost'      THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'Damaged'   THEN 1 ELSE 0 END), 0)
	FROM access_keys`
	var st Stats
	err := s.db.QueryRowContext(ctx, q).Scan(&st.Total, &st.Assigned, &st.Available, &st.Lost, &st.Damaged)
	if err != nil {
		return Stats{}, fmt.Errorf("key stats: %w", err)
	}
	return st, nil
}

// ===== key_history =====

func (s *Store) InsertHistory(ctx context.Context, e *HistoryEvent) error {
	const q = `
	INSERT INTO key_history
	(event_ulid, key_id, action, person, department, faculty, notes, actor, occurred_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		e.EventULID, e.KeyID, e.Action, e.Person, e.Department, e.Faculty, e.Notes, e.Actor, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// ListHistory は新しい順（同時刻は id 降順）
func (s *Store) ListHistory(ctx context.Context, keyID int64) ([]*HistoryEvent, error) {
	const q = `
	SELECT id, event_ulid, key_id, action, person, department, faculty, notes, actor, occurred_at
	FROM key_history
	WHERE key_id = ?
	ORDER BY occurred_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q, keyID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []*HistoryEvent
	for rows.Next() {
		var e HistoryEvent
		if err := rows.Scan(&e.ID, &e.EventULID, &e.KeyID, &e.Action, &e.Person,
			&e.Department, &e.Faculty, &e.Notes, &e.Actor, &e.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
