// Package backup はストア全体のスナップショットを作る。
// sqlite は VACUUM INTO で .db を、mysql は全テーブルを JSON に書き出す。
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"keytrack-backend/internal/platform/auth"
	"keytrack-backend/internal/platform/db"
)

// mysql ダンプの対象。外部キーの親から順に並べる
var dumpTables = []string{"departments", "users", "access_keys", "key_history"}

type Service struct {
	h   *db.Handle
	now func() time.Time
}

func NewService(h *db.Handle) *Service {
	return &Service{h: h, now: time.Now}
}

// FileName はダウンロード時のファイル名
func (s *Service) FileName() string {
	ts := s.now().UTC().Format("20060102T150405Z")
	if s.h.Driver == db.DriverSQLite {
		return "keys-backup-" + ts + ".db"
	}
	return "keys-backup-" + ts + ".json"
}

// WriteFile は dst にスナップショットを書く。dst は既存であってはならない
func (s *Service) WriteFile(ctx context.Context, actor auth.Identity, dst string) error {
	if err := auth.RequireAdmin(actor); err != nil {
		return err
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("backup target already exists: %s", dst)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	var err error
	switch s.h.Driver {
	case db.DriverSQLite:
		err = s.vacuumInto(ctx, dst)
	case db.DriverMySQL:
		err = s.dumpJSON(ctx, dst)
	default:
		err = fmt.Errorf("backup not supported for driver %q", s.h.Driver)
	}
	if err != nil {
		return err
	}
	log.Printf("[INFO] backup written by %s: %s", actor.Username, dst)
	return nil
}

func (s *Service) vacuumInto(ctx context.Context, dst string) error {
	if _, err := s.h.ExecContext(ctx, `VACUUM INTO ?`, dst); err != nil {
		return fmt.Errorf("vacuum into: %w", err)
	}
	return nil
}

func (s *Service) dumpJSON(ctx context.Context, dst string) (err error) {
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	// 一貫したスナップショットにするため読み取りは1つの Tx で行う（mysql の既定は REPEATABLE READ）
	tables := map[string][]map[string]any{}
	err = db.ReadOnly(ctx, s.h.DB, func(ctx context.Context, tx db.DBTX) error {
		for _, t := range dumpTables {
			rows, err := dumpTable(ctx, tx, t)
			if err != nil {
				return err
			}
			tables[t] = rows
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	out := map[string]any{
		"createdAt": s.now().UTC(),
		"driver":    s.h.Driver,
		"tables":    tables,
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func dumpTable(ctx context.Context, q db.DBTX, table string) ([]map[string]any, error) {
	rows, err := q.QueryContext(ctx, `SELECT * FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("dump %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[c] = string(b)
			} else {
				rec[c] = vals[i]
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
