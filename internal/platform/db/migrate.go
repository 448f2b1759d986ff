package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations
var embeddedMigrations embed.FS

// Migrate は migrations/<driver>/*.up.sql を名前順に適用する。
// 適用済みのバージョンは schema_migrations に記録してスキップする。
func Migrate(ctx context.Context, h *Handle) error {
	dir := path.Join("migrations", h.Driver)
	entries, err := fs.ReadDir(embeddedMigrations, dir)
	if err != nil {
		return fmt.Errorf("マイグレーション読み込み失敗 (%s): %w", dir, err)
	}

	var ups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	if _, err := h.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    VARCHAR(191) NOT NULL PRIMARY KEY,
		applied_at DATETIME NOT NULL
	)`); err != nil {
		return fmt.Errorf("schema_migrations 作成失敗: %w", err)
	}

	for _, name := range ups {
		version := strings.TrimSuffix(name, ".up.sql")

		var one int
		err := h.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ?`, version).Scan(&one)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("マイグレーション確認失敗 %s: %w", version, err)
		}

		body, err := embeddedMigrations.ReadFile(path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("マイグレーション読み込み失敗 %s: %w", name, err)
		}

		err = RunInTx(ctx, h.DB, nil, func(ctx context.Context, tx DBTX) error {
			for _, stmt := range splitStatements(string(body)) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("%s: %w", version, err)
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
				version, time.Now().UTC())
			return err
		})
		if err != nil {
			return fmt.Errorf("マイグレーション適用失敗: %w", err)
		}
		log.Printf("[INFO] migration applied: %s/%s", h.Driver, version)
	}
	return nil
}

// splitStatements は行末の ; で区切る。トリガ等の複文は扱わない
func splitStatements(body string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";")
			out = append(out, stmt)
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}
