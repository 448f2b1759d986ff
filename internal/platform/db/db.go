package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Handle はプロセスが所有するストア。main で Open して終了時に Close する。
type Handle struct {
	*sql.DB
	Driver string
}

func Open(c DatabaseConfig) (*Handle, error) {
	switch c.Driver {
	case DriverSQLite:
		return openSQLite(c.Path)
	case DriverMySQL:
		return openMySQL(c)
	default:
		return nil, fmt.Errorf("未対応のドライバ: %q", c.Driver)
	}
}

func openMySQL(c DatabaseConfig) (*Handle, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=false&timeout=3s&readTimeout=5s&writeTimeout=5s&loc=UTC&multiStatements=true",
		c.Username, c.Password, c.Host, c.Port, c.DBName)

	db, err := sql.Open(DriverMySQL, dsn)
	if err != nil {
		return nil, fmt.Errorf("接続準備に失敗: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("DB接続に失敗: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Handle{DB: db, Driver: DriverMySQL}, nil
}

func openSQLite(path string) (*Handle, error) {
	memory := path == ":memory:" || strings.Contains(path, "mode=memory")
	if !memory {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("データディレクトリ作成に失敗: %w", err)
			}
		}
	}

	db, err := sql.Open(DriverSQLite, sqliteDSN(path, memory))
	if err != nil {
		return nil, fmt.Errorf("接続準備に失敗: %w", err)
	}
	// 単一ライター。インメモリDBは接続ごとに別DBになるのでこれも1本に固定
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("DB接続に失敗: %w", err)
	}

	return &Handle{DB: db, Driver: DriverSQLite}, nil
}

func sqliteDSN(path string, memory bool) string {
	// 時刻は固定フォーマットで書く（occurred_at の文字列比較・ソートが崩れないように）
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	if !memory {
		pragmas += "&_pragma=journal_mode(WAL)"
	}
	if path == ":memory:" {
		return "file::memory:?" + pragmas
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + pragmas
}
