package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"keytrack-backend/internal/backup"
	"keytrack-backend/internal/departments"
	"keytrack-backend/internal/keys"
	"keytrack-backend/internal/platform/auth"
	"keytrack-backend/internal/platform/db"
	"keytrack-backend/internal/platform/server"
	"keytrack-backend/internal/reports"
)

func main() {
	// .env は任意。無ければ環境変数と config.yaml だけで動く
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] .env: %v", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app はプロセスが所有するリソース一式。open で作り Close で解放する
type app struct {
	cfg *db.Config
	h   *db.Handle
}

func open(ctx context.Context, configPath string) (*app, error) {
	cfg, err := db.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] mode:%s", cfg.Mode)

	h, err := db.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] connected to DB: %s", cfg.DB.Driver)

	if err := db.Migrate(ctx, h); err != nil {
		h.Close()
		return nil, err
	}
	return &app{cfg: cfg, h: h}, nil
}

func (a *app) Close() error { return a.h.Close() }

func (a *app) services() server.Services {
	tokens := auth.NewTokens([]byte(a.cfg.Auth.JWTSecret), a.cfg.Auth.TokenTTL)
	return server.Services{
		Tokens:      tokens,
		Auth:        auth.NewService(a.h.DB, tokens),
		Keys:        keys.NewService(a.h.DB),
		Departments: departments.NewService(a.h.DB),
		Reports:     reports.NewService(a.h.DB),
		Backup:      backup.NewService(a.h),
	}
}

// seed は部署マスタと初期 admin を用意する（どちらも冪等）
func (a *app) seed(ctx context.Context, svc server.Services) error {
	if _, err := svc.Departments.Seed(ctx, a.cfg.Departments); err != nil {
		return err
	}
	return svc.Auth.EnsureAdmin(ctx, a.cfg.BootstrapAdmin)
}
