// Package server は gin エンジンの組み立てと HTTP サーバの起動・停止を行う。
package server

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "keytrack-backend/docs"
	"keytrack-backend/internal/backup"
	"keytrack-backend/internal/departments"
	"keytrack-backend/internal/keys"
	"keytrack-backend/internal/platform/auth"
	"keytrack-backend/internal/platform/db"
	"keytrack-backend/internal/reports"
)

const shutdownTimeout = 10 * time.Second

// Services はルータに載せるサービス一式。main が組み立てて渡す
type Services struct {
	Tokens      *auth.Tokens
	Auth        *auth.Service
	Keys        *keys.Service
	Departments *departments.Service
	Reports     *reports.Service
	Backup      *backup.Service
}

func NewRouter(cfg *db.Config, svc Services) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(RequestID(), accessLog(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if cfg.Mode == db.ModeDev {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.AllowedOrigins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "x-user-role"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	authn := auth.RequireAuth(svc.Tokens, svc.Auth)
	api := r.Group("/api")
	auth.RegisterRoutes(api, svc.Auth, authn)
	keys.RegisterRoutes(api, svc.Keys, authn)
	departments.RegisterRoutes(api, svc.Departments, authn)
	reports.RegisterRoutes(api, svc.Reports, authn)
	backup.RegisterRoutes(api, svc.Backup, authn)

	r.NoRoute(spaFallback(staticFS(cfg.Server.StaticDir)))
	return r
}

// staticFS: ディレクトリ未設定・不在ならフロント配信なし
func staticFS(dir string) fs.FS {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Printf("[WARN] static dir %q not found, frontend will not be served", dir)
		return nil
	}
	return os.DirFS(dir)
}

// Run は ctx がキャンセルされるまで待ち受け、その後 graceful shutdown する。
// 証明書が設定されていれば TLS で起動する
func Run(ctx context.Context, cfg *db.Config, h http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	tls := cfg.Certificate.Cert != "" && cfg.Certificate.Key != ""

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls {
			log.Printf("[INFO] listening on https://%s", cfg.Server.Addr)
			err = srv.ListenAndServeTLS(cfg.Certificate.Cert, cfg.Certificate.Key)
		} else {
			log.Printf("[INFO] listening on http://%s", cfg.Server.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("[INFO] shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
