package server

import (
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// spaFallback は静的ファイルを返し、無ければ index.html にフォールバックする。
// /api/ 配下は対象外（JSON の 404 を返す）
func spaFallback(files fs.FS) gin.HandlerFunc {
	var fileFS http.FileSystem
	if files != nil {
		fileFS = http.FS(files)
	}

	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || fileFS == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found"}})
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusMethodNotAllowed)
			return
		}

		reqPath := strings.TrimPrefix(path.Clean("/"+c.Request.URL.Path), "/")
		if reqPath == "" {
			reqPath = "index.html"
		}

		if serveFile(c, fileFS, reqPath) {
			return
		}
		if serveFile(c, fileFS, "index.html") {
			return
		}
		c.Status(http.StatusNotFound)
	}
}

func serveFile(c *gin.Context, fileFS http.FileSystem, name string) bool {
	f, err := fileFS.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		c.Header("Content-Type", ct)
	}
	// index.html 以外はキャッシュ
	if !strings.HasSuffix(name, "index.html") {
		c.Header("Cache-Control", "public, max-age=86400")
	}
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), f)
	return true
}
