package auth

import (
	"context"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"keytrack-backend/internal/platform/apperr"
)

const (
	CtxIdentityKey = "identity"

	// フロントが送ってくるが信用しない。ロールは署名済みトークンのみから取る
	untrustedRoleHeader = "x-user-role"
)

// Accounts はトークンの主体が今も有効か確認する（*Service が実装）
type Accounts interface {
	Active(ctx context.Context, id Identity) (bool, error)
}

// RequireAuth: Authorization: Bearer <token> を検証して context に Identity を詰める。
// accounts が nil でなければ削除・ロール変更済みのアカウントのトークンも弾く
func RequireAuth(tokens *Tokens, accounts Accounts) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			apperr.Abort(c, apperr.ErrUnauthorized("missing Authorization header"))
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			apperr.Abort(c, apperr.ErrUnauthorized("invalid Authorization header"))
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			apperr.Abort(c, apperr.ErrUnauthorized("empty token"))
			return
		}

		id, err := tokens.Parse(tokenStr)
		if err != nil {
			apperr.Abort(c, apperr.ErrUnauthorized("invalid token"))
			return
		}

		if accounts != nil {
			ok, err := accounts.Active(c.Request.Context(), id)
			if err != nil {
				apperr.Abort(c, err)
				return
			}
			if !ok {
				apperr.Abort(c, apperr.ErrUnauthorized("account no longer active"))
				return
			}
		}

		if claimed := c.GetHeader(untrustedRoleHeader); claimed != "" && claimed != id.Role {
			log.Printf("[WARN] %s header %q ignored for user %s (token role %q)", untrustedRoleHeader, claimed, id.Username, id.Role)
		}

		c.Set(CtxIdentityKey, id)
		c.Next()
	}
}

// RequireRole: 例) admin のみ許可したい時に RequireAuth の後ろに追加
func RequireRole(roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]struct{})
	for _, r := range roles {
		if r == "" {
			continue
		}
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			apperr.Abort(c, apperr.ErrUnauthorized("not authenticated"))
			return
		}
		if _, allowed := roleSet[id.Role]; !allowed {
			apperr.Abort(c, apperr.ErrForbidden("insufficient role"))
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(CtxIdentityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// RequireAdmin はサービス層でのロール確認
func RequireAdmin(id Identity) error {
	if !id.IsAdmin() {
		return apperr.ErrForbidden("admin access required")
	}
	return nil
}
