// Package testutil はテスト用のインメモリストアとトークンを用意する。
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"keytrack-backend/internal/platform/auth"
	"keytrack-backend/internal/platform/db"
)

const TestSecret = "test-secret"

var seq atomic.Int64

// NewDB はテストごとに独立したインメモリ sqlite を開いてマイグレーション済みで返す
func NewDB(t *testing.T) *db.Handle {
	t.Helper()
	name := fmt.Sprintf("file:keytrack_test_%d?mode=memory", seq.Add(1))
	h, err := db.Open(db.DatabaseConfig{Driver: db.DriverSQLite, Path: name})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	require.NoError(t, db.Migrate(context.Background(), h))
	return h
}

func NewTokens() *auth.Tokens {
	return auth.NewTokens([]byte(TestSecret), time.Hour)
}

// CreateUser は users に直接1行入れて返す（bcrypt は最小コスト）
func CreateUser(t *testing.T, h *db.Handle, username, role string) *auth.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	u := &auth.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, auth.NewStore(h.DB).Create(context.Background(), u))
	return u
}

// Bearer はユーザーのトークンを Authorization ヘッダ値で返す
func Bearer(t *testing.T, tokens *auth.Tokens, u *auth.User) string {
	t.Helper()
	tok, _, err := tokens.Issue(u)
	require.NoError(t, err)
	return "Bearer " + tok
}

func Identity(u *auth.User) auth.Identity {
	return auth.Identity{ID: u.ID, Username: u.Username, Role: u.Role}
}
