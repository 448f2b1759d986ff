package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keytrack-backend/internal/platform/auth"
	"keytrack-backend/internal/testutil"
)

func newAuthRouter(t *testing.T) (*gin.Engine, string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, tokens, h := newAuth(t)
	admin := testutil.CreateUser(t, h, "root", auth.RoleAdmin)
	user := testutil.CreateUser(t, h, "clerk", auth.RoleUser)

	r := gin.New()
	auth.RegisterRoutes(r.Group("/api"), svc, auth.RequireAuth(tokens, svc))
	return r, testutil.Bearer(t, tokens, admin), testutil.Bearer(t, tokens, user)
}

func send(r http.Handler, method, path, bearer, body string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_RegisterLogin(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	w := send(r, http.MethodPost, "/api/auth/register", "",
		`{"username":"erin","email":"erin@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "password")

	w = send(r, http.MethodPost, "/api/auth/register", "",
		`{"username":"mallory","email":"m@example.com","password":"secret1","role":"admin"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"FORBIDDEN"`)

	w = send(r, http.MethodPost, "/api/auth/register", "",
		`{"username":"erin","email":"erin2@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = send(r, http.MethodPost, "/api/auth/login", "", `{"username":"erin","password":"secret1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res auth.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "erin", res.Username)
	assert.Equal(t, auth.RoleUser, res.Role)

	w = send(r, http.MethodPost, "/api/auth/login", "", `{"username":"erin","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "token\"")

	w = send(r, http.MethodPost, "/api/auth/forgot-password", "", `{"email":"erin@example.com"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestHandler_AdminRoutes(t *testing.T) {
	r, adminTok, userTok := newAuthRouter(t)

	w := send(r, http.MethodGet, "/api/users", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// ヘッダで admin を名乗っても通らない
	w = send(r, http.MethodGet, "/api/users", userTok, "", "x-user-role", "admin")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = send(r, http.MethodGet, "/api/users", adminTok, "")
	require.Equal(t, http.StatusOK, w.Code)
	var users []auth.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 2)

	w = send(r, http.MethodPost, "/api/admin/create-admin", adminTok,
		`{"username":"ops","email":"ops@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created auth.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, auth.RoleAdmin, created.Role)

	w = send(r, http.MethodPost, "/api/admin/create-admin", userTok,
		`{"username":"ops2","email":"ops2@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = send(r, http.MethodDelete, "/api/admin/users/abc", adminTok, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodDelete, "/api/admin/users/"+jsonID(created.ID), adminTok, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuth_BadHeaders(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	for _, h := range []string{"Token abc", "Bearer", "Bearer    ", "Basic dXNlcjpwYXNz"} {
		w := send(r, http.MethodGet, "/api/users", h, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", h)
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestRequireAuth_RejectsDeletedAdminToken(t *testing.T) {
	r, adminTok, _ := newAuthRouter(t)

	w := send(r, http.MethodPost, "/api/admin/create-admin", adminTok,
		`{"username":"ops","email":"ops@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created auth.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = send(r, http.MethodPost, "/api/auth/login", "", `{"username":"ops","password":"secret1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var login auth.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	opsTok := "Bearer " + login.Token

	w = send(r, http.MethodGet, "/api/users", opsTok, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = send(r, http.MethodDelete, "/api/admin/users/"+jsonID(created.ID), adminTok, "")
	require.Equal(t, http.StatusOK, w.Code)

	// 期限内でも削除済みアカウントのトークンは使えない
	w = send(r, http.MethodGet, "/api/users", opsTok, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_RegisterEmailValidation(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	for _, email := range []string{"a@b", "erin", ""} {
		w := send(r, http.MethodPost, "/api/auth/register", "",
			`{"username":"erin","email":"`+email+`","password":"secret1"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code, "email %q", email)
	}

	w := send(r, http.MethodPost, "/api/auth/forgot-password", "", `{"email":"a@b"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
