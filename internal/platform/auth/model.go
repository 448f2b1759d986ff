package auth

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User は users テーブルの1行
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Department   *string
	Role         string
	CreatedAt    time.Time
}

// Identity はトークンから取り出した認証済み主体
type Identity struct {
	ID       int64
	Username string
	Role     string
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

func (u *User) toResponse() UserResponse {
	return UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Department: u.Department,
		Role:       u.Role,
		CreatedAt:  u.CreatedAt,
	}
}

// ===== DTO =====

type RegisterRequest struct {
	Username   string  `json:"username" binding:"required"`
	Email      string  `json:"email" binding:"required,email"`
	Password   string  `json:"password" binding:"required"`
	Department *string `json:"department,omitempty"`
	Role       string  `json:"role,omitempty"` // 未指定なら user
}

type CreateAdminRequest struct {
	Username   string  `json:"username" binding:"required"`
	Email      string  `json:"email" binding:"required,email"`
	Password   string  `json:"password" binding:"required"`
	Department *string `json:"department,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type UserResponse struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Department *string   `json:"department,omitempty"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
}
