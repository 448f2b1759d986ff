package auth

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"keytrack-backend/internal/platform/apperr"
	"keytrack-backend/internal/platform/db"
)

const minPasswordLen = 6

type Service struct {
	store  *Store
	tokens *Tokens
	now    func() time.Time
	cost   int
}

func NewService(conn *sql.DB, tokens *Tokens) *Service {
	return &Service{
		store:  NewStore(conn),
		tokens: tokens,
		now:    time.Now,
		cost:   bcrypt.DefaultCost,
	}
}

type newAccount struct {
	username   string
	email      string
	password   string
	department *string
	role       string
}

// Register は自己登録。admin ロールは既存 admin による CreateAdmin でのみ作れる
func (s *Service) Register(ctx context.Context, in RegisterRequest) (UserResponse, error) {
	role := strings.ToLower(strings.TrimSpace(in.Role))
	switch role {
	case "", RoleUser:
		role = RoleUser
	case RoleAdmin:
		return UserResponse{}, apperr.ErrForbidden("admin accounts cannot be self-registered")
	default:
		return UserResponse{}, apperr.ErrInvalid("role must be user")
	}

	u, err := s.create(ctx, newAccount{
		username:   in.Username,
		email:      in.Email,
		password:   in.Password,
		department: in.Department,
		role:       role,
	})
	if err != nil {
		return UserResponse{}, err
	}
	return u.toResponse(), nil
}

func (s *Service) CreateAdmin(ctx context.Context, actor Identity, in CreateAdminRequest) (UserResponse, error) {
	if err := RequireAdmin(actor); err != nil {
		return UserResponse{}, err
	}
	u, err := s.create(ctx, newAccount{
		username:   in.Username,
		email:      in.Email,
		password:   in.Password,
		department: in.Department,
		role:       RoleAdmin,
	})
	if err != nil {
		return UserResponse{}, err
	}
	log.Printf("[INFO] admin %q created by %q", u.Username, actor.Username)
	return u.toResponse(), nil
}

func (s *Service) create(ctx context.Context, in newAccount) (*User, error) {
	username := normalizeUsername(in.username)
	email := normalizeEmail(in.email)
	if username == "" {
		return nil, apperr.ErrInvalid("username is required")
	}
	if !validEmail(email) {
		return nil, apperr.ErrInvalid("email is invalid")
	}
	if len(in.password) < minPasswordLen {
		return nil, apperr.ErrInvalid(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}

	var dept *string
	if in.department != nil && strings.TrimSpace(*in.department) != "" {
		d, ok, err := s.store.ResolveDepartment(ctx, strings.TrimSpace(*in.department))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.ErrInvalid("unknown department")
		}
		dept = &d
	}

	userTaken, emailTaken, err := s.store.ExistsUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if userTaken {
		return nil, apperr.ErrConflict("username already exists")
	}
	if emailTaken {
		return nil, apperr.ErrConflict("email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.password), s.cost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Department:   dept,
		Role:         in.role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Create(ctx, u); err != nil {
		// 事前チェックと INSERT の間に競合した場合
		if db.IsDuplicateKey(err) {
			return nil, apperr.ErrConflict("username or email already exists")
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	acct, err := s.store.GetByUsername(ctx, normalizeUsername(username))
	if err != nil {
		return LoginResponse{}, err
	}
	if acct == nil {
		return LoginResponse{}, apperr.ErrUnauthorized("invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return LoginResponse{}, apperr.ErrUnauthorized("invalid username or password")
	}

	token, exp, err := s.tokens.Issue(acct)
	if err != nil {
		return LoginResponse{}, err
	}
	return LoginResponse{
		Token:     token,
		ID:        acct.ID,
		Username:  acct.Username,
		Role:      acct.Role,
		ExpiresAt: exp,
	}, nil
}

func (s *Service) ListUsers(ctx context.Context, actor Identity) ([]UserResponse, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, u.toResponse())
	}
	return out, nil
}

// DeleteAdmin は admin アカウントのみ削除できる。自分自身は消せない
func (s *Service) DeleteAdmin(ctx context.Context, actor Identity, targetID int64) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	if targetID == actor.ID {
		return apperr.ErrConflict("cannot delete your own account")
	}

	target, err := s.store.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return apperr.ErrNotFound("user not found")
	}
	if target.Role != RoleAdmin {
		return apperr.ErrForbidden("only admin accounts can be deleted")
	}

	n, err := s.store.Delete(ctx, targetID)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound("user not found")
	}
	log.Printf("[INFO] admin %q deleted by %q", target.Username, actor.Username)
	return nil
}

// Active はトークン発行後に削除・降格されたアカウントを弾くための確認
func (s *Service) Active(ctx context.Context, id Identity) (bool, error) {
	u, err := s.store.GetByID(ctx, id.ID)
	if err != nil {
		return false, err
	}
	return u != nil && u.Username == id.Username && u.Role == id.Role, nil
}

// ForgotPassword はメール送信が未実装のため受付ログだけ残す。
// アカウントの有無は応答に出さない
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return apperr.ErrInvalid("email is invalid")
	}
	log.Printf("[INFO] password reset requested for %s (mail delivery not configured)", email)
	return nil
}

// EnsureAdmin は admin が1人もいない場合のみ seed から作成する
func (s *Service) EnsureAdmin(ctx context.Context, seed *db.AdminSeed) error {
	if seed == nil || seed.Username == "" {
		return nil
	}
	n, err := s.store.CountByRole(ctx, RoleAdmin)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	u, err := s.create(ctx, newAccount{
		username: seed.Username,
		email:    seed.Email,
		password: seed.Password,
		role:     RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	log.Printf("[INFO] bootstrap admin %q created", u.Username)
	return nil
}
