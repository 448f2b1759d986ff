package auth

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"keytrack-backend/internal/platform/db"
)

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

const userColumns = `id, username, email, password_hash, department, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var dept sql.NullString
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &dept, &u.Role, &u.CreatedAt); err != nil {
		return nil, err
	}
	if dept.Valid {
		v := dept.String
		u.Department = &v
	}
	return &u, nil
}

// 見つからない場合は (nil, nil)
func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? LIMIT 1`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (s *Store) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (s *Store) ExistsUsernameOrEmail(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, email FROM users WHERE username = ? OR email = ?`, username, email)
	if err != nil {
		return false, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var un, em string
		if err := rows.Scan(&un, &em); err != nil {
			return false, false, err
		}
		if un == username {
			usernameTaken = true
		}
		if em == email {
			emailTaken = true
		}
	}
	return usernameTaken, emailTaken, rows.Err()
}

// ResolveDepartment は部署名か部署ID（登録画面の select は id を送る）を部署名に解決する。
// 見つからなければ ok=false
func (s *Store) ResolveDepartment(ctx context.Context, v string) (name string, ok bool, err error) {
	q, arg := `SELECT name FROM departments WHERE name = ? LIMIT 1`, any(v)
	if id, perr := strconv.ParseInt(v, 10, 64); perr == nil {
		q, arg = `SELECT name FROM departments WHERE id = ? LIMIT 1`, id
	}
	err = s.db.QueryRowContext(ctx, q, arg).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

func (s *Store) Create(ctx context.Context, u *User) error {
	const q = `
INSERT INTO users (username, email, password_hash, department, role, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`
	var dept any
	if u.Department != nil {
		dept = *u.Department
	}
	res, err := s.db.ExecContext(ctx, q, u.Username, u.Email, u.PasswordHash, dept, u.Role, u.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) List(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) CountByRole(ctx context.Context, role string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, role).Scan(&n)
	return n, err
}
