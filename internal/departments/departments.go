// Package departments は部署マスタ。起動時に seed され、以降はほぼ参照のみ。
package departments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"keytrack-backend/internal/platform/apperr"
	"keytrack-backend/internal/platform/auth"
	"keytrack-backend/internal/platform/db"
)

type Department struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Faculty       string `json:"faculty"`
	Building      string `json:"building"`
	ContactPerson string `json:"contactPerson"`
	ContactEmail  string `json:"contactEmail"`
	ContactPhone  string `json:"contactPhone"`
}

// CreateDepartmentRequest は管理画面（snake_case）と camelCase の両方を受け付ける
type CreateDepartmentRequest struct {
	Name          string `json:"name" binding:"required"`
	Faculty       string `json:"faculty"`
	Building      string `json:"building"`
	ContactPerson string `json:"contactPerson"`
	ContactEmail  string `json:"contactEmail"`
	ContactPhone  string `json:"contactPhone"`

	ContactPersonSnake string `json:"contact_person"`
	ContactEmailSnake  string `json:"contact_email"`
	ContactPhoneSnake  string `json:"contact_phone"`
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// DefaultSeed は設定に departments が無い場合に使う
var DefaultSeed = []db.DepartmentSeed{
	{
		Name:          "ICT Department",
		Faculty:       "Science and Technology",
		Building:      "Science Block",
		ContactPerson: "Dr. John Mwangi",
		ContactEmail:  "ict@meruuniversity.ac.ke",
		ContactPhone:  "0712345678",
	},
	{
		Name:          "Library",
		Faculty:       "Administration",
		Building:      "Library Block",
		ContactPerson: "Ms. Sarah Kamau",
		ContactEmail:  "library@meruuniversity.ac.ke",
		ContactPhone:  "0723456789",
	},
	{
		Name:          "Security",
		Faculty:       "Administration",
		Building:      "Main Gate",
		ContactPerson: "Mr. James Kariuki",
		ContactEmail:  "security@meruuniversity.ac.ke",
		ContactPhone:  "0734567890",
	},
}

// ===== store =====

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

func (s *Store) List(ctx context.Context) ([]Department, error) {
	const q = `
	SELECT id, name, faculty, building, contact_person, contact_email, contact_phone
	FROM departments ORDER BY name`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	out := []Department{}
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Faculty, &d.Building,
			&d.ContactPerson, &d.ContactEmail, &d.ContactPhone); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Insert(ctx context.Context, d *Department) error {
	const q = `
	INSERT INTO departments (name, faculty, building, contact_person, contact_email, contact_phone)
	VALUES (?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, d.Name, d.Faculty, d.Building, d.ContactPerson, d.ContactEmail, d.ContactPhone)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM departments WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// ===== service =====

type Service struct{ store *Store }

func NewService(conn *sql.DB) *Service { return &Service{store: NewStore(conn)} }

func (s *Service) List(ctx context.Context) ([]Department, error) {
	return s.store.List(ctx)
}

func (s *Service) Create(ctx context.Context, actor auth.Identity, in CreateDepartmentRequest) (*Department, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	d := &Department{
		Name:          strings.TrimSpace(in.Name),
		Faculty:       strings.TrimSpace(in.Faculty),
		Building:      strings.TrimSpace(in.Building),
		ContactPerson: firstNonEmpty(in.ContactPerson, in.ContactPersonSnake),
		ContactEmail:  firstNonEmpty(in.ContactEmail, in.ContactEmailSnake),
		ContactPhone:  firstNonEmpty(in.ContactPhone, in.ContactPhoneSnake),
	}
	if d.Name == "" {
		return nil, apperr.ErrInvalid("name is required")
	}
	if err := s.store.Insert(ctx, d); err != nil {
		if db.IsDuplicateKey(err) {
			return nil, apperr.ErrConflict("department already exists")
		}
		return nil, fmt.Errorf("insert department: %w", err)
	}
	return d, nil
}

// Seed は未登録の部署だけ追加する。何度呼んでも結果は同じ
func (s *Service) Seed(ctx context.Context, seeds []db.DepartmentSeed) (int, error) {
	if len(seeds) == 0 {
		seeds = DefaultSeed
	}
	added := 0
	for _, sd := range seeds {
		name := strings.TrimSpace(sd.Name)
		if name == "" {
			continue
		}
		ok, err := s.store.Exists(ctx, name)
		if err != nil {
			return added, err
		}
		if ok {
			continue
		}
		d := &Department{
			Name:          name,
			Faculty:       sd.Faculty,
			Building:      sd.Building,
			ContactPerson: sd.ContactPerson,
			ContactEmail:  sd.ContactEmail,
			ContactPhone:  sd.ContactPhone,
		}
		if err := s.store.Insert(ctx, d); err != nil {
			if db.IsDuplicateKey(err) {
				continue
			}
			return added, fmt.Errorf("seed department %q: %w", name, err)
		}
		added++
		log.Printf("[INFO] department seeded: %s", name)
	}
	return added, nil
}
