package reports

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"keytrack-backend/internal/platform/apperr"
	"keytrack-backend/internal/platform/auth"
)

type Service struct {
	store *Store
	now   func() time.Time
}

func NewService(conn *sql.DB) *Service {
	return &Service{store: NewStore(conn), now: time.Now}
}

func (s *Service) RecentActivity(ctx context.Context, actor auth.Identity) ([]ActivityRow, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.RecentEvents(ctx, ActivityLimit)
}

func (s *Service) Generate(ctx context.Context, actor auth.Identity, in ReportRequest) (*Report, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}

	typ := strings.ToLower(strings.TrimSpace(in.Type))
	rep := &Report{Type: typ, GeneratedAt: s.now().UTC()}

	switch typ {
	case TypeAssigned, TypeAvailable:
		status := "Assigned"
		if typ == TypeAvailable {
			status = "Available"
		}
		rows, err := s.store.KeysWhere(ctx, status, strings.TrimSpace(in.Department))
		if err != nil {
			return nil, err
		}
		rep.Rows, rep.Count = rows, len(rows)

	case TypeDepartment:
		dept := strings.TrimSpace(in.Department)
		if dept == "" {
			return nil, apperr.ErrInvalid("department is required for department reports")
		}
		rows, err := s.store.KeysWhere(ctx, "", dept)
		if err != nil {
			return nil, err
		}
		rep.Rows, rep.Count = rows, len(rows)

	case TypeDate:
		from, to, err := parseRange(in.StartDate, in.EndDate)
		if err != nil {
			return nil, err
		}
		rows, err := s.store.EventsBetween(ctx, from, to)
		if err != nil {
			return nil, err
		}
		rep.Rows, rep.Count = rows, len(rows)

	default:
		return nil, apperr.ErrInvalid("type must be one of assigned, available, department, date")
	}
	return rep, nil
}

// parseRange は YYYY-MM-DD の両端を含む範囲を [from, to) に直す（UTC）
func parseRange(start, end string) (time.Time, time.Time, error) {
	if start == "" || end == "" {
		return time.Time{}, time.Time{}, apperr.ErrInvalid("startDate and endDate are required for date reports")
	}
	from, err := time.Parse(dateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.ErrInvalid("invalid startDate format, expected YYYY-MM-DD")
	}
	last, err := time.Parse(dateLayout, end)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.ErrInvalid("invalid endDate format, expected YYYY-MM-DD")
	}
	if last.Before(from) {
		return time.Time{}, time.Time{}, apperr.ErrInvalid("endDate must not be before startDate")
	}
	return from, last.AddDate(0, 0, 1), nil
}
