package keys

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"keytrack-backend/internal/platform/apperr"
	"keytrack-backend/internal/platform/auth"
	"keytrack-backend/internal/platform/db"
)

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface {
	New(t time.Time) (string, error)
}

type ulidGen struct{}

func (ulidGen) New(t time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(t), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ===== Service本体 =====

type Service struct {
	db    *sql.DB
	store *Store
	clock Clock
	id    IDGen
}

func NewService(conn *sql.DB) *Service {
	return &Service{
		db:    conn,
		store: NewStore(conn),
		clock: realClock{},
		id:    ulidGen{},
	}
}

// WithClock はテスト用に時計を差し替える
func (s *Service) WithClock(c Clock) *Service {
	s.clock = c
	return s
}

func (s *Service) Create(ctx context.Context, in CreateKeyRequest) (*KeyResponse, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.ErrInvalid("name is required")
	}
	status := StatusAvailable
	if in.Status != nil {
		status = *in.Status
	}
	if !status.Valid() {
		return nil, apperr.ErrInvalid("status must be one of Available, Assigned, Lost, Damaged")
	}
	if status == StatusAssigned {
		return nil, apperr.ErrInvalid("new keys cannot be created as Assigned; use assign")
	}

	k := &Key{
		Name:        name,
		Type:        strings.TrimSpace(in.Type),
		Status:      status,
		Department:  in.Department,
		Faculty:     in.Faculty,
		Building:    in.Building,
		Room:        in.Room,
		Notes:       in.Notes,
		LastUpdated: s.clock.Now(),
	}
	if err := s.store.InsertKey(ctx, k); err != nil {
		return nil, err
	}
	res := buildKeyResponse(k)
	return &res, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*KeyResponse, error) {
	k, err := s.mustGet(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	res := buildKeyResponse(k)
	return &res, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]KeyResponse, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, apperr.ErrInvalid("unknown status filter")
	}
	ks, err := s.store.ListKeys(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]KeyResponse, 0, len(ks))
	for _, k := range ks {
		out = append(out, buildKeyResponse(k))
	}
	return out, nil
}

// Edit は部分更新。通常フィールドの変更は履歴を残さない。
// status の変更だけは StatusChanged イベントを同じ Tx で記録する
func (s *Service) Edit(ctx context.Context, actor auth.Identity, id int64, in UpdateKeyRequest) (*KeyResponse, error) {
	if in.empty() {
		return nil, apperr.ErrInvalid("no fields to update")
	}
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		if trimmed == "" {
			return nil, apperr.ErrInvalid("name must not be empty")
		}
		in.Name = &trimmed
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, apperr.ErrInvalid("status must be one of Available, Assigned, Lost, Damaged")
	}

	var updated *Key
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := NewStore(tx)
		cur, err := s.mustGet(ctx, st, id)
		if err != nil {
			return err
		}

		statusChanged := in.Status != nil && *in.Status != cur.Status
		if statusChanged && *in.Status == StatusAssigned {
			return apperr.ErrInvalidState("keys can only become Assigned through assign")
		}
		clearAssignee := statusChanged && cur.Status == StatusAssigned

		now := s.clock.Now()
		n, err := st.UpdateFields(ctx, id, in, clearAssignee, now)
		if err != nil {
			if db.IsCheckViolation(err) {
				return apperr.ErrInvalidState("key status changed concurrently")
			}
			return err
		}
		if n == 0 {
			return apperr.ErrNotFound("key not found")
		}

		if statusChanged {
			ev := &HistoryEvent{
				KeyID:      id,
				Action:     ActionStatusChanged,
				Department: cur.Department,
				Faculty:    cur.Faculty,
				Notes:      fmt.Sprintf("status changed from %s to %s", cur.Status, *in.Status),
				Actor:      actor.Username,
				OccurredAt: now,
			}
			if err := s.appendHistory(ctx, st, ev); err != nil {
				return err
			}
		}

		updated, err = st.GetKey(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	res := buildKeyResponse(updated)
	return &res, nil
}

// Assign は Available のキーだけ貸し出せる（Assigned への再割当ては InvalidState）
func (s *Service) Assign(ctx context.Context, actor auth.Identity, id int64, in AssignRequest) (*KeyResponse, error) {
	person := strings.TrimSpace(in.Person)
	if person == "" {
		return nil, apperr.ErrInvalid("person is required")
	}

	var updated *Key
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := NewStore(tx)
		cur, err := s.mustGet(ctx, st, id)
		if err != nil {
			return err
		}
		if cur.Status != StatusAvailable {
			return apperr.ErrInvalidState(fmt.Sprintf("key is %s, only Available keys can be assigned", cur.Status))
		}

		now := s.clock.Now()
		n, err := st.MarkAssigned(ctx, id, person, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.ErrInvalidState("key is no longer Available")
		}

		ev := &HistoryEvent{
			KeyID:      id,
			Action:     ActionAssigned,
			Person:     sql.NullString{String: person, Valid: true},
			Department: in.Department,
			Faculty:    in.Faculty,
			Notes:      in.Notes,
			Actor:      actor.Username,
			OccurredAt: now,
		}
		if err := s.appendHistory(ctx, st, ev); err != nil {
			return err
		}

		updated, err = st.GetKey(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] key %d assigned to %q by %s", id, person, actor.Username)
	res := buildKeyResponse(updated)
	return &res, nil
}

func (s *Service) Return(ctx context.Context, actor auth.Identity, id int64, in ReturnRequest) (*KeyResponse, error) {
	var updated *Key
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := NewStore(tx)
		cur, err := s.mustGet(ctx, st, id)
		if err != nil {
			return err
		}
		if cur.Status != StatusAssigned {
			return apperr.ErrInvalidState(fmt.Sprintf("key is %s, only Assigned keys can be returned", cur.Status))
		}

		now := s.clock.Now()
		n, err := st.MarkReturned(ctx, id, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.ErrInvalidState("key is no longer Assigned")
		}

		ev := &HistoryEvent{
			KeyID:      id,
			Action:     ActionReturned,
			Department: cur.Department,
			Faculty:    cur.Faculty,
			Notes:      in.Notes,
			Actor:      actor.Username,
			OccurredAt: now,
		}
		if err := s.appendHistory(ctx, st, ev); err != nil {
			return err
		}

		updated, err = st.GetKey(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] key %d returned by %s", id, actor.Username)
	res := buildKeyResponse(updated)
	return &res, nil
}

// Delete は admin のみ。履歴も同じ Tx で削除する
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id int64) error {
	if err := auth.RequireAdmin(actor); err != nil {
		return err
	}
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		n, err := NewStore(tx).DeleteKey(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.ErrNotFound("key not found")
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("[INFO] key %d deleted by %s", id, actor.Username)
	return nil
}

func (s *Service) History(ctx context.Context, id int64) ([]HistoryResponse, error) {
	if _, err := s.mustGet(ctx, s.store, id); err != nil {
		return nil, err
	}
	evs, err := s.store.ListHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryResponse, 0, len(evs))
	for _, e := range evs {
		out = append(out, buildHistoryResponse(e))
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context, actor auth.Identity) (*StatsResponse, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsResponse{
		TotalKeys:     st.Total,
		AssignedKeys:  st.Assigned,
		AvailableKeys: st.Available,
		LostKeys:      st.Lost,
		DamagedKeys:   st.Damaged,
	}, nil
}

// ===== helpers =====

func (s *Service) mustGet(ctx context.Context, st *Store, id int64) (*Key, error) {
	k, err := st.GetKey(ctx, id)
	if err != nil {
		return nil, err
	}
	if k == nil {
		return nil, apperr.ErrNotFound("key not found")
	}
	return k, nil
}

func (s *Service) appendHistory(ctx context.Context, st *Store, ev *HistoryEvent) error {
	id, err := s.id.New(ev.OccurredAt)
	if err != nil {
		return err
	}
	ev.EventULID = id
	return st.InsertHistory(ctx, ev)
}
