package keys

import "time"

// ===== Request =====

type CreateKeyRequest struct {
	Name       string  `json:"name" binding:"required"`
	Type       string  `json:"type"`
	Status     *Status `json:"status,omitempty"` // 未指定なら Available
	Department string  `json:"department"`
	Faculty    string  `json:"faculty"`
	Building   string  `json:"building"`
	Room       string  `json:"room"`
	Notes      string  `json:"notes"`
}

// UpdateKeyRequest は部分更新。nil のフィールドは触らない
type UpdateKeyRequest struct {
	Name       *string `json:"name,omitempty"`
	Type       *string `json:"type,omitempty"`
	Status     *Status `json:"status,omitempty"`
	Department *string `json:"department,omitempty"`
	Faculty    *string `json:"faculty,omitempty"`
	Building   *string `json:"building,omitempty"`
	Room       *string `json:"room,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

func (r UpdateKeyRequest) empty() bool {
	return r.Name == nil && r.Type == nil && r.Status == nil && r.Department == nil &&
		r.Faculty == nil && r.Building == nil && r.Room == nil && r.Notes == nil
}

type AssignRequest struct {
	Person     string `json:"person" binding:"required"`
	Department string `json:"department"`
	Faculty    string `json:"faculty"`
	Notes      string `json:"notes"`
}

type ReturnRequest struct {
	Notes string `json:"notes"`
}

// ===== Response =====

type KeyResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Status      Status    `json:"status"`
	AssignedTo  *string   `json:"assignedTo"`
	Department  string    `json:"department"`
	Faculty     string    `json:"faculty"`
	Building    string    `json:"building"`
	Room        string    `json:"room"`
	Notes       string    `json:"notes"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type HistoryResponse struct {
	ID         int64     `json:"id"`
	ULID       string    `json:"ulid"`
	KeyID      int64     `json:"keyId"`
	Action     string    `json:"action"`
	Person     *string   `json:"person"`
	Department string    `json:"department"`
	Faculty    string    `json:"faculty"`
	Date       time.Time `json:"date"`
	Notes      string    `json:"notes"`
	Actor      string    `json:"actor"`
}

type StatsResponse struct {
	TotalKeys     int64 `json:"totalKeys"`
	AssignedKeys  int64 `json:"assignedKeys"`
	AvailableKeys int64 `json:"availableKeys"`
	LostKeys      int64 `json:"lostKeys"`
	DamagedKeys   int64 `json:"damagedKeys"`
}

func buildKeyResponse(k *Key) KeyResponse {
	res := KeyResponse{
		ID:          k.ID,
		Name:        k.Name,
		Type:        k.Type,
		Status:      k.Status,
		Department:  k.Department,
		Faculty:     k.Faculty,
		Building:    k.Building,
		Room:        k.Room,
		Notes:       k.Notes,
		LastUpdated: k.LastUpdated,
	}
	if k.AssignedTo.Valid {
		v := k.AssignedTo.String
		res.AssignedTo = &v
	}
	return res
}

func buildHistoryResponse(e *HistoryEvent) HistoryResponse {
	res := HistoryResponse{
		ID:         e.ID,
		ULID:       e.EventULID,
		KeyID:      e.KeyID,
		Action:     e.Action,
		Department: e.Department,
		Faculty:    e.Faculty,
		Date:       e.OccurredAt,
		Notes:      e.Notes,
		Actor:      e.Actor,
	}
	if e.Person.Valid {
		v := e.Person.String
		res.Person = &v
	}
	return res
}
