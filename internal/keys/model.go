package keys

import (
	"database/sql"
	"time"
)

type Status string

const (
	StatusAvailable Status = "Available"
	StatusAssigned  Status = "Assigned"
	StatusLost      Status = "Lost"
	StatusDamaged   Status = "Damaged"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusAssigned, StatusLost, StatusDamaged:
		return true
	}
	return false
}

// 履歴の action
const (
	ActionAssigned      = "Assigned"
	ActionReturned      = "Returned"
	ActionStatusChanged = "StatusChanged"
)

// Key は access_keys テーブルの1行。AssignedTo は Assigned の時だけ Valid
type Key struct {
	ID          int64
	Name        string
	Type        string
	Status      Status
	AssignedTo  sql.NullString
	Department  string
	Faculty     string
	Building    string
	Room        string
	Notes       string
	LastUpdated time.Time
}

// HistoryEvent は key_history の1行。insert 後は更新しない
type HistoryEvent struct {
	ID         int64
	EventULID  string
	KeyID      int64
	Action     string
	Person     sql.NullString
	Department string
	Faculty    string
	Notes      string
	Actor      string
	OccurredAt time.Time
}

type Stats struct {
	Total     int64
	Assigned  int64
	Available int64
	Lost      int64
	Damaged   int64
}

type Filter struct {
	Status     *Status
	Department *string
	Search     *string // name / room / assignedTo の部分一致
}
