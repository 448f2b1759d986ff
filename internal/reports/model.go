package reports

import "time"

const (
	TypeAssigned   = "assigned"
	TypeAvailable  = "available"
	TypeDepartment = "department"
	TypeDate       = "date"
)

const (
	ActivityLimit = 10
	dateLayout    = "2006-01-02"
)

type ActivityRow struct {
	ID         int64     `json:"id"`
	KeyID      int64     `json:"keyId"`
	KeyName    string    `json:"keyName"`
	Action     string    `json:"action"`
	Person     *string   `json:"person"`
	Department string    `json:"department"`
	Faculty    string    `json:"faculty"`
	Notes      string    `json:"notes"`
	Actor      string    `json:"actor"`
	Date       time.Time `json:"date"`
}

type KeyRow struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	AssignedTo  *string   `json:"assignedTo"`
	Department  string    `json:"department"`
	Faculty     string    `json:"faculty"`
	Building    string    `json:"building"`
	Room        string    `json:"room"`
	Notes       string    `json:"notes"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// ReportRequest: format はフロントが送ってくるが出力は常に JSON
type ReportRequest struct {
	Type       string `json:"type" binding:"required"`
	Format     string `json:"format"`
	Department string `json:"department"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
}

// Report の Rows は type によって []KeyRow か []ActivityRow
type Report struct {
	Type        string    `json:"type"`
	GeneratedAt time.Time `json:"generatedAt"`
	Count       int       `json:"count"`
	Rows        any       `json:"rows"`
}
