package model

import "time"

// Status is the lifecycle state of an issue.
type Status string

const (
	StatusOpen       Status = "open"
	StatusTriaged    Status = "triaged"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Statuses lists every status in display order. Stats responses iterate this
// so each key appears even when its count is zero.
var Statuses = []Status{StatusOpen, StatusTriaged, StatusInProgress, StatusDone}

// ValidStatus reports whether s is a known status value.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusOpen, StatusTriaged, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Severity is the impact classification of an issue.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity in ascending order.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// ValidSeverity reports whether s is a known severity value.
func ValidSeverity(s string) bool {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Issue represents a filed issue.
//
// CreatedBy always references a user row — anonymous submissions are owned
// by the shared anonymous placeholder account, never NULL.
type Issue struct {
	ID          string    `json:"id"          db:"id"`
	Title       string    `json:"title"       db:"title"`
	Description string    `json:"description" db:"description"`
	Status      Status    `json:"status"      db:"status"`
	Severity    Severity  `json:"severity"    db:"severity"`
	CreatedBy   string    `json:"createdBy"   db:"created_by"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt"   db:"updated_at"`
}

// Stats is the aggregation returned by the stats endpoint. Both maps carry
// every enumeration value, zero-filled when absent.
type Stats struct {
	StatusCounts   map[Status]int   `json:"status_counts"`
	SeverityCounts map[Severity]int `json:"severity_counts"`
	Total          int              `json:"total_issues"`
}
