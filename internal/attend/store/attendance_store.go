package store

import (
	"context"
	"errors"
)

// Row statuses for the attendance log.
const (
	StatusPresent = "Present"
	StatusAbsent  = "Absent"
)

// ErrStorage wraps failures of the durable medium so callers can
// distinguish a sink outage from a validation problem.
var ErrStorage = errors.New("attendance storage unavailable")

// AttendanceRow is one durably recorded attendance event. Rows are
// append-only and immutable once written. Seq is 1-based, strictly
// increasing and gapless within a log.
type AttendanceRow struct {
	Seq          int64  `json:"sr_no"`
	EmployeeCode string `json:"employee_code"`
	EmployeeName string `json:"employee_name"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Status       string `json:"status"`
}

// AttendanceStore is the append-only durable sink for accepted events.
//
// Append is the single serialization point for all writers: it computes
// Seq from the current row count and persists the row before returning,
// so two concurrent writers can never share a sequence number.
type AttendanceStore interface {
	Append(ctx context.Context, employeeCode, employeeName, status string) (AttendanceRow, error)
	ReadAll(ctx context.Context) ([]AttendanceRow, error)
	Count(ctx context.Context) (int64, error)
}
