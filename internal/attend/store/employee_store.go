package store

import (
	"context"
	"errors"

	"github.com/rvachhani/presenced/internal/attend/vector"
)

var ErrEmployeeNotFound = errors.New("employee not found")

// EmployeeRecord is one enrolled identity: a code, a display name and
// the face template the matcher compares captures against.
type EmployeeRecord struct {
	EmployeeCode string
	EmployeeName string
	Template     vector.Vector
}

// EmployeeStore persists enrolled identities. The directory loads a full
// snapshot from it; administrative calls mutate it.
type EmployeeStore interface {
	GetAll(ctx context.Context) ([]EmployeeRecord, error)
	Get(ctx context.Context, employeeCode string) (EmployeeRecord, error)
	Upsert(ctx context.Context, rec EmployeeRecord) error
	Delete(ctx context.Context, employeeCode string) error
}
