package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rvachhani/presenced/internal/attend/store"
)

// AttendanceStore is an in-memory append-only attendance log for tests
// and dev environments. Sequence assignment matches the sqlite sink:
// current row count plus one, under the store lock.
type AttendanceStore struct {
	mu   sync.Mutex
	rows []store.AttendanceRow
	err  error
}

func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{}
}

// FailWith makes subsequent Append calls fail with err, simulating an
// unavailable storage medium. Pass nil to restore normal operation.
// Test-only helper.
func (s *AttendanceStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *AttendanceStore) Append(_ context.Context, employeeCode, employeeName, status string) (store.AttendanceRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return store.AttendanceRow{}, s.err
	}

	now := time.Now()
	row := store.AttendanceRow{
		Seq:          int64(len(s.rows)) + 1,
		EmployeeCode: employeeCode,
		EmployeeName: employeeName,
		Date:         now.Format("2006-01-02"),
		Time:         now.Format("15:04:05"),
		Status:       status,
	}
	s.rows = append(s.rows, row)
	return row, nil
}

func (s *AttendanceStore) ReadAll(_ context.Context) ([]store.AttendanceRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AttendanceRow, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

func (s *AttendanceStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}
