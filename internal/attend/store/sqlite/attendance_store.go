package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/rvachhani/presenced/internal/db"

	"github.com/rvachhani/presenced/internal/attend/store"
)

// AttendanceStore is the durable append-only sink. All writes go through
// the shared db.Worker, so the count-then-insert that assigns seq runs
// as one serialized transaction regardless of how many goroutines call
// Append concurrently.
type AttendanceStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAttendanceStore(db *sql.DB, writer *dbpkg.Worker) *AttendanceStore {
	return &AttendanceStore{db: db, writer: writer}
}

func (s *AttendanceStore) Append(ctx context.Context, employeeCode, employeeName, status string) (store.AttendanceRow, error) {
	now := time.Now()
	row := store.AttendanceRow{
		EmployeeCode: employeeCode,
		EmployeeName: employeeName,
		Date:         now.Format("2006-01-02"),
		Time:         now.Format("15:04:05"),
		Status:       status,
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var count int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM attendance_log;`,
		).Scan(&count); err != nil {
			return fmt.Errorf("append: count rows: %w", err)
		}
		row.Seq = count + 1

		if _, err := tx.ExecContext(ctx, `
INSERT INTO attendance_log(seq, employee_code, employee_name, date, time, status, logged_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, row.Seq, row.EmployeeCode, row.EmployeeName, row.Date, row.Time, row.Status,
			now.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("append: insert row: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.AttendanceRow{}, err
	}
	return row, nil
}

func (s *AttendanceStore) ReadAll(ctx context.Context) ([]store.AttendanceRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT seq, employee_code, employee_name, date, time, status
FROM attendance_log
ORDER BY seq;
`)
	if err != nil {
		return nil, fmt.Errorf("read attendance: %w", err)
	}
	defer rows.Close()

	var out []store.AttendanceRow
	for rows.Next() {
		var r store.AttendanceRow
		if err := rows.Scan(&r.Seq, &r.EmployeeCode, &r.EmployeeName, &r.Date, &r.Time, &r.Status); err != nil {
			return nil, fmt.Errorf("read attendance: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read attendance: %w", err)
	}
	return out, nil
}

func (s *AttendanceStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_log;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return n, nil
}
