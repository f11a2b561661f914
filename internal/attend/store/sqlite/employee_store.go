package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/rvachhani/presenced/internal/db"

	"github.com/rvachhani/presenced/internal/attend/store"
	"github.com/rvachhani/presenced/internal/attend/vector"
)

type EmployeeStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewEmployeeStore(db *sql.DB, writer *dbpkg.Worker) *EmployeeStore {
	return &EmployeeStore{db: db, writer: writer}
}

func (s *EmployeeStore) GetAll(ctx context.Context) ([]store.EmployeeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT employee_code, employee_name, template
FROM employees
ORDER BY employee_code;
`)
	if err != nil {
		return nil, fmt.Errorf("load employees: %w", err)
	}
	defer rows.Close()

	var out []store.EmployeeRecord
	for rows.Next() {
		var (
			rec  store.EmployeeRecord
			blob []byte
		)
		if err := rows.Scan(&rec.EmployeeCode, &rec.EmployeeName, &blob); err != nil {
			return nil, fmt.Errorf("load employees: scan: %w", err)
		}
		if len(blob) > 0 {
			v, err := vector.Decode(blob)
			if err != nil {
				return nil, fmt.Errorf("load employees: template for %s: %w", rec.EmployeeCode, err)
			}
			rec.Template = v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load employees: %w", err)
	}
	return out, nil
}

func (s *EmployeeStore) Get(ctx context.Context, employeeCode string) (store.EmployeeRecord, error) {
	var (
		rec  store.EmployeeRecord
		blob []byte
	)
	err := s.db.QueryRowContext(ctx, `
SELECT employee_code, employee_name, template FROM employees WHERE employee_code = ?;
`, employeeCode).Scan(&rec.EmployeeCode, &rec.EmployeeName, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return store.EmployeeRecord{}, store.ErrEmployeeNotFound
	}
	if err != nil {
		return store.EmployeeRecord{}, fmt.Errorf("get employee %s: %w", employeeCode, err)
	}
	if len(blob) > 0 {
		v, err := vector.Decode(blob)
		if err != nil {
			return store.EmployeeRecord{}, fmt.Errorf("get employee %s: template: %w", employeeCode, err)
		}
		rec.Template = v
	}
	return rec, nil
}

func (s *EmployeeStore) Upsert(ctx context.Context, rec store.EmployeeRecord) error {
	code := strings.TrimSpace(rec.EmployeeCode)
	if code == "" {
		return errors.New("employee_code is required")
	}

	var blob any
	if len(rec.Template) > 0 {
		blob = vector.Encode(rec.Template)
	}
	nowMs := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO employees(employee_code, employee_name, template, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(employee_code) DO UPDATE SET
  employee_name = excluded.employee_name,
  template = COALESCE(excluded.template, employees.template),
  updated_at_ms = excluded.updated_at_ms;
`, code, rec.EmployeeName, blob, nowMs, nowMs); err != nil {
			return fmt.Errorf("upsert employee %s: %w", code, err)
		}
		return nil
	})
}

func (s *EmployeeStore) Delete(ctx context.Context, employeeCode string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM employees WHERE employee_code = ?;`, employeeCode)
		if err != nil {
			return fmt.Errorf("delete employee %s: %w", employeeCode, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrEmployeeNotFound
		}
		return nil
	})
}
