package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SeedDevOptions struct {
	// Employees to pre-enroll in dev, as code -> display name.
	// Templates stay NULL; dev flows exercise the assertion path.
	Employees map[string]string
}

func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	employees := opt.Employees
	if len(employees) == 0 {
		employees = map[string]string{
			"E001": "Dev Employee One",
			"E002": "Dev Employee Two",
		}
	}

	for code, name := range employees {
		if _, err := db.ExecContext(ctx, `
INSERT INTO employees(employee_code, employee_name, template, created_at_ms, updated_at_ms)
VALUES (?, ?, NULL, ?, ?)
ON CONFLICT(employee_code) DO UPDATE SET
  employee_name = excluded.employee_name,
  updated_at_ms = excluded.updated_at_ms;
`, code, name, now, now); err != nil {
			return fmt.Errorf("seed employee %s: %w", code, err)
		}
	}

	return nil
}
