package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/rvachhani/presenced/internal/db"
)

func openWorkerTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:worker_%s?mode=memory&cache=shared", t.Name())
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if _, err := conn.Exec(`CREATE TABLE events (n INTEGER NOT NULL);`); err != nil {
		conn.Close()
		t.Fatalf("create table: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestDo_RunsTransactions(t *testing.T) {
	conn := openWorkerTestDB(t)
	w := db.NewWorker(conn)
	defer w.Close()

	for i := 1; i <= 3; i++ {
		err := w.Do(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO events(n) VALUES (?);`, i)
			return err
		})
		if err != nil {
			t.Fatalf("do %d: %v", i, err)
		}
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM events;`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
}

func TestDo_CommitReportedDespiteCallerCancel(t *testing.T) {
	conn := openWorkerTestDB(t)
	w := db.NewWorker(conn)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The caller gives up just as the write lands. The committed row must
	// still be reported as success, never as a context error — otherwise a
	// retry would duplicate it.
	err := w.Do(ctx, func(txCtx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(txCtx, `INSERT INTO events(n) VALUES (1);`); err != nil {
			return err
		}
		cancel()
		return nil
	})
	if err != nil {
		t.Fatalf("expected the committed write reported as success, got %v", err)
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM events;`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected the row durable, got %d rows", n)
	}
}

func TestDo_FailedFnRollsBack(t *testing.T) {
	conn := openWorkerTestDB(t)
	w := db.NewWorker(conn)
	defer w.Close()

	wantErr := fmt.Errorf("boom")
	err := w.Do(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO events(n) VALUES (1);`); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("expected fn error returned, got %v", err)
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM events;`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected rollback to leave 0 rows, got %d", n)
	}
}
