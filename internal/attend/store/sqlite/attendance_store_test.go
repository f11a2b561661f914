package sqlite_test

import (
	"context"
	"sync"
	"testing"

	storepkg "github.com/rvachhani/presenced/internal/attend/store"
	"github.com/rvachhani/presenced/internal/attend/store/sqlite"
)

func TestAppend_AssignsGaplessSequence(t *testing.T) {
	conn := openTestDB(t)
	s := sqlite.NewAttendanceStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		row, err := s.Append(ctx, "E1", "Ann", storepkg.StatusPresent)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if row.Seq != int64(i) {
			t.Errorf("append %d: expected seq %d, got %d", i, i, row.Seq)
		}
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 rows, got %d", n)
	}
}

func TestAppend_ReturnsTimestampAndArguments(t *testing.T) {
	conn := openTestDB(t)
	s := sqlite.NewAttendanceStore(conn, newTestWriter(t, conn))

	row, err := s.Append(context.Background(), "E7", "Grace", storepkg.StatusAbsent)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if row.EmployeeCode != "E7" || row.EmployeeName != "Grace" || row.Status != storepkg.StatusAbsent {
		t.Errorf("row does not echo append arguments: %+v", row)
	}
	if row.Date == "" || row.Time == "" {
		t.Error("expected date and time taken at write time")
	}
}

func TestReadAll_ReturnsRowsInWriteOrder(t *testing.T) {
	conn := openTestDB(t)
	s := sqlite.NewAttendanceStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	codes := []string{"E1", "E2", "E3"}
	for _, c := range codes {
		if _, err := s.Append(ctx, c, "", storepkg.StatusPresent); err != nil {
			t.Fatalf("append %s: %v", c, err)
		}
	}

	rows, err := s.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(rows) != len(codes) {
		t.Fatalf("expected %d rows, got %d", len(codes), len(rows))
	}
	for i, c := range codes {
		if rows[i].Seq != int64(i+1) {
			t.Errorf("row %d: expected seq %d, got %d", i, i+1, rows[i].Seq)
		}
		if rows[i].EmployeeCode != c {
			t.Errorf("row %d: expected code %s, got %s", i, c, rows[i].EmployeeCode)
		}
	}
}

func TestAppend_ConcurrentWritersNeverShareSequence(t *testing.T) {
	conn := openTestDB(t)
	s := sqlite.NewAttendanceStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	const writers = 8
	const perWriter = 10

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := s.Append(ctx, "E1", "Ann", storepkg.StatusPresent); err != nil {
					t.Errorf("append: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	rows, err := s.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(rows) != writers*perWriter {
		t.Fatalf("expected %d rows, got %d", writers*perWriter, len(rows))
	}
	for i, row := range rows {
		if row.Seq != int64(i+1) {
			t.Fatalf("sequence gap or duplicate at index %d: seq %d", i, row.Seq)
		}
	}
}

func TestAppend_ContinuesAfterExistingRows(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	s1 := sqlite.NewAttendanceStore(conn, newTestWriter(t, conn))
	if _, err := s1.Append(ctx, "E1", "Ann", storepkg.StatusPresent); err != nil {
		t.Fatalf("append: %v", err)
	}

	// A fresh store over the same database must append after the last
	// existing row, never restart numbering.
	s2 := sqlite.NewAttendanceStore(conn, newTestWriter(t, conn))
	row, err := s2.Append(ctx, "E2", "Ben", storepkg.StatusPresent)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if row.Seq != 2 {
		t.Errorf("expected seq to continue at 2, got %d", row.Seq)
	}
}
