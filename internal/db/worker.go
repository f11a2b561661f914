package db

import (
	"context"
	"database/sql"
)

// Worker funnels every write transaction through one goroutine. With a
// single-connection SQLite handle this is what makes the attendance
// sink's read-count-then-append a true critical section: sequence
// numbers are assigned under the same transaction that inserts the row,
// and no second writer can interleave.

type TxFn func(ctx context.Context, tx *sql.Tx) error

type job struct {
	ctx context.Context
	fn  TxFn
	ch  chan error
}

type Worker struct {
	db   *sql.DB
	jobs chan job
	done chan struct{}
}

func NewWorker(db *sql.DB) *Worker {
	w := &Worker{
		db:   db,
		jobs: make(chan job, 256),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) Close() {
	close(w.jobs)
	<-w.done
}

func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	ch := make(chan error, 1)
	j := job{ctx: ctx, fn: fn, ch: ch}

	// Enqueue — bail out if the caller's context expires while the buffer is full.
	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once enqueued, the transaction runs to completion and its result is
	// always reported. Abandoning the wait on cancellation could claim an
	// error for a write that committed, and a retry would then duplicate it.
	return <-ch
}

func (w *Worker) loop() {
	defer close(w.done)

	for j := range w.jobs {
		// Enqueueing is the cancellation point. After it, the transaction
		// runs detached from the caller's context so a cancel cannot roll
		// back a write whose result the caller will see.
		ctx := context.WithoutCancel(j.ctx)

		tx, err := w.db.BeginTx(ctx, nil)
		if err != nil {
			j.ch <- err
			continue
		}

		if err := j.fn(ctx, tx); err != nil {
			_ = tx.Rollback()
			j.ch <- err
			continue
		}

		j.ch <- tx.Commit()
	}
}
