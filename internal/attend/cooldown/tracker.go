package cooldown

import (
	"sync"
	"time"
)

// Tracker suppresses repeat acceptances of the same identity within a
// configured window. It is shared by the broker dispatch loop and
// administrative callers, so each identity carries its own lock: Gate
// holds it across the check, the caller's durable write and the
// conditional record, and two near-simultaneous events for one identity
// can never both pass. Distinct identities never block each other.
type Tracker struct {
	window time.Duration

	mu     sync.Mutex
	idents map[string]*identity
}

type identity struct {
	mu   sync.Mutex
	last time.Time
}

func New(window time.Duration) *Tracker {
	return &Tracker{
		window: window,
		idents: make(map[string]*identity),
	}
}

func (t *Tracker) identity(employeeCode string) *identity {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.idents[employeeCode]
	if !ok {
		id = &identity{}
		t.idents[employeeCode] = id
	}
	return id
}

// Gate runs accept under the identity's lock. If the window still
// suppresses the identity, accept is not called and Gate reports the
// remaining suppression. Otherwise accept runs, and only a true return
// (the event became durable) starts a new window — a failed write never
// poisons it. Concurrent Gate calls for the same identity serialize, so
// at most one of them can accept within one window.
func (t *Tracker) Gate(employeeCode string, now func() time.Time, accept func() bool) (bool, time.Duration) {
	id := t.identity(employeeCode)
	id.mu.Lock()
	defer id.mu.Unlock()

	if !id.last.IsZero() {
		if elapsed := now().Sub(id.last); elapsed < t.window {
			return true, t.window - elapsed
		}
	}
	if accept() {
		id.last = now()
	}
	return false, 0
}

// Suppressed reports whether an acceptance for employeeCode at now falls
// inside the cooldown window of the previous acceptance, and how long
// the suppression has left. Read-only; use Gate when the answer decides
// a write.
func (t *Tracker) Suppressed(employeeCode string, now time.Time) (bool, time.Duration) {
	id := t.identity(employeeCode)
	id.mu.Lock()
	defer id.mu.Unlock()

	if id.last.IsZero() {
		return false, 0
	}
	elapsed := now.Sub(id.last)
	if elapsed < t.window {
		return true, t.window - elapsed
	}
	return false, 0
}

// RecordAccept marks employeeCode as accepted at now.
func (t *Tracker) RecordAccept(employeeCode string, now time.Time) {
	id := t.identity(employeeCode)
	id.mu.Lock()
	id.last = now
	id.mu.Unlock()
}

// Clear removes the suppression for one identity.
func (t *Tracker) Clear(employeeCode string) {
	t.mu.Lock()
	id, ok := t.idents[employeeCode]
	t.mu.Unlock()
	if !ok {
		return
	}
	id.mu.Lock()
	id.last = time.Time{}
	id.mu.Unlock()
}

// Reset removes all entries. Administrative/test use.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.idents = make(map[string]*identity)
}
