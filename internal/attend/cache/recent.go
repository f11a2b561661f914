package cache

import (
	"sync"
	"time"

	"github.com/rvachhani/presenced/internal/attend/types"
)

// DefaultCapacity bounds the recent-outcome cache.
const DefaultCapacity = 100

// Recent is a fixed-capacity FIFO of the latest accepted outcomes, kept
// purely in memory so status reads never touch the durable log. Oldest
// entries are evicted first; Snapshot returns insertion order with the
// most recent entry last.
type Recent struct {
	mu       sync.Mutex
	entries  []types.Outcome
	capacity int
	lastAt   time.Time
}

func New(capacity int) *Recent {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recent{capacity: capacity}
}

func (r *Recent) Push(o types.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, o)
	if len(r.entries) > r.capacity {
		// Shift rather than reslice so the backing array does not pin
		// evicted outcomes forever.
		copy(r.entries, r.entries[1:])
		r.entries = r.entries[:r.capacity]
	}
	r.lastAt = time.Now()
}

func (r *Recent) Snapshot() []types.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Outcome, len(r.entries))
	copy(out, r.entries)
	return out
}

// LastEventAt returns the wall-clock time of the most recent push, or a
// zero time if nothing has been cached since startup.
func (r *Recent) LastEventAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastAt
}
