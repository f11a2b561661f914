package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rvachhani/presenced/internal/attend/store"
	"github.com/rvachhani/presenced/internal/attend/vector"
)

// Identity is one enrolled person as seen by the matcher.
type Identity struct {
	EmployeeCode string
	EmployeeName string
	Template     vector.Vector
}

// Directory holds the in-memory snapshot of enrolled identities.
// Reload replaces the whole snapshot atomically, so a matcher running
// concurrently either sees the old set or the new set, never a mix.
type Directory struct {
	store  store.EmployeeStore
	logger *slog.Logger

	mu         sync.RWMutex
	byCode     map[string]Identity
	identities []Identity // stable slice handed to the matcher
}

func New(st store.EmployeeStore, logger *slog.Logger) *Directory {
	return &Directory{
		store:  st,
		logger: logger,
		byCode: make(map[string]Identity),
	}
}

// Reload fetches all enrolled identities from the backing store and
// installs them as the new snapshot. Identities without a template are
// still listed (name lookups work) but are invisible to the matcher.
func (d *Directory) Reload(ctx context.Context) (int, error) {
	recs, err := d.store.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("directory reload: %w", err)
	}

	byCode := make(map[string]Identity, len(recs))
	identities := make([]Identity, 0, len(recs))
	for _, r := range recs {
		id := Identity{
			EmployeeCode: r.EmployeeCode,
			EmployeeName: r.EmployeeName,
			Template:     r.Template,
		}
		byCode[id.EmployeeCode] = id
		if len(id.Template) > 0 {
			identities = append(identities, id)
		}
	}

	d.mu.Lock()
	d.byCode = byCode
	d.identities = identities
	d.mu.Unlock()

	d.logger.Info("identity directory reloaded",
		"employees", len(byCode),
		"with_template", len(identities))
	return len(byCode), nil
}

// Size returns the number of enrolled identities in the snapshot.
func (d *Directory) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byCode)
}

// LookupName returns the display name for a code, or "Unknown" if the
// code is not enrolled.
func (d *Directory) LookupName(employeeCode string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if id, ok := d.byCode[employeeCode]; ok && id.EmployeeName != "" {
		return id.EmployeeName
	}
	return "Unknown"
}

// Identities returns the current matchable snapshot. The slice is
// replaced wholesale on reload and must not be mutated by callers.
func (d *Directory) Identities() []Identity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.identities
}
