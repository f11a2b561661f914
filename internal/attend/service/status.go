package service

import (
	"context"

	"github.com/rvachhani/presenced/internal/attend/cache"
	"github.com/rvachhani/presenced/internal/attend/directory"
	"github.com/rvachhani/presenced/internal/attend/types"
)

// ConnectionReporter exposes the broker listener's connection flag.
type ConnectionReporter interface {
	Connected() bool
}

// RecordCounter reports the durable attendance log's row total.
type RecordCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Status composes the point-in-time snapshot served by the health
// endpoint. Pure reads; a missing or failing collaborator reports as
// zero/empty rather than failing.
type Status struct {
	broker  ConnectionReporter
	dir     *directory.Directory
	recent  *cache.Recent
	records RecordCounter
	logPath string
}

func NewStatus(broker ConnectionReporter, dir *directory.Directory, recent *cache.Recent, records RecordCounter, logPath string) *Status {
	return &Status{broker: broker, dir: dir, recent: recent, records: records, logPath: logPath}
}

func (s *Status) Snapshot(ctx context.Context) types.StatusSnapshot {
	snap := types.StatusSnapshot{
		Status:  "ok",
		LogFile: s.logPath,
	}
	if s.broker != nil {
		snap.MQTTConnected = s.broker.Connected()
	}
	if s.dir != nil {
		snap.EmployeesLoaded = s.dir.Size()
	}
	if s.records != nil {
		if n, err := s.records.Count(ctx); err == nil {
			snap.TotalRecords = n
		}
	}
	if s.recent != nil {
		if t := s.recent.LastEventAt(); !t.IsZero() {
			snap.LastDetection = t.Format("2006-01-02 15:04:05")
		}
	}
	return snap
}
