package directory

import (
	"context"
	"log/slog"
	"time"
)

// Refresher periodically reloads the directory so identities enrolled
// out-of-band (e.g. directly on the camera side) become matchable
// without an explicit reload call. It runs as a background goroutine
// and is safe to stop via its context or the Stop method.
//
// An interval of 0 disables refreshing entirely.
type Refresher struct {
	dir      *Directory
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewRefresher creates a refresher but does not start it.
// Call Start to begin the background loop.
func NewRefresher(dir *Directory, interval time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		dir:      dir,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins the background reload loop. The loop exits when ctx is
// cancelled or Stop is called.
func (r *Refresher) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("directory refresher disabled (interval=0)")
		close(r.done)
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)

	go r.loop(ctx)

	r.logger.Info("directory refresher started", "interval", r.interval)
}

// Stop signals the refresher to exit and waits for it to finish.
func (r *Refresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *Refresher) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.dir.Reload(ctx); err != nil {
				r.logger.Error("periodic directory reload failed", "error", err)
			}
		}
	}
}
