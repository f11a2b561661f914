package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rvachhani/presenced/internal/attend/cache"
	"github.com/rvachhani/presenced/internal/attend/cooldown"
	"github.com/rvachhani/presenced/internal/attend/matcher"
	"github.com/rvachhani/presenced/internal/attend/store"
	"github.com/rvachhani/presenced/internal/attend/types"
	"github.com/rvachhani/presenced/internal/metrics"
)

// Publisher emits an outcome on the result topic. The broker listener
// implements it; tests substitute a recorder.
type Publisher interface {
	Publish(o types.Outcome) error
}

type Dependencies struct {
	Matcher   *matcher.Matcher
	Cooldown  *cooldown.Tracker
	Sink      store.AttendanceStore
	Recent    *cache.Recent
	Publisher Publisher
	Logger    *slog.Logger
	Metrics   *metrics.Metrics

	// Now overrides the wall clock in tests. Nil means time.Now.
	Now func() time.Time
}

// Pipeline drives one event from decode to published outcome:
// match -> cooldown gate -> durable append -> cooldown record -> cache
// -> publish. One Pipeline instance is shared by the broker dispatch
// loop and administrative callers, so accepted events are totally
// ordered through the sink no matter where they enter.
type Pipeline struct {
	matcher  *matcher.Matcher
	cooldown *cooldown.Tracker
	sink     store.AttendanceStore
	recent   *cache.Recent
	pub      Publisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewPipeline(d Dependencies) *Pipeline {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		matcher:  d.Matcher,
		cooldown: d.Cooldown,
		sink:     d.Sink,
		recent:   d.Recent,
		pub:      d.Publisher,
		logger:   d.Logger,
		metrics:  d.Metrics,
		now:      now,
	}
}

// ProcessAssertionPayload decodes a pre-resolved JSON event and runs it
// through the accept path. Always returns exactly one outcome.
func (p *Pipeline) ProcessAssertionPayload(ctx context.Context, payload []byte) types.Outcome {
	var a types.Assertion
	if err := json.Unmarshal(payload, &a); err != nil {
		return p.emit(errorOutcome(fmt.Sprintf("invalid JSON payload: %v", err)))
	}
	return p.ProcessAssertion(ctx, a)
}

// ProcessAssertion runs one pre-resolved event through the accept path.
func (p *Pipeline) ProcessAssertion(ctx context.Context, a types.Assertion) types.Outcome {
	cand, err := p.matcher.ResolveAssertion(a)
	if err != nil {
		return p.emit(errorOutcome(err.Error()))
	}

	present := a.IsPresent()
	rowStatus := store.StatusPresent
	if !present {
		rowStatus = store.StatusAbsent
	}

	return p.emit(p.accept(ctx, cand, rowStatus, types.StatusLogged, &present, nil))
}

// ProcessCapture extracts and matches a raw capture, then runs every
// resolved candidate through the accept path independently. The returned
// outcomes are also published; a capture with no candidates yields a
// single no_match outcome.
func (p *Pipeline) ProcessCapture(ctx context.Context, payload []byte) []types.Outcome {
	cands, err := p.matcher.Resolve(payload)
	if err != nil {
		return []types.Outcome{p.emit(errorOutcome(err.Error()))}
	}
	if len(cands) == 0 {
		return []types.Outcome{p.emit(types.Outcome{
			Status:  types.StatusNoMatch,
			Message: "no enrolled identity matched the capture",
		})}
	}

	out := make([]types.Outcome, 0, len(cands))
	for _, cand := range cands {
		conf := cand.Confidence
		out = append(out, p.emit(p.accept(ctx, cand, store.StatusPresent, types.StatusVerified, nil, &conf)))
	}
	return out
}

// accept runs the check-append-record sequence under the identity's
// cooldown gate, so two concurrent events for one identity can never
// both reach the sink within a window. The cooldown starts only after
// the durable write succeeded; a failed append leaves it untouched so
// the same event can be retried once storage recovers. The cached entry
// is the finished outcome, presence/confidence included.
func (p *Pipeline) accept(ctx context.Context, cand matcher.Candidate, rowStatus, okStatus string, present *bool, confidence *float64) types.Outcome {
	var o types.Outcome
	suppressed, remaining := p.cooldown.Gate(cand.EmployeeCode, p.now, func() bool {
		row, err := p.sink.Append(ctx, cand.EmployeeCode, cand.EmployeeName, rowStatus)
		if err != nil {
			p.metrics.AppendFailuresTotal.Inc()
			p.logger.Error("attendance append failed",
				"employee_code", cand.EmployeeCode,
				"error", err)
			o = errorOutcome(fmt.Sprintf("attendance log write failed: %v", err))
			return false
		}

		o = types.Outcome{
			Status:       okStatus,
			EmployeeCode: row.EmployeeCode,
			EmployeeName: row.EmployeeName,
			Date:         row.Date,
			Time:         row.Time,
			Presence:     present,
			Confidence:   confidence,
		}
		p.recent.Push(o)

		p.logger.Info("attendance recorded",
			"seq", row.Seq,
			"employee_code", row.EmployeeCode,
			"employee_name", row.EmployeeName,
			"status", row.Status)
		return true
	})

	if suppressed {
		p.logger.Debug("cooldown active",
			"employee_code", cand.EmployeeCode,
			"remaining", remaining.Round(time.Second))
		return types.Outcome{
			Status:       types.StatusCooldown,
			EmployeeCode: cand.EmployeeCode,
			EmployeeName: cand.EmployeeName,
			Message:      fmt.Sprintf("cooldown active, %s remaining", remaining.Round(time.Second)),
		}
	}
	return o
}

// emit publishes the outcome and counts it. Publish failures are logged
// and counted but never fail the event: the durable decision has already
// been made.
func (p *Pipeline) emit(o types.Outcome) types.Outcome {
	p.metrics.OutcomesTotal.WithLabelValues(o.Status).Inc()
	if err := p.pub.Publish(o); err != nil {
		p.metrics.PublishErrorsTotal.Inc()
		p.logger.Warn("outcome publish failed", "status", o.Status, "error", err)
	}
	return o
}

func errorOutcome(msg string) types.Outcome {
	return types.Outcome{Status: types.StatusError, Message: msg}
}
