package matcher

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rvachhani/presenced/internal/attend/directory"
	"github.com/rvachhani/presenced/internal/attend/types"
	"github.com/rvachhani/presenced/internal/attend/vector"
	"github.com/rvachhani/presenced/internal/metrics"
)

// DefaultTolerance is the inclusive distance bound for a match.
const DefaultTolerance = 0.5

var ErrMissingEmployeeCode = errors.New("assertion is missing employee_code")

// Candidate is one resolved identity with its match confidence in [0,1].
type Candidate struct {
	EmployeeCode string
	EmployeeName string
	Confidence   float64
}

// Matcher resolves captures against the identity directory snapshot.
// It is shared between the broker dispatch loop and manual verification
// calls; Resolve only reads the snapshot, so no locking beyond the
// directory's own is needed.
type Matcher struct {
	dir       *directory.Directory
	extractor vector.Extractor
	tolerance float64
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func New(dir *directory.Directory, ext vector.Extractor, tolerance float64, logger *slog.Logger, m *metrics.Metrics) *Matcher {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Matcher{
		dir:       dir,
		extractor: ext,
		tolerance: tolerance,
		logger:    logger,
		metrics:   m,
	}
}

// Resolve extracts templates from a raw capture and matches each one
// against the directory. Zero extracted faces or an empty directory
// yield an empty result, not an error; a payload that cannot be decoded
// at all is a decode error.
func (m *Matcher) Resolve(payload []byte) ([]Candidate, error) {
	if m.dir.Size() == 0 {
		m.metrics.DirectoryEmptyTotal.Inc()
		m.logger.Warn("capture received but identity directory is empty")
		return nil, nil
	}

	vecs, err := m.extractor.Extract(payload)
	if err != nil {
		return nil, fmt.Errorf("extract templates: %w", err)
	}
	if len(vecs) == 0 {
		m.logger.Debug("no faces in capture")
		return nil, nil
	}

	// Each extracted face resolves independently; a frame with several
	// people produces several candidates.
	var out []Candidate
	for _, v := range vecs {
		if c, ok := m.resolveVector(v); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Matcher) resolveVector(v vector.Vector) (Candidate, bool) {
	ids := m.dir.Identities()
	if len(ids) == 0 {
		m.metrics.DirectoryEmptyTotal.Inc()
		return Candidate{}, false
	}

	best := -1
	bestDist := 0.0
	for i := range ids {
		d := vector.Distance(ids[i].Template, v)
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}

	if bestDist > m.tolerance {
		m.logger.Info("no match for capture", "closest_distance", bestDist)
		return Candidate{}, false
	}

	c := Candidate{
		EmployeeCode: ids[best].EmployeeCode,
		EmployeeName: ids[best].EmployeeName,
		Confidence:   1 - bestDist,
	}
	m.logger.Info("capture matched",
		"employee_code", c.EmployeeCode,
		"employee_name", c.EmployeeName,
		"confidence", c.Confidence)
	return c, true
}

// ResolveAssertion maps a pre-resolved upstream event to a synthetic
// full-confidence candidate, bypassing extraction entirely.
func (m *Matcher) ResolveAssertion(a types.Assertion) (Candidate, error) {
	code := strings.TrimSpace(a.EmployeeCode)
	if code == "" {
		return Candidate{}, ErrMissingEmployeeCode
	}

	name := strings.TrimSpace(a.Name())
	if name == "" {
		name = m.dir.LookupName(code)
	}

	return Candidate{
		EmployeeCode: code,
		EmployeeName: name,
		Confidence:   1.0,
	}, nil
}
