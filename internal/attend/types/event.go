package types

// Assertion is a pre-resolved attendance event published by an upstream
// detector (e.g. an AI camera that already matched the face on-device).
type Assertion struct {
	EmployeeCode string `json:"employee_code"`
	EmployeeName string `json:"employee_name,omitempty"`
	Person       string `json:"person,omitempty"` // legacy alias for employee_name
	Present      *bool  `json:"present,omitempty"`
}

// Name returns the display name, preferring employee_name over the
// legacy person key.
func (a Assertion) Name() string {
	if a.EmployeeName != "" {
		return a.EmployeeName
	}
	return a.Person
}

// IsPresent defaults to true when the present flag is omitted.
func (a Assertion) IsPresent() bool {
	if a.Present == nil {
		return true
	}
	return *a.Present
}

// Outcome statuses published on the result topic and returned to
// administrative callers.
const (
	StatusLogged   = "logged"   // assertion accepted and durably recorded
	StatusVerified = "verified" // capture matched, accepted and recorded
	StatusNoMatch  = "no_match" // capture yielded no candidate
	StatusCooldown = "cooldown" // suppressed by the per-identity cooldown
	StatusError    = "error"    // decode or storage failure
)

// Outcome is the single result emitted for each processed event.
type Outcome struct {
	Status       string   `json:"status"`
	EmployeeCode string   `json:"employee_code,omitempty"`
	EmployeeName string   `json:"employee_name,omitempty"`
	Date         string   `json:"date,omitempty"`
	Time         string   `json:"time,omitempty"`
	Presence     *bool    `json:"presence,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	Message      string   `json:"message,omitempty"`
}

// Accepted reports whether the outcome corresponds to a durably
// recorded event.
func (o Outcome) Accepted() bool {
	return o.Status == StatusLogged || o.Status == StatusVerified
}
