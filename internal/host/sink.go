// Package host defines the variable/feedback surface the bridge publishes
// into, plus the Redis-backed production implementation. The ontime client
// only ever talks to the Sink interface so tests can substitute a fake.
package host

// Status is the coarse connection status reported to operators.
type Status string

const (
	StatusOK           Status = "ok"
	StatusConnecting   Status = "connecting"
	StatusDisconnected Status = "disconnected"
	StatusBadConfig    Status = "bad_config"
	StatusUnknownError Status = "unknown_error"
)

// Sink receives state derived from the device. Implementations must be
// safe for use from multiple goroutines and must never block for long:
// callers treat all three methods as fire-and-forget.
type Sink interface {
	// UpdateStatus reports the connection status. detail may be empty.
	UpdateStatus(status Status, detail string)

	// SetVariableValues publishes named display variables. The map is a
	// partial update; unmentioned variables keep their previous values.
	SetVariableValues(values map[string]string)

	// CheckFeedbacks asks the surface to re-evaluate the named feedback
	// indicators against the current variable values.
	CheckFeedbacks(names ...string)
}
