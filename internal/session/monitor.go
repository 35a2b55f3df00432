package session

// Monitor accumulates integrity signals for one attempt. It is not a gate
// on scoring: violations are recorded and persisted but never affect the
// result. Fullscreen exit is the exception — it blocks further interaction
// (without pausing the countdown) until fullscreen is restored.
//
// A Monitor is owned by exactly one Controller and relies on the
// controller's serialization; it has no locking of its own.
type Monitor struct {
	active     bool
	violations int
	blocked    bool
}

// NewMonitor creates an inactive monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Activate starts signal accumulation. Called when the session enters
// InProgress.
func (m *Monitor) Activate() {
	m.active = true
}

// Deactivate stops signal accumulation and clears the blocked posture.
// The violation count survives deactivation so it can be persisted with
// the completed attempt.
func (m *Monitor) Deactivate() {
	m.active = false
	m.blocked = false
}

// RecordVisibilityLoss counts one backgrounding event and returns the new
// total. No upper bound and no automatic termination. Signals arriving
// while inactive are ignored.
func (m *Monitor) RecordVisibilityLoss() int {
	if m.active {
		m.violations++
	}
	return m.violations
}

// SetFullscreenExited updates the blocking posture. Exiting fullscreen does
// not count as a violation; it only withholds interaction until restored.
func (m *Monitor) SetFullscreenExited(exited bool) {
	if m.active {
		m.blocked = exited
	}
}

// Blocked reports whether interaction is currently withheld.
func (m *Monitor) Blocked() bool {
	return m.blocked
}

// Violations returns the accumulated violation count.
func (m *Monitor) Violations() int {
	return m.violations
}
