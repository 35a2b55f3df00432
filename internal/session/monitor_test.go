package session

import "testing"

func TestMonitor_InactiveIgnoresSignals(t *testing.T) {
	m := NewMonitor()

	if got := m.RecordVisibilityLoss(); got != 0 {
		t.Fatalf("violations = %d, want 0 before activation", got)
	}
	m.SetFullscreenExited(true)
	if m.Blocked() {
		t.Fatal("blocked before activation")
	}
}

func TestMonitor_AccumulatesWithoutCeiling(t *testing.T) {
	m := NewMonitor()
	m.Activate()

	for i := 1; i <= 100; i++ {
		if got := m.RecordVisibilityLoss(); got != i {
			t.Fatalf("violations = %d, want %d", got, i)
		}
	}
}

func TestMonitor_FullscreenTogglesBlocking(t *testing.T) {
	m := NewMonitor()
	m.Activate()

	m.SetFullscreenExited(true)
	if !m.Blocked() {
		t.Fatal("not blocked after fullscreen exit")
	}
	if m.Violations() != 0 {
		t.Fatal("fullscreen exit counted as violation")
	}

	m.SetFullscreenExited(false)
	if m.Blocked() {
		t.Fatal("still blocked after fullscreen restore")
	}
}

func TestMonitor_DeactivateKeepsCountClearsBlock(t *testing.T) {
	m := NewMonitor()
	m.Activate()
	m.RecordVisibilityLoss()
	m.RecordVisibilityLoss()
	m.SetFullscreenExited(true)

	m.Deactivate()

	if m.Violations() != 2 {
		t.Fatalf("violations = %d, want 2 retained for persistence", m.Violations())
	}
	if m.Blocked() {
		t.Fatal("blocked posture survived deactivation")
	}
	if got := m.RecordVisibilityLoss(); got != 2 {
		t.Fatalf("violation recorded after deactivation: %d", got)
	}
}
