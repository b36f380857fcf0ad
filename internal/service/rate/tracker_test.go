package rate

import "testing"

func TestTracker_FirstUpdateAssignsDirectly(t *testing.T) {
	var tr Tracker

	if tr.HasEstimate() {
		t.Error("expected no estimate before first update")
	}
	if tr.Current() != 0 {
		t.Errorf("expected 0 before first update, got %v", tr.Current())
	}

	// First segment must not be averaged against the zero baseline.
	got := tr.Update(60)
	if got != 60 {
		t.Errorf("expected first update to assign 60, got %v", got)
	}
	if !tr.HasEstimate() {
		t.Error("expected an estimate after first update")
	}
}

func TestTracker_SecondUpdateAverages(t *testing.T) {
	var tr Tracker

	tr.Update(60)
	got := tr.Update(180)
	if got != 120 {
		t.Errorf("expected (60+180)/2 = 120, got %v", got)
	}
	if tr.Current() != 120 {
		t.Errorf("expected Current 120, got %v", tr.Current())
	}
}

func TestTracker_LongSequence(t *testing.T) {
	var tr Tracker

	tr.Update(100) // 100
	tr.Update(200) // 150
	got := tr.Update(50)
	if got != 100 {
		t.Errorf("expected (150+50)/2 = 100, got %v", got)
	}
}
