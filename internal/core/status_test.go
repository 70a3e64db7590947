package core

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"uploaded to processing", StatusUploaded, StatusProcessing, true},
		{"processing to processed", StatusProcessing, StatusProcessed, true},
		{"processing to error", StatusProcessing, StatusError, true},
		{"idempotent claim", StatusProcessing, StatusProcessing, true},

		{"skip to processed", StatusUploaded, StatusProcessed, false},
		{"skip to error", StatusUploaded, StatusError, false},
		{"backwards from processing", StatusProcessing, StatusUploaded, false},
		{"out of processed", StatusProcessed, StatusProcessing, false},
		{"out of error", StatusError, StatusProcessing, false},
		{"processed to error", StatusProcessed, StatusError, false},
		{"error to processed", StatusError, StatusProcessed, false},
		{"re-upload", StatusUploaded, StatusUploaded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	if StatusUploaded.IsTerminal() || StatusProcessing.IsTerminal() {
		t.Error("uploaded and processing must not be terminal")
	}
	if !StatusProcessed.IsTerminal() || !StatusError.IsTerminal() {
		t.Error("processed and error must be terminal")
	}
}

func TestIsValidStatus(t *testing.T) {
	for _, s := range []string{"uploaded", "processing", "processed", "error"} {
		if !IsValidStatus(s) {
			t.Errorf("IsValidStatus(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "deleted", "UPLOADED", "done"} {
		if IsValidStatus(s) {
			t.Errorf("IsValidStatus(%q) = true, want false", s)
		}
	}
}

func TestTransitionSourcesCoverDAG(t *testing.T) {
	// Every status reachable via TransitionSources must agree with CanTransition.
	all := []Status{StatusUploaded, StatusProcessing, StatusProcessed, StatusError}
	for _, target := range all {
		for _, from := range TransitionSources(target) {
			if !CanTransition(from, target) {
				t.Errorf("TransitionSources(%s) includes %s but CanTransition disagrees", target, from)
			}
		}
	}
	if len(TransitionSources(StatusUploaded)) != 0 {
		t.Error("uploaded is the entry state, nothing transitions into it")
	}
}
