package coach

import (
	"testing"

	"github.com/socratic-mirror/coach/pkg/coach/session"
)

func TestCountFillerWords(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"clear and direct answer", 0},
		{"um well uh I think", 2},
		{"Um... UM... basically you know", 4},
		{"I like this, like, you know", 3},
	}
	for _, tc := range tests {
		if got := CountFillerWords(tc.text); got != tc.want {
			t.Errorf("CountFillerWords(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestDetectBargeInFillerWords(t *testing.T) {
	trigger := DetectBargeIn("um well uh it is like this", nil, 0.7)
	if trigger == nil {
		t.Fatalf("DetectBargeIn() = nil, want filler trigger at sensitivity 0.7")
	}
	if trigger.TriggerType != TriggerFillerWords {
		t.Fatalf("TriggerType = %q, want %q", trigger.TriggerType, TriggerFillerWords)
	}
	if want := 1.0 / 3; trigger.Confidence != want {
		t.Fatalf("Confidence = %v, want %v", trigger.Confidence, want)
	}
}

func TestDetectBargeInBelowFillerFloor(t *testing.T) {
	// Two fillers stay under the floor of three even at max sensitivity.
	if trigger := DetectBargeIn("um well uh fine", nil, 1.0); trigger != nil {
		t.Fatalf("trigger = %+v, want nil below the filler floor", trigger)
	}
}

func TestDetectBargeInStressSpike(t *testing.T) {
	frame := &session.BiometricFrame{StressLevel: "high"}
	trigger := DetectBargeIn("a calm clear answer", frame, 0.7)
	if trigger == nil || trigger.TriggerType != TriggerStressSpike {
		t.Fatalf("trigger = %+v, want stress_spike", trigger)
	}
	if trigger.BiometricContext != frame {
		t.Fatalf("BiometricContext not carried through")
	}
}

func TestDetectBargeInGazeAway(t *testing.T) {
	frame := &session.BiometricFrame{GazeDirection: [3]float64{0.6, 0, 0}}
	trigger := DetectBargeIn("a calm clear answer", frame, 0.7)
	if trigger == nil || trigger.TriggerType != TriggerGazeAway {
		t.Fatalf("trigger = %+v, want gaze_away", trigger)
	}

	centered := &session.BiometricFrame{GazeDirection: [3]float64{0.5, -0.5, 0.9}}
	if got := DetectBargeIn("a calm clear answer", centered, 0.7); got != nil {
		t.Fatalf("trigger = %+v, want nil for centered gaze", got)
	}
}

func TestDetectBargeInSensitivityThreshold(t *testing.T) {
	// One signal fires: three filler words.
	transcript := "um well uh it is like this"

	// Sensitivity 0 requires all three signals.
	if got := DetectBargeIn(transcript, nil, 0); got != nil {
		t.Fatalf("trigger = %+v, want nil at sensitivity 0 with one signal", got)
	}

	frame := &session.BiometricFrame{
		StressLevel:   "high",
		GazeDirection: [3]float64{-0.8, 0, 0},
	}
	trigger := DetectBargeIn(transcript, frame, 0)
	if trigger == nil {
		t.Fatalf("DetectBargeIn() = nil with all three signals at sensitivity 0")
	}
	if trigger.TriggerType != TriggerCombined {
		t.Fatalf("TriggerType = %q, want %q", trigger.TriggerType, TriggerCombined)
	}
	if trigger.Confidence != 1 {
		t.Fatalf("Confidence = %v, want 1", trigger.Confidence)
	}
	if len(trigger.Triggers) != 3 {
		t.Fatalf("Triggers = %v, want 3 entries", trigger.Triggers)
	}

	// Mid sensitivity requires two signals.
	stress := &session.BiometricFrame{StressLevel: "high"}
	if got := DetectBargeIn("a calm clear answer", stress, 0.4); got != nil {
		t.Fatalf("trigger = %+v, want nil at sensitivity 0.4 with one signal", got)
	}
	if got := DetectBargeIn(transcript, stress, 0.4); got == nil {
		t.Fatalf("DetectBargeIn() = nil at sensitivity 0.4 with two signals")
	}
}

func TestDetectBargeInNoSignals(t *testing.T) {
	if got := DetectBargeIn("a calm clear answer", nil, 1.0); got != nil {
		t.Fatalf("trigger = %+v, want nil with no signals at max sensitivity", got)
	}
}

func TestBargeInFeedbackCoversTriggers(t *testing.T) {
	for _, typ := range []string{TriggerFillerWords, TriggerStressSpike, TriggerGazeAway, TriggerCombined, "unknown"} {
		if bargeInFeedback(typ) == "" {
			t.Errorf("bargeInFeedback(%q) = empty", typ)
		}
	}
}
