package coach

import (
	"math"
	"strings"

	"github.com/socratic-mirror/coach/pkg/coach/session"
)

// Barge-in trigger names. "combined" is reported when more than one signal
// fired in the same evaluation.
const (
	TriggerFillerWords = "filler_words"
	TriggerStressSpike = "stress_spike"
	TriggerGazeAway    = "gaze_away"
	TriggerCombined    = "combined"
)

// fillerLexicon is shared by the barge-in detector and the public-speaking
// metrics. Counting is substring occurrence over the lowercased transcript.
var fillerLexicon = []string{"um", "uh", "like", "you know", "basically", "literally"}

// CountFillerWords counts filler-word occurrences in text.
func CountFillerWords(text string) int {
	lowered := strings.ToLower(text)
	count := 0
	for _, word := range fillerLexicon {
		count += strings.Count(lowered, word)
	}
	return count
}

// BargeInTrigger describes a fired interruption decision.
type BargeInTrigger struct {
	TriggerType      string                  `json:"trigger_type"`
	Confidence       float64                 `json:"confidence"`
	Triggers         []string                `json:"triggers"`
	BiometricContext *session.BiometricFrame `json:"biometric_context"`
}

// DetectBargeIn decides whether to interrupt the user. It is pure and
// stateless: transcript, the latest biometric frame (optional), and the
// session's sensitivity knob in [0,1] fully determine the outcome.
//
// Sensitivity maps to a signal threshold of max(1, round(3*(1-sensitivity))):
// at 1.0 any single signal interrupts, at 0 all three must fire at once. The
// inversion (higher sensitivity = more willing to interrupt) is the documented
// contract.
func DetectBargeIn(transcript string, frame *session.BiometricFrame, sensitivity float64) *BargeInTrigger {
	var triggers []string

	if CountFillerWords(transcript) >= 3 {
		triggers = append(triggers, TriggerFillerWords)
	}

	if frame != nil {
		if frame.StressLevel == "high" {
			triggers = append(triggers, TriggerStressSpike)
		}
		if math.Abs(frame.GazeDirection[0]) > 0.5 || math.Abs(frame.GazeDirection[1]) > 0.5 {
			triggers = append(triggers, TriggerGazeAway)
		}
	}

	threshold := int(math.Round(3 * (1 - sensitivity)))
	if threshold < 1 {
		threshold = 1
	}

	if len(triggers) < threshold {
		return nil
	}

	triggerType := triggers[0]
	if len(triggers) > 1 {
		triggerType = TriggerCombined
	}
	return &BargeInTrigger{
		TriggerType:      triggerType,
		Confidence:       float64(len(triggers)) / 3,
		Triggers:         triggers,
		BiometricContext: frame,
	}
}

// bargeInFeedback is the corrective line spoken for each trigger type.
func bargeInFeedback(triggerType string) string {
	switch triggerType {
	case TriggerFillerWords:
		return "Stop. You are using too many filler words. Take a breath and restart your thought clearly."
	case TriggerStressSpike:
		return "Pause. I can tell you are nervous. Take a moment to collect yourself."
	case TriggerGazeAway:
		return "Look at me. Maintain eye contact when speaking."
	case TriggerCombined:
		return "Stop. Let us reset. You are showing stress, poor eye contact, and using filler words. Breathe and try again."
	default:
		return "Let us pause and refocus."
	}
}
