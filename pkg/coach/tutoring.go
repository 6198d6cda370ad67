package coach

import (
	"time"

	"github.com/socratic-mirror/coach/pkg/coach/session"
)

// normalizeFreeForm repairs a parsed model payload into one of the stable
// free-form response shapes. Tutoring turns always come back as steps or
// check-ins; other free-form modes come back as coach responses.
func (e *Engine) normalizeFreeForm(s *session.Session, payload map[string]any, now time.Time) Response {
	switch stringField(payload, "kind") {
	case "step":
		step := e.normalizeStep(s, payload)
		s.AppendTurn("assistant", step.Narration, visualText(step.Visual), now)
		return step
	case "check_in":
		checkIn := normalizeCheckIn(payload, s.TutoringStep)
		s.AppendTurn("assistant", checkIn.Narration, "", now)
		return checkIn
	}

	if s.Mode == session.ModeTutoring {
		// Plain coach output on a tutoring session is promoted to a step so
		// the whiteboard contract never breaks.
		step := e.promoteToStep(s, payload)
		s.AppendTurn("assistant", step.Narration, visualText(step.Visual), now)
		return step
	}

	intent := NormalizeAvatarIntent(payload)
	state := stringField(payload, "pedagogical_state")
	if state == "" {
		state = "explaining"
	}
	resp := NewCoachResponse(stringField(payload, "voice_text"), stringField(payload, "visual_content"), intent, state, now)
	s.AppendTurn("assistant", resp.VoiceText, resp.VisualContent, now)
	return resp
}

// normalizeStep enforces the step contract: monotonic step numbers, narration
// always present, and visual promotion including draw-directive parsing.
func (e *Engine) normalizeStep(s *session.Session, payload map[string]any) *TutoringStep {
	proposed, hasStep := intField(payload, "step")
	if !hasStep || proposed <= s.TutoringStep {
		proposed = s.TutoringStep + 1
	}
	s.TutoringStep = proposed

	narration := stringField(payload, "narration")
	if narration == "" {
		narration = stringField(payload, "voice_text")
	}
	if narration == "" {
		narration = stringField(payload, "visual_content")
	}

	subtopic := stringField(payload, "subtopic_id")
	if subtopic == "" {
		subtopic = "auto"
	}

	visual := normalizeVisual(payload)

	step := NewTutoringStep(proposed, subtopic, narration, visual, NormalizeAvatarIntent(payload))
	step.PedagogicalState = stringField(payload, "pedagogical_state")
	return step
}

// promoteToStep wraps a shapeless tutoring payload into the next step.
func (e *Engine) promoteToStep(s *session.Session, payload map[string]any) *TutoringStep {
	s.TutoringStep++

	narration := stringField(payload, "voice_text")
	if narration == "" {
		narration = stringField(payload, "visual_content")
	}
	if narration == "" {
		narration = "Let us begin with the core idea."
	}

	visual := Visual{Type: VisualNone, Content: stringField(payload, "visual_content")}

	step := NewTutoringStep(s.TutoringStep, "auto", narration, visual, NormalizeAvatarIntent(payload))
	state := stringField(payload, "pedagogical_state")
	if state == "" {
		state = "explaining"
	}
	step.PedagogicalState = state
	return step
}

func normalizeCheckIn(payload map[string]any, currentStep int) *TutoringCheckIn {
	return &TutoringCheckIn{
		Kind:         "check_in",
		Narration:    stringField(payload, "narration"),
		Options:      stringList(payload, "options"),
		Step:         intFieldOr(payload, "step", currentStep),
		AvatarIntent: NormalizeAvatarIntent(payload),
	}
}

// normalizeVisual resolves the visual payload for a step. A flat
// visual_content string is promoted into a visual object, and diagram content
// carrying a draw-directive string is parsed into the structured command.
func normalizeVisual(payload map[string]any) Visual {
	visualContent := stringField(payload, "visual_content")
	directive, hasDirective := ParseDrawDirective(visualContent)

	raw, ok := payload["visual"].(map[string]any)
	if !ok {
		if visualContent == "" {
			return Visual{Type: VisualNone, Content: nil}
		}
		if hasDirective {
			return Visual{Type: VisualDiagram, Content: directive}
		}
		return Visual{Type: VisualNone, Content: visualContent}
	}

	visualType := VisualType(stringField(raw, "type"))
	content := raw["content"]

	if (visualType == "" || visualType == VisualNone) && hasDirective {
		return Visual{Type: VisualDiagram, Content: directive}
	}

	if visualType == VisualDiagram {
		if text, isString := content.(string); isString {
			if parsed, ok := ParseDrawDirective(text); ok {
				content = parsed
			}
		}
	}

	if visualType == "" {
		visualType = VisualNone
	}
	return Visual{Type: visualType, Content: content}
}

// visualText flattens a visual payload into the string recorded in history.
func visualText(v Visual) string {
	switch content := v.Content.(type) {
	case string:
		return content
	case DrawDirective:
		if content.Detail == "" {
			return content.Command
		}
		return content.Command + ": " + content.Detail
	default:
		return ""
	}
}
