package coach

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/socratic-mirror/coach/pkg/coach/session"
)

// The model collaborator returns loosely-structured text. Everything in this
// file exists to squeeze that into the fixed response contracts: JSON
// extraction, avatar-intent defaulting, draw-directive promotion, interview
// question shaping, and the canned fallbacks for total inference failure.

var (
	fencedJSONRe    = regexp.MustCompile("(?is)```json\\s*(.*?)\\s*```")
	fencedGenericRe = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// ExtractJSONObject pulls the first parsable JSON object out of raw model
// text. Candidates are tried in order: fenced blocks labeled json, any fenced
// block, the raw trimmed text, then the first balanced {...} substring.
func ExtractJSONObject(text string) (map[string]any, bool) {
	for _, candidate := range jsonCandidates(text) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(candidate), &obj); err == nil && obj != nil {
			return obj, true
		}
	}
	return nil, false
}

func jsonCandidates(text string) []string {
	var candidates []string
	seen := make(map[string]struct{})
	add := func(c string) {
		c = strings.TrimSpace(c)
		if c == "" {
			return
		}
		if _, dup := seen[c]; dup {
			return
		}
		seen[c] = struct{}{}
		candidates = append(candidates, c)
	}

	for _, m := range fencedJSONRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range fencedGenericRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}

	raw := strings.TrimSpace(text)
	add(raw)

	for start := 0; start < len(raw); start++ {
		if raw[start] != '{' {
			continue
		}
		depth := 0
		for end := start; end < len(raw); end++ {
			switch raw[end] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					add(raw[start : end+1])
					end = len(raw)
				}
			}
		}
	}

	return candidates
}

// NormalizeAvatarIntent reads avatar_intent (or the legacy avatar_state key)
// from a parsed payload and guarantees both fields are populated.
func NormalizeAvatarIntent(payload map[string]any) AvatarIntent {
	intent := DefaultAvatarIntent()
	raw, ok := payload["avatar_intent"].(map[string]any)
	if !ok {
		raw, ok = payload["avatar_state"].(map[string]any)
	}
	if !ok {
		return intent
	}
	if expr := stringField(raw, "expression"); expr != "" {
		intent.Expression = expr
	}
	if gesture := stringField(raw, "gesture"); gesture != "" {
		intent.Gesture = gesture
	}
	return intent
}

const drawPrefix = "DRAW_"

// ParseDrawDirective promotes a plain-text visual beginning with the draw
// command prefix into a structured diagram command, split on the first colon.
func ParseDrawDirective(text string) (DrawDirective, bool) {
	raw := strings.TrimSpace(text)
	if !strings.HasPrefix(raw, drawPrefix) {
		return DrawDirective{}, false
	}
	command, detail, found := strings.Cut(raw, ":")
	command = strings.TrimSpace(command)
	if command == "" {
		return DrawDirective{}, false
	}
	if !found {
		detail = ""
	}
	return DrawDirective{Command: command, Detail: strings.TrimSpace(detail)}, true
}

const defaultQuestion = "Tell me about a project you worked on recently."

// NormalizeQuestion guarantees exactly one well-formed, single-sentence
// question regardless of model verbosity: truncate at the first '?' or first
// sentence boundary, and append a '?' when absent.
func NormalizeQuestion(question string) string {
	normalized := strings.Join(strings.Fields(question), " ")
	if normalized == "" {
		return defaultQuestion
	}

	if idx := strings.Index(normalized, "?"); idx >= 0 {
		first := strings.TrimSpace(normalized[:idx])
		if first != "" {
			return first + "?"
		}
		return normalized
	}

	for _, divider := range []string{". ", "\n", "; "} {
		if idx := strings.Index(normalized, divider); idx >= 0 {
			first := strings.TrimSpace(normalized[:idx])
			if first != "" {
				return first + "?"
			}
			break
		}
	}

	return normalized + "?"
}

// stringField reads a string value out of a parsed payload.
func stringField(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return strings.TrimSpace(v)
}

// stringList reads a []string out of a parsed payload.
func stringList(payload map[string]any, key string) []string {
	raw, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// intField reads an integer (JSON number) out of a parsed payload.
func intField(payload map[string]any, key string) (int, bool) {
	switch v := payload[key].(type) {
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// intFieldOr reads an integer with a default.
func intFieldOr(payload map[string]any, key string, def int) int {
	if n, ok := intField(payload, key); ok {
		return n
	}
	return def
}

// fallbackResponse builds the mode-specific canned payload for total
// inference failure: degraded content, never a degraded shape.
func fallbackResponse(mode session.Mode, step int, errMsg string, now time.Time) Response {
	concerned := AvatarIntent{Expression: "concerned", Gesture: "idle"}

	switch mode {
	case session.ModeTutoring:
		resp := NewTutoringStep(step, "intro",
			"I am having trouble reaching the coaching model right now. I can still start with a quick overview. Tell me the topic again in one short phrase.",
			Visual{Type: VisualNone, Content: nil}, concerned)
		resp.PedagogicalState = "error"
		resp.Err = errMsg
		return resp
	case session.ModePublicSpeaking:
		resp := NewCoachResponse(
			"I am having trouble reaching the coaching model right now. Please repeat your last line and I will continue.",
			"Temporary connection issue. Try again in a moment.", concerned, "error", now)
		return resp
	case session.ModeInterview:
		resp := NewCoachResponse(
			"I am having trouble reaching the coaching model right now. Please repeat your last answer.",
			"Temporary connection issue. Try again in a moment.", concerned, "error", now)
		return resp
	default:
		resp := NewCoachResponse(
			"I am having trouble reaching the coaching model right now. Please repeat that.",
			"Temporary connection issue.", concerned, "error", now)
		return resp
	}
}
