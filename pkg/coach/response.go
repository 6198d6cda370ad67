package coach

import (
	"time"
)

// Response is the closed set of outbound payload shapes. Every caller-facing
// write is exactly one of these variants, so consumers never shape-sniff.
type Response interface {
	response()
}

// AvatarIntent drives the client-side avatar. Normalization guarantees both
// fields are always present.
type AvatarIntent struct {
	Expression string `json:"expression"`
	Gesture    string `json:"gesture"`
}

// DefaultAvatarIntent is the neutral fallback intent.
func DefaultAvatarIntent() AvatarIntent {
	return AvatarIntent{Expression: "neutral", Gesture: "idle"}
}

// VisualType enumerates whiteboard visual payload kinds.
type VisualType string

const (
	VisualEquation VisualType = "equation"
	VisualStepList VisualType = "step_list"
	VisualDiagram  VisualType = "diagram"
	VisualTable    VisualType = "table"
	VisualNone     VisualType = "none"
)

// Visual is a whiteboard payload. Content is a string for most types and a
// DrawDirective when a diagram was promoted from a draw-directive string.
type Visual struct {
	Type    VisualType `json:"type"`
	Content any        `json:"content"`
}

// DrawDirective is a structured diagram command parsed out of a visual string.
type DrawDirective struct {
	Command string `json:"command"`
	Detail  string `json:"detail"`
}

// CoachResponse is the generic conversational reply.
type CoachResponse struct {
	Type             string       `json:"type"`
	VoiceText        string       `json:"voice_text"`
	VisualContent    string       `json:"visual_content"`
	AvatarIntent     AvatarIntent `json:"avatar_intent"`
	PedagogicalState string       `json:"pedagogical_state"`
	Timestamp        time.Time    `json:"timestamp"`
}

func (*CoachResponse) response() {}

// NewCoachResponse builds a generic reply.
func NewCoachResponse(voiceText, visualContent string, intent AvatarIntent, state string, now time.Time) *CoachResponse {
	return &CoachResponse{
		Type:             "coach_response",
		VoiceText:        voiceText,
		VisualContent:    visualContent,
		AvatarIntent:     intent,
		PedagogicalState: state,
		Timestamp:        now,
	}
}

// TutoringStep is one whiteboard-synchronized instructional step.
type TutoringStep struct {
	Kind             string       `json:"kind"`
	Step             int          `json:"step"`
	SubtopicID       string       `json:"subtopic_id"`
	Narration        string       `json:"narration"`
	Visual           Visual       `json:"visual"`
	AvatarIntent     AvatarIntent `json:"avatar_intent"`
	PedagogicalState string       `json:"pedagogical_state,omitempty"`
	Err              string       `json:"error,omitempty"`
}

func (*TutoringStep) response() {}

// NewTutoringStep builds a step response.
func NewTutoringStep(step int, subtopicID, narration string, visual Visual, intent AvatarIntent) *TutoringStep {
	return &TutoringStep{
		Kind:         "step",
		Step:         step,
		SubtopicID:   subtopicID,
		Narration:    narration,
		Visual:       visual,
		AvatarIntent: intent,
	}
}

// TutoringCheckIn asks the learner to pick how to continue.
type TutoringCheckIn struct {
	Kind         string       `json:"kind"`
	Narration    string       `json:"narration"`
	Options      []string     `json:"options"`
	Step         int          `json:"step"`
	AvatarIntent AvatarIntent `json:"avatar_intent"`
}

func (*TutoringCheckIn) response() {}

// BargeInResponse is an engine-initiated interruption of the user.
type BargeInResponse struct {
	Type          string          `json:"type"`
	Text          string          `json:"text"`
	VoiceText     string          `json:"voice_text"`
	VisualContent string          `json:"visual_content"`
	AvatarIntent  AvatarIntent    `json:"avatar_intent"`
	Trigger       *BargeInTrigger `json:"trigger"`
	Timestamp     time.Time       `json:"timestamp"`
}

func (*BargeInResponse) response() {}

// NewBargeInResponse builds the interruption payload for a fired trigger.
func NewBargeInResponse(text string, trigger *BargeInTrigger, now time.Time) *BargeInResponse {
	return &BargeInResponse{
		Type:          "barge_in",
		Text:          text,
		VoiceText:     text,
		VisualContent: text,
		AvatarIntent:  AvatarIntent{Expression: "concerned", Gesture: "pointing"},
		Trigger:       trigger,
		Timestamp:     now,
	}
}

// SessionEnded carries the final report.
type SessionEnded struct {
	Type   string  `json:"type"`
	Report *Report `json:"report"`
}

func (*SessionEnded) response() {}

// NewSessionEnded builds the session-end payload.
func NewSessionEnded(report *Report) *SessionEnded {
	return &SessionEnded{Type: "session_ended", Report: report}
}

// ErrorResponse is a typed error payload; it never terminates the channel.
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (*ErrorResponse) response() {}

// NewErrorResponse builds an error payload.
func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{Type: "error", Message: message}
}
