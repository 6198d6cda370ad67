package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/socratic-mirror/coach/pkg/coach/session"
)

// BeginPublicSpeakingCommand is the structured setup prefix for speaking
// sessions, mirroring the interview setup command.
const BeginPublicSpeakingCommand = "BEGIN_PUBLIC_SPEAKING"

// speakingSessionCap ends any speaking session that has run this long.
const speakingSessionCap = 15 * time.Minute

var doneTokens = []string{"done", "thank you", "thanks", "finished", "end"}

func isSpeakingDone(lower string) bool {
	for _, token := range doneTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// speakingTypes maps loose user phrasing to the canonical practice type.
// Longer keys are matched first so "interview answer" wins over "interview".
var speakingTypes = []struct {
	key   string
	value string
}{
	{"interview answer", "Interview answer"},
	{"interview", "Interview answer"},
	{"presentation", "Presentation"},
	{"pitch", "Pitch"},
	{"storytelling", "Storytelling"},
	{"story", "Storytelling"},
	{"casual conversation", "Casual conversation"},
	{"conversation", "Casual conversation"},
}

func normalizeSpeakingType(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	for _, entry := range speakingTypes {
		if strings.Contains(lowered, entry.key) {
			return entry.value
		}
	}
	return ""
}

var followupQuestions = []string{
	"Can you summarize your main point in one sentence?",
	"What is one real-world example that supports your point?",
	"Who is your target audience?",
}

func followupQuestion(index int) string {
	if index >= len(followupQuestions) {
		index = len(followupQuestions) - 1
	}
	return followupQuestions[index]
}

// speakingTurn advances the public-speaking stage machine by one user
// message. Barge-in never applies here; interrupting a speech defeats the
// practice.
func (e *Engine) speakingTurn(ctx context.Context, s *session.Session, text string) (Response, error) {
	if s.Speaking == nil {
		s.Speaking = session.NewSpeakingState()
	}
	state := s.Speaking
	now := e.now()

	normalized := strings.TrimSpace(text)
	lower := strings.ToLower(normalized)

	if strings.HasPrefix(normalized, BeginPublicSpeakingCommand) {
		return e.beginSpeaking(state, normalized), nil
	}

	if isSpeakingDone(lower) {
		return e.finishSpeaking(ctx, s)
	}

	if state.StartTime != nil && now.Sub(*state.StartTime) >= speakingSessionCap {
		return e.finishSpeaking(ctx, s)
	}

	s.AppendTurn("user", normalized, "", now)

	switch state.Stage {
	case session.SpeakingInit:
		state.Stage = session.SpeakingType
		return speakingPrompt("What type of speaking do you want to practice?", "Speaking type selection", now), nil

	case session.SpeakingType:
		if matched := normalizeSpeakingType(normalized); matched != "" {
			state.SpeakingType = matched
			if state.Topic != "" {
				state.Stage = session.SpeakingScript
				return speakingPrompt("Upload a script or outline (optional).", "Optional script upload", now), nil
			}
			state.Stage = session.SpeakingTopic
			return speakingPrompt("Choose a topic or enter your own.", "Topic selection", now), nil
		}
		// A free-text answer here is treated as the topic.
		if state.Topic == "" {
			state.Topic = normalized
		}
		if state.SpeakingType == "" {
			state.SpeakingType = "Presentation"
		}
		state.Stage = session.SpeakingScript
		return speakingPrompt("Upload a script or outline (optional).", "Optional script upload", now), nil

	case session.SpeakingTopic:
		if !isSkip(lower) {
			state.Topic = normalized
		}
		if state.Topic == "" {
			return speakingPrompt("Choose a topic or enter your own.", "Topic selection", now), nil
		}
		state.Stage = session.SpeakingReady
		return speakingPrompt("You will speak for about 3 to 5 minutes. Ready?", "Say Yes to begin", now), nil

	case session.SpeakingScript:
		if !isSkip(lower) {
			state.Script = normalized
		}
		state.Stage = session.SpeakingReady
		return speakingPrompt("You will speak for about 3 to 5 minutes. Ready?", "Say Yes to begin", now), nil

	case session.SpeakingReady:
		if !isYes(lower) {
			return speakingPrompt("No problem. Tell me when you are ready.", "Waiting", now), nil
		}
		state.Stage = session.SpeakingWarmup
		state.Started = true
		start := now
		state.StartTime = &start
		return speakingPrompt("Introduce yourself in 30 seconds.", "Warm-up", now), nil

	case session.SpeakingWarmup:
		state.Stage = session.SpeakingMain
		mainStart := now
		state.MainSpeechStart = &mainStart
		topic := state.Topic
		if topic == "" {
			topic = "your topic"
		}
		return speakingPrompt("Speak about "+topic+" for 3 minutes.", "Main speech", now), nil

	case session.SpeakingMain:
		updateSpeakingMetrics(state, normalized)
		state.Stage = session.SpeakingFollowup
		state.FollowupIndex = 0
		return speakingPrompt(followupQuestion(0), "Follow-up 1 of 3", now), nil

	case session.SpeakingFollowup:
		updateSpeakingMetrics(state, normalized)
		next := state.FollowupIndex + 1
		if next >= state.FollowupTotal {
			return e.finishSpeaking(ctx, s)
		}
		state.FollowupIndex = next
		label := fmt.Sprintf("Follow-up %d of %d", next+1, state.FollowupTotal)
		return speakingPrompt(followupQuestion(next), label, now), nil
	}

	return speakingPrompt("Let us continue.", "Public speaking", now), nil
}

// beginSpeaking applies the setup command payload and jumps the stage
// machine past whatever the payload already filled. The script is optional
// so type plus topic goes straight to ready.
func (e *Engine) beginSpeaking(state *session.SpeakingState, command string) Response {
	now := e.now()

	var payload struct {
		SpeakingType string `json:"speaking_type"`
		Topic        string `json:"topic"`
		Script       string `json:"script"`
	}
	if _, rest, found := strings.Cut(command, "::"); found {
		_ = json.Unmarshal([]byte(rest), &payload)
	}

	state.SpeakingType = payload.SpeakingType
	state.Topic = payload.Topic
	state.Script = payload.Script

	if state.SpeakingType == "" {
		state.Stage = session.SpeakingType
		return speakingPrompt("What type of speaking do you want to practice?", "Speaking type selection", now)
	}
	if state.Topic == "" {
		state.Stage = session.SpeakingTopic
		return speakingPrompt("Choose a topic or enter your own.", "Topic selection", now)
	}

	state.Stage = session.SpeakingReady
	return speakingPrompt("You will speak for about 3 to 5 minutes. Ready?", "Say Yes to begin", now)
}

func (e *Engine) finishSpeaking(ctx context.Context, s *session.Session) (Response, error) {
	report, err := e.endAndReport(ctx, s)
	if err != nil {
		return nil, err
	}
	return NewSessionEnded(report), nil
}

// updateSpeakingMetrics accumulates delivery counters from one utterance.
// Words are whitespace tokens, fillers are lexicon substring hits, and a
// pause is a literal "..." in the transcript.
func updateSpeakingMetrics(state *session.SpeakingState, text string) {
	state.WordCount += len(strings.Fields(text))
	state.FillerCount += CountFillerWords(text)
	state.PauseCount += strings.Count(strings.ToLower(text), "...")
}

func speakingPrompt(voiceText, visual string, now time.Time) *CoachResponse {
	return NewCoachResponse(voiceText, visual, AvatarIntent{Expression: "encouraging", Gesture: "listening"}, "evaluating", now)
}
