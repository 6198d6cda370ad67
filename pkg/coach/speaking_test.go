package coach

import (
	"strings"
	"testing"
	"time"

	"github.com/socratic-mirror/coach/pkg/coach/session"
)

func TestSpeakingSetupWalk(t *testing.T) {
	e, _, _ := newTestEngine(interviewInference())
	s := mustCreate(t, e, session.ModePublicSpeaking)

	if got := voiceOf(t, sendText(t, e, s.ID, "hi")); got != "What type of speaking do you want to practice?" {
		t.Fatalf("init reply = %q", got)
	}

	sendText(t, e, s.ID, "a presentation")
	if s.Speaking.SpeakingType != "Presentation" || s.Speaking.Stage != session.SpeakingTopic {
		t.Fatalf("state after type = %+v", s.Speaking)
	}

	sendText(t, e, s.ID, "the future of renewable energy")
	if s.Speaking.Topic != "the future of renewable energy" || s.Speaking.Stage != session.SpeakingReady {
		t.Fatalf("state after topic = %+v", s.Speaking)
	}

	// Not ready keeps the stage.
	sendText(t, e, s.ID, "one moment")
	if s.Speaking.Stage != session.SpeakingReady {
		t.Fatalf("stage advanced without a yes")
	}

	if got := voiceOf(t, sendText(t, e, s.ID, "yes")); got != "Introduce yourself in 30 seconds." {
		t.Fatalf("warmup prompt = %q", got)
	}
	if !s.Speaking.Started || s.Speaking.StartTime == nil {
		t.Fatalf("speaking not started: %+v", s.Speaking)
	}
}

func TestSpeakingMainAndFollowups(t *testing.T) {
	e, _, _ := newTestEngine(interviewInference())
	s := mustCreate(t, e, session.ModePublicSpeaking)
	state := s.Speaking
	state.Stage = session.SpeakingWarmup
	state.Started = true
	start := testStart
	state.StartTime = &start
	state.Topic = "climate policy"

	main := voiceOf(t, sendText(t, e, s.ID, "I am Sam, a policy analyst."))
	if main != "Speak about climate policy for 3 minutes." {
		t.Fatalf("main prompt = %q", main)
	}
	if state.MainSpeechStart == nil {
		t.Fatalf("MainSpeechStart not recorded")
	}

	resp := sendText(t, e, s.ID, "um climate policy matters because... basically emissions keep rising like crazy")
	coachResp := resp.(*CoachResponse)
	if coachResp.VisualContent != "Follow-up 1 of 3" {
		t.Fatalf("followup label = %q", coachResp.VisualContent)
	}
	if coachResp.VoiceText != "Can you summarize your main point in one sentence?" {
		t.Fatalf("first followup = %q", coachResp.VoiceText)
	}
	if state.WordCount == 0 || state.FillerCount < 3 || state.PauseCount != 1 {
		t.Fatalf("metrics after main = %+v", state)
	}

	second := sendText(t, e, s.ID, "cut emissions now").(*CoachResponse)
	if second.VisualContent != "Follow-up 2 of 3" {
		t.Fatalf("second label = %q", second.VisualContent)
	}

	third := sendText(t, e, s.ID, "carbon pricing in the EU").(*CoachResponse)
	if third.VisualContent != "Follow-up 3 of 3" {
		t.Fatalf("third label = %q", third.VisualContent)
	}

	final := sendText(t, e, s.ID, "policy makers and voters")
	sessionEnded, ok := final.(*SessionEnded)
	if !ok {
		t.Fatalf("final response type = %T, want *SessionEnded", final)
	}
	if sessionEnded.Report == nil {
		t.Fatalf("report = nil")
	}
	if !s.Ended() {
		t.Fatalf("session not ended after followups")
	}
}

func TestSpeakingDoneTokensEndSession(t *testing.T) {
	e, _, _ := newTestEngine(interviewInference())
	s := mustCreate(t, e, session.ModePublicSpeaking)
	s.Speaking.Stage = session.SpeakingMain
	s.Speaking.Started = true
	start := testStart
	s.Speaking.StartTime = &start

	resp := sendText(t, e, s.ID, "thank you, that is all from me")
	if _, ok := resp.(*SessionEnded); !ok {
		t.Fatalf("response type = %T, want *SessionEnded on done token", resp)
	}
}

func TestSpeakingSessionCap(t *testing.T) {
	e, _, clock := newTestEngine(interviewInference())
	s := mustCreate(t, e, session.ModePublicSpeaking)
	s.Speaking.Stage = session.SpeakingMain
	s.Speaking.Started = true
	start := clock.Now()
	s.Speaking.StartTime = &start

	clock.Advance(16 * time.Minute)
	resp := sendText(t, e, s.ID, "continuing my speech about markets")
	if _, ok := resp.(*SessionEnded); !ok {
		t.Fatalf("response type = %T, want *SessionEnded after 15 minute cap", resp)
	}
}

func TestSpeakingTypeFreeTextBecomesTopic(t *testing.T) {
	e, _, _ := newTestEngine(interviewInference())
	s := mustCreate(t, e, session.ModePublicSpeaking)
	s.Speaking.Stage = session.SpeakingType

	sendText(t, e, s.ID, "my graduation speech")
	if s.Speaking.Topic != "my graduation speech" {
		t.Fatalf("Topic = %q, want free text promoted to topic", s.Speaking.Topic)
	}
	if s.Speaking.SpeakingType != "Presentation" {
		t.Fatalf("SpeakingType = %q, want Presentation default", s.Speaking.SpeakingType)
	}
	if s.Speaking.Stage != session.SpeakingScript {
		t.Fatalf("Stage = %q, want script", s.Speaking.Stage)
	}
}

func TestSpeakingScriptSkip(t *testing.T) {
	e, _, _ := newTestEngine(interviewInference())
	s := mustCreate(t, e, session.ModePublicSpeaking)
	s.Speaking.Stage = session.SpeakingScript
	s.Speaking.Topic = "my topic"

	sendText(t, e, s.ID, "skip")
	if s.Speaking.Script != "" || s.Speaking.Stage != session.SpeakingReady {
		t.Fatalf("state after skip = %+v", s.Speaking)
	}
}

func TestBeginPublicSpeakingCommand(t *testing.T) {
	e, _, _ := newTestEngine(interviewInference())
	s := mustCreate(t, e, session.ModePublicSpeaking)

	resp := sendText(t, e, s.ID, `BEGIN_PUBLIC_SPEAKING::{"speaking_type": "Pitch", "topic": "seed round", "script": "We build tools."}`)
	if got := voiceOf(t, resp); !strings.Contains(got, "Ready?") {
		t.Fatalf("reply = %q, want ready prompt", got)
	}
	if s.Speaking.Stage != session.SpeakingReady {
		t.Fatalf("Stage = %q, want ready", s.Speaking.Stage)
	}
	if s.Speaking.SpeakingType != "Pitch" || s.Speaking.Topic != "seed round" || s.Speaking.Script != "We build tools." {
		t.Fatalf("state = %+v", s.Speaking)
	}
}

func TestBeginPublicSpeakingCommandPartialPayload(t *testing.T) {
	e, _, _ := newTestEngine(interviewInference())
	s := mustCreate(t, e, session.ModePublicSpeaking)

	sendText(t, e, s.ID, `BEGIN_PUBLIC_SPEAKING::{"speaking_type": "Storytelling"}`)
	if s.Speaking.Stage != session.SpeakingTopic {
		t.Fatalf("Stage = %q, want topic when topic missing", s.Speaking.Stage)
	}

	sendText(t, e, s.ID, `BEGIN_PUBLIC_SPEAKING::{}`)
	if s.Speaking.Stage != session.SpeakingType {
		t.Fatalf("Stage = %q, want type when type missing", s.Speaking.Stage)
	}
}

func TestNormalizeSpeakingType(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"I want to practice interview answers", "Interview answer"},
		{"interview prep", "Interview answer"},
		{"a presentation for work", "Presentation"},
		{"pitch practice", "Pitch"},
		{"storytelling", "Storytelling"},
		{"a story about my trip", "Storytelling"},
		{"casual conversation", "Casual conversation"},
		{"just conversation", "Casual conversation"},
		{"something unrelated", ""},
	}
	for _, tc := range tests {
		if got := normalizeSpeakingType(tc.text); got != tc.want {
			t.Errorf("normalizeSpeakingType(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestUpdateSpeakingMetrics(t *testing.T) {
	state := session.NewSpeakingState()
	updateSpeakingMetrics(state, "um so basically this is... my opening")
	updateSpeakingMetrics(state, "and like two more... pauses... here")

	if state.WordCount != 13 {
		t.Fatalf("WordCount = %d, want 13", state.WordCount)
	}
	if state.FillerCount != 3 {
		t.Fatalf("FillerCount = %d, want 3", state.FillerCount)
	}
	if state.PauseCount != 3 {
		t.Fatalf("PauseCount = %d, want 3", state.PauseCount)
	}
}

func TestFollowupQuestionClamped(t *testing.T) {
	if followupQuestion(0) == "" || followupQuestion(2) == "" {
		t.Fatalf("followup questions missing")
	}
	if followupQuestion(99) != followupQuestion(2) {
		t.Fatalf("out-of-range followup not clamped to last")
	}
}
