// Package session owns coaching session records and their lifecycle:
// creation, history accumulation, biometric timelines, context compression,
// and persistence through a Store.
package session

import (
	"strconv"
	"strings"
	"time"
)

// Mode identifies the coaching mode a session runs in for its whole lifetime.
type Mode string

const (
	ModeTutoring       Mode = "tutoring"
	ModeInterview      Mode = "interview"
	ModePublicSpeaking Mode = "public_speaking"
	ModeOther          Mode = "other"
)

// ParseMode maps a wire string to a Mode, defaulting unknown values to ModeOther.
func ParseMode(raw string) Mode {
	switch Mode(strings.TrimSpace(raw)) {
	case ModeTutoring:
		return ModeTutoring
	case ModeInterview:
		return ModeInterview
	case ModePublicSpeaking:
		return ModePublicSpeaking
	default:
		return ModeOther
	}
}

// Turn is a single dialogue entry in the context history.
type Turn struct {
	Role          string    `json:"role"`
	Content       string    `json:"content"`
	VisualContent string    `json:"visual_content,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Interaction is a superset of Turn: it also records non-dialogue events
// such as barge-ins and compression summaries. Type is empty for plain
// dialogue entries.
type Interaction struct {
	Type          string    `json:"type,omitempty"`
	Role          string    `json:"role,omitempty"`
	Content       string    `json:"content,omitempty"`
	VisualContent string    `json:"visual_content,omitempty"`
	KeyTopics     []string  `json:"key_topics,omitempty"`
	Summarized    int       `json:"interaction_count,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

const (
	InteractionBargeIn = "barge_in"
	InteractionSummary = "context_summary"
)

// BiometricFrame is one sensor reading delivered by the biometric source.
type BiometricFrame struct {
	HeartRate       float64    `json:"heart_rate"`
	StressLevel     string     `json:"stress_level"`
	GazeDirection   [3]float64 `json:"gaze_direction"`
	PostureScore    float64    `json:"posture_score"`
	ConfidenceLevel float64    `json:"confidence_level"`
	Timestamp       time.Time  `json:"timestamp"`
}

// Baseline is derived once from the first baselineFrames readings and is
// immutable afterward.
type Baseline struct {
	RestingHeartRate float64   `json:"resting_heart_rate"`
	StressThreshold  float64   `json:"stress_threshold"`
	CalibratedAt     time.Time `json:"calibration_date"`
}

const baselineFrames = 10

// InterviewStage is a point in the interview mode's linear stage sequence.
type InterviewStage string

const (
	InterviewInit    InterviewStage = "init"
	InterviewRole    InterviewStage = "role"
	InterviewJobDesc InterviewStage = "job_desc"
	InterviewResume  InterviewStage = "resume"
	InterviewReady   InterviewStage = "ready"
	InterviewRunning InterviewStage = "interview"
)

// Section is the interview question category selected by question index.
type Section string

const (
	SectionWarmup     Section = "warmup"
	SectionBackground Section = "background"
	SectionTechnical  Section = "technical"
	SectionBehavioral Section = "behavioral"
	SectionWrapup     Section = "wrapup"
)

// InterviewState is the mode-specific sub-state for interview sessions.
type InterviewState struct {
	Stage            InterviewStage `json:"stage"`
	Role             string         `json:"role"`
	JobDescription   string         `json:"job_description"`
	Resume           string         `json:"resume"`
	Started          bool           `json:"started"`
	StartTime        *time.Time     `json:"start_time"`
	QuestionCount    int            `json:"question_count"`
	MaxQuestions     int            `json:"max_questions"`
	MinQuestions     int            `json:"min_questions"`
	MaxMinutes       int            `json:"max_minutes"`
	CurrentQuestion  string         `json:"current_question"`
	CurrentSection   Section        `json:"current_section"`
	HintUsed         bool           `json:"hint_used"`
	LastQuestionTime *time.Time     `json:"last_question_time"`
}

// NewInterviewState returns the zeroed setup state with the fixed limits.
func NewInterviewState() *InterviewState {
	return &InterviewState{
		Stage:        InterviewInit,
		MaxQuestions: 10,
		MinQuestions: 6,
		MaxMinutes:   15,
	}
}

// SpeakingStage is a point in the public-speaking mode's stage sequence.
type SpeakingStage string

const (
	SpeakingInit     SpeakingStage = "init"
	SpeakingType     SpeakingStage = "type"
	SpeakingTopic    SpeakingStage = "topic"
	SpeakingScript   SpeakingStage = "script"
	SpeakingReady    SpeakingStage = "ready"
	SpeakingWarmup   SpeakingStage = "warmup"
	SpeakingMain     SpeakingStage = "main"
	SpeakingFollowup SpeakingStage = "followup"
)

// SpeakingState is the mode-specific sub-state for public-speaking sessions.
// Word/filler/pause counters are cumulative and never reset mid-session.
type SpeakingState struct {
	Stage           SpeakingStage `json:"stage"`
	SpeakingType    string        `json:"speaking_type"`
	Topic           string        `json:"topic"`
	Script          string        `json:"script"`
	Started         bool          `json:"started"`
	StartTime       *time.Time    `json:"start_time"`
	MainSpeechStart *time.Time    `json:"main_speech_start"`
	FollowupIndex   int           `json:"followup_index"`
	FollowupTotal   int           `json:"followup_total"`
	WordCount       int           `json:"word_count"`
	FillerCount     int           `json:"filler_count"`
	PauseCount      int           `json:"pause_count"`
}

// NewSpeakingState returns the zeroed setup state.
func NewSpeakingState() *SpeakingState {
	return &SpeakingState{
		Stage:         SpeakingInit,
		FollowupTotal: 3,
	}
}

// DefaultBargeInSensitivity is the initial interruption-aversion knob.
const DefaultBargeInSensitivity = 0.7

// Session is the unit of conversation state. A session belongs to exactly one
// mode for its lifetime. ContextHistory and Interactions are append-only;
// compression is the only wholesale replacement.
type Session struct {
	ID        string     `json:"session_id"`
	UserID    string     `json:"user_id"`
	Mode      Mode       `json:"mode"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Duration  float64    `json:"duration"` // seconds, set at end

	ContextHistory    []Turn           `json:"context_history"`
	Interactions      []Interaction    `json:"interactions"`
	BiometricTimeline []BiometricFrame `json:"biometric_timeline"`
	Baseline          *Baseline        `json:"biometric_baseline"`

	TutoringStep int             `json:"tutoring_step"`
	Interview    *InterviewState `json:"interview_state,omitempty"`
	Speaking     *SpeakingState  `json:"public_speaking_state,omitempty"`

	BargeInSensitivity float64 `json:"barge_in_sensitivity"`

	Compressed   bool       `json:"context_compressed,omitempty"`
	CompressedAt *time.Time `json:"compression_timestamp,omitempty"`
}

// New builds a fresh session record for the given user and mode.
func New(id, userID string, mode Mode, now time.Time) *Session {
	s := &Session{
		ID:                 id,
		UserID:             userID,
		Mode:               mode,
		StartTime:          now,
		BargeInSensitivity: DefaultBargeInSensitivity,
	}
	switch mode {
	case ModeInterview:
		s.Interview = NewInterviewState()
	case ModePublicSpeaking:
		s.Speaking = NewSpeakingState()
	}
	return s
}

// Ended reports whether the session has been finalized. Ended sessions are
// read-only except for the report cache.
func (s *Session) Ended() bool {
	return s.EndTime != nil
}

// End finalizes the session, computing duration and compressing long histories.
func (s *Session) End(now time.Time) {
	if s.Ended() {
		return
	}
	end := now
	s.EndTime = &end
	s.Duration = end.Sub(s.StartTime).Seconds()
	if len(s.ContextHistory) > endCompressAfter {
		s.Compress(now)
	}
}

// AppendTurn records a dialogue entry in both Interactions and ContextHistory
// and compresses when the interaction log grows past the auto threshold.
func (s *Session) AppendTurn(role, content, visualContent string, now time.Time) {
	s.Interactions = append(s.Interactions, Interaction{
		Role:          role,
		Content:       content,
		VisualContent: visualContent,
		Timestamp:     now,
	})
	s.ContextHistory = append(s.ContextHistory, Turn{
		Role:          role,
		Content:       content,
		VisualContent: visualContent,
		Timestamp:     now,
	})
	if len(s.Interactions) > autoCompressAfter {
		s.Compress(now)
	}
}

// RecordBargeIn records an engine-initiated interruption. Barge-in events are
// interactions only; they never enter the dialogue context history.
func (s *Session) RecordBargeIn(content string, now time.Time) {
	s.Interactions = append(s.Interactions, Interaction{
		Type:          InteractionBargeIn,
		Role:          "assistant",
		Content:       content,
		VisualContent: content,
		Timestamp:     now,
	})
}

// BargeInCount counts recorded barge-in interactions.
func (s *Session) BargeInCount() int {
	n := 0
	for _, it := range s.Interactions {
		if it.Type == InteractionBargeIn {
			n++
		}
	}
	return n
}

// AppendBiometric appends a sensor frame to the timeline and derives the
// baseline once the first readings are in. Frames without a timestamp are
// stamped with now.
func (s *Session) AppendBiometric(frame BiometricFrame, now time.Time) {
	if frame.Timestamp.IsZero() {
		frame.Timestamp = now
	}
	s.BiometricTimeline = append(s.BiometricTimeline, frame)

	if s.Baseline == nil && len(s.BiometricTimeline) >= baselineFrames {
		head := s.BiometricTimeline[:baselineFrames]
		var sum float64
		for _, f := range head {
			hr := f.HeartRate
			if hr == 0 {
				hr = 70
			}
			sum += hr
		}
		avg := sum / float64(len(head))
		s.Baseline = &Baseline{
			RestingHeartRate: avg,
			StressThreshold:  avg * 1.2,
			CalibratedAt:     now,
		}
	}
}

// LatestBiometric returns the most recent frame, or nil when none arrived yet.
func (s *Session) LatestBiometric() *BiometricFrame {
	if len(s.BiometricTimeline) == 0 {
		return nil
	}
	f := s.BiometricTimeline[len(s.BiometricTimeline)-1]
	return &f
}

// HistoryWindow returns the last n dialogue turns in chronological order.
func (s *Session) HistoryWindow(n int) []Turn {
	if n <= 0 || len(s.ContextHistory) <= n {
		out := make([]Turn, len(s.ContextHistory))
		copy(out, s.ContextHistory)
		return out
	}
	out := make([]Turn, n)
	copy(out, s.ContextHistory[len(s.ContextHistory)-n:])
	return out
}

const (
	autoCompressAfter = 100
	endCompressAfter  = 50
	compressMinLen    = 30
	compressKeep      = 20
	compressMaxTopics = 5
)

// Compress collapses all but the last compressKeep entries of both logs into a
// single summary record. The summary is a keyword placeholder: the contract is
// 1 summary + last 20, summary quality is unconstrained.
func (s *Session) Compress(now time.Time) {
	if len(s.Interactions) <= compressMinLen {
		return
	}

	older := s.Interactions[:len(s.Interactions)-compressKeep]
	recent := s.Interactions[len(s.Interactions)-compressKeep:]

	summary := Interaction{
		Type:       InteractionSummary,
		KeyTopics:  extractKeyTopics(older),
		Summarized: len(older),
		Timestamp:  now,
	}

	compacted := make([]Interaction, 0, compressKeep+1)
	compacted = append(compacted, summary)
	compacted = append(compacted, recent...)
	s.Interactions = compacted

	if len(s.ContextHistory) > compressKeep {
		olderTurns := len(s.ContextHistory) - compressKeep
		recentTurns := s.ContextHistory[olderTurns:]
		head := Turn{
			Role:      "system",
			Content:   summaryLine(summary.KeyTopics, olderTurns),
			Timestamp: now,
		}
		history := make([]Turn, 0, compressKeep+1)
		history = append(history, head)
		history = append(history, recentTurns...)
		s.ContextHistory = history
	}

	s.Compressed = true
	ts := now
	s.CompressedAt = &ts
}

func summaryLine(topics []string, count int) string {
	prefix := "Earlier conversation (" + strconv.Itoa(count) + " turns) summarized."
	if len(topics) == 0 {
		return prefix
	}
	return prefix + " Key topics: " + strings.Join(topics, ", ")
}

func extractKeyTopics(interactions []Interaction) []string {
	seen := make(map[string]struct{})
	topics := make([]string, 0, compressMaxTopics)
	for _, it := range interactions {
		if it.Role != "user" || len(it.Content) <= 10 {
			continue
		}
		fields := strings.Fields(it.Content)
		if len(fields) == 0 {
			continue
		}
		topic := strings.ToLower(fields[0])
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
		if len(topics) >= compressMaxTopics {
			break
		}
	}
	return topics
}
