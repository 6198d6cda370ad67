package coach

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/socratic-mirror/coach/pkg/coach/session"
)

// Report is the post-hoc performance summary delivered when a session ends.
// Mode-specific generators fill the same shape so clients render one schema.
type Report struct {
	SessionID           string                  `json:"session_id"`
	OverallScore        int                     `json:"overall_score"`
	PeakConfidenceFrame *session.BiometricFrame `json:"peak_confidence_frame"`
	StressEvents        int                     `json:"stress_events"`
	BargeInCount        int                     `json:"barge_in_count"`
	Strengths           []string                `json:"strengths"`
	Improvements        []string                `json:"improvements"`
	Analysis            string                  `json:"analysis"`
	DiscussionSummary   string                  `json:"discussion_summary"`
	DiscussionPoints    []string                `json:"discussion_points"`
	Timestamp           time.Time               `json:"timestamp"`
}

// buildReport produces the report for a session. It never fails: inference
// errors degrade into static scoring so ending a session always yields a
// report.
func (e *Engine) buildReport(ctx context.Context, s *session.Session) *Report {
	switch s.Mode {
	case session.ModeInterview:
		return e.interviewReport(ctx, s)
	case session.ModePublicSpeaking:
		return e.speakingReport(ctx, s)
	default:
		return e.defaultReport(ctx, s)
	}
}

// defaultReport covers tutoring and free-form sessions: biometric-derived
// counters plus an inference-scored summary.
func (e *Engine) defaultReport(ctx context.Context, s *session.Session) *Report {
	stressEvents := 0
	for _, frame := range s.BiometricTimeline {
		if frame.StressLevel == "high" {
			stressEvents++
		}
	}
	bargeIns := s.BargeInCount()

	score := 75
	strengths := []string{"Good engagement", "Clear technical focus"}
	improvements := []string{"Reduce filler words", "Maintain eye contact"}
	analysis := ""

	raw, err := e.infer.Generate(ctx, sessionAnalysisPrompt(s, stressEvents, bargeIns), TierDeep)
	payload, parsed := map[string]any(nil), false
	if err == nil {
		payload, parsed = ExtractJSONObject(raw)
	}
	if parsed {
		score = intFieldOr(payload, "overall_score", score)
		if list := stringList(payload, "strengths"); len(list) > 0 {
			strengths = list
		}
		if list := stringList(payload, "improvements"); len(list) > 0 {
			improvements = list
		}
		analysis = stringField(payload, "analysis")
	} else {
		reason := "unparseable model output"
		if err != nil {
			reason = err.Error()
		}
		analysis = "Could not generate full AI report: " + reason
		e.log.Warn("report analysis fell back", "session_id", s.ID, "reason", reason)
	}

	return &Report{
		SessionID:           s.ID,
		OverallScore:        score,
		PeakConfidenceFrame: peakConfidenceFrame(s.BiometricTimeline),
		StressEvents:        stressEvents,
		BargeInCount:        bargeIns,
		Strengths:           strengths,
		Improvements:        improvements,
		Analysis:            analysis,
		DiscussionSummary:   discussionSummary(s),
		DiscussionPoints:    discussionPoints(s, 4),
		Timestamp:           e.now(),
	}
}

// speakingReport scores delivery metrics accumulated during the speech.
func (e *Engine) speakingReport(ctx context.Context, s *session.Session) *Report {
	state := s.Speaking
	if state == nil {
		state = session.NewSpeakingState()
	}

	durationMinutes := 3.0
	if state.MainSpeechStart != nil {
		elapsed := e.now().Sub(*state.MainSpeechStart).Minutes()
		if elapsed < 0.5 {
			elapsed = 0.5
		}
		durationMinutes = elapsed
	}
	wpm := 0
	if durationMinutes > 0 {
		wpm = int(float64(state.WordCount) / durationMinutes)
	}

	score := 75
	level := "Confident"
	strengths := []string{"Clear opening"}
	improvements := []string{"Reduce filler words"}
	nextSteps := "Practice a structured outline and rehearse a strong conclusion."
	momentFeedback := "Midway through, add a short transition to keep momentum."
	scores := map[string]any{}

	raw, err := e.infer.Generate(ctx, speakingReportPrompt(state, durationMinutes, wpm), TierDeep)
	if err == nil {
		if payload, ok := ExtractJSONObject(raw); ok {
			score = intFieldOr(payload, "overall_score", score)
			if v := stringField(payload, "level"); v != "" {
				level = v
			}
			if list := stringList(payload, "strengths"); len(list) > 0 {
				strengths = list
			}
			if list := stringList(payload, "improvements"); len(list) > 0 {
				improvements = list
			}
			if v := stringField(payload, "next_steps"); v != "" {
				nextSteps = v
			}
			if v := stringField(payload, "moment_feedback"); v != "" {
				momentFeedback = v
			}
			if m, ok := payload["scores"].(map[string]any); ok {
				scores = m
			}
		}
	} else {
		e.log.Warn("speaking report fell back", "session_id", s.ID, "error", err)
	}

	topic := state.Topic
	if topic == "" {
		topic = "Unknown Topic"
	}

	analysis := fmt.Sprintf(
		"Topic: %s\nDuration: %.1f minutes\nOverall Score: %d / 100\nLevel: %s\n\n"+
			"Skill Breakdown:\n- Clarity: %d/10\n- Confidence: %d/10\n- Structure: %d/10\n- Pace: %d/10\n- Engagement: %d/10\n\n"+
			"Voice and Delivery:\n- Avg Speaking Speed: %d wpm\n- Filler Words: %d\n- Pauses: %d\n\n"+
			"Strengths:\n- %s\n\nImprovement Areas:\n- %s\n\n"+
			"Moment-Level Feedback:\n%s\n\nNext Steps:\n%s",
		topic, durationMinutes, score, level,
		intFieldOr(scores, "clarity", 7), intFieldOr(scores, "confidence", 7),
		intFieldOr(scores, "structure", 6), intFieldOr(scores, "pace", 7),
		intFieldOr(scores, "engagement", 7),
		wpm, state.FillerCount, state.PauseCount,
		first(strengths, "Clear delivery"), first(improvements, "Add stronger conclusion"),
		momentFeedback, nextSteps,
	)

	return &Report{
		SessionID:         s.ID,
		OverallScore:      score,
		Strengths:         strengths,
		Improvements:      improvements,
		Analysis:          analysis,
		DiscussionSummary: discussionSummary(s),
		DiscussionPoints:  discussionPoints(s, 4),
		Timestamp:         e.now(),
	}
}

// interviewReport asks inference to grade the recent transcript.
func (e *Engine) interviewReport(ctx context.Context, s *session.Session) *Report {
	role := ""
	if s.Interview != nil {
		role = s.Interview.Role
	}

	var transcript []string
	interactions := s.Interactions
	if len(interactions) > 20 {
		interactions = interactions[len(interactions)-20:]
	}
	for _, interaction := range interactions {
		switch interaction.Role {
		case "user":
			transcript = append(transcript, "User: "+interaction.Content)
		case "assistant":
			transcript = append(transcript, "AI: "+interaction.Content)
		}
	}

	score := 75
	level := "Mid"
	topStrength := "Clear communication"
	topImprovement := "Add more concrete examples"
	nextSteps := "Practice concise answers and review core concepts for the role."
	scores := map[string]any{}

	raw, err := e.infer.Generate(ctx, interviewReportPrompt(role, transcript), TierDeep)
	if err == nil {
		if payload, ok := ExtractJSONObject(raw); ok {
			score = intFieldOr(payload, "overall_score", score)
			if v := stringField(payload, "overall_level"); v != "" {
				level = v
			}
			if v := stringField(payload, "top_strength"); v != "" {
				topStrength = v
			}
			if v := stringField(payload, "top_improvement"); v != "" {
				topImprovement = v
			}
			if v := stringField(payload, "next_steps"); v != "" {
				nextSteps = v
			}
			if m, ok := payload["scores"].(map[string]any); ok {
				scores = m
			}
		}
	} else {
		e.log.Warn("interview report fell back", "session_id", s.ID, "error", err)
	}

	analysis := fmt.Sprintf(
		"Overall Level: %s\n\nScores (1-10):\n- Technical: %d\n- Problem Solving: %d\n- Communication: %d\n\n"+
			"Top Strength: %s\nTop Improvement Area: %s\n\nNext Steps: %s",
		level,
		intFieldOr(scores, "technical", 7), intFieldOr(scores, "problem_solving", 7),
		intFieldOr(scores, "communication", 7),
		topStrength, topImprovement, nextSteps,
	)

	return &Report{
		SessionID:         s.ID,
		OverallScore:      score,
		Strengths:         []string{topStrength},
		Improvements:      []string{topImprovement},
		Analysis:          analysis,
		DiscussionSummary: discussionSummary(s),
		DiscussionPoints:  discussionPoints(s, 4),
		Timestamp:         e.now(),
	}
}

// peakConfidenceFrame scores each frame as posture minus heart rate over 100
// and returns the maximum. Nil for an empty timeline.
func peakConfidenceFrame(timeline []session.BiometricFrame) *session.BiometricFrame {
	var best *session.BiometricFrame
	bestScore := 0.0
	for i := range timeline {
		frame := &timeline[i]
		score := frame.PostureScore - frame.HeartRate/100
		if best == nil || score > bestScore {
			best = frame
			bestScore = score
		}
	}
	return best
}

const discussionPointLimit = 140

// discussionPoints collects the most recent distinct user talking points from
// the last 30 turns, newest first, then returns them in chronological order.
func discussionPoints(s *session.Session, max int) []string {
	history := s.ContextHistory
	if len(history) > 30 {
		history = history[len(history)-30:]
	}

	var points []string
	for i := len(history) - 1; i >= 0 && len(points) < max; i-- {
		turn := history[i]
		if turn.Role != "user" {
			continue
		}
		normalized := strings.Join(strings.Fields(turn.Content), " ")
		if normalized == "" {
			continue
		}
		if runes := []rune(normalized); len(runes) > discussionPointLimit {
			normalized = string(runes[:discussionPointLimit-3]) + "..."
		}
		if slices.Contains(points, normalized) {
			continue
		}
		points = append(points, normalized)
	}

	// Reverse back into speaking order.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points
}

func discussionSummary(s *session.Session) string {
	points := discussionPoints(s, 3)
	if len(points) == 0 {
		mode := strings.ReplaceAll(string(s.Mode), "_", " ")
		return "You completed a " + mode + " session. No detailed discussion transcript was captured."
	}
	if len(points) == 1 {
		return "You focused on: " + points[0]
	}
	return "You discussed: " + points[0] + ". Then covered: " + strings.Join(points[1:], "; ") + "."
}

func first(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return items[0]
}
