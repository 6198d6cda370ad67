package coach

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/socratic-mirror/coach/pkg/coach/session"
)

// BeginInterviewCommand is the structured setup prefix. The remainder after
// "::" is a JSON payload pre-filling role, job description, and resume.
const BeginInterviewCommand = "BEGIN_INTERVIEW"

// answerTimeout is how long a technical question may sit unanswered before
// the interviewer moves on.
const answerTimeout = 90 * time.Second

var yesTokens = []string{"yes", "ready", "yep", "yeah", "ok", "okay", "sure", "start"}

var skipTokens = map[string]struct{}{
	"": {}, "skip": {}, "no": {}, "none": {}, "n/a": {}, "na": {},
}

func isYes(lower string) bool {
	for _, token := range yesTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

func isSkip(lower string) bool {
	_, ok := skipTokens[lower]
	return ok
}

// interviewTurn advances the interview stage machine by one user message.
func (e *Engine) interviewTurn(ctx context.Context, s *session.Session, text string) (Response, error) {
	if s.Interview == nil {
		s.Interview = session.NewInterviewState()
	}
	state := s.Interview
	now := e.now()

	normalized := strings.TrimSpace(text)
	lower := strings.ToLower(normalized)

	if strings.HasPrefix(normalized, BeginInterviewCommand) {
		return e.beginInterview(state, normalized), nil
	}

	if lower == "end" {
		report, err := e.endAndReport(ctx, s)
		if err != nil {
			return nil, err
		}
		return NewSessionEnded(report), nil
	}

	s.AppendTurn("user", normalized, "", now)

	switch state.Stage {
	case session.InterviewInit:
		state.Stage = session.InterviewRole
		return interviewPrompt("What role are you interviewing for?", "Interview setup", now), nil

	case session.InterviewRole:
		state.Role = normalized
		state.Stage = session.InterviewJobDesc
		return interviewPrompt("Paste job description (optional).", "Interview setup", now), nil

	case session.InterviewJobDesc:
		if !isSkip(lower) {
			state.JobDescription = normalized
		}
		state.Stage = session.InterviewResume
		return interviewPrompt("Upload resume (optional).", "Interview setup", now), nil

	case session.InterviewResume:
		if !isSkip(lower) {
			state.Resume = normalized
		}
		state.Stage = session.InterviewReady
		return interviewPrompt("Thanks. This will be a 10-minute interview. Ready?", "Say Yes to begin", now), nil

	case session.InterviewReady:
		if !isYes(lower) {
			return interviewPrompt("No problem. Tell me when you are ready.", "Waiting", now), nil
		}
		state.Stage = session.InterviewRunning
		state.Started = true
		start := now
		state.StartTime = &start
		return e.askNextQuestion(ctx, s, state, "")
	}

	if e.interviewOver(state, now) {
		report, err := e.endAndReport(ctx, s)
		if err != nil {
			return nil, err
		}
		return NewSessionEnded(report), nil
	}

	if state.CurrentSection == session.SectionTechnical {
		if state.LastQuestionTime != nil && now.Sub(*state.LastQuestionTime) > answerTimeout {
			state.HintUsed = true
			return e.askNextQuestion(ctx, s, state, "Let us move to the next question.")
		}
	}

	evaluation := e.evaluateAnswer(ctx, state, normalized)

	if state.CurrentSection == session.SectionTechnical {
		if evaluation.Evaluation == "weak" && !state.HintUsed {
			state.HintUsed = true
			hint := evaluation.Hint
			if hint == "" {
				hint = "Hint: Consider time complexity and fast lookup."
			}
			return interviewPrompt(hint, "Hint", now), nil
		}
	}

	return e.askNextQuestion(ctx, s, state, evaluation.feedback())
}

// beginInterview applies the setup command payload and jumps the stage
// machine past the fields the payload already filled.
func (e *Engine) beginInterview(state *session.InterviewState, command string) Response {
	now := e.now()

	var payload struct {
		Role           string `json:"role"`
		JobDescription string `json:"job_description"`
		Resume         string `json:"resume"`
	}
	if _, rest, found := strings.Cut(command, "::"); found {
		// Malformed payloads leave the state untouched, same as no payload.
		_ = json.Unmarshal([]byte(rest), &payload)
	}

	state.JobDescription = payload.JobDescription
	state.Resume = payload.Resume
	if payload.Role != "" {
		state.Role = payload.Role
	}

	if state.JobDescription == "" {
		state.Stage = session.InterviewJobDesc
		return interviewPrompt("Paste job description (optional).", "Interview setup", now)
	}

	state.Stage = session.InterviewReady
	return interviewPrompt("Thanks. This will be a 10-minute interview. Ready?", "Say Yes to begin", now)
}

// askNextQuestion selects the section for the next question index, produces
// the question, and resets the per-question hint and timing state.
func (e *Engine) askNextQuestion(ctx context.Context, s *session.Session, state *session.InterviewState, feedback string) (Response, error) {
	now := e.now()

	if e.interviewOver(state, now) {
		report, err := e.endAndReport(ctx, s)
		if err != nil {
			return nil, err
		}
		return NewSessionEnded(report), nil
	}

	index := state.QuestionCount
	section := sectionForQuestion(index)
	question := e.generateQuestion(ctx, state, section, index)

	state.QuestionCount = index + 1
	state.CurrentSection = section
	state.CurrentQuestion = question
	state.HintUsed = false
	asked := now
	state.LastQuestionTime = &asked

	visual := feedback
	if visual == "" {
		visual = "Interview in progress."
	}

	s.AppendTurn("assistant", question, visual, now)
	return NewCoachResponse(question, visual, AvatarIntent{Expression: "neutral", Gesture: "listening"}, "evaluating", now), nil
}

// sectionForQuestion maps a question index to its interview section.
func sectionForQuestion(index int) session.Section {
	switch {
	case index < 1:
		return session.SectionWarmup
	case index < 3:
		return session.SectionBackground
	case index < 7:
		return session.SectionTechnical
	case index < 9:
		return session.SectionBehavioral
	default:
		return session.SectionWrapup
	}
}

// generateQuestion returns the next question. Non-technical sections use the
// fixed bank; technical questions come from inference, normalized to a single
// well-formed question with a canned fallback.
func (e *Engine) generateQuestion(ctx context.Context, state *session.InterviewState, section session.Section, index int) string {
	role := state.Role
	if role == "" {
		role = "the role"
	}

	switch section {
	case session.SectionWarmup:
		return "Give me a quick overview of yourself and your background."
	case session.SectionBackground:
		if index == 1 {
			return "Tell me about a project you worked on that relates to " + role + ". What problem did it solve?"
		}
		return "What was your personal contribution to a recent project you are proud of?"
	case session.SectionBehavioral:
		if index == 7 {
			return "Tell me about a challenge you faced."
		}
		return "How do you handle tight deadlines?"
	case session.SectionWrapup:
		return "What questions do you have for me about the role?"
	}

	raw, err := e.infer.Generate(ctx, technicalQuestionPrompt(state), TierFast)
	if err == nil {
		if payload, ok := ExtractJSONObject(raw); ok {
			if question := stringField(payload, "question"); question != "" {
				return NormalizeQuestion(question)
			}
		}
	} else {
		e.log.Warn("question generation failed", "error", err)
	}

	return NormalizeQuestion("What data structure would you use to check if a value has appeared before in a list, and why?")
}

// answerEvaluation is the graded result of one interview answer.
type answerEvaluation struct {
	Evaluation   string
	Strengths    []string
	Improvements []string
	Hint         string
}

// evaluateAnswer grades the answer via inference. On failure the grade is
// derived from answer length so the interview always proceeds.
func (e *Engine) evaluateAnswer(ctx context.Context, state *session.InterviewState, answer string) answerEvaluation {
	raw, err := e.infer.Generate(ctx, answerEvaluationPrompt(state, answer), TierFast)
	if err == nil {
		if payload, ok := ExtractJSONObject(raw); ok {
			if grade := stringField(payload, "evaluation"); grade != "" {
				return answerEvaluation{
					Evaluation:   grade,
					Strengths:    stringList(payload, "strengths"),
					Improvements: stringList(payload, "improvements"),
					Hint:         stringField(payload, "hint"),
				}
			}
		}
	} else {
		e.log.Warn("answer evaluation failed", "error", err)
	}

	if len(answer) < 30 {
		return answerEvaluation{
			Evaluation:   "weak",
			Strengths:    []string{"Concise response"},
			Improvements: []string{"Add specific examples"},
			Hint:         "Add one concrete example from your experience.",
		}
	}
	return answerEvaluation{
		Evaluation:   "partial",
		Strengths:    []string{"Clear explanation"},
		Improvements: []string{"Add more detail"},
		Hint:         "Support your answer with a concrete detail.",
	}
}

// feedback renders the evaluation as the visual bullet summary.
func (ev answerEvaluation) feedback() string {
	strengths := bulletList(ev.Strengths, "- Clear response")
	improvements := bulletList(ev.Improvements, "- Add one specific example")
	return "Strengths:\n" + strengths + "\n\nImprovements:\n" + improvements
}

func bulletList(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	bullets := make([]string, len(items))
	for i, item := range items {
		bullets[i] = "- " + item
	}
	return strings.Join(bullets, "\n")
}

// interviewOver reports whether the question or time budget is exhausted.
func (e *Engine) interviewOver(state *session.InterviewState, now time.Time) bool {
	if state.QuestionCount >= state.MaxQuestions {
		return true
	}
	if state.StartTime != nil && now.Sub(*state.StartTime) >= time.Duration(state.MaxMinutes)*time.Minute {
		return true
	}
	return false
}

func interviewPrompt(voiceText, visual string, now time.Time) *CoachResponse {
	return NewCoachResponse(voiceText, visual, AvatarIntent{Expression: "neutral", Gesture: "listening"}, "evaluating", now)
}
