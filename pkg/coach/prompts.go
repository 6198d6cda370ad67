package coach

import (
	"fmt"
	"strings"

	"github.com/socratic-mirror/coach/pkg/coach/session"
)

// Prompt construction lives here, next to the state machines that consume the
// model output. Providers receive finished prompt strings only.

const tutoringSystemPrompt = `You are an Elite Socratic Tutor. Lead the student through a topic using a synchronized Whiteboard experience.

RULES:
1. TAKE CHARGE ONLY ON FIRST TURN: If this is the first response, start explaining immediately.
2. FOLLOW-UP PRIORITY: For later turns, answer the MOST RECENT user message directly first.
3. NO REPETITION: Do NOT repeat earlier explanations unless the user explicitly asks to recap/repeat.
4. LOGICAL-STEPS: Break explanations into 1-3 sentence "steps".
5. VISUAL-FIRST: Every major concept MUST be shown on the whiteboard.
6. MONOTONIC: Continue incrementing "step" numbers. Current step is %d, so next step should be >= %d.
7. CHECK-INS: Every 3-4 steps, perform a "check_in".
8. RELEVANCE: Keep response tightly aligned to the latest user question.

OUTPUT SCHEMA (Return ONLY raw JSON):
- { "kind": "step", "step": 1, "subtopic_id": "intro", "narration": "..", "visual": { "type": "equation", "content": ".." }, "avatar_intent": {"expression": "..", "gesture": ".."} }
- { "kind": "check_in", "narration": "..", "options": [".."], "step": 5 }

VISUAL TYPES: "equation", "step_list" ({"steps": []}), "diagram" (DRAW_NUMBER_LINE, DRAW_COORDINATE_PLANE, DRAW_BOXES_AND_ARROWS: Label1, Label2, Label3, Description), "table", "none".`

const speakingSystemPrompt = `You are a Public Speaking Coach.
Stay silent while the user speaks unless they stop for a long time.
Provide feedback on pace, confidence, and clarity.
Always return JSON with:
{
  "voice_text": "Brief spoken feedback to keep them inspired",
  "visual_content": "Detailed bullet points of feedback for the user to read",
  "avatar_intent": {"expression": "neutral/encouraging", "gesture": "listening/nodding"},
  "pedagogical_state": "evaluating"
}`

const interviewSystemPrompt = `You are a Professional Interviewer.
Ask role-specific questions. Be challenging but fair.
Always return JSON with:
{
  "voice_text": "The next interview question or follow-up",
  "visual_content": "Strengths/Improvements of their last answer. Use bullet points.",
  "avatar_intent": {"expression": "neutral/skeptical", "gesture": "listening/thinking"},
  "pedagogical_state": "evaluating"
}`

const genericSystemPrompt = `You are a helpful AI assistant. Return JSON with voice_text and visual_content.`

func systemPrompt(mode session.Mode, currentStep int) string {
	switch mode {
	case session.ModeTutoring:
		return fmt.Sprintf(tutoringSystemPrompt, currentStep, currentStep+1)
	case session.ModePublicSpeaking:
		return speakingSystemPrompt
	case session.ModeInterview:
		return interviewSystemPrompt
	default:
		return genericSystemPrompt
	}
}

// historyWindowSize bounds the conversation context passed to inference so
// the latest user intent dominates.
const historyWindowSize = 12

// conversationPrompt assembles the full free-form turn prompt: system rules,
// recent history, and the latest user message.
func conversationPrompt(mode session.Mode, history []session.Turn, currentStep int) string {
	window := history
	if len(window) > historyWindowSize {
		window = window[len(window)-historyWindowSize:]
	}

	var b strings.Builder
	b.WriteString("SYSTEM: ")
	b.WriteString(systemPrompt(mode, currentStep))
	b.WriteString("\n\nHISTORY:\n")

	userMessage := "Hello"
	if len(window) > 0 {
		for _, turn := range window[:len(window)-1] {
			role := "User"
			if turn.Role == "assistant" {
				role = "AI"
			}
			b.WriteString(role)
			b.WriteString(": ")
			b.WriteString(turn.Content)
			b.WriteString("\n")
		}
		userMessage = window[len(window)-1].Content
	}

	b.WriteString("\nUSER: ")
	b.WriteString(userMessage)
	b.WriteString("\n\nReturn ONLY raw JSON.")
	return b.String()
}

func technicalQuestionPrompt(state *session.InterviewState) string {
	role := state.Role
	if role == "" {
		role = "the role"
	}
	return fmt.Sprintf(`You are a professional interviewer. Generate ONE technical interview question.

Role: %s
Job description (optional): %s
Resume (optional): %s
Desired difficulty: same
Question pattern: concept OR coding/logic OR applied scenario (rotate, keep concise).
Hard constraints:
- Output exactly one question, one sentence, and at most one question mark.
- Do not include multiple parts, follow-ups, or "and"-joined questions.
- Avoid asking for full code; prefer reasoning or short snippets.
- Use simple wording; avoid formulas, math notation, or symbolic expressions unless the user explicitly asked for formulas.

Return ONLY raw JSON:
{
    "question": "<single technical question, one sentence>"
}`, role, state.JobDescription, state.Resume)
}

func answerEvaluationPrompt(state *session.InterviewState, answer string) string {
	role := state.Role
	if role == "" {
		role = "the role"
	}
	section := state.CurrentSection
	if section == "" {
		section = session.SectionTechnical
	}
	return fmt.Sprintf(`You are a professional interviewer. Evaluate the candidate answer.

Role: %s
Section: %s
Question: %s
Answer: %s

Feedback rules:
- Be specific and actionable; avoid vague phrases like "hard to understand".
- If the question involves code, algorithms, complexity, or formulas, include a short concrete example or hint.
- Keep bullets short (max 12 words each).

Return ONLY raw JSON:
{
  "evaluation": "good" | "partial" | "weak",
  "strengths": ["short bullet"],
  "improvements": ["short bullet"],
  "hint": "short hint for improvement"
}`, role, section, state.CurrentQuestion, answer)
}

func sessionAnalysisPrompt(s *session.Session, stressEvents, bargeIns int) string {
	return fmt.Sprintf(`Analyze this coaching session and return ONLY raw JSON:
{
  "overall_score": 0-100,
  "strengths": ["list of 3 strengths"],
  "improvements": ["list of 3 areas to improve"],
  "analysis": "A brief summary of their vibe and performance"
}

Session data:
- Duration: %.0fs
- Mode: %s
- Stress events: %d
- Barge-in corrections: %d
- Interactions: %d`, s.Duration, s.Mode, stressEvents, bargeIns, len(s.Interactions))
}

func speakingReportPrompt(state *session.SpeakingState, durationMinutes float64, wpm int) string {
	speakingType := state.SpeakingType
	if speakingType == "" {
		speakingType = "Public Speaking"
	}
	topic := state.Topic
	if topic == "" {
		topic = "Unknown Topic"
	}
	return fmt.Sprintf(`You are a public speaking coach. Create a concise speaking report.

Type: %s
Topic: %s
Duration minutes: %.1f
WPM: %d
Filler words: %d
Pauses: %d

Return ONLY raw JSON:
{
  "overall_score": 0-100,
  "level": "Beginner" | "Improving" | "Confident" | "Presentation Ready",
  "scores": {"clarity": 1-10, "confidence": 1-10, "structure": 1-10, "pace": 1-10, "engagement": 1-10},
  "strengths": ["short bullet"],
  "improvements": ["short bullet"],
  "next_steps": "short next steps",
  "moment_feedback": "short moment-level feedback"
}`, speakingType, topic, durationMinutes, wpm, state.FillerCount, state.PauseCount)
}

func interviewReportPrompt(role string, transcript []string) string {
	if role == "" {
		role = "the role"
	}
	return fmt.Sprintf(`You are an interview evaluator. Summarize the interview performance.

Role: %s
Transcript (recent):
%s

Return ONLY raw JSON:
{
  "overall_score": 0-100,
  "overall_level": "Strong Junior" | "Mid" | "Senior",
  "scores": {"technical": 1-10, "problem_solving": 1-10, "communication": 1-10},
  "top_strength": "short phrase",
  "top_improvement": "short phrase",
  "next_steps": "short next steps"
}`, role, strings.Join(transcript, "\n"))
}
