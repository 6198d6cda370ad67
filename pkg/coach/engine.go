package coach

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/socratic-mirror/coach/pkg/coach/session"
)

// Engine is the orchestrator. One inbound event per session at a time; the
// transport layer serializes turns, the engine handles each to completion or
// to its fallback.
type Engine struct {
	store session.Store
	infer Inference
	clock session.Clock
	log   *slog.Logger
}

// NewEngine wires the orchestrator. A nil clock uses the system clock and a
// nil logger discards.
func NewEngine(store session.Store, infer Inference, clock session.Clock, logger *slog.Logger) *Engine {
	if clock == nil {
		clock = session.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{store: store, infer: infer, clock: clock, log: logger}
}

// CreateSession starts a new session for the given user and mode.
func (e *Engine) CreateSession(ctx context.Context, userID string, mode session.Mode) (*session.Session, error) {
	s, err := e.store.Create(ctx, userID, mode)
	if err != nil {
		return nil, NewPersistenceError("create", err)
	}
	e.log.Info("session created", "session_id", s.ID, "user_id", userID, "mode", mode)
	return s, nil
}

// GetSession loads a live session.
func (e *Engine) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return e.load(ctx, id)
}

// HandleText processes one typed user message and returns the outbound
// response. The returned error is reserved for persistence failures; model
// failures degrade into fallback responses.
func (e *Engine) HandleText(ctx context.Context, sessionID, text string) (Response, error) {
	return e.handleTurn(ctx, sessionID, text)
}

// HandleSpeech processes one audio transcript. Semantics match HandleText;
// the transcript path exists so transports can distinguish input provenance.
func (e *Engine) HandleSpeech(ctx context.Context, sessionID, transcript string) (Response, error) {
	return e.handleTurn(ctx, sessionID, transcript)
}

func (e *Engine) handleTurn(ctx context.Context, sessionID, text string) (Response, error) {
	s, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Ended() {
		return nil, NewSessionEndedError(s.ID)
	}

	var resp Response
	switch s.Mode {
	case session.ModeInterview:
		resp, err = e.interviewTurn(ctx, s, text)
	case session.ModePublicSpeaking:
		resp, err = e.speakingTurn(ctx, s, text)
	default:
		resp, err = e.freeFormTurn(ctx, s, text)
	}
	if err != nil {
		return nil, err
	}

	if err := e.save(ctx, s); err != nil {
		return nil, err
	}
	return resp, nil
}

// HandleBiometric appends one sensor frame to the session timeline.
func (e *Engine) HandleBiometric(ctx context.Context, sessionID string, frame session.BiometricFrame) error {
	s, err := e.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if s.Ended() {
		return NewSessionEndedError(s.ID)
	}
	s.AppendBiometric(frame, e.now())
	return e.save(ctx, s)
}

// EndSession ends the session and returns the final report. Ending an
// already-ended session regenerates the report without touching state.
func (e *Engine) EndSession(ctx context.Context, sessionID string) (*Report, error) {
	s, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.endAndReport(ctx, s)
}

// GenerateReport builds a report for a session without ending it.
func (e *Engine) GenerateReport(ctx context.Context, sessionID string) (*Report, error) {
	s, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.buildReport(ctx, s), nil
}

// endAndReport finalizes the session, persists it, and builds the report.
// Used both by the explicit end operation and by in-conversation terminal
// transitions (interview exhaustion, speaking completion).
func (e *Engine) endAndReport(ctx context.Context, s *session.Session) (*Report, error) {
	if !s.Ended() {
		s.End(e.now())
		if err := e.save(ctx, s); err != nil {
			return nil, err
		}
		e.log.Info("session ended", "session_id", s.ID, "mode", s.Mode, "duration_s", s.Duration)
	}
	return e.buildReport(ctx, s), nil
}

// freeFormTurn drives tutoring and other free-form modes: barge-in check,
// then an inference round-trip normalized into the stable response contract.
func (e *Engine) freeFormTurn(ctx context.Context, s *session.Session, text string) (Response, error) {
	now := e.now()

	if trigger := DetectBargeIn(text, s.LatestBiometric(), s.BargeInSensitivity); trigger != nil {
		feedback := bargeInFeedback(trigger.TriggerType)
		s.RecordBargeIn(feedback, now)
		e.log.Info("barge-in", "session_id", s.ID, "trigger", trigger.TriggerType, "confidence", trigger.Confidence)
		return NewBargeInResponse(feedback, trigger, now), nil
	}

	s.AppendTurn("user", text, "", now)

	prompt := conversationPrompt(s.Mode, s.ContextHistory, s.TutoringStep)
	raw, err := e.infer.Generate(ctx, prompt, TierFast)
	if err != nil {
		e.log.Warn("inference failed", "session_id", s.ID, "error", err)
		return fallbackResponse(s.Mode, 1, err.Error(), now), nil
	}

	payload, ok := ExtractJSONObject(raw)
	if !ok {
		e.log.Warn("unparseable model output", "session_id", s.ID)
		return fallbackResponse(s.Mode, 1, "unparseable model output", now), nil
	}

	return e.normalizeFreeForm(s, payload, now), nil
}

func (e *Engine) load(ctx context.Context, id string) (*session.Session, error) {
	s, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, NewSessionNotFoundError(id)
		}
		return nil, NewPersistenceError("get", err)
	}
	return s, nil
}

func (e *Engine) save(ctx context.Context, s *session.Session) error {
	if err := e.store.Save(ctx, s); err != nil {
		return NewPersistenceError("save", err)
	}
	return nil
}

func (e *Engine) now() time.Time { return e.clock.Now() }
