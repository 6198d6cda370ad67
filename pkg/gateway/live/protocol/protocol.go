// Package protocol defines the typed frames exchanged on the coaching
// WebSocket channel. Decoding is strict about shape but forgiving about
// extras: unknown fields are ignored, unknown types are rejected with a
// typed error the handler reports without closing the channel.
package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/socratic-mirror/coach/pkg/coach/session"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// ClientUserSpeech carries a recognized speech transcript.
type ClientUserSpeech struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
}

// ClientText carries a typed user message.
type ClientText struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// BiometricPayload is one sensor reading on the wire. Timestamp is epoch
// seconds with fractional precision.
type BiometricPayload struct {
	HeartRate       float64   `json:"heart_rate"`
	StressLevel     string    `json:"stress_level"`
	GazeDirection   []float64 `json:"gaze_direction"`
	PostureScore    float64   `json:"posture_score"`
	ConfidenceLevel float64   `json:"confidence_level"`
	Timestamp       float64   `json:"timestamp"`
}

// Frame converts the wire payload into the session-domain frame. Missing
// gaze components read as zero; a positive fractional epoch timestamp
// becomes UTC wall time, and a missing one is stamped server-side on append.
func (p BiometricPayload) Frame() session.BiometricFrame {
	frame := session.BiometricFrame{
		HeartRate:       p.HeartRate,
		StressLevel:     p.StressLevel,
		PostureScore:    p.PostureScore,
		ConfidenceLevel: p.ConfidenceLevel,
	}
	for i := 0; i < len(p.GazeDirection) && i < 3; i++ {
		frame.GazeDirection[i] = p.GazeDirection[i]
	}
	if p.Timestamp > 0 {
		sec, frac := math.Modf(p.Timestamp)
		frame.Timestamp = time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
	}
	return frame
}

// ClientBiometric delivers one biometric frame.
type ClientBiometric struct {
	Type string           `json:"type"`
	Data BiometricPayload `json:"data"`
}

// ClientEndSession asks for the session to end and the report to be sent.
type ClientEndSession struct {
	Type string `json:"type"`
}

// ServerConnected is the first frame on every accepted channel.
type ServerConnected struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id"`
	Mode      session.Mode `json:"mode"`
}

// NewServerConnected builds the connection acknowledgement.
func NewServerConnected(sessionID string, mode session.Mode) ServerConnected {
	return ServerConnected{Type: "connected", SessionID: sessionID, Mode: mode}
}

// DecodeClientMessage parses one inbound frame into its typed form.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "user_speech":
		var msg ClientUserSpeech
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid user_speech frame", "")
		}
		if strings.TrimSpace(msg.Transcript) == "" {
			return nil, badRequest("user_speech.transcript is required", "transcript")
		}
		return msg, nil
	case "text":
		var msg ClientText
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid text frame", "")
		}
		if strings.TrimSpace(msg.Payload) == "" {
			return nil, badRequest("text.payload is required", "payload")
		}
		return msg, nil
	case "biometric_data":
		var msg ClientBiometric
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid biometric_data frame", "")
		}
		if len(msg.Data.GazeDirection) > 3 {
			return nil, badRequest("biometric_data.data.gaze_direction has at most 3 components", "data.gaze_direction")
		}
		return msg, nil
	case "end_session":
		var msg ClientEndSession
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid end_session frame", "")
		}
		return msg, nil
	default:
		return nil, unsupported(fmt.Sprintf("unsupported message type: %s", typ), "type")
	}
}
