package sessions

import (
	"time"

	"github.com/koscakluka/xperto/core/conversation"
)

const FormatVersion = "1.0"

// Record is the saved form of a session, one JSON file per session id.
type Record struct {
	SessionID        string                    `json:"session_id"`
	Timestamp        time.Time                 `json:"timestamp"`
	ConfigUsed       string                    `json:"config_used"`
	ParticipantCount int                       `json:"participant_count"`
	MessageCount     int                       `json:"message_count"`
	Messages         []conversation.Message    `json:"messages"`
	Tools            []conversation.ToolSchema `json:"tools"`
	Metadata         Metadata                  `json:"metadata"`
}

type Metadata struct {
	SavedAt time.Time `json:"saved_at"`
	Version string    `json:"version"`
}

// Info summarises a saved session for listings.
type Info struct {
	SessionID        string
	Timestamp        time.Time
	ParticipantCount int
	MessageCount     int
	ConfigUsed       string
	Path             string
}
