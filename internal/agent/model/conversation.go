package model

import (
	"context"
	"time"
)

type Role string

const (
	RoleCaller    Role = "caller"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance of a call.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type TranscriptRepository interface {
	// AddTurn appends a turn to the archived transcript of a session, keeping
	// at most maxTurns of the newest turns.
	AddTurn(ctx context.Context, sessionID string, turn Turn, maxTurns int) error

	// LoadTurns returns the archived turns of a session, oldest first.
	LoadTurns(ctx context.Context, sessionID string) ([]Turn, error)

	// ClearTurns removes the archived transcript of a session.
	ClearTurns(ctx context.Context, sessionID string) error
}
