package relay

import (
	"time"

	"github.com/mcdev12/emdrtap/go/internal/remote"
)

const MessageTypeSnapshot = "snapshot"

// SessionMessage is the envelope sent to web guests
type SessionMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      remote.Snapshot `json:"data"`
}

func newSnapshotMessage(sessionID string, snap remote.Snapshot) *SessionMessage {
	return &SessionMessage{
		Type:      MessageTypeSnapshot,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      snap,
	}
}
