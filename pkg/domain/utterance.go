package domain

import "time"

// Role identifies the speaker of an utterance.
type Role string

const (
	RoleUser   Role = "user"
	RoleBot    Role = "bot"
	RoleSystem Role = "system"
)

// Utterance is a single message exchanged in a session.
type Utterance struct {
	Role    Role      `json:"role"`
	Text    string    `json:"text"`
	Ordinal int       `json:"ordinal"`
	At      time.Time `json:"at"`
}
