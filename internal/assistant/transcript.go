package assistant

import "time"

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage is one transcript entry. Entries are never edited after append.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	// FallbackEmptyReply replaces a reply that carried no text.
	FallbackEmptyReply = "I processed that, but I'm not sure what to say."

	// FallbackApology replaces a turn that failed in transport or decoding.
	FallbackApology = "I'm having trouble connecting to the system right now. Please try again later."
)
