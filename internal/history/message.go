package history

import "time"

// AssistantUserID is the reserved sender ID marking messages the bot itself
// authored. Every other user ID denotes a human participant.
const AssistantUserID int64 = 0

// Message is a single persisted chat message.
type Message struct {
	ID        int64
	ChatID    int64
	UserID    int64
	Username  string
	Text      string
	Timestamp time.Time
}

// FromAssistant reports whether the bot authored this message.
func (m Message) FromAssistant() bool {
	return m.UserID == AssistantUserID
}
