// internal/models/conversation.go
package models

import "time"

// Message is one turn of a user's conversation history.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
