package models

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Origin records how a message entered the conversation.
type Origin string

const (
	OriginTyped  Origin = "typed"
	OriginButton Origin = "button"
	OriginVoice  Origin = "voice"
	OriginSystem Origin = "system"
)

// Message is one entry of the visible conversation history.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Visible   bool      `json:"visible"`
	Origin    Origin    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
}

// Language is a two-letter language code.
type Language string

const (
	English Language = "en"
	Hindi   Language = "hi"
)
