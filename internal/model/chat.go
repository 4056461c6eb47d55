package model

import "time"

// ChatMessage is an append-only session chat entry. Messages are never
// mutated or deleted.
type ChatMessage struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
