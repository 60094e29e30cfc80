package model

import "time"

// Message is one entry in a job's append-only conversation. Sender and
// recipient are always the job's client and its accepted freelancer, in
// either order; system messages are authored by the engine.
type Message struct {
	ID          string      `json:"id"`
	JobID       string      `json:"job"`
	SenderID    string      `json:"sender"`
	RecipientID string      `json:"recipient"`
	Content     string      `json:"content"`
	Type        MessageType `json:"messageType"`
	IsRead      bool        `json:"isRead"`
	ReadAt      *time.Time  `json:"readAt,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// SendMessageRequest is the payload for posting into a job conversation.
// The recipient is deduced server-side as the other party on the job.
type SendMessageRequest struct {
	JobID   string      `json:"jobId" validate:"required,uuid"`
	Content string      `json:"content" validate:"required,min=1,max=5000"`
	Type    MessageType `json:"messageType" validate:"omitempty,oneof=text file"`
}

// Conversation is the full message history of one job plus the parties
type Conversation struct {
	Job      JobWithClient `json:"job"`
	Messages []Message     `json:"messages"`
}

// ConversationSummary is one inbox row: a job the user talks on, the last
// message and how many incoming messages are unread.
type ConversationSummary struct {
	JobID       string  `json:"jobId"`
	JobTitle    string  `json:"jobTitle"`
	LastMessage Message `json:"lastMessage"`
	UnreadCount int     `json:"unreadCount"`
}

// ChatEvent is the realtime notification emitted after a message persists.
// Delivery is best-effort and never affects the stored conversation.
type ChatEvent struct {
	JobID      string    `json:"jobId"`
	SenderID   string    `json:"sender"`
	SenderName string    `json:"senderName,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}
