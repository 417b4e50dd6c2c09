package models

import (
	"context"
	"time"
)

// Message types accepted from clients.
const (
	MessageTypeHuman = "human"
	MessageTypeAI    = "ai"
)

// Message is one entry of a conversation transcript.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	ID      string `json:"id,omitempty"`
}

// ConversationSession is the per-conversation routing state. It is never
// shared across users and is mutated by at most one turn at a time.
type ConversationSession struct {
	SessionID   string    `json:"sessionId"`
	UserID      string    `json:"userId,omitempty"`
	ActiveAgent string    `json:"activeAgent,omitempty"`
	TaskID      string    `json:"taskId,omitempty"`
	ContextID   string    `json:"contextId,omitempty"`
	History     []Message `json:"history,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewConversationSession returns an empty session created now.
func NewConversationSession(sessionID, userID string) *ConversationSession {
	now := time.Now().UTC()
	return &ConversationSession{
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UpdateActivity updates the last activity timestamp
func (s *ConversationSession) UpdateActivity() {
	s.UpdatedAt = time.Now().UTC()
}

// AppendHistory adds messages and keeps only the newest limit entries (limit <= 0 keeps all).
func (s *ConversationSession) AppendHistory(limit int, msgs ...Message) {
	s.History = append(s.History, msgs...)
	if limit > 0 && len(s.History) > limit {
		s.History = append([]Message(nil), s.History[len(s.History)-limit:]...)
	}
}

// SessionStore persists conversation sessions.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*ConversationSession, error)
	Save(ctx context.Context, session *ConversationSession) error
}
