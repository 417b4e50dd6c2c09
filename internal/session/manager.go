package session

import (
	"context"
	"errors"
	"fmt"

	"research-agent/internal/common/logger"
	"research-agent/internal/models"
)

// Manager owns conversation sessions and guarantees that at most one turn
// mutates a given session at a time.
type Manager struct {
	store        models.SessionStore
	locks        *keyedLock
	historyLimit int
	logger       logger.Logger
}

func NewManager(store models.SessionStore, historyLimit int, log logger.Logger) *Manager {
	return &Manager{
		store:        store,
		locks:        newKeyedLock(),
		historyLimit: historyLimit,
		logger:       logger.ForComponent(log, "session"),
	}
}

// HistoryLimit is the number of messages kept per session.
func (m *Manager) HistoryLimit() int {
	return m.historyLimit
}

// WithSession loads (or creates) the session, runs fn while holding the
// session's lock, then persists it. The session is saved even when fn fails
// or the caller's context is cancelled, so side effects already committed by
// fn (such as an active remote agent) survive.
func (m *Manager) WithSession(ctx context.Context, sessionID, userID string, fn func(*models.ConversationSession) error) error {
	unlock, err := m.locks.acquire(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("acquire session %s: %w", sessionID, err)
	}
	defer unlock()

	sess, err := m.loadOrCreate(ctx, sessionID, userID)
	if err != nil {
		return err
	}

	fnErr := fn(sess)

	sess.UpdateActivity()
	if err := m.store.Save(context.WithoutCancel(ctx), sess); err != nil {
		m.logger.Error("failed to persist session", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		if fnErr == nil {
			return err
		}
	}
	return fnErr
}

// Get returns a copy of the stored session.
func (m *Manager) Get(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	return m.store.Load(ctx, sessionID)
}

func (m *Manager) loadOrCreate(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error) {
	sess, err := m.store.Load(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		m.logger.Debug("created new session", map[string]interface{}{
			"session_id": sessionID,
			"user_id":    userID,
		})
		return models.NewConversationSession(sessionID, userID), nil
	}
	if err != nil {
		return nil, err
	}

	if sess.UserID != "" && userID != "" && sess.UserID != userID {
		m.logger.Warn("session requested by different user", map[string]interface{}{
			"session_id":      sessionID,
			"requesting_user": userID,
		})
		return nil, ErrSessionForbidden
	}
	if sess.UserID == "" {
		sess.UserID = userID
	}
	return sess, nil
}
