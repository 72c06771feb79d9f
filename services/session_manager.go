package services

import (
	"context"
	"fmt"
	"sync"

	"vibin_notifier/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ManagerDeps are shared by every session the manager opens.
type ManagerDeps struct {
	Store     LikeStore
	Push      *PushDispatcher
	Tokens    *TokenRegistry
	Names     *NameBook
	Presenter Presenter
	NewDedup  func(userID string) DedupCache
	QueueDSN  string
}

// SessionManager owns the active session of each user on this host.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	deps     ManagerDeps
	cfg      SessionConfig
}

var _ PushReceiver = (*SessionManager)(nil)

func NewSessionManager(deps ManagerDeps, cfg SessionConfig) *SessionManager {
	if deps.NewDedup == nil {
		deps.NewDedup = func(string) DedupCache { return NewMemoryDedupCache(DefaultDedupMaxEntries, DefaultDedupTTL) }
	}
	if deps.Tokens == nil {
		deps.Tokens = NewTokenRegistry()
	}
	if deps.Names == nil {
		deps.Names = NewNameBook(nil)
	}
	return &SessionManager{sessions: make(map[string]*Session), deps: deps, cfg: cfg}
}

// Open starts a session for userID, or refreshes the name and token of the existing one.
func (m *SessionManager) Open(ctx context.Context, userID, name, pushToken string) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvariant)
	}
	m.deps.Names.Set(userID, name)
	if pushToken != "" {
		m.deps.Tokens.Register(userID, pushToken)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[userID]; ok {
		return existing, nil
	}

	actions, err := OpenActionStore(m.deps.QueueDSN, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to open offline queue for %s: %w", userID, err)
	}

	session := NewSession(userID, SessionDeps{
		Store:     m.deps.Store,
		Push:      m.deps.Push,
		Names:     m.deps.Names,
		Presenter: m.deps.Presenter,
		Dedup:     m.deps.NewDedup(userID),
		Actions:   actions,
	}, m.cfg)
	if err := session.Start(ctx); err != nil {
		session.Close()
		return nil, err
	}
	m.sessions[userID] = session
	return session, nil
}

func (m *SessionManager) Get(userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[userID]
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoSession, userID)
	}
	return session, nil
}

func (m *SessionManager) Close(userID string) error {
	m.mu.Lock()
	session, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w for %s", ErrNoSession, userID)
	}
	m.deps.Tokens.Unregister(userID)
	return session.Close()
}

func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for userID, session := range sessions {
		if err := session.Close(); err != nil {
			logrus.WithError(err).WithField("userId", userID).Warn("⚠️ Session did not close cleanly")
		}
	}
}

// RegisterToken attaches a push token to a user.
func (m *SessionManager) RegisterToken(userID, token string) {
	m.deps.Tokens.Register(userID, token)
}

// Transition forwards a lifecycle state reported by the UI.
func (m *SessionManager) Transition(userID, state string) error {
	if !ValidLifecycleState(state) {
		return fmt.Errorf("%w: unknown lifecycle state %q", ErrInvariant, state)
	}
	session, err := m.Get(userID)
	if err != nil {
		return err
	}
	session.Tracker().Transition(state)
	return nil
}

// ReceivePush delivers a push to the session owning token.
func (m *SessionManager) ReceivePush(ctx context.Context, messageID, token string, msg PushMessage) error {
	userID, ok := m.deps.Tokens.OwnerOf(token)
	if !ok {
		return fmt.Errorf("%w: unknown token", ErrTransport)
	}
	session, err := m.Get(userID)
	if err != nil {
		return err
	}
	session.ReceivePush(ctx, messageID, msg)
	return nil
}

// NotifyMessage pushes a chat message notification from senderID to recipientID.
func (m *SessionManager) NotifyMessage(ctx context.Context, senderID, recipientID, eventID, text string) (string, error) {
	if m.deps.Push == nil {
		return "", fmt.Errorf("%w: push is not configured", ErrTransport)
	}
	senderName, _ := m.deps.Names.DisplayName(ctx, senderID)
	title, body := DefaultCopy(models.NotificationTypeMessage, senderName)
	if text != "" {
		body = text
	}
	payload := models.NotificationPayload{
		Type:           models.NotificationTypeMessage,
		Source:         models.SourcePush,
		PartnerID:      senderID,
		PartnerName:    senderName,
		NotificationID: uuid.New().String(),
		EventID:        eventID,
		Title:          title,
		Body:           body,
	}
	return m.deps.Push.SendNotification(ctx, recipientID, payload)
}
