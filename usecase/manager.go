package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reveriechat/reverie/domain"
	"github.com/reveriechat/reverie/utils/log"
)

// SessionManager owns all live sessions and the persistence save points.
// Sessions are never shared: each one carries its own history manager and
// message list.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	llm    domain.Llm
	broker domain.MessageBroker
	store  domain.SessionStore
}

func NewSessionManager(llm domain.Llm, broker domain.MessageBroker, store domain.SessionStore) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		llm:      llm,
		broker:   broker,
		store:    store,
	}
}

// Create builds a new idle session for the given character and scenario.
func (m *SessionManager) Create(character *domain.CharacterProfile, scenario *domain.ScenarioDefinition) (*Session, error) {
	if character == nil || character.Name == "" {
		return nil, fmt.Errorf("%w: character name is required", domain.ErrInvalidImport)
	}
	if scenario == nil || scenario.InitialSituation == "" {
		return nil, fmt.Errorf("%w: scenario initial situation is required", domain.ErrInvalidImport)
	}

	session := NewSession(uuid.NewString(), character, scenario, m.llm, m.broker)

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	log.With(zap.String("session_id", session.ID())).Info("session created",
		zap.String("character", character.Name),
		zap.String("scenario", scenario.Title))
	return session, nil
}

// Get returns a live session by id.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove drops a session from the registry.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Save persists a session's export snapshot through the store.
func (m *SessionManager) Save(ctx context.Context, id string) (*domain.ChatExport, error) {
	session, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("save: unknown session %s", id)
	}
	export := session.Export()
	if m.store != nil {
		if err := m.store.SaveExport(ctx, export); err != nil {
			return nil, fmt.Errorf("save: %w", err)
		}
	}
	return export, nil
}

// Import validates an export payload and revives it as a fresh session. A
// new id is always assigned to avoid colliding with existing sessions.
func (m *SessionManager) Import(export *domain.ChatExport) (*Session, error) {
	if export == nil {
		return nil, domain.ErrInvalidImport
	}
	if export.ID == "" || len(export.Messages) == 0 || export.Character.Name == "" || export.Scenario.Title == "" {
		return nil, fmt.Errorf("%w: id, messages, character and scenario are all required", domain.ErrInvalidImport)
	}

	character := export.Character
	scenario := export.Scenario
	session := NewSession(uuid.NewString(), &character, &scenario, m.llm, m.broker)

	if len(export.Turns) > 0 {
		if err := session.history.Import(export.Turns); err != nil {
			return nil, err
		}
		// An imported log still needs its sheets attached for reset and
		// instruction updates.
		session.history.character = &character
		session.history.scenario = &scenario
	} else {
		session.history.Initialize(&character, &scenario)
	}

	session.mu.Lock()
	session.messages = append([]domain.ChatMessage(nil), export.Messages...)
	session.nextID = len(export.Messages)
	if n := len(export.Messages); n > 0 {
		session.lastMessageAt = export.Messages[n-1].Timestamp
	}
	session.createdAt = export.CreatedAt
	session.state = SessionState{Conversation: StateReady}
	session.mu.Unlock()

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	log.With(zap.String("session_id", session.ID())).Info("session imported",
		zap.String("source_id", export.ID),
		zap.Int("messages", len(export.Messages)))
	return session, nil
}
