package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reveriechat/reverie/domain"
	"github.com/reveriechat/reverie/utils/log"
)

// ConversationState is the main axis of the session state machine.
type ConversationState string

const (
	StateIdle                   ConversationState = "idle"
	StateAwaitingFirstModelTurn ConversationState = "awaiting_first_model_turn"
	StateReady                  ConversationState = "ready"
	StateAwaitingModelResponse  ConversationState = "awaiting_model_response"
)

// SessionState is the composite state of one session: the conversation
// state plus the orthogonal phone-mode and instructions-editor flags.
type SessionState struct {
	Conversation ConversationState `json:"conversation"`
	PhoneMode    bool              `json:"phoneMode"`
	EditorOpen   bool              `json:"editorOpen"`
}

// ChatEventsTopic is the broker topic session events are published on.
const ChatEventsTopic = "chat.events"

const blockedPlaceholder = "[blocked]"

// dayGap is the idle span after which a new day marker is inserted.
const dayGap = 3 * time.Hour

var (
	phoneOnCueRe  = regexp.MustCompile(`(?i)check(s|ing)? my phone`)
	phoneOffCueRe = regexp.MustCompile(`(?i)put(s|ting)? (my |the )?phone away`)

	responsePhoneRe = regexp.MustCompile(`(?i)(on your phone|your phone (buzz|light|ring|vibrat)|check(s|ing)? your phone|look(s|ing)? at your phone|phone screen|picks? up (the|your) phone)`)

	responseSocialRe = regexp.MustCompile(`(?i)\b(instagram|tiktok|youtube|twitter|followers|notification|message request|dm|dms|feed)\b`)
)

// Session is the chat state machine tying together user input,
// classification, model invocation, phone-mode sub-state, error translation
// and rendering dispatch. It owns its history manager and message list;
// neither is ever shared across sessions.
type Session struct {
	mu sync.Mutex

	id        string
	character *domain.CharacterProfile
	scenario  *domain.ScenarioDefinition

	state      SessionState
	history    *HistoryManager
	messages   []domain.ChatMessage
	autoDetect bool
	manualType domain.MessageType

	llm    domain.Llm
	broker domain.MessageBroker

	classifier *Classifier
	post       *PostProcessor
	renderer   *Renderer
	retry      *RetryPolicy

	// generation guards against stale responses: a reset while a call is
	// in flight bumps it, and the response is discarded on arrival.
	generation uint64

	nextID        int
	lastMessageAt time.Time
	createdAt     time.Time
	lastModified  time.Time

	now func() time.Time
}

// NewSession builds a session in the Idle state. The broker may be nil when
// no push surface is attached.
func NewSession(id string, character *domain.CharacterProfile, scenario *domain.ScenarioDefinition, llm domain.Llm, broker domain.MessageBroker) *Session {
	s := &Session{
		id:         id,
		character:  character,
		scenario:   scenario,
		state:      SessionState{Conversation: StateIdle},
		history:    NewHistoryManager(),
		autoDetect: true,
		manualType: domain.MessageDialogue,
		llm:        llm,
		broker:     broker,
		classifier: NewClassifier(),
		post:       NewPostProcessor(),
		retry:      DefaultRetryPolicy(),
		now:        time.Now,
	}
	s.renderer = NewRenderer(s.post)
	s.createdAt = s.now()
	s.lastModified = s.createdAt
	return s
}

func (s *Session) ID() string { return s.id }

// State returns the composite session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the displayed message list.
func (s *Session) Messages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// SetAutoDetect toggles input classification; when disabled the last
// manually selected type is used instead.
func (s *Session) SetAutoDetect(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoDetect = on
}

// SetManualType selects the type used while auto-detect is off.
func (s *Session) SetManualType(t domain.MessageType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manualType = t
}

// Start moves Idle → AwaitingFirstModelTurn → Ready. It synthesizes the
// day marker and the initial narrative message, then issues the first model
// call. The roleplay context never appears in the displayed transcript.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Conversation != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("start: session already running (%s)", s.state.Conversation)
	}
	if s.character == nil || s.scenario == nil {
		s.mu.Unlock()
		return errors.New("start: character and scenario must be set")
	}

	s.history.Initialize(s.character, s.scenario)

	s.appendLocked(ctx, domain.SenderSystem, domain.MessageSystem, s.dayMarker())
	s.appendLocked(ctx, domain.SenderSystem, domain.MessageSystem, "✨ "+s.scenario.InitialSituation)

	s.transitionLocked(StateAwaitingFirstModelTurn)
	gen := s.generation
	turns := s.history.Turns()
	s.mu.Unlock()

	s.publishTyping(ctx, true)
	raw, err := s.generate(ctx, turns)
	s.publishTyping(ctx, false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		log.WithCtx(ctx).Warn("discarding stale first model turn", zap.String("session_id", s.id))
		return nil
	}
	if err != nil {
		if !s.appendFailureLocked(ctx, err) {
			// The setup acknowledgment is popped so the next exchange can
			// append a user turn; the model then sees context + that turn.
			s.history.RemoveTrailingUserTurn()
		}
		s.transitionLocked(StateReady)
		return nil
	}

	if herr := s.history.AppendModelTurn(raw); herr != nil {
		return herr
	}
	display := s.post.Process(raw, domain.MessageDialogue)
	s.appendLocked(ctx, domain.SenderAI, s.responseType(raw), display)
	s.scanResponsePhoneCues(ctx, raw)
	s.transitionLocked(StateReady)
	return nil
}

// Submit handles one user turn: Ready → AwaitingModelResponse → Ready.
// It returns every message appended on behalf of this submission.
func (s *Session) Submit(ctx context.Context, text string) ([]domain.ChatMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, domain.ErrEmptyInput
	}

	s.mu.Lock()
	switch s.state.Conversation {
	case StateReady:
	case StateAwaitingModelResponse, StateAwaitingFirstModelTurn:
		s.mu.Unlock()
		return nil, domain.ErrSessionBusy
	default:
		s.mu.Unlock()
		return nil, domain.ErrSessionNotReady
	}

	// Phone-mode toggles key off explicit user phrases, independent of
	// the classifier.
	if phoneOnCueRe.MatchString(trimmed) {
		s.setPhoneModeLocked(ctx, true)
	} else if phoneOffCueRe.MatchString(trimmed) {
		s.setPhoneModeLocked(ctx, false)
	}

	inputType := s.manualType
	if s.autoDetect {
		inputType = s.classifier.Classify(trimmed)
	}

	appendedFrom := len(s.messages)

	if !s.lastMessageAt.IsZero() && s.now().Sub(s.lastMessageAt) > dayGap {
		s.appendLocked(ctx, domain.SenderSystem, domain.MessageSystem, s.dayMarker())
	}

	if err := s.history.AppendUserTurn(fmt.Sprintf("[%s] %s", inputType, trimmed)); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.appendLocked(ctx, domain.SenderUser, inputType, trimmed)

	s.transitionLocked(StateAwaitingModelResponse)
	gen := s.generation
	turns := s.history.Turns()
	s.mu.Unlock()

	s.publishTyping(ctx, true)
	raw, err := s.generate(ctx, turns)
	s.publishTyping(ctx, false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		log.WithCtx(ctx).Warn("discarding stale model response", zap.String("session_id", s.id))
		return nil, nil
	}

	if err != nil {
		if !s.appendFailureLocked(ctx, err) {
			s.history.RemoveTrailingUserTurn()
		}
		s.transitionLocked(StateReady)
		return s.messagesSince(appendedFrom), nil
	}

	if herr := s.history.AppendModelTurn(raw); herr != nil {
		s.transitionLocked(StateReady)
		return s.messagesSince(appendedFrom), herr
	}

	display := s.post.Process(raw, inputType)
	s.appendLocked(ctx, domain.SenderAI, s.responseType(raw), display)
	s.scanResponsePhoneCues(ctx, raw)
	s.transitionLocked(StateReady)
	return s.messagesSince(appendedFrom), nil
}

// UpdateInstructions writes through to the history manager. The editor flag
// only gates whether a modal is shown; canceling an edit is a no-op here.
func (s *Session) UpdateInstructions(instructions string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.history.UpdateInstructions(instructions); err != nil {
		return err
	}
	s.state.EditorOpen = false
	s.lastModified = s.now()
	return nil
}

func (s *Session) OpenInstructionsEditor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.EditorOpen = true
}

func (s *Session) CloseInstructionsEditor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.EditorOpen = false
}

// Reset discards and recreates the history and message list rather than
// clearing them in place, and invalidates any in-flight model call.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.history = NewHistoryManager()
	s.messages = nil
	s.nextID = 0
	s.lastMessageAt = time.Time{}
	s.state = SessionState{Conversation: StateIdle}
	s.lastModified = s.now()
}

// Export snapshots the session in the interchange format.
func (s *Session) Export() *domain.ChatExport {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]domain.ChatMessage, len(s.messages))
	copy(messages, s.messages)

	title := ""
	if s.scenario != nil {
		title = s.scenario.Title
	}
	export := &domain.ChatExport{
		ID:           s.id,
		Title:        title,
		Messages:     messages,
		Turns:        s.history.Export(),
		CreatedAt:    s.createdAt,
		LastModified: s.lastModified,
	}
	if s.character != nil {
		export.Character = *s.character
	}
	if s.scenario != nil {
		export.Scenario = *s.scenario
	}
	return export
}

// Render maps a message through the presentation renderer.
func (s *Session) Render(msg domain.ChatMessage) domain.RenderDescription {
	return s.renderer.Render(msg)
}

// generate runs the model call under the retry policy.
func (s *Session) generate(ctx context.Context, turns []domain.Turn) (string, error) {
	var raw string
	err := s.retry.Do(ctx, func() error {
		var callErr error
		raw, callErr = s.llm.GenerateTurn(ctx, turns)
		return callErr
	})
	return raw, err
}

// appendFailureLocked translates an upstream failure into a user-facing
// transcript entry. The conversation never stays stuck in a typing state.
// It reports whether the history absorbed the failure (a placeholder model
// turn was appended); otherwise the caller must pop the pending user turn
// so the log never ends mid-exchange.
func (s *Session) appendFailureLocked(ctx context.Context, err error) bool {
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) {
		s.appendLocked(ctx, domain.SenderSystem, domain.MessageError,
			"The narrator ran into an unexpected problem. Please try again.")
		log.WithCtx(ctx).Error("model call failed", zap.String("session_id", s.id), zap.Error(err))
		return false
	}

	consistent := false
	switch ue.Kind {
	case domain.UpstreamAuth:
		s.appendLocked(ctx, domain.SenderSystem, domain.MessageError,
			"The story service rejected the request. The API key may be invalid, expired, or missing access to this model.")
	case domain.UpstreamRateLimit:
		s.appendLocked(ctx, domain.SenderSystem, domain.MessageError,
			"The story service is receiving too many requests right now. Give it a moment and try again.")
	case domain.UpstreamContentFilter:
		// A placeholder model turn preserves role alternation.
		if herr := s.history.AppendModelTurn(blockedPlaceholder); herr != nil {
			log.WithCtx(ctx).Error("failed to append placeholder turn", zap.Error(herr))
		} else {
			consistent = true
		}
		s.appendLocked(ctx, domain.SenderSystem, domain.MessageError,
			"The narrator's reply was blocked by the safety filter. Try steering the scene differently.")
	case domain.UpstreamNotFound:
		s.appendLocked(ctx, domain.SenderSystem, domain.MessageError,
			"The configured model could not be found. Check the model name in settings.")
	default:
		s.appendLocked(ctx, domain.SenderSystem, domain.MessageError,
			"The story service is unreachable. Check your connection and try again.")
	}
	log.WithCtx(ctx).Warn("model call failed",
		zap.String("session_id", s.id),
		zap.String("kind", string(ue.Kind)),
		zap.Int("status", ue.Status))
	return consistent
}

// responseType classifies the shape of a model response: social-media
// content renders differently from plain narrative. This keys off the raw
// upstream text, independent of the input classifier.
func (s *Session) responseType(raw string) domain.MessageType {
	if responseSocialRe.MatchString(raw) {
		return domain.MessageSocial
	}
	return domain.MessageDialogue
}

func (s *Session) scanResponsePhoneCues(ctx context.Context, raw string) {
	if responsePhoneRe.MatchString(raw) {
		s.setPhoneModeLocked(ctx, true)
	}
}

func (s *Session) setPhoneModeLocked(ctx context.Context, on bool) {
	if s.state.PhoneMode == on {
		return
	}
	s.state.PhoneMode = on
	s.publish(ctx, domain.ChatEvent{
		SessionID: s.id,
		Kind:      domain.EventPhoneMode,
		PhoneMode: on,
		Timestamp: s.now(),
	})
}

func (s *Session) transitionLocked(to ConversationState) {
	from := s.state.Conversation
	s.state.Conversation = to
	log.With(
		zap.String("session_id", s.id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	).Debug("conversation state transition")
}

// appendLocked appends one displayable message and publishes it with its
// render description. Caller holds the lock.
func (s *Session) appendLocked(ctx context.Context, sender domain.Sender, typ domain.MessageType, content string) domain.ChatMessage {
	s.nextID++
	msg := domain.ChatMessage{
		ID:        fmt.Sprintf("%s-%d", s.id, s.nextID),
		Sender:    sender,
		Type:      typ,
		Content:   content,
		Timestamp: s.now(),
	}
	s.messages = append(s.messages, msg)
	s.lastMessageAt = msg.Timestamp
	s.lastModified = msg.Timestamp

	render := s.renderer.Render(msg)
	s.publish(ctx, domain.ChatEvent{
		SessionID: s.id,
		Kind:      domain.EventMessage,
		Message:   &msg,
		Render:    &render,
		Timestamp: msg.Timestamp,
	})
	return msg
}

func (s *Session) messagesSince(from int) []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(s.messages)-from)
	copy(out, s.messages[from:])
	return out
}

func (s *Session) dayMarker() string {
	return DayMarkerPrefix + s.now().Format("Monday, January 2")
}

func (s *Session) publishTyping(ctx context.Context, on bool) {
	s.publish(ctx, domain.ChatEvent{
		SessionID: s.id,
		Kind:      domain.EventTyping,
		Typing:    on,
		Timestamp: s.now(),
	})
}

func (s *Session) publish(ctx context.Context, event domain.ChatEvent) {
	if s.broker == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.WithCtx(ctx).Error("failed to marshal chat event", zap.Error(err))
		return
	}
	if err := s.broker.Publish(ctx, ChatEventsTopic, "", payload); err != nil {
		log.WithCtx(ctx).Warn("failed to publish chat event", zap.Error(err))
	}
}
