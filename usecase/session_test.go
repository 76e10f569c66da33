package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveriechat/reverie/domain"
)

func newTestSession(t *testing.T, llm *MockLlm, broker domain.MessageBroker) *Session {
	t.Helper()
	character := &domain.CharacterProfile{Name: "Alex", Age: "30"}
	scenario := &domain.ScenarioDefinition{Title: "Test", InitialSituation: "You wake up."}
	s := NewSession("sess-1", character, scenario, llm, broker)
	s.retry = &RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond}
	return s
}

func startedSession(t *testing.T, llm *MockLlm, broker domain.MessageBroker) *Session {
	t.Helper()
	s := newTestSession(t, llm, broker)
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, StateReady, s.State().Conversation)
	return s
}

func TestStartProducesSetupMessagesThenFirstModelTurn(t *testing.T) {
	llm := &MockLlm{Responses: []string{"The morning light fills the room."}}
	s := newTestSession(t, llm, nil)

	require.NoError(t, s.Start(context.Background()))

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, domain.MessageSystem, msgs[0].Type)
	assert.Contains(t, msgs[0].Content, DayMarkerPrefix)
	assert.Contains(t, msgs[1].Content, "You wake up.")
	assert.Equal(t, domain.SenderAI, msgs[2].Sender)
	assert.Equal(t, "The morning light fills the room.", msgs[2].Content)

	// The first model call sees context + synthetic user ack.
	require.Len(t, llm.Calls, 1)
	require.Len(t, llm.Calls[0], 2)
	assert.Equal(t, domain.ContextRole, llm.Calls[0][0].Role)
	assert.Equal(t, domain.UserRole, llm.Calls[0][1].Role)
}

func TestStartRequiresIdleState(t *testing.T) {
	s := startedSession(t, &MockLlm{}, nil)
	assert.Error(t, s.Start(context.Background()))
}

func TestSubmitRejectsWhitespaceOnlyInput(t *testing.T) {
	llm := &MockLlm{}
	s := startedSession(t, llm, nil)
	before := len(s.Messages())
	calls := len(llm.Calls)

	_, err := s.Submit(context.Background(), "   ")
	require.ErrorIs(t, err, domain.ErrEmptyInput)
	assert.Equal(t, before, len(s.Messages()))
	assert.Equal(t, calls, len(llm.Calls), "whitespace input must not invoke the model")
}

func TestSubmitAppendsUserAndModelMessages(t *testing.T) {
	llm := &MockLlm{Responses: []string{
		"The room settles.",
		`"Hello yourself," Petra replies from the doorway.`,
	}}
	s := startedSession(t, llm, nil)

	appended, err := s.Submit(context.Background(), "Hello? Anyone there?")
	require.NoError(t, err)
	require.Len(t, appended, 2)
	assert.Equal(t, domain.SenderUser, appended[0].Sender)
	assert.Equal(t, domain.MessageDialogue, appended[0].Type)
	assert.Equal(t, domain.SenderAI, appended[1].Sender)

	// History alternates: context, ack, model, user, model.
	turns := s.history.Turns()
	require.Len(t, turns, 5)
	assert.Equal(t, domain.ModelRole, turns[4].Role)
}

func TestSubmitTagsHistoryWithClassifiedType(t *testing.T) {
	llm := &MockLlm{}
	s := startedSession(t, llm, nil)

	_, err := s.Submit(context.Background(), "I walk to the window")
	require.NoError(t, err)

	turns := s.history.Turns()
	assert.Contains(t, turns[3].Text, "[action]")
	assert.Contains(t, turns[3].Text, "I walk to the window")
}

func TestSubmitManualTypeWhenAutoDetectOff(t *testing.T) {
	llm := &MockLlm{}
	s := startedSession(t, llm, nil)
	s.SetAutoDetect(false)
	s.SetManualType(domain.MessageThought)

	appended, err := s.Submit(context.Background(), "I walk to the window")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageThought, appended[0].Type)
}

func TestSubmitInsertsDayMarkerAfterLongGap(t *testing.T) {
	llm := &MockLlm{}
	s := startedSession(t, llm, nil)

	clock := newFakeClock(time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC))
	s.now = clock.Now
	_, err := s.Submit(context.Background(), "Good morning")
	require.NoError(t, err)

	clock.Advance(4 * time.Hour)
	appended, err := s.Submit(context.Background(), "Hello again")
	require.NoError(t, err)

	require.Len(t, appended, 3)
	assert.Equal(t, domain.MessageSystem, appended[0].Type)
	assert.Contains(t, appended[0].Content, DayMarkerPrefix)
}

func TestModelPhoneCueEnablesPhoneMode(t *testing.T) {
	llm := &MockLlm{Responses: []string{
		"The kitchen is empty.",
		"A light blinks on your phone as three notifications stack up.",
	}}
	broker := &MockBroker{}
	s := startedSession(t, llm, broker)

	require.False(t, s.State().PhoneMode)
	_, err := s.Submit(context.Background(), "I look around")
	require.NoError(t, err)

	assert.True(t, s.State().PhoneMode, "phone cue in the response must flip phone mode")
	events := broker.EventsOfKind(domain.EventPhoneMode)
	require.NotEmpty(t, events)
	assert.True(t, events[len(events)-1].PhoneMode)
}

func TestUserPhonePhrasesToggleMode(t *testing.T) {
	llm := &MockLlm{Responses: []string{"Quiet.", "You unlock the screen.", "You pocket it."}}
	s := startedSession(t, llm, nil)

	_, err := s.Submit(context.Background(), "I check my phone")
	require.NoError(t, err)
	assert.True(t, s.State().PhoneMode)

	_, err = s.Submit(context.Background(), "I put my phone away and keep walking")
	require.NoError(t, err)
	assert.False(t, s.State().PhoneMode)
}

func TestAuthErrorSurfacesWithoutRetry(t *testing.T) {
	llm := &MockLlm{Errors: []error{
		&domain.UpstreamError{Kind: domain.UpstreamAuth, Status: 401, Message: "bad key"},
	}}
	s := startedSession(t, &MockLlm{}, nil)
	s.llm = llm

	appended, err := s.Submit(context.Background(), "Hello?")
	require.NoError(t, err)
	require.Len(t, appended, 2)
	assert.Equal(t, domain.MessageError, appended[1].Type)
	assert.Contains(t, appended[1].Content, "API key")
	assert.Equal(t, StateReady, s.State().Conversation, "errors must not leave the session stuck")
	assert.Len(t, llm.Calls, 1)
}

func TestRateLimitRetriesThenSucceeds(t *testing.T) {
	llm := &MockLlm{
		Errors:    []error{&domain.UpstreamError{Kind: domain.UpstreamRateLimit, Status: 429, Message: "slow"}},
		Responses: []string{"Eventually, an answer."},
	}
	s := startedSession(t, &MockLlm{}, nil)
	s.llm = llm

	appended, err := s.Submit(context.Background(), "Anyone?")
	require.NoError(t, err)
	assert.Equal(t, domain.SenderAI, appended[1].Sender)
	assert.Len(t, llm.Calls, 2)
}

func TestContentFilterAppendsPlaceholderTurn(t *testing.T) {
	llm := &MockLlm{Errors: []error{
		&domain.UpstreamError{Kind: domain.UpstreamContentFilter, Message: "blocked"},
	}}
	s := startedSession(t, &MockLlm{}, nil)
	s.llm = llm

	appended, err := s.Submit(context.Background(), "Tell me everything")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageError, appended[1].Type)

	turns := s.history.Turns()
	last := turns[len(turns)-1]
	assert.Equal(t, domain.ModelRole, last.Role)
	assert.Equal(t, blockedPlaceholder, last.Text, "alternation is preserved with a placeholder turn")
}

func TestSubmitSucceedsAfterFailedExchange(t *testing.T) {
	s := startedSession(t, &MockLlm{}, nil)
	llm := &MockLlm{
		Errors:    []error{&domain.UpstreamError{Kind: domain.UpstreamAuth, Status: 401, Message: "bad key"}},
		Responses: []string{"The tide answers at last."},
	}
	s.llm = llm

	appended, err := s.Submit(context.Background(), "Hello?")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageError, appended[1].Type)

	// The user turn with no reply is rolled back; the log still ends on the
	// opening model turn.
	turns := s.history.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, domain.ModelRole, turns[2].Role)

	appended, err = s.Submit(context.Background(), "Still there?")
	require.NoError(t, err)
	require.Len(t, appended, 2)
	assert.Equal(t, domain.SenderAI, appended[1].Sender)

	turns = s.history.Turns()
	require.Len(t, turns, 5)
	assert.Equal(t, "The tide answers at last.", turns[4].Text)
}

func TestStartFailureLeavesSessionRecoverable(t *testing.T) {
	llm := &MockLlm{
		Errors:    []error{&domain.UpstreamError{Kind: domain.UpstreamAuth, Status: 401, Message: "bad key"}},
		Responses: []string{"A voice answers at last."},
	}
	s := newTestSession(t, llm, nil)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateReady, s.State().Conversation)

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, domain.MessageError, msgs[2].Type)

	// The setup acknowledgment is rolled back with the failed opening, so
	// the user's first message follows the context directly.
	require.Len(t, s.history.Turns(), 1)

	appended, err := s.Submit(context.Background(), "Hello?")
	require.NoError(t, err)
	assert.Equal(t, domain.SenderAI, appended[1].Sender)

	require.Len(t, llm.Calls, 2)
	require.Len(t, llm.Calls[1], 2)
	assert.Equal(t, domain.ContextRole, llm.Calls[1][0].Role)
	assert.Equal(t, domain.UserRole, llm.Calls[1][1].Role)
}

func TestResetDiscardsStaleResponse(t *testing.T) {
	llm := &MockLlm{}
	s := startedSession(t, llm, nil)

	release := make(chan struct{})
	slow := &MockLlm{}
	s.llm = blockingLlm{inner: slow, release: release}

	done := make(chan struct{})
	go func() {
		defer close(done)
		msgs, err := s.Submit(context.Background(), "Hello out there")
		assert.NoError(t, err)
		assert.Nil(t, msgs, "stale response must be discarded, not appended")
	}()

	// Wait for the submission to enter the model call, then reset.
	require.Eventually(t, func() bool {
		return s.State().Conversation == StateAwaitingModelResponse
	}, time.Second, time.Millisecond)

	s.Reset()
	close(release)
	<-done

	assert.Equal(t, StateIdle, s.State().Conversation)
	assert.Empty(t, s.Messages(), "reset recreates an empty message list")
}

func TestSubmitWhileBusyReturnsBusy(t *testing.T) {
	release := make(chan struct{})
	s := startedSession(t, &MockLlm{}, nil)
	s.llm = blockingLlm{inner: &MockLlm{}, release: release}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Submit(context.Background(), "first")
	}()
	require.Eventually(t, func() bool {
		return s.State().Conversation == StateAwaitingModelResponse
	}, time.Second, time.Millisecond)

	_, err := s.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, domain.ErrSessionBusy)

	close(release)
	<-done
}

func TestInstructionsEditorSaveWritesThrough(t *testing.T) {
	s := startedSession(t, &MockLlm{}, nil)

	s.OpenInstructionsEditor()
	assert.True(t, s.State().EditorOpen)

	require.NoError(t, s.UpdateInstructions("Keep scenes short."))
	assert.False(t, s.State().EditorOpen)

	turns := s.history.Turns()
	last := turns[len(turns)-1]
	assert.Equal(t, domain.UserRole, last.Role)
	assert.Contains(t, last.Text, "Keep scenes short.")
}

func TestExportCarriesSessionSnapshot(t *testing.T) {
	s := startedSession(t, &MockLlm{}, nil)
	_, err := s.Submit(context.Background(), "Hello?")
	require.NoError(t, err)

	export := s.Export()
	assert.Equal(t, "sess-1", export.ID)
	assert.Equal(t, "Test", export.Title)
	assert.Equal(t, "Alex", export.Character.Name)
	assert.Len(t, export.Messages, 5)
	assert.NotEmpty(t, export.Turns)
}

// blockingLlm parks GenerateTurn until released, for in-flight tests.
type blockingLlm struct {
	inner   domain.Llm
	release chan struct{}
}

func (b blockingLlm) Generate(ctx context.Context, prompt string) (string, error) {
	return b.inner.Generate(ctx, prompt)
}

func (b blockingLlm) GenerateTurn(ctx context.Context, history []domain.Turn) (string, error) {
	<-b.release
	return b.inner.GenerateTurn(ctx, history)
}
