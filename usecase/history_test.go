package usecase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveriechat/reverie/domain"
)

func testCharacter() *domain.CharacterProfile {
	return &domain.CharacterProfile{
		Name:        "Alex",
		Age:         "30",
		Personality: "curious",
		Relationships: []domain.Relationship{
			{Name: "Sam", RelationshipType: "sibling", Description: "older brother"},
		},
	}
}

func testScenario() *domain.ScenarioDefinition {
	return &domain.ScenarioDefinition{
		Title:            "Test",
		Setting:          domain.Setting{Location: "an apartment", Time: "morning", Atmosphere: "quiet"},
		InitialSituation: "You wake up.",
		OtherCharacters: []domain.OtherCharacter{
			{Name: "Petra", Role: "neighbor", Description: "nosy", Relationship: "friendly rival"},
		},
		ToneAndThemes: "slice of life",
	}
}

func TestHistoryInitializeSeedsContextAndAck(t *testing.T) {
	h := NewHistoryManager()
	h.Initialize(testCharacter(), testScenario())

	turns := h.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, domain.ContextRole, turns[0].Role)
	assert.Equal(t, domain.UserRole, turns[1].Role)
	assert.Equal(t, setupAck, turns[1].Text)
}

func TestHistoryContextTurnContent(t *testing.T) {
	h := NewHistoryManager()
	h.Initialize(testCharacter(), testScenario())

	ctx := h.Turns()[0].Text
	for _, want := range []string{
		"Alex", "30", "curious",
		"Sam", "sibling",
		"Test", "an apartment", "You wake up.",
		"Petra", "neighbor", "friendly rival",
		"slice of life",
		"fourth wall",
	} {
		assert.Contains(t, ctx, want)
	}
	// All nine behavioral directives render as a numbered list.
	assert.Contains(t, ctx, "9. ")
}

func TestHistoryAlternationAfterPairs(t *testing.T) {
	h := NewHistoryManager()
	h.Initialize(testCharacter(), testScenario())

	const pairs = 4
	for i := 0; i < pairs; i++ {
		require.NoError(t, h.AppendModelTurn(fmt.Sprintf("model %d", i)))
		require.NoError(t, h.AppendUserTurn(fmt.Sprintf("user %d", i)))
	}

	turns := h.Turns()
	assert.Equal(t, 2+2*pairs, len(turns))
	for i := 1; i < len(turns); i++ {
		assert.NotEqual(t, turns[i-1].Role, turns[i].Role, "adjacent turns %d and %d share a role", i-1, i)
	}
}

func TestHistoryRejectsSameRoleAdjacency(t *testing.T) {
	h := NewHistoryManager()
	h.Initialize(testCharacter(), testScenario())

	err := h.AppendUserTurn("a second user turn")
	require.ErrorIs(t, err, domain.ErrProtocolAnomaly)
	assert.Equal(t, 2, h.Len(), "rejected append must not grow the log")
}

func TestHistoryUpdateInstructionsAppendsDirective(t *testing.T) {
	h := NewHistoryManager()
	h.Initialize(testCharacter(), testScenario())
	require.NoError(t, h.AppendModelTurn("The room is quiet."))

	require.NoError(t, h.UpdateInstructions("Write in present tense only."))

	turns := h.Turns()
	last := turns[len(turns)-1]
	assert.Equal(t, domain.UserRole, last.Role)
	assert.Contains(t, last.Text, "Write in present tense only.")
	assert.Contains(t, last.Text, "silently")
}

func TestHistoryUpdateInstructionsRequiresInitialize(t *testing.T) {
	h := NewHistoryManager()

	err := h.UpdateInstructions("Write in present tense only.")
	require.ErrorIs(t, err, domain.ErrProtocolAnomaly)
	assert.Equal(t, 0, h.Len(), "rejected update must not grow the log")
}

func TestHistoryRemoveTrailingUserTurn(t *testing.T) {
	h := NewHistoryManager()
	h.Initialize(testCharacter(), testScenario())
	require.NoError(t, h.AppendModelTurn("The room is quiet."))
	require.NoError(t, h.AppendUserTurn("Hello?"))

	assert.True(t, h.RemoveTrailingUserTurn())
	turns := h.Turns()
	assert.Equal(t, domain.ModelRole, turns[len(turns)-1].Role)

	// The log now ends on a model turn; there is nothing left to undo.
	assert.False(t, h.RemoveTrailingUserTurn())
	assert.Equal(t, 3, h.Len())
}

func TestHistoryResetReinitializesWhenHeld(t *testing.T) {
	h := NewHistoryManager()
	h.Initialize(testCharacter(), testScenario())
	require.NoError(t, h.AppendModelTurn("..."))
	require.NoError(t, h.AppendUserTurn("..."))

	h.Reset()
	assert.Equal(t, 2, h.Len())

	empty := NewHistoryManager()
	empty.Reset()
	assert.Equal(t, 0, empty.Len())
}

func TestHistoryImportValidates(t *testing.T) {
	h := NewHistoryManager()
	h.Initialize(testCharacter(), testScenario())
	before := h.Turns()

	bad := []domain.Turn{
		{Role: domain.UserRole, Text: "hello"},
		{Role: "narrator", Text: "not a valid role"},
	}
	err := h.Import(bad)
	require.ErrorIs(t, err, domain.ErrInvalidImport)
	assert.Equal(t, before, h.Turns(), "failed import must leave history unchanged")

	empty := []domain.Turn{
		{Role: domain.UserRole, Text: ""},
	}
	require.ErrorIs(t, h.Import(empty), domain.ErrInvalidImport)
}

func TestHistoryExportImportRoundTrip(t *testing.T) {
	h := NewHistoryManager()
	h.Initialize(testCharacter(), testScenario())
	require.NoError(t, h.AppendModelTurn("You hear knocking."))
	require.NoError(t, h.AppendUserTurn("I open the door"))

	snapshot := h.Export()

	other := NewHistoryManager()
	require.NoError(t, other.Import(snapshot))
	assert.Equal(t, snapshot, other.Turns())
}
