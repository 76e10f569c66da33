package usecase

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveriechat/reverie/domain"
)

func TestExtractCharacterDirectJSON(t *testing.T) {
	e := NewExtractor()

	in := domain.CharacterProfile{
		Name:                "Alex",
		Age:                 "30",
		PhysicalDescription: "tall, dark hair",
		Background:          "grew up in a port town",
		Personality:         "wry, guarded",
	}
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	res, err := e.ExtractCharacter(string(raw))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tier)
	assert.Equal(t, in.Name, res.Character.Name)
	assert.Equal(t, in.Age, res.Character.Age)
	assert.Equal(t, in.PhysicalDescription, res.Character.PhysicalDescription)
	assert.Equal(t, in.Background, res.Character.Background)
	assert.Equal(t, in.Personality, res.Character.Personality)
}

func TestExtractCharacterWrappedInProse(t *testing.T) {
	e := NewExtractor()

	raw := `Sure! Here is the character you asked for:

{"name": "Mira", "age": "24", "personality": "restless"}

Let me know if you want any changes.`

	res, err := e.ExtractCharacter(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Tier)
	assert.Equal(t, "Mira", res.Character.Name)
	assert.Equal(t, "24", res.Character.Age)
}

func TestExtractCharacterSmartQuotes(t *testing.T) {
	e := NewExtractor()

	raw := `{“name”: “Theo”, “age”: “41”}`
	res, err := e.ExtractCharacter(raw)
	require.NoError(t, err)
	assert.Equal(t, "Theo", res.Character.Name)
}

func TestExtractCharacterFieldFallback(t *testing.T) {
	e := NewExtractor()

	raw := `I couldn't format that properly, but here goes:
name: Jonas
age: 35
background: a retired sailor with debts`

	res, err := e.ExtractCharacter(raw)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Tier)
	assert.Equal(t, "Jonas", res.Character.Name)
	assert.Equal(t, "35", res.Character.Age)
	assert.Equal(t, "a retired sailor with debts", res.Character.Background)
	assert.Contains(t, res.ExtractedFields, "name")
}

func TestExtractCharacterNoUsableContent(t *testing.T) {
	e := NewExtractor()

	raw := "I'm sorry, I can't help with that request."
	_, err := e.ExtractCharacter(raw)

	var extErr *domain.ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, raw, extErr.RawText)
}

func TestExtractCharacterRejectsNamelessObject(t *testing.T) {
	e := NewExtractor()

	_, err := e.ExtractCharacter(`{"age": "30", "personality": "cheerful"}`)
	var extErr *domain.ExtractionError
	require.True(t, errors.As(err, &extErr))
}

func TestExtractScenarioNestedSetting(t *testing.T) {
	e := NewExtractor()

	raw := `{
		"title": "Harbor Lights",
		"setting": {"location": "a fishing village", "time": "late autumn", "atmosphere": "tense"},
		"initialSituation": "You wake to shouting on the docks.",
		"otherCharacters": [{"name": "Petra", "role": "harbormaster", "description": "stern", "relationship": "old friend"}]
	}`

	res, err := e.ExtractScenario(raw)
	require.NoError(t, err)
	assert.Equal(t, "Harbor Lights", res.Scenario.Title)
	assert.Equal(t, "a fishing village", res.Scenario.Setting.Location)
	assert.Equal(t, "You wake to shouting on the docks.", res.Scenario.InitialSituation)
	require.Len(t, res.Scenario.OtherCharacters, 1)
	assert.Equal(t, "Petra", res.Scenario.OtherCharacters[0].Name)
}

func TestExtractScenarioDefaultsTitle(t *testing.T) {
	e := NewExtractor()

	res, err := e.ExtractScenario(`{"initialSituation": "You wake up."}`)
	require.NoError(t, err)
	assert.Equal(t, "Untitled Scenario", res.Scenario.Title)
	assert.Contains(t, res.DefaultedFields, "title")
}

func TestExtractScenarioRequiresInitialSituation(t *testing.T) {
	e := NewExtractor()

	_, err := e.ExtractScenario(`{"title": "Empty Stage"}`)
	var extErr *domain.ExtractionError
	require.True(t, errors.As(err, &extErr))
}

func TestExtractQuickSetupCombined(t *testing.T) {
	e := NewExtractor()

	raw := `{
		"name": "Alex", "age": "30",
		"title": "Test", "initialSituation": "You wake up."
	}`
	res, err := e.ExtractQuickSetup(raw)
	require.NoError(t, err)
	assert.Equal(t, "Alex", res.Character.Name)
	assert.Equal(t, "Test", res.Scenario.Title)
	assert.Equal(t, "You wake up.", res.Scenario.InitialSituation)
}

func TestExtractPicksLongestBraceCandidate(t *testing.T) {
	e := NewExtractor()

	raw := `Some context {"note": "ignore me"} and then the real thing:
{"name": "Vera", "age": "28", "background": "courier"} done.`

	res, err := e.ExtractCharacter(raw)
	require.NoError(t, err)
	assert.Equal(t, "Vera", res.Character.Name)
	assert.Equal(t, "courier", res.Character.Background)
}
