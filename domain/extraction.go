package domain

// ExtractionResult is the transient output of the structured-extraction
// engine. It is consumed immediately into a CharacterProfile or
// ScenarioDefinition and never persisted as-is.
type ExtractionResult struct {
	Character *CharacterProfile   `json:"character,omitempty"`
	Scenario  *ScenarioDefinition `json:"scenario,omitempty"`

	// Flat field map the typed objects were assembled from.
	Fields map[string]string `json:"fields,omitempty"`

	// Which expected fields came out of the raw text versus which were
	// filled with documented defaults.
	ExtractedFields []string `json:"extractedFields"`
	DefaultedFields []string `json:"defaultedFields"`

	// Tier records which fallback strategy produced the result (1-based).
	Tier int `json:"tier"`
}
