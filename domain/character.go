package domain

// Relationship describes one person in the protagonist's life.
type Relationship struct {
	Name             string `json:"name"`
	RelationshipType string `json:"relationshipType"`
	Description      string `json:"description"`
}

// CharacterProfile is the protagonist the user plays. Immutable once a
// session starts except by explicit reset.
type CharacterProfile struct {
	Name                string         `json:"name"`
	Age                 string         `json:"age"`
	PhysicalDescription string         `json:"physicalDescription"`
	Background          string         `json:"background"`
	Personality         string         `json:"personality"`
	Relationships       []Relationship `json:"relationships,omitempty"`
	Notes               string         `json:"notes,omitempty"`
}
