package domain

// Setting anchors a scenario in place and time.
type Setting struct {
	Location   string `json:"location"`
	Time       string `json:"time"`
	Atmosphere string `json:"atmosphere"`
}

// OtherCharacter is a non-player character the narrator portrays.
type OtherCharacter struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	Description  string `json:"description"`
	Relationship string `json:"relationship"`
}

// ScenarioDefinition is the situation the session plays out.
type ScenarioDefinition struct {
	Title                string           `json:"title"`
	Setting              Setting          `json:"setting"`
	InitialSituation     string           `json:"initialSituation"`
	OtherCharacters      []OtherCharacter `json:"otherCharacters,omitempty"`
	NarrativeGoals       string           `json:"narrativeGoals,omitempty"`
	ToneAndThemes        string           `json:"toneAndThemes,omitempty"`
	RoleplayInstructions string           `json:"roleplayInstructions,omitempty"`
}
