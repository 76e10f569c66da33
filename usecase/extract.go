package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/reveriechat/reverie/domain"
	"github.com/reveriechat/reverie/utils/log"
)

// Extractor pulls structured objects out of noisy free-text model output.
// The model is asked to "return only JSON" but may wrap it in prose, use
// smart quotes, or emit malformed braces, so extraction is a layered
// fallback chain: direct parse, balanced-brace scan, per-field regexes,
// and finally a hard failure carrying the raw text.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

const defaultScenarioTitle = "Untitled Scenario"

// Matches a JSON object with up to two levels of nested braces.
var braceRe = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}[^{}]*)*\}`)

var smartQuoteReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`,
	"‘", "'", "’", "'",
)

// ExtractCharacter parses a character profile out of raw model text. The
// result is accepted only if it carries a non-empty name.
func (e *Extractor) ExtractCharacter(raw string) (*domain.ExtractionResult, error) {
	res, err := e.extract(raw, characterShape)
	if err != nil {
		return nil, err
	}
	res.Character = characterFromFields(res)
	if res.Character.Name == "" {
		return nil, &domain.ExtractionError{Shape: "character", RawText: raw, Reason: "no usable name found"}
	}
	return res, nil
}

// ExtractScenario parses a scenario out of raw model text. The result is
// accepted only if it carries a non-empty title and initial situation; a
// missing title falls back to a documented default.
func (e *Extractor) ExtractScenario(raw string) (*domain.ExtractionResult, error) {
	res, err := e.extract(raw, scenarioShape)
	if err != nil {
		return nil, err
	}
	res.Scenario = scenarioFromFields(res)
	if res.Scenario.InitialSituation == "" {
		return nil, &domain.ExtractionError{Shape: "scenario", RawText: raw, Reason: "no usable initial situation found"}
	}
	return res, nil
}

// ExtractQuickSetup parses a combined character+scenario object, as produced
// by the free-text quick-setup flow.
func (e *Extractor) ExtractQuickSetup(raw string) (*domain.ExtractionResult, error) {
	res, err := e.extract(raw, quickSetupShape)
	if err != nil {
		return nil, err
	}
	res.Character = characterFromFields(res)
	res.Scenario = scenarioFromFields(res)
	if res.Character.Name == "" || res.Scenario.InitialSituation == "" {
		return nil, &domain.ExtractionError{Shape: "quick_setup", RawText: raw, Reason: "missing character name or initial situation"}
	}
	return res, nil
}

// shape describes the expected keys of one extraction target.
type shape struct {
	name     string
	keys     []string
	required []string
	defaults map[string]string
}

var characterShape = shape{
	name:     "character",
	keys:     []string{"name", "age", "physicalDescription", "background", "personality", "relationships", "notes"},
	required: []string{"name", "age"},
	defaults: map[string]string{},
}

var scenarioShape = shape{
	name:     "scenario",
	keys:     []string{"title", "location", "time", "atmosphere", "initialSituation", "otherCharacters", "narrativeGoals", "toneAndThemes"},
	required: []string{"initialSituation"},
	defaults: map[string]string{"title": defaultScenarioTitle},
}

var quickSetupShape = shape{
	name:     "quick_setup",
	keys:     append(append([]string{}, characterShape.keys...), scenarioShape.keys...),
	required: []string{"name", "initialSituation"},
	defaults: map[string]string{"title": defaultScenarioTitle},
}

// extract runs the tier chain and returns a field map annotated with which
// keys were extracted versus defaulted.
func (e *Extractor) extract(raw string, sh shape) (*domain.ExtractionResult, error) {
	text := smartQuoteReplacer.Replace(strings.TrimSpace(raw))
	logger := log.With(zap.String("shape", sh.name))

	// Tier 1: the whole response is the JSON object.
	if fields, ok := parseObject(text); ok {
		logger.Debug("extraction succeeded", zap.Int("tier", 1))
		return buildResult(fields, sh, 1), nil
	}

	// Tier 2: a JSON object buried in prose. Longest candidate wins.
	if candidate := longestBraceCandidate(text); candidate != "" {
		if fields, ok := parseObject(candidate); ok {
			logger.Debug("extraction succeeded", zap.Int("tier", 2))
			return buildResult(fields, sh, 2), nil
		}
	}

	// Tier 3: field-by-field regex assembly.
	fields := map[string]string{}
	for _, key := range sh.keys {
		if v, ok := matchField(text, key); ok {
			fields[key] = v
		}
	}
	if usable(fields, sh) {
		logger.Debug("extraction succeeded", zap.Int("tier", 3))
		return buildResult(fields, sh, 3), nil
	}

	logger.Warn("extraction exhausted all tiers")
	return nil, &domain.ExtractionError{
		Shape:   sh.name,
		RawText: raw,
		Reason:  fmt.Sprintf("no JSON object and no recognizable fields (tried %d keys)", len(sh.keys)),
	}
}

// parseObject decodes text as a JSON object and flattens it into string
// fields. Nested objects contribute their inner keys; arrays are carried as
// re-serialized JSON under their own key.
func parseObject(text string) (map[string]string, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, false
	}
	fields := map[string]string{}
	flattenInto(fields, obj)
	return fields, true
}

func flattenInto(fields map[string]string, obj map[string]any) {
	for k, v := range obj {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case float64:
			fields[k] = strings.TrimSuffix(fmt.Sprintf("%v", val), ".0")
		case bool:
			fields[k] = fmt.Sprintf("%v", val)
		case map[string]any:
			flattenInto(fields, val)
		case []any:
			if b, err := json.Marshal(val); err == nil {
				fields[k] = string(b)
			}
		}
	}
}

func longestBraceCandidate(text string) string {
	candidates := braceRe.FindAllString(text, -1)
	longest := ""
	for _, c := range candidates {
		if len(c) > len(longest) {
			longest = c
		}
	}
	return longest
}

// matchField tries a strict `"key": "value"` pattern first, then a looser
// `key ...: text-until-end-of-line` pattern.
func matchField(text, key string) (string, bool) {
	strict := regexp.MustCompile(`(?i)"` + regexp.QuoteMeta(key) + `"\s*:\s*"([^"]*)"`)
	if m := strict.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1]), true
	}
	loose := regexp.MustCompile(`(?im)^\s*"?` + regexp.QuoteMeta(key) + `"?[^:\n]*:[ \t]*(.+)$`)
	if m := loose.FindStringSubmatch(text); m != nil {
		v := strings.Trim(strings.TrimSpace(m[1]), `",`)
		if v != "" {
			return v, true
		}
	}
	return "", false
}

func usable(fields map[string]string, sh shape) bool {
	if len(fields) == 0 {
		return false
	}
	for _, key := range sh.required {
		if _, ok := fields[key]; !ok {
			if _, hasDefault := sh.defaults[key]; !hasDefault {
				return false
			}
		}
	}
	return true
}

func buildResult(fields map[string]string, sh shape, tier int) *domain.ExtractionResult {
	res := &domain.ExtractionResult{Tier: tier}
	merged := map[string]string{}
	for _, key := range sh.keys {
		if v, ok := fields[key]; ok && v != "" {
			merged[key] = v
			res.ExtractedFields = append(res.ExtractedFields, key)
			continue
		}
		if d, ok := sh.defaults[key]; ok {
			merged[key] = d
			res.DefaultedFields = append(res.DefaultedFields, key)
		}
	}
	res.Fields = merged
	return res
}

func characterFromFields(res *domain.ExtractionResult) *domain.CharacterProfile {
	f := res.Fields
	c := &domain.CharacterProfile{
		Name:                f["name"],
		Age:                 f["age"],
		PhysicalDescription: f["physicalDescription"],
		Background:          f["background"],
		Personality:         f["personality"],
		Notes:               f["notes"],
	}
	if raw, ok := f["relationships"]; ok {
		var rels []domain.Relationship
		if err := json.Unmarshal([]byte(raw), &rels); err == nil {
			c.Relationships = rels
		}
	}
	return c
}

func scenarioFromFields(res *domain.ExtractionResult) *domain.ScenarioDefinition {
	f := res.Fields
	s := &domain.ScenarioDefinition{
		Title: f["title"],
		Setting: domain.Setting{
			Location:   f["location"],
			Time:       f["time"],
			Atmosphere: f["atmosphere"],
		},
		InitialSituation: f["initialSituation"],
		NarrativeGoals:   f["narrativeGoals"],
		ToneAndThemes:    f["toneAndThemes"],
	}
	if raw, ok := f["otherCharacters"]; ok {
		var others []domain.OtherCharacter
		if err := json.Unmarshal([]byte(raw), &others); err == nil {
			s.OtherCharacters = others
		}
	}
	if s.Title == "" {
		s.Title = defaultScenarioTitle
	}
	return s
}
