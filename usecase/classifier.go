package usecase

import (
	"regexp"
	"strings"

	"github.com/reveriechat/reverie/domain"
)

// Classifier maps raw user text to a semantic message type. It is pure and
// deterministic: same string in, same type out, no side effects, and it
// never fails (anything unrecognizable is dialogue).
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

var (
	socialPlatforms = []string{"instagram", "tiktok", "youtube", "twitter"}

	socialTermRe = regexp.MustCompile(`(?i)\b(followers|likes|dm|dms|post|posts|comment|comments|notification|notifications)\b`)

	actionStartRe = regexp.MustCompile(`(?i)^i\s+(walk|move|pick|grab|take|open|close|put|sit|stand|go|run|head|reach|turn)\b`)
	actionVerbRe  = regexp.MustCompile(`(?i)\b(walk|walks|move|moves|pick|picks|grab|grabs|take|takes|open|opens|close|closes|put|puts|sit|sits|stand|stands)\b|(?i)\bgo to\b`)

	thoughtStartRe = regexp.MustCompile(`(?i)^i\s*('m\s+thinking|'m\s+wondering|think|wonder|feel|wish|hope|worry)\b|^(?i)(maybe|hmm)\b`)

	speechVerbRe = regexp.MustCompile(`(?i)\b(said|says|asked|tell|tells|told)\b`)
	greetingRe   = regexp.MustCompile(`(?i)^(hello|hi|hey|good\s+(morning|afternoon|evening|night))\b`)

	dialogueScoreRe = regexp.MustCompile(`(?i)\b(say|said|ask|tell|told|reply|replied|talk|speak)(s|ed|ing)?\b`)
	actionScoreRe   = regexp.MustCompile(`(?i)\b(walk|run|move|grab|take|took|open|close|pick|put|sit|stand|go|went|head|reach|turn|push|pull|throw)(s|ed|ing)?\b`)
	thoughtScoreRe  = regexp.MustCompile(`(?i)\b(think|thought|wonder|feel|felt|believe|remember|imagine|consider|realize)(s|ed|ing)?\b`)
	hedgeScoreRe    = regexp.MustCompile(`(?i)\b(maybe|perhaps|possibly|might|probably)\b`)
)

const shortInputThreshold = 60

// Classify returns the semantic type of the given input. Matching is
// priority ordered: social beats action beats thought beats dialogue.
func (c *Classifier) Classify(text string) domain.MessageType {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return domain.MessageDialogue
	}
	lower := strings.ToLower(trimmed)

	if isSocial(lower) {
		return domain.MessageSocial
	}
	if isAction(trimmed, lower) {
		return domain.MessageAction
	}
	if isThought(trimmed, lower) {
		return domain.MessageThought
	}
	if isDialogue(trimmed) {
		return domain.MessageDialogue
	}
	if len(trimmed) < shortInputThreshold {
		return domain.MessageDialogue
	}

	return scoreCategories(lower)
}

func isSocial(lower string) bool {
	if strings.Contains(lower, "@") || strings.Contains(lower, "#") {
		return true
	}
	for _, p := range socialPlatforms {
		if strings.Contains(lower, p) {
			return true
		}
	}
	if strings.Contains(lower, "message requests:") {
		return true
	}
	return socialTermRe.MatchString(lower)
}

func isAction(text, lower string) bool {
	if actionStartRe.MatchString(text) {
		return true
	}
	if strings.HasPrefix(text, "*") {
		return true
	}
	if strings.HasPrefix(lower, "you ") {
		return true
	}
	return actionVerbRe.MatchString(lower)
}

func isThought(text, lower string) bool {
	if thoughtStartRe.MatchString(text) {
		return true
	}
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		return true
	}
	if fullyQuoted(text) {
		return true
	}
	return strings.Contains(lower, "to myself")
}

func fullyQuoted(text string) bool {
	if len(text) < 2 {
		return false
	}
	pairs := [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}}
	for _, p := range pairs {
		if strings.HasPrefix(text, p[0]) && strings.HasSuffix(text, p[1]) {
			return true
		}
	}
	return false
}

func isDialogue(text string) bool {
	if strings.ContainsAny(text, `"?!`) || strings.ContainsRune(text, '“') || strings.ContainsRune(text, '”') {
		return true
	}
	if speechVerbRe.MatchString(text) {
		return true
	}
	return greetingRe.MatchString(text)
}

// scoreCategories is the long-text fallback: weighted keyword counts per
// category, dialogue winning ties.
func scoreCategories(lower string) domain.MessageType {
	dialogue := 2 * len(dialogueScoreRe.FindAllString(lower, -1))
	dialogue += 2 * strings.Count(lower, "?")
	dialogue += 2 * strings.Count(lower, "!")

	action := 2 * len(actionScoreRe.FindAllString(lower, -1))

	thought := 2 * len(thoughtScoreRe.FindAllString(lower, -1))
	thought += 3 * len(hedgeScoreRe.FindAllString(lower, -1))

	if action > dialogue && action > thought {
		return domain.MessageAction
	}
	if thought > dialogue && thought > action {
		return domain.MessageThought
	}
	return domain.MessageDialogue
}
