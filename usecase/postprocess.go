package usecase

import (
	"regexp"
	"strings"

	"github.com/reveriechat/reverie/domain"
)

// PostProcessor normalizes raw model text into display-ready content. Its
// output never feeds back into the turn history; the history keeps the
// pre-processed model text so the upstream context stays faithful.
type PostProcessor struct{}

func NewPostProcessor() *PostProcessor {
	return &PostProcessor{}
}

const targetParagraphLen = 200

var (
	lineEndingRe = regexp.MustCompile(`\r\n?`)
	boldRe       = regexp.MustCompile(`\*\*([^*]*)\*\*`)

	handleRe  = regexp.MustCompile(`@\w+`)
	hashtagRe = regexp.MustCompile(`#\w+`)
	quotedRe  = regexp.MustCompile(`"[^"\n]+"`)

	platformEmoji = []struct {
		name  string
		emoji string
	}{
		{"Instagram", "📸"},
		{"TikTok", "🎵"},
		{"YouTube", "▶️"},
		{"Twitter", "🐦"},
	}

	socialKeywordEmoji = []struct {
		word  string
		emoji string
	}{
		{"viral", "🔥"},
		{"followers", "👥"},
		{"likes", "❤️"},
		{"comments", "💬"},
		{"shares", "🔁"},
	}

	socialCueRe = regexp.MustCompile(`(?i)\b(instagram|tiktok|youtube|twitter|followers|likes|viral|notification|feed|dm)\b`)
)

// Process turns raw model output into display text. requestType is the
// classified type of the user input that produced this response; a social
// request forces the social annotation pass even without platform cues.
func (p *PostProcessor) Process(raw string, requestType domain.MessageType) string {
	text := lineEndingRe.ReplaceAllString(raw, "\n")
	text = boldRe.ReplaceAllString(text, "$1")
	text = strings.TrimSpace(text)

	text = strings.Join(p.Paragraphs(text), "\n\n")

	if requestType == domain.MessageSocial || socialCueRe.MatchString(text) {
		text = annotateSocial(text)
	}
	return text
}

// Paragraphs segments text for display. Long unbroken text is re-segmented
// by greedily grouping sentences near the target length; text that already
// has blank lines is re-flowed at those boundaries.
func (p *PostProcessor) Paragraphs(text string) []string {
	text = strings.TrimSpace(lineEndingRe.ReplaceAllString(text, "\n"))
	if text == "" {
		return nil
	}

	if strings.Contains(text, "\n\n") {
		var out []string
		for _, part := range strings.Split(text, "\n\n") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}

	if len(text) <= targetParagraphLen {
		return []string{text}
	}
	return regroupSentences(text)
}

// regroupSentences splits on sentence boundaries and accumulates sentences
// until a group nears the target length.
func regroupSentences(text string) []string {
	sentences := strings.SplitAfter(text, ". ")
	var out []string
	var current strings.Builder

	for _, s := range sentences {
		if current.Len() > 0 && current.Len()+len(s) > targetParagraphLen {
			out = append(out, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		out = append(out, strings.TrimSpace(current.String()))
	}
	return out
}

// annotateSocial decorates platform references, handles, hashtags, quotes
// and engagement keywords for the social rendering surfaces.
func annotateSocial(text string) string {
	for _, p := range platformEmoji {
		re := regexp.MustCompile(`(?i)\b` + p.name + `\b`)
		emoji := p.emoji
		text = re.ReplaceAllStringFunc(text, func(m string) string {
			return emoji + " " + m
		})
	}

	// Quoted substrings first: the span markup itself introduces quote
	// characters that must not be re-matched.
	text = quotedRe.ReplaceAllString(text, `<span class="quoted">$0</span>`)
	text = handleRe.ReplaceAllString(text, `<span class="handle">$0</span>`)
	text = hashtagRe.ReplaceAllString(text, `<span class="hashtag">$0</span>`)

	for _, kw := range socialKeywordEmoji {
		re := regexp.MustCompile(`(?i)\b` + kw.word + `\b`)
		emoji := kw.emoji
		text = re.ReplaceAllStringFunc(text, func(m string) string {
			return m + " " + emoji
		})
	}
	return text
}
