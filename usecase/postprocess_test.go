package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveriechat/reverie/domain"
)

func TestProcessNormalizesLineEndings(t *testing.T) {
	p := NewPostProcessor()
	out := p.Process("line one\r\n\r\nline two", domain.MessageDialogue)
	assert.Equal(t, "line one\n\nline two", out)
}

func TestProcessStripsBoldMarkers(t *testing.T) {
	p := NewPostProcessor()
	out := p.Process("She **slams** the door.", domain.MessageDialogue)
	assert.Equal(t, "She slams the door.", out)
}

func TestProcessResegmentsLongUnbrokenText(t *testing.T) {
	p := NewPostProcessor()

	sentence := "The corridor stretched on ahead of her, lit by a row of humming lamps. "
	long := strings.TrimSpace(strings.Repeat(sentence, 7)) // ~500 chars, no breaks
	require.Greater(t, len(long), 400)
	require.NotContains(t, long, "\n")

	out := p.Process(long, domain.MessageDialogue)
	paragraphs := strings.Split(out, "\n\n")
	require.GreaterOrEqual(t, len(paragraphs), 2)
	for _, para := range paragraphs {
		assert.LessOrEqual(t, len(para), 220)
	}
}

func TestProcessKeepsExistingParagraphs(t *testing.T) {
	p := NewPostProcessor()
	in := "First paragraph.\n\n\n  Second paragraph.  \n\nThird."
	out := p.Process(in, domain.MessageDialogue)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.\n\nThird.", out)
}

func TestProcessAnnotatesSocialContent(t *testing.T) {
	p := NewPostProcessor()

	out := p.Process("Your Instagram post is going viral, 2000 likes already", domain.MessageDialogue)
	assert.Contains(t, out, "📸 Instagram")
	assert.Contains(t, out, "viral 🔥")
	assert.Contains(t, out, "likes ❤️")
}

func TestProcessWrapsHandlesAndHashtags(t *testing.T) {
	p := NewPostProcessor()

	out := p.Process("New notification: @rika tagged you under #harborfest", domain.MessageSocial)
	assert.Contains(t, out, `<span class="handle">@rika</span>`)
	assert.Contains(t, out, `<span class="hashtag">#harborfest</span>`)
}

func TestProcessSocialRequestForcesAnnotation(t *testing.T) {
	p := NewPostProcessor()

	// No platform cue in the response, but the request was social.
	out := p.Process(`A message from @sam: "you up?"`, domain.MessageSocial)
	assert.Contains(t, out, `<span class="handle">@sam</span>`)
	assert.Contains(t, out, `<span class="quoted">"you up?"</span>`)
}

func TestProcessPlainNarrativeUntouchedBySocialPass(t *testing.T) {
	p := NewPostProcessor()

	in := `"Morning," she says, sliding a cup across the counter.`
	out := p.Process(in, domain.MessageDialogue)
	assert.Equal(t, in, out)
}

func TestParagraphsShortTextSingleParagraph(t *testing.T) {
	p := NewPostProcessor()
	assert.Equal(t, []string{"Just a short line."}, p.Paragraphs("Just a short line."))
	assert.Nil(t, p.Paragraphs("   "))
}
