package usecase

import (
	"regexp"
	"strings"

	"github.com/reveriechat/reverie/domain"
)

// Renderer maps a ChatMessage to a structured render description. It picks
// content shape only; pixel layout belongs to the display surface. Exactly
// one shape is chosen per message.
type Renderer struct {
	post *PostProcessor
}

func NewRenderer(post *PostProcessor) *Renderer {
	return &Renderer{post: post}
}

// DayMarkerPrefix starts every day-marker system message.
const DayMarkerPrefix = "📅 "

var (
	feedStatRe = regexp.MustCompile(`(?i)(\d[\d.,]*[KkMm]?)\s*(likes|followers|comments|shares|views)`)
	feedCueRe  = regexp.MustCompile(`(?i)\b(posted|post|feed|viral|trending)\b`)
	dmCueRe    = regexp.MustCompile(`(?i)\b(dm|dms|direct message|message request)\b`)
	dmLineRe   = regexp.MustCompile(`(?m)^([A-Za-z][\w .]{0,30}):\s*(.+)$`)

	platformNameRe = regexp.MustCompile(`(?i)\b(instagram|tiktok|youtube|twitter)\b`)
)

func (r *Renderer) Render(msg domain.ChatMessage) domain.RenderDescription {
	switch msg.Type {
	case domain.MessageSystem:
		if strings.HasPrefix(msg.Content, DayMarkerPrefix) {
			return domain.RenderDescription{
				Shape:      domain.ShapeDayHeader,
				Paragraphs: []string{strings.TrimPrefix(msg.Content, DayMarkerPrefix)},
			}
		}
		return r.bubble(msg, "system")

	case domain.MessageError:
		return domain.RenderDescription{
			Shape:      domain.ShapeErrorBanner,
			Paragraphs: []string{msg.Content},
		}

	case domain.MessageSocial:
		return r.renderSocial(msg)

	case domain.MessageDialogue, domain.MessageAction, domain.MessageThought:
		return r.bubble(msg, string(msg.Type))

	default:
		return r.bubble(msg, "default")
	}
}

// renderSocial picks exactly one of feed card, DM thread or notification.
func (r *Renderer) renderSocial(msg domain.ChatMessage) domain.RenderDescription {
	content := msg.Content

	if stats := feedStatRe.FindAllStringSubmatch(content, -1); len(stats) > 0 || feedCueRe.MatchString(content) {
		desc := domain.RenderDescription{
			Shape:      domain.ShapeFeedCard,
			Platform:   detectPlatform(content),
			Paragraphs: r.post.Paragraphs(content),
		}
		for _, m := range stats {
			desc.Stats = append(desc.Stats, domain.StatCounter{Label: strings.ToLower(m[2]), Value: m[1]})
		}
		return desc
	}

	if dmCueRe.MatchString(content) {
		desc := domain.RenderDescription{
			Shape:    domain.ShapeDMThread,
			Platform: detectPlatform(content),
		}
		for _, m := range dmLineRe.FindAllStringSubmatch(content, -1) {
			desc.Bubbles = append(desc.Bubbles, domain.DMBubble{
				From: strings.TrimSpace(m[1]),
				Text: strings.TrimSpace(m[2]),
			})
		}
		if len(desc.Bubbles) == 0 {
			desc.Paragraphs = r.post.Paragraphs(content)
		}
		return desc
	}

	return domain.RenderDescription{
		Shape:      domain.ShapeNotification,
		Platform:   detectPlatform(content),
		Paragraphs: r.post.Paragraphs(content),
	}
}

func (r *Renderer) bubble(msg domain.ChatMessage, style string) domain.RenderDescription {
	return domain.RenderDescription{
		Shape:      domain.ShapeBubble,
		Style:      style,
		Paragraphs: r.post.Paragraphs(msg.Content),
	}
}

var canonicalPlatform = map[string]string{
	"instagram": "Instagram",
	"tiktok":    "TikTok",
	"youtube":   "YouTube",
	"twitter":   "Twitter",
}

func detectPlatform(content string) string {
	if m := platformNameRe.FindString(content); m != "" {
		return canonicalPlatform[strings.ToLower(m)]
	}
	return ""
}
