package domain

// RenderShape selects which content shape the display surface should use
// for one message. Exactly one shape is chosen per message.
type RenderShape string

const (
	ShapeDayHeader    RenderShape = "day_header"
	ShapeErrorBanner  RenderShape = "error_banner"
	ShapeFeedCard     RenderShape = "feed_card"
	ShapeDMThread     RenderShape = "dm_thread"
	ShapeNotification RenderShape = "notification"
	ShapeBubble       RenderShape = "bubble"
)

// StatCounter is one engagement counter on a feed card.
type StatCounter struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// DMBubble is one message inside a direct-message thread shape.
type DMBubble struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// RenderDescription is the structured, layout-free description of how a
// ChatMessage should be displayed.
type RenderDescription struct {
	Shape      RenderShape   `json:"shape"`
	Style      string        `json:"style,omitempty"`
	Paragraphs []string      `json:"paragraphs,omitempty"`
	Platform   string        `json:"platform,omitempty"`
	Stats      []StatCounter `json:"stats,omitempty"`
	Bubbles    []DMBubble    `json:"bubbles,omitempty"`
}
