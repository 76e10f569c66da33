package domain

import (
	"errors"
	"fmt"
)

// Local validation failures. These never reach the model layer.
var (
	ErrEmptyInput      = errors.New("empty input")
	ErrSessionBusy     = errors.New("a model call is already in flight")
	ErrSessionNotReady = errors.New("session is not ready for input")
	ErrInvalidImport   = errors.New("invalid import payload")
)

// ErrProtocolAnomaly marks a violation of the role-alternation invariant or
// a malformed history operation. The offending operation is rejected, never
// silently executed.
var ErrProtocolAnomaly = errors.New("conversation protocol anomaly")

// UpstreamKind categorizes a failure of the language model service.
type UpstreamKind string

const (
	UpstreamAuth          UpstreamKind = "auth"
	UpstreamRateLimit     UpstreamKind = "rate_limit"
	UpstreamNotFound      UpstreamKind = "not_found"
	UpstreamContentFilter UpstreamKind = "content_filter"
	UpstreamUnavailable   UpstreamKind = "unavailable"
	UpstreamNetwork       UpstreamKind = "network"
)

// UpstreamError carries distinguishable HTTP-style status information from
// the model layer so the orchestrator can map it to a user-facing category.
type UpstreamError struct {
	Kind    UpstreamKind
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.Message)
}

// Retryable reports whether the failure is transient. Only network and
// HTTP-layer failures retry; auth and content-filter outcomes are terminal.
func (e *UpstreamError) Retryable() bool {
	switch e.Kind {
	case UpstreamRateLimit, UpstreamUnavailable, UpstreamNetwork:
		return true
	}
	return false
}

// IsRetryable reports whether err should go through the backoff policy.
func IsRetryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable()
	}
	return false
}

// ExtractionError is returned when every extraction tier is exhausted. It
// carries the raw model text so the caller can offer manual correction.
type ExtractionError struct {
	Shape   string
	RawText string
	Reason  string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %s", e.Shape, e.Reason)
}
