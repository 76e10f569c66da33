package hasher

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256 fingerprints transcript payloads for change detection.
type Sha256 struct{}

func NewSha256() *Sha256 {
	return &Sha256{}
}

func (s *Sha256) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
