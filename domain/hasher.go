package domain

// Hasher is the core port for any fingerprinting strategy. The store uses
// it to skip rewriting transcripts that have not changed.
type Hasher interface {
	Hash(data []byte) string
}
