package audiocache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DefaultNamespace tags keys for synthesized speech entries.
const DefaultNamespace = "tts"

// DeriveKey returns the cache key for a response text in the default
// namespace.
func DeriveKey(text string) string {
	return DeriveKeyIn(DefaultNamespace, text)
}

// DeriveKeyIn derives a deterministic, collision-resistant cache key from the
// text that will be spoken. Normalization is fixed policy: leading/trailing
// whitespace is trimmed and the text is lowercased; beyond that comparison is
// byte-exact. No salt and no time component, so keys are stable across
// restarts.
func DeriveKeyIn(namespace, text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(normalized))
	return namespace + ":" + hex.EncodeToString(sum[:])
}
