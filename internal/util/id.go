package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a 128-bit random identifier, optionally namespaced with a
// table prefix ("ss", "sh", "cell").
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewToken returns a 256-bit random hex token for email verification and
// password reset links.
func NewToken() string {
	bytes := make([]byte, 32)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
