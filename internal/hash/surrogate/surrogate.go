// Package surrogate derives stable deduplication keys for reviews.
package surrogate

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// KeyLength is the number of hex characters kept from the digest.
const KeyLength = 8

const sep = "\x1f"

// Key returns the first KeyLength hex characters of
// sha256(placeID \x1f author \x1f content). Content should already be normalized.
func Key(placeID, author, content string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{placeID, author, content}, sep)))
	return hex.EncodeToString(sum[:])[:KeyLength]
}

// Keyer binds Key to a single place.
type Keyer struct {
	placeID string
}

// New returns a Keyer for placeID.
func New(placeID string) *Keyer {
	return &Keyer{placeID: placeID}
}

// Key hashes author and normalized content for the bound place.
func (k *Keyer) Key(author, content string) string {
	return Key(k.placeID, author, content)
}
