// Package fingerprint hashes click metadata (IP, user agent) so attribution
// rows can be de-duplicated and audited without storing the raw values.
package fingerprint

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

type Hasher struct {
	key []byte
}

// New returns a hasher keyed with key (at most 64 bytes; empty means unkeyed).
func New(key string) (*Hasher, error) {
	if _, err := blake2b.New256([]byte(key)); err != nil {
		return nil, err
	}
	return &Hasher{key: []byte(key)}, nil
}

// Hash returns the hex BLAKE2b-256 of value, or "" for an empty value or a nil Hasher.
func (h *Hasher) Hash(value string) string {
	if h == nil || value == "" {
		return ""
	}
	d, _ := blake2b.New256(h.key)
	d.Write([]byte(value))
	return hex.EncodeToString(d.Sum(nil))
}
