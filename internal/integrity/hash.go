// Package integrity binds a subject to a set of verified skills with a keyed
// digest, so a stored verification can later be checked for tampering.
package integrity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
)

// ErrNoSecret is returned when a hasher is built without a secret
var ErrNoSecret = errors.New("integrity secret is required")

// Hasher computes and checks integrity hashes
type Hasher struct {
	secret string
}

// NewHasher creates a hasher keyed with secret
func NewHasher(secret string) (*Hasher, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Hasher{secret: secret}, nil
}

// Canonical returns the lower-cased, sorted, comma-joined skill set
func Canonical(skills []string) string {
	lowered := make([]string, 0, len(skills))
	for _, s := range skills {
		lowered = append(lowered, strings.ToLower(s))
	}
	sort.Strings(lowered)
	return strings.Join(lowered, ",")
}

// ComputeHash returns hex(SHA-256("subject:canonical:secret")). The result
// does not depend on skill order or case.
func (h *Hasher) ComputeHash(subject string, skills []string) string {
	sum := sha256.Sum256([]byte(subject + ":" + Canonical(skills) + ":" + h.secret))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether hash matches the subject and skills
func (h *Hasher) Verify(subject string, skills []string, hash string) bool {
	expected := h.ComputeHash(subject, skills)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(hash))) == 1
}
