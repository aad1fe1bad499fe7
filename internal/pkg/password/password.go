// Package password hashes and verifies account passwords with bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost matches the cost the account table has always been written with.
const DefaultCost = 10

// bcrypt ignores input beyond 72 bytes.
const maxPasswordBytes = 72

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Hasher produces salted one-way digests at a fixed cost.
type Hasher struct {
	cost  int
	dummy []byte
}

// NewHasher returns a Hasher using cost, clamped to bcrypt's valid range.
// A zero cost selects DefaultCost.
func NewHasher(cost int) *Hasher {
	switch {
	case cost == 0:
		cost = DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	h := &Hasher{cost: cost}
	// Digest of a random-looking constant, compared against when the account
	// does not exist so both login failure paths cost one bcrypt round.
	h.dummy, _ = bcrypt.GenerateFromPassword([]byte("account-service:absent-user"), cost)
	return h
}

// Cost returns the bcrypt cost used for new digests.
func (h *Hasher) Cost() int { return h.cost }

// Hash returns a randomly salted bcrypt digest of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. A malformed digest is a
// mismatch, never an error. Plaintexts over 72 bytes never match, since
// bcrypt would compare only their prefix.
func (h *Hasher) Verify(plaintext, digest string) bool {
	if len(plaintext) > maxPasswordBytes {
		return h.DummyVerify(plaintext[:maxPasswordBytes])
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// DummyVerify burns one comparison and always reports false.
func (h *Hasher) DummyVerify(plaintext string) bool {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plaintext))
	return false
}
