package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt rejects inputs longer than this; longer ones are digested first.
const bcryptMaxInput = 72

// prehashedPrefix marks hashes whose input was digested before bcrypt. Only
// those hashes digest the candidate on verify.
const prehashedPrefix = "$sha256"

// Hasher performs one-way hashing of passwords and verification codes.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hashed string) bool
}

type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) <= bcryptMaxInput {
		bytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
		return string(bytes), err
	}
	bytes, err := bcrypt.GenerateFromPassword(digest(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return prehashedPrefix + string(bytes), nil
}

func (h *BcryptHasher) Verify(plaintext, hashed string) bool {
	if rest, ok := strings.CutPrefix(hashed, prehashedPrefix); ok {
		return bcrypt.CompareHashAndPassword([]byte(rest), digest(plaintext)) == nil
	}
	if len(plaintext) > bcryptMaxInput {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}

func digest(plaintext string) []byte {
	sum := sha256.Sum256([]byte(plaintext))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
