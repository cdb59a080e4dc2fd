// Package cryptox implements password hashing for stored credentials.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// SchemeBcryptSHA256 prefixes hashes produced by PasswordHasher.Hash.
const SchemeBcryptSHA256 = "$bcrypt-sha256"

const argon2Prefix = "$argon2id$"

// ErrUnknownScheme is returned by Verify for hashes no known scheme produced.
var ErrUnknownScheme = errors.New("unknown password hash scheme")

// PasswordHasher hashes passwords with bcrypt over a SHA-256 prehash, which
// lifts bcrypt's 72-byte input limit. Verify also accepts plain bcrypt and
// argon2id hashes written by earlier deployments.
//
// A PasswordHasher is immutable and safe for concurrent use.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher producing bcrypt hashes of the given
// cost. Out-of-range costs fall back to bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns a salted hash of password in the bcrypt-sha256 scheme.
func (h *PasswordHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword(prehash(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return SchemeBcryptSHA256 + string(b), nil
}

// Verify reports whether password matches hash. A mismatch is (false, nil);
// a malformed hash or unknown scheme is an error.
func (h *PasswordHasher) Verify(password, hash string) (bool, error) {
	switch {
	case strings.HasPrefix(hash, SchemeBcryptSHA256+"$"):
		return compareBcrypt([]byte(strings.TrimPrefix(hash, SchemeBcryptSHA256)), prehash(password))
	case isBcrypt(hash):
		return compareBcrypt([]byte(hash), []byte(password))
	case strings.HasPrefix(hash, argon2Prefix):
		return verifyArgon2id(password, hash)
	default:
		return false, ErrUnknownScheme
	}
}

// NeedsUpgrade reports whether hash uses a deprecated scheme or a bcrypt
// cost below the one this hasher is configured with.
func (h *PasswordHasher) NeedsUpgrade(hash string) bool {
	if !strings.HasPrefix(hash, SchemeBcryptSHA256+"$") {
		return true
	}
	cost, err := bcrypt.Cost([]byte(strings.TrimPrefix(hash, SchemeBcryptSHA256)))
	if err != nil {
		return true
	}
	return cost < h.cost
}

func prehash(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

func compareBcrypt(hash, password []byte) (bool, error) {
	err := bcrypt.CompareHashAndPassword(hash, password)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("bcrypt: %w", err)
	}
}

// verifyArgon2id checks a PHC-formatted argon2id hash:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func verifyArgon2id(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false, errors.New("argon2id: invalid hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("argon2id: %w", err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("argon2id: unsupported version %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, fmt.Errorf("argon2id: %w", err)
	}
	if threads == 0 || threads > 255 {
		return false, fmt.Errorf("argon2id: invalid parallelism %d", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("argon2id: salt: %w", err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("argon2id: hash: %w", err)
	}
	if len(expected) == 0 || len(expected) > 1<<10 {
		return false, fmt.Errorf("argon2id: invalid key length %d", len(expected))
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
