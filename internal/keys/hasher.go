package keys

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Algorithm tags stored on each record. Verification dispatches on the
// stored tag, never by trying schemes in turn.
const (
	TagSHA256 = "sha256"      // legacy: plain digest of the key material
	TagHMAC   = "hmac-sha256" // keyed digest under a server-held pepper
	TagBcrypt = "bcrypt"      // adaptive, per-record salted
)

var ErrUnknownAlgorithm = errors.New("unknown hash algorithm tag")

// Hasher computes and verifies irreversible digests of key material
// under multiple algorithm generations. New issuances always use the
// strongest scheme; older tags remain verifiable for records written
// before a migration.
type Hasher struct {
	pepper     []byte
	bcryptCost int
}

// NewHasher builds a hasher. The pepper is held in memory only and must
// never be stored alongside records. Cost below bcrypt.MinCost falls
// back to bcrypt.DefaultCost; costs above ~11 push verification past
// the request latency budget.
func NewHasher(pepper string, bcryptCost int) *Hasher {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Hasher{
		pepper:     []byte(pepper),
		bcryptCost: bcryptCost,
	}
}

// StrongestTag is the scheme used for all new digests.
func (h *Hasher) StrongestTag() string {
	return TagBcrypt
}

// Hash digests the material under the given scheme.
func (h *Hasher) Hash(tag, material string) (string, error) {
	switch tag {
	case TagSHA256:
		return SHA256Hex(material), nil

	case TagHMAC:
		mac := hmac.New(sha256.New, h.pepper)
		mac.Write([]byte(material))
		return hex.EncodeToString(mac.Sum(nil)), nil

	case TagBcrypt:
		digest, err := bcrypt.GenerateFromPassword([]byte(material), h.bcryptCost)
		if err != nil {
			return "", fmt.Errorf("bcrypt hash failed: %w", err)
		}
		return string(digest), nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, tag)
	}
}

// Verify recomputes the digest of the material and compares it against
// the stored hash in constant time. A false result with a nil error
// means a clean mismatch; a non-nil error means the comparison could
// not be performed at all.
func (h *Hasher) Verify(tag, material, storedHash string) (bool, error) {
	switch tag {
	case TagSHA256:
		computed := SHA256Hex(material)
		return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1, nil

	case TagHMAC:
		mac := hmac.New(sha256.New, h.pepper)
		mac.Write([]byte(material))
		computed := mac.Sum(nil)
		stored, err := hex.DecodeString(storedHash)
		if err != nil {
			return false, nil
		}
		return hmac.Equal(computed, stored), nil

	case TagBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(material))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("bcrypt compare failed: %w", err)

	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, tag)
	}
}

// SHA256Hex is the plain digest used both as the legacy record scheme
// and as the lookup key for legacy-format keys (hash of the whole
// presented key).
func SHA256Hex(material string) string {
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}
