package keys

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// EcosystemTag is the fixed leading tag on every issued key.
	EcosystemTag = "xbrl"

	// FormatVersion identifies the current textual layout.
	FormatVersion = "v1"

	// Delimiter joins the key components. It must never appear in the
	// secret alphabet or in any other component.
	Delimiter = "_"

	// secretAlphabet is base62: URL-safe and delimiter-free.
	secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// SecretLength gives ~238 bits of entropy (62^40), comfortably above
	// the 192-bit floor.
	SecretLength = 40

	prefixLength = 12
	suffixLength = 4
)

// GeneratedKey is the one-time result of minting a new key. PlainKey is
// returned to the caller exactly once and never persisted.
type GeneratedKey struct {
	PlainKey  string
	PublicID  uuid.UUID
	Secret    string
	KeyPrefix string
	KeySuffix string
}

// Generator mints textual API keys for a single environment ("live" or
// "test").
type Generator struct {
	env string
}

func NewGenerator(env string) *Generator {
	if env == "" {
		env = "live"
	}
	return &Generator{env: env}
}

// Generate draws a fresh secret from the CSPRNG and assembles the
// textual key: {tag}_{env}_{version}_{publicId}_{secret}.
func (g *Generator) Generate() (*GeneratedKey, error) {
	secret, err := randomSecret(SecretLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}

	publicID := uuid.New()
	plain := strings.Join([]string{EcosystemTag, g.env, FormatVersion, publicID.String(), secret}, Delimiter)

	return &GeneratedKey{
		PlainKey:  plain,
		PublicID:  publicID,
		Secret:    secret,
		KeyPrefix: Prefix(plain),
		KeySuffix: Suffix(plain),
	}, nil
}

// Regenerate mints a fresh secret for an existing public id, used by
// rotation: the textual key keeps the record's identity but carries a
// brand new secret.
func (g *Generator) Regenerate(publicID uuid.UUID) (secret, plainKey string, err error) {
	secret, err = randomSecret(SecretLength)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate secret: %w", err)
	}

	plainKey = strings.Join([]string{EcosystemTag, g.env, FormatVersion, publicID.String(), secret}, Delimiter)
	return secret, plainKey, nil
}

// Env returns the environment tag the generator issues under.
func (g *Generator) Env() string {
	return g.env
}

// Prefix returns the short, non-secret, indexable head of a textual key.
func Prefix(plainKey string) string {
	if len(plainKey) < prefixLength {
		return plainKey
	}
	return plainKey[:prefixLength]
}

// Suffix returns the display tail kept for masking.
func Suffix(plainKey string) string {
	if len(plainKey) < suffixLength {
		return plainKey
	}
	return plainKey[len(plainKey)-suffixLength:]
}

// Mask renders a key for display without revealing the secret.
func Mask(plainKey string) string {
	if len(plainKey) < prefixLength+suffixLength {
		return plainKey
	}
	return Prefix(plainKey) + "..." + Suffix(plainKey)
}

// randomSecret draws n characters uniformly from the base62 alphabet.
// Bytes >= 248 are rejected so the modulo does not bias the draw
// (248 is the largest multiple of 62 below 256).
func randomSecret(n int) (string, error) {
	const limit = 248

	out := make([]byte, 0, n)
	buf := make([]byte, n)

	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, secretAlphabet[int(b)%len(secretAlphabet)])
			if len(out) == n {
				break
			}
		}
	}

	return string(out), nil
}
