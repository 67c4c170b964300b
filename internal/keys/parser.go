package keys

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrMalformedKey is returned when a presented key does not match any
// supported textual layout.
var ErrMalformedKey = errors.New("malformed api key")

// ParsedKey is the tagged result of parsing a presented key. Exactly one
// of the two shapes is populated:
//
//   - current: tag_env_version_publicId_secret, lookup by PublicID
//   - legacy:  tag_env_secret, lookup by prefix + hash of the whole key
type ParsedKey struct {
	Legacy   bool
	Env      string
	PublicID uuid.UUID // current format only
	Secret   string
	Prefix   string // prefix of the full textual key, for the legacy lookup
}

// Parse splits a presented key into its tagged variant. Both the legacy
// and current shapes are accepted for verification; only the current
// shape is ever issued.
func Parse(presented string) (*ParsedKey, error) {
	parts := strings.Split(presented, Delimiter)

	switch len(parts) {
	case 3:
		// Legacy: xbrl_live_<secret>
		if parts[0] != EcosystemTag || parts[1] == "" || len(parts[2]) < 20 {
			return nil, ErrMalformedKey
		}
		return &ParsedKey{
			Legacy: true,
			Env:    parts[1],
			Secret: parts[2],
			Prefix: Prefix(presented),
		}, nil

	case 5:
		// Current: xbrl_live_v1_<uuid>_<secret>
		if parts[0] != EcosystemTag || parts[1] == "" || parts[2] != FormatVersion {
			return nil, ErrMalformedKey
		}
		publicID, err := uuid.Parse(parts[3])
		if err != nil {
			return nil, ErrMalformedKey
		}
		if len(parts[4]) < 20 {
			return nil, ErrMalformedKey
		}
		return &ParsedKey{
			Env:      parts[1],
			PublicID: publicID,
			Secret:   parts[4],
			Prefix:   Prefix(presented),
		}, nil

	default:
		return nil, ErrMalformedKey
	}
}
