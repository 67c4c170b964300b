package keys

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurrentFormat(t *testing.T) {
	id := uuid.New()
	secret := strings.Repeat("a", 40)
	key := "xbrl_live_v1_" + id.String() + "_" + secret

	parsed, err := Parse(key)
	require.NoError(t, err)
	assert.False(t, parsed.Legacy)
	assert.Equal(t, "live", parsed.Env)
	assert.Equal(t, id, parsed.PublicID)
	assert.Equal(t, secret, parsed.Secret)
}

func TestParseLegacyFormat(t *testing.T) {
	secret := strings.Repeat("b", 32)
	key := "xbrl_live_" + secret

	parsed, err := Parse(key)
	require.NoError(t, err)
	assert.True(t, parsed.Legacy)
	assert.Equal(t, "live", parsed.Env)
	assert.Equal(t, secret, parsed.Secret)
	assert.Equal(t, key[:12], parsed.Prefix)
}

func TestParseMalformed(t *testing.T) {
	longSecret := strings.Repeat("c", 40)

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"garbage", "not-a-key"},
		{"wrong ecosystem tag", "acme_live_v1_" + uuid.NewString() + "_" + longSecret},
		{"wrong version", "xbrl_live_v2_" + uuid.NewString() + "_" + longSecret},
		{"bad uuid", "xbrl_live_v1_not-a-uuid_" + longSecret},
		{"short secret", "xbrl_live_v1_" + uuid.NewString() + "_short"},
		{"short legacy secret", "xbrl_live_short"},
		{"missing env", "xbrl__v1_" + uuid.NewString() + "_" + longSecret},
		{"too many parts", "xbrl_live_v1_x_y_z"},
		{"legacy wrong tag", "acme_live_" + longSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.key)
			assert.ErrorIs(t, err, ErrMalformedKey)
		})
	}
}
