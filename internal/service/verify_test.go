package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xbrldata/keygate/internal/keys"
	"github.com/xbrldata/keygate/internal/models"
)

func TestVerifyMalformedKey(t *testing.T) {
	svc, _, recorder := newTestService()

	for _, presented := range []string{
		"",
		"not-a-key",
		"xbrl_live",
		"sk_live_v1_whatever_secret",
	} {
		_, err := svc.Verify(context.Background(), presented)
		assert.ErrorIs(t, err, ErrFormat, "presented=%q", presented)
		assert.True(t, IsInvalidCredential(err))
	}

	// Malformed keys never reach a credential, so nothing is recorded.
	assert.Empty(t, recorder.recorded())
}

func TestVerifyUnknownKey(t *testing.T) {
	svc, _, _ := newTestService()

	generated, err := keys.NewGenerator("test").Generate()
	require.NoError(t, err)

	// Well formed, never issued.
	_, err = svc.Verify(context.Background(), generated.PlainKey)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsInvalidCredential(err))
}

func TestVerifyTamperedSecret(t *testing.T) {
	svc, _, recorder := newTestService()
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "owner-1", "tampered", models.TierFree, 0)
	require.NoError(t, err)

	// Flip the last character of the secret.
	tampered := []byte(issued.PlainKey)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	_, err = svc.Verify(ctx, string(tampered))
	assert.ErrorIs(t, err, ErrHashMismatch)
	assert.True(t, IsInvalidCredential(err))

	// The failed attempt is counted against the looked-up credential.
	events := recorder.recorded()
	require.Len(t, events, 1)
	assert.False(t, events[0].success)
	assert.Equal(t, issued.Record.ID, events[0].id)
}

func TestVerifyExpiredKey(t *testing.T) {
	svc, _, recorder := newTestService()
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "owner-1", "stale", models.TierFree, time.Hour)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, issued.PlainKey)
	require.NoError(t, err)

	// Jump past the expiry. The record still says active and the digest
	// still matches, yet the key must be rejected.
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = svc.Verify(ctx, issued.PlainKey)
	assert.ErrorIs(t, err, ErrExpired)

	events := recorder.recorded()
	require.Len(t, events, 2)
	assert.True(t, events[0].success)
	assert.False(t, events[1].success)
}

func TestVerifyLegacyFormatKey(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	// A record written before the current format: no embedded public id,
	// plain sha256 of the whole textual key.
	plain := "xbrl_test_" + strings.Repeat("k7", 20)
	legacy := &models.Credential{
		ID:           uuid.New(),
		OwnerID:      "owner-legacy",
		Name:         "pre-migration",
		KeyPrefix:    keys.Prefix(plain),
		KeyHash:      keys.SHA256Hex(plain),
		KeySuffix:    keys.Suffix(plain),
		AlgorithmTag: keys.TagSHA256,
		Status:       models.StatusActive,
		Tier:         models.TierFree,
		CreatedAt:    time.Now().UTC(),
	}
	store.put(legacy)

	result, err := svc.Verify(ctx, plain)
	require.NoError(t, err)
	assert.Equal(t, legacy.ID, result.CredentialID)
	assert.Equal(t, "owner-legacy", result.OwnerID)

	// Rotation moves the record onto the current format and scheme.
	rotated, err := svc.Rotate(ctx, legacy.ID, "owner-legacy")
	require.NoError(t, err)
	assert.Equal(t, keys.TagBcrypt, store.get(legacy.ID).AlgorithmTag)

	_, err = svc.Verify(ctx, plain)
	assert.Error(t, err)

	result, err = svc.Verify(ctx, rotated.PlainKey)
	require.NoError(t, err)
	assert.Equal(t, legacy.ID, result.CredentialID)
}

func TestVerifyHMACTaggedRecord(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	hasher := keys.NewHasher("unit-test-pepper", bcrypt.MinCost)
	generated, err := keys.NewGenerator("test").Generate()
	require.NoError(t, err)

	hash, err := hasher.Hash(keys.TagHMAC, generated.Secret)
	require.NoError(t, err)

	store.put(&models.Credential{
		ID:           generated.PublicID,
		OwnerID:      "owner-hmac",
		Name:         "mid-migration",
		KeyPrefix:    generated.KeyPrefix,
		KeyHash:      hash,
		KeySuffix:    generated.KeySuffix,
		AlgorithmTag: keys.TagHMAC,
		Status:       models.StatusActive,
		Tier:         models.TierFree,
		CreatedAt:    time.Now().UTC(),
	})

	result, err := svc.Verify(ctx, generated.PlainKey)
	require.NoError(t, err)
	assert.Equal(t, generated.PublicID, result.CredentialID)
}

func TestVerifyUnknownAlgorithmTagRejects(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "owner-1", "corrupt tag", models.TierFree, 0)
	require.NoError(t, err)

	cred := store.get(issued.Record.ID)
	cred.AlgorithmTag = "md5"

	// An unrecognized tag is never resolved by trying schemes in turn.
	_, err = svc.Verify(ctx, issued.PlainKey)
	assert.ErrorIs(t, err, ErrHashMismatch)
	assert.True(t, IsInvalidCredential(err))
}

func TestVerifyAppliesPerKeyOverrides(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "owner-1", "custom limits", models.TierFree, 0)
	require.NoError(t, err)

	cred := store.get(issued.Record.ID)
	cred.RateLimitPerMinute = 5

	result, err := svc.Verify(ctx, issued.PlainKey)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Limits.PerMinute)
	assert.Equal(t, 1000, result.Limits.PerHour) // tier default still applies
}
