package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xbrldata/keygate/internal/keys"
	"github.com/xbrldata/keygate/internal/models"
)

// CredentialStore is the durable record storage the service consumes.
// Implementations return (nil, nil) for not-found; a non-nil error
// always means the store itself is unavailable.
type CredentialStore interface {
	Insert(ctx context.Context, cred *models.Credential) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Credential, error)
	FindByHashAndPrefix(ctx context.Context, prefix, hash string) (*models.Credential, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (bool, error)
	List(ctx context.Context) ([]models.Credential, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Credential, error)
}

// TierStore resolves tier names to rate limit policies.
type TierStore interface {
	FindByName(ctx context.Context, name string) (*models.RateLimitTier, error)
}

// UsageRecorder receives one event per verification attempt against a
// known credential. Implementations must not block.
type UsageRecorder interface {
	Record(credentialID uuid.UUID, success bool, at time.Time)
}

// APIKeyService issues, verifies, rotates and revokes API keys.
type APIKeyService struct {
	store     CredentialStore
	tiers     TierStore
	generator *keys.Generator
	hasher    *keys.Hasher
	usage     UsageRecorder
	now       func() time.Time
}

func NewAPIKeyService(store CredentialStore, tiers TierStore, generator *keys.Generator, hasher *keys.Hasher) *APIKeyService {
	return &APIKeyService{
		store:     store,
		tiers:     tiers,
		generator: generator,
		hasher:    hasher,
		now:       time.Now,
	}
}

// WithRecorder attaches a best-effort usage recorder and returns the
// service for chaining.
func (s *APIKeyService) WithRecorder(recorder UsageRecorder) *APIKeyService {
	s.usage = recorder
	return s
}

// IssuedKey carries the plaintext key and its stored record. The
// plaintext exists only in this value: it is never persisted and cannot
// be recovered later.
type IssuedKey struct {
	PlainKey string
	Record   *models.Credential
}

// Issue mints a new key for ownerID under the given tier. ttl of zero
// means no expiry.
func (s *APIKeyService) Issue(ctx context.Context, ownerID, name, tier string, ttl time.Duration) (*IssuedKey, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}

	tierPolicy, err := s.tiers.FindByName(ctx, tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if tierPolicy == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	generated, err := s.generator.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	tag := s.hasher.StrongestTag()
	hash, err := s.hasher.Hash(tag, generated.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to hash key: %w", err)
	}

	now := s.now().UTC()
	cred := &models.Credential{
		ID:           generated.PublicID,
		OwnerID:      ownerID,
		Name:         name,
		KeyPrefix:    generated.KeyPrefix,
		KeyHash:      hash,
		KeySuffix:    generated.KeySuffix,
		AlgorithmTag: tag,
		Status:       models.StatusActive,
		Tier:         tierPolicy.Name,
		CreatedAt:    now,
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		cred.ExpiresAt = &expires
	}

	if err := s.store.Insert(ctx, cred); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return &IssuedKey{PlainKey: generated.PlainKey, Record: cred}, nil
}

// Revoke terminally deactivates the credential. Idempotent: revoking an
// already revoked key is a no-op success. Ownership is checked; a
// mismatch reads as not-found so owners cannot probe each other's ids.
func (s *APIKeyService) Revoke(ctx context.Context, id uuid.UUID, ownerID string) error {
	cred, err := s.loadOwned(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if cred.Status == models.StatusRevoked {
		return nil
	}

	ok, err := s.store.UpdateFields(ctx, id, map[string]interface{}{
		"status": models.StatusRevoked,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return ErrNotFound
	}

	return nil
}

// Rotate replaces the credential's secret while preserving its id,
// owner, tier and limits. The hash, suffix, prefix and algorithm tag
// are swapped in a single store update, so at no point do both the old
// and the new secret verify. Legacy records come out of rotation on the
// current format and strongest scheme.
func (s *APIKeyService) Rotate(ctx context.Context, id uuid.UUID, ownerID string) (*IssuedKey, error) {
	cred, err := s.loadOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if cred.Status != models.StatusActive {
		return nil, ErrInactive
	}

	secret, plain, err := s.generator.Regenerate(cred.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	tag := s.hasher.StrongestTag()
	hash, err := s.hasher.Hash(tag, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to hash key: %w", err)
	}

	prefix := keys.Prefix(plain)
	suffix := keys.Suffix(plain)

	ok, err := s.store.UpdateFields(ctx, id, map[string]interface{}{
		"key_hash":      hash,
		"key_prefix":    prefix,
		"key_suffix":    suffix,
		"algorithm_tag": tag,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	cred.KeyHash = hash
	cred.KeyPrefix = prefix
	cred.KeySuffix = suffix
	cred.AlgorithmTag = tag

	return &IssuedKey{PlainKey: plain, Record: cred}, nil
}

// UpdateName changes the display label. Not security relevant.
func (s *APIKeyService) UpdateName(ctx context.Context, id uuid.UUID, ownerID, name string) error {
	if _, err := s.loadOwned(ctx, id, ownerID); err != nil {
		return err
	}

	_, err := s.store.UpdateFields(ctx, id, map[string]interface{}{"name": name})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// UpdateTier moves the credential to another rate limit policy.
func (s *APIKeyService) UpdateTier(ctx context.Context, id uuid.UUID, ownerID, tier string) error {
	if _, err := s.loadOwned(ctx, id, ownerID); err != nil {
		return err
	}

	tierPolicy, err := s.tiers.FindByName(ctx, tier)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if tierPolicy == nil {
		return fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	_, err = s.store.UpdateFields(ctx, id, map[string]interface{}{"tier": tierPolicy.Name})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *APIKeyService) Get(ctx context.Context, id uuid.UUID, ownerID string) (*models.Credential, error) {
	return s.loadOwned(ctx, id, ownerID)
}

func (s *APIKeyService) List(ctx context.Context, ownerID string) ([]models.Credential, error) {
	var (
		creds []models.Credential
		err   error
	)
	if ownerID == "" {
		creds, err = s.store.List(ctx)
	} else {
		creds, err = s.store.ListByOwner(ctx, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return creds, nil
}

func (s *APIKeyService) loadOwned(ctx context.Context, id uuid.UUID, ownerID string) (*models.Credential, error) {
	cred, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if cred == nil || !strings.EqualFold(cred.OwnerID, ownerID) {
		return nil, ErrNotFound
	}
	return cred, nil
}
