package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xbrldata/keygate/internal/keys"
	"github.com/xbrldata/keygate/internal/models"
)

// VerifyResult is what a successful verification hands to the rate
// limiter and usage recorder.
type VerifyResult struct {
	CredentialID uuid.UUID
	OwnerID      string
	Tier         string
	Limits       models.RateLimits
}

// Verify runs the presented key through the request-path stages in
// strict order:
//
//	ParseFormat -> LookupRecord -> RecomputeHash -> CompareConstantTime
//	-> CheckStatus -> CheckExpiry
//
// Each stage short-circuits with its own internal error; the HTTP layer
// collapses them for the caller. The digest comparison is mandatory on
// every path - a record matching the lookup is never treated as valid
// on its own.
func (s *APIKeyService) Verify(ctx context.Context, presented string) (*VerifyResult, error) {
	presented = strings.TrimSpace(presented)

	// ParseFormat
	parsed, err := keys.Parse(presented)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	// LookupRecord. The legacy shape embeds no public id, so the record
	// is located by the digest of the whole presented key; the current
	// shape is fetched by its embedded public id.
	var (
		cred     *models.Credential
		material string
	)
	if parsed.Legacy {
		cred, err = s.store.FindByHashAndPrefix(ctx, parsed.Prefix, keys.SHA256Hex(presented))
		material = presented
	} else {
		cred, err = s.store.FindByID(ctx, parsed.PublicID)
		material = parsed.Secret
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if cred == nil {
		return nil, ErrNotFound
	}

	// RecomputeHash + CompareConstantTime, dispatched by the stored
	// algorithm tag. An unknown tag is a mismatch, never a pass.
	ok, err := s.hasher.Verify(cred.AlgorithmTag, material, cred.KeyHash)
	if err != nil {
		s.record(cred.ID, false)
		return nil, fmt.Errorf("%w: %v", ErrHashMismatch, err)
	}
	if !ok {
		s.record(cred.ID, false)
		return nil, ErrHashMismatch
	}

	// CheckStatus
	if !cred.IsActive() {
		s.record(cred.ID, false)
		return nil, ErrInactive
	}

	// CheckExpiry
	if cred.Expired(s.now()) {
		s.record(cred.ID, false)
		return nil, ErrExpired
	}

	// Accept: resolve the effective limits for the rate limiter.
	tier, err := s.tiers.FindByName(ctx, cred.Tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.record(cred.ID, true)

	return &VerifyResult{
		CredentialID: cred.ID,
		OwnerID:      cred.OwnerID,
		Tier:         cred.Tier,
		Limits:       cred.Limits(tier),
	}, nil
}

// record notes a verification attempt against a known credential.
// Best-effort: recording never affects the authorization decision.
func (s *APIKeyService) record(id uuid.UUID, success bool) {
	if s.usage != nil {
		s.usage.Record(id, success, s.now().UTC())
	}
}
