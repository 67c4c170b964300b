package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xbrldata/keygate/internal/models"
	"github.com/xbrldata/keygate/internal/storage"
	"gorm.io/gorm"
)

// CredentialRepository persists credential records. Not-found is
// reported as (nil, nil); a non-nil error always means the store itself
// failed, so callers can fail closed.
type CredentialRepository struct {
	db *storage.Postgres
}

func NewCredentialRepository(db *storage.Postgres) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Insert(ctx context.Context, cred *models.Credential) error {
	return r.db.DB.WithContext(ctx).Create(cred).Error
}

func (r *CredentialRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Credential, error) {
	var cred models.Credential
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		First(&cred).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &cred, nil
}

// FindByHashAndPrefix serves the legacy key path, where the record is
// located by the digest of the whole presented key plus its prefix.
func (r *CredentialRepository) FindByHashAndPrefix(ctx context.Context, prefix, hash string) (*models.Credential, error) {
	var cred models.Credential
	err := r.db.DB.WithContext(ctx).
		Where("key_prefix = ? AND key_hash = ?", prefix, hash).
		First(&cred).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &cred, nil
}

func (r *CredentialRepository) List(ctx context.Context) ([]models.Credential, error) {
	var creds []models.Credential
	err := r.db.DB.WithContext(ctx).
		Order("created_at DESC").
		Find(&creds).Error

	return creds, err
}

func (r *CredentialRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Credential, error) {
	var creds []models.Credential
	err := r.db.DB.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&creds).Error

	return creds, err
}

// UpdateFields applies a partial update to a single record. The store
// guarantees single-record atomicity, which is what makes rotation safe:
// hash, suffix, prefix and algorithm tag change in one statement.
func (r *CredentialRepository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (bool, error) {
	result := r.db.DB.WithContext(ctx).
		Model(&models.Credential{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// RecordUsage bumps the usage counters and last-used timestamp in SQL so
// concurrent writers never lose updates.
func (r *CredentialRepository) RecordUsage(ctx context.Context, id uuid.UUID, success bool, at time.Time) error {
	updates := map[string]interface{}{
		"usage_total":  gorm.Expr("usage_total + 1"),
		"last_used_at": at,
	}
	if success {
		updates["usage_success"] = gorm.Expr("usage_success + 1")
	} else {
		updates["usage_failed"] = gorm.Expr("usage_failed + 1")
	}

	return r.db.DB.WithContext(ctx).
		Model(&models.Credential{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *CredentialRepository) CountByTier(ctx context.Context, tier string) (int64, error) {
	var count int64
	err := r.db.DB.WithContext(ctx).
		Model(&models.Credential{}).
		Where("tier = ? AND status = ?", tier, models.StatusActive).
		Count(&count).Error

	return count, err
}

// TierRepository reads rate limit tier policies.
type TierRepository struct {
	db *storage.Postgres
}

func NewTierRepository(db *storage.Postgres) *TierRepository {
	return &TierRepository{db: db}
}

func (r *TierRepository) FindByName(ctx context.Context, name string) (*models.RateLimitTier, error) {
	var tier models.RateLimitTier
	err := r.db.DB.WithContext(ctx).
		Where("name = ?", name).
		First(&tier).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &tier, nil
}

func (r *TierRepository) List(ctx context.Context) ([]models.RateLimitTier, error) {
	var tiers []models.RateLimitTier
	err := r.db.DB.WithContext(ctx).Order("name").Find(&tiers).Error
	return tiers, err
}
