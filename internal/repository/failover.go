package repository

import (
	"context"
	"sync/atomic"
	"time"

	"suppliersync/internal/domain"
	"suppliersync/internal/models"

	"github.com/rs/zerolog"
)

// FailoverTokenRepository пишет в Redis, при отказе переключается на память.
// Redis здесь кэш, а не источник истины, поэтому деградация безопасна.
type FailoverTokenRepository struct {
	primary   domain.TokenRepository
	fallback  domain.TokenRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverTokenRepository(primary, fallback domain.TokenRepository, logger *zerolog.Logger) *FailoverTokenRepository {
	return &FailoverTokenRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverTokenRepository) GetToken(ctx context.Context, supplierCode string) (*models.SupplierToken, error) {
	if !r.isDown.Load() {
		token, err := r.primary.GetToken(ctx, supplierCode)
		if err == nil {
			return token, nil
		}
		r.logger.Error().Err(err).Msg("Primary token repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		token, err := r.primary.GetToken(ctx, supplierCode)
		if err == nil {
			r.isDown.Store(false)
			return token, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetToken(ctx, supplierCode)
}

func (r *FailoverTokenRepository) SetToken(ctx context.Context, token *models.SupplierToken) error {
	if !r.isDown.Load() {
		err := r.primary.SetToken(ctx, token)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary token repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.SetToken(ctx, token)
}

func (r *FailoverTokenRepository) ClearToken(ctx context.Context, supplierCode string) error {
	if !r.isDown.Load() {
		err := r.primary.ClearToken(ctx, supplierCode)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary token repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.ClearToken(ctx, supplierCode)
}
