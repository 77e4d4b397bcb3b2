package repository

import (
	"context"
	"fmt"
	"time"

	"suppliersync/internal/domain"
	"suppliersync/internal/models"
)

// TokenCache resolves supplier tokens through the repository, seeding the
// cache from configured API keys. Implements supplier.TokenSource.
type TokenCache struct {
	repo domain.TokenRepository
	keys map[string]string // supplier_code -> configured key
	ttl  time.Duration
}

func NewTokenCache(repo domain.TokenRepository, keys map[string]string, ttl time.Duration) *TokenCache {
	if ttl <= 0 {
		ttl = time.Duration(models.DefaultTokenTTL) * time.Second
	}
	return &TokenCache{
		repo: repo,
		keys: keys,
		ttl:  ttl,
	}
}

func (c *TokenCache) Token(ctx context.Context, supplierCode string) (string, error) {
	cached, err := c.repo.GetToken(ctx, supplierCode)
	if err != nil {
		return "", fmt.Errorf("token cache lookup: %w", err)
	}
	if cached != nil && !cached.Expired() {
		return cached.Token, nil
	}

	key, ok := c.keys[supplierCode]
	if !ok || key == "" {
		return "", fmt.Errorf("no api key configured for supplier %s", supplierCode)
	}

	now := time.Now()
	token := &models.SupplierToken{
		SupplierCode: supplierCode,
		Token:        key,
		IssuedAt:     now,
		ExpiresAt:    now.Add(c.ttl),
	}
	if err := c.repo.SetToken(ctx, token); err != nil {
		return "", fmt.Errorf("token cache store: %w", err)
	}

	return key, nil
}

// Invalidate drops the cached token after the supplier reported it expired.
func (c *TokenCache) Invalidate(ctx context.Context, supplierCode string) error {
	return c.repo.ClearToken(ctx, supplierCode)
}
