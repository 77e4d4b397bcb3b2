package repository

import (
	"context"
	"sync"
	"time"

	"suppliersync/internal/models"
)

type MemoryTokenRepository struct {
	tokens sync.Map
	ttl    time.Duration
}

type memoryEntry struct {
	token     *models.SupplierToken
	expiresAt time.Time
}

func NewMemoryTokenRepository(ttl time.Duration) *MemoryTokenRepository {
	if ttl <= 0 {
		ttl = time.Duration(models.DefaultTokenTTL) * time.Second
	}
	return &MemoryTokenRepository{
		ttl: ttl,
	}
}

func (r *MemoryTokenRepository) GetToken(ctx context.Context, supplierCode string) (*models.SupplierToken, error) {
	val, ok := r.tokens.Load(supplierCode)
	if !ok {
		return nil, nil
	}
	entry := val.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		r.tokens.Delete(supplierCode)
		return nil, nil
	}
	return entry.token, nil
}

func (r *MemoryTokenRepository) SetToken(ctx context.Context, token *models.SupplierToken) error {
	expiresAt := time.Now().Add(r.ttl)
	if !token.ExpiresAt.IsZero() && token.ExpiresAt.Before(expiresAt) {
		expiresAt = token.ExpiresAt
	}
	r.tokens.Store(token.SupplierCode, &memoryEntry{token: token, expiresAt: expiresAt})
	return nil
}

func (r *MemoryTokenRepository) ClearToken(ctx context.Context, supplierCode string) error {
	r.tokens.Delete(supplierCode)
	return nil
}
