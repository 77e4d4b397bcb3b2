package domain

import (
	"context"

	"suppliersync/internal/models"
)

// TokenRepository кэширует токены поставщиков между воркерами.
type TokenRepository interface {
	GetToken(ctx context.Context, supplierCode string) (*models.SupplierToken, error)
	SetToken(ctx context.Context, token *models.SupplierToken) error
	ClearToken(ctx context.Context, supplierCode string) error
}
