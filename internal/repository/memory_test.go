package repository

import (
	"context"
	"testing"
	"time"

	"suppliersync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenRepository(t *testing.T) {
	repo := NewMemoryTokenRepository(time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetToken", func(t *testing.T) {
		token := &models.SupplierToken{SupplierCode: "ownerclan", Token: "secret"}
		require.NoError(t, repo.SetToken(ctx, token))

		got, err := repo.GetToken(ctx, "ownerclan")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "secret", got.Token)
	})

	t.Run("GetNonExistentToken", func(t *testing.T) {
		got, err := repo.GetToken(ctx, "unknown")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ClearToken", func(t *testing.T) {
		token := &models.SupplierToken{SupplierCode: "domeggook", Token: "k"}
		repo.SetToken(ctx, token)

		require.NoError(t, repo.ClearToken(ctx, "domeggook"))

		got, _ := repo.GetToken(ctx, "domeggook")
		assert.Nil(t, got)
	})

	t.Run("ExpiredTokenDropped", func(t *testing.T) {
		token := &models.SupplierToken{
			SupplierCode: "ownerclan",
			Token:        "stale",
			ExpiresAt:    time.Now().Add(-time.Minute),
		}
		repo.SetToken(ctx, token)

		got, err := repo.GetToken(ctx, "ownerclan")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
