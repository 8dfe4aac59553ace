package cache

import (
	"context"
	"testing"

	"candle-shop/models"

	"github.com/stretchr/testify/assert"
)

func TestNilProductCache(t *testing.T) {
	var c *ProductCache
	ctx := context.Background()

	_, err := c.GetProduct(ctx, 1)
	assert.ErrorIs(t, err, ErrMiss)

	_, err = c.GetFeatured(ctx)
	assert.ErrorIs(t, err, ErrMiss)

	assert.NoError(t, c.SetProduct(ctx, &models.Product{ID: 1}))
	assert.NoError(t, c.SetFeatured(ctx, nil))
	assert.NoError(t, c.Invalidate(ctx, 1))
}

func TestProductKey(t *testing.T) {
	assert.Equal(t, "product:42", productKey(42))
}
