package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"candle-shop/config"
	"candle-shop/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const featuredKey = "products:featured"

// ErrMiss is returned on a cache miss and when caching is disabled.
var ErrMiss = errors.New("cache miss")

func InitRedis(cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", cfg.Addr))
	return rdb, nil
}

// ProductCache caches single products and the featured list. A nil
// *ProductCache is valid and never hits.
type ProductCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewProductCache(rdb redis.Cmdable, ttl time.Duration) *ProductCache {
	return &ProductCache{rdb: rdb, ttl: ttl}
}

func productKey(id int) string {
	return fmt.Sprintf("product:%d", id)
}

func (c *ProductCache) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	var product models.Product
	if err := c.get(ctx, productKey(id), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *ProductCache) SetProduct(ctx context.Context, product *models.Product) error {
	return c.set(ctx, productKey(product.ID), product)
}

// Invalidate drops the product and the featured list, which may contain it.
func (c *ProductCache) Invalidate(ctx context.Context, id int) error {
	if c == nil {
		return nil
	}
	return c.rdb.Del(ctx, productKey(id), featuredKey).Err()
}

func (c *ProductCache) GetFeatured(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := c.get(ctx, featuredKey, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *ProductCache) SetFeatured(ctx context.Context, products []models.Product) error {
	return c.set(ctx, featuredKey, products)
}

func (c *ProductCache) get(ctx context.Context, key string, dst any) error {
	if c == nil {
		return ErrMiss
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func (c *ProductCache) set(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, c.ttl).Err()
}
