package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/redis/go-redis/v9"
)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

// setIfNewer stores a cart entry unless the entry already holds a higher
// version. Cart versions come from a database sequence and stay well inside
// the integer range of a Lua number.
var setIfNewer = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

func (r RedisCache) Get(ctx context.Context, cartKey string) (*domain.Cart, error) {
	data, err := r.client.HGet(ctx, cacheKey(cartKey), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	return &cart, nil
}

// Set keeps whichever of the cached and the given cart has the higher
// Version. A reader that loaded a cart before a concurrent write committed
// cannot put its older copy back over the newer one.
func (r RedisCache) Set(ctx context.Context, cartKey string, cart *domain.Cart) error {
	jsonCart, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := (r.baseTTL + jitter).Milliseconds()
	err = setIfNewer.Run(ctx, r.client, []string{cacheKey(cartKey)}, cart.Version, jsonCart, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context, cartKey string) error {
	if err := r.client.Del(ctx, cacheKey(cartKey)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// InvalidateProductPage removes the rendered product page so the next
// visitor sees fresh stock and rating.
func (r RedisCache) InvalidateProductPage(ctx context.Context, slug string) error {
	if err := r.client.Del(ctx, pageKey(slug)).Err(); err != nil {
		return fmt.Errorf("redis delete page failed: %w", err)
	}
	return nil
}

func cacheKey(cartKey string) string {
	return fmt.Sprintf("cart:%s", cartKey)
}

func pageKey(slug string) string {
	return fmt.Sprintf("product-page:%s", slug)
}
