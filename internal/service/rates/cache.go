package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

// rateKeyPrefix — ключи курсов в Redis: ferremas:rates:{CUR}.
const rateKeyPrefix = "ferremas:rates:"

func rateKey(currency string) string {
	return rateKeyPrefix + strings.ToUpper(currency)
}

// MemoryCache — кэш курсов в памяти процесса. Используется, когда Redis
// не настроен, и в тестах.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryCacheEntry
	// now подменяется в тестах для проверки истечения TTL.
	now func() time.Time
}

type memoryCacheEntry struct {
	rate      domain.Rate
	expiresAt time.Time
}

// NewMemoryCache создаёт пустой кэш.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryCacheEntry),
		now:     time.Now,
	}
}

// Get возвращает курс, если он есть и не истёк.
func (c *MemoryCache) Get(_ context.Context, currency string) (domain.Rate, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[strings.ToUpper(currency)]
	if !ok {
		return domain.Rate{}, false, nil
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, strings.ToUpper(currency))
		return domain.Rate{}, false, nil
	}
	return entry.rate, true, nil
}

// Set сохраняет курс с заданным временем жизни.
func (c *MemoryCache) Set(_ context.Context, rate domain.Rate, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[strings.ToUpper(rate.Currency)] = memoryCacheEntry{
		rate:      rate,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// RedisCache хранит курсы в Redis как JSON со штатным TTL ключа, поэтому
// истечение обеспечивает сам Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache создаёт кэш поверх готового клиента Redis.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get возвращает курс из Redis; отсутствие ключа не является ошибкой.
func (c *RedisCache) Get(ctx context.Context, currency string) (domain.Rate, bool, error) {
	raw, err := c.client.Get(ctx, rateKey(currency)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Rate{}, false, nil
	}
	if err != nil {
		return domain.Rate{}, false, fmt.Errorf("redis get rate: %w", err)
	}

	var rate domain.Rate
	if err := json.Unmarshal([]byte(raw), &rate); err != nil {
		return domain.Rate{}, false, fmt.Errorf("redis decode rate: %w", err)
	}
	return rate, true, nil
}

// Set сохраняет курс в Redis с TTL.
func (c *RedisCache) Set(ctx context.Context, rate domain.Rate, ttl time.Duration) error {
	raw, err := json.Marshal(rate)
	if err != nil {
		return fmt.Errorf("redis encode rate: %w", err)
	}
	if err := c.client.Set(ctx, rateKey(rate.Currency), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set rate: %w", err)
	}
	return nil
}
