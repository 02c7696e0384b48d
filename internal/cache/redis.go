package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient implementa Client usando Redis.
type redisClient struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewRedis crea un cliente de cache Redis y verifica la conexión.
func NewRedis(cfg Config) (*redisClient, error) {
	port := cfg.Port
	if port == 0 {
		port = 6379
	}
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping failed: %w", err)
	}

	return NewRedisWithClient(rdb, cfg.Prefix, cfg.DefaultTTL), nil
}

// NewRedisWithClient envuelve un *redis.Client existente.
func NewRedisWithClient(rdb *redis.Client, prefix string, defaultTTL time.Duration) *redisClient {
	return &redisClient{client: rdb, prefix: prefix, defaultTTL: defaultTTL}
}

func (c *redisClient) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *redisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("cache: redis get: %w", err)
	}
	return val, nil
}

// Set guarda value. ttl 0 usa el TTL por defecto (0 = sin expiración).
func (c *redisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

func (c *redisClient) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

func (c *redisClient) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *redisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisClient) Close() error {
	return c.client.Close()
}

// Stats cuenta sólo las keys del prefijo (SCAN) y toma hits/misses de INFO.
func (c *redisClient) Stats(ctx context.Context) (Stats, error) {
	var keys int64
	pattern := "*"
	if c.prefix != "" {
		pattern = c.prefix + ":*"
	}
	iter := c.client.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		keys++
	}
	if err := iter.Err(); err != nil {
		return Stats{}, fmt.Errorf("cache: redis scan: %w", err)
	}

	st := Stats{Driver: "redis", Keys: keys}

	mem, err := c.client.Info(ctx, "memory").Result()
	if err != nil {
		return Stats{}, err
	}
	st.UsedMemory = infoValue(mem, "used_memory_human")

	if stats, err := c.client.Info(ctx, "stats").Result(); err == nil {
		st.Hits, _ = strconv.ParseInt(infoValue(stats, "keyspace_hits"), 10, 64)
		st.Misses, _ = strconv.ParseInt(infoValue(stats, "keyspace_misses"), 10, 64)
	}
	return st, nil
}

// infoValue extrae "key:value" de la salida de INFO.
func infoValue(info, key string) string {
	for _, line := range strings.Split(info, "\r\n") {
		if v, ok := strings.CutPrefix(line, key+":"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
