package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// TTL sentinel values, matching Redis TTL semantics.
const (
	TTLNoExpiry int64 = -1
	TTLAbsent   int64 = -2
)

// Store is the key-value contract shared by the Redis backend and the
// in-process fallback. Sessions, rate limiting and password-reset tokens
// all go through this interface.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Incr increments the counter at key, creating it at 1 if absent.
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, seconds int64) error
	// TTL returns seconds remaining, TTLNoExpiry or TTLAbsent.
	TTL(ctx context.Context, key string) (int64, error)
	// Del removes key; deleting an absent key is not an error.
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

var (
	store       Store
	redisClient *redis.Client
)

// Init initializes the process-wide store. When redis.host is not
// configured it falls back to the in-memory implementation, which is
// only valid for single-process deployments. Repeated calls are no-ops.
func Init() Store {
	if store != nil {
		return store
	}

	viper.SetDefault("redis.host", "")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	host := viper.GetString("redis.host")
	if host == "" {
		log.Println("[CACHE] redis.host not set; using in-memory store for sessions and rate limiting")
		store = NewMemoryStore()
		return store
	}

	addr := host + ":" + viper.GetString("redis.port")
	redisClient = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("[CACHE] Redis ping failed, continuing (health will report down): %v", err)
	} else {
		log.Println("[CACHE] Redis connection established")
	}

	store = NewRedisStore(redisClient)
	return store
}

// Get returns the initialized store.
func Get() Store {
	return store
}

// Shutdown closes the Redis connection if one was established.
func Shutdown() error {
	if redisClient != nil {
		err := redisClient.Close()
		redisClient = nil
		store = nil
		return err
	}
	store = nil
	return nil
}
