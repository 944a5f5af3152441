package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestRedisStore_Get(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	t.Run("present", func(t *testing.T) {
		mock.ExpectGet("k").SetVal("v")
		val, err := store.Get(ctx, "k")
		assert.NoError(t, err)
		assert.Equal(t, "v", val)
	})

	t.Run("absent maps to ErrNotFound", func(t *testing.T) {
		mock.ExpectGet("missing").RedisNil()
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_SetIncrExpire(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	mock.ExpectSet("k", "v", 30*time.Second).SetVal("OK")
	assert.NoError(t, store.Set(ctx, "k", "v", 30*time.Second))

	mock.ExpectSet("forever", "v", 0).SetVal("OK")
	assert.NoError(t, store.Set(ctx, "forever", "v", -1))

	mock.ExpectIncr("counter").SetVal(3)
	n, err := store.Incr(ctx, "counter")
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)

	mock.ExpectExpire("counter", 60*time.Second).SetVal(true)
	assert.NoError(t, store.Expire(ctx, "counter", 60))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	t.Run("seconds remaining", func(t *testing.T) {
		mock.ExpectTTL("k").SetVal(90 * time.Second)
		ttl, err := store.TTL(ctx, "k")
		assert.NoError(t, err)
		assert.Equal(t, int64(90), ttl)
	})

	t.Run("no expiry sentinel", func(t *testing.T) {
		mock.ExpectTTL("forever").SetVal(time.Duration(TTLNoExpiry))
		ttl, err := store.TTL(ctx, "forever")
		assert.NoError(t, err)
		assert.Equal(t, TTLNoExpiry, ttl)
	})

	t.Run("absent sentinel", func(t *testing.T) {
		mock.ExpectTTL("missing").SetVal(time.Duration(TTLAbsent))
		ttl, err := store.TTL(ctx, "missing")
		assert.NoError(t, err)
		assert.Equal(t, TTLAbsent, ttl)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_DelPing(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	mock.ExpectDel("k").SetVal(1)
	assert.NoError(t, store.Del(ctx, "k"))

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, store.Ping(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}
