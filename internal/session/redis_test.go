package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisStore instance
func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client), mr
}

func TestRedisStore_PutSetsValueAndTTL(t *testing.T) {
	store, mr := setupTestRedis(t)

	err := store.Put(context.Background(), "tok-1", "PAY-1", 3*time.Hour)
	require.NoError(t, err)

	stored, err := mr.Get(sessionKey("tok-1"))
	require.NoError(t, err)
	assert.Equal(t, "PAY-1", stored)
	assert.Equal(t, 3*time.Hour, mr.TTL(sessionKey("tok-1")))
}

func TestRedisStore_GetAndDeleteConsumesOnce(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "tok-1", "PAY-1", time.Hour))

	intentID, err := store.GetAndDelete(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "PAY-1", intentID)
	assert.False(t, mr.Exists(sessionKey("tok-1")))

	_, err = store.GetAndDelete(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore_GetAndDeleteExpired(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "tok-1", "PAY-1", time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := store.GetAndDelete(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore_ConcurrentGetAndDelete(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "tok-1", "PAY-1", time.Hour))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.GetAndDelete(ctx, "tok-1"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestRedisStore_ConnectionError(t *testing.T) {
	store, mr := setupTestRedis(t)
	mr.Close()

	err := store.Put(context.Background(), "tok", "PAY", time.Minute)
	assert.ErrorContains(t, err, "redis set failed")

	_, err = store.GetAndDelete(context.Background(), "tok")
	assert.ErrorContains(t, err, "redis getdel failed")
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionKey_Format(t *testing.T) {
	assert.Equal(t, "checkout:session:abc", sessionKey("abc"))
}
