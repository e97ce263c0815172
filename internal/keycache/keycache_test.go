package keycache

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRejectsNilClient(t *testing.T) {
	_, err := New(nil, zap.NewNop(), "dc", 0)
	require.Error(t, err)
}

func TestNewRejectsEmptyPrefix(t *testing.T) {
	_, err := New(redis.NewClient(&redis.Options{}), zap.NewNop(), "", 0)
	require.Error(t, err)
}

func TestRedisKeyNamespacesByPrefixRootAndLookupHash(t *testing.T) {
	c, err := New(redis.NewClient(&redis.Options{}), zap.NewNop(), "dc", 0)
	require.NoError(t, err)

	got := c.redisKey("Widget", "abc123", "w1")
	assert.Equal(t, "dc:Widget:abc123:w1", got)
}

func TestRedisKeyDistinguishesLookupHashes(t *testing.T) {
	c, err := New(redis.NewClient(&redis.Options{}), zap.NewNop(), "dc", 0)
	require.NoError(t, err)

	a := c.redisKey("Widget", "hash-a", "w1")
	b := c.redisKey("Widget", "hash-b", "w1")
	assert.NotEqual(t, a, b) // a dataset-import change must not collide with a stale cache key
}
