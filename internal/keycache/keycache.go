// Package keycache implements the optional Redis-backed "cached record
// inside a key" wrapper noted as a design option in spec §9: a point cache
// in front of DataSource.LoadByKeyOrNil, keyed by the same canonical key
// string that would otherwise drive a backend lookup through the full
// lookup-list/tombstone/type-masking path on every call.
//
// Redis here is a pure cache, not the system of record. The backend.Store
// remains authoritative, and a cache miss or staleness never loses data,
// only a round trip.
package keycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/datacentricorg/datacentric-sub000/internal/recordid"
)

// Entry is the cached shape of a winning lookup: enough to reconstruct a
// dcrecord.Record without re-querying the backend, plus the type chain
// needed to repeat the masking decision without asking the backend again.
type Entry struct {
	Id          recordid.RecordId
	DataSet     recordid.RecordId
	Key         string
	TypeChain   []string
	PayloadJSON json.RawMessage
}

type wireEntry struct {
	Id          string          `json:"id"`
	DataSet     string          `json:"dataset"`
	Key         string          `json:"key"`
	TypeChain   []string        `json:"typeChain"`
	PayloadJSON json.RawMessage `json:"payload"`
}

// Cache is a Redis-backed point cache of canonical-key lookups.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

// New constructs a Cache. keyPrefix namespaces this cache's keys in the
// shared Redis instance. ttl of zero disables expiry (entries live until
// invalidated).
func New(rdb *redis.Client, log *zap.Logger, keyPrefix string, ttl time.Duration) (*Cache, error) {
	if rdb == nil {
		return nil, errors.New("keycache: nil redis client")
	}
	if keyPrefix == "" {
		return nil, errors.New("keycache: empty keyPrefix")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{rdb: rdb, ttl: ttl, prefix: keyPrefix + ":", log: log.Named("keycache")}, nil
}

func (c *Cache) redisKey(rootType, lookupListHash, canonicalKey string) string {
	return c.prefix + rootType + ":" + lookupListHash + ":" + canonicalKey
}

// Get returns the cached Entry for (rootType, lookupListHash, canonicalKey),
// or ok=false on a cache miss. lookupListHash should summarize the exact
// dataset lookup list and as-of cutoff the caller resolved, so that a
// dataset import change invalidates the cache key implicitly by changing
// the hash rather than requiring an explicit invalidation pass.
func (c *Cache) Get(ctx context.Context, rootType, lookupListHash, canonicalKey string) (Entry, bool, error) {
	raw, err := c.rdb.Get(ctx, c.redisKey(rootType, lookupListHash, canonicalKey)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("keycache: redis get: %w", err)
	}

	var w wireEntry
	if err := json.Unmarshal(raw, &w); err != nil {
		c.log.Warn("keycache: corrupt entry, treating as miss",
			zap.String("rootType", rootType), zap.Error(err))
		return Entry{}, false, nil
	}

	id, err := recordid.Parse(w.Id)
	if err != nil {
		return Entry{}, false, nil
	}
	ds, err := recordid.Parse(w.DataSet)
	if err != nil {
		return Entry{}, false, nil
	}

	return Entry{Id: id, DataSet: ds, Key: w.Key, TypeChain: w.TypeChain, PayloadJSON: w.PayloadJSON}, true, nil
}

// Set stores e under (rootType, lookupListHash, canonicalKey), overwriting
// any existing entry.
func (c *Cache) Set(ctx context.Context, rootType, lookupListHash, canonicalKey string, e Entry) error {
	w := wireEntry{
		Id:          e.Id.String(),
		DataSet:     e.DataSet.String(),
		Key:         e.Key,
		TypeChain:   e.TypeChain,
		PayloadJSON: e.PayloadJSON,
	}
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("keycache: marshal: %w", err)
	}
	if err := c.rdb.Set(ctx, c.redisKey(rootType, lookupListHash, canonicalKey), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("keycache: redis set: %w", err)
	}
	return nil
}

// Invalidate removes a specific cached entry, e.g. immediately after a
// Delete or Save under the same canonical key.
func (c *Cache) Invalidate(ctx context.Context, rootType, lookupListHash, canonicalKey string) error {
	if err := c.rdb.Del(ctx, c.redisKey(rootType, lookupListHash, canonicalKey)).Err(); err != nil {
		return fmt.Errorf("keycache: redis del: %w", err)
	}
	return nil
}
