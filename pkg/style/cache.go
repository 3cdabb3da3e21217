package style

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Key identifies cached rules: the template identity plus a digest of its bytes, so
// re-uploaded bytes never hit a stale entry.
type Key struct {
	Owner    string
	Client   string
	Template string
	Digest   string
}

// NewKey builds a cache key for template bytes.
func NewKey(owner, client, template string, data []byte) (k Key) {
	sum := sha256.Sum256(data)
	k = Key{Owner: owner, Client: client, Template: template, Digest: hex.EncodeToString(sum[:])}
	return k
}

// identity is the key without the digest.
func (k Key) identity() (id string) {
	id = fmt.Sprintf("%s\x00%s\x00%s", k.Owner, k.Client, k.Template)
	return id
}

// Cache stores rules per template. Invalidate drops every entry for the key's
// template identity regardless of digest.
type Cache interface {
	Get(ctx context.Context, key Key) (rules *Rules, ok bool, err error)
	Put(ctx context.Context, key Key, rules *Rules) (err error)
	Invalidate(ctx context.Context, key Key) (err error)
}

type memoryEntry struct {
	digest string
	rules  *Rules
}

// MemoryCache is an in-process Cache. One slot is kept per template identity.
type MemoryCache struct {
	slots sync.Map
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() (c *MemoryCache) {
	c = &MemoryCache{}
	return c
}

// Get returns the rules when the slot holds the same digest.
func (c *MemoryCache) Get(_ context.Context, key Key) (rules *Rules, ok bool, err error) {
	v, found := c.slots.Load(key.identity())
	if !found {
		return rules, ok, err
	}
	entry := v.(memoryEntry)
	if entry.digest != key.Digest {
		return rules, ok, err
	}
	rules, ok = entry.rules, true
	return rules, ok, err
}

// Put stores rules, replacing a slot holding another digest. A slot already holding
// this digest is reused.
func (c *MemoryCache) Put(_ context.Context, key Key, rules *Rules) (err error) {
	entry := memoryEntry{digest: key.Digest, rules: rules}
	if existing, loaded := c.slots.LoadOrStore(key.identity(), entry); loaded {
		if existing.(memoryEntry).digest != key.Digest {
			c.slots.Store(key.identity(), entry)
		}
	}
	return err
}

// Invalidate drops the template's slot.
func (c *MemoryCache) Invalidate(_ context.Context, key Key) (err error) {
	c.slots.Delete(key.identity())
	return err
}

// RedisCache shares rules between processes: one hash per template identity, with
// the digest as field.
type RedisCache struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a cache over rdb. ttl <= 0 keeps entries until invalidated.
func NewRedisCache(rdb redis.UniversalClient, prefix string, ttl time.Duration) (c *RedisCache) {
	if prefix == "" {
		prefix = "docreformat:style"
	}
	c = &RedisCache{rdb: rdb, prefix: prefix, ttl: ttl}
	return c
}

func (c *RedisCache) hashKey(key Key) (k string) {
	k = fmt.Sprintf("%s:%s:%s:%s", c.prefix, key.Owner, key.Client, key.Template)
	return k
}

// Get reads the rules for the key's digest.
func (c *RedisCache) Get(ctx context.Context, key Key) (rules *Rules, ok bool, err error) {
	var raw []byte
	raw, err = c.rdb.HGet(ctx, c.hashKey(key), key.Digest).Bytes()
	if errors.Is(err, redis.Nil) {
		err = nil
		return rules, ok, err
	}
	if err != nil {
		err = errors.Wrap(err, "failed to read cached style rules")
		return rules, ok, err
	}

	rules = &Rules{}
	err = json.Unmarshal(raw, rules)
	if err != nil {
		err = errors.Wrap(err, "failed to decode cached style rules")
		return nil, ok, err
	}
	ok = true
	return rules, ok, err
}

// Put writes the rules under the key's digest, dropping other digests of the template.
func (c *RedisCache) Put(ctx context.Context, key Key, rules *Rules) (err error) {
	var raw []byte
	raw, err = json.Marshal(rules)
	if err != nil {
		err = errors.Wrap(err, "failed to encode style rules")
		return err
	}

	hashKey := c.hashKey(key)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) (pipeErr error) {
		pipe.Del(ctx, hashKey)
		pipe.HSet(ctx, hashKey, key.Digest, raw)
		if c.ttl > 0 {
			pipe.Expire(ctx, hashKey, c.ttl)
		}
		return pipeErr
	})
	if err != nil {
		err = errors.Wrap(err, "failed to write cached style rules")
		return err
	}
	return err
}

// Invalidate deletes the template's hash.
func (c *RedisCache) Invalidate(ctx context.Context, key Key) (err error) {
	err = c.rdb.Del(ctx, c.hashKey(key)).Err()
	if err != nil {
		err = errors.Wrap(err, "failed to invalidate cached style rules")
		return err
	}
	return err
}
