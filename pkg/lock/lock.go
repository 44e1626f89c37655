package lock

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrTimeout is returned when max_wait elapses without acquiring the lock.
	ErrTimeout = errors.New("lock: acquisition timed out")
	// ErrNotHeld is returned by Release when the key no longer carries our
	// token. Callers log it and move on; mutual exclusion was already lost.
	ErrNotHeld = errors.New("lock: not held by this token")
)

// Lua script for atomic compare-and-delete release. DEL must only fire
// when the stored token is still ours.
const luaCompareAndDelete = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`

// Store is the subset of Redis commands the lock needs. *redis.Client
// satisfies it.
type Store interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd
	ScriptLoad(ctx context.Context, script string) *redis.StringCmd
}

// Locker provides TTL-bounded, owner-verified mutual exclusion over
// string keys backed by a Redis-like store.
type Locker struct {
	store Store
}

// NewLocker creates a new Locker
func NewLocker(store Store) *Locker {
	return &Locker{store: store}
}

// Acquire writes key with a fresh owner token iff absent, with expiration
// ttl. On contention it retries with jittered backoff no faster than
// retryInterval until maxWait elapses, then returns ErrTimeout.
func (l *Locker) Acquire(ctx context.Context, key string, ttl, maxWait, retryInterval time.Duration) (string, error) {
	token := uuid.New().String()
	deadline := time.Now().Add(maxWait)

	for {
		ok, err := l.store.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", fmt.Errorf("lock: setnx %s: %w", key, err)
		}
		if ok {
			return token, nil
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w: %s", ErrTimeout, key)
		}

		// Sleep retryInterval plus up to 50% jitter so contenders spread out.
		wait := retryInterval + time.Duration(rand.Int63n(int64(retryInterval)/2+1))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Release deletes key iff its current value equals token, as one server-side
// unit. Lost ownership yields ErrNotHeld, never a stray delete.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	result, err := l.store.EvalSha(ctx, luaScriptSHA(luaCompareAndDelete), []string{key}, token).Result()
	if err != nil {
		// Script not cached on the server yet; fall back to Eval.
		result, err = l.store.Eval(ctx, luaCompareAndDelete, []string{key}, token).Result()
		if err != nil {
			return fmt.Errorf("lock: release %s: %w", key, err)
		}
	}

	deleted, ok := result.(int64)
	if !ok {
		return fmt.Errorf("lock: unexpected release result %T", result)
	}
	if deleted == 0 {
		return ErrNotHeld
	}
	return nil
}

// PreloadScripts loads the release script into the store's script cache.
func (l *Locker) PreloadScripts(ctx context.Context) error {
	if _, err := l.store.ScriptLoad(ctx, luaCompareAndDelete).Result(); err != nil {
		return fmt.Errorf("lock: script load: %w", err)
	}
	return nil
}

// MultiLock holds a set of acquired locks, released in reverse order.
type MultiLock struct {
	locker *Locker
	keys   []string
	tokens []string
}

// AcquireAll acquires every key in lexicographic order. The global order
// prevents circular waits between callers with overlapping key sets. On any
// failure every already-acquired lock is released in reverse order and the
// whole attempt fails.
func (l *Locker) AcquireAll(ctx context.Context, keys []string, ttl, maxWait, retryInterval time.Duration) (*MultiLock, error) {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	ml := &MultiLock{locker: l, keys: make([]string, 0, len(sorted)), tokens: make([]string, 0, len(sorted))}
	for _, key := range sorted {
		token, err := l.Acquire(ctx, key, ttl, maxWait, retryInterval)
		if err != nil {
			ml.Release(context.WithoutCancel(ctx))
			return nil, err
		}
		ml.keys = append(ml.keys, key)
		ml.tokens = append(ml.tokens, token)
	}
	return ml, nil
}

// Release releases every held lock in reverse acquisition order. Locks whose
// ownership lapsed are skipped silently.
func (ml *MultiLock) Release(ctx context.Context) {
	for i := len(ml.keys) - 1; i >= 0; i-- {
		if err := ml.locker.Release(ctx, ml.keys[i], ml.tokens[i]); err != nil && !errors.Is(err, ErrNotHeld) {
			// Ownership is TTL-bounded either way; nothing more to do here.
			continue
		}
	}
	ml.keys = ml.keys[:0]
	ml.tokens = ml.tokens[:0]
}

// Keys returns the held keys in acquisition order.
func (ml *MultiLock) Keys() []string {
	return ml.keys
}

// luaScriptSHA returns the SHA1 digest EVALSHA addresses a script by.
func luaScriptSHA(script string) string {
	sum := sha1.Sum([]byte(script))
	return hex.EncodeToString(sum[:])
}
