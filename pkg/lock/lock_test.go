package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store with compare-and-delete release semantics.
type fakeStore struct {
	mu           sync.Mutex
	data         map[string]string
	held         map[string]bool // keys that refuse SetNX
	acquireOrder []string
	releaseOrder []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data: make(map[string]string),
		held: make(map[string]bool),
	}
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return redis.NewBoolResult(false, nil)
	}
	if _, exists := f.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	f.acquireOrder = append(f.acquireOrder, key)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := keys[0]
	token := args[0].(string)
	if f.data[key] == token {
		delete(f.data, key)
		f.releaseOrder = append(f.releaseOrder, key)
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeStore) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("NOSCRIPT No matching script"))
}

func (f *fakeStore) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult(luaScriptSHA(script), nil)
}

func TestAcquireAndRelease(t *testing.T) {
	store := newFakeStore()
	locker := NewLocker(store)

	token, err := locker.Acquire(context.Background(), "seat:1", time.Second, 100*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, token, store.data["seat:1"])

	err = locker.Release(context.Background(), "seat:1", token)
	assert.NoError(t, err)
	assert.NotContains(t, store.data, "seat:1")
}

func TestAcquireTimesOutUnderContention(t *testing.T) {
	store := newFakeStore()
	store.held["seat:1"] = true
	locker := NewLocker(store)

	start := time.Now()
	_, err := locker.Acquire(context.Background(), "seat:1", time.Second, 60*time.Millisecond, 10*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestReleaseNotOwned(t *testing.T) {
	store := newFakeStore()
	locker := NewLocker(store)

	token, err := locker.Acquire(context.Background(), "seat:1", time.Second, 100*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)

	err = locker.Release(context.Background(), "seat:1", "someone-else")
	assert.ErrorIs(t, err, ErrNotHeld)

	// The real owner can still release.
	assert.NoError(t, locker.Release(context.Background(), "seat:1", token))
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	store := newFakeStore()
	store.held["seat:1"] = true
	locker := NewLocker(store)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := locker.Acquire(ctx, "seat:1", time.Second, 10*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquireAllSortsKeys(t *testing.T) {
	store := newFakeStore()
	locker := NewLocker(store)

	ml, err := locker.AcquireAll(context.Background(),
		[]string{"seat:c", "seat:a", "seat:b"},
		time.Second, 100*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, []string{"seat:a", "seat:b", "seat:c"}, store.acquireOrder)

	ml.Release(context.Background())
	assert.Equal(t, []string{"seat:c", "seat:b", "seat:a"}, store.releaseOrder)
	assert.Empty(t, store.data)
}

func TestAcquireAllRollsBackOnFailure(t *testing.T) {
	store := newFakeStore()
	store.held["seat:b"] = true
	locker := NewLocker(store)

	_, err := locker.AcquireAll(context.Background(),
		[]string{"seat:c", "seat:a", "seat:b"},
		time.Second, 30*time.Millisecond, 10*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)

	// seat:a was acquired first, then seat:b failed; nothing may stay held.
	assert.Empty(t, store.data)
	assert.Equal(t, []string{"seat:a"}, store.acquireOrder)
	assert.Equal(t, []string{"seat:a"}, store.releaseOrder)
}
