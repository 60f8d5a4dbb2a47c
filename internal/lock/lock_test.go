package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return false, f.setErr
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeStore) set(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(context.Background(), "booking-1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, m.slots)
}

func TestKeyedMutex_DifferentKeysIndependent(t *testing.T) {
	m := NewKeyedMutex()
	unlockA, err := m.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := m.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_ContextCancel(t *testing.T) {
	m := NewKeyedMutex()
	unlock, err := m.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // повторный вызов безопасен
	assert.Empty(t, m.slots)
}

func TestRedisLocker_WaitsForRelease(t *testing.T) {
	store := newFakeStore()
	l, err := NewRedisLocker(store, "booking:", time.Minute)
	require.NoError(t, err)
	l.poll = 5 * time.Millisecond

	unlock, err := l.Lock(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, store.has("booking:1"))

	acquired := make(chan struct{})
	go func() {
		second, err := l.Lock(context.Background(), "1")
		if err == nil {
			second()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatalf("second lock acquired while first is held")
	case <-time.After(30 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second lock not acquired after release")
	}
	assert.False(t, store.has("booking:1"))
}

func TestRedisLocker_DoesNotDeleteForeignOwner(t *testing.T) {
	store := newFakeStore()
	l, err := NewRedisLocker(store, "", time.Minute)
	require.NoError(t, err)

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	// TTL истёк, ключ перехватил другой процесс
	store.set("k", "someone-else")
	unlock()
	assert.True(t, store.has("k"))
}

func TestRedisLocker_StoreError(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("conn refused")
	l, err := NewRedisLocker(store, "", time.Minute)
	require.NoError(t, err)

	_, err = l.Lock(context.Background(), "k")
	assert.ErrorIs(t, err, store.setErr)
}

func TestChain_ReleasesOnFailure(t *testing.T) {
	local := NewKeyedMutex()
	store := newFakeStore()
	store.setErr = errors.New("down")
	redisLocker, err := NewRedisLocker(store, "", time.Minute)
	require.NoError(t, err)

	_, err = Chain{local, redisLocker}.Lock(context.Background(), "k")
	require.Error(t, err)

	// локальная блокировка отпущена
	unlock, err := local.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
}

func TestRedisMutex_AcquireRelease(t *testing.T) {
	store := newFakeStore()
	first, err := NewRedisMutex(store, "sweep", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisMutex(store, "sweep", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, second.Release(context.Background()))
	assert.True(t, store.has("sweep"))

	require.NoError(t, first.Release(context.Background()))
	assert.False(t, store.has("sweep"))

	_, err = NewRedisMutex(store, "", time.Minute)
	assert.Error(t, err)
}

func TestLocalMutex(t *testing.T) {
	var m LocalMutex
	ok, _ := m.Acquire(context.Background())
	assert.True(t, ok)
	ok, _ = m.Acquire(context.Background())
	assert.False(t, ok)
	require.NoError(t, m.Release(context.Background()))
	ok, _ = m.Acquire(context.Background())
	assert.True(t, ok)
}
