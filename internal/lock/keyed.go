package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyTTL = 30 * time.Second
	defaultPoll   = 50 * time.Millisecond
)

// Locker выдаёт эксклюзивную блокировку по ключу. Lock блокируется до захвата или отмены ctx.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyedMutex: блокировки по ключу внутри процесса.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot)}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	m.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				m.release(key, s)
			})
		}, nil
	case <-ctx.Done():
		m.release(key, s)
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) release(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

// RedisLocker: межпроцессная блокировка по ключу: SETNX с токеном владельца и TTL.
type RedisLocker struct {
	store  Store
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

func NewRedisLocker(store Store, prefix string, ttl time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis store required for locker")
	}
	if ttl <= 0 {
		ttl = defaultKeyTTL
	}
	return &RedisLocker{store: store, prefix: prefix, ttl: ttl, poll: defaultPoll}, nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	owner := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		ok, err := l.store.SetNX(ctx, fullKey, owner, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("setnx %s: %w", fullKey, err)
		}
		if ok {
			return func() { l.release(fullKey, owner) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// release удаляет ключ, только если им всё ещё владеем мы.
func (l *RedisLocker) release(key, owner string) {
	// ctx запроса мог быть уже отменён
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	value, err := l.store.Get(ctx, key)
	if err != nil || value != owner {
		return
	}
	_ = l.store.Del(ctx, key)
}

// Chain захватывает блокировки по порядку и отпускает в обратном.
type Chain []Locker

func (c Chain) Lock(ctx context.Context, key string) (func(), error) {
	unlocks := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, l := range c {
		if l == nil {
			continue
		}
		unlock, err := l.Lock(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return releaseAll, nil
}

// Mutex: неблокирующая эксклюзивная блокировка одного ресурса (периодические задачи).
type Mutex interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisMutex реализует Mutex через SETNX + TTL.
type RedisMutex struct {
	store Store
	key   string
	ttl   time.Duration
	owner string
}

func NewRedisMutex(store Store, key string, ttl time.Duration) (*RedisMutex, error) {
	if store == nil {
		return nil, errors.New("redis store required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultKeyTTL
	}
	return &RedisMutex{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisMutex) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release освобождает блокировку, только если владелец не сменился.
func (l *RedisMutex) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.store.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			l.owner = ""
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		l.owner = ""
		return nil
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}

// LocalMutex: Mutex внутри одного процесса, когда Redis не настроен.
type LocalMutex struct {
	mu sync.Mutex
}

func (l *LocalMutex) Acquire(context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

func (l *LocalMutex) Release(context.Context) error {
	l.mu.Unlock()
	return nil
}
