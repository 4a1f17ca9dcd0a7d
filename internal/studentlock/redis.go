package studentlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyStudentLock = "tuition:student:lock:%s"

	lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

	lockExtendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`
)

const (
	minRetryDelay = 10 * time.Millisecond
	maxRetryDelay = 250 * time.Millisecond
)

// RedisLocker holds per-student locks in Redis so that several API replicas and
// CLI runs against the same database serialize on the same keys.
type RedisLocker struct {
	client *redis.Client
	script *redis.Script
	extend *redis.Script
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisLocker {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		extend: redis.NewScript(lockExtendScript),
		ttl:    ttl,
		log:    log.Named("studentlock.redis"),
	}
}

func (l *RedisLocker) Backend() string { return "redis" }

// Lock takes the keys one by one in sorted order. The lease is renewed every
// ttl/3 from before the first key is taken until release, so keys taken early
// in a large cohort do not expire while later ones are still being acquired.
func (l *RedisLocker) Lock(ctx context.Context, studentIDs ...string) (func(), error) {
	if l == nil || l.client == nil {
		return nil, errors.New("lock client not configured")
	}

	keys := normalizeKeys(studentIDs)
	held := newLease(l.ttl/3, l.extendKey, l.release, l.log)

	for _, key := range keys {
		token, err := l.acquire(ctx, lockKey(key))
		if err != nil {
			held.Release()
			return nil, unavailable(key, err)
		}
		held.add(lockKey(key), token)
	}
	return held.Release, nil
}

func (l *RedisLocker) acquire(ctx context.Context, key string) (string, error) {
	delay := minRetryDelay
	for {
		token, ok, err := l.tryLock(ctx, key)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func (l *RedisLocker) tryLock(ctx context.Context, key string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

func (l *RedisLocker) extendKey(ctx context.Context, key, token string) (bool, error) {
	n, err := l.extend.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// lease tracks the keys held by one Lock call and keeps their TTL alive.
type lease struct {
	interval time.Duration
	extend   func(ctx context.Context, key, token string) (bool, error)
	release  func(ctx context.Context, key, token string) error
	log      *zap.Logger

	mu     sync.Mutex
	keys   []string
	tokens map[string]string

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newLease(
	interval time.Duration,
	extend func(ctx context.Context, key, token string) (bool, error),
	release func(ctx context.Context, key, token string) error,
	log *zap.Logger,
) *lease {
	if interval <= 0 {
		interval = time.Second
	}
	ls := &lease{
		interval: interval,
		extend:   extend,
		release:  release,
		log:      log,
		tokens:   map[string]string{},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go ls.keepAlive()
	return ls
}

func (ls *lease) add(key, token string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.keys = append(ls.keys, key)
	ls.tokens[key] = token
}

func (ls *lease) snapshot() ([]string, map[string]string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	keys := append([]string(nil), ls.keys...)
	tokens := make(map[string]string, len(ls.tokens))
	for k, v := range ls.tokens {
		tokens[k] = v
	}
	return keys, tokens
}

func (ls *lease) keepAlive() {
	defer close(ls.done)
	ticker := time.NewTicker(ls.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ls.stop:
			return
		case <-ticker.C:
			keys, tokens := ls.snapshot()
			ctx, cancel := context.WithTimeout(context.Background(), ls.interval)
			for _, key := range keys {
				ok, err := ls.extend(ctx, key, tokens[key])
				switch {
				case err != nil:
					ls.log.Warn("failed to extend student lock", zap.String("key", key), zap.Error(err))
				case !ok:
					ls.log.Warn("student lock expired before release", zap.String("key", key))
				}
			}
			cancel()
		}
	}
}

// Release stops the renewal and deletes the keys in reverse order. Only the
// first call has any effect.
func (ls *lease) Release() {
	ls.once.Do(func() {
		close(ls.stop)
		<-ls.done

		// release must outlive a cancelled request context
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		keys, tokens := ls.snapshot()
		for i := len(keys) - 1; i >= 0; i-- {
			if err := ls.release(ctx, keys[i], tokens[keys[i]]); err != nil {
				ls.log.Warn("failed to release student lock", zap.String("key", keys[i]), zap.Error(err))
			}
		}
	})
}

func lockKey(studentID string) string {
	return fmt.Sprintf(keyStudentLock, studentID)
}

var _ Locker = (*RedisLocker)(nil)
