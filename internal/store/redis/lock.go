package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultImportLockTTL bounds how long a crashed holder can block other instances.
const DefaultImportLockTTL = 2 * time.Minute

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ImportLocker serializes imports of a source across confsync instances
// sharing the same Redis.
type ImportLocker struct {
	client   *redis.Client
	ttl      time.Duration
	newToken func() string
}

func NewImportLocker(client *redis.Client, ttl time.Duration) *ImportLocker {
	if ttl <= 0 {
		ttl = DefaultImportLockTTL
	}
	return &ImportLocker{client: client, ttl: ttl, newToken: uuid.NewString}
}

// TryLock takes the lock for source. ok is false when another holder has it.
// The returned release is safe to call once the lease has expired.
func (l *ImportLocker) TryLock(ctx context.Context, source string) (release func(context.Context) error, ok bool, err error) {
	key := ImportLockKey(source)
	token := l.newToken()

	ok, err = l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire import lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release import lock: %w", err)
		}
		return nil
	}
	return release, true, nil
}
