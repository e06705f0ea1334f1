// Package cache names the Redis keys of the response cache and drops them
// when the data behind them changes.
package cache

import (
	"context"
	"crypto/sha1"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ShowsScope groups cached show listings.
const ShowsScope = "shows"

// SeatsScope groups cached seat maps and previews of the show on date.
func SeatsScope(date string) string { return "seats:" + date }

// Key builds "<prefix>:<scope>:<sha1 of tail>".  Requests that share a
// scope are invalidated together.
func Key(prefix, scope, tail string) string {
	sum := sha1.Sum([]byte(tail))
	if scope == "" {
		return fmt.Sprintf("%s:%x", prefix, sum[:])
	}
	return fmt.Sprintf("%s:%s:%x", prefix, scope, sum[:])
}

// scanCount is the COUNT hint passed to SCAN.
const scanCount = 100

// Invalidator deletes cached responses by scope.
type Invalidator struct {
	rdb    *redis.Client
	prefix string
}

// NewInvalidator returns an invalidator for keys written with prefix.  A nil
// client yields an invalidator that does nothing, matching a disabled
// cache.
func NewInvalidator(rdb *redis.Client, prefix string) *Invalidator {
	return &Invalidator{rdb: rdb, prefix: prefix}
}

// Invalidate removes every cached response of the given scopes.
func (i *Invalidator) Invalidate(ctx context.Context, scopes ...string) error {
	if i == nil || i.rdb == nil {
		return nil
	}
	for _, scope := range scopes {
		match := i.prefix + ":" + scope + ":*"
		var cursor uint64
		for {
			keys, next, err := i.rdb.Scan(ctx, cursor, match, scanCount).Result()
			if err != nil {
				return fmt.Errorf("scan %s: %w", match, err)
			}
			if len(keys) > 0 {
				if err := i.rdb.Del(ctx, keys...).Err(); err != nil {
					return fmt.Errorf("del %s: %w", match, err)
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	return nil
}
