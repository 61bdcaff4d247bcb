package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ConnectRedis opens the client shared by the rate limiter. An empty addr
// returns nil without error: the limiter then counts in memory.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// redisWindow is a fixed-window counter using INCR/EXPIRE.
// key format: rl:<window_seconds>:<identifier>
type redisWindow struct {
	client *redis.Client
	window time.Duration
}

func (w *redisWindow) hit(ctx context.Context, ident string) (int64, error) {
	key := "rl:" + strconv.FormatInt(int64(w.window.Seconds()), 10) + ":" + ident

	pipe := w.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	// A key without a TTL would never reset, whether this is its first
	// increment or an earlier EXPIRE was lost.
	if ttl.Val() < 0 {
		if err := w.client.Expire(ctx, key, w.window).Err(); err != nil {
			return incr.Val(), fmt.Errorf("redis expire %s: %w", key, err)
		}
	}
	return incr.Val(), nil
}
