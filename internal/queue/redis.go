package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const defaultPollInterval = time.Second

// RedisBackend stores delayed jobs in a sorted set scored by due time, so
// multiple service replicas can share one dispatch queue. Claiming is a
// ZRem race: whoever removes the member owns the job.
type RedisBackend struct {
	rdb          *redis.Client
	key          string
	clock        clockwork.Clock
	pollInterval time.Duration
}

func NewRedisBackend(addr, password string, db int, key string, clock clockwork.Clock) (*RedisBackend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Fail fast if connection is bad
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisBackend{
		rdb:          rdb,
		key:          key,
		clock:        clock,
		pollInterval: defaultPollInterval,
	}, nil
}

func (b *RedisBackend) Push(ctx context.Context, j Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return b.rdb.ZAdd(ctx, b.key, redis.Z{
		Score:  float64(j.RunAt.UnixMilli()),
		Member: string(data),
	}).Err()
}

func (b *RedisBackend) Pull(ctx context.Context) (Job, error) {
	for {
		now := strconv.FormatInt(b.clock.Now().UnixMilli(), 10)
		members, err := b.rdb.ZRangeByScore(ctx, b.key, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   now,
			Count: 1,
		}).Result()
		if err != nil && ctx.Err() != nil {
			return Job{}, ctx.Err()
		}

		if err == nil && len(members) > 0 {
			claimed, remErr := b.rdb.ZRem(ctx, b.key, members[0]).Result()
			if remErr == nil && claimed == 1 {
				var j Job
				if uErr := json.Unmarshal([]byte(members[0]), &j); uErr != nil {
					// A row we cannot decode would loop forever if left in
					// place; it is already removed, so drop it.
					continue
				}
				return j, nil
			}
			// Lost the claim race; look again immediately.
			continue
		}

		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case <-b.clock.After(b.pollInterval):
		}
	}
}

func (b *RedisBackend) Close() error { return b.rdb.Close() }
