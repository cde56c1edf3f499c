// Package registry provides a Redis-backed seen-id set so that several
// invocations can enforce cell id uniqueness within one shared run.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeworkout/nbfix/internal/cellid"
	"github.com/redis/go-redis/v9"
)

// SeenIDsKey returns the Redis key holding a run's claimed cell ids.
// Pattern: nbfix:{namespace}:run:{run_id}:ids
func SeenIDsKey(namespace, runID string) string {
	return fmt.Sprintf("nbfix:%s:run:%s:ids", namespace, runID)
}

// RedisSet implements cellid.Set on a Redis hash mapping each claimed id to
// the file that claimed it (see cellid.WithOwner). HSETNX makes claims
// atomic across processes.
//
// An id claimed by the file currently being repaired is accepted once per
// invocation, so repairing the same files again under one run id keeps
// their ids. An empty owner never matches a claim.
type RedisSet struct {
	rdb      *redis.Client
	key      string
	ttl      time.Duration
	readOnly bool

	// ids accepted by this invocation
	local map[string]struct{}
	// accepted ids that exist only in local (read-only mode)
	pending int
}

// NewRedisSet creates a set for the given namespace and run.
// A zero ttl leaves the key without expiry.
func NewRedisSet(redisOpts *redis.Options, namespace, runID string, ttl time.Duration) (*RedisSet, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	if runID == "" {
		return nil, fmt.Errorf("run id cannot be empty")
	}

	return &RedisSet{
		rdb:   redis.NewClient(redisOpts),
		key:   SeenIDsKey(namespace, runID),
		ttl:   ttl,
		local: make(map[string]struct{}),
	}, nil
}

// SetReadOnly stops the set from writing to Redis. Claims made by other
// invocations are still honored; new ids are only remembered locally.
// Used for dry runs so that previewing a run never changes it.
func (s *RedisSet) SetReadOnly(readOnly bool) {
	s.readOnly = readOnly
}

// Key returns the Redis key backing this set.
func (s *RedisSet) Key() string {
	return s.key
}

// Ping verifies Redis connectivity.
func (s *RedisSet) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisSet) Close() error {
	return s.rdb.Close()
}

// Add claims id for the owner in ctx and reports whether the caller may
// use it.
func (s *RedisSet) Add(ctx context.Context, id string) (bool, error) {
	if _, ok := s.local[id]; ok {
		return false, nil
	}
	owner := cellid.OwnerFrom(ctx)

	claimed, holder, err := s.claim(ctx, id, owner)
	if err != nil {
		return false, err
	}
	if !claimed && (owner == "" || holder != owner) {
		return false, nil
	}

	s.local[id] = struct{}{}
	if claimed && s.readOnly {
		s.pending++
	}
	return true, nil
}

// claim tries to record id for owner. When the id is already claimed it
// returns the current holder.
func (s *RedisSet) claim(ctx context.Context, id, owner string) (bool, string, error) {
	if !s.readOnly {
		ok, err := s.rdb.HSetNX(ctx, s.key, id, owner).Result()
		if err != nil {
			return false, "", fmt.Errorf("failed to add cell id to Redis: %w", err)
		}
		if ok {
			if s.ttl > 0 {
				if err := s.rdb.Expire(ctx, s.key, s.ttl).Err(); err != nil {
					return false, "", fmt.Errorf("failed to set expiry on %s: %w", s.key, err)
				}
			}
			return true, owner, nil
		}
	}

	holder, err := s.rdb.HGet(ctx, s.key, id).Result()
	if errors.Is(err, redis.Nil) {
		// Only reachable in read-only mode, or if the key was dropped meanwhile
		return true, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("failed to look up cell id in Redis: %w", err)
	}
	return false, holder, nil
}

// Contains reports whether id has been claimed by anyone in the run.
func (s *RedisSet) Contains(ctx context.Context, id string) (bool, error) {
	if _, ok := s.local[id]; ok {
		return true, nil
	}
	ok, err := s.rdb.HExists(ctx, s.key, id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to query cell id in Redis: %w", err)
	}
	return ok, nil
}

// Len returns the number of claimed ids, including those a read-only set
// holds locally.
func (s *RedisSet) Len(ctx context.Context) (int, error) {
	n, err := s.rdb.HLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count cell ids in Redis: %w", err)
	}
	return int(n) + s.pending, nil
}

// Owner returns the file that claimed id, if any.
func (s *RedisSet) Owner(ctx context.Context, id string) (string, bool, error) {
	holder, err := s.rdb.HGet(ctx, s.key, id).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up cell id in Redis: %w", err)
	}
	return holder, true, nil
}

// Drop deletes the run's key.
func (s *RedisSet) Drop(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", s.key, err)
	}
	return nil
}
