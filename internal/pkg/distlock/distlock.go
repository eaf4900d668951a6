// Package distlock serializes import runs across service instances. Two
// concurrent runs writing the same destination table would interleave
// chunks and double-create the table, so a run takes a per-table lock
// before it touches the database.
package distlock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "voterbase:lock:"

// Lock is a non-blocking distributed lock. A Lock instance belongs to one
// goroutine; take a fresh one per run.
type Lock interface {
	// TryAcquire returns true when the caller now holds the lock.
	TryAcquire(ctx context.Context) (bool, error)
	// Release gives the lock back if this instance still owns it.
	Release(ctx context.Context) error
}

// ForTable picks the best available backend for a table lock: Redis when a
// client is wired, otherwise a Postgres advisory lock on the import
// database itself.
func ForTable(rdb *redis.Client, db *sql.DB, table string, ttl time.Duration) Lock {
	if rdb != nil {
		return NewRedisLock(rdb, table, ttl)
	}
	return NewAdvisoryLock(db, table)
}

// RedisLock implements Lock with SET NX and a TTL. The value is a random
// ownership token so Release can never drop a lock a crashed run lost and
// another instance re-took.
type RedisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

func NewRedisLock(client *redis.Client, name string, ttl time.Duration) *RedisLock {
	b := make([]byte, 16)
	rand.Read(b)
	return &RedisLock{
		client: client,
		key:    keyPrefix + name,
		token:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

func (l *RedisLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	return ok, nil
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

func (l *RedisLock) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Result()
	return err
}

// AdvisoryLock implements Lock with pg_try_advisory_lock. The lock is
// session scoped, so a dropped connection frees it much like a Redis TTL.
type AdvisoryLock struct {
	db     *sql.DB
	lockID int64
}

func NewAdvisoryLock(db *sql.DB, name string) *AdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(keyPrefix + name))
	return &AdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

func (l *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired)
	return acquired, err
}

func (l *AdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
