// Package index persists upload metadata in Redis. Every upload owns
// three subkeys sharing one TTL: upload:<id> (metadata hash),
// upload:<id>:uses (counter) and upload:<id>:previewed (flag). The TTL
// is the authoritative expiry clock; nothing outlives it.
package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/embershare/ember/internal/constants"
	"github.com/embershare/ember/internal/logging"
)

var (
	// ErrInvalidURL rejects index URLs that do not use the redis scheme.
	ErrInvalidURL = errors.New("index URL must start with redis://")

	// ErrNotFound reports that no record exists for an identifier.
	ErrNotFound = errors.New("upload record not found")
)

// decrementScript atomically consumes one use. Absent counter: -2.
// Positive counter: decrement, return the new value. Exhausted: -1.
// Two concurrent callers can never both observe the same positive value.
var decrementScript = redis.NewScript(`
local uses = redis.call('GET', KEYS[1])
if not uses then return -2 end
uses = tonumber(uses)
if uses > 0 then
    return redis.call('DECR', KEYS[1])
else
    return -1
end
`)

// previewScript flips the previewed flag false->true exactly once,
// keeping the key's TTL. The read and write happen in one script so two
// concurrent callers can never both be told they were first.
var previewScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then return 0 end
if cur == 'false' then
    redis.call('SET', KEYS[1], 'true', 'KEEPTTL')
    return 1
end
return 0
`)

// Connect validates the URL, dials Redis and applies the pool settings.
// The caller owns the returned client and shares it across consumers.
func Connect(url string) (*redis.Client, error) {
	if !strings.HasPrefix(url, "redis://") {
		return nil, ErrInvalidURL
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse index URL: %w", err)
	}
	opts.PoolSize = constants.IndexPoolSize
	opts.DialTimeout = constants.IndexDialTimeout
	opts.ConnMaxIdleTime = constants.IndexConnMaxIdleTime
	return redis.NewClient(opts), nil
}

// Index exposes the upload metadata operations on a shared Redis client.
type Index struct {
	rdb *redis.Client
	log *logging.Logger
}

// New wraps an established Redis client.
func New(rdb *redis.Client, log *logging.Logger) *Index {
	return &Index{rdb: rdb, log: log}
}

func uploadKey(id string) string {
	return constants.UploadKeyPrefix + id
}

func usesKey(id string) string {
	return uploadKey(id) + constants.UsesKeySuffix
}

func previewedKey(id string) string {
	return uploadKey(id) + constants.PreviewedKeySuffix
}

// Save writes all three subkeys and their TTLs in a single transaction.
// A record is either fully indexed or not indexed at all.
func (ix *Index) Save(ctx context.Context, id string, rec *Record, ttl time.Duration) error {
	pipe := ix.rdb.TxPipeline()
	pipe.HSet(ctx, uploadKey(id), rec.hashFields())
	pipe.Set(ctx, usesKey(id), rec.Uses, 0)
	pipe.Set(ctx, previewedKey(id), "false", 0)
	pipe.Expire(ctx, uploadKey(id), ttl)
	pipe.Expire(ctx, usesKey(id), ttl)
	pipe.Expire(ctx, previewedKey(id), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save index record for %q: %w", id, err)
	}

	ix.log.Debug().
		Str("identifier", id).
		Dur("ttl", ttl).
		Msg("Index record saved")
	return nil
}

// Get assembles the full record from all three subkeys in one pipeline.
// Returns ErrNotFound when the metadata hash is gone. A missing counter
// reads as 0 and a missing flag as false; the subkeys share a TTL, so
// that only happens mid-expiry.
func (ix *Index) Get(ctx context.Context, id string) (*Record, error) {
	pipe := ix.rdb.Pipeline()
	hashCmd := pipe.HGetAll(ctx, uploadKey(id))
	usesCmd := pipe.Get(ctx, usesKey(id))
	previewedCmd := pipe.Get(ctx, previewedKey(id))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read index record for %q: %w", id, err)
	}

	fields := hashCmd.Val()
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	uses := 0
	if s, err := usesCmd.Result(); err == nil {
		parsed, err := parseUses(s)
		if err != nil {
			return nil, fmt.Errorf("identifier %q: %w", id, err)
		}
		uses = parsed
	}
	previewed := previewedCmd.Val() == "true"

	rec, err := recordFromHash(fields, uses, previewed)
	if err != nil {
		return nil, fmt.Errorf("identifier %q: %w", id, err)
	}
	return rec, nil
}

// DecrementUses atomically consumes one use. See decrementScript for the
// return contract (-2 absent, -1 exhausted, else the new value).
func (ix *Index) DecrementUses(ctx context.Context, id string) (int, error) {
	n, err := decrementScript.Run(ctx, ix.rdb, []string{usesKey(id)}).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to decrement uses for %q: %w", id, err)
	}
	return n, nil
}

// MarkPreviewedOnce returns true exactly once per upload lifetime, false
// on every later call and when the upload is gone.
func (ix *Index) MarkPreviewedOnce(ctx context.Context, id string) (bool, error) {
	n, err := previewScript.Run(ctx, ix.rdb, []string{previewedKey(id)}).Int()
	if err != nil {
		return false, fmt.Errorf("failed to mark %q previewed: %w", id, err)
	}
	return n == 1, nil
}

// TTL returns the remaining lifetime in whole seconds, or -1 when the
// record is absent.
func (ix *Index) TTL(ctx context.Context, id string) (int64, error) {
	d, err := ix.rdb.TTL(ctx, uploadKey(id)).Result()
	if err != nil {
		return -1, fmt.Errorf("failed to read TTL for %q: %w", id, err)
	}
	secs := int64(d.Seconds())
	if secs <= 0 {
		return -1, nil
	}
	return secs, nil
}

// Exists reports whether the metadata hash is present.
func (ix *Index) Exists(ctx context.Context, id string) (bool, error) {
	n, err := ix.rdb.Exists(ctx, uploadKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to probe identifier %q: %w", id, err)
	}
	return n > 0, nil
}

// Delete removes all three subkeys. Reports whether anything was
// deleted; calling it on an absent record is fine.
func (ix *Index) Delete(ctx context.Context, id string) (bool, error) {
	n, err := ix.rdb.Del(ctx, uploadKey(id), usesKey(id), previewedKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete index record for %q: %w", id, err)
	}
	return n > 0, nil
}

// SetSchedulerHeartbeat records reaper liveness for the health endpoint.
func (ix *Index) SetSchedulerHeartbeat(ctx context.Context, t time.Time) error {
	if err := ix.rdb.Set(ctx, constants.SchedulerHeartbeatKey, t.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("failed to write scheduler heartbeat: %w", err)
	}
	return nil
}

// SchedulerHeartbeat returns the last recorded heartbeat time, or the
// zero time when none has been written yet.
func (ix *Index) SchedulerHeartbeat(ctx context.Context) (time.Time, error) {
	s, err := ix.rdb.Get(ctx, constants.SchedulerHeartbeatKey).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read scheduler heartbeat: %w", err)
	}
	return parseStoredTime(s)
}

// SetLastCleanup records the completion time of a reaper cycle.
func (ix *Index) SetLastCleanup(ctx context.Context, t time.Time) error {
	if err := ix.rdb.Set(ctx, constants.LastCleanupKey, t.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("failed to write last cleanup time: %w", err)
	}
	return nil
}

// Ping verifies the index connection.
func (ix *Index) Ping(ctx context.Context) error {
	if err := ix.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("index unreachable: %w", err)
	}
	return nil
}

func parseUses(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("corrupt uses value %q: %w", s, err)
	}
	return n, nil
}
