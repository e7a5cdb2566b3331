// Package throttle tracks per-address lookup failures in Redis and
// blocks addresses that keep probing identifiers that do not exist. It
// also enforces the fixed-window upload rate limit.
package throttle

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/embershare/ember/internal/constants"
	"github.com/embershare/ember/internal/logging"
)

// Scope identifies an endpoint family with its own failure counters.
type Scope string

const (
	// ScopeDownload covers GET /download/{key}.
	ScopeDownload Scope = "download"

	// ScopePreview covers GET /preview/{key}.
	ScopePreview Scope = "preview"

	// ScopeStatus covers GET /status/{key}.
	ScopeStatus Scope = "status"

	// ScopeUpload is used only in BlockedError for the upload window.
	ScopeUpload Scope = "upload"
)

// BlockedError tells a client how long to back off. Mapped to 429.
type BlockedError struct {
	Scope             Scope
	RetryAfterSeconds int64
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s temporarily blocked, retry after %d seconds", e.Scope, e.RetryAfterSeconds)
}

// Throttle shares the service Redis client with the index.
type Throttle struct {
	rdb              *redis.Client
	log              *logging.Logger
	failureThreshold int64
	blockWindow      time.Duration
	uploadLimit      int64
}

// New configures the throttle. threshold is the failure count that
// triggers a block, blockWindow how long the block lasts, uploadLimit
// the number of uploads allowed per address per minute.
func New(rdb *redis.Client, log *logging.Logger, threshold int, blockWindow time.Duration, uploadLimit int) *Throttle {
	return &Throttle{
		rdb:              rdb,
		log:              log,
		failureThreshold: int64(threshold),
		blockWindow:      blockWindow,
		uploadLimit:      int64(uploadLimit),
	}
}

func failsKey(scope Scope, ip string) string {
	return fmt.Sprintf("%s%s:%s", constants.FailsKeyPrefix, scope, ip)
}

func blockKey(scope Scope, ip string) string {
	return fmt.Sprintf("%s%s:%s", constants.BlockKeyPrefix, scope, ip)
}

func uploadWindowKey(ip string) string {
	return constants.UploadWindowKeyPrefix + ip
}

// blockScopes are the lookup scopes whose block flags gate requests.
var blockScopes = []Scope{ScopeDownload, ScopePreview, ScopeStatus}

// Check returns a BlockedError while the address holds an active block
// in any lookup scope: a block earned probing downloads also covers
// preview and status. The retry hint is the longest remaining window.
func (t *Throttle) Check(ctx context.Context, scope Scope, ip string) error {
	pipe := t.rdb.Pipeline()
	cmds := make([]*redis.DurationCmd, len(blockScopes))
	for i, sc := range blockScopes {
		cmds[i] = pipe.TTL(ctx, blockKey(sc, ip))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to check blocks for %s: %w", ip, err)
	}

	var worst time.Duration
	for _, cmd := range cmds {
		if d := cmd.Val(); d > worst {
			worst = d
		}
	}
	if worst > 0 {
		return &BlockedError{Scope: scope, RetryAfterSeconds: ceilSeconds(worst)}
	}
	return nil
}

// RegisterMiss counts a failed lookup. Every miss restarts the counter's
// 600 s window; reaching the threshold sets the block flag for the
// configured window.
func (t *Throttle) RegisterMiss(ctx context.Context, scope Scope, ip string) error {
	fk := failsKey(scope, ip)

	fails, err := t.rdb.Incr(ctx, fk).Result()
	if err != nil {
		return fmt.Errorf("failed to count miss for %s/%s: %w", scope, ip, err)
	}
	if err := t.rdb.Expire(ctx, fk, constants.FailWindow).Err(); err != nil {
		return fmt.Errorf("failed to arm fail window for %s/%s: %w", scope, ip, err)
	}

	if fails >= t.failureThreshold {
		if err := t.rdb.SetEx(ctx, blockKey(scope, ip), "1", t.blockWindow).Err(); err != nil {
			return fmt.Errorf("failed to set block for %s/%s: %w", scope, ip, err)
		}
		t.log.Error().
			Str("alert", "brute_force_block").
			Str("scope", string(scope)).
			Str("client_ip", ip).
			Int64("fails", fails).
			Dur("block_window", t.blockWindow).
			Msg("Address blocked after repeated failed lookups")
	}
	return nil
}

// AllowUpload enforces the per-address fixed window. The first upload in
// a window arms the expiry; ExpireNX also heals windows that lost their
// TTL to a crash between the two commands.
func (t *Throttle) AllowUpload(ctx context.Context, ip string) error {
	wk := uploadWindowKey(ip)

	pipe := t.rdb.Pipeline()
	countCmd := pipe.Incr(ctx, wk)
	pipe.ExpireNX(ctx, wk, constants.UploadWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to count upload for %s: %w", ip, err)
	}

	if countCmd.Val() > t.uploadLimit {
		d, err := t.rdb.TTL(ctx, wk).Result()
		if err != nil || d <= 0 {
			d = constants.UploadWindow
		}
		return &BlockedError{Scope: ScopeUpload, RetryAfterSeconds: ceilSeconds(d)}
	}
	return nil
}

func ceilSeconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}
