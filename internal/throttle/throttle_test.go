package throttle

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/embershare/ember/internal/index"
	"github.com/embershare/ember/internal/logging"
)

func TestBlockedErrorMessage(t *testing.T) {
	err := &BlockedError{Scope: ScopeDownload, RetryAfterSeconds: 42}
	want := "download temporarily blocked, retry after 42 seconds"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKeyLayout(t *testing.T) {
	if got := failsKey(ScopePreview, "10.0.0.9"); got != "fails:preview:10.0.0.9" {
		t.Errorf("failsKey() = %q", got)
	}
	if got := blockKey(ScopeStatus, "10.0.0.9"); got != "block:status:10.0.0.9" {
		t.Errorf("blockKey() = %q", got)
	}
	if got := uploadWindowKey("10.0.0.9"); got != "uploads:10.0.0.9" {
		t.Errorf("uploadWindowKey() = %q", got)
	}
}

func TestCeilSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int64
	}{
		{900 * time.Millisecond, 1},
		{1 * time.Second, 1},
		{1*time.Second + time.Millisecond, 2},
		{15 * time.Minute, 900},
	}
	for _, tt := range tests {
		if got := ceilSeconds(tt.d); got != tt.want {
			t.Errorf("ceilSeconds(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}

// newLiveThrottle skips unless EMBER_TEST_REDIS_URL names a reachable
// Redis, then returns a throttle with a threshold of 3 misses.
func newLiveThrottle(t *testing.T) *Throttle {
	t.Helper()
	url := os.Getenv("EMBER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("EMBER_TEST_REDIS_URL not set")
	}
	rdb, err := index.Connect(url)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, logging.NewDefaultConsoleLogger(), 3, time.Minute, 2)
}

func TestLiveMissesTriggerBlock(t *testing.T) {
	th := newLiveThrottle(t)
	ctx := context.Background()
	ip := "test-" + uuid.NewString()

	if err := th.Check(ctx, ScopeDownload, ip); err != nil {
		t.Fatalf("Check() before misses error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := th.RegisterMiss(ctx, ScopeDownload, ip); err != nil {
			t.Fatalf("RegisterMiss() error: %v", err)
		}
	}

	err := th.Check(ctx, ScopeDownload, ip)
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("Check() after threshold = %v, want BlockedError", err)
	}
	if blocked.RetryAfterSeconds <= 0 || blocked.RetryAfterSeconds > 60 {
		t.Errorf("RetryAfterSeconds = %d, want within (0, 60]", blocked.RetryAfterSeconds)
	}

	// A block earned in one scope covers the other lookup scopes too.
	if err := th.Check(ctx, ScopeStatus, ip); !errors.As(err, new(*BlockedError)) {
		t.Errorf("Check() on status scope = %v, want BlockedError", err)
	}

	// Counters stay per-scope: misses elsewhere start from zero.
	n, err := th.rdb.Get(ctx, failsKey(ScopePreview, ip)).Result()
	if err == nil {
		t.Errorf("preview fails counter = %s, want absent", n)
	}
}

func TestLiveUploadWindow(t *testing.T) {
	th := newLiveThrottle(t)
	ctx := context.Background()
	ip := "test-" + uuid.NewString()

	for i := 0; i < 2; i++ {
		if err := th.AllowUpload(ctx, ip); err != nil {
			t.Fatalf("AllowUpload() #%d error: %v", i+1, err)
		}
	}

	err := th.AllowUpload(ctx, ip)
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("AllowUpload() over limit = %v, want BlockedError", err)
	}
	if blocked.Scope != ScopeUpload {
		t.Errorf("Scope = %q, want %q", blocked.Scope, ScopeUpload)
	}
	if blocked.RetryAfterSeconds <= 0 || blocked.RetryAfterSeconds > 60 {
		t.Errorf("RetryAfterSeconds = %d, want within (0, 60]", blocked.RetryAfterSeconds)
	}
}
