package index

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/embershare/ember/internal/constants"
	"github.com/embershare/ember/internal/logging"
)

func TestConnectRejectsBadScheme(t *testing.T) {
	tests := []string{
		"",
		"localhost:6379",
		"rediss://localhost:6379",
		"http://localhost:6379",
		"unix:///tmp/redis.sock",
	}
	for _, url := range tests {
		if _, err := Connect(url); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Connect(%q) error = %v, want ErrInvalidURL", url, err)
		}
	}
}

func TestConnectAppliesPoolSettings(t *testing.T) {
	// No network traffic happens here; the client dials lazily.
	rdb, err := Connect("redis://localhost:6379/0")
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer rdb.Close()

	opts := rdb.Options()
	if opts.PoolSize != constants.IndexPoolSize {
		t.Errorf("PoolSize = %d, want %d", opts.PoolSize, constants.IndexPoolSize)
	}
	if opts.DialTimeout != constants.IndexDialTimeout {
		t.Errorf("DialTimeout = %v, want %v", opts.DialTimeout, constants.IndexDialTimeout)
	}
	if opts.ConnMaxIdleTime != constants.IndexConnMaxIdleTime {
		t.Errorf("ConnMaxIdleTime = %v, want %v", opts.ConnMaxIdleTime, constants.IndexConnMaxIdleTime)
	}
}

func TestKeyLayout(t *testing.T) {
	if got := uploadKey("calm-ocean-lamp"); got != "upload:calm-ocean-lamp" {
		t.Errorf("uploadKey() = %q", got)
	}
	if got := usesKey("calm-ocean-lamp"); got != "upload:calm-ocean-lamp:uses" {
		t.Errorf("usesKey() = %q", got)
	}
	if got := previewedKey("calm-ocean-lamp"); got != "upload:calm-ocean-lamp:previewed" {
		t.Errorf("previewedKey() = %q", got)
	}
}

// newLiveIndex returns an Index backed by the Redis named in
// EMBER_TEST_REDIS_URL, or skips the test when none is configured.
func newLiveIndex(t *testing.T) *Index {
	t.Helper()
	url := os.Getenv("EMBER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("EMBER_TEST_REDIS_URL not set")
	}
	rdb, err := Connect(url)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, logging.NewDefaultConsoleLogger())
}

// liveRecord builds a unique record so parallel test runs cannot collide.
func liveRecord(uses int) (string, *Record) {
	id := "test-" + uuid.NewString()
	now := time.Now().UTC()
	return id, &Record{
		Filename:      "live.txt",
		Size:          5,
		MimeType:      "text/plain",
		SHA256:        strings.Repeat("1", 64),
		CreatedAt:     now,
		ExpiryAt:      now.Add(time.Minute),
		EncryptionKey: "a2V5",
		Uses:          uses,
	}
}

func TestLiveSaveGetDelete(t *testing.T) {
	ix := newLiveIndex(t)
	ctx := context.Background()
	id, rec := liveRecord(3)

	if err := ix.Save(ctx, id, rec, time.Minute); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := ix.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Uses != 3 || got.Previewed {
		t.Errorf("Uses/Previewed = %d/%v, want 3/false", got.Uses, got.Previewed)
	}
	if got.EncryptionKey != rec.EncryptionKey {
		t.Errorf("EncryptionKey = %q, want %q", got.EncryptionKey, rec.EncryptionKey)
	}

	ttl, err := ix.TTL(ctx, id)
	if err != nil {
		t.Fatalf("TTL() error: %v", err)
	}
	if ttl <= 0 || ttl > 60 {
		t.Errorf("TTL() = %d, want within (0, 60]", ttl)
	}

	deleted, err := ix.Delete(ctx, id)
	if err != nil || !deleted {
		t.Fatalf("Delete() = (%v, %v), want (true, nil)", deleted, err)
	}
	if _, err := ix.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if ttl, _ := ix.TTL(ctx, id); ttl != -1 {
		t.Errorf("TTL() after delete = %d, want -1", ttl)
	}
}

func TestLiveDecrementContract(t *testing.T) {
	ix := newLiveIndex(t)
	ctx := context.Background()

	if n, err := ix.DecrementUses(ctx, "test-absent-"+uuid.NewString()); err != nil || n != -2 {
		t.Errorf("DecrementUses(absent) = (%d, %v), want (-2, nil)", n, err)
	}

	id, rec := liveRecord(2)
	if err := ix.Save(ctx, id, rec, time.Minute); err != nil {
		t.Fatal(err)
	}
	defer ix.Delete(ctx, id)

	for _, want := range []int{1, 0, -1, -1} {
		n, err := ix.DecrementUses(ctx, id)
		if err != nil {
			t.Fatalf("DecrementUses() error: %v", err)
		}
		if n != want {
			t.Errorf("DecrementUses() = %d, want %d", n, want)
		}
	}
}

func TestLiveDecrementSingleWinner(t *testing.T) {
	ix := newLiveIndex(t)
	ctx := context.Background()

	id, rec := liveRecord(1)
	if err := ix.Save(ctx, id, rec, time.Minute); err != nil {
		t.Fatal(err)
	}
	defer ix.Delete(ctx, id)

	const callers = 8
	results := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := ix.DecrementUses(ctx, id)
			if err != nil {
				n = -100
			}
			results[i] = n
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, n := range results {
		switch n {
		case 0:
			winners++
		case -1:
		default:
			t.Errorf("unexpected decrement result %d", n)
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}

func TestLivePreviewOnce(t *testing.T) {
	ix := newLiveIndex(t)
	ctx := context.Background()

	if first, err := ix.MarkPreviewedOnce(ctx, "test-absent-"+uuid.NewString()); err != nil || first {
		t.Errorf("MarkPreviewedOnce(absent) = (%v, %v), want (false, nil)", first, err)
	}

	id, rec := liveRecord(1)
	if err := ix.Save(ctx, id, rec, time.Minute); err != nil {
		t.Fatal(err)
	}
	defer ix.Delete(ctx, id)

	const callers = 8
	results := make([]bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			first, err := ix.MarkPreviewedOnce(ctx, id)
			results[i] = err == nil && first
		}(i)
	}
	wg.Wait()

	firsts := 0
	for _, ok := range results {
		if ok {
			firsts++
		}
	}
	if firsts != 1 {
		t.Errorf("first-caller count = %d, want exactly 1", firsts)
	}

	// The flag subkey must keep its TTL through the flip.
	d, err := ix.rdb.TTL(ctx, previewedKey(id)).Result()
	if err != nil || d <= 0 {
		t.Errorf("previewed key TTL after flip = (%v, %v), want positive", d, err)
	}
}
