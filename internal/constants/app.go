package constants

import (
	"time"
)

// Upload limits
const (
	// DefaultMaxFileSize - maximum accepted blob size unless overridden (1 MiB)
	// Blobs are read fully into memory for hashing and encryption, so this cap
	// bounds per-request memory as well as disk usage.
	DefaultMaxFileSize = 1 * 1024 * 1024

	// MinExpiryMinutes / MaxExpiryMinutes - accepted range for the expiry form field
	MinExpiryMinutes = 1
	MaxExpiryMinutes = 60

	// DefaultExpiryMinutes - applied when the expiry field is omitted
	DefaultExpiryMinutes = 10

	// MinUses / MaxUses - accepted range for the download-count form field
	MinUses = 1
	MaxUses = 5

	// DefaultUses - applied when the uses field is omitted
	DefaultUses = 1

	// SniffLen - number of leading bytes inspected for MIME detection (1 KB)
	// Matches net/http.DetectContentType's own limit.
	SniffLen = 1024
)

// Identifier generation
const (
	// WordlistSize - required wordlist cardinality (6^5 diceware entries)
	// The loader fails fast on any other count.
	WordlistSize = 7776

	// IdentifierWords - words per identifier (~38.8 bits of entropy at 3)
	IdentifierWords = 3

	// IdentifierSeparator - joins the drawn words
	IdentifierSeparator = "-"

	// MaxGenerateAttempts - collision retries before giving up
	// With 7776^3 combinations a collision is ~1 in 10^11 per draw; exhausting
	// ten attempts indicates index trouble, not bad luck.
	MaxGenerateAttempts = 10
)

// Index key layout
// Every upload occupies three subkeys sharing one TTL; throttle and health
// markers live beside them in the same keyspace.
const (
	// UploadKeyPrefix - primary metadata hash, "upload:<id>"
	UploadKeyPrefix = "upload:"

	// UsesKeySuffix - integer download counter, "upload:<id>:uses"
	UsesKeySuffix = ":uses"

	// PreviewedKeySuffix - one-shot preview flag, "upload:<id>:previewed"
	PreviewedKeySuffix = ":previewed"

	// FailsKeyPrefix - per-(scope,ip) failure counter, "fails:<scope>:<ip>"
	FailsKeyPrefix = "fails:"

	// BlockKeyPrefix - per-(scope,ip) block flag, "block:<scope>:<ip>"
	BlockKeyPrefix = "block:"

	// UploadWindowKeyPrefix - per-ip upload window counter, "uploads:<ip>"
	UploadWindowKeyPrefix = "uploads:"

	// SchedulerHeartbeatKey - liveness marker written every minute
	SchedulerHeartbeatKey = "health:scheduler_heartbeat"

	// LastCleanupKey - timestamp of the most recent completed reap cycle
	LastCleanupKey = "health:last_cleanup"
)

// Index connection pool
const (
	// IndexPoolSize - maximum connections to the key-value store
	IndexPoolSize = 10

	// IndexDialTimeout - timeout for establishing a connection (5 seconds)
	IndexDialTimeout = 5 * time.Second

	// IndexConnMaxIdleTime - idle connections older than this are retired
	// (30 seconds), keeping the pool from holding half-dead sockets
	IndexConnMaxIdleTime = 30 * time.Second
)

// Abuse throttle
const (
	// FailWindow - sliding TTL on the failure counter (10 minutes)
	// The counter is never reset on success; it simply expires.
	FailWindow = 600 * time.Second

	// DefaultFailureThreshold - failed lookups before the block flag is set
	DefaultFailureThreshold = 5

	// DefaultBlockWindowMinutes - how long a blocked source stays blocked
	DefaultBlockWindowMinutes = 15

	// UploadWindow - fixed window for the per-ip upload rate limit (1 minute)
	UploadWindow = 60 * time.Second

	// DefaultUploadRateLimit - uploads allowed per source per window
	DefaultUploadRateLimit = 5
)

// Reaper scheduling
const (
	// DefaultCleanupIntervalMinutes - minutes between orphan-collection passes
	DefaultCleanupIntervalMinutes = 5

	// HeartbeatInterval - interval for the scheduler liveness marker (1 minute)
	HeartbeatInterval = 1 * time.Minute

	// MisfireGrace - a delayed cleanup tick still runs if within this window
	// (5 minutes); beyond it the tick is skipped and the next one serves
	MisfireGrace = 300 * time.Second

	// DefaultOrphanAgeMinutes - minimum directory age before the reaper may
	// delete it (2 hours, comfortably above the 60-minute maximum expiry)
	// A just-created upload exists on disk before its index write commits;
	// the age gate keeps the reaper from racing the upload path.
	DefaultOrphanAgeMinutes = 120
)

// Health reporting
const (
	// HeartbeatFreshness - heartbeat marker older than this means the
	// scheduler is down (2 minutes)
	HeartbeatFreshness = 120 * time.Second

	// StorageProbeFile - scratch filename used for the writability probe
	StorageProbeFile = ".health_probe"
)

// Secure erase
const (
	// DefaultShredPasses - random-overwrite passes before unlink
	// Best-effort on copy-on-write filesystems; pair with full-disk
	// encryption where physical erasure matters.
	DefaultShredPasses = 1
)

// HTTP server timeouts
const (
	// ServerReadHeaderTimeout - time allowed to read request headers (10 seconds)
	ServerReadHeaderTimeout = 10 * time.Second

	// ServerReadTimeout - time allowed to read the full request (30 seconds)
	// Covers a 1 MiB multipart body on slow links with room to spare.
	ServerReadTimeout = 30 * time.Second

	// ServerWriteTimeout - time allowed to write the response (60 seconds)
	ServerWriteTimeout = 60 * time.Second

	// ServerIdleTimeout - keep-alive idle limit (2 minutes)
	ServerIdleTimeout = 120 * time.Second

	// ServerShutdownGrace - drain window for in-flight requests on shutdown
	ServerShutdownGrace = 15 * time.Second
)

// Background deletion
const (
	// CleanupTaskTimeout - budget for the post-download delete of an
	// exhausted upload (runs detached from the request context)
	CleanupTaskTimeout = 30 * time.Second
)
