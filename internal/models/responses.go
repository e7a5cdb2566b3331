// Package models defines the JSON bodies of the public API.
package models

import "time"

// Upload lifecycle states reported by the status endpoint.
const (
	StatusActive = "active"
	StatusBurned = "burned"

	StatusExpired = "expired"

	// StatusExpiredOrBurned is reported when the record is gone and the
	// two causes can no longer be told apart.
	StatusExpiredOrBurned = "expired_or_burned"
)

// UploadResponse is returned by POST /upload/ on success.
type UploadResponse struct {
	Key         string    `json:"key"`
	PreviewURL  string    `json:"preview_url"`
	DownloadURL string    `json:"download_url"`
	Expiry      time.Time `json:"expiry"`
	Uses        int       `json:"uses"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	SHA256      string    `json:"sha256"`
}

// PreviewResponse is the one-shot metadata disclosure.
type PreviewResponse struct {
	Key         string    `json:"key"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	MimeType    string    `json:"mime_type"`
	Expiry      time.Time `json:"expiry"`
	Uses        int       `json:"uses"`
	MinutesLeft int64     `json:"minutes_left"`
	DownloadURL string    `json:"download_url"`
	CurlExample string    `json:"curl_example"`
	CreatedAt   time.Time `json:"created_at"`
	SHA256      string    `json:"sha256"`
}

// StatusResponse never consumes a use or the preview flag.
type StatusResponse struct {
	Key           string     `json:"key"`
	Status        string     `json:"status"`
	RemainingUses int        `json:"remaining_uses"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	IsAccessible  bool       `json:"is_accessible"`
}

// HealthResponse reports per-subsystem state.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Services      map[string]string `json:"services"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	StartedAt     time.Time         `json:"started_at"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ThrottledResponse extends the error body with a backoff hint.
type ThrottledResponse struct {
	Detail            string `json:"detail"`
	RetryAfterSeconds int64  `json:"retry_after_seconds"`
}

// IntegrityReport carries both sides of a failed hash comparison.
type IntegrityReport struct {
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// IntegrityDetail is the structured detail for integrity failures.
type IntegrityDetail struct {
	ErrorCode       string          `json:"error_code"`
	IntegrityReport IntegrityReport `json:"integrity_report"`
}

// IntegrityErrorResponse is the 500 body for INTEGRITY_CHECK_FAILED.
type IntegrityErrorResponse struct {
	Detail IntegrityDetail `json:"detail"`
}
