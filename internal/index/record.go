package index

import (
	"fmt"
	"strconv"
	"time"
)

// Record is the metadata stored per upload. EncryptionKey never leaves
// the service; callers copy the disclosable fields into responses.
type Record struct {
	Filename      string
	Size          int64
	MimeType      string
	SHA256        string
	CreatedAt     time.Time
	ExpiryAt      time.Time
	EncryptionKey string

	// Uses and Previewed live in their own subkeys so they can be
	// mutated atomically without touching the hash.
	Uses      int
	Previewed bool
}

// hashFields flattens the immutable metadata into the field map stored
// under upload:<id>. Timestamps are RFC 3339 in UTC.
func (r *Record) hashFields() map[string]interface{} {
	return map[string]interface{}{
		"filename":       r.Filename,
		"size":           strconv.FormatInt(r.Size, 10),
		"mime_type":      r.MimeType,
		"sha256":         r.SHA256,
		"created_at":     r.CreatedAt.UTC().Format(time.RFC3339Nano),
		"expiry_at":      r.ExpiryAt.UTC().Format(time.RFC3339Nano),
		"encryption_key": r.EncryptionKey,
	}
}

// recordFromHash rebuilds a Record from the stored field map plus the
// counter and flag subkeys.
func recordFromHash(fields map[string]string, uses int, previewed bool) (*Record, error) {
	size, err := strconv.ParseInt(fields["size"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt size field %q: %w", fields["size"], err)
	}
	createdAt, err := parseStoredTime(fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("corrupt created_at field: %w", err)
	}
	expiryAt, err := parseStoredTime(fields["expiry_at"])
	if err != nil {
		return nil, fmt.Errorf("corrupt expiry_at field: %w", err)
	}

	return &Record{
		Filename:      fields["filename"],
		Size:          size,
		MimeType:      fields["mime_type"],
		SHA256:        fields["sha256"],
		CreatedAt:     createdAt,
		ExpiryAt:      expiryAt,
		EncryptionKey: fields["encryption_key"],
		Uses:          uses,
		Previewed:     previewed,
	}, nil
}

func parseStoredTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
