// Package validation provides input validation for uploaded blobs.
package validation

import (
	"fmt"
	"strings"
)

// Meta carries the request attributes evaluated alongside the raw bytes.
type Meta struct {
	Filename string
	MimeType string
}

// Validator checks one aspect of an upload. A false result carries a
// message suitable for the client; operator detail goes to the logs.
type Validator interface {
	Validate(data []byte, meta Meta) (bool, string)
}

// Chain evaluates validators in order and short-circuits at the first
// failure.
type Chain []Validator

// Validate runs the chain. Returns ok and, on failure, the first
// validator's message.
func (c Chain) Validate(data []byte, meta Meta) (bool, string) {
	for _, v := range c {
		if ok, msg := v.Validate(data, meta); !ok {
			return false, msg
		}
	}
	return true, ""
}

// SizeValidator rejects blobs over Max bytes.
type SizeValidator struct {
	Max int64
}

func (v SizeValidator) Validate(data []byte, _ Meta) (bool, string) {
	if int64(len(data)) > v.Max {
		return false, fmt.Sprintf("File too large: %d bytes (max: %d bytes)", len(data), v.Max)
	}
	return true, ""
}

// MimeAllowlistValidator rejects types outside the configured allow-list.
// An empty list permits everything. Entries ending in "*" match a
// category ("image/*"); all other entries match exactly. A missing MIME
// type always fails a non-empty list.
type MimeAllowlistValidator struct {
	Allowed []string
}

func (v MimeAllowlistValidator) Validate(_ []byte, meta Meta) (bool, string) {
	if len(v.Allowed) == 0 {
		return true, ""
	}

	mime := strings.ToLower(strings.TrimSpace(meta.MimeType))
	if mime == "" {
		return false, "File type could not be determined"
	}

	for _, entry := range v.Allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if strings.HasSuffix(entry, "*") {
			if strings.HasPrefix(mime, strings.TrimSuffix(entry, "*")) {
				return true, ""
			}
			continue
		}
		if mime == entry {
			return true, ""
		}
	}
	return false, fmt.Sprintf("File type %q is not allowed", meta.MimeType)
}
