// Package sniff determines a blob's MIME type from its leading bytes.
// The client-declared Content-Type is never trusted for storage; it is
// only a fallback when content detection comes up empty.
package sniff

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/embershare/ember/internal/constants"
)

// OctetStream is the type of last resort.
const OctetStream = "application/octet-stream"

// matchEntry matches a magic prefix at a fixed offset.
type matchEntry struct {
	offset int
	prefix []byte
	mtype  string
}

// matchTable covers formats net/http's sniffer does not know.
var matchTable = []matchEntry{
	{prefix: []byte("fLaC\x00\x00\x00"), mtype: "audio/x-flac"},
	{prefix: []byte("7z\xbc\xaf\x27\x1c"), mtype: "application/x-7z-compressed"},
	{prefix: []byte("\xfd7zXZ\x00"), mtype: "application/x-xz"},
	{prefix: []byte("BZh"), mtype: "application/x-bzip2"},
	{prefix: []byte("\x28\xb5\x2f\xfd"), mtype: "application/zstd"},
	{prefix: []byte("SQLite format 3\x00"), mtype: "application/vnd.sqlite3"},
	{offset: 257, prefix: []byte("ustar"), mtype: "application/x-tar"},
}

// Detect inspects at most the first KB of data. Detection order: the magic
// table, then net/http content sniffing, then the declared type, then
// application/octet-stream.
func Detect(data []byte, declared string) string {
	head := data
	if len(head) > constants.SniffLen {
		head = head[:constants.SniffLen]
	}

	for _, e := range matchTable {
		if e.offset+len(e.prefix) <= len(head) && bytes.HasPrefix(head[e.offset:], e.prefix) {
			return e.mtype
		}
	}

	if len(head) > 0 {
		detected := http.DetectContentType(head)
		// Strip parameters ("text/plain; charset=utf-8")
		if i := strings.Index(detected, ";"); i >= 0 {
			detected = strings.TrimSpace(detected[:i])
		}
		if detected != OctetStream {
			return detected
		}
	}

	if declared != "" {
		return declared
	}
	return OctetStream
}
