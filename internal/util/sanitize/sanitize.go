// Package sanitize produces disk-safe filenames from client-supplied ones.
//
// The pipeline removes, in order:
//   - parent-directory traversal pairs ("..")
//   - path separators ("/" and "\", replaced with "_")
//   - shell metacharacters (; | & $ ` < > and NUL)
//   - non-printable code points
//
// and finally truncates to 255 bytes, keeping the extension.
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxFilenameBytes caps the stored name length.
const maxFilenameBytes = 255

// dangerous holds the characters stripped entirely from filenames.
const dangerous = ";|&$`<>\x00"

// Filename sanitizes a client-supplied filename. The pipeline runs until it
// reaches a fixpoint: stripping a metacharacter can reassemble a traversal
// pair ("a.|.b" becomes "a..b"), and truncation can butt a trailing dot
// against the extension, so a single ordered pass is not enough.
// Empty input maps to empty output; callers reject empty names upstream.
func Filename(name string) string {
	for {
		cleaned := truncate(sanitizeOnce(name))
		if cleaned == name {
			return cleaned
		}
		name = cleaned
	}
}

// sanitizeOnce applies the removal rules one time, in order.
func sanitizeOnce(name string) string {
	// Parent-directory traversal
	name = strings.ReplaceAll(name, "..", "")

	// Path separators become harmless underscores
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")

	// Shell metacharacters are dropped entirely
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(dangerous, r) {
			return -1
		}
		return r
	}, name)

	// Non-printables (control chars, zero-width and format characters)
	return strings.Map(func(r rune) rune {
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, name)
}

// truncate caps the name at maxFilenameBytes, preserving the final
// ".<ext>" segment when one exists and never splitting a rune.
func truncate(name string) string {
	if len(name) <= maxFilenameBytes {
		return name
	}

	base, ext := name, ""
	if i := strings.LastIndex(name, "."); i > 0 {
		base, ext = name[:i], name[i:]
	}
	if len(ext) >= maxFilenameBytes {
		// Degenerate extension longer than the whole budget
		return cutAtRune(name, maxFilenameBytes)
	}
	return cutAtRune(base, maxFilenameBytes-len(ext)) + ext
}

// cutAtRune shortens s to at most n bytes on a rune boundary.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
