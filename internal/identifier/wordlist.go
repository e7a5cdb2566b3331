// Package identifier generates and validates the human-readable
// word-triplet identifiers that name uploads.
package identifier

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/embershare/ember/internal/constants"
)

// Wordlist is the fixed vocabulary identifiers draw from. Immutable after
// load; safe for concurrent use.
type Wordlist struct {
	words   []string
	members map[string]struct{}
}

// LoadWordlist reads a diceware-style file where each non-empty,
// non-comment line is "<digits> <word>". The loader fails fast on any
// malformed line or when the final count is not exactly 7776: a service
// running with a short vocabulary would mint guessable identifiers.
func LoadWordlist(path string) (*Wordlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wordlist: %w", err)
	}
	defer f.Close()

	wl := &Wordlist{
		words:   make([]string, 0, constants.WordlistSize),
		members: make(map[string]struct{}, constants.WordlistSize),
	}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed wordlist line %d: expected \"<digits> <word>\", got %q", lineNo, line)
		}
		if !allDigits(fields[0]) {
			return nil, fmt.Errorf("malformed wordlist line %d: index %q is not numeric", lineNo, fields[0])
		}

		word := fields[1]
		wl.words = append(wl.words, word)
		wl.members[word] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read wordlist: %w", err)
	}

	if len(wl.words) != constants.WordlistSize {
		return nil, fmt.Errorf("wordlist has %d words, expected exactly %d", len(wl.words), constants.WordlistSize)
	}

	return wl, nil
}

// Count returns the number of loaded words.
func (wl *Wordlist) Count() int {
	return len(wl.words)
}

// Contains reports whether word is a member of the list.
func (wl *Wordlist) Contains(word string) bool {
	_, ok := wl.members[word]
	return ok
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
