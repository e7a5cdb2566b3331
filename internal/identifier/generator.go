package identifier

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/embershare/ember/internal/constants"
)

// ErrExhaustedAttempts is returned when every candidate identifier in a
// generation round collided with an existing upload.
var ErrExhaustedAttempts = errors.New("exhausted identifier generation attempts")

// ExistsFunc probes whether an identifier is already taken.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// Generator mints word-triplet identifiers like "calm-ocean-lamp".
type Generator struct {
	wl *Wordlist
}

// NewGenerator returns a Generator backed by the given wordlist.
func NewGenerator(wl *Wordlist) *Generator {
	return &Generator{wl: wl}
}

// Random draws three words uniformly with crypto/rand and joins them
// with the identifier separator. rand.Int rejection-samples internally,
// so no word is favored by modulo bias.
func (g *Generator) Random() (string, error) {
	max := big.NewInt(int64(g.wl.Count()))
	parts := make([]string, constants.IdentifierWords)
	for i := range parts {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to draw random word: %w", err)
		}
		parts[i] = g.wl.words[n.Int64()]
	}
	return strings.Join(parts, constants.IdentifierSeparator), nil
}

// Unique mints an identifier not currently in use, probing each candidate
// through exists. After MaxGenerateAttempts consecutive collisions it
// gives up with ErrExhaustedAttempts.
func (g *Generator) Unique(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < constants.MaxGenerateAttempts; attempt++ {
		id, err := g.Random()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to probe identifier %q: %w", id, err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", ErrExhaustedAttempts
}

// ValidFormat reports whether id splits into exactly three wordlist
// members. Used to reject probe traffic before any index lookup.
func (g *Generator) ValidFormat(id string) bool {
	parts := strings.Split(id, constants.IdentifierSeparator)
	if len(parts) != constants.IdentifierWords {
		return false
	}
	for _, p := range parts {
		if !g.wl.Contains(p) {
			return false
		}
	}
	return true
}
