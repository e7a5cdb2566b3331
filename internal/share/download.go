package share

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/embershare/ember/internal/crypto" // package name is 'encryption'
	"github.com/embershare/ember/internal/index"
	"github.com/embershare/ember/internal/throttle"
)

// DownloadResult is the decrypted payload plus the response metadata the
// HTTP layer turns into headers.
type DownloadResult struct {
	Data     []byte
	Filename string
	MimeType string
	SHA256   string
}

// Download consumes one use and returns the plaintext. The atomic
// decrement happens before any read: with one use left, two concurrent
// callers cannot both pass, and an aborted response still costs the use.
func (s *Service) Download(ctx context.Context, id, clientIP string) (*DownloadResult, error) {
	if err := s.th.Check(ctx, throttle.ScopeDownload, clientIP); err != nil {
		return nil, err
	}

	if !s.gen.ValidFormat(id) {
		return nil, s.lookupMiss(ctx, throttle.ScopeDownload, clientIP, id, detailNotFoundOrExpired)
	}

	remaining, err := s.ix.DecrementUses(ctx, id)
	if err != nil {
		return nil, err
	}
	switch remaining {
	case -2:
		return nil, s.lookupMiss(ctx, throttle.ScopeDownload, clientIP, id, detailNotFoundOrExpired)
	case -1:
		s.log.Warn().Str("identifier", id).Msg("Download limit reached")
		return nil, &StatusError{Status: http.StatusGone, Detail: detailLimitReached}
	}

	rec, err := s.ix.Get(ctx, id)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return nil, &StatusError{Status: http.StatusNotFound, Detail: detailMissingKey}
		}
		return nil, err
	}
	if rec.EncryptionKey == "" {
		s.log.Error().Str("identifier", id).Msg("Record has no encryption key")
		return nil, &StatusError{Status: http.StatusNotFound, Detail: detailMissingKey}
	}

	path, err := s.paths.FilePath(id, rec.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blob path for %q: %w", id, err)
	}
	onDisk, err := s.repo.Exists(path)
	if err != nil {
		return nil, err
	}
	if !onDisk {
		s.log.Error().Str("identifier", id).Msg("Blob missing from storage")
		return nil, &StatusError{Status: http.StatusInternalServerError, Detail: detailFileMissing}
	}

	ciphertext, err := s.repo.Read(path)
	if err != nil {
		return nil, err
	}

	plaintext, err := encryption.Decrypt(ciphertext, rec.EncryptionKey, 0)
	if err != nil {
		// An authentication failure means the stored bytes changed since
		// upload. Report it as an integrity violation, hashing the
		// ciphertext since no plaintext exists to hash. The blob stays
		// on disk for investigation.
		if errors.Is(err, encryption.ErrDecryptionFailed) {
			actual := encryption.SHA256Hex(ciphertext)
			s.log.Error().
				Str("alert", "integrity_check_failed").
				Str("identifier", id).
				Str("expected", rec.SHA256).
				Str("actual", actual).
				Msg("Ciphertext failed authentication")
			return nil, &IntegrityError{Expected: rec.SHA256, Actual: actual}
		}
		s.log.Error().Err(err).Str("identifier", id).Msg("Decryption failed")
		return nil, &StatusError{Status: http.StatusInternalServerError, Detail: detailDecryptFailed}
	}

	actual := encryption.SHA256Hex(plaintext)
	if rec.SHA256 != "" && actual != rec.SHA256 {
		s.log.Error().
			Str("alert", "integrity_check_failed").
			Str("identifier", id).
			Str("expected", rec.SHA256).
			Str("actual", actual).
			Msg("Stored hash does not match decrypted content")
		return nil, &IntegrityError{Expected: rec.SHA256, Actual: actual}
	}

	if remaining == 0 {
		s.scheduleDestruction(id)
	}

	s.log.Info().
		Str("identifier", id).
		Str("filename", rec.Filename).
		Int("remaining_uses", remaining).
		Msg("Download served")

	return &DownloadResult{
		Data:     plaintext,
		Filename: rec.Filename,
		MimeType: rec.MimeType,
		SHA256:   rec.SHA256,
	}, nil
}

// lookupMiss registers a throttle failure and returns the 404 the client
// sees. Registration failures are logged, not surfaced; the lookup
// answer matters more than the bookkeeping.
func (s *Service) lookupMiss(ctx context.Context, scope throttle.Scope, ip, id, detail string) error {
	if err := s.th.RegisterMiss(ctx, scope, ip); err != nil {
		s.log.Error().Err(err).Str("scope", string(scope)).Msg("Failed to register lookup miss")
	}
	s.log.Warn().
		Str("identifier", id).
		Str("scope", string(scope)).
		Msg("Lookup miss")
	return &StatusError{Status: http.StatusNotFound, Detail: detail}
}
