package share

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/embershare/ember/internal/constants"
	"github.com/embershare/ember/internal/crypto" // package name is 'encryption'
	"github.com/embershare/ember/internal/diskspace"
	"github.com/embershare/ember/internal/identifier"
	"github.com/embershare/ember/internal/index"
	"github.com/embershare/ember/internal/models"
	"github.com/embershare/ember/internal/sniff"
	"github.com/embershare/ember/internal/validation"
)

// UploadRequest carries one upload's bytes and parameters. Data is the
// full plaintext; the HTTP layer bounds its size before reading.
type UploadRequest struct {
	Data          []byte
	Filename      string
	DeclaredMime  string
	ExpiryMinutes int
	Uses          int
}

// Upload runs the full intake flow: mint an identifier, sniff and
// validate, hash, encrypt, persist the blob, then index it. If the index
// write fails after the blob landed, the blob is rolled back so nothing
// undiscoverable stays on disk.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*models.UploadResponse, error) {
	if req.ExpiryMinutes < constants.MinExpiryMinutes || req.ExpiryMinutes > constants.MaxExpiryMinutes {
		return nil, &StatusError{
			Status: http.StatusBadRequest,
			Detail: fmt.Sprintf("expiry must be between %d and %d minutes", constants.MinExpiryMinutes, constants.MaxExpiryMinutes),
		}
	}
	if req.Uses < constants.MinUses || req.Uses > constants.MaxUses {
		return nil, &StatusError{
			Status: http.StatusBadRequest,
			Detail: fmt.Sprintf("uses must be between %d and %d", constants.MinUses, constants.MaxUses),
		}
	}

	id, err := s.gen.Unique(ctx, s.ix.Exists)
	if err != nil {
		if errors.Is(err, identifier.ErrExhaustedAttempts) {
			s.log.Error().
				Str("alert", "identifier_exhausted").
				Msg("Identifier space probe failed ten times in a row")
		}
		return nil, fmt.Errorf("failed to mint identifier: %w", err)
	}

	encKey, err := encryption.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}

	mimeType := sniff.Detect(req.Data, req.DeclaredMime)
	if ok, msg := s.chain.Validate(req.Data, validation.Meta{Filename: req.Filename, MimeType: mimeType}); !ok {
		return nil, &StatusError{Status: http.StatusBadRequest, Detail: msg}
	}

	hash := encryption.SHA256Hex(req.Data)

	path, err := s.paths.FilePath(id, req.Filename)
	if err != nil {
		return nil, &StatusError{Status: http.StatusBadRequest, Detail: detailInvalidFilename}
	}
	safeName := filepath.Base(path)

	ciphertext, err := encryption.Encrypt(req.Data, encKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt upload: %w", err)
	}
	// Stat the store root rather than the blob path: the per-upload
	// directory does not exist until Save creates it.
	if err := diskspace.CheckAvailableSpace(s.paths.UploadDir(id), int64(len(ciphertext)), diskspace.DefaultSafetyMargin); err != nil {
		return nil, fmt.Errorf("failed to store blob: %w", err)
	}
	if err := s.repo.Save(path, ciphertext); err != nil {
		return nil, fmt.Errorf("failed to store blob: %w", err)
	}

	now := time.Now().UTC()
	ttl := time.Duration(req.ExpiryMinutes) * time.Minute
	rec := &index.Record{
		Filename:      safeName,
		Size:          int64(len(req.Data)),
		MimeType:      mimeType,
		SHA256:        hash,
		CreatedAt:     now,
		ExpiryAt:      now.Add(ttl),
		EncryptionKey: encKey,
		Uses:          req.Uses,
	}

	if err := s.ix.Save(ctx, id, rec, ttl); err != nil {
		// The blob is on disk but unindexed; remove it now instead of
		// leaving it to the reaper's age gate.
		if derr := s.repo.DeleteDirectory(s.paths.UploadDir(id)); derr != nil {
			s.log.Error().Err(derr).Str("identifier", id).Msg("Rollback failed, orphan left for reaper")
		}
		return nil, fmt.Errorf("failed to index upload: %w", err)
	}

	s.log.Info().
		Str("identifier", id).
		Str("mime_type", mimeType).
		Int64("size", rec.Size).
		Int("uses", req.Uses).
		Int("expiry_minutes", req.ExpiryMinutes).
		Msg("Upload stored")

	return &models.UploadResponse{
		Key:         id,
		PreviewURL:  s.previewURL(id),
		DownloadURL: s.downloadURL(id),
		Expiry:      rec.ExpiryAt,
		Uses:        req.Uses,
		Filename:    safeName,
		Size:        rec.Size,
		CreatedAt:   now,
		SHA256:      hash,
	}, nil
}
