package share

import (
	"context"
	"errors"
	"net/http"

	"github.com/embershare/ember/internal/index"
	"github.com/embershare/ember/internal/models"
	"github.com/embershare/ember/internal/throttle"
)

// Preview discloses an upload's metadata exactly once. The flag flip is
// atomic at the index, so concurrent callers race safely; losers get the
// already-accessed 404 without consuming anything.
func (s *Service) Preview(ctx context.Context, id, clientIP string) (*models.PreviewResponse, error) {
	if err := s.th.Check(ctx, throttle.ScopePreview, clientIP); err != nil {
		return nil, err
	}

	if !s.gen.ValidFormat(id) {
		return nil, s.lookupMiss(ctx, throttle.ScopePreview, clientIP, id, detailUploadNotFound)
	}

	exists, err := s.ix.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, s.lookupMiss(ctx, throttle.ScopePreview, clientIP, id, detailUploadNotFound)
	}

	first, err := s.ix.MarkPreviewedOnce(ctx, id)
	if err != nil {
		return nil, err
	}
	if !first {
		s.log.Warn().Str("identifier", id).Msg("Preview already accessed")
		return nil, &StatusError{Status: http.StatusNotFound, Detail: detailAlreadyPreviewed}
	}

	rec, err := s.ix.Get(ctx, id)
	if err != nil {
		// The record can expire between the flip and this read.
		if errors.Is(err, index.ErrNotFound) {
			return nil, s.lookupMiss(ctx, throttle.ScopePreview, clientIP, id, detailUploadNotFound)
		}
		return nil, err
	}

	ttl, err := s.ix.TTL(ctx, id)
	if err != nil {
		return nil, err
	}
	minutesLeft := ttl / 60
	if minutesLeft < 0 {
		minutesLeft = 0
	}

	s.log.Info().Str("identifier", id).Msg("Preview served")

	downloadURL := s.downloadURL(id)
	return &models.PreviewResponse{
		Key:         id,
		Filename:    rec.Filename,
		Size:        rec.Size,
		MimeType:    rec.MimeType,
		Expiry:      rec.ExpiryAt,
		Uses:        rec.Uses,
		MinutesLeft: minutesLeft,
		DownloadURL: downloadURL,
		CurlExample: "curl -O " + downloadURL,
		CreatedAt:   rec.CreatedAt,
		SHA256:      rec.SHA256,
	}, nil
}
