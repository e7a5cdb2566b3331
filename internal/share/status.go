package share

import (
	"context"
	"errors"
	"time"

	"github.com/embershare/ember/internal/index"
	"github.com/embershare/ember/internal/models"
	"github.com/embershare/ember/internal/throttle"
)

// Status reports an upload's lifecycle state without consuming a use or
// the preview flag. A vanished record reads as expired_or_burned; the
// index keeps no tombstone to tell the two ends apart.
func (s *Service) Status(ctx context.Context, id, clientIP string) (*models.StatusResponse, error) {
	if err := s.th.Check(ctx, throttle.ScopeStatus, clientIP); err != nil {
		return nil, err
	}

	if !s.gen.ValidFormat(id) {
		return nil, s.lookupMiss(ctx, throttle.ScopeStatus, clientIP, id, detailUploadNotFound)
	}

	rec, err := s.ix.Get(ctx, id)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			// Gone is still an answer, but probing absent identifiers
			// counts against the throttle like any other miss.
			if merr := s.th.RegisterMiss(ctx, throttle.ScopeStatus, clientIP); merr != nil {
				s.log.Error().Err(merr).Msg("Failed to register lookup miss")
			}
			return &models.StatusResponse{
				Key:          id,
				Status:       models.StatusExpiredOrBurned,
				IsAccessible: false,
			}, nil
		}
		return nil, err
	}

	status := models.StatusActive
	accessible := true
	switch {
	case time.Now().UTC().After(rec.ExpiryAt):
		status = models.StatusExpired
		accessible = false
	case rec.Uses <= 0:
		status = models.StatusBurned
		accessible = false
	}

	s.log.Info().
		Str("identifier", id).
		Str("status", status).
		Msg("Status check")

	expiresAt := rec.ExpiryAt
	return &models.StatusResponse{
		Key:           id,
		Status:        status,
		RemainingUses: rec.Uses,
		ExpiresAt:     &expiresAt,
		IsAccessible:  accessible,
	}, nil
}
