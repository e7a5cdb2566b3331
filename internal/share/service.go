// Package share implements the upload, download, preview and status
// flows on top of the identifier, crypto, storage, index and throttle
// layers. It owns the classification of failures into client-visible
// statuses; the HTTP layer maps its errors uniformly.
package share

import (
	"context"
	"sync"
	"time"

	"github.com/embershare/ember/internal/constants"
	"github.com/embershare/ember/internal/identifier"
	"github.com/embershare/ember/internal/index"
	"github.com/embershare/ember/internal/logging"
	"github.com/embershare/ember/internal/storage"
	"github.com/embershare/ember/internal/throttle"
	"github.com/embershare/ember/internal/validation"
)

// Indexer is the metadata store surface the service consumes.
type Indexer interface {
	Save(ctx context.Context, id string, rec *index.Record, ttl time.Duration) error
	Get(ctx context.Context, id string) (*index.Record, error)
	DecrementUses(ctx context.Context, id string) (int, error)
	MarkPreviewedOnce(ctx context.Context, id string) (bool, error)
	TTL(ctx context.Context, id string) (int64, error)
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Throttler gates lookups and records failed ones.
type Throttler interface {
	Check(ctx context.Context, scope throttle.Scope, ip string) error
	RegisterMiss(ctx context.Context, scope throttle.Scope, ip string) error
}

// Deps collects the collaborators a Service needs.
type Deps struct {
	Index     Indexer
	Throttle  Throttler
	Repo      *storage.Repository
	Paths     *storage.Paths
	Generator *identifier.Generator
	Chain     validation.Chain
	Log       *logging.Logger
	BaseURL   string
}

// Service orchestrates the upload lifecycle.
type Service struct {
	ix      Indexer
	th      Throttler
	repo    *storage.Repository
	paths   *storage.Paths
	gen     *identifier.Generator
	chain   validation.Chain
	log     *logging.Logger
	baseURL string

	cleanups sync.WaitGroup
}

// NewService wires a Service from its dependencies.
func NewService(d Deps) *Service {
	return &Service{
		ix:      d.Index,
		th:      d.Throttle,
		repo:    d.Repo,
		paths:   d.Paths,
		gen:     d.Generator,
		chain:   d.Chain,
		log:     d.Log,
		baseURL: d.BaseURL,
	}
}

// DeleteUpload removes the blob directory and the index record. Both
// halves are idempotent, so a partial earlier deletion is harmless.
func (s *Service) DeleteUpload(ctx context.Context, id string) error {
	if err := s.repo.DeleteDirectory(s.paths.UploadDir(id)); err != nil {
		return err
	}
	if _, err := s.ix.Delete(ctx, id); err != nil {
		return err
	}
	return nil
}

// scheduleDestruction removes an exhausted upload in the background,
// detached from the request context so the response is never delayed.
func (s *Service) scheduleDestruction(id string) {
	s.cleanups.Add(1)
	go func() {
		defer s.cleanups.Done()
		ctx, cancel := context.WithTimeout(context.Background(), constants.CleanupTaskTimeout)
		defer cancel()

		s.log.Info().Str("identifier", id).Msg("Destroying exhausted upload")
		if err := s.DeleteUpload(ctx, id); err != nil {
			s.log.Error().Err(err).Str("identifier", id).Msg("Failed to destroy exhausted upload")
		}
	}()
}

// Wait blocks until scheduled destructions finish. Called on shutdown.
func (s *Service) Wait() {
	s.cleanups.Wait()
}

func (s *Service) previewURL(id string) string {
	return s.baseURL + "/preview/" + id
}

func (s *Service) downloadURL(id string) string {
	return s.baseURL + "/download/" + id
}
