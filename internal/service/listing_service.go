package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relovo/relovo-api/internal/models"
	appErrors "github.com/relovo/relovo-api/pkg/errors"
	"github.com/relovo/relovo-api/pkg/jobs"
	"github.com/relovo/relovo-api/pkg/storage"
)

// PurgeDealFilesJob removes a purged deal's file tree in the background.
const PurgeDealFilesJob = "purge_deal_files"

const catalogCachePrefix = "catalog:"

type listingStore interface {
	GetByID(ctx context.Context, id string) (*models.Listing, error)
	List(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error)
}

type dealCascader interface {
	DeleteCascadeByListing(ctx context.Context, listingID string) ([]string, error)
}

type purgeQueue interface {
	Enqueue(job jobs.Job) error
}

// ListingService serves the read-side catalog the deal core depends on and
// owns listing removal, which cascades over every attached deal. Catalog
// reads are cached; deal state never is.
type ListingService struct {
	listings listingStore
	deals    dealCascader
	cache    *CacheService
	files    *storage.LocalStorage
	queue    purgeQueue
	logger   *zap.Logger
}

// NewListingService constructs the service.
func NewListingService(listings listingStore, deals dealCascader, cache *CacheService, files *storage.LocalStorage, queue purgeQueue, logger *zap.Logger) *ListingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingService{
		listings: listings,
		deals:    deals,
		cache:    cache,
		files:    files,
		queue:    queue,
		logger:   logger,
	}
}

// Get returns a single listing, served from cache when possible.
func (s *ListingService) Get(ctx context.Context, id string) (*models.Listing, error) {
	cacheKey := catalogCachePrefix + "listing:" + id
	var cached models.Listing
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "listing not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load listing")
	}

	if err := s.cache.Set(ctx, cacheKey, listing, 0); err != nil {
		s.logger.Debug("listing cache set failed", zap.String("key", cacheKey), zap.Error(err))
	}
	return listing, nil
}

// List returns catalog entries matching the filter, served from cache when
// possible.
func (s *ListingService) List(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error) {
	cacheKey := fmt.Sprintf("%slistings:city=%s:owner=%s:limit=%d:offset=%d",
		catalogCachePrefix, filter.City, filter.OwnerID, filter.Limit, filter.Offset)
	var cached []models.Listing
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	listings, err := s.listings.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list catalog")
	}

	if err := s.cache.Set(ctx, cacheKey, listings, 0); err != nil {
		s.logger.Debug("catalog cache set failed", zap.String("key", cacheKey), zap.Error(err))
	}
	return listings, nil
}

// Delete removes a listing together with every attached deal, its documents,
// contracts and audit trail. File trees of the purged deals are removed
// asynchronously; a lost purge job leaves orphaned files, never dangling rows.
func (s *ListingService) Delete(ctx context.Context, listingID string, actor *models.JWTClaims) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can delete listings")
	}

	if _, err := s.listings.GetByID(ctx, listingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "listing not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load listing")
	}

	dealIDs, err := s.deals.DeleteCascadeByListing(ctx, listingID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete listing")
	}

	for _, dealID := range dealIDs {
		job := jobs.Job{ID: uuid.NewString(), Type: PurgeDealFilesJob, Payload: dealID}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue deal file purge", zap.String("deal_id", dealID), zap.Error(err))
		}
	}

	if err := s.cache.Invalidate(ctx, catalogCachePrefix+"*"); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}

	s.logger.Info("listing deleted with deal cascade",
		zap.String("listing_id", listingID),
		zap.Int("deals_purged", len(dealIDs)))
	return nil
}

// HandlePurge is the queue handler removing a purged deal's file tree.
func (s *ListingService) HandlePurge(ctx context.Context, job jobs.Job) error {
	dealID := job.Payload
	if dealID == "" {
		return fmt.Errorf("purge job %s has no deal id payload", job.ID)
	}
	return s.files.DeleteTree("deals/" + dealID)
}
