package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relovo/relovo-api/internal/models"
	appErrors "github.com/relovo/relovo-api/pkg/errors"
	"github.com/relovo/relovo-api/pkg/jobs"
	"github.com/relovo/relovo-api/pkg/storage"
)

type catalogStoreStub struct {
	listings map[string]*models.Listing
	listed   []models.Listing
	getCalls int
}

func (s *catalogStoreStub) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	s.getCalls++
	if listing, ok := s.listings[id]; ok {
		return listing, nil
	}
	return nil, sql.ErrNoRows
}

func (s *catalogStoreStub) List(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error) {
	return s.listed, nil
}

type cascaderStub struct {
	dealIDs []string
	calls   []string
}

func (s *cascaderStub) DeleteCascadeByListing(ctx context.Context, listingID string) ([]string, error) {
	s.calls = append(s.calls, listingID)
	return s.dealIDs, nil
}

type queueStub struct {
	jobs []jobs.Job
}

func (s *queueStub) Enqueue(job jobs.Job) error {
	s.jobs = append(s.jobs, job)
	return nil
}

type memoryCacheRepo struct {
	values map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{values: map[string][]byte{}}
}

func (r *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := r.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.values[key] = raw
	return nil
}

func (r *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range r.values {
		if strings.HasPrefix(key, prefix) {
			delete(r.values, key)
		}
	}
	return nil
}

func newListingFixture(t *testing.T) (*ListingService, *catalogStoreStub, *cascaderStub, *queueStub, *memoryCacheRepo, *storage.LocalStorage) {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	listings := &catalogStoreStub{listings: map[string]*models.Listing{
		"listing-1": {ID: "listing-1", OwnerID: "landlord-1", Title: "2-room flat", City: "Berlin", Price: 1200},
	}}
	deals := &cascaderStub{}
	queue := &queueStub{}
	cacheRepo := newMemoryCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)

	svc := NewListingService(listings, deals, cache, files, queue, zap.NewNop())
	return svc, listings, deals, queue, cacheRepo, files
}

func TestListingServiceGetCachesResult(t *testing.T) {
	svc, listings, _, _, _, _ := newListingFixture(t)

	first, err := svc.Get(context.Background(), "listing-1")
	require.NoError(t, err)
	assert.Equal(t, "listing-1", first.ID)

	second, err := svc.Get(context.Background(), "listing-1")
	require.NoError(t, err)
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, 1, listings.getCalls)
}

func TestListingServiceGetNotFound(t *testing.T) {
	svc, _, _, _, _, _ := newListingFixture(t)

	_, err := svc.Get(context.Background(), "listing-99")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestListingServiceDeleteCascadesAndPurges(t *testing.T) {
	svc, _, deals, queue, cacheRepo, _ := newListingFixture(t)
	deals.dealIDs = []string{"deal-1", "deal-2"}

	// warm the cache so invalidation is observable
	_, err := svc.Get(context.Background(), "listing-1")
	require.NoError(t, err)
	require.NotEmpty(t, cacheRepo.values)

	require.NoError(t, svc.Delete(context.Background(), "listing-1", adminClaims("admin-1")))

	assert.Equal(t, []string{"listing-1"}, deals.calls)
	require.Len(t, queue.jobs, 2)
	assert.Equal(t, PurgeDealFilesJob, queue.jobs[0].Type)
	assert.Equal(t, "deal-1", queue.jobs[0].Payload)
	assert.Empty(t, cacheRepo.values)
}

func TestListingServiceDeleteAdminOnly(t *testing.T) {
	svc, _, deals, _, _, _ := newListingFixture(t)

	err := svc.Delete(context.Background(), "listing-1", landlordClaims("landlord-1"))
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
	assert.Empty(t, deals.calls)
}

func TestListingServiceHandlePurge(t *testing.T) {
	svc, _, _, _, _, files := newListingFixture(t)
	_, err := files.Save("deals/deal-1/tenant_passport_x_scan.pdf", []byte("x"))
	require.NoError(t, err)

	err = svc.HandlePurge(context.Background(), jobs.Job{ID: "job-1", Type: PurgeDealFilesJob, Payload: "deal-1"})
	require.NoError(t, err)
	assert.False(t, files.Exists("deals/deal-1/tenant_passport_x_scan.pdf"))

	err = svc.HandlePurge(context.Background(), jobs.Job{ID: "job-2", Type: PurgeDealFilesJob})
	require.Error(t, err)
}
