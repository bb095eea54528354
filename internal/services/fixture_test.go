package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/nearby-market/internal/geo"
	"github.com/javajoker/nearby-market/internal/keylock"
	"github.com/javajoker/nearby-market/internal/models"
	"github.com/javajoker/nearby-market/internal/repository/memstore"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store       *memstore.Store
	index       *geo.Index
	locks       *keylock.Registry
	clock       *fakeClock
	vendors     *VendorService
	ledger      *InventoryLedger
	campaigns   *CampaignEngine
	search      *SearchService
	coordinator *TransactionCoordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{
		store: memstore.New(),
		index: geo.NewIndex(),
		locks: keylock.New(2 * time.Second),
		clock: &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.vendors = NewVendorService(f.store, f.index, log)
	f.ledger = NewInventoryLedger(f.store, f.store, f.locks, log, f.clock.Now)
	f.campaigns = NewCampaignEngine(f.store, f.store, f.locks, log, f.clock.Now)
	f.search = NewSearchService(f.index, f.store, f.store, f.store, 5_000, 50_000)
	f.coordinator = NewTransactionCoordinator(f.ledger, f.campaigns)
	return f
}

func (f *fixture) vendor(t *testing.T, name string, lat, long float64) *models.Vendor {
	t.Helper()
	v, err := f.vendors.CreateVendor(context.Background(), &CreateVendorRequest{
		Name: name, Latitude: lat, Longitude: long,
	})
	require.NoError(t, err)
	return v
}

func (f *fixture) product(t *testing.T, vendorID uuid.UUID, name string, stock int) *models.Product {
	t.Helper()
	p, err := f.ledger.CreateProduct(context.Background(), vendorID, &CreateProductRequest{
		Name:        name,
		Description: name + " from the market",
		Price:       decimal.RequireFromString("4.50"),
		Stock:       stock,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) campaign(t *testing.T, vendorID uuid.UUID, target int64) *models.Campaign {
	t.Helper()
	c, err := f.campaigns.CreateCampaign(context.Background(), &CreateCampaignRequest{
		VendorID:     vendorID,
		Title:        "New bread oven",
		TargetAmount: decimal.NewFromInt(target),
		Deadline:     f.clock.Now().Add(72 * time.Hour),
		Category:     "bakery",
	})
	require.NoError(t, err)
	return c
}

func ptr[T any](v T) *T { return &v }
