package router

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/nearby-market/internal/config"
	"github.com/javajoker/nearby-market/internal/geo"
	"github.com/javajoker/nearby-market/internal/repository/memstore"
	"github.com/javajoker/nearby-market/internal/services"
)

func TestInstancesSharingStoreSeeEachOthersVendors(t *testing.T) {
	ctx := context.Background()
	log, _ := test.NewNullLogger()
	store := memstore.New()
	cfg := config.MarketplaceConfig{DefaultRadiusMeters: 5_000, MaxRadiusMeters: 50_000, LockTimeout: time.Second}

	a := NewServices(store, cfg, log, nil)
	b := NewServices(store, cfg, log, nil)
	_, err := b.Vendors.SyncIndex(ctx)
	require.NoError(t, err)

	vendor, err := a.Vendors.CreateVendor(ctx, &services.CreateVendorRequest{Name: "Corner bakery", Latitude: 40.0, Longitude: -74.0})
	require.NoError(t, err)
	_, err = a.Ledger.CreateProduct(ctx, vendor.ID, &services.CreateProductRequest{
		Name: "Sourdough", Price: decimal.RequireFromString("6.00"), Stock: 3,
	})
	require.NoError(t, err)
	_, err = a.Campaigns.CreateCampaign(ctx, &services.CreateCampaignRequest{
		VendorID:     vendor.ID,
		Title:        "New bread oven",
		TargetAmount: decimal.NewFromInt(1000),
		Deadline:     time.Now().Add(72 * time.Hour),
		Category:     "bakery",
	})
	require.NoError(t, err)

	origin := geo.Point{Lat: 40.001, Long: -74.0}
	added, err := b.Vendors.SyncIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	for name, svc := range map[string]*Services{"creator": a, "peer": b} {
		page, err := svc.Search.Search(ctx, services.SearchRequest{Origin: &origin})
		require.NoError(t, err, name)
		assert.Equal(t, 1, page.Total, name)

		campaigns, err := svc.Search.NearbyCampaigns(ctx, services.NearbyCampaignsRequest{Origin: &origin})
		require.NoError(t, err, name)
		assert.Len(t, campaigns, 1, name)
	}

	added, err = b.Vendors.SyncIndex(ctx)
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, 1, b.Index.Len())
}
