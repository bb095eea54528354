package services

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/nearby-market/internal/apperror"
	"github.com/javajoker/nearby-market/internal/geo"
)

func TestCreateVendorValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.vendors.CreateVendor(ctx, &CreateVendorRequest{Name: "Stall", Latitude: 91, Longitude: 0})
	assert.ErrorIs(t, err, apperror.ErrInvalidCoordinate)

	_, err = f.vendors.CreateVendor(ctx, &CreateVendorRequest{Name: " ", Latitude: 1, Longitude: 1})
	assert.ErrorIs(t, err, apperror.ErrInvalidVendor)

	assert.Zero(t, f.index.Len())

	_, err = f.vendors.GetVendor(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrVendorNotFound)
}

func TestCreateVendorIndexesLocation(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t, "Stall", 51.5, -0.12)

	loc, ok := f.index.Location(v.ID)
	require.True(t, ok)
	assert.Equal(t, geo.Point{Lat: 51.5, Long: -0.12}, loc)
}

func TestRebuildIndexFromStore(t *testing.T) {
	f := newFixture(t)
	f.vendor(t, "One", 10, 10)
	f.vendor(t, "Two", -10, -10)

	log := logrus.New()
	log.SetOutput(io.Discard)
	fresh := geo.NewIndex()
	restarted := NewVendorService(f.store, fresh, log)

	n, err := restarted.RebuildIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestConfirmOrderAlwaysTakesOneUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vendor(t, "Stall", 1, 1)
	p := f.product(t, v.ID, "Jam", 5)

	conf, err := f.coordinator.ConfirmOrder(ctx, p.ID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, 4, conf.RemainingStock)
	assert.Equal(t, "buyer-1", conf.BuyerID)

	res, err := f.coordinator.ReleaseOrder(ctx, conf.OrderID)
	require.NoError(t, err)
	assert.True(t, res.Released)
	assert.Equal(t, 5, res.RemainingStock)
}
