package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/nearby-market/internal/apperror"
	"github.com/javajoker/nearby-market/internal/models"
)

func TestCreateCampaignValidation(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t, "Corner bakery", 40.0, -74.0)
	ctx := context.Background()
	now := f.clock.Now()

	valid := func() CreateCampaignRequest {
		return CreateCampaignRequest{
			VendorID:     v.ID,
			Title:        "Oven",
			TargetAmount: decimal.NewFromInt(100),
			Deadline:     now.Add(time.Hour),
		}
	}

	zero := valid()
	zero.TargetAmount = decimal.Zero
	past := valid()
	past.Deadline = now.Add(-time.Second)
	exact := valid()
	exact.Deadline = now
	untitled := valid()
	untitled.Title = ""
	huge := valid()
	huge.TargetAmount = decimal.New(1, 12)

	for name, req := range map[string]CreateCampaignRequest{
		"zero target":    zero,
		"past deadline":  past,
		"deadline now":   exact,
		"missing title":  untitled,
		"target too big": huge,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.campaigns.CreateCampaign(ctx, &req)
			assert.ErrorIs(t, err, apperror.ErrInvalidCampaign)
		})
	}

	unknown := valid()
	unknown.VendorID = uuid.New()
	_, err := f.campaigns.CreateCampaign(ctx, &unknown)
	assert.ErrorIs(t, err, apperror.ErrVendorNotFound)

	ok := valid()
	c, err := f.campaigns.CreateCampaign(ctx, &ok)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusActive, c.Status)
	assert.True(t, c.CurrentAmount.IsZero())
}

func TestPledgeCrossesThresholdAtExactlyHalf(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t, "Corner bakery", 40.0, -74.0)
	c := f.campaign(t, v.ID, 15000)
	ctx := context.Background()

	r, err := f.coordinator.BackCampaign(ctx, c.ID, "alice", decimal.NewFromInt(6000))
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusActive, r.Campaign.Status)
	assert.False(t, r.Funded)

	r, err = f.coordinator.BackCampaign(ctx, c.ID, "bob", decimal.NewFromInt(1500))
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusFunded, r.Campaign.Status)
	assert.True(t, r.Funded)
	assert.True(t, r.Campaign.CurrentAmount.Equal(decimal.NewFromInt(7500)))
	require.NotNil(t, r.Campaign.FundedAt)

	r, err = f.coordinator.BackCampaign(ctx, c.ID, "carol", decimal.NewFromInt(5000))
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusFunded, r.Campaign.Status)
	assert.False(t, r.Funded)
	assert.True(t, r.Campaign.CurrentAmount.Equal(decimal.NewFromInt(12500)))
	assert.Equal(t, 3, r.Campaign.Backers)
}

func TestConcurrentPledgesFundExactlyOnce(t *testing.T) {
	for run := 0; run < 20; run++ {
		f := newFixture(t)
		v := f.vendor(t, "Corner bakery", 40.0, -74.0)
		c := f.campaign(t, v.ID, 1000)
		ctx := context.Background()

		_, err := f.campaigns.Pledge(ctx, c.ID, "seed", decimal.NewFromInt(200))
		require.NoError(t, err)

		// 200+200 < 500 and 200+250 < 500, but 200+200+250 >= 500
		var (
			wg          sync.WaitGroup
			transitions atomic.Int32
		)
		for _, amount := range []int64{200, 250} {
			wg.Add(1)
			go func(amount int64) {
				defer wg.Done()
				r, err := f.campaigns.Pledge(ctx, c.ID, uuid.NewString(), decimal.NewFromInt(amount))
				if assert.NoError(t, err) && r.Funded {
					transitions.Add(1)
				}
			}(amount)
		}
		wg.Wait()

		assert.Equal(t, int32(1), transitions.Load())
		got, err := f.campaigns.GetCampaign(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusFunded, got.Status)
		assert.True(t, got.CurrentAmount.Equal(decimal.NewFromInt(650)))
	}
}

func TestPledgeLedgerMatchesCurrentAmount(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t, "Corner bakery", 40.0, -74.0)
	c := f.campaign(t, v.ID, 100000)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			backer := "backer-" + string(rune('a'+i%5))
			_, err := f.campaigns.Pledge(ctx, c.ID, backer, decimal.RequireFromString("10.25"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := f.campaigns.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	pledges, err := f.campaigns.ListPledges(ctx, c.ID)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, p := range pledges {
		sum = sum.Add(p.Amount)
	}
	assert.Len(t, pledges, 50)
	assert.True(t, sum.Equal(got.CurrentAmount), "sum %s current %s", sum, got.CurrentAmount)
	assert.Equal(t, 5, got.Backers)
}

func TestPledgeRejections(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t, "Corner bakery", 40.0, -74.0)
	c := f.campaign(t, v.ID, 1000)
	ctx := context.Background()

	_, err := f.campaigns.Pledge(ctx, c.ID, "alice", decimal.Zero)
	assert.ErrorIs(t, err, apperror.ErrInvalidPledge)
	_, err = f.campaigns.Pledge(ctx, c.ID, "alice", decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, apperror.ErrInvalidPledge)
	_, err = f.campaigns.Pledge(ctx, c.ID, "", decimal.NewFromInt(5))
	assert.ErrorIs(t, err, apperror.ErrInvalidPledge)
	_, err = f.campaigns.Pledge(ctx, uuid.New(), "alice", decimal.NewFromInt(5))
	assert.ErrorIs(t, err, apperror.ErrCampaignNotFound)

	f.clock.Advance(73 * time.Hour)
	_, err = f.campaigns.Pledge(ctx, c.ID, "alice", decimal.NewFromInt(5))
	assert.ErrorIs(t, err, apperror.ErrDeadlinePassed)

	failed, changed, err := f.campaigns.Expire(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.CampaignStatusFailed, failed.Status)

	_, err = f.campaigns.Pledge(ctx, c.ID, "alice", decimal.NewFromInt(5))
	assert.ErrorIs(t, err, apperror.ErrCampaignNotActive)

	got, err := f.campaigns.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentAmount.IsZero())
}

func TestMarkDelivered(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t, "Corner bakery", 40.0, -74.0)
	c := f.campaign(t, v.ID, 1000)
	ctx := context.Background()

	_, err := f.campaigns.MarkDelivered(ctx, c.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	_, err = f.campaigns.Pledge(ctx, c.ID, "alice", decimal.NewFromInt(500))
	require.NoError(t, err)

	delivered, err := f.campaigns.MarkDelivered(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusDelivered, delivered.Status)
	assert.NotNil(t, delivered.DeliveredAt)

	_, err = f.campaigns.MarkDelivered(ctx, c.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	_, err = f.campaigns.Pledge(ctx, c.ID, "bob", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, apperror.ErrCampaignNotActive)

	_, err = f.campaigns.MarkDelivered(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrCampaignNotFound)
}

func TestExpire(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t, "Corner bakery", 40.0, -74.0)
	active := f.campaign(t, v.ID, 1000)
	funded := f.campaign(t, v.ID, 1000)
	ctx := context.Background()

	_, err := f.campaigns.Pledge(ctx, funded.ID, "alice", decimal.NewFromInt(600))
	require.NoError(t, err)
	_, err = f.campaigns.Pledge(ctx, active.ID, "alice", decimal.NewFromInt(499))
	require.NoError(t, err)

	_, _, err = f.campaigns.Expire(ctx, active.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	f.clock.Advance(73 * time.Hour)

	got, changed, err := f.campaigns.Expire(ctx, funded.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.CampaignStatusFunded, got.Status)

	got, changed, err = f.campaigns.Expire(ctx, active.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.CampaignStatusFailed, got.Status)
	require.NotNil(t, got.FailedAt)

	got, changed, err = f.campaigns.Expire(ctx, active.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.CampaignStatusFailed, got.Status)

	_, err = f.campaigns.MarkDelivered(ctx, active.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
}

func TestExpireDue(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t, "Corner bakery", 40.0, -74.0)
	ctx := context.Background()

	first := f.campaign(t, v.ID, 1000)
	second := f.campaign(t, v.ID, 1000)
	funded := f.campaign(t, v.ID, 1000)
	_, err := f.campaigns.Pledge(ctx, funded.ID, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)

	n, err := f.campaigns.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(100 * time.Hour)
	n, err = f.campaigns.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []uuid.UUID{first.ID, second.ID} {
		got, err := f.campaigns.GetCampaign(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusFailed, got.Status)
	}
	got, err := f.campaigns.GetCampaign(ctx, funded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusFunded, got.Status)
}

func TestPledgeTotalStaysWithinAmountLimit(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t, "Corner bakery", 40.0, -74.0)
	c := f.campaign(t, v.ID, 900_000_000_000)
	ctx := context.Background()

	_, err := f.campaigns.Pledge(ctx, c.ID, "alice", decimal.New(1, 12))
	assert.ErrorIs(t, err, apperror.ErrInvalidPledge)

	_, err = f.campaigns.Pledge(ctx, c.ID, "alice", decimal.RequireFromString("999999999999.99"))
	require.NoError(t, err)

	_, err = f.campaigns.Pledge(ctx, c.ID, "bob", decimal.RequireFromString("0.01"))
	assert.ErrorIs(t, err, apperror.ErrInvalidPledge)

	got, err := f.campaigns.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "999999999999.99", got.CurrentAmount.StringFixed(2))
	assert.Equal(t, 1, got.Backers)

	pledges, err := f.campaigns.ListPledges(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, pledges, 1)
}
