package mongostore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/javajoker/nearby-market/internal/models"
	"github.com/javajoker/nearby-market/internal/repository"
)

func TestCampaignDocumentKeepsMoneyExact(t *testing.T) {
	funded := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	campaign := &models.Campaign{
		BaseModel:     models.BaseModel{ID: uuid.New()},
		VendorID:      uuid.New(),
		Title:         "Wood oven",
		TargetAmount:  decimal.RequireFromString("15000.00"),
		CurrentAmount: decimal.RequireFromString("7500.10"),
		Status:        models.CampaignStatusFunded,
		Backers:       3,
		FundedAt:      &funded,
		Version:       4,
	}

	doc, err := newCampaignDoc(campaign)
	require.NoError(t, err)
	assert.Equal(t, campaign.ID.String(), doc.ID)

	back, err := doc.model()
	require.NoError(t, err)
	assert.True(t, back.TargetAmount.Equal(campaign.TargetAmount))
	assert.True(t, back.CurrentAmount.Equal(campaign.CurrentAmount))
	assert.Equal(t, campaign.VendorID, back.VendorID)
	assert.Equal(t, int64(4), back.Version)
	assert.Equal(t, &funded, back.FundedAt)
}

func TestCorruptIDIsReported(t *testing.T) {
	_, err := productDoc{ID: "not-a-uuid", VendorID: uuid.NewString()}.model()
	assert.ErrorContains(t, err, "corrupt document id")
}

// StoreSuite needs a replica set, e.g.
// MARKETPLACE_TEST_MONGO_URI=mongodb://localhost:27017/?replicaSet=rs0
type StoreSuite struct {
	suite.Suite
	client *mongo.Client
	dbName string
	store  *Store
}

func TestStoreSuite(t *testing.T) {
	if os.Getenv("MARKETPLACE_TEST_MONGO_URI") == "" {
		t.Skip("MARKETPLACE_TEST_MONGO_URI not set")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(os.Getenv("MARKETPLACE_TEST_MONGO_URI")))
	s.Require().NoError(err)
	s.client = client
	s.dbName = fmt.Sprintf("nearby_market_test_%d", time.Now().UnixNano())
	s.store = New(client, s.dbName)
	s.Require().NoError(s.store.EnsureIndexes(ctx))
}

func (s *StoreSuite) SetupTest() {
	ctx := context.Background()
	for _, coll := range []*mongo.Collection{s.store.pledges, s.store.campaigns, s.store.releases, s.store.orders, s.store.products, s.store.vendors} {
		_, err := coll.DeleteMany(ctx, bson.M{})
		s.Require().NoError(err)
	}
}

func (s *StoreSuite) TearDownSuite() {
	s.Require().NoError(s.client.Database(s.dbName).Drop(context.Background()))
	s.Require().NoError(s.store.Close())
}

func (s *StoreSuite) newProduct(stock int) *models.Product {
	ctx := context.Background()
	vendor := &models.Vendor{BaseModel: models.BaseModel{ID: uuid.New()}, Name: "Bakery", Latitude: 1, Longitude: 1}
	s.Require().NoError(s.store.CreateVendor(ctx, vendor))
	product := &models.Product{
		BaseModel: models.BaseModel{ID: uuid.New()},
		VendorID:  vendor.ID,
		Name:      "Rye loaf",
		Price:     decimal.RequireFromString("6.50"),
		Stock:     stock,
	}
	s.Require().NoError(s.store.CreateProduct(ctx, product))
	return product
}

func (s *StoreSuite) TestConcurrentOrdersNeverOversell() {
	product := s.newProduct(5)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.CommitOrder(context.Background(), &models.Order{
				ID: uuid.New(), ProductID: product.ID, BuyerID: "buyer", Quantity: 1,
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			s.ErrorIs(err, repository.ErrInsufficientStock)
		}()
	}
	wg.Wait()

	s.Equal(5, ok)
	got, err := s.store.GetProduct(context.Background(), product.ID)
	s.Require().NoError(err)
	s.Equal(0, got.Stock)

	orders, err := s.store.ListOrders(context.Background(), product.ID)
	s.Require().NoError(err)
	s.Len(orders, 5)
}

func (s *StoreSuite) TestUnknownProduct() {
	err := s.store.CommitOrder(context.Background(), &models.Order{ID: uuid.New(), ProductID: uuid.New(), BuyerID: "b", Quantity: 1})
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *StoreSuite) TestReleaseIsIdempotent() {
	ctx := context.Background()
	product := s.newProduct(1)
	order := &models.Order{ID: uuid.New(), ProductID: product.ID, BuyerID: "buyer", Quantity: 1}
	s.Require().NoError(s.store.CommitOrder(ctx, order))
	s.Equal(0, order.RemainingStock)

	release := func() (int, error) {
		return s.store.CommitRelease(ctx, &models.StockRelease{OrderID: order.ID, ProductID: product.ID, Quantity: 1})
	}
	stock, err := release()
	s.Require().NoError(err)
	s.Equal(1, stock)

	stock, err = release()
	s.ErrorIs(err, repository.ErrAlreadyReleased)
	s.Equal(1, stock)
}

func (s *StoreSuite) TestCampaignVersionCheck() {
	ctx := context.Background()
	campaign := &models.Campaign{
		BaseModel:    models.BaseModel{ID: uuid.New()},
		VendorID:     uuid.New(),
		Title:        "Wood oven",
		TargetAmount: decimal.NewFromInt(100),
		Deadline:     time.Now().Add(-time.Minute).UTC(),
		Status:       models.CampaignStatusActive,
	}
	s.Require().NoError(s.store.CreateCampaign(ctx, campaign))

	due, err := s.store.ListDueCampaigns(ctx, time.Now())
	s.Require().NoError(err)
	s.Len(due, 1)

	stale := *campaign
	campaign.CurrentAmount = decimal.NewFromInt(60)
	campaign.Status = models.CampaignStatusFunded
	s.Require().NoError(s.store.CommitPledge(ctx, campaign, &models.Pledge{
		ID: uuid.New(), CampaignID: campaign.ID, BackerID: "a", Amount: decimal.NewFromInt(60),
	}))
	s.Equal(int64(1), campaign.Version)

	err = s.store.UpdateCampaignStatus(ctx, &stale)
	s.ErrorIs(err, repository.ErrStaleVersion)

	got, err := s.store.GetCampaign(ctx, campaign.ID)
	s.Require().NoError(err)
	s.Equal(models.CampaignStatusFunded, got.Status)
	s.True(got.CurrentAmount.Equal(decimal.NewFromInt(60)))

	has, err := s.store.HasPledgeFrom(ctx, campaign.ID, "a")
	s.Require().NoError(err)
	s.True(has)

	due, err = s.store.ListDueCampaigns(ctx, time.Now())
	s.Require().NoError(err)
	s.Empty(due)
}

func (s *StoreSuite) TestListVendorsCreatedSince() {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"old", "edge", "new"} {
		s.Require().NoError(s.store.CreateVendor(ctx, &models.Vendor{
			BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: base.Add(time.Duration(i) * time.Minute)},
			Name:      name,
		}))
	}

	vendors, err := s.store.ListVendorsCreatedSince(ctx, base.Add(time.Minute))
	s.Require().NoError(err)
	s.Require().Len(vendors, 2)
	s.Equal("edge", vendors[0].Name)
	s.Equal("new", vendors[1].Name)
}
