package gormstore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/nearby-market/internal/models"
	"github.com/javajoker/nearby-market/internal/repository"
)

// StoreSuite runs against a real postgres when MARKETPLACE_TEST_DSN is set.
type StoreSuite struct {
	suite.Suite
	db    *gorm.DB
	store *Store
}

func TestStoreSuite(t *testing.T) {
	if os.Getenv("MARKETPLACE_TEST_DSN") == "" {
		t.Skip("MARKETPLACE_TEST_DSN not set")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	db, err := gorm.Open(postgres.Open(os.Getenv("MARKETPLACE_TEST_DSN")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(
		&models.Vendor{}, &models.Product{}, &models.Order{}, &models.StockRelease{},
		&models.Campaign{}, &models.Pledge{},
	))
	s.db = db
	s.store = New(db)
}

func (s *StoreSuite) SetupTest() {
	for _, table := range []string{"pledges", "campaigns", "stock_releases", "orders", "products", "vendors"} {
		s.Require().NoError(s.db.Exec("DELETE FROM " + table).Error)
	}
}

func (s *StoreSuite) TearDownSuite() {
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
		Deadline:     time.Now().Add(time.Hour),
		Status:       models.CampaignStatusActive,
	}
	s.Require().NoError(s.store.CreateCampaign(ctx, campaign))

	stale := *campaign
	campaign.CurrentAmount = decimal.NewFromInt(60)
	campaign.Status = models.CampaignStatusFunded
	s.Require().NoError(s.store.CommitPledge(ctx, campaign, &models.Pledge{
		ID: uuid.New(), CampaignID: campaign.ID, BackerID: "a", Amount: decimal.NewFromInt(60),
	}))

	err := s.store.UpdateCampaignStatus(ctx, &stale)
	s.ErrorIs(err, repository.ErrStaleVersion)

	got, err := s.store.GetCampaign(ctx, campaign.ID)
	s.Require().NoError(err)
	s.Equal(models.CampaignStatusFunded, got.Status)
	s.True(got.CurrentAmount.Equal(decimal.NewFromInt(60)))

	has, err := s.store.HasPledgeFrom(ctx, campaign.ID, "a")
	s.Require().NoError(err)
	s.True(has)
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
