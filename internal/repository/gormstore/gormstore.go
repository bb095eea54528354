// internal/repository/gormstore/gormstore.go
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/nearby-market/internal/models"
	"github.com/javajoker/nearby-market/internal/repository"
)

// Store persists aggregates in postgres. Every mutation of a product or
// campaign runs in one transaction holding that row's lock, so concurrent
// instances serialize on the row rather than on a process-local mutex.
type Store struct {
	db *gorm.DB
}

var _ repository.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}
	return err
}

func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Vendors

func (s *Store) CreateVendor(ctx context.Context, vendor *models.Vendor) error {
	if err := s.db.WithContext(ctx).Create(vendor).Error; err != nil {
		return fmt.Errorf("failed to create vendor: %w", err)
	}
	return nil
}

func (s *Store) GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := s.db.WithContext(ctx).First(&vendor, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &vendor, nil
}

func (s *Store) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	var vendors []models.Vendor
	if err := s.db.WithContext(ctx).Order("id").Find(&vendors).Error; err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	return vendors, nil
}

func (s *Store) ListVendorsCreatedSince(ctx context.Context, since time.Time) ([]models.Vendor, error) {
	var vendors []models.Vendor
	err := s.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at, id").
		Find(&vendors).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list new vendors: %w", err)
	}
	return vendors, nil
}

// Products

func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func (s *Store) ListProductsByVendors(ctx context.Context, vendorIDs []uuid.UUID) ([]models.Product, error) {
	if len(vendorIDs) == 0 {
		return nil, nil
	}
	var products []models.Product
	if err := s.db.WithContext(ctx).Where("vendor_id IN ?", vendorIDs).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *Store) CommitOrder(ctx context.Context, order *models.Order) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Conditional decrement: the row lock taken by UPDATE serializes
		// concurrent orders and the predicate refuses to go below zero.
		res := tx.Model(&models.Product{}).
			Where("id = ? AND stock >= ?", order.ProductID, order.Quantity).
			Updates(map[string]interface{}{
				"stock":      gorm.Expr("stock - ?", order.Quantity),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update stock: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Product{}).Where("id = ?", order.ProductID).Count(&count).Error; err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			if count == 0 {
				return repository.ErrNotFound
			}
			return repository.ErrInsufficientStock
		}

		var stock int
		if err := tx.Model(&models.Product{}).Select("stock").
			Where("id = ?", order.ProductID).Scan(&stock).Error; err != nil {
			return fmt.Errorf("failed to read stock: %w", err)
		}
		order.RemainingStock = stock

		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (s *Store) ListOrders(ctx context.Context, productID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	if err := s.db.WithContext(ctx).Where("product_id = ?", productID).
		Order("created_at ASC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *Store) CommitRelease(ctx context.Context, release *models.StockRelease) (int, error) {
	var stock int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := forUpdate(tx).First(&product, "id = ?", release.ProductID).Error; err != nil {
			return notFound(err)
		}
		stock = product.Stock

		// Releases of one product serialize on the product row, so the
		// existence check cannot race with another insert for the same order.
		var count int64
		if err := tx.Model(&models.StockRelease{}).Where("order_id = ?", release.OrderID).Count(&count).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		if count > 0 {
			return repository.ErrAlreadyReleased
		}

		if err := tx.Create(release).Error; err != nil {
			return fmt.Errorf("failed to record release: %w", err)
		}
		if err := tx.Model(&product).Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock + ?", release.Quantity),
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
			return fmt.Errorf("failed to restore stock: %w", err)
		}
		stock += release.Quantity
		return nil
	})
	return stock, err
}

// Campaigns

func (s *Store) CreateCampaign(ctx context.Context, campaign *models.Campaign) error {
	if err := s.db.WithContext(ctx).Create(campaign).Error; err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := s.db.WithContext(ctx).First(&campaign, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &campaign, nil
}

func (s *Store) ListCampaignsByVendors(ctx context.Context, vendorIDs []uuid.UUID) ([]models.Campaign, error) {
	if len(vendorIDs) == 0 {
		return nil, nil
	}
	var campaigns []models.Campaign
	if err := s.db.WithContext(ctx).Where("vendor_id IN ?", vendorIDs).Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

func (s *Store) ListDueCampaigns(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	if err := s.db.WithContext(ctx).
		Where("status = ? AND deadline < ?", models.CampaignStatusActive, now).
		Order("deadline ASC").Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to list due campaigns: %w", err)
	}
	return campaigns, nil
}

func (s *Store) CommitPledge(ctx context.Context, campaign *models.Campaign, pledge *models.Pledge) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.writeCampaign(tx, campaign); err != nil {
			return err
		}
		if err := tx.Create(pledge).Error; err != nil {
			return fmt.Errorf("failed to create pledge: %w", err)
		}
		return nil
	})
}

func (s *Store) UpdateCampaignStatus(ctx context.Context, campaign *models.Campaign) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.writeCampaign(tx, campaign)
	})
}

// writeCampaign locks the campaign row, checks the version the caller read
// and stores the mutable columns with an incremented version.
func (s *Store) writeCampaign(tx *gorm.DB, campaign *models.Campaign) error {
	var current models.Campaign
	if err := forUpdate(tx).Select("id", "version").First(&current, "id = ?", campaign.ID).Error; err != nil {
		return notFound(err)
	}
	if current.Version != campaign.Version {
		return repository.ErrStaleVersion
	}

	now := time.Now().UTC()
	res := tx.Model(&models.Campaign{}).
		Where("id = ? AND version = ?", campaign.ID, campaign.Version).
		Updates(map[string]interface{}{
			"current_amount": campaign.CurrentAmount,
			"backers":        campaign.Backers,
			"status":         campaign.Status,
			"funded_at":      campaign.FundedAt,
			"delivered_at":   campaign.DeliveredAt,
			"failed_at":      campaign.FailedAt,
			"version":        campaign.Version + 1,
			"updated_at":     now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update campaign: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrStaleVersion
	}
	campaign.Version++
	campaign.UpdatedAt = now
	return nil
}

func (s *Store) ListPledges(ctx context.Context, campaignID uuid.UUID) ([]models.Pledge, error) {
	var pledges []models.Pledge
	if err := s.db.WithContext(ctx).Where("campaign_id = ?", campaignID).
		Order("created_at ASC").Find(&pledges).Error; err != nil {
		return nil, fmt.Errorf("failed to list pledges: %w", err)
	}
	return pledges, nil
}

func (s *Store) HasPledgeFrom(ctx context.Context, campaignID uuid.UUID, backerID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Pledge{}).
		Where("campaign_id = ? AND backer_id = ?", campaignID, backerID).
		Limit(1).Count(&count).Error; err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return count > 0, nil
}
