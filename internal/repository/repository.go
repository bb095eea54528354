// internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/nearby-market/internal/models"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyReleased   = errors.New("order already released")
	// ErrStaleVersion means the aggregate changed since it was read.
	ErrStaleVersion = errors.New("stale aggregate version")
)

type VendorRepository interface {
	CreateVendor(ctx context.Context, vendor *models.Vendor) error
	GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	ListVendors(ctx context.Context) ([]models.Vendor, error)
	// ListVendorsCreatedSince returns vendors whose CreatedAt is not before
	// since, oldest first.
	ListVendorsCreatedSince(ctx context.Context, since time.Time) ([]models.Vendor, error)
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProductsByVendors(ctx context.Context, vendorIDs []uuid.UUID) ([]models.Product, error)

	// CommitOrder decrements the product stock by order.Quantity and appends
	// the order as one atomic step. order.RemainingStock is filled in from
	// the committed stock. ErrInsufficientStock leaves everything unchanged.
	CommitOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, productID uuid.UUID) ([]models.Order, error)

	// CommitRelease restores release.Quantity and records the release as one
	// atomic step, returning the new stock. A second release of the same
	// order returns ErrAlreadyReleased and the current stock.
	CommitRelease(ctx context.Context, release *models.StockRelease) (int, error)
}

type CampaignRepository interface {
	CreateCampaign(ctx context.Context, campaign *models.Campaign) error
	GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	ListCampaignsByVendors(ctx context.Context, vendorIDs []uuid.UUID) ([]models.Campaign, error)
	// ListDueCampaigns returns active campaigns whose deadline is before now.
	ListDueCampaigns(ctx context.Context, now time.Time) ([]models.Campaign, error)

	// CommitPledge appends pledge and stores the campaign's amount, backer
	// count, status and timestamps in one atomic step. campaign.Version must
	// be the version that was read; it is incremented on success.
	CommitPledge(ctx context.Context, campaign *models.Campaign, pledge *models.Pledge) error
	// UpdateCampaignStatus stores a status change under the same version rule.
	UpdateCampaignStatus(ctx context.Context, campaign *models.Campaign) error
	ListPledges(ctx context.Context, campaignID uuid.UUID) ([]models.Pledge, error)
	HasPledgeFrom(ctx context.Context, campaignID uuid.UUID, backerID string) (bool, error)
}

// Store bundles every repository behind one durable backend.
type Store interface {
	VendorRepository
	ProductRepository
	CampaignRepository
	Close() error
}
