// internal/repository/memstore/memstore.go
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/nearby-market/internal/models"
	"github.com/javajoker/nearby-market/internal/repository"
)

type productRecord struct {
	mu      sync.Mutex
	product models.Product
	orders  []uuid.UUID
}

type campaignRecord struct {
	mu       sync.Mutex
	campaign models.Campaign
	pledges  []models.Pledge
	backers  map[string]struct{}
}

type vendorChildren struct {
	mu        sync.Mutex
	products  []uuid.UUID
	campaigns []uuid.UUID
}

// Store keeps every aggregate in its own record with its own mutex, so
// writes to different products or campaigns never contend.
type Store struct {
	vendors   sync.Map // uuid.UUID -> models.Vendor
	children  sync.Map // vendor uuid.UUID -> *vendorChildren
	products  sync.Map // uuid.UUID -> *productRecord
	orders    sync.Map // uuid.UUID -> models.Order
	releases  sync.Map // order uuid.UUID -> models.StockRelease
	campaigns sync.Map // uuid.UUID -> *campaignRecord
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) Close() error { return nil }

func (s *Store) childrenOf(vendorID uuid.UUID) *vendorChildren {
	v, _ := s.children.LoadOrStore(vendorID, &vendorChildren{})
	return v.(*vendorChildren)
}

// Vendors

func (s *Store) CreateVendor(_ context.Context, vendor *models.Vendor) error {
	stamp(&vendor.BaseModel)
	s.vendors.Store(vendor.ID, *vendor)
	return nil
}

func (s *Store) GetVendor(_ context.Context, id uuid.UUID) (*models.Vendor, error) {
	v, ok := s.vendors.Load(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	vendor := v.(models.Vendor)
	return &vendor, nil
}

func (s *Store) ListVendors(_ context.Context) ([]models.Vendor, error) {
	var vendors []models.Vendor
	s.vendors.Range(func(_, v any) bool {
		vendors = append(vendors, v.(models.Vendor))
		return true
	})
	sort.Slice(vendors, func(i, j int) bool {
		return vendors[i].ID.String() < vendors[j].ID.String()
	})
	return vendors, nil
}

func (s *Store) ListVendorsCreatedSince(_ context.Context, since time.Time) ([]models.Vendor, error) {
	var vendors []models.Vendor
	s.vendors.Range(func(_, v any) bool {
		if vendor := v.(models.Vendor); !vendor.CreatedAt.Before(since) {
			vendors = append(vendors, vendor)
		}
		return true
	})
	sort.Slice(vendors, func(i, j int) bool {
		if !vendors[i].CreatedAt.Equal(vendors[j].CreatedAt) {
			return vendors[i].CreatedAt.Before(vendors[j].CreatedAt)
		}
		return vendors[i].ID.String() < vendors[j].ID.String()
	})
	return vendors, nil
}

// Products

func (s *Store) CreateProduct(_ context.Context, product *models.Product) error {
	stamp(&product.BaseModel)
	s.products.Store(product.ID, &productRecord{product: *product})

	children := s.childrenOf(product.VendorID)
	children.mu.Lock()
	children.products = append(children.products, product.ID)
	children.mu.Unlock()
	return nil
}

func (s *Store) productRecord(id uuid.UUID) (*productRecord, error) {
	v, ok := s.products.Load(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return v.(*productRecord), nil
}

func (s *Store) GetProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	rec, err := s.productRecord(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	product := rec.product
	rec.mu.Unlock()
	return &product, nil
}

func (s *Store) ListProductsByVendors(ctx context.Context, vendorIDs []uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	for _, vendorID := range vendorIDs {
		v, ok := s.children.Load(vendorID)
		if !ok {
			continue
		}
		children := v.(*vendorChildren)
		children.mu.Lock()
		ids := append([]uuid.UUID(nil), children.products...)
		children.mu.Unlock()

		for _, id := range ids {
			product, err := s.GetProduct(ctx, id)
			if err != nil {
				return nil, err
			}
			products = append(products, *product)
		}
	}
	return products, nil
}

func (s *Store) CommitOrder(_ context.Context, order *models.Order) error {
	rec, err := s.productRecord(order.ProductID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.product.Stock < order.Quantity {
		return repository.ErrInsufficientStock
	}
	now := time.Now().UTC()
	rec.product.Stock -= order.Quantity
	rec.product.UpdatedAt = now

	order.RemainingStock = rec.product.Stock
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	rec.orders = append(rec.orders, order.ID)
	s.orders.Store(order.ID, *order)
	return nil
}

func (s *Store) GetOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	v, ok := s.orders.Load(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	order := v.(models.Order)
	return &order, nil
}

func (s *Store) ListOrders(_ context.Context, productID uuid.UUID) ([]models.Order, error) {
	rec, err := s.productRecord(productID)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	ids := append([]uuid.UUID(nil), rec.orders...)
	rec.mu.Unlock()

	orders := make([]models.Order, 0, len(ids))
	for _, id := range ids {
		if v, ok := s.orders.Load(id); ok {
			orders = append(orders, v.(models.Order))
		}
	}
	return orders, nil
}

func (s *Store) CommitRelease(_ context.Context, release *models.StockRelease) (int, error) {
	rec, err := s.productRecord(release.ProductID)
	if err != nil {
		return 0, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if _, exists := s.releases.Load(release.OrderID); exists {
		return rec.product.Stock, repository.ErrAlreadyReleased
	}
	now := time.Now().UTC()
	if release.CreatedAt.IsZero() {
		release.CreatedAt = now
	}
	s.releases.Store(release.OrderID, *release)
	rec.product.Stock += release.Quantity
	rec.product.UpdatedAt = now
	return rec.product.Stock, nil
}

// Campaigns

func (s *Store) CreateCampaign(_ context.Context, campaign *models.Campaign) error {
	stamp(&campaign.BaseModel)
	s.campaigns.Store(campaign.ID, &campaignRecord{
		campaign: *campaign,
		backers:  make(map[string]struct{}),
	})

	children := s.childrenOf(campaign.VendorID)
	children.mu.Lock()
	children.campaigns = append(children.campaigns, campaign.ID)
	children.mu.Unlock()
	return nil
}

func (s *Store) campaignRecord(id uuid.UUID) (*campaignRecord, error) {
	v, ok := s.campaigns.Load(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return v.(*campaignRecord), nil
}

func (s *Store) GetCampaign(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	rec, err := s.campaignRecord(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	campaign := rec.campaign
	rec.mu.Unlock()
	return &campaign, nil
}

func (s *Store) ListCampaignsByVendors(ctx context.Context, vendorIDs []uuid.UUID) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	for _, vendorID := range vendorIDs {
		v, ok := s.children.Load(vendorID)
		if !ok {
			continue
		}
		children := v.(*vendorChildren)
		children.mu.Lock()
		ids := append([]uuid.UUID(nil), children.campaigns...)
		children.mu.Unlock()

		for _, id := range ids {
			campaign, err := s.GetCampaign(ctx, id)
			if err != nil {
				return nil, err
			}
			campaigns = append(campaigns, *campaign)
		}
	}
	return campaigns, nil
}

func (s *Store) ListDueCampaigns(_ context.Context, now time.Time) ([]models.Campaign, error) {
	var due []models.Campaign
	s.campaigns.Range(func(_, v any) bool {
		rec := v.(*campaignRecord)
		rec.mu.Lock()
		if rec.campaign.Status == models.CampaignStatusActive && rec.campaign.Deadline.Before(now) {
			due = append(due, rec.campaign)
		}
		rec.mu.Unlock()
		return true
	})
	sort.Slice(due, func(i, j int) bool {
		return due[i].Deadline.Before(due[j].Deadline)
	})
	return due, nil
}

func (s *Store) CommitPledge(_ context.Context, campaign *models.Campaign, pledge *models.Pledge) error {
	rec, err := s.campaignRecord(campaign.ID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.campaign.Version != campaign.Version {
		return repository.ErrStaleVersion
	}
	now := time.Now().UTC()
	if pledge.CreatedAt.IsZero() {
		pledge.CreatedAt = now
	}
	campaign.Version++
	campaign.UpdatedAt = now

	rec.pledges = append(rec.pledges, *pledge)
	rec.backers[pledge.BackerID] = struct{}{}
	rec.campaign = *campaign
	return nil
}

func (s *Store) UpdateCampaignStatus(_ context.Context, campaign *models.Campaign) error {
	rec, err := s.campaignRecord(campaign.ID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.campaign.Version != campaign.Version {
		return repository.ErrStaleVersion
	}
	campaign.Version++
	campaign.UpdatedAt = time.Now().UTC()
	rec.campaign = *campaign
	return nil
}

func (s *Store) ListPledges(_ context.Context, campaignID uuid.UUID) ([]models.Pledge, error) {
	rec, err := s.campaignRecord(campaignID)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]models.Pledge(nil), rec.pledges...), nil
}

func (s *Store) HasPledgeFrom(_ context.Context, campaignID uuid.UUID, backerID string) (bool, error) {
	rec, err := s.campaignRecord(campaignID)
	if err != nil {
		return false, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	_, ok := rec.backers[backerID]
	return ok, nil
}

func stamp(base *models.BaseModel) {
	now := time.Now().UTC()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}
