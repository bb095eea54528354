// internal/services/search_service.go
package services

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/javajoker/nearby-market/internal/apperror"
	"github.com/javajoker/nearby-market/internal/geo"
	"github.com/javajoker/nearby-market/internal/models"
	"github.com/javajoker/nearby-market/internal/repository"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// SearchService answers location-ranked queries. It only reads: nothing
// here takes an aggregate lock or writes to the store or the index.
type SearchService struct {
	index         *geo.Index
	vendors       repository.VendorRepository
	products      repository.ProductRepository
	campaigns     repository.CampaignRepository
	defaultRadius float64
	maxRadius     float64
}

type SearchRequest struct {
	Query string
	// Origin is required; nil fails with LocationRequired.
	Origin *geo.Point
	// RadiusMeters falls back to the configured default when nil.
	RadiusMeters *float64
	Limit        int
	Offset       int
}

type VendorSummary struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	Location [2]float64 `json:"location"`
}

type ProductHit struct {
	Product        models.Product `json:"product"`
	Vendor         VendorSummary  `json:"vendor"`
	DistanceMeters float64        `json:"distanceMeters"`
}

type SearchPage struct {
	Results []ProductHit `json:"results"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

type NearbyCampaignsRequest struct {
	Origin       *geo.Point
	RadiusMeters *float64
	Status       *models.CampaignStatus
	Category     string
}

type CampaignHit struct {
	models.Campaign
	VendorName      string          `json:"vendorName"`
	DistanceMeters  float64         `json:"distanceMeters"`
	ProgressPercent decimal.Decimal `json:"progress"`
}

func NewSearchService(index *geo.Index, vendors repository.VendorRepository, products repository.ProductRepository, campaigns repository.CampaignRepository, defaultRadius, maxRadius float64) *SearchService {
	return &SearchService{
		index:         index,
		vendors:       vendors,
		products:      products,
		campaigns:     campaigns,
		defaultRadius: defaultRadius,
		maxRadius:     maxRadius,
	}
}

func (s *SearchService) radius(requested *float64) (float64, error) {
	if requested == nil {
		return s.defaultRadius, nil
	}
	r := *requested
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return 0, apperror.Validation(apperror.CodeInvalidRadius, "radius %v must be a non-negative number of meters", r)
	}
	if s.maxRadius > 0 && r > s.maxRadius {
		return 0, apperror.Validation(apperror.CodeInvalidRadius, "radius %v exceeds the maximum of %v meters", r, s.maxRadius)
	}
	return r, nil
}

type nearbyVendor struct {
	vendor   *models.Vendor
	distance float64
}

// nearbyVendors resolves the geo index hits around origin to vendor records.
func (s *SearchService) nearbyVendors(ctx context.Context, origin *geo.Point, requested *float64) (map[uuid.UUID]nearbyVendor, []uuid.UUID, error) {
	if origin == nil {
		return nil, nil, apperror.ErrLocationRequired
	}
	radius, err := s.radius(requested)
	if err != nil {
		return nil, nil, err
	}
	neighbors, err := s.index.WithinRadius(*origin, radius)
	if err != nil {
		return nil, nil, err
	}

	found := make(map[uuid.UUID]nearbyVendor)
	var ids []uuid.UUID
	for n := range neighbors {
		vendor, err := s.vendors.GetVendor(ctx, n.EntityID)
		if err != nil {
			return nil, nil, storeError(err, apperror.ErrVendorNotFound, "load vendor")
		}
		found[n.EntityID] = nearbyVendor{vendor: vendor, distance: n.DistanceMeters}
		ids = append(ids, n.EntityID)
	}
	return found, ids, nil
}

// Search returns in-stock products of vendors within the radius whose name
// or description contains the query, nearest first with ties broken by
// product id.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchPage, error) {
	limit := req.Limit
	if limit < 1 || limit > MaxSearchLimit {
		limit = DefaultSearchLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	vendors, ids, err := s.nearbyVendors(ctx, req.Origin, req.RadiusMeters)
	if err != nil {
		return nil, err
	}
	page := &SearchPage{Results: []ProductHit{}, Limit: limit, Offset: offset}
	if len(ids) == 0 {
		return page, nil
	}

	products, err := s.products.ListProductsByVendors(ctx, ids)
	if err != nil {
		return nil, storeError(err, apperror.ErrProductNotFound, "list products")
	}

	query := strings.ToLower(strings.TrimSpace(req.Query))
	hits := make([]ProductHit, 0, len(products))
	for _, product := range products {
		if product.Stock <= 0 || !matches(product, query) {
			continue
		}
		nv := vendors[product.VendorID]
		hits = append(hits, ProductHit{
			Product: product,
			Vendor: VendorSummary{
				ID:       nv.vendor.ID,
				Name:     nv.vendor.Name,
				Location: nv.vendor.Location().GeoJSON(),
			},
			DistanceMeters: nv.distance,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceMeters != hits[j].DistanceMeters {
			return hits[i].DistanceMeters < hits[j].DistanceMeters
		}
		return hits[i].Product.ID.String() < hits[j].Product.ID.String()
	})

	page.Total = len(hits)
	if offset < len(hits) {
		end := min(offset+limit, len(hits))
		page.Results = hits[offset:end]
	}
	return page, nil
}

func matches(product models.Product, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(product.Name), query) ||
		strings.Contains(strings.ToLower(product.Description), query)
}

// NearbyCampaigns lists campaigns run by vendors within the radius, nearest
// first. Status and category narrow the result when set.
func (s *SearchService) NearbyCampaigns(ctx context.Context, req NearbyCampaignsRequest) ([]CampaignHit, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, apperror.Validation(apperror.CodeInvalidRequest, "unknown campaign status %q", *req.Status)
	}

	vendors, ids, err := s.nearbyVendors(ctx, req.Origin, req.RadiusMeters)
	if err != nil {
		return nil, err
	}
	hits := []CampaignHit{}
	if len(ids) == 0 {
		return hits, nil
	}

	campaigns, err := s.campaigns.ListCampaignsByVendors(ctx, ids)
	if err != nil {
		return nil, storeError(err, apperror.ErrCampaignNotFound, "list campaigns")
	}
	for _, campaign := range campaigns {
		if req.Status != nil && campaign.Status != *req.Status {
			continue
		}
		if req.Category != "" && !strings.EqualFold(campaign.Category, req.Category) {
			continue
		}
		nv := vendors[campaign.VendorID]
		hits = append(hits, CampaignHit{
			Campaign:        campaign,
			VendorName:      nv.vendor.Name,
			DistanceMeters:  nv.distance,
			ProgressPercent: campaign.ProgressPercent(),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceMeters != hits[j].DistanceMeters {
			return hits[i].DistanceMeters < hits[j].DistanceMeters
		}
		return hits[i].ID.String() < hits[j].ID.String()
	})
	return hits, nil
}
