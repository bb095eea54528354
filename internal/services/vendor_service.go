// internal/services/vendor_service.go
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/nearby-market/internal/apperror"
	"github.com/javajoker/nearby-market/internal/geo"
	"github.com/javajoker/nearby-market/internal/models"
	"github.com/javajoker/nearby-market/internal/repository"
	"github.com/javajoker/nearby-market/internal/utils"
)

// indexSyncOverlap is how far back each refresh re-reads before the previous
// one, covering clock skew between instances and commits that landed late.
const indexSyncOverlap = time.Minute

type VendorService struct {
	vendors repository.VendorRepository
	index   *geo.Index
	log     logrus.FieldLogger

	syncMu   sync.Mutex
	syncedAt time.Time
}

type CreateVendorRequest struct {
	Name        string  `json:"name" validate:"required,notblank,max=255"`
	Description string  `json:"description" validate:"max=5000"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

func NewVendorService(vendors repository.VendorRepository, index *geo.Index, log logrus.FieldLogger) *VendorService {
	return &VendorService{
		vendors: vendors,
		index:   index,
		log:     log,
	}
}

// CreateVendor onboards a vendor and makes it visible to radius queries.
func (s *VendorService) CreateVendor(ctx context.Context, req *CreateVendorRequest) (*models.Vendor, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidVendor, "validation failed: %v", err)
	}
	location, err := geo.NewPoint(req.Latitude, req.Longitude)
	if err != nil {
		return nil, err
	}

	vendor := &models.Vendor{
		BaseModel:   models.BaseModel{ID: uuid.New()},
		Name:        req.Name,
		Description: req.Description,
		Latitude:    location.Lat,
		Longitude:   location.Long,
	}
	if err := s.vendors.CreateVendor(ctx, vendor); err != nil {
		return nil, storeError(err, apperror.ErrVendorNotFound, "create vendor")
	}
	if err := s.index.IndexLocation(vendor.ID, vendor.Latitude, vendor.Longitude); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"vendor_id": vendor.ID,
		"latitude":  vendor.Latitude,
		"longitude": vendor.Longitude,
	}).Info("vendor onboarded")
	return vendor, nil
}

func (s *VendorService) GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	vendor, err := s.vendors.GetVendor(ctx, id)
	if err != nil {
		return nil, storeError(err, apperror.ErrVendorNotFound, "load vendor")
	}
	return vendor, nil
}

func (s *VendorService) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	vendors, err := s.vendors.ListVendors(ctx)
	if err != nil {
		return nil, storeError(err, apperror.ErrVendorNotFound, "list vendors")
	}
	return vendors, nil
}

// RebuildIndex loads every persisted vendor into the geo index. It runs once
// at startup since the index itself is not durable.
func (s *VendorService) RebuildIndex(ctx context.Context) (int, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	started := time.Now().UTC()
	vendors, err := s.ListVendors(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.indexVendors(vendors); err != nil {
		return s.index.Len(), err
	}
	s.syncedAt = started
	s.log.WithField("vendors", s.index.Len()).Info("geo index rebuilt")
	return s.index.Len(), nil
}

// SyncIndex adds vendors onboarded through other instances sharing the
// store since the previous sync and reports how many were new to this
// index. The first call behaves like RebuildIndex.
func (s *VendorService) SyncIndex(ctx context.Context) (int, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	started := time.Now().UTC()
	var (
		vendors []models.Vendor
		err     error
	)
	if s.syncedAt.IsZero() {
		vendors, err = s.vendors.ListVendors(ctx)
	} else {
		vendors, err = s.vendors.ListVendorsCreatedSince(ctx, s.syncedAt.Add(-indexSyncOverlap))
	}
	if err != nil {
		return 0, storeError(err, apperror.ErrVendorNotFound, "list vendors")
	}

	added := 0
	for _, vendor := range vendors {
		if _, ok := s.index.Location(vendor.ID); !ok {
			added++
		}
	}
	if err := s.indexVendors(vendors); err != nil {
		return 0, err
	}
	s.syncedAt = started
	if added > 0 {
		s.log.WithFields(logrus.Fields{"added": added, "vendors": s.index.Len()}).Info("geo index synced")
	}
	return added, nil
}

func (s *VendorService) indexVendors(vendors []models.Vendor) error {
	for _, vendor := range vendors {
		if err := s.index.IndexLocation(vendor.ID, vendor.Latitude, vendor.Longitude); err != nil {
			return err
		}
	}
	return nil
}
