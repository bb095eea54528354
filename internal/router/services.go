// internal/router/services.go
package router

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/nearby-market/internal/config"
	"github.com/javajoker/nearby-market/internal/geo"
	"github.com/javajoker/nearby-market/internal/keylock"
	"github.com/javajoker/nearby-market/internal/repository"
	"github.com/javajoker/nearby-market/internal/services"
)

// Services is the set of domain services the HTTP layer routes to.
type Services struct {
	Index       *geo.Index
	Vendors     *services.VendorService
	Ledger      *services.InventoryLedger
	Search      *services.SearchService
	Campaigns   *services.CampaignEngine
	Coordinator *services.TransactionCoordinator
}

// NewServices wires every service over one store and one geo index. now may
// be nil to use the wall clock.
func NewServices(store repository.Store, cfg config.MarketplaceConfig, log logrus.FieldLogger, now func() time.Time) *Services {
	index := geo.NewIndex()
	locks := keylock.New(cfg.LockTimeout)

	ledger := services.NewInventoryLedger(store, store, locks, log.WithField("component", "inventory"), now)
	campaigns := services.NewCampaignEngine(store, store, locks, log.WithField("component", "campaigns"), now)

	return &Services{
		Index:       index,
		Vendors:     services.NewVendorService(store, index, log.WithField("component", "vendors")),
		Ledger:      ledger,
		Search:      services.NewSearchService(index, store, store, store, cfg.DefaultRadiusMeters, cfg.MaxRadiusMeters),
		Campaigns:   campaigns,
		Coordinator: services.NewTransactionCoordinator(ledger, campaigns),
	}
}
