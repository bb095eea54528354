// internal/repository/mongostore/mongostore.go
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/javajoker/nearby-market/internal/models"
	"github.com/javajoker/nearby-market/internal/repository"
)

const (
	vendorsCollection   = "vendors"
	productsCollection  = "products"
	ordersCollection    = "orders"
	releasesCollection  = "stock_releases"
	campaignsCollection = "campaigns"
	pledgesCollection   = "pledges"
)

// Store persists aggregates in MongoDB. A stock change and its order (or
// release) and a campaign update and its pledge are written in one
// multi-document transaction, so the deployment must be a replica set.
type Store struct {
	client    *mongo.Client
	vendors   *mongo.Collection
	products  *mongo.Collection
	orders    *mongo.Collection
	releases  *mongo.Collection
	campaigns *mongo.Collection
	pledges   *mongo.Collection
}

var _ repository.Store = (*Store)(nil)

func New(client *mongo.Client, dbName string) *Store {
	db := client.Database(dbName)
	return &Store{
		client:    client,
		vendors:   db.Collection(vendorsCollection),
		products:  db.Collection(productsCollection),
		orders:    db.Collection(ordersCollection),
		releases:  db.Collection(releasesCollection),
		campaigns: db.Collection(campaignsCollection),
		pledges:   db.Collection(pledgesCollection),
	}
}

// EnsureIndexes creates the secondary indexes. Creating them also creates
// the collections, which older servers refuse to do inside a transaction.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.products:  {{Keys: bson.D{{Key: "vendorId", Value: 1}}}},
		s.orders:    {{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "createdAt", Value: 1}}}},
		s.releases:  {{Keys: bson.D{{Key: "productId", Value: 1}}}},
		s.campaigns: {{Keys: bson.D{{Key: "vendorId", Value: 1}}}, {Keys: bson.D{{Key: "status", Value: 1}, {Key: "deadline", Value: 1}}}},
		s.pledges:   {{Keys: bson.D{{Key: "campaignId", Value: 1}, {Key: "backerId", Value: 1}}}},
		s.vendors:   {{Keys: bson.D{{Key: "createdAt", Value: 1}}}},
	}
	for coll, specs := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	return err
}

// exists tells a missing document apart from a failed predicate after a
// conditional write matched nothing.
func exists(ctx context.Context, coll *mongo.Collection, id string) (bool, error) {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return n > 0, nil
}

type modeler[M any] interface {
	model() (M, error)
}

func findAll[M any, D modeler[M]](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]M, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	var docs []D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", coll.Name(), err)
	}
	out := make([]M, 0, len(docs))
	for _, doc := range docs {
		m, err := doc.model()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func stamp(base *models.BaseModel) {
	now := time.Now().UTC()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

// Vendors

func (s *Store) CreateVendor(ctx context.Context, vendor *models.Vendor) error {
	stamp(&vendor.BaseModel)
	if _, err := s.vendors.InsertOne(ctx, newVendorDoc(vendor)); err != nil {
		return fmt.Errorf("failed to create vendor: %w", err)
	}
	return nil
}

func (s *Store) GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var doc vendorDoc
	if err := s.vendors.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	vendor, err := doc.model()
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (s *Store) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	return findAll[models.Vendor, vendorDoc](ctx, s.vendors, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (s *Store) ListVendorsCreatedSince(ctx context.Context, since time.Time) ([]models.Vendor, error) {
	return findAll[models.Vendor, vendorDoc](ctx, s.vendors, bson.M{"createdAt": bson.M{"$gte": since}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
}

// Products

func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	stamp(&product.BaseModel)
	doc, err := newProductDoc(product)
	if err != nil {
		return err
	}
	if _, err := s.products.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var doc productDoc
	if err := s.products.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	product, err := doc.model()
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) ListProductsByVendors(ctx context.Context, vendorIDs []uuid.UUID) ([]models.Product, error) {
	if len(vendorIDs) == 0 {
		return nil, nil
	}
	return findAll[models.Product, productDoc](ctx, s.products,
		bson.M{"vendorId": bson.M{"$in": idStrings(vendorIDs)}})
}

// adjustStock applies delta to the product's stock and returns the new
// value. A negative delta only applies while enough stock remains.
func (s *Store) adjustStock(sc mongo.SessionContext, productID uuid.UUID, delta int) (int, error) {
	filter := bson.M{"_id": productID.String()}
	if delta < 0 {
		filter["stock"] = bson.M{"$gte": -delta}
	}
	update := bson.M{
		"$inc": bson.M{"stock": delta},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}

	var updated productDoc
	err := s.products.FindOneAndUpdate(sc, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		found, err := exists(sc, s.products, productID.String())
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, repository.ErrNotFound
		}
		return 0, repository.ErrInsufficientStock
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update stock: %w", err)
	}
	return updated.Stock, nil
}

func (s *Store) CommitOrder(ctx context.Context, order *models.Order) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		stock, err := s.adjustStock(sc, order.ProductID, -order.Quantity)
		if err != nil {
			return err
		}
		order.RemainingStock = stock

		if _, err := s.orders.InsertOne(sc, newOrderDoc(order)); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var doc orderDoc
	if err := s.orders.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	order, err := doc.model()
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) ListOrders(ctx context.Context, productID uuid.UUID) ([]models.Order, error) {
	return findAll[models.Order, orderDoc](ctx, s.orders,
		bson.M{"productId": productID.String()},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (s *Store) CommitRelease(ctx context.Context, release *models.StockRelease) (int, error) {
	if release.CreatedAt.IsZero() {
		release.CreatedAt = time.Now().UTC()
	}

	var stock int
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		var product productDoc
		if err := s.products.FindOne(sc, bson.M{"_id": release.ProductID.String()}).Decode(&product); err != nil {
			return notFound(err)
		}
		stock = product.Stock

		// Two releases racing on one order both insert the same _id; the
		// loser's transaction conflicts, is retried and then sees the record.
		released, err := exists(sc, s.releases, release.OrderID.String())
		if err != nil {
			return err
		}
		if released {
			return repository.ErrAlreadyReleased
		}

		if _, err := s.releases.InsertOne(sc, releaseDoc{
			OrderID:   release.OrderID.String(),
			ProductID: release.ProductID.String(),
			Quantity:  release.Quantity,
			CreatedAt: release.CreatedAt,
		}); err != nil {
			return fmt.Errorf("failed to record release: %w", err)
		}

		stock, err = s.adjustStock(sc, release.ProductID, release.Quantity)
		return err
	})
	return stock, err
}

// Campaigns

func (s *Store) CreateCampaign(ctx context.Context, campaign *models.Campaign) error {
	stamp(&campaign.BaseModel)
	doc, err := newCampaignDoc(campaign)
	if err != nil {
		return err
	}
	if _, err := s.campaigns.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var doc campaignDoc
	if err := s.campaigns.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	campaign, err := doc.model()
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (s *Store) ListCampaignsByVendors(ctx context.Context, vendorIDs []uuid.UUID) ([]models.Campaign, error) {
	if len(vendorIDs) == 0 {
		return nil, nil
	}
	return findAll[models.Campaign, campaignDoc](ctx, s.campaigns,
		bson.M{"vendorId": bson.M{"$in": idStrings(vendorIDs)}})
}

func (s *Store) ListDueCampaigns(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	return findAll[models.Campaign, campaignDoc](ctx, s.campaigns,
		bson.M{"status": string(models.CampaignStatusActive), "deadline": bson.M{"$lt": now}},
		options.Find().SetSort(bson.D{{Key: "deadline", Value: 1}}))
}

func (s *Store) CommitPledge(ctx context.Context, campaign *models.Campaign, pledge *models.Pledge) error {
	if pledge.CreatedAt.IsZero() {
		pledge.CreatedAt = time.Now().UTC()
	}
	doc, err := newPledgeDoc(pledge)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if err := s.writeCampaign(sc, campaign, now); err != nil {
			return err
		}
		if _, err := s.pledges.InsertOne(sc, doc); err != nil {
			return fmt.Errorf("failed to create pledge: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	campaign.Version++
	campaign.UpdatedAt = now
	return nil
}

func (s *Store) UpdateCampaignStatus(ctx context.Context, campaign *models.Campaign) error {
	now := time.Now().UTC()
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		return s.writeCampaign(sc, campaign, now)
	})
	if err != nil {
		return err
	}
	campaign.Version++
	campaign.UpdatedAt = now
	return nil
}

// writeCampaign stores the mutable fields only if the stored version is
// still the one the caller read. The caller bumps campaign.Version once the
// transaction commits, since the callback may run more than once.
func (s *Store) writeCampaign(sc mongo.SessionContext, campaign *models.Campaign, now time.Time) error {
	current, err := toDecimal128(campaign.CurrentAmount)
	if err != nil {
		return err
	}

	res, err := s.campaigns.UpdateOne(sc,
		bson.M{"_id": campaign.ID.String(), "version": campaign.Version},
		bson.M{"$set": bson.M{
			"currentAmount": current,
			"backers":       campaign.Backers,
			"status":        string(campaign.Status),
			"fundedAt":      campaign.FundedAt,
			"deliveredAt":   campaign.DeliveredAt,
			"failedAt":      campaign.FailedAt,
			"version":       campaign.Version + 1,
			"updatedAt":     now,
		}})
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	if res.MatchedCount == 0 {
		found, err := exists(sc, s.campaigns, campaign.ID.String())
		if err != nil {
			return err
		}
		if !found {
			return repository.ErrNotFound
		}
		return repository.ErrStaleVersion
	}
	return nil
}

func (s *Store) ListPledges(ctx context.Context, campaignID uuid.UUID) ([]models.Pledge, error) {
	return findAll[models.Pledge, pledgeDoc](ctx, s.pledges,
		bson.M{"campaignId": campaignID.String()},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (s *Store) HasPledgeFrom(ctx context.Context, campaignID uuid.UUID, backerID string) (bool, error) {
	n, err := s.pledges.CountDocuments(ctx,
		bson.M{"campaignId": campaignID.String(), "backerId": backerID},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return n > 0, nil
}
