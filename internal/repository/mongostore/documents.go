// internal/repository/mongostore/documents.go
package mongostore

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/javajoker/nearby-market/internal/models"
)

// Documents keep ids as canonical uuid strings and money as Decimal128 so
// the collections stay readable from the mongo shell.

type vendorDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	Latitude    float64   `bson:"latitude"`
	Longitude   float64   `bson:"longitude"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

type productDoc struct {
	ID          string               `bson:"_id"`
	VendorID    string               `bson:"vendorId"`
	Name        string               `bson:"name"`
	Description string               `bson:"description"`
	Price       primitive.Decimal128 `bson:"price"`
	Stock       int                  `bson:"stock"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

type orderDoc struct {
	ID             string    `bson:"_id"`
	ProductID      string    `bson:"productId"`
	BuyerID        string    `bson:"buyerId"`
	Quantity       int       `bson:"quantity"`
	RemainingStock int       `bson:"remainingStock"`
	CreatedAt      time.Time `bson:"createdAt"`
}

type releaseDoc struct {
	OrderID   string    `bson:"_id"`
	ProductID string    `bson:"productId"`
	Quantity  int       `bson:"quantity"`
	CreatedAt time.Time `bson:"createdAt"`
}

type campaignDoc struct {
	ID            string               `bson:"_id"`
	VendorID      string               `bson:"vendorId"`
	Title         string               `bson:"title"`
	Description   string               `bson:"description"`
	TargetAmount  primitive.Decimal128 `bson:"targetAmount"`
	CurrentAmount primitive.Decimal128 `bson:"currentAmount"`
	Deadline      time.Time            `bson:"deadline"`
	Category      string               `bson:"category"`
	Status        string               `bson:"status"`
	Backers       int                  `bson:"backers"`
	FundedAt      *time.Time           `bson:"fundedAt,omitempty"`
	DeliveredAt   *time.Time           `bson:"deliveredAt,omitempty"`
	FailedAt      *time.Time           `bson:"failedAt,omitempty"`
	Version       int64                `bson:"version"`
	CreatedAt     time.Time            `bson:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt"`
}

type pledgeDoc struct {
	ID         string               `bson:"_id"`
	CampaignID string               `bson:"campaignId"`
	BackerID   string               `bson:"backerId"`
	Amount     primitive.Decimal128 `bson:"amount"`
	CreatedAt  time.Time            `bson:"createdAt"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("failed to encode amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode amount %s: %w", v, err)
	}
	return d, nil
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt document id %q: %w", raw, err)
	}
	return id, nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func newVendorDoc(v *models.Vendor) vendorDoc {
	return vendorDoc{
		ID:          v.ID.String(),
		Name:        v.Name,
		Description: v.Description,
		Latitude:    v.Latitude,
		Longitude:   v.Longitude,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
}

func (d vendorDoc) model() (models.Vendor, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return models.Vendor{}, err
	}
	return models.Vendor{
		BaseModel:   models.BaseModel{ID: id, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		Name:        d.Name,
		Description: d.Description,
		Latitude:    d.Latitude,
		Longitude:   d.Longitude,
	}, nil
}

func newProductDoc(p *models.Product) (productDoc, error) {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return productDoc{}, err
	}
	return productDoc{
		ID:          p.ID.String(),
		VendorID:    p.VendorID.String(),
		Name:        p.Name,
		Description: p.Description,
		Price:       price,
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

func (d productDoc) model() (models.Product, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return models.Product{}, err
	}
	vendorID, err := parseID(d.VendorID)
	if err != nil {
		return models.Product{}, err
	}
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return models.Product{}, err
	}
	return models.Product{
		BaseModel:   models.BaseModel{ID: id, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		VendorID:    vendorID,
		Name:        d.Name,
		Description: d.Description,
		Price:       price,
		Stock:       d.Stock,
	}, nil
}

func newOrderDoc(o *models.Order) orderDoc {
	return orderDoc{
		ID:             o.ID.String(),
		ProductID:      o.ProductID.String(),
		BuyerID:        o.BuyerID,
		Quantity:       o.Quantity,
		RemainingStock: o.RemainingStock,
		CreatedAt:      o.CreatedAt,
	}
}

func (d orderDoc) model() (models.Order, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return models.Order{}, err
	}
	productID, err := parseID(d.ProductID)
	if err != nil {
		return models.Order{}, err
	}
	return models.Order{
		ID:             id,
		ProductID:      productID,
		BuyerID:        d.BuyerID,
		Quantity:       d.Quantity,
		RemainingStock: d.RemainingStock,
		CreatedAt:      d.CreatedAt,
	}, nil
}

func newCampaignDoc(c *models.Campaign) (campaignDoc, error) {
	target, err := toDecimal128(c.TargetAmount)
	if err != nil {
		return campaignDoc{}, err
	}
	current, err := toDecimal128(c.CurrentAmount)
	if err != nil {
		return campaignDoc{}, err
	}
	return campaignDoc{
		ID:            c.ID.String(),
		VendorID:      c.VendorID.String(),
		Title:         c.Title,
		Description:   c.Description,
		TargetAmount:  target,
		CurrentAmount: current,
		Deadline:      c.Deadline,
		Category:      c.Category,
		Status:        string(c.Status),
		Backers:       c.Backers,
		FundedAt:      c.FundedAt,
		DeliveredAt:   c.DeliveredAt,
		FailedAt:      c.FailedAt,
		Version:       c.Version,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}, nil
}

func (d campaignDoc) model() (models.Campaign, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return models.Campaign{}, err
	}
	vendorID, err := parseID(d.VendorID)
	if err != nil {
		return models.Campaign{}, err
	}
	target, err := fromDecimal128(d.TargetAmount)
	if err != nil {
		return models.Campaign{}, err
	}
	current, err := fromDecimal128(d.CurrentAmount)
	if err != nil {
		return models.Campaign{}, err
	}
	return models.Campaign{
		BaseModel:     models.BaseModel{ID: id, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		VendorID:      vendorID,
		Title:         d.Title,
		Description:   d.Description,
		TargetAmount:  target,
		CurrentAmount: current,
		Deadline:      d.Deadline,
		Category:      d.Category,
		Status:        models.CampaignStatus(d.Status),
		Backers:       d.Backers,
		FundedAt:      d.FundedAt,
		DeliveredAt:   d.DeliveredAt,
		FailedAt:      d.FailedAt,
		Version:       d.Version,
	}, nil
}

func newPledgeDoc(p *models.Pledge) (pledgeDoc, error) {
	amount, err := toDecimal128(p.Amount)
	if err != nil {
		return pledgeDoc{}, err
	}
	return pledgeDoc{
		ID:         p.ID.String(),
		CampaignID: p.CampaignID.String(),
		BackerID:   p.BackerID,
		Amount:     amount,
		CreatedAt:  p.CreatedAt,
	}, nil
}

func (d pledgeDoc) model() (models.Pledge, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return models.Pledge{}, err
	}
	campaignID, err := parseID(d.CampaignID)
	if err != nil {
		return models.Pledge{}, err
	}
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return models.Pledge{}, err
	}
	return models.Pledge{
		ID:         id,
		CampaignID: campaignID,
		BackerID:   d.BackerID,
		Amount:     amount,
		CreatedAt:  d.CreatedAt,
	}, nil
}
