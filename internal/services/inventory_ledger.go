// internal/services/inventory_ledger.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/nearby-market/internal/apperror"
	"github.com/javajoker/nearby-market/internal/keylock"
	"github.com/javajoker/nearby-market/internal/models"
	"github.com/javajoker/nearby-market/internal/repository"
	"github.com/javajoker/nearby-market/internal/utils"
)

// InventoryLedger owns product stock. Every stock mutation is a single
// compare-and-decrement (or restore) in the store, serialized per product.
type InventoryLedger struct {
	products repository.ProductRepository
	vendors  repository.VendorRepository
	locks    *keylock.Registry
	log      logrus.FieldLogger
	now      func() time.Time
}

type CreateProductRequest struct {
	Name        string          `json:"name" validate:"required,notblank,max=255"`
	Description string          `json:"description" validate:"max=5000"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

// ReleaseResult reports the outcome of a compensation. Released is false
// when the order had already been released earlier.
type ReleaseResult struct {
	OrderID        uuid.UUID `json:"orderId"`
	ProductID      uuid.UUID `json:"productId"`
	Released       bool      `json:"released"`
	RemainingStock int       `json:"remainingStock"`
}

// NewInventoryLedger wires the ledger. now stamps orders and releases and
// defaults to the wall clock when nil.
func NewInventoryLedger(products repository.ProductRepository, vendors repository.VendorRepository, locks *keylock.Registry, log logrus.FieldLogger, now func() time.Time) *InventoryLedger {
	if now == nil {
		now = time.Now
	}
	return &InventoryLedger{
		products: products,
		vendors:  vendors,
		locks:    locks,
		log:      log,
		now:      now,
	}
}

func (l *InventoryLedger) CreateProduct(ctx context.Context, vendorID uuid.UUID, req *CreateProductRequest) (*models.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidProduct, "validation failed: %v", err)
	}
	if !req.Price.IsPositive() {
		return nil, apperror.Validation(apperror.CodeInvalidProduct, "price must be greater than zero")
	}
	if !hasCents(req.Price) {
		return nil, apperror.Validation(apperror.CodeInvalidProduct, "price %s has more than two decimal places", req.Price)
	}
	if req.Price.GreaterThanOrEqual(models.MaxPrice) {
		return nil, apperror.Validation(apperror.CodeInvalidProduct, "price must be below %s", models.MaxPrice)
	}
	if req.Stock < 0 {
		return nil, apperror.Validation(apperror.CodeInvalidProduct, "stock must not be negative")
	}

	if _, err := l.vendors.GetVendor(ctx, vendorID); err != nil {
		return nil, storeError(err, apperror.ErrVendorNotFound, "load vendor")
	}

	product := &models.Product{
		BaseModel:   models.BaseModel{ID: uuid.New()},
		VendorID:    vendorID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := l.products.CreateProduct(ctx, product); err != nil {
		return nil, storeError(err, apperror.ErrProductNotFound, "create product")
	}
	return product, nil
}

func (l *InventoryLedger) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := l.products.GetProduct(ctx, id)
	if err != nil {
		return nil, storeError(err, apperror.ErrProductNotFound, "load product")
	}
	return product, nil
}

func (l *InventoryLedger) ListVendorProducts(ctx context.Context, vendorID uuid.UUID) ([]models.Product, error) {
	if _, err := l.vendors.GetVendor(ctx, vendorID); err != nil {
		return nil, storeError(err, apperror.ErrVendorNotFound, "load vendor")
	}
	products, err := l.products.ListProductsByVendors(ctx, []uuid.UUID{vendorID})
	if err != nil {
		return nil, storeError(err, apperror.ErrVendorNotFound, "list products")
	}
	return products, nil
}

// ReserveAndConfirm decrements stock by quantity and records the order in
// one atomic step. Two concurrent calls against the last unit never both
// succeed; the loser gets ErrInsufficientStock.
func (l *InventoryLedger) ReserveAndConfirm(ctx context.Context, productID uuid.UUID, buyerID string, quantity int) (*models.Order, error) {
	if quantity < 1 {
		return nil, apperror.Validation(apperror.CodeInvalidRequest, "quantity must be at least 1")
	}
	if strings.TrimSpace(buyerID) == "" {
		return nil, apperror.Validation(apperror.CodeInvalidRequest, "buyer id is required")
	}

	ctx, unlock, err := admit(ctx, l.locks, productID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order := &models.Order{
		ID:        uuid.New(),
		ProductID: productID,
		BuyerID:   buyerID,
		Quantity:  quantity,
		CreatedAt: l.now().UTC(),
	}
	if err := l.products.CommitOrder(ctx, order); err != nil {
		return nil, storeError(err, apperror.ErrProductNotFound, "confirm order")
	}

	l.log.WithFields(logrus.Fields{
		"order_id":        order.ID,
		"product_id":      productID,
		"quantity":        quantity,
		"remaining_stock": order.RemainingStock,
	}).Info("order confirmed")
	return order, nil
}

// Release restores the stock taken by orderID. It is idempotent: a second
// call leaves stock untouched and reports Released=false.
func (l *InventoryLedger) Release(ctx context.Context, orderID uuid.UUID) (*ReleaseResult, error) {
	order, err := l.products.GetOrder(ctx, orderID)
	if err != nil {
		return nil, storeError(err, apperror.ErrOrderNotFound, "load order")
	}

	ctx, unlock, err := admit(ctx, l.locks, order.ProductID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &ReleaseResult{OrderID: order.ID, ProductID: order.ProductID}
	stock, err := l.products.CommitRelease(ctx, &models.StockRelease{
		OrderID:   order.ID,
		ProductID: order.ProductID,
		Quantity:  order.Quantity,
		CreatedAt: l.now().UTC(),
	})
	switch {
	case errors.Is(err, repository.ErrAlreadyReleased):
		result.RemainingStock = stock
		return result, nil
	case err != nil:
		return nil, storeError(err, apperror.ErrProductNotFound, "release stock")
	}

	result.Released = true
	result.RemainingStock = stock
	l.log.WithFields(logrus.Fields{
		"order_id":        order.ID,
		"product_id":      order.ProductID,
		"remaining_stock": stock,
	}).Info("stock released")
	return result, nil
}

func (l *InventoryLedger) ListOrders(ctx context.Context, productID uuid.UUID) ([]models.Order, error) {
	if _, err := l.products.GetProduct(ctx, productID); err != nil {
		return nil, storeError(err, apperror.ErrProductNotFound, "load product")
	}
	orders, err := l.products.ListOrders(ctx, productID)
	if err != nil {
		return nil, storeError(err, apperror.ErrProductNotFound, "list orders")
	}
	return orders, nil
}

// hasCents reports whether d carries at most two decimal places.
func hasCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
