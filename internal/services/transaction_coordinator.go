// internal/services/transaction_coordinator.go
package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderQuantity is fixed at one unit per confirmation.
const OrderQuantity = 1

// TransactionCoordinator is the write path behind the public operations. It
// never touches orders or pledges directly; the ledger and the engine own
// their aggregates.
type TransactionCoordinator struct {
	ledger    *InventoryLedger
	campaigns *CampaignEngine
}

type OrderConfirmation struct {
	OrderID        uuid.UUID `json:"orderId"`
	ProductID      uuid.UUID `json:"productId"`
	BuyerID        string    `json:"buyerId"`
	RemainingStock int       `json:"remainingStock"`
}

func NewTransactionCoordinator(ledger *InventoryLedger, campaigns *CampaignEngine) *TransactionCoordinator {
	return &TransactionCoordinator{
		ledger:    ledger,
		campaigns: campaigns,
	}
}

// ConfirmOrder takes one unit of productID for buyerID. Retries are not
// deduplicated; a caller that retries after a timeout may order twice.
func (c *TransactionCoordinator) ConfirmOrder(ctx context.Context, productID uuid.UUID, buyerID string) (*OrderConfirmation, error) {
	order, err := c.ledger.ReserveAndConfirm(ctx, productID, buyerID, OrderQuantity)
	if err != nil {
		return nil, err
	}
	return &OrderConfirmation{
		OrderID:        order.ID,
		ProductID:      order.ProductID,
		BuyerID:        order.BuyerID,
		RemainingStock: order.RemainingStock,
	}, nil
}

// ReleaseOrder compensates a confirmed order whose downstream step failed.
func (c *TransactionCoordinator) ReleaseOrder(ctx context.Context, orderID uuid.UUID) (*ReleaseResult, error) {
	return c.ledger.Release(ctx, orderID)
}

// BackCampaign delegates to the campaign engine and surfaces its result and
// errors unchanged.
func (c *TransactionCoordinator) BackCampaign(ctx context.Context, campaignID uuid.UUID, backerID string, amount decimal.Decimal) (*PledgeReceipt, error) {
	return c.campaigns.Pledge(ctx, campaignID, backerID, amount)
}
