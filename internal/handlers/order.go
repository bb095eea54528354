// internal/handlers/order.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/nearby-market/internal/services"
	"github.com/javajoker/nearby-market/internal/utils"
)

type OrderHandler struct {
	coordinator *services.TransactionCoordinator
}

func NewOrderHandler(coordinator *services.TransactionCoordinator) *OrderHandler {
	return &OrderHandler{coordinator: coordinator}
}

type ConfirmOrderRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	UserID    string    `json:"userId" validate:"max=255"`
}

type orderView struct {
	ID      uuid.UUID `json:"id"`
	BuyerID string    `json:"buyerId"`
}

type productStockView struct {
	ID             uuid.UUID `json:"id"`
	RemainingStock int       `json:"remainingStock"`
}

// POST /orders/confirm
func (h *OrderHandler) Confirm(c *gin.Context) {
	var req ConfirmOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	confirmation, err := h.coordinator.ConfirmOrder(c.Request.Context(), req.ProductID, actor(c, req.UserID))
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"order": orderView{
			ID:      confirmation.OrderID,
			BuyerID: confirmation.BuyerID,
		},
		"product": productStockView{
			ID:             confirmation.ProductID,
			RemainingStock: confirmation.RemainingStock,
		},
	})
}

// POST /orders/:id/release
func (h *OrderHandler) Release(c *gin.Context) {
	id, ok := pathID(c, "order")
	if !ok {
		return
	}

	result, err := h.coordinator.ReleaseOrder(c.Request.Context(), id)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}
