// internal/handlers/product.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/nearby-market/internal/services"
	"github.com/javajoker/nearby-market/internal/utils"
)

type ProductHandler struct {
	ledger *services.InventoryLedger
	search *services.SearchService
}

func NewProductHandler(ledger *services.InventoryLedger, search *services.SearchService) *ProductHandler {
	return &ProductHandler{
		ledger: ledger,
		search: search,
	}
}

// GET /products/nearby?q=&lat=&long=&radius=&limit=&offset=
func (h *ProductHandler) Nearby(c *gin.Context) {
	origin, err := queryOrigin(c)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}
	radius, err := queryRadius(c)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}
	params := utils.GetPaginationParams(c)

	page, err := h.search.Search(c.Request.Context(), services.SearchRequest{
		Query:        c.Query("q"),
		Origin:       origin,
		RadiusMeters: radius,
		Limit:        params.Limit,
		Offset:       params.Offset,
	})
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	result := utils.CreatePaginationResult(page.Results, int64(page.Total), utils.PaginationParams{
		Page:   page.Offset/page.Limit + 1,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	utils.PaginatedResponse(c, result)
}

// GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := pathID(c, "product")
	if !ok {
		return
	}

	product, err := h.ledger.GetProduct(c.Request.Context(), id)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	utils.SuccessResponse(c, product)
}

// GET /products/:id/orders
func (h *ProductHandler) ListOrders(c *gin.Context) {
	id, ok := pathID(c, "product")
	if !ok {
		return
	}

	orders, err := h.ledger.ListOrders(c.Request.Context(), id)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	utils.SuccessResponse(c, orders)
}
