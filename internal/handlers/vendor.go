// internal/handlers/vendor.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/nearby-market/internal/services"
	"github.com/javajoker/nearby-market/internal/utils"
)

type VendorHandler struct {
	vendorService *services.VendorService
	ledger        *services.InventoryLedger
	campaigns     *services.CampaignEngine
}

func NewVendorHandler(vendorService *services.VendorService, ledger *services.InventoryLedger, campaigns *services.CampaignEngine) *VendorHandler {
	return &VendorHandler{
		vendorService: vendorService,
		ledger:        ledger,
		campaigns:     campaigns,
	}
}

// POST /vendors
func (h *VendorHandler) CreateVendor(c *gin.Context) {
	var req services.CreateVendorRequest
	if !bindJSON(c, &req) {
		return
	}

	vendor, err := h.vendorService.CreateVendor(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	utils.CreatedResponse(c, vendor)
}

// GET /vendors
func (h *VendorHandler) ListVendors(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	vendors, err := h.vendorService.ListVendors(c.Request.Context())
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	start := min(params.Offset, len(vendors))
	end := min(start+params.Limit, len(vendors))
	result := utils.CreatePaginationResult(vendors[start:end], int64(len(vendors)), params)
	utils.PaginatedResponse(c, result)
}

// GET /vendors/:id
func (h *VendorHandler) GetVendor(c *gin.Context) {
	id, ok := pathID(c, "vendor")
	if !ok {
		return
	}

	vendor, err := h.vendorService.GetVendor(c.Request.Context(), id)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	utils.SuccessResponse(c, vendor)
}

// POST /vendors/:id/products
func (h *VendorHandler) CreateProduct(c *gin.Context) {
	vendorID, ok := pathID(c, "vendor")
	if !ok {
		return
	}

	var req services.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.ledger.CreateProduct(c.Request.Context(), vendorID, &req)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	utils.CreatedResponse(c, product)
}

// GET /vendors/:id/products
func (h *VendorHandler) ListProducts(c *gin.Context) {
	vendorID, ok := pathID(c, "vendor")
	if !ok {
		return
	}

	products, err := h.ledger.ListVendorProducts(c.Request.Context(), vendorID)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	utils.SuccessResponse(c, products)
}

// GET /vendors/:id/campaigns
func (h *VendorHandler) ListCampaigns(c *gin.Context) {
	vendorID, ok := pathID(c, "vendor")
	if !ok {
		return
	}

	campaigns, err := h.campaigns.ListVendorCampaigns(c.Request.Context(), vendorID)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	utils.SuccessResponse(c, campaigns)
}
