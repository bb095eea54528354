// internal/handlers/campaign.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/javajoker/nearby-market/internal/geo"
	"github.com/javajoker/nearby-market/internal/models"
	"github.com/javajoker/nearby-market/internal/services"
	"github.com/javajoker/nearby-market/internal/utils"
)

type CampaignHandler struct {
	engine      *services.CampaignEngine
	search      *services.SearchService
	coordinator *services.TransactionCoordinator
}

func NewCampaignHandler(engine *services.CampaignEngine, search *services.SearchService, coordinator *services.TransactionCoordinator) *CampaignHandler {
	return &CampaignHandler{
		engine:      engine,
		search:      search,
		coordinator: coordinator,
	}
}

type BackCampaignRequest struct {
	Amount decimal.Decimal `json:"amount"`
	UserID string          `json:"userId" validate:"max=255"`
}

type NearbyCampaignsBody struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Radius    *float64 `json:"radius"`
	Status    string   `json:"status"`
	Category  string   `json:"category"`
}

// POST /campaigns
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req services.CreateCampaignRequest
	if !bindJSON(c, &req) {
		return
	}

	campaign, err := h.engine.CreateCampaign(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	utils.CreatedResponse(c, campaign)
}

// GET /campaigns/:id
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, ok := pathID(c, "campaign")
	if !ok {
		return
	}

	campaign, err := h.engine.GetCampaign(c.Request.Context(), id)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"campaign": campaign,
		"progress": campaign.ProgressPercent(),
	})
}

// GET /campaigns/:id/pledges
func (h *CampaignHandler) ListPledges(c *gin.Context) {
	id, ok := pathID(c, "campaign")
	if !ok {
		return
	}

	pledges, err := h.engine.ListPledges(c.Request.Context(), id)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	utils.SuccessResponse(c, pledges)
}

// POST /campaigns/:id/back
func (h *CampaignHandler) Back(c *gin.Context) {
	id, ok := pathID(c, "campaign")
	if !ok {
		return
	}

	var req BackCampaignRequest
	if !bindJSON(c, &req) {
		return
	}

	receipt, err := h.coordinator.BackCampaign(c.Request.Context(), id, actor(c, req.UserID), req.Amount)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	utils.CreatedResponse(c, receipt)
}

// POST /campaigns/:id/deliver
func (h *CampaignHandler) Deliver(c *gin.Context) {
	id, ok := pathID(c, "campaign")
	if !ok {
		return
	}

	campaign, err := h.engine.MarkDelivered(c.Request.Context(), id)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	utils.SuccessResponse(c, campaign)
}

// POST /campaigns/:id/expire
func (h *CampaignHandler) Expire(c *gin.Context) {
	id, ok := pathID(c, "campaign")
	if !ok {
		return
	}

	campaign, changed, err := h.engine.Expire(c.Request.Context(), id)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"campaign": campaign,
		"changed":  changed,
	})
}

// GET /campaigns/nearby?lat=&long=&radius=&status=&category=
func (h *CampaignHandler) Nearby(c *gin.Context) {
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

	h.respondNearby(c, services.NearbyCampaignsRequest{
		Origin:       origin,
		RadiusMeters: radius,
		Status:       statusFilter(c.Query("status")),
		Category:     c.Query("category"),
	})
}

// POST /campaigns/nearby
func (h *CampaignHandler) NearbyFromBody(c *gin.Context) {
	var body NearbyCampaignsBody
	if !bindJSON(c, &body) {
		return
	}

	req := services.NearbyCampaignsRequest{
		RadiusMeters: body.Radius,
		Status:       statusFilter(body.Status),
		Category:     body.Category,
	}
	if body.Latitude != nil && body.Longitude != nil {
		origin, err := geo.NewPoint(*body.Latitude, *body.Longitude)
		if err != nil {
			utils.ErrorFromDomain(c, err)
			return
		}
		req.Origin = &origin
	}

	h.respondNearby(c, req)
}

func (h *CampaignHandler) respondNearby(c *gin.Context, req services.NearbyCampaignsRequest) {
	hits, err := h.search.NearbyCampaigns(c.Request.Context(), req)
	if err != nil {
		utils.ErrorFromDomain(c, err)
		return
	}

	utils.SuccessResponse(c, hits)
}

func statusFilter(raw string) *models.CampaignStatus {
	if raw == "" {
		return nil
	}
	status := models.CampaignStatus(raw)
	return &status
}
