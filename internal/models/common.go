// internal/models/common.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Enums
type CampaignStatus string

const (
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusFunded    CampaignStatus = "funded"
	CampaignStatusDelivered CampaignStatus = "delivered"
	CampaignStatusFailed    CampaignStatus = "failed"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusActive, CampaignStatusFunded, CampaignStatusDelivered, CampaignStatusFailed:
		return true
	}
	return false
}
