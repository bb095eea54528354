// internal/models/campaign.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FundingThresholdPercent is the share of the target that obligates delivery.
const FundingThresholdPercent = 50

// MaxCampaignAmount is the exclusive upper bound of the decimal(14,2) target,
// current and pledge amount columns.
var MaxCampaignAmount = decimal.New(1, 12)

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusActive:    {CampaignStatusFunded, CampaignStatusFailed},
	CampaignStatusFunded:    {CampaignStatusDelivered},
	CampaignStatusDelivered: {},
	CampaignStatusFailed:    {},
}

// CanTransition reports whether a campaign may move from one status to another.
func CanTransition(from, to CampaignStatus) bool {
	for _, allowed := range campaignTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Campaign struct {
	BaseModel
	VendorID      uuid.UUID       `json:"vendorId" gorm:"type:uuid;not null;index"`
	Title         string          `json:"title" gorm:"size:255;not null"`
	Description   string          `json:"description" gorm:"type:text"`
	TargetAmount  decimal.Decimal `json:"targetAmount" gorm:"type:decimal(14,2);not null"`
	CurrentAmount decimal.Decimal `json:"currentAmount" gorm:"type:decimal(14,2);not null;default:0"`
	Deadline      time.Time       `json:"deadline" gorm:"not null;index"`
	Category      string          `json:"category" gorm:"size:100;index"`
	Status        CampaignStatus  `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	Backers       int             `json:"backers" gorm:"not null;default:0"`
	FundedAt      *time.Time      `json:"fundedAt,omitempty"`
	DeliveredAt   *time.Time      `json:"deliveredAt,omitempty"`
	FailedAt      *time.Time      `json:"failedAt,omitempty"`
	Version       int64           `json:"-" gorm:"not null;default:0"`
}

// ReachedThreshold is true once current/target >= 50%, the boundary included.
func (c *Campaign) ReachedThreshold() bool {
	return c.CurrentAmount.Mul(decimal.NewFromInt(100)).
		GreaterThanOrEqual(c.TargetAmount.Mul(decimal.NewFromInt(FundingThresholdPercent)))
}

// ProgressPercent is current/target*100 rounded to two places, capped at 100.
func (c *Campaign) ProgressPercent() decimal.Decimal {
	if !c.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	pct := c.CurrentAmount.Mul(decimal.NewFromInt(100)).Div(c.TargetAmount).Round(2)
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	return pct
}

type Pledge struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	CampaignID uuid.UUID       `json:"campaignId" gorm:"type:uuid;not null;index"`
	BackerID   string          `json:"backerId" gorm:"size:255;not null;index"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	CreatedAt  time.Time       `json:"createdAt"`
}
