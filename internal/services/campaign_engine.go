// internal/services/campaign_engine.go
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

// maxVersionRetries bounds re-reads after another instance committed first.
const maxVersionRetries = 3

// CampaignEngine owns campaigns, their pledge ledger and the funding
// threshold state machine.
type CampaignEngine struct {
	campaigns repository.CampaignRepository
	vendors   repository.VendorRepository
	locks     *keylock.Registry
	log       logrus.FieldLogger
	now       func() time.Time
}

type CreateCampaignRequest struct {
	VendorID     uuid.UUID       `json:"vendorId" validate:"required"`
	Title        string          `json:"title" validate:"required,notblank,max=255"`
	Description  string          `json:"description" validate:"max=5000"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
	Deadline     time.Time       `json:"deadline" validate:"required"`
	Category     string          `json:"category" validate:"category"`
}

// PledgeReceipt is the post-pledge campaign state plus the recorded pledge.
type PledgeReceipt struct {
	Campaign *models.Campaign `json:"campaign"`
	Pledge   *models.Pledge   `json:"pledge"`
	// Funded is true only for the pledge that crossed the threshold.
	Funded bool `json:"funded"`
}

// NewCampaignEngine wires the engine. now may be nil, in which case the
// wall clock is used.
func NewCampaignEngine(campaigns repository.CampaignRepository, vendors repository.VendorRepository, locks *keylock.Registry, log logrus.FieldLogger, now func() time.Time) *CampaignEngine {
	if now == nil {
		now = time.Now
	}
	return &CampaignEngine{
		campaigns: campaigns,
		vendors:   vendors,
		locks:     locks,
		log:       log,
		now:       now,
	}
}

func (e *CampaignEngine) CreateCampaign(ctx context.Context, req *CreateCampaignRequest) (*models.Campaign, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidCampaign, "validation failed: %v", err)
	}
	if !req.TargetAmount.IsPositive() {
		return nil, apperror.Validation(apperror.CodeInvalidCampaign, "target amount must be greater than zero")
	}
	if !hasCents(req.TargetAmount) {
		return nil, apperror.Validation(apperror.CodeInvalidCampaign, "target amount %s has more than two decimal places", req.TargetAmount)
	}
	if req.TargetAmount.GreaterThanOrEqual(models.MaxCampaignAmount) {
		return nil, apperror.Validation(apperror.CodeInvalidCampaign, "target amount must be below %s", models.MaxCampaignAmount)
	}
	now := e.now()
	if !req.Deadline.After(now) {
		return nil, apperror.Validation(apperror.CodeInvalidCampaign, "deadline %s is not in the future", req.Deadline.UTC().Format(time.RFC3339))
	}

	if _, err := e.vendors.GetVendor(ctx, req.VendorID); err != nil {
		return nil, storeError(err, apperror.ErrVendorNotFound, "load vendor")
	}

	campaign := &models.Campaign{
		BaseModel:     models.BaseModel{ID: uuid.New()},
		VendorID:      req.VendorID,
		Title:         req.Title,
		Description:   req.Description,
		TargetAmount:  req.TargetAmount,
		CurrentAmount: decimal.Zero,
		Deadline:      req.Deadline.UTC(),
		Category:      req.Category,
		Status:        models.CampaignStatusActive,
	}
	if err := e.campaigns.CreateCampaign(ctx, campaign); err != nil {
		return nil, storeError(err, apperror.ErrCampaignNotFound, "create campaign")
	}
	return campaign, nil
}

func (e *CampaignEngine) GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	campaign, err := e.campaigns.GetCampaign(ctx, id)
	if err != nil {
		return nil, storeError(err, apperror.ErrCampaignNotFound, "load campaign")
	}
	return campaign, nil
}

func (e *CampaignEngine) ListPledges(ctx context.Context, campaignID uuid.UUID) ([]models.Pledge, error) {
	if _, err := e.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	pledges, err := e.campaigns.ListPledges(ctx, campaignID)
	if err != nil {
		return nil, storeError(err, apperror.ErrCampaignNotFound, "list pledges")
	}
	return pledges, nil
}

func (e *CampaignEngine) ListVendorCampaigns(ctx context.Context, vendorID uuid.UUID) ([]models.Campaign, error) {
	if _, err := e.vendors.GetVendor(ctx, vendorID); err != nil {
		return nil, storeError(err, apperror.ErrVendorNotFound, "load vendor")
	}
	campaigns, err := e.campaigns.ListCampaignsByVendors(ctx, []uuid.UUID{vendorID})
	if err != nil {
		return nil, storeError(err, apperror.ErrCampaignNotFound, "list campaigns")
	}
	return campaigns, nil
}

// Pledge records amount from backerID. The amount increase, the backer
// count and the active->funded check are committed as one unit, so pledges
// that jointly cross 50% produce exactly one transition.
func (e *CampaignEngine) Pledge(ctx context.Context, campaignID uuid.UUID, backerID string, amount decimal.Decimal) (*PledgeReceipt, error) {
	backerID = strings.TrimSpace(backerID)
	if !amount.IsPositive() {
		return nil, apperror.Validation(apperror.CodeInvalidPledge, "pledge amount must be greater than zero")
	}
	if !hasCents(amount) {
		return nil, apperror.Validation(apperror.CodeInvalidPledge, "pledge amount %s has more than two decimal places", amount)
	}
	if amount.GreaterThanOrEqual(models.MaxCampaignAmount) {
		return nil, apperror.Validation(apperror.CodeInvalidPledge, "pledge amount must be below %s", models.MaxCampaignAmount)
	}
	if backerID == "" {
		return nil, apperror.Validation(apperror.CodeInvalidPledge, "backer id is required")
	}

	ctx, unlock, err := admit(ctx, e.locks, campaignID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		receipt, err := e.tryPledge(ctx, campaignID, backerID, amount)
		if errors.Is(err, repository.ErrStaleVersion) && attempt+1 < maxVersionRetries {
			continue
		}
		if err != nil {
			return nil, storeError(err, apperror.ErrCampaignNotFound, "record pledge")
		}
		if receipt.Funded {
			e.log.WithFields(logrus.Fields{
				"campaign_id":    campaignID,
				"current_amount": receipt.Campaign.CurrentAmount.String(),
				"target_amount":  receipt.Campaign.TargetAmount.String(),
			}).Info("campaign funded")
		}
		return receipt, nil
	}
}

func (e *CampaignEngine) tryPledge(ctx context.Context, campaignID uuid.UUID, backerID string, amount decimal.Decimal) (*PledgeReceipt, error) {
	campaign, err := e.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	switch campaign.Status {
	case models.CampaignStatusActive, models.CampaignStatusFunded:
	default:
		return nil, apperror.Conflict(apperror.CodeCampaignNotActive, "campaign is %s", campaign.Status)
	}
	now := e.now().UTC()
	if now.After(campaign.Deadline) {
		return nil, apperror.Conflict(apperror.CodeDeadlinePassed, "campaign deadline %s has passed", campaign.Deadline.Format(time.RFC3339))
	}

	total := campaign.CurrentAmount.Add(amount)
	if total.GreaterThanOrEqual(models.MaxCampaignAmount) {
		return nil, apperror.Validation(apperror.CodeInvalidPledge, "pledge would raise the campaign total to %s, the limit is below %s", total, models.MaxCampaignAmount)
	}

	returning, err := e.campaigns.HasPledgeFrom(ctx, campaignID, backerID)
	if err != nil {
		return nil, err
	}
	if !returning {
		campaign.Backers++
	}
	campaign.CurrentAmount = total

	funded := false
	if campaign.Status == models.CampaignStatusActive && campaign.ReachedThreshold() {
		campaign.Status = models.CampaignStatusFunded
		campaign.FundedAt = &now
		funded = true
	}

	pledge := &models.Pledge{
		ID:         uuid.New(),
		CampaignID: campaignID,
		BackerID:   backerID,
		Amount:     amount,
		CreatedAt:  now,
	}
	if err := e.campaigns.CommitPledge(ctx, campaign, pledge); err != nil {
		return nil, err
	}
	return &PledgeReceipt{Campaign: campaign, Pledge: pledge, Funded: funded}, nil
}

// MarkDelivered moves a funded campaign to delivered.
func (e *CampaignEngine) MarkDelivered(ctx context.Context, campaignID uuid.UUID) (*models.Campaign, error) {
	campaign, _, err := e.transition(ctx, campaignID, func(c *models.Campaign, now time.Time) (bool, error) {
		if !models.CanTransition(c.Status, models.CampaignStatusDelivered) {
			return false, apperror.Conflict(apperror.CodeInvalidTransition, "cannot deliver a %s campaign", c.Status)
		}
		c.Status = models.CampaignStatusDelivered
		c.DeliveredAt = &now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	e.log.WithField("campaign_id", campaignID).Info("campaign delivered")
	return campaign, nil
}

// Expire fails an active campaign whose deadline has passed without reaching
// the threshold. Campaigns that are already funded, delivered or failed are
// returned unchanged.
func (e *CampaignEngine) Expire(ctx context.Context, campaignID uuid.UUID) (*models.Campaign, bool, error) {
	campaign, changed, err := e.transition(ctx, campaignID, func(c *models.Campaign, now time.Time) (bool, error) {
		if c.Status != models.CampaignStatusActive {
			return false, nil
		}
		if !now.After(c.Deadline) {
			return false, apperror.Conflict(apperror.CodeInvalidTransition, "campaign deadline %s has not passed", c.Deadline.Format(time.RFC3339))
		}
		if c.ReachedThreshold() {
			return false, nil
		}
		c.Status = models.CampaignStatusFailed
		c.FailedAt = &now
		return true, nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		e.log.WithFields(logrus.Fields{
			"campaign_id":    campaignID,
			"current_amount": campaign.CurrentAmount.String(),
			"target_amount":  campaign.TargetAmount.String(),
		}).Info("campaign failed")
	}
	return campaign, changed, nil
}

// ExpireDue fails every active campaign past its deadline and reports how
// many transitioned. Errors for individual campaigns are joined.
func (e *CampaignEngine) ExpireDue(ctx context.Context) (int, error) {
	due, err := e.campaigns.ListDueCampaigns(ctx, e.now().UTC())
	if err != nil {
		return 0, storeError(err, apperror.ErrCampaignNotFound, "list due campaigns")
	}

	var (
		failed int
		errs   []error
	)
	for _, campaign := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, changed, err := e.Expire(ctx, campaign.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if changed {
			failed++
		}
	}
	return failed, errors.Join(errs...)
}

// transition applies mutate under the campaign lock and stores the result
// when mutate reports a change.
func (e *CampaignEngine) transition(ctx context.Context, campaignID uuid.UUID, mutate func(*models.Campaign, time.Time) (bool, error)) (*models.Campaign, bool, error) {
	ctx, unlock, err := admit(ctx, e.locks, campaignID)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		campaign, err := e.campaigns.GetCampaign(ctx, campaignID)
		if err != nil {
			return nil, false, storeError(err, apperror.ErrCampaignNotFound, "load campaign")
		}
		changed, err := mutate(campaign, e.now().UTC())
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return campaign, false, nil
		}

		err = e.campaigns.UpdateCampaignStatus(ctx, campaign)
		if errors.Is(err, repository.ErrStaleVersion) && attempt+1 < maxVersionRetries {
			continue
		}
		if err != nil {
			return nil, false, storeError(err, apperror.ErrCampaignNotFound, "update campaign")
		}
		return campaign, true, nil
	}
}
