package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"github.com/rs/zerolog/log"
)

// OrganizationService handles tenant administration
type OrganizationService struct {
	orgs          OrganizationStore
	subscriptions *SubscriptionService
	audit         AuditStore
}

func NewOrganizationService(orgs OrganizationStore, subscriptions *SubscriptionService, audit AuditStore) *OrganizationService {
	return &OrganizationService{orgs: orgs, subscriptions: subscriptions, audit: audit}
}

// CreateOrganizationInput describes a new tenant. TrialDays > 0 starts a
// trial straight away.
type CreateOrganizationInput struct {
	Name             string                  `json:"name"`
	SubscriptionType models.SubscriptionType `json:"subscription_type"`
	TrialDays        int                     `json:"trial_days"`
}

func (s *OrganizationService) Create(ctx context.Context, in CreateOrganizationInput) (*models.Organization, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: organization name is required", models.ErrInvalidInput)
	}
	if in.SubscriptionType == "" {
		in.SubscriptionType = models.SubscriptionTypeStandard
	}
	if in.SubscriptionType != models.SubscriptionTypeStandard && in.SubscriptionType != models.SubscriptionTypeUnlimited {
		return nil, fmt.Errorf("%w: unknown subscription type %q", models.ErrInvalidInput, in.SubscriptionType)
	}

	org := &models.Organization{
		Name:             strings.TrimSpace(in.Name),
		SubscriptionType: in.SubscriptionType,
		IsActive:         true,
	}
	err := s.orgs.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.orgs.Create(ctx, org); err != nil {
			return err
		}
		if in.TrialDays <= 0 {
			return nil
		}
		sub, err := s.subscriptions.StartTrial(ctx, org.ID, in.TrialDays)
		if err != nil {
			return err
		}
		org.CurrentSubscriptionID = &sub.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("organization_id", org.ID.String()).
		Str("subscription_type", string(org.SubscriptionType)).
		Msg("Organization created")
	return org, nil
}

func (s *OrganizationService) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return s.orgs.GetByID(ctx, id)
}

func (s *OrganizationService) List(ctx context.Context, limit, offset int) ([]models.Organization, error) {
	return s.orgs.List(ctx, limit, offset)
}

// Delete removes the organization and all of its records.
func (s *OrganizationService) Delete(ctx context.Context, id uuid.UUID, actor uuid.UUID) error {
	if err := s.orgs.Delete(ctx, id); err != nil {
		return err
	}
	log.Warn().Str("organization_id", id.String()).Str("actor_id", actor.String()).Msg("Organization deleted")

	if s.audit != nil {
		entry := &models.AuditLog{
			OrganizationID: id,
			Action:         models.AuditActionOrganizationGone,
			ResourceType:   "organization",
			ResourceID:     id.String(),
			Status:         models.AuditStatusSuccess,
		}
		if actor != uuid.Nil {
			entry.UserID = &actor
		}
		if err := s.audit.Create(ctx, entry); err != nil {
			log.Warn().Err(err).Msg("Failed to write audit log")
		}
	}
	return nil
}
