package services

import (
	"context"
	"strings"
	"time"

	"github.com/dealroom/backend/internal/models"
	"github.com/dealroom/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MilestoneService keeps the closing checklist of a deal.
type MilestoneService struct {
	store  repositories.Store
	ledger *AuditLedger
	log    *zap.Logger
	now    func() time.Time
}

func NewMilestoneService(store repositories.Store, ledger *AuditLedger, log *zap.Logger) *MilestoneService {
	return &MilestoneService{store: store, ledger: ledger, log: log, now: time.Now}
}

type AddMilestoneInput struct {
	Name        string
	Description *string
	DueDate     *time.Time
	IsRequired  *bool
	OrderIndex  *int
}

func (s *MilestoneService) Add(ctx context.Context, dealID uuid.UUID, in AddMilestoneInput, actor *uuid.UUID) (*models.Milestone, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, validation("name is required")
	}

	var m *models.Milestone
	_, err := s.ledger.Mutate(ctx, dealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		order := 0
		if in.OrderIndex != nil {
			order = *in.OrderIndex
		} else {
			existing, err := tx.ListMilestones(ctx, deal.ID)
			if err != nil {
				return Change{}, err
			}
			for _, e := range existing {
				if e.OrderIndex >= order {
					order = e.OrderIndex + 1
				}
			}
			if order == 0 {
				order = 1
			}
		}
		m = &models.Milestone{
			ID:          uuid.New(),
			DealID:      deal.ID,
			Name:        strings.TrimSpace(in.Name),
			Description: in.Description,
			DueDate:     in.DueDate,
			IsRequired:  in.IsRequired == nil || *in.IsRequired,
			OrderIndex:  order,
		}
		if err := tx.CreateMilestone(ctx, m); err != nil {
			return Change{}, err
		}
		return Change{Type: models.AuditMilestoneAdded, Actor: actor, After: m}, nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MilestoneService) List(ctx context.Context, dealID uuid.UUID) ([]models.Milestone, error) {
	if _, err := s.store.GetDeal(ctx, dealID); err != nil {
		return nil, lookup("deal", err)
	}
	return s.store.ListMilestones(ctx, dealID)
}

type UpdateMilestoneInput struct {
	Name               *string
	Description        *string
	DueDate            *time.Time
	Completed          *bool
	CompletedByPartyID *uuid.UUID
}

// Update edits a milestone. Completion is recorded once and cannot be undone.
func (s *MilestoneService) Update(ctx context.Context, id uuid.UUID, in UpdateMilestoneInput, actor *uuid.UUID) (*models.Milestone, error) {
	if in.Name == nil && in.Description == nil && in.DueDate == nil && in.Completed == nil {
		return nil, validation("nothing to update")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, validation("name must not be empty")
	}
	existing, err := s.store.GetMilestone(ctx, id)
	if err != nil {
		return nil, lookup("milestone", err)
	}

	var out models.Milestone
	_, err = s.ledger.Mutate(ctx, existing.DealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		cur, err := tx.GetMilestone(ctx, id)
		if err != nil {
			return Change{}, lookup("milestone", err)
		}
		before := *cur

		if in.Completed != nil {
			switch {
			case !*in.Completed && cur.CompletedAt != nil:
				return Change{}, invalidTransition("milestone %q is already completed", cur.Name)
			case *in.Completed && cur.CompletedAt == nil:
				completer := actorOr(in.CompletedByPartyID, actor)
				if completer != nil {
					if _, err := partyOfDeal(ctx, tx, deal.ID, *completer); err != nil {
						return Change{}, err
					}
				}
				now := s.now().UTC()
				cur.CompletedAt = &now
				cur.CompletedByPartyID = completer
			}
		}
		if in.Name != nil {
			cur.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			cur.Description = in.Description
		}
		if in.DueDate != nil {
			cur.DueDate = in.DueDate
		}
		if err := tx.UpdateMilestone(ctx, cur); err != nil {
			return Change{}, err
		}
		out = *cur
		return Change{Type: models.AuditMilestoneUpdated, Actor: actor, Before: before, After: out}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SeedDefaults writes the default checklist for the deal's transaction type.
// It refuses to run on a deal that already has milestones.
func (s *MilestoneService) SeedDefaults(ctx context.Context, dealID uuid.UUID, actor *uuid.UUID) ([]models.Milestone, error) {
	var seeded []models.Milestone
	_, err := s.ledger.Mutate(ctx, dealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		existing, err := tx.ListMilestones(ctx, deal.ID)
		if err != nil {
			return Change{}, err
		}
		if len(existing) > 0 {
			return Change{}, invalidTransition("deal already has %d milestones", len(existing))
		}

		seeded = models.MilestonesFor(deal.ID, deal.TransactionType)
		for i := range seeded {
			seeded[i].ID = uuid.New()
			if err := tx.CreateMilestone(ctx, &seeded[i]); err != nil {
				return Change{}, err
			}
		}
		return Change{
			Type:  models.AuditMilestonesDefaultsCreated,
			Actor: actor,
			After: seeded,
			Extra: map[string]any{"transaction_type": deal.TransactionType},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return seeded, nil
}
