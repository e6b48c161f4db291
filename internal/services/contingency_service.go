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

// ContingencyService tracks per-deal contingencies. They never gate deal status.
type ContingencyService struct {
	store  repositories.Store
	ledger *AuditLedger
	log    *zap.Logger
	now    func() time.Time
}

func NewContingencyService(store repositories.Store, ledger *AuditLedger, log *zap.Logger) *ContingencyService {
	return &ContingencyService{store: store, ledger: ledger, log: log, now: time.Now}
}

type AddContingencyInput struct {
	Type     string
	Deadline *time.Time
	Notes    *string
}

func (s *ContingencyService) Add(ctx context.Context, dealID uuid.UUID, in AddContingencyInput, actor *uuid.UUID) (*models.Contingency, error) {
	if strings.TrimSpace(in.Type) == "" {
		return nil, validation("type is required")
	}
	c := &models.Contingency{
		ID:       uuid.New(),
		DealID:   dealID,
		Type:     strings.TrimSpace(in.Type),
		Status:   models.ContingencyStatusPending,
		Deadline: in.Deadline,
		Notes:    in.Notes,
	}
	_, err := s.ledger.Mutate(ctx, dealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		if err := tx.CreateContingency(ctx, c); err != nil {
			return Change{}, err
		}
		return Change{Type: models.AuditContingencyAdded, Actor: actor, After: c}, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List orders by deadline, undated entries last.
func (s *ContingencyService) List(ctx context.Context, dealID uuid.UUID) ([]models.Contingency, error) {
	if _, err := s.store.GetDeal(ctx, dealID); err != nil {
		return nil, lookup("deal", err)
	}
	return s.store.ListContingencies(ctx, dealID)
}

type UpdateContingencyInput struct {
	Status          *string
	Deadline        *time.Time
	Notes           *string
	WaivedByPartyID *uuid.UUID
}

// Update moves pending to satisfied, waived or failed. Those are terminal;
// notes and deadline stay editable.
func (s *ContingencyService) Update(ctx context.Context, id uuid.UUID, in UpdateContingencyInput, actor *uuid.UUID) (*models.Contingency, error) {
	if in.Status == nil && in.Deadline == nil && in.Notes == nil {
		return nil, validation("nothing to update")
	}
	if in.Status != nil && !models.IsValidContingencyStatus(*in.Status) {
		return nil, validation("invalid status %q, must be one of: pending, satisfied, waived, failed", *in.Status)
	}
	existing, err := s.store.GetContingency(ctx, id)
	if err != nil {
		return nil, lookup("contingency", err)
	}

	var out models.Contingency
	_, err = s.ledger.Mutate(ctx, existing.DealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		cur, err := tx.GetContingency(ctx, id)
		if err != nil {
			return Change{}, lookup("contingency", err)
		}
		before := *cur

		if in.Status != nil && *in.Status != cur.Status {
			if cur.Status != models.ContingencyStatusPending {
				return Change{}, invalidTransition("contingency is already %s", cur.Status)
			}
			now := s.now().UTC()
			switch *in.Status {
			case models.ContingencyStatusSatisfied:
				cur.SatisfiedAt = &now
			case models.ContingencyStatusWaived:
				cur.WaivedAt = &now
				waiver := actorOr(in.WaivedByPartyID, actor)
				if waiver != nil {
					if _, err := partyOfDeal(ctx, tx, deal.ID, *waiver); err != nil {
						return Change{}, err
					}
				}
				cur.WaivedByPartyID = waiver
			}
			cur.Status = *in.Status
		}
		if in.Deadline != nil {
			cur.Deadline = in.Deadline
		}
		if in.Notes != nil {
			cur.Notes = in.Notes
		}
		if err := tx.UpdateContingency(ctx, cur); err != nil {
			return Change{}, err
		}
		out = *cur
		return Change{Type: models.AuditContingencyUpdated, Actor: actor, Before: before, After: out}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
