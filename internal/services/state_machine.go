package services

import (
	"context"
	"fmt"

	"github.com/dealroom/backend/internal/models"
	"github.com/dealroom/backend/internal/repositories"
	"go.uber.org/zap"
)

// DealStateMachine is the only writer of deal status.
type DealStateMachine struct {
	log *zap.Logger
}

func NewDealStateMachine(log *zap.Logger) *DealStateMachine {
	return &DealStateMachine{log: log}
}

// Fire applies trigger to deal. A failed guard, or losing the status
// compare-and-set to a concurrent writer, leaves status alone and is not an error.
func (m *DealStateMachine) Fire(ctx context.Context, tx repositories.DealRepository, deal *models.Deal, trigger models.Trigger) (*models.StatusChange, error) {
	change := &models.StatusChange{Trigger: trigger, Before: deal.Status, After: deal.Status}

	to, ok := models.NextStatus(deal.Status, trigger)
	if !ok {
		m.log.Debug("transition guard not met",
			zap.String("deal_id", deal.ID.String()),
			zap.String("trigger", string(trigger)),
			zap.String("status", deal.Status),
		)
		return change, nil
	}
	return m.set(ctx, tx, deal, change, to)
}

// Override moves status outside the trigger table. It still refuses to
// regress or to leave a terminal status.
func (m *DealStateMachine) Override(ctx context.Context, tx repositories.DealRepository, deal *models.Deal, to string) (*models.StatusChange, error) {
	change := &models.StatusChange{Before: deal.Status, After: deal.Status}
	if !models.IsValidDealStatus(to) {
		return nil, validation("unknown deal status %q", to)
	}
	if !models.IsForwardMove(deal.Status, to) {
		return nil, invalidTransition("deal status cannot move from %s to %s", deal.Status, to)
	}
	if to == deal.Status {
		return change, nil
	}
	return m.set(ctx, tx, deal, change, to)
}

func (m *DealStateMachine) set(ctx context.Context, tx repositories.DealRepository, deal *models.Deal, change *models.StatusChange, to string) (*models.StatusChange, error) {
	won, err := tx.CompareAndSetDealStatus(ctx, deal.ID, deal.Status, to)
	if err != nil {
		return nil, fmt.Errorf("set deal status: %w", err)
	}
	if !won {
		m.log.Debug("deal status changed concurrently",
			zap.String("deal_id", deal.ID.String()),
			zap.String("expected", deal.Status),
		)
		return change, nil
	}

	deal.Status = to
	change.After = to
	change.Applied = true
	m.log.Info("deal status changed",
		zap.String("deal_id", deal.ID.String()),
		zap.String("trigger", string(change.Trigger)),
		zap.String("from", change.Before),
		zap.String("to", to),
	)
	return change, nil
}
