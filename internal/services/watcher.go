package services

import (
	"context"
	"time"

	"github.com/dealroom/backend/internal/events"
	"github.com/dealroom/backend/internal/models"
	"github.com/dealroom/backend/internal/repositories"
	"go.uber.org/zap"
)

// Watcher runs the read-only background checks: overdue deadlines and ledger
// chain integrity. It never changes deal state.
type Watcher struct {
	store     repositories.Store
	ledger    *AuditLedger
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewWatcher(store repositories.Store, ledger *AuditLedger, publisher events.Publisher, log *zap.Logger) *Watcher {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Watcher{store: store, ledger: ledger, publisher: publisher, log: log, now: time.Now}
}

type OverdueReport struct {
	Contingencies []models.Contingency
	Deals         []models.Deal
}

// ScanOverdue finds pending contingencies and unfunded deals past their
// deadline and publishes one notice per item.
func (w *Watcher) ScanOverdue(ctx context.Context) (*OverdueReport, error) {
	now := w.now().UTC()
	report := &OverdueReport{}

	cs, err := w.store.ListOverdueContingencies(ctx, now)
	if err != nil {
		return nil, err
	}
	report.Contingencies = cs
	for _, c := range cs {
		w.notify(ctx, map[string]any{
			"deal_id":        c.DealID.String(),
			"kind":           "contingency",
			"contingency_id": c.ID.String(),
			"type":           c.Type,
			"deadline":       c.Deadline,
		})
	}

	err = w.eachDeal(ctx, repositories.DealFilter{FundingOverdue: &now}, func(d models.Deal) {
		report.Deals = append(report.Deals, d)
		w.notify(ctx, map[string]any{
			"deal_id":  d.ID.String(),
			"kind":     "funding",
			"status":   d.Status,
			"deadline": d.DeadlineFunding,
		})
	})
	if err != nil {
		return nil, err
	}

	if len(report.Contingencies)+len(report.Deals) > 0 {
		w.log.Info("overdue deadlines found",
			zap.Int("contingencies", len(report.Contingencies)),
			zap.Int("deals", len(report.Deals)),
		)
	}
	return report, nil
}

// VerifyChains replays the ledger of every deal with audit events recorded
// after since and returns the replays that are broken or disagree with the
// stored status.
func (w *Watcher) VerifyChains(ctx context.Context, since time.Time) ([]models.LedgerReplay, error) {
	var bad []models.LedgerReplay
	var replayErr error
	err := w.eachDeal(ctx, repositories.DealFilter{AuditedAfter: &since}, func(d models.Deal) {
		if replayErr != nil {
			return
		}
		r, err := w.ledger.Replay(ctx, d.ID)
		if err != nil {
			replayErr = err
			return
		}
		if r.ChainValid && r.StatusConsistent {
			return
		}
		bad = append(bad, *r)
		w.log.Error("ledger verification failed",
			zap.String("deal_id", d.ID.String()),
			zap.Bool("chain_valid", r.ChainValid),
			zap.String("replayed_status", r.ReplayedStatus),
			zap.String("stored_status", r.StoredStatus),
		)
		_ = w.publisher.Publish(ctx, events.StreamNotifications, events.Event{
			Type: events.EventLedgerBroken,
			Payload: map[string]any{
				"deal_id":         d.ID.String(),
				"chain_valid":     r.ChainValid,
				"broken_at_seq":   r.BrokenAtSeq,
				"replayed_status": r.ReplayedStatus,
				"stored_status":   r.StoredStatus,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return bad, replayErr
}

func (w *Watcher) eachDeal(ctx context.Context, f repositories.DealFilter, fn func(models.Deal)) error {
	f.Limit = 100
	for {
		deals, err := w.store.ListDeals(ctx, f)
		if err != nil {
			return err
		}
		for _, d := range deals {
			fn(d)
		}
		if len(deals) < f.Limit {
			return nil
		}
		f.Offset += len(deals)
	}
}

func (w *Watcher) notify(ctx context.Context, payload map[string]any) {
	if err := w.publisher.Publish(ctx, events.StreamNotifications, events.Event{Type: events.EventDeadlineOverdue, Payload: payload}); err != nil {
		w.log.Warn("failed to publish deadline notice", zap.Error(err))
	}
}

// Run ticks ScanOverdue and VerifyChains until ctx is cancelled. Chains are
// verified for deals with audit events recorded within window. A failed pass is logged and the
// loop carries on.
func (w *Watcher) Run(ctx context.Context, interval, window time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.log.Info("watcher started", zap.Duration("interval", interval), zap.Duration("window", window))
	for {
		w.tick(ctx, window)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			w.log.Info("watcher stopped")
			return
		}
	}
}

func (w *Watcher) tick(ctx context.Context, window time.Duration) {
	if _, err := w.ScanOverdue(ctx); err != nil && ctx.Err() == nil {
		w.log.Error("deadline scan failed", zap.Error(err))
	}
	since := w.now().Add(-window).UTC()
	if _, err := w.VerifyChains(ctx, since); err != nil && ctx.Err() == nil {
		w.log.Error("chain verification failed", zap.Error(err))
	}
}
