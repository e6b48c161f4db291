package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dealroom/backend/internal/canon"
	"github.com/dealroom/backend/internal/events"
	"github.com/dealroom/backend/internal/models"
	"github.com/dealroom/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Change describes one mutation for the ledger. Before and After hold entity
// snapshots; Status is set whenever the state machine was consulted.
type Change struct {
	Type        string
	Actor       *uuid.UUID
	ExternalRef *string
	Status      *models.StatusChange
	Before      any
	After       any
	Extra       map[string]any
}

func (c Change) payload() map[string]any {
	p := make(map[string]any, len(c.Extra)+3)
	for k, v := range c.Extra {
		p[k] = v
	}
	if c.Status != nil {
		p["deal_status"] = c.Status
	}
	if c.Before != nil {
		p["before"] = c.Before
	}
	if c.After != nil {
		p["after"] = c.After
	}
	return p
}

// chainBody is the hashed portion of an audit event.
type chainBody struct {
	ID           uuid.UUID       `json:"id"`
	DealID       uuid.UUID       `json:"deal_id"`
	Type         string          `json:"type"`
	ActorPartyID *uuid.UUID      `json:"actor_party_id"`
	ExternalRef  *string         `json:"external_ref"`
	Payload      json.RawMessage `json:"payload"`
}

func eventHash(e *models.AuditEvent) (string, error) {
	return canon.ChainHash(e.PrevHash, chainBody{
		ID:           e.ID,
		DealID:       e.DealID,
		Type:         e.Type,
		ActorPartyID: e.ActorPartyID,
		ExternalRef:  e.ExternalRef,
		Payload:      e.Payload,
	})
}

// AuditLedger appends hash-chained events and runs every mutation inside one
// storage transaction together with its event.
type AuditLedger struct {
	store     repositories.Store
	publisher events.Publisher
	log       *zap.Logger
}

func NewAuditLedger(store repositories.Store, publisher events.Publisher, log *zap.Logger) *AuditLedger {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &AuditLedger{store: store, publisher: publisher, log: log}
}

// Record appends exactly one event to dealID's chain inside tx.
func (l *AuditLedger) Record(ctx context.Context, tx repositories.Tx, dealID uuid.UUID, c Change) (*models.AuditEvent, error) {
	payload, err := canon.JSON(c.payload())
	if err != nil {
		return nil, fmt.Errorf("encode audit payload: %w", err)
	}
	prev, err := tx.LastAuditHash(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("read ledger head: %w", err)
	}

	e := &models.AuditEvent{
		ID:           uuid.New(),
		DealID:       dealID,
		Type:         c.Type,
		ActorPartyID: c.Actor,
		Payload:      payload,
		ExternalRef:  c.ExternalRef,
		PrevHash:     prev,
	}
	if e.Hash, err = eventHash(e); err != nil {
		return nil, fmt.Errorf("hash audit event: %w", err)
	}
	if err := tx.AppendAuditEvent(ctx, e); err != nil {
		return nil, fmt.Errorf("append audit event: %w", err)
	}
	return e, nil
}

// Mutate locks the deal, runs fn and records the Change it returns, all in
// one transaction. The event is published only after commit.
func (l *AuditLedger) Mutate(ctx context.Context, dealID uuid.UUID, fn func(tx repositories.Tx, deal *models.Deal) (Change, error)) (*models.AuditEvent, error) {
	var ev *models.AuditEvent
	err := l.store.WithTx(ctx, func(tx repositories.Tx) error {
		deal, err := tx.LockDeal(ctx, dealID)
		if err != nil {
			return lookup("deal", err)
		}
		c, err := fn(tx, deal)
		if err != nil {
			return err
		}
		ev, err = l.Record(ctx, tx, deal.ID, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.publish(ctx, ev)
	return ev, nil
}

func (l *AuditLedger) publish(ctx context.Context, e *models.AuditEvent) {
	payload := map[string]any{
		"deal_id":    e.DealID.String(),
		"event_id":   e.ID.String(),
		"seq":        e.Seq,
		"hash":       e.Hash,
		"created_at": e.CreatedAt,
	}
	if err := l.publisher.Publish(ctx, events.StreamDeal, events.Event{Type: e.Type, Payload: payload}); err != nil {
		l.log.Warn("failed to publish audit event", zap.String("deal_id", e.DealID.String()), zap.Error(err))
	}

	var p struct {
		DealStatus *models.StatusChange `json:"deal_status"`
	}
	if json.Unmarshal(e.Payload, &p) != nil || p.DealStatus == nil || !p.DealStatus.Applied {
		return
	}
	_ = l.publisher.Publish(ctx, events.StreamDeal, events.Event{
		Type: events.EventDealStatusChanged,
		Payload: map[string]any{
			"deal_id":    e.DealID.String(),
			"old_status": p.DealStatus.Before,
			"new_status": p.DealStatus.After,
		},
	})
}

// History returns every event of a deal, newest first.
func (l *AuditLedger) History(ctx context.Context, dealID uuid.UUID) ([]models.AuditEvent, error) {
	if _, err := l.store.GetDeal(ctx, dealID); err != nil {
		return nil, lookup("deal", err)
	}
	return l.store.ListAuditEvents(ctx, dealID, true)
}

// Replay walks the ledger oldest first, checks every hash link and rebuilds
// the deal status from the recorded status changes.
func (l *AuditLedger) Replay(ctx context.Context, dealID uuid.UUID) (*models.LedgerReplay, error) {
	deal, err := l.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, lookup("deal", err)
	}
	evs, err := l.store.ListAuditEvents(ctx, dealID, false)
	if err != nil {
		return nil, err
	}

	r := &models.LedgerReplay{
		DealID:       dealID,
		Events:       len(evs),
		ChainValid:   true,
		StoredStatus: deal.Status,
	}
	prev := models.GenesisHash
	for i := range evs {
		e := &evs[i]
		if r.ChainValid {
			h, err := eventHash(e)
			if err != nil {
				return nil, err
			}
			if e.PrevHash != prev || h != e.Hash {
				r.ChainValid = false
				seq := e.Seq
				r.BrokenAtSeq = &seq
			}
		}
		prev = e.Hash

		var p struct {
			DealStatus *models.StatusChange `json:"deal_status"`
		}
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			continue
		}
		if p.DealStatus != nil && p.DealStatus.Applied {
			r.ReplayedStatus = p.DealStatus.After
		}
	}
	r.HeadHash = prev
	r.StatusConsistent = r.ReplayedStatus == deal.Status
	return r, nil
}
