package services

import (
	"context"
	"strings"
	"time"

	"github.com/dealroom/backend/internal/canon"
	"github.com/dealroom/backend/internal/models"
	"github.com/dealroom/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SigningService tracks PSBT sessions and their signatures. Payloads are
// opaque: nothing is parsed, verified or broadcast.
type SigningService struct {
	store   repositories.Store
	ledger  *AuditLedger
	machine *DealStateMachine
	log     *zap.Logger
	now     func() time.Time
}

func NewSigningService(store repositories.Store, ledger *AuditLedger, machine *DealStateMachine, log *zap.Logger) *SigningService {
	return &SigningService{store: store, ledger: ledger, machine: machine, log: log, now: time.Now}
}

type CreateSessionInput struct {
	Type             string
	PSBTBase64       string
	CreatedByPartyID *uuid.UUID
}

func (s *SigningService) CreateSession(ctx context.Context, dealID uuid.UUID, in CreateSessionInput, actor *uuid.UUID) (*models.PSBTSession, error) {
	in.Type = strings.TrimSpace(in.Type)
	if in.Type == "" {
		return nil, validation("type is required")
	}
	if strings.TrimSpace(in.PSBTBase64) == "" {
		return nil, validation("psbt_base64 is required")
	}

	session := &models.PSBTSession{
		ID:               uuid.New(),
		DealID:           dealID,
		Type:             in.Type,
		PSBTBase64:       in.PSBTBase64,
		PSBTHash:         canon.HashString(in.PSBTBase64),
		Status:           models.PSBTStatusDraft,
		CreatedByPartyID: in.CreatedByPartyID,
	}

	_, err := s.ledger.Mutate(ctx, dealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		if in.CreatedByPartyID != nil {
			if _, err := partyOfDeal(ctx, tx, deal.ID, *in.CreatedByPartyID); err != nil {
				return Change{}, err
			}
		}
		if err := tx.CreatePSBTSession(ctx, session); err != nil {
			return Change{}, err
		}

		c := Change{Type: models.AuditPSBTCreated, Actor: actorOr(actor, in.CreatedByPartyID), After: session}
		if trigger, ok := models.SessionCreatedTrigger(session.Type); ok {
			status, err := s.machine.Fire(ctx, tx, deal, trigger)
			if err != nil {
				return Change{}, err
			}
			c.Status = status
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// RequestSignature asks partyID to sign. The first request moves the session
// from draft to signing. Repeated requests add records; they are not merged.
func (s *SigningService) RequestSignature(ctx context.Context, sessionID, partyID uuid.UUID, actor *uuid.UUID) (*models.PSBTSignature, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var sig *models.PSBTSignature
	_, err = s.ledger.Mutate(ctx, session.DealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		cur, err := tx.GetPSBTSession(ctx, sessionID)
		if err != nil {
			return Change{}, lookup("psbt session", err)
		}
		if cur.Status == models.PSBTStatusFinalized {
			return Change{}, invalidTransition("psbt session %s is finalized", cur.ID)
		}
		if _, err := partyOfDeal(ctx, tx, deal.ID, partyID); err != nil {
			return Change{}, err
		}

		before := *cur
		if cur.Status == models.PSBTStatusDraft {
			cur.Status = models.PSBTStatusSigning
			if err := tx.UpdatePSBTSession(ctx, cur); err != nil {
				return Change{}, err
			}
		}
		sig = &models.PSBTSignature{
			ID:        uuid.New(),
			SessionID: cur.ID,
			PartyID:   partyID,
			Status:    models.SignatureStatusRequested,
		}
		if err := tx.CreatePSBTSignature(ctx, sig); err != nil {
			return Change{}, err
		}
		return Change{
			Type:   models.AuditPSBTSignatureRequested,
			Actor:  actor,
			Before: before,
			After:  cur,
			Extra:  map[string]any{"signature": sig},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return sig, nil
}

// SubmitSignature marks the newest request of partyID signed. Without a
// prior request it fails with NotFound.
func (s *SigningService) SubmitSignature(ctx context.Context, sessionID, partyID uuid.UUID, signedPSBT string) (*models.PSBTSignature, error) {
	if strings.TrimSpace(signedPSBT) == "" {
		return nil, validation("signed_psbt_base64 is required")
	}
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var out models.PSBTSignature
	_, err = s.ledger.Mutate(ctx, session.DealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		cur, err := tx.GetPSBTSession(ctx, sessionID)
		if err != nil {
			return Change{}, lookup("psbt session", err)
		}
		if cur.Status == models.PSBTStatusFinalized {
			return Change{}, invalidTransition("psbt session %s is finalized", cur.ID)
		}
		sig, err := tx.LatestPSBTSignature(ctx, sessionID, partyID)
		if err != nil {
			return Change{}, lookup("signature request", err)
		}

		before := *sig
		now := s.now().UTC()
		sig.Status = models.SignatureStatusSigned
		sig.SignedPSBTBase64 = &signedPSBT
		sig.SignedAt = &now
		if err := tx.UpdatePSBTSignature(ctx, sig); err != nil {
			return Change{}, err
		}
		out = *sig
		return Change{Type: models.AuditPSBTSignatureSubmitted, Actor: &partyID, Before: before, After: out}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Finalize closes the session whatever signatures were collected and fires
// the settlement or refund trigger for its type.
func (s *SigningService) Finalize(ctx context.Context, sessionID uuid.UUID, txRef *string, actor *uuid.UUID) (*models.PSBTSession, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var out models.PSBTSession
	_, err = s.ledger.Mutate(ctx, session.DealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		cur, err := tx.GetPSBTSession(ctx, sessionID)
		if err != nil {
			return Change{}, lookup("psbt session", err)
		}

		before := *cur
		ref := models.DefaultBroadcastTxID
		switch {
		case txRef != nil && strings.TrimSpace(*txRef) != "":
			ref = strings.TrimSpace(*txRef)
		case cur.BroadcastTxID != nil:
			ref = *cur.BroadcastTxID
		}
		cur.Status = models.PSBTStatusFinalized
		cur.BroadcastTxID = &ref
		if err := tx.UpdatePSBTSession(ctx, cur); err != nil {
			return Change{}, err
		}

		status, err := s.machine.Fire(ctx, tx, deal, models.SessionFinalizedTrigger(cur.Type))
		if err != nil {
			return Change{}, err
		}
		out = *cur
		return Change{
			Type:        models.AuditPSBTFinalized,
			Actor:       actor,
			ExternalRef: &ref,
			Status:      status,
			Before:      before,
			After:       out,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SigningService) Session(ctx context.Context, sessionID uuid.UUID) (*models.PSBTSessionWithSignatures, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sigs, err := s.store.ListPSBTSignatures(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sigs == nil {
		sigs = []models.PSBTSignature{}
	}
	return &models.PSBTSessionWithSignatures{PSBTSession: *session, Signatures: sigs}, nil
}

func (s *SigningService) Sessions(ctx context.Context, dealID uuid.UUID) ([]models.PSBTSession, error) {
	if _, err := s.store.GetDeal(ctx, dealID); err != nil {
		return nil, lookup("deal", err)
	}
	return s.store.ListPSBTSessions(ctx, dealID)
}

func (s *SigningService) getSession(ctx context.Context, id uuid.UUID) (*models.PSBTSession, error) {
	session, err := s.store.GetPSBTSession(ctx, id)
	if err != nil {
		return nil, lookup("psbt session", err)
	}
	return session, nil
}

func actorOr(actor, fallback *uuid.UUID) *uuid.UUID {
	if actor != nil {
		return actor
	}
	return fallback
}
