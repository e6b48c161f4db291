package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dealroom/backend/internal/canon"
	"github.com/dealroom/backend/internal/models"
	"github.com/dealroom/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PoFService runs the proof-of-funds workflow: challenge, attestation, verification.
type PoFService struct {
	store   repositories.Store
	ledger  *AuditLedger
	machine *DealStateMachine
	log     *zap.Logger
	now     func() time.Time
}

func NewPoFService(store repositories.Store, ledger *AuditLedger, machine *DealStateMachine, log *zap.Logger) *PoFService {
	return &PoFService{store: store, ledger: ledger, machine: machine, log: log, now: time.Now}
}

// Challenge builds the message a buyer signs. Every field is recorded with
// the request so the string can be rebuilt during a dispute.
func Challenge(dealID uuid.UUID, requester, propertyAddress string, issuedAt time.Time, amountBTC string) string {
	return fmt.Sprintf("DealID:%s | Buyer:%s | Property:%s | Timestamp:%s | RequestedAmount:%s",
		dealID, requester, propertyAddress, issuedAt.UTC().Format(time.RFC3339), amountBTC)
}

type RequestProofInput struct {
	RequesterName      string
	RequestedAmountBTC string
	RequestedAmountUSD *decimal.Decimal
}

func (s *PoFService) RequestProof(ctx context.Context, dealID uuid.UUID, in RequestProofInput, actor *uuid.UUID) (*models.PoFRequest, error) {
	if strings.TrimSpace(in.RequesterName) == "" {
		return nil, validation("requester_name is required")
	}
	amount, err := parseAmount("requested_amount_btc", in.RequestedAmountBTC)
	if err != nil {
		return nil, err
	}

	var req *models.PoFRequest
	_, err = s.ledger.Mutate(ctx, dealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		issued := s.now().UTC().Truncate(time.Second)
		req = &models.PoFRequest{
			ID:                 uuid.New(),
			DealID:             deal.ID,
			Challenge:          Challenge(deal.ID, in.RequesterName, deal.PropertyAddress, issued, amount),
			RequesterName:      in.RequesterName,
			RequestedAmountBTC: amount,
			RequestedAmountUSD: in.RequestedAmountUSD,
			IssuedAt:           issued,
		}
		if err := tx.CreatePoFRequest(ctx, req); err != nil {
			return Change{}, err
		}
		status, err := s.machine.Fire(ctx, tx, deal, models.TriggerPoFRequested)
		if err != nil {
			return Change{}, err
		}
		return Change{Type: models.AuditPoFRequested, Actor: actor, Status: status, After: req}, nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

type AttestInput struct {
	PartyID             uuid.UUID
	ProofType           string
	AddressOrDescriptor string
	Signature           string
	ClaimedTotalBTC     *string
}

// Attest stores an unverified attestation. Deal status is untouched.
func (s *PoFService) Attest(ctx context.Context, dealID uuid.UUID, in AttestInput) (*models.PoFAttestation, error) {
	if in.ProofType == "" || in.AddressOrDescriptor == "" || in.Signature == "" {
		return nil, validation("proof_type, address_or_descriptor and signature are required")
	}
	var claimed *string
	if in.ClaimedTotalBTC != nil {
		v, err := parseAmount("utxos_total_btc", *in.ClaimedTotalBTC)
		if err != nil {
			return nil, err
		}
		claimed = &v
	}

	var att *models.PoFAttestation
	_, err := s.ledger.Mutate(ctx, dealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		if _, err := partyOfDeal(ctx, tx, deal.ID, in.PartyID); err != nil {
			return Change{}, err
		}
		partyID := in.PartyID
		att = &models.PoFAttestation{
			ID:                  uuid.New(),
			DealID:              deal.ID,
			PartyID:             &partyID,
			ProofType:           in.ProofType,
			AddressOrDescriptor: in.AddressOrDescriptor,
			Signature:           in.Signature,
			UTXOsTotalBTC:       claimed,
		}
		if err := tx.CreatePoFAttestation(ctx, att); err != nil {
			return Change{}, err
		}
		return Change{Type: models.AuditPoFAttested, Actor: &partyID, After: att}, nil
	})
	if err != nil {
		return nil, err
	}
	return att, nil
}

// Verify marks the latest attestation verified. A second call keeps the
// original verified_at and is otherwise a no-op.
func (s *PoFService) Verify(ctx context.Context, dealID uuid.UUID, actor *uuid.UUID) (*models.PoFAttestation, error) {
	var out *models.PoFAttestation
	_, err := s.ledger.Mutate(ctx, dealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		latest, err := tx.LatestPoFAttestation(ctx, deal.ID)
		if err != nil {
			return Change{}, lookup("attestation", err)
		}
		out, err = tx.MarkAttestationVerified(ctx, latest.ID, s.now().UTC())
		if err != nil {
			return Change{}, err
		}
		status, err := s.machine.Fire(ctx, tx, deal, models.TriggerPoFVerified)
		if err != nil {
			return Change{}, err
		}
		return Change{Type: models.AuditPoFVerified, Actor: actor, Status: status, Before: latest, After: out}, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Packet bundles the latest request and attestation for the counterparty.
func (s *PoFService) Packet(ctx context.Context, dealID uuid.UUID) (*models.PoFPacket, error) {
	deal, err := s.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, lookup("deal", err)
	}
	att, err := s.store.LatestPoFAttestation(ctx, dealID)
	if err != nil {
		return nil, lookup("attestation", err)
	}
	req, err := s.store.LatestPoFRequest(ctx, dealID)
	if err != nil && !isMissing(err) {
		return nil, err
	}

	return &models.PoFPacket{
		DealID:                  deal.ID,
		PropertyAddress:         deal.PropertyAddress,
		Request:                 req,
		Attestation:             att,
		VerificationFingerprint: canon.HashString(att.Signature),
		GeneratedAt:             s.now().UTC(),
	}, nil
}
