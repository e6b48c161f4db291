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
	"go.uber.org/zap"
)

type EscrowService struct {
	store   repositories.Store
	ledger  *AuditLedger
	machine *DealStateMachine
	log     *zap.Logger
	now     func() time.Time
}

func NewEscrowService(store repositories.Store, ledger *AuditLedger, machine *DealStateMachine, log *zap.Logger) *EscrowService {
	return &EscrowService{store: store, ledger: ledger, machine: machine, log: log, now: time.Now}
}

type CreatePolicyInput struct {
	Descriptor     *string
	Address        *string
	RefundTimelock *time.Time
}

// policyTerms is the hashed submission. Field names are part of the hash.
type policyTerms struct {
	DealID         uuid.UUID  `json:"deal_id"`
	PolicyType     string     `json:"policy_type"`
	Descriptor     string     `json:"descriptor"`
	Address        string     `json:"address"`
	RefundTimelock *time.Time `json:"refund_timelock"`
}

func (s *EscrowService) CreatePolicy(ctx context.Context, dealID uuid.UUID, in CreatePolicyInput, actor *uuid.UUID) (*models.EscrowPolicy, error) {
	terms := policyTerms{
		DealID:         dealID,
		PolicyType:     models.EscrowPolicyWSH2of3Timelock,
		Descriptor:     models.DefaultEscrowDescriptor,
		Address:        models.DefaultEscrowAddress,
		RefundTimelock: in.RefundTimelock,
	}
	if in.Descriptor != nil && strings.TrimSpace(*in.Descriptor) != "" {
		terms.Descriptor = strings.TrimSpace(*in.Descriptor)
	}
	if in.Address != nil && strings.TrimSpace(*in.Address) != "" {
		terms.Address = strings.TrimSpace(*in.Address)
	}
	if terms.RefundTimelock != nil {
		utc := terms.RefundTimelock.UTC()
		terms.RefundTimelock = &utc
	}
	termsHash, err := canon.HashJSON(terms)
	if err != nil {
		return nil, fmt.Errorf("hash escrow terms: %w", err)
	}

	policy := &models.EscrowPolicy{
		ID:             uuid.New(),
		DealID:         dealID,
		PolicyType:     terms.PolicyType,
		Descriptor:     terms.Descriptor,
		RefundTimelock: terms.RefundTimelock,
		Address:        terms.Address,
		TermsHash:      termsHash,
	}

	_, err = s.ledger.Mutate(ctx, dealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		if err := tx.CreateEscrowPolicy(ctx, policy); err != nil {
			return Change{}, err
		}
		status, err := s.machine.Fire(ctx, tx, deal, models.TriggerEscrowPolicyCreated)
		if err != nil {
			return Change{}, err
		}
		return Change{Type: models.AuditEscrowPolicyCreated, Actor: actor, Status: status, After: policy}, nil
	})
	if err != nil {
		return nil, err
	}
	return policy, nil
}

// Policy returns the authoritative (latest) policy.
func (s *EscrowService) Policy(ctx context.Context, dealID uuid.UUID) (*models.EscrowPolicy, error) {
	if _, err := s.store.GetDeal(ctx, dealID); err != nil {
		return nil, lookup("deal", err)
	}
	p, err := s.store.LatestEscrowPolicy(ctx, dealID)
	if err != nil {
		return nil, lookup("escrow policy", err)
	}
	return p, nil
}

type RecordFundingInput struct {
	TxID          string
	AmountBTC     string
	Confirmations *int
	FundedAt      *time.Time
}

// RecordFunding appends a funding fact. The txid is not checked against any chain.
func (s *EscrowService) RecordFunding(ctx context.Context, dealID uuid.UUID, in RecordFundingInput, actor *uuid.UUID) (*models.EscrowFunding, error) {
	txid := strings.TrimSpace(in.TxID)
	if txid == "" {
		return nil, validation("txid is required")
	}
	amount, err := parseAmount("amount_btc", in.AmountBTC)
	if err != nil {
		return nil, err
	}
	confirmations := 0
	if in.Confirmations != nil {
		if *in.Confirmations < 0 {
			return nil, validation("confirmations must not be negative")
		}
		confirmations = *in.Confirmations
	}
	fundedAt := s.now().UTC()
	if in.FundedAt != nil {
		fundedAt = in.FundedAt.UTC()
	}

	funding := &models.EscrowFunding{
		ID:            uuid.New(),
		DealID:        dealID,
		TxID:          txid,
		AmountBTC:     amount,
		Confirmations: confirmations,
		FundedAt:      fundedAt,
	}

	_, err = s.ledger.Mutate(ctx, dealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		if err := tx.CreateEscrowFunding(ctx, funding); err != nil {
			return Change{}, err
		}
		status, err := s.machine.Fire(ctx, tx, deal, models.TriggerEscrowFunded)
		if err != nil {
			return Change{}, err
		}
		return Change{
			Type:        models.AuditEscrowFunded,
			Actor:       actor,
			ExternalRef: &txid,
			Status:      status,
			After:       funding,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return funding, nil
}

// Receipt joins the latest funding with the latest policy, if one exists.
func (s *EscrowService) Receipt(ctx context.Context, dealID uuid.UUID) (*models.EscrowReceipt, error) {
	if _, err := s.store.GetDeal(ctx, dealID); err != nil {
		return nil, lookup("deal", err)
	}
	funding, err := s.store.LatestEscrowFunding(ctx, dealID)
	if err != nil {
		return nil, lookup("escrow funding", err)
	}

	r := &models.EscrowReceipt{
		DealID:        dealID,
		FundingID:     funding.ID,
		TxID:          funding.TxID,
		AmountBTC:     funding.AmountBTC,
		Confirmations: funding.Confirmations,
		FundedAt:      funding.FundedAt,
		GeneratedAt:   s.now().UTC(),
	}
	policy, err := s.store.LatestEscrowPolicy(ctx, dealID)
	switch {
	case err == nil:
		r.PolicyID = &policy.ID
		r.Address = &policy.Address
	case !isMissing(err):
		return nil, err
	}
	return r, nil
}
