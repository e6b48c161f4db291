package services

import (
	"context"
	"strings"

	"github.com/dealroom/backend/internal/models"
	"github.com/dealroom/backend/internal/rbac"
	"github.com/dealroom/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PartyService is the registry of deal participants.
type PartyService struct {
	store  repositories.Store
	ledger *AuditLedger
	log    *zap.Logger
}

func NewPartyService(store repositories.Store, ledger *AuditLedger, log *zap.Logger) *PartyService {
	return &PartyService{store: store, ledger: ledger, log: log}
}

type InvitePartyInput struct {
	Role             string
	DisplayName      string
	Email            string
	Phone            *string
	CompanyName      *string
	LicenseNumber    *string
	SigningAuthority *bool
	WalletDescriptor *string
	PubKey           *string
}

func (s *PartyService) Invite(ctx context.Context, dealID uuid.UUID, in InvitePartyInput, actor *uuid.UUID) (*models.Party, error) {
	in.Role = strings.TrimSpace(in.Role)
	if in.Role == "" {
		return nil, validation("role is required")
	}
	if strings.TrimSpace(in.DisplayName) == "" {
		return nil, validation("display_name is required")
	}
	if !strings.Contains(in.Email, "@") {
		return nil, validation("email is invalid")
	}

	party := &models.Party{
		ID:               uuid.New(),
		DealID:           dealID,
		Role:             in.Role,
		DisplayName:      strings.TrimSpace(in.DisplayName),
		Email:            strings.TrimSpace(in.Email),
		Phone:            in.Phone,
		CompanyName:      in.CompanyName,
		LicenseNumber:    in.LicenseNumber,
		SigningAuthority: rbac.SigningAuthority(in.Role, in.SigningAuthority),
		WalletDescriptor: in.WalletDescriptor,
		PubKey:           in.PubKey,
	}

	_, err := s.ledger.Mutate(ctx, dealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		if err := tx.CreateParty(ctx, party); err != nil {
			return Change{}, err
		}
		return Change{Type: models.AuditPartyInvited, Actor: actor, After: party}, nil
	})
	if err != nil {
		return nil, err
	}
	return party, nil
}

func (s *PartyService) Get(ctx context.Context, id uuid.UUID) (*models.Party, error) {
	p, err := s.store.GetParty(ctx, id)
	if err != nil {
		return nil, lookup("party", err)
	}
	return p, nil
}

func (s *PartyService) List(ctx context.Context, dealID uuid.UUID) ([]models.Party, error) {
	if _, err := s.store.GetDeal(ctx, dealID); err != nil {
		return nil, lookup("deal", err)
	}
	return s.store.ListParties(ctx, dealID)
}

// AttachWallet sets wallet material. It is the only mutation a party allows.
func (s *PartyService) AttachWallet(ctx context.Context, partyID uuid.UUID, descriptor, pubKey *string, actor *uuid.UUID) (*models.Party, error) {
	if descriptor == nil && pubKey == nil {
		return nil, validation("wallet_descriptor or pubkey is required")
	}
	p, err := s.Get(ctx, partyID)
	if err != nil {
		return nil, err
	}

	var out models.Party
	_, err = s.ledger.Mutate(ctx, p.DealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		cur, err := tx.GetParty(ctx, partyID)
		if err != nil {
			return Change{}, lookup("party", err)
		}
		before := *cur
		if descriptor != nil {
			cur.WalletDescriptor = descriptor
		}
		if pubKey != nil {
			cur.PubKey = pubKey
		}
		if err := tx.UpdatePartyWallet(ctx, cur); err != nil {
			return Change{}, err
		}
		out = *cur
		return Change{Type: models.AuditPartyUpdated, Actor: actor, Before: before, After: out}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// partyOfDeal loads a party and checks it belongs to dealID.
func partyOfDeal(ctx context.Context, tx repositories.Tx, dealID, partyID uuid.UUID) (*models.Party, error) {
	p, err := tx.GetParty(ctx, partyID)
	if err != nil {
		return nil, lookup("party", err)
	}
	if p.DealID != dealID {
		return nil, &NotFoundError{Entity: "party"}
	}
	return p, nil
}
