package services

import (
	"context"
	"strings"
	"time"

	"github.com/dealroom/backend/internal/models"
	"github.com/dealroom/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecordsService keeps the auxiliary closing records of a deal: documents,
// funds and disbursements. None of them touch deal status.
type RecordsService struct {
	store  repositories.Store
	ledger *AuditLedger
	log    *zap.Logger
	now    func() time.Time
}

func NewRecordsService(store repositories.Store, ledger *AuditLedger, log *zap.Logger) *RecordsService {
	return &RecordsService{store: store, ledger: ledger, log: log, now: time.Now}
}

// Documents

type UploadDocumentInput struct {
	Type               string
	Name               string
	FileURL            *string
	FileHash           *string
	RequiresSignatures bool
	UploadedByPartyID  *uuid.UUID
}

func (s *RecordsService) UploadDocument(ctx context.Context, dealID uuid.UUID, in UploadDocumentInput, actor *uuid.UUID) (*models.Document, error) {
	if strings.TrimSpace(in.Type) == "" || strings.TrimSpace(in.Name) == "" {
		return nil, validation("type and name are required")
	}
	doc := &models.Document{
		ID:                 uuid.New(),
		DealID:             dealID,
		Type:               strings.TrimSpace(in.Type),
		Name:               strings.TrimSpace(in.Name),
		UploadedByPartyID:  actorOr(in.UploadedByPartyID, actor),
		FileURL:            in.FileURL,
		FileHash:           in.FileHash,
		Status:             models.DocumentStatusDraft,
		RequiresSignatures: in.RequiresSignatures,
	}
	_, err := s.ledger.Mutate(ctx, dealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		if doc.UploadedByPartyID != nil {
			if _, err := partyOfDeal(ctx, tx, deal.ID, *doc.UploadedByPartyID); err != nil {
				return Change{}, err
			}
		}
		if err := tx.CreateDocument(ctx, doc); err != nil {
			return Change{}, err
		}
		return Change{Type: models.AuditDocumentUploaded, Actor: actor, After: doc}, nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *RecordsService) ListDocuments(ctx context.Context, dealID uuid.UUID) ([]models.Document, error) {
	if _, err := s.store.GetDeal(ctx, dealID); err != nil {
		return nil, lookup("deal", err)
	}
	return s.store.ListDocuments(ctx, dealID)
}

type UpdateDocumentInput struct {
	Status   *string
	FileURL  *string
	FileHash *string
}

func (s *RecordsService) UpdateDocument(ctx context.Context, id uuid.UUID, in UpdateDocumentInput, actor *uuid.UUID) (*models.Document, error) {
	if in.Status == nil && in.FileURL == nil && in.FileHash == nil {
		return nil, validation("nothing to update")
	}
	existing, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, lookup("document", err)
	}

	var out models.Document
	_, err = s.ledger.Mutate(ctx, existing.DealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		cur, err := tx.GetDocument(ctx, id)
		if err != nil {
			return Change{}, lookup("document", err)
		}
		before := *cur
		if in.Status != nil {
			if !models.IsForwardDocumentStatus(cur.Status, *in.Status) {
				return Change{}, invalidTransition("document status cannot move from %s to %s", cur.Status, *in.Status)
			}
			cur.Status = *in.Status
		}
		if in.FileURL != nil {
			cur.FileURL = in.FileURL
		}
		if in.FileHash != nil {
			cur.FileHash = in.FileHash
		}
		if err := tx.UpdateDocument(ctx, cur); err != nil {
			return Change{}, err
		}
		out = *cur
		return Change{Type: models.AuditDocumentUpdated, Actor: actor, Before: before, After: out}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Funds

type AddFundInput struct {
	Type           string
	Description    *string
	AmountBTC      *string
	AmountUSD      *decimal.Decimal
	EscrowPolicyID *uuid.UUID
}

func (s *RecordsService) AddFund(ctx context.Context, dealID uuid.UUID, in AddFundInput, actor *uuid.UUID) (*models.Fund, error) {
	if strings.TrimSpace(in.Type) == "" {
		return nil, validation("type is required")
	}
	var btc *string
	if in.AmountBTC != nil {
		v, err := parseAmount("amount_btc", *in.AmountBTC)
		if err != nil {
			return nil, err
		}
		btc = &v
	}
	fund := &models.Fund{
		ID:             uuid.New(),
		DealID:         dealID,
		Type:           strings.TrimSpace(in.Type),
		Description:    in.Description,
		AmountBTC:      btc,
		AmountUSD:      in.AmountUSD,
		EscrowPolicyID: in.EscrowPolicyID,
		Status:         models.FundStatusPending,
	}
	_, err := s.ledger.Mutate(ctx, dealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		if err := tx.CreateFund(ctx, fund); err != nil {
			return Change{}, err
		}
		return Change{Type: models.AuditFundAdded, Actor: actor, After: fund}, nil
	})
	if err != nil {
		return nil, err
	}
	return fund, nil
}

func (s *RecordsService) ListFunds(ctx context.Context, dealID uuid.UUID) ([]models.Fund, error) {
	if _, err := s.store.GetDeal(ctx, dealID); err != nil {
		return nil, lookup("deal", err)
	}
	return s.store.ListFunds(ctx, dealID)
}

type UpdateFundInput struct {
	Status       *string
	FundedTxID   *string
	ReleasedTxID *string
}

func (s *RecordsService) UpdateFund(ctx context.Context, id uuid.UUID, in UpdateFundInput, actor *uuid.UUID) (*models.Fund, error) {
	if in.Status == nil && in.FundedTxID == nil && in.ReleasedTxID == nil {
		return nil, validation("nothing to update")
	}
	existing, err := s.store.GetFund(ctx, id)
	if err != nil {
		return nil, lookup("fund", err)
	}

	var out models.Fund
	_, err = s.ledger.Mutate(ctx, existing.DealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		cur, err := tx.GetFund(ctx, id)
		if err != nil {
			return Change{}, lookup("fund", err)
		}
		before := *cur
		if in.Status != nil {
			if !models.IsForwardFundStatus(cur.Status, *in.Status) {
				return Change{}, invalidTransition("fund status cannot move from %s to %s", cur.Status, *in.Status)
			}
			cur.Status = *in.Status
		}
		if in.FundedTxID != nil {
			cur.FundedTxID = in.FundedTxID
		}
		if in.ReleasedTxID != nil {
			cur.ReleasedTxID = in.ReleasedTxID
		}
		if err := tx.UpdateFund(ctx, cur); err != nil {
			return Change{}, err
		}
		out = *cur
		c := Change{Type: models.AuditFundUpdated, Actor: actor, Before: before, After: out}
		if cur.ReleasedTxID != nil {
			c.ExternalRef = cur.ReleasedTxID
		} else {
			c.ExternalRef = cur.FundedTxID
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Disbursements

type AddDisbursementInput struct {
	PayeeName   string
	PayeeType   string
	AmountUSD   *decimal.Decimal
	AmountBTC   *string
	Description *string
	BTCAddress  *string
}

func (s *RecordsService) AddDisbursement(ctx context.Context, dealID uuid.UUID, in AddDisbursementInput, actor *uuid.UUID) (*models.Disbursement, error) {
	if strings.TrimSpace(in.PayeeName) == "" || strings.TrimSpace(in.PayeeType) == "" {
		return nil, validation("payee_name and payee_type are required")
	}
	if in.AmountUSD == nil && in.AmountBTC == nil {
		return nil, validation("amount_usd or amount_btc is required")
	}
	var btc *string
	if in.AmountBTC != nil {
		v, err := parseAmount("amount_btc", *in.AmountBTC)
		if err != nil {
			return nil, err
		}
		btc = &v
	}
	d := &models.Disbursement{
		ID:          uuid.New(),
		DealID:      dealID,
		PayeeName:   strings.TrimSpace(in.PayeeName),
		PayeeType:   strings.TrimSpace(in.PayeeType),
		AmountUSD:   in.AmountUSD,
		AmountBTC:   btc,
		Description: in.Description,
		BTCAddress:  in.BTCAddress,
		Status:      models.DisbursementStatusPending,
	}
	_, err := s.ledger.Mutate(ctx, dealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		if err := tx.CreateDisbursement(ctx, d); err != nil {
			return Change{}, err
		}
		return Change{Type: models.AuditDisbursementAdded, Actor: actor, After: d}, nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *RecordsService) ListDisbursements(ctx context.Context, dealID uuid.UUID) ([]models.Disbursement, error) {
	if _, err := s.store.GetDeal(ctx, dealID); err != nil {
		return nil, lookup("deal", err)
	}
	return s.store.ListDisbursements(ctx, dealID)
}

// PayDisbursement records the payout txid. A disbursement is paid once.
func (s *RecordsService) PayDisbursement(ctx context.Context, id uuid.UUID, txid string, actor *uuid.UUID) (*models.Disbursement, error) {
	txid = strings.TrimSpace(txid)
	if txid == "" {
		return nil, validation("paid_txid is required")
	}
	existing, err := s.store.GetDisbursement(ctx, id)
	if err != nil {
		return nil, lookup("disbursement", err)
	}

	var out models.Disbursement
	_, err = s.ledger.Mutate(ctx, existing.DealID, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		cur, err := tx.GetDisbursement(ctx, id)
		if err != nil {
			return Change{}, lookup("disbursement", err)
		}
		if cur.Status == models.DisbursementStatusPaid {
			return Change{}, invalidTransition("disbursement is already paid")
		}
		before := *cur
		now := s.now().UTC()
		cur.Status = models.DisbursementStatusPaid
		cur.PaidTxID = &txid
		cur.PaidAt = &now
		if err := tx.UpdateDisbursement(ctx, cur); err != nil {
			return Change{}, err
		}
		out = *cur
		return Change{Type: models.AuditDisbursementPaid, Actor: actor, ExternalRef: &txid, Before: before, After: out}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
