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

type DealService struct {
	store   repositories.Store
	ledger  *AuditLedger
	machine *DealStateMachine
	log     *zap.Logger
}

func NewDealService(store repositories.Store, ledger *AuditLedger, machine *DealStateMachine, log *zap.Logger) *DealService {
	return &DealService{store: store, ledger: ledger, machine: machine, log: log}
}

type CreateDealInput struct {
	TransactionType  string
	PropertyAddress  string
	PurchasePriceUSD *decimal.Decimal
	EMDAmountBTC     *string
	DeadlineFunding  *time.Time
	DeadlineClose    *time.Time
	Jurisdiction     *string
}

func (s *DealService) Create(ctx context.Context, in CreateDealInput, actor *uuid.UUID) (*models.Deal, error) {
	if strings.TrimSpace(in.PropertyAddress) == "" {
		return nil, validation("property_address is required")
	}
	if in.TransactionType == "" {
		in.TransactionType = models.TransactionCashPurchase
	}
	if !models.IsValidTransactionType(in.TransactionType) {
		return nil, validation("invalid transaction_type %q, must be one of: cash_purchase, financed", in.TransactionType)
	}
	var emd *string
	if in.EMDAmountBTC != nil {
		v, err := parseAmount("emd_amount_btc", *in.EMDAmountBTC)
		if err != nil {
			return nil, err
		}
		emd = &v
	}
	if in.PurchasePriceUSD != nil && !in.PurchasePriceUSD.IsPositive() {
		return nil, validation("purchase_price_usd must be positive")
	}

	deal := &models.Deal{
		ID:               uuid.New(),
		Status:           models.DealStatusDraft,
		TransactionType:  in.TransactionType,
		PropertyAddress:  strings.TrimSpace(in.PropertyAddress),
		PurchasePriceUSD: in.PurchasePriceUSD,
		EMDAmountBTC:     emd,
		DeadlineFunding:  in.DeadlineFunding,
		DeadlineClose:    in.DeadlineClose,
		Jurisdiction:     in.Jurisdiction,
	}

	var ev *models.AuditEvent
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		if err := tx.CreateDeal(ctx, deal); err != nil {
			return err
		}
		var err error
		ev, err = s.ledger.Record(ctx, tx, deal.ID, Change{
			Type:   models.AuditDealCreated,
			Actor:  actor,
			Status: &models.StatusChange{After: deal.Status, Applied: true},
			After:  deal,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.ledger.publish(ctx, ev)

	s.log.Info("deal created", zap.String("deal_id", deal.ID.String()), zap.String("transaction_type", deal.TransactionType))
	return deal, nil
}

func (s *DealService) Get(ctx context.Context, id uuid.UUID) (*models.DealWithParties, error) {
	deal, err := s.store.GetDeal(ctx, id)
	if err != nil {
		return nil, lookup("deal", err)
	}
	parties, err := s.store.ListParties(ctx, id)
	if err != nil {
		return nil, err
	}
	if parties == nil {
		parties = []models.Party{}
	}
	return &models.DealWithParties{Deal: *deal, Parties: parties}, nil
}

func (s *DealService) List(ctx context.Context, f repositories.DealFilter) ([]models.Deal, error) {
	if f.Status != nil && !models.IsValidDealStatus(*f.Status) {
		return nil, validation("unknown deal status %q", *f.Status)
	}
	return s.store.ListDeals(ctx, f)
}

// OverrideDealInput carries manual corrections. Nil fields are left alone.
type OverrideDealInput struct {
	Status                *string
	PurchasePriceUSD      *decimal.Decimal
	EMDAmountUSDAtFunding *decimal.Decimal
	DeadlineFunding       *time.Time
	DeadlineClose         *time.Time
	Jurisdiction          *string
}

func (in OverrideDealInput) empty() bool {
	return in.Status == nil && in.PurchasePriceUSD == nil && in.EMDAmountUSDAtFunding == nil &&
		in.DeadlineFunding == nil && in.DeadlineClose == nil && in.Jurisdiction == nil
}

// Override edits status and deadlines without going through the trigger table.
func (s *DealService) Override(ctx context.Context, id uuid.UUID, in OverrideDealInput, actor *uuid.UUID) (*models.Deal, error) {
	if in.empty() {
		return nil, validation("nothing to update")
	}

	var out models.Deal
	_, err := s.ledger.Mutate(ctx, id, func(tx repositories.Tx, deal *models.Deal) (Change, error) {
		before := *deal

		var change *models.StatusChange
		if in.Status != nil {
			c, err := s.machine.Override(ctx, tx, deal, *in.Status)
			if err != nil {
				return Change{}, err
			}
			change = c
		}
		if in.PurchasePriceUSD != nil {
			deal.PurchasePriceUSD = in.PurchasePriceUSD
		}
		if in.EMDAmountUSDAtFunding != nil {
			deal.EMDAmountUSDAtFunding = in.EMDAmountUSDAtFunding
		}
		if in.DeadlineFunding != nil {
			deal.DeadlineFunding = in.DeadlineFunding
		}
		if in.DeadlineClose != nil {
			deal.DeadlineClose = in.DeadlineClose
		}
		if in.Jurisdiction != nil {
			deal.Jurisdiction = in.Jurisdiction
		}
		if err := tx.UpdateDeal(ctx, deal); err != nil {
			return Change{}, err
		}

		out = *deal
		return Change{
			Type:   models.AuditDealUpdated,
			Actor:  actor,
			Status: change,
			Before: before,
			After:  out,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// parseAmount validates a positive decimal string and returns its normal form.
func parseAmount(field, raw string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "", validation("%s must be a decimal number", field)
	}
	if !d.IsPositive() {
		return "", validation("%s must be positive", field)
	}
	return d.String(), nil
}
