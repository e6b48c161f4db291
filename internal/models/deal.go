package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Deal statuses
const (
	DealStatusDraft         = "draft"
	DealStatusPoFPending    = "pof_pending"
	DealStatusPoFVerified   = "pof_verified"
	DealStatusEscrowCreated = "escrow_created"
	DealStatusFunded        = "funded"
	DealStatusClosing       = "closing"
	DealStatusClosed        = "closed"
	DealStatusCancelled     = "cancelled"
)

// Transaction types
const (
	TransactionCashPurchase = "cash_purchase"
	TransactionFinanced     = "financed"
)

// dealStatusOrder is the forward order of the lifecycle. Cancelled sits outside it.
var dealStatusOrder = map[string]int{
	DealStatusDraft:         0,
	DealStatusPoFPending:    1,
	DealStatusPoFVerified:   2,
	DealStatusEscrowCreated: 3,
	DealStatusFunded:        4,
	DealStatusClosing:       5,
	DealStatusClosed:        6,
}

// Trigger is a sub-workflow event that may advance the deal status.
type Trigger string

const (
	TriggerPoFRequested        Trigger = "pof.requested"
	TriggerPoFVerified         Trigger = "pof.verified"
	TriggerEscrowPolicyCreated Trigger = "escrow.policy_created"
	TriggerEscrowFunded        Trigger = "escrow.funded"
	TriggerSettlementOpened    Trigger = "psbt.settlement_opened"
	TriggerRefundFinalized     Trigger = "psbt.refund_finalized"
	TriggerSettlementFinalized Trigger = "psbt.settlement_finalized"
)

// DealTransition is the guarded edge fired by a trigger.
type DealTransition struct {
	From string
	To   string
}

// DealTransitions is the full transition table. Adding a trigger is one entry here.
var DealTransitions = map[Trigger]DealTransition{
	TriggerPoFRequested:        {From: DealStatusDraft, To: DealStatusPoFPending},
	TriggerPoFVerified:         {From: DealStatusPoFPending, To: DealStatusPoFVerified},
	TriggerEscrowPolicyCreated: {From: DealStatusPoFVerified, To: DealStatusEscrowCreated},
	TriggerEscrowFunded:        {From: DealStatusEscrowCreated, To: DealStatusFunded},
	TriggerSettlementOpened:    {From: DealStatusFunded, To: DealStatusClosing},
	TriggerRefundFinalized:     {From: DealStatusClosing, To: DealStatusCancelled},
	TriggerSettlementFinalized: {From: DealStatusClosing, To: DealStatusClosed},
}

// NextStatus returns the status a trigger moves current to, and false when the guard fails.
func NextStatus(current string, trigger Trigger) (string, bool) {
	t, ok := DealTransitions[trigger]
	if !ok || t.From != current {
		return current, false
	}
	return t.To, true
}

func IsValidDealStatus(status string) bool {
	if status == DealStatusCancelled {
		return true
	}
	_, ok := dealStatusOrder[status]
	return ok
}

func IsTerminalDealStatus(status string) bool {
	return status == DealStatusClosed || status == DealStatusCancelled
}

// IsForwardMove reports whether moving from -> to keeps the status monotonic:
// forward along the order, unchanged, or sideways into cancelled from a non-terminal status.
func IsForwardMove(from, to string) bool {
	if from == to {
		return IsValidDealStatus(to)
	}
	if IsTerminalDealStatus(from) {
		return false
	}
	if to == DealStatusCancelled {
		return IsValidDealStatus(from)
	}
	fi, ok := dealStatusOrder[from]
	if !ok {
		return false
	}
	ti, ok := dealStatusOrder[to]
	if !ok {
		return false
	}
	return ti > fi
}

func IsValidTransactionType(t string) bool {
	return t == TransactionCashPurchase || t == TransactionFinanced
}

type Deal struct {
	ID                    uuid.UUID        `json:"id"`
	Status                string           `json:"status"`
	TransactionType       string           `json:"transaction_type"`
	PropertyAddress       string           `json:"property_address"`
	PurchasePriceUSD      *decimal.Decimal `json:"purchase_price_usd,omitempty"`
	EMDAmountBTC          *string          `json:"emd_amount_btc,omitempty"`
	EMDAmountUSDAtFunding *decimal.Decimal `json:"emd_amount_usd_at_funding,omitempty"`
	DeadlineFunding       *time.Time       `json:"deadline_funding,omitempty"`
	DeadlineClose         *time.Time       `json:"deadline_close,omitempty"`
	Jurisdiction          *string          `json:"state_jurisdiction,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// DealWithParties embeds Deal and adds its participants.
type DealWithParties struct {
	Deal
	Parties []Party `json:"parties"`
}
