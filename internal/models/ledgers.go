package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Document statuses
const (
	DocumentStatusDraft  = "draft"
	DocumentStatusActive = "active"
	DocumentStatusSigned = "signed"
)

// Fund statuses
const (
	FundStatusPending  = "pending"
	FundStatusFunded   = "funded"
	FundStatusReleased = "released"
)

// Disbursement statuses
const (
	DisbursementStatusPending = "pending"
	DisbursementStatusPaid    = "paid"
)

var (
	documentStatusOrder = []string{DocumentStatusDraft, DocumentStatusActive, DocumentStatusSigned}
	fundStatusOrder     = []string{FundStatusPending, FundStatusFunded, FundStatusReleased}
)

// IsForwardDocumentStatus reports whether from -> to never moves backwards.
func IsForwardDocumentStatus(from, to string) bool {
	return isForwardIn(documentStatusOrder, from, to)
}

// IsForwardFundStatus reports whether from -> to never moves backwards.
func IsForwardFundStatus(from, to string) bool {
	return isForwardIn(fundStatusOrder, from, to)
}

func isForwardIn(order []string, from, to string) bool {
	fi, ti := -1, -1
	for i, s := range order {
		if s == from {
			fi = i
		}
		if s == to {
			ti = i
		}
	}
	return fi >= 0 && ti >= fi
}

type Document struct {
	ID                 uuid.UUID  `json:"id"`
	DealID             uuid.UUID  `json:"deal_id"`
	Type               string     `json:"type"`
	Name               string     `json:"name"`
	UploadedByPartyID  *uuid.UUID `json:"uploaded_by_party_id,omitempty"`
	FileURL            *string    `json:"file_url,omitempty"`
	FileHash           *string    `json:"file_hash,omitempty"`
	Status             string     `json:"status"`
	RequiresSignatures bool       `json:"requires_signatures"`
	CreatedAt          time.Time  `json:"created_at"`
	Seq                int64      `json:"seq"`
}

type Fund struct {
	ID             uuid.UUID        `json:"id"`
	DealID         uuid.UUID        `json:"deal_id"`
	Type           string           `json:"type"`
	Description    *string          `json:"description,omitempty"`
	AmountBTC      *string          `json:"amount_btc,omitempty"`
	AmountUSD      *decimal.Decimal `json:"amount_usd,omitempty"`
	EscrowPolicyID *uuid.UUID       `json:"escrow_policy_id,omitempty"`
	Status         string           `json:"status"`
	FundedTxID     *string          `json:"funded_txid,omitempty"`
	ReleasedTxID   *string          `json:"released_txid,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	Seq            int64            `json:"seq"`
}

type Disbursement struct {
	ID          uuid.UUID        `json:"id"`
	DealID      uuid.UUID        `json:"deal_id"`
	PayeeName   string           `json:"payee_name"`
	PayeeType   string           `json:"payee_type"`
	AmountUSD   *decimal.Decimal `json:"amount_usd,omitempty"`
	AmountBTC   *string          `json:"amount_btc,omitempty"`
	Description *string          `json:"description,omitempty"`
	BTCAddress  *string          `json:"btc_address,omitempty"`
	Status      string           `json:"status"`
	PaidTxID    *string          `json:"paid_txid,omitempty"`
	PaidAt      *time.Time       `json:"paid_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	Seq         int64            `json:"seq"`
}
