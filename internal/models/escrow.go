package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EscrowPolicyWSH2of3Timelock = "wsh_2of3_timelock"

	DefaultEscrowDescriptor = "wsh(multi(2,[buyer],[seller],[title]))"
	DefaultEscrowAddress    = "bc1qexampleescrowaddress"
)

type EscrowPolicy struct {
	ID             uuid.UUID  `json:"id"`
	DealID         uuid.UUID  `json:"deal_id"`
	PolicyType     string     `json:"policy_type"`
	Descriptor     string     `json:"descriptor"`
	RefundTimelock *time.Time `json:"refund_timelock,omitempty"`
	Address        string     `json:"address"`
	TermsHash      string     `json:"terms_hash"`
	CreatedAt      time.Time  `json:"created_at"`
	Seq            int64      `json:"seq"`
}

type EscrowFunding struct {
	ID            uuid.UUID `json:"id"`
	DealID        uuid.UUID `json:"deal_id"`
	TxID          string    `json:"txid"`
	AmountBTC     string    `json:"amount_btc"`
	Confirmations int       `json:"confirmations"`
	FundedAt      time.Time `json:"funded_at"`
	CreatedAt     time.Time `json:"created_at"`
	Seq           int64     `json:"seq"`
}

// EscrowReceipt joins the latest funding with the latest policy.
type EscrowReceipt struct {
	DealID        uuid.UUID  `json:"deal_id"`
	FundingID     uuid.UUID  `json:"funding_id"`
	PolicyID      *uuid.UUID `json:"policy_id,omitempty"`
	TxID          string     `json:"txid"`
	AmountBTC     string     `json:"amount_btc"`
	Address       *string    `json:"address"`
	Confirmations int        `json:"confirmations"`
	FundedAt      time.Time  `json:"funded_at"`
	GeneratedAt   time.Time  `json:"generated_at"`
}
