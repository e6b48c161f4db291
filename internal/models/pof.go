package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PoFRequest struct {
	ID                 uuid.UUID        `json:"id"`
	DealID             uuid.UUID        `json:"deal_id"`
	Challenge          string           `json:"challenge"`
	RequesterName      string           `json:"requester_name"`
	RequestedAmountBTC string           `json:"requested_amount_btc"`
	RequestedAmountUSD *decimal.Decimal `json:"requested_amount_usd,omitempty"`
	IssuedAt           time.Time        `json:"issued_at"`
	CreatedAt          time.Time        `json:"created_at"`
	Seq                int64            `json:"seq"`
}

type PoFAttestation struct {
	ID                  uuid.UUID  `json:"id"`
	DealID              uuid.UUID  `json:"deal_id"`
	PartyID             *uuid.UUID `json:"party_id,omitempty"`
	ProofType           string     `json:"proof_type"`
	AddressOrDescriptor string     `json:"address_or_descriptor"`
	Signature           string     `json:"signature"`
	UTXOsTotalBTC       *string    `json:"utxos_total_btc,omitempty"`
	Verified            bool       `json:"verified"`
	VerifiedAt          *time.Time `json:"verified_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	Seq                 int64      `json:"seq"`
}

// PoFPacket is the read-only bundle handed to the counterparty.
type PoFPacket struct {
	DealID                  uuid.UUID       `json:"deal_id"`
	PropertyAddress         string          `json:"property_address"`
	Request                 *PoFRequest     `json:"request"`
	Attestation             *PoFAttestation `json:"attestation"`
	VerificationFingerprint string          `json:"verification_fingerprint"`
	GeneratedAt             time.Time       `json:"generated_at"`
}
