package models

import (
	"time"

	"github.com/google/uuid"
)

// PSBT session types. The set is open; only these four carry lifecycle meaning.
const (
	PSBTTypeFunding = "funding"
	PSBTTypeRelease = "release"
	PSBTTypeRefund  = "refund"
	PSBTTypeClosing = "closing"
)

// PSBT session statuses
const (
	PSBTStatusDraft     = "draft"
	PSBTStatusSigning   = "signing"
	PSBTStatusFinalized = "finalized"
)

// PSBT signature statuses
const (
	SignatureStatusRequested = "requested"
	SignatureStatusSigned    = "signed"
)

const DefaultBroadcastTxID = "txid_placeholder"

// SessionCreatedTrigger maps a new session's type to the trigger it fires, if any.
func SessionCreatedTrigger(sessionType string) (Trigger, bool) {
	switch sessionType {
	case PSBTTypeRelease, PSBTTypeClosing:
		return TriggerSettlementOpened, true
	}
	return "", false
}

// SessionFinalizedTrigger maps a finalized session's type to the trigger it fires.
func SessionFinalizedTrigger(sessionType string) Trigger {
	if sessionType == PSBTTypeRefund {
		return TriggerRefundFinalized
	}
	return TriggerSettlementFinalized
}

type PSBTSession struct {
	ID               uuid.UUID  `json:"id"`
	DealID           uuid.UUID  `json:"deal_id"`
	Type             string     `json:"type"`
	PSBTBase64       string     `json:"psbt_base64"`
	PSBTHash         string     `json:"psbt_hash"`
	Status           string     `json:"status"`
	CreatedByPartyID *uuid.UUID `json:"created_by_party_id,omitempty"`
	BroadcastTxID    *string    `json:"broadcast_txid,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	Seq              int64      `json:"seq"`
}

type PSBTSignature struct {
	ID               uuid.UUID  `json:"id"`
	SessionID        uuid.UUID  `json:"psbt_session_id"`
	PartyID          uuid.UUID  `json:"party_id"`
	Status           string     `json:"status"`
	SignedPSBTBase64 *string    `json:"signed_psbt_base64,omitempty"`
	SignedAt         *time.Time `json:"signed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	Seq              int64      `json:"seq"`
}

type PSBTSessionWithSignatures struct {
	PSBTSession
	Signatures []PSBTSignature `json:"signatures"`
}
