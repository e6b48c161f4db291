package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit event types
const (
	AuditDealCreated               = "deal.created"
	AuditDealUpdated               = "deal.updated"
	AuditPartyInvited              = "party.invited"
	AuditPartyUpdated              = "party.updated"
	AuditPoFRequested              = "pof.requested"
	AuditPoFAttested               = "pof.attested"
	AuditPoFVerified               = "pof.verified"
	AuditEscrowPolicyCreated       = "escrow.policy_created"
	AuditEscrowFunded              = "escrow.funded"
	AuditPSBTCreated               = "psbt.created"
	AuditPSBTSignatureRequested    = "psbt.signature_requested"
	AuditPSBTSignatureSubmitted    = "psbt.signature_submitted"
	AuditPSBTFinalized             = "psbt.finalized"
	AuditContingencyAdded          = "contingency.added"
	AuditContingencyUpdated        = "contingency.updated"
	AuditMilestoneAdded            = "milestone.added"
	AuditMilestoneUpdated          = "milestone.updated"
	AuditMilestonesDefaultsCreated = "milestones.defaults_created"
	AuditDocumentUploaded          = "document.uploaded"
	AuditDocumentUpdated           = "document.updated"
	AuditFundAdded                 = "fund.added"
	AuditFundUpdated               = "fund.updated"
	AuditDisbursementAdded         = "disbursement.added"
	AuditDisbursementPaid          = "disbursement.paid"
)

// GenesisHash is the prev_hash of the first event of every deal.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

type AuditEvent struct {
	ID           uuid.UUID       `json:"id"`
	DealID       uuid.UUID       `json:"deal_id"`
	Seq          int64           `json:"seq"`
	Type         string          `json:"type"`
	ActorPartyID *uuid.UUID      `json:"actor_party_id,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	ExternalRef  *string         `json:"txid,omitempty"`
	PrevHash     string          `json:"prev_hash"`
	Hash         string          `json:"hash"`
	CreatedAt    time.Time       `json:"created_at"`
}

// StatusChange is the before/after block carried by every event that consulted the state machine.
type StatusChange struct {
	Trigger Trigger `json:"trigger,omitempty"`
	Before  string  `json:"before"`
	After   string  `json:"after"`
	Applied bool    `json:"applied"`
}

// LedgerReplay is the result of re-reading a deal's ledger oldest-first.
type LedgerReplay struct {
	DealID           uuid.UUID `json:"deal_id"`
	Events           int       `json:"events"`
	ChainValid       bool      `json:"chain_valid"`
	BrokenAtSeq      *int64    `json:"broken_at_seq,omitempty"`
	HeadHash         string    `json:"head_hash"`
	ReplayedStatus   string    `json:"replayed_status"`
	StoredStatus     string    `json:"stored_status"`
	StatusConsistent bool      `json:"status_consistent"`
}
