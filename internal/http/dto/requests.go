package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BTC and USD amounts accept either JSON numbers or decimal strings.

type CreateDealRequest struct {
	TransactionType   string           `json:"transaction_type"` // cash_purchase / financed
	PropertyAddress   string           `json:"property_address"`
	PurchasePriceUSD  *decimal.Decimal `json:"purchase_price_usd,omitempty"`
	EMDAmountBTC      *decimal.Decimal `json:"emd_amount_btc,omitempty"`
	DeadlineFunding   *time.Time       `json:"deadline_funding,omitempty"`
	DeadlineClose     *time.Time       `json:"deadline_close,omitempty"`
	StateJurisdiction *string          `json:"state_jurisdiction,omitempty"`
}

type UpdateDealRequest struct {
	Status                *string          `json:"status,omitempty"`
	PurchasePriceUSD      *decimal.Decimal `json:"purchase_price_usd,omitempty"`
	EMDAmountUSDAtFunding *decimal.Decimal `json:"emd_amount_usd_at_funding,omitempty"`
	DeadlineFunding       *time.Time       `json:"deadline_funding,omitempty"`
	DeadlineClose         *time.Time       `json:"deadline_close,omitempty"`
	StateJurisdiction     *string          `json:"state_jurisdiction,omitempty"`
}

type InvitePartyRequest struct {
	Role             string  `json:"role"`
	DisplayName      string  `json:"display_name"`
	Email            string  `json:"email"`
	Phone            *string `json:"phone,omitempty"`
	CompanyName      *string `json:"company_name,omitempty"`
	LicenseNumber    *string `json:"license_number,omitempty"`
	SigningAuthority *bool   `json:"signing_authority,omitempty"` // defaults by role
	WalletDescriptor *string `json:"wallet_descriptor,omitempty"`
	PubKey           *string `json:"pubkey,omitempty"`
}

type AttachWalletRequest struct {
	WalletDescriptor *string `json:"wallet_descriptor,omitempty"`
	PubKey           *string `json:"pubkey,omitempty"`
}

type PoFRequestRequest struct {
	RequesterName      string           `json:"requester_name"`
	RequestedAmountBTC decimal.Decimal  `json:"requested_amount_btc"`
	RequestedAmountUSD *decimal.Decimal `json:"requested_amount_usd,omitempty"`
}

type PoFAttestRequest struct {
	PartyID             uuid.UUID        `json:"party_id"`
	ProofType           string           `json:"proof_type"`
	AddressOrDescriptor string           `json:"address_or_descriptor"`
	Signature           string           `json:"signature"`
	UTXOsTotalBTC       *decimal.Decimal `json:"utxos_total_btc,omitempty"`
}

type EscrowPolicyRequest struct {
	Descriptor     *string    `json:"descriptor,omitempty"`
	Address        *string    `json:"address,omitempty"`
	RefundTimelock *time.Time `json:"refund_timelock,omitempty"`
}

type EscrowFundingRequest struct {
	TxID          string          `json:"txid"`
	AmountBTC     decimal.Decimal `json:"amount_btc"`
	Confirmations *int            `json:"confirmations,omitempty"`
	FundedAt      *time.Time      `json:"funded_at,omitempty"`
}

type CreatePSBTRequest struct {
	Type             string     `json:"type"` // funding / release / refund / closing
	PSBTBase64       string     `json:"psbt_base64"`
	CreatedByPartyID *uuid.UUID `json:"created_by_party_id,omitempty"`
}

type RequestSignatureRequest struct {
	PartyID uuid.UUID `json:"party_id"`
}

type SubmitSignatureRequest struct {
	PartyID          uuid.UUID `json:"party_id"`
	SignedPSBTBase64 string    `json:"signed_psbt_base64"`
}

type FinalizePSBTRequest struct {
	BroadcastTxID *string `json:"broadcast_txid,omitempty"`
}

type CreateContingencyRequest struct {
	Type     string     `json:"type"`
	Deadline *time.Time `json:"deadline,omitempty"`
	Notes    *string    `json:"notes,omitempty"`
}

type UpdateContingencyRequest struct {
	Status          *string    `json:"status,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	WaivedByPartyID *uuid.UUID `json:"waived_by_party_id,omitempty"`
}

type CreateMilestoneRequest struct {
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	IsRequired  *bool      `json:"is_required,omitempty"`
	OrderIndex  *int       `json:"order_index,omitempty"`
}

type UpdateMilestoneRequest struct {
	Name               *string    `json:"name,omitempty"`
	Description        *string    `json:"description,omitempty"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	Completed          *bool      `json:"completed,omitempty"`
	CompletedByPartyID *uuid.UUID `json:"completed_by_party_id,omitempty"`
}

type UploadDocumentRequest struct {
	Type               string     `json:"type"`
	Name               string     `json:"name"`
	FileURL            *string    `json:"file_url,omitempty"`
	FileHash           *string    `json:"file_hash,omitempty"`
	RequiresSignatures bool       `json:"requires_signatures"`
	UploadedByPartyID  *uuid.UUID `json:"uploaded_by_party_id,omitempty"`
}

type UpdateDocumentRequest struct {
	Status   *string `json:"status,omitempty"`
	FileURL  *string `json:"file_url,omitempty"`
	FileHash *string `json:"file_hash,omitempty"`
}

type CreateFundRequest struct {
	Type           string           `json:"type"`
	Description    *string          `json:"description,omitempty"`
	AmountBTC      *decimal.Decimal `json:"amount_btc,omitempty"`
	AmountUSD      *decimal.Decimal `json:"amount_usd,omitempty"`
	EscrowPolicyID *uuid.UUID       `json:"escrow_policy_id,omitempty"`
}

type UpdateFundRequest struct {
	Status       *string `json:"status,omitempty"`
	FundedTxID   *string `json:"funded_txid,omitempty"`
	ReleasedTxID *string `json:"released_txid,omitempty"`
}

type CreateDisbursementRequest struct {
	PayeeName   string           `json:"payee_name"`
	PayeeType   string           `json:"payee_type"`
	AmountUSD   *decimal.Decimal `json:"amount_usd,omitempty"`
	AmountBTC   *decimal.Decimal `json:"amount_btc,omitempty"`
	Description *string          `json:"description,omitempty"`
	BTCAddress  *string          `json:"btc_address,omitempty"`
}

type PayDisbursementRequest struct {
	PaidTxID string `json:"paid_txid"`
}

// DecimalString renders an optional amount the way the services expect it.
func DecimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
