package models

import (
	"time"

	"github.com/google/uuid"
)

type Party struct {
	ID               uuid.UUID `json:"id"`
	DealID           uuid.UUID `json:"deal_id"`
	Role             string    `json:"role"`
	DisplayName      string    `json:"display_name"`
	Email            string    `json:"email"`
	Phone            *string   `json:"phone,omitempty"`
	CompanyName      *string   `json:"company_name,omitempty"`
	LicenseNumber    *string   `json:"license_number,omitempty"`
	SigningAuthority bool      `json:"signing_authority"`
	WalletDescriptor *string   `json:"wallet_descriptor,omitempty"`
	PubKey           *string   `json:"pubkey,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
