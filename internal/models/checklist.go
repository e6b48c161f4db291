package models

import (
	"time"

	"github.com/google/uuid"
)

// Contingency statuses
const (
	ContingencyStatusPending   = "pending"
	ContingencyStatusSatisfied = "satisfied"
	ContingencyStatusWaived    = "waived"
	ContingencyStatusFailed    = "failed"
)

func IsValidContingencyStatus(s string) bool {
	switch s {
	case ContingencyStatusPending, ContingencyStatusSatisfied, ContingencyStatusWaived, ContingencyStatusFailed:
		return true
	}
	return false
}

type Contingency struct {
	ID              uuid.UUID  `json:"id"`
	DealID          uuid.UUID  `json:"deal_id"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	SatisfiedAt     *time.Time `json:"satisfied_at,omitempty"`
	WaivedAt        *time.Time `json:"waived_at,omitempty"`
	WaivedByPartyID *uuid.UUID `json:"waived_by_party_id,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	Seq             int64      `json:"seq"`
}

type Milestone struct {
	ID                 uuid.UUID  `json:"id"`
	DealID             uuid.UUID  `json:"deal_id"`
	Name               string     `json:"name"`
	Description        *string    `json:"description,omitempty"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CompletedByPartyID *uuid.UUID `json:"completed_by_party_id,omitempty"`
	IsRequired         bool       `json:"is_required"`
	OrderIndex         int        `json:"order_index"`
	CreatedAt          time.Time  `json:"created_at"`
	Seq                int64      `json:"seq"`
}

// MilestoneTemplate is one entry of the default closing checklist.
type MilestoneTemplate struct {
	Name       string
	OrderIndex int
	// FinancingOnly entries are skipped for cash purchases.
	FinancingOnly bool
	// RequiredWhenFinanced entries are optional for cash purchases.
	RequiredWhenFinanced bool
}

var DefaultMilestones = []MilestoneTemplate{
	{Name: "Contract Executed", OrderIndex: 1},
	{Name: "EMD Deposited", OrderIndex: 2},
	{Name: "Inspection Completed", OrderIndex: 3},
	{Name: "Inspection Contingency Resolved", OrderIndex: 4},
	{Name: "Appraisal Ordered", OrderIndex: 5, RequiredWhenFinanced: true},
	{Name: "Appraisal Received", OrderIndex: 6, FinancingOnly: true},
	{Name: "Loan Approved", OrderIndex: 7, FinancingOnly: true},
	{Name: "Title Commitment Received", OrderIndex: 8},
	{Name: "Title Cleared", OrderIndex: 9},
	{Name: "Closing Disclosure Sent", OrderIndex: 10},
	{Name: "Final Walkthrough", OrderIndex: 11},
	{Name: "Closing/Funding", OrderIndex: 12},
	{Name: "Recording Complete", OrderIndex: 13},
}

// MilestonesFor expands the default checklist for a transaction type.
func MilestonesFor(dealID uuid.UUID, transactionType string) []Milestone {
	financed := transactionType == TransactionFinanced
	out := make([]Milestone, 0, len(DefaultMilestones))
	for _, t := range DefaultMilestones {
		if t.FinancingOnly && !financed {
			continue
		}
		required := true
		if t.RequiredWhenFinanced {
			required = financed
		}
		out = append(out, Milestone{
			DealID:     dealID,
			Name:       t.Name,
			IsRequired: required,
			OrderIndex: t.OrderIndex,
		})
	}
	return out
}
