package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		current  string
		trigger  Trigger
		expected string
		applied  bool
	}{
		// Happy path
		{DealStatusDraft, TriggerPoFRequested, DealStatusPoFPending, true},
		{DealStatusPoFPending, TriggerPoFVerified, DealStatusPoFVerified, true},
		{DealStatusPoFVerified, TriggerEscrowPolicyCreated, DealStatusEscrowCreated, true},
		{DealStatusEscrowCreated, TriggerEscrowFunded, DealStatusFunded, true},
		{DealStatusFunded, TriggerSettlementOpened, DealStatusClosing, true},
		{DealStatusClosing, TriggerSettlementFinalized, DealStatusClosed, true},
		{DealStatusClosing, TriggerRefundFinalized, DealStatusCancelled, true},

		// Guard failures leave status untouched
		{DealStatusDraft, TriggerPoFVerified, DealStatusDraft, false},
		{DealStatusPoFPending, TriggerPoFRequested, DealStatusPoFPending, false},
		{DealStatusFunded, TriggerEscrowFunded, DealStatusFunded, false},
		{DealStatusPoFVerified, TriggerSettlementOpened, DealStatusPoFVerified, false},
		{DealStatusFunded, TriggerSettlementFinalized, DealStatusFunded, false},
		{DealStatusClosed, TriggerRefundFinalized, DealStatusClosed, false},
		{DealStatusCancelled, TriggerSettlementFinalized, DealStatusCancelled, false},
		{DealStatusDraft, Trigger("nonexistent"), DealStatusDraft, false},
	}

	for _, tt := range tests {
		t.Run(tt.current+"/"+string(tt.trigger), func(t *testing.T) {
			got, applied := NextStatus(tt.current, tt.trigger)
			if got != tt.expected || applied != tt.applied {
				t.Errorf("NextStatus(%q, %q) = (%q, %v), want (%q, %v)", tt.current, tt.trigger, got, applied, tt.expected, tt.applied)
			}
		})
	}
}

func TestTransitionsNeverRegress(t *testing.T) {
	for trigger, tr := range DealTransitions {
		if !IsForwardMove(tr.From, tr.To) {
			t.Errorf("trigger %q moves %q -> %q backwards", trigger, tr.From, tr.To)
		}
	}
}

func TestIsForwardMove(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{DealStatusDraft, DealStatusPoFPending, true},
		{DealStatusDraft, DealStatusFunded, true},
		{DealStatusFunded, DealStatusFunded, true},
		{DealStatusFunded, DealStatusCancelled, true},
		{DealStatusDraft, DealStatusCancelled, true},
		{DealStatusFunded, DealStatusPoFPending, false},
		{DealStatusClosed, DealStatusCancelled, false},
		{DealStatusCancelled, DealStatusClosed, false},
		{DealStatusCancelled, DealStatusDraft, false},
		{DealStatusDraft, "nonexistent", false},
		{"nonexistent", DealStatusDraft, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			if got := IsForwardMove(tt.from, tt.to); got != tt.expected {
				t.Errorf("IsForwardMove(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestSessionTriggers(t *testing.T) {
	for _, typ := range []string{PSBTTypeRelease, PSBTTypeClosing} {
		if trig, ok := SessionCreatedTrigger(typ); !ok || trig != TriggerSettlementOpened {
			t.Errorf("SessionCreatedTrigger(%q) = (%q, %v)", typ, trig, ok)
		}
	}
	for _, typ := range []string{PSBTTypeFunding, PSBTTypeRefund, "custom"} {
		if _, ok := SessionCreatedTrigger(typ); ok {
			t.Errorf("SessionCreatedTrigger(%q) should not fire", typ)
		}
	}

	if got := SessionFinalizedTrigger(PSBTTypeRefund); got != TriggerRefundFinalized {
		t.Errorf("refund finalize fired %q", got)
	}
	for _, typ := range []string{PSBTTypeClosing, PSBTTypeRelease, PSBTTypeFunding, "custom"} {
		if got := SessionFinalizedTrigger(typ); got != TriggerSettlementFinalized {
			t.Errorf("SessionFinalizedTrigger(%q) = %q", typ, got)
		}
	}
}

func TestMilestonesFor(t *testing.T) {
	dealID := uuid.New()

	cash := MilestonesFor(dealID, TransactionCashPurchase)
	if len(cash) != len(DefaultMilestones)-2 {
		t.Fatalf("cash purchase got %d milestones, want %d", len(cash), len(DefaultMilestones)-2)
	}
	for _, m := range cash {
		if m.Name == "Appraisal Received" || m.Name == "Loan Approved" {
			t.Errorf("cash purchase should not include %q", m.Name)
		}
		if m.Name == "Appraisal Ordered" && m.IsRequired {
			t.Errorf("appraisal should be optional for cash purchases")
		}
	}

	financed := MilestonesFor(dealID, TransactionFinanced)
	if len(financed) != 13 {
		t.Fatalf("financed got %d milestones, want 13", len(financed))
	}
	for i, m := range financed {
		if !m.IsRequired {
			t.Errorf("financed milestone %q should be required", m.Name)
		}
		if m.OrderIndex != i+1 {
			t.Errorf("milestone %q has order %d, want %d", m.Name, m.OrderIndex, i+1)
		}
	}
}

func TestForwardOnlyAuxStatuses(t *testing.T) {
	if !IsForwardDocumentStatus(DocumentStatusDraft, DocumentStatusSigned) {
		t.Error("draft -> signed should be allowed")
	}
	if IsForwardDocumentStatus(DocumentStatusSigned, DocumentStatusActive) {
		t.Error("signed -> active should be rejected")
	}
	if !IsForwardFundStatus(FundStatusFunded, FundStatusFunded) {
		t.Error("same status should be allowed")
	}
	if IsForwardFundStatus(FundStatusReleased, FundStatusPending) {
		t.Error("released -> pending should be rejected")
	}
	if IsForwardFundStatus(FundStatusPending, "bogus") {
		t.Error("unknown status should be rejected")
	}
}
