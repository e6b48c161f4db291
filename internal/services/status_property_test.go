package services

import (
	"context"
	"testing"

	"github.com/dealroom/backend/internal/models"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var statusRank = map[string]int{
	models.DealStatusDraft:         0,
	models.DealStatusPoFPending:    1,
	models.DealStatusPoFVerified:   2,
	models.DealStatusEscrowCreated: 3,
	models.DealStatusFunded:        4,
	models.DealStatusClosing:       5,
	models.DealStatusClosed:        6,
	models.DealStatusCancelled:     6,
}

// step runs one workflow operation against the deal. Errors are part of the
// explored space and ignored; only the resulting status matters.
func (e *testEnv) step(ctx context.Context, i, op int, dealID, party uuid.UUID) {
	switch op {
	case 0:
		_, _ = e.pof.RequestProof(ctx, dealID, RequestProofInput{RequesterName: "Alice", RequestedAmountBTC: "1"}, nil)
	case 1:
		_, _ = e.pof.Attest(ctx, dealID, AttestInput{PartyID: party, ProofType: "bip322", AddressOrDescriptor: "bc1q", Signature: "s"})
	case 2:
		_, _ = e.pof.Verify(ctx, dealID, nil)
	case 3:
		_, _ = e.escrow.CreatePolicy(ctx, dealID, CreatePolicyInput{}, nil)
	case 4:
		_, _ = e.escrow.RecordFunding(ctx, dealID, RecordFundingInput{TxID: "tx", AmountBTC: "1"}, nil)
	case 5:
		_, _ = e.signing.CreateSession(ctx, dealID, CreateSessionInput{Type: models.PSBTTypeRelease, PSBTBase64: "AA=="}, nil)
	case 6, 7:
		typ := models.PSBTTypeClosing
		if op == 7 {
			typ = models.PSBTTypeRefund
		}
		s, err := e.signing.CreateSession(ctx, dealID, CreateSessionInput{Type: typ, PSBTBase64: "AA=="}, nil)
		if err == nil {
			_, _ = e.signing.Finalize(ctx, s.ID, nil, nil)
		}
	case 8:
		_, _ = e.contingencies.Add(ctx, dealID, AddContingencyInput{Type: "inspection"}, nil)
	case 9:
		to := []string{models.DealStatusDraft, models.DealStatusFunded, models.DealStatusCancelled}[i%3]
		_, _ = e.deals.Override(ctx, dealID, OverrideDealInput{Status: &to}, nil)
	}
}

func TestStatusNeverRegresses(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	properties.Property("deal status is monotonic and matches the ledger", prop.ForAll(
		func(ops []int) bool {
			env := newTestEnv(t)
			ctx := context.Background()
			deal, err := env.deals.Create(ctx, CreateDealInput{PropertyAddress: "1 Main St", EMDAmountBTC: ptr("1")}, nil)
			if err != nil {
				return false
			}
			buyer, err := env.parties.Invite(ctx, deal.ID, InvitePartyInput{Role: "buyer", DisplayName: "B", Email: "b@example.com"}, nil)
			if err != nil {
				return false
			}

			prev := models.DealStatusDraft
			for i, op := range ops {
				env.step(ctx, i, op, deal.ID, buyer.ID)
				cur, err := env.store.GetDeal(ctx, deal.ID)
				if err != nil {
					return false
				}
				if statusRank[cur.Status] < statusRank[prev] {
					return false
				}
				if models.IsTerminalDealStatus(prev) && cur.Status != prev {
					return false
				}
				prev = cur.Status
			}

			r, err := env.ledger.Replay(ctx, deal.ID)
			return err == nil && r.ChainValid && r.StatusConsistent
		},
		gen.SliceOf(gen.IntRange(0, 9)),
	))

	properties.TestingRun(t)
}
