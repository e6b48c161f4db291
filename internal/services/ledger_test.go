package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dealroom/backend/internal/models"
	"github.com/dealroom/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneEventPerMutation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deal := env.createDeal(t, models.TransactionCashPurchase)
	buyer := env.invite(t, deal.ID, "buyer")

	var (
		seeded  []models.Milestone
		session *models.PSBTSession
	)
	steps := []struct {
		name string
		run  func() error
	}{
		{"contingency", func() error {
			_, err := env.contingencies.Add(ctx, deal.ID, AddContingencyInput{Type: "inspection"}, nil)
			return err
		}},
		{"document", func() error {
			_, err := env.records.UploadDocument(ctx, deal.ID, UploadDocumentInput{Type: "contract", Name: "PSA.pdf"}, &buyer.ID)
			return err
		}},
		{"wallet", func() error {
			_, err := env.parties.AttachWallet(ctx, buyer.ID, ptr("wpkh(xpub)"), nil, nil)
			return err
		}},
		{"override", func() error {
			_, err := env.deals.Override(ctx, deal.ID, OverrideDealInput{Jurisdiction: ptr("TX")}, nil)
			return err
		}},
		{"seed milestones", func() error {
			var err error
			seeded, err = env.milestones.SeedDefaults(ctx, deal.ID, nil)
			return err
		}},
		{"complete milestone", func() error {
			_, err := env.milestones.Update(ctx, seeded[0].ID, UpdateMilestoneInput{Completed: ptr(true)}, nil)
			return err
		}},
		{"request proof", func() error {
			_, err := env.pof.RequestProof(ctx, deal.ID, RequestProofInput{RequesterName: "Alice", RequestedAmountBTC: "1"}, nil)
			return err
		}},
		{"attest", func() error {
			_, err := env.pof.Attest(ctx, deal.ID, AttestInput{PartyID: buyer.ID, ProofType: "bip322", AddressOrDescriptor: "bc1qbuyer", Signature: "sig"})
			return err
		}},
		{"verify", func() error {
			_, err := env.pof.Verify(ctx, deal.ID, nil)
			return err
		}},
		{"escrow policy", func() error {
			_, err := env.escrow.CreatePolicy(ctx, deal.ID, CreatePolicyInput{}, nil)
			return err
		}},
		{"funding", func() error {
			_, err := env.escrow.RecordFunding(ctx, deal.ID, RecordFundingInput{TxID: "fundtx", AmountBTC: "0.25"}, nil)
			return err
		}},
		{"signing session", func() error {
			var err error
			session, err = env.signing.CreateSession(ctx, deal.ID, CreateSessionInput{Type: models.PSBTTypeClosing, PSBTBase64: "cHNidP8BAA=="}, nil)
			return err
		}},
		{"request signature", func() error {
			_, err := env.signing.RequestSignature(ctx, session.ID, buyer.ID, nil)
			return err
		}},
		{"submit signature", func() error {
			_, err := env.signing.SubmitSignature(ctx, session.ID, buyer.ID, "signed")
			return err
		}},
		{"finalize", func() error {
			_, err := env.signing.Finalize(ctx, session.ID, ptr("closetx"), nil)
			return err
		}},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			before := env.auditCount(t, deal.ID)
			require.NoError(t, step.run())
			assert.Equal(t, before+1, env.auditCount(t, deal.ID))
		})
	}
	assert.Equal(t, models.DealStatusClosed, env.status(t, deal.ID))
}

func TestFailedMutationLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deal := env.createDeal(t, models.TransactionCashPurchase)
	before := env.auditCount(t, deal.ID)

	_, err := env.records.UploadDocument(ctx, deal.ID, UploadDocumentInput{Type: "contract", Name: "x", UploadedByPartyID: ptr(uuid.New())}, nil)
	require.True(t, IsNotFound(err))

	docs, err := env.records.ListDocuments(ctx, deal.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, before, env.auditCount(t, deal.ID))
}

func TestAuditPayloadCarriesBeforeAndAfter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deal := env.createDeal(t, models.TransactionCashPurchase)

	price := decimal.RequireFromString("525000")
	_, err := env.deals.Override(ctx, deal.ID, OverrideDealInput{PurchasePriceUSD: &price}, nil)
	require.NoError(t, err)

	history, err := env.ledger.History(ctx, deal.ID)
	require.NoError(t, err)
	require.Equal(t, models.AuditDealUpdated, history[0].Type)

	var p struct {
		Before models.Deal `json:"before"`
		After  models.Deal `json:"after"`
	}
	require.NoError(t, json.Unmarshal(history[0].Payload, &p))
	assert.Nil(t, p.Before.PurchasePriceUSD)
	require.NotNil(t, p.After.PurchasePriceUSD)
	assert.True(t, price.Equal(*p.After.PurchasePriceUSD))
	assert.Equal(t, history[1].Hash, history[0].PrevHash)
	assert.Equal(t, models.GenesisHash, history[1].PrevHash)
}

func TestReplayDetectsTampering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deal := env.createDeal(t, models.TransactionCashPurchase)
	_, err := env.pof.RequestProof(ctx, deal.ID, RequestProofInput{RequesterName: "Alice", RequestedAmountBTC: "1"}, nil)
	require.NoError(t, err)
	env.invite(t, deal.ID, "seller")

	r, err := env.ledger.Replay(ctx, deal.ID)
	require.NoError(t, err)
	require.True(t, r.ChainValid)
	assert.Equal(t, 3, r.Events)
	assert.Equal(t, models.DealStatusPoFPending, r.ReplayedStatus)

	evs, err := env.store.ListAuditEvents(ctx, deal.ID, false)
	require.NoError(t, err)
	forged := []byte(`{"deal_status":{"after":"closed","applied":true,"before":"draft"}}`)
	require.True(t, env.store.TamperAuditEvent(evs[1].ID, forged))

	r, err = env.ledger.Replay(ctx, deal.ID)
	require.NoError(t, err)
	assert.False(t, r.ChainValid)
	require.NotNil(t, r.BrokenAtSeq)
	assert.Equal(t, evs[1].Seq, *r.BrokenAtSeq)
	assert.False(t, r.StatusConsistent)

	bad, err := env.watcher.VerifyChains(ctx, deal.CreatedAt.Add(-1))
	require.NoError(t, err)
	require.Len(t, bad, 1)
	assert.Equal(t, deal.ID, bad[0].DealID)
}

func TestOverrideRules(t *testing.T) {
	tests := []struct {
		name   string
		from   string
		to     string
		errIs  error
		result string
	}{
		{"forward jump", models.DealStatusDraft, models.DealStatusFunded, nil, models.DealStatusFunded},
		{"same status", models.DealStatusDraft, models.DealStatusDraft, nil, models.DealStatusDraft},
		{"cancel open deal", models.DealStatusPoFPending, models.DealStatusCancelled, nil, models.DealStatusCancelled},
		{"regress", models.DealStatusFunded, models.DealStatusDraft, ErrInvalidTransition, models.DealStatusFunded},
		{"leave closed", models.DealStatusClosed, models.DealStatusCancelled, ErrInvalidTransition, models.DealStatusClosed},
		{"leave cancelled", models.DealStatusCancelled, models.DealStatusClosing, ErrInvalidTransition, models.DealStatusCancelled},
		{"unknown status", models.DealStatusDraft, "escrowed", ErrValidation, models.DealStatusDraft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			deal := env.createDeal(t, models.TransactionCashPurchase)
			if tt.from != models.DealStatusDraft {
				require.NoError(t, forceStatus(env, deal.ID, tt.from))
			}
			before := env.auditCount(t, deal.ID)

			err := forceStatus(env, deal.ID, tt.to)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
				assert.Equal(t, before, env.auditCount(t, deal.ID))
			} else {
				require.NoError(t, err)
				assert.Equal(t, before+1, env.auditCount(t, deal.ID))
			}
			assert.Equal(t, tt.result, env.status(t, deal.ID))
		})
	}
}

func TestDealValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateDealInput
	}{
		{"missing address", CreateDealInput{EMDAmountBTC: ptr("1")}},
		{"bad transaction type", CreateDealInput{PropertyAddress: "a", TransactionType: "lease", EMDAmountBTC: ptr("1")}},
		{"zero emd", CreateDealInput{PropertyAddress: "a", EMDAmountBTC: ptr("0")}},
		{"non numeric emd", CreateDealInput{PropertyAddress: "a", EMDAmountBTC: ptr("lots")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.deals.Create(ctx, tt.in, nil)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	_, err := env.deals.Get(ctx, uuid.New())
	assert.True(t, IsNotFound(err))
	_, err = env.deals.List(ctx, repositories.DealFilter{Status: ptr("nope")})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateDealWithoutEMD(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	price := decimal.NewFromInt(500000)

	deal, err := env.deals.Create(ctx, CreateDealInput{PropertyAddress: "12 Main St", PurchasePriceUSD: &price}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.DealStatusDraft, deal.Status)
	assert.Equal(t, models.TransactionCashPurchase, deal.TransactionType)
	assert.Nil(t, deal.EMDAmountBTC)

	got, err := env.deals.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Nil(t, got.EMDAmountBTC)
	require.NotNil(t, got.PurchasePriceUSD)
	assert.True(t, got.PurchasePriceUSD.Equal(price))

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "emd_amount_btc")
}

func TestDealListNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.createDeal(t, models.TransactionCashPurchase)
	second := env.createDeal(t, models.TransactionFinanced)
	require.NoError(t, forceStatus(env, second.ID, models.DealStatusPoFPending))

	all, err := env.deals.List(ctx, repositories.DealFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)

	drafts, err := env.deals.List(ctx, repositories.DealFilter{Status: ptr(models.DealStatusDraft)})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, first.ID, drafts[0].ID)

	got, err := env.deals.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Parties)
	assert.Empty(t, got.Parties)
}
