package services

import (
	"context"
	"sync"
	"testing"

	"github.com/dealroom/backend/internal/events"
	"github.com/dealroom/backend/internal/models"
	"github.com/dealroom/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, stream string, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[string][]events.Event)
	}
	p.events[stream] = append(p.events[stream], e)
	return nil
}

func (p *recordingPublisher) ofType(stream, typ string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events[stream] {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	store     *repositories.MemoryStore
	published *recordingPublisher
	ledger    *AuditLedger

	deals         *DealService
	parties       *PartyService
	pof           *PoFService
	escrow        *EscrowService
	signing       *SigningService
	contingencies *ContingencyService
	milestones    *MilestoneService
	records       *RecordsService
	watcher       *Watcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	store := repositories.NewMemoryStore()
	pub := &recordingPublisher{}
	ledger := NewAuditLedger(store, pub, log)
	machine := NewDealStateMachine(log)
	return &testEnv{
		store:         store,
		published:     pub,
		ledger:        ledger,
		deals:         NewDealService(store, ledger, machine, log),
		parties:       NewPartyService(store, ledger, log),
		pof:           NewPoFService(store, ledger, machine, log),
		escrow:        NewEscrowService(store, ledger, machine, log),
		signing:       NewSigningService(store, ledger, machine, log),
		contingencies: NewContingencyService(store, ledger, log),
		milestones:    NewMilestoneService(store, ledger, log),
		records:       NewRecordsService(store, ledger, log),
		watcher:       NewWatcher(store, ledger, pub, log),
	}
}

func (e *testEnv) createDeal(t *testing.T, txType string) *models.Deal {
	t.Helper()
	deal, err := e.deals.Create(context.Background(), CreateDealInput{
		TransactionType: txType,
		PropertyAddress: "742 Evergreen Terrace, Springfield",
		EMDAmountBTC:    ptr("0.25"),
	}, nil)
	require.NoError(t, err)
	return deal
}

func (e *testEnv) invite(t *testing.T, dealID uuid.UUID, role string) *models.Party {
	t.Helper()
	p, err := e.parties.Invite(context.Background(), dealID, InvitePartyInput{
		Role:        role,
		DisplayName: role + " party",
		Email:       role + "@example.com",
	}, nil)
	require.NoError(t, err)
	return p
}

func (e *testEnv) status(t *testing.T, dealID uuid.UUID) string {
	t.Helper()
	d, err := e.store.GetDeal(context.Background(), dealID)
	require.NoError(t, err)
	return d.Status
}

func (e *testEnv) auditCount(t *testing.T, dealID uuid.UUID) int {
	t.Helper()
	evs, err := e.store.ListAuditEvents(context.Background(), dealID, false)
	require.NoError(t, err)
	return len(evs)
}

// advanceToFunded walks a fresh deal through proof of funds and escrow.
func (e *testEnv) advanceToFunded(t *testing.T, dealID uuid.UUID, buyer uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	_, err := e.pof.RequestProof(ctx, dealID, RequestProofInput{RequesterName: "Alice", RequestedAmountBTC: "1.5"}, nil)
	require.NoError(t, err)
	_, err = e.pof.Attest(ctx, dealID, AttestInput{
		PartyID:             buyer,
		ProofType:           "bip322",
		AddressOrDescriptor: "bc1qbuyer",
		Signature:           "sig-1",
	})
	require.NoError(t, err)
	_, err = e.pof.Verify(ctx, dealID, nil)
	require.NoError(t, err)
	_, err = e.escrow.CreatePolicy(ctx, dealID, CreatePolicyInput{}, nil)
	require.NoError(t, err)
	_, err = e.escrow.RecordFunding(ctx, dealID, RecordFundingInput{TxID: "fundtx", AmountBTC: "0.25"}, nil)
	require.NoError(t, err)
	require.Equal(t, models.DealStatusFunded, e.status(t, dealID))
}

func ptr[T any](v T) *T { return &v }
