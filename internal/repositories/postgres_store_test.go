package repositories

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dealroom/backend/internal/db"
	"github.com/dealroom/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newPostgresStore connects to TEST_POSTGRES_DSN and applies the migrations.
// Tests using it are skipped when the variable is unset.
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	log := zap.NewNop()

	pool, err := db.NewPostgresPool(ctx, dsn, 3, 200*time.Millisecond, log)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.RunMigrations(ctx, pool, filepath.Join("..", "..", "migrations"), log))
	return NewPostgresStore(pool)
}

func TestPostgresDealRoundTrip(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	deal := &models.Deal{
		ID:              uuid.New(),
		Status:          models.DealStatusDraft,
		TransactionType: models.TransactionFinanced,
		PropertyAddress: "77 Quay St",
		EMDAmountBTC:    strPtr("0.25"),
	}
	require.NoError(t, s.CreateDeal(ctx, deal))

	got, err := s.GetDeal(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, "77 Quay St", got.PropertyAddress)
	assert.Equal(t, models.TransactionFinanced, got.TransactionType)

	_, err = s.GetDeal(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	won, err := s.CompareAndSetDealStatus(ctx, deal.ID, models.DealStatusDraft, models.DealStatusPoFPending)
	require.NoError(t, err)
	assert.True(t, won)
	won, err = s.CompareAndSetDealStatus(ctx, deal.ID, models.DealStatusDraft, models.DealStatusPoFPending)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestPostgresAuditChainOrdering(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	deal := &models.Deal{ID: uuid.New(), Status: models.DealStatusDraft, TransactionType: models.TransactionCashPurchase, PropertyAddress: "x", EMDAmountBTC: strPtr("1")}
	require.NoError(t, s.CreateDeal(ctx, deal))

	head, err := s.LastAuditHash(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GenesisHash, head)

	prev := head
	for i, typ := range []string{models.AuditDealCreated, models.AuditDealUpdated} {
		hash := uuid.NewString()
		err := s.WithTx(ctx, func(tx Tx) error {
			if _, err := tx.LockDeal(ctx, deal.ID); err != nil {
				return err
			}
			return tx.AppendAuditEvent(ctx, &models.AuditEvent{
				ID:       uuid.New(),
				DealID:   deal.ID,
				Type:     typ,
				Payload:  json.RawMessage(`{"i":` + string(rune('0'+i)) + `}`),
				PrevHash: prev,
				Hash:     hash,
			})
		})
		require.NoError(t, err)
		prev = hash
	}

	evs, err := s.ListAuditEvents(ctx, deal.ID, true)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, models.AuditDealUpdated, evs[0].Type)
	assert.Greater(t, evs[0].Seq, evs[1].Seq)

	head, err = s.LastAuditHash(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, prev, head)
}

func TestPostgresWithTxRollsBack(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	deal := &models.Deal{ID: uuid.New(), Status: models.DealStatusDraft, TransactionType: models.TransactionCashPurchase, PropertyAddress: "x", EMDAmountBTC: strPtr("1")}
	require.NoError(t, s.CreateDeal(ctx, deal))

	err := s.WithTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.CreateParty(ctx, &models.Party{ID: uuid.New(), DealID: deal.ID, Role: "buyer", DisplayName: "B", Email: "b@example.com"}))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	parties, err := s.ListParties(ctx, deal.ID)
	require.NoError(t, err)
	assert.Empty(t, parties)
}

func TestPostgresListDealsAuditedAfter(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	deal := &models.Deal{ID: uuid.New(), Status: models.DealStatusDraft, TransactionType: models.TransactionCashPurchase, PropertyAddress: "x"}
	require.NoError(t, s.CreateDeal(ctx, deal))
	got, err := s.GetDeal(ctx, deal.ID)
	require.NoError(t, err)
	assert.Nil(t, got.EMDAmountBTC)

	since := deal.UpdatedAt
	err = s.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.LockDeal(ctx, deal.ID); err != nil {
			return err
		}
		return tx.AppendAuditEvent(ctx, &models.AuditEvent{
			ID: uuid.New(), DealID: deal.ID, Type: models.AuditDealUpdated,
			Payload: json.RawMessage(`{}`), PrevHash: models.GenesisHash, Hash: uuid.NewString(),
		})
	})
	require.NoError(t, err)

	deals, err := s.ListDeals(ctx, DealFilter{AuditedAfter: &since, Limit: 100})
	require.NoError(t, err)
	var found bool
	for _, d := range deals {
		found = found || d.ID == deal.ID
	}
	assert.True(t, found)
}
