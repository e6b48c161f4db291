package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealroom/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("not found")

// Store is the durable storage collaborator. Reads may run outside a
// transaction; every mutation runs inside WithTx so the entity write and its
// audit row commit together.
type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx groups every table-level operation the services need.
type Tx interface {
	DealRepository
	PartyRepository
	PoFRepository
	EscrowRepository
	PSBTRepository
	ChecklistRepository
	LedgerRepository
	AuditRepository
}

type DealRepository interface {
	CreateDeal(ctx context.Context, d *models.Deal) error
	GetDeal(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	// LockDeal reads the deal and holds a row lock until the transaction ends.
	LockDeal(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	ListDeals(ctx context.Context, f DealFilter) ([]models.Deal, error)
	// CompareAndSetDealStatus moves status from -> to and reports whether this caller won.
	CompareAndSetDealStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	UpdateDeal(ctx context.Context, d *models.Deal) error
}

type PartyRepository interface {
	CreateParty(ctx context.Context, p *models.Party) error
	GetParty(ctx context.Context, id uuid.UUID) (*models.Party, error)
	ListParties(ctx context.Context, dealID uuid.UUID) ([]models.Party, error)
	UpdatePartyWallet(ctx context.Context, p *models.Party) error
}

type PoFRepository interface {
	CreatePoFRequest(ctx context.Context, r *models.PoFRequest) error
	LatestPoFRequest(ctx context.Context, dealID uuid.UUID) (*models.PoFRequest, error)
	CreatePoFAttestation(ctx context.Context, a *models.PoFAttestation) error
	LatestPoFAttestation(ctx context.Context, dealID uuid.UUID) (*models.PoFAttestation, error)
	// MarkAttestationVerified flips verified once; an existing verified_at is kept.
	MarkAttestationVerified(ctx context.Context, id uuid.UUID, at time.Time) (*models.PoFAttestation, error)
}

type EscrowRepository interface {
	CreateEscrowPolicy(ctx context.Context, p *models.EscrowPolicy) error
	LatestEscrowPolicy(ctx context.Context, dealID uuid.UUID) (*models.EscrowPolicy, error)
	CreateEscrowFunding(ctx context.Context, f *models.EscrowFunding) error
	LatestEscrowFunding(ctx context.Context, dealID uuid.UUID) (*models.EscrowFunding, error)
}

type PSBTRepository interface {
	CreatePSBTSession(ctx context.Context, s *models.PSBTSession) error
	GetPSBTSession(ctx context.Context, id uuid.UUID) (*models.PSBTSession, error)
	ListPSBTSessions(ctx context.Context, dealID uuid.UUID) ([]models.PSBTSession, error)
	UpdatePSBTSession(ctx context.Context, s *models.PSBTSession) error
	CreatePSBTSignature(ctx context.Context, sig *models.PSBTSignature) error
	// LatestPSBTSignature returns the newest request record for (session, party).
	LatestPSBTSignature(ctx context.Context, sessionID, partyID uuid.UUID) (*models.PSBTSignature, error)
	ListPSBTSignatures(ctx context.Context, sessionID uuid.UUID) ([]models.PSBTSignature, error)
	UpdatePSBTSignature(ctx context.Context, sig *models.PSBTSignature) error
}

type ChecklistRepository interface {
	CreateContingency(ctx context.Context, c *models.Contingency) error
	GetContingency(ctx context.Context, id uuid.UUID) (*models.Contingency, error)
	ListContingencies(ctx context.Context, dealID uuid.UUID) ([]models.Contingency, error)
	ListOverdueContingencies(ctx context.Context, now time.Time) ([]models.Contingency, error)
	UpdateContingency(ctx context.Context, c *models.Contingency) error
	CreateMilestone(ctx context.Context, m *models.Milestone) error
	GetMilestone(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	ListMilestones(ctx context.Context, dealID uuid.UUID) ([]models.Milestone, error)
	UpdateMilestone(ctx context.Context, m *models.Milestone) error
}

type LedgerRepository interface {
	CreateDocument(ctx context.Context, d *models.Document) error
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListDocuments(ctx context.Context, dealID uuid.UUID) ([]models.Document, error)
	UpdateDocument(ctx context.Context, d *models.Document) error
	CreateFund(ctx context.Context, f *models.Fund) error
	GetFund(ctx context.Context, id uuid.UUID) (*models.Fund, error)
	ListFunds(ctx context.Context, dealID uuid.UUID) ([]models.Fund, error)
	UpdateFund(ctx context.Context, f *models.Fund) error
	CreateDisbursement(ctx context.Context, d *models.Disbursement) error
	GetDisbursement(ctx context.Context, id uuid.UUID) (*models.Disbursement, error)
	ListDisbursements(ctx context.Context, dealID uuid.UUID) ([]models.Disbursement, error)
	UpdateDisbursement(ctx context.Context, d *models.Disbursement) error
}

type AuditRepository interface {
	AppendAuditEvent(ctx context.Context, e *models.AuditEvent) error
	// LastAuditHash returns the head of the deal's chain, or models.GenesisHash.
	LastAuditHash(ctx context.Context, dealID uuid.UUID) (string, error)
	ListAuditEvents(ctx context.Context, dealID uuid.UUID, newestFirst bool) ([]models.AuditEvent, error)
}

type DealFilter struct {
	Status         *string
	UpdatedAfter   *time.Time
	AuditedAfter   *time.Time // at least one audit event recorded after this instant
	FundingOverdue *time.Time // deadline_funding before this instant, not yet funded
	Limit          int
	Offset         int
}

func (f DealFilter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > 100 {
		return 20
	}
	return f.Limit
}

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgQueries implements Tx against either the pool or an open transaction.
type pgQueries struct {
	db dbtx
}

type PostgresStore struct {
	pgQueries
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pgQueries: pgQueries{db: pool}, pool: pool}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(pgQueries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("parse numeric %q: %w", *s, err)
	}
	return &d, nil
}
