package repositories

import (
	"context"
	"time"

	"github.com/dealroom/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const pofRequestColumns = `id, deal_id, challenge, requester_name, requested_amount_btc::text,
		       requested_amount_usd::text, issued_at, created_at, seq`

const pofAttestationColumns = `id, deal_id, party_id, proof_type, address_or_descriptor, signature,
		       utxos_total_btc::text, verified, verified_at, created_at, seq`

func scanPoFRequest(row pgx.Row) (*models.PoFRequest, error) {
	var (
		r   models.PoFRequest
		usd *string
	)
	err := row.Scan(&r.ID, &r.DealID, &r.Challenge, &r.RequesterName, &r.RequestedAmountBTC,
		&usd, &r.IssuedAt, &r.CreatedAt, &r.Seq)
	if err != nil {
		return nil, notFound(err)
	}
	if r.RequestedAmountUSD, err = parseDecimal(usd); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanPoFAttestation(row pgx.Row) (*models.PoFAttestation, error) {
	var a models.PoFAttestation
	err := row.Scan(&a.ID, &a.DealID, &a.PartyID, &a.ProofType, &a.AddressOrDescriptor, &a.Signature,
		&a.UTXOsTotalBTC, &a.Verified, &a.VerifiedAt, &a.CreatedAt, &a.Seq)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (q pgQueries) CreatePoFRequest(ctx context.Context, r *models.PoFRequest) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO pof_requests (id, deal_id, challenge, requester_name, requested_amount_btc, requested_amount_usd, issued_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7)
		RETURNING created_at, seq
	`, r.ID, r.DealID, r.Challenge, r.RequesterName, r.RequestedAmountBTC, decimalArg(r.RequestedAmountUSD), r.IssuedAt,
	).Scan(&r.CreatedAt, &r.Seq)
}

func (q pgQueries) LatestPoFRequest(ctx context.Context, dealID uuid.UUID) (*models.PoFRequest, error) {
	return scanPoFRequest(q.db.QueryRow(ctx, `
		SELECT `+pofRequestColumns+` FROM pof_requests
		WHERE deal_id = $1 ORDER BY created_at DESC, seq DESC LIMIT 1
	`, dealID))
}

func (q pgQueries) CreatePoFAttestation(ctx context.Context, a *models.PoFAttestation) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO pof_attestations (id, deal_id, party_id, proof_type, address_or_descriptor, signature, utxos_total_btc, verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, false)
		RETURNING created_at, seq
	`, a.ID, a.DealID, a.PartyID, a.ProofType, a.AddressOrDescriptor, a.Signature, a.UTXOsTotalBTC,
	).Scan(&a.CreatedAt, &a.Seq)
}

func (q pgQueries) LatestPoFAttestation(ctx context.Context, dealID uuid.UUID) (*models.PoFAttestation, error) {
	return scanPoFAttestation(q.db.QueryRow(ctx, `
		SELECT `+pofAttestationColumns+` FROM pof_attestations
		WHERE deal_id = $1 ORDER BY created_at DESC, seq DESC LIMIT 1
	`, dealID))
}

func (q pgQueries) MarkAttestationVerified(ctx context.Context, id uuid.UUID, at time.Time) (*models.PoFAttestation, error) {
	return scanPoFAttestation(q.db.QueryRow(ctx, `
		UPDATE pof_attestations SET verified = true, verified_at = COALESCE(verified_at, $2)
		WHERE id = $1
		RETURNING `+pofAttestationColumns, id, at))
}
