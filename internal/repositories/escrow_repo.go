package repositories

import (
	"context"

	"github.com/dealroom/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const escrowPolicyColumns = `id, deal_id, policy_type, descriptor, refund_timelock, address, terms_hash, created_at, seq`

const escrowFundingColumns = `id, deal_id, txid, amount_btc::text, confirmations, funded_at, created_at, seq`

func scanEscrowPolicy(row pgx.Row) (*models.EscrowPolicy, error) {
	var p models.EscrowPolicy
	err := row.Scan(&p.ID, &p.DealID, &p.PolicyType, &p.Descriptor, &p.RefundTimelock, &p.Address, &p.TermsHash, &p.CreatedAt, &p.Seq)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func scanEscrowFunding(row pgx.Row) (*models.EscrowFunding, error) {
	var f models.EscrowFunding
	err := row.Scan(&f.ID, &f.DealID, &f.TxID, &f.AmountBTC, &f.Confirmations, &f.FundedAt, &f.CreatedAt, &f.Seq)
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

func (q pgQueries) CreateEscrowPolicy(ctx context.Context, p *models.EscrowPolicy) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO escrow_policies (id, deal_id, policy_type, descriptor, refund_timelock, address, terms_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, seq
	`, p.ID, p.DealID, p.PolicyType, p.Descriptor, p.RefundTimelock, p.Address, p.TermsHash,
	).Scan(&p.CreatedAt, &p.Seq)
}

func (q pgQueries) LatestEscrowPolicy(ctx context.Context, dealID uuid.UUID) (*models.EscrowPolicy, error) {
	return scanEscrowPolicy(q.db.QueryRow(ctx, `
		SELECT `+escrowPolicyColumns+` FROM escrow_policies
		WHERE deal_id = $1 ORDER BY created_at DESC, seq DESC LIMIT 1
	`, dealID))
}

func (q pgQueries) CreateEscrowFunding(ctx context.Context, f *models.EscrowFunding) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO escrow_fundings (id, deal_id, txid, amount_btc, confirmations, funded_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		RETURNING created_at, seq
	`, f.ID, f.DealID, f.TxID, f.AmountBTC, f.Confirmations, f.FundedAt,
	).Scan(&f.CreatedAt, &f.Seq)
}

func (q pgQueries) LatestEscrowFunding(ctx context.Context, dealID uuid.UUID) (*models.EscrowFunding, error) {
	return scanEscrowFunding(q.db.QueryRow(ctx, `
		SELECT `+escrowFundingColumns+` FROM escrow_fundings
		WHERE deal_id = $1 ORDER BY created_at DESC, seq DESC LIMIT 1
	`, dealID))
}
