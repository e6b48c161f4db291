package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/dealroom/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const dealColumns = `id, status, transaction_type, property_address, purchase_price_usd::text,
		       emd_amount_btc::text, emd_amount_usd_at_funding::text, deadline_funding, deadline_close,
		       state_jurisdiction, created_at, updated_at`

func scanDeal(row pgx.Row) (*models.Deal, error) {
	var (
		d             models.Deal
		price, emdUSD *string
	)
	err := row.Scan(&d.ID, &d.Status, &d.TransactionType, &d.PropertyAddress, &price,
		&d.EMDAmountBTC, &emdUSD, &d.DeadlineFunding, &d.DeadlineClose,
		&d.Jurisdiction, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if d.PurchasePriceUSD, err = parseDecimal(price); err != nil {
		return nil, err
	}
	if d.EMDAmountUSDAtFunding, err = parseDecimal(emdUSD); err != nil {
		return nil, err
	}
	return &d, nil
}

func (q pgQueries) CreateDeal(ctx context.Context, d *models.Deal) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO deals (id, status, transaction_type, property_address, purchase_price_usd,
		                   emd_amount_btc, emd_amount_usd_at_funding, deadline_funding, deadline_close, state_jurisdiction)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10)
		RETURNING created_at, updated_at
	`, d.ID, d.Status, d.TransactionType, d.PropertyAddress, decimalArg(d.PurchasePriceUSD),
		d.EMDAmountBTC, decimalArg(d.EMDAmountUSDAtFunding), d.DeadlineFunding, d.DeadlineClose, d.Jurisdiction,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (q pgQueries) GetDeal(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	return scanDeal(q.db.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id))
}

func (q pgQueries) LockDeal(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	return scanDeal(q.db.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1 FOR UPDATE`, id))
}

func (q pgQueries) ListDeals(ctx context.Context, f DealFilter) ([]models.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}
	if f.UpdatedAfter != nil {
		where = append(where, fmt.Sprintf("updated_at > $%d", argIdx))
		args = append(args, *f.UpdatedAfter)
		argIdx++
	}
	if f.AuditedAfter != nil {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM audit_events a WHERE a.deal_id = deals.id AND a.created_at > $%d)", argIdx))
		args = append(args, *f.AuditedAfter)
		argIdx++
	}
	if f.FundingOverdue != nil {
		where = append(where, fmt.Sprintf("deadline_funding < $%d", argIdx))
		where = append(where, fmt.Sprintf("status IN ('%s', '%s', '%s', '%s')",
			models.DealStatusDraft, models.DealStatusPoFPending, models.DealStatusPoFVerified, models.DealStatusEscrowCreated))
		args = append(args, *f.FundingOverdue)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, f.EffectiveLimit(), f.Offset)

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, *d)
	}
	return deals, rows.Err()
}

func (q pgQueries) CompareAndSetDealStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE deals SET status = $3, updated_at = clock_timestamp()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (q pgQueries) UpdateDeal(ctx context.Context, d *models.Deal) error {
	err := q.db.QueryRow(ctx, `
		UPDATE deals SET status = $2, purchase_price_usd = $3::numeric, emd_amount_btc = $4::numeric,
		       emd_amount_usd_at_funding = $5::numeric, deadline_funding = $6, deadline_close = $7,
		       state_jurisdiction = $8, updated_at = clock_timestamp()
		WHERE id = $1
		RETURNING updated_at
	`, d.ID, d.Status, decimalArg(d.PurchasePriceUSD), d.EMDAmountBTC, decimalArg(d.EMDAmountUSDAtFunding),
		d.DeadlineFunding, d.DeadlineClose, d.Jurisdiction,
	).Scan(&d.UpdatedAt)
	return notFound(err)
}

