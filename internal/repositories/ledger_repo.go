package repositories

import (
	"context"

	"github.com/dealroom/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const documentColumns = `id, deal_id, type, name, uploaded_by_party_id, file_url, file_hash, status, requires_signatures, created_at, seq`

const fundColumns = `id, deal_id, type, description, amount_btc::text, amount_usd::text, escrow_policy_id,
		       status, funded_txid, released_txid, created_at, seq`

const disbursementColumns = `id, deal_id, payee_name, payee_type, amount_usd::text, amount_btc::text, description,
		       btc_address, status, paid_txid, paid_at, created_at, seq`

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.DealID, &d.Type, &d.Name, &d.UploadedByPartyID, &d.FileURL, &d.FileHash,
		&d.Status, &d.RequiresSignatures, &d.CreatedAt, &d.Seq)
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func scanFund(row pgx.Row) (*models.Fund, error) {
	var (
		f   models.Fund
		usd *string
	)
	err := row.Scan(&f.ID, &f.DealID, &f.Type, &f.Description, &f.AmountBTC, &usd, &f.EscrowPolicyID,
		&f.Status, &f.FundedTxID, &f.ReleasedTxID, &f.CreatedAt, &f.Seq)
	if err != nil {
		return nil, notFound(err)
	}
	if f.AmountUSD, err = parseDecimal(usd); err != nil {
		return nil, err
	}
	return &f, nil
}

func scanDisbursement(row pgx.Row) (*models.Disbursement, error) {
	var (
		d   models.Disbursement
		usd *string
	)
	err := row.Scan(&d.ID, &d.DealID, &d.PayeeName, &d.PayeeType, &usd, &d.AmountBTC, &d.Description,
		&d.BTCAddress, &d.Status, &d.PaidTxID, &d.PaidAt, &d.CreatedAt, &d.Seq)
	if err != nil {
		return nil, notFound(err)
	}
	if d.AmountUSD, err = parseDecimal(usd); err != nil {
		return nil, err
	}
	return &d, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func execOne(tagErr error, affected int64) error {
	if tagErr != nil {
		return tagErr
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (q pgQueries) CreateDocument(ctx context.Context, d *models.Document) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO documents (id, deal_id, type, name, uploaded_by_party_id, file_url, file_hash, status, requires_signatures)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, seq
	`, d.ID, d.DealID, d.Type, d.Name, d.UploadedByPartyID, d.FileURL, d.FileHash, d.Status, d.RequiresSignatures,
	).Scan(&d.CreatedAt, &d.Seq)
}

func (q pgQueries) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return scanDocument(q.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
}

func (q pgQueries) ListDocuments(ctx context.Context, dealID uuid.UUID) ([]models.Document, error) {
	rows, err := q.db.Query(ctx, `SELECT `+documentColumns+` FROM documents WHERE deal_id = $1 ORDER BY created_at DESC, seq DESC`, dealID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDocument)
}

func (q pgQueries) UpdateDocument(ctx context.Context, d *models.Document) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE documents SET status = $2, file_url = $3, file_hash = $4 WHERE id = $1
	`, d.ID, d.Status, d.FileURL, d.FileHash)
	return execOne(err, tag.RowsAffected())
}

func (q pgQueries) CreateFund(ctx context.Context, f *models.Fund) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO funds (id, deal_id, type, description, amount_btc, amount_usd, escrow_policy_id, status)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8)
		RETURNING created_at, seq
	`, f.ID, f.DealID, f.Type, f.Description, f.AmountBTC, decimalArg(f.AmountUSD), f.EscrowPolicyID, f.Status,
	).Scan(&f.CreatedAt, &f.Seq)
}

func (q pgQueries) GetFund(ctx context.Context, id uuid.UUID) (*models.Fund, error) {
	return scanFund(q.db.QueryRow(ctx, `SELECT `+fundColumns+` FROM funds WHERE id = $1`, id))
}

func (q pgQueries) ListFunds(ctx context.Context, dealID uuid.UUID) ([]models.Fund, error) {
	rows, err := q.db.Query(ctx, `SELECT `+fundColumns+` FROM funds WHERE deal_id = $1 ORDER BY created_at, seq`, dealID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanFund)
}

func (q pgQueries) UpdateFund(ctx context.Context, f *models.Fund) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE funds SET status = $2, funded_txid = $3, released_txid = $4 WHERE id = $1
	`, f.ID, f.Status, f.FundedTxID, f.ReleasedTxID)
	return execOne(err, tag.RowsAffected())
}

func (q pgQueries) CreateDisbursement(ctx context.Context, d *models.Disbursement) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO disbursements (id, deal_id, payee_name, payee_type, amount_usd, amount_btc, description, btc_address, status)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9)
		RETURNING created_at, seq
	`, d.ID, d.DealID, d.PayeeName, d.PayeeType, decimalArg(d.AmountUSD), d.AmountBTC, d.Description, d.BTCAddress, d.Status,
	).Scan(&d.CreatedAt, &d.Seq)
}

func (q pgQueries) GetDisbursement(ctx context.Context, id uuid.UUID) (*models.Disbursement, error) {
	return scanDisbursement(q.db.QueryRow(ctx, `SELECT `+disbursementColumns+` FROM disbursements WHERE id = $1`, id))
}

func (q pgQueries) ListDisbursements(ctx context.Context, dealID uuid.UUID) ([]models.Disbursement, error) {
	rows, err := q.db.Query(ctx, `SELECT `+disbursementColumns+` FROM disbursements WHERE deal_id = $1 ORDER BY created_at, seq`, dealID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDisbursement)
}

func (q pgQueries) UpdateDisbursement(ctx context.Context, d *models.Disbursement) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE disbursements SET status = $2, paid_txid = $3, paid_at = $4 WHERE id = $1
	`, d.ID, d.Status, d.PaidTxID, d.PaidAt)
	return execOne(err, tag.RowsAffected())
}
