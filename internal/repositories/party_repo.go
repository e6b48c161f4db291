package repositories

import (
	"context"

	"github.com/dealroom/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const partyColumns = `id, deal_id, role, display_name, email, phone, company_name, license_number,
		       signing_authority, wallet_descriptor, pubkey, created_at`

func scanParty(row pgx.Row) (*models.Party, error) {
	var p models.Party
	err := row.Scan(&p.ID, &p.DealID, &p.Role, &p.DisplayName, &p.Email, &p.Phone, &p.CompanyName, &p.LicenseNumber,
		&p.SigningAuthority, &p.WalletDescriptor, &p.PubKey, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (q pgQueries) CreateParty(ctx context.Context, p *models.Party) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO parties (id, deal_id, role, display_name, email, phone, company_name, license_number,
		                     signing_authority, wallet_descriptor, pubkey)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`, p.ID, p.DealID, p.Role, p.DisplayName, p.Email, p.Phone, p.CompanyName, p.LicenseNumber,
		p.SigningAuthority, p.WalletDescriptor, p.PubKey,
	).Scan(&p.CreatedAt)
}

func (q pgQueries) GetParty(ctx context.Context, id uuid.UUID) (*models.Party, error) {
	return scanParty(q.db.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE id = $1`, id))
}

func (q pgQueries) ListParties(ctx context.Context, dealID uuid.UUID) ([]models.Party, error) {
	rows, err := q.db.Query(ctx, `SELECT `+partyColumns+` FROM parties WHERE deal_id = $1 ORDER BY created_at, id`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parties []models.Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		parties = append(parties, *p)
	}
	return parties, rows.Err()
}

func (q pgQueries) UpdatePartyWallet(ctx context.Context, p *models.Party) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE parties SET wallet_descriptor = $2, pubkey = $3 WHERE id = $1
	`, p.ID, p.WalletDescriptor, p.PubKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
