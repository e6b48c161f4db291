package repositories

import (
	"context"

	"github.com/dealroom/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const psbtSessionColumns = `id, deal_id, type, psbt_base64, psbt_hash, status, created_by_party_id, broadcast_txid, created_at, seq`

const psbtSignatureColumns = `id, psbt_session_id, party_id, status, signed_psbt_base64, signed_at, created_at, seq`

func scanPSBTSession(row pgx.Row) (*models.PSBTSession, error) {
	var s models.PSBTSession
	err := row.Scan(&s.ID, &s.DealID, &s.Type, &s.PSBTBase64, &s.PSBTHash, &s.Status, &s.CreatedByPartyID, &s.BroadcastTxID, &s.CreatedAt, &s.Seq)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func scanPSBTSignature(row pgx.Row) (*models.PSBTSignature, error) {
	var sig models.PSBTSignature
	err := row.Scan(&sig.ID, &sig.SessionID, &sig.PartyID, &sig.Status, &sig.SignedPSBTBase64, &sig.SignedAt, &sig.CreatedAt, &sig.Seq)
	if err != nil {
		return nil, notFound(err)
	}
	return &sig, nil
}

func (q pgQueries) CreatePSBTSession(ctx context.Context, s *models.PSBTSession) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO psbt_sessions (id, deal_id, type, psbt_base64, psbt_hash, status, created_by_party_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, seq
	`, s.ID, s.DealID, s.Type, s.PSBTBase64, s.PSBTHash, s.Status, s.CreatedByPartyID,
	).Scan(&s.CreatedAt, &s.Seq)
}

func (q pgQueries) GetPSBTSession(ctx context.Context, id uuid.UUID) (*models.PSBTSession, error) {
	return scanPSBTSession(q.db.QueryRow(ctx, `SELECT `+psbtSessionColumns+` FROM psbt_sessions WHERE id = $1`, id))
}

func (q pgQueries) ListPSBTSessions(ctx context.Context, dealID uuid.UUID) ([]models.PSBTSession, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+psbtSessionColumns+` FROM psbt_sessions
		WHERE deal_id = $1 ORDER BY created_at DESC, seq DESC
	`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.PSBTSession
	for rows.Next() {
		s, err := scanPSBTSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (q pgQueries) UpdatePSBTSession(ctx context.Context, s *models.PSBTSession) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE psbt_sessions SET status = $2, broadcast_txid = $3 WHERE id = $1
	`, s.ID, s.Status, s.BroadcastTxID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q pgQueries) CreatePSBTSignature(ctx context.Context, sig *models.PSBTSignature) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO psbt_signatures (id, psbt_session_id, party_id, status, signed_psbt_base64, signed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, seq
	`, sig.ID, sig.SessionID, sig.PartyID, sig.Status, sig.SignedPSBTBase64, sig.SignedAt,
	).Scan(&sig.CreatedAt, &sig.Seq)
}

func (q pgQueries) LatestPSBTSignature(ctx context.Context, sessionID, partyID uuid.UUID) (*models.PSBTSignature, error) {
	return scanPSBTSignature(q.db.QueryRow(ctx, `
		SELECT `+psbtSignatureColumns+` FROM psbt_signatures
		WHERE psbt_session_id = $1 AND party_id = $2
		ORDER BY created_at DESC, seq DESC LIMIT 1
	`, sessionID, partyID))
}

func (q pgQueries) ListPSBTSignatures(ctx context.Context, sessionID uuid.UUID) ([]models.PSBTSignature, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+psbtSignatureColumns+` FROM psbt_signatures
		WHERE psbt_session_id = $1 ORDER BY created_at, seq
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sigs []models.PSBTSignature
	for rows.Next() {
		sig, err := scanPSBTSignature(rows)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, *sig)
	}
	return sigs, rows.Err()
}

func (q pgQueries) UpdatePSBTSignature(ctx context.Context, sig *models.PSBTSignature) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE psbt_signatures SET status = $2, signed_psbt_base64 = $3, signed_at = $4 WHERE id = $1
	`, sig.ID, sig.Status, sig.SignedPSBTBase64, sig.SignedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
