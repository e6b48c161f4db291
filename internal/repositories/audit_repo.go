package repositories

import (
	"context"
	"errors"

	"github.com/dealroom/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const auditColumns = `id, deal_id, seq, type, actor_party_id, payload, external_ref, prev_hash, hash, created_at`

func scanAuditEvent(row pgx.Row) (*models.AuditEvent, error) {
	var e models.AuditEvent
	err := row.Scan(&e.ID, &e.DealID, &e.Seq, &e.Type, &e.ActorPartyID, &e.Payload, &e.ExternalRef, &e.PrevHash, &e.Hash, &e.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (q pgQueries) AppendAuditEvent(ctx context.Context, e *models.AuditEvent) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO audit_events (id, deal_id, type, actor_party_id, payload, external_ref, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq, created_at
	`, e.ID, e.DealID, e.Type, e.ActorPartyID, []byte(e.Payload), e.ExternalRef, e.PrevHash, e.Hash,
	).Scan(&e.Seq, &e.CreatedAt)
}

func (q pgQueries) LastAuditHash(ctx context.Context, dealID uuid.UUID) (string, error) {
	var hash string
	err := q.db.QueryRow(ctx, `
		SELECT hash FROM audit_events WHERE deal_id = $1 ORDER BY seq DESC LIMIT 1
	`, dealID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.GenesisHash, nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

func (q pgQueries) ListAuditEvents(ctx context.Context, dealID uuid.UUID, newestFirst bool) ([]models.AuditEvent, error) {
	// Writers hold the deal row lock, so seq is commit order within a deal.
	order := "seq ASC"
	if newestFirst {
		order = "seq DESC"
	}
	rows, err := q.db.Query(ctx, `SELECT `+auditColumns+` FROM audit_events WHERE deal_id = $1 ORDER BY `+order, dealID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAuditEvent)
}
