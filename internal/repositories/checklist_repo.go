package repositories

import (
	"context"
	"time"

	"github.com/dealroom/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const contingencyColumns = `id, deal_id, type, status, deadline, satisfied_at, waived_at, waived_by_party_id, notes, created_at, seq`

const milestoneColumns = `id, deal_id, name, description, due_date, completed_at, completed_by_party_id,
		       is_required, order_index, created_at, seq`

func scanContingency(row pgx.Row) (*models.Contingency, error) {
	var c models.Contingency
	err := row.Scan(&c.ID, &c.DealID, &c.Type, &c.Status, &c.Deadline, &c.SatisfiedAt, &c.WaivedAt,
		&c.WaivedByPartyID, &c.Notes, &c.CreatedAt, &c.Seq)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func scanMilestone(row pgx.Row) (*models.Milestone, error) {
	var m models.Milestone
	err := row.Scan(&m.ID, &m.DealID, &m.Name, &m.Description, &m.DueDate, &m.CompletedAt, &m.CompletedByPartyID,
		&m.IsRequired, &m.OrderIndex, &m.CreatedAt, &m.Seq)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (q pgQueries) CreateContingency(ctx context.Context, c *models.Contingency) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO contingencies (id, deal_id, type, status, deadline, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, seq
	`, c.ID, c.DealID, c.Type, c.Status, c.Deadline, c.Notes,
	).Scan(&c.CreatedAt, &c.Seq)
}

func (q pgQueries) GetContingency(ctx context.Context, id uuid.UUID) (*models.Contingency, error) {
	return scanContingency(q.db.QueryRow(ctx, `SELECT `+contingencyColumns+` FROM contingencies WHERE id = $1`, id))
}

func (q pgQueries) ListContingencies(ctx context.Context, dealID uuid.UUID) ([]models.Contingency, error) {
	return q.queryContingencies(ctx, `
		SELECT `+contingencyColumns+` FROM contingencies
		WHERE deal_id = $1 ORDER BY deadline ASC NULLS LAST, seq
	`, dealID)
}

func (q pgQueries) ListOverdueContingencies(ctx context.Context, now time.Time) ([]models.Contingency, error) {
	return q.queryContingencies(ctx, `
		SELECT `+contingencyColumns+` FROM contingencies
		WHERE status = $1 AND deadline IS NOT NULL AND deadline < $2
		ORDER BY deadline ASC, seq
	`, models.ContingencyStatusPending, now)
}

func (q pgQueries) queryContingencies(ctx context.Context, sql string, args ...any) ([]models.Contingency, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Contingency
	for rows.Next() {
		c, err := scanContingency(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (q pgQueries) UpdateContingency(ctx context.Context, c *models.Contingency) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE contingencies
		SET status = $2, deadline = $3, satisfied_at = $4, waived_at = $5, waived_by_party_id = $6, notes = $7
		WHERE id = $1
	`, c.ID, c.Status, c.Deadline, c.SatisfiedAt, c.WaivedAt, c.WaivedByPartyID, c.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q pgQueries) CreateMilestone(ctx context.Context, m *models.Milestone) error {
	return q.db.QueryRow(ctx, `
		INSERT INTO milestones (id, deal_id, name, description, due_date, is_required, order_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, seq
	`, m.ID, m.DealID, m.Name, m.Description, m.DueDate, m.IsRequired, m.OrderIndex,
	).Scan(&m.CreatedAt, &m.Seq)
}

func (q pgQueries) GetMilestone(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	return scanMilestone(q.db.QueryRow(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id = $1`, id))
}

func (q pgQueries) ListMilestones(ctx context.Context, dealID uuid.UUID) ([]models.Milestone, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+milestoneColumns+` FROM milestones
		WHERE deal_id = $1 ORDER BY order_index, seq
	`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (q pgQueries) UpdateMilestone(ctx context.Context, m *models.Milestone) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE milestones
		SET name = $2, description = $3, due_date = $4, completed_at = $5, completed_by_party_id = $6
		WHERE id = $1
	`, m.ID, m.Name, m.Description, m.DueDate, m.CompletedAt, m.CompletedByPartyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
