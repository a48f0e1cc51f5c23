package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

type DisputeRepositoryAdapter struct {
	db *sqlx.DB
}

func NewDisputeRepositoryAdapter(db *sqlx.DB) *DisputeRepositoryAdapter {
	return &DisputeRepositoryAdapter{db: db}
}

const disputeColumns = `id, deal_id, milestone_index, raised_by, raised_by_role, category, priority,
	reason, evidence, status, resolution, created_at, updated_at`

func (r *DisputeRepositoryAdapter) Create(ctx context.Context, d *entity.Dispute) error {
	query := `
		INSERT INTO disputes (` + disputeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	row := disputeRowFrom(d)
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		row.ID, row.DealID, row.MilestoneIndex, row.RaisedBy, row.RaisedByRole, row.Category,
		row.Priority, row.Reason, row.Evidence, row.Status, row.Resolution, row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "disputes_one_open_per_deal") {
			return apperror.ErrDealLocked
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать спор")
	}
	return nil
}

func (r *DisputeRepositoryAdapter) Update(ctx context.Context, d *entity.Dispute) error {
	query := `UPDATE disputes SET status = $2, resolution = $3, updated_at = $4 WHERE id = $1`
	row := disputeRowFrom(d)
	res, err := conn(ctx, r.db).ExecContext(ctx, query, row.ID, row.Status, row.Resolution, row.UpdatedAt)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить спор")
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return apperror.ErrDisputeNotFound
	}
	return nil
}

func (r *DisputeRepositoryAdapter) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	var row disputeRow
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`
	if err := conn(ctx, r.db).GetContext(ctx, &row, query, id); err != nil {
		if notFound(err) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить спор")
	}
	return row.toEntity(), nil
}

func (r *DisputeRepositoryAdapter) FindByDealID(ctx context.Context, dealID uuid.UUID) ([]*entity.Dispute, error) {
	return r.list(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE deal_id = $1 ORDER BY created_at DESC`, dealID)
}

func (r *DisputeRepositoryAdapter) FindByParticipant(ctx context.Context, userID uuid.UUID) ([]*entity.Dispute, error) {
	query := `
		SELECT ` + prefixed("d", disputeColumns) + `
		FROM disputes d
		JOIN deals ON deals.id = d.deal_id
		WHERE deals.buyer_id = $1 OR deals.seller_id = $1
		ORDER BY d.created_at DESC
	`
	return r.list(ctx, query, userID)
}

func (r *DisputeRepositoryAdapter) ListOpen(ctx context.Context) ([]*entity.Dispute, error) {
	return r.list(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE status = $1 ORDER BY created_at`, string(valueobject.DisputeStatusOpen))
}

func (r *DisputeRepositoryAdapter) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Dispute, error) {
	var rows []disputeRow
	if err := conn(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить споры")
	}
	result := make([]*entity.Dispute, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toEntity())
	}
	return result, nil
}

type disputeRow struct {
	ID             uuid.UUID                     `db:"id"`
	DealID         uuid.UUID                     `db:"deal_id"`
	MilestoneIndex *int                          `db:"milestone_index"`
	RaisedBy       uuid.UUID                     `db:"raised_by"`
	RaisedByRole   string                        `db:"raised_by_role"`
	Category       string                        `db:"category"`
	Priority       string                        `db:"priority"`
	Reason         string                        `db:"reason"`
	Evidence       jsonColumn[[]string]          `db:"evidence"`
	Status         string                        `db:"status"`
	Resolution     jsonColumn[entity.Resolution] `db:"resolution"`
	CreatedAt      time.Time                     `db:"created_at"`
	UpdatedAt      time.Time                     `db:"updated_at"`
}

func disputeRowFrom(d *entity.Dispute) disputeRow {
	evidence := d.Evidence
	if evidence == nil {
		evidence = []string{}
	}
	row := disputeRow{
		ID:             d.ID,
		DealID:         d.DealID,
		MilestoneIndex: d.MilestoneIndex,
		RaisedBy:       d.RaisedBy,
		RaisedByRole:   string(d.RaisedByRole),
		Category:       string(d.Category),
		Priority:       string(d.Priority),
		Reason:         d.Reason,
		Evidence:       jsonOf(evidence),
		Status:         string(d.Status),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.Resolution != nil {
		row.Resolution = jsonOf(*d.Resolution)
	}
	return row
}

func (r *disputeRow) toEntity() *entity.Dispute {
	d := &entity.Dispute{
		ID:             r.ID,
		DealID:         r.DealID,
		MilestoneIndex: r.MilestoneIndex,
		RaisedBy:       r.RaisedBy,
		RaisedByRole:   valueobject.PartyRole(r.RaisedByRole),
		Category:       valueobject.DisputeCategory(r.Category),
		Priority:       valueobject.DisputePriority(r.Priority),
		Reason:         r.Reason,
		Evidence:       r.Evidence.V,
		Status:         valueobject.DisputeStatus(r.Status),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.Resolution.Valid {
		res := r.Resolution.V
		d.Resolution = &res
	}
	return d
}
