package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/repository"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

type DealRepositoryAdapter struct {
	db *sqlx.DB
}

func NewDealRepositoryAdapter(db *sqlx.DB) *DealRepositoryAdapter {
	return &DealRepositoryAdapter{db: db}
}

const dealColumns = `id, proposal_id, title, description, buyer_id, seller_id, buyer_email, seller_email,
	total_amount, escrow_fee, buyer_fee_share, seller_fee_share, fee_split, held_amount, status,
	open_dispute_id, created_at, updated_at`

const milestoneColumns = `deal_id, idx, title, description, amount, due_date, status, submission, revision,
	countdown_active, countdown_started_at, countdown_expires_at, countdown_cancelled_at,
	funded_at, completed_at, approved_by`

func (r *DealRepositoryAdapter) Create(ctx context.Context, deal *entity.Deal) error {
	return WithTransaction(ctx, r.db, func(ctx context.Context) error {
		exec := conn(ctx, r.db)
		query := `
			INSERT INTO deals (` + dealColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		`
		_, err := exec.ExecContext(ctx, query,
			deal.ID, deal.ProposalID, deal.Title, deal.Description, deal.BuyerID, deal.SellerID,
			deal.BuyerEmail, deal.SellerEmail, deal.TotalAmount, deal.EscrowFee, deal.BuyerFeeShare,
			deal.SellerFeeShare, int(deal.FeeSplit), deal.HeldAmount, string(deal.Status),
			deal.OpenDisputeID, deal.CreatedAt, deal.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err, "deals_proposal_id_key") {
				return apperror.Wrap(err, apperror.ErrCodeConflict, "сделка по этому предложению уже создана")
			}
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать сделку")
		}

		batch := NewBatchInserter(exec, `INSERT INTO milestones (`+milestoneColumns+`)`, 16, 50)
		for _, m := range deal.Milestones {
			row := milestoneRowFrom(deal.ID, m)
			if err := batch.Add(ctx, row.args()...); err != nil {
				return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать этапы сделки")
			}
		}
		if err := batch.Flush(ctx); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать этапы сделки")
		}
		return nil
	})
}

func (r *DealRepositoryAdapter) FindByID(ctx context.Context, id uuid.UUID) (*entity.Deal, error) {
	return r.load(ctx, conn(ctx, r.db), `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id)
}

func (r *DealRepositoryAdapter) FindByProposalID(ctx context.Context, proposalID uuid.UUID) (*entity.Deal, error) {
	return r.load(ctx, conn(ctx, r.db), `SELECT `+dealColumns+` FROM deals WHERE proposal_id = $1`, proposalID)
}

func (r *DealRepositoryAdapter) FindByParticipant(ctx context.Context, userID uuid.UUID) ([]*entity.Deal, error) {
	exec := conn(ctx, r.db)
	var rows []dealRow
	query := `SELECT ` + dealColumns + ` FROM deals WHERE buyer_id = $1 OR seller_id = $1 ORDER BY created_at DESC`
	if err := exec.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить сделки")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	query, args, err := sqlx.In(`SELECT `+milestoneColumns+` FROM milestones WHERE deal_id IN (?) ORDER BY deal_id, idx`, ids)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить этапы сделок")
	}
	var mrows []milestoneRow
	if err := exec.SelectContext(ctx, &mrows, exec.Rebind(query), args...); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить этапы сделок")
	}

	byDeal := make(map[uuid.UUID][]*entity.Milestone, len(rows))
	for i := range mrows {
		byDeal[mrows[i].DealID] = append(byDeal[mrows[i].DealID], mrows[i].toEntity())
	}
	result := make([]*entity.Deal, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toEntity(byDeal[rows[i].ID]))
	}
	return result, nil
}

// Mutate блокирует строку сделки (SELECT ... FOR UPDATE) на время fn.
// Записи других репозиториев с тем же ctx входят в транзакцию.
func (r *DealRepositoryAdapter) Mutate(ctx context.Context, id uuid.UUID, fn repository.DealMutation) (*entity.Deal, error) {
	var result *entity.Deal
	err := WithTransaction(ctx, r.db, func(ctx context.Context) error {
		exec := conn(ctx, r.db)
		deal, err := r.load(ctx, exec, `SELECT `+dealColumns+` FROM deals WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, deal); err != nil {
			return err
		}
		if err := r.save(ctx, exec, deal); err != nil {
			return err
		}
		result = deal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *DealRepositoryAdapter) FindDueCountdowns(ctx context.Context, now time.Time) ([]repository.CountdownRef, error) {
	var refs []struct {
		DealID uuid.UUID `db:"deal_id"`
		Index  int       `db:"idx"`
	}
	query := `
		SELECT deal_id, idx FROM milestones
		WHERE status = $1 AND countdown_active AND countdown_cancelled_at IS NULL AND countdown_expires_at <= $2
		ORDER BY countdown_expires_at
	`
	if err := conn(ctx, r.db).SelectContext(ctx, &refs, query, string(valueobject.MilestoneStatusSubmittedForApproval), now); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить истёкшие таймеры")
	}
	result := make([]repository.CountdownRef, 0, len(refs))
	for _, ref := range refs {
		result = append(result, repository.CountdownRef{DealID: ref.DealID, MilestoneIndex: ref.Index})
	}
	return result, nil
}

func (r *DealRepositoryAdapter) load(ctx context.Context, exec executor, query string, arg interface{}) (*entity.Deal, error) {
	var row dealRow
	if err := exec.GetContext(ctx, &row, query, arg); err != nil {
		if notFound(err) {
			return nil, apperror.ErrDealNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить сделку")
	}

	var mrows []milestoneRow
	if err := exec.SelectContext(ctx, &mrows, `SELECT `+milestoneColumns+` FROM milestones WHERE deal_id = $1 ORDER BY idx`, row.ID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить этапы сделки")
	}
	milestones := make([]*entity.Milestone, 0, len(mrows))
	for i := range mrows {
		milestones = append(milestones, mrows[i].toEntity())
	}
	return row.toEntity(milestones), nil
}

func (r *DealRepositoryAdapter) save(ctx context.Context, exec executor, deal *entity.Deal) error {
	query := `
		UPDATE deals SET held_amount = $2, status = $3, open_dispute_id = $4, updated_at = $5, version = version + 1
		WHERE id = $1
	`
	if _, err := exec.ExecContext(ctx, query, deal.ID, deal.HeldAmount, string(deal.Status), deal.OpenDisputeID, deal.UpdatedAt); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить сделку")
	}

	mquery := `
		UPDATE milestones SET status = $3, submission = $4, revision = $5, countdown_active = $6,
			countdown_started_at = $7, countdown_expires_at = $8, countdown_cancelled_at = $9,
			funded_at = $10, completed_at = $11, approved_by = $12
		WHERE deal_id = $1 AND idx = $2
	`
	for _, m := range deal.Milestones {
		row := milestoneRowFrom(deal.ID, m)
		_, err := exec.ExecContext(ctx, mquery,
			row.DealID, row.Index, row.Status, row.Submission, row.Revision, row.CountdownActive,
			row.CountdownStartedAt, row.CountdownExpiresAt, row.CountdownCancelledAt,
			row.FundedAt, row.CompletedAt, row.ApprovedBy,
		)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить этап сделки")
		}
	}
	return nil
}

type dealRow struct {
	ID             uuid.UUID       `db:"id"`
	ProposalID     uuid.UUID       `db:"proposal_id"`
	Title          string          `db:"title"`
	Description    string          `db:"description"`
	BuyerID        uuid.UUID       `db:"buyer_id"`
	SellerID       uuid.UUID       `db:"seller_id"`
	BuyerEmail     string          `db:"buyer_email"`
	SellerEmail    string          `db:"seller_email"`
	TotalAmount    decimal.Decimal `db:"total_amount"`
	EscrowFee      decimal.Decimal `db:"escrow_fee"`
	BuyerFeeShare  decimal.Decimal `db:"buyer_fee_share"`
	SellerFeeShare decimal.Decimal `db:"seller_fee_share"`
	FeeSplit       int             `db:"fee_split"`
	HeldAmount     decimal.Decimal `db:"held_amount"`
	Status         string          `db:"status"`
	OpenDisputeID  *uuid.UUID      `db:"open_dispute_id"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (r *dealRow) toEntity(milestones []*entity.Milestone) *entity.Deal {
	return &entity.Deal{
		ID:             r.ID,
		ProposalID:     r.ProposalID,
		Title:          r.Title,
		Description:    r.Description,
		BuyerID:        r.BuyerID,
		SellerID:       r.SellerID,
		BuyerEmail:     r.BuyerEmail,
		SellerEmail:    r.SellerEmail,
		TotalAmount:    r.TotalAmount,
		EscrowFee:      r.EscrowFee,
		BuyerFeeShare:  r.BuyerFeeShare,
		SellerFeeShare: r.SellerFeeShare,
		FeeSplit:       valueobject.FeeSplit(r.FeeSplit),
		HeldAmount:     r.HeldAmount,
		Status:         valueobject.DealStatus(r.Status),
		OpenDisputeID:  r.OpenDisputeID,
		Milestones:     milestones,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type milestoneRow struct {
	DealID               uuid.UUID                          `db:"deal_id"`
	Index                int                                `db:"idx"`
	Title                string                             `db:"title"`
	Description          string                             `db:"description"`
	Amount               decimal.Decimal                    `db:"amount"`
	DueDate              time.Time                          `db:"due_date"`
	Status               string                             `db:"status"`
	Submission           jsonColumn[entity.Submission]      `db:"submission"`
	Revision             jsonColumn[entity.RevisionRequest] `db:"revision"`
	CountdownActive      bool                               `db:"countdown_active"`
	CountdownStartedAt   *time.Time                         `db:"countdown_started_at"`
	CountdownExpiresAt   *time.Time                         `db:"countdown_expires_at"`
	CountdownCancelledAt *time.Time                         `db:"countdown_cancelled_at"`
	FundedAt             *time.Time                         `db:"funded_at"`
	CompletedAt          *time.Time                         `db:"completed_at"`
	ApprovedBy           string                             `db:"approved_by"`
}

func milestoneRowFrom(dealID uuid.UUID, m *entity.Milestone) milestoneRow {
	row := milestoneRow{
		DealID:      dealID,
		Index:       m.Index,
		Title:       m.Title,
		Description: m.Description,
		Amount:      m.Amount,
		DueDate:     m.DueDate,
		Status:      string(m.Status),
		FundedAt:    m.FundedAt,
		CompletedAt: m.CompletedAt,
		ApprovedBy:  m.ApprovedBy,
	}
	if m.Submission != nil {
		row.Submission = jsonOf(*m.Submission)
	}
	if m.Revision != nil {
		row.Revision = jsonOf(*m.Revision)
	}
	if c := m.Countdown; c != nil {
		started, expires := c.StartedAt, c.ExpiresAt
		row.CountdownActive = c.Active
		row.CountdownStartedAt = &started
		row.CountdownExpiresAt = &expires
		row.CountdownCancelledAt = c.CancelledAt
	}
	return row
}

func (r milestoneRow) args() []interface{} {
	return []interface{}{
		r.DealID, r.Index, r.Title, r.Description, r.Amount, r.DueDate, r.Status,
		r.Submission, r.Revision, r.CountdownActive, r.CountdownStartedAt, r.CountdownExpiresAt,
		r.CountdownCancelledAt, r.FundedAt, r.CompletedAt, r.ApprovedBy,
	}
}

func (r *milestoneRow) toEntity() *entity.Milestone {
	m := &entity.Milestone{
		Index:       r.Index,
		Title:       r.Title,
		Description: r.Description,
		Amount:      r.Amount,
		DueDate:     r.DueDate,
		Status:      valueobject.MilestoneStatus(r.Status),
		FundedAt:    r.FundedAt,
		CompletedAt: r.CompletedAt,
		ApprovedBy:  r.ApprovedBy,
	}
	if r.Submission.Valid {
		s := r.Submission.V
		m.Submission = &s
	}
	if r.Revision.Valid {
		rev := r.Revision.V
		m.Revision = &rev
	}
	if r.CountdownStartedAt != nil && r.CountdownExpiresAt != nil {
		m.Countdown = &entity.Countdown{
			Active:      r.CountdownActive,
			StartedAt:   *r.CountdownStartedAt,
			ExpiresAt:   *r.CountdownExpiresAt,
			CancelledAt: r.CountdownCancelledAt,
		}
	}
	return m
}
