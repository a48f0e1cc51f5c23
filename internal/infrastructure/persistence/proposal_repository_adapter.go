package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

type ProposalRepositoryAdapter struct {
	db *sqlx.DB
}

func NewProposalRepositoryAdapter(db *sqlx.DB) *ProposalRepositoryAdapter {
	return &ProposalRepositoryAdapter{db: db}
}

const proposalColumns = `id, title, description, milestones, total_amount, escrow_fee, buyer_fee_share,
	seller_fee_share, fee_split, creator_role, buyer_id, seller_id, buyer_email, seller_email,
	status, deal_id, created_at, updated_at`

func (r *ProposalRepositoryAdapter) Create(ctx context.Context, proposal *entity.Proposal) error {
	query := `
		INSERT INTO proposals (` + proposalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		proposal.ID, proposal.Title, proposal.Description, jsonOf(proposal.Milestones),
		proposal.TotalAmount, proposal.EscrowFee, proposal.BuyerFeeShare, proposal.SellerFeeShare,
		int(proposal.FeeSplit), string(proposal.CreatorRole), proposal.BuyerID, proposal.SellerID,
		proposal.BuyerEmail, proposal.SellerEmail, string(proposal.Status), proposal.DealID,
		proposal.CreatedAt, proposal.UpdatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать предложение")
	}
	return nil
}

// Update пишет только если статус в базе всё ещё expected.
func (r *ProposalRepositoryAdapter) Update(ctx context.Context, proposal *entity.Proposal, expected valueobject.ProposalStatus) error {
	query := `
		UPDATE proposals SET buyer_id = $2, seller_id = $3, status = $4, deal_id = $5, updated_at = $6
		WHERE id = $1 AND status = $7
	`
	res, err := conn(ctx, r.db).ExecContext(ctx, query,
		proposal.ID, proposal.BuyerID, proposal.SellerID, string(proposal.Status),
		proposal.DealID, proposal.UpdatedAt, string(expected),
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить предложение")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить результат обновления")
	}
	if rows == 0 {
		if _, err := r.FindByID(ctx, proposal.ID); err != nil {
			return err
		}
		return apperror.New(apperror.ErrCodeInvalidState, "предложение уже изменено")
	}
	return nil
}

func (r *ProposalRepositoryAdapter) FindByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error) {
	var p proposalRow
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`
	if err := conn(ctx, r.db).GetContext(ctx, &p, query, id); err != nil {
		if notFound(err) {
			return nil, apperror.ErrProposalNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить предложение")
	}
	return p.toEntity(), nil
}

func (r *ProposalRepositoryAdapter) FindByParticipant(ctx context.Context, userID uuid.UUID, email string) ([]*entity.Proposal, error) {
	var rows []proposalRow
	query := `
		SELECT ` + proposalColumns + ` FROM proposals
		WHERE buyer_id = $1 OR seller_id = $1
		   OR ($2 <> '' AND (lower(buyer_email) = lower($2) OR lower(seller_email) = lower($2)))
		ORDER BY created_at DESC
	`
	if err := conn(ctx, r.db).SelectContext(ctx, &rows, query, userID, email); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить предложения")
	}
	result := make([]*entity.Proposal, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toEntity())
	}
	return result, nil
}

type proposalRow struct {
	ID             uuid.UUID                          `db:"id"`
	Title          string                             `db:"title"`
	Description    string                             `db:"description"`
	Milestones     jsonColumn[[]entity.MilestoneSpec] `db:"milestones"`
	TotalAmount    decimal.Decimal                    `db:"total_amount"`
	EscrowFee      decimal.Decimal                    `db:"escrow_fee"`
	BuyerFeeShare  decimal.Decimal                    `db:"buyer_fee_share"`
	SellerFeeShare decimal.Decimal                    `db:"seller_fee_share"`
	FeeSplit       int                                `db:"fee_split"`
	CreatorRole    string                             `db:"creator_role"`
	BuyerID        *uuid.UUID                         `db:"buyer_id"`
	SellerID       *uuid.UUID                         `db:"seller_id"`
	BuyerEmail     string                             `db:"buyer_email"`
	SellerEmail    string                             `db:"seller_email"`
	Status         string                             `db:"status"`
	DealID         *uuid.UUID                         `db:"deal_id"`
	CreatedAt      time.Time                          `db:"created_at"`
	UpdatedAt      time.Time                          `db:"updated_at"`
}

func (r *proposalRow) toEntity() *entity.Proposal {
	return &entity.Proposal{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Milestones:     r.Milestones.V,
		TotalAmount:    r.TotalAmount,
		EscrowFee:      r.EscrowFee,
		BuyerFeeShare:  r.BuyerFeeShare,
		SellerFeeShare: r.SellerFeeShare,
		FeeSplit:       valueobject.FeeSplit(r.FeeSplit),
		CreatorRole:    valueobject.PartyRole(r.CreatorRole),
		BuyerID:        r.BuyerID,
		SellerID:       r.SellerID,
		BuyerEmail:     r.BuyerEmail,
		SellerEmail:    r.SellerEmail,
		Status:         valueobject.ProposalStatus(r.Status),
		DealID:         r.DealID,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
