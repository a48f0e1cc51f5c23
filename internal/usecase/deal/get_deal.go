package deal

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/repository"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

type GetDealUseCase struct {
	dealRepo repository.DealRepository
	txRepo   repository.WalletTransactionRepository
}

func NewGetDealUseCase(dealRepo repository.DealRepository, txRepo repository.WalletTransactionRepository) *GetDealUseCase {
	return &GetDealUseCase{dealRepo: dealRepo, txRepo: txRepo}
}

func (uc *GetDealUseCase) Execute(ctx context.Context, dealID uuid.UUID, actor entity.Actor) (*entity.Deal, error) {
	deal, err := uc.dealRepo.FindByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !deal.IsParticipant(actor.UserID) && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	return deal, nil
}

func (uc *GetDealUseCase) Transactions(ctx context.Context, dealID uuid.UUID, actor entity.Actor) ([]*entity.WalletTransaction, error) {
	if _, err := uc.Execute(ctx, dealID, actor); err != nil {
		return nil, err
	}
	txs, err := uc.txRepo.ListByDeal(ctx, dealID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить транзакции сделки")
	}
	return txs, nil
}

type ListMyDealsUseCase struct {
	dealRepo repository.DealRepository
}

func NewListMyDealsUseCase(dealRepo repository.DealRepository) *ListMyDealsUseCase {
	return &ListMyDealsUseCase{dealRepo: dealRepo}
}

func (uc *ListMyDealsUseCase) Execute(ctx context.Context, actor entity.Actor) ([]*entity.Deal, error) {
	deals, err := uc.dealRepo.FindByParticipant(ctx, actor.UserID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить сделки")
	}
	return deals, nil
}

type Quote struct {
	Total         decimal.Decimal
	BaseRate      decimal.Decimal
	Fee           valueobject.EscrowFee
	FundingAmount decimal.Decimal
}

// QuoteFee считает комиссию без сохранения, для формы создания предложения.
func QuoteFee(total decimal.Decimal, splitPercent int) (*Quote, error) {
	if !total.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}
	split, err := valueobject.NewFeeSplit(splitPercent)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Total:         total,
		BaseRate:      valueobject.FeeFor(total),
		Fee:           valueobject.EscrowFeeFor(total, split),
		FundingAmount: valueobject.FundingAmount(total, split),
	}, nil
}
