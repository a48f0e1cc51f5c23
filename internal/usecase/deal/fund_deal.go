package deal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/repository"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/logger"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/shared"
)

type FundingResult struct {
	Deal        *entity.Deal
	Amount      decimal.Decimal
	Fee         valueobject.EscrowFee
	Reference   string
	CheckoutURL string
}

// FundDealUseCase запускает оплату сделки покупателем. Сама сделка
// меняется только после подтверждённого вебхука.
type FundDealUseCase struct {
	dealRepo repository.DealRepository
	txRepo   repository.WalletTransactionRepository
	ledger   gateway.Ledger
	kyc      gateway.IdentityVerifier
	timeout  time.Duration
	now      func() time.Time
}

func NewFundDealUseCase(
	dealRepo repository.DealRepository,
	txRepo repository.WalletTransactionRepository,
	ledger gateway.Ledger,
	kyc gateway.IdentityVerifier,
	timeout time.Duration,
) *FundDealUseCase {
	if timeout <= 0 {
		timeout = shared.DefaultExternalTimeout
	}
	return &FundDealUseCase{
		dealRepo: dealRepo,
		txRepo:   txRepo,
		ledger:   ledger,
		kyc:      kyc,
		timeout:  timeout,
		now:      time.Now,
	}
}

func (uc *FundDealUseCase) Execute(ctx context.Context, dealID uuid.UUID, actor entity.Actor) (*FundingResult, error) {
	deal, err := uc.dealRepo.FindByID(ctx, dealID)
	if err != nil {
		return nil, err
	}

	if deal.BuyerID != actor.UserID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "оплатить сделку может только покупатель")
	}
	if err := deal.EnsureUnlocked(); err != nil {
		return nil, err
	}
	if deal.DerivedStatus() != valueobject.DealStatusAwaitingFunding {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "сделка уже профинансирована")
	}
	if err := shared.RequireKYC(ctx, uc.kyc, actor.UserID, uc.timeout); err != nil {
		return nil, err
	}

	amount := deal.FundingAmount()
	reference := entity.FundingReference(deal.ID)

	ledgerCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	res, err := uc.ledger.Fund(ledgerCtx, gateway.FundRequest{
		DealID:     deal.ID,
		BuyerID:    deal.BuyerID,
		BuyerEmail: deal.BuyerEmail,
		Amount:     amount,
		Reference:  reference,
	})
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"deal_id": deal.ID}).WithError(err).Error("не удалось инициировать оплату сделки")
		return nil, shared.ProviderError(err, "платёжный провайдер отклонил оплату")
	}

	dealRef := deal.ID
	tx := entity.NewWalletTransaction(deal.BuyerID, &dealRef, nil, valueobject.TransactionTypeFund, amount, reference, uc.now())
	if _, err := uc.txRepo.Create(ctx, tx); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить транзакцию")
	}

	return &FundingResult{
		Deal:        deal,
		Amount:      amount,
		Fee:         valueobject.EscrowFeeFor(deal.TotalAmount, deal.FeeSplit),
		Reference:   reference,
		CheckoutURL: res.CheckoutURL,
	}, nil
}
