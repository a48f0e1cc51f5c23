// Package webhook сверяет уведомления платёжного провайдера с состоянием сделок.
package webhook

import (
	"context"
	"encoding/json"
	"strings"
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

const (
	EventChargeCompleted   = "charge.completed"
	EventTransferCompleted = "transfer.completed"
)

type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// SignatureVerifier проверяет подлинность тела вебхука.
type SignatureVerifier interface {
	Verify(body []byte, signature string) error
}

// EventJournal запоминает обработанные события. Это только первый
// фильтр повторов, основную защиту дают статусы в базе.
type EventJournal interface {
	Seen(key string) (bool, error)
	Record(key string) error
}

// Funder меняет этапы сделки по подтверждённым платежам.
type Funder interface {
	FundInitial(ctx context.Context, dealID uuid.UUID) (*entity.Deal, error)
	FundNext(ctx context.Context, dealID uuid.UUID, completedIndex int) (*entity.Deal, bool, error)
}

type Envelope struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

type EventData struct {
	ID        string          `json:"id"`
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

// journalKey уникален для события и операции провайдера.
func (e *Envelope) journalKey() string {
	id := e.Data.ID
	if id == "" {
		id = e.Data.Reference
	}
	return e.Event + ":" + id + ":" + strings.ToLower(e.Data.Status)
}

type Reconciler struct {
	verifier SignatureVerifier
	journal  EventJournal
	ledger   gateway.Ledger
	dealRepo repository.DealRepository
	txRepo   repository.WalletTransactionRepository
	funder   Funder
	timeout  time.Duration
	now      func() time.Time
}

func NewReconciler(
	verifier SignatureVerifier,
	journal EventJournal,
	ledger gateway.Ledger,
	dealRepo repository.DealRepository,
	txRepo repository.WalletTransactionRepository,
	funder Funder,
	timeout time.Duration,
) *Reconciler {
	if timeout <= 0 {
		timeout = shared.DefaultExternalTimeout
	}
	return &Reconciler{
		verifier: verifier,
		journal:  journal,
		ledger:   ledger,
		dealRepo: dealRepo,
		txRepo:   txRepo,
		funder:   funder,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Handle обрабатывает сырое тело вебхука. Ошибка означает, что провайдер
// должен получить не-200 и повторить доставку.
func (r *Reconciler) Handle(ctx context.Context, body []byte, signature string) (Outcome, error) {
	if err := r.verifier.Verify(body, signature); err != nil {
		logger.Log.WithField("size", len(body)).Warn("вебхук отклонён: неверная подпись")
		return "", apperror.ErrSignatureInvalid
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeValidation, "некорректное тело вебхука")
	}

	log := logger.Log.WithFields(logrus.Fields{
		"event":     env.Event,
		"id":        env.Data.ID,
		"reference": env.Data.Reference,
	})

	key := env.journalKey()
	if r.journal != nil {
		seen, err := r.journal.Seen(key)
		if err != nil {
			log.WithError(err).Warn("журнал вебхуков недоступен")
		} else if seen {
			log.Debug("вебхук уже обработан")
			return OutcomeDuplicate, nil
		}
	}

	var (
		outcome Outcome
		err     error
	)
	switch env.Event {
	case EventChargeCompleted:
		outcome, err = r.handleCharge(ctx, &env, log)
	case EventTransferCompleted:
		outcome, err = r.handleTransfer(ctx, &env, log)
	default:
		log.Debug("неизвестное событие вебхука пропущено")
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}

	if r.journal != nil && outcome == OutcomeProcessed {
		if err := r.journal.Record(key); err != nil {
			log.WithError(err).Warn("не удалось записать событие в журнал")
		}
	}
	log.WithField("outcome", outcome).Info("вебхук обработан")
	return outcome, nil
}

func (r *Reconciler) handleCharge(ctx context.Context, env *Envelope, log *logrus.Entry) (Outcome, error) {
	if env.Data.ID == "" {
		return "", apperror.New(apperror.ErrCodeValidation, "в событии нет id платежа")
	}

	verifyCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Данным из тела не доверяем: всё перепроверяем у провайдера.
	charge, err := r.ledger.VerifyCharge(verifyCtx, env.Data.ID)
	if err != nil {
		log.WithError(err).Error("не удалось проверить платёж у провайдера")
		return "", shared.ProviderError(err, "не удалось проверить платёж")
	}

	dealID, err := entity.ParseFundingReference(charge.Reference)
	if err != nil {
		log.WithField("verified_reference", charge.Reference).Warn("платёж не относится к сделке")
		return "", err
	}

	if !charge.Successful() {
		if charge.Failed() {
			if _, err := r.txRepo.MarkSettled(ctx, charge.Reference, valueobject.TransactionStatusFailed, charge.ID, r.now()); err != nil && !apperror.IsNotFound(err) {
				return "", apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить транзакцию")
			}
		}
		log.WithField("status", charge.Status).Warn("платёж не успешен, сделка не меняется")
		return OutcomeIgnored, nil
	}

	if !strings.EqualFold(charge.Currency, valueobject.CurrencyNGN) {
		log.WithField("currency", charge.Currency).Warn("платёж в неверной валюте")
		return "", apperror.New(apperror.ErrCodeValidation, "валюта платежа не совпадает")
	}

	deal, err := r.dealRepo.FindByID(ctx, dealID)
	if err != nil {
		return "", err
	}

	if charge.BuyerID != uuid.Nil && charge.BuyerID != deal.BuyerID {
		log.WithFields(logrus.Fields{
			"deal_id":      deal.ID,
			"charge_buyer": charge.BuyerID,
			"deal_buyer":   deal.BuyerID,
		}).Warn("платёж внесён не покупателем сделки")
		return "", apperror.New(apperror.ErrCodeValidation, "плательщик не совпадает с покупателем сделки")
	}

	expected := deal.FundingAmount()
	if charge.Amount.LessThan(expected) {
		log.WithFields(logrus.Fields{
			"deal_id":  deal.ID,
			"paid":     charge.Amount.StringFixed(2),
			"expected": expected.StringFixed(2),
		}).Warn("сумма платежа меньше суммы сделки")
		return "", apperror.New(apperror.ErrCodeValidation, "сумма платежа не совпадает с суммой сделки")
	}

	if err := r.settleFunding(ctx, deal, charge); err != nil {
		return "", err
	}

	if deal.DerivedStatus() != valueobject.DealStatusAwaitingFunding {
		return OutcomeDuplicate, nil
	}

	if _, err := r.funder.FundInitial(ctx, deal.ID); err != nil {
		if apperror.IsInvalidState(err) {
			return OutcomeDuplicate, nil
		}
		if apperror.IsDealLocked(err) {
			// провайдер повторит вебхук, зачисление пройдёт после решения спора
			log.WithField("deal_id", deal.ID).Warn("по сделке открыт спор, финансирование отложено")
		}
		return "", err
	}
	return OutcomeProcessed, nil
}

// settleFunding отмечает транзакцию оплаты успешной, создавая её при необходимости.
func (r *Reconciler) settleFunding(ctx context.Context, deal *entity.Deal, charge *gateway.ChargeVerification) error {
	dealID := deal.ID
	tx := entity.NewWalletTransaction(deal.BuyerID, &dealID, nil, valueobject.TransactionTypeFund, charge.Amount, charge.Reference, r.now())
	if _, err := r.txRepo.Create(ctx, tx); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить транзакцию оплаты")
	}
	if _, err := r.txRepo.MarkSettled(ctx, charge.Reference, valueobject.TransactionStatusSuccess, charge.ID, r.now()); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить транзакцию оплаты")
	}
	return nil
}

func (r *Reconciler) handleTransfer(ctx context.Context, env *Envelope, log *logrus.Entry) (Outcome, error) {
	if env.Data.Reference == "" {
		return "", apperror.New(apperror.ErrCodeValidation, "в событии нет ссылки перевода")
	}

	var status valueobject.TransactionStatus
	switch strings.ToLower(env.Data.Status) {
	case "successful", "success":
		status = valueobject.TransactionStatusSuccess
	case "failed":
		status = valueobject.TransactionStatusFailed
	default:
		log.WithField("status", env.Data.Status).Debug("промежуточный статус перевода пропущен")
		return OutcomeIgnored, nil
	}

	tx, err := r.txRepo.FindByProviderRef(ctx, env.Data.Reference)
	if err != nil {
		if apperror.IsNotFound(err) {
			log.Warn("перевод с неизвестной ссылкой")
			return OutcomeIgnored, nil
		}
		return "", err
	}

	changed, err := r.txRepo.MarkSettled(ctx, tx.ProviderRef, status, env.Data.ID, r.now())
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить транзакцию")
	}
	if !changed {
		return OutcomeDuplicate, nil
	}

	if status == valueobject.TransactionStatusFailed {
		log.WithField("deal_id", tx.DealID).Error("провайдер сообщил о неудачном переводе")
		return OutcomeProcessed, nil
	}

	if tx.IsMilestonePayout() {
		if _, _, err := r.funder.FundNext(ctx, *tx.DealID, *tx.MilestoneIndex); err != nil {
			return "", err
		}
	}
	return OutcomeProcessed, nil
}
