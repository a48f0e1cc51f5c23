package webhook_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/infrastructure/memory"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/milestone"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/usecasetest"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/webhook"
)

const goodSignature = "valid"

type stubVerifier struct{}

func (stubVerifier) Verify(body []byte, signature string) error {
	if signature != goodSignature {
		return errors.New("mismatch")
	}
	return nil
}

type mapJournal struct {
	keys map[string]bool
}

func (j *mapJournal) Seen(key string) (bool, error) { return j.keys[key], nil }

func (j *mapJournal) Record(key string) error {
	j.keys[key] = true
	return nil
}

type fixture struct {
	store      *memory.Store
	ledger     *usecasetest.MockLedger
	machine    *milestone.Machine
	reconciler *webhook.Reconciler
	journal    *mapJournal
	parties    usecasetest.Parties
	deal       *entity.Deal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	ledger := new(usecasetest.MockLedger)
	parties := usecasetest.NewParties()
	// 500k, комиссия пополам: покупатель вносит 526 875
	d := usecasetest.NewDeal(parties, valueobject.FeeSplitShared, 200_000, 300_000)
	require.NoError(t, store.Deals().Create(context.Background(), d))

	machine := milestone.NewMachine(store.Deals(), store.Transactions(), ledger, nil)
	journal := &mapJournal{keys: map[string]bool{}}
	return &fixture{
		store:      store,
		ledger:     ledger,
		machine:    machine,
		reconciler: webhook.NewReconciler(stubVerifier{}, journal, ledger, store.Deals(), store.Transactions(), machine, time.Second),
		journal:    journal,
		parties:    parties,
		deal:       d,
	}
}

func (f *fixture) verifiedCharge(id, amount, currency, status string) {
	f.ledger.On("VerifyCharge", mock.Anything, id).Return(&gateway.ChargeVerification{
		ID:        id,
		Reference: entity.FundingReference(f.deal.ID),
		Status:    status,
		Amount:    decimal.RequireFromString(amount),
		Currency:  currency,
		BuyerID:   f.parties.Buyer.UserID,
	}, nil)
}

func chargeBody(id string) []byte {
	return []byte(fmt.Sprintf(`{"event":"charge.completed","data":{"id":%q,"status":"successful","amount":"1"}}`, id))
}

func transferBody(ref, status string) []byte {
	return []byte(fmt.Sprintf(`{"event":"transfer.completed","data":{"id":"trf-1","reference":%q,"status":%q}}`, ref, status))
}

func TestReconciler_RejectsBadSignature(t *testing.T) {
	f := newFixture(t)

	_, err := f.reconciler.Handle(context.Background(), chargeBody("ch-1"), "forged")
	assert.True(t, apperror.IsSignatureInvalid(err))
	f.ledger.AssertNotCalled(t, "VerifyCharge", mock.Anything, mock.Anything)
}

func TestReconciler_ChargeFundsDealOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.verifiedCharge("ch-1", "526875", "NGN", "successful")

	outcome, err := f.reconciler.Handle(ctx, chargeBody("ch-1"), goodSignature)
	require.NoError(t, err)
	assert.Equal(t, webhook.OutcomeProcessed, outcome)

	d, err := f.store.Deals().FindByID(ctx, f.deal.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DealStatusInProgress, d.Status)
	assert.Equal(t, valueobject.MilestoneStatusFunded, d.Milestones[0].Status)
	assert.True(t, decimal.NewFromInt(500_000).Equal(d.HeldAmount))

	tx, err := f.store.Transactions().FindByProviderRef(ctx, entity.FundingReference(f.deal.ID))
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusSuccess, tx.Status)

	// повтор отсекается журналом
	outcome, err = f.reconciler.Handle(ctx, chargeBody("ch-1"), goodSignature)
	require.NoError(t, err)
	assert.Equal(t, webhook.OutcomeDuplicate, outcome)
	f.ledger.AssertNumberOfCalls(t, "VerifyCharge", 1)
}

func TestReconciler_ChargeReplayWithoutJournal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.verifiedCharge("ch-1", "526875", "NGN", "successful")
	reconciler := webhook.NewReconciler(stubVerifier{}, nil, f.ledger, f.store.Deals(), f.store.Transactions(), f.machine, time.Second)

	for i := 0; i < 3; i++ {
		_, err := reconciler.Handle(ctx, chargeBody("ch-1"), goodSignature)
		require.NoError(t, err)
	}

	d, _ := f.store.Deals().FindByID(ctx, f.deal.ID)
	assert.True(t, decimal.NewFromInt(500_000).Equal(d.HeldAmount))
	txs, _ := f.store.Transactions().ListByDeal(ctx, f.deal.ID)
	assert.Len(t, txs, 1)
}

func TestReconciler_ChargeAmountTooLow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.verifiedCharge("ch-2", "500000", "NGN", "successful")

	_, err := f.reconciler.Handle(ctx, chargeBody("ch-2"), goodSignature)
	assert.True(t, apperror.IsValidation(err))

	d, _ := f.store.Deals().FindByID(ctx, f.deal.ID)
	assert.Equal(t, valueobject.DealStatusAwaitingFunding, d.Status)
	assert.False(t, f.journal.keys["charge.completed:ch-2:successful"])
}

func TestReconciler_ChargeWrongCurrency(t *testing.T) {
	f := newFixture(t)
	f.verifiedCharge("ch-3", "526875", "USD", "successful")

	_, err := f.reconciler.Handle(context.Background(), chargeBody("ch-3"), goodSignature)
	assert.True(t, apperror.IsValidation(err))
}

func TestReconciler_ChargeNotSuccessful(t *testing.T) {
	f := newFixture(t)
	f.verifiedCharge("ch-4", "526875", "NGN", "pending")

	outcome, err := f.reconciler.Handle(context.Background(), chargeBody("ch-4"), goodSignature)
	require.NoError(t, err)
	assert.Equal(t, webhook.OutcomeIgnored, outcome)
}

func TestReconciler_VerificationFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.ledger.On("VerifyCharge", mock.Anything, "ch-5").Return(nil, errors.New("timeout"))

	_, err := f.reconciler.Handle(context.Background(), chargeBody("ch-5"), goodSignature)
	assert.True(t, apperror.IsExternalProvider(err))
}

func TestReconciler_TransferSettlesAndFundsNext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.verifiedCharge("ch-1", "526875", "NGN", "successful")
	f.ledger.On("Release", mock.Anything, mock.Anything).Return(&gateway.TransferResult{ProviderRef: "prov"}, nil)

	_, err := f.reconciler.Handle(ctx, chargeBody("ch-1"), goodSignature)
	require.NoError(t, err)
	_, err = f.machine.Submit(ctx, f.deal.ID, 0, f.parties.Seller, "готово", nil)
	require.NoError(t, err)
	_, err = f.machine.Approve(ctx, f.deal.ID, 0, f.parties.Buyer)
	require.NoError(t, err)

	ref := entity.ReleaseReference(f.deal.ID, 0)
	outcome, err := f.reconciler.Handle(ctx, transferBody(ref, "successful"), goodSignature)
	require.NoError(t, err)
	assert.Equal(t, webhook.OutcomeProcessed, outcome)

	tx, err := f.store.Transactions().FindByProviderRef(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusSuccess, tx.Status)

	d, _ := f.store.Deals().FindByID(ctx, f.deal.ID)
	assert.Equal(t, valueobject.MilestoneStatusFunded, d.Milestones[1].Status)

	// терминальный статус не перезаписывается
	reconciler := webhook.NewReconciler(stubVerifier{}, nil, f.ledger, f.store.Deals(), f.store.Transactions(), f.machine, time.Second)
	outcome, err = reconciler.Handle(ctx, transferBody(ref, "failed"), goodSignature)
	require.NoError(t, err)
	assert.Equal(t, webhook.OutcomeDuplicate, outcome)
	tx, _ = f.store.Transactions().FindByProviderRef(ctx, ref)
	assert.Equal(t, valueobject.TransactionStatusSuccess, tx.Status)
}

func TestReconciler_UnknownTransferAndEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcome, err := f.reconciler.Handle(ctx, transferBody("release-unknown-0", "successful"), goodSignature)
	require.NoError(t, err)
	assert.Equal(t, webhook.OutcomeIgnored, outcome)

	outcome, err = f.reconciler.Handle(ctx, []byte(`{"event":"subaccount.created","data":{}}`), goodSignature)
	require.NoError(t, err)
	assert.Equal(t, webhook.OutcomeIgnored, outcome)

	_, err = f.reconciler.Handle(ctx, []byte(`{not json`), goodSignature)
	assert.True(t, apperror.IsValidation(err))
}

func TestReconciler_ChargeWaitsWhileDisputeOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.verifiedCharge("ch-1", "526875", "NGN", "successful")

	disputeID := uuid.New()
	_, err := f.store.Deals().Mutate(ctx, f.deal.ID, func(ctx context.Context, d *entity.Deal) error {
		d.OpenDisputeID = &disputeID
		d.Refresh(time.Now())
		return nil
	})
	require.NoError(t, err)

	_, err = f.reconciler.Handle(ctx, chargeBody("ch-1"), goodSignature)
	assert.True(t, apperror.IsDealLocked(err))
	assert.Empty(t, f.journal.keys, "неудачное событие не попадает в журнал")

	d, err := f.store.Deals().FindByID(ctx, f.deal.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DealStatusInDispute, d.Status)
	assert.Equal(t, valueobject.MilestoneStatusPending, d.Milestones[0].Status)
	assert.True(t, d.HeldAmount.IsZero())

	// после решения спора повтор вебхука финансирует сделку
	_, err = f.store.Deals().Mutate(ctx, f.deal.ID, func(ctx context.Context, d *entity.Deal) error {
		d.OpenDisputeID = nil
		d.Refresh(time.Now())
		return nil
	})
	require.NoError(t, err)

	outcome, err := f.reconciler.Handle(ctx, chargeBody("ch-1"), goodSignature)
	require.NoError(t, err)
	assert.Equal(t, webhook.OutcomeProcessed, outcome)

	d, err = f.store.Deals().FindByID(ctx, f.deal.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.MilestoneStatusFunded, d.Milestones[0].Status)
	assert.True(t, decimal.NewFromInt(500_000).Equal(d.HeldAmount))
}

func TestReconciler_ChargeFromAnotherPayerRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ledger.On("VerifyCharge", mock.Anything, "ch-9").Return(&gateway.ChargeVerification{
		ID:        "ch-9",
		Reference: entity.FundingReference(f.deal.ID),
		Status:    "successful",
		Amount:    decimal.RequireFromString("526875"),
		Currency:  "NGN",
		BuyerID:   uuid.New(),
	}, nil)

	_, err := f.reconciler.Handle(ctx, chargeBody("ch-9"), goodSignature)
	assert.True(t, apperror.IsValidation(err))

	d, err := f.store.Deals().FindByID(ctx, f.deal.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.MilestoneStatusPending, d.Milestones[0].Status)
}
