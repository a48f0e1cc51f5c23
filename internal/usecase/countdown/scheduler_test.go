package countdown_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/infrastructure/memory"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/countdown"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/milestone"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/usecasetest"
)

type fixture struct {
	store     *memory.Store
	ledger    *usecasetest.MockLedger
	machine   *milestone.Machine
	scheduler *countdown.Scheduler
	parties   usecasetest.Parties
	deal      *entity.Deal
}

const ttl = time.Hour

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	ledger := new(usecasetest.MockLedger)
	ledger.On("Release", mock.Anything, mock.Anything).Return(&gateway.TransferResult{ProviderRef: "prov"}, nil)

	parties := usecasetest.NewParties()
	d := usecasetest.NewDeal(parties, valueobject.FeeSplitShared, 1000, 2000)
	require.NoError(t, store.Deals().Create(ctx, d))

	machine := milestone.NewMachine(store.Deals(), store.Transactions(), ledger, nil, milestone.WithCountdownTTL(ttl))
	_, err := machine.FundInitial(ctx, d.ID)
	require.NoError(t, err)
	_, err = machine.Submit(ctx, d.ID, 0, parties.Seller, "готово", nil)
	require.NoError(t, err)

	return &fixture{
		store:     store,
		ledger:    ledger,
		machine:   machine,
		scheduler: countdown.NewScheduler(store.Deals(), machine, time.Millisecond),
		parties:   parties,
		deal:      d,
	}
}

func TestScheduler_TickApprovesExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, 0, f.scheduler.Tick(ctx, time.Now()))
	f.ledger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)

	assert.Equal(t, 1, f.scheduler.Tick(ctx, time.Now().Add(ttl+time.Minute)))

	d, err := f.store.Deals().FindByID(ctx, f.deal.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.MilestoneStatusCompleted, d.Milestones[0].Status)
	assert.Equal(t, entity.SystemAutoApprove, d.Milestones[0].ApprovedBy)
	assert.Equal(t, valueobject.MilestoneStatusFunded, d.Milestones[1].Status)

	// второй тик ничего не находит
	assert.Equal(t, 0, f.scheduler.Tick(ctx, time.Now().Add(ttl+time.Minute)))
	f.ledger.AssertNumberOfCalls(t, "Release", 1)
}

func TestScheduler_CancelPutsOnHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, cancelled, err := f.scheduler.Cancel(ctx, f.deal.ID, 0, f.parties.Buyer)
	require.NoError(t, err)
	assert.True(t, cancelled)
	assert.Equal(t, valueobject.MilestoneStatusSubmittedForApproval, d.Milestones[0].Status)
	assert.True(t, d.Milestones[0].Countdown.OnHold())

	_, cancelled, err = f.scheduler.Cancel(ctx, f.deal.ID, 0, f.parties.Buyer)
	require.NoError(t, err)
	assert.False(t, cancelled)

	assert.Equal(t, 0, f.scheduler.Tick(ctx, time.Now().Add(ttl+time.Minute)))

	// ручное одобрение после отмены таймера работает
	_, err = f.machine.Approve(ctx, f.deal.ID, 0, f.parties.Buyer)
	assert.NoError(t, err)
}

func TestScheduler_CancelGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.scheduler.Cancel(ctx, f.deal.ID, 0, f.parties.Seller)
	assert.True(t, apperror.IsForbidden(err))

	_, cancelled, err := f.scheduler.Cancel(ctx, f.deal.ID, 1, f.parties.Buyer)
	require.NoError(t, err)
	assert.False(t, cancelled, "таймер не взведён")
}

func TestScheduler_TickSkipsLockedDeal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	disputeID := uuid.New()
	_, err := f.store.Deals().Mutate(ctx, f.deal.ID, func(ctx context.Context, d *entity.Deal) error {
		d.OpenDisputeID = &disputeID
		d.Refresh(time.Now())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 0, f.scheduler.Tick(ctx, time.Now().Add(ttl+time.Minute)))
	f.ledger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.scheduler.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("планировщик не остановился")
	}
}
