package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

func seedDeal(t *testing.T, s *Store) *entity.Deal {
	t.Helper()
	d := &entity.Deal{
		ID:          uuid.New(),
		ProposalID:  uuid.New(),
		BuyerID:     uuid.New(),
		SellerID:    uuid.New(),
		TotalAmount: decimal.NewFromInt(100),
		HeldAmount:  decimal.Zero,
		Milestones: []*entity.Milestone{
			{Index: 0, Amount: decimal.NewFromInt(100), Status: valueobject.MilestoneStatusPending},
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.Deals().Create(context.Background(), d))
	return d
}

func TestDealRepository_MutateSerializes(t *testing.T) {
	s := NewStore()
	d := seedDeal(t, s)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Deals().Mutate(ctx, d.ID, func(ctx context.Context, deal *entity.Deal) error {
				deal.HeldAmount = deal.HeldAmount.Add(decimal.NewFromInt(1))
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Deals().FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(got.HeldAmount))
}

func TestDealRepository_MutateErrorDiscardsChanges(t *testing.T) {
	s := NewStore()
	d := seedDeal(t, s)
	ctx := context.Background()

	_, err := s.Deals().Mutate(ctx, d.ID, func(ctx context.Context, deal *entity.Deal) error {
		deal.Milestones[0].Status = valueobject.MilestoneStatusFunded
		return errors.New("ledger down")
	})
	require.Error(t, err)

	got, _ := s.Deals().FindByID(ctx, d.ID)
	assert.Equal(t, valueobject.MilestoneStatusPending, got.Milestones[0].Status)
}

func TestDealRepository_OneDealPerProposal(t *testing.T) {
	s := NewStore()
	d := seedDeal(t, s)

	dup := d.Clone()
	dup.ID = uuid.New()
	err := s.Deals().Create(context.Background(), dup)
	assert.Equal(t, apperror.ErrCodeConflict, apperror.CodeOf(err))
}

func TestDisputeRepository_OneOpenPerDeal(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	dealID := uuid.New()

	first := &entity.Dispute{ID: uuid.New(), DealID: dealID, Status: valueobject.DisputeStatusOpen}
	require.NoError(t, s.Disputes().Create(ctx, first))

	second := &entity.Dispute{ID: uuid.New(), DealID: dealID, Status: valueobject.DisputeStatusOpen}
	assert.True(t, apperror.IsDealLocked(s.Disputes().Create(ctx, second)))

	first.Status = valueobject.DisputeStatusResolved
	require.NoError(t, s.Disputes().Update(ctx, first))
	assert.NoError(t, s.Disputes().Create(ctx, second))
}

func TestTransactionRepository_SettlesOnce(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Transactions()

	tx := entity.NewWalletTransaction(uuid.New(), nil, nil, valueobject.TransactionTypeRelease, decimal.NewFromInt(10), "release-x-0", time.Now())
	created, err := repo.Create(ctx, tx)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(ctx, tx)
	require.NoError(t, err)
	assert.False(t, created)

	changed, err := repo.MarkSettled(ctx, "release-x-0", valueobject.TransactionStatusSuccess, "p-1", time.Now())
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkSettled(ctx, "release-x-0", valueobject.TransactionStatusFailed, "p-1", time.Now())
	require.NoError(t, err)
	assert.False(t, changed)

	got, _ := repo.FindByProviderRef(ctx, "release-x-0")
	assert.Equal(t, valueobject.TransactionStatusSuccess, got.Status)
}
