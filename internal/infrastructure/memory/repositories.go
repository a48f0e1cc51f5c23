package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/repository"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

type ProposalRepository struct {
	s *Store
}

func (r *ProposalRepository) Create(ctx context.Context, p *entity.Proposal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.proposals[p.ID] = cloneProposal(p)
	return nil
}

func (r *ProposalRepository) Update(ctx context.Context, p *entity.Proposal, expected valueobject.ProposalStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.proposals[p.ID]
	if !ok {
		return apperror.ErrProposalNotFound
	}
	if stored.Status != expected {
		return apperror.New(apperror.ErrCodeInvalidState, "предложение уже изменено")
	}
	r.s.proposals[p.ID] = cloneProposal(p)
	return nil
}

func (r *ProposalRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.proposals[id]
	if !ok {
		return nil, apperror.ErrProposalNotFound
	}
	return cloneProposal(p), nil
}

func (r *ProposalRepository) FindByParticipant(ctx context.Context, userID uuid.UUID, email string) ([]*entity.Proposal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*entity.Proposal
	for _, p := range r.s.proposals {
		byID := (p.BuyerID != nil && *p.BuyerID == userID) || (p.SellerID != nil && *p.SellerID == userID)
		byEmail := email != "" && (strings.EqualFold(p.BuyerEmail, email) || strings.EqualFold(p.SellerEmail, email))
		if byID || byEmail {
			result = append(result, cloneProposal(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

type DealRepository struct {
	s *Store
}

func (r *DealRepository) Create(ctx context.Context, d *entity.Deal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.deals {
		if existing.ProposalID == d.ProposalID {
			return apperror.New(apperror.ErrCodeConflict, "сделка по этому предложению уже создана")
		}
	}
	r.s.deals[d.ID] = d.Clone()
	return nil
}

func (r *DealRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Deal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.deals[id]
	if !ok {
		return nil, apperror.ErrDealNotFound
	}
	return d.Clone(), nil
}

func (r *DealRepository) FindByProposalID(ctx context.Context, proposalID uuid.UUID) (*entity.Deal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, d := range r.s.deals {
		if d.ProposalID == proposalID {
			return d.Clone(), nil
		}
	}
	return nil, apperror.ErrDealNotFound
}

func (r *DealRepository) FindByParticipant(ctx context.Context, userID uuid.UUID) ([]*entity.Deal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*entity.Deal
	for _, d := range r.s.deals {
		if d.IsParticipant(userID) {
			result = append(result, d.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// Mutate держит мьютекс сделки на время fn. Записи других репозиториев,
// сделанные внутри fn, при ошибке не откатываются.
func (r *DealRepository) Mutate(ctx context.Context, id uuid.UUID, fn repository.DealMutation) (*entity.Deal, error) {
	lock := r.s.dealLock(id)
	lock.Lock()
	defer lock.Unlock()

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(ctx, current); err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	r.s.deals[id] = current.Clone()
	r.s.mu.Unlock()
	return current, nil
}

func (r *DealRepository) FindDueCountdowns(ctx context.Context, now time.Time) ([]repository.CountdownRef, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var refs []repository.CountdownRef
	for _, d := range r.s.deals {
		for _, m := range d.Milestones {
			if m.CountdownDue(now) {
				refs = append(refs, repository.CountdownRef{DealID: d.ID, MilestoneIndex: m.Index})
			}
		}
	}
	return refs, nil
}

type DisputeRepository struct {
	s *Store
}

func (r *DisputeRepository) Create(ctx context.Context, d *entity.Dispute) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.disputes {
		if existing.DealID == d.DealID && existing.IsOpen() {
			return apperror.ErrDealLocked
		}
	}
	r.s.disputes[d.ID] = cloneDispute(d)
	return nil
}

func (r *DisputeRepository) Update(ctx context.Context, d *entity.Dispute) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.disputes[d.ID]; !ok {
		return apperror.ErrDisputeNotFound
	}
	r.s.disputes[d.ID] = cloneDispute(d)
	return nil
}

func (r *DisputeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.disputes[id]
	if !ok {
		return nil, apperror.ErrDisputeNotFound
	}
	return cloneDispute(d), nil
}

func (r *DisputeRepository) FindByDealID(ctx context.Context, dealID uuid.UUID) ([]*entity.Dispute, error) {
	return r.filter(func(d *entity.Dispute) bool { return d.DealID == dealID }), nil
}

func (r *DisputeRepository) FindByParticipant(ctx context.Context, userID uuid.UUID) ([]*entity.Dispute, error) {
	r.s.mu.RLock()
	dealIDs := make(map[uuid.UUID]bool)
	for _, d := range r.s.deals {
		if d.IsParticipant(userID) {
			dealIDs[d.ID] = true
		}
	}
	r.s.mu.RUnlock()

	return r.filter(func(d *entity.Dispute) bool { return dealIDs[d.DealID] }), nil
}

func (r *DisputeRepository) ListOpen(ctx context.Context) ([]*entity.Dispute, error) {
	return r.filter(func(d *entity.Dispute) bool { return d.IsOpen() }), nil
}

func (r *DisputeRepository) filter(keep func(*entity.Dispute) bool) []*entity.Dispute {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*entity.Dispute
	for _, d := range r.s.disputes {
		if keep(d) {
			result = append(result, cloneDispute(d))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

type TransactionRepository struct {
	s *Store
}

func (r *TransactionRepository) Create(ctx context.Context, tx *entity.WalletTransaction) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.txs[tx.ProviderRef]; exists {
		return false, nil
	}
	r.s.txs[tx.ProviderRef] = cloneTx(tx)
	return true, nil
}

func (r *TransactionRepository) FindByProviderRef(ctx context.Context, providerRef string) (*entity.WalletTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tx, ok := r.s.txs[providerRef]
	if !ok {
		return nil, apperror.ErrTransactionNotFound
	}
	return cloneTx(tx), nil
}

func (r *TransactionRepository) MarkSettled(ctx context.Context, providerRef string, status valueobject.TransactionStatus, providerTxID string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tx, ok := r.s.txs[providerRef]
	if !ok {
		return false, apperror.ErrTransactionNotFound
	}
	if tx.Status.IsTerminal() {
		return false, nil
	}
	if err := tx.Settle(status, providerTxID, at); err != nil {
		return false, err
	}
	return true, nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.WalletTransaction, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var all []*entity.WalletTransaction
	for _, tx := range r.s.txs {
		if tx.UserID == userID {
			all = append(all, cloneTx(tx))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *TransactionRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]*entity.WalletTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*entity.WalletTransaction
	for _, tx := range r.s.txs {
		if tx.DealID != nil && *tx.DealID == dealID {
			result = append(result, cloneTx(tx))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}
