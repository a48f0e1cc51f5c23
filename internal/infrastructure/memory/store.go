// Package memory хранит данные в памяти процесса. Используется в режиме
// STORAGE_DRIVER=memory и в тестах сценариев.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
)

type Store struct {
	mu        sync.RWMutex
	proposals map[uuid.UUID]*entity.Proposal
	deals     map[uuid.UUID]*entity.Deal
	disputes  map[uuid.UUID]*entity.Dispute
	txs       map[string]*entity.WalletTransaction
	dealLocks sync.Map
}

func NewStore() *Store {
	return &Store{
		proposals: make(map[uuid.UUID]*entity.Proposal),
		deals:     make(map[uuid.UUID]*entity.Deal),
		disputes:  make(map[uuid.UUID]*entity.Dispute),
		txs:       make(map[string]*entity.WalletTransaction),
	}
}

func (s *Store) dealLock(id uuid.UUID) *sync.Mutex {
	lock, _ := s.dealLocks.LoadOrStore(id, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (s *Store) Proposals() *ProposalRepository {
	return &ProposalRepository{s: s}
}

func (s *Store) Deals() *DealRepository {
	return &DealRepository{s: s}
}

func (s *Store) Disputes() *DisputeRepository {
	return &DisputeRepository{s: s}
}

func (s *Store) Transactions() *TransactionRepository {
	return &TransactionRepository{s: s}
}

func cloneProposal(p *entity.Proposal) *entity.Proposal {
	c := *p
	c.Milestones = append([]entity.MilestoneSpec(nil), p.Milestones...)
	return &c
}

func cloneDispute(d *entity.Dispute) *entity.Dispute {
	c := *d
	c.Evidence = append([]string(nil), d.Evidence...)
	if d.Resolution != nil {
		r := *d.Resolution
		c.Resolution = &r
	}
	return &c
}

func cloneTx(t *entity.WalletTransaction) *entity.WalletTransaction {
	c := *t
	return &c
}
