package registry

import (
	"sync"

	"github.com/holiman/uint256"

	"github.com/1Crazymoney/governance-v2/pkg/strategy"
)

// MemoryStore is an in-memory implementation of ProposalStore.
type MemoryStore struct {
	proposals map[string]*Proposal
	mutex     sync.RWMutex
}

// NewMemoryStore creates a new memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		proposals: make(map[string]*Proposal),
	}
}

// clone returns a deep copy so callers never alias stored state.
func clone(p *Proposal) *Proposal {
	cp := *p
	cp.ForVotes = new(uint256.Int).Set(p.ForVotes)
	cp.AgainstVotes = new(uint256.Int).Set(p.AgainstVotes)
	cp.Votes = make(map[strategy.Account]bool, len(p.Votes))
	for k, v := range p.Votes {
		cp.Votes[k] = v
	}
	return &cp
}

// SaveProposal saves a proposal to the store.
func (s *MemoryStore) SaveProposal(p *Proposal) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.proposals[p.ID] = clone(p)
	return nil
}

// GetProposal retrieves a proposal by ID.
func (s *MemoryStore) GetProposal(id string) (*Proposal, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	p, exists := s.proposals[id]
	if !exists {
		return nil, ErrProposalNotFound
	}
	return clone(p), nil
}

// ListProposals lists all proposals.
func (s *MemoryStore) ListProposals() ([]*Proposal, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	proposals := make([]*Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		proposals = append(proposals, clone(p))
	}
	return proposals, nil
}

// UpdateProposal applies update to the stored proposal under the write
// lock. If update returns an error the proposal is left unchanged.
func (s *MemoryStore) UpdateProposal(id string, update func(*Proposal) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, exists := s.proposals[id]
	if !exists {
		return ErrProposalNotFound
	}

	cp := clone(p)
	if err := update(cp); err != nil {
		return err
	}
	s.proposals[id] = cp
	return nil
}
