// Package registry tracks governance proposals: creation, vote intake and
// finalization. Power figures are always taken at a proposal's snapshot
// block, never at vote time.
package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/1Crazymoney/governance-v2/pkg/strategy"
)

var (
	// ErrProposalNotFound indicates the proposal was not found
	ErrProposalNotFound = errors.New("proposal not found")

	// ErrAlreadyVoted indicates the account already voted on the proposal
	ErrAlreadyVoted = errors.New("account already voted on this proposal")

	// ErrVotingClosed indicates the proposal's voting window has ended
	ErrVotingClosed = errors.New("voting window has closed")

	// ErrVotingStillOpen indicates finalization was requested before the
	// voting window ended
	ErrVotingStillOpen = errors.New("voting window is still open")

	// ErrNoVotingPower indicates the voter held no voting power at the
	// proposal's snapshot block
	ErrNoVotingPower = errors.New("no voting power at snapshot block")

	// ErrNoPropositionPower indicates the creator holds no proposition power
	ErrNoPropositionPower = errors.New("no proposition power")

	// ErrChainAtGenesis indicates no snapshot block exists yet
	ErrChainAtGenesis = errors.New("chain has no block before the current one")
)

// Status represents the lifecycle state of a proposal.
type Status int

const (
	StatusVoting Status = iota
	StatusPassed
	StatusFailed
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusVoting:
		return "voting"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Proposal is a governance proposal and its running tallies.
type Proposal struct {
	ID            string
	Creator       strategy.Account
	Title         string
	Description   string
	SnapshotBlock strategy.BlockRef
	StartBlock    strategy.BlockRef
	EndBlock      strategy.BlockRef
	ForVotes      *uint256.Int
	AgainstVotes  *uint256.Int
	Votes         map[strategy.Account]bool
	Status        Status
}

// ChainReader reports the chain's current block height.
type ChainReader interface {
	CurrentBlock() strategy.BlockRef
}

// ProposalStore persists proposals. UpdateProposal applies the mutation
// atomically with respect to concurrent updates of the same proposal.
type ProposalStore interface {
	SaveProposal(p *Proposal) error
	GetProposal(id string) (*Proposal, error)
	ListProposals() ([]*Proposal, error)
	UpdateProposal(id string, update func(*Proposal) error) error
}

// Registry is the governance registry service.
type Registry struct {
	chain ChainReader
	power *strategy.Strategy
	store ProposalStore
	rules *strategy.ValidationRules
	log   *zap.Logger
}

// New creates a registry over the given chain, power strategy, store and
// validation rules.
func New(chain ChainReader, power *strategy.Strategy, store ProposalStore, rules *strategy.ValidationRules, log *zap.Logger) *Registry {
	return &Registry{
		chain: chain,
		power: power,
		store: store,
		rules: rules,
		log:   log,
	}
}

// CreateProposal registers a new proposal. Power and supply for the whole
// vote are measured at the block before creation; the voting window runs
// for the configured duration from the creation block. The creator must
// hold proposition power at the snapshot block.
func (r *Registry) CreateProposal(creator strategy.Account, title, description string) (*Proposal, error) {
	current := r.chain.CurrentBlock()
	if current == 0 {
		return nil, ErrChainAtGenesis
	}
	snapshot := current - 1

	propPower, err := r.power.GetPropositionPowerAt(creator, snapshot)
	if err != nil {
		return nil, fmt.Errorf("proposition power of %s: %w", creator, err)
	}
	if propPower.IsZero() {
		return nil, ErrNoPropositionPower
	}

	p := &Proposal{
		ID:            uuid.NewString(),
		Creator:       creator,
		Title:         title,
		Description:   description,
		SnapshotBlock: snapshot,
		StartBlock:    current,
		EndBlock:      current + strategy.BlockRef(r.rules.VotingDuration()),
		ForVotes:      uint256.NewInt(0),
		AgainstVotes:  uint256.NewInt(0),
		Votes:         make(map[strategy.Account]bool),
		Status:        StatusVoting,
	}
	if err := r.store.SaveProposal(p); err != nil {
		return nil, fmt.Errorf("failed to save proposal: %w", err)
	}

	r.log.Info("proposal created",
		zap.String("id", p.ID),
		zap.String("creator", string(creator)),
		zap.Uint64("snapshotBlock", uint64(p.SnapshotBlock)),
		zap.Uint64("endBlock", uint64(p.EndBlock)),
	)
	return p, nil
}

// SubmitVote records a vote weighted by the voter's voting power at the
// proposal's snapshot block. One vote per account; votes are rejected once
// the window closes.
func (r *Registry) SubmitVote(voter strategy.Account, proposalID string, support bool) error {
	current := r.chain.CurrentBlock()

	return r.store.UpdateProposal(proposalID, func(p *Proposal) error {
		if p.Status != StatusVoting {
			return ErrVotingClosed
		}
		if current > p.EndBlock {
			return ErrVotingClosed
		}
		if _, voted := p.Votes[voter]; voted {
			return ErrAlreadyVoted
		}

		power, err := r.power.GetVotingPowerAt(voter, p.SnapshotBlock)
		if err != nil {
			return fmt.Errorf("voting power of %s: %w", voter, err)
		}
		if power.IsZero() {
			return ErrNoVotingPower
		}

		tally := p.ForVotes
		if !support {
			tally = p.AgainstVotes
		}
		sum, overflow := new(uint256.Int).AddOverflow(tally, power)
		if overflow {
			return fmt.Errorf("vote tally: %w", strategy.ErrArithmeticOverflow)
		}
		tally.Set(sum)
		p.Votes[voter] = support

		r.log.Info("vote recorded",
			zap.String("proposal", proposalID),
			zap.String("voter", string(voter)),
			zap.Bool("support", support),
			zap.String("power", power.Dec()),
		)
		return nil
	})
}

// FinalizeProposal settles a proposal once its voting window has closed,
// consulting the validator for the quorum and differential decision.
func (r *Registry) FinalizeProposal(proposalID string, validator *strategy.ProposalValidator) (Status, error) {
	p, err := r.store.GetProposal(proposalID)
	if err != nil {
		return StatusVoting, err
	}
	if p.Status != StatusVoting {
		return p.Status, nil
	}
	if r.chain.CurrentBlock() <= p.EndBlock {
		return StatusVoting, ErrVotingStillOpen
	}

	passed, err := validator.IsProposalPassed(proposalID)
	if err != nil {
		return StatusVoting, fmt.Errorf("validating proposal %s: %w", proposalID, err)
	}

	status := StatusFailed
	if passed {
		status = StatusPassed
	}
	err = r.store.UpdateProposal(proposalID, func(p *Proposal) error {
		p.Status = status
		return nil
	})
	if err != nil {
		return StatusVoting, err
	}

	r.log.Info("proposal finalized",
		zap.String("proposal", proposalID),
		zap.Stringer("status", status),
	)
	return status, nil
}

// GetProposal returns a proposal by ID.
func (r *Registry) GetProposal(id string) (*Proposal, error) {
	return r.store.GetProposal(id)
}

// ListProposals returns all proposals.
func (r *Registry) ListProposals() ([]*Proposal, error) {
	return r.store.ListProposals()
}

// ProposalTally implements strategy.ProposalReader.
func (r *Registry) ProposalTally(id string) (*strategy.ProposalTally, error) {
	p, err := r.store.GetProposal(id)
	if err != nil {
		return nil, err
	}
	return &strategy.ProposalTally{
		ForVotes:      new(uint256.Int).Set(p.ForVotes),
		AgainstVotes:  new(uint256.Int).Set(p.AgainstVotes),
		SnapshotBlock: p.SnapshotBlock,
	}, nil
}
