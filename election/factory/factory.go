// Package factory implements admin-gated creation of Ballots and an
// append-only directory of elections.
package factory

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"electionproto/election/ballot"
	electerrors "electionproto/election/errors"
	"electionproto/election/events"
	"electionproto/election/registry"

	"electionproto/crypto"
)

// MaxCandidates bounds the candidate slate size accepted at creation time.
const MaxCandidates = 50

// ElectionType is an advisory tag that does not alter protocol behavior; it
// exists only for off-system categorization.
type ElectionType string

const (
	ElectionTypeGeneral      ElectionType = "GENERAL"
	ElectionTypeConstituency ElectionType = "CONSTITUENCY"
)

// Record is an append-only election directory entry. The
// Factory holds only a reference to the instantiated Ballot, never a nested
// copy.
type Record struct {
	ID             uint64
	Name           string
	Description    string
	Ballot         *ballot.Ballot
	CreatedAt      time.Time
	CreatedBy      crypto.Address
	ElectionType   ElectionType
}

// Factory produces Ballots and maintains the append-only election directory.
// It does not retain administrative power over a Ballot after creation.
type Factory struct {
	mu       sync.RWMutex
	access   *registry.AccessController
	registry ballot.EligibilityChecker
	nowFn    func() time.Time
	emitter  events.Emitter

	elections []*Record
	byBallot  map[*ballot.Ballot]uint64
}

// New constructs a Factory owned by owner and bound to the given eligibility
// source.
func New(owner crypto.Address, eligibility ballot.EligibilityChecker) *Factory {
	return &Factory{
		access:   registry.NewAccessController(owner),
		registry: eligibility,
		nowFn:    func() time.Time { return time.Now().UTC() },
		emitter:  events.NoopEmitter{},
		byBallot: make(map[*ballot.Ballot]uint64),
	}
}

// SetNowFunc overrides the clock collaborator used to stamp elections and
// propagated into created Ballots.
func (f *Factory) SetNowFunc(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if now == nil {
		f.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	f.nowFn = now
}

// SetEmitter configures the event sink. Passing nil resets to a no-op.
func (f *Factory) SetEmitter(emitter events.Emitter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if emitter == nil {
		f.emitter = events.NoopEmitter{}
		return
	}
	f.emitter = emitter
}

// Access exposes the factory's access controller so admin grants can be
// managed by the host.
func (f *Factory) Access() *registry.AccessController { return f.access }

func (f *Factory) now() time.Time {
	if f.nowFn == nil {
		return time.Now().UTC()
	}
	return f.nowFn()
}

// CreateElection allocates the next election id, instantiates a Ballot with
// admin = caller, appends a directory entry, and emits ElectionCreated.
// Admin-only.
func (f *Factory) CreateElection(
	caller crypto.Address,
	name, description string,
	commitDeadline, revealDeadline time.Time,
	candidateNames, candidateParties []string,
	constituencyID uint64,
	electionType ElectionType,
) (uint64, *ballot.Ballot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.access.IsAdmin(caller) {
		return 0, nil, electerrors.ErrNotAdmin
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, nil, electerrors.ErrEmptyName
	}
	if len(candidateNames) == 0 {
		return 0, nil, electerrors.ErrCandidateCountMismatch
	}
	if len(candidateNames) != len(candidateParties) {
		return 0, nil, electerrors.ErrCandidateCountMismatch
	}
	if len(candidateNames) > MaxCandidates {
		return 0, nil, electerrors.ErrCandidateCountMismatch
	}

	now := f.now()
	cfg := ballot.Config{
		ElectionID:       uint64(len(f.elections) + 1),
		Name:             name,
		Admin:            caller,
		ConstituencyID:   constituencyID,
		CommitDeadline:   commitDeadline,
		RevealDeadline:   revealDeadline,
		CandidateNames:   candidateNames,
		CandidateParties: candidateParties,
	}
	newBallot, err := ballot.New(cfg, f.registry, now)
	if err != nil {
		return 0, nil, err
	}
	newBallot.SetNowFunc(f.nowFn)
	newBallot.SetEmitter(f.emitter)

	record := &Record{
		ID:           cfg.ElectionID,
		Name:         name,
		Description:  description,
		Ballot:       newBallot,
		CreatedAt:    now,
		CreatedBy:    caller,
		ElectionType: electionType,
	}
	f.elections = append(f.elections, record)
	f.byBallot[newBallot] = record.ID

	f.emitter.Emit(events.ElectionCreated{
		ElectionID:     record.ID,
		Name:           name,
		BallotRef:      ballotRef(record.ID),
		CommitDeadline: commitDeadline,
		RevealDeadline: revealDeadline,
		CreatedBy:      caller,
	})

	return record.ID, newBallot, nil
}

func ballotRef(id uint64) string {
	return "ballot:" + strconv.FormatUint(id, 10)
}

// GetElectionCount returns the number of elections ever created.
func (f *Factory) GetElectionCount() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return uint64(len(f.elections))
}

// GetElection returns the directory entry at the given 0-indexed slot.
func (f *Factory) GetElection(index uint64) (Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if index >= uint64(len(f.elections)) {
		return Record{}, electerrors.ErrBallotNotFound
	}
	return *f.elections[index], nil
}

// GetElectionByBallot resolves the directory entry owning the given Ballot.
func (f *Factory) GetElectionByBallot(b *ballot.Ballot) (Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	id, ok := f.byBallot[b]
	if !ok {
		return Record{}, electerrors.ErrBallotNotFound
	}
	for _, record := range f.elections {
		if record.ID == id {
			return *record, nil
		}
	}
	return Record{}, electerrors.ErrBallotNotFound
}

// GetAllElections returns a copy of the full election directory.
func (f *Factory) GetAllElections() []Record {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Record, len(f.elections))
	for i, record := range f.elections {
		out[i] = *record
	}
	return out
}
