// Package ballot implements the single-election commit/reveal/tally state
// machine: strict phase invariants, cryptographic binding between commit
// and reveal, and monotonic counters that must never diverge from the sum
// of per-candidate vote counts.
package ballot

import (
	"sync"
	"time"

	electerrors "electionproto/election/errors"
	"electionproto/election/events"
	"electionproto/observability/metrics"

	"electionproto/crypto"
)

// EligibilityChecker is the narrow slice of the Registry a Ballot depends on.
// Declaring it as a local interface (rather than importing *registry.Registry
// directly) keeps the dependency explicit and mockable in tests, and avoids a
// pointer-graph cycle between the two aggregates.
type EligibilityChecker interface {
	IsEligible(wallet crypto.Address) bool
	GetVoterConstituency(wallet crypto.Address) (uint64, error)
}

// Config carries the recognized options for ballot creation.
type Config struct {
	ElectionID         uint64
	Name               string
	Admin              crypto.Address
	ConstituencyID     uint64
	CommitDeadline     time.Time
	RevealDeadline     time.Time
	CandidateNames     []string
	CandidateParties   []string
}

// Ballot is one election's commit-reveal state machine. All mutable fields
// are guarded by mu; every exported mutating method holds the lock for its
// entire body.
type Ballot struct {
	mu sync.Mutex

	electionID     uint64
	name           string
	registry       EligibilityChecker
	admin          crypto.Address
	constituencyID uint64

	commitDeadline time.Time
	revealDeadline time.Time

	candidates []Candidate

	commits     map[string]*VoteCommit
	commitOrder []crypto.Address

	totalCommits uint64
	totalReveals uint64

	isCancelled bool
	isFinalized bool

	audit    []AuditRecord
	auditSeq uint64

	nowFn   func() time.Time
	emitter events.Emitter
	metrics *metrics.ElectionMetrics
}

// New constructs a Ballot. commitDeadline must be strictly before
// revealDeadline and both must be strictly in the future relative to now;
// candidate names/parties must be equal-length and non-empty (enforced by
// the Factory before calling New, but re-checked here since Ballot must be
// independently correct).
func New(cfg Config, registry EligibilityChecker, now time.Time) (*Ballot, error) {
	if cfg.Name == "" {
		return nil, electerrors.ErrEmptyName
	}
	if len(cfg.CandidateNames) == 0 || len(cfg.CandidateNames) != len(cfg.CandidateParties) {
		return nil, electerrors.ErrCandidateCountMismatch
	}
	if !cfg.CommitDeadline.After(now) {
		return nil, electerrors.ErrDeadlineOrdering
	}
	if !cfg.CommitDeadline.Before(cfg.RevealDeadline) {
		return nil, electerrors.ErrDeadlineOrdering
	}

	candidates := make([]Candidate, len(cfg.CandidateNames))
	for i := range cfg.CandidateNames {
		candidates[i] = Candidate{
			ID:    uint64(i + 1),
			Name:  cfg.CandidateNames[i],
			Party: cfg.CandidateParties[i],
		}
	}

	return &Ballot{
		electionID:     cfg.ElectionID,
		name:           cfg.Name,
		registry:       registry,
		admin:          cfg.Admin,
		constituencyID: cfg.ConstituencyID,
		commitDeadline: cfg.CommitDeadline,
		revealDeadline: cfg.RevealDeadline,
		candidates:     candidates,
		commits:        make(map[string]*VoteCommit),
		nowFn:          func() time.Time { return time.Now().UTC() },
		emitter:        events.NoopEmitter{},
		metrics:        metrics.Election(),
	}, nil
}

// SetNowFunc overrides the clock collaborator, making phase logic
// deterministic under test.
func (b *Ballot) SetNowFunc(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now == nil {
		b.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	b.nowFn = now
}

// SetEmitter configures the event sink. Passing nil resets to a no-op.
func (b *Ballot) SetEmitter(emitter events.Emitter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if emitter == nil {
		b.emitter = events.NoopEmitter{}
		return
	}
	b.emitter = emitter
}

func (b *Ballot) now() time.Time {
	if b.nowFn == nil {
		return time.Now().UTC()
	}
	return b.nowFn()
}

// CurrentPhase is a pure function of now and the two deadlines. Callers must hold mu when invoking the unexported variant.
func (b *Ballot) CurrentPhase() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phaseAt(b.now())
}

func (b *Ballot) phaseAt(now time.Time) Phase {
	if !now.After(b.commitDeadline) {
		return PhaseCommit
	}
	if !now.After(b.revealDeadline) {
		return PhaseReveal
	}
	return PhaseTally
}

func (b *Ballot) appendAudit(event AuditEvent, actor crypto.Address, details string) {
	b.auditSeq++
	b.audit = append(b.audit, AuditRecord{
		Sequence:  b.auditSeq,
		Timestamp: b.now(),
		Event:     event,
		Actor:     actor,
		Details:   details,
	})
}

// CommitVote records a hiding, binding commitment during the COMMIT phase.
func (b *Ballot) CommitVote(voter crypto.Address, commitHash [32]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.phaseAt(now) != PhaseCommit {
		return electerrors.ErrWrongPhase
	}
	if b.isCancelled {
		return electerrors.ErrElectionCancelled
	}
	if commitHash == ([32]byte{}) {
		return electerrors.ErrEmptyHash
	}
	if existing, ok := b.commits[addrKey(voter)]; ok && existing.HasCommitted() {
		return electerrors.ErrAlreadyCommitted
	}
	if !b.registry.IsEligible(voter) {
		return electerrors.ErrNotEligible
	}
	if b.constituencyID > 0 {
		voterConstituency, err := b.registry.GetVoterConstituency(voter)
		if err != nil {
			return electerrors.ErrNotEligible
		}
		if voterConstituency != b.constituencyID {
			return electerrors.ErrWrongConstituency
		}
	}

	var voterBytes [20]byte
	copy(voterBytes[:], voter.Bytes())
	receipt := ComputeReceiptHash(voterBytes, commitHash, uint64(now.Unix()), b.electionID)

	b.commits[addrKey(voter)] = &VoteCommit{
		State:           VoterCommitted,
		CommitHash:      commitHash,
		ReceiptHash:     receipt,
		CommitTimestamp: now,
	}
	b.commitOrder = append(b.commitOrder, voter)
	b.totalCommits++

	b.emitter.Emit(events.VoteCommitted{Voter: voter, ReceiptHash: receipt, Timestamp: now})
	b.appendAudit(AuditEventCommitted, voter, "")
	if b.metrics != nil {
		b.metrics.IncVotesCommitted(b.electionID)
	}
	return nil
}

// RevealVote discloses (candidateID, secret) proving knowledge of the
// pre-image of the previously submitted commit.
func (b *Ballot) RevealVote(voter crypto.Address, candidateID uint64, secret [32]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.phaseAt(now) != PhaseReveal {
		return electerrors.ErrWrongPhase
	}
	if b.isCancelled {
		return electerrors.ErrElectionCancelled
	}
	commit, ok := b.commits[addrKey(voter)]
	if !ok || !commit.HasCommitted() {
		return electerrors.ErrNoCommit
	}
	if commit.HasRevealed() {
		return electerrors.ErrAlreadyRevealed
	}
	if candidateID < 1 || candidateID > uint64(len(b.candidates)) {
		return electerrors.ErrInvalidCandidate
	}
	if ComputeCommitHash(candidateID, secret) != commit.CommitHash {
		return electerrors.ErrHashMismatch
	}

	commit.State = VoterRevealed
	commit.RevealedCandidateID = candidateID
	b.candidates[candidateID-1].VoteCount++
	b.totalReveals++

	b.emitter.Emit(events.VoteRevealed{Voter: voter, Timestamp: now})
	b.appendAudit(AuditEventRevealed, voter, "")
	if b.metrics != nil {
		b.metrics.IncVotesRevealed(b.electionID)
	}
	return nil
}

// Finalize closes the ballot once the reveal deadline has passed. Anyone may
// call it. Finalization after cancellation is rejected by an explicit
// precondition check rather than an implicit side effect.
func (b *Ballot) Finalize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isCancelled {
		return electerrors.ErrElectionCancelled
	}
	if b.isFinalized {
		return electerrors.ErrAlreadyFinalized
	}
	now := b.now()
	if !now.After(b.revealDeadline) {
		return electerrors.ErrRevealNotEnded
	}

	b.isFinalized = true
	b.emitter.Emit(events.ElectionFinalized{TotalReveals: b.totalReveals, Timestamp: now})
	b.appendAudit(AuditEventFinalized, crypto.Address{}, "")
	if b.metrics != nil {
		b.metrics.IncFinalized(b.electionID)
	}
	return nil
}

// CancelElection is the only external kill switch. Admin-only. Counters and
// existing commits are never rolled back; results are simply never declared
// final.
func (b *Ballot) CancelElection(caller crypto.Address, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !addressEqual(b.admin, caller) {
		return electerrors.ErrNotAdmin
	}
	if b.isCancelled {
		return electerrors.ErrElectionCancelled
	}

	now := b.now()
	b.isCancelled = true
	b.emitter.Emit(events.ElectionCancelled{Reason: reason, Timestamp: now})
	b.appendAudit(AuditEventCancelled, caller, reason)
	if b.metrics != nil {
		b.metrics.IncCancelled(b.electionID)
	}
	return nil
}

// ExtendCommitDeadline moves the commit deadline forward only. Admin-only.
// Extending it while already in REVEAL phase is permitted when newDeadline
// is still in the future and strictly less than the reveal deadline; this
// re-opens the COMMIT phase as a pure consequence of CurrentPhase. A new
// deadline that is not after now while in REVEAL fails with ErrWrongPhase.
func (b *Ballot) ExtendCommitDeadline(caller crypto.Address, newDeadline time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !addressEqual(b.admin, caller) {
		return electerrors.ErrNotAdmin
	}
	if !newDeadline.After(b.commitDeadline) {
		return electerrors.ErrCanOnlyExtend
	}
	if !newDeadline.Before(b.revealDeadline) {
		return electerrors.ErrDeadlineOrdering
	}
	if now := b.now(); b.phaseAt(now) == PhaseReveal && !newDeadline.After(now) {
		return electerrors.ErrWrongPhase
	}

	b.commitDeadline = newDeadline
	b.appendAudit(AuditEventExtended, caller, "commitDeadline")
	return nil
}

// ExtendRevealDeadline moves the reveal deadline forward only. Admin-only.
func (b *Ballot) ExtendRevealDeadline(caller crypto.Address, newDeadline time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !addressEqual(b.admin, caller) {
		return electerrors.ErrNotAdmin
	}
	if !newDeadline.After(b.revealDeadline) {
		return electerrors.ErrCanOnlyExtend
	}
	if !b.commitDeadline.Before(newDeadline) {
		return electerrors.ErrDeadlineOrdering
	}

	b.revealDeadline = newDeadline
	b.appendAudit(AuditEventExtended, caller, "revealDeadline")
	return nil
}

// GetCandidate returns the candidate at the given 1-indexed id.
func (b *Ballot) GetCandidate(id uint64) (Candidate, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id < 1 || id > uint64(len(b.candidates)) {
		return Candidate{}, electerrors.ErrInvalidCandidate
	}
	return b.candidates[id-1], nil
}

// GetAllCandidates returns a copy of the full candidate slate.
func (b *Ballot) GetAllCandidates() []Candidate {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Candidate, len(b.candidates))
	copy(out, b.candidates)
	return out
}

// GetResults fails with ErrResultsNotReady unless now > revealDeadline or the
// ballot has been finalized.
func (b *Ballot) GetResults() (Results, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if !now.After(b.revealDeadline) && !b.isFinalized {
		return Results{}, electerrors.ErrResultsNotReady
	}
	candidates := make([]Candidate, len(b.candidates))
	copy(candidates, b.candidates)
	return Results{
		Candidates:   candidates,
		TotalCommits: b.totalCommits,
		TotalReveals: b.totalReveals,
	}, nil
}

// GetVoterCommitStatus returns a read-only snapshot of voter's per-ballot
// state.
func (b *Ballot) GetVoterCommitStatus(voter crypto.Address) CommitStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	commit, ok := b.commits[addrKey(voter)]
	if !ok {
		return CommitStatus{}
	}
	return CommitStatus{
		HasCommitted:        commit.HasCommitted(),
		HasRevealed:         commit.HasRevealed(),
		RevealedCandidateID: commit.RevealedCandidateID,
		CommitTimestamp:     commit.CommitTimestamp,
		ReceiptHash:         commit.ReceiptHash,
	}
}

// VerifyReceipt reports whether receiptHash matches the stored receipt for
// voter. Returns false on a zero hash.
func (b *Ballot) VerifyReceipt(voter crypto.Address, receiptHash [32]byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if receiptHash == ([32]byte{}) {
		return false
	}
	commit, ok := b.commits[addrKey(voter)]
	if !ok {
		return false
	}
	return commit.ReceiptHash == receiptHash
}

// GetElectionInfo returns a read-only snapshot of the ballot's configuration
// and counters.
func (b *Ballot) GetElectionInfo() Info {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Info{
		ElectionID:     b.electionID,
		Name:           b.name,
		Admin:          b.admin,
		ConstituencyID: b.constituencyID,
		CommitDeadline: b.commitDeadline,
		RevealDeadline: b.revealDeadline,
		TotalCommits:   b.totalCommits,
		TotalReveals:   b.totalReveals,
		IsCancelled:    b.isCancelled,
		IsFinalized:    b.isFinalized,
		CandidateCount: len(b.candidates),
	}
}

// GetTotalCommitters returns the number of distinct voters who have
// committed.
func (b *Ballot) GetTotalCommitters() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalCommits
}

// AuditLog returns a copy of the ballot's append-only audit trail.
func (b *Ballot) AuditLog() []AuditRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]AuditRecord, len(b.audit))
	copy(out, b.audit)
	return out
}

// addrKey derives a comparable map key from an address's raw bytes. Address
// itself is not comparable (it carries a slice field internally).
func addrKey(addr crypto.Address) string {
	return string(addr.Bytes())
}

func addressEqual(a, b crypto.Address) bool {
	ab, bb := a.Bytes(), b.Bytes()
	if len(ab) != len(bb) {
		return false
	}
	for i := range ab {
		if ab[i] != bb[i] {
			return false
		}
	}
	return true
}
