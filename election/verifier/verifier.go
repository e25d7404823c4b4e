// Package verifier provides read-only derivations: receipt-based
// participation proofs and tally-integrity checks. It owns no state of its
// own; every answer is derived live from a Ballot and the Registry.
package verifier

import (
	"time"

	"electionproto/config"
	"electionproto/election/ballot"
	"electionproto/election/events"
	"electionproto/election/registry"

	"electionproto/crypto"
)

// ReceiptVerification is the result of VerifyVoterReceipt.
type ReceiptVerification struct {
	IsRegistered    bool
	HasCommitted    bool
	HasRevealed     bool
	ReceiptValid    bool
	CommitTimestamp time.Time
	StoredReceipt   [32]byte
}

// IntegrityReport is the result of VerifyElectionIntegrity.
type IntegrityReport struct {
	Integrous            bool
	TotalReveals         uint64
	TotalCandidateVotes  uint64
	TotalCommits         uint64
}

// Summary is the result of GetElectionSummary. The quorum/pass-threshold
// fields are computed against the policy argument passed in, so the same
// tally reads as met or not depending on which Governance it's judged
// against; they report a turnout/share ratio even before a ballot is
// finalized, so callers should check Finalized before treating QuorumMet or
// PassThresholdMet as the final word.
type Summary struct {
	Name             string
	TotalCommitters  uint64
	TotalRevealed    uint64
	CandidateCount   int
	Finalized        bool
	Cancelled        bool
	EligibleVoters   uint64
	TurnoutBPS       uint32
	QuorumMet        bool
	LeadingCandidate uint64
	LeadingShareBPS  uint32
	PassThresholdMet bool
}

// Verifier is a pure read layer over a Registry and the Ballots it backs.
type Verifier struct {
	registry *registry.Registry
	emitter  events.Emitter
	nowFn    func() time.Time
}

// New constructs a Verifier bound to reg.
func New(reg *registry.Registry) *Verifier {
	return &Verifier{
		registry: reg,
		emitter:  events.NoopEmitter{},
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// SetEmitter configures the event sink used for VerificationPerformed audit
// events. Passing nil resets to a no-op.
func (v *Verifier) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		v.emitter = events.NoopEmitter{}
		return
	}
	v.emitter = emitter
}

// SetNowFunc overrides the clock collaborator used to stamp
// VerificationPerformed events.
func (v *Verifier) SetNowFunc(now func() time.Time) {
	if now == nil {
		v.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	v.nowFn = now
}

func (v *Verifier) now() time.Time {
	if v.nowFn == nil {
		return time.Now().UTC()
	}
	return v.nowFn()
}

// VerifyVoterReceipt checks voter's registration and commit/reveal status
// against a provided receipt hash, emitting VerificationPerformed for
// auditability.
func (v *Verifier) VerifyVoterReceipt(b *ballot.Ballot, verifierAddr, voter crypto.Address, receiptHash [32]byte) ReceiptVerification {
	status := b.GetVoterCommitStatus(voter)
	receiptValid := status.ReceiptHash == receiptHash && receiptHash != ([32]byte{})

	result := ReceiptVerification{
		IsRegistered:    registeredRegardlessOfActivation(v.registry, voter),
		HasCommitted:    status.HasCommitted,
		HasRevealed:     status.HasRevealed,
		ReceiptValid:    receiptValid,
		CommitTimestamp: status.CommitTimestamp,
		StoredReceipt:   status.ReceiptHash,
	}

	info := b.GetElectionInfo()
	v.emitter.Emit(events.VerificationPerformed{
		Verifier:     verifierAddr,
		Ballot:       "election:" + info.Name,
		Voter:        voter,
		ReceiptValid: receiptValid,
		Timestamp:    v.now(),
	})

	return result
}

// registeredRegardlessOfActivation reports whether wallet has ever been
// registered, independent of current activation state, for the IsRegistered
// field of ReceiptVerification: a deactivated voter who committed earlier is
// still "registered" for audit purposes, since eligibility is enforced at
// commit time only.
func registeredRegardlessOfActivation(reg *registry.Registry, wallet crypto.Address) bool {
	_, err := reg.GetVoterInfo(wallet)
	return err == nil
}

// VerifyElectionIntegrity checks the core tally invariant: totalReveals must
// equal the sum of candidate vote counts.
func (v *Verifier) VerifyElectionIntegrity(b *ballot.Ballot) IntegrityReport {
	info := b.GetElectionInfo()
	candidates := b.GetAllCandidates()

	var sum uint64
	for _, c := range candidates {
		sum += c.VoteCount
	}

	return IntegrityReport{
		Integrous:           info.TotalReveals == sum,
		TotalReveals:        info.TotalReveals,
		TotalCandidateVotes: sum,
		TotalCommits:        info.TotalCommits,
	}
}

// DidVoterParticipate reports whether voter committed and/or revealed on b.
func (v *Verifier) DidVoterParticipate(b *ballot.Ballot, voter crypto.Address) (committed bool, revealed bool) {
	status := b.GetVoterCommitStatus(voter)
	return status.HasCommitted, status.HasRevealed
}

// GetElectionSummary returns a compact view of a ballot suitable for listing
// UIs and dashboards, along with whether its turnout and leading candidate's
// share clear policy's quorum_bps and pass_threshold_bps. Eligibility is
// counted over the registry's active voters, scoped to the ballot's
// constituency when it has one.
func (v *Verifier) GetElectionSummary(b *ballot.Ballot, policy config.Governance) Summary {
	info := b.GetElectionInfo()

	var eligible []crypto.Address
	if info.ConstituencyID != 0 {
		eligible = v.registry.ListByConstituency(info.ConstituencyID)
	} else {
		eligible = v.registry.ListActive()
	}
	eligibleCount := uint64(len(eligible))

	var turnoutBPS uint32
	if eligibleCount > 0 {
		turnoutBPS = uint32(info.TotalReveals * 10_000 / eligibleCount)
	}

	var leadingCandidate uint64
	var leadingVotes uint64
	for _, c := range b.GetAllCandidates() {
		if c.VoteCount > leadingVotes {
			leadingVotes = c.VoteCount
			leadingCandidate = c.ID
		}
	}
	var leadingShareBPS uint32
	if info.TotalReveals > 0 {
		leadingShareBPS = uint32(leadingVotes * 10_000 / info.TotalReveals)
	}

	return Summary{
		Name:             info.Name,
		TotalCommitters:  info.TotalCommits,
		TotalRevealed:    info.TotalReveals,
		CandidateCount:   info.CandidateCount,
		Finalized:        info.IsFinalized,
		Cancelled:        info.IsCancelled,
		EligibleVoters:   eligibleCount,
		TurnoutBPS:       turnoutBPS,
		QuorumMet:        turnoutBPS >= policy.QuorumBPS,
		LeadingCandidate: leadingCandidate,
		LeadingShareBPS:  leadingShareBPS,
		PassThresholdMet: leadingShareBPS >= policy.PassThresholdBPS,
	}
}

// ComputeCommitHash exposes the same hashing contract as Ballot so external
// callers can verify parity.
func ComputeCommitHash(candidateID uint64, secret [32]byte) [32]byte {
	return ballot.ComputeCommitHash(candidateID, secret)
}
