package ballot

import (
	"time"

	"electionproto/crypto"
)

// Phase identifies the temporal state of a ballot, determined purely by the
// current clock and the two configured deadlines.
type Phase uint8

const (
	PhaseCommit Phase = iota
	PhaseReveal
	PhaseTally
)

// String renders the phase for logs and CLI output.
func (p Phase) String() string {
	switch p {
	case PhaseCommit:
		return "commit"
	case PhaseReveal:
		return "reveal"
	case PhaseTally:
		return "tally"
	default:
		return "unknown"
	}
}

// Candidate is a 1-indexed, dense ballot option. VoteCount is a monotonically
// non-decreasing counter incremented exactly once per accepted reveal.
type Candidate struct {
	ID        uint64
	Name      string
	Party     string
	VoteCount uint64
}

// VoterPhase enumerates the per-voter tagged-union state: None -> Committed
// -> Revealed, with no backward transitions.
type VoterPhase uint8

const (
	VoterNone VoterPhase = iota
	VoterCommitted
	VoterRevealed
)

// VoteCommit is the per-(ballot, wallet) record. CommitHash and ReceiptHash
// are immutable once set; State (Committed to Revealed) and
// RevealedCandidateID mutate exactly once, on a successful reveal.
type VoteCommit struct {
	State               VoterPhase
	CommitHash          [32]byte
	ReceiptHash          [32]byte
	RevealedCandidateID uint64
	CommitTimestamp     time.Time
}

// HasCommitted reports whether the voter has a commit on record.
func (v *VoteCommit) HasCommitted() bool {
	return v != nil && v.State != VoterNone
}

// HasRevealed reports whether the voter has already revealed.
func (v *VoteCommit) HasRevealed() bool {
	return v != nil && v.State == VoterRevealed
}

// AuditEvent identifies the lifecycle milestone captured by a ballot audit
// record.
type AuditEvent string

const (
	AuditEventCommitted  AuditEvent = "committed"
	AuditEventRevealed   AuditEvent = "revealed"
	AuditEventFinalized  AuditEvent = "finalized"
	AuditEventCancelled  AuditEvent = "cancelled"
	AuditEventExtended   AuditEvent = "extended"
)

// AuditRecord captures an immutable ballot lifecycle entry. Records are
// appended in a monotonically increasing sequence so operators can
// reconstruct exact ordering without relying solely on the external event
// stream.
type AuditRecord struct {
	Sequence   uint64
	Timestamp  time.Time
	Event      AuditEvent
	Actor      crypto.Address
	Details    string
}

// Info is a read-only snapshot of a ballot's configuration and counters,
// returned by GetElectionInfo.
type Info struct {
	ElectionID     uint64
	Name           string
	Admin          crypto.Address
	ConstituencyID uint64
	CommitDeadline time.Time
	RevealDeadline time.Time
	TotalCommits   uint64
	TotalReveals   uint64
	IsCancelled    bool
	IsFinalized    bool
	CandidateCount int
}

// Results is returned by GetResults once results are permitted to be read.
type Results struct {
	Candidates   []Candidate
	TotalCommits uint64
	TotalReveals uint64
}

// CommitStatus is a read-only snapshot of a single voter's ballot state.
type CommitStatus struct {
	HasCommitted        bool
	HasRevealed         bool
	RevealedCandidateID uint64
	CommitTimestamp     time.Time
	ReceiptHash         [32]byte
}
