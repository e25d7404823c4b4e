// Package events defines the stable election event taxonomy and the typed
// emitters that produce core/types.Event values from it. Shape mirrors the
// teacher's core/events package: each event implements EventType() and
// Event(), and is delivered through an Emitter so hosts can plug in their own
// sink without the protocol packages depending on a concrete transport.
package events

import (
	"encoding/hex"
	"strconv"
	"time"

	"electionproto/core/types"
	"electionproto/crypto"
)

const (
	TypeVoterRegistered    = "election.voter.registered"
	TypeVoterDeactivated   = "election.voter.deactivated"
	TypeVoterReactivated   = "election.voter.reactivated"
	TypeElectionCreated    = "election.created"
	TypeVoteCommitted      = "election.vote.committed"
	TypeVoteRevealed       = "election.vote.revealed"
	TypeElectionFinalized  = "election.finalized"
	TypeElectionCancelled  = "election.cancelled"
	TypeVerificationPerformed = "election.verification.performed"
)

// Emitter receives typed election events. Implementations must not block or
// perform external I/O synchronously with respect to the caller's state
// mutation; NoopEmitter is the default when no sink is wired.
type Emitter interface {
	Emit(Event)
}

// Event is the common interface satisfied by every election event.
type Event interface {
	EventType() string
	Event() *types.Event
}

// NoopEmitter discards every event. It is the default emitter so engines
// remain usable without a host wiring a real sink.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

func ts(t time.Time) string { return strconv.FormatInt(t.Unix(), 10) }

// VoterRegistered is emitted when the registry admits a new voter.
type VoterRegistered struct {
	Wallet         crypto.Address
	ConstituencyID uint64
	Timestamp      time.Time
}

func (VoterRegistered) EventType() string { return TypeVoterRegistered }

func (e VoterRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeVoterRegistered,
		Attributes: map[string]string{
			"wallet":         e.Wallet.String(),
			"constituencyId": strconv.FormatUint(e.ConstituencyID, 10),
			"timestamp":      ts(e.Timestamp),
		},
	}
}

// VoterDeactivated is emitted when an admin suspends a voter's eligibility.
type VoterDeactivated struct {
	Wallet crypto.Address
	Reason string
}

func (VoterDeactivated) EventType() string { return TypeVoterDeactivated }

func (e VoterDeactivated) Event() *types.Event {
	return &types.Event{
		Type: TypeVoterDeactivated,
		Attributes: map[string]string{
			"wallet": e.Wallet.String(),
			"reason": e.Reason,
		},
	}
}

// VoterReactivated is emitted when an admin restores a voter's eligibility.
type VoterReactivated struct {
	Wallet crypto.Address
}

func (VoterReactivated) EventType() string { return TypeVoterReactivated }

func (e VoterReactivated) Event() *types.Event {
	return &types.Event{
		Type:       TypeVoterReactivated,
		Attributes: map[string]string{"wallet": e.Wallet.String()},
	}
}

// ElectionCreated is emitted by the factory when a new ballot is instantiated.
type ElectionCreated struct {
	ElectionID      uint64
	Name            string
	BallotRef       string
	CommitDeadline  time.Time
	RevealDeadline  time.Time
	CreatedBy       crypto.Address
}

func (ElectionCreated) EventType() string { return TypeElectionCreated }

func (e ElectionCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeElectionCreated,
		Attributes: map[string]string{
			"electionId":     strconv.FormatUint(e.ElectionID, 10),
			"name":           e.Name,
			"ballotRef":      e.BallotRef,
			"commitDeadline": ts(e.CommitDeadline),
			"revealDeadline": ts(e.RevealDeadline),
			"createdBy":      e.CreatedBy.String(),
		},
	}
}

// VoteCommitted is emitted when a voter submits a binding commitment.
type VoteCommitted struct {
	Voter       crypto.Address
	ReceiptHash [32]byte
	Timestamp   time.Time
}

func (VoteCommitted) EventType() string { return TypeVoteCommitted }

func (e VoteCommitted) Event() *types.Event {
	return &types.Event{
		Type: TypeVoteCommitted,
		Attributes: map[string]string{
			"voter":       e.Voter.String(),
			"receiptHash": hex.EncodeToString(e.ReceiptHash[:]),
			"timestamp":   ts(e.Timestamp),
		},
	}
}

// VoteRevealed is emitted when a voter discloses their candidate choice.
type VoteRevealed struct {
	Voter     crypto.Address
	Timestamp time.Time
}

func (VoteRevealed) EventType() string { return TypeVoteRevealed }

func (e VoteRevealed) Event() *types.Event {
	return &types.Event{
		Type: TypeVoteRevealed,
		Attributes: map[string]string{
			"voter":     e.Voter.String(),
			"timestamp": ts(e.Timestamp),
		},
	}
}

// ElectionFinalized is emitted when a ballot's results become final.
type ElectionFinalized struct {
	TotalReveals uint64
	Timestamp    time.Time
}

func (ElectionFinalized) EventType() string { return TypeElectionFinalized }

func (e ElectionFinalized) Event() *types.Event {
	return &types.Event{
		Type: TypeElectionFinalized,
		Attributes: map[string]string{
			"totalReveals": strconv.FormatUint(e.TotalReveals, 10),
			"timestamp":    ts(e.Timestamp),
		},
	}
}

// ElectionCancelled is emitted when an admin terminates a ballot early.
type ElectionCancelled struct {
	Reason    string
	Timestamp time.Time
}

func (ElectionCancelled) EventType() string { return TypeElectionCancelled }

func (e ElectionCancelled) Event() *types.Event {
	return &types.Event{
		Type: TypeElectionCancelled,
		Attributes: map[string]string{
			"reason":    e.Reason,
			"timestamp": ts(e.Timestamp),
		},
	}
}

// VerificationPerformed is emitted by the verifier whenever a receipt check
// is executed, for auditability of read access. Integrity checks emit no
// event.
type VerificationPerformed struct {
	Verifier      crypto.Address
	Ballot        string
	Voter         crypto.Address
	ReceiptValid  bool
	Timestamp     time.Time
}

func (VerificationPerformed) EventType() string { return TypeVerificationPerformed }

func (e VerificationPerformed) Event() *types.Event {
	return &types.Event{
		Type: TypeVerificationPerformed,
		Attributes: map[string]string{
			"verifier":     e.Verifier.String(),
			"ballot":       e.Ballot,
			"voter":        e.Voter.String(),
			"receiptValid": strconv.FormatBool(e.ReceiptValid),
			"timestamp":    ts(e.Timestamp),
		},
	}
}

