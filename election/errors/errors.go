// Package errors enumerates the closed set of failure kinds the election
// protocol can return. Every mutating operation across registry, ballot,
// and factory fails with one of these sentinels (optionally wrapped with
// fmt.Errorf for extra context) so callers can branch with errors.Is.
package errors

import stderrors "errors"

var (
	// Registry errors.
	ErrZeroAddress        = stderrors.New("election: zero address")
	ErrNotOwner           = stderrors.New("election: caller is not the owner")
	ErrNotAdmin           = stderrors.New("election: caller is not an admin")
	ErrAlreadyRegistered  = stderrors.New("election: wallet already registered")
	ErrIdentityReused     = stderrors.New("election: identity hash already consumed")
	ErrInvalidConstituency = stderrors.New("election: invalid constituency id")
	ErrNotRegistered      = stderrors.New("election: voter not registered")

	// Ballot errors.
	ErrWrongPhase        = stderrors.New("election: operation not permitted in current phase")
	ErrElectionCancelled = stderrors.New("election: election has been cancelled")
	ErrEmptyHash         = stderrors.New("election: hash must not be zero")
	ErrAlreadyCommitted  = stderrors.New("election: voter has already committed")
	ErrNoCommit          = stderrors.New("election: voter has no commit on record")
	ErrAlreadyRevealed   = stderrors.New("election: voter has already revealed")
	ErrInvalidCandidate  = stderrors.New("election: invalid candidate id")
	ErrHashMismatch      = stderrors.New("election: revealed preimage does not match commit hash")
	ErrNotEligible       = stderrors.New("election: voter is not eligible")
	ErrWrongConstituency = stderrors.New("election: voter does not belong to the ballot's constituency")
	ErrRevealNotEnded    = stderrors.New("election: reveal window has not ended")
	ErrAlreadyFinalized  = stderrors.New("election: election already finalized")
	ErrCanOnlyExtend     = stderrors.New("election: deadlines may only move forward")
	ErrDeadlineOrdering  = stderrors.New("election: commit deadline must precede reveal deadline")
	ErrResultsNotReady   = stderrors.New("election: results are not ready")

	// Factory errors.
	ErrBallotNotFound        = stderrors.New("election: ballot not found")
	ErrEmptyName             = stderrors.New("election: name must not be empty")
	ErrCandidateCountMismatch = stderrors.New("election: candidate name/party count mismatch")
)
