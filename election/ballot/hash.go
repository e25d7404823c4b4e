package ballot

import (
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// ComputeCommitHash is the pure hashing helper behind a vote commitment:
// keccak256 of the 32-byte big-endian candidate id concatenated with the
// 32-byte secret, with no length prefixes. It must be callable identically
// by external wallets computing a commitment and by the Ballot verifying a
// reveal.
func ComputeCommitHash(candidateID uint64, secret [32]byte) [32]byte {
	idWord := uint256.NewInt(candidateID).Bytes32()

	h := sha3.NewLegacyKeccak256()
	h.Write(idWord[:])
	h.Write(secret[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ComputeReceiptHash binds voter, commit hash, timestamp, and election id into
// a single deterministic digest:
// keccak256(20-byte voter || 32-byte commit hash || 32-byte BE timestamp ||
// 32-byte BE election id).
func ComputeReceiptHash(voter [20]byte, commitHash [32]byte, timestamp uint64, electionID uint64) [32]byte {
	tsWord := uint256.NewInt(timestamp).Bytes32()
	idWord := uint256.NewInt(electionID).Bytes32()

	h := sha3.NewLegacyKeccak256()
	h.Write(voter[:])
	h.Write(commitHash[:])
	h.Write(tsWord[:])
	h.Write(idWord[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
