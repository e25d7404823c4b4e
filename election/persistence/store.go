// Package persistence adapts the election registry to the generic key-value
// storage.Database abstraction so the registry can survive a daemon restart
// without pulling in a full chain host.
package persistence

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"electionproto/crypto"
	"electionproto/election/registry"
	"electionproto/storage"
)

const registrySnapshotKey = "election/registry/snapshot/v1"

type wireVoter struct {
	Wallet         string `json:"wallet"`
	IdentityHash   string `json:"identityHash"`
	ConstituencyID uint64 `json:"constituencyId"`
	Active         bool   `json:"active"`
	RegisteredAt   int64  `json:"registeredAt"`
}

// SaveRegistry serializes every registered voter into db under a fixed key.
func SaveRegistry(db storage.Database, reg *registry.Registry) error {
	snaps := reg.Snapshot()
	wire := make([]wireVoter, 0, len(snaps))
	for _, s := range snaps {
		wire = append(wire, wireVoter{
			Wallet:         s.Wallet.String(),
			IdentityHash:   fmt.Sprintf("%x", s.IdentityHash),
			ConstituencyID: s.ConstituencyID,
			Active:         s.Active,
			RegisteredAt:   s.RegisteredAt.Unix(),
		})
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("marshal registry snapshot: %w", err)
	}
	return db.Put([]byte(registrySnapshotKey), payload)
}

// LoadRegistry restores a previously saved snapshot into reg. A missing key
// is not an error: it just means the registry starts empty.
func LoadRegistry(db storage.Database, reg *registry.Registry) error {
	raw, err := db.Get([]byte(registrySnapshotKey))
	if err != nil {
		return nil
	}
	var wire []wireVoter
	if err := json.Unmarshal(raw, &wire); err != nil {
		return fmt.Errorf("unmarshal registry snapshot: %w", err)
	}

	snaps := make([]registry.VoterSnapshot, 0, len(wire))
	for _, w := range wire {
		addr, err := crypto.DecodeAddress(w.Wallet)
		if err != nil {
			return fmt.Errorf("decode snapshot wallet %q: %w", w.Wallet, err)
		}
		var identity [32]byte
		decoded, err := hex.DecodeString(w.IdentityHash)
		if err != nil {
			return fmt.Errorf("decode snapshot identity hash: %w", err)
		}
		copy(identity[:], decoded)

		snaps = append(snaps, registry.VoterSnapshot{
			Wallet:         addr,
			IdentityHash:   identity,
			ConstituencyID: w.ConstituencyID,
			Active:         w.Active,
			RegisteredAt:   time.Unix(w.RegisteredAt, 0).UTC(),
		})
	}
	reg.LoadSnapshot(snaps)
	return nil
}
