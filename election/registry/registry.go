// Package registry implements the authoritative voter eligibility source of
// truth: identity-hash uniqueness, constituency binding, and activation
// state. It is read-shared by many ballots and write-owned by admins, so
// all mutable state sits behind a single RWMutex.
package registry

import (
	"crypto/subtle"
	"sync"
	"time"

	electerrors "electionproto/election/errors"
	"electionproto/election/events"

	"electionproto/crypto"
)

// Voter captures the persisted record for a single registered identity.
// Only Active mutates after registration; IdentityHash is permanently
// consumed even across deactivation.
type Voter struct {
	Wallet         crypto.Address
	IdentityHash   [32]byte
	ConstituencyID uint64
	Registered     bool
	Active         bool
	RegisteredAt   time.Time
}

// AccessController implements the two-level owner/admin capability check
// shared by Registry and Factory: an immutable owner plus a mutable set of
// granted admins.
type AccessController struct {
	owner  crypto.Address
	admins map[string]struct{}
}

// NewAccessController constructs a controller with the given owner. The
// owner is set at construction and cannot be removed or transferred.
func NewAccessController(owner crypto.Address) *AccessController {
	return &AccessController{
		owner:  owner,
		admins: make(map[string]struct{}),
	}
}

// Owner reports the configured owner address.
func (a *AccessController) Owner() crypto.Address { return a.owner }

// IsOwner reports whether caller is the configured owner.
func (a *AccessController) IsOwner(caller crypto.Address) bool {
	return addressEqual(a.owner, caller)
}

// IsAdmin reports whether caller is the owner or a granted admin.
func (a *AccessController) IsAdmin(caller crypto.Address) bool {
	if a.IsOwner(caller) {
		return true
	}
	_, ok := a.admins[addrKey(caller)]
	return ok
}

// AddAdmin grants admin capability to addr. Owner-only.
func (a *AccessController) AddAdmin(caller, addr crypto.Address) error {
	if !a.IsOwner(caller) {
		return electerrors.ErrNotOwner
	}
	a.admins[addrKey(addr)] = struct{}{}
	return nil
}

// RemoveAdmin revokes admin capability from addr. Owner-only. The owner
// itself can never be removed because IsAdmin/IsOwner consult a.owner
// independently of the admins set.
func (a *AccessController) RemoveAdmin(caller, addr crypto.Address) error {
	if !a.IsOwner(caller) {
		return electerrors.ErrNotOwner
	}
	delete(a.admins, addrKey(addr))
	return nil
}

// addrKey derives a comparable map key from an address's raw bytes. Address
// itself is not comparable (it carries a slice field internally), matching
// the string(addr.Bytes()) keying convention used for non-comparable addresses.
func addrKey(addr crypto.Address) string {
	return string(addr.Bytes())
}

func addressEqual(a, b crypto.Address) bool {
	ab, bb := a.Bytes(), b.Bytes()
	if len(ab) != len(bb) {
		return false
	}
	return subtle.ConstantTimeCompare(ab, bb) == 1
}

// Registry is the eligibility source of truth consulted by every Ballot.
type Registry struct {
	mu      sync.RWMutex
	access  *AccessController
	nowFn   func() time.Time
	emitter events.Emitter

	byWallet   map[string]*Voter
	identities map[[32]byte]struct{}
	order      []crypto.Address
}

// New constructs a Registry owned by owner.
func New(owner crypto.Address) *Registry {
	return &Registry{
		access:     NewAccessController(owner),
		nowFn:      func() time.Time { return time.Now().UTC() },
		emitter:    events.NoopEmitter{},
		byWallet:   make(map[string]*Voter),
		identities: make(map[[32]byte]struct{}),
	}
}

// SetNowFunc overrides the clock collaborator used to stamp registrations.
func (r *Registry) SetNowFunc(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now == nil {
		r.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	r.nowFn = now
}

// SetEmitter configures the event sink. Passing nil resets to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// Access exposes the registry's access controller so admin grants can be
// managed by the host.
func (r *Registry) Access() *AccessController { return r.access }

func (r *Registry) now() time.Time {
	if r.nowFn == nil {
		return time.Now().UTC()
	}
	return r.nowFn()
}

// RegisterVoter admits a new voter under the given identity hash and
// constituency. Admin-only.
func (r *Registry) RegisterVoter(caller, wallet crypto.Address, identityHash [32]byte, constituencyID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.access.IsAdmin(caller) {
		return electerrors.ErrNotAdmin
	}
	if isZeroAddress(wallet) {
		return electerrors.ErrZeroAddress
	}
	if constituencyID == 0 {
		return electerrors.ErrInvalidConstituency
	}
	if _, exists := r.byWallet[addrKey(wallet)]; exists {
		return electerrors.ErrAlreadyRegistered
	}
	if _, consumed := r.identities[identityHash]; consumed {
		return electerrors.ErrIdentityReused
	}

	now := r.now()
	voter := &Voter{
		Wallet:         wallet,
		IdentityHash:   identityHash,
		ConstituencyID: constituencyID,
		Registered:     true,
		Active:         true,
		RegisteredAt:   now,
	}
	r.byWallet[addrKey(wallet)] = voter
	r.identities[identityHash] = struct{}{}
	r.order = append(r.order, wallet)

	r.emitter.Emit(events.VoterRegistered{
		Wallet:         wallet,
		ConstituencyID: constituencyID,
		Timestamp:      now,
	})
	return nil
}

// DeactivateVoter toggles active to false without releasing the identity
// hash. Admin-only.
func (r *Registry) DeactivateVoter(caller, wallet crypto.Address, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.access.IsAdmin(caller) {
		return electerrors.ErrNotAdmin
	}
	voter, ok := r.byWallet[addrKey(wallet)]
	if !ok {
		return electerrors.ErrNotRegistered
	}
	voter.Active = false
	r.emitter.Emit(events.VoterDeactivated{Wallet: wallet, Reason: reason})
	return nil
}

// ReactivateVoter restores active to true. Admin-only.
func (r *Registry) ReactivateVoter(caller, wallet crypto.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.access.IsAdmin(caller) {
		return electerrors.ErrNotAdmin
	}
	voter, ok := r.byWallet[addrKey(wallet)]
	if !ok {
		return electerrors.ErrNotRegistered
	}
	voter.Active = true
	r.emitter.Emit(events.VoterReactivated{Wallet: wallet})
	return nil
}

// IsEligible reports whether wallet is registered and active.
func (r *Registry) IsEligible(wallet crypto.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	voter, ok := r.byWallet[addrKey(wallet)]
	if !ok {
		return false
	}
	return voter.Registered && voter.Active
}

// GetVoterConstituency returns the constituency id bound to wallet, or 0 and
// an error if the wallet is not registered.
func (r *Registry) GetVoterConstituency(wallet crypto.Address) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	voter, ok := r.byWallet[addrKey(wallet)]
	if !ok {
		return 0, electerrors.ErrNotRegistered
	}
	return voter.ConstituencyID, nil
}

// VerifyIdentity reports whether candidateHash matches the identity hash on
// file for wallet, using a constant-time comparison.
func (r *Registry) VerifyIdentity(wallet crypto.Address, candidateHash [32]byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	voter, ok := r.byWallet[addrKey(wallet)]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare(voter.IdentityHash[:], candidateHash[:]) == 1
}

// GetVoterInfo returns a copy of the persisted voter record.
func (r *Registry) GetVoterInfo(wallet crypto.Address) (Voter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	voter, ok := r.byWallet[addrKey(wallet)]
	if !ok {
		return Voter{}, electerrors.ErrNotRegistered
	}
	return *voter, nil
}

// GetVoterCount returns the total number of ever-registered voters.
func (r *Registry) GetVoterCount() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.order))
}

// GetVoterAtIndex returns the wallet registered at the given enumeration
// index, in registration order.
func (r *Registry) GetVoterAtIndex(index uint64) (crypto.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index >= uint64(len(r.order)) {
		return crypto.Address{}, electerrors.ErrNotRegistered
	}
	return r.order[index], nil
}

// ListActive returns every wallet currently eligible (registered and active).
// Supplements the bare spec with a read-only convenience view in the spirit
// of a governance-style enumeration view.
func (r *Registry) ListActive() []crypto.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]crypto.Address, 0, len(r.order))
	for _, wallet := range r.order {
		if voter := r.byWallet[addrKey(wallet)]; voter != nil && voter.Registered && voter.Active {
			out = append(out, wallet)
		}
	}
	return out
}

// ListByConstituency returns every active wallet bound to constituencyID.
func (r *Registry) ListByConstituency(constituencyID uint64) []crypto.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]crypto.Address, 0)
	for _, wallet := range r.order {
		voter := r.byWallet[addrKey(wallet)]
		if voter != nil && voter.Registered && voter.Active && voter.ConstituencyID == constituencyID {
			out = append(out, wallet)
		}
	}
	return out
}

// VoterSnapshot is the durable representation of a single voter record,
// suitable for persistence by an external store.
type VoterSnapshot struct {
	Wallet         crypto.Address
	IdentityHash   [32]byte
	ConstituencyID uint64
	Active         bool
	RegisteredAt   time.Time
}

// Snapshot returns every registered voter, in registration order.
func (r *Registry) Snapshot() []VoterSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]VoterSnapshot, 0, len(r.order))
	for _, wallet := range r.order {
		v := r.byWallet[addrKey(wallet)]
		if v == nil {
			continue
		}
		out = append(out, VoterSnapshot{
			Wallet:         v.Wallet,
			IdentityHash:   v.IdentityHash,
			ConstituencyID: v.ConstituencyID,
			Active:         v.Active,
			RegisteredAt:   v.RegisteredAt,
		})
	}
	return out
}

// LoadSnapshot restores voter records captured by Snapshot. It bypasses the
// admin and duplicate checks RegisterVoter enforces, since the records were
// already validated when first admitted; callers should only feed it trusted
// data recovered from the registry's own persistence layer.
func (r *Registry) LoadSnapshot(voters []VoterSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, snap := range voters {
		key := addrKey(snap.Wallet)
		if _, exists := r.byWallet[key]; exists {
			continue
		}
		r.byWallet[key] = &Voter{
			Wallet:         snap.Wallet,
			IdentityHash:   snap.IdentityHash,
			ConstituencyID: snap.ConstituencyID,
			Registered:     true,
			Active:         snap.Active,
			RegisteredAt:   snap.RegisteredAt,
		}
		r.identities[snap.IdentityHash] = struct{}{}
		r.order = append(r.order, snap.Wallet)
	}
}

func isZeroAddress(addr crypto.Address) bool {
	b := addr.Bytes()
	if len(b) == 0 {
		return true
	}
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
