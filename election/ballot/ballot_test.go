package ballot

import (
	"bytes"
	"encoding/hex"
	"testing"
	"time"

	electerrors "electionproto/election/errors"
	"electionproto/election/events"

	"electionproto/crypto"
)

func newTestAddress(fill byte) crypto.Address {
	return crypto.MustNewAddress(crypto.ElectPrefix, bytes.Repeat([]byte{fill}, 20))
}

func newSecret(fill byte) [32]byte {
	var s [32]byte
	copy(s[:], bytes.Repeat([]byte{fill}, 32))
	return s
}

// mockRegistry is a minimal in-memory EligibilityChecker, a hand-rolled
// collaborator mock rather than a generated one.
type mockRegistry struct {
	eligible      map[string]bool
	constituency  map[string]uint64
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		eligible:     make(map[string]bool),
		constituency: make(map[string]uint64),
	}
}

func (m *mockRegistry) admit(wallet crypto.Address, constituencyID uint64) {
	key := string(wallet.Bytes())
	m.eligible[key] = true
	m.constituency[key] = constituencyID
}

func (m *mockRegistry) suspend(wallet crypto.Address) {
	m.eligible[string(wallet.Bytes())] = false
}

func (m *mockRegistry) IsEligible(wallet crypto.Address) bool {
	return m.eligible[string(wallet.Bytes())]
}

func (m *mockRegistry) GetVoterConstituency(wallet crypto.Address) (uint64, error) {
	key := string(wallet.Bytes())
	if !m.eligible[key] {
		return 0, electerrors.ErrNotRegistered
	}
	return m.constituency[key], nil
}

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(e events.Event) {
	r.events = append(r.events, e)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustHexDecode(t *testing.T, s string) [32]byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("invalid hex fixture: %v", err)
	}
	var out [32]byte
	copy(out[:], b)
	return out
}

// TestComputeCommitHashVector pins the hashing contract to the keccak-256
// (not NIST SHA3-256) reference vector: keccak(u256(1) || 0x0...01).
func TestComputeCommitHashVector(t *testing.T) {
	want := mustHexDecode(t, "5fe7f977e71dba2ea1a68e21057beebb9be2ac30c6410aa38d4f3fbe41dcffd2")
	var secret [32]byte
	secret[31] = 1
	got := ComputeCommitHash(1, secret)
	if got != want {
		t.Fatalf("commit hash mismatch: got %x, want %x", got, want)
	}
}

func newTestConfig(admin crypto.Address, now time.Time) Config {
	return Config{
		ElectionID:       1,
		Name:             "E",
		Admin:            admin,
		CommitDeadline:   now.Add(1 * time.Hour),
		RevealDeadline:   now.Add(2 * time.Hour),
		CandidateNames:   []string{"Alice", "Bob", "Carol"},
		CandidateParties: []string{"A", "B", "C"},
	}
}

// TestScenarioAHappyPathTwoVoters matches spec Scenario A.
func TestScenarioAHappyPathTwoVoters(t *testing.T) {
	admin := newTestAddress(0x01)
	v1 := newTestAddress(0x02)
	v2 := newTestAddress(0x03)
	start := time.Unix(1_700_000_000, 0).UTC()

	reg := newMockRegistry()
	reg.admit(v1, 1)
	reg.admit(v2, 1)

	cfg := newTestConfig(admin, start)
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error constructing ballot: %v", err)
	}
	clock := start
	b.SetNowFunc(func() time.Time { return clock })

	s1, s2 := newSecret(0x11), newSecret(0x22)
	if err := b.CommitVote(v1, ComputeCommitHash(1, s1)); err != nil {
		t.Fatalf("v1 commit failed: %v", err)
	}
	if err := b.CommitVote(v2, ComputeCommitHash(2, s2)); err != nil {
		t.Fatalf("v2 commit failed: %v", err)
	}

	clock = start.Add(1*time.Hour + time.Second)
	if err := b.RevealVote(v1, 1, s1); err != nil {
		t.Fatalf("v1 reveal failed: %v", err)
	}
	if err := b.RevealVote(v2, 2, s2); err != nil {
		t.Fatalf("v2 reveal failed: %v", err)
	}

	clock = start.Add(2*time.Hour + time.Second)
	if err := b.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	results, err := b.GetResults()
	if err != nil {
		t.Fatalf("unexpected error fetching results: %v", err)
	}
	if results.Candidates[0].VoteCount != 1 || results.Candidates[1].VoteCount != 1 || results.Candidates[2].VoteCount != 0 {
		t.Fatalf("unexpected vote counts: %+v", results.Candidates)
	}
	if results.TotalCommits != 2 || results.TotalReveals != 2 {
		t.Fatalf("unexpected totals: commits=%d reveals=%d", results.TotalCommits, results.TotalReveals)
	}
}

// TestScenarioBWrongSecretOnReveal matches spec Scenario B.
func TestScenarioBWrongSecretOnReveal(t *testing.T) {
	admin := newTestAddress(0x01)
	v1 := newTestAddress(0x02)
	start := time.Unix(1_700_000_000, 0).UTC()

	reg := newMockRegistry()
	reg.admit(v1, 1)

	cfg := newTestConfig(admin, start)
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock := start
	b.SetNowFunc(func() time.Time { return clock })

	s1 := newSecret(0x11)
	wrong := newSecret(0x99)
	if err := b.CommitVote(v1, ComputeCommitHash(1, s1)); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	clock = start.Add(1*time.Hour + time.Second)
	if err := b.RevealVote(v1, 1, wrong); err != electerrors.ErrHashMismatch {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}
	if err := b.RevealVote(v1, 1, s1); err != nil {
		t.Fatalf("expected retry with correct secret to succeed, got %v", err)
	}
}

// TestScenarioCConstituencyRestriction matches spec Scenario C.
func TestScenarioCConstituencyRestriction(t *testing.T) {
	admin := newTestAddress(0x01)
	v1 := newTestAddress(0x02)
	v3 := newTestAddress(0x03)
	start := time.Unix(1_700_000_000, 0).UTC()

	reg := newMockRegistry()
	reg.admit(v1, 1)
	reg.admit(v3, 2)

	cfg := newTestConfig(admin, start)
	cfg.ConstituencyID = 1
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.SetNowFunc(fixedClock(start))

	if err := b.CommitVote(v1, ComputeCommitHash(1, newSecret(0x11))); err != nil {
		t.Fatalf("v1 commit should succeed, got %v", err)
	}
	if err := b.CommitVote(v3, ComputeCommitHash(1, newSecret(0x22))); err != electerrors.ErrWrongConstituency {
		t.Fatalf("expected ErrWrongConstituency, got %v", err)
	}
}

// TestScenarioDDoubleCommitAndDoubleReveal matches spec Scenario D.
func TestScenarioDDoubleCommitAndDoubleReveal(t *testing.T) {
	admin := newTestAddress(0x01)
	v1 := newTestAddress(0x02)
	start := time.Unix(1_700_000_000, 0).UTC()

	reg := newMockRegistry()
	reg.admit(v1, 1)

	cfg := newTestConfig(admin, start)
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock := start
	b.SetNowFunc(func() time.Time { return clock })

	s1 := newSecret(0x11)
	if err := b.CommitVote(v1, ComputeCommitHash(1, s1)); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}
	if err := b.CommitVote(v1, ComputeCommitHash(1, s1)); err != electerrors.ErrAlreadyCommitted {
		t.Fatalf("expected ErrAlreadyCommitted, got %v", err)
	}

	clock = start.Add(1*time.Hour + time.Second)
	if err := b.RevealVote(v1, 1, s1); err != nil {
		t.Fatalf("first reveal failed: %v", err)
	}
	if err := b.RevealVote(v1, 1, s1); err != electerrors.ErrAlreadyRevealed {
		t.Fatalf("expected ErrAlreadyRevealed, got %v", err)
	}
}

// TestScenarioECancellationMidCommit matches spec Scenario E.
func TestScenarioECancellationMidCommit(t *testing.T) {
	admin := newTestAddress(0x01)
	v1 := newTestAddress(0x02)
	v2 := newTestAddress(0x03)
	start := time.Unix(1_700_000_000, 0).UTC()

	reg := newMockRegistry()
	reg.admit(v1, 1)
	reg.admit(v2, 1)

	cfg := newTestConfig(admin, start)
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock := start
	b.SetNowFunc(func() time.Time { return clock })

	s1 := newSecret(0x11)
	if err := b.CommitVote(v1, ComputeCommitHash(1, s1)); err != nil {
		t.Fatalf("v1 commit failed: %v", err)
	}
	if err := b.CancelElection(admin, "audit failure"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := b.CommitVote(v2, ComputeCommitHash(2, newSecret(0x22))); err != electerrors.ErrElectionCancelled {
		t.Fatalf("expected ErrElectionCancelled for v2 commit, got %v", err)
	}

	clock = start.Add(1*time.Hour + time.Second)
	if err := b.RevealVote(v1, 1, s1); err != electerrors.ErrElectionCancelled {
		t.Fatalf("expected ErrElectionCancelled for v1 reveal, got %v", err)
	}

	clock = start.Add(2*time.Hour + time.Second)
	if err := b.Finalize(); err != electerrors.ErrElectionCancelled {
		t.Fatalf("expected finalize to always fail after cancellation, got %v", err)
	}

	info := b.GetElectionInfo()
	if info.TotalCommits != 1 || info.TotalReveals != 0 {
		t.Fatalf("unexpected counters after cancellation: commits=%d reveals=%d", info.TotalCommits, info.TotalReveals)
	}
	candidates := b.GetAllCandidates()
	for _, c := range candidates {
		if c.VoteCount != 0 {
			t.Fatalf("expected candidate vote counts to remain zero, got %+v", c)
		}
	}
}

// TestScenarioFReceiptVerification matches spec Scenario F.
func TestScenarioFReceiptVerification(t *testing.T) {
	admin := newTestAddress(0x01)
	v1 := newTestAddress(0x02)
	v2 := newTestAddress(0x03)
	start := time.Unix(1_700_000_000, 0).UTC()

	reg := newMockRegistry()
	reg.admit(v1, 1)
	reg.admit(v2, 1)

	cfg := newTestConfig(admin, start)
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.SetNowFunc(fixedClock(start))

	if err := b.CommitVote(v1, ComputeCommitHash(1, newSecret(0x11))); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	status := b.GetVoterCommitStatus(v1)
	receipt := status.ReceiptHash

	if !b.VerifyReceipt(v1, receipt) {
		t.Fatalf("expected valid receipt to verify")
	}
	corrupted := receipt
	corrupted[0] ^= 0x01
	if b.VerifyReceipt(v1, corrupted) {
		t.Fatalf("expected corrupted receipt to fail verification")
	}
	if b.VerifyReceipt(v2, receipt) {
		t.Fatalf("expected receipt bound to a different voter to fail verification")
	}
	if b.VerifyReceipt(v1, [32]byte{}) {
		t.Fatalf("expected zero receipt to fail verification")
	}
}

func TestCommitVoteBoundaryAtDeadline(t *testing.T) {
	admin := newTestAddress(0x01)
	v1 := newTestAddress(0x02)
	start := time.Unix(1_700_000_000, 0).UTC()

	reg := newMockRegistry()
	reg.admit(v1, 1)

	cfg := newTestConfig(admin, start)
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b.SetNowFunc(fixedClock(cfg.CommitDeadline))
	if err := b.CommitVote(v1, ComputeCommitHash(1, newSecret(0x11))); err != nil {
		t.Fatalf("commit exactly at deadline should succeed, got %v", err)
	}

	v2 := newTestAddress(0x03)
	reg.admit(v2, 1)
	b.SetNowFunc(fixedClock(cfg.CommitDeadline.Add(time.Second)))
	if err := b.CommitVote(v2, ComputeCommitHash(1, newSecret(0x22))); err != electerrors.ErrWrongPhase {
		t.Fatalf("commit one second after deadline should fail WrongPhase, got %v", err)
	}
}

func TestRevealVoteBoundaryAtDeadline(t *testing.T) {
	admin := newTestAddress(0x01)
	v1 := newTestAddress(0x02)
	start := time.Unix(1_700_000_000, 0).UTC()

	reg := newMockRegistry()
	reg.admit(v1, 1)

	cfg := newTestConfig(admin, start)
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.SetNowFunc(fixedClock(start))

	s1 := newSecret(0x11)
	if err := b.CommitVote(v1, ComputeCommitHash(1, s1)); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	b.SetNowFunc(fixedClock(cfg.RevealDeadline))
	if err := b.RevealVote(v1, 1, s1); err != nil {
		t.Fatalf("reveal exactly at reveal deadline should succeed, got %v", err)
	}
}

func TestFinalizeBoundaryAtDeadline(t *testing.T) {
	admin := newTestAddress(0x01)
	start := time.Unix(1_700_000_000, 0).UTC()
	reg := newMockRegistry()

	cfg := newTestConfig(admin, start)
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b.SetNowFunc(fixedClock(cfg.RevealDeadline))
	if err := b.Finalize(); err != electerrors.ErrRevealNotEnded {
		t.Fatalf("finalize exactly at reveal deadline should fail RevealNotEnded, got %v", err)
	}

	b.SetNowFunc(fixedClock(cfg.RevealDeadline.Add(time.Second)))
	if err := b.Finalize(); err != nil {
		t.Fatalf("finalize one second after reveal deadline should succeed, got %v", err)
	}
}

func TestNewRejectsBadDeadlineOrdering(t *testing.T) {
	admin := newTestAddress(0x01)
	start := time.Unix(1_700_000_000, 0).UTC()
	reg := newMockRegistry()

	cfg := newTestConfig(admin, start)
	cfg.RevealDeadline = cfg.CommitDeadline
	if _, err := New(cfg, reg, start); err != electerrors.ErrDeadlineOrdering {
		t.Fatalf("expected ErrDeadlineOrdering when commit==reveal deadline, got %v", err)
	}

	cfg2 := newTestConfig(admin, start)
	cfg2.CommitDeadline = start.Add(-time.Hour)
	if _, err := New(cfg2, reg, start); err != electerrors.ErrDeadlineOrdering {
		t.Fatalf("expected ErrDeadlineOrdering for a commit deadline in the past, got %v", err)
	}
}

func TestCommitVoteRejectsIneligibleVoter(t *testing.T) {
	admin := newTestAddress(0x01)
	outsider := newTestAddress(0x02)
	start := time.Unix(1_700_000_000, 0).UTC()
	reg := newMockRegistry()

	cfg := newTestConfig(admin, start)
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.SetNowFunc(fixedClock(start))

	if err := b.CommitVote(outsider, ComputeCommitHash(1, newSecret(0x11))); err != electerrors.ErrNotEligible {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestCommitVoteRejectsEmptyHash(t *testing.T) {
	admin := newTestAddress(0x01)
	v1 := newTestAddress(0x02)
	start := time.Unix(1_700_000_000, 0).UTC()
	reg := newMockRegistry()
	reg.admit(v1, 1)

	cfg := newTestConfig(admin, start)
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.SetNowFunc(fixedClock(start))

	if err := b.CommitVote(v1, [32]byte{}); err != electerrors.ErrEmptyHash {
		t.Fatalf("expected ErrEmptyHash, got %v", err)
	}
}

func TestRevealVoteRejectsInvalidCandidate(t *testing.T) {
	admin := newTestAddress(0x01)
	v1 := newTestAddress(0x02)
	start := time.Unix(1_700_000_000, 0).UTC()
	reg := newMockRegistry()
	reg.admit(v1, 1)

	cfg := newTestConfig(admin, start)
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock := start
	b.SetNowFunc(func() time.Time { return clock })

	s1 := newSecret(0x11)
	if err := b.CommitVote(v1, ComputeCommitHash(99, s1)); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	clock = start.Add(1*time.Hour + time.Second)
	if err := b.RevealVote(v1, 99, s1); err != electerrors.ErrInvalidCandidate {
		t.Fatalf("expected ErrInvalidCandidate, got %v", err)
	}
}

func TestExtendCommitDeadlineOnlyMovesForward(t *testing.T) {
	admin := newTestAddress(0x01)
	stranger := newTestAddress(0x02)
	start := time.Unix(1_700_000_000, 0).UTC()
	reg := newMockRegistry()

	cfg := newTestConfig(admin, start)
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := b.ExtendCommitDeadline(stranger, cfg.CommitDeadline.Add(time.Hour)); err != electerrors.ErrNotAdmin {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	if err := b.ExtendCommitDeadline(admin, cfg.CommitDeadline.Add(-time.Minute)); err != electerrors.ErrCanOnlyExtend {
		t.Fatalf("expected ErrCanOnlyExtend for a backward move, got %v", err)
	}
	if err := b.ExtendCommitDeadline(admin, cfg.RevealDeadline.Add(time.Hour)); err != electerrors.ErrDeadlineOrdering {
		t.Fatalf("expected ErrDeadlineOrdering when new commit deadline would not precede reveal deadline, got %v", err)
	}
	if err := b.ExtendCommitDeadline(admin, cfg.CommitDeadline.Add(time.Minute)); err != nil {
		t.Fatalf("unexpected error on a valid forward extension: %v", err)
	}
}

// TestExtendCommitDeadlineReopensCommitFromReveal exercises the documented
// open-question behavior: extending the commit deadline while already past
// it re-opens the COMMIT phase as a pure consequence of CurrentPhase.
func TestExtendCommitDeadlineReopensCommitFromReveal(t *testing.T) {
	admin := newTestAddress(0x01)
	v1 := newTestAddress(0x02)
	start := time.Unix(1_700_000_000, 0).UTC()
	reg := newMockRegistry()
	reg.admit(v1, 1)

	cfg := newTestConfig(admin, start)
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock := cfg.CommitDeadline.Add(time.Minute)
	b.SetNowFunc(func() time.Time { return clock })
	if b.CurrentPhase() != PhaseReveal {
		t.Fatalf("expected REVEAL phase before extension")
	}

	if err := b.ExtendCommitDeadline(admin, clock.Add(30*time.Minute)); err != nil {
		t.Fatalf("unexpected error extending commit deadline: %v", err)
	}
	if b.CurrentPhase() != PhaseCommit {
		t.Fatalf("expected extension to re-open COMMIT phase")
	}
	if err := b.CommitVote(v1, ComputeCommitHash(1, newSecret(0x11))); err != nil {
		t.Fatalf("commit should now succeed in the re-opened COMMIT phase: %v", err)
	}
}

func TestGetResultsNotReadyBeforeDeadlineOrFinalization(t *testing.T) {
	admin := newTestAddress(0x01)
	start := time.Unix(1_700_000_000, 0).UTC()
	reg := newMockRegistry()

	cfg := newTestConfig(admin, start)
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.SetNowFunc(fixedClock(start))

	if _, err := b.GetResults(); err != electerrors.ErrResultsNotReady {
		t.Fatalf("expected ErrResultsNotReady, got %v", err)
	}
}

func TestAuditLogRecordsLifecycleEvents(t *testing.T) {
	admin := newTestAddress(0x01)
	v1 := newTestAddress(0x02)
	start := time.Unix(1_700_000_000, 0).UTC()
	reg := newMockRegistry()
	reg.admit(v1, 1)

	cfg := newTestConfig(admin, start)
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.SetNowFunc(fixedClock(start))

	if err := b.CommitVote(v1, ComputeCommitHash(1, newSecret(0x11))); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := b.CancelElection(admin, "audit failure"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	log := b.AuditLog()
	if len(log) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(log))
	}
	if log[0].Event != AuditEventCommitted || log[1].Event != AuditEventCancelled {
		t.Fatalf("unexpected audit event sequence: %+v", log)
	}
	if log[0].Sequence >= log[1].Sequence {
		t.Fatalf("expected monotonically increasing audit sequence numbers")
	}
}

func TestBallotEmitsEventsOnCommitAndReveal(t *testing.T) {
	admin := newTestAddress(0x01)
	v1 := newTestAddress(0x02)
	start := time.Unix(1_700_000_000, 0).UTC()
	reg := newMockRegistry()
	reg.admit(v1, 1)

	cfg := newTestConfig(admin, start)
	b, err := New(cfg, reg, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	emitter := &recordingEmitter{}
	b.SetEmitter(emitter)
	clock := start
	b.SetNowFunc(func() time.Time { return clock })

	s1 := newSecret(0x11)
	if err := b.CommitVote(v1, ComputeCommitHash(1, s1)); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	clock = start.Add(1*time.Hour + time.Second)
	if err := b.RevealVote(v1, 1, s1); err != nil {
		t.Fatalf("reveal failed: %v", err)
	}

	if len(emitter.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(emitter.events))
	}
	if emitter.events[0].EventType() != events.TypeVoteCommitted {
		t.Fatalf("expected VoteCommitted first, got %s", emitter.events[0].EventType())
	}
	if emitter.events[1].EventType() != events.TypeVoteRevealed {
		t.Fatalf("expected VoteRevealed second, got %s", emitter.events[1].EventType())
	}
}
