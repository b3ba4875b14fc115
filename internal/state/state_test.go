package state_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"PoolLedger/internal/pool"
	"PoolLedger/internal/state"
)

const (
	votingPeriod = int64(7 * 24 * 60 * 60 * 1_000_000)
	maxVoters    = 100
)

// ============================================================================
// Test: PolicyManager
// ============================================================================

func TestPolicyManager_CreatePolicy_SequentialIDs(t *testing.T) {
	pm := state.NewPolicyManager(10)

	p1, err := pm.CreatePolicy(uuid.New(), "AV-001", 50, 1_000_000, 2_000_000, 1_000)
	if err != nil {
		t.Fatalf("CreatePolicy failed: %v", err)
	}
	p2, _ := pm.CreatePolicy(uuid.New(), "AV-002", 60, 1_200_000, 2_000_000, 2_000)

	if p1.PolicyID != 1 || p2.PolicyID != 2 {
		t.Errorf("expected sequential IDs 1,2; got %d,%d", p1.PolicyID, p2.PolicyID)
	}
	if !p1.Active {
		t.Error("new policy should be active")
	}
	if p1.Balance != 2_000_000 {
		t.Errorf("balance: got %d, want 2_000_000", p1.Balance)
	}
}

func TestPolicyManager_PerMemberCap(t *testing.T) {
	pm := state.NewPolicyManager(2)
	memberID := uuid.New()

	for i := 0; i < 2; i++ {
		if _, err := pm.CreatePolicy(memberID, "AV", 50, 1_000_000, 2_000_000, 1_000); err != nil {
			t.Fatalf("policy %d: %v", i, err)
		}
	}

	_, err := pm.CreatePolicy(memberID, "AV", 50, 1_000_000, 2_000_000, 1_000)
	if !errors.Is(err, pool.ErrTooManyPolicies) {
		t.Errorf("expected ErrTooManyPolicies, got %v", err)
	}
}

func TestPolicyManager_GetActivePolicy(t *testing.T) {
	pm := state.NewPolicyManager(10)

	if _, err := pm.GetActivePolicy(99); !errors.Is(err, pool.ErrPolicyNotFound) {
		t.Errorf("missing policy: expected ErrPolicyNotFound, got %v", err)
	}

	p, _ := pm.CreatePolicy(uuid.New(), "AV-001", 50, 1_000_000, 2_000_000, 1_000)
	if _, err := pm.GetActivePolicy(p.PolicyID); err != nil {
		t.Fatalf("active policy should be found: %v", err)
	}

	p.Active = false
	if _, err := pm.GetActivePolicy(p.PolicyID); !errors.Is(err, pool.ErrPolicyNotFound) {
		t.Errorf("inactive policy: expected ErrPolicyNotFound, got %v", err)
	}
}

func TestPolicyManager_IsMember(t *testing.T) {
	pm := state.NewPolicyManager(10)
	memberID := uuid.New()

	if pm.IsMember(memberID) {
		t.Error("account with no policy should not be a member")
	}

	p, _ := pm.CreatePolicy(memberID, "AV-001", 50, 1_000_000, 2_000_000, 1_000)
	if !pm.IsMember(memberID) {
		t.Error("account with a policy should be a member")
	}

	// The index never shrinks: membership survives deactivation
	p.Active = false
	if !pm.IsMember(memberID) {
		t.Error("membership should survive policy deactivation")
	}
}

func TestPolicyManager_ActivePoliciesOrdered(t *testing.T) {
	pm := state.NewPolicyManager(10)
	for i := 0; i < 5; i++ {
		pm.CreatePolicy(uuid.New(), "AV", 50, 1_000_000, 2_000_000, 1_000)
	}

	active := pm.ActivePolicies()
	if len(active) != 5 {
		t.Fatalf("expected 5 active policies, got %d", len(active))
	}
	for i, p := range active {
		if p.PolicyID != int64(i+1) {
			t.Errorf("index %d: got policy %d", i, p.PolicyID)
		}
	}
}

func TestPolicyManager_SetPolicyRestoresCounter(t *testing.T) {
	pm := state.NewPolicyManager(10)
	pm.SetPolicy(&state.Policy{PolicyID: 7, MemberID: uuid.New(), Active: true})

	if pm.NextPolicyID() != 8 {
		t.Errorf("counter should advance past restored ID: got %d", pm.NextPolicyID())
	}
}

// ============================================================================
// Test: ClaimManager
// ============================================================================

var testCrashHash = [32]byte{0xa3, 0xf1, 0x07, 0x2c}

func newPendingClaim(cm *state.ClaimManager) *state.Claim {
	return cm.SubmitClaim(1, uuid.New(), 1_500_000, "collision", testCrashHash, true, 1_000)
}

func TestClaimManager_SubmitClaim(t *testing.T) {
	cm := state.NewClaimManager(votingPeriod, maxVoters)
	c := newPendingClaim(cm)

	if c.ClaimID != 1 {
		t.Errorf("claim ID: got %d, want 1", c.ClaimID)
	}
	if c.Status != state.ClaimStatusPending {
		t.Errorf("status: got %v, want pending", c.Status)
	}
	if c.CrashDataHash != testCrashHash {
		t.Errorf("crash data hash not retained: got %x", c.CrashDataHash)
	}
	if !c.EvidenceVerified {
		t.Error("evidence flag not retained")
	}
	if c.VotingEndsAt != 1_000+votingPeriod {
		t.Errorf("voting window end: got %d", c.VotingEndsAt)
	}
}

func TestClaimManager_CastVote_Tally(t *testing.T) {
	cm := state.NewClaimManager(votingPeriod, maxVoters)
	c := newPendingClaim(cm)

	for i := 0; i < 3; i++ {
		if _, err := cm.CastVote(c.ClaimID, uuid.New(), true, 2_000); err != nil {
			t.Fatalf("vote %d: %v", i, err)
		}
	}
	if _, err := cm.CastVote(c.ClaimID, uuid.New(), false, 2_000); err != nil {
		t.Fatalf("against vote: %v", err)
	}

	if c.VotesFor != 3 || c.VotesAgainst != 1 {
		t.Errorf("tally: got %d/%d, want 3/1", c.VotesFor, c.VotesAgainst)
	}
}

func TestClaimManager_CastVote_WindowBoundary(t *testing.T) {
	cm := state.NewClaimManager(votingPeriod, maxVoters)
	c := newPendingClaim(cm)

	// One microsecond before the window end is still in
	if _, err := cm.CastVote(c.ClaimID, uuid.New(), true, c.VotingEndsAt-1); err != nil {
		t.Errorf("vote just inside window: %v", err)
	}

	// Exactly at the window end is late
	if _, err := cm.CastVote(c.ClaimID, uuid.New(), true, c.VotingEndsAt); !errors.Is(err, pool.ErrVotingClosed) {
		t.Errorf("vote at window end: expected ErrVotingClosed, got %v", err)
	}
}

func TestClaimManager_CastVote_Duplicate(t *testing.T) {
	cm := state.NewClaimManager(votingPeriod, maxVoters)
	c := newPendingClaim(cm)
	voter := uuid.New()

	if _, err := cm.CastVote(c.ClaimID, voter, true, 2_000); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	// Flipping the vote is also a duplicate
	if _, err := cm.CastVote(c.ClaimID, voter, false, 3_000); !errors.Is(err, pool.ErrDuplicateVote) {
		t.Errorf("expected ErrDuplicateVote, got %v", err)
	}
	if c.VotesFor != 1 || c.VotesAgainst != 0 {
		t.Errorf("rejected duplicate must not change the tally: %d/%d", c.VotesFor, c.VotesAgainst)
	}
}

func TestClaimManager_CastVote_VoterCap(t *testing.T) {
	cm := state.NewClaimManager(votingPeriod, 3)
	c := newPendingClaim(cm)

	for i := 0; i < 3; i++ {
		if _, err := cm.CastVote(c.ClaimID, uuid.New(), true, 2_000); err != nil {
			t.Fatalf("vote %d: %v", i, err)
		}
	}

	if _, err := cm.CastVote(c.ClaimID, uuid.New(), true, 2_000); !errors.Is(err, pool.ErrNotAuthorized) {
		t.Errorf("vote past cap: expected ErrNotAuthorized, got %v", err)
	}
}

func TestClaimManager_CastVote_UnknownClaim(t *testing.T) {
	cm := state.NewClaimManager(votingPeriod, maxVoters)
	if _, err := cm.CastVote(42, uuid.New(), true, 2_000); !errors.Is(err, pool.ErrClaimNotFound) {
		t.Errorf("expected ErrClaimNotFound, got %v", err)
	}
}

func TestClaimManager_Settle_Majority(t *testing.T) {
	cm := state.NewClaimManager(votingPeriod, maxVoters)
	c := newPendingClaim(cm)

	cm.CastVote(c.ClaimID, uuid.New(), true, 2_000)
	cm.CastVote(c.ClaimID, uuid.New(), true, 2_000)
	cm.CastVote(c.ClaimID, uuid.New(), false, 2_000)

	// Before the window closes settlement is premature
	if _, err := cm.Settle(c.ClaimID, c.VotingEndsAt-1); !errors.Is(err, pool.ErrVotingNotEnded) {
		t.Fatalf("expected ErrVotingNotEnded, got %v", err)
	}

	settled, err := cm.Settle(c.ClaimID, c.VotingEndsAt)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if settled.Status != state.ClaimStatusApproved {
		t.Errorf("status: got %v, want approved", settled.Status)
	}

	// Second settlement must be rejected
	if _, err := cm.Settle(c.ClaimID, c.VotingEndsAt+1); !errors.Is(err, pool.ErrClaimFinalized) {
		t.Errorf("expected ErrClaimFinalized, got %v", err)
	}
}

func TestClaimManager_Settle_TieRejects(t *testing.T) {
	cm := state.NewClaimManager(votingPeriod, maxVoters)
	c := newPendingClaim(cm)

	cm.CastVote(c.ClaimID, uuid.New(), true, 2_000)
	cm.CastVote(c.ClaimID, uuid.New(), false, 2_000)

	settled, err := cm.Settle(c.ClaimID, c.VotingEndsAt)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if settled.Status != state.ClaimStatusRejected {
		t.Errorf("tie should reject: got %v", settled.Status)
	}
}

func TestClaimManager_Settle_NoVotesRejects(t *testing.T) {
	cm := state.NewClaimManager(votingPeriod, maxVoters)
	c := newPendingClaim(cm)

	settled, err := cm.Settle(c.ClaimID, c.VotingEndsAt)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if settled.Status != state.ClaimStatusRejected {
		t.Errorf("no-vote claim should reject: got %v", settled.Status)
	}
}

func TestClaimManager_VoteAfterSettlement(t *testing.T) {
	cm := state.NewClaimManager(votingPeriod, maxVoters)
	c := newPendingClaim(cm)

	if _, err := cm.Settle(c.ClaimID, c.VotingEndsAt); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if _, err := cm.CastVote(c.ClaimID, uuid.New(), true, c.VotingEndsAt+1); !errors.Is(err, pool.ErrVotingClosed) {
		t.Errorf("expected ErrVotingClosed, got %v", err)
	}
}

// ============================================================================
// Test: RiskManager
// ============================================================================

func TestRiskManager_RecordKeepsLatest(t *testing.T) {
	rm := state.NewRiskManager()
	oracle := uuid.New()

	rm.Record(1, 50, 80, 1_000_000, 1_600_000, oracle, 1_000)
	adj := rm.Record(1, 80, 60, 1_600_000, 1_200_000, oracle, 2_000)

	latest := rm.Latest(1)
	if latest != adj {
		t.Fatal("Latest should return the most recent record")
	}
	if latest.Factor != 133 {
		t.Errorf("factor for 80->60: got %d, want 133", latest.Factor)
	}
	if rm.Latest(2) != nil {
		t.Error("unknown policy should have no adjustment")
	}
}

// ============================================================================
// Test: SurplusCalculator
// ============================================================================

func TestSurplusCalculator_Distributable(t *testing.T) {
	sc := state.NewSurplusCalculator(1_000_000)

	if got := sc.Distributable(2_500_000); got != 1_500_000 {
		t.Errorf("got %d, want 1_500_000", got)
	}
	if got := sc.Distributable(1_000_000); got != 0 {
		t.Errorf("at floor: got %d, want 0", got)
	}
	if got := sc.Distributable(500_000); got != 0 {
		t.Errorf("below floor: got %d, want 0", got)
	}
}

func TestSurplusCalculator_ComputeShares(t *testing.T) {
	sc := state.NewSurplusCalculator(1_000_000)
	now := int64(10_000)

	policies := []*state.Policy{
		{PolicyID: 1, MemberID: uuid.New(), RiskScore: 50, LastScoreUpdate: 5_000},  // stale: full weight
		{PolicyID: 2, MemberID: uuid.New(), RiskScore: 80, LastScoreUpdate: 10_000}, // fresh: half weight
	}

	shares, total := sc.ComputeShares(policies, 2_000_000, now)
	if len(shares) != 2 {
		t.Fatalf("expected 2 shares, got %d", len(shares))
	}

	// surplus = 1_000_000
	// policy 1: 1_000_000 * 50 * 100 / 10000 = 500_000
	// policy 2: 1_000_000 * 20 * 50 / 10000 = 100_000
	if shares[0].Amount != 500_000 {
		t.Errorf("share 1: got %d, want 500_000", shares[0].Amount)
	}
	if shares[1].Amount != 100_000 {
		t.Errorf("share 2: got %d, want 100_000", shares[1].Amount)
	}
	if total != 600_000 {
		t.Errorf("total: got %d, want 600_000", total)
	}
}

func TestSurplusCalculator_NoSurplusNoShares(t *testing.T) {
	sc := state.NewSurplusCalculator(1_000_000)

	shares, total := sc.ComputeShares([]*state.Policy{{PolicyID: 1, RiskScore: 50}}, 900_000, 1_000)
	if shares != nil || total != 0 {
		t.Error("below-floor treasury should produce no shares")
	}
}

// ============================================================================
// Test: Registry
// ============================================================================

func TestRegistry_OwnerGates(t *testing.T) {
	owner := uuid.New()
	r := state.NewRegistry(owner)

	if !r.PoolActive() {
		t.Error("pool should start active")
	}

	if err := r.SetOracle(uuid.New(), uuid.New()); !errors.Is(err, pool.ErrNotAuthorized) {
		t.Errorf("non-owner SetOracle: expected ErrNotAuthorized, got %v", err)
	}

	oracle := uuid.New()
	if err := r.SetOracle(owner, oracle); err != nil {
		t.Fatalf("owner SetOracle: %v", err)
	}
	if !r.IsOracle(oracle) {
		t.Error("oracle should be registered")
	}

	// A second registration replaces the first
	replacement := uuid.New()
	if err := r.SetOracle(owner, replacement); err != nil {
		t.Fatalf("replace oracle: %v", err)
	}
	if r.IsOracle(oracle) {
		t.Error("old oracle should have been replaced")
	}
	if !r.IsOracle(replacement) {
		t.Error("replacement oracle should be registered")
	}

	if err := r.SetPoolActive(uuid.New(), false); !errors.Is(err, pool.ErrNotAuthorized) {
		t.Errorf("non-owner SetPoolActive: expected ErrNotAuthorized, got %v", err)
	}
	if err := r.SetPoolActive(owner, false); err != nil {
		t.Fatalf("owner SetPoolActive: %v", err)
	}
	if r.PoolActive() {
		t.Error("pool should be inactive")
	}
}

func TestRegistry_SnapshotRestore(t *testing.T) {
	owner := uuid.New()
	r := state.NewRegistry(owner)
	r.SetOracle(owner, uuid.New())
	r.SetPoolActive(owner, false)

	restored := state.NewRegistry(uuid.New())
	restored.Restore(r.Snapshot())

	if !restored.IsOwner(owner) {
		t.Error("restored registry should keep the original owner")
	}
	if restored.PoolActive() {
		t.Error("restored registry should keep the inactive flag")
	}
	oracle, ok := restored.Oracle()
	if !ok {
		t.Fatal("restored registry should keep the oracle")
	}
	if !restored.IsOracle(oracle) {
		t.Error("restored oracle mismatch")
	}
}
