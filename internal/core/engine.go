package core

import (
	"PoolLedger/internal/event"
	"PoolLedger/internal/ledger"
	fpmath "PoolLedger/internal/math"
	"PoolLedger/internal/observability"
	"PoolLedger/internal/pool"
	"PoolLedger/internal/state"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DeterministicCore is the single-threaded command processor
type DeterministicCore struct {
	sequence          int64
	publishedSeq      atomic.Int64 // mirror of sequence for off-loop readers
	lastTime          int64        // high-water logical time in epoch micros
	params            pool.Params
	hasher            *StateHasher
	balanceTracker    *ledger.BalanceTracker
	journalGen        *ledger.JournalGenerator
	validator         *ledger.InvariantValidator
	policyManager     *state.PolicyManager
	claimManager      *state.ClaimManager
	riskManager       *state.RiskManager
	surplusCalc       *state.SurplusCalculator
	registry          *state.Registry
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

// CoreOutput is one applied command's full footprint: the envelope for the
// event log, the journal batch (nil for state-only commands), and the
// result returned to the caller and published outbound.
type CoreOutput struct {
	Envelope *event.Envelope
	Batch    *ledger.Batch
	Result   *event.Result
}

func NewDeterministicCore(
	owner uuid.UUID,
	params pool.Params,
	startSequence int64,
	persistChan, projectionChan chan<- CoreOutput,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) *DeterministicCore {
	balanceTracker := ledger.NewBalanceTracker()
	validator := ledger.NewInvariantValidator(balanceTracker)
	journalGen := ledger.NewJournalGenerator(startSequence, balanceTracker)
	policyMgr := state.NewPolicyManager(params.MaxPoliciesPerMember)
	claimMgr := state.NewClaimManager(params.VotingPeriod, params.MaxVotersPerClaim)

	// Initialize with capacity of 1M entries (configurable)
	idempotencyChecker := NewIdempotencyChecker(1_000_000, dbChecker)
	sequenceValidator := NewSequenceValidator()

	c := &DeterministicCore{
		sequence:          startSequence,
		params:            params,
		hasher:            NewStateHasher(),
		balanceTracker:    balanceTracker,
		journalGen:        journalGen,
		validator:         validator,
		policyManager:     policyMgr,
		claimManager:      claimMgr,
		riskManager:       state.NewRiskManager(),
		surplusCalc:       state.NewSurplusCalculator(params.MinPoolBalance),
		registry:          state.NewRegistry(owner),
		idempotency:       idempotencyChecker,
		sequenceValidator: sequenceValidator,
		metrics:           metrics,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}
	c.publishedSeq.Store(startSequence)
	return c
}

// ProcessCommand is the main processing pipeline
func (c *DeterministicCore) ProcessCommand(cmd event.Command) (*event.Result, error) {
	start := time.Now()
	commandType := cmd.CommandType().String()
	idempotencyKey := cmd.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	isDuplicate := c.idempotency.IsDuplicate(commandType, idempotencyKey)

	// Step 2: Sequence validation (gap-tolerant, stale rejected)
	if err := c.sequenceValidator.ValidateSequence(
		cmd.Partition(), cmd.SourceSequence(), idempotencyKey, isDuplicate,
	); err != nil {
		c.recordRejected(commandType, "out_of_order")
		return nil, fmt.Errorf("sequence validation failed: %w", err)
	}

	// If duplicate, acknowledge without reprocessing
	if isDuplicate {
		c.recordRejected(commandType, "duplicate")
		return &event.Result{
			Duplicate:       true,
			TreasuryBalance: c.balanceTracker.TreasuryBalance(),
		}, nil
	}

	// Step 3: Effective logical time. The core never calls time.Now();
	// command timestamps are clamped to the high-water mark so logical
	// time never moves backwards within the log.
	now := cmd.LogicalTime()
	if now < c.lastTime {
		now = c.lastTime
	}

	// Serialize payload up front so a codec failure rejects the command
	// before any state mutation.
	payload, err := event.MarshalCommand(cmd)
	if err != nil {
		c.recordRejected(commandType, "codec")
		return nil, fmt.Errorf("command marshal failed: %w", err)
	}

	// Step 4: Dispatch — all domain checks run before any mutation
	batch, result, err := c.dispatchCommand(cmd, now)
	if err != nil {
		c.recordRejected(commandType, "domain")
		return nil, err
	}

	// Step 5: Validate and apply the journal batch, if any. State-only
	// commands (votes, score updates, surplus reports) carry no journals
	// but still get an envelope in the event log.
	if batch != nil && len(batch.Journals) > 0 {
		if err := c.validator.ValidateBatchBalance(batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
		}
		if err := c.balanceTracker.ApplyBatch(batch); err != nil {
			return nil, fmt.Errorf("apply batch failed: %w", err)
		}
	}

	// Step 6: Finalize the result
	result.Sequence = c.sequence
	result.TreasuryBalance = c.balanceTracker.TreasuryBalance()

	// Step 7: Compute state digest and chain hash. The chain tip is
	// captured before ComputeHash advances it.
	stateDigest := c.computeStateDigest(batch, result)
	prevHash := c.hasher.GetPrevHash()
	stateHash := c.hasher.ComputeHash(c.sequence, stateDigest)

	envelope := &event.Envelope{
		Sequence:       c.sequence,
		IdempotencyKey: idempotencyKey,
		CommandType:    cmd.CommandType(),
		Partition:      cmd.Partition(),
		Timestamp:      now,
		SourceSequence: cmd.SourceSequence(),
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	output := CoreOutput{
		Envelope: envelope,
		Batch:    batch,
		Result:   result,
	}

	c.sequence++
	c.publishedSeq.Store(c.sequence)
	c.lastTime = now

	// Step 8: Post-checks
	if err := c.postCheckInvariants(); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 9: Emit outputs.
	// Persistence: blocking send — the core stalls until the persistence
	// worker drains. This guarantees no applied command is lost.
	c.persistChan <- output

	// Projections: non-blocking send — drop on full. Projection workers
	// rebuild from the event log if they fall behind.
	select {
	case c.projectionChan <- output:
	default:
		// Silently dropped — projection will catch up via rebuild
	}

	// Step 10: Mark as processed (add to LRU)
	c.idempotency.MarkProcessed(commandType, idempotencyKey)

	// Record metrics
	if c.metrics != nil {
		c.metrics.CoreCommandsApplied.WithLabelValues(commandType).Inc()
		c.metrics.CoreCommandDuration.WithLabelValues(commandType).Observe(time.Since(start).Seconds())
		c.metrics.CoreSequence.Set(float64(c.sequence))
		c.metrics.TreasuryBalance.Set(float64(result.TreasuryBalance))
		if batch != nil {
			for _, j := range batch.Journals {
				c.metrics.CoreJournals.WithLabelValues(j.JournalType.String()).Inc()
			}
		}
	}

	return result, nil
}

func (c *DeterministicCore) recordRejected(commandType, reason string) {
	if c.metrics != nil {
		c.metrics.CoreCommandsRejected.WithLabelValues(commandType, reason).Inc()
	}
}

// computeStateDigest creates canonical bytes for the state hash: every
// account touched by the batch (path length-prefixed, balance LE) followed
// by the serialized result, which captures the non-ledger state changes of
// vote and score commands.
func (c *DeterministicCore) computeStateDigest(batch *ledger.Batch, result *event.Result) []byte {
	affectedAccounts := make(map[ledger.AccountKey]bool)

	if batch != nil {
		for _, j := range batch.Journals {
			affectedAccounts[j.DebitAccount] = true
			affectedAccounts[j.CreditAccount] = true
		}
	}

	accounts := make([]ledger.AccountKey, 0, len(affectedAccounts))
	for key := range affectedAccounts {
		accounts = append(accounts, key)
	}

	// Sort by AccountPath (deterministic string ordering)
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64)

	for _, key := range accounts {
		balance := c.balanceTracker.GetBalance(key)

		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)

		digest = appendInt64LE(digest, balance)
	}

	// Result JSON is deterministic: fixed struct field order, no maps
	resultBytes, err := json.Marshal(result)
	if err != nil {
		panic(fmt.Sprintf("FATAL: result marshal failed: %v", err))
	}
	digest = append(digest, resultBytes...)

	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// postCheckInvariants validates ledger invariants after batch application
func (c *DeterministicCore) postCheckInvariants() error {
	// The treasury must never go below zero
	if err := c.validator.ValidateTreasuryNonNegative(); err != nil {
		return fmt.Errorf("post-check treasury: %w", err)
	}

	// Periodic global zero-sum check over all accounts
	if c.sequence > 0 && c.sequence%1000 == 0 {
		if err := c.validator.ValidateGlobalBalance(); err != nil {
			return fmt.Errorf("post-check global balance (at seq %d): %w", c.sequence, err)
		}
	}

	return nil
}

func (c *DeterministicCore) dispatchCommand(cmd event.Command, now int64) (*ledger.Batch, *event.Result, error) {
	switch e := cmd.(type) {
	case *event.JoinPool:
		return c.handleJoinPool(e, now)
	case *event.PayPremium:
		return c.handlePayPremium(e, now)
	case *event.UpdateRiskScore:
		return c.handleUpdateRiskScore(e, now)
	case *event.SubmitClaim:
		return c.handleSubmitClaim(e, now)
	case *event.CastVote:
		return c.handleCastVote(e, now)
	case *event.ProcessClaim:
		return c.handleProcessClaim(e, now)
	case *event.DistributeSurplus:
		return c.handleDistributeSurplus(e, now)
	case *event.SetOracle:
		return c.handleSetOracle(e)
	case *event.SetPoolActive:
		return c.handleSetPoolActive(e)
	default:
		return nil, nil, fmt.Errorf("unknown command type: %T", cmd)
	}
}

// handleJoinPool admits a new member policy and books the deposit.
// Checks run in order: pool gate, vehicle id, minimum deposit, index cap.
func (c *DeterministicCore) handleJoinPool(cmd *event.JoinPool, now int64) (*ledger.Batch, *event.Result, error) {
	if !c.registry.PoolActive() {
		return nil, nil, pool.ErrPoolInactive
	}
	if cmd.VehicleID == "" || len(cmd.VehicleID) > pool.MaxVehicleIDBytes {
		return nil, nil, fmt.Errorf("invalid vehicle id: %d bytes", len(cmd.VehicleID))
	}
	if cmd.Deposit < c.params.BasePremium {
		return nil, nil, pool.ErrInsufficientFunds
	}

	p, err := c.policyManager.CreatePolicy(
		cmd.Actor(),
		cmd.VehicleID,
		c.params.DefaultRiskScore,
		c.params.BasePremium,
		cmd.Deposit,
		now,
	)
	if err != nil {
		return nil, nil, err
	}

	batch, err := c.journalGen.GenerateDeposit(cmd.Actor(), cmd.IdempotencyKey(), cmd.Deposit, now)
	if err != nil {
		return nil, nil, err
	}

	if c.metrics != nil {
		c.metrics.PoliciesCreated.Inc()
		c.metrics.PoliciesActive.Set(float64(len(c.policyManager.ActivePolicies())))
	}

	return batch, &event.Result{
		PolicyID: p.PolicyID,
		Premium:  p.Premium,
	}, nil
}

// handlePayPremium books a periodic premium payment at the policy's
// current premium amount.
func (c *DeterministicCore) handlePayPremium(cmd *event.PayPremium, now int64) (*ledger.Batch, *event.Result, error) {
	p, err := c.policyManager.GetActivePolicy(cmd.PolicyID)
	if err != nil {
		return nil, nil, err
	}
	if p.MemberID != cmd.Actor() {
		return nil, nil, pool.ErrNotAuthorized
	}

	amount := p.Premium

	batch, err := c.journalGen.GeneratePremium(cmd.Actor(), cmd.IdempotencyKey(), amount, now)
	if err != nil {
		return nil, nil, err
	}

	p.Balance += amount
	p.LastScoreUpdate = now
	p.Version++

	if c.metrics != nil {
		c.metrics.PremiumsCollected.Add(float64(amount))
	}

	return batch, &event.Result{
		PolicyID: p.PolicyID,
		Premium:  amount,
	}, nil
}

// handleUpdateRiskScore applies an oracle score update and reprices the
// policy. Check order: score range, oracle authority, policy lookup.
func (c *DeterministicCore) handleUpdateRiskScore(cmd *event.UpdateRiskScore, now int64) (*ledger.Batch, *event.Result, error) {
	if cmd.NewScore < pool.MinRiskScore || cmd.NewScore > pool.MaxRiskScore {
		return nil, nil, pool.ErrInvalidRiskScore
	}
	if !c.registry.IsOracle(cmd.Actor()) {
		return nil, nil, pool.ErrNotAuthorized
	}

	p, err := c.policyManager.GetActivePolicy(cmd.PolicyID)
	if err != nil {
		return nil, nil, err
	}

	oldScore := p.RiskScore
	oldPremium := p.Premium
	newPremium := fpmath.PremiumForScore(c.params.BasePremium, cmd.NewScore)

	adj := c.riskManager.Record(
		p.PolicyID,
		oldScore, cmd.NewScore,
		oldPremium, newPremium,
		cmd.Actor(),
		now,
	)

	p.RiskScore = cmd.NewScore
	p.Premium = newPremium
	p.LastScoreUpdate = now
	p.Version++

	if c.metrics != nil {
		c.metrics.RiskScoreUpdates.Inc()
	}

	// No journals: repricing moves no funds
	return nil, &event.Result{
		PolicyID:         p.PolicyID,
		Premium:          newPremium,
		AdjustmentFactor: adj.Factor,
	}, nil
}

// handleSubmitClaim admits a pending claim. The treasury check here is
// admission-only: funds are not reserved, and the balance is re-validated
// at settlement.
func (c *DeterministicCore) handleSubmitClaim(cmd *event.SubmitClaim, now int64) (*ledger.Batch, *event.Result, error) {
	p, err := c.policyManager.GetActivePolicy(cmd.PolicyID)
	if err != nil {
		return nil, nil, err
	}
	if p.MemberID != cmd.Actor() {
		return nil, nil, pool.ErrNotAuthorized
	}
	if cmd.Amount <= 0 {
		return nil, nil, fmt.Errorf("claim amount must be positive: %d", cmd.Amount)
	}
	if cmd.Amount > c.balanceTracker.TreasuryBalance() {
		return nil, nil, pool.ErrPoolInsufficient
	}

	// The evidence fingerprint must decode to exactly 32 bytes when
	// present. The oracle verdict rides on the command, stamped at the
	// edge, so a replayed payload reproduces the same claim state.
	var crashHash [32]byte
	if cmd.CrashDataHash != "" {
		decoded, err := hex.DecodeString(cmd.CrashDataHash)
		if err != nil || len(decoded) != len(crashHash) {
			return nil, nil, pool.ErrInvalidEvidence
		}
		copy(crashHash[:], decoded)
	}
	evidenceVerified := cmd.CrashDataHash != "" && cmd.EvidenceVerified

	claim := c.claimManager.SubmitClaim(
		cmd.PolicyID,
		cmd.Actor(),
		cmd.Amount,
		cmd.Description,
		crashHash,
		evidenceVerified,
		now,
	)

	if c.metrics != nil {
		c.metrics.ClaimsSubmitted.Inc()
	}

	return nil, &event.Result{
		PolicyID: p.PolicyID,
		ClaimID:  claim.ClaimID,
	}, nil
}

// handleCastVote records one member's vote on a pending claim.
func (c *DeterministicCore) handleCastVote(cmd *event.CastVote, now int64) (*ledger.Batch, *event.Result, error) {
	if !c.policyManager.IsMember(cmd.Actor()) {
		return nil, nil, pool.ErrNotMember
	}

	claim, err := c.claimManager.CastVote(cmd.ClaimID, cmd.Actor(), cmd.Approve, now)
	if err != nil {
		return nil, nil, err
	}

	if c.metrics != nil {
		c.metrics.VotesCast.WithLabelValues(fmt.Sprintf("%t", cmd.Approve)).Inc()
	}

	return nil, &event.Result{
		ClaimID: claim.ClaimID,
	}, nil
}

// handleProcessClaim settles a claim after its voting window. Strict
// majority approves and pays out; ties and no-vote claims are rejected.
// The status guard makes a second settlement attempt fail instead of
// paying twice.
func (c *DeterministicCore) handleProcessClaim(cmd *event.ProcessClaim, now int64) (*ledger.Batch, *event.Result, error) {
	claim, err := c.claimManager.GetClaim(cmd.ClaimID)
	if err != nil {
		return nil, nil, err
	}
	if claim.Status != state.ClaimStatusPending {
		return nil, nil, pool.ErrClaimFinalized
	}
	if now < claim.VotingEndsAt {
		return nil, nil, pool.ErrVotingNotEnded
	}

	// Re-validate treasury coverage before finalizing: other settlements
	// may have drained the pool since admission. A failed re-check leaves
	// the claim pending so it can be retried once the pool refills.
	approving := claim.VotesFor > claim.VotesAgainst
	if approving {
		if err := c.balanceTracker.ValidateTreasuryCanCover(claim.Amount); err != nil {
			return nil, nil, pool.ErrPoolInsufficient
		}
	}

	settled, err := c.claimManager.Settle(cmd.ClaimID, now)
	if err != nil {
		return nil, nil, err
	}

	result := &event.Result{
		ClaimID:     settled.ClaimID,
		ClaimStatus: settled.Status.String(),
	}

	var batch *ledger.Batch
	if settled.Status == state.ClaimStatusApproved {
		batch, err = c.journalGen.GenerateClaimPayout(
			settled.ClaimantID, cmd.IdempotencyKey(), settled.Amount, now,
		)
		if err != nil {
			return nil, nil, err
		}
		result.Payout = settled.Amount
		result.Claimant = settled.ClaimantID.String()
	}

	if c.metrics != nil {
		c.metrics.ClaimsSettled.WithLabelValues(settled.Status.String()).Inc()
		if settled.Status == state.ClaimStatusApproved {
			c.metrics.ClaimPayoutTotal.Add(float64(settled.Amount))
		}
	}

	return batch, result, nil
}

// handleDistributeSurplus computes the surplus share report. This is a
// computation-only command: the report is published outbound for the
// external payout batcher and no treasury funds move.
func (c *DeterministicCore) handleDistributeSurplus(cmd *event.DistributeSurplus, now int64) (*ledger.Batch, *event.Result, error) {
	if !c.registry.IsOwner(cmd.Actor()) {
		return nil, nil, pool.ErrNotAuthorized
	}

	treasury := c.balanceTracker.TreasuryBalance()
	surplus := c.surplusCalc.Distributable(treasury)
	if surplus == 0 {
		return nil, nil, pool.ErrInsufficientFunds
	}

	shares, _ := c.surplusCalc.ComputeShares(c.policyManager.ActivePolicies(), treasury, now)

	reports := make([]event.ShareReport, 0, len(shares))
	for _, s := range shares {
		reports = append(reports, event.ShareReport{
			PolicyID: s.PolicyID,
			MemberID: s.MemberID,
			Amount:   s.Amount,
		})
	}

	if c.metrics != nil {
		c.metrics.SurplusDistributed.Inc()
		c.metrics.SurplusShareReports.Add(float64(len(reports)))
	}

	return nil, &event.Result{
		Surplus: surplus,
		Shares:  reports,
	}, nil
}

func (c *DeterministicCore) handleSetOracle(cmd *event.SetOracle) (*ledger.Batch, *event.Result, error) {
	if err := c.registry.SetOracle(cmd.Actor(), cmd.OracleAccount); err != nil {
		return nil, nil, err
	}
	return nil, &event.Result{}, nil
}

func (c *DeterministicCore) handleSetPoolActive(cmd *event.SetPoolActive) (*ledger.Batch, *event.Result, error) {
	if err := c.registry.SetPoolActive(cmd.Actor(), cmd.Active); err != nil {
		return nil, nil, err
	}
	return nil, &event.Result{}, nil
}

// ReplayCommand re-applies a command loaded from the event log during
// recovery. It skips the idempotency and sequence checks (the log is the
// source of truth, so every stored command was already validated) and
// emits nothing to the output channels: the log rows already exist and
// downstream consumers already saw them. The returned output carries the
// regenerated envelope and journals for projection rebuilds.
func (c *DeterministicCore) ReplayCommand(cmd event.Command) (*CoreOutput, error) {
	commandType := cmd.CommandType().String()
	idempotencyKey := cmd.IdempotencyKey()

	now := cmd.LogicalTime()
	if now < c.lastTime {
		now = c.lastTime
	}

	payload, err := event.MarshalCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("command marshal failed: %w", err)
	}

	batch, result, err := c.dispatchCommand(cmd, now)
	if err != nil {
		return nil, err
	}

	if batch != nil && len(batch.Journals) > 0 {
		if err := c.validator.ValidateBatchBalance(batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch on replay: %v", err))
		}
		if err := c.balanceTracker.ApplyBatch(batch); err != nil {
			return nil, fmt.Errorf("apply batch failed: %w", err)
		}
	}

	result.Sequence = c.sequence
	result.TreasuryBalance = c.balanceTracker.TreasuryBalance()

	stateDigest := c.computeStateDigest(batch, result)
	prevHash := c.hasher.GetPrevHash()
	stateHash := c.hasher.ComputeHash(c.sequence, stateDigest)

	envelope := &event.Envelope{
		Sequence:       c.sequence,
		IdempotencyKey: idempotencyKey,
		CommandType:    cmd.CommandType(),
		Partition:      cmd.Partition(),
		Timestamp:      now,
		SourceSequence: cmd.SourceSequence(),
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	c.sequence++
	c.publishedSeq.Store(c.sequence)
	c.lastTime = now

	if err := c.postCheckInvariants(); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated on replay: %v", err))
	}

	// Advance the partition high-water mark so live traffic resumes
	// ordering where the log left off.
	if cmd.SourceSequence() > c.sequenceValidator.GetLastSequence(cmd.Partition()) {
		c.sequenceValidator.SetLastSequence(cmd.Partition(), cmd.SourceSequence())
	}

	c.idempotency.MarkProcessed(commandType, idempotencyKey)

	return &CoreOutput{Envelope: envelope, Batch: batch, Result: result}, nil
}

// --- Snapshot Restore & Startup Methods ---

// SnapshotState holds the serializable in-memory state for restore.
// This mirrors persistence.SnapshotData but uses typed fields.
type SnapshotState struct {
	Sequence        int64
	LastTime        int64
	StateHash       [32]byte
	Balances        map[ledger.AccountKey]int64
	Policies        []*state.Policy
	Claims          []*state.Claim
	RiskAdjustments map[int64]*state.RiskAdjustment
	Registry        state.RegistrySnapshot
	SequenceState   map[string]int64
	IdempotencyKeys []string
}

// RestoreFromSnapshot restores the core's in-memory state from a snapshot.
// On warm restart, the latest snapshot is loaded and the event log tail
// replayed on top of it.
func (c *DeterministicCore) RestoreFromSnapshot(snap *SnapshotState) {
	c.sequence = snap.Sequence + 1 // Next sequence to assign
	c.publishedSeq.Store(c.sequence)
	c.lastTime = snap.LastTime

	c.hasher.SetPrevHash(snap.StateHash)

	c.balanceTracker.Restore(snap.Balances)

	for _, p := range snap.Policies {
		c.policyManager.SetPolicy(p)
	}
	for _, cl := range snap.Claims {
		c.claimManager.SetClaim(cl)
	}
	for _, adj := range snap.RiskAdjustments {
		c.riskManager.Restore(adj)
	}

	c.registry.Restore(snap.Registry)

	for partition, seq := range snap.SequenceState {
		c.sequenceValidator.SetLastSequence(partition, seq)
	}

	c.journalGen.SetSequence(snap.Sequence + 1)
}

// WarmLRU loads recent idempotency keys into the LRU cache so redeliveries
// of recently processed commands avoid cold-path DB lookups.
func (c *DeterministicCore) WarmLRU(keys []string) {
	c.idempotency.lru.WarmFromKeys(keys)
}

// GetSequence returns the next sequence to be assigned. It reads an
// atomic mirror, so it is safe to call concurrently with the command
// loop.
func (c *DeterministicCore) GetSequence() int64 {
	return c.publishedSeq.Load()
}

// GetStateHash returns the current state hash (chain tip).
func (c *DeterministicCore) GetStateHash() [32]byte {
	return c.hasher.GetPrevHash()
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (c *DeterministicCore) CreateSnapshotState() *SnapshotState {
	return &SnapshotState{
		Sequence:        c.sequence - 1, // Last processed sequence
		LastTime:        c.lastTime,
		StateHash:       c.hasher.GetPrevHash(),
		Balances:        c.balanceTracker.Snapshot(),
		Policies:        c.policyManager.AllPolicies(),
		Claims:          c.claimManager.AllClaims(),
		RiskAdjustments: c.riskManager.All(),
		Registry:        c.registry.Snapshot(),
		SequenceState:   c.sequenceValidator.Partitions(),
		IdempotencyKeys: c.idempotency.lru.GetAllKeys(),
	}
}
