package state

import (
	"github.com/google/uuid"

	fpmath "PoolLedger/internal/math"
)

// SurplusShare is one policy's computed cut of a distribution. Shares are
// reported outbound for the external payout batcher; no treasury funds move
// inside this system.
type SurplusShare struct {
	PolicyID int64
	MemberID uuid.UUID
	Amount   int64
}

// SurplusCalculator computes distributable surplus and per-policy shares.
// Shares are weighted toward safer drivers and stale scores, computed in
// policy-ID order so every replay produces identical batches.
type SurplusCalculator struct {
	minPoolBalance int64
}

func NewSurplusCalculator(minPoolBalance int64) *SurplusCalculator {
	return &SurplusCalculator{minPoolBalance: minPoolBalance}
}

// Distributable returns the amount above the pool's reserve floor
func (sc *SurplusCalculator) Distributable(treasuryBalance int64) int64 {
	surplus := treasuryBalance - sc.minPoolBalance
	if surplus < 0 {
		return 0
	}
	return surplus
}

// ComputeShares returns one share per active policy. Each share is computed
// against the full surplus independently; the shares are a report, not a
// transfer, so their sum is not bounded by the surplus.
func (sc *SurplusCalculator) ComputeShares(
	policies []*Policy,
	treasuryBalance int64,
	now int64,
) ([]SurplusShare, int64) {
	surplus := sc.Distributable(treasuryBalance)
	if surplus == 0 || len(policies) == 0 {
		return nil, 0
	}

	shares := make([]SurplusShare, 0, len(policies))
	var total int64

	for _, p := range policies {
		amount := fpmath.MemberShare(
			surplus,
			fpmath.RiskFactor(p.RiskScore),
			fpmath.TimeFactor(p.LastScoreUpdate, now),
		)
		shares = append(shares, SurplusShare{
			PolicyID: p.PolicyID,
			MemberID: p.MemberID,
			Amount:   amount,
		})
		total += amount
	}

	return shares, total
}
