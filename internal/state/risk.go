package state

import (
	"github.com/google/uuid"

	fpmath "PoolLedger/internal/math"
)

// RiskAdjustment records one score change on a policy. The core keeps only
// the latest adjustment per policy; the full history lives in the Postgres
// projections.
type RiskAdjustment struct {
	PolicyID   int64
	OldScore   int
	NewScore   int
	OldPremium int64
	NewPremium int64
	Factor     int64 // magnitude of the move as a percentage, always >= 100
	UpdatedBy  uuid.UUID
	Timestamp  int64 // epoch microseconds
}

// RiskManager tracks the latest adjustment per policy
type RiskManager struct {
	latest map[int64]*RiskAdjustment
}

func NewRiskManager() *RiskManager {
	return &RiskManager{
		latest: make(map[int64]*RiskAdjustment),
	}
}

// Record stores the adjustment for a score change and returns it
func (rm *RiskManager) Record(
	policyID int64,
	oldScore, newScore int,
	oldPremium, newPremium int64,
	updatedBy uuid.UUID,
	timestamp int64,
) *RiskAdjustment {
	adj := &RiskAdjustment{
		PolicyID:   policyID,
		OldScore:   oldScore,
		NewScore:   newScore,
		OldPremium: oldPremium,
		NewPremium: newPremium,
		Factor:     fpmath.AdjustmentFactor(oldScore, newScore),
		UpdatedBy:  updatedBy,
		Timestamp:  timestamp,
	}
	rm.latest[policyID] = adj
	return adj
}

// Latest returns the most recent adjustment for a policy, or nil
func (rm *RiskManager) Latest(policyID int64) *RiskAdjustment {
	return rm.latest[policyID]
}

// All returns the latest adjustment per policy (for snapshots)
func (rm *RiskManager) All() map[int64]*RiskAdjustment {
	result := make(map[int64]*RiskAdjustment, len(rm.latest))
	for k, v := range rm.latest {
		result[k] = v
	}
	return result
}

// Restore installs an adjustment record (used for snapshot restore)
func (rm *RiskManager) Restore(adj *RiskAdjustment) {
	rm.latest[adj.PolicyID] = adj
}
