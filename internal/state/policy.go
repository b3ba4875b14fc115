package state

import (
	"sort"

	"github.com/google/uuid"

	"PoolLedger/internal/pool"
)

// Policy is one insured vehicle's coverage record. Policy IDs are assigned
// sequentially from 1 in command order, so replaying the event log
// reproduces the same IDs.
type Policy struct {
	PolicyID        int64
	MemberID        uuid.UUID
	VehicleID       string
	RiskScore       int
	Premium         int64 // current periodic premium
	Balance         int64 // cumulative contributions (deposit + premiums)
	Active          bool
	CreatedAt       int64 // epoch microseconds
	LastScoreUpdate int64 // epoch microseconds, drives surplus time weighting
	Version         int64
}

// PolicyManager manages policy state and the member index
type PolicyManager struct {
	policies     map[int64]*Policy
	memberIndex  map[uuid.UUID][]int64
	nextPolicyID int64
	maxPerMember int
}

func NewPolicyManager(maxPerMember int) *PolicyManager {
	return &PolicyManager{
		policies:     make(map[int64]*Policy),
		memberIndex:  make(map[uuid.UUID][]int64),
		nextPolicyID: 1,
		maxPerMember: maxPerMember,
	}
}

// CreatePolicy registers a new policy for a member's vehicle
func (pm *PolicyManager) CreatePolicy(
	memberID uuid.UUID,
	vehicleID string,
	riskScore int,
	premium int64,
	deposit int64,
	timestamp int64,
) (*Policy, error) {
	if len(pm.memberIndex[memberID]) >= pm.maxPerMember {
		return nil, pool.ErrTooManyPolicies
	}

	p := &Policy{
		PolicyID:        pm.nextPolicyID,
		MemberID:        memberID,
		VehicleID:       vehicleID,
		RiskScore:       riskScore,
		Premium:         premium,
		Balance:         deposit,
		Active:          true,
		CreatedAt:       timestamp,
		LastScoreUpdate: timestamp,
		Version:         1,
	}

	pm.policies[p.PolicyID] = p
	pm.memberIndex[memberID] = append(pm.memberIndex[memberID], p.PolicyID)
	pm.nextPolicyID++

	return p, nil
}

// GetPolicy returns a policy regardless of active state
func (pm *PolicyManager) GetPolicy(policyID int64) (*Policy, error) {
	p := pm.policies[policyID]
	if p == nil {
		return nil, pool.ErrPolicyNotFound
	}
	return p, nil
}

// GetActivePolicy returns a policy; missing and deactivated policies are
// indistinguishable to callers.
func (pm *PolicyManager) GetActivePolicy(policyID int64) (*Policy, error) {
	p := pm.policies[policyID]
	if p == nil || !p.Active {
		return nil, pool.ErrPolicyNotFound
	}
	return p, nil
}

// IsMember reports whether the account appears in the member index. The
// index grows on join and never shrinks, so membership survives policy
// deactivation.
func (pm *PolicyManager) IsMember(memberID uuid.UUID) bool {
	return len(pm.memberIndex[memberID]) > 0
}

// MemberPolicies returns the member's policies ordered by policy ID
func (pm *PolicyManager) MemberPolicies(memberID uuid.UUID) []*Policy {
	ids := pm.memberIndex[memberID]
	result := make([]*Policy, 0, len(ids))
	for _, id := range ids {
		if p := pm.policies[id]; p != nil {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PolicyID < result[j].PolicyID })
	return result
}

// ActivePolicies returns all active policies ordered by policy ID. The
// ordering keeps surplus distribution deterministic across replays.
func (pm *PolicyManager) ActivePolicies() []*Policy {
	result := make([]*Policy, 0, len(pm.policies))
	for _, p := range pm.policies {
		if p.Active {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PolicyID < result[j].PolicyID })
	return result
}

// AllPolicies returns every policy ordered by policy ID (for snapshots)
func (pm *PolicyManager) AllPolicies() []*Policy {
	result := make([]*Policy, 0, len(pm.policies))
	for _, p := range pm.policies {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PolicyID < result[j].PolicyID })
	return result
}

// MemberCount returns the number of distinct accounts in the member index
func (pm *PolicyManager) MemberCount() int {
	return len(pm.memberIndex)
}

// NextPolicyID returns the counter value (for snapshots)
func (pm *PolicyManager) NextPolicyID() int64 {
	return pm.nextPolicyID
}

// SetPolicy directly installs a policy (used for snapshot restore)
func (pm *PolicyManager) SetPolicy(p *Policy) {
	if _, exists := pm.policies[p.PolicyID]; !exists {
		pm.memberIndex[p.MemberID] = append(pm.memberIndex[p.MemberID], p.PolicyID)
	}
	pm.policies[p.PolicyID] = p
	if p.PolicyID >= pm.nextPolicyID {
		pm.nextPolicyID = p.PolicyID + 1
	}
}
