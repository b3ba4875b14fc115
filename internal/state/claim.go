package state

import (
	"sort"

	"github.com/google/uuid"

	"PoolLedger/internal/pool"
)

// ClaimStatus is a claim's lifecycle stage
type ClaimStatus int32

const (
	ClaimStatusPending ClaimStatus = iota
	ClaimStatusApproved
	ClaimStatusRejected
)

func (s ClaimStatus) String() string {
	switch s {
	case ClaimStatusPending:
		return "pending"
	case ClaimStatusApproved:
		return "approved"
	case ClaimStatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Claim is a damage claim against a policy, settled by member vote. Claim
// IDs are sequential from 1 in command order.
type Claim struct {
	ClaimID          int64
	PolicyID         int64
	ClaimantID       uuid.UUID
	Amount           int64
	Description      string
	CrashDataHash    [32]byte // zero when the claim carries no evidence
	EvidenceVerified bool
	Status           ClaimStatus
	CreatedAt        int64 // epoch microseconds
	VotingEndsAt     int64 // CreatedAt + voting period; votes land strictly before
	VotesFor         int
	VotesAgainst     int
	Votes            map[uuid.UUID]bool
	SettledAt        int64 // zero while pending
	Version          int64
}

// ClaimManager manages claim state and vote tallies
type ClaimManager struct {
	claims       map[int64]*Claim
	nextClaimID  int64
	votingPeriod int64 // microseconds
	maxVoters    int
}

func NewClaimManager(votingPeriod int64, maxVoters int) *ClaimManager {
	return &ClaimManager{
		claims:       make(map[int64]*Claim),
		nextClaimID:  1,
		votingPeriod: votingPeriod,
		maxVoters:    maxVoters,
	}
}

// SubmitClaim opens a new pending claim. Treasury coverage is checked by
// the caller before the claim is admitted.
func (cm *ClaimManager) SubmitClaim(
	policyID int64,
	claimantID uuid.UUID,
	amount int64,
	description string,
	crashDataHash [32]byte,
	evidenceVerified bool,
	timestamp int64,
) *Claim {
	c := &Claim{
		ClaimID:          cm.nextClaimID,
		PolicyID:         policyID,
		ClaimantID:       claimantID,
		Amount:           amount,
		Description:      description,
		CrashDataHash:    crashDataHash,
		EvidenceVerified: evidenceVerified,
		Status:           ClaimStatusPending,
		CreatedAt:        timestamp,
		VotingEndsAt:     timestamp + cm.votingPeriod,
		Votes:            make(map[uuid.UUID]bool),
		Version:          1,
	}

	cm.claims[c.ClaimID] = c
	cm.nextClaimID++

	return c
}

// GetClaim returns a claim by ID
func (cm *ClaimManager) GetClaim(claimID int64) (*Claim, error) {
	c := cm.claims[claimID]
	if c == nil {
		return nil, pool.ErrClaimNotFound
	}
	return c, nil
}

// CastVote records one member's vote on a pending claim. The voting window
// ends exactly at VotingEndsAt: a vote stamped at that instant is late.
// Membership is the caller's check; this enforces the window, one vote per
// account, and the voter cap.
func (cm *ClaimManager) CastVote(claimID int64, voterID uuid.UUID, approve bool, now int64) (*Claim, error) {
	c := cm.claims[claimID]
	if c == nil {
		return nil, pool.ErrClaimNotFound
	}
	if c.Status != ClaimStatusPending {
		return nil, pool.ErrVotingClosed
	}
	if now >= c.VotingEndsAt {
		return nil, pool.ErrVotingClosed
	}
	if _, voted := c.Votes[voterID]; voted {
		return nil, pool.ErrDuplicateVote
	}
	if len(c.Votes) >= cm.maxVoters {
		return nil, pool.ErrNotAuthorized
	}

	c.Votes[voterID] = approve
	if approve {
		c.VotesFor++
	} else {
		c.VotesAgainst++
	}
	c.Version++

	return c, nil
}

// Settle finalizes a pending claim once its window has closed. Approval
// requires a strict majority of votes cast; ties and no-vote claims are
// rejected. The payout itself is the caller's responsibility.
func (cm *ClaimManager) Settle(claimID int64, now int64) (*Claim, error) {
	c := cm.claims[claimID]
	if c == nil {
		return nil, pool.ErrClaimNotFound
	}
	if c.Status != ClaimStatusPending {
		return nil, pool.ErrClaimFinalized
	}
	if now < c.VotingEndsAt {
		return nil, pool.ErrVotingNotEnded
	}

	if c.VotesFor > c.VotesAgainst {
		c.Status = ClaimStatusApproved
	} else {
		c.Status = ClaimStatusRejected
	}
	c.SettledAt = now
	c.Version++

	return c, nil
}

// PendingClaims returns all pending claims ordered by claim ID
func (cm *ClaimManager) PendingClaims() []*Claim {
	result := make([]*Claim, 0, len(cm.claims))
	for _, c := range cm.claims {
		if c.Status == ClaimStatusPending {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ClaimID < result[j].ClaimID })
	return result
}

// AllClaims returns every claim ordered by claim ID (for snapshots)
func (cm *ClaimManager) AllClaims() []*Claim {
	result := make([]*Claim, 0, len(cm.claims))
	for _, c := range cm.claims {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ClaimID < result[j].ClaimID })
	return result
}

// NextClaimID returns the counter value (for snapshots)
func (cm *ClaimManager) NextClaimID() int64 {
	return cm.nextClaimID
}

// SetClaim directly installs a claim (used for snapshot restore)
func (cm *ClaimManager) SetClaim(c *Claim) {
	if c.Votes == nil {
		c.Votes = make(map[uuid.UUID]bool)
	}
	cm.claims[c.ClaimID] = c
	if c.ClaimID >= cm.nextClaimID {
		cm.nextClaimID = c.ClaimID + 1
	}
}
