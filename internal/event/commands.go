package event

import "github.com/google/uuid"

// JoinPool enrolls a vehicle: the actor deposits into the treasury and
// receives a new policy at the default risk score.
type JoinPool struct {
	Meta
	VehicleID string `json:"vehicle_id"`
	Deposit   int64  `json:"deposit"`
}

func (c *JoinPool) CommandType() CommandType { return CommandTypeJoinPool }

// PayPremium pays one premium period on a policy the actor owns. The
// amount charged is always the policy's current premium.
type PayPremium struct {
	Meta
	PolicyID int64 `json:"policy_id"`
}

func (c *PayPremium) CommandType() CommandType { return CommandTypePayPremium }

// UpdateRiskScore applies an oracle-sourced score to a policy and reprices
// its premium
type UpdateRiskScore struct {
	Meta
	PolicyID int64 `json:"policy_id"`
	NewScore int   `json:"new_score"`
}

func (c *UpdateRiskScore) CommandType() CommandType { return CommandTypeUpdateRiskScore }

// SubmitClaim opens a damage claim against a policy the actor owns.
// CrashDataHash is the hex-encoded 32-byte fingerprint of the crash
// evidence; EvidenceVerified is the oracle's verdict on that evidence,
// stamped at the edge so replaying the stored payload reproduces it.
type SubmitClaim struct {
	Meta
	PolicyID         int64  `json:"policy_id"`
	Amount           int64  `json:"amount"`
	Description      string `json:"description"`
	CrashDataHash    string `json:"crash_data_hash"`
	EvidenceVerified bool   `json:"evidence_verified"`
}

func (c *SubmitClaim) CommandType() CommandType { return CommandTypeSubmitClaim }

// CastVote records the actor's vote on a pending claim
type CastVote struct {
	Meta
	ClaimID int64 `json:"claim_id"`
	Approve bool  `json:"approve"`
}

func (c *CastVote) CommandType() CommandType { return CommandTypeCastVote }

// ProcessClaim settles a claim whose voting window has closed
type ProcessClaim struct {
	Meta
	ClaimID int64 `json:"claim_id"`
}

func (c *ProcessClaim) CommandType() CommandType { return CommandTypeProcessClaim }

// DistributeSurplus computes per-policy surplus shares for a period. The
// share report is published outbound; no treasury funds move.
type DistributeSurplus struct {
	Meta
	Period string `json:"period"`
}

func (c *DistributeSurplus) CommandType() CommandType { return CommandTypeDistributeSurplus }

// SetOracle registers the oracle account (owner only)
type SetOracle struct {
	Meta
	OracleAccount uuid.UUID `json:"oracle_account"`
}

func (c *SetOracle) CommandType() CommandType { return CommandTypeSetOracle }

// SetPoolActive toggles whether the pool accepts new joins (owner only)
type SetPoolActive struct {
	Meta
	Active bool `json:"active"`
}

func (c *SetPoolActive) CommandType() CommandType { return CommandTypeSetPoolActive }
