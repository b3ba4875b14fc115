// Package pool holds the domain contract shared by every layer: pool
// parameters, the error taxonomy, and the external collaborator interfaces
// (oracle capability, funds-transfer facility, logical clock).
package pool

// Params are the pool-wide constants. Amounts are fixed-point currency
// micro-units; durations are logical-time units (same scale as command
// timestamps).
type Params struct {
	// BasePremium is the premium at the default risk score, and the
	// minimum deposit accepted by a join.
	BasePremium int64

	// MinPoolBalance is the reserve threshold. Treasury above it is
	// distributable surplus; it is not a hard floor on settlements.
	MinPoolBalance int64

	// VotingPeriod is the claim voting window. Votes are accepted
	// strictly before created_at + VotingPeriod.
	VotingPeriod int64

	// MaxPoliciesPerMember caps the member policy index.
	MaxPoliciesPerMember int

	// MaxVotersPerClaim caps the per-claim voter set.
	MaxVotersPerClaim int

	// DefaultRiskScore is assigned to every new policy.
	DefaultRiskScore int
}

// MaxVehicleIDBytes bounds the vehicle identifier on a policy.
const MaxVehicleIDBytes = 64

// MinRiskScore and MaxRiskScore bound oracle-reported risk scores.
const (
	MinRiskScore = 1
	MaxRiskScore = 100
)

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		BasePremium:          1_000_000,
		MinPoolBalance:       1_000_000,
		VotingPeriod:         7 * 24 * 60 * 60 * 1_000_000, // 7 days in micros
		MaxPoliciesPerMember: 10,
		MaxVotersPerClaim:    100,
		DefaultRiskScore:     50,
	}
}
