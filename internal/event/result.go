package event

import "github.com/google/uuid"

// ShareReport is one policy's surplus share on the wire
type ShareReport struct {
	PolicyID int64     `json:"policy_id"`
	MemberID uuid.UUID `json:"member_id"`
	Amount   int64     `json:"amount"`
}

// Result is the synchronous outcome of an applied command, returned to the
// API caller and published outbound alongside the envelope. Fields are
// populated per command type; zero values mean not applicable.
type Result struct {
	Sequence  int64 `json:"sequence"`
	Duplicate bool  `json:"duplicate,omitempty"`

	PolicyID int64 `json:"policy_id,omitempty"`
	ClaimID  int64 `json:"claim_id,omitempty"`

	Premium          int64  `json:"premium,omitempty"`
	AdjustmentFactor int64  `json:"adjustment_factor,omitempty"`
	ClaimStatus      string `json:"claim_status,omitempty"`
	Payout           int64  `json:"payout,omitempty"`
	Claimant         string `json:"claimant,omitempty"`

	TreasuryBalance int64 `json:"treasury_balance"`

	Surplus int64         `json:"surplus,omitempty"`
	Shares  []ShareReport `json:"shares,omitempty"`
}
