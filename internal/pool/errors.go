package pool

import "errors"

// Error taxonomy. Every failure aborts the attempted command atomically and
// is surfaced to the caller; there is no retry tier — all errors are
// caller-recoverable with corrected inputs.
var (
	// ErrNotAuthorized: caller lacks the required role (owner, oracle,
	// administrator) or a capacity bound was exceeded.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrInsufficientFunds: deposit or premium below the required minimum,
	// or the external funds transfer failed.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrPolicyNotFound: missing or inactive policy referenced.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrInvalidRiskScore: score outside [1,100].
	ErrInvalidRiskScore = errors.New("invalid risk score")

	// ErrPoolInsufficient: treasury lacks funds for a claim at submission
	// or settlement time.
	ErrPoolInsufficient = errors.New("pool balance insufficient")

	// ErrVotingClosed: vote cast at or after the voting window end.
	ErrVotingClosed = errors.New("voting closed")

	// ErrVotingNotEnded: settlement attempted before the window end.
	ErrVotingNotEnded = errors.New("voting not ended")

	// ErrDuplicateVote: same account voting twice on one claim.
	ErrDuplicateVote = errors.New("duplicate vote")

	// ErrNotMember: voter not present in the member policy index.
	ErrNotMember = errors.New("not a pool member")

	// ErrTooManyPolicies: member policy index cap exceeded on join.
	ErrTooManyPolicies = errors.New("too many policies")

	// ErrClaimNotFound: unknown claim id.
	ErrClaimNotFound = errors.New("claim not found")

	// ErrInvalidEvidence: crash data hash present but not a 32-byte
	// hex-encoded fingerprint.
	ErrInvalidEvidence = errors.New("invalid crash data hash")

	// ErrClaimFinalized: claim already approved or rejected. Guards
	// settlement against double payout.
	ErrClaimFinalized = errors.New("claim already finalized")

	// ErrPoolInactive: joins are gated on the pool active flag.
	ErrPoolInactive = errors.New("pool not active")
)
