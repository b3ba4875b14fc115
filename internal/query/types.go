package query

// PolicyResponse represents a policy for API queries
type PolicyResponse struct {
	PolicyID        int64  `json:"policy_id"`
	MemberID        string `json:"member_id"`
	VehicleID       string `json:"vehicle_id"`
	RiskScore       int    `json:"risk_score"`
	Premium         int64  `json:"premium"`
	Balance         int64  `json:"balance"`
	Active          bool   `json:"active"`
	CreatedAt       int64  `json:"created_at"`
	LastScoreUpdate int64  `json:"last_score_update"`
	Version         int64  `json:"version"`
	AsOfSequence    int64  `json:"as_of_sequence"`
}

// ClaimResponse represents a claim for API queries
type ClaimResponse struct {
	ClaimID          int64  `json:"claim_id"`
	PolicyID         int64  `json:"policy_id"`
	ClaimantID       string `json:"claimant_id"`
	Amount           int64  `json:"amount"`
	Description      string `json:"description"`
	Status           string `json:"status"`
	VotesFor         int    `json:"votes_for"`
	VotesAgainst     int    `json:"votes_against"`
	EvidenceVerified bool   `json:"evidence_verified"`
	CrashDataHash    string `json:"crash_data_hash,omitempty"`
	Payout           int64  `json:"payout"`
	CreatedAt        int64  `json:"created_at"`
	VotingEndsAt     int64  `json:"voting_ends_at"`
	SettledAt        *int64 `json:"settled_at,omitempty"`
	AsOfSequence     int64  `json:"as_of_sequence"`
}

// PoolStatsResponse is the pool-wide snapshot for API queries
type PoolStatsResponse struct {
	TreasuryBalance int64  `json:"treasury_balance"`
	PolicyCount     int64  `json:"policy_count"`
	ClaimCount      int64  `json:"claim_count"`
	OpenClaims      int64  `json:"open_claims"`
	Active          bool   `json:"active"`
	OracleAccount   string `json:"oracle_account,omitempty"`
	AsOfSequence    int64  `json:"as_of_sequence"`
}

// RiskAdjustmentResponse is one entry of a policy's score history
type RiskAdjustmentResponse struct {
	PolicyID         int64  `json:"policy_id"`
	Sequence         int64  `json:"sequence"`
	NewScore         int    `json:"new_score"`
	NewPremium       int64  `json:"new_premium"`
	AdjustmentFactor int64  `json:"adjustment_factor"`
	UpdatedBy        string `json:"updated_by"`
	OccurredAt       int64  `json:"occurred_at"`
}

// PremiumQuote is a pure repricing preview for a hypothetical score
type PremiumQuote struct {
	RiskScore int   `json:"risk_score"`
	Premium   int64 `json:"premium"`
}

// BalanceResponse represents one account's projected ledger balance
type BalanceResponse struct {
	AccountPath  string `json:"account_path"`
	Balance      int64  `json:"balance"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// JournalHistoryEntry represents a journal entry for API queries
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	Amount        int64  `json:"amount"`
	JournalType   int32  `json:"journal_type"`
	Timestamp     int64  `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
	GlobalImbalance int64   `json:"global_imbalance"`
}
