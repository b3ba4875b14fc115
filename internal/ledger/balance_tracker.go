package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// BalanceTracker maintains in-memory account balances
type BalanceTracker struct {
	balances map[AccountKey]int64
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]int64),
	}
}

// ApplyJournal applies a single journal entry to balances
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.balances[j.DebitAccount] += j.Amount
	bt.balances[j.CreditAccount] -= j.Amount
}

// ApplyBatch applies all journals in a batch
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}

	return nil
}

// GetBalance returns the current balance for an account
func (bt *BalanceTracker) GetBalance(key AccountKey) int64 {
	return bt.balances[key]
}

// TreasuryBalance returns the pooled capital available for claims and
// surplus distributions.
func (bt *BalanceTracker) TreasuryBalance() int64 {
	return bt.balances[TreasuryKey()]
}

// MemberNetFlow returns the member's boundary balance. It is negative when
// the member has paid in more than they received, positive when payouts
// exceed contributions.
func (bt *BalanceTracker) MemberNetFlow(memberID uuid.UUID) int64 {
	return bt.GetBalance(NewMemberExternalKey(memberID))
}

// ValidateTreasuryCanCover checks the treasury can fund an outflow
func (bt *BalanceTracker) ValidateTreasuryCanCover(required int64) error {
	balance := bt.TreasuryBalance()
	if balance < required {
		return fmt.Errorf("insufficient treasury balance: have=%d, need=%d", balance, required)
	}
	return nil
}

// ComputeGlobalBalance sums all account balances (zero for a zero-sum ledger)
func (bt *BalanceTracker) ComputeGlobalBalance() int64 {
	var total int64
	for _, balance := range bt.balances {
		total += balance
	}
	return total
}

// ValidateNonNegative checks that a specific account balance is >= 0
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	balance := bt.GetBalance(key)
	if balance < 0 {
		return fmt.Errorf("account %s has negative balance: %d", key.AccountPath(), balance)
	}
	return nil
}

// Snapshot returns a copy of all balances (for state hashing)
func (bt *BalanceTracker) Snapshot() map[AccountKey]int64 {
	snapshot := make(map[AccountKey]int64, len(bt.balances))
	for k, v := range bt.balances {
		snapshot[k] = v
	}
	return snapshot
}

// Restore replaces all balances from a snapshot
func (bt *BalanceTracker) Restore(snapshot map[AccountKey]int64) {
	bt.balances = make(map[AccountKey]int64, len(snapshot))
	for k, v := range snapshot {
		bt.balances[k] = v
	}
}
