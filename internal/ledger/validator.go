package ledger

import "fmt"

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies batch is balanced
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateTreasuryNonNegative verifies the treasury never went below zero
func (v *InvariantValidator) ValidateTreasuryNonNegative() error {
	return v.tracker.ValidateNonNegative(TreasuryKey())
}

// ValidateGlobalBalance verifies the system is zero-sum. Member external
// accounts are boundary accounts and absorb the negative side of every
// contribution, so the sum over all accounts must stay exactly zero.
func (v *InvariantValidator) ValidateGlobalBalance() error {
	if total := v.tracker.ComputeGlobalBalance(); total != 0 {
		return fmt.Errorf("global balance is non-zero: %d", total)
	}
	return nil
}
