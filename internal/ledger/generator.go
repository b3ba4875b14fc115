package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalGenerator creates balanced journal batches from commands
type JournalGenerator struct {
	sequence       int64
	balanceTracker *BalanceTracker // for treasury pre-checks
}

func NewJournalGenerator(startSequence int64, tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		sequence:       startSequence,
		balanceTracker: tracker,
	}
}

// Sequence returns the next batch sequence to be assigned
func (jg *JournalGenerator) Sequence() int64 {
	return jg.sequence
}

// SetSequence resets the counter after a snapshot restore
func (jg *JournalGenerator) SetSequence(seq int64) {
	jg.sequence = seq
}

// GenerateDeposit creates journals for a member's initial deposit on join.
// Moves funds: member:external → pool:treasury
func (jg *JournalGenerator) GenerateDeposit(
	memberID uuid.UUID,
	eventRef string,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("deposit amount must be positive: %d", amount)
	}
	return jg.singleTransfer(
		eventRef,
		TreasuryKey(),
		NewMemberExternalKey(memberID),
		amount,
		JournalTypeDeposit,
		timestamp,
	), nil
}

// GeneratePremium creates journals for a periodic premium payment.
// Moves funds: member:external → pool:treasury
func (jg *JournalGenerator) GeneratePremium(
	memberID uuid.UUID,
	eventRef string,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("premium amount must be positive: %d", amount)
	}
	return jg.singleTransfer(
		eventRef,
		TreasuryKey(),
		NewMemberExternalKey(memberID),
		amount,
		JournalTypePremium,
		timestamp,
	), nil
}

// GenerateClaimPayout creates journals for an approved claim settlement.
// Moves funds: pool:treasury → member:external
// Pre-check: the treasury must cover the payout.
func (jg *JournalGenerator) GenerateClaimPayout(
	memberID uuid.UUID,
	eventRef string,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("payout amount must be positive: %d", amount)
	}
	if err := jg.balanceTracker.ValidateTreasuryCanCover(amount); err != nil {
		return nil, fmt.Errorf("claim payout pre-check failed: %w", err)
	}
	return jg.singleTransfer(
		eventRef,
		NewMemberExternalKey(memberID),
		TreasuryKey(),
		amount,
		JournalTypeClaimPayout,
		timestamp,
	), nil
}

func (jg *JournalGenerator) singleTransfer(
	eventRef string,
	debit, credit AccountKey,
	amount int64,
	journalType JournalType,
	timestamp int64,
) *Batch {
	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals: []Journal{{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			EventRef:      eventRef,
			Sequence:      jg.sequence,
			DebitAccount:  debit,
			CreditAccount: credit,
			Amount:        amount,
			JournalType:   journalType,
			Timestamp:     timestamp,
		}},
	}

	jg.sequence++
	return batch
}
