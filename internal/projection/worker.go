package projection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"PoolLedger/internal/event"
	"PoolLedger/internal/observability"
)

// JournalEntry is the projection-side view of one ledger journal. Debit
// increases the account balance, credit decreases it, matching the core's
// balance tracker.
type JournalEntry struct {
	DebitAccount  string
	CreditAccount string
	Amount        int64
	JournalType   string
}

// ProjectionOutput is one applied command, flattened for projection workers.
// The orchestrator converts core output into this form so the projection
// package never imports the core.
type ProjectionOutput struct {
	Sequence    int64
	CommandType event.CommandType
	Timestamp   int64 // clamped logical time the core applied the command at
	Payload     []byte
	Result      event.Result
	Journals    []JournalEntry
}

// poolStatsCacheKey is invalidated after every committed projection update
// so the query layer's read-through cache never serves a stale treasury.
const poolStatsCacheKey = "pool:stats"

// ProjectionWorker consumes applied commands and maintains the queryable
// tables under the projections schema. Updates are eventually consistent:
// a failed update is logged and skipped, and RebuildProjections recovers
// the tables from the event log.
type ProjectionWorker struct {
	db           *sql.DB
	outputChan   <-chan ProjectionOutput
	cache        *redis.Client // optional; nil disables invalidation
	votingPeriod int64         // microseconds, sets claims voting_ends_at
	claimHistory *ClaimHistoryProjection
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

func NewProjectionWorker(
	db *sql.DB,
	outputChan <-chan ProjectionOutput,
	cache *redis.Client,
	votingPeriod int64,
	metrics *observability.Metrics,
) *ProjectionWorker {
	return &ProjectionWorker{
		db:           db,
		outputChan:   outputChan,
		cache:        cache,
		votingPeriod: votingPeriod,
		claimHistory: NewClaimHistoryProjection(),
		metrics:      metrics,
		logger:       observability.NewLogger("projection"),
	}
}

// ClaimHistory exposes the in-memory settlement history for read endpoints.
func (w *ProjectionWorker) ClaimHistory() *ClaimHistoryProjection {
	return w.claimHistory
}

// Run drains the projection channel until ctx is cancelled and the channel
// is closed. Each output is applied in its own transaction.
func (w *ProjectionWorker) Run(ctx context.Context) {
	w.logger.Info().Msg("projection worker started")

	for {
		select {
		case output, ok := <-w.outputChan:
			if !ok {
				w.logger.Info().Msg("projection channel closed, worker stopping")
				return
			}
			w.processOutput(ctx, output)

		case <-ctx.Done():
			// Drain what is already buffered before stopping
			for {
				select {
				case output, ok := <-w.outputChan:
					if !ok {
						return
					}
					w.processOutput(context.Background(), output)
				default:
					w.logger.Info().Msg("projection worker stopped")
					return
				}
			}
		}
	}
}

// processOutput applies one command's projection footprint. Errors are
// logged and the output is skipped; the tables stay recoverable via rebuild.
func (w *ProjectionWorker) processOutput(ctx context.Context, output ProjectionOutput) {
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		w.logger.Warn().Err(err).Int64("sequence", output.Sequence).Msg("projection tx begin failed, skipping")
		return
	}
	defer tx.Rollback()

	if err := w.applyBalances(ctx, tx, output); err != nil {
		w.logger.Warn().Err(err).Int64("sequence", output.Sequence).Msg("balance projection failed, skipping")
		return
	}

	if err := w.applyCommand(ctx, tx, output); err != nil {
		w.logger.Warn().Err(err).
			Int64("sequence", output.Sequence).
			Str("command_type", output.CommandType.String()).
			Msg("command projection failed, skipping")
		return
	}

	if err := w.updateWatermark(ctx, tx, output.Sequence); err != nil {
		w.logger.Warn().Err(err).Int64("sequence", output.Sequence).Msg("watermark update failed, skipping")
		return
	}

	if err := tx.Commit(); err != nil {
		w.logger.Warn().Err(err).Int64("sequence", output.Sequence).Msg("projection commit failed, skipping")
		return
	}

	w.invalidateStatsCache(ctx)

	if w.metrics != nil {
		w.metrics.ProjectionUpdateDur.WithLabelValues(output.CommandType.String()).Observe(time.Since(start).Seconds())
	}
}

func (w *ProjectionWorker) applyBalances(ctx context.Context, tx *sql.Tx, output ProjectionOutput) error {
	for _, j := range output.Journals {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.balances (account_path, balance, last_sequence)
			VALUES ($1, $2, $3)
			ON CONFLICT (account_path) DO UPDATE SET
				balance = projections.balances.balance + $2,
				last_sequence = $3
		`, j.DebitAccount, j.Amount, output.Sequence)
		if err != nil {
			return fmt.Errorf("debit %s: %w", j.DebitAccount, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO projections.balances (account_path, balance, last_sequence)
			VALUES ($1, $2, $3)
			ON CONFLICT (account_path) DO UPDATE SET
				balance = projections.balances.balance - $4,
				last_sequence = $3
		`, j.CreditAccount, -j.Amount, output.Sequence, j.Amount)
		if err != nil {
			return fmt.Errorf("credit %s: %w", j.CreditAccount, err)
		}
	}
	return nil
}

func (w *ProjectionWorker) applyCommand(ctx context.Context, tx *sql.Tx, output ProjectionOutput) error {
	cmd, err := event.UnmarshalCommand(output.Payload)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch c := cmd.(type) {
	case *event.JoinPool:
		return w.projectJoinPool(ctx, tx, c, output)
	case *event.PayPremium:
		return w.projectPayPremium(ctx, tx, c, output)
	case *event.UpdateRiskScore:
		return w.projectRiskUpdate(ctx, tx, c, output)
	case *event.SubmitClaim:
		return w.projectSubmitClaim(ctx, tx, c, output)
	case *event.CastVote:
		return w.projectCastVote(ctx, tx, c)
	case *event.ProcessClaim:
		return w.projectProcessClaim(ctx, tx, c, output)
	case *event.SetOracle:
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.pool_state SET oracle_account = $1, last_sequence = $2
		`, c.OracleAccount.String(), output.Sequence)
		return err
	case *event.SetPoolActive:
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.pool_state SET active = $1, last_sequence = $2
		`, c.Active, output.Sequence)
		return err
	case *event.DistributeSurplus:
		// Share reports go outbound; only the sequence watermark on
		// pool_state needs refreshing.
		return w.refreshTreasury(ctx, tx, output)
	default:
		return fmt.Errorf("unhandled command type %s", output.CommandType)
	}
}

func (w *ProjectionWorker) projectJoinPool(ctx context.Context, tx *sql.Tx, c *event.JoinPool, output ProjectionOutput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.policies (
			policy_id, member_id, vehicle_id, risk_score, premium,
			balance, active, created_at, last_score_update, version
		) VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $7, 1)
		ON CONFLICT (policy_id) DO NOTHING
	`, output.Result.PolicyID, c.Account.String(), c.VehicleID,
		50, output.Result.Premium, c.Deposit, output.Timestamp)
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE projections.pool_state SET
			treasury_balance = $1,
			policy_count = policy_count + 1,
			last_sequence = $2
	`, output.Result.TreasuryBalance, output.Sequence)
	if err != nil {
		return fmt.Errorf("update pool_state: %w", err)
	}

	if w.metrics != nil {
		w.metrics.PoliciesActive.Inc()
	}
	return nil
}

func (w *ProjectionWorker) projectPayPremium(ctx context.Context, tx *sql.Tx, c *event.PayPremium, output ProjectionOutput) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE projections.policies SET
			balance = balance + $1,
			last_score_update = $2,
			version = version + 1
		WHERE policy_id = $3
	`, output.Result.Premium, output.Timestamp, c.PolicyID)
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	return w.refreshTreasury(ctx, tx, output)
}

func (w *ProjectionWorker) projectRiskUpdate(ctx context.Context, tx *sql.Tx, c *event.UpdateRiskScore, output ProjectionOutput) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE projections.policies SET
			risk_score = $1,
			premium = $2,
			last_score_update = $3,
			version = version + 1
		WHERE policy_id = $4
	`, c.NewScore, output.Result.Premium, output.Timestamp, c.PolicyID)
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}

	// Append-only history. The core keeps latest-only per policy; the
	// projection keeps the full audit trail.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO projections.risk_adjustments (
			policy_id, sequence, new_score, new_premium,
			adjustment_factor, updated_by, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (policy_id, sequence) DO NOTHING
	`, c.PolicyID, output.Sequence, c.NewScore, output.Result.Premium,
		output.Result.AdjustmentFactor, c.Account.String(), output.Timestamp)
	if err != nil {
		return fmt.Errorf("insert risk adjustment: %w", err)
	}
	return nil
}

func (w *ProjectionWorker) projectSubmitClaim(ctx context.Context, tx *sql.Tx, c *event.SubmitClaim, output ProjectionOutput) error {
	// Mirrors the core: the verdict only counts when evidence is attached.
	evidenceVerified := c.CrashDataHash != "" && c.EvidenceVerified
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.claims (
			claim_id, policy_id, claimant_id, amount, description,
			status, votes_for, votes_against, evidence_verified,
			crash_data_hash, created_at, voting_ends_at
		) VALUES ($1, $2, $3, $4, $5, 'pending', 0, 0, $6, $7, $8, $9)
		ON CONFLICT (claim_id) DO NOTHING
	`, output.Result.ClaimID, c.PolicyID, c.Account.String(), c.Amount,
		c.Description, evidenceVerified, c.CrashDataHash, output.Timestamp,
		output.Timestamp+w.votingPeriod)
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE projections.pool_state SET
			claim_count = claim_count + 1,
			open_claims = open_claims + 1,
			last_sequence = $1
	`, output.Sequence)
	return err
}

func (w *ProjectionWorker) projectCastVote(ctx context.Context, tx *sql.Tx, c *event.CastVote) error {
	var query string
	if c.Approve {
		query = `UPDATE projections.claims SET votes_for = votes_for + 1 WHERE claim_id = $1`
	} else {
		query = `UPDATE projections.claims SET votes_against = votes_against + 1 WHERE claim_id = $1`
	}
	if _, err := tx.ExecContext(ctx, query, c.ClaimID); err != nil {
		return fmt.Errorf("update claim votes: %w", err)
	}
	return nil
}

func (w *ProjectionWorker) projectProcessClaim(ctx context.Context, tx *sql.Tx, c *event.ProcessClaim, output ProjectionOutput) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE projections.claims SET
			status = $1,
			payout = $2,
			settled_at = $3
		WHERE claim_id = $4
	`, output.Result.ClaimStatus, output.Result.Payout, output.Timestamp, c.ClaimID)
	if err != nil {
		return fmt.Errorf("settle claim: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE projections.pool_state SET
			treasury_balance = $1,
			open_claims = GREATEST(open_claims - 1, 0),
			last_sequence = $2
	`, output.Result.TreasuryBalance, output.Sequence)
	if err != nil {
		return fmt.Errorf("update pool_state: %w", err)
	}

	w.claimHistory.AddEntry(ClaimHistoryEntry{
		ClaimID:   c.ClaimID,
		Initiator: c.Account,
		Status:    output.Result.ClaimStatus,
		Payout:    output.Result.Payout,
		Sequence:  output.Sequence,
		Timestamp: output.Timestamp,
	})
	return nil
}

func (w *ProjectionWorker) refreshTreasury(ctx context.Context, tx *sql.Tx, output ProjectionOutput) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE projections.pool_state SET treasury_balance = $1, last_sequence = $2
	`, output.Result.TreasuryBalance, output.Sequence)
	return err
}

func (w *ProjectionWorker) updateWatermark(ctx context.Context, tx *sql.Tx, sequence int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET
			last_sequence = $1,
			updated_at = NOW()
	`, sequence)
	return err
}

func (w *ProjectionWorker) invalidateStatsCache(ctx context.Context) {
	if w.cache == nil {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	if err := w.cache.Del(opCtx, poolStatsCacheKey).Err(); err != nil {
		w.logger.Debug().Err(err).Msg("pool stats cache invalidation failed")
	}
}

// RebuildProjections wipes the projection tables and rebuilds them.
// Balances come straight from the persisted journal; the domain tables are
// rebuilt from outputs regenerated by event-log replay, which the
// orchestrator streams in through the outputs channel.
func (w *ProjectionWorker) RebuildProjections(ctx context.Context, outputs <-chan ProjectionOutput) error {
	w.logger.Info().Msg("rebuilding projections from event log")

	if _, err := w.db.ExecContext(ctx, `
		TRUNCATE projections.balances,
		         projections.policies,
		         projections.claims,
		         projections.risk_adjustments,
		         projections.watermark
	`); err != nil {
		return fmt.Errorf("truncate projections: %w", err)
	}
	if _, err := w.db.ExecContext(ctx, `
		UPDATE projections.pool_state SET
			treasury_balance = 0, policy_count = 0,
			claim_count = 0, open_claims = 0, last_sequence = 0
	`); err != nil {
		return fmt.Errorf("reset pool_state: %w", err)
	}

	if _, err := w.db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, balance, last_sequence)
		SELECT debit_account, SUM(amount), MAX(sequence)
		FROM event_log.journal
		GROUP BY debit_account
		ON CONFLICT (account_path) DO UPDATE SET
			balance = projections.balances.balance + EXCLUDED.balance,
			last_sequence = GREATEST(projections.balances.last_sequence, EXCLUDED.last_sequence)
	`); err != nil {
		return fmt.Errorf("rebuild debit balances: %w", err)
	}
	if _, err := w.db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, balance, last_sequence)
		SELECT credit_account, -SUM(amount), MAX(sequence)
		FROM event_log.journal
		GROUP BY credit_account
		ON CONFLICT (account_path) DO UPDATE SET
			balance = projections.balances.balance + EXCLUDED.balance,
			last_sequence = GREATEST(projections.balances.last_sequence, EXCLUDED.last_sequence)
	`); err != nil {
		return fmt.Errorf("rebuild credit balances: %w", err)
	}

	total := 0
	for output := range outputs {
		tx, err := w.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("rebuild tx begin at %d: %w", output.Sequence, err)
		}
		if err := w.applyCommand(ctx, tx, output); err != nil {
			tx.Rollback()
			return fmt.Errorf("rebuild apply at %d: %w", output.Sequence, err)
		}
		if err := w.updateWatermark(ctx, tx, output.Sequence); err != nil {
			tx.Rollback()
			return fmt.Errorf("rebuild watermark at %d: %w", output.Sequence, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("rebuild commit at %d: %w", output.Sequence, err)
		}
		total++
	}

	w.invalidateStatsCache(ctx)
	w.logger.Info().Int("commands", total).Msg("projection rebuild complete")
	return nil
}
