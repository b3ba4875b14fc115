package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	poolmath "PoolLedger/internal/math"
	"PoolLedger/internal/observability"
	"PoolLedger/internal/pool"
)

// poolStatsCacheKey matches the key the projection worker invalidates on
// every committed update.
const poolStatsCacheKey = "pool:stats"

const poolStatsCacheTTL = 5 * time.Second

// QueryService serves the read API from the projection tables. Responses
// carry as_of_sequence so callers can reason about freshness relative to
// the synchronous command results they hold.
type QueryService struct {
	db      *sql.DB
	cache   *redis.Client // optional; nil disables the stats cache
	params  pool.Params
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewQueryService(db *sql.DB, cache *redis.Client, params pool.Params, metrics *observability.Metrics) *QueryService {
	return &QueryService{
		db:      db,
		cache:   cache,
		params:  params,
		metrics: metrics,
		logger:  observability.NewLogger("query"),
	}
}

// GetPolicy returns one policy by id.
func (qs *QueryService) GetPolicy(ctx context.Context, policyID int64) (*PolicyResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var p PolicyResponse
	p.AsOfSequence = asOfSeq
	err = qs.db.QueryRowContext(ctx, `
		SELECT policy_id, member_id, vehicle_id, risk_score, premium,
		       balance, active, created_at, last_score_update, version
		FROM projections.policies
		WHERE policy_id = $1
	`, policyID).Scan(
		&p.PolicyID, &p.MemberID, &p.VehicleID, &p.RiskScore, &p.Premium,
		&p.Balance, &p.Active, &p.CreatedAt, &p.LastScoreUpdate, &p.Version,
	)
	if err == sql.ErrNoRows {
		return nil, pool.ErrPolicyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetMemberPolicies returns all policies owned by a member, oldest first.
func (qs *QueryService) GetMemberPolicies(ctx context.Context, memberID uuid.UUID) ([]PolicyResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT policy_id, member_id, vehicle_id, risk_score, premium,
		       balance, active, created_at, last_score_update, version
		FROM projections.policies
		WHERE member_id = $1
		ORDER BY policy_id
	`, memberID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []PolicyResponse
	for rows.Next() {
		var p PolicyResponse
		p.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&p.PolicyID, &p.MemberID, &p.VehicleID, &p.RiskScore, &p.Premium,
			&p.Balance, &p.Active, &p.CreatedAt, &p.LastScoreUpdate, &p.Version,
		); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// IsMember reports whether the account owns at least one policy. Membership
// never lapses: once enrolled, a member stays in the voter set.
func (qs *QueryService) IsMember(ctx context.Context, memberID uuid.UUID) (bool, error) {
	var exists bool
	err := qs.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM projections.policies WHERE member_id = $1)
	`, memberID.String()).Scan(&exists)
	return exists, err
}

// GetClaim returns one claim by id.
func (qs *QueryService) GetClaim(ctx context.Context, claimID int64) (*ClaimResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var c ClaimResponse
	var settledAt int64
	c.AsOfSequence = asOfSeq
	err = qs.db.QueryRowContext(ctx, `
		SELECT claim_id, policy_id, claimant_id, amount, description, status,
		       votes_for, votes_against, evidence_verified, crash_data_hash,
		       payout, created_at, voting_ends_at, COALESCE(settled_at, 0)
		FROM projections.claims
		WHERE claim_id = $1
	`, claimID).Scan(
		&c.ClaimID, &c.PolicyID, &c.ClaimantID, &c.Amount, &c.Description,
		&c.Status, &c.VotesFor, &c.VotesAgainst, &c.EvidenceVerified,
		&c.CrashDataHash, &c.Payout, &c.CreatedAt, &c.VotingEndsAt, &settledAt,
	)
	if err == sql.ErrNoRows {
		return nil, pool.ErrClaimNotFound
	}
	if err != nil {
		return nil, err
	}
	if settledAt != 0 {
		c.SettledAt = &settledAt
	}
	return &c, nil
}

// GetPolicyClaims returns all claims filed against a policy, newest first.
func (qs *QueryService) GetPolicyClaims(ctx context.Context, policyID int64, limit int) ([]ClaimResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT claim_id, policy_id, claimant_id, amount, description, status,
		       votes_for, votes_against, evidence_verified, crash_data_hash,
		       payout, created_at, voting_ends_at, COALESCE(settled_at, 0)
		FROM projections.claims
		WHERE policy_id = $1
		ORDER BY claim_id DESC
		LIMIT $2
	`, policyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []ClaimResponse
	for rows.Next() {
		var c ClaimResponse
		var settledAt int64
		c.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&c.ClaimID, &c.PolicyID, &c.ClaimantID, &c.Amount, &c.Description,
			&c.Status, &c.VotesFor, &c.VotesAgainst, &c.EvidenceVerified,
			&c.CrashDataHash, &c.Payout, &c.CreatedAt, &c.VotingEndsAt, &settledAt,
		); err != nil {
			return nil, err
		}
		if settledAt != 0 {
			c.SettledAt = &settledAt
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// GetPoolStats returns the pool-wide snapshot, read-through Redis. The
// projection worker deletes the cache key after every committed update, so
// a hit is never staler than the configured TTL.
func (qs *QueryService) GetPoolStats(ctx context.Context) (*PoolStatsResponse, error) {
	if qs.cache != nil {
		cached, err := qs.cache.Get(ctx, poolStatsCacheKey).Bytes()
		if err == nil {
			var stats PoolStatsResponse
			if err := json.Unmarshal(cached, &stats); err == nil {
				if qs.metrics != nil {
					qs.metrics.QueryCacheHits.WithLabelValues("pool_stats", "hit").Inc()
				}
				return &stats, nil
			}
		} else if err != redis.Nil {
			qs.logger.Debug().Err(err).Msg("pool stats cache read failed")
		}
		if qs.metrics != nil {
			qs.metrics.QueryCacheHits.WithLabelValues("pool_stats", "miss").Inc()
		}
	}

	var stats PoolStatsResponse
	var oracle sql.NullString
	err := qs.db.QueryRowContext(ctx, `
		SELECT treasury_balance, policy_count, claim_count, open_claims,
		       active, oracle_account, last_sequence
		FROM projections.pool_state
	`).Scan(
		&stats.TreasuryBalance, &stats.PolicyCount, &stats.ClaimCount,
		&stats.OpenClaims, &stats.Active, &oracle, &stats.AsOfSequence,
	)
	if err != nil {
		return nil, err
	}
	if oracle.Valid {
		stats.OracleAccount = oracle.String
	}

	if qs.cache != nil {
		if data, err := json.Marshal(&stats); err == nil {
			if err := qs.cache.Set(ctx, poolStatsCacheKey, data, poolStatsCacheTTL).Err(); err != nil {
				qs.logger.Debug().Err(err).Msg("pool stats cache write failed")
			}
		}
	}
	return &stats, nil
}

// GetRiskHistory returns a policy's score adjustment history, newest first.
func (qs *QueryService) GetRiskHistory(ctx context.Context, policyID int64, limit int) ([]RiskAdjustmentResponse, error) {
	rows, err := qs.db.QueryContext(ctx, `
		SELECT policy_id, sequence, new_score, new_premium,
		       adjustment_factor, updated_by, occurred_at
		FROM projections.risk_adjustments
		WHERE policy_id = $1
		ORDER BY sequence DESC
		LIMIT $2
	`, policyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []RiskAdjustmentResponse
	for rows.Next() {
		var r RiskAdjustmentResponse
		if err := rows.Scan(
			&r.PolicyID, &r.Sequence, &r.NewScore, &r.NewPremium,
			&r.AdjustmentFactor, &r.UpdatedBy, &r.OccurredAt,
		); err != nil {
			return nil, err
		}
		history = append(history, r)
	}
	return history, rows.Err()
}

// ComputePremium is a pure repricing preview: the premium a policy would
// carry at the given score, with no state touched.
func (qs *QueryService) ComputePremium(riskScore int) (*PremiumQuote, error) {
	if riskScore < pool.MinRiskScore || riskScore > pool.MaxRiskScore {
		return nil, pool.ErrInvalidRiskScore
	}
	return &PremiumQuote{
		RiskScore: riskScore,
		Premium:   poolmath.PremiumForScore(qs.params.BasePremium, riskScore),
	}, nil
}

// GetBalance returns one projected account balance by path.
func (qs *QueryService) GetBalance(ctx context.Context, accountPath string) (*BalanceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var balance int64
	err = qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(balance, 0) FROM projections.balances
		WHERE account_path = $1
	`, accountPath).Scan(&balance)
	if err == sql.ErrNoRows {
		balance = 0
	} else if err != nil {
		return nil, err
	}

	return &BalanceResponse{
		AccountPath:  accountPath,
		Balance:      balance,
		AsOfSequence: asOfSeq,
	}, nil
}

// GetJournalHistory returns journal entries touching a member's accounts,
// newest first, with cursor pagination on sequence.
func (qs *QueryService) GetJournalHistory(
	ctx context.Context,
	memberID uuid.UUID,
	limit int,
	afterSequence *int64,
) ([]JournalHistoryEntry, error) {
	accountPrefix := fmt.Sprintf("member:%s:%%", memberID)

	query := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, amount, journal_type, timestamp
		FROM event_log.journal
		WHERE debit_account LIKE $1 OR credit_account LIKE $1
	`
	args := []interface{}{accountPrefix}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.Amount,
			&e.JournalType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity in the event log and the
// global zero-sum invariant over projected balances.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT c1.sequence
		FROM event_log.commands c1
		JOIN event_log.commands c2 ON c2.sequence = c1.sequence - 1
		WHERE c1.prev_hash != c2.state_hash
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(balance), 0) FROM projections.balances
	`).Scan(&report.GlobalImbalance)
	if err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && report.GlobalImbalance == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
