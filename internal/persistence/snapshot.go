package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotManager handles creating and loading state snapshots for recovery.
// Snapshots contain balances, policies, claims, risk adjustments, the pool
// registry, sequence counters, recent idempotency keys, and the last state
// hash.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData contains the full in-memory state at a point in time.
type SnapshotData struct {
	Sequence        int64                    `json:"sequence"`
	LastTime        int64                    `json:"last_time"`
	StateHash       []byte                   `json:"state_hash"`
	Balances        map[string]int64         `json:"balances"` // AccountPath -> balance
	Policies        []PolicySnapshot         `json:"policies"`
	Claims          []ClaimSnapshot          `json:"claims"`
	RiskAdjustments []RiskAdjustmentSnapshot `json:"risk_adjustments"`
	Registry        RegistrySnap             `json:"registry"`
	SequenceState   map[string]int64         `json:"sequence_state"`   // partition -> last seen seq
	IdempotencyKeys []string                 `json:"idempotency_keys"` // Recent keys for LRU warming
	CreatedAt       time.Time                `json:"created_at"`
}

// PolicySnapshot is a serializable policy.
type PolicySnapshot struct {
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
}

// ClaimSnapshot is a serializable claim, including the voter set.
type ClaimSnapshot struct {
	ClaimID          int64           `json:"claim_id"`
	PolicyID         int64           `json:"policy_id"`
	ClaimantID       string          `json:"claimant_id"`
	Amount           int64           `json:"amount"`
	Description      string          `json:"description"`
	CrashDataHash    string          `json:"crash_data_hash,omitempty"` // hex, empty when no evidence
	EvidenceVerified bool            `json:"evidence_verified"`
	Status           int32           `json:"status"`
	CreatedAt        int64           `json:"created_at"`
	VotingEndsAt     int64           `json:"voting_ends_at"`
	VotesFor         int64           `json:"votes_for"`
	VotesAgainst     int64           `json:"votes_against"`
	Votes            map[string]bool `json:"votes"` // voter uuid -> approve
	SettledAt        int64           `json:"settled_at"`
	Version          int64           `json:"version"`
}

// RiskAdjustmentSnapshot is a serializable risk-adjustment record.
type RiskAdjustmentSnapshot struct {
	PolicyID   int64  `json:"policy_id"`
	OldScore   int    `json:"old_score"`
	NewScore   int    `json:"new_score"`
	OldPremium int64  `json:"old_premium"`
	NewPremium int64  `json:"new_premium"`
	Factor     int64  `json:"factor"`
	UpdatedBy  string `json:"updated_by"`
	Timestamp  int64  `json:"timestamp"`
}

// RegistrySnap is the serializable pool registry.
type RegistrySnap struct {
	Owner      string `json:"owner"`
	Oracle     string `json:"oracle"`
	HasOracle  bool   `json:"has_oracle"`
	PoolActive bool   `json:"pool_active"`
	Version    int64  `json:"version"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot to Postgres. Snapshots are taken
// periodically and verified by replaying commands from the snapshot
// sequence forward.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	snapshotID := uuid.New()
	sizeBytes := len(data)
	formatVersion := int32(1) // v1: JSON-encoded SnapshotData

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $6
	`, snapshotID, snap.Sequence, data, snap.StateHash, formatVersion, sizeBytes, snap.CreatedAt)

	return err
}

// LoadLatestSnapshot loads the most recent verified snapshot. On warm
// restart, the caller replays commands from snapshot.sequence+1.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // No snapshot — cold start
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// MarkVerified marks a snapshot as verified after integrity check.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE event_log.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadCommandsFrom loads commands from a given sequence for replay. Used
// for warm restart (replay from snapshot) and cold restart (replay all).
func (sm *SnapshotManager) LoadCommandsFrom(ctx context.Context, fromSequence int64, limit int) ([]CommandRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, command_type, idempotency_key, partition, payload,
		       state_hash, prev_hash, timestamp, source_sequence
		FROM event_log.commands
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commands []CommandRow
	for rows.Next() {
		var c CommandRow
		if err := rows.Scan(
			&c.Sequence, &c.CommandType, &c.IdempotencyKey, &c.Partition,
			&c.Payload, &c.StateHash, &c.PrevHash, &c.Timestamp, &c.SourceSequence,
		); err != nil {
			return nil, err
		}
		commands = append(commands, c)
	}

	return commands, rows.Err()
}

// GetLatestSequence returns the highest sequence in the event log.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM event_log.commands
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil // Empty event log
	}
	return seq.Int64, nil
}
