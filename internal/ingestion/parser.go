package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"PoolLedger/internal/event"
)

// ParseRawCommand converts a RawCommand off NATS into a typed command for
// the core. The command type is inferred from the subject, so a subject on
// the wrong stream fails loudly instead of being misparsed.
func ParseRawCommand(raw RawCommand) (event.Command, error) {
	switch {
	case strings.HasPrefix(raw.Subject, "pool.risk.scores."):
		return parseRiskScore(raw.Data)
	case strings.HasPrefix(raw.Subject, "pool.claims.settle."):
		return parseClaimSettle(raw.Data)
	default:
		return nil, fmt.Errorf("unknown subject: %s", raw.Subject)
	}
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers. Commands off
// NATS always carry the oracle partition.

type riskScoreJSON struct {
	CommandID   string `json:"command_id"`
	Oracle      string `json:"oracle"`
	PolicyID    int64  `json:"policy_id"`
	NewScore    int    `json:"new_score"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseRiskScore(data []byte) (*event.UpdateRiskScore, error) {
	var j riskScoreJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse UpdateRiskScore: %w", err)
	}

	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	oracle, err := uuid.Parse(j.Oracle)
	if err != nil {
		return nil, fmt.Errorf("parse oracle: %w", err)
	}

	return &event.UpdateRiskScore{
		Meta: event.Meta{
			CommandID: commandID,
			Account:   oracle,
			Timestamp: j.TimestampUs,
			Source:    event.PartitionOracle,
			Sequence:  j.Sequence,
		},
		PolicyID: j.PolicyID,
		NewScore: j.NewScore,
	}, nil
}

type claimSettleJSON struct {
	CommandID   string `json:"command_id"`
	Initiator   string `json:"initiator"`
	ClaimID     int64  `json:"claim_id"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseClaimSettle(data []byte) (*event.ProcessClaim, error) {
	var j claimSettleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ProcessClaim: %w", err)
	}

	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	initiator, err := uuid.Parse(j.Initiator)
	if err != nil {
		return nil, fmt.Errorf("parse initiator: %w", err)
	}

	return &event.ProcessClaim{
		Meta: event.Meta{
			CommandID: commandID,
			Account:   initiator,
			Timestamp: j.TimestampUs,
			Source:    event.PartitionOracle,
			Sequence:  j.Sequence,
		},
		ClaimID: j.ClaimID,
	}, nil
}
