package ingestion

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"PoolLedger/internal/event"
	"PoolLedger/internal/pool"
)

// AdminInjectService provides manual command injection for ops tooling:
// replaying a missed oracle score or forcing a settlement attempt when the
// timer service is down. Not a high-throughput surface; NATS is.
type AdminInjectService struct {
	commandChan chan<- event.Command
	clock       pool.Clock
}

func NewAdminInjectService(commandChan chan<- event.Command, clock pool.Clock) *AdminInjectService {
	if clock == nil {
		clock = pool.SystemClock{}
	}
	return &AdminInjectService{commandChan: commandChan, clock: clock}
}

// InjectRiskScore manually injects an oracle risk score update.
func (s *AdminInjectService) InjectRiskScore(
	ctx context.Context,
	oracle uuid.UUID,
	policyID int64,
	newScore int,
) error {
	if newScore < pool.MinRiskScore || newScore > pool.MaxRiskScore {
		return fmt.Errorf("score must be in [%d,%d]", pool.MinRiskScore, pool.MaxRiskScore)
	}

	now := s.clock.NowMicros()
	cmd := &event.UpdateRiskScore{
		Meta: event.Meta{
			CommandID: uuid.New(),
			Account:   oracle,
			Timestamp: now,
			Source:    event.PartitionOracle,
			// Admin-injected: use timestamp as sequence
			Sequence: now,
		},
		PolicyID: policyID,
		NewScore: newScore,
	}

	select {
	case s.commandChan <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectClaimSettlement manually injects a settlement attempt for a claim
// whose voting window has closed.
func (s *AdminInjectService) InjectClaimSettlement(
	ctx context.Context,
	initiator uuid.UUID,
	claimID int64,
) error {
	if claimID <= 0 {
		return fmt.Errorf("claim id must be positive")
	}

	now := s.clock.NowMicros()
	cmd := &event.ProcessClaim{
		Meta: event.Meta{
			CommandID: uuid.New(),
			Account:   initiator,
			Timestamp: now,
			Source:    event.PartitionOracle,
			Sequence:  now,
		},
		ClaimID: claimID,
	}

	select {
	case s.commandChan <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
