package ingestion_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"PoolLedger/internal/event"
	"PoolLedger/internal/ingestion"
	"PoolLedger/internal/pool"
)

func TestInjectRiskScore_StampedFromInjectedClock(t *testing.T) {
	const now = int64(1_756_000_000_000_000)

	ch := make(chan event.Command, 1)
	svc := ingestion.NewAdminInjectService(ch, pool.FixedClock{Micros: now})

	oracle := uuid.New()
	if err := svc.InjectRiskScore(context.Background(), oracle, 7, 80); err != nil {
		t.Fatalf("inject failed: %v", err)
	}

	cmd := <-ch
	rs, ok := cmd.(*event.UpdateRiskScore)
	if !ok {
		t.Fatalf("expected *event.UpdateRiskScore, got %T", cmd)
	}
	if rs.LogicalTime() != now {
		t.Errorf("timestamp: got %d, want %d", rs.LogicalTime(), now)
	}
	if rs.SourceSequence() != now {
		t.Errorf("sequence: got %d, want %d", rs.SourceSequence(), now)
	}
	if rs.Actor() != oracle {
		t.Errorf("actor: got %s, want %s", rs.Actor(), oracle)
	}
}

func TestInjectRiskScore_RangeChecked(t *testing.T) {
	ch := make(chan event.Command, 1)
	svc := ingestion.NewAdminInjectService(ch, nil)

	if err := svc.InjectRiskScore(context.Background(), uuid.New(), 7, 150); err == nil {
		t.Fatal("expected range error, got nil")
	}
	select {
	case cmd := <-ch:
		t.Fatalf("rejected score must not be injected, got %T", cmd)
	default:
	}
}

func TestInjectClaimSettlement_RequiresPositiveID(t *testing.T) {
	ch := make(chan event.Command, 1)
	svc := ingestion.NewAdminInjectService(ch, nil)

	if err := svc.InjectClaimSettlement(context.Background(), uuid.New(), 0); err == nil {
		t.Fatal("expected id error, got nil")
	}
}
