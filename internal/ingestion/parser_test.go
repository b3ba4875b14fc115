package ingestion_test

import (
	"encoding/json"
	"testing"
	"time"

	"PoolLedger/internal/event"
	"PoolLedger/internal/ingestion"
)

func rawFromJSON(t *testing.T, subject string, v interface{}) ingestion.RawCommand {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawCommand{
		Subject:   subject,
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParseRiskScore(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"oracle":       "660e8400-e29b-41d4-a716-446655440001",
		"policy_id":    int64(7),
		"new_score":    80,
		"sequence":     int64(42),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, "pool.risk.scores.7", payload)
	cmd, err := ingestion.ParseRawCommand(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	rs, ok := cmd.(*event.UpdateRiskScore)
	if !ok {
		t.Fatalf("expected *event.UpdateRiskScore, got %T", cmd)
	}

	if rs.PolicyID != 7 {
		t.Errorf("policy_id: got %d, want 7", rs.PolicyID)
	}
	if rs.NewScore != 80 {
		t.Errorf("new_score: got %d, want 80", rs.NewScore)
	}
	if rs.Partition() != event.PartitionOracle {
		t.Errorf("partition: got %s, want %s", rs.Partition(), event.PartitionOracle)
	}
	if rs.SourceSequence() != 42 {
		t.Errorf("sequence: got %d, want 42", rs.SourceSequence())
	}
	if rs.LogicalTime() != 1700000000000000 {
		t.Errorf("timestamp: got %d", rs.LogicalTime())
	}
	if rs.CommandType() != event.CommandTypeUpdateRiskScore {
		t.Errorf("command type: got %v", rs.CommandType())
	}
}

func TestParseClaimSettle(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"initiator":    "660e8400-e29b-41d4-a716-446655440001",
		"claim_id":     int64(3),
		"sequence":     int64(9),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, "pool.claims.settle.3", payload)
	cmd, err := ingestion.ParseRawCommand(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pc, ok := cmd.(*event.ProcessClaim)
	if !ok {
		t.Fatalf("expected *event.ProcessClaim, got %T", cmd)
	}

	if pc.ClaimID != 3 {
		t.Errorf("claim_id: got %d, want 3", pc.ClaimID)
	}
	if pc.Partition() != event.PartitionOracle {
		t.Errorf("partition: got %s, want %s", pc.Partition(), event.PartitionOracle)
	}
}

func TestParseRoundTripsThroughWireCodec(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"oracle":       "660e8400-e29b-41d4-a716-446655440001",
		"policy_id":    int64(1),
		"new_score":    25,
		"sequence":     int64(1),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, "pool.risk.scores.1", payload)
	cmd, err := ingestion.ParseRawCommand(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	wire, err := event.MarshalCommand(cmd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := event.UnmarshalCommand(wire)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	rs, ok := decoded.(*event.UpdateRiskScore)
	if !ok {
		t.Fatalf("expected *event.UpdateRiskScore, got %T", decoded)
	}
	if rs.NewScore != 25 || rs.PolicyID != 1 {
		t.Errorf("round trip mismatch: %+v", rs)
	}
	if rs.IdempotencyKey() != cmd.IdempotencyKey() {
		t.Errorf("idempotency key changed across codec round trip")
	}
}

func TestParseUnknownSubject_Fails(t *testing.T) {
	raw := ingestion.RawCommand{Subject: "pool.votes.cast.1", Data: []byte(`{}`)}
	if _, err := ingestion.ParseRawCommand(raw); err == nil {
		t.Fatal("expected error for unknown subject")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	raw := ingestion.RawCommand{Subject: "pool.risk.scores.1", Data: []byte(`{invalid json`)}
	if _, err := ingestion.ParseRawCommand(raw); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "not-a-uuid",
		"oracle":       "also-not-a-uuid",
		"policy_id":    int64(1),
		"new_score":    50,
		"sequence":     int64(1),
		"timestamp_us": int64(0),
	}

	raw := rawFromJSON(t, "pool.risk.scores.1", payload)
	if _, err := ingestion.ParseRawCommand(raw); err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}
