package pool

import "context"

// Oracle verifies facts the ledger cannot observe on its own: crash evidence
// attached to claims and externally-computed driving risk scores. The
// production oracle bridges to a telemetry pipeline over NATS; tests use an
// in-memory stub.
type Oracle interface {
	// VerifyCrashData reports whether the evidence fingerprint attached to
	// a claim corresponds to a real incident. claimRef names the policy the
	// claim is filed against. A verification failure is advisory: claims
	// still go to a member vote, but the flag is recorded.
	VerifyCrashData(ctx context.Context, claimRef string, evidence []byte) (bool, error)

	// GetRiskScore returns the oracle's current score for a vehicle, in
	// [MinRiskScore, MaxRiskScore].
	GetRiskScore(ctx context.Context, vehicleID string) (int, error)
}

// StaticOracle approves everything and returns a fixed score. Used in tests
// and in deployments where scores arrive exclusively over the message bus.
type StaticOracle struct {
	Score int
}

func (o StaticOracle) VerifyCrashData(context.Context, string, []byte) (bool, error) {
	return true, nil
}

func (o StaticOracle) GetRiskScore(context.Context, string) (int, error) {
	if o.Score < MinRiskScore || o.Score > MaxRiskScore {
		return 0, ErrInvalidRiskScore
	}
	return o.Score, nil
}
