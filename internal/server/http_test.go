package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PoolLedger/internal/event"
	"PoolLedger/internal/ingestion"
	"PoolLedger/internal/observability"
	"PoolLedger/internal/pool"
	"PoolLedger/internal/projection"
	"PoolLedger/internal/query"
	"PoolLedger/internal/server"
)

const (
	testSecret = "test-secret"
	testNow    = int64(1_756_000_000_000_000) // fixed edge clock, micros
)

// stubSubmitter records the last command and returns a canned outcome
type stubSubmitter struct {
	lastCmd event.Command
	result  *event.Result
	err     error
}

func (s *stubSubmitter) Submit(_ context.Context, cmd event.Command) (*event.Result, error) {
	s.lastCmd = cmd
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// stubOracle returns a fixed verdict and records what it was asked about
type stubOracle struct {
	verdict bool
	err     error
	lastRef string
}

func (o *stubOracle) VerifyCrashData(_ context.Context, claimRef string, _ []byte) (bool, error) {
	o.lastRef = claimRef
	return o.verdict, o.err
}

func (o *stubOracle) GetRiskScore(context.Context, string) (int, error) {
	return 0, pool.ErrInvalidRiskScore
}

type gatewayCall struct {
	account string
	amount  int64
}

// stubGateway records transfers and can refuse pulls
type stubGateway struct {
	pullErr error
	pulls   []gatewayCall
	pushes  []gatewayCall
}

func (g *stubGateway) Pull(_ context.Context, account string, amount int64) error {
	if g.pullErr != nil {
		return g.pullErr
	}
	g.pulls = append(g.pulls, gatewayCall{account, amount})
	return nil
}

func (g *stubGateway) Push(_ context.Context, account string, amount int64) error {
	g.pushes = append(g.pushes, gatewayCall{account, amount})
	return nil
}

func signToken(t *testing.T, account uuid.UUID, role string) string {
	t.Helper()
	claims := &server.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func testDeps(submitter server.CommandSubmitter, history *projection.ClaimHistoryProjection) server.Deps {
	clock := pool.FixedClock{Micros: testNow}
	injectChan := make(chan event.Command, 16)
	health := observability.NewHealthChecker()
	health.SetReady(true)

	return server.Deps{
		Submitter:    submitter,
		Injector:     ingestion.NewAdminInjectService(injectChan, clock),
		Queries:      query.NewQueryService(nil, nil, pool.DefaultParams(), nil),
		ClaimHistory: history,
		Auth:         server.NewTokenVerifier(testSecret),
		Health:       health,
		Clock:        clock,
	}
}

func newTestServer(t *testing.T, submitter server.CommandSubmitter) (*server.HTTPServer, *projection.ClaimHistoryProjection) {
	t.Helper()

	history := projection.NewClaimHistoryProjection()
	return server.NewHTTPServer(":0", testDeps(submitter, history)), history
}

func doJSON(t *testing.T, srv *server.HTTPServer, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestJoinPool_Authorized(t *testing.T) {
	member := uuid.New()
	stub := &stubSubmitter{result: &event.Result{Sequence: 1, PolicyID: 1, Premium: 1_000_000, TreasuryBalance: 2_000_000}}
	srv, _ := newTestServer(t, stub)

	w := doJSON(t, srv, http.MethodPost, "/v1/pool/join", signToken(t, member, server.RoleMember), map[string]interface{}{
		"vehicle_id": "VIN-001",
		"deposit":    2_000_000,
	})

	assert.Equal(t, http.StatusOK, w.Code)

	join, ok := stub.lastCmd.(*event.JoinPool)
	require.True(t, ok, "expected JoinPool, got %T", stub.lastCmd)
	assert.Equal(t, member, join.Actor())
	assert.Equal(t, "VIN-001", join.VehicleID)
	assert.Equal(t, int64(2_000_000), join.Deposit)
	assert.Equal(t, event.PartitionAPI, join.Partition())
	assert.NotZero(t, join.SourceSequence())

	var result event.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, int64(1), result.PolicyID)
	assert.Equal(t, int64(2_000_000), result.TreasuryBalance)
}

func TestJoinPool_MissingToken(t *testing.T) {
	srv, _ := newTestServer(t, &stubSubmitter{result: &event.Result{}})

	w := doJSON(t, srv, http.MethodPost, "/v1/pool/join", "", map[string]interface{}{
		"vehicle_id": "VIN-001",
		"deposit":    2_000_000,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJoinPool_WrongRole(t *testing.T) {
	srv, _ := newTestServer(t, &stubSubmitter{result: &event.Result{}})

	w := doJSON(t, srv, http.MethodPost, "/v1/pool/join", signToken(t, uuid.New(), server.RoleOracle), map[string]interface{}{
		"vehicle_id": "VIN-001",
		"deposit":    2_000_000,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestJoinPool_BadToken(t *testing.T) {
	srv, _ := newTestServer(t, &stubSubmitter{result: &event.Result{}})

	w := doJSON(t, srv, http.MethodPost, "/v1/pool/join", "not-a-token", map[string]interface{}{
		"vehicle_id": "VIN-001",
		"deposit":    2_000_000,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJoinPool_AdminRoleAllowed(t *testing.T) {
	stub := &stubSubmitter{result: &event.Result{Sequence: 1}}
	srv, _ := newTestServer(t, stub)

	w := doJSON(t, srv, http.MethodPost, "/v1/pool/join", signToken(t, uuid.New(), server.RoleAdmin), map[string]interface{}{
		"vehicle_id": "VIN-001",
		"deposit":    2_000_000,
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCastVote_FalseVoteBinds(t *testing.T) {
	stub := &stubSubmitter{result: &event.Result{Sequence: 5}}
	srv, _ := newTestServer(t, stub)

	w := doJSON(t, srv, http.MethodPost, "/v1/claims/3/votes", signToken(t, uuid.New(), server.RoleMember), map[string]interface{}{
		"approve": false,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	vote, ok := stub.lastCmd.(*event.CastVote)
	require.True(t, ok)
	assert.Equal(t, int64(3), vote.ClaimID)
	assert.False(t, vote.Approve)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"policy not found", pool.ErrPolicyNotFound, http.StatusNotFound},
		{"claim not found", pool.ErrClaimNotFound, http.StatusNotFound},
		{"not authorized", pool.ErrNotAuthorized, http.StatusForbidden},
		{"not member", pool.ErrNotMember, http.StatusForbidden},
		{"invalid risk score", pool.ErrInvalidRiskScore, http.StatusBadRequest},
		{"insufficient funds", pool.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{"pool insufficient", pool.ErrPoolInsufficient, http.StatusUnprocessableEntity},
		{"duplicate vote", pool.ErrDuplicateVote, http.StatusConflict},
		{"voting closed", pool.ErrVotingClosed, http.StatusConflict},
		{"claim finalized", pool.ErrClaimFinalized, http.StatusConflict},
		{"pool inactive", pool.ErrPoolInactive, http.StatusConflict},
		{"too many policies", pool.ErrTooManyPolicies, http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &stubSubmitter{err: tc.err})

			w := doJSON(t, srv, http.MethodPost, "/v1/pool/join", signToken(t, uuid.New(), server.RoleMember), map[string]interface{}{
				"vehicle_id": "VIN-001",
				"deposit":    2_000_000,
			})
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestDuplicateCommand_Returns202(t *testing.T) {
	stub := &stubSubmitter{result: &event.Result{Duplicate: true, TreasuryBalance: 1_000_000}}
	srv, _ := newTestServer(t, stub)

	w := doJSON(t, srv, http.MethodPost, "/v1/pool/join", signToken(t, uuid.New(), server.RoleMember), map[string]interface{}{
		"command_id": uuid.NewString(),
		"vehicle_id": "VIN-001",
		"deposit":    2_000_000,
	})
	assert.Equal(t, http.StatusAccepted, w.Code)

	var result event.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Duplicate)
}

func TestSettleClaim_RequiresAdmin(t *testing.T) {
	stub := &stubSubmitter{result: &event.Result{ClaimStatus: "approved", Payout: 500_000}}
	srv, _ := newTestServer(t, stub)

	w := doJSON(t, srv, http.MethodPost, "/v1/claims/1/settle", signToken(t, uuid.New(), server.RoleMember), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/v1/claims/1/settle", signToken(t, uuid.New(), server.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	settle, ok := stub.lastCmd.(*event.ProcessClaim)
	require.True(t, ok)
	assert.Equal(t, int64(1), settle.ClaimID)
}

func TestPremiumQuote(t *testing.T) {
	srv, _ := newTestServer(t, &stubSubmitter{})
	token := signToken(t, uuid.New(), server.RoleMember)

	w := doJSON(t, srv, http.MethodGet, "/v1/premium/quote?risk_score=80", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var quote query.PremiumQuote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quote))
	assert.Equal(t, 80, quote.RiskScore)
	assert.Equal(t, int64(1_600_000), quote.Premium)

	w = doJSON(t, srv, http.MethodGet, "/v1/premium/quote?risk_score=0", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/v1/premium/quote?risk_score=101", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecentSettlements(t *testing.T) {
	srv, history := newTestServer(t, &stubSubmitter{})

	history.AddEntry(projection.ClaimHistoryEntry{ClaimID: 1, Status: "rejected", Sequence: 10})
	history.AddEntry(projection.ClaimHistoryEntry{ClaimID: 2, Status: "approved", Payout: 500_000, Sequence: 11})

	w := doJSON(t, srv, http.MethodGet, "/v1/claims/recent/settlements", signToken(t, uuid.New(), server.RoleMember), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Settlements []projection.ClaimHistoryEntry `json:"settlements"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Settlements, 2)
	assert.Equal(t, int64(2), resp.Settlements[0].ClaimID, "newest first")
}

func TestInjectRiskScore_Accepted(t *testing.T) {
	srv, _ := newTestServer(t, &stubSubmitter{})

	w := doJSON(t, srv, http.MethodPost, "/v1/admin/inject/risk-score", signToken(t, uuid.New(), server.RoleAdmin), map[string]interface{}{
		"oracle":    uuid.NewString(),
		"policy_id": 1,
		"new_score": 75,
	})
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestInjectRiskScore_ScoreOutOfRange(t *testing.T) {
	srv, _ := newTestServer(t, &stubSubmitter{})

	w := doJSON(t, srv, http.MethodPost, "/v1/admin/inject/risk-score", signToken(t, uuid.New(), server.RoleAdmin), map[string]interface{}{
		"oracle":    uuid.NewString(),
		"policy_id": 1,
		"new_score": 150,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommandMeta_StampedFromInjectedClock(t *testing.T) {
	member := uuid.New()
	stub := &stubSubmitter{result: &event.Result{Sequence: 1}}
	srv, _ := newTestServer(t, stub)

	w := doJSON(t, srv, http.MethodPost, "/v1/pool/join", signToken(t, member, server.RoleMember), map[string]interface{}{
		"vehicle_id": "VIN-001",
		"deposit":    2_000_000,
	})
	require.Equal(t, http.StatusOK, w.Code)

	join := stub.lastCmd.(*event.JoinPool)
	assert.Equal(t, testNow, join.LogicalTime())
	assert.Equal(t, testNow, join.SourceSequence(), "sequence defaults to the clock reading")
}

const testCrashHash = "d2c1a94f5e6b38707a1c2e3f40516273849506a7b8c9daebfc0d1e2f30415263"

func TestSubmitClaim_OracleVerdictStamped(t *testing.T) {
	cases := []struct {
		name   string
		oracle *stubOracle
		want   bool
	}{
		{"approved", &stubOracle{verdict: true}, true},
		{"denied", &stubOracle{verdict: false}, false},
		{"oracle error is advisory", &stubOracle{verdict: true, err: context.DeadlineExceeded}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubSubmitter{result: &event.Result{Sequence: 1, ClaimID: 1}}
			history := projection.NewClaimHistoryProjection()
			deps := testDeps(stub, history)
			deps.Oracle = tc.oracle
			srv := server.NewHTTPServer(":0", deps)

			w := doJSON(t, srv, http.MethodPost, "/v1/claims", signToken(t, uuid.New(), server.RoleMember), map[string]interface{}{
				"policy_id":       1,
				"amount":          500_000,
				"crash_data_hash": testCrashHash,
			})
			require.Equal(t, http.StatusOK, w.Code)

			claim, ok := stub.lastCmd.(*event.SubmitClaim)
			require.True(t, ok)
			assert.Equal(t, tc.want, claim.EvidenceVerified)
			assert.Equal(t, testCrashHash, claim.CrashDataHash)
			assert.Equal(t, "policy:1", tc.oracle.lastRef)
		})
	}
}

func TestSubmitClaim_MalformedHashRejectedAtEdge(t *testing.T) {
	stub := &stubSubmitter{result: &event.Result{Sequence: 1}}
	srv, _ := newTestServer(t, stub)

	for _, hash := range []string{"x", "deadbeef", testCrashHash + "00"} {
		w := doJSON(t, srv, http.MethodPost, "/v1/claims", signToken(t, uuid.New(), server.RoleMember), map[string]interface{}{
			"policy_id":       1,
			"amount":          500_000,
			"crash_data_hash": hash,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code, "hash %q", hash)
	}
	assert.Nil(t, stub.lastCmd, "malformed evidence must never reach the core")
}

func TestJoinPool_DepositPulledThroughGateway(t *testing.T) {
	member := uuid.New()
	stub := &stubSubmitter{result: &event.Result{Sequence: 1, PolicyID: 1}}
	gateway := &stubGateway{}
	history := projection.NewClaimHistoryProjection()
	deps := testDeps(stub, history)
	deps.Funds = gateway
	srv := server.NewHTTPServer(":0", deps)

	w := doJSON(t, srv, http.MethodPost, "/v1/pool/join", signToken(t, member, server.RoleMember), map[string]interface{}{
		"vehicle_id": "VIN-001",
		"deposit":    2_000_000,
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, gateway.pulls, 1)
	assert.Equal(t, "member:"+member.String()+":external", gateway.pulls[0].account)
	assert.Equal(t, int64(2_000_000), gateway.pulls[0].amount)
	assert.Empty(t, gateway.pushes, "an applied join must not be refunded")
}

func TestJoinPool_GatewayDeclines(t *testing.T) {
	stub := &stubSubmitter{result: &event.Result{Sequence: 1}}
	gateway := &stubGateway{pullErr: pool.ErrInsufficientFunds}
	history := projection.NewClaimHistoryProjection()
	deps := testDeps(stub, history)
	deps.Funds = gateway
	srv := server.NewHTTPServer(":0", deps)

	w := doJSON(t, srv, http.MethodPost, "/v1/pool/join", signToken(t, uuid.New(), server.RoleMember), map[string]interface{}{
		"vehicle_id": "VIN-001",
		"deposit":    2_000_000,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Nil(t, stub.lastCmd, "a declined deposit must never reach the core")
}

func TestJoinPool_RejectionRefundsDeposit(t *testing.T) {
	stub := &stubSubmitter{err: pool.ErrPoolInactive}
	gateway := &stubGateway{}
	history := projection.NewClaimHistoryProjection()
	deps := testDeps(stub, history)
	deps.Funds = gateway
	srv := server.NewHTTPServer(":0", deps)

	w := doJSON(t, srv, http.MethodPost, "/v1/pool/join", signToken(t, uuid.New(), server.RoleMember), map[string]interface{}{
		"vehicle_id": "VIN-001",
		"deposit":    2_000_000,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	require.Len(t, gateway.pushes, 1, "rejected join must push the deposit back")
	assert.Equal(t, int64(2_000_000), gateway.pushes[0].amount)
}

func TestPayPremium_ChargedAmountComesFromLedger(t *testing.T) {
	member := uuid.New()
	stub := &stubSubmitter{result: &event.Result{Sequence: 2, PolicyID: 1, Premium: 1_600_000}}
	gateway := &stubGateway{}
	history := projection.NewClaimHistoryProjection()
	deps := testDeps(stub, history)
	deps.Funds = gateway
	srv := server.NewHTTPServer(":0", deps)

	// No amount in the request: the policy's current premium is charged.
	w := doJSON(t, srv, http.MethodPost, "/v1/policies/1/premium", signToken(t, member, server.RoleMember), nil)
	require.Equal(t, http.StatusOK, w.Code)

	pay, ok := stub.lastCmd.(*event.PayPremium)
	require.True(t, ok)
	assert.Equal(t, int64(1), pay.PolicyID)

	require.Len(t, gateway.pulls, 1)
	assert.Equal(t, "member:"+member.String()+":external", gateway.pulls[0].account)
	assert.Equal(t, int64(1_600_000), gateway.pulls[0].amount, "collection matches the charged premium")
}

func TestSettleClaim_PayoutPushedThroughGateway(t *testing.T) {
	claimant := uuid.New()
	stub := &stubSubmitter{result: &event.Result{
		Sequence:    9,
		ClaimID:     1,
		ClaimStatus: "approved",
		Payout:      500_000,
		Claimant:    claimant.String(),
	}}
	gateway := &stubGateway{}
	history := projection.NewClaimHistoryProjection()
	deps := testDeps(stub, history)
	deps.Funds = gateway
	srv := server.NewHTTPServer(":0", deps)

	w := doJSON(t, srv, http.MethodPost, "/v1/claims/1/settle", signToken(t, uuid.New(), server.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, gateway.pushes, 1)
	assert.Equal(t, "member:"+claimant.String()+":external", gateway.pushes[0].account)
	assert.Equal(t, int64(500_000), gateway.pushes[0].amount)
}

func TestSettleClaim_RejectedClaimPushesNothing(t *testing.T) {
	stub := &stubSubmitter{result: &event.Result{Sequence: 9, ClaimID: 1, ClaimStatus: "rejected"}}
	gateway := &stubGateway{}
	history := projection.NewClaimHistoryProjection()
	deps := testDeps(stub, history)
	deps.Funds = gateway
	srv := server.NewHTTPServer(":0", deps)

	w := doJSON(t, srv, http.MethodPost, "/v1/claims/1/settle", signToken(t, uuid.New(), server.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, gateway.pushes)
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, &stubSubmitter{})

	w := doJSON(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
