package server

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"PoolLedger/internal/event"
	"PoolLedger/internal/ingestion"
	"PoolLedger/internal/observability"
	"PoolLedger/internal/pool"
	"PoolLedger/internal/projection"
	"PoolLedger/internal/query"
)

// CommandSubmitter hands a command to the single-writer core and returns
// the synchronous result. The orchestrator implements it with a
// request/reply channel into the core loop.
type CommandSubmitter interface {
	Submit(ctx context.Context, cmd event.Command) (*event.Result, error)
}

// HTTPServer is the member-facing command and query API
type HTTPServer struct {
	engine       *gin.Engine
	server       *http.Server
	submitter    CommandSubmitter
	injector     *ingestion.AdminInjectService
	queries      *query.QueryService
	claimHistory *projection.ClaimHistoryProjection
	auth         *TokenVerifier
	health       *observability.HealthChecker
	metrics      *observability.Metrics
	clock        pool.Clock
	oracle       pool.Oracle
	funds        pool.FundsGateway
	logger       zerolog.Logger
}

// Deps bundles the server's collaborators. Clock, Oracle, and Funds may
// be nil; they default to the in-process implementations.
type Deps struct {
	Submitter    CommandSubmitter
	Injector     *ingestion.AdminInjectService
	Queries      *query.QueryService
	ClaimHistory *projection.ClaimHistoryProjection
	Auth         *TokenVerifier
	Health       *observability.HealthChecker
	Metrics      *observability.Metrics
	Clock        pool.Clock
	Oracle       pool.Oracle
	Funds        pool.FundsGateway
}

func NewHTTPServer(addr string, deps Deps) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	if deps.Clock == nil {
		deps.Clock = pool.SystemClock{}
	}
	if deps.Oracle == nil {
		deps.Oracle = pool.StaticOracle{}
	}
	if deps.Funds == nil {
		deps.Funds = pool.CustodialGateway{}
	}

	s := &HTTPServer{
		engine:       engine,
		submitter:    deps.Submitter,
		injector:     deps.Injector,
		queries:      deps.Queries,
		claimHistory: deps.ClaimHistory,
		auth:         deps.Auth,
		health:       deps.Health,
		metrics:      deps.Metrics,
		clock:        deps.Clock,
		oracle:       deps.Oracle,
		funds:        deps.Funds,
		logger:       observability.NewLogger("http"),
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.registerRoutes()
	return s
}

func (s *HTTPServer) registerRoutes() {
	s.engine.GET("/healthz", gin.WrapF(s.health.LivenessHandler))
	s.engine.GET("/readyz", gin.WrapF(s.health.ReadinessHandler))
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")

	member := v1.Group("", s.auth.RequireRole(RoleMember))
	member.POST("/pool/join", s.handleJoinPool)
	member.POST("/policies/:id/premium", s.handlePayPremium)
	member.POST("/claims", s.handleSubmitClaim)
	member.POST("/claims/:id/votes", s.handleCastVote)

	admin := v1.Group("", s.auth.RequireRole(RoleAdmin))
	admin.POST("/claims/:id/settle", s.handleProcessClaim)
	admin.POST("/surplus/distribute", s.handleDistributeSurplus)
	admin.POST("/admin/oracle", s.handleSetOracle)
	admin.POST("/admin/pool-active", s.handleSetPoolActive)
	admin.POST("/admin/inject/risk-score", s.handleInjectRiskScore)
	admin.POST("/admin/inject/oracle-score", s.handleInjectOracleScore)
	admin.POST("/admin/inject/claim-settle", s.handleInjectClaimSettle)
	admin.GET("/admin/integrity", s.handleVerifyIntegrity)

	read := v1.Group("", s.auth.RequireRole(RoleMember, RoleOracle))
	read.GET("/pool/stats", s.handleGetPoolStats)
	read.GET("/policies/:id", s.handleGetPolicy)
	read.GET("/policies/:id/claims", s.handleGetPolicyClaims)
	read.GET("/policies/:id/risk-history", s.handleGetRiskHistory)
	read.GET("/claims/:id", s.handleGetClaim)
	read.GET("/claims/recent/settlements", s.handleRecentSettlements)
	read.GET("/members/:id/policies", s.handleGetMemberPolicies)
	read.GET("/members/:id/membership", s.handleGetMembership)
	read.GET("/members/:id/balance", s.handleGetMemberBalance)
	read.GET("/members/:id/journal", s.handleGetJournal)
	read.GET("/premium/quote", s.handlePremiumQuote)
}

// Start runs the HTTP server until ctx is cancelled (blocking)
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler exposes the router for tests
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// --- command envelope fields shared by all write requests ---

type commandMeta struct {
	CommandID string `json:"command_id"` // optional; generated if empty
	Sequence  int64  `json:"sequence"`   // optional; timestamp micros if zero
}

// buildMeta stamps the edge fields: logical time comes from the injected
// clock at the API boundary, never from inside the core.
func (s *HTTPServer) buildMeta(cm commandMeta, account uuid.UUID) (event.Meta, error) {
	now := s.clock.NowMicros()

	commandID := uuid.New()
	if cm.CommandID != "" {
		parsed, err := uuid.Parse(cm.CommandID)
		if err != nil {
			return event.Meta{}, errors.New("invalid command_id")
		}
		commandID = parsed
	}

	sequence := cm.Sequence
	if sequence == 0 {
		sequence = now
	}

	return event.Meta{
		CommandID: commandID,
		Account:   account,
		Timestamp: now,
		Source:    event.PartitionAPI,
		Sequence:  sequence,
	}, nil
}

func (s *HTTPServer) submit(c *gin.Context, endpoint string, cmd event.Command) {
	s.submitForResult(c, endpoint, cmd)
}

// submitForResult runs a command through the core and writes the HTTP
// response. The result is handed back for handlers that follow up with
// funds gateway transfers.
func (s *HTTPServer) submitForResult(c *gin.Context, endpoint string, cmd event.Command) (*event.Result, bool) {
	start := time.Now()

	result, err := s.submitter.Submit(c.Request.Context(), cmd)
	if err != nil {
		status := statusForError(err)
		s.recordQuery(endpoint, status, start)
		c.JSON(status, gin.H{"error": err.Error()})
		return nil, false
	}
	status := http.StatusOK
	if result.Duplicate {
		status = http.StatusAccepted
	}
	s.recordQuery(endpoint, status, start)
	c.JSON(status, result)
	return result, true
}

func (s *HTTPServer) recordQuery(endpoint string, status int, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.QueryRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// statusForError maps the domain error taxonomy to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, pool.ErrPolicyNotFound),
		errors.Is(err, pool.ErrClaimNotFound):
		return http.StatusNotFound
	case errors.Is(err, pool.ErrNotAuthorized),
		errors.Is(err, pool.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, pool.ErrInvalidRiskScore),
		errors.Is(err, pool.ErrInvalidEvidence):
		return http.StatusBadRequest
	case errors.Is(err, pool.ErrInsufficientFunds),
		errors.Is(err, pool.ErrPoolInsufficient):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pool.ErrDuplicateVote),
		errors.Is(err, pool.ErrVotingClosed),
		errors.Is(err, pool.ErrVotingNotEnded),
		errors.Is(err, pool.ErrClaimFinalized),
		errors.Is(err, pool.ErrTooManyPolicies),
		errors.Is(err, pool.ErrPoolInactive):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// --- command handlers ---

type joinPoolRequest struct {
	commandMeta
	VehicleID string `json:"vehicle_id" binding:"required"`
	Deposit   int64  `json:"deposit" binding:"required"`
}

func (s *HTTPServer) handleJoinPool(c *gin.Context) {
	var req joinPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meta, err := s.buildMeta(req.commandMeta, accountFrom(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The deposit is pulled before the command is submitted; a join the
	// ledger does not apply gets the deposit pushed straight back.
	accountPath := memberExternalAccount(meta.Account)
	if err := s.funds.Pull(c.Request.Context(), accountPath, req.Deposit); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": pool.ErrInsufficientFunds.Error()})
		return
	}

	result, ok := s.submitForResult(c, "join_pool", &event.JoinPool{
		Meta:      meta,
		VehicleID: req.VehicleID,
		Deposit:   req.Deposit,
	})
	if !ok || result.Duplicate {
		if err := s.funds.Push(c.Request.Context(), accountPath, req.Deposit); err != nil {
			s.logger.Error().Err(err).
				Str("account", accountPath).
				Int64("amount", req.Deposit).
				Msg("deposit refund failed")
		}
	}
}

type payPremiumRequest struct {
	commandMeta
}

func (s *HTTPServer) handlePayPremium(c *gin.Context) {
	policyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid policy id"})
		return
	}

	var req payPremiumRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meta, err := s.buildMeta(req.commandMeta, accountFrom(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, ok := s.submitForResult(c, "pay_premium", &event.PayPremium{
		Meta:     meta,
		PolicyID: policyID,
	})
	if ok && !result.Duplicate {
		// Collect at the amount the ledger actually charged.
		accountPath := memberExternalAccount(meta.Account)
		if err := s.funds.Pull(c.Request.Context(), accountPath, result.Premium); err != nil {
			s.logger.Error().Err(err).
				Str("account", accountPath).
				Int64("amount", result.Premium).
				Msg("premium collection failed")
		}
	}
}

type submitClaimRequest struct {
	commandMeta
	PolicyID      int64  `json:"policy_id" binding:"required"`
	Amount        int64  `json:"amount" binding:"required"`
	Description   string `json:"description"`
	CrashDataHash string `json:"crash_data_hash"`
}

func (s *HTTPServer) handleSubmitClaim(c *gin.Context) {
	var req submitClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The oracle verdict is stamped on the command here so the stored
	// payload replays to identical claim state.
	verified := false
	if req.CrashDataHash != "" {
		evidence, err := hex.DecodeString(req.CrashDataHash)
		if err != nil || len(evidence) != 32 {
			c.JSON(http.StatusBadRequest, gin.H{"error": pool.ErrInvalidEvidence.Error()})
			return
		}
		claimRef := fmt.Sprintf("policy:%d", req.PolicyID)
		ok, err := s.oracle.VerifyCrashData(c.Request.Context(), claimRef, evidence)
		if err != nil {
			s.logger.Warn().Err(err).Int64("policy_id", req.PolicyID).Msg("crash data verification errored")
		}
		verified = ok && err == nil
	}

	meta, err := s.buildMeta(req.commandMeta, accountFrom(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.submit(c, "submit_claim", &event.SubmitClaim{
		Meta:             meta,
		PolicyID:         req.PolicyID,
		Amount:           req.Amount,
		Description:      req.Description,
		CrashDataHash:    req.CrashDataHash,
		EvidenceVerified: verified,
	})
}

type castVoteRequest struct {
	commandMeta
	Approve *bool `json:"approve" binding:"required"`
}

func (s *HTTPServer) handleCastVote(c *gin.Context) {
	claimID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid claim id"})
		return
	}

	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meta, err := s.buildMeta(req.commandMeta, accountFrom(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.submit(c, "cast_vote", &event.CastVote{
		Meta:    meta,
		ClaimID: claimID,
		Approve: *req.Approve,
	})
}

type processClaimRequest struct {
	commandMeta
}

func (s *HTTPServer) handleProcessClaim(c *gin.Context) {
	claimID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid claim id"})
		return
	}

	var req processClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meta, err := s.buildMeta(req.commandMeta, accountFrom(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, ok := s.submitForResult(c, "process_claim", &event.ProcessClaim{
		Meta:    meta,
		ClaimID: claimID,
	})
	if ok && !result.Duplicate && result.Payout > 0 {
		if claimant, err := uuid.Parse(result.Claimant); err == nil {
			accountPath := memberExternalAccount(claimant)
			if err := s.funds.Push(c.Request.Context(), accountPath, result.Payout); err != nil {
				s.logger.Error().Err(err).
					Str("account", accountPath).
					Int64("amount", result.Payout).
					Msg("claim payout transfer failed")
			}
		}
	}
}

type distributeSurplusRequest struct {
	commandMeta
	Period string `json:"period" binding:"required"`
}

func (s *HTTPServer) handleDistributeSurplus(c *gin.Context) {
	var req distributeSurplusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meta, err := s.buildMeta(req.commandMeta, accountFrom(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.submit(c, "distribute_surplus", &event.DistributeSurplus{
		Meta:   meta,
		Period: req.Period,
	})
}

type setOracleRequest struct {
	commandMeta
	OracleAccount string `json:"oracle_account" binding:"required"`
}

func (s *HTTPServer) handleSetOracle(c *gin.Context) {
	var req setOracleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	oracle, err := uuid.Parse(req.OracleAccount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oracle_account"})
		return
	}

	meta, err := s.buildMeta(req.commandMeta, accountFrom(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.submit(c, "set_oracle", &event.SetOracle{
		Meta:          meta,
		OracleAccount: oracle,
	})
}

type setPoolActiveRequest struct {
	commandMeta
	Active *bool `json:"active" binding:"required"`
}

func (s *HTTPServer) handleSetPoolActive(c *gin.Context) {
	var req setPoolActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meta, err := s.buildMeta(req.commandMeta, accountFrom(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.submit(c, "set_pool_active", &event.SetPoolActive{
		Meta:   meta,
		Active: *req.Active,
	})
}

// --- admin injection (async, mirrors the NATS path) ---

type injectRiskScoreRequest struct {
	Oracle   string `json:"oracle" binding:"required"`
	PolicyID int64  `json:"policy_id" binding:"required"`
	NewScore int    `json:"new_score" binding:"required"`
}

func (s *HTTPServer) handleInjectRiskScore(c *gin.Context) {
	var req injectRiskScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	oracle, err := uuid.Parse(req.Oracle)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oracle"})
		return
	}

	if err := s.injector.InjectRiskScore(c.Request.Context(), oracle, req.PolicyID, req.NewScore); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

type injectOracleScoreRequest struct {
	Oracle   string `json:"oracle" binding:"required"`
	PolicyID int64  `json:"policy_id" binding:"required"`
}

// handleInjectOracleScore refreshes a policy's risk score directly from
// the oracle, for when a score update was missed on the message bus.
func (s *HTTPServer) handleInjectOracleScore(c *gin.Context) {
	var req injectOracleScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	oracle, err := uuid.Parse(req.Oracle)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oracle"})
		return
	}

	policy, err := s.queries.GetPolicy(c.Request.Context(), req.PolicyID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	score, err := s.oracle.GetRiskScore(c.Request.Context(), policy.VehicleID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	if err := s.injector.InjectRiskScore(c.Request.Context(), oracle, req.PolicyID, score); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true, "new_score": score})
}

type injectClaimSettleRequest struct {
	ClaimID int64 `json:"claim_id" binding:"required"`
}

func (s *HTTPServer) handleInjectClaimSettle(c *gin.Context) {
	var req injectClaimSettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.injector.InjectClaimSettlement(c.Request.Context(), accountFrom(c), req.ClaimID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// --- query handlers ---

func (s *HTTPServer) handleGetPoolStats(c *gin.Context) {
	start := time.Now()
	stats, err := s.queries.GetPoolStats(c.Request.Context())
	if err != nil {
		s.recordQuery("pool_stats", http.StatusInternalServerError, start)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	s.recordQuery("pool_stats", http.StatusOK, start)
	c.JSON(http.StatusOK, stats)
}

func (s *HTTPServer) handleGetPolicy(c *gin.Context) {
	policyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid policy id"})
		return
	}

	policy, err := s.queries.GetPolicy(c.Request.Context(), policyID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, policy)
}

func (s *HTTPServer) handleGetPolicyClaims(c *gin.Context) {
	policyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid policy id"})
		return
	}

	claims, err := s.queries.GetPolicyClaims(c.Request.Context(), policyID, limitParam(c, 50, 200))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"claims": claims})
}

func (s *HTTPServer) handleGetRiskHistory(c *gin.Context) {
	policyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid policy id"})
		return
	}

	history, err := s.queries.GetRiskHistory(c.Request.Context(), policyID, limitParam(c, 50, 500))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"adjustments": history})
}

func (s *HTTPServer) handleGetClaim(c *gin.Context) {
	claimID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid claim id"})
		return
	}

	claim, err := s.queries.GetClaim(c.Request.Context(), claimID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, claim)
}

func (s *HTTPServer) handleRecentSettlements(c *gin.Context) {
	entries := s.claimHistory.Recent(limitParam(c, 20, 100))
	c.JSON(http.StatusOK, gin.H{"settlements": entries})
}

func (s *HTTPServer) handleGetMemberPolicies(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return
	}

	policies, err := s.queries.GetMemberPolicies(c.Request.Context(), memberID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"policies": policies})
}

func (s *HTTPServer) handleGetMembership(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return
	}

	isMember, err := s.queries.IsMember(c.Request.Context(), memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"member_id": memberID, "is_member": isMember})
}

func (s *HTTPServer) handleGetMemberBalance(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return
	}

	balance, err := s.queries.GetBalance(c.Request.Context(), memberExternalAccount(memberID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (s *HTTPServer) handleGetJournal(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return
	}

	var afterSeq *int64
	if after := c.Query("after"); after != "" {
		seq, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after cursor"})
			return
		}
		afterSeq = &seq
	}

	entries, err := s.queries.GetJournalHistory(c.Request.Context(), memberID, limitParam(c, 100, 500), afterSeq)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"journals": entries})
}

func (s *HTTPServer) handlePremiumQuote(c *gin.Context) {
	score, err := strconv.Atoi(c.Query("risk_score"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "risk_score is required"})
		return
	}

	quote, err := s.queries.ComputePremium(score)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (s *HTTPServer) handleVerifyIntegrity(c *gin.Context) {
	report, err := s.queries.VerifyIntegrity(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// memberExternalAccount is the ledger path of a member's external
// account, the counterparty of every treasury movement.
func memberExternalAccount(member uuid.UUID) string {
	return "member:" + member.String() + ":external"
}

func limitParam(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit <= 0 || limit > max {
		return def
	}
	return limit
}
