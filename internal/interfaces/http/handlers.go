package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/application/port"
	"github.com/qasimbotani/health-insurance/internal/application/service"
	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/internal/domain/faults"
)

// actorHeader identifies the acting user on state-changing requests
const actorHeader = "X-Actor-ID"

// AttachmentStore records supporting documents against entities
type AttachmentStore interface {
	Add(ctx context.Context, entityType string, entityID int64, fileName, filePath string) (int64, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	claims      *service.ClaimService
	committee   *service.CommitteeService
	policies    *service.PolicyService
	members     *service.MemberService
	cession     *service.CessionService
	attachments AttachmentStore
	heatmap     port.FraudHeatmapReader
	audit       port.AuditLog
	logger      *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(claims *service.ClaimService, committee *service.CommitteeService,
	policies *service.PolicyService, members *service.MemberService, cession *service.CessionService,
	attachments AttachmentStore, heatmap port.FraudHeatmapReader, audit port.AuditLog, logger *zap.Logger) *Handlers {
	return &Handlers{
		claims:      claims,
		committee:   committee,
		policies:    policies,
		members:     members,
		cession:     cession,
		attachments: attachments,
		heatmap:     heatmap,
		audit:       audit,
		logger:      logger,
	}
}

// Response is the standard JSON envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// respondError maps classified failures to status codes
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	if kind, ok := faults.KindOf(err); ok {
		switch kind {
		case faults.KindValidation:
			status = http.StatusUnprocessableEntity
		case faults.KindAuthorization:
			status = http.StatusForbidden
		case faults.KindConflict:
			status = http.StatusConflict
		case faults.KindConfiguration:
			status = http.StatusInternalServerError
		}
	} else {
		h.logger.Error("Unclassified handler error", zap.Error(err))
	}

	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func (h *Handlers) respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func (h *Handlers) actor(c *gin.Context) (string, bool) {
	actor := c.GetHeader(actorHeader)
	if actor == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "missing " + actorHeader + " header"})
		return "", false
	}
	return actor, true
}

func (h *Handlers) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid " + name})
		return 0, false
	}
	return id, true
}

func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, faults.Validation("invalid amount %q", raw)
	}
	return d, nil
}

// CreateClaim handles POST /api/v1/claims
func (h *Handlers) CreateClaim(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req struct {
		MemberID      int64  `json:"member_id" binding:"required"`
		ProviderID    int64  `json:"provider_id" binding:"required"`
		ServiceID     int64  `json:"service_id" binding:"required"`
		ClaimedAmount string `json:"claimed_amount" binding:"required"`
		PayeeType     string `json:"payee_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	amount, err := parseAmount(req.ClaimedAmount)
	if err != nil {
		h.respondError(c, err)
		return
	}

	claim, err := h.claims.Create(c.Request.Context(), service.CreateClaimInput{
		MemberID:      req.MemberID,
		ProviderID:    req.ProviderID,
		ServiceID:     req.ServiceID,
		ClaimedAmount: amount,
		PayeeType:     req.PayeeType,
		CreatedBy:     actor,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, claim)
}

// ListClaims handles GET /api/v1/claims
func (h *Handlers) ListClaims(c *gin.Context) {
	limit, offset := listParams(c)

	claims, err := h.claims.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, claims)
}

// GetClaim handles GET /api/v1/claims/:id
func (h *Handlers) GetClaim(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	claim, status, err := h.claims.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, gin.H{"claim": claim, "sla": status})
}

// GetClaimAudit handles GET /api/v1/claims/:id/audit
func (h *Handlers) GetClaimAudit(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	entries, err := h.audit.ListByEntity(c.Request.Context(), entity.AuditClaim, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, entries)
}

// AttachDocument handles POST /api/v1/claims/:id/attachments
func (h *Handlers) AttachDocument(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		FileName string `json:"file_name" binding:"required"`
		FilePath string `json:"file_path"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	attachmentID, err := h.attachments.Add(c.Request.Context(), entity.AuditClaim, id, req.FileName, req.FilePath)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, gin.H{"attachment_id": attachmentID})
}

// SubmitClaim handles POST /api/v1/claims/:id/submit
func (h *Handlers) SubmitClaim(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	claim, err := h.claims.Submit(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, claim)
}

// ReturnClaim handles POST /api/v1/claims/:id/return
func (h *Handlers) ReturnClaim(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	claim, err := h.claims.Return(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, claim)
}

// ApproveClaim handles POST /api/v1/claims/:id/approve
func (h *Handlers) ApproveClaim(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	claim, err := h.claims.Approve(c.Request.Context(), id, actor, service.AuthorityNormal, "")
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, claim)
}

// OverrideApproveClaim handles POST /api/v1/claims/:id/override
func (h *Handlers) OverrideApproveClaim(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req struct {
		Authority     string `json:"authority"`
		Justification string `json:"justification" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	authority := service.AuthorityGMOverride
	switch req.Authority {
	case "", "gm":
	case "committee":
		authority = service.AuthorityCommitteeOverride
	default:
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "authority must be gm or committee"})
		return
	}

	claim, err := h.claims.Approve(c.Request.Context(), id, actor, authority, req.Justification)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, claim)
}

// RejectClaim handles POST /api/v1/claims/:id/reject
func (h *Handlers) RejectClaim(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	claim, err := h.claims.Reject(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, claim)
}

// PayClaim handles POST /api/v1/claims/:id/pay
func (h *Handlers) PayClaim(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req struct {
		PaymentRef string `json:"payment_ref" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	claim, err := h.claims.MarkPaid(c.Request.Context(), id, actor, req.PaymentRef)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, claim)
}

// FlagFraud handles POST /api/v1/claims/:id/flag-fraud
func (h *Handlers) FlagFraud(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	claim, err := h.claims.FlagFraud(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, claim)
}

// ClearFraudFlag handles POST /api/v1/claims/:id/clear-fraud
func (h *Handlers) ClearFraudFlag(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	claim, err := h.claims.ClearFraudFlag(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, claim)
}

// CastVote handles POST /api/v1/claims/:id/votes
func (h *Handlers) CastVote(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req struct {
		Decision string `json:"decision" binding:"required"`
		Note     string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	outcome, err := h.committee.CastVote(c.Request.Context(), id, actor, req.Decision, req.Note)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, outcome)
}

// ListVotes handles GET /api/v1/claims/:id/votes
func (h *Handlers) ListVotes(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	votes, err := h.committee.Votes(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, votes)
}

// FraudHeatmap handles GET /api/v1/fraud/heatmap
func (h *Handlers) FraudHeatmap(c *gin.Context) {
	cells, err := h.claims.FraudHeatmap(c.Request.Context(), h.heatmap)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, cells)
}
