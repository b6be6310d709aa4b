package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qasimbotani/health-insurance/internal/application/service"
	"github.com/qasimbotani/health-insurance/internal/domain/faults"
)

const dateLayout = "2006-01-02"

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, faults.Validation("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return t, nil
}

// CreatePolicy handles POST /api/v1/policies
func (h *Handlers) CreatePolicy(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}

	var req struct {
		Name                 string `json:"name" binding:"required"`
		HolderRef            string `json:"holder_ref" binding:"required"`
		CoverageTemplateID   int64  `json:"coverage_template_id" binding:"required"`
		AnnualLimit          string `json:"annual_limit" binding:"required"`
		ManagerApprovalLimit string `json:"manager_approval_limit" binding:"required"`
		StartDate            string `json:"start_date" binding:"required"`
		EndDate              string `json:"end_date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	annualLimit, err := parseAmount(req.AnnualLimit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	managerLimit, err := parseAmount(req.ManagerApprovalLimit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		h.respondError(c, err)
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		h.respondError(c, err)
		return
	}

	policy, err := h.policies.Create(c.Request.Context(), service.CreatePolicyInput{
		Name:                 req.Name,
		HolderRef:            req.HolderRef,
		CoverageTemplateID:   req.CoverageTemplateID,
		AnnualLimit:          annualLimit,
		ManagerApprovalLimit: managerLimit,
		StartDate:            startDate,
		EndDate:              endDate,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, policy)
}

// ListPolicies handles GET /api/v1/policies
func (h *Handlers) ListPolicies(c *gin.Context) {
	limit, offset := listParams(c)

	policies, err := h.policies.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, policies)
}

// GetPolicy handles GET /api/v1/policies/:id
func (h *Handlers) GetPolicy(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	policy, err := h.policies.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, policy)
}

// ActivatePolicy handles POST /api/v1/policies/:id/activate
func (h *Handlers) ActivatePolicy(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	policy, err := h.policies.Activate(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, policy)
}

// CancelPolicy handles POST /api/v1/policies/:id/cancel
func (h *Handlers) CancelPolicy(c *gin.Context) {
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

	policy, err := h.policies.Cancel(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, policy)
}

// QuoteRenewal handles POST /api/v1/policies/:id/quote-renewal
func (h *Handlers) QuoteRenewal(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	renewal, err := h.policies.QuoteRenewal(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, renewal)
}

// RenewPolicy handles POST /api/v1/policies/:id/renew
func (h *Handlers) RenewPolicy(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	child, err := h.policies.Renew(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, child)
}

// CreateMember handles POST /api/v1/members
func (h *Handlers) CreateMember(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}

	var req struct {
		Name       string `json:"name" binding:"required"`
		PolicyID   int64  `json:"policy_id" binding:"required"`
		PartnerRef string `json:"partner_ref"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	member, err := h.members.Create(c.Request.Context(), service.CreateMemberInput{
		Name:       req.Name,
		PolicyID:   req.PolicyID,
		PartnerRef: req.PartnerRef,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, member)
}

// GetMember handles GET /api/v1/members/:id
func (h *Handlers) GetMember(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	member, docs, err := h.members.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, gin.H{"member": member, "documents": docs})
}

// RequestDocuments handles POST /api/v1/members/:id/request-documents
func (h *Handlers) RequestDocuments(c *gin.Context) {
	h.memberTransition(c, h.members.RequestDocuments)
}

// AddMemberDocument handles POST /api/v1/members/:id/documents
func (h *Handlers) AddMemberDocument(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Type          string `json:"type" binding:"required"`
		AttachmentRef string `json:"attachment_ref" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	doc, err := h.members.AddDocument(c.Request.Context(), id, req.Type, req.AttachmentRef)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, doc)
}

// VerifyMemberDocument handles POST /api/v1/members/:id/documents/:docID/verify
func (h *Handlers) VerifyMemberDocument(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	docID, ok := h.pathID(c, "docID")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	if err := h.members.VerifyDocument(c.Request.Context(), id, docID, actor); err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, gin.H{"verified": true})
}

// ApproveMember handles POST /api/v1/members/:id/approve
func (h *Handlers) ApproveMember(c *gin.Context) {
	h.memberTransition(c, h.members.Approve)
}

// ActivateMember handles POST /api/v1/members/:id/activate
func (h *Handlers) ActivateMember(c *gin.Context) {
	h.memberTransition(c, h.members.Activate)
}

// SuspendMember handles POST /api/v1/members/:id/suspend
func (h *Handlers) SuspendMember(c *gin.Context) {
	h.memberTransition(c, h.members.Suspend)
}

// ReinstateMember handles POST /api/v1/members/:id/reinstate
func (h *Handlers) ReinstateMember(c *gin.Context) {
	h.memberTransition(c, h.members.Reinstate)
}

// TerminateMember handles POST /api/v1/members/:id/terminate
func (h *Handlers) TerminateMember(c *gin.Context) {
	h.memberTransition(c, h.members.Terminate)
}
