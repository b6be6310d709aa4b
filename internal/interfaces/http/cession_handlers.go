package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qasimbotani/health-insurance/internal/domain/entity"
)

func listParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

// memberTransition runs a single-actor member lifecycle operation
func (h *Handlers) memberTransition(c *gin.Context, op func(ctx context.Context, memberID int64, actor string) (*entity.Member, error)) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	member, err := op(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, member)
}

// GenerateBordereau handles POST /api/v1/bordereaux
func (h *Handlers) GenerateBordereau(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req struct {
		ContractID  int64  `json:"contract_id" binding:"required"`
		PeriodStart string `json:"period_start" binding:"required"`
		PeriodEnd   string `json:"period_end" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	periodStart, err := parseDate(req.PeriodStart)
	if err != nil {
		h.respondError(c, err)
		return
	}
	periodEnd, err := parseDate(req.PeriodEnd)
	if err != nil {
		h.respondError(c, err)
		return
	}

	bordereau, err := h.cession.GenerateBordereau(c.Request.Context(), req.ContractID, periodStart, periodEnd, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, bordereau)
}

// GetBordereau handles GET /api/v1/bordereaux/:id
func (h *Handlers) GetBordereau(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	bordereau, lines, err := h.cession.GetBordereau(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, gin.H{"bordereau": bordereau, "lines": lines})
}

// ConfirmBordereau handles POST /api/v1/bordereaux/:id/confirm
func (h *Handlers) ConfirmBordereau(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	bordereau, err := h.cession.ConfirmBordereau(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, bordereau)
}

// ExportBordereau handles POST /api/v1/bordereaux/:id/export
func (h *Handlers) ExportBordereau(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	path, err := h.cession.ExportBordereau(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, gin.H{"file": path})
}

// CreateSettlement handles POST /api/v1/settlements
func (h *Handlers) CreateSettlement(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req struct {
		ContractID   int64   `json:"contract_id" binding:"required"`
		PeriodStart  string  `json:"period_start" binding:"required"`
		PeriodEnd    string  `json:"period_end" binding:"required"`
		BordereauIDs []int64 `json:"bordereau_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	periodStart, err := parseDate(req.PeriodStart)
	if err != nil {
		h.respondError(c, err)
		return
	}
	periodEnd, err := parseDate(req.PeriodEnd)
	if err != nil {
		h.respondError(c, err)
		return
	}

	settlement, err := h.cession.CreateSettlement(c.Request.Context(), req.ContractID, periodStart, periodEnd, req.BordereauIDs, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, settlement)
}

// ConfirmSettlement handles POST /api/v1/settlements/:id/confirm
func (h *Handlers) ConfirmSettlement(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	settlement, err := h.cession.ConfirmSettlement(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, settlement)
}

// SettleSettlement handles POST /api/v1/settlements/:id/settle
func (h *Handlers) SettleSettlement(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	settlement, err := h.cession.MarkSettled(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, settlement)
}
