package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/dto"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/response"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/dispute"
)

type DisputeHandler struct {
	manager *dispute.Manager
}

func NewDisputeHandler(manager *dispute.Manager) *DisputeHandler {
	return &DisputeHandler{manager: manager}
}

// OpenDispute обрабатывает POST /api/deals/:id/disputes.
func (h *DisputeHandler) OpenDispute(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	dealID, ok := parseUUIDParam(c, "id", "некорректный ID сделки")
	if !ok {
		return
	}

	var req dto.OpenDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	created, err := h.manager.Open(c.Request.Context(), dispute.OpenInput{
		DealID:         dealID,
		MilestoneIndex: req.MilestoneIndex,
		Category:       req.Category,
		Priority:       req.Priority,
		Reason:         req.Reason,
		Evidence:       req.Evidence,
	}, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToDisputeResponse(created))
}

func (h *DisputeHandler) GetDispute(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	disputeID, ok := parseUUIDParam(c, "id", "некорректный ID спора")
	if !ok {
		return
	}

	d, err := h.manager.Get(c.Request.Context(), disputeID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeResponse(d))
}

func (h *DisputeHandler) ListForDeal(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	dealID, ok := parseUUIDParam(c, "id", "некорректный ID сделки")
	if !ok {
		return
	}

	disputes, err := h.manager.ListForDeal(c.Request.Context(), dealID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeResponses(disputes))
}

func (h *DisputeHandler) ListMine(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	disputes, err := h.manager.ListMine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeResponses(disputes))
}

// ListOpen обрабатывает GET /api/admin/disputes.
func (h *DisputeHandler) ListOpen(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	disputes, err := h.manager.ListOpen(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeResponses(disputes))
}

// ResolveDispute обрабатывает POST /api/admin/disputes/:id/resolve.
func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	disputeID, ok := parseUUIDParam(c, "id", "некорректный ID спора")
	if !ok {
		return
	}

	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	resolved, err := h.manager.Resolve(c.Request.Context(), disputeID, dispute.ResolveInput{
		Type:   req.Type,
		Amount: req.Amount,
		Notes:  req.Notes,
	}, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDisputeResponse(resolved))
}
