package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/dto"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/response"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/countdown"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/milestone"
)

// MilestoneHandler обслуживает /api/deals/:id/milestones/:index/*.
type MilestoneHandler struct {
	machine   *milestone.Machine
	scheduler *countdown.Scheduler
}

func NewMilestoneHandler(machine *milestone.Machine, scheduler *countdown.Scheduler) *MilestoneHandler {
	return &MilestoneHandler{machine: machine, scheduler: scheduler}
}

func (h *MilestoneHandler) Submit(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	dealID, ok := parseUUIDParam(c, "id", "некорректный ID сделки")
	if !ok {
		return
	}
	index, ok := parseIndexParam(c)
	if !ok {
		return
	}

	var req dto.SubmitMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	d, err := h.machine.Submit(c.Request.Context(), dealID, index, actor, req.Message, req.Files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDealResponse(d))
}

func (h *MilestoneHandler) RequestRevision(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	dealID, ok := parseUUIDParam(c, "id", "некорректный ID сделки")
	if !ok {
		return
	}
	index, ok := parseIndexParam(c)
	if !ok {
		return
	}

	var req dto.RevisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "укажите причину доработки")
		return
	}

	d, err := h.machine.RequestRevision(c.Request.Context(), dealID, index, actor, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDealResponse(d))
}

func (h *MilestoneHandler) Approve(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	dealID, ok := parseUUIDParam(c, "id", "некорректный ID сделки")
	if !ok {
		return
	}
	index, ok := parseIndexParam(c)
	if !ok {
		return
	}

	d, err := h.machine.Approve(c.Request.Context(), dealID, index, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDealResponse(d))
}

// CancelCountdown обрабатывает DELETE .../countdown. Повторная отмена не ошибка.
func (h *MilestoneHandler) CancelCountdown(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	dealID, ok := parseUUIDParam(c, "id", "некорректный ID сделки")
	if !ok {
		return
	}
	index, ok := parseIndexParam(c)
	if !ok {
		return
	}

	d, cancelled, err := h.scheduler.Cancel(c.Request.Context(), dealID, index, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.CountdownCancelResponse{
		Deal:      dto.ToDealResponse(d),
		Cancelled: cancelled,
	})
}
