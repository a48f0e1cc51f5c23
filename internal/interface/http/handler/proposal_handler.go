package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/dto"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/response"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/proposal"
)

type ProposalHandler struct {
	createProposalUC  *proposal.CreateProposalUseCase
	updateStatusUC    *proposal.UpdateProposalStatusUseCase
	getProposalUC     *proposal.GetProposalUseCase
	listMyProposalsUC *proposal.ListMyProposalsUseCase
}

func NewProposalHandler(
	createProposalUC *proposal.CreateProposalUseCase,
	updateStatusUC *proposal.UpdateProposalStatusUseCase,
	getProposalUC *proposal.GetProposalUseCase,
	listMyProposalsUC *proposal.ListMyProposalsUseCase,
) *ProposalHandler {
	return &ProposalHandler{
		createProposalUC:  createProposalUC,
		updateStatusUC:    updateStatusUC,
		getProposalUC:     getProposalUC,
		listMyProposalsUC: listMyProposalsUC,
	}
}

// CreateProposal обрабатывает POST /api/proposals.
func (h *ProposalHandler) CreateProposal(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req dto.CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	created, err := h.createProposalUC.Execute(c.Request.Context(), proposal.CreateProposalInput{
		Title:             req.Title,
		Description:       req.Description,
		Milestones:        req.Specs(),
		TotalAmount:       req.TotalAmount,
		FeeSplit:          *req.FeeSplit,
		CreatorRole:       req.CreatorRole,
		CounterpartyEmail: req.CounterpartyEmail,
	}, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToProposalResponse(created))
}

// UpdateProposalStatus обрабатывает PATCH /api/proposals/:id/status.
func (h *ProposalHandler) UpdateProposalStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	proposalID, ok := parseUUIDParam(c, "id", "некорректный ID предложения")
	if !ok {
		return
	}

	var req dto.UpdateProposalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "статус должен быть accepted или declined")
		return
	}

	result, err := h.updateStatusUC.Execute(c.Request.Context(), proposalID, req.Status, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.UpdateProposalStatusResponse{
		Proposal: dto.ToProposalResponse(result.Proposal),
		Deal:     dto.ToDealResponsePtr(result.Deal),
		Funding:  dto.ToFundingResponse(result.Funding),
	})
}

func (h *ProposalHandler) GetProposal(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	proposalID, ok := parseUUIDParam(c, "id", "некорректный ID предложения")
	if !ok {
		return
	}

	p, err := h.getProposalUC.Execute(c.Request.Context(), proposalID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToProposalResponse(p))
}

func (h *ProposalHandler) ListMyProposals(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	proposals, err := h.listMyProposalsUC.Execute(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToProposalResponses(proposals))
}
