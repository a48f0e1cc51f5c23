package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/dto"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/response"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/deal"
)

type DealHandler struct {
	getDealUC     *deal.GetDealUseCase
	listMyDealsUC *deal.ListMyDealsUseCase
	fundDealUC    *deal.FundDealUseCase
}

func NewDealHandler(getDealUC *deal.GetDealUseCase, listMyDealsUC *deal.ListMyDealsUseCase, fundDealUC *deal.FundDealUseCase) *DealHandler {
	return &DealHandler{
		getDealUC:     getDealUC,
		listMyDealsUC: listMyDealsUC,
		fundDealUC:    fundDealUC,
	}
}

func (h *DealHandler) GetDeal(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	dealID, ok := parseUUIDParam(c, "id", "некорректный ID сделки")
	if !ok {
		return
	}

	d, err := h.getDealUC.Execute(c.Request.Context(), dealID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDealResponse(d))
}

func (h *DealHandler) ListMyDeals(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	deals, err := h.listMyDealsUC.Execute(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDealResponses(deals))
}

// ListTransactions обрабатывает GET /api/deals/:id/transactions.
func (h *DealHandler) ListTransactions(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	dealID, ok := parseUUIDParam(c, "id", "некорректный ID сделки")
	if !ok {
		return
	}

	txs, err := h.getDealUC.Transactions(c.Request.Context(), dealID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToTransactionResponses(txs))
}

// FundDeal обрабатывает POST /api/deals/:id/fund: выдаёт ссылку на оплату.
func (h *DealHandler) FundDeal(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	dealID, ok := parseUUIDParam(c, "id", "некорректный ID сделки")
	if !ok {
		return
	}

	result, err := h.fundDealUC.Execute(c.Request.Context(), dealID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.ToFundingResponse(result))
}
