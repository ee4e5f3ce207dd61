package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/dto"
	"github.com/ignatzorin/escrow-backend/internal/http/response"
	"github.com/ignatzorin/escrow-backend/internal/usecase/dispute"
)

type DisputeHandler struct {
	get     *dispute.GetDisputeUseCase
	list    *dispute.ListOrderDisputesUseCase
	advance *dispute.AdvanceDisputeUseCase
}

func NewDisputeHandler(get *dispute.GetDisputeUseCase, list *dispute.ListOrderDisputesUseCase, advance *dispute.AdvanceDisputeUseCase) *DisputeHandler {
	return &DisputeHandler{get: get, list: list, advance: advance}
}

// ListOrderDisputes GET /orders/:id/disputes
func (h *DisputeHandler) ListOrderDisputes(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	disputes, err := h.list.Execute(c.Request.Context(), orderID, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, dto.NewDisputeListResponse(disputes))
}

// GetDispute GET /disputes/:id
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	disputeID, err := parseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	found, err := h.get.Execute(c.Request.Context(), disputeID, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, dto.NewDisputeResponse(found))
}

// AdvanceDispute POST /disputes/:id/advance
func (h *DisputeHandler) AdvanceDispute(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	disputeID, err := parseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.AdvanceDisputeRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	updated, err := h.advance.Execute(c.Request.Context(), req.ToInput(disputeID, actor.ID))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, dto.NewDisputeResponse(updated))
}
