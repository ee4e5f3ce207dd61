package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/dto"
	"github.com/ignatzorin/escrow-backend/internal/http/response"
	"github.com/ignatzorin/escrow-backend/internal/usecase/order"
)

type OrderHandler struct {
	create     *order.CreateOrderUseCase
	get        *order.GetOrderUseCase
	list       *order.ListOrdersUseCase
	scope      *order.UpdateScopeUseCase
	transition *order.ApplyTransitionUseCase
}

// NewOrderHandler создаёт новый хэндлер.
func NewOrderHandler(
	create *order.CreateOrderUseCase,
	get *order.GetOrderUseCase,
	list *order.ListOrdersUseCase,
	scope *order.UpdateScopeUseCase,
	transition *order.ApplyTransitionUseCase,
) *OrderHandler {
	return &OrderHandler{create: create, get: get, list: list, scope: scope, transition: transition}
}

// CreateOrder обрабатывает POST /orders.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateOrderRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	created, err := h.create.Execute(c.Request.Context(), req.ToInput(actor))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Created(c, dto.NewOrderResponse(created))
}

// ListOrders обрабатывает GET /orders.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	limit, offset := pagination(c)
	orders, total, err := h.list.Execute(c.Request.Context(), order.ListOrdersInput{
		Actor:  actor,
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	if limit <= 0 {
		limit = len(orders)
	}
	response.Paginated(c, dto.NewOrderListResponse(orders), total, limit, offset)
}

// GetOrder обрабатывает GET /orders/:id.
func (h *OrderHandler) GetOrder(c *gin.Context) {
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

	found, err := h.get.Execute(c.Request.Context(), orderID, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, dto.NewOrderResponse(found))
}

// UpdateScope обрабатывает PATCH /orders/:id/scope.
func (h *OrderHandler) UpdateScope(c *gin.Context) {
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

	var req dto.UpdateScopeRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	updated, err := h.scope.Execute(c.Request.Context(), order.UpdateScopeInput{
		OrderID: orderID,
		Actor:   actor,
		Scope:   req.Scope,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, dto.NewOrderResponse(updated))
}

// ApplyTransition обрабатывает POST /orders/:id/transitions.
func (h *OrderHandler) ApplyTransition(c *gin.Context) {
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

	var req dto.TransitionRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	updated, err := h.transition.Execute(c.Request.Context(), req.ToInput(orderID, actor))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, dto.NewOrderResponse(updated))
}
