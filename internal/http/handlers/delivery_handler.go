package handlers

import (
	"net/http"
	"path"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/dto"
	"github.com/ignatzorin/escrow-backend/internal/http/response"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/storage"
	"github.com/ignatzorin/escrow-backend/internal/usecase/order"
)

// DeliveryHandler загружает и отдаёт файлы результата работы.
type DeliveryHandler struct {
	orders  *order.GetOrderUseCase
	storage *storage.DeliveryStorage
}

func NewDeliveryHandler(orders *order.GetOrderUseCase, st *storage.DeliveryStorage) *DeliveryHandler {
	return &DeliveryHandler{orders: orders, storage: st}
}

// Upload обрабатывает POST /orders/:id/deliveries (multipart, поле file).
// Возвращённый ref передаётся в delivery_files при сдаче работы.
func (h *DeliveryHandler) Upload(c *gin.Context) {
	found, actor, ok := h.loadOrder(c)
	if !ok {
		return
	}
	if actor.ID != found.SellerID {
		response.Error(c, apperror.New(apperror.ErrCodeActorNotAuthorized, "загружать результат может только продавец"))
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "файл обязателен")
		return
	}
	src, err := file.Open()
	if err != nil {
		response.BadRequest(c, "не удалось прочитать файл")
		return
	}
	defer src.Close()

	saved, err := h.storage.Save(c.Request.Context(), found.ID, file.Filename, src)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Created(c, dto.NewDeliveryResponse(saved))
}

// Download обрабатывает GET /orders/:id/deliveries/:name.
func (h *DeliveryHandler) Download(c *gin.Context) {
	found, _, ok := h.loadOrder(c)
	if !ok {
		return
	}

	f, err := h.storage.Open(c.Request.Context(), deliveryRef(found.ID, c.Param("name")))
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", f, map[string]string{
		"Content-Disposition": `attachment; filename="` + c.Param("name") + `"`,
	})
}

// Delete обрабатывает DELETE /orders/:id/deliveries/:name.
// Файл, уже указанный в сданной работе, удалить нельзя.
func (h *DeliveryHandler) Delete(c *gin.Context) {
	found, actor, ok := h.loadOrder(c)
	if !ok {
		return
	}
	if actor.ID != found.SellerID {
		response.Error(c, apperror.New(apperror.ErrCodeActorNotAuthorized, "удалять файлы может только продавец"))
		return
	}

	ref := deliveryRef(found.ID, c.Param("name"))
	if slices.Contains(found.DeliveryFiles, ref) {
		response.Error(c, apperror.New(apperror.ErrCodeValidation, "файл уже передан покупателю"))
		return
	}
	if err := h.storage.Delete(c.Request.Context(), ref); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DeliveryHandler) loadOrder(c *gin.Context) (*entity.Order, entity.Actor, bool) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return nil, entity.Actor{}, false
	}
	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return nil, entity.Actor{}, false
	}
	found, err := h.orders.Execute(c.Request.Context(), orderID, actor)
	if err != nil {
		_ = c.Error(err)
		return nil, entity.Actor{}, false
	}
	return found, actor, true
}

func deliveryRef(orderID uuid.UUID, name string) string {
	return path.Join(orderID.String(), path.Base("/"+name))
}
