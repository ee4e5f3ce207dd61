package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-backend/internal/config"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/http/handlers"
	"github.com/ignatzorin/escrow-backend/internal/http/middleware"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// Handlers собирает хэндлеры для маршрутов.
type Handlers struct {
	Orders     *handlers.OrderHandler
	Disputes   *handlers.DisputeHandler
	Deliveries *handlers.DeliveryHandler
	WS         *handlers.WSHandler
	Health     *handlers.HealthHandler
}

func SetupRouter(
	cfg *config.Config,
	log logrus.FieldLogger,
	h Handlers,
	tokenManager *service.TokenManager,
	directory repository.ActorDirectory,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.ErrorHandler(log))
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))

	// Токен WebSocket передаётся в query, заголовок браузер выставить не может.
	api.GET("/ws", h.WS.Handle)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager, directory))
	{
		protected.POST("/orders", h.Orders.CreateOrder)
		protected.GET("/orders", h.Orders.ListOrders)

		order := protected.Group("/orders/:id")
		order.Use(middleware.UUIDValidator("id"))
		{
			order.GET("", h.Orders.GetOrder)
			order.PATCH("/scope", h.Orders.UpdateScope)
			order.POST("/transitions", h.Orders.ApplyTransition)
			order.GET("/disputes", h.Disputes.ListOrderDisputes)
			order.POST("/deliveries", h.Deliveries.Upload)
			order.GET("/deliveries/:name", h.Deliveries.Download)
			order.DELETE("/deliveries/:name", h.Deliveries.Delete)
		}

		dispute := protected.Group("/disputes/:id")
		dispute.Use(middleware.UUIDValidator("id"))
		{
			dispute.GET("", h.Disputes.GetDispute)
			dispute.POST("/advance", h.Disputes.AdvanceDispute)
		}
	}

	return r
}
