package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-backend/internal/config"
	"github.com/ignatzorin/escrow-backend/internal/db"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	httpHandlers "github.com/ignatzorin/escrow-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/escrow-backend/internal/http/router"
	"github.com/ignatzorin/escrow-backend/internal/infrastructure/persistence"
	"github.com/ignatzorin/escrow-backend/internal/infrastructure/persistence/memory"
	"github.com/ignatzorin/escrow-backend/internal/logger"
	"github.com/ignatzorin/escrow-backend/internal/notify"
	"github.com/ignatzorin/escrow-backend/internal/pkg/keylock"
	"github.com/ignatzorin/escrow-backend/internal/service"
	"github.com/ignatzorin/escrow-backend/internal/storage"
	"github.com/ignatzorin/escrow-backend/internal/usecase/dispute"
	"github.com/ignatzorin/escrow-backend/internal/usecase/order"
	"github.com/ignatzorin/escrow-backend/internal/ws"
)

// stores объединяет реализации портов выбранного хранилища.
type stores struct {
	uow       repository.UnitOfWork
	orders    repository.OrderRepository
	disputes  repository.DisputeRepository
	directory repository.ActorDirectory
	journal   repository.SettlementJournal
	pinger    httpHandlers.Pinger
	close     func()
}

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}
	log := logger.Init(cfg.LogLevel, cfg.Env)

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("main: не удалось подготовить хранилище")
	}
	defer st.close()

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	deliveries, err := storage.NewDeliveryStorage(cfg.DeliveryStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.WithError(err).Fatal("main: не удалось подготовить файловое хранилище")
	}

	// Вебсокеты и подписчики на смену статуса.
	hub := ws.NewHub(log)
	go hub.Run(ctx)

	dispatcher := notify.NewDispatcher(log, cfg.NotifyTimeout, hub, notify.NewSettlementHook(st.journal))
	if cfg.AMQPURL != "" {
		publisher, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.WithError(err).Fatal("main: не удалось подключиться к брокеру")
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.WithError(err).Warn("main: ошибка закрытия канала брокера")
			}
		}()
		dispatcher.Add(publisher)
		log.WithField("exchange", cfg.AMQPExchange).Info("main: события публикуются в AMQP")
	}

	locks := keylock.New()
	getOrder := order.NewGetOrderUseCase(st.orders)

	handlers := httpRouter.Handlers{
		Orders: httpHandlers.NewOrderHandler(
			order.NewCreateOrderUseCase(st.orders, st.directory),
			getOrder,
			order.NewListOrdersUseCase(st.orders),
			order.NewUpdateScopeUseCase(st.uow, locks),
			order.NewApplyTransitionUseCase(st.uow, locks, dispatcher, log),
		),
		Disputes: httpHandlers.NewDisputeHandler(
			dispute.NewGetDisputeUseCase(st.disputes),
			dispute.NewListOrderDisputesUseCase(st.orders, st.disputes),
			dispute.NewAdvanceDisputeUseCase(st.uow, locks, st.directory, dispatcher, log),
		),
		Deliveries: httpHandlers.NewDeliveryHandler(getOrder, deliveries),
		WS:         httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
		Health:     httpHandlers.NewHealthHandler(st.pinger, cfg.StoreDriver),
	}

	engine := httpRouter.SetupRouter(cfg, log, handlers, tokenManager, st.directory)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	}()

	log.WithFields(logrus.Fields{"port": cfg.HTTPPort, "store": cfg.StoreDriver}).Info("main: HTTP сервер запущен")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("main: сервер завершился с ошибкой")
		os.Exit(1)
	}
}

func openStores(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*stores, error) {
	if cfg.StoreDriver == config.StoreMemory {
		store := memory.New()
		dir := memory.NewDirectory()
		for _, a := range cfg.SeedActors {
			dir.Put(a.ID, a.Role, a.Capabilities...)
		}
		log.Warn("main: данные хранятся в памяти и пропадут при перезапуске")
		return &stores{
			uow:       store,
			orders:    store.Orders(),
			disputes:  store.Disputes(),
			directory: dir,
			journal:   memory.NewSettlementJournal(log),
			close:     func() {},
		}, nil
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL, db.DefaultPool)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(dbConn); err != nil {
		safeClose(dbConn, log)
		return nil, err
	}
	if version, dirty, err := db.MigrationVersion(dbConn); err == nil {
		log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("main: схема базы актуальна")
	}

	dir := persistence.NewActorDirectory(dbConn)
	for _, a := range cfg.SeedActors {
		if err := dir.Upsert(ctx, a.ID, a.Role, a.Capabilities...); err != nil {
			safeClose(dbConn, log)
			return nil, err
		}
	}

	return &stores{
		uow:       persistence.NewUnitOfWork(dbConn),
		orders:    persistence.NewOrderRepository(dbConn),
		disputes:  persistence.NewDisputeRepository(dbConn),
		directory: dir,
		journal:   persistence.NewSettlementJournal(dbConn),
		pinger:    dbConn,
		close:     func() { safeClose(dbConn, log) },
	}, nil
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB, log logrus.FieldLogger) {
	if err := db.Close(); err != nil {
		log.WithError(err).Warn("main: ошибка закрытия базы")
	}
}
