package appServer

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"busalarm/config"
	repository "busalarm/internal/database/postgres"
	"busalarm/internal/scheduler"
	"busalarm/internal/service"
	"busalarm/internal/transport"
	"busalarm/internal/worker"
	"busalarm/pkg/busapi"
	"busalarm/pkg/postgres"
	"busalarm/pkg/push"
	"busalarm/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	// Initialize database
	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	reservationRepo := repository.NewReservationRepository(db)
	logRepo := repository.NewNotificationLogRepository(db)
	tokenRepo := repository.NewDeviceTokenRepository(db)

	// Initialize transit feed client
	var busClient busapi.Client
	if cfg.BusAPI.UseMock || cfg.BusAPI.ServiceKey == "" {
		busClient = busapi.NewMockClient()
		logrus.Warn("Transit feed service key not provided, using mock client")
	} else {
		busClient = busapi.NewTagoClient(cfg.BusAPI.BaseURL, cfg.BusAPI.ServiceKey, cfg.BusAPI.RequestTimeout)
		logrus.Info("Transit feed client initialized")
	}

	if cfg.Redis.Enabled {
		redisClient := redis.NewRedisClient(&cfg.Redis)
		defer redisClient.Close()
		busClient = busapi.NewCachedClient(busClient, redisClient, cfg.BusAPI.SearchCacheTTL)
		logrus.Info("Route search cache initialized")
	}

	// Initialize push delivery
	var notifier push.Notifier
	if cfg.Push.Enabled && cfg.Push.ServerKey != "" {
		notifier = push.NewFCMNotifier(cfg.Push.Endpoint, cfg.Push.ServerKey, tokenRepo, cfg.Push.Timeout)
		logrus.Info("Push notifier initialized")
	} else {
		notifier = push.NewLogNotifier()
		logrus.Warn("Push delivery disabled, notifications will be logged")
	}

	// Initialize the reservation scheduler and replay unfinished work
	reservationScheduler := scheduler.New(reservationRepo, logRepo, busClient, notifier, cfg.Scheduler.RetryDelay)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reservationScheduler.RecoverActive(ctx); err != nil {
		logrus.Errorf("Recovery sweep failed: %v", err)
	}

	// Initialize services
	reservationService := service.NewReservationService(reservationRepo, logRepo, busClient, reservationScheduler)
	busService := service.NewBusService(busClient)
	deviceService := service.NewDeviceService(tokenRepo)

	// Initialize expiry worker
	expiryWorker := worker.NewExpiryWorker(reservationRepo, logRepo, notifier, reservationScheduler, cfg.Worker.SweepInterval)
	go expiryWorker.Start(ctx)
	logrus.Info("Expiry worker started")

	// Initialize handlers
	reservationHandler := transport.NewReservationHandler(reservationService)
	busHandler := transport.NewBusHandler(busService)
	deviceHandler := transport.NewDeviceHandler(deviceService)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(reservationHandler, busHandler, deviceHandler)); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	if err := srv.Shutdown(context.Background()); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}
