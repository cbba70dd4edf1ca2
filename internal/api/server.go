package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/relieftrack/shipment-tracking-api/internal/clients"
	"github.com/relieftrack/shipment-tracking-api/internal/config"
	"github.com/relieftrack/shipment-tracking-api/internal/database"
	"github.com/relieftrack/shipment-tracking-api/internal/handlers"
	"github.com/relieftrack/shipment-tracking-api/internal/models"
	"github.com/relieftrack/shipment-tracking-api/internal/outbox"
	"github.com/relieftrack/shipment-tracking-api/internal/repository"
	"github.com/relieftrack/shipment-tracking-api/internal/service"
	"github.com/relieftrack/shipment-tracking-api/pkg/kafka"
	"github.com/relieftrack/shipment-tracking-api/pkg/logger"
	"github.com/relieftrack/shipment-tracking-api/pkg/middleware"
	"github.com/relieftrack/shipment-tracking-api/pkg/retry"
)

// Server wires the HTTP API to the shipment, analytics, and estimate
// services plus their supporting infrastructure.
type Server struct {
	config     *config.Config
	logger     logger.Logger
	router     *mux.Router
	httpServer *http.Server

	db         *database.Database
	store      repository.ShipmentStore
	outboxRepo *repository.OutboxRepository
	dlqRepo    *repository.DeadLetterRepository

	shipmentService  *service.ShipmentService
	analyticsService *service.AnalyticsService
	estimateService  *service.EstimateService
	routingClient    *clients.RoutingClient

	outboxProcessor     *outbox.Processor
	deadLetterProcessor *outbox.DeadLetterProcessor
	kafkaProducer       *kafka.Producer
	kafkaConsumer       *kafka.Consumer

	rateLimiter *middleware.RateLimiterMiddleware
	degradation *middleware.GracefulDegradation
}

// NewServer creates a fully wired API server
func NewServer(cfg *config.Config, logger logger.Logger) (*Server, error) {
	var (
		db           *database.Database
		store        repository.ShipmentStore
		outboxRepo   *repository.OutboxRepository
		dlqRepo      *repository.DeadLetterRepository
		outboxWriter service.OutboxWriter
	)

	if cfg.StoreBackend == "memory" {
		// volatile single-process mode, no outbox or dead letter queue
		logger.Warn("Using in-memory shipment store, data will not survive a restart")
		store = repository.NewMemoryShipmentStore()
	} else {
		var err error
		db, err = database.New(cfg, logger)

		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := db.RunMigrations(); err != nil {
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}

		store = repository.NewPostgresShipmentStore(db.DB)
		outboxRepo = repository.NewOutboxRepository(db, logger)
		dlqRepo = repository.NewDeadLetterRepository(db, logger)
		outboxWriter = outboxRepo
	}

	routingClient := clients.NewRoutingClient(cfg.Routing.BaseURL, cfg.Routing.APIKey, logger)

	shipmentService := service.NewShipmentService(store, outboxWriter, logger)
	analyticsService := service.NewAnalyticsService(store, logger)
	estimateService := service.NewEstimateService(routingClient, shipmentService, logger)

	server := &Server{
		config:           cfg,
		logger:           logger,
		router:           mux.NewRouter(),
		db:               db,
		store:            store,
		outboxRepo:       outboxRepo,
		dlqRepo:          dlqRepo,
		shipmentService:  shipmentService,
		analyticsService: analyticsService,
		estimateService:  estimateService,
		routingClient:    routingClient,
		rateLimiter: middleware.NewRateLimiterMiddleware(&middleware.RateLimiterConfig{
			GlobalMaxTokens:   200,
			GlobalRefillRate:  100,
			IPMaxTokens:       20,
			IPRefillRate:      10,
			TrustForwardedFor: cfg.Env != "production",
		}, logger),
		degradation: middleware.NewGracefulDegradation(logger),
	}

	if cfg.Kafka.Enabled && outboxRepo != nil {
		if err := server.setupEventing(); err != nil {
			return nil, err
		}
	}

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	server.setupRoutes()

	return server, nil
}

// setupEventing wires the outbox processors and Kafka endpoints
func (s *Server) setupEventing() error {
	producer, err := kafka.NewProducer(s.config.Kafka.Brokers, s.logger)

	if err != nil {
		return fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	s.kafkaProducer = producer

	s.outboxProcessor = outbox.NewProcessor(s.outboxRepo, s.dlqRepo, outbox.ProcessorConfig{
		PollingInterval: 5 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
	}, s.logger)

	s.deadLetterProcessor = outbox.NewDeadLetterProcessor(s.dlqRepo, s.logger, &outbox.DeadLetterProcessorConfig{
		PollingInterval: 30 * time.Second, // less frequent than the outbox poll
		BatchSize:       5,
		MaxRetries:      5,
		BackoffStrategy: &retry.ExponentialBackoff{
			InitialInterval: 1 * time.Second,
			MaxInterval:     2 * time.Minute,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		},
	})

	kafkaHandler := outbox.NewKafkaHandler(producer, s.config.Kafka.ShipmentsTopic, s.logger)

	for _, eventType := range []string{
		models.EventShipmentCreated,
		models.EventShipmentLocationAppended,
		models.EventShipmentStatusChanged,
		models.EventShipmentDeleted,
	} {
		s.outboxProcessor.RegisterHandler(eventType, kafkaHandler)
		s.deadLetterProcessor.RegisterHandler(eventType, kafkaHandler)
	}

	consumer, err := kafka.NewConsumer(&kafka.ConsumerConfig{
		Brokers:       s.config.Kafka.Brokers,
		Topics:        []string{s.config.Kafka.ShipmentsTopic},
		ConsumerGroup: s.config.Kafka.ConsumerGroup,
	}, s.logger)

	if err != nil {
		return fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	consumer.RegisterHandler(s.config.Kafka.ShipmentsTopic, handlers.NewShipmentEventsHandler(s.logger))
	s.kafkaConsumer = consumer

	return nil
}

// Start starts the background processors and the HTTP server
func (s *Server) Start() error {
	if s.outboxProcessor != nil {
		s.outboxProcessor.Start()
	}
	if s.deadLetterProcessor != nil {
		s.deadLetterProcessor.Start()
	}
	if s.kafkaConsumer != nil {
		if err := s.kafkaConsumer.Start(); err != nil {
			// Non-fatal: the API stays up, events just aren't consumed
			s.logger.Error("Failed to start Kafka consumer", "error", err)
		}
	}

	s.logger.Info("Server listening", "port", s.config.Port, "env", s.config.Env)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and its background workers
func (s *Server) Shutdown(ctx context.Context) error {
	if s.outboxProcessor != nil {
		s.outboxProcessor.Stop()
	}
	if s.deadLetterProcessor != nil {
		s.deadLetterProcessor.Stop()
	}

	if s.kafkaConsumer != nil {
		if err := s.kafkaConsumer.Stop(); err != nil {
			s.logger.Error("Error stopping Kafka consumer", "error", err)
		}
	}

	if s.kafkaProducer != nil {
		if err := s.kafkaProducer.Close(); err != nil {
			s.logger.Error("Error closing Kafka producer", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Error closing database connection", "error", err)
		}
	}

	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all the routes for the API
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.rateLimiter.Middleware)
	s.router.Use(s.degradation.Middleware)

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	// Shipment lifecycle
	api.HandleFunc("/shipments", s.getShipmentsHandler).Methods(http.MethodGet)
	api.HandleFunc("/shipments", s.createShipmentHandler).Methods(http.MethodPost)
	api.HandleFunc("/shipments/{id}", s.getShipmentByIDHandler).Methods(http.MethodGet)
	api.HandleFunc("/shipments/{id}", s.updateShipmentHandler).Methods(http.MethodPut)
	api.HandleFunc("/shipments/{id}", s.deleteShipmentHandler).Methods(http.MethodDelete)
	api.HandleFunc("/shipments/{id}/location", s.appendLocationHandler).Methods(http.MethodPost)
	api.HandleFunc("/shipments/{id}/verify", s.verifyShipmentHandler).Methods(http.MethodPost)
	api.HandleFunc("/shipments/{id}/tamper", s.flagTamperedHandler).Methods(http.MethodPost)

	// Route estimates
	api.HandleFunc("/estimate", s.estimateHandler).Methods(http.MethodPost)
	api.HandleFunc("/shipments/{id}/estimate", s.shipmentEstimateHandler).Methods(http.MethodGet)

	// Analytics
	api.HandleFunc("/analytics/overview", s.analyticsOverviewHandler).Methods(http.MethodGet)
	api.HandleFunc("/analytics/timeline", s.analyticsTimelineHandler).Methods(http.MethodGet)
	api.HandleFunc("/analytics/routes", s.analyticsRoutesHandler).Methods(http.MethodGet)
	api.HandleFunc("/analytics/checkpoints", s.analyticsCheckpointsHandler).Methods(http.MethodGet)

	// Admin API for monitoring and management
	admin := s.router.PathPrefix("/api/admin").Subrouter()
	admin.Use(s.adminAuthMiddleware)
	admin.HandleFunc("/dead-letters", s.getDeadLettersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/dead-letters/{id}/retry", s.retryDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/dead-letters/{id}/discard", s.discardDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/circuit-breakers", s.getCircuitBreakersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/circuit-breakers/reset", s.resetCircuitBreakersHandler).Methods(http.MethodPost)
	admin.HandleFunc("/ratelimits", s.getRateLimitsHandler).Methods(http.MethodGet)
}

// Middleware for logging requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr,
		)
	})
}

// adminAuthMiddleware enforces the static admin credential
func (s *Server) adminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.config.Admin.Token
		if token == "" || r.Header.Get("Authorization") != "Bearer "+token {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}
