package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rkale/aeris/config"
	jcache "github.com/rkale/aeris/internal/cache"
	"github.com/rkale/aeris/internal/handler"
	"github.com/rkale/aeris/internal/middleware"
	"github.com/rkale/aeris/internal/repository"
	"github.com/rkale/aeris/internal/reservation"
	"github.com/rkale/aeris/internal/service"
	"github.com/rkale/aeris/internal/worker"
	"github.com/rkale/aeris/pkg/bus"
	"github.com/rkale/aeris/pkg/cache"
	"github.com/rkale/aeris/pkg/db"
)

func main() {
	// ── Load configuration ──────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// ── Connect to PostgreSQL ───────────────────────────
	pgPool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	defer pgPool.Close()
	log.Println("✓ PostgreSQL connected")

	// ── Connect to Redis ────────────────────────────────
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Redis connected")

	// ── Connect the event bus ───────────────────────────
	if err := bus.HealthCheck(ctx, cfg.Kafka); err != nil {
		log.Fatalf("failed to reach Kafka: %v", err)
	}
	flightsWriter := bus.NewFlightsWriter(cfg.Kafka)
	publisher := bus.NewPublisher(flightsWriter)
	defer publisher.Close()
	log.Println("✓ Kafka connected")

	// ── Initialize layers ───────────────────────────────
	flightRepo := repository.NewFlightRepository(pgPool)
	seatRepo := repository.NewSeatRepository(pgPool)
	journeyRepo := repository.NewJourneyRepository(pgPool)
	bookingRepo := repository.NewBookingRepository(pgPool)

	holdStore := reservation.NewStore(redisClient)
	journeyCache := jcache.NewJourneyCache(redisClient, cfg.Booking.SearchCacheTTL)

	ingestSvc := service.NewIngestService(flightRepo, publisher, cfg.Booking)
	precomputeSvc := service.NewPrecomputeService(
		flightRepo, journeyRepo, journeyCache, service.RulesFromConfig(cfg.Booking))
	searchSvc := service.NewSearchService(journeyRepo, seatRepo, journeyCache, cfg.Booking)
	bookingSvc := service.NewBookingService(journeyRepo, seatRepo, bookingRepo, holdStore, cfg.Booking)

	flightHandler := handler.NewFlightHandler(ingestSvc)
	searchHandler := handler.NewSearchHandler(searchSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)

	// ── Start background workers ────────────────────────
	var workers sync.WaitGroup

	consumer := worker.NewConsumer(cfg.Kafka, precomputeSvc)
	workers.Add(1)
	go func() {
		defer workers.Done()
		consumer.Run(ctx)
	}()

	outboxSweeper := worker.NewOutboxSweeper(flightRepo, publisher, cfg.Booking.OutboxSweepEvery)
	workers.Add(1)
	go func() {
		defer workers.Done()
		outboxSweeper.Run(ctx)
	}()

	holdSweeper := worker.NewHoldSweeper(holdStore, cfg.Booking.HoldSweepEvery)
	workers.Add(1)
	go func() {
		defer workers.Done()
		holdSweeper.Run(ctx)
	}()

	// ── Setup router ────────────────────────────────────
	router := mux.NewRouter()

	// Health check endpoint.
	router.HandleFunc("/health", healthHandler(pgPool, redisClient, cfg.Kafka)).Methods(http.MethodGet)

	// Admin ingest.
	router.HandleFunc("/admin/flights", flightHandler.CreateFlight).Methods(http.MethodPost)
	router.HandleFunc("/admin/flights/{id}", flightHandler.GetFlight).Methods(http.MethodGet)

	// Passenger search and booking.
	router.HandleFunc("/search/journeys", searchHandler.SearchJourneys).Methods(http.MethodGet)
	router.HandleFunc("/bookings", bookingHandler.CreateBooking).Methods(http.MethodPost)
	router.HandleFunc("/bookings/{id}", bookingHandler.GetBooking).Methods(http.MethodGet)
	router.HandleFunc("/users/{id}/bookings", bookingHandler.ListUserBookings).Methods(http.MethodGet)

	root := middleware.CORS(middleware.RequestLogger(middleware.Recoverer(router)))

	// ── Start HTTP server ───────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in a goroutine so we can listen for shutdown signals.
	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Server.ServerAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// ── Graceful shutdown ───────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("⏳ Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	// Stop the consumer and sweepers after the HTTP surface is drained so
	// in-flight bookings finish before their stores go away.
	stop()
	workers.Wait()

	log.Println("✅ Server gracefully stopped")
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// healthHandler returns an HTTP handler that checks PG, Redis and Kafka
// connectivity.
func healthHandler(pgPool *pgxpool.Pool, redisClient *redis.Client, kafkaCfg config.KafkaConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Services: make(map[string]string),
		}

		if err := db.HealthCheck(r.Context(), pgPool); err != nil {
			resp.Status = "degraded"
			resp.Services["postgres"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["postgres"] = "healthy"
		}

		if err := cache.HealthCheck(r.Context(), redisClient); err != nil {
			resp.Status = "degraded"
			resp.Services["redis"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["redis"] = "healthy"
		}

		if err := bus.HealthCheck(r.Context(), kafkaCfg); err != nil {
			resp.Status = "degraded"
			resp.Services["kafka"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["kafka"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}
