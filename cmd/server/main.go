package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/agency-hub-service/internal/api"
	"github.com/teresa-solution/agency-hub-service/internal/config"
	"github.com/teresa-solution/agency-hub-service/internal/crypto"
	"github.com/teresa-solution/agency-hub-service/internal/functions"
	"github.com/teresa-solution/agency-hub-service/internal/monitoring"
	"github.com/teresa-solution/agency-hub-service/internal/realtime"
	"github.com/teresa-solution/agency-hub-service/internal/service"
	"github.com/teresa-solution/agency-hub-service/internal/storage"
	"github.com/teresa-solution/agency-hub-service/internal/store"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/reflection"
)

const (
	queryCacheTTL = 2 * time.Minute
	zoomStateTTL  = 12 * time.Hour
	sessionTTL    = 7 * 24 * time.Hour
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	sealer, err := crypto.NewSealer([]byte(cfg.EncryptionKey))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init encryption")
	}

	st, err := store.New(ctx, cfg.DSN(), store.NewQueryCache(rdb, queryCacheTTL), sealer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer st.Close()

	bucket, err := openBucket(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage bucket")
	}

	local := functions.NewLocal()
	functions.NewHandlers(st, cfg.PasswordResetBaseURL, cfg.CheckoutBaseURL).Register(local)
	var invoker service.FunctionInvoker = local
	if cfg.FunctionsAddr != "" {
		conn, err := grpc.NewClient(cfg.FunctionsAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.FunctionsAddr).Msg("Failed to dial functions service")
		}
		defer conn.Close()
		invoker = functions.NewClient(conn)
		log.Info().Str("addr", cfg.FunctionsAddr).Msg("Invoking remote functions")
	}

	monitoring.InitMetrics()

	authz := service.NewAuthorizer(st)
	zoom := service.NewNavigator(service.NewRedisZoomStore(rdb, zoomStateTTL))
	hub := realtime.NewHub(cfg.CORSOrigins)
	go func() {
		if err := hub.Listen(ctx, rdb); err != nil {
			log.Error().Err(err).Msg("Realtime hub stopped")
		}
	}()

	submissions := service.NewSubmissionService(st, authz, zoom)
	agencies := service.NewAgencyService(st, authz, service.NewProvisioner(invoker), realtime.NewNotifier(rdb), cfg.TrialDays)

	sweeper, err := service.NewSweeper(st, cfg.SweepSchedule)
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("Invalid sweep schedule")
	}
	sweeper.Start()

	limiter := api.NewRateLimiter(rate.Limit(20), 40).TrustProxies(cfg.TrustedProxies)
	formLimiter := api.NewRateLimiter(rate.Every(time.Minute/5), 5).TrustProxies(cfg.TrustedProxies)
	go limiter.Run(ctx, time.Minute, 10*time.Minute)
	go formLimiter.Run(ctx, time.Minute, 10*time.Minute)

	handler := api.New(api.Deps{
		Agencies:    agencies,
		Events:      service.NewEventService(st, authz),
		Posts:       service.NewPostService(st, authz),
		Submissions: submissions,
		Guests:      service.NewGuestService(st, authz, submissions),
		GuestList:   service.NewGuestListService(st, authz),
		Intake:      service.NewIntakeService(st, bucket),
		Profiles:    service.NewProfileService(st),
		Sessions:    service.NewSessionService(st),
		Authz:       authz,
		Zoom:        zoom,
		Hub:         hub,
		Principals:  st,
		Tokens:      api.NewTokens([]byte(cfg.JWTSecret), sessionTTL),
		Limiter:     limiter,
		FormLimiter: formLimiter,
	})

	root := http.NewServeMux()
	root.Handle("/api/", handler)
	if cfg.StorageDriver == "local" {
		root.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StorageRoot))))
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           c.Handler(root),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	go func() {
		log.Info().Msgf("Starting Agency Hub API on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP API server error")
		}
	}()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to listen")
	}
	grpcServer := grpc.NewServer()
	functions.RegisterFunctionsServer(grpcServer, functions.NewServer(local))
	reflection.Register(grpcServer)
	go func() {
		log.Info().Strs("functions", local.Names()).Msgf("gRPC server listening at %v", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("Failed to start gRPC server")
		}
	}()

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux(st),
	}
	go func() {
		log.Info().Msgf("HTTP server for health checks and metrics started on port %d", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP API shutdown")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Metrics server shutdown")
	}
	grpcServer.GracefulStop()
	sweeper.Stop(shutdownCtx)
	cancel()
	hub.Close()
	log.Info().Msg("Server exiting")
}

func openBucket(cfg *config.Config) (storage.Bucket, error) {
	if cfg.StorageDriver == "oss" {
		return storage.NewOSSBucket(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey, cfg.OSSBucket, cfg.PublicBaseURL)
	}
	return storage.NewLocalBucket(cfg.StorageRoot, cfg.PublicBaseURL)
}

func metricsMux(st *store.Store) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
