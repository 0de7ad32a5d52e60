package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/auth"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/config"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/logging"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/middleware"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/notify"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/storage"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/support"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Dir: cfg.LogDir})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if len(cfg.JWTKeys) == 0 && cfg.JWTSecret == "" {
		logger.Fatal("either JWT_SECRET or JWT_KEYS must be set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open storage", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}

	// Headless hosts run without sound or desktop notifications.
	var (
		cue      notify.Cue      = notify.NopCue{}
		notifier notify.Notifier = notify.NopNotifier{}
	)
	if cfg.NotifyEnabled {
		cue = notify.BeepCue{}
		notifier = notify.DesktopNotifier{}
	}
	initial := notify.ParsePermission(cfg.NotifyPermission)

	svc := support.New(backend, support.Options{
		StorageKey:        cfg.StorageKey,
		PollInterval:      cfg.PollInterval,
		Cue:               cue,
		Notifier:          notifier,
		InitialPermission: initial,
		Prompter:          notify.AutoPrompter{Grant: initial == notify.PermissionGranted},
	}, logger)

	// Token valid for 24 hours. JWT_KEYS enables rotation; JWT_SECRET is the
	// single-key fallback.
	var jwtMgr *auth.JWTManager
	if len(cfg.JWTKeys) > 0 {
		jwtMgr = auth.NewJWTManagerFromKeys(cfg.JWTKeys, cfg.JWTActiveKid, 24*time.Hour)
	} else {
		jwtMgr = auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour)
	}

	// Only SendMessage is rate limited; a small burst allows quick retries.
	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, 1*time.Minute)
	defer limiterStore.Stop()
	limited := map[string]bool{
		fullMethod("SendMessage"): true,
	}

	var serverOpts []grpc.ServerOption

	// If TLS certs are configured, create server credentials and require TLS
	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS certs", zap.Error(err))
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	} else if cfg.RequireTLS {
		logger.Fatal("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}

	// auth runs first so the limiter can charge the verified caller
	serverOpts = append(serverOpts, grpc.ChainUnaryInterceptor(
		authUnaryInterceptor(jwtMgr),
		middleware.RateLimitUnaryInterceptor(limiterStore, limited, rateLimitKey),
	))
	serverOpts = append(serverOpts, grpc.ChainStreamInterceptor(authStreamInterceptor(jwtMgr)))

	grpcServer := grpc.NewServer(serverOpts...)
	srv := newServer(svc, jwtMgr, logger.Named("api"))
	registerService(grpcServer, srv)

	listenAddr := cfg.Port
	if !strings.Contains(listenAddr, ":") {
		listenAddr = ":" + listenAddr
	}
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", listenAddr), zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(srv, !cfg.IsProduction()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("fan-out poller stopped", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", listenAddr), zap.String("backend", cfg.StoreBackend))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("gRPC server exit", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server exit", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	if err := svc.Close(); err != nil {
		logger.Warn("failed to close storage", zap.Error(err))
	}
}
