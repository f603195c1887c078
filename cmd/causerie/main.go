package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"causerie/pkg/api"
	"causerie/pkg/banner"
	"causerie/pkg/blob"
	"causerie/pkg/config"
	"causerie/pkg/ledger"
	"causerie/pkg/logger"
	"causerie/pkg/retention"
	"causerie/pkg/security"
	"causerie/pkg/store"
	"causerie/pkg/telemetry"
)

// build metadata, set via ldflags during release
var (
	version = "dev"
	commit  = "none"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, backendKeys, signingKeys, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.InitWithLevel(cfg.Logging.Level)

	// Flags win over config/env when explicitly set.
	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrVal
	}
	dbPath := cfg.Storage.DBPath
	if setFlags["db"] || dbPath == "" {
		dbPath = dbVal
	}
	blobPath := cfg.Storage.BlobPath
	if blobPath == "" {
		blobPath = dbPath + "-blobs"
	}

	if err := store.Open(dbPath); err != nil {
		log.Fatalf("failed to open pebble at %s: %v", dbPath, err)
	}
	if err := blob.Init(blobPath); err != nil {
		log.Fatalf("failed to init blob store at %s: %v", blobPath, err)
	}

	ledger.Configure(cfg.ReportThreshold(), cfg.MaxFileSize(), cfg.AllowedExts())
	telemetry.SubscribeEvents()

	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, SigningKeys: map[string]struct{}{}}
	for k := range backendKeys {
		runtimeCfg.BackendKeys[k] = struct{}{}
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	for k := range signingKeys {
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	secCfg := security.SecConfig{
		AllowedOrigins: cfg.Security.CORS.AllowedOrigins,
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
		IPWhitelist:    cfg.Security.IPWhitelist,
		BackendKeys:    map[string]struct{}{},
		FrontendKeys:   map[string]struct{}{},
	}
	for k := range backendKeys {
		secCfg.BackendKeys[k] = struct{}{}
	}
	for _, k := range cfg.Security.APIKeys.Frontend {
		secCfg.FrontendKeys[k] = struct{}{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	retCancel, err := retention.Start(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to start retention: %v", err)
	}

	srcs := []string{}
	if len(setFlags) > 0 {
		srcs = append(srcs, "flags")
	}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if _, err := config.Load(cfgPath); err == nil {
		srcs = append(srcs, "config")
	}
	verStr := version
	if commit != "none" {
		verStr = verStr + " (" + commit + ")"
	}
	banner.Print(addr, dbPath, blobPath, strings.Join(srcs, ", "), verStr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(secCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal_received", "signal", s.String())
		retCancel()
		cancel()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			logger.Error("server_shutdown_error", "error", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("store_close_error", "error", err)
		}
	}()

	logger.Info("server_starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
	logger.Info("server_stopped")
}
