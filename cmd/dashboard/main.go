package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"audiofleet-dashboard/internal/audio"
	"audiofleet-dashboard/internal/collection"
	"audiofleet-dashboard/internal/config"
	"audiofleet-dashboard/internal/demo"
	"audiofleet-dashboard/internal/dispatch"
	"audiofleet-dashboard/internal/engine"
	"audiofleet-dashboard/internal/httpapi"
	"audiofleet-dashboard/internal/logger"
)

// source is the full transport surface a poll target must expose. The real
// collection client and the demo source both satisfy it.
type source interface {
	engine.Source
	dispatch.Commander
	audio.ResourceResolver
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dashboard failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Debug: cfg.LogDebug})
	if err != nil {
		return err
	}

	var src source
	if cfg.DemoMode {
		log.Info().Msg("COLLECTION_BASE_URL is not set; running in demonstration mode")
		src = demo.NewSource()
	} else {
		src = collection.NewClient(cfg.CollectionBaseURL, cfg.CollectionUsername, cfg.CollectionPassword, cfg.CollectionTimeout, log)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pollEngine := engine.New(src, cfg.PollInterval, nil, log)
	pollEngine.Start()
	// main owns the engine lifecycle; Stop is called exactly once on the
	// way out so no timer outlives the process teardown.
	defer pollEngine.Stop()

	dispatcher := dispatch.New(src, pollEngine, log)
	coordinator := audio.NewCoordinator(src, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	// Recovery is the boundary for programming errors in request
	// handling: a panicking handler answers 500 while the engine keeps
	// polling underneath.
	router.Use(gin.Recovery())
	httpapi.RegisterRoutes(router, httpapi.NewHandler(pollEngine, dispatcher, coordinator, cfg.PollInterval, log))

	server := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		defer close(shutdownDone)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	}()

	log.Info().
		Str("listen_address", cfg.HTTPListenAddr).
		Dur("poll_interval", cfg.PollInterval).
		Msg("fleet audio dashboard listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-shutdownDone
	return nil
}
