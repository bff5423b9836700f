package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"dex-engine/internal/config"
	"dex-engine/internal/engine"
	"dex-engine/internal/handlers"
	"dex-engine/internal/settlement"
	"dex-engine/pkg/utils"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

func main() {
	envPath := flag.String("env", "", "path to a .env file")
	flag.Parse()

	cfg := config.Load(*envPath)
	utils.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []engine.Option

	// Settlement forwarding is optional
	var forwarder *settlement.Forwarder
	if cfg.SettlementURL != "" {
		client := settlement.NewClient(cfg.SettlementURL, cfg.SettlementTimeout)
		forwarder = settlement.NewForwarder(client, cfg.SettlementQueueSize, cfg.SettlementTimeout)
		forwarder.Start(context.Background())
		opts = append(opts, engine.WithTradeHandler(forwarder.Enqueue))
	}

	matchingEngine := engine.NewMatchingEngine(opts...)
	for _, symbol := range cfg.Symbols {
		if err := matchingEngine.AddSymbol(symbol); err != nil {
			utils.Logger.WithError(err).Fatal("Invalid symbol in configuration")
		}
	}

	go matchingEngine.RunExpirySweeper(ctx, cfg.ExpirySweepInterval)

	// Define routes
	r := mux.NewRouter()
	handlers.NewHandler(matchingEngine, cfg.DepthLevels).SetupRoutes(r)
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		utils.Logger.WithFields(logrus.Fields{
			"event":   utils.EventServerStarted,
			"addr":    cfg.HTTPAddr,
			"symbols": cfg.Symbols,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		utils.LogError(err)
	}
	if forwarder != nil {
		forwarder.Stop()
	}
	utils.Logger.WithField("event", utils.EventServerStopped).Info("Server stopped")
}
