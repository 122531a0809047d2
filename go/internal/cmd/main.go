package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fanpool/betsync/go/clients/bets_api_client"
	"github.com/fanpool/betsync/go/internal/betsync/conn"
	"github.com/fanpool/betsync/go/internal/betsync/metrics"
	"github.com/fanpool/betsync/go/internal/betsync/mutation"
	"github.com/fanpool/betsync/go/internal/betsync/router"
	"github.com/fanpool/betsync/go/internal/betsync/session"
	"github.com/fanpool/betsync/go/internal/betsync/store"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	config, err := loadConfig(getEnv("BETSYNC_CONFIG", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	authToken := os.Getenv("BETSYNC_AUTH_TOKEN")
	if authToken == "" {
		log.Fatal().Msg("BETSYNC_AUTH_TOKEN environment variable is required")
	}
	streamID := os.Getenv("BETSYNC_STREAM_ID")
	if streamID == "" {
		log.Fatal().Msg("BETSYNC_STREAM_ID environment variable is required")
	}
	userID := os.Getenv("BETSYNC_USER_ID")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)
	metricsSrv := metrics.StartServer(config.Metrics.Port, nil)
	defer metricsSrv.Close()

	clock := clockwork.NewRealClock()

	connConfig := conn.Config{
		URL:          config.Server.SocketURL,
		WriteTimeout: conn.DefaultConfig(config.Server.SocketURL).WriteTimeout,
		Reconnect: conn.ReconnectPolicy{
			MaxAttempts: config.Reconnect.MaxAttempts,
			Delay:       config.reconnectDelay(),
			Jitter:      config.reconnectJitter(),
		},
	}
	manager := conn.NewManager(connConfig, conn.NewWebsocketDialer(authToken), clock, collector)
	manager.OnNotice(func(message string) {
		log.Warn().Str("notice", message).Msg("connection notice")
	})

	if err := manager.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer manager.Disconnect()

	rounds := store.NewRoundStore(streamID)
	bets := store.NewBetStore()
	coord := mutation.NewCoordinator(manager, rounds, bets, clock, mutation.Options{
		QuietWindow: config.quietWindow(),
		AckTimeout:  config.ackTimeout(),
	}, collector)
	coord.OnNotice(func(message string) {
		log.Warn().Str("notice", message).Msg("bet notice")
	})

	rt := router.NewRouter(streamID, rounds, bets, coord, clock, router.Options{
		FeeRate:              config.Betting.FeeRate,
		ResolveDisplayWindow: config.resolveDisplayWindow(),
	}, collector)
	rt.OnNotice(func(message string) {
		log.Info().Str("notice", message).Msg("stream notice")
	})

	api := bets_api_client.NewBetsApiClient(config.Server.APIBaseURL, authToken)
	orchestrator := session.NewOrchestrator(streamID, userID, manager, api, rounds, bets, coord, rt, collector)

	if err := orchestrator.Activate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to activate session")
	}
	defer orchestrator.Deactivate()

	log.Info().
		Str("stream_id", streamID).
		Str("metrics_port", config.Metrics.Port).
		Msg("betsync running")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case <-orchestrator.Ended():
		log.Info().Msg("stream ended")
	}
}
