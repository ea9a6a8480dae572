// Command agoracore is the orchestration service entry point: it loads
// configuration, connects to Postgres and Redis, wires the repository,
// gateway, content filter, event bus and fact-check worker, and serves the
// live SSE stream until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"agoracore/internal/config"
	"agoracore/internal/contentfilter"
	"agoracore/internal/database"
	"agoracore/internal/eventbus"
	"agoracore/internal/factcheck"
	"agoracore/internal/gateway"
	"agoracore/internal/httpapi"
	"agoracore/internal/orchestrator"
	"agoracore/internal/sandbox"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := run(logger); err != nil {
		logger.WithError(err).Fatal("agoracore exited with error")
	}
}

func run(logger *logrus.Logger) error {
	cfg, err := config.Load(os.Getenv("AGORACORE_CONFIG_FILE"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.WithError(err).Warn("Postgres ping failed at startup, continuing")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	participants := database.NewParticipantRepository(pool, logger)
	runs := database.NewRunRepository(pool, logger)
	turns := database.NewTurnRepository(pool, logger)
	topics := database.NewTopicRepository(pool, logger)
	comments := database.NewCommentRepository(pool, logger)
	factchecks := database.NewFactcheckRepository(pool, logger)
	sandboxResults := database.NewSandboxRepository(pool, logger)

	for _, table := range []interface{ CreateTable(context.Context) error }{
		participants, runs, turns, topics, comments, factchecks, sandboxResults,
	} {
		if err := table.CreateTable(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	claudeClient := gateway.NewClaudeClient(os.Getenv("ANTHROPIC_API_KEY"), "2023-06-01")
	builtinGateway := gateway.NewBuiltin(claudeClient, cfg.ClaudeModel, cfg.FallbackModels, 0, logger)
	gatewayFactory := gateway.NewFactory(builtinGateway)

	referee := factcheck.NewReferee(claudeClient, cfg.ClaudeModel, redisClient, logger)
	bus := eventbus.New(logger)
	filter := contentfilter.New()

	worker := factcheck.NewWorker(factchecks, turns, comments, referee, bus, logger)
	if err := worker.Recover(ctx); err != nil {
		logger.WithError(err).Warn("Failed to recover pending factcheck requests")
	}
	worker.Start(ctx)
	defer worker.Stop()

	debateOrchestrator := &orchestrator.DebateOrchestrator{
		Runs:         runs,
		Turns:        turns,
		Participants: participants,
		Factchecks:   factchecks,
		Worker:       worker,
		Filter:       filter,
		Bus:          bus,
		Gateways:     gatewayFactory,
		MaxFactcheck: cfg.FactcheckMaxPerDebate,
		Log:          logger,
	}
	topicOrchestrator := &orchestrator.TopicOrchestrator{
		Topics:       topics,
		Comments:     comments,
		Participants: participants,
		Factchecks:   factchecks,
		Worker:       worker,
		Filter:       filter,
		Bus:          bus,
		Gateways:     gatewayFactory,
		MaxFactcheck: cfg.FactcheckMaxPerDebate,
		Log:          logger,
	}
	validator := sandbox.NewValidator(participants, runs, turns, sandboxResults, gatewayFactory, logger)

	streamHandler := httpapi.NewStreamHandler(bus, logger)
	adminHandler := &httpapi.AdminHandler{
		Participants: participants,
		Runs:         runs,
		Topics:       topics,
		Debates:      debateOrchestrator,
		Discussions:  topicOrchestrator,
		Sandbox:      validator,
		Log:          logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	streamHandler.Register(router)
	adminHandler.Register(router)
	router.GET("/runs/:id/viewers", streamHandler.ViewerCount)
	router.GET("/metrics/eventbus", streamHandler.Metrics)
	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("Starting agoracore server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-quit:
	}

	logger.Info("Shutting down agoracore")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}
