package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-engine/internal/chat"
	"chat-engine/internal/config"
	"chat-engine/internal/handlers"
	"chat-engine/internal/middleware"
	"chat-engine/internal/observability"
	"chat-engine/internal/rabbitmq"
	"chat-engine/internal/telemetry"
	"chat-engine/internal/ws"
)

const serviceName = "chat-engine"

func main() {
	cfg := config.Load()
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if reason := rabbitmq.PublisherNoopReason(publisher); reason != "" {
		log.Printf("event publishing degraded mode=%s reason=%s", rabbitmq.PublisherMode(publisher), reason)
	}
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, serviceName, cfg.Environment, cfg.InstanceID)

	shutdownTracing, err := observability.SetupTracing(context.Background(), cfg.OTLPEndpoint, serviceName, cfg.Environment, cfg.InstanceID)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}

	engine := chat.NewService(chat.Config{Instance: cfg.InstanceID}, audit)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go engine.RunTypingSweeper(sweepCtx)

	wsHandler := ws.NewHandler(engine)
	queryHandler := handlers.NewQueryHandler(engine)

	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(otelgin.Middleware(serviceName))

	router.GET("/healthz", queryHandler.Health)

	api := router.Group("/api")
	api.GET("/users", queryHandler.ListUsers)
	api.GET("/users/online", queryHandler.ListOnlineUsers)
	api.GET("/groups", queryHandler.ListGroups)
	api.GET("/groups/:group_id", queryHandler.GetGroup)
	api.GET("/groups/:group_id/members", queryHandler.GetGroupMembers)
	api.GET("/groups/:group_id/messages", queryHandler.GetGroupMessages)
	api.GET("/messages", queryHandler.GetPrivateMessages)

	router.GET("/ws", wsHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("chat engine listening instance=%s port=%s", cfg.InstanceID, cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("shutting down")

	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown error: %v", err)
	}
	if err := publisher.Close(); err != nil {
		log.Printf("publisher close error: %v", err)
	}
	log.Printf("shutdown complete")
}
