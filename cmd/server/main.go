package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/connectapp/connect-backend/internal/auth"
	"github.com/connectapp/connect-backend/internal/config"
	"github.com/connectapp/connect-backend/internal/firebase"
	"github.com/connectapp/connect-backend/internal/logger"
	"github.com/connectapp/connect-backend/internal/notify"
	"github.com/connectapp/connect-backend/internal/payments"
	"github.com/connectapp/connect-backend/internal/reminder"
	"github.com/connectapp/connect-backend/internal/store"
	"github.com/connectapp/connect-backend/internal/triggers"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

func main() {
	config.LoadConfig()

	log := logger.New(logger.FromConfig(config.AppConfig.LogLevel, config.AppConfig.LogFormat))

	gin.SetMode(config.AppConfig.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Firebase is initialized exactly once; every handler reads from these
	// clients and none re-initializes them.
	clients, err := firebase.NewClients(ctx, config.AppConfig.FirebaseProjectID, config.AppConfig.FirebaseCredJSON)
	if err != nil {
		log.Error("failed to initialize Firebase", slog.Any("error", err))
		os.Exit(1)
	}
	defer clients.Close()

	db := store.New(clients.Firestore)

	notifCfg := config.AppConfig.Notifications
	resolver := notify.NewTokenResolver(db, log)
	dispatcher := notify.NewDispatcher(resolver, clients.Messaging, log, config.AppConfig.PushNotificationsEnabled)

	triggerService := triggers.NewService(db, db, dispatcher, triggers.Config{
		ChatBodyMaxChars: notifCfg.ChatBodyMaxChars,
		Sound:            notifCfg.Sound,
		CallCategory:     notifCfg.CallCategory,
	}, log)
	triggerHandler := triggers.NewHandler(triggerService, log)

	paymentService := payments.NewService(db, db,
		config.AppConfig.StripeSecretKey, config.AppConfig.StripeWebhookSecret, log)
	paymentHandler := payments.NewHandler(paymentService, log)

	validator := auth.NewFirebaseTokenValidator(clients.Auth)
	firebaseAuth := auth.NewFirebaseAuthMiddleware(validator)

	// The reminder scan window equals the scan interval so that every
	// upcoming consultation is caught by at least one scan.
	lookahead := time.Duration(notifCfg.ReminderLookaheadMinutes) * time.Minute
	scan := reminder.NewScan(db, dispatcher, lookahead, notifCfg.Sound, log)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every "+lookahead.String(), func() {
		runCtx := logger.WithOperation(context.Background(), "reminder-scan")
		if err := scan.Run(runCtx); err != nil {
			log.LogError(runCtx, err, "reminder scan failed")
		}
	}); err != nil {
		log.Error("failed to schedule reminder scan", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(corsMiddleware(config.AppConfig.CORSAllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Record-creation trigger entry points.
	trig := router.Group("/triggers")
	{
		trig.POST("/call-invites", triggerHandler.CallInviteCreated)
		trig.POST("/chat-messages", triggerHandler.ChatMessageCreated)
	}

	// Payment endpoints. The webhook stays public; Stripe cannot present a
	// bearer token and is authenticated by signature instead.
	router.POST("/payments/webhook", paymentHandler.Webhook)

	pay := router.Group("/payments")
	pay.Use(firebaseAuth.RequireAuth())
	{
		pay.POST("/customer", paymentHandler.CreateCustomer)
		pay.POST("/setup-intent", paymentHandler.CreateSetupIntent)
		pay.POST("/charge", paymentHandler.Charge)
		pay.POST("/express-account-link", paymentHandler.CreateExpressAccountLink)
		pay.POST("/checkout-session", paymentHandler.CreateCheckoutSession)
	}

	srv := &http.Server{
		Addr:    ":" + config.AppConfig.Port,
		Handler: router,
	}

	go func() {
		log.Info("server starting", slog.String("port", config.AppConfig.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(config.AppConfig.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	// Let in-flight cron runs finish before the process exits.
	<-scheduler.Stop().Done()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", slog.Any("error", err))
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func corsMiddleware(allowedOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigins)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
