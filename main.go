package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vibin_notifier/config"
	"vibin_notifier/routes"
	"vibin_notifier/services"
	"vibin_notifier/socket"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize the like store and profile names
	logrus.Infof("Initializing %s like store...", cfg.StoreBackend)
	store, names, err := buildStore(ctx, cfg)
	if err != nil {
		logrus.Fatalf("❌ Failed to initialize like store: %v", err)
	}

	newDedup, closeDedup, err := buildDedup(ctx, cfg)
	if err != nil {
		logrus.Fatalf("❌ Failed to initialize dedup cache: %v", err)
	}
	defer closeDedup()

	retry := services.DefaultRetryPolicy()
	if cfg.ReciprocalRetryMax > 0 {
		retry.MaxRetries = uint64(cfg.ReciprocalRetryMax)
	}

	// Initialize Services
	hub := socket.NewSocketServer()
	tokens := services.NewTokenRegistry()
	dispatcher := &services.PushDispatcher{Tokens: tokens, Retry: services.DefaultRetryPolicy()}
	sessions := services.NewSessionManager(services.ManagerDeps{
		Store:     store,
		Push:      dispatcher,
		Tokens:    tokens,
		Names:     names,
		Presenter: hub,
		NewDedup:  newDedup,
		QueueDSN:  cfg.QueueDSN,
	}, services.SessionConfig{
		FallbackDelay: cfg.FallbackDelay,
		FlushInterval: cfg.FlushInterval,
		Retry:         retry,
	})
	defer sessions.CloseAll()

	transport, err := buildPushTransport(ctx, cfg, sessions)
	if err != nil {
		logrus.Fatalf("❌ Failed to initialize push transport: %v", err)
	}
	dispatcher.Transport = transport

	hub.OnLifecycle(sessions.Transition)
	hub.OnMessage(func(ctx context.Context, msg socket.ChatMessage) error {
		_, err := sessions.NotifyMessage(ctx, msg.SenderID, msg.RecipientID, msg.EventID, msg.Text)
		return err
	})
	hub.Serve()
	defer hub.Close()

	likes := &services.LikeService{Store: store, Retry: retry}

	// Initialize the router
	r := mux.NewRouter()
	routes.RegisterRoutes(r)
	routes.RegisterLikeRoutes(r, sessions, likes)
	routes.RegisterSessionRoutes(r, sessions)
	routes.RegisterMessageRoutes(r, sessions)
	routes.RegisterSocketRoutes(r, hub.Handler())

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.Infof("🚀 Starting server on port %s...", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("❌ Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("⚠️ HTTP server did not shut down cleanly")
	}
}
