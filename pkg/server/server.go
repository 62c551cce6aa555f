package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/leadpop/funnelrelay/pkg/core"
	"github.com/leadpop/funnelrelay/pkg/dispatch"
	"github.com/leadpop/funnelrelay/pkg/providers"
)

// RunConfig loads config from a path and starts the server with signal handling.
// A missing config file falls back to environment variables.
func RunConfig(configPath string) error {
	logger := core.NewLogger("server")
	config, err := core.LoadConfigOptional(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return Run(ctx, config, logger)
}

// Run starts the server until the context is canceled.
func Run(ctx context.Context, config core.Config, logger *log.Logger) error {
	if logger == nil {
		logger = core.NewLogger("server")
	}
	publisher, err := core.NewOutcomePublisher(config.Telemetry)
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	if publisher != nil {
		defer publisher.Close()
		logger.Printf("telemetry enabled drivers=%v topic=%s", config.Telemetry.ActiveDrivers(), config.Telemetry.Topic)
	} else {
		logger.Printf("telemetry disabled (no telemetry.driver)")
	}

	sender := providers.NewHTTPSender(time.Duration(config.Providers.RequestTimeoutMS) * time.Millisecond)
	api := NewAPI(config, sender, publisher, logger)
	for name, enabled := range config.Providers.Integrations() {
		if enabled {
			logger.Printf("integration=%s enabled", name)
		} else {
			logger.Printf("integration=%s disabled (missing credentials)", name)
		}
	}

	handler := h2c.NewHandler(Handler(config, api, logger), &http2.Server{})
	addr := ":" + strconv.Itoa(config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(config.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(config.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(config.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(config.Server.ReadHeaderMS) * time.Millisecond,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	}
}

// NewAPI wires the dispatcher and CRM adapter for the HTTP routes.
func NewAPI(config core.Config, sender providers.Sender, publisher core.OutcomePublisher, logger *log.Logger) *API {
	registry := providers.DefaultRegistry(config.Providers)
	dispatchLogger := core.NewLoggerFrom(logger, "dispatch")
	opts := []dispatch.Option{
		dispatch.WithLogger(dispatchLogger),
		dispatch.WithListener(dispatch.LatencyListener(dispatchLogger)),
	}
	if publisher != nil {
		opts = append(opts, dispatch.WithPublisher(publisher))
	}
	return &API{
		Dispatcher:   dispatch.New(registry, sender, opts...),
		Crm:          providers.NewCrmContact(config.Providers.ActiveCrmContact()),
		Sender:       sender,
		Integrations: config.Providers.Integrations(),
		SetupSecret:  config.Server.SetupSecret,
		MaxBodyBytes: config.Server.MaxBodyBytes,
		DebugEvents:  config.Server.DebugEvents,
		Logger:       logger,
		StartedAt:    time.Now(),
	}
}

// Handler returns the routed API wrapped in middleware and CORS.
func Handler(config core.Config, api *API, logger *log.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/track", api.trackHandler())
	mux.Handle("/api/ghl/booking-webhook", api.bookingWebhookHandler())
	mux.Handle("/api/ghl/setup-fields", api.setupFieldsHandler())
	mux.Handle("/health", api.healthHandler())

	corsOptions := cors.Options{
		AllowedMethods:   []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           int(2 * time.Hour / time.Second),
	}
	if len(config.Server.AllowedOrigins) > 0 {
		corsOptions.AllowedOrigins = config.Server.AllowedOrigins
	} else {
		corsOptions.AllowOriginFunc = func(_ string) bool { return true }
	}
	routed := applyMiddlewares(mux, []Middleware{
		requestLogMiddleware(logger),
		recoveryMiddleware(logger),
	})
	return cors.New(corsOptions).Handler(routed)
}
