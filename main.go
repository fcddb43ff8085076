package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Amund211/coursesync/internal/adapters/credentials"
	"github.com/Amund211/coursesync/internal/adapters/platformapi"
	"github.com/Amund211/coursesync/internal/app"
	"github.com/Amund211/coursesync/internal/config"
	"github.com/Amund211/coursesync/internal/logging"
	"github.com/Amund211/coursesync/internal/ports"
	"github.com/Amund211/coursesync/internal/ratelimiting"
	"github.com/Amund211/coursesync/internal/reporting"
	"github.com/Amund211/coursesync/internal/resources"
	"github.com/Amund211/coursesync/internal/telemetry"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	_ "golang.org/x/crypto/x509roots/fallback"
)

const serviceName = "coursesync"

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(logging.NewTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil))).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	if !config.IsDevelopment() {
		shutdownOTel, err := telemetry.SetupOTelSDK(ctx, serviceName)
		if err != nil {
			fail("Failed to initialize OpenTelemetry", "error", err.Error())
		}
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	httpClient, baseURL, err := platformapi.NewHttpClientOrMock(config, time.Now)
	if err != nil {
		fail("Failed to initialize platform HTTP client", "error", err.Error())
	}

	holder := credentials.NewHolder(time.Now)
	platformAPI, err := platformapi.NewClient(
		baseURL,
		httpClient,
		holder,
		ratelimiting.NewRealtimeWindowLimiter(120, time.Minute),
		time.Now,
	)
	if err != nil {
		fail("Failed to initialize platform API client", "error", err.Error())
	}
	logger.Info("Initialized platform API client", "baseURL", baseURL)

	runtimeCtx := logging.AddToContext(ctx, logger.With("component", "runtime"))
	runtimeCtx = sentry.SetHubOnContext(runtimeCtx, sentry.CurrentHub().Clone())
	rt, err := app.NewRuntime(runtimeCtx, platformAPI, holder, resources.Default(), config.FreshnessTTL())
	if err != nil {
		fail("Failed to initialize runtime", "error", err.Error())
	}
	defer rt.Close()

	allowedOrigins, err := ports.NewDomainSuffixes(config.AllowedOrigins()...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	mux := http.NewServeMux()

	mux.HandleFunc(
		"OPTIONS /v1/state/{kind}",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/state/{kind}",
		ports.MakeGetStateHandler(
			rt,
			allowedOrigins,
			logger.With("port", "state"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/reload/{kind}",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"POST /v1/reload/{kind}",
		ports.MakeReloadHandler(
			rt,
			allowedOrigins,
			logger.With("port", "reload"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/entities/{kind}",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"DELETE /v1/entities/{kind}",
		ports.MakeDeleteHandler(
			rt,
			allowedOrigins,
			logger.With("port", "delete"),
			sentryMiddleware,
		),
	)
	mutateHandler := ports.MakeMutateHandler(
		rt,
		allowedOrigins,
		logger.With("port", "mutate"),
		sentryMiddleware,
	)
	mux.HandleFunc("POST /v1/entities/{kind}", mutateHandler)
	mux.HandleFunc("PUT /v1/entities/{kind}", mutateHandler)
	mux.HandleFunc("PATCH /v1/entities/{kind}", mutateHandler)

	mux.HandleFunc(
		"OPTIONS /v1/login",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"POST /v1/login",
		ports.MakeLoginHandler(
			rt,
			allowedOrigins,
			logger.With("port", "login"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/logout",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"POST /v1/logout",
		ports.MakeLogoutHandler(
			rt,
			allowedOrigins,
			logger.With("port", "logout"),
			sentryMiddleware,
		),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Port()),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down server", "error", err.Error())
		}
	}()

	logger.Info("Init complete")
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
