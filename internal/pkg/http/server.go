package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"aws-sqs-queue-backend/internal/pkg/http/handler"
	"aws-sqs-queue-backend/internal/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// NewMux serves /healthz and the default prometheus registry on /metrics.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handler.Healthz)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// StartHTTPServer serves NewMux on addr until ctx is done.
func StartHTTPServer(ctx context.Context, addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down HTTP server...")
		ctxShutdown, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("HTTP server shutdown failed", zap.Error(err))
		} else {
			logger.Info("HTTP server shut down gracefully")
		}
	}()

	return srv
}
