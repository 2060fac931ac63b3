package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"autotrader/src/executors"
	"autotrader/src/handler"
	"autotrader/src/model"
	"autotrader/src/repository"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"
)

// Supervisor is the part of the trading supervisor the server reads.
type Supervisor interface {
	Statuses(userID string) []executors.Status
}

// TradeEvents is the read side of the trade event log.
type TradeEvents interface {
	List(ctx context.Context, filter repository.TradeEventFilter) ([]model.TradeEvent, error)
}

// NewRouter exposes health, metrics and read-only trading state. events may
// be nil when no database is configured.
func NewRouter(sup Supervisor, events TradeEvents) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/loops", func(r chi.Router) {
		r.Get("/", handler.LoopsHandler(sup))
		r.Get("/{userID}", handler.LoopsHandler(sup))
	})
	if events != nil {
		r.Get("/trades", handler.TradeEventsHandler(events))
		r.Get("/performance", handler.PerformanceHandler(events))
	}
	return r
}

// Run serves h on port until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, port string, h http.Handler, shutdownTimeout time.Duration) error {
	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
