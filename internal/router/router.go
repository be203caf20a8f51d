package router

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"nimbus-benchmark-exporter/internal/endpoints"
	"nimbus-benchmark-exporter/internal/util"
)

const shutdownTimeout = 25 * time.Second

func NewRouter(gatherer prometheus.Gatherer, webSlogger *util.MetricsLogger) *mux.Router {
	r := mux.NewRouter()

	addRoutes(r, gatherer, webSlogger)

	r.Use(recoverMiddleware(webSlogger))
	r.Use(loggingMiddleware(webSlogger))

	return r
}

func addRoutes(r *mux.Router, gatherer prometheus.Gatherer, webSlogger *util.MetricsLogger) {

	metricsHandler := &endpoints.Metrics{}
	metricsHandler.Init(gatherer, webSlogger)

	healthHandler := &endpoints.Health{}

	r.HandleFunc("/metrics", metricsHandler.GetMetricsHandler).Methods(http.MethodGet)
	r.HandleFunc("/health", healthHandler.GetHealthHandler).Methods(http.MethodGet)

	// Unknown paths and wrong methods both read as "no such route".
	r.NotFoundHandler = http.HandlerFunc(endpoints.NotFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(endpoints.NotFoundHandler)
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then drains
// in-flight scrapes.
func Run(ctx context.Context, addr string, gatherer prometheus.Gatherer, webSlogger *util.MetricsLogger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", addr)
	}
	return Serve(ctx, ln, gatherer, webSlogger)
}

// Serve is Run on an existing listener.
func Serve(ctx context.Context, ln net.Listener, gatherer prometheus.Gatherer, webSlogger *util.MetricsLogger) error {
	server := NewServer(ln.Addr().String(), NewRouter(gatherer, webSlogger))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		webSlogger.LogEvent(util.LOG_LEVEL_INFO, "Listening on", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serving http")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		webSlogger.LogEvent(util.LOG_LEVEL_INFO, "Shutting down server...")

		if err := gracefulShutdown(server, shutdownTimeout); err != nil {
			webSlogger.LogEvent(util.LOG_LEVEL_WARN, "Server stopped with error:", err)
			return err
		}
		webSlogger.LogEvent(util.LOG_LEVEL_INFO, "Server stopped gracefully.")
		return nil
	})

	return g.Wait()
}

func gracefulShutdown(server *http.Server, maximumTime time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), maximumTime)
	defer cancel()

	return server.Shutdown(ctx)
}

func loggingMiddleware(logger *util.MetricsLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.LogEvent(util.LOG_LEVEL_DEBUG, fmt.Sprintf("Request: %s %s (%s)", r.Method, r.RequestURI, time.Since(start)))
		})
	}
}

// recoverMiddleware turns a handler panic into a 500 so the listener keeps
// serving.
func recoverMiddleware(logger *util.MetricsLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.LogEvent(util.LOG_LEVEL_ERROR, fmt.Sprintf("Panic serving %s: %v", r.RequestURI, rec))
					endpoints.APIResponse{}.WriteErrorResponse(w, errors.Wrapf(endpoints.ErrHandlerPanicked, "%v", rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
