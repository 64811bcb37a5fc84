// Package obs holds the Prometheus collectors for token refreshes and API
// dispatch. Collectors live on a dedicated registry so a short-lived CLI
// process exposes only its own series.
package obs

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/gphotos-cli/internal/logger"
)

// Registry is the registry every collector in this package is registered on.
var Registry = prometheus.NewRegistry()

var (
	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gphotos",
			Name:      "api_attempts_total",
			Help:      "HTTP attempts against the Photos APIs by outcome.",
		},
		[]string{"service", "outcome"},
	)

	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gphotos",
			Name:      "api_dispatch_duration_seconds",
			Help:      "Wall time of a dispatch including retries.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "result"},
	)

	refreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gphotos",
			Name:      "token_refreshes_total",
			Help:      "Access token refreshes against the token endpoint by outcome.",
		},
		[]string{"outcome"},
	)

	pagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gphotos",
			Name:      "api_pages_total",
			Help:      "Pages yielded by paginated listings.",
		},
		[]string{"service"},
	)
)

func init() {
	Registry.MustRegister(attemptsTotal, dispatchDuration, refreshesTotal, pagesTotal)
}

// ObserveAttempt counts one HTTP attempt.
func ObserveAttempt(service, outcome string) {
	attemptsTotal.WithLabelValues(service, outcome).Inc()
}

// ObserveDispatch records how long a dispatch took. result is "ok" or an error kind.
func ObserveDispatch(service, result string, d time.Duration) {
	dispatchDuration.WithLabelValues(service, result).Observe(d.Seconds())
}

// ObserveRefresh counts one token refresh.
func ObserveRefresh(outcome string) {
	refreshesTotal.WithLabelValues(outcome).Inc()
}

// ObservePage counts one yielded page.
func ObservePage(service string) {
	pagesTotal.WithLabelValues(service).Inc()
}

// Handler returns the Prometheus handler for Registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
// It returns the bound address once listening, so ":0" can be used.
func Serve(ctx context.Context, addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Debug("metrics listening on %s", ln.Addr())
	return ln.Addr().String(), nil
}
