package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "selenium_suite",
		Name:      "commands_total",
		Help:      "Remote WebDriver commands dispatched, by command and outcome.",
	}, []string{"command", "outcome"})
	metricCommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "selenium_suite",
		Name:      "command_duration_seconds",
		Help:      "Round-trip latency of remote WebDriver commands.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"command"})
	metricSessionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "selenium_suite",
		Name:      "sessions_open",
		Help:      "Remote browser sessions currently held open.",
	})
	metricTests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "selenium_suite",
		Name:      "tests_total",
		Help:      "Executed test invocations by final status.",
	}, []string{"status"})
)

// RecordCommand tracks one dispatched command. outcome is "ok" or "error".
func RecordCommand(command, outcome string, elapsed time.Duration) {
	metricCommands.WithLabelValues(command, outcome).Inc()
	metricCommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

func SessionOpened() { metricSessionsOpen.Inc() }

func SessionClosed() { metricSessionsOpen.Dec() }

// RecordTest counts a finished test by status.
func RecordTest(status string) {
	metricTests.WithLabelValues(status).Inc()
}

// MetricsHandler exposes the default registry for scraping.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
