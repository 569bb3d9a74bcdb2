package handlers

import (
	"fmt"
	"net/http"

	"media-preparser/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves the default registry. A collector that fails to
// gather is logged and the rest of the scrape is still returned.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorLog:          scrapeLogger{},
			ErrorHandling:     promhttp.ContinueOnError,
			EnableOpenMetrics: true,
		}))
}

type scrapeLogger struct{}

func (scrapeLogger) Println(v ...interface{}) {
	logging.Warn("Metrics scrape: %s", fmt.Sprint(v...))
}
