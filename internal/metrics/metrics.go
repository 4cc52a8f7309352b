// Package metrics exposes the bot's Prometheus instrumentation.
package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UsedTokens counts OpenAI token usage split by prompt/completion.
	UsedTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botka_openai_nlp_used_tokens_total",
		Help: "Total tokens consumed by NLP chat completions.",
	}, []string{"type"})

	// ServiceUp reflects the outcome of the last call to an external
	// service (1 = success, 0 = failure).
	ServiceUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "botka_service_up",
		Help: "Whether the last call to an external service succeeded.",
	}, []string{"service"})
)

// CountUsage records one completion's token usage.
func CountUsage(promptTokens, completionTokens int) {
	UsedTokens.WithLabelValues("prompt").Add(float64(promptTokens))
	UsedTokens.WithLabelValues("completion").Add(float64(completionTokens))
}

// UpdateService records whether a call to the named service succeeded.
func UpdateService(service string, ok bool) {
	v := 0.0
	if ok {
		v = 1.0
	}
	ServiceUp.WithLabelValues(service).Set(v)
}

// Serve runs the /metrics endpoint. It blocks.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("[metrics] listening on %s", addr)
	return srv.ListenAndServe()
}
