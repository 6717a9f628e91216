package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus collectors.
type PrometheusRecorder struct {
	renderDuration prom.Histogram
	renderOutcomes *prom.CounterVec
	links          *prom.CounterVec
	skipped        *prom.CounterVec
}

// NewPrometheusRecorder creates the collectors and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		renderDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "infobox",
			Name:      "render_duration_seconds",
			Help:      "Duration of single infobox renders",
			Buckets:   prom.ExponentialBuckets(0.0001, 4, 8),
		}),
		renderOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "infobox",
			Name:      "renders_total",
			Help:      "Infobox renders by outcome",
		}, []string{"outcome"}),
		links: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "infobox",
			Name:      "link_resolutions_total",
			Help:      "Resolved links by kind (internal, external, unresolved)",
		}, []string{"kind"}),
		skipped: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "infobox",
			Name:      "skipped_fields_total",
			Help:      "Fields left out of a rendered infobox, by reason",
		}, []string{"reason"}),
	}
	reg.MustRegister(pr.renderDuration, pr.renderOutcomes, pr.links, pr.skipped)
	return pr
}

func (p *PrometheusRecorder) ObserveRenderDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.renderDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRenderOutcome(outcome string) {
	if p == nil {
		return
	}
	p.renderOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncLinkResolution(kind string) {
	if p == nil {
		return
	}
	p.links.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncSkippedField(reason string) {
	if p == nil {
		return
	}
	p.skipped.WithLabelValues(reason).Inc()
}

// HTTPHandler serves the metrics registered on reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
