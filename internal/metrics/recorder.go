// Package metrics exposes render observability through a small Recorder
// interface. NoopRecorder is the default; PrometheusRecorder is used when
// metrics are enabled in the configuration.
package metrics

import "time"

// Render outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeParseError = "parse_error"
)

// Recorder receives render events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveRenderDuration(d time.Duration)
	IncRenderOutcome(outcome string)
	IncLinkResolution(kind string)
	IncSkippedField(reason string)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) ObserveRenderDuration(time.Duration) {}
func (NoopRecorder) IncRenderOutcome(string)             {}
func (NoopRecorder) IncLinkResolution(string)            {}
func (NoopRecorder) IncSkippedField(string)              {}
