package internal

import (
	"io"

	"github.com/starford/infobox/internal/index"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	onChange  index.ChangeFunc
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the JSON log stream. Commands that write their
// result to stdout log to stderr instead.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		if w != nil {
			a.logOutput = w
		}
	}
}

// withChangeFunc forwards note writes made through the service.
func withChangeFunc(fn index.ChangeFunc) Option {
	return func(a *application) {
		a.onChange = fn
	}
}
