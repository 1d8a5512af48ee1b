package ngram

import "github.com/samcharles93/beamscore/internal/logger"

// Option configures a predictor in this package.
type Option func(*options)

type options struct {
	log logger.Logger
}

// WithLogger sets the logger for load-time and greedy-pass messages.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{log: logger.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
