// Package length contains predictors that score the length of the target
// sentence or count tokens in it: a negative binomial length model, a
// Poisson model of the number of UNKs, word count penalties and externally
// supplied length distributions.
package length

import "github.com/samcharles93/beamscore/internal/logger"

// EpsP keeps the negative binomial success probability away from 0 and 1.
const EpsP = 1e-5

// EpsR is the smallest negative binomial shape parameter.
const EpsR = 0.1

// Option configures a predictor in this package.
type Option func(*options)

type options struct {
	log logger.Logger
}

// WithLogger sets the logger used for load-time messages.
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
