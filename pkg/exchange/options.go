package exchange

import (
	"time"

	"kkexlink/pkg/core"
)

type Option func(*Options)

// Options carries per-call modifiers. Zero values mean "use the venue default".
type Options struct {
	Limit     int
	Since     int64
	Timeframe string
	// Params are merged into the venue request verbatim and win over computed fields.
	Params core.Params
}

func WithLimit(limit int) Option {
	return func(o *Options) {
		o.Limit = limit
	}
}

// WithSince sets the lower time bound in milliseconds since epoch.
func WithSince(ms int64) Option {
	return func(o *Options) {
		o.Since = ms
	}
}

func WithSinceTime(t time.Time) Option {
	return WithSince(t.UnixMilli())
}

// WithTimeframe selects the candle width, e.g. "1m", "1h", "1d".
func WithTimeframe(timeframe string) Option {
	return func(o *Options) {
		o.Timeframe = timeframe
	}
}

func WithParam(key string, value any) Option {
	return func(o *Options) {
		if o.Params == nil {
			o.Params = make(core.Params)
		}
		o.Params[key] = value
	}
}

func WithParams(params core.Params) Option {
	return func(o *Options) {
		for k, v := range params {
			WithParam(k, v)(o)
		}
	}
}

func ApplyOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
