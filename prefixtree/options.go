package prefixtree

import "go.uber.org/zap"

type options struct {
	name   string
	logger *zap.Logger
}

// Option defines a user-supplied option to a Tree.
type Option func(o *options)

// WithName names a Tree, for logging.  Defaults to "sparse" or "dense".
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger a Tree reports structural events to.  Defaults to
// a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(defaultName string, fns ...Option) *options {
	ret := &options{
		name:   defaultName,
		logger: zap.NewNop(),
	}
	for _, fn := range fns {
		fn(ret)
	}
	return ret
}
