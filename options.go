package glim

import "log/slog"

// defaultTextureUnits is the number of texture units tracked when no
// option overrides it. 16 is the guaranteed minimum of every backend
// glim targets.
const defaultTextureUnits = 16

// contextOptions holds the resolved configuration for NewContext.
type contextOptions struct {
	device       Device
	backend      string
	logger       *slog.Logger
	textureUnits int
	batching     bool
}

// ContextOption configures a [Context].
type ContextOption func(*contextOptions)

// WithDevice supplies an already opened device. The context takes
// ownership and releases it on Close.
func WithDevice(dev Device) ContextOption {
	return func(o *contextOptions) { o.device = dev }
}

// WithBackend selects a registered backend by name; the context opens
// a device from its factory. Ignored when WithDevice is also given.
func WithBackend(name string) ContextOption {
	return func(o *contextOptions) { o.backend = name }
}

// WithLogger sets the package logger, equivalent to calling
// [SetLogger] before NewContext.
func WithLogger(l *slog.Logger) ContextOption {
	return func(o *contextOptions) { o.logger = l }
}

// WithTextureUnits sets how many texture units the state cache tracks.
// The default is 16.
func WithTextureUnits(n int) ContextOption {
	return func(o *contextOptions) { o.textureUnits = n }
}

// WithBatching enables reorder-safe draw batching on the context's
// draw list. Disabled by default; see [DrawList.SetBatching].
func WithBatching() ContextOption {
	return func(o *contextOptions) { o.batching = true }
}
