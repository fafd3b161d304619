package glim

// Context ties the pieces together: one device, the registry that owns
// its resources, the state cache that guards its binding state, and the
// draw list that feeds it commands.
//
// A Context has a single logical owner and is not safe for concurrent
// use. All methods must be called from the same goroutine that drives
// the device.
type Context struct {
	dev   Device
	reg   *ResourceRegistry
	cache *StateCache
	list  *DrawList
}

// NewContext creates a context from the given options. A device must
// come from either [WithDevice] or [WithBackend]; otherwise NewContext
// fails with [ErrNoDevice].
func NewContext(opts ...ContextOption) (*Context, error) {
	var o contextOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		SetLogger(o.logger)
	}

	dev := o.device
	if dev == nil {
		if o.backend == "" {
			return nil, ErrNoDevice
		}
		var err error
		if dev, err = NewDevice(o.backend); err != nil {
			return nil, err
		}
	}
	propagateLogger(dev, Logger())

	reg := NewRegistry(dev)
	cache := NewStateCache(dev, reg, o.textureUnits)
	list := NewDrawList(reg, cache)
	list.SetBatching(o.batching)

	Logger().Info("glim: context created", "textureUnits", cache.TextureUnits())
	return &Context{dev: dev, reg: reg, cache: cache, list: list}, nil
}

// Device returns the underlying device.
func (c *Context) Device() Device { return c.dev }

// Registry returns the resource registry.
func (c *Context) Registry() *ResourceRegistry { return c.reg }

// State returns the state cache.
func (c *Context) State() *StateCache { return c.cache }

// Commands returns the draw list.
func (c *Context) Commands() *DrawList { return c.list }

// NewShader compiles and links a program; see [NewShader].
func (c *Context) NewShader(vertexSrc, fragmentSrc string) (*Shader, error) {
	return NewShader(c.reg, vertexSrc, fragmentSrc)
}

// NewImage creates a texture; see [NewImage].
func (c *Context) NewImage(info TextureInfo) (*Image, error) {
	return NewImage(c.reg, info)
}

// NewCanvas creates an offscreen render target; see [NewCanvas].
func (c *Context) NewCanvas(width, height int, opts ...CanvasOption) (*Canvas, error) {
	return NewCanvas(c.reg, width, height, opts...)
}

// Clear records a clear command; see [DrawList.Clear].
func (c *Context) Clear(settings ClearSettings) error {
	return c.list.Clear(settings)
}

// Draw records a draw command; see [DrawList.Draw].
func (c *Context) Draw(shader *Shader, mesh Mesh, settings *PipelineSettings) error {
	return c.list.Draw(shader, mesh, settings)
}

// Flush replays the recorded commands; see [DrawList.Flush].
func (c *Context) Flush() error {
	return c.list.Flush()
}

// Invalidate forgets all cached binding state, forcing re-issue on the
// next use of each axis. Call after driving the device directly.
func (c *Context) Invalidate() {
	c.cache.Invalidate()
}

// Close discards recorded commands, destroys all live resources and
// releases the device. The context must not be used afterwards.
func (c *Context) Close() {
	c.list.Discard()
	c.reg.Close()
	c.dev.Release()
	Logger().Info("glim: context closed")
}
