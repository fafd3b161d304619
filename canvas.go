package glim

import "fmt"

// Canvas is an offscreen render target whose color attachment is a
// texture. It implements [Texture], so after rendering into it the
// result binds directly as a shader sampler input; there is no copy
// and no special sampling path.
type Canvas struct {
	reg      *ResourceRegistry
	fb       ResourceKey
	color    ResourceKey
	depth    ResourceKey // zero when no depth attachment
	info     TextureInfo
	hasDepth bool
}

// CanvasOption configures canvas creation.
type CanvasOption func(*canvasOptions)

type canvasOptions struct {
	format PixelFormat
	depth  bool
}

// WithCanvasFormat selects the color attachment's pixel format.
// The default is [PixelRGBA8].
func WithCanvasFormat(f PixelFormat) CanvasOption {
	return func(o *canvasOptions) { o.format = f }
}

// WithDepth adds a combined depth/stencil attachment, enabling depth
// and stencil tests when rendering into the canvas.
func WithDepth() CanvasOption {
	return func(o *canvasOptions) { o.depth = true }
}

// NewCanvas creates a width x height render target.
//
// The framebuffer is validated with the backend's completeness check
// before the canvas is returned; on failure everything just created is
// destroyed and the error wraps [ErrIncompleteFramebuffer].
func NewCanvas(reg *ResourceRegistry, width, height int, opts ...CanvasOption) (*Canvas, error) {
	o := canvasOptions{format: PixelRGBA8}
	for _, opt := range opts {
		opt(&o)
	}

	info := DefaultTextureInfo(width, height)
	info.Format = o.format
	color, err := reg.CreateTexture(info)
	if err != nil {
		return nil, err
	}

	fb, err := reg.CreateFramebuffer()
	if err != nil {
		reg.DestroyTexture(color)
		return nil, err
	}

	c := &Canvas{reg: reg, fb: fb, color: color, info: info}
	fail := func(err error) (*Canvas, error) {
		c.destroy()
		return nil, err
	}

	if err := reg.AttachTexture(fb, AttachColor0, color); err != nil {
		return fail(err)
	}

	if o.depth {
		dinfo := TextureInfo{
			Width:     width,
			Height:    height,
			Format:    PixelDepth24Stencil8,
			MinFilter: FilterNearest,
			MagFilter: FilterNearest,
			WrapU:     WrapClampToEdge,
			WrapV:     WrapClampToEdge,
		}
		depth, err := reg.CreateTexture(dinfo)
		if err != nil {
			return fail(err)
		}
		c.depth = depth
		c.hasDepth = true
		if err := reg.AttachTexture(fb, AttachDepthStencil, depth); err != nil {
			return fail(err)
		}
	}

	if err := reg.ValidateFramebuffer(fb); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrIncompleteFramebuffer, err))
	}
	return c, nil
}

// Key returns the framebuffer key, for use as a render target in
// [PipelineSettings.Target] and [ClearSettings.Target].
func (c *Canvas) Key() ResourceKey { return c.fb }

// TextureKey implements [Texture]; it returns the color attachment.
func (c *Canvas) TextureKey() ResourceKey { return c.color }

// TextureInfo implements [Texture].
func (c *Canvas) TextureInfo() TextureInfo { return c.info }

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int { return c.info.Width }

// Height returns the canvas height in pixels.
func (c *Canvas) Height() int { return c.info.Height }

// HasDepth reports whether the canvas carries a depth attachment.
func (c *Canvas) HasDepth() bool { return c.hasDepth }

// Viewport returns the full-canvas viewport rectangle.
func (c *Canvas) Viewport() Rect {
	return Rect{X: 0, Y: 0, W: c.info.Width, H: c.info.Height}
}

// Release destroys the framebuffer and its attachments.
func (c *Canvas) Release() error {
	return c.destroy()
}

func (c *Canvas) destroy() error {
	var first error
	keep := func(err error) {
		if first == nil && err != nil {
			first = err
		}
	}
	if !c.fb.IsZero() {
		keep(c.reg.DestroyFramebuffer(c.fb))
		c.fb = ResourceKey{}
	}
	if !c.depth.IsZero() {
		keep(c.reg.DestroyTexture(c.depth))
		c.depth = ResourceKey{}
	}
	if !c.color.IsZero() {
		keep(c.reg.DestroyTexture(c.color))
		c.color = ResourceKey{}
	}
	return first
}
