package glim

import (
	"fmt"
	"math/bits"
)

// StateCache mirrors the device's binding state on the CPU and drops
// calls that would not change anything.
//
// Every axis is compared by value, not by handle identity: two distinct
// BlendState structs with equal fields are the same state, and setting
// the second one issues no device call. Each mutator reports whether it
// actually reached the device, which is what the elision tests assert
// against.
//
// Lookups resolve keys through the registry first, so a stale or
// unknown key fails before any device call is made.
//
// After external code has talked to the device directly, call
// [StateCache.Invalidate]; every axis is then treated as unknown and
// the next call on each re-issues unconditionally.
type StateCache struct {
	dev Device
	reg *ResourceRegistry

	shaderKnown bool
	shader      NativeID
	shaderKey   ResourceKey

	targetKnown bool
	target      NativeID

	viewportKnown bool
	viewport      Rect

	scissorKnown bool
	scissorOn    bool
	scissor      Rect

	blendKnown bool
	blendOn    bool
	blend      BlendState

	depthKnown bool
	depthOn    bool
	depth      DepthState

	stencilKnown bool
	stencilOn    bool
	stencil      StencilState

	vertexBufKnown bool
	vertexBuf      NativeID
	indexBufKnown  bool
	indexBuf       NativeID

	texKnown []bool
	texUnits []NativeID

	attrKnown bool
	attrMask  uint32
}

// NewStateCache creates a cache over dev with the given number of
// texture units. All axes start unknown, so the first call on each
// axis always reaches the device.
func NewStateCache(dev Device, reg *ResourceRegistry, textureUnits int) *StateCache {
	if textureUnits <= 0 {
		textureUnits = defaultTextureUnits
	}
	return &StateCache{
		dev:      dev,
		reg:      reg,
		texKnown: make([]bool, textureUnits),
		texUnits: make([]NativeID, textureUnits),
	}
}

// TextureUnits returns the number of texture units tracked.
func (c *StateCache) TextureUnits() int { return len(c.texUnits) }

// Invalidate forgets all mirrored state. The device is not touched;
// every subsequent call re-issues its state unconditionally once.
func (c *StateCache) Invalidate() {
	c.shaderKnown = false
	c.targetKnown = false
	c.viewportKnown = false
	c.scissorKnown = false
	c.blendKnown = false
	c.depthKnown = false
	c.stencilKnown = false
	c.vertexBufKnown = false
	c.indexBufKnown = false
	for i := range c.texKnown {
		c.texKnown[i] = false
	}
	c.attrKnown = false
	Logger().Debug("glim: state cache invalidated")
}

// BoundShader returns the key of the currently bound shader, or the
// zero key when none is bound or the binding is unknown.
func (c *StateCache) BoundShader() ResourceKey {
	if !c.shaderKnown {
		return ResourceKey{}
	}
	return c.shaderKey
}

// BindShader binds the program behind key, eliding the call when it is
// already bound. The zero key unbinds. Reports whether the device was
// called.
func (c *StateCache) BindShader(key ResourceKey) (bool, error) {
	var native NativeID
	if !key.IsZero() {
		var err error
		if native, err = c.reg.shaderNative(key); err != nil {
			return false, err
		}
	}
	if c.shaderKnown && c.shader == native {
		c.shaderKey = key
		return false, nil
	}
	c.dev.UseProgram(native)
	c.shaderKnown = true
	c.shader = native
	c.shaderKey = key
	return true, nil
}

// WithShader binds the program behind key, runs fn, and restores the
// previously bound program. The restore happens unconditionally, also
// when fn returns an error; the cache never ends up holding a binding
// the caller did not establish.
func (c *StateCache) WithShader(key ResourceKey, fn func() error) error {
	prevKnown, prevKey := c.shaderKnown, c.shaderKey
	if _, err := c.BindShader(key); err != nil {
		return err
	}
	defer func() {
		if prevKnown {
			// Restore errors only occur for keys destroyed inside fn;
			// in that case the axis becomes unknown.
			if _, err := c.BindShader(prevKey); err != nil {
				c.shaderKnown = false
			}
			return
		}
		c.shaderKnown = false
	}()
	return fn()
}

// BindTarget binds the framebuffer behind key as the render target.
// The zero key ([DefaultFramebuffer]) binds the backbuffer. Reports
// whether the device was called.
func (c *StateCache) BindTarget(key ResourceKey) (bool, error) {
	native, err := c.reg.framebufferNative(key)
	if err != nil {
		return false, err
	}
	if c.targetKnown && c.target == native {
		return false, nil
	}
	c.dev.BindFramebuffer(native)
	c.targetKnown = true
	c.target = native
	return true, nil
}

// BindBuffer binds the buffer behind key to its creation target,
// eliding redundant binds. Reports whether the device was called.
func (c *StateCache) BindBuffer(key ResourceKey) (bool, error) {
	res, err := c.reg.buffers.get(key)
	if err != nil {
		return false, err
	}
	return c.bindBufferNative(res.target, res.native), nil
}

// bindBufferNative is the resolved-id path used during flush.
func (c *StateCache) bindBufferNative(target BufferTarget, native NativeID) bool {
	known, bound := &c.vertexBufKnown, &c.vertexBuf
	if target == BufferIndex {
		known, bound = &c.indexBufKnown, &c.indexBuf
	}
	if *known && *bound == native {
		return false
	}
	c.dev.BindBuffer(target, native)
	*known = true
	*bound = native
	return true
}

// BindTexture binds the texture behind key to a texture unit, eliding
// redundant binds. The zero key unbinds the unit. Reports whether the
// device was called.
func (c *StateCache) BindTexture(unit int, key ResourceKey) (bool, error) {
	if unit < 0 || unit >= len(c.texUnits) {
		return false, errTextureUnit(unit, len(c.texUnits))
	}
	var native NativeID
	if !key.IsZero() {
		var err error
		if native, err = c.reg.textureNative(key); err != nil {
			return false, err
		}
	}
	if c.texKnown[unit] && c.texUnits[unit] == native {
		return false, nil
	}
	c.dev.BindTexture(unit, native)
	c.texKnown[unit] = true
	c.texUnits[unit] = native
	return true, nil
}

// SetViewport sets the viewport, eliding the call when the rectangle is
// unchanged. Reports whether the device was called.
func (c *StateCache) SetViewport(r Rect) bool {
	if c.viewportKnown && c.viewport == r {
		return false
	}
	c.dev.SetViewport(r)
	c.viewportKnown = true
	c.viewport = r
	return true
}

// SetScissor sets or disables (nil) the scissor rectangle, eliding
// redundant calls. Reports whether the device was called.
func (c *StateCache) SetScissor(r *Rect) bool {
	if c.scissorKnown {
		if r == nil && !c.scissorOn {
			return false
		}
		if r != nil && c.scissorOn && c.scissor == *r {
			return false
		}
	}
	c.dev.SetScissor(r)
	c.scissorKnown = true
	c.scissorOn = r != nil
	if r != nil {
		c.scissor = *r
	}
	return true
}

// SetBlend sets or disables (nil) blending. Equality is field-wise on
// the BlendState value, so passing a different pointer to an equal
// state issues nothing. Reports whether the device was called.
func (c *StateCache) SetBlend(b *BlendState) bool {
	if c.blendKnown {
		if b == nil && !c.blendOn {
			return false
		}
		if b != nil && c.blendOn && c.blend == *b {
			return false
		}
	}
	c.dev.SetBlend(b)
	c.blendKnown = true
	c.blendOn = b != nil
	if b != nil {
		c.blend = *b
	}
	return true
}

// SetDepth sets or disables (nil) the depth test, eliding redundant
// calls by value. Reports whether the device was called.
func (c *StateCache) SetDepth(d *DepthState) bool {
	if c.depthKnown {
		if d == nil && !c.depthOn {
			return false
		}
		if d != nil && c.depthOn && c.depth == *d {
			return false
		}
	}
	c.dev.SetDepth(d)
	c.depthKnown = true
	c.depthOn = d != nil
	if d != nil {
		c.depth = *d
	}
	return true
}

// SetStencil sets or disables (nil) the stencil test, eliding redundant
// calls by value. Reports whether the device was called.
func (c *StateCache) SetStencil(s *StencilState) bool {
	if c.stencilKnown {
		if s == nil && !c.stencilOn {
			return false
		}
		if s != nil && c.stencilOn && c.stencil == *s {
			return false
		}
	}
	c.dev.SetStencil(s)
	c.stencilKnown = true
	c.stencilOn = s != nil
	if s != nil {
		c.stencil = *s
	}
	return true
}

// SetVertexAttributes reconciles the set of enabled attribute locations
// with mask and points every binding at its buffer memory. Locations
// are enabled and disabled by diffing against the previous mask;
// pointers are always re-issued because they depend on the bound
// buffer, which the bindings themselves carry.
func (c *StateCache) SetVertexAttributes(mask uint32, bindings []AttributeBinding) {
	prev := c.attrMask
	if !c.attrKnown {
		// Unknown previous state: touch every location once.
		prev = ^mask
	}
	for diff := prev ^ mask; diff != 0; {
		loc := bits.TrailingZeros32(diff)
		diff &^= 1 << loc
		if mask&(1<<loc) != 0 {
			c.dev.EnableAttribute(loc)
		} else {
			c.dev.DisableAttribute(loc)
		}
	}
	c.attrKnown = true
	c.attrMask = mask

	for _, b := range bindings {
		c.bindBufferNative(BufferVertex, b.Buffer)
		c.dev.AttributePointer(b)
	}
}

func errTextureUnit(unit, max int) error {
	return fmt.Errorf("glim: texture unit %d out of range [0,%d)", unit, max)
}
