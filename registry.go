package glim

import "fmt"

// bufferResource is the registry-side record of one device buffer.
// The shadow keeps a CPU copy of the contents so resizes can preserve
// the surviving prefix without a device readback.
type bufferResource struct {
	native NativeID
	target BufferTarget
	usage  BufferUsage
	shadow []byte

	// pins counts recorded-but-unflushed draws reading this buffer;
	// pinnedExtent is the largest byte extent any of them needs.
	pins         int
	pinnedExtent int
}

// textureResource is the registry-side record of one device texture.
type textureResource struct {
	native NativeID
	info   TextureInfo
}

// shaderResource is the registry-side record of one linked program.
type shaderResource struct {
	native     NativeID
	attributes []Attribute
	uniforms   []Uniform
}

// framebufferResource is the registry-side record of one framebuffer.
type framebufferResource struct {
	native NativeID
}

// ResourceRegistry owns every device resource and hands out
// generation-checked [ResourceKey] handles for them.
//
// Each destroy advances the slot generation, so a key held across a
// destroy goes stale rather than silently aliasing whatever resource
// is created in the recycled slot next. All lookups report
// [ErrStaleHandle] or [ErrNotFound] before any device call is made
// with the resolved native id.
type ResourceRegistry struct {
	dev          Device
	buffers      *arena[bufferResource]
	textures     *arena[textureResource]
	shaders      *arena[shaderResource]
	framebuffers *arena[framebufferResource]
}

// NewRegistry creates a registry that creates and destroys resources
// through dev.
func NewRegistry(dev Device) *ResourceRegistry {
	return &ResourceRegistry{
		dev:          dev,
		buffers:      newArena[bufferResource](KindBuffer),
		textures:     newArena[textureResource](KindTexture),
		shaders:      newArena[shaderResource](KindShader),
		framebuffers: newArena[framebufferResource](KindFramebuffer),
	}
}

// Device returns the device the registry operates on.
func (r *ResourceRegistry) Device() Device { return r.dev }

// ---------------------------------------------------------------------------
// Buffers
// ---------------------------------------------------------------------------

// CreateBuffer allocates a zero-filled buffer of size bytes.
func (r *ResourceRegistry) CreateBuffer(target BufferTarget, size int, usage BufferUsage) (ResourceKey, error) {
	if size <= 0 {
		return ResourceKey{}, fmt.Errorf("%w: buffer size %d", ErrInvalidDimensions, size)
	}
	native, err := r.dev.CreateBuffer(target, size, usage)
	if err != nil {
		return ResourceKey{}, err
	}
	key := r.buffers.insert(bufferResource{
		native: native,
		target: target,
		usage:  usage,
		shadow: make([]byte, size),
	})
	Logger().Debug("glim: buffer created", "key", key, "size", size, "target", target)
	return key, nil
}

// DestroyBuffer releases the buffer and invalidates its key.
func (r *ResourceRegistry) DestroyBuffer(key ResourceKey) error {
	res, err := r.buffers.remove(key)
	if err != nil {
		return err
	}
	r.dev.DestroyBuffer(res.native)
	Logger().Debug("glim: buffer destroyed", "key", key)
	return nil
}

// BufferSize returns the buffer's size in bytes.
func (r *ResourceRegistry) BufferSize(key ResourceKey) (int, error) {
	res, err := r.buffers.get(key)
	if err != nil {
		return 0, err
	}
	return len(res.shadow), nil
}

// BufferContents returns a copy of the buffer's current contents.
func (r *ResourceRegistry) BufferContents(key ResourceKey) ([]byte, error) {
	res, err := r.buffers.get(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(res.shadow))
	copy(out, res.shadow)
	return out, nil
}

// WriteBuffer overwrites a byte range of the buffer and uploads it.
// Writes past the end of the buffer fail with [ErrBufferOverflow]
// before anything is modified.
func (r *ResourceRegistry) WriteBuffer(key ResourceKey, offset int, data []byte) error {
	res, err := r.buffers.get(key)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > len(res.shadow) {
		return fmt.Errorf("%w: write [%d,%d) into %d-byte buffer",
			ErrBufferOverflow, offset, offset+len(data), len(res.shadow))
	}
	copy(res.shadow[offset:], data)
	return r.dev.BufferSubData(res.target, res.native, offset, data)
}

// ResizeBuffer re-specifies the buffer's storage at newSize bytes.
// Bytes in [0, min(oldSize, newSize)) are preserved; a grown buffer is
// zero-filled beyond the old size. Shrinking below the extent needed by
// a recorded-but-unflushed draw fails with [ErrBufferInFlight].
func (r *ResourceRegistry) ResizeBuffer(key ResourceKey, newSize int) error {
	res, err := r.buffers.get(key)
	if err != nil {
		return err
	}
	if newSize <= 0 {
		return fmt.Errorf("%w: buffer size %d", ErrInvalidDimensions, newSize)
	}
	if res.pins > 0 && newSize < res.pinnedExtent {
		return fmt.Errorf("%w: shrink to %d truncates recorded draw needing %d bytes",
			ErrBufferInFlight, newSize, res.pinnedExtent)
	}
	if newSize == len(res.shadow) {
		return nil
	}
	grown := make([]byte, newSize)
	n := len(res.shadow)
	if newSize < n {
		n = newSize
	}
	copy(grown, res.shadow[:n])
	res.shadow = grown
	Logger().Debug("glim: buffer resized", "key", key, "size", newSize)
	return r.dev.BufferData(res.target, res.native, res.shadow, res.usage)
}

// writeShadow updates the CPU copy without touching the device. Mapped
// buffers use this to accumulate writes until Unmap uploads them.
func (r *ResourceRegistry) writeShadow(key ResourceKey, offset int, data []byte) error {
	res, err := r.buffers.get(key)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > len(res.shadow) {
		return fmt.Errorf("%w: write [%d,%d) into %d-byte buffer",
			ErrBufferOverflow, offset, offset+len(data), len(res.shadow))
	}
	copy(res.shadow[offset:], data)
	return nil
}

// uploadBuffer flushes shadow bytes [lo,hi) to the device. When orphan
// is set the whole buffer is re-specified instead, which lets stream
// buffers drop the previous frame's storage.
func (r *ResourceRegistry) uploadBuffer(key ResourceKey, lo, hi int, orphan bool) error {
	res, err := r.buffers.get(key)
	if err != nil {
		return err
	}
	if orphan {
		return r.dev.BufferData(res.target, res.native, res.shadow, res.usage)
	}
	if lo < 0 || hi > len(res.shadow) || lo > hi {
		return fmt.Errorf("%w: upload [%d,%d) of %d-byte buffer",
			ErrBufferOverflow, lo, hi, len(res.shadow))
	}
	if lo == hi {
		return nil
	}
	return r.dev.BufferSubData(res.target, res.native, lo, res.shadow[lo:hi])
}

// pinBuffer marks a recorded draw as needing the first extent bytes.
func (r *ResourceRegistry) pinBuffer(key ResourceKey, extent int) error {
	res, err := r.buffers.get(key)
	if err != nil {
		return err
	}
	res.pins++
	if extent > res.pinnedExtent {
		res.pinnedExtent = extent
	}
	return nil
}

// unpinBuffer drops one recorded-draw reference. Pins from draws whose
// buffer was destroyed before the flush disappear with the slot, so a
// missing key is not an error here.
func (r *ResourceRegistry) unpinBuffer(key ResourceKey) {
	res, err := r.buffers.get(key)
	if err != nil {
		return
	}
	if res.pins--; res.pins <= 0 {
		res.pins = 0
		res.pinnedExtent = 0
	}
}

// bufferNative resolves a buffer key to its device id.
func (r *ResourceRegistry) bufferNative(key ResourceKey) (NativeID, error) {
	res, err := r.buffers.get(key)
	if err != nil {
		return 0, err
	}
	return res.native, nil
}

// bufferMeta returns the target and usage a buffer was created with.
func (r *ResourceRegistry) bufferMeta(key ResourceKey) (BufferTarget, BufferUsage, error) {
	res, err := r.buffers.get(key)
	if err != nil {
		return 0, 0, err
	}
	return res.target, res.usage, nil
}

// ---------------------------------------------------------------------------
// Textures
// ---------------------------------------------------------------------------

// CreateTexture allocates texture storage described by info.
func (r *ResourceRegistry) CreateTexture(info TextureInfo) (ResourceKey, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return ResourceKey{}, fmt.Errorf("%w: texture %dx%d",
			ErrInvalidDimensions, info.Width, info.Height)
	}
	native, err := r.dev.CreateTexture(info)
	if err != nil {
		return ResourceKey{}, err
	}
	key := r.textures.insert(textureResource{native: native, info: info})
	Logger().Debug("glim: texture created", "key", key,
		"width", info.Width, "height", info.Height, "format", info.Format)
	return key, nil
}

// DestroyTexture releases the texture and invalidates its key.
func (r *ResourceRegistry) DestroyTexture(key ResourceKey) error {
	res, err := r.textures.remove(key)
	if err != nil {
		return err
	}
	r.dev.DestroyTexture(res.native)
	Logger().Debug("glim: texture destroyed", "key", key)
	return nil
}

// TextureInfo returns the texture's creation parameters.
func (r *ResourceRegistry) TextureInfo(key ResourceKey) (TextureInfo, error) {
	res, err := r.textures.get(key)
	if err != nil {
		return TextureInfo{}, err
	}
	return res.info, nil
}

// WriteTexture uploads tightly packed pixels into a texture region.
// The region must lie within the texture and the pixel slice must
// cover it exactly.
func (r *ResourceRegistry) WriteTexture(key ResourceKey, x, y, width, height int, pixels []byte) error {
	res, err := r.textures.get(key)
	if err != nil {
		return err
	}
	if x < 0 || y < 0 || width <= 0 || height <= 0 ||
		x+width > res.info.Width || y+height > res.info.Height {
		return fmt.Errorf("%w: region (%d,%d %dx%d) in %dx%d texture",
			ErrInvalidDimensions, x, y, width, height, res.info.Width, res.info.Height)
	}
	if need := width * height * res.info.Format.BytesPerPixel(); len(pixels) != need {
		return fmt.Errorf("%w: %d pixel bytes for region needing %d",
			ErrBufferOverflow, len(pixels), need)
	}
	return r.dev.WriteTexture(res.native, x, y, width, height, pixels)
}

// textureNative resolves a texture key to its device id.
func (r *ResourceRegistry) textureNative(key ResourceKey) (NativeID, error) {
	res, err := r.textures.get(key)
	if err != nil {
		return 0, err
	}
	return res.native, nil
}

// ---------------------------------------------------------------------------
// Shaders
// ---------------------------------------------------------------------------

// CreateShader compiles and links a program from vertex and fragment
// sources. Compile and link failures surface as [*ShaderError] with the
// backend's diagnostic log attached.
func (r *ResourceRegistry) CreateShader(vertexSrc, fragmentSrc string) (ResourceKey, error) {
	native, attrs, uniforms, err := r.dev.CreateProgram(vertexSrc, fragmentSrc)
	if err != nil {
		return ResourceKey{}, err
	}
	key := r.shaders.insert(shaderResource{
		native:     native,
		attributes: attrs,
		uniforms:   uniforms,
	})
	Logger().Debug("glim: shader created", "key", key,
		"attributes", len(attrs), "uniforms", len(uniforms))
	return key, nil
}

// DestroyShader releases the program and invalidates its key.
func (r *ResourceRegistry) DestroyShader(key ResourceKey) error {
	res, err := r.shaders.remove(key)
	if err != nil {
		return err
	}
	r.dev.DestroyProgram(res.native)
	Logger().Debug("glim: shader destroyed", "key", key)
	return nil
}

// ShaderInterface returns the reflected attributes and uniforms of a
// linked program. The slices are shared; callers must not modify them.
func (r *ResourceRegistry) ShaderInterface(key ResourceKey) ([]Attribute, []Uniform, error) {
	res, err := r.shaders.get(key)
	if err != nil {
		return nil, nil, err
	}
	return res.attributes, res.uniforms, nil
}

// shaderNative resolves a shader key to its device id.
func (r *ResourceRegistry) shaderNative(key ResourceKey) (NativeID, error) {
	res, err := r.shaders.get(key)
	if err != nil {
		return 0, err
	}
	return res.native, nil
}

// ---------------------------------------------------------------------------
// Framebuffers
// ---------------------------------------------------------------------------

// CreateFramebuffer allocates an empty framebuffer.
func (r *ResourceRegistry) CreateFramebuffer() (ResourceKey, error) {
	native, err := r.dev.CreateFramebuffer()
	if err != nil {
		return ResourceKey{}, err
	}
	key := r.framebuffers.insert(framebufferResource{native: native})
	Logger().Debug("glim: framebuffer created", "key", key)
	return key, nil
}

// DestroyFramebuffer releases the framebuffer and invalidates its key.
// Attached textures are not destroyed.
func (r *ResourceRegistry) DestroyFramebuffer(key ResourceKey) error {
	res, err := r.framebuffers.remove(key)
	if err != nil {
		return err
	}
	r.dev.DestroyFramebuffer(res.native)
	Logger().Debug("glim: framebuffer destroyed", "key", key)
	return nil
}

// AttachTexture attaches a texture to a framebuffer attachment point.
func (r *ResourceRegistry) AttachTexture(fb ResourceKey, attachment FramebufferAttachment, tex ResourceKey) error {
	fbRes, err := r.framebuffers.get(fb)
	if err != nil {
		return err
	}
	texNative, err := r.textureNative(tex)
	if err != nil {
		return err
	}
	return r.dev.AttachTexture(fbRes.native, attachment, texNative)
}

// ValidateFramebuffer runs the backend completeness check.
func (r *ResourceRegistry) ValidateFramebuffer(key ResourceKey) error {
	res, err := r.framebuffers.get(key)
	if err != nil {
		return err
	}
	return r.dev.ValidateFramebuffer(res.native)
}

// framebufferNative resolves a framebuffer key to its device id. The
// zero key resolves to the default backbuffer.
func (r *ResourceRegistry) framebufferNative(key ResourceKey) (NativeID, error) {
	if key.IsZero() {
		return 0, nil
	}
	res, err := r.framebuffers.get(key)
	if err != nil {
		return 0, err
	}
	return res.native, nil
}

// ---------------------------------------------------------------------------
// Teardown and introspection
// ---------------------------------------------------------------------------

// Counts returns the number of live buffers, textures, shaders and
// framebuffers, in that order.
func (r *ResourceRegistry) Counts() (buffers, textures, shaders, framebuffers int) {
	return r.buffers.len(), r.textures.len(), r.shaders.len(), r.framebuffers.len()
}

// Close destroys every resource still alive. Keys held by the caller
// all go stale. The registry stays usable, matching the behavior of a
// context-lost recovery where everything is recreated from scratch.
func (r *ResourceRegistry) Close() {
	b, t, s, f := r.Counts()
	if b+t+s+f > 0 {
		Logger().Warn("glim: registry closing with live resources",
			"buffers", b, "textures", t, "shaders", s, "framebuffers", f)
	}
	r.framebuffers.each(func(_ ResourceKey, res *framebufferResource) {
		r.dev.DestroyFramebuffer(res.native)
	})
	r.textures.each(func(_ ResourceKey, res *textureResource) {
		r.dev.DestroyTexture(res.native)
	})
	r.shaders.each(func(_ ResourceKey, res *shaderResource) {
		r.dev.DestroyProgram(res.native)
	})
	r.buffers.each(func(_ ResourceKey, res *bufferResource) {
		r.dev.DestroyBuffer(res.native)
	})
	r.framebuffers = newArena[framebufferResource](KindFramebuffer)
	r.textures = newArena[textureResource](KindTexture)
	r.shaders = newArena[shaderResource](KindShader)
	r.buffers = newArena[bufferResource](KindBuffer)
}
