package glim

// NativeID identifies an object on the device side of the boundary.
// The zero NativeID means "no object"; as a framebuffer it is the
// default backbuffer.
type NativeID uint64

// BufferTarget selects which binding point a buffer attaches to.
type BufferTarget uint8

const (
	// BufferVertex is the vertex attribute buffer binding.
	BufferVertex BufferTarget = iota + 1
	// BufferIndex is the element index buffer binding.
	BufferIndex
)

// String returns the target name.
func (t BufferTarget) String() string {
	switch t {
	case BufferVertex:
		return "vertex"
	case BufferIndex:
		return "index"
	default:
		return "BufferTarget(?)"
	}
}

// BufferUsage hints how often buffer contents will change, steering the
// upload strategy of mapped buffers.
type BufferUsage uint8

const (
	// UsageStatic contents are written once and drawn many times.
	UsageStatic BufferUsage = iota + 1
	// UsageDynamic contents change occasionally.
	UsageDynamic
	// UsageStream contents are rewritten nearly every frame.
	UsageStream
)

// FramebufferAttachment selects a framebuffer attachment point.
type FramebufferAttachment uint8

const (
	// AttachColor0 is the first color attachment.
	AttachColor0 FramebufferAttachment = iota + 1
	// AttachDepth is the depth attachment.
	AttachDepth
	// AttachDepthStencil is the combined depth/stencil attachment.
	AttachDepthStencil
)

// ClearOp tells a device which planes to clear and with what values.
// Nil planes are left untouched.
type ClearOp struct {
	Color   *Color
	Depth   *float32
	Stencil *int32
}

// AttributeBinding is a fully resolved vertex attribute source handed
// to the device: which buffer, and how to read one attribute out of it.
type AttributeBinding struct {
	// Location is the shader attribute location.
	Location int
	// Type is the component type stored in the buffer.
	Type AttributeType
	// Components is the number of components per vertex.
	Components int
	// Normalize converts integer components to floats.
	Normalize bool
	// Buffer is the source vertex buffer.
	Buffer NativeID
	// Stride is the byte distance between consecutive vertices.
	Stride int
	// Offset is the byte offset of the attribute within a vertex.
	Offset int
	// Step is the instance divisor; 0 advances per vertex.
	Step int
}

// Device is the backend boundary. Everything glim does eventually
// lands here as an explicit call; the layers above guarantee that
// binding calls arrive deduplicated (via [StateCache]) and that
// resource arguments were validated against the registry first.
//
// Implementations must not retain slices passed to upload methods
// beyond the call.
//
// Devices are driven from a single goroutine; implementations do not
// need internal locking.
type Device interface {
	// CreateBuffer allocates a buffer of size bytes.
	CreateBuffer(target BufferTarget, size int, usage BufferUsage) (NativeID, error)
	// DestroyBuffer releases a buffer. Destroying the zero id is a no-op.
	DestroyBuffer(id NativeID)
	// BufferData re-specifies the buffer's full contents, orphaning any
	// previous storage. len(data) becomes the new buffer size.
	BufferData(target BufferTarget, id NativeID, data []byte, usage BufferUsage) error
	// BufferSubData overwrites a byte range of the buffer.
	BufferSubData(target BufferTarget, id NativeID, offset int, data []byte) error

	// CreateProgram compiles and links a program and reflects its
	// vertex attributes and uniforms. Failures are reported as
	// [*ShaderError].
	CreateProgram(vertexSrc, fragmentSrc string) (NativeID, []Attribute, []Uniform, error)
	// DestroyProgram releases a program.
	DestroyProgram(id NativeID)

	// CreateTexture allocates texture storage described by info.
	CreateTexture(info TextureInfo) (NativeID, error)
	// DestroyTexture releases a texture.
	DestroyTexture(id NativeID)
	// WriteTexture uploads pixels into the given region. The pixel data
	// is tightly packed in the texture's format.
	WriteTexture(id NativeID, x, y, width, height int, pixels []byte) error

	// CreateFramebuffer allocates an empty framebuffer.
	CreateFramebuffer() (NativeID, error)
	// DestroyFramebuffer releases a framebuffer.
	DestroyFramebuffer(id NativeID)
	// AttachTexture attaches a texture to a framebuffer attachment
	// point.
	AttachTexture(fb NativeID, attachment FramebufferAttachment, tex NativeID) error
	// ValidateFramebuffer runs the backend completeness check.
	ValidateFramebuffer(fb NativeID) error

	// Binding and fixed-function state. These are only ever invoked
	// through the StateCache, which elides redundant calls.

	// UseProgram binds a program; zero unbinds.
	UseProgram(id NativeID)
	// BindBuffer binds a buffer to a target; zero unbinds.
	BindBuffer(target BufferTarget, id NativeID)
	// BindTexture binds a texture to a texture unit; zero unbinds.
	BindTexture(unit int, id NativeID)
	// BindFramebuffer binds a render target; zero binds the backbuffer.
	BindFramebuffer(id NativeID)
	// SetViewport sets the viewport rectangle.
	SetViewport(r Rect)
	// SetScissor sets the scissor rectangle; nil disables scissoring.
	SetScissor(r *Rect)
	// SetBlend sets the blend configuration; nil disables blending.
	SetBlend(b *BlendState)
	// SetDepth sets the depth test; nil disables it.
	SetDepth(d *DepthState)
	// SetStencil sets the stencil test; nil disables it.
	SetStencil(s *StencilState)
	// EnableAttribute enables a vertex attribute location.
	EnableAttribute(location int)
	// DisableAttribute disables a vertex attribute location.
	DisableAttribute(location int)
	// AttributePointer points an enabled attribute at buffer memory.
	AttributePointer(binding AttributeBinding)
	// SetUniform uploads a uniform value into the bound program.
	SetUniform(u Uniform, v UniformValue) error

	// Clear clears the requested planes of the bound target.
	Clear(op ClearOp)
	// DrawArrays draws count vertices starting at first.
	DrawArrays(mode DrawMode, first, count, instances int)
	// DrawElements draws count indices of the given type, starting at a
	// byte offset into the bound index buffer.
	DrawElements(mode DrawMode, count int, index IndexType, offset, instances int)

	// Release frees everything the device still holds. The device must
	// not be used afterwards.
	Release()
}
