// Package trace provides a pure-CPU glim backend that executes no GPU
// work. It keeps full CPU-side stores for buffers and textures and
// records every call it receives, which makes it the reference device
// for tests and for running glim-based code headless.
//
// Importing the package registers the backend under the name "trace":
//
//	import _ "github.com/gogpu/glim/backend/trace"
//
//	ctx, err := glim.NewContext(glim.WithBackend("trace"))
package trace

import (
	"fmt"

	"github.com/gogpu/glim"
)

func init() {
	glim.Register("trace", func() (glim.Device, error) {
		return New(), nil
	})
}

// program is the reflected interface of one fake linked program.
type program struct {
	attributes []glim.Attribute
	uniforms   []glim.Uniform
}

// Device is a recording no-op implementation of [glim.Device].
//
// Every method appends a formatted entry to Calls and bumps the
// per-method counter, so tests can assert both exact call sequences
// and call counts. Buffer and texture uploads are applied to CPU
// stores that tests can read back.
type Device struct {
	// Calls is the ordered log of every device call.
	Calls []string

	// FailProgram, when non-nil, makes CreateProgram fail with this
	// error. Tests use it to simulate compile and link failures.
	FailProgram error

	// FailFramebuffer, when non-nil, makes ValidateFramebuffer fail.
	FailFramebuffer error

	counts map[string]int
	nextID glim.NativeID

	buffers      map[glim.NativeID][]byte
	textures     map[glim.NativeID][]byte
	textureInfo  map[glim.NativeID]glim.TextureInfo
	programs     map[glim.NativeID]program
	framebuffers map[glim.NativeID]map[glim.FramebufferAttachment]glim.NativeID

	released bool
}

var _ glim.Device = (*Device)(nil)

// New creates an empty trace device.
func New() *Device {
	return &Device{
		counts:       make(map[string]int),
		buffers:      make(map[glim.NativeID][]byte),
		textures:     make(map[glim.NativeID][]byte),
		textureInfo:  make(map[glim.NativeID]glim.TextureInfo),
		programs:     make(map[glim.NativeID]program),
		framebuffers: make(map[glim.NativeID]map[glim.FramebufferAttachment]glim.NativeID),
	}
}

// Count returns how many times the named method was called.
func (d *Device) Count(method string) int { return d.counts[method] }

// ResetTrace clears the call log and counters without touching the
// resource stores.
func (d *Device) ResetTrace() {
	d.Calls = d.Calls[:0]
	d.counts = make(map[string]int)
}

// BufferBytes returns the CPU store of a buffer, or nil if unknown.
// The slice is live; tests must not modify it.
func (d *Device) BufferBytes(id glim.NativeID) []byte { return d.buffers[id] }

// TextureBytes returns the CPU store of a texture, or nil if unknown.
func (d *Device) TextureBytes(id glim.NativeID) []byte { return d.textures[id] }

func (d *Device) record(method string, format string, args ...any) {
	d.counts[method]++
	if format == "" {
		d.Calls = append(d.Calls, method)
		return
	}
	d.Calls = append(d.Calls, method+" "+fmt.Sprintf(format, args...))
}

func (d *Device) alloc() glim.NativeID {
	d.nextID++
	return d.nextID
}

// CreateBuffer implements glim.Device.
func (d *Device) CreateBuffer(target glim.BufferTarget, size int, _ glim.BufferUsage) (glim.NativeID, error) {
	id := d.alloc()
	d.buffers[id] = make([]byte, size)
	d.record("CreateBuffer", "%s id=%d size=%d", target, id, size)
	return id, nil
}

// DestroyBuffer implements glim.Device.
func (d *Device) DestroyBuffer(id glim.NativeID) {
	delete(d.buffers, id)
	d.record("DestroyBuffer", "id=%d", id)
}

// BufferData implements glim.Device.
func (d *Device) BufferData(target glim.BufferTarget, id glim.NativeID, data []byte, _ glim.BufferUsage) error {
	if _, ok := d.buffers[id]; !ok {
		return fmt.Errorf("trace: BufferData on unknown buffer %d", id)
	}
	d.buffers[id] = append([]byte(nil), data...)
	d.record("BufferData", "%s id=%d size=%d", target, id, len(data))
	return nil
}

// BufferSubData implements glim.Device.
func (d *Device) BufferSubData(target glim.BufferTarget, id glim.NativeID, offset int, data []byte) error {
	store, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("trace: BufferSubData on unknown buffer %d", id)
	}
	if offset < 0 || offset+len(data) > len(store) {
		return fmt.Errorf("trace: BufferSubData [%d,%d) outside %d-byte buffer",
			offset, offset+len(data), len(store))
	}
	copy(store[offset:], data)
	d.record("BufferSubData", "%s id=%d offset=%d size=%d", target, id, offset, len(data))
	return nil
}

// CreateProgram implements glim.Device. The program interface is
// reflected from the GLSL-style source with [glim.ReflectSource].
func (d *Device) CreateProgram(vertexSrc, fragmentSrc string) (glim.NativeID, []glim.Attribute, []glim.Uniform, error) {
	if d.FailProgram != nil {
		return 0, nil, nil, d.FailProgram
	}
	attrs, uniforms, err := glim.ReflectSource(vertexSrc, fragmentSrc)
	if err != nil {
		return 0, nil, nil, err
	}
	id := d.alloc()
	d.programs[id] = program{attributes: attrs, uniforms: uniforms}
	d.record("CreateProgram", "id=%d attrs=%d uniforms=%d", id, len(attrs), len(uniforms))
	return id, attrs, uniforms, nil
}

// DestroyProgram implements glim.Device.
func (d *Device) DestroyProgram(id glim.NativeID) {
	delete(d.programs, id)
	d.record("DestroyProgram", "id=%d", id)
}

// CreateTexture implements glim.Device.
func (d *Device) CreateTexture(info glim.TextureInfo) (glim.NativeID, error) {
	id := d.alloc()
	d.textures[id] = make([]byte, info.Width*info.Height*info.Format.BytesPerPixel())
	d.textureInfo[id] = info
	d.record("CreateTexture", "id=%d %dx%d %s", id, info.Width, info.Height, info.Format)
	return id, nil
}

// DestroyTexture implements glim.Device.
func (d *Device) DestroyTexture(id glim.NativeID) {
	delete(d.textures, id)
	delete(d.textureInfo, id)
	d.record("DestroyTexture", "id=%d", id)
}

// WriteTexture implements glim.Device.
func (d *Device) WriteTexture(id glim.NativeID, x, y, width, height int, pixels []byte) error {
	store, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("trace: WriteTexture on unknown texture %d", id)
	}
	info := d.textureInfo[id]
	bpp := info.Format.BytesPerPixel()
	for row := 0; row < height; row++ {
		dst := ((y+row)*info.Width + x) * bpp
		src := row * width * bpp
		copy(store[dst:dst+width*bpp], pixels[src:src+width*bpp])
	}
	d.record("WriteTexture", "id=%d region=(%d,%d %dx%d)", id, x, y, width, height)
	return nil
}

// CreateFramebuffer implements glim.Device.
func (d *Device) CreateFramebuffer() (glim.NativeID, error) {
	id := d.alloc()
	d.framebuffers[id] = make(map[glim.FramebufferAttachment]glim.NativeID)
	d.record("CreateFramebuffer", "id=%d", id)
	return id, nil
}

// DestroyFramebuffer implements glim.Device.
func (d *Device) DestroyFramebuffer(id glim.NativeID) {
	delete(d.framebuffers, id)
	d.record("DestroyFramebuffer", "id=%d", id)
}

// AttachTexture implements glim.Device.
func (d *Device) AttachTexture(fb glim.NativeID, attachment glim.FramebufferAttachment, tex glim.NativeID) error {
	atts, ok := d.framebuffers[fb]
	if !ok {
		return fmt.Errorf("trace: AttachTexture on unknown framebuffer %d", fb)
	}
	atts[attachment] = tex
	d.record("AttachTexture", "fb=%d attachment=%d tex=%d", fb, attachment, tex)
	return nil
}

// ValidateFramebuffer implements glim.Device. A framebuffer is
// complete when it has at least a color attachment.
func (d *Device) ValidateFramebuffer(fb glim.NativeID) error {
	d.record("ValidateFramebuffer", "fb=%d", fb)
	if d.FailFramebuffer != nil {
		return d.FailFramebuffer
	}
	atts, ok := d.framebuffers[fb]
	if !ok {
		return fmt.Errorf("trace: ValidateFramebuffer on unknown framebuffer %d", fb)
	}
	if _, ok := atts[glim.AttachColor0]; !ok {
		return fmt.Errorf("trace: framebuffer %d has no color attachment", fb)
	}
	return nil
}

// UseProgram implements glim.Device.
func (d *Device) UseProgram(id glim.NativeID) {
	d.record("UseProgram", "id=%d", id)
}

// BindBuffer implements glim.Device.
func (d *Device) BindBuffer(target glim.BufferTarget, id glim.NativeID) {
	d.record("BindBuffer", "%s id=%d", target, id)
}

// BindTexture implements glim.Device.
func (d *Device) BindTexture(unit int, id glim.NativeID) {
	d.record("BindTexture", "unit=%d id=%d", unit, id)
}

// BindFramebuffer implements glim.Device.
func (d *Device) BindFramebuffer(id glim.NativeID) {
	d.record("BindFramebuffer", "id=%d", id)
}

// SetViewport implements glim.Device.
func (d *Device) SetViewport(r glim.Rect) {
	d.record("SetViewport", "%s", r)
}

// SetScissor implements glim.Device.
func (d *Device) SetScissor(r *glim.Rect) {
	if r == nil {
		d.record("SetScissor", "off")
		return
	}
	d.record("SetScissor", "%s", *r)
}

// SetBlend implements glim.Device.
func (d *Device) SetBlend(b *glim.BlendState) {
	if b == nil {
		d.record("SetBlend", "off")
		return
	}
	d.record("SetBlend", "on")
}

// SetDepth implements glim.Device.
func (d *Device) SetDepth(s *glim.DepthState) {
	if s == nil {
		d.record("SetDepth", "off")
		return
	}
	d.record("SetDepth", "on")
}

// SetStencil implements glim.Device.
func (d *Device) SetStencil(s *glim.StencilState) {
	if s == nil {
		d.record("SetStencil", "off")
		return
	}
	d.record("SetStencil", "on")
}

// EnableAttribute implements glim.Device.
func (d *Device) EnableAttribute(location int) {
	d.record("EnableAttribute", "loc=%d", location)
}

// DisableAttribute implements glim.Device.
func (d *Device) DisableAttribute(location int) {
	d.record("DisableAttribute", "loc=%d", location)
}

// AttributePointer implements glim.Device.
func (d *Device) AttributePointer(b glim.AttributeBinding) {
	d.record("AttributePointer", "loc=%d buf=%d stride=%d offset=%d step=%d",
		b.Location, b.Buffer, b.Stride, b.Offset, b.Step)
}

// SetUniform implements glim.Device.
func (d *Device) SetUniform(u glim.Uniform, _ glim.UniformValue) error {
	d.record("SetUniform", "%s loc=%d", u.Name, u.Location)
	return nil
}

// Clear implements glim.Device.
func (d *Device) Clear(op glim.ClearOp) {
	d.record("Clear", "color=%t depth=%t stencil=%t",
		op.Color != nil, op.Depth != nil, op.Stencil != nil)
}

// DrawArrays implements glim.Device.
func (d *Device) DrawArrays(mode glim.DrawMode, first, count, instances int) {
	d.record("DrawArrays", "%s first=%d count=%d instances=%d", mode, first, count, instances)
}

// DrawElements implements glim.Device.
func (d *Device) DrawElements(mode glim.DrawMode, count int, index glim.IndexType, offset, instances int) {
	d.record("DrawElements", "%s count=%d offset=%d instances=%d", mode, count, offset, instances)
}

// Release implements glim.Device.
func (d *Device) Release() {
	d.released = true
	d.record("Release", "")
}

// Released reports whether Release has been called.
func (d *Device) Released() bool { return d.released }
