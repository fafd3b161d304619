package wgpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glim"
)

// bindState is the CPU mirror of the stateful binding model. Binding
// calls only mutate this struct; a draw or clear materializes it into
// a pipeline, bind group and render pass.
type bindState struct {
	program   glim.NativeID
	vertexBuf glim.NativeID
	indexBuf  glim.NativeID
	target    glim.NativeID

	viewport glim.Rect
	scissor  *glim.Rect
	blend    *glim.BlendState
	depth    *glim.DepthState
	stencil  *glim.StencilState

	attrs    map[int]glim.AttributeBinding
	enabled  map[int]bool
	texUnits map[int]glim.NativeID
}

func (s *bindState) reset() {
	*s = bindState{
		attrs:    make(map[int]glim.AttributeBinding),
		enabled:  make(map[int]bool),
		texUnits: make(map[int]glim.NativeID),
	}
}

// UseProgram implements glim.Device.
func (d *Device) UseProgram(id glim.NativeID) { d.st.program = id }

// BindBuffer implements glim.Device.
func (d *Device) BindBuffer(target glim.BufferTarget, id glim.NativeID) {
	if target == glim.BufferIndex {
		d.st.indexBuf = id
	} else {
		d.st.vertexBuf = id
	}
}

// BindTexture implements glim.Device.
func (d *Device) BindTexture(unit int, id glim.NativeID) {
	if id == 0 {
		delete(d.st.texUnits, unit)
		return
	}
	d.st.texUnits[unit] = id
}

// BindFramebuffer implements glim.Device.
func (d *Device) BindFramebuffer(id glim.NativeID) { d.st.target = id }

// SetViewport implements glim.Device.
func (d *Device) SetViewport(r glim.Rect) { d.st.viewport = r }

// SetScissor implements glim.Device.
func (d *Device) SetScissor(r *glim.Rect) {
	if r == nil {
		d.st.scissor = nil
		return
	}
	c := *r
	d.st.scissor = &c
}

// SetBlend implements glim.Device.
func (d *Device) SetBlend(b *glim.BlendState) {
	if b == nil {
		d.st.blend = nil
		return
	}
	c := *b
	d.st.blend = &c
}

// SetDepth implements glim.Device.
func (d *Device) SetDepth(s *glim.DepthState) {
	if s == nil {
		d.st.depth = nil
		return
	}
	c := *s
	d.st.depth = &c
}

// SetStencil implements glim.Device.
func (d *Device) SetStencil(s *glim.StencilState) {
	if s == nil {
		d.st.stencil = nil
		return
	}
	c := *s
	d.st.stencil = &c
}

// EnableAttribute implements glim.Device.
func (d *Device) EnableAttribute(location int) { d.st.enabled[location] = true }

// DisableAttribute implements glim.Device.
func (d *Device) DisableAttribute(location int) { delete(d.st.enabled, location) }

// AttributePointer implements glim.Device.
func (d *Device) AttributePointer(binding glim.AttributeBinding) {
	d.st.attrs[binding.Location] = binding
}

// resolveTarget returns the render target of the current draw or
// clear. The backend has no backbuffer, so the zero framebuffer is
// reported once and dropped.
func (d *Device) resolveTarget() (*framebufferObject, *textureObject, *textureObject, bool) {
	if d.st.target == 0 {
		if !d.warnedBackbuffer {
			d.logger().Warn("wgpu: no backbuffer; draws to the default framebuffer are dropped")
			d.warnedBackbuffer = true
		}
		return nil, nil, nil, false
	}
	fb, ok := d.framebuffers[d.st.target]
	if !ok {
		d.logger().Error("wgpu: unknown framebuffer bound", "id", d.st.target)
		return nil, nil, nil, false
	}
	color, ok := d.textures[fb.attachments[glim.AttachColor0]]
	if !ok {
		d.logger().Error("wgpu: framebuffer has no color attachment", "id", d.st.target)
		return nil, nil, nil, false
	}
	return fb, color, d.depthAttachment(fb), true
}

// submit runs one finished encoder synchronously.
func (d *Device) submit(encoder hal.CommandEncoder) error {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer d.dev.FreeCommandBuffer(cmdBuf)

	fence, err := d.dev.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	defer d.dev.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	fenceOK, err := d.dev.Wait(fence, 1, 5*time.Second)
	if err != nil || !fenceOK {
		return fmt.Errorf("wgpu: wait for GPU: ok=%v err=%w", fenceOK, err)
	}
	return nil
}

// Clear implements glim.Device. Each requested plane loads with a
// clear op in an otherwise empty render pass. Scissored clears are
// not expressible in this model; the full target is cleared.
func (d *Device) Clear(op glim.ClearOp) {
	_, color, depth, ok := d.resolveTarget()
	if !ok {
		return
	}
	if op.Color == nil && op.Depth == nil && op.Stencil == nil {
		return
	}
	if d.st.scissor != nil {
		d.logger().Warn("wgpu: scissored clear not supported, clearing full target")
	}

	colorAtt := hal.RenderPassColorAttachment{
		View:    color.view,
		LoadOp:  gputypes.LoadOpLoad,
		StoreOp: gputypes.StoreOpStore,
	}
	if c := op.Color; c != nil {
		colorAtt.LoadOp = gputypes.LoadOpClear
		colorAtt.ClearValue = gputypes.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: float64(c.A)}
	}

	desc := &hal.RenderPassDescriptor{
		Label:            "glim_clear",
		ColorAttachments: []hal.RenderPassColorAttachment{colorAtt},
	}
	if depth != nil {
		att := &hal.RenderPassDepthStencilAttachment{
			View:           depth.view,
			DepthLoadOp:    gputypes.LoadOpLoad,
			DepthStoreOp:   gputypes.StoreOpStore,
			StencilLoadOp:  gputypes.LoadOpLoad,
			StencilStoreOp: gputypes.StoreOpStore,
		}
		if op.Depth != nil {
			att.DepthLoadOp = gputypes.LoadOpClear
			att.DepthClearValue = *op.Depth
		}
		if op.Stencil != nil {
			att.StencilLoadOp = gputypes.LoadOpClear
			att.StencilClearValue = uint32(*op.Stencil)
		}
		desc.DepthStencilAttachment = att
	}

	encoder, err := d.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "glim_clear"})
	if err != nil {
		d.logger().Error("wgpu: clear", "error", err)
		return
	}
	if err := encoder.BeginEncoding("glim_clear"); err != nil {
		d.logger().Error("wgpu: clear", "error", err)
		return
	}
	rp := encoder.BeginRenderPass(desc)
	rp.End()
	if err := d.submit(encoder); err != nil {
		d.logger().Error("wgpu: clear", "error", err)
	}
}

// resolveSlots groups the program's enabled attribute bindings into
// vertex buffer slots. Attributes sharing a buffer, stride and step
// rate share a slot. The signature string distinguishes layouts in
// the pipeline key.
func (d *Device) resolveSlots(prog *programObject) ([]vertexSlot, string, error) {
	var slots []vertexSlot
	sig := ""
	for _, a := range prog.attrs {
		if !d.st.enabled[a.Location] {
			return nil, "", fmt.Errorf("wgpu: attribute %q (location %d) not enabled", a.Name, a.Location)
		}
		b, ok := d.st.attrs[a.Location]
		if !ok {
			return nil, "", fmt.Errorf("wgpu: attribute %q (location %d) has no pointer", a.Name, a.Location)
		}
		format, err := vertexFormat(b.Type, b.Components, b.Normalize)
		if err != nil {
			return nil, "", err
		}
		va := gputypes.VertexAttribute{
			Format:         format,
			Offset:         uint64(b.Offset),
			ShaderLocation: uint32(b.Location),
		}

		slot := -1
		for i := range slots {
			if slots[i].buffer == b.Buffer && slots[i].stride == b.Stride && slots[i].step == b.Step {
				slot = i
				break
			}
		}
		if slot < 0 {
			slots = append(slots, vertexSlot{buffer: b.Buffer, stride: b.Stride, step: b.Step})
			slot = len(slots) - 1
		}
		slots[slot].attrs = append(slots[slot].attrs, va)
		sig += fmt.Sprintf("%d:%d:%d:%d:%d:%d;", slot, b.Stride, b.Step, format, b.Offset, b.Location)
	}
	return slots, sig, nil
}

// bindGroupFor builds the per-draw bind group: the uniform block
// buffer plus a view and sampler for every texture declaration.
func (d *Device) bindGroupFor(prog *programObject) (hal.BindGroup, error) {
	entries := make([]gputypes.BindGroupEntry, 0, 1+2*len(prog.textures))
	if len(prog.block) > 0 {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  0,
			Resource: gputypes.BufferBinding{Buffer: prog.uniformBuf.NativeHandle(), Offset: 0, Size: 0},
		})
	}
	for _, decl := range prog.textures {
		unit := decl.unit
		if unit < 0 {
			unit = 0
		}
		texID, ok := d.st.texUnits[unit]
		if !ok {
			return nil, fmt.Errorf("wgpu: no texture bound to unit %d for %q", unit, decl.name)
		}
		tex, ok := d.textures[texID]
		if !ok {
			return nil, fmt.Errorf("wgpu: unknown texture %d on unit %d", texID, unit)
		}
		sampler, err := d.samplerFor(tex.info)
		if err != nil {
			return nil, err
		}
		entries = append(entries,
			gputypes.BindGroupEntry{
				Binding:  decl.binding,
				Resource: gputypes.TextureViewBinding{TextureView: tex.view.NativeHandle()},
			},
			gputypes.BindGroupEntry{
				Binding:  decl.samplerBinding,
				Resource: gputypes.SamplerBinding{Sampler: sampler.NativeHandle()},
			},
		)
	}
	return d.dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "glim_draw",
		Layout:  prog.bindLayout,
		Entries: entries,
	})
}

// Optional render pass controls. Not every HAL exposes these; absence
// degrades to full-target rendering.
type viewportSetter interface {
	SetViewport(x, y, w, h, minDepth, maxDepth float32)
}

type scissorSetter interface {
	SetScissorRect(x, y, w, h uint32)
}

type stencilReferenceSetter interface {
	SetStencilReference(ref uint32)
}

type drawCall struct {
	mode      glim.DrawMode
	first     int
	count     int
	instances int

	indexed   bool
	indexType glim.IndexType
	offset    int
}

// DrawArrays implements glim.Device.
func (d *Device) DrawArrays(mode glim.DrawMode, first, count, instances int) {
	d.draw(drawCall{mode: mode, first: first, count: count, instances: instances})
}

// DrawElements implements glim.Device.
func (d *Device) DrawElements(mode glim.DrawMode, count int, index glim.IndexType, offset, instances int) {
	d.draw(drawCall{mode: mode, count: count, instances: instances, indexed: true, indexType: index, offset: offset})
}

func (d *Device) draw(call drawCall) {
	if call.count <= 0 {
		return
	}
	_, color, depth, ok := d.resolveTarget()
	if !ok {
		return
	}
	prog, ok := d.programs[d.st.program]
	if !ok {
		d.logger().Error("wgpu: draw without a program")
		return
	}

	slots, sig, err := d.resolveSlots(prog)
	if err != nil {
		d.logger().Error("wgpu: draw", "error", err)
		return
	}

	key := pipelineKey{
		program:     d.st.program,
		mode:        call.mode,
		colorFormat: color.format,
		layoutSig:   sig,
	}
	if depth != nil {
		key.depthFormat = depth.format
		key.hasDepthTex = true
	}
	if d.st.blend != nil {
		key.blend = *d.st.blend
		key.hasBlend = true
	}
	if d.st.depth != nil {
		key.depth = *d.st.depth
		key.hasDepth = true
	}
	if d.st.stencil != nil {
		key.stencil = *d.st.stencil
		key.hasStencil = true
	}

	pipeline, err := d.pipelines.getOrCreate(key, func() (hal.RenderPipeline, error) {
		return d.buildPipeline(prog, key, slots)
	})
	if err != nil {
		d.logger().Error("wgpu: build pipeline", "error", err)
		return
	}

	if prog.blockDirty {
		if err := d.queue.WriteBuffer(prog.uniformBuf, 0, prog.block); err != nil {
			d.logger().Error("wgpu: upload uniforms", "error", err)
			return
		}
		prog.blockDirty = false
	}

	bg, err := d.bindGroupFor(prog)
	if err != nil {
		d.logger().Error("wgpu: draw", "error", err)
		return
	}
	defer d.dev.DestroyBindGroup(bg)

	desc := &hal.RenderPassDescriptor{
		Label: "glim_draw",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    color.view,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}},
	}
	if depth != nil {
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:           depth.view,
			DepthLoadOp:    gputypes.LoadOpLoad,
			DepthStoreOp:   gputypes.StoreOpStore,
			StencilLoadOp:  gputypes.LoadOpLoad,
			StencilStoreOp: gputypes.StoreOpStore,
		}
	}

	encoder, err := d.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "glim_draw"})
	if err != nil {
		d.logger().Error("wgpu: draw", "error", err)
		return
	}
	if err := encoder.BeginEncoding("glim_draw"); err != nil {
		d.logger().Error("wgpu: draw", "error", err)
		return
	}
	rp := encoder.BeginRenderPass(desc)
	rp.SetPipeline(pipeline)
	rp.SetBindGroup(0, bg, nil)

	if vp, ok := rp.(viewportSetter); ok && d.st.viewport.W > 0 && d.st.viewport.H > 0 {
		v := d.st.viewport
		vp.SetViewport(float32(v.X), float32(v.Y), float32(v.W), float32(v.H), 0, 1)
	}
	if sc, ok := rp.(scissorSetter); ok && d.st.scissor != nil {
		s := clampRect(*d.st.scissor, color.info.Width, color.info.Height)
		sc.SetScissorRect(uint32(s.X), uint32(s.Y), uint32(s.W), uint32(s.H))
	}
	if sr, ok := rp.(stencilReferenceSetter); ok && d.st.stencil != nil {
		sr.SetStencilReference(uint32(d.st.stencil.Ref))
	}

	fail := func(err error) {
		rp.End()
		d.logger().Error("wgpu: draw", "error", err)
	}
	for i, slot := range slots {
		buf, ok := d.buffers[slot.buffer]
		if !ok {
			fail(fmt.Errorf("unknown vertex buffer %d", slot.buffer))
			return
		}
		rp.SetVertexBuffer(uint32(i), buf.buf, 0)
	}

	inst := uint32(1)
	if call.instances > 1 {
		inst = uint32(call.instances)
	}
	if call.indexed {
		idx, ok := d.buffers[d.st.indexBuf]
		if !ok {
			fail(fmt.Errorf("no index buffer bound"))
			return
		}
		format := gputypes.IndexFormatUint16
		if call.indexType == glim.IndexU32 {
			format = gputypes.IndexFormatUint32
		}
		rp.SetIndexBuffer(idx.buf, format, 0)
		firstIndex := uint32(call.offset / call.indexType.Size())
		rp.DrawIndexed(uint32(call.count), inst, firstIndex, 0, 0)
	} else {
		rp.Draw(uint32(call.count), inst, uint32(call.first), 0)
	}
	rp.End()

	if err := d.submit(encoder); err != nil {
		d.logger().Error("wgpu: draw", "error", err)
	}
}

func clampRect(r glim.Rect, w, h int) glim.Rect {
	if r.X < 0 {
		r.W += r.X
		r.X = 0
	}
	if r.Y < 0 {
		r.H += r.Y
		r.Y = 0
	}
	if r.X+r.W > w {
		r.W = w - r.X
	}
	if r.Y+r.H > h {
		r.H = h - r.Y
	}
	if r.W < 0 {
		r.W = 0
	}
	if r.H < 0 {
		r.H = 0
	}
	return r
}
