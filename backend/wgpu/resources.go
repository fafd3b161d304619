package wgpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glim"
)

// bufferObject tracks one HAL buffer. HAL buffers have a fixed size,
// so a full BufferData with a different length reallocates the buffer
// under the same id.
type bufferObject struct {
	buf    hal.Buffer
	size   int
	target glim.BufferTarget
	usage  gputypes.BufferUsage
}

// textureObject tracks one HAL texture with its standing view.
type textureObject struct {
	tex    hal.Texture
	view   hal.TextureView
	info   glim.TextureInfo
	format gputypes.TextureFormat
}

// framebufferObject is a CPU-side attachment table. The HAL has no
// framebuffer object; attachments are resolved into render pass
// descriptors at draw time.
type framebufferObject struct {
	attachments map[glim.FramebufferAttachment]glim.NativeID
}

func bufferUsageFor(target glim.BufferTarget) gputypes.BufferUsage {
	if target == glim.BufferIndex {
		return gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst
	}
	return gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst
}

// CreateBuffer implements glim.Device.
func (d *Device) CreateBuffer(target glim.BufferTarget, size int, _ glim.BufferUsage) (glim.NativeID, error) {
	id := d.alloc()
	usage := bufferUsageFor(target)
	buf, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: fmt.Sprintf("glim_%s_buffer_%d", target, id),
		Size:  uint64(size),
		Usage: usage,
	})
	if err != nil {
		return 0, fmt.Errorf("wgpu: create buffer: %w", err)
	}
	d.buffers[id] = &bufferObject{buf: buf, size: size, target: target, usage: usage}
	return id, nil
}

// DestroyBuffer implements glim.Device.
func (d *Device) DestroyBuffer(id glim.NativeID) {
	obj, ok := d.buffers[id]
	if !ok {
		return
	}
	d.dev.DestroyBuffer(obj.buf)
	delete(d.buffers, id)
}

// BufferData implements glim.Device. A size change reallocates the
// HAL buffer; the id stays stable.
func (d *Device) BufferData(_ glim.BufferTarget, id glim.NativeID, data []byte, _ glim.BufferUsage) error {
	obj, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("wgpu: BufferData on unknown buffer %d", id)
	}
	if len(data) != obj.size {
		buf, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
			Label: fmt.Sprintf("glim_%s_buffer_%d", obj.target, id),
			Size:  uint64(len(data)),
			Usage: obj.usage,
		})
		if err != nil {
			return fmt.Errorf("wgpu: reallocate buffer: %w", err)
		}
		d.dev.DestroyBuffer(obj.buf)
		obj.buf = buf
		obj.size = len(data)
	}
	if len(data) == 0 {
		return nil
	}
	if err := d.queue.WriteBuffer(obj.buf, 0, data); err != nil {
		return fmt.Errorf("wgpu: buffer upload: %w", err)
	}
	return nil
}

// BufferSubData implements glim.Device.
func (d *Device) BufferSubData(_ glim.BufferTarget, id glim.NativeID, offset int, data []byte) error {
	obj, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("wgpu: BufferSubData on unknown buffer %d", id)
	}
	if offset < 0 || offset+len(data) > obj.size {
		return fmt.Errorf("wgpu: BufferSubData [%d,%d) outside %d-byte buffer",
			offset, offset+len(data), obj.size)
	}
	if len(data) == 0 {
		return nil
	}
	if err := d.queue.WriteBuffer(obj.buf, uint64(offset), data); err != nil {
		return fmt.Errorf("wgpu: buffer upload: %w", err)
	}
	return nil
}

func textureFormatFor(f glim.PixelFormat) (gputypes.TextureFormat, error) {
	switch f {
	case glim.PixelRGBA8:
		return gputypes.TextureFormatRGBA8Unorm, nil
	case glim.PixelAlpha8:
		return gputypes.TextureFormatR8Unorm, nil
	case glim.PixelDepth24Stencil8:
		return gputypes.TextureFormatDepth24PlusStencil8, nil
	default:
		return 0, fmt.Errorf("wgpu: unsupported pixel format %s", f)
	}
}

// CreateTexture implements glim.Device.
func (d *Device) CreateTexture(info glim.TextureInfo) (glim.NativeID, error) {
	format, err := textureFormatFor(info.Format)
	if err != nil {
		return 0, err
	}
	usage := gputypes.TextureUsageRenderAttachment
	if info.Format != glim.PixelDepth24Stencil8 {
		usage |= gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc
	}

	id := d.alloc()
	tex, err := d.dev.CreateTexture(&hal.TextureDescriptor{
		Label: fmt.Sprintf("glim_texture_%d", id),
		Size: hal.Extent3D{
			Width:              uint32(info.Width),
			Height:             uint32(info.Height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return 0, fmt.Errorf("wgpu: create texture: %w", err)
	}
	view, err := d.dev.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: fmt.Sprintf("glim_texture_view_%d", id),
	})
	if err != nil {
		d.dev.DestroyTexture(tex)
		return 0, fmt.Errorf("wgpu: create texture view: %w", err)
	}
	d.textures[id] = &textureObject{tex: tex, view: view, info: info, format: format}
	return id, nil
}

// DestroyTexture implements glim.Device.
func (d *Device) DestroyTexture(id glim.NativeID) {
	obj, ok := d.textures[id]
	if !ok {
		return
	}
	d.dev.DestroyTextureView(obj.view)
	d.dev.DestroyTexture(obj.tex)
	delete(d.textures, id)
}

// WriteTexture implements glim.Device. The pixel data is tightly
// packed rows of the requested region.
func (d *Device) WriteTexture(id glim.NativeID, x, y, width, height int, pixels []byte) error {
	obj, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("wgpu: WriteTexture on unknown texture %d", id)
	}
	if obj.info.Format == glim.PixelDepth24Stencil8 {
		return fmt.Errorf("wgpu: cannot upload to depth texture %d", id)
	}
	bpp := obj.info.Format.BytesPerPixel()
	d.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  obj.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: uint32(x), Y: uint32(y), Z: 0},
		},
		pixels,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(width * bpp),
			RowsPerImage: uint32(height),
		},
		&hal.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

// CreateFramebuffer implements glim.Device.
func (d *Device) CreateFramebuffer() (glim.NativeID, error) {
	id := d.alloc()
	d.framebuffers[id] = &framebufferObject{
		attachments: make(map[glim.FramebufferAttachment]glim.NativeID),
	}
	return id, nil
}

// DestroyFramebuffer implements glim.Device. Attachments themselves
// are owned by their textures and are not destroyed.
func (d *Device) DestroyFramebuffer(id glim.NativeID) {
	delete(d.framebuffers, id)
}

// AttachTexture implements glim.Device.
func (d *Device) AttachTexture(fb glim.NativeID, attachment glim.FramebufferAttachment, tex glim.NativeID) error {
	obj, ok := d.framebuffers[fb]
	if !ok {
		return fmt.Errorf("wgpu: AttachTexture on unknown framebuffer %d", fb)
	}
	t, ok := d.textures[tex]
	if !ok {
		return fmt.Errorf("wgpu: attaching unknown texture %d", tex)
	}
	isDepth := t.info.Format == glim.PixelDepth24Stencil8
	wantsDepth := attachment == glim.AttachDepth || attachment == glim.AttachDepthStencil
	if isDepth != wantsDepth {
		return fmt.Errorf("wgpu: texture format %s does not match attachment point", t.info.Format)
	}
	obj.attachments[attachment] = tex
	return nil
}

// ValidateFramebuffer implements glim.Device. Complete means a color
// attachment exists and every attachment has the same dimensions.
func (d *Device) ValidateFramebuffer(fb glim.NativeID) error {
	obj, ok := d.framebuffers[fb]
	if !ok {
		return fmt.Errorf("wgpu: ValidateFramebuffer on unknown framebuffer %d", fb)
	}
	color, ok := d.textures[obj.attachments[glim.AttachColor0]]
	if !ok {
		return fmt.Errorf("wgpu: framebuffer %d has no color attachment", fb)
	}
	for point, texID := range obj.attachments {
		t, ok := d.textures[texID]
		if !ok {
			return fmt.Errorf("wgpu: framebuffer %d attachment %d is gone", fb, point)
		}
		if t.info.Width != color.info.Width || t.info.Height != color.info.Height {
			return fmt.Errorf("wgpu: framebuffer %d attachment sizes differ", fb)
		}
	}
	return nil
}

// depthAttachment returns the depth texture of a framebuffer, if any.
func (d *Device) depthAttachment(fb *framebufferObject) *textureObject {
	for _, point := range []glim.FramebufferAttachment{glim.AttachDepthStencil, glim.AttachDepth} {
		if id, ok := fb.attachments[point]; ok {
			if t, ok := d.textures[id]; ok {
				return t
			}
		}
	}
	return nil
}

// copyPitchAlignment is the BytesPerRow alignment required by
// texture-to-buffer copies.
const copyPitchAlignment = 256

// ReadTexture copies a texture's contents into out, which must hold
// Width*Height*BytesPerPixel bytes of tightly packed rows. It stalls
// until the GPU copy completes, so it is a debugging and test aid,
// not a per-frame path.
func (d *Device) ReadTexture(id glim.NativeID, out []byte) error {
	obj, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("wgpu: ReadTexture on unknown texture %d", id)
	}
	w := uint32(obj.info.Width)
	h := uint32(obj.info.Height)
	bpp := uint32(obj.info.Format.BytesPerPixel())
	need := int(w * h * bpp)
	if len(out) < need {
		return fmt.Errorf("wgpu: ReadTexture needs %d bytes, got %d", need, len(out))
	}

	bytesPerRow := w * bpp
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "glim_readback",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer d.dev.DestroyBuffer(staging)

	encoder, err := d.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "glim_readback_encoder",
	})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("glim_readback"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	// The texture sits in render-attachment layout between passes;
	// copies need the transfer-source layout. Transition both ways so
	// the next render pass sees the layout it expects.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: obj.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(obj.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: obj.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: obj.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

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

	if alignedBytesPerRow == bytesPerRow {
		return d.queue.ReadBuffer(staging, 0, out[:need])
	}
	padded := make([]byte, stagingSize)
	if err := d.queue.ReadBuffer(staging, 0, padded); err != nil {
		return fmt.Errorf("wgpu: readback: %w", err)
	}
	for row := uint32(0); row < h; row++ {
		src := int(row) * int(alignedBytesPerRow)
		dst := int(row) * int(bytesPerRow)
		copy(out[dst:dst+int(bytesPerRow)], padded[src:src+int(bytesPerRow)])
	}
	return nil
}

// samplerKey identifies a unique sampler configuration.
type samplerKey struct {
	min, mag     glim.FilterMode
	wrapU, wrapV glim.WrapMode
}

func addressMode(w glim.WrapMode) gputypes.AddressMode {
	switch w {
	case glim.WrapRepeat:
		return gputypes.AddressModeRepeat
	case glim.WrapMirroredRepeat:
		return gputypes.AddressModeMirrorRepeat
	default:
		return gputypes.AddressModeClampToEdge
	}
}

func filterMode(f glim.FilterMode) gputypes.FilterMode {
	if f == glim.FilterNearest {
		return gputypes.FilterModeNearest
	}
	return gputypes.FilterModeLinear
}

// samplerFor returns a sampler matching the texture's sampling
// parameters, creating and caching it on first use.
func (d *Device) samplerFor(info glim.TextureInfo) (hal.Sampler, error) {
	key := samplerKey{min: info.MinFilter, mag: info.MagFilter, wrapU: info.WrapU, wrapV: info.WrapV}
	if s, ok := d.samplers[key]; ok {
		return s, nil
	}
	s, err := d.dev.CreateSampler(&hal.SamplerDescriptor{
		Label:        "glim_sampler",
		AddressModeU: addressMode(info.WrapU),
		AddressModeV: addressMode(info.WrapV),
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    filterMode(info.MagFilter),
		MinFilter:    filterMode(info.MinFilter),
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create sampler: %w", err)
	}
	d.samplers[key] = s
	return s, nil
}
