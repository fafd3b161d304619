package wgpu

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/glim"
)

// defaultPipelineCacheSize bounds the number of live render pipelines.
const defaultPipelineCacheSize = 64

// Option configures a [Device].
type Option func(*options)

type options struct {
	provider  gpucontext.DeviceProvider
	cacheSize int
}

// WithProvider shares a device owned by a host application instead of
// opening a standalone one. The provider must expose the underlying
// HAL device and queue through HalDevice() and HalQueue(). A shared
// device is not destroyed on Release.
func WithProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) { o.provider = p }
}

// WithPipelineCacheSize sets the soft limit of the render pipeline
// cache. The default is 64.
func WithPipelineCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// Device implements [glim.Device] over a WebGPU-style HAL.
//
// Binding calls mutate a CPU mirror only; the mirror is materialized
// into a pipeline, bind group and render pass when a draw or clear
// arrives. Each draw is submitted synchronously and waited on, which
// keeps resource lifetimes trivial at the cost of per-draw latency;
// the layers above amortize that by deduplicating state changes.
type Device struct {
	instance hal.Instance
	dev      hal.Device
	queue    hal.Queue
	external bool

	log *slog.Logger

	nextID       glim.NativeID
	buffers      map[glim.NativeID]*bufferObject
	textures     map[glim.NativeID]*textureObject
	programs     map[glim.NativeID]*programObject
	framebuffers map[glim.NativeID]*framebufferObject

	pipelines *pipelineCache
	samplers  map[samplerKey]hal.Sampler

	st bindState

	warnedBackbuffer bool
}

var _ glim.Device = (*Device)(nil)

// New opens a device. Without options it creates a standalone Vulkan
// instance and picks a discrete GPU when one is present.
func New(opts ...Option) (*Device, error) {
	o := options{cacheSize: defaultPipelineCacheSize}
	for _, opt := range opts {
		opt(&o)
	}

	d := &Device{
		buffers:      make(map[glim.NativeID]*bufferObject),
		textures:     make(map[glim.NativeID]*textureObject),
		programs:     make(map[glim.NativeID]*programObject),
		framebuffers: make(map[glim.NativeID]*framebufferObject),
		samplers:     make(map[samplerKey]hal.Sampler),
	}
	d.st.reset()

	if o.provider != nil {
		if err := d.initShared(o.provider); err != nil {
			return nil, err
		}
	} else {
		if err := d.initStandalone(); err != nil {
			return nil, err
		}
	}

	d.pipelines = newPipelineCache(d.dev, o.cacheSize)
	return d, nil
}

// initShared adopts the HAL device and queue of an external provider.
func (d *Device) initShared(provider gpucontext.DeviceProvider) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("wgpu: provider does not expose HAL types")
	}
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok || dev == nil {
		return fmt.Errorf("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("wgpu: provider HalQueue is not hal.Queue")
	}
	d.dev = dev
	d.queue = queue
	d.external = true
	d.logger().Debug("wgpu: using shared GPU device")
	return nil
}

// initStandalone creates a Vulkan instance and opens the best adapter,
// preferring discrete over integrated GPUs.
func (d *Device) initStandalone() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("wgpu: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("wgpu: create instance: %w", err)
	}
	d.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		d.instance = nil
		return fmt.Errorf("wgpu: no GPU adapters found")
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		for i := range adapters {
			if adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
				selected = &adapters[i]
				break
			}
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		d.instance = nil
		return fmt.Errorf("wgpu: open device: %w", err)
	}
	d.dev = openDev.Device
	d.queue = openDev.Queue

	d.logger().Info("wgpu: GPU initialized", "adapter", selected.Info.Name)
	return nil
}

// SetLogger sets the device logger. glim propagates its package logger
// here when the device is adopted by a context.
func (d *Device) SetLogger(l *slog.Logger) {
	d.log = l
}

func (d *Device) logger() *slog.Logger {
	if d.log != nil {
		return d.log
	}
	return slog.Default()
}

func (d *Device) alloc() glim.NativeID {
	d.nextID++
	return d.nextID
}

// Release implements glim.Device. All resources still alive are
// destroyed; a shared device and instance are left to their owner.
func (d *Device) Release() {
	d.pipelines.destroyAll()

	for id := range d.programs {
		d.DestroyProgram(id)
	}
	for id := range d.framebuffers {
		d.DestroyFramebuffer(id)
	}
	for id := range d.textures {
		d.DestroyTexture(id)
	}
	for id := range d.buffers {
		d.DestroyBuffer(id)
	}
	for k, s := range d.samplers {
		d.dev.DestroySampler(s)
		delete(d.samplers, k)
	}

	if !d.external {
		if d.dev != nil {
			d.dev.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.dev = nil
	d.queue = nil
	d.instance = nil
}
