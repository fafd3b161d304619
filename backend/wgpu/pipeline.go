package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glim"
)

// pipelineKey captures everything a render pipeline bakes in. Two
// draws with equal keys share a pipeline.
type pipelineKey struct {
	program     glim.NativeID
	mode        glim.DrawMode
	colorFormat gputypes.TextureFormat
	depthFormat gputypes.TextureFormat
	hasDepthTex bool

	blend    glim.BlendState
	hasBlend bool

	depth    glim.DepthState
	hasDepth bool

	stencil    glim.StencilState
	hasStencil bool

	layoutSig string
}

type pipelineEntry struct {
	pipeline hal.RenderPipeline
	atime    int64
}

// pipelineCache is an LRU over created render pipelines with a soft
// limit. Eviction destroys the HAL pipeline.
type pipelineCache struct {
	dev     hal.Device
	entries map[pipelineKey]*pipelineEntry
	limit   int
	tick    int64
}

func newPipelineCache(dev hal.Device, limit int) *pipelineCache {
	return &pipelineCache{
		dev:     dev,
		entries: make(map[pipelineKey]*pipelineEntry),
		limit:   limit,
	}
}

// getOrCreate returns the cached pipeline for key or builds it.
func (c *pipelineCache) getOrCreate(key pipelineKey, create func() (hal.RenderPipeline, error)) (hal.RenderPipeline, error) {
	c.tick++
	if e, ok := c.entries[key]; ok {
		e.atime = c.tick
		return e.pipeline, nil
	}
	p, err := create()
	if err != nil {
		return nil, err
	}
	c.entries[key] = &pipelineEntry{pipeline: p, atime: c.tick}
	if c.limit > 0 && len(c.entries) > c.limit {
		c.evictOldest()
	}
	return p, nil
}

// evictOldest destroys least recently used entries until the cache is
// a quarter under its limit, so eviction does not run on every
// insertion near the boundary.
func (c *pipelineCache) evictOldest() {
	target := c.limit * 3 / 4
	if target < 1 {
		target = 1
	}
	for len(c.entries) > target {
		var oldestKey pipelineKey
		var oldest *pipelineEntry
		for k, e := range c.entries {
			if oldest == nil || e.atime < oldest.atime {
				oldestKey, oldest = k, e
			}
		}
		c.dev.DestroyRenderPipeline(oldest.pipeline)
		delete(c.entries, oldestKey)
	}
}

// dropProgram destroys every pipeline built against a program.
func (c *pipelineCache) dropProgram(id glim.NativeID) {
	for k, e := range c.entries {
		if k.program == id {
			c.dev.DestroyRenderPipeline(e.pipeline)
			delete(c.entries, k)
		}
	}
}

func (c *pipelineCache) destroyAll() {
	for k, e := range c.entries {
		c.dev.DestroyRenderPipeline(e.pipeline)
		delete(c.entries, k)
	}
}

// vertexSlot is one vertex buffer binding slot of a draw: the buffer
// plus the layout of the attributes read from it.
type vertexSlot struct {
	buffer glim.NativeID
	stride int
	step   int
	attrs  []gputypes.VertexAttribute
}

func primitiveTopology(mode glim.DrawMode) (gputypes.PrimitiveTopology, error) {
	switch mode {
	case glim.DrawTriangles:
		return gputypes.PrimitiveTopologyTriangleList, nil
	case glim.DrawTriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip, nil
	case glim.DrawLines:
		return gputypes.PrimitiveTopologyLineList, nil
	case glim.DrawLineStrip:
		return gputypes.PrimitiveTopologyLineStrip, nil
	case glim.DrawPoints:
		return gputypes.PrimitiveTopologyPointList, nil
	default:
		return 0, fmt.Errorf("wgpu: draw mode %s not supported", mode)
	}
}

func blendFactor(f glim.BlendFactor) gputypes.BlendFactor {
	switch f {
	case glim.BlendZero:
		return gputypes.BlendFactorZero
	case glim.BlendSrcColor:
		return gputypes.BlendFactorSrc
	case glim.BlendOneMinusSrcColor:
		return gputypes.BlendFactorOneMinusSrc
	case glim.BlendSrcAlpha:
		return gputypes.BlendFactorSrcAlpha
	case glim.BlendOneMinusSrcAlpha:
		return gputypes.BlendFactorOneMinusSrcAlpha
	case glim.BlendDstColor:
		return gputypes.BlendFactorDst
	case glim.BlendOneMinusDstColor:
		return gputypes.BlendFactorOneMinusDst
	case glim.BlendDstAlpha:
		return gputypes.BlendFactorDstAlpha
	case glim.BlendOneMinusDstAlpha:
		return gputypes.BlendFactorOneMinusDstAlpha
	case glim.BlendConstantColor:
		return gputypes.BlendFactorConstant
	case glim.BlendOneMinusConstantColor:
		return gputypes.BlendFactorOneMinusConstant
	default:
		return gputypes.BlendFactorOne
	}
}

func blendOperation(e glim.BlendEquation) gputypes.BlendOperation {
	switch e {
	case glim.BlendSubtract:
		return gputypes.BlendOperationSubtract
	case glim.BlendReverseSubtract:
		return gputypes.BlendOperationReverseSubtract
	case glim.BlendMin:
		return gputypes.BlendOperationMin
	case glim.BlendMax:
		return gputypes.BlendOperationMax
	default:
		return gputypes.BlendOperationAdd
	}
}

func blendState(b *glim.BlendState) *gputypes.BlendState {
	if b == nil {
		return nil
	}
	return &gputypes.BlendState{
		Color: gputypes.BlendComponent{
			SrcFactor: blendFactor(b.SrcRGB),
			DstFactor: blendFactor(b.DstRGB),
			Operation: blendOperation(b.EqRGB),
		},
		Alpha: gputypes.BlendComponent{
			SrcFactor: blendFactor(b.SrcAlpha),
			DstFactor: blendFactor(b.DstAlpha),
			Operation: blendOperation(b.EqAlpha),
		},
	}
}

func compareFunction(f glim.CompareFunc) gputypes.CompareFunction {
	switch f {
	case glim.CompareNever:
		return gputypes.CompareFunctionNever
	case glim.CompareLess:
		return gputypes.CompareFunctionLess
	case glim.CompareEqual:
		return gputypes.CompareFunctionEqual
	case glim.CompareLessEqual:
		return gputypes.CompareFunctionLessEqual
	case glim.CompareGreater:
		return gputypes.CompareFunctionGreater
	case glim.CompareNotEqual:
		return gputypes.CompareFunctionNotEqual
	case glim.CompareGreaterEqual:
		return gputypes.CompareFunctionGreaterEqual
	default:
		return gputypes.CompareFunctionAlways
	}
}

func stencilOperation(op glim.StencilOp) hal.StencilOperation {
	switch op {
	case glim.StencilZero:
		return hal.StencilOperationZero
	case glim.StencilReplace:
		return hal.StencilOperationReplace
	case glim.StencilIncr:
		return hal.StencilOperationIncrementClamp
	case glim.StencilIncrWrap:
		return hal.StencilOperationIncrementWrap
	case glim.StencilDecr:
		return hal.StencilOperationDecrementClamp
	case glim.StencilDecrWrap:
		return hal.StencilOperationDecrementWrap
	case glim.StencilInvert:
		return hal.StencilOperationInvert
	default:
		return hal.StencilOperationKeep
	}
}

func vertexFormat(t glim.AttributeType, comps int, normalize bool) (gputypes.VertexFormat, error) {
	bad := func() (gputypes.VertexFormat, error) {
		return 0, fmt.Errorf("wgpu: no vertex format for %s x%d (normalize=%t)", t, comps, normalize)
	}
	switch t {
	case glim.AttrFloat:
		switch comps {
		case 1:
			return gputypes.VertexFormatFloat32, nil
		case 2:
			return gputypes.VertexFormatFloat32x2, nil
		case 3:
			return gputypes.VertexFormatFloat32x3, nil
		case 4:
			return gputypes.VertexFormatFloat32x4, nil
		}
	case glim.AttrInt:
		switch comps {
		case 1:
			return gputypes.VertexFormatSint32, nil
		case 2:
			return gputypes.VertexFormatSint32x2, nil
		case 3:
			return gputypes.VertexFormatSint32x3, nil
		case 4:
			return gputypes.VertexFormatSint32x4, nil
		}
	case glim.AttrUnsignedByte:
		switch {
		case comps == 2 && normalize:
			return gputypes.VertexFormatUnorm8x2, nil
		case comps == 4 && normalize:
			return gputypes.VertexFormatUnorm8x4, nil
		case comps == 2:
			return gputypes.VertexFormatUint8x2, nil
		case comps == 4:
			return gputypes.VertexFormatUint8x4, nil
		}
	case glim.AttrByte:
		switch {
		case comps == 2 && normalize:
			return gputypes.VertexFormatSnorm8x2, nil
		case comps == 4 && normalize:
			return gputypes.VertexFormatSnorm8x4, nil
		case comps == 2:
			return gputypes.VertexFormatSint8x2, nil
		case comps == 4:
			return gputypes.VertexFormatSint8x4, nil
		}
	case glim.AttrUnsignedShort:
		switch {
		case comps == 2 && normalize:
			return gputypes.VertexFormatUnorm16x2, nil
		case comps == 4 && normalize:
			return gputypes.VertexFormatUnorm16x4, nil
		case comps == 2:
			return gputypes.VertexFormatUint16x2, nil
		case comps == 4:
			return gputypes.VertexFormatUint16x4, nil
		}
	case glim.AttrShort:
		switch {
		case comps == 2 && normalize:
			return gputypes.VertexFormatSnorm16x2, nil
		case comps == 4 && normalize:
			return gputypes.VertexFormatSnorm16x4, nil
		case comps == 2:
			return gputypes.VertexFormatSint16x2, nil
		case comps == 4:
			return gputypes.VertexFormatSint16x4, nil
		}
	}
	return bad()
}

// buildPipeline creates the render pipeline described by key, using
// the vertex slot layouts resolved for the current draw.
func (d *Device) buildPipeline(prog *programObject, key pipelineKey, slots []vertexSlot) (hal.RenderPipeline, error) {
	topology, err := primitiveTopology(key.mode)
	if err != nil {
		return nil, err
	}

	buffers := make([]gputypes.VertexBufferLayout, len(slots))
	for i, slot := range slots {
		step := gputypes.VertexStepModeVertex
		if slot.step > 0 {
			step = gputypes.VertexStepModeInstance
		}
		buffers[i] = gputypes.VertexBufferLayout{
			ArrayStride: uint64(slot.stride),
			StepMode:    step,
			Attributes:  slot.attrs,
		}
	}

	desc := &hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("glim_pipeline_p%d", key.program),
		Layout: prog.pipeLayout,
		Vertex: hal.VertexState{
			Module:     prog.module,
			EntryPoint: "vs_main",
			Buffers:    buffers,
		},
		Fragment: &hal.FragmentState{
			Module:     prog.module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    key.colorFormat,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: topology,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	}
	if key.hasBlend {
		desc.Fragment.Targets[0].Blend = blendState(&key.blend)
	}

	if key.hasDepthTex {
		ds := &hal.DepthStencilState{
			Format:       key.depthFormat,
			DepthCompare: gputypes.CompareFunctionAlways,
			StencilFront: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
		}
		if key.hasDepth {
			ds.DepthWriteEnabled = key.depth.Write
			ds.DepthCompare = compareFunction(key.depth.Func)
		}
		if key.hasStencil {
			face := hal.StencilFaceState{
				Compare:     compareFunction(key.stencil.Func),
				FailOp:      stencilOperation(key.stencil.Fail),
				DepthFailOp: stencilOperation(key.stencil.DepthFail),
				PassOp:      stencilOperation(key.stencil.Pass),
			}
			ds.StencilFront = face
			ds.StencilBack = face
			ds.StencilReadMask = key.stencil.ReadMask
			ds.StencilWriteMask = key.stencil.WriteMask
		} else {
			ds.StencilBack = ds.StencilFront
		}
		desc.DepthStencil = ds
	}

	return d.dev.CreateRenderPipeline(desc)
}
