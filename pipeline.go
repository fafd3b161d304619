package glim

import "fmt"

// Rect is an integer rectangle in framebuffer coordinates, used for
// viewports and scissor regions.
type Rect struct {
	X, Y, W, H int
}

// String returns a debug representation.
func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}

// Color is a normalized RGBA color.
type Color struct {
	R, G, B, A float32
}

// BlendFactor selects a blend equation input factor.
type BlendFactor uint8

const (
	// BlendZero contributes nothing.
	BlendZero BlendFactor = iota + 1
	// BlendOne passes the input through.
	BlendOne
	// BlendSrcColor multiplies by the source color.
	BlendSrcColor
	// BlendOneMinusSrcColor multiplies by one minus the source color.
	BlendOneMinusSrcColor
	// BlendSrcAlpha multiplies by the source alpha.
	BlendSrcAlpha
	// BlendOneMinusSrcAlpha multiplies by one minus the source alpha.
	BlendOneMinusSrcAlpha
	// BlendDstColor multiplies by the destination color.
	BlendDstColor
	// BlendOneMinusDstColor multiplies by one minus the destination color.
	BlendOneMinusDstColor
	// BlendDstAlpha multiplies by the destination alpha.
	BlendDstAlpha
	// BlendOneMinusDstAlpha multiplies by one minus the destination alpha.
	BlendOneMinusDstAlpha
	// BlendConstantColor multiplies by the constant blend color.
	BlendConstantColor
	// BlendOneMinusConstantColor multiplies by one minus the constant color.
	BlendOneMinusConstantColor
)

// BlendEquation combines the weighted source and destination terms.
type BlendEquation uint8

const (
	// BlendAdd computes src + dst.
	BlendAdd BlendEquation = iota + 1
	// BlendSubtract computes src - dst.
	BlendSubtract
	// BlendReverseSubtract computes dst - src.
	BlendReverseSubtract
	// BlendMin takes the componentwise minimum.
	BlendMin
	// BlendMax takes the componentwise maximum.
	BlendMax
)

// BlendState describes a full blend configuration. Factors and
// equations are split per RGB and alpha channel groups.
type BlendState struct {
	SrcRGB   BlendFactor
	DstRGB   BlendFactor
	SrcAlpha BlendFactor
	DstAlpha BlendFactor
	EqRGB    BlendEquation
	EqAlpha  BlendEquation

	// Constant is the blend color used by the constant-color factors.
	Constant Color
}

// AlphaBlend returns standard non-premultiplied alpha blending.
func AlphaBlend() BlendState {
	return BlendState{
		SrcRGB: BlendSrcAlpha, DstRGB: BlendOneMinusSrcAlpha,
		SrcAlpha: BlendOne, DstAlpha: BlendOneMinusSrcAlpha,
		EqRGB: BlendAdd, EqAlpha: BlendAdd,
	}
}

// PremultipliedBlend returns alpha blending for premultiplied sources.
func PremultipliedBlend() BlendState {
	return BlendState{
		SrcRGB: BlendOne, DstRGB: BlendOneMinusSrcAlpha,
		SrcAlpha: BlendOne, DstAlpha: BlendOneMinusSrcAlpha,
		EqRGB: BlendAdd, EqAlpha: BlendAdd,
	}
}

// AdditiveBlend returns additive blending.
func AdditiveBlend() BlendState {
	return BlendState{
		SrcRGB: BlendSrcAlpha, DstRGB: BlendOne,
		SrcAlpha: BlendZero, DstAlpha: BlendOne,
		EqRGB: BlendAdd, EqAlpha: BlendAdd,
	}
}

// CompareFunc is a comparison used by depth and stencil tests.
type CompareFunc uint8

const (
	// CompareNever always fails.
	CompareNever CompareFunc = iota + 1
	// CompareLess passes when the incoming value is less.
	CompareLess
	// CompareEqual passes on equality.
	CompareEqual
	// CompareLessEqual passes when less than or equal.
	CompareLessEqual
	// CompareGreater passes when the incoming value is greater.
	CompareGreater
	// CompareNotEqual passes on inequality.
	CompareNotEqual
	// CompareGreaterEqual passes when greater than or equal.
	CompareGreaterEqual
	// CompareAlways always passes.
	CompareAlways
)

// DepthState describes the depth test configuration.
type DepthState struct {
	// Func is the depth comparison.
	Func CompareFunc
	// Write enables depth buffer writes.
	Write bool
	// RangeNear and RangeFar map NDC depth into window depth.
	RangeNear float32
	RangeFar  float32
}

// DefaultDepth returns the conventional less-than depth test.
func DefaultDepth() DepthState {
	return DepthState{Func: CompareLess, Write: true, RangeNear: 0, RangeFar: 1}
}

// StencilOp is an action applied to the stencil buffer.
type StencilOp uint8

const (
	// StencilKeep leaves the stencil value unchanged.
	StencilKeep StencilOp = iota + 1
	// StencilZero sets the stencil value to zero.
	StencilZero
	// StencilReplace writes the reference value.
	StencilReplace
	// StencilIncr increments with clamping.
	StencilIncr
	// StencilIncrWrap increments with wrapping.
	StencilIncrWrap
	// StencilDecr decrements with clamping.
	StencilDecr
	// StencilDecrWrap decrements with wrapping.
	StencilDecrWrap
	// StencilInvert bitwise-inverts the stencil value.
	StencilInvert
)

// StencilState describes the stencil test configuration, applied to
// both faces.
type StencilState struct {
	// Func is the stencil comparison.
	Func CompareFunc
	// Ref is the reference value.
	Ref int32
	// ReadMask masks the comparison.
	ReadMask uint32
	// WriteMask masks stencil buffer writes.
	WriteMask uint32
	// Fail runs when the stencil test fails.
	Fail StencilOp
	// DepthFail runs when the stencil test passes but depth fails.
	DepthFail StencilOp
	// Pass runs when both tests pass.
	Pass StencilOp
}

// PipelineSettings carries the per-draw pipeline configuration. Every
// field is optional; a nil field leaves the corresponding state axis
// untouched, so it neither forces a device call nor overrides an
// earlier setting. Target selects the framebuffer to render into; use
// &[DefaultFramebuffer] for the backbuffer and nil to inherit.
type PipelineSettings struct {
	Viewport *Rect
	Scissor  *Rect
	Blend    *BlendState
	Depth    *DepthState
	Stencil  *StencilState
	Target   *ResourceKey

	// ReorderSafe marks the draw as independent of submission order
	// relative to other reorder-safe draws, allowing the DrawList to
	// batch it when batching is enabled. Off by default.
	ReorderSafe bool
}

// Merge returns settings where every field set in override wins and
// unset override fields fall back to s. Neither receiver nor argument
// is modified; the result shares no pointers with either.
func (s PipelineSettings) Merge(override PipelineSettings) PipelineSettings {
	out := s
	if override.Viewport != nil {
		out.Viewport = override.Viewport
	}
	if override.Scissor != nil {
		out.Scissor = override.Scissor
	}
	if override.Blend != nil {
		out.Blend = override.Blend
	}
	if override.Depth != nil {
		out.Depth = override.Depth
	}
	if override.Stencil != nil {
		out.Stencil = override.Stencil
	}
	if override.Target != nil {
		out.Target = override.Target
	}
	out.ReorderSafe = s.ReorderSafe || override.ReorderSafe
	return *out.Clone()
}

// Clone returns a deep copy. DrawList snapshots settings with Clone at
// record time so later mutation of the caller's structs cannot change
// an already recorded command.
func (s *PipelineSettings) Clone() *PipelineSettings {
	if s == nil {
		return &PipelineSettings{}
	}
	out := *s
	if s.Viewport != nil {
		v := *s.Viewport
		out.Viewport = &v
	}
	if s.Scissor != nil {
		v := *s.Scissor
		out.Scissor = &v
	}
	if s.Blend != nil {
		v := *s.Blend
		out.Blend = &v
	}
	if s.Depth != nil {
		v := *s.Depth
		out.Depth = &v
	}
	if s.Stencil != nil {
		v := *s.Stencil
		out.Stencil = &v
	}
	if s.Target != nil {
		v := *s.Target
		out.Target = &v
	}
	return &out
}

// ClearSettings describes a clear operation. Color, Depth and Stencil
// are each optional; only the set planes are cleared. Target selects
// the framebuffer (nil inherits the current one) and Scissor restricts
// the clear region when set.
type ClearSettings struct {
	Color   *Color
	Depth   *float32
	Stencil *int32
	Target  *ResourceKey
	Scissor *Rect
}

// clone returns a deep copy for command snapshotting.
func (s *ClearSettings) clone() ClearSettings {
	var out ClearSettings
	if s == nil {
		return out
	}
	if s.Color != nil {
		v := *s.Color
		out.Color = &v
	}
	if s.Depth != nil {
		v := *s.Depth
		out.Depth = &v
	}
	if s.Stencil != nil {
		v := *s.Stencil
		out.Stencil = &v
	}
	if s.Target != nil {
		v := *s.Target
		out.Target = &v
	}
	if s.Scissor != nil {
		v := *s.Scissor
		out.Scissor = &v
	}
	return out
}
