package glim

import "fmt"

// PixelFormat is the storage format of a texture.
type PixelFormat uint8

const (
	// PixelRGBA8 is 8-bit-per-channel RGBA.
	PixelRGBA8 PixelFormat = iota + 1
	// PixelAlpha8 is a single 8-bit coverage channel.
	PixelAlpha8
	// PixelDepth24Stencil8 is a combined depth/stencil format, used for
	// canvas depth attachments. It cannot be uploaded to.
	PixelDepth24Stencil8
)

// BytesPerPixel returns the packed byte size of one pixel.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelRGBA8:
		return 4
	case PixelAlpha8:
		return 1
	case PixelDepth24Stencil8:
		return 4
	default:
		return 0
	}
}

// String returns the format name.
func (f PixelFormat) String() string {
	switch f {
	case PixelRGBA8:
		return "rgba8"
	case PixelAlpha8:
		return "alpha8"
	case PixelDepth24Stencil8:
		return "depth24stencil8"
	default:
		return fmt.Sprintf("PixelFormat(%d)", uint8(f))
	}
}

// FilterMode selects how a texture is sampled when scaled.
type FilterMode uint8

const (
	// FilterNearest samples the nearest texel.
	FilterNearest FilterMode = iota + 1
	// FilterLinear interpolates between texels.
	FilterLinear
)

// WrapMode selects how coordinates outside [0,1] sample.
type WrapMode uint8

const (
	// WrapClampToEdge clamps to the edge texel.
	WrapClampToEdge WrapMode = iota + 1
	// WrapRepeat tiles the texture.
	WrapRepeat
	// WrapMirroredRepeat tiles with mirroring.
	WrapMirroredRepeat
)

// TextureInfo describes a texture's storage and sampling parameters.
type TextureInfo struct {
	Width  int
	Height int
	Format PixelFormat

	MinFilter FilterMode
	MagFilter FilterMode
	WrapU     WrapMode
	WrapV     WrapMode

	// Mipmaps enables mipmap storage and generation on upload.
	Mipmaps bool
}

// DefaultTextureInfo returns an RGBA8 texture description with linear
// filtering and edge clamping.
func DefaultTextureInfo(width, height int) TextureInfo {
	return TextureInfo{
		Width:     width,
		Height:    height,
		Format:    PixelRGBA8,
		MinFilter: FilterLinear,
		MagFilter: FilterLinear,
		WrapU:     WrapClampToEdge,
		WrapV:     WrapClampToEdge,
	}
}

// Texture is anything that can be bound as a shader sampler input:
// an uploaded [Image], or a [Canvas] whose color attachment doubles as
// a sampling source once rendering into it is done.
type Texture interface {
	// TextureKey returns the registry key of the underlying texture.
	TextureKey() ResourceKey
	// TextureInfo returns the texture's dimensions and sampling
	// parameters.
	TextureInfo() TextureInfo
}
