package glim

import (
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
)

// Image is a read-only texture uploaded from pixel data. It implements
// [Texture], so it binds as a shader sampler input through the state
// cache like any other texture.
type Image struct {
	reg  *ResourceRegistry
	key  ResourceKey
	info TextureInfo
}

// NewImage creates an empty texture described by info.
func NewImage(reg *ResourceRegistry, info TextureInfo) (*Image, error) {
	if info.Format == PixelDepth24Stencil8 {
		return nil, fmt.Errorf("%w: images cannot use %s", ErrInvalidDimensions, info.Format)
	}
	key, err := reg.CreateTexture(info)
	if err != nil {
		return nil, err
	}
	return &Image{reg: reg, key: key, info: info}, nil
}

// NewImageFromImage creates an RGBA8 texture from any image.Image,
// converting the pixel format on the CPU first.
func NewImageFromImage(reg *ResourceRegistry, src image.Image) (*Image, error) {
	b := src.Bounds()
	img, err := NewImage(reg, DefaultTextureInfo(b.Dx(), b.Dy()))
	if err != nil {
		return nil, err
	}
	if err := img.SetImage(src); err != nil {
		img.Release()
		return nil, err
	}
	return img, nil
}

// TextureKey implements [Texture].
func (i *Image) TextureKey() ResourceKey { return i.key }

// TextureInfo implements [Texture].
func (i *Image) TextureInfo() TextureInfo { return i.info }

// SetPixels uploads tightly packed pixels in the image's format into
// the given region.
func (i *Image) SetPixels(x, y, width, height int, pixels []byte) error {
	return i.reg.WriteTexture(i.key, x, y, width, height, pixels)
}

// SetImage converts src to the image's pixel format and uploads it,
// scaling when the sizes differ.
func (i *Image) SetImage(src image.Image) error {
	if i.info.Format != PixelRGBA8 {
		return fmt.Errorf("%w: SetImage requires %s, image is %s",
			ErrInvalidDimensions, PixelRGBA8, i.info.Format)
	}
	pix := rgbaPixels(src, i.info.Width, i.info.Height)
	return i.SetPixels(0, 0, i.info.Width, i.info.Height, pix)
}

// Release destroys the underlying texture.
func (i *Image) Release() error {
	return i.reg.DestroyTexture(i.key)
}

// rgbaPixels converts src into tightly packed RGBA bytes at the given
// size, scaling with approximate bilinear filtering when needed.
func rgbaPixels(src image.Image, width, height int) []byte {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	sb := src.Bounds()
	if sb.Dx() == width && sb.Dy() == height {
		xdraw.Draw(dst, dst.Bounds(), src, sb.Min, xdraw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, xdraw.Src, nil)
	}
	// image.RGBA keeps rows contiguous at 4*width stride for a
	// zero-origin rect, so Pix is already tightly packed.
	return dst.Pix
}
