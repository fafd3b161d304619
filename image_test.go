package glim_test

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/glim"
	"github.com/gogpu/glim/backend/trace"
)

func TestImageUpload(t *testing.T) {
	dev := trace.New()
	reg := glim.NewRegistry(dev)

	img, err := glim.NewImage(reg, glim.DefaultTextureInfo(2, 2))
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	pixels := []byte{
		255, 0, 0, 255, 0, 255, 0, 255,
		0, 0, 255, 255, 255, 255, 255, 255,
	}
	if err := img.SetPixels(0, 0, 2, 2, pixels); err != nil {
		t.Fatalf("SetPixels: %v", err)
	}
	if got := dev.TextureBytes(1); string(got) != string(pixels) {
		t.Fatalf("texture store = %v, want %v", got, pixels)
	}

	if err := img.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestImageRejectsDepthFormat(t *testing.T) {
	reg := glim.NewRegistry(trace.New())
	info := glim.DefaultTextureInfo(4, 4)
	info.Format = glim.PixelDepth24Stencil8
	if _, err := glim.NewImage(reg, info); !errors.Is(err, glim.ErrInvalidDimensions) {
		t.Fatalf("NewImage = %v, want ErrInvalidDimensions", err)
	}
}

func TestNewImageFromImage(t *testing.T) {
	dev := trace.New()
	reg := glim.NewRegistry(dev)

	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.SetRGBA(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetRGBA(1, 0, color.RGBA{R: 40, G: 50, B: 60, A: 255})

	img, err := glim.NewImageFromImage(reg, src)
	if err != nil {
		t.Fatalf("NewImageFromImage: %v", err)
	}
	info := img.TextureInfo()
	if info.Width != 2 || info.Height != 1 || info.Format != glim.PixelRGBA8 {
		t.Fatalf("info = %+v", info)
	}
	want := []byte{10, 20, 30, 255, 40, 50, 60, 255}
	if got := dev.TextureBytes(1); string(got) != string(want) {
		t.Fatalf("texture store = %v, want %v", got, want)
	}
}

func TestImageSetImageRequiresRGBA(t *testing.T) {
	reg := glim.NewRegistry(trace.New())
	info := glim.DefaultTextureInfo(2, 2)
	info.Format = glim.PixelAlpha8
	img, err := glim.NewImage(reg, info)
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	if err := img.SetImage(image.NewRGBA(image.Rect(0, 0, 2, 2))); !errors.Is(err, glim.ErrInvalidDimensions) {
		t.Fatalf("SetImage on alpha8 = %v, want ErrInvalidDimensions", err)
	}
}
