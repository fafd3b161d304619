package glim_test

import (
	"errors"
	"testing"

	"github.com/gogpu/glim"
	"github.com/gogpu/glim/backend/trace"
)

const plainVertexSrc = `
attribute vec2 pos;
uniform mat3 transform;
void main() {}
`

const plainFragmentSrc = `
uniform vec4 tint;
void main() {}
`

func newTestRegistry(t *testing.T) (*glim.ResourceRegistry, *trace.Device) {
	t.Helper()
	dev := trace.New()
	return glim.NewRegistry(dev), dev
}

func TestBufferLifecycle(t *testing.T) {
	reg, dev := newTestRegistry(t)

	key, err := reg.CreateBuffer(glim.BufferVertex, 16, glim.UsageStatic)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if size, err := reg.BufferSize(key); err != nil || size != 16 {
		t.Fatalf("BufferSize = %d, %v; want 16, nil", size, err)
	}

	if err := reg.WriteBuffer(key, 4, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteBuffer: %v", err)
	}
	contents, err := reg.BufferContents(key)
	if err != nil {
		t.Fatalf("BufferContents: %v", err)
	}
	want := []byte{0, 0, 0, 0, 1, 2, 3, 4, 0, 0, 0, 0, 0, 0, 0, 0}
	if string(contents) != string(want) {
		t.Fatalf("contents = %v, want %v", contents, want)
	}
	if got := dev.Count("BufferSubData"); got != 1 {
		t.Fatalf("BufferSubData count = %d, want 1", got)
	}

	if err := reg.DestroyBuffer(key); err != nil {
		t.Fatalf("DestroyBuffer: %v", err)
	}
	if got := dev.Count("DestroyBuffer"); got != 1 {
		t.Fatalf("DestroyBuffer count = %d, want 1", got)
	}
}

func TestStaleHandleAfterDestroy(t *testing.T) {
	reg, _ := newTestRegistry(t)

	key, err := reg.CreateBuffer(glim.BufferVertex, 8, glim.UsageStatic)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := reg.DestroyBuffer(key); err != nil {
		t.Fatalf("DestroyBuffer: %v", err)
	}

	if _, err := reg.BufferSize(key); !errors.Is(err, glim.ErrStaleHandle) {
		t.Fatalf("BufferSize after destroy = %v, want ErrStaleHandle", err)
	}
	if err := reg.WriteBuffer(key, 0, []byte{1}); !errors.Is(err, glim.ErrStaleHandle) {
		t.Fatalf("WriteBuffer after destroy = %v, want ErrStaleHandle", err)
	}
	if err := reg.DestroyBuffer(key); !errors.Is(err, glim.ErrStaleHandle) {
		t.Fatalf("double destroy = %v, want ErrStaleHandle", err)
	}
}

func TestSlotReuseDoesNotResurrectOldKey(t *testing.T) {
	reg, _ := newTestRegistry(t)

	old, err := reg.CreateBuffer(glim.BufferVertex, 8, glim.UsageStatic)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := reg.DestroyBuffer(old); err != nil {
		t.Fatalf("DestroyBuffer: %v", err)
	}

	// The freed slot is recycled; the old key must stay stale.
	fresh, err := reg.CreateBuffer(glim.BufferVertex, 8, glim.UsageStatic)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if old == fresh {
		t.Fatal("recycled slot produced an identical key")
	}
	if _, err := reg.BufferSize(old); !errors.Is(err, glim.ErrStaleHandle) {
		t.Fatalf("old key after reuse = %v, want ErrStaleHandle", err)
	}
	if _, err := reg.BufferSize(fresh); err != nil {
		t.Fatalf("fresh key: %v", err)
	}
}

func TestKeyKindMismatch(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tex, err := reg.CreateTexture(glim.DefaultTextureInfo(4, 4))
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	if _, err := reg.BufferSize(tex); !errors.Is(err, glim.ErrNotFound) {
		t.Fatalf("texture key in buffer table = %v, want ErrNotFound", err)
	}
}

func TestWriteBufferOverflow(t *testing.T) {
	reg, dev := newTestRegistry(t)

	key, err := reg.CreateBuffer(glim.BufferVertex, 8, glim.UsageStatic)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	dev.ResetTrace()

	cases := []struct {
		name   string
		offset int
		data   []byte
	}{
		{"past end", 4, make([]byte, 8)},
		{"negative offset", -1, []byte{1}},
		{"just past", 8, []byte{1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := reg.WriteBuffer(key, tc.offset, tc.data); !errors.Is(err, glim.ErrBufferOverflow) {
				t.Fatalf("WriteBuffer = %v, want ErrBufferOverflow", err)
			}
		})
	}
	if got := dev.Count("BufferSubData"); got != 0 {
		t.Fatalf("rejected writes reached the device %d times", got)
	}
}

func TestResizeBufferPreservesPrefix(t *testing.T) {
	reg, dev := newTestRegistry(t)

	key, err := reg.CreateBuffer(glim.BufferVertex, 12, glim.UsageStatic)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if err := reg.WriteBuffer(key, 0, data); err != nil {
		t.Fatalf("WriteBuffer: %v", err)
	}

	// Grow 12 -> 24: the old bytes survive, the tail is zero.
	if err := reg.ResizeBuffer(key, 24); err != nil {
		t.Fatalf("ResizeBuffer: %v", err)
	}
	if size, _ := reg.BufferSize(key); size != 24 {
		t.Fatalf("size after grow = %d, want 24", size)
	}
	contents, _ := reg.BufferContents(key)
	for i, b := range data {
		if contents[i] != b {
			t.Fatalf("byte %d = %d after grow, want %d", i, contents[i], b)
		}
	}
	for i := 12; i < 24; i++ {
		if contents[i] != 0 {
			t.Fatalf("grown byte %d = %d, want 0", i, contents[i])
		}
	}

	if got := dev.Count("BufferData"); got != 1 {
		t.Fatalf("grow issued %d BufferData calls, want 1", got)
	}

	if err := reg.ResizeBuffer(key, 6); err != nil {
		t.Fatalf("ResizeBuffer shrink: %v", err)
	}
	contents, _ = reg.BufferContents(key)
	if string(contents) != string(data[:6]) {
		t.Fatalf("contents after shrink = %v, want %v", contents, data[:6])
	}
}

func TestResizeBufferSameSizeIsNoop(t *testing.T) {
	reg, dev := newTestRegistry(t)

	key, err := reg.CreateBuffer(glim.BufferVertex, 8, glim.UsageStatic)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	dev.ResetTrace()
	if err := reg.ResizeBuffer(key, 8); err != nil {
		t.Fatalf("ResizeBuffer: %v", err)
	}
	if got := dev.Count("BufferData"); got != 0 {
		t.Fatalf("same-size resize issued %d BufferData calls", got)
	}
}

func TestWriteTextureValidation(t *testing.T) {
	reg, dev := newTestRegistry(t)

	key, err := reg.CreateTexture(glim.DefaultTextureInfo(4, 4))
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	dev.ResetTrace()

	if err := reg.WriteTexture(key, 2, 2, 4, 4, make([]byte, 64)); !errors.Is(err, glim.ErrInvalidDimensions) {
		t.Fatalf("out-of-bounds region = %v, want ErrInvalidDimensions", err)
	}
	if err := reg.WriteTexture(key, 0, 0, 2, 2, make([]byte, 4)); !errors.Is(err, glim.ErrBufferOverflow) {
		t.Fatalf("short pixel data = %v, want ErrBufferOverflow", err)
	}
	if got := dev.Count("WriteTexture"); got != 0 {
		t.Fatalf("rejected uploads reached the device %d times", got)
	}

	if err := reg.WriteTexture(key, 1, 1, 2, 2, make([]byte, 16)); err != nil {
		t.Fatalf("valid upload: %v", err)
	}
}

func TestCreateBufferRejectsBadSize(t *testing.T) {
	reg, _ := newTestRegistry(t)
	for _, size := range []int{0, -4} {
		if _, err := reg.CreateBuffer(glim.BufferVertex, size, glim.UsageStatic); !errors.Is(err, glim.ErrInvalidDimensions) {
			t.Fatalf("size %d = %v, want ErrInvalidDimensions", size, err)
		}
	}
}

func TestShaderInterfaceReflection(t *testing.T) {
	reg, _ := newTestRegistry(t)

	key, err := reg.CreateShader(plainVertexSrc, plainFragmentSrc)
	if err != nil {
		t.Fatalf("CreateShader: %v", err)
	}
	attrs, uniforms, err := reg.ShaderInterface(key)
	if err != nil {
		t.Fatalf("ShaderInterface: %v", err)
	}
	if len(attrs) != 1 || attrs[0].Name != "pos" || attrs[0].Components != 2 {
		t.Fatalf("attrs = %+v, want one vec2 pos", attrs)
	}
	if len(uniforms) != 2 {
		t.Fatalf("uniforms = %+v, want transform and tint", uniforms)
	}

	if err := reg.DestroyShader(key); err != nil {
		t.Fatalf("DestroyShader: %v", err)
	}
	if _, _, err := reg.ShaderInterface(key); !errors.Is(err, glim.ErrStaleHandle) {
		t.Fatalf("interface after destroy = %v, want ErrStaleHandle", err)
	}
}

func TestRegistryClose(t *testing.T) {
	reg, dev := newTestRegistry(t)

	buf, _ := reg.CreateBuffer(glim.BufferVertex, 8, glim.UsageStatic)
	tex, _ := reg.CreateTexture(glim.DefaultTextureInfo(2, 2))
	reg.Close()

	if got := dev.Count("DestroyBuffer"); got != 1 {
		t.Errorf("DestroyBuffer count = %d, want 1", got)
	}
	if got := dev.Count("DestroyTexture"); got != 1 {
		t.Errorf("DestroyTexture count = %d, want 1", got)
	}
	if _, err := reg.BufferSize(buf); err == nil {
		t.Error("buffer key survived Close")
	}
	if _, err := reg.TextureInfo(tex); err == nil {
		t.Error("texture key survived Close")
	}

	// The registry stays usable after Close.
	if _, err := reg.CreateBuffer(glim.BufferVertex, 8, glim.UsageStatic); err != nil {
		t.Fatalf("CreateBuffer after Close: %v", err)
	}
}
