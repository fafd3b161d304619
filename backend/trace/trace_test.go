package trace

import (
	"errors"
	"testing"

	"github.com/gogpu/glim"
)

func TestCallRecording(t *testing.T) {
	dev := New()

	id, err := dev.CreateBuffer(glim.BufferVertex, 8, glim.UsageStatic)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	dev.BindBuffer(glim.BufferVertex, id)
	dev.BindBuffer(glim.BufferVertex, id)

	if got := dev.Count("BindBuffer"); got != 2 {
		t.Fatalf("BindBuffer count = %d, want 2", got)
	}
	if got := len(dev.Calls); got != 3 {
		t.Fatalf("Calls = %v, want 3 entries", dev.Calls)
	}
	if dev.Calls[0] != "CreateBuffer vertex id=1 size=8" {
		t.Fatalf("first call = %q", dev.Calls[0])
	}

	dev.ResetTrace()
	if len(dev.Calls) != 0 || dev.Count("BindBuffer") != 0 {
		t.Fatal("ResetTrace left state behind")
	}
	// The resource stores survive a trace reset.
	if dev.BufferBytes(id) == nil {
		t.Fatal("ResetTrace dropped the buffer store")
	}
}

func TestBufferStore(t *testing.T) {
	dev := New()
	id, _ := dev.CreateBuffer(glim.BufferVertex, 4, glim.UsageStatic)

	if err := dev.BufferSubData(glim.BufferVertex, id, 1, []byte{7, 8}); err != nil {
		t.Fatalf("BufferSubData: %v", err)
	}
	if got := dev.BufferBytes(id); string(got) != string([]byte{0, 7, 8, 0}) {
		t.Fatalf("store = %v", got)
	}

	if err := dev.BufferSubData(glim.BufferVertex, id, 3, []byte{1, 2}); err == nil {
		t.Fatal("out-of-range BufferSubData accepted")
	}
	if err := dev.BufferSubData(glim.BufferVertex, 99, 0, []byte{1}); err == nil {
		t.Fatal("unknown buffer accepted")
	}

	// BufferData re-specifies contents and size.
	if err := dev.BufferData(glim.BufferVertex, id, []byte{9, 9, 9, 9, 9, 9}, glim.UsageStatic); err != nil {
		t.Fatalf("BufferData: %v", err)
	}
	if got := dev.BufferBytes(id); len(got) != 6 {
		t.Fatalf("store after BufferData = %v, want 6 bytes", got)
	}
}

func TestTextureStoreRegionWrite(t *testing.T) {
	dev := New()
	info := glim.DefaultTextureInfo(4, 2)
	id, _ := dev.CreateTexture(info)

	// Write a 2x1 region at (1,1): row-major into the 4-wide store.
	pixels := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := dev.WriteTexture(id, 1, 1, 2, 1, pixels); err != nil {
		t.Fatalf("WriteTexture: %v", err)
	}
	store := dev.TextureBytes(id)
	offset := (1*4 + 1) * 4
	if string(store[offset:offset+8]) != string(pixels) {
		t.Fatalf("region bytes = %v, want %v", store[offset:offset+8], pixels)
	}
	for i := 0; i < offset; i++ {
		if store[i] != 0 {
			t.Fatalf("byte %d touched outside the region", i)
		}
	}
}

func TestCreateProgramReflects(t *testing.T) {
	dev := New()
	_, attrs, uniforms, err := dev.CreateProgram(
		"attribute vec3 pos;\nuniform mat4 mvp;\nvoid main() {}",
		"uniform sampler2D tex;\nvoid main() {}")
	if err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	if len(attrs) != 1 || attrs[0].Components != 3 {
		t.Fatalf("attrs = %+v", attrs)
	}
	if len(uniforms) != 2 {
		t.Fatalf("uniforms = %+v", uniforms)
	}
}

func TestFailProgram(t *testing.T) {
	dev := New()
	boom := &glim.ShaderError{Stage: glim.StageVertex, Log: "nope"}
	dev.FailProgram = boom

	_, _, _, err := dev.CreateProgram("void main() {}", "void main() {}")
	var serr *glim.ShaderError
	if !errors.As(err, &serr) || serr != boom {
		t.Fatalf("CreateProgram = %v, want injected ShaderError", err)
	}
}

func TestFramebufferValidation(t *testing.T) {
	dev := New()
	fb, _ := dev.CreateFramebuffer()

	if err := dev.ValidateFramebuffer(fb); err == nil {
		t.Fatal("empty framebuffer validated")
	}
	tex, _ := dev.CreateTexture(glim.DefaultTextureInfo(4, 4))
	if err := dev.AttachTexture(fb, glim.AttachColor0, tex); err != nil {
		t.Fatalf("AttachTexture: %v", err)
	}
	if err := dev.ValidateFramebuffer(fb); err != nil {
		t.Fatalf("ValidateFramebuffer: %v", err)
	}
	if err := dev.AttachTexture(99, glim.AttachColor0, tex); err == nil {
		t.Fatal("unknown framebuffer accepted")
	}
}

func TestReleased(t *testing.T) {
	dev := New()
	if dev.Released() {
		t.Fatal("fresh device reports released")
	}
	dev.Release()
	if !dev.Released() {
		t.Fatal("Release not recorded")
	}
}
