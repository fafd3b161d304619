package wgpu

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/gogpu/glim"
)

const testModule = `
struct Uniforms {
    transform: mat3x3<f32>,
    tint: vec4<f32>,
    weights: array<f32, 4>,
}
@group(0) @binding(0) var<uniform> uniforms: Uniforms;
@group(0) @binding(1) var atlas: texture_2d<f32>;
@group(0) @binding(2) var atlas_sampler: sampler;

@vertex
fn vs_main(@location(0) pos: vec2<f32>, @location(1) uv: vec2<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(pos, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return uniforms.tint;
}
`

func TestJoinSources(t *testing.T) {
	if got := joinSources("a", ""); got != "a" {
		t.Fatalf("empty fragment: %q", got)
	}
	if got := joinSources("a", "a"); got != "a" {
		t.Fatalf("identical sources: %q", got)
	}
	if got := joinSources("a", "b"); got != "a\nb" {
		t.Fatalf("distinct sources: %q", got)
	}
}

func TestScanModule(t *testing.T) {
	m, err := scanModule(testModule)
	if err != nil {
		t.Fatalf("scanModule: %v", err)
	}

	if len(m.attrs) != 2 {
		t.Fatalf("attrs = %+v, want 2", m.attrs)
	}
	if m.attrs[0].Name != "pos" || m.attrs[0].Location != 0 || m.attrs[0].Components != 2 {
		t.Fatalf("attrs[0] = %+v", m.attrs[0])
	}
	if m.attrs[1].Name != "uv" || m.attrs[1].Location != 1 {
		t.Fatalf("attrs[1] = %+v", m.attrs[1])
	}

	// mat3x3 occupies [0,48), vec4 [48,64), array<f32,4> has
	// 16-byte element strides so it occupies [64,128).
	wantOffsets := map[string]int{"transform": 0, "tint": 48, "weights": 64}
	for name, want := range wantOffsets {
		slot, ok := m.slots[name]
		if !ok {
			t.Fatalf("uniform %s missing from %+v", name, m.uniforms)
		}
		if slot.offset != want {
			t.Errorf("%s offset = %d, want %d", name, slot.offset, want)
		}
	}
	if m.slots["weights"].u.Count != 4 {
		t.Errorf("weights count = %d, want 4", m.slots["weights"].u.Count)
	}
	if m.blockSize != 128 {
		t.Errorf("blockSize = %d, want 128", m.blockSize)
	}

	if len(m.textures) != 1 {
		t.Fatalf("textures = %+v, want 1", m.textures)
	}
	tex := m.textures[0]
	if tex.name != "atlas" || tex.binding != 1 || tex.samplerBinding != 2 || tex.unit != -1 {
		t.Fatalf("texture decl = %+v", tex)
	}
	if slot := m.slots["atlas"]; slot == nil || slot.texture != 0 || slot.offset != -1 {
		t.Fatalf("atlas slot = %+v", slot)
	}
}

func TestScanModuleAttributesSortedByLocation(t *testing.T) {
	src := `
@vertex
fn vs_main(@location(2) b: f32, @location(0) a: vec3<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(a, b);
}
@fragment
fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(); }
`
	m, err := scanModule(src)
	if err != nil {
		t.Fatalf("scanModule: %v", err)
	}
	if m.attrs[0].Name != "a" || m.attrs[1].Name != "b" {
		t.Fatalf("attrs = %+v, want sorted by location", m.attrs)
	}
	if m.attrs[0].Components != 3 || m.attrs[1].Components != 1 {
		t.Fatalf("attrs = %+v", m.attrs)
	}
}

func TestScanModuleErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		stage glim.ShaderStage
	}{
		{
			name:  "missing vertex entry",
			src:   "@fragment\nfn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(); }",
			stage: glim.StageVertex,
		},
		{
			name:  "missing fragment entry",
			src:   "@vertex\nfn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(); }",
			stage: glim.StageFragment,
		},
		{
			name: "uniform at wrong binding",
			src: `
struct U { x: f32, }
@group(0) @binding(3) var<uniform> u: U;
@vertex
fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(); }
@fragment
fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(); }
`,
			stage: glim.StageLink,
		},
		{
			name: "uniform struct missing",
			src: `
@group(0) @binding(0) var<uniform> u: Nowhere;
@vertex
fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(); }
@fragment
fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(); }
`,
			stage: glim.StageLink,
		},
		{
			name: "texture without sampler",
			src: `
@group(0) @binding(1) var tex: texture_2d<f32>;
@vertex
fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(); }
@fragment
fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(); }
`,
			stage: glim.StageLink,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scanModule(tt.src)
			var serr *glim.ShaderError
			if !errors.As(err, &serr) {
				t.Fatalf("scanModule = %v, want *glim.ShaderError", err)
			}
			if serr.Stage != tt.stage {
				t.Fatalf("stage = %v, want %v (log %q)", serr.Stage, tt.stage, serr.Log)
			}
		})
	}
}

func TestScanModuleIgnoresComments(t *testing.T) {
	src := strings.ReplaceAll(testModule,
		"@group(0) @binding(1) var atlas: texture_2d<f32>;",
		"/* @group(0) @binding(9) var ghost: texture_2d<f32>; */\n// @location(7) phantom: f32\n@group(0) @binding(1) var atlas: texture_2d<f32>;")
	m, err := scanModule(src)
	if err != nil {
		t.Fatalf("scanModule: %v", err)
	}
	if len(m.textures) != 1 || m.textures[0].name != "atlas" {
		t.Fatalf("textures = %+v, comments leaked into the scan", m.textures)
	}
	if len(m.attrs) != 2 {
		t.Fatalf("attrs = %+v", m.attrs)
	}
}

func TestUniformTypeFromWGSL(t *testing.T) {
	tests := []struct {
		src   string
		typ   glim.UniformType
		count int
		fails bool
	}{
		{src: "f32", typ: glim.UniformFloat, count: 1},
		{src: "vec3<f32>", typ: glim.UniformVec3, count: 1},
		{src: "mat4x4<f32>", typ: glim.UniformMat4, count: 1},
		{src: "vec2<i32>", typ: glim.UniformIVec2, count: 1},
		{src: "vec2<u32>", typ: glim.UniformIVec2, count: 1},
		{src: "array<f32, 8>", typ: glim.UniformFloat, count: 8},
		{src: "array<i32,3>", typ: glim.UniformInt, count: 3},
		{src: "array<f32>", fails: true},
		{src: "array<f32, 0>", fails: true},
		{src: "bool", fails: true},
		{src: "texture_2d<f32>", fails: true},
	}
	for _, tt := range tests {
		typ, count, err := uniformTypeFromWGSL(tt.src)
		if tt.fails {
			if err == nil {
				t.Errorf("%q accepted as %v x%d", tt.src, typ, count)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", tt.src, err)
			continue
		}
		if typ != tt.typ || count != tt.count {
			t.Errorf("%q = %v x%d, want %v x%d", tt.src, typ, count, tt.typ, tt.count)
		}
	}
}

func TestUniformLayout(t *testing.T) {
	tests := []struct {
		typ         glim.UniformType
		align, size int
	}{
		{glim.UniformFloat, 4, 4},
		{glim.UniformVec2, 8, 8},
		{glim.UniformVec3, 16, 12},
		{glim.UniformVec4, 16, 16},
		{glim.UniformMat2, 8, 16},
		{glim.UniformMat3, 16, 48},
		{glim.UniformMat4, 16, 64},
	}
	for _, tt := range tests {
		align, size := uniformLayout(tt.typ)
		if align != tt.align || size != tt.size {
			t.Errorf("%v layout = (%d,%d), want (%d,%d)", tt.typ, align, size, tt.align, tt.size)
		}
	}
}

func TestPackUniformFloats(t *testing.T) {
	block := make([]byte, 32)
	v := glim.Vec3(1.5, -2, 3)
	packUniform(block, 8, glim.UniformVec3, &v)

	want := []float32{1.5, -2, 3}
	for i, f := range want {
		got := math.Float32frombits(binary.LittleEndian.Uint32(block[8+i*4:]))
		if got != f {
			t.Fatalf("component %d = %v, want %v", i, got, f)
		}
	}
	for _, i := range []int{0, 4, 20} {
		if binary.LittleEndian.Uint32(block[i:]) != 0 {
			t.Fatalf("byte offset %d touched outside the value", i)
		}
	}
}

func TestPackUniformMat3ColumnStrides(t *testing.T) {
	block := make([]byte, 48)
	v := glim.Mat3([9]float32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	packUniform(block, 0, glim.UniformMat3, &v)

	// Columns land at 16-byte strides with a padding float after each.
	readAt := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(block[off:]))
	}
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			want := float32(col*3 + row + 1)
			if got := readAt(col*16 + row*4); got != want {
				t.Fatalf("col %d row %d = %v, want %v", col, row, got, want)
			}
		}
		if got := readAt(col*16 + 12); got != 0 {
			t.Fatalf("col %d padding = %v, want 0", col, got)
		}
	}
}

func TestPackUniformInts(t *testing.T) {
	block := make([]byte, 16)
	v := glim.IVec2(-1, 7)
	packUniform(block, 4, glim.UniformIVec2, &v)

	if got := int32(binary.LittleEndian.Uint32(block[4:])); got != -1 {
		t.Fatalf("x = %d, want -1", got)
	}
	if got := int32(binary.LittleEndian.Uint32(block[8:])); got != 7 {
		t.Fatalf("y = %d, want 7", got)
	}
}

func TestRoundUp(t *testing.T) {
	tests := []struct{ v, align, want int }{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{17, 4, 20},
		{48, 16, 48},
	}
	for _, tt := range tests {
		if got := roundUp(tt.v, tt.align); got != tt.want {
			t.Errorf("roundUp(%d,%d) = %d, want %d", tt.v, tt.align, got, tt.want)
		}
	}
}
