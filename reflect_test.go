package glim_test

import (
	"errors"
	"testing"

	"github.com/gogpu/glim"
)

func TestReflectSource(t *testing.T) {
	vertex := `
#version 100
// position input
attribute vec2 pos;
attribute vec4 color; /* per-vertex tint */
uniform mat3 transform;
void main() {}
`
	fragment := `
uniform mat3 transform;
uniform sampler2D atlas;
uniform float weights[4];
void main() {}
`
	attrs, uniforms, err := glim.ReflectSource(vertex, fragment)
	if err != nil {
		t.Fatalf("ReflectSource: %v", err)
	}

	wantAttrs := []glim.Attribute{
		{Name: "pos", Location: 0, Type: glim.AttrFloat, Components: 2},
		{Name: "color", Location: 1, Type: glim.AttrFloat, Components: 4},
	}
	if len(attrs) != len(wantAttrs) {
		t.Fatalf("attrs = %+v, want %+v", attrs, wantAttrs)
	}
	for i := range wantAttrs {
		if attrs[i] != wantAttrs[i] {
			t.Errorf("attr %d = %+v, want %+v", i, attrs[i], wantAttrs[i])
		}
	}

	wantUniforms := []glim.Uniform{
		{Name: "transform", Location: 0, Type: glim.UniformMat3, Count: 1},
		{Name: "atlas", Location: 1, Type: glim.UniformSampler, Count: 1},
		{Name: "weights", Location: 2, Type: glim.UniformFloat, Count: 4},
	}
	if len(uniforms) != len(wantUniforms) {
		t.Fatalf("uniforms = %+v, want %+v", uniforms, wantUniforms)
	}
	for i := range wantUniforms {
		if uniforms[i] != wantUniforms[i] {
			t.Errorf("uniform %d = %+v, want %+v", i, uniforms[i], wantUniforms[i])
		}
	}
}

func TestReflectSourceSharedUniformDeclaredOnce(t *testing.T) {
	_, uniforms, err := glim.ReflectSource(
		"uniform vec4 tint;\nvoid main() {}",
		"uniform vec4 tint;\nvoid main() {}",
	)
	if err != nil {
		t.Fatalf("ReflectSource: %v", err)
	}
	if len(uniforms) != 1 {
		t.Fatalf("shared uniform reflected %d times", len(uniforms))
	}
}

func TestReflectSourceTypeConflict(t *testing.T) {
	_, _, err := glim.ReflectSource(
		"uniform vec4 tint;\nvoid main() {}",
		"uniform vec3 tint;\nvoid main() {}",
	)
	var serr *glim.ShaderError
	if !errors.As(err, &serr) {
		t.Fatalf("conflicting declarations = %v, want *ShaderError", err)
	}
	if serr.Stage != glim.StageLink {
		t.Fatalf("stage = %v, want link", serr.Stage)
	}
}

func TestReflectSourceUnsupportedTypes(t *testing.T) {
	_, _, err := glim.ReflectSource("attribute mat4 bad;\nvoid main() {}", "")
	var serr *glim.ShaderError
	if !errors.As(err, &serr) || serr.Stage != glim.StageVertex {
		t.Fatalf("bad attribute = %v, want vertex-stage *ShaderError", err)
	}

	_, _, err = glim.ReflectSource("", "uniform bool flag;\nvoid main() {}")
	if !errors.As(err, &serr) || serr.Stage != glim.StageFragment {
		t.Fatalf("bad uniform = %v, want fragment-stage *ShaderError", err)
	}
}

func TestReflectSourceIgnoresCommentsAndDirectives(t *testing.T) {
	vertex := `
#define FOO uniform vec4 nope;
// attribute vec2 ghost;
/* uniform float phantom; */
attribute float real;
void main() {}
`
	attrs, uniforms, err := glim.ReflectSource(vertex, "")
	if err != nil {
		t.Fatalf("ReflectSource: %v", err)
	}
	if len(attrs) != 1 || attrs[0].Name != "real" {
		t.Fatalf("attrs = %+v, want only real", attrs)
	}
	if len(uniforms) != 0 {
		t.Fatalf("uniforms = %+v, want none", uniforms)
	}
}
