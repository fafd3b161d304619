package glim_test

import (
	"strings"
	"testing"

	"github.com/gogpu/glim"
)

func TestVertexMeshStride(t *testing.T) {
	_, reg, _ := newDrawEnv(t)

	mesh, err := glim.NewVertexMesh(reg, []glim.VertexFormat{
		{Name: "pos", Type: glim.AttrFloat, Components: 2},
		{Name: "uv", Type: glim.AttrUnsignedShort, Components: 2, Normalize: true},
		{Name: "color", Type: glim.AttrUnsignedByte, Components: 4, Normalize: true},
	}, 10, glim.UsageStatic)
	if err != nil {
		t.Fatalf("NewVertexMesh: %v", err)
	}
	// 8 + 4 + 4 bytes per vertex.
	if got := mesh.Stride(); got != 16 {
		t.Fatalf("Stride = %d, want 16", got)
	}
	if got := mesh.Buffer().Len(); got != 160 {
		t.Fatalf("buffer size = %d, want 160", got)
	}
}

func TestMeshUploadsLazilyAtRecord(t *testing.T) {
	dev, reg, list := newDrawEnv(t)
	sh := newTestShader(t, reg)

	mesh, err := glim.NewVertexMesh(reg,
		[]glim.VertexFormat{{Name: "pos", Type: glim.AttrFloat, Components: 2}},
		3, glim.UsageStatic)
	if err != nil {
		t.Fatalf("NewVertexMesh: %v", err)
	}
	dev.ResetTrace()

	mesh.SetVertices(0, glim.EncodeFloats([]float32{0, 0, 1, 0, 0, 1}))
	if got := dev.Count("BufferSubData"); got != 0 {
		t.Fatalf("SetVertices uploaded eagerly: %d calls", got)
	}

	if err := list.Draw(sh, mesh, nil); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if got := dev.Count("BufferSubData"); got != 1 {
		t.Fatalf("record flushed %d uploads, want 1", got)
	}
}

func TestAttributeOffsetsFollowLayoutOrder(t *testing.T) {
	dev, reg, list := newDrawEnv(t)

	sh, err := glim.NewShader(reg,
		"attribute vec2 pos;\nattribute vec4 color;\nvoid main() {}",
		"void main() {}")
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	mesh, err := glim.NewVertexMesh(reg, []glim.VertexFormat{
		{Name: "pos", Type: glim.AttrFloat, Components: 2},
		{Name: "color", Type: glim.AttrUnsignedByte, Components: 4, Normalize: true},
	}, 3, glim.UsageStatic)
	if err != nil {
		t.Fatalf("NewVertexMesh: %v", err)
	}
	mesh.SetVertices(0, make([]byte, 3*12))

	if err := list.Draw(sh, mesh, nil); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	dev.ResetTrace()
	if err := list.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	var pointers []string
	for _, call := range dev.Calls {
		if strings.HasPrefix(call, "AttributePointer") {
			pointers = append(pointers, call)
		}
	}
	if len(pointers) != 2 {
		t.Fatalf("AttributePointer calls = %v, want 2", pointers)
	}
	if !strings.Contains(pointers[0], "loc=0") || !strings.Contains(pointers[0], "offset=0") {
		t.Errorf("pos pointer = %q, want loc=0 offset=0", pointers[0])
	}
	if !strings.Contains(pointers[1], "loc=1") || !strings.Contains(pointers[1], "offset=8") {
		t.Errorf("color pointer = %q, want loc=1 offset=8", pointers[1])
	}
	for _, p := range pointers {
		if !strings.Contains(p, "stride=12") {
			t.Errorf("pointer = %q, want stride=12", p)
		}
	}
}

func TestAttachMeshesSuppliesInstanceAttributes(t *testing.T) {
	dev, reg, list := newDrawEnv(t)

	sh, err := glim.NewShader(reg,
		"attribute vec2 pos;\nattribute vec2 offset;\nvoid main() {}",
		"void main() {}")
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}

	base, err := glim.NewVertexMesh(reg,
		[]glim.VertexFormat{{Name: "pos", Type: glim.AttrFloat, Components: 2}},
		3, glim.UsageStatic)
	if err != nil {
		t.Fatalf("base mesh: %v", err)
	}
	base.SetVertices(0, glim.EncodeFloats(make([]float32, 6)))

	perInstance, err := glim.NewVertexMesh(reg,
		[]glim.VertexFormat{{Name: "offset", Type: glim.AttrFloat, Components: 2}},
		16, glim.UsageDynamic)
	if err != nil {
		t.Fatalf("instance mesh: %v", err)
	}
	perInstance.SetVertices(0, glim.EncodeFloats(make([]float32, 32)))

	combined := glim.AttachMeshes(base, glim.InstanceData{Mesh: perInstance, Step: 1})
	geo := glim.Geometry{Mesh: combined, Instances: 16}

	if err := list.Draw(sh, geo, nil); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	dev.ResetTrace()
	if err := list.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	foundInstanced := false
	for _, call := range dev.Calls {
		if strings.HasPrefix(call, "AttributePointer") && strings.Contains(call, "step=1") {
			foundInstanced = true
		}
	}
	if !foundInstanced {
		t.Fatalf("no instanced attribute pointer in %v", dev.Calls)
	}
	for _, call := range dev.Calls {
		if strings.HasPrefix(call, "DrawArrays") && !strings.Contains(call, "instances=16") {
			t.Fatalf("DrawArrays = %q, want instances=16", call)
		}
	}
}
