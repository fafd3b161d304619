package glim_test

import (
	"testing"

	"github.com/gogpu/glim"
)

func TestPipelineSettingsMerge(t *testing.T) {
	baseVP := glim.Rect{W: 100, H: 100}
	baseBlend := glim.AlphaBlend()
	base := glim.PipelineSettings{
		Viewport: &baseVP,
		Blend:    &baseBlend,
	}

	overVP := glim.Rect{W: 50, H: 50}
	overDepth := glim.DepthState{Func: glim.CompareLess, Write: true}
	override := glim.PipelineSettings{
		Viewport: &overVP,
		Depth:    &overDepth,
	}

	merged := base.Merge(override)
	if merged.Viewport == nil || *merged.Viewport != overVP {
		t.Fatalf("viewport = %v, want override %v", merged.Viewport, overVP)
	}
	if merged.Blend == nil || *merged.Blend != baseBlend {
		t.Fatalf("blend = %v, want base value", merged.Blend)
	}
	if merged.Depth == nil || *merged.Depth != overDepth {
		t.Fatalf("depth = %v, want override %v", merged.Depth, overDepth)
	}
	if merged.Scissor != nil || merged.Stencil != nil || merged.Target != nil {
		t.Fatalf("unset axes leaked into merge: %+v", merged)
	}
}

func TestPipelineSettingsMergeDoesNotAlias(t *testing.T) {
	vp := glim.Rect{W: 10, H: 10}
	base := glim.PipelineSettings{Viewport: &vp}

	merged := base.Merge(glim.PipelineSettings{})
	vp.W = 99
	if merged.Viewport.W != 10 {
		t.Fatal("merged settings alias the caller's viewport")
	}
	if base.Viewport != &vp {
		t.Fatal("Merge modified its receiver")
	}
}

func TestPipelineSettingsMergeReorderSafe(t *testing.T) {
	safe := glim.PipelineSettings{ReorderSafe: true}
	plain := glim.PipelineSettings{}

	if !safe.Merge(plain).ReorderSafe {
		t.Fatal("reorder safety lost when override leaves it unset")
	}
	if !plain.Merge(safe).ReorderSafe {
		t.Fatal("override could not mark the draw reorder safe")
	}
	if plain.Merge(plain).ReorderSafe {
		t.Fatal("reorder safety appeared from nowhere")
	}
}
