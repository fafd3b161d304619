package glim_test

import (
	"math"
	"testing"

	"github.com/gogpu/glim"
)

func TestUniformValueEqualIsBitExact(t *testing.T) {
	nan := float32(math.NaN())
	negZero := float32(math.Copysign(0, -1))

	cases := []struct {
		name string
		a, b glim.UniformValue
		want bool
	}{
		{"same float", glim.Float(1.5), glim.Float(1.5), true},
		{"different float", glim.Float(1.5), glim.Float(2.5), false},
		{"nan equals same nan", glim.Float(nan), glim.Float(nan), true},
		{"zero vs negative zero", glim.Float(0), glim.Float(negZero), false},
		{"type mismatch", glim.Float(1), glim.Int(1), false},
		{"vec2 equal", glim.Vec2(1, 2), glim.Vec2(1, 2), true},
		{"vec2 component", glim.Vec2(1, 2), glim.Vec2(1, 3), false},
		{"int equal", glim.Int(7), glim.Int(7), true},
		{"ivec4", glim.IVec4(1, 2, 3, 4), glim.IVec4(1, 2, 3, 5), false},
		{"mat4 equal", glim.Mat4([16]float32{1: 2, 15: 9}), glim.Mat4([16]float32{1: 2, 15: 9}), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Equal(tc.b); got != tc.want {
				t.Fatalf("Equal = %t, want %t", got, tc.want)
			}
			if got := tc.b.Equal(tc.a); got != tc.want {
				t.Fatalf("Equal not symmetric: %t, want %t", got, tc.want)
			}
		})
	}
}

func TestUniformValueComponents(t *testing.T) {
	v := glim.Vec3(1, 2, 3)
	if f := v.Floats(); len(f) != 3 || f[0] != 1 || f[2] != 3 {
		t.Fatalf("Vec3 Floats = %v", f)
	}
	m := glim.Mat3([9]float32{0: 1, 8: 9})
	if f := m.Floats(); len(f) != 9 || f[8] != 9 {
		t.Fatalf("Mat3 Floats = %v", f)
	}
	i := glim.IVec2(4, 5)
	if n := i.Ints(); len(n) != 2 || n[1] != 5 {
		t.Fatalf("IVec2 Ints = %v", n)
	}
	if f := i.Floats(); len(f) != 0 {
		t.Fatalf("IVec2 Floats = %v, want empty", f)
	}
}

func TestUniformValueZero(t *testing.T) {
	var v glim.UniformValue
	if !v.IsZero() {
		t.Fatal("zero value not IsZero")
	}
	if v.Type() != 0 {
		t.Fatalf("zero value type = %v", v.Type())
	}
	if glim.Float(0).IsZero() {
		t.Fatal("Float(0) reported IsZero")
	}
}
