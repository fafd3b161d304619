package glim

import (
	"fmt"
	"math"
)

// UniformType enumerates the uniform types a shader can declare.
type UniformType uint8

const (
	// UniformFloat is a single 32-bit float.
	UniformFloat UniformType = iota + 1
	// UniformVec2 is a 2-component float vector.
	UniformVec2
	// UniformVec3 is a 3-component float vector.
	UniformVec3
	// UniformVec4 is a 4-component float vector.
	UniformVec4
	// UniformMat2 is a 2x2 float matrix in column-major order.
	UniformMat2
	// UniformMat3 is a 3x3 float matrix in column-major order.
	UniformMat3
	// UniformMat4 is a 4x4 float matrix in column-major order.
	UniformMat4
	// UniformInt is a single 32-bit integer.
	UniformInt
	// UniformIVec2 is a 2-component integer vector.
	UniformIVec2
	// UniformIVec3 is a 3-component integer vector.
	UniformIVec3
	// UniformIVec4 is a 4-component integer vector.
	UniformIVec4
	// UniformSampler is a texture sampler; its value is a texture unit
	// index set with [Int].
	UniformSampler
)

// String returns the GLSL-style name of the type.
func (t UniformType) String() string {
	switch t {
	case UniformFloat:
		return "float"
	case UniformVec2:
		return "vec2"
	case UniformVec3:
		return "vec3"
	case UniformVec4:
		return "vec4"
	case UniformMat2:
		return "mat2"
	case UniformMat3:
		return "mat3"
	case UniformMat4:
		return "mat4"
	case UniformInt:
		return "int"
	case UniformIVec2:
		return "ivec2"
	case UniformIVec3:
		return "ivec3"
	case UniformIVec4:
		return "ivec4"
	case UniformSampler:
		return "sampler2D"
	default:
		return fmt.Sprintf("UniformType(%d)", uint8(t))
	}
}

// floats returns how many float32 components the type carries.
func (t UniformType) floats() int {
	switch t {
	case UniformFloat:
		return 1
	case UniformVec2:
		return 2
	case UniformVec3:
		return 3
	case UniformVec4, UniformMat2:
		return 4
	case UniformMat3:
		return 9
	case UniformMat4:
		return 16
	default:
		return 0
	}
}

// ints returns how many int32 components the type carries.
func (t UniformType) ints() int {
	switch t {
	case UniformInt, UniformSampler:
		return 1
	case UniformIVec2:
		return 2
	case UniformIVec3:
		return 3
	case UniformIVec4:
		return 4
	default:
		return 0
	}
}

// Uniform describes one uniform reflected from a linked program.
type Uniform struct {
	// Name is the declared uniform name.
	Name string
	// Location is the backend uniform location.
	Location int
	// Type is the declared type.
	Type UniformType
	// Count is the array length, 1 for non-arrays.
	Count int
}

// UniformValue is a uniform value of any supported type.
//
// Values are compared bit-exactly: two values are equal only if every
// component has the same bit pattern, so NaN payloads and signed zeros
// are distinguished. This is what makes upload memoization safe; a
// value that compares equal to the last upload can be skipped without
// changing what the shader observes.
type UniformValue struct {
	typ UniformType
	f   [16]float32
	i   [4]int32
}

// Float returns a float uniform value.
func Float(v float32) UniformValue {
	return UniformValue{typ: UniformFloat, f: [16]float32{v}}
}

// Vec2 returns a vec2 uniform value.
func Vec2(x, y float32) UniformValue {
	return UniformValue{typ: UniformVec2, f: [16]float32{x, y}}
}

// Vec3 returns a vec3 uniform value.
func Vec3(x, y, z float32) UniformValue {
	return UniformValue{typ: UniformVec3, f: [16]float32{x, y, z}}
}

// Vec4 returns a vec4 uniform value.
func Vec4(x, y, z, w float32) UniformValue {
	return UniformValue{typ: UniformVec4, f: [16]float32{x, y, z, w}}
}

// Mat2 returns a mat2 uniform value from column-major components.
func Mat2(m [4]float32) UniformValue {
	v := UniformValue{typ: UniformMat2}
	copy(v.f[:], m[:])
	return v
}

// Mat3 returns a mat3 uniform value from column-major components.
func Mat3(m [9]float32) UniformValue {
	v := UniformValue{typ: UniformMat3}
	copy(v.f[:], m[:])
	return v
}

// Mat4 returns a mat4 uniform value from column-major components.
func Mat4(m [16]float32) UniformValue {
	return UniformValue{typ: UniformMat4, f: m}
}

// Int returns an int uniform value. Int values also bind sampler
// uniforms, where the value is the texture unit index.
func Int(v int32) UniformValue {
	return UniformValue{typ: UniformInt, i: [4]int32{v}}
}

// IVec2 returns an ivec2 uniform value.
func IVec2(x, y int32) UniformValue {
	return UniformValue{typ: UniformIVec2, i: [4]int32{x, y}}
}

// IVec3 returns an ivec3 uniform value.
func IVec3(x, y, z int32) UniformValue {
	return UniformValue{typ: UniformIVec3, i: [4]int32{x, y, z}}
}

// IVec4 returns an ivec4 uniform value.
func IVec4(x, y, z, w int32) UniformValue {
	return UniformValue{typ: UniformIVec4, i: [4]int32{x, y, z, w}}
}

// Type returns the value's type. The zero UniformValue has type 0.
func (v UniformValue) Type() UniformType { return v.typ }

// IsZero reports whether the value is the zero UniformValue, i.e. no
// value has been assigned.
func (v UniformValue) IsZero() bool { return v.typ == 0 }

// Floats returns the float components of the value. The slice aliases
// internal storage and must not be modified.
func (v *UniformValue) Floats() []float32 { return v.f[:v.typ.floats()] }

// Ints returns the integer components of the value. The slice aliases
// internal storage and must not be modified.
func (v *UniformValue) Ints() []int32 { return v.i[:v.typ.ints()] }

// Equal reports whether v and o are bit-identical values of the same
// type. Float components are compared by their IEEE 754 bit patterns,
// so NaN == NaN here and 0 != -0.
func (v UniformValue) Equal(o UniformValue) bool {
	if v.typ != o.typ {
		return false
	}
	for i := range v.f {
		if math.Float32bits(v.f[i]) != math.Float32bits(o.f[i]) {
			return false
		}
	}
	return v.i == o.i
}

// matches reports whether the value can be assigned to a uniform of
// type t. Sampler uniforms accept Int values.
func (v UniformValue) matches(t UniformType) bool {
	if t == UniformSampler {
		return v.typ == UniformInt
	}
	return v.typ == t
}
