package glim

import (
	"encoding/binary"
	"fmt"
	"math"
)

// AttributeType is the component type of a vertex attribute.
type AttributeType uint8

const (
	// AttrFloat is a 32-bit float component.
	AttrFloat AttributeType = iota + 1
	// AttrInt is a 32-bit signed integer component.
	AttrInt
	// AttrByte is an 8-bit signed integer component.
	AttrByte
	// AttrUnsignedByte is an 8-bit unsigned integer component.
	AttrUnsignedByte
	// AttrShort is a 16-bit signed integer component.
	AttrShort
	// AttrUnsignedShort is a 16-bit unsigned integer component.
	AttrUnsignedShort
)

// Size returns the byte size of one component.
func (t AttributeType) Size() int {
	switch t {
	case AttrFloat, AttrInt:
		return 4
	case AttrShort, AttrUnsignedShort:
		return 2
	case AttrByte, AttrUnsignedByte:
		return 1
	default:
		return 0
	}
}

// String returns the type name.
func (t AttributeType) String() string {
	switch t {
	case AttrFloat:
		return "float"
	case AttrInt:
		return "int"
	case AttrByte:
		return "byte"
	case AttrUnsignedByte:
		return "ubyte"
	case AttrShort:
		return "short"
	case AttrUnsignedShort:
		return "ushort"
	default:
		return fmt.Sprintf("AttributeType(%d)", uint8(t))
	}
}

// VertexFormat describes one attribute within an interleaved vertex
// layout. Offsets are assigned sequentially when the layout is resolved
// against a buffer, so formats only declare name, type and width.
type VertexFormat struct {
	// Name must match the attribute name declared by the shader.
	Name string
	// Type is the component type.
	Type AttributeType
	// Components is the number of components, 1 through 4.
	Components int
	// Normalize converts integer components to [0,1] or [-1,1] floats.
	Normalize bool
}

// size returns the byte size of the attribute.
func (f VertexFormat) size() int { return f.Type.Size() * f.Components }

// vertexStride returns the byte stride of an interleaved layout.
func vertexStride(formats []VertexFormat) int {
	stride := 0
	for _, f := range formats {
		stride += f.size()
	}
	return stride
}

// Attribute describes one vertex input reflected from a linked program.
type Attribute struct {
	// Name is the declared attribute name.
	Name string
	// Location is the backend attribute location.
	Location int
	// Type is the component type the shader expects.
	Type AttributeType
	// Components is the number of components the shader expects.
	Components int
}

// DrawMode selects how vertices are assembled into primitives.
type DrawMode uint8

const (
	// DrawTriangles assembles independent triangles.
	DrawTriangles DrawMode = iota + 1
	// DrawTriangleStrip assembles a triangle strip.
	DrawTriangleStrip
	// DrawTriangleFan assembles a triangle fan.
	DrawTriangleFan
	// DrawLines assembles independent line segments.
	DrawLines
	// DrawLineStrip assembles a connected line strip.
	DrawLineStrip
	// DrawPoints draws each vertex as a point.
	DrawPoints
)

// String returns the mode name.
func (m DrawMode) String() string {
	switch m {
	case DrawTriangles:
		return "triangles"
	case DrawTriangleStrip:
		return "triangle-strip"
	case DrawTriangleFan:
		return "triangle-fan"
	case DrawLines:
		return "lines"
	case DrawLineStrip:
		return "line-strip"
	case DrawPoints:
		return "points"
	default:
		return fmt.Sprintf("DrawMode(%d)", uint8(m))
	}
}

// IndexType is the element type of an index buffer.
type IndexType uint8

const (
	// IndexU16 is a 16-bit unsigned index.
	IndexU16 IndexType = iota + 1
	// IndexU32 is a 32-bit unsigned index.
	IndexU32
)

// Size returns the byte size of one index.
func (t IndexType) Size() int {
	switch t {
	case IndexU16:
		return 2
	case IndexU32:
		return 4
	default:
		return 0
	}
}

// Range is a half-open element range [Start, Start+Count) into a mesh:
// vertices for array draws, indices for indexed draws.
type Range struct {
	Start int
	Count int
}

// EncodeIndices16 encodes 16-bit indices as little-endian bytes for an
// index buffer write.
func EncodeIndices16(indices []uint16) []byte {
	out := make([]byte, len(indices)*2)
	for i, v := range indices {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	return out
}

// EncodeIndices32 encodes 32-bit indices as little-endian bytes for an
// index buffer write.
func EncodeIndices32(indices []uint32) []byte {
	out := make([]byte, len(indices)*4)
	for i, v := range indices {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// EncodeFloats encodes float32 vertex components as little-endian bytes
// for a vertex buffer write.
func EncodeFloats(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
