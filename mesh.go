package glim

import "fmt"

// AttachedAttributes is one vertex buffer together with the interleaved
// attributes it supplies, resolved to byte offsets.
type AttachedAttributes struct {
	// Buffer is the vertex buffer key.
	Buffer ResourceKey
	// Formats are the attributes in buffer order; offsets are implied
	// by the order and the component sizes.
	Formats []VertexFormat
	// Stride is the byte distance between consecutive vertices.
	Stride int
	// Step is the instance divisor applied to every attribute in this
	// attachment; 0 advances per vertex.
	Step int
	// Count is the number of vertices (or instances, when Step > 0)
	// the buffer holds.
	Count int
}

// meshBinding is an immutable snapshot of everything a draw needs from
// a mesh: attribute sources, the optional index buffer, and the
// assembly parameters.
type meshBinding struct {
	attributes []AttachedAttributes
	indexBuf   ResourceKey // zero for array draws
	indexType  IndexType
	mode       DrawMode
	rng        Range
	instances  int
}

// Mesh is implemented by the vertex sources a [DrawList] can draw:
// [VertexMesh], [IndexedMesh], [Geometry], and the result of
// [AttachMeshes].
type Mesh interface {
	// binding flushes pending buffer writes and snapshots the draw
	// sources.
	binding() (meshBinding, error)
}

// VertexMesh is an interleaved vertex buffer with a fixed layout.
// Vertex data is written CPU-side and uploaded lazily when a draw is
// recorded.
type VertexMesh struct {
	buf     *MappedBuffer
	formats []VertexFormat
	stride  int
	count   int
	mode    DrawMode
	rng     *Range
}

// NewVertexMesh creates a mesh holding count vertices of the given
// interleaved layout.
func NewVertexMesh(reg *ResourceRegistry, formats []VertexFormat, count int, usage BufferUsage) (*VertexMesh, error) {
	if len(formats) == 0 {
		return nil, fmt.Errorf("%w: mesh needs at least one vertex format", ErrInvalidDimensions)
	}
	stride := vertexStride(formats)
	buf, err := NewMappedBuffer(reg, BufferVertex, stride*count, usage)
	if err != nil {
		return nil, err
	}
	return &VertexMesh{
		buf:     buf,
		formats: append([]VertexFormat(nil), formats...),
		stride:  stride,
		count:   count,
		mode:    DrawTriangles,
	}, nil
}

// SetVertices writes interleaved vertex bytes starting at the given
// vertex index.
func (m *VertexMesh) SetVertices(vertex int, data []byte) error {
	return m.buf.Write(vertex*m.stride, data)
}

// SetDrawMode sets the primitive assembly mode. The default is
// [DrawTriangles].
func (m *VertexMesh) SetDrawMode(mode DrawMode) { m.mode = mode }

// SetDrawRange restricts draws to a vertex sub-range; nil restores the
// full range.
func (m *VertexMesh) SetDrawRange(r *Range) {
	if r == nil {
		m.rng = nil
		return
	}
	v := *r
	m.rng = &v
}

// Stride returns the byte size of one vertex.
func (m *VertexMesh) Stride() int { return m.stride }

// Count returns the mesh's vertex capacity.
func (m *VertexMesh) Count() int { return m.count }

// Buffer returns the underlying mapped buffer.
func (m *VertexMesh) Buffer() *MappedBuffer { return m.buf }

// Release destroys the underlying buffer.
func (m *VertexMesh) Release() error { return m.buf.Release() }

func (m *VertexMesh) binding() (meshBinding, error) {
	if err := m.buf.Unmap(); err != nil {
		return meshBinding{}, err
	}
	rng := Range{Start: 0, Count: m.count}
	if m.rng != nil {
		rng = *m.rng
	}
	return meshBinding{
		attributes: []AttachedAttributes{{
			Buffer:  m.buf.Key(),
			Formats: m.formats,
			Stride:  m.stride,
			Count:   m.count,
		}},
		mode:      m.mode,
		rng:       rng,
		instances: 1,
	}, nil
}

// IndexedMesh pairs a vertex mesh with an index buffer.
type IndexedMesh struct {
	verts      *VertexMesh
	indices    *MappedBuffer
	indexType  IndexType
	indexCount int
	rng        *Range
}

// NewIndexedMesh creates a mesh with vertexCount vertices and
// indexCount indices of the given type.
func NewIndexedMesh(reg *ResourceRegistry, formats []VertexFormat, vertexCount, indexCount int, indexType IndexType, usage BufferUsage) (*IndexedMesh, error) {
	verts, err := NewVertexMesh(reg, formats, vertexCount, usage)
	if err != nil {
		return nil, err
	}
	indices, err := NewMappedBuffer(reg, BufferIndex, indexType.Size()*indexCount, usage)
	if err != nil {
		verts.Release()
		return nil, err
	}
	return &IndexedMesh{
		verts:      verts,
		indices:    indices,
		indexType:  indexType,
		indexCount: indexCount,
	}, nil
}

// SetVertices writes interleaved vertex bytes starting at the given
// vertex index.
func (m *IndexedMesh) SetVertices(vertex int, data []byte) error {
	return m.verts.SetVertices(vertex, data)
}

// SetIndices writes encoded index bytes starting at the given index
// position. Use [EncodeIndices16] or [EncodeIndices32] to produce the
// byte form.
func (m *IndexedMesh) SetIndices(index int, data []byte) error {
	return m.indices.Write(index*m.indexType.Size(), data)
}

// SetDrawMode sets the primitive assembly mode.
func (m *IndexedMesh) SetDrawMode(mode DrawMode) { m.verts.SetDrawMode(mode) }

// SetDrawRange restricts draws to an index sub-range; nil restores the
// full range.
func (m *IndexedMesh) SetDrawRange(r *Range) {
	if r == nil {
		m.rng = nil
		return
	}
	v := *r
	m.rng = &v
}

// VertexMesh returns the underlying vertex mesh.
func (m *IndexedMesh) VertexMesh() *VertexMesh { return m.verts }

// IndexBuffer returns the underlying index buffer.
func (m *IndexedMesh) IndexBuffer() *MappedBuffer { return m.indices }

// Release destroys both underlying buffers.
func (m *IndexedMesh) Release() error {
	err := m.verts.Release()
	if err2 := m.indices.Release(); err == nil {
		err = err2
	}
	return err
}

func (m *IndexedMesh) binding() (meshBinding, error) {
	b, err := m.verts.binding()
	if err != nil {
		return meshBinding{}, err
	}
	if err := m.indices.Unmap(); err != nil {
		return meshBinding{}, err
	}
	b.indexBuf = m.indices.Key()
	b.indexType = m.indexType
	b.rng = Range{Start: 0, Count: m.indexCount}
	if m.rng != nil {
		b.rng = *m.rng
	}
	return b, nil
}

// Geometry wraps a mesh with per-draw overrides for mode, range and
// instance count without mutating the mesh itself.
type Geometry struct {
	// Mesh is the underlying vertex source.
	Mesh Mesh
	// Mode overrides the assembly mode when non-zero.
	Mode DrawMode
	// Range overrides the draw range when non-nil.
	Range *Range
	// Instances is the instance count; values below 1 draw once.
	Instances int
}

func (g Geometry) binding() (meshBinding, error) {
	b, err := g.Mesh.binding()
	if err != nil {
		return meshBinding{}, err
	}
	if g.Mode != 0 {
		b.mode = g.Mode
	}
	if g.Range != nil {
		b.rng = *g.Range
	}
	if g.Instances > 1 {
		b.instances = g.Instances
	}
	return b, nil
}

// InstanceData attaches a mesh's buffers as per-instance attributes.
type InstanceData struct {
	// Mesh supplies the attribute buffers.
	Mesh Mesh
	// Step is the instance divisor; 1 advances once per instance.
	Step int
}

// AttachMeshes combines a base mesh with additional attribute sources,
// typically per-instance data. The base mesh supplies the index buffer
// and assembly parameters; the extra attachments contribute attributes
// only, each with its own instance step.
func AttachMeshes(base Mesh, extra ...InstanceData) Mesh {
	return &multiMesh{base: base, extra: extra}
}

type multiMesh struct {
	base  Mesh
	extra []InstanceData
}

func (m *multiMesh) binding() (meshBinding, error) {
	b, err := m.base.binding()
	if err != nil {
		return meshBinding{}, err
	}
	// Own the slice before appending; the base may return shared state.
	b.attributes = append([]AttachedAttributes(nil), b.attributes...)
	for _, ex := range m.extra {
		eb, err := ex.Mesh.binding()
		if err != nil {
			return meshBinding{}, err
		}
		for _, att := range eb.attributes {
			att.Step = ex.Step
			b.attributes = append(b.attributes, att)
		}
	}
	return b, nil
}
