package glim

import "fmt"

// QuadBatch accumulates textured or colored quads into one indexed
// mesh so an arbitrary number of them draws as a single command. Each
// quad is four vertices; the index buffer is pre-filled at creation
// with the two-triangle pattern per quad and never rewritten.
//
// The batch uses 16-bit indices, which caps capacity at 16383 quads.
type QuadBatch struct {
	mesh   *IndexedMesh
	stride int
	count  int
	cap    int
}

// maxQuadBatchCapacity is the largest capacity addressable with 16-bit
// indices (4 vertices per quad).
const maxQuadBatchCapacity = 1 << 14

// NewQuadBatch creates a batch holding up to capacity quads with the
// given interleaved vertex layout.
func NewQuadBatch(reg *ResourceRegistry, formats []VertexFormat, capacity int) (*QuadBatch, error) {
	if capacity <= 0 || capacity > maxQuadBatchCapacity {
		return nil, fmt.Errorf("%w: quad batch capacity %d (max %d)",
			ErrInvalidDimensions, capacity, maxQuadBatchCapacity)
	}
	mesh, err := NewIndexedMesh(reg, formats, capacity*4, capacity*6, IndexU16, UsageStream)
	if err != nil {
		return nil, err
	}

	// 0-1-2 2-1-3 per quad, matching a vertex order of
	// top-left, top-right, bottom-left, bottom-right.
	indices := make([]uint16, capacity*6)
	for q := 0; q < capacity; q++ {
		v := uint16(q * 4)
		copy(indices[q*6:], []uint16{v, v + 1, v + 2, v + 2, v + 1, v + 3})
	}
	if err := mesh.SetIndices(0, EncodeIndices16(indices)); err != nil {
		mesh.Release()
		return nil, err
	}

	return &QuadBatch{
		mesh:   mesh,
		stride: mesh.VertexMesh().Stride(),
		cap:    capacity,
	}, nil
}

// Push appends one quad and returns its slot index. The data must be
// exactly four interleaved vertices. A full batch fails with
// [ErrBufferOverflow].
func (b *QuadBatch) Push(quad []byte) (int, error) {
	if b.count == b.cap {
		return 0, fmt.Errorf("%w: quad batch full at %d quads", ErrBufferOverflow, b.cap)
	}
	if len(quad) != 4*b.stride {
		return 0, fmt.Errorf("%w: quad is %d bytes, layout needs %d",
			ErrInvalidDimensions, len(quad), 4*b.stride)
	}
	if err := b.mesh.SetVertices(b.count*4, quad); err != nil {
		return 0, err
	}
	idx := b.count
	b.count++
	return idx, nil
}

// Set overwrites the quad at a slot previously returned by Push.
func (b *QuadBatch) Set(slot int, quad []byte) error {
	if slot < 0 || slot >= b.count {
		return fmt.Errorf("%w: quad slot %d of %d", ErrInvalidDimensions, slot, b.count)
	}
	if len(quad) != 4*b.stride {
		return fmt.Errorf("%w: quad is %d bytes, layout needs %d",
			ErrInvalidDimensions, len(quad), 4*b.stride)
	}
	return b.mesh.SetVertices(slot*4, quad)
}

// Reset empties the batch without touching buffer storage.
func (b *QuadBatch) Reset() { b.count = 0 }

// Len returns the number of quads pushed since the last Reset.
func (b *QuadBatch) Len() int { return b.count }

// Cap returns the batch capacity in quads.
func (b *QuadBatch) Cap() int { return b.cap }

// Geometry returns the drawable geometry covering the pushed quads.
func (b *QuadBatch) Geometry() Geometry {
	return Geometry{
		Mesh:  b.mesh,
		Range: &Range{Start: 0, Count: b.count * 6},
	}
}

// Release destroys the underlying mesh buffers.
func (b *QuadBatch) Release() error { return b.mesh.Release() }
