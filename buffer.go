package glim

import "fmt"

// MappedBuffer is a buffer with CPU-side write access. Writes land in
// the registry's shadow copy and are tracked as a single conservative
// dirty range; [MappedBuffer.Unmap] uploads that range in one device
// call, choosing the upload strategy from the buffer's usage hint:
//
//   - [UsageStream]: the whole buffer is re-specified, orphaning the
//     previous storage so the device never stalls on in-flight reads.
//   - [UsageDynamic]: a dirty range above a third of the buffer is
//     uploaded as a full re-specification, smaller ranges as a
//     sub-range write.
//   - [UsageStatic]: only the dirty range is uploaded.
//
// Meshes unmap their buffers automatically when a draw referencing
// them is recorded.
type MappedBuffer struct {
	reg   *ResourceRegistry
	key   ResourceKey
	usage BufferUsage
	size  int

	dirty   bool
	dirtyLo int
	dirtyHi int
}

// NewMappedBuffer creates a zero-filled mapped buffer of size bytes.
func NewMappedBuffer(reg *ResourceRegistry, target BufferTarget, size int, usage BufferUsage) (*MappedBuffer, error) {
	key, err := reg.CreateBuffer(target, size, usage)
	if err != nil {
		return nil, err
	}
	return &MappedBuffer{reg: reg, key: key, usage: usage, size: size}, nil
}

// Key returns the underlying buffer's registry key.
func (b *MappedBuffer) Key() ResourceKey { return b.key }

// Len returns the buffer size in bytes.
func (b *MappedBuffer) Len() int { return b.size }

// Write copies data into the buffer at the given byte offset. The
// device is not touched; the written range is merged into the dirty
// range and uploaded on the next Unmap.
func (b *MappedBuffer) Write(offset int, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := b.reg.writeShadow(b.key, offset, data); err != nil {
		return err
	}
	lo, hi := offset, offset+len(data)
	if !b.dirty {
		b.dirty, b.dirtyLo, b.dirtyHi = true, lo, hi
		return nil
	}
	// Conservative merge: one range covering every write since the
	// last Unmap, including any untouched bytes between them.
	if lo < b.dirtyLo {
		b.dirtyLo = lo
	}
	if hi > b.dirtyHi {
		b.dirtyHi = hi
	}
	return nil
}

// Contents returns a copy of the buffer's current CPU contents,
// including writes not yet unmapped.
func (b *MappedBuffer) Contents() ([]byte, error) {
	return b.reg.BufferContents(b.key)
}

// Unmap uploads the dirty range to the device. A clean buffer is a
// no-op.
func (b *MappedBuffer) Unmap() error {
	if !b.dirty {
		return nil
	}
	orphan := false
	switch b.usage {
	case UsageStream:
		orphan = true
	case UsageDynamic:
		orphan = b.dirtyHi-b.dirtyLo > b.size/3
	}
	if err := b.reg.uploadBuffer(b.key, b.dirtyLo, b.dirtyHi, orphan); err != nil {
		return err
	}
	b.dirty = false
	b.dirtyLo, b.dirtyHi = 0, 0
	return nil
}

// Resize changes the buffer size, preserving the surviving prefix.
// Pending writes are uploaded first so they are not lost in the
// re-specification.
func (b *MappedBuffer) Resize(newSize int) error {
	if err := b.Unmap(); err != nil {
		return err
	}
	if err := b.reg.ResizeBuffer(b.key, newSize); err != nil {
		return err
	}
	b.size = newSize
	return nil
}

// Release destroys the underlying buffer.
func (b *MappedBuffer) Release() error {
	return b.reg.DestroyBuffer(b.key)
}

// extent returns the byte extent a draw reading n elements of the
// given stride from element start needs.
func extent(start, count, stride int) int {
	if count <= 0 {
		return 0
	}
	return (start + count) * stride
}

// checkExtent verifies that a draw range fits inside the buffer.
func checkExtent(reg *ResourceRegistry, key ResourceKey, need int) error {
	size, err := reg.BufferSize(key)
	if err != nil {
		return err
	}
	if need > size {
		return fmt.Errorf("%w: draw needs %d bytes of %d-byte buffer",
			ErrBufferOverflow, need, size)
	}
	return nil
}
