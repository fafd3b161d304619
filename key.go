package glim

import "fmt"

// ResourceKind identifies which registry table a key addresses.
type ResourceKind uint8

const (
	// KindBuffer addresses vertex and index buffers.
	KindBuffer ResourceKind = iota + 1
	// KindTexture addresses textures.
	KindTexture
	// KindShader addresses linked shader programs.
	KindShader
	// KindFramebuffer addresses framebuffers.
	KindFramebuffer
)

// String returns the kind name.
func (k ResourceKind) String() string {
	switch k {
	case KindBuffer:
		return "buffer"
	case KindTexture:
		return "texture"
	case KindShader:
		return "shader"
	case KindFramebuffer:
		return "framebuffer"
	default:
		return fmt.Sprintf("ResourceKind(%d)", uint8(k))
	}
}

// ResourceKey is a generational handle to a registry resource.
//
// A key stays valid until the resource it names is destroyed. Destroying
// a resource advances the slot's generation, so a key held across the
// destroy can never alias a resource later created in the same slot;
// lookups with such a key fail with [ErrStaleHandle].
//
// The zero ResourceKey addresses nothing. As a framebuffer target it
// stands for the default backbuffer (see [DefaultFramebuffer]).
type ResourceKey struct {
	index      uint32
	generation uint32
	kind       ResourceKind
}

// DefaultFramebuffer is the target key for the default backbuffer.
var DefaultFramebuffer = ResourceKey{}

// Kind returns the resource kind the key addresses.
func (k ResourceKey) Kind() ResourceKind { return k.kind }

// IsZero reports whether the key is the zero key.
func (k ResourceKey) IsZero() bool { return k == ResourceKey{} }

// String returns a debug representation like "buffer#3@2".
func (k ResourceKey) String() string {
	if k.IsZero() {
		return "key(zero)"
	}
	return fmt.Sprintf("%s#%d@%d", k.kind, k.index, k.generation)
}
