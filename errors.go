package glim

import (
	"errors"
	"fmt"
)

// Resource and validation errors.
var (
	// ErrStaleHandle is returned when a key refers to a resource slot
	// whose generation has advanced, i.e. the resource was destroyed
	// (and the slot possibly reused) after the key was obtained.
	ErrStaleHandle = errors.New("glim: stale resource handle")

	// ErrNotFound is returned when a key does not address any slot,
	// either because the index is out of range or because the key's
	// kind does not match the registry it was presented to.
	ErrNotFound = errors.New("glim: resource not found")

	// ErrBufferOverflow is returned when a buffer write would extend
	// past the end of the buffer's storage.
	ErrBufferOverflow = errors.New("glim: buffer write out of range")

	// ErrBufferInFlight is returned when a buffer shrink would truncate
	// a byte range referenced by a draw that has been recorded but not
	// yet flushed.
	ErrBufferInFlight = errors.New("glim: buffer range referenced by recorded draw")

	// ErrInvalidDimensions is returned when a size or region is
	// non-positive or exceeds what the resource can hold.
	ErrInvalidDimensions = errors.New("glim: invalid dimensions")

	// ErrUnknownUniform is returned when setting a uniform the shader
	// does not declare.
	ErrUnknownUniform = errors.New("glim: unknown uniform")

	// ErrUniformType is returned when a uniform value's type does not
	// match the shader's declaration.
	ErrUniformType = errors.New("glim: uniform type mismatch")

	// ErrMissingUniform is returned when a draw is recorded against a
	// shader that has declared uniforms with no value assigned yet.
	ErrMissingUniform = errors.New("glim: uniform has no value")

	// ErrMissingAttribute is returned when a shader declares a vertex
	// attribute that none of the attached mesh buffers provide.
	ErrMissingAttribute = errors.New("glim: vertex attribute not provided by mesh")

	// ErrIncompleteFramebuffer is returned when a framebuffer fails the
	// backend's completeness check.
	ErrIncompleteFramebuffer = errors.New("glim: framebuffer incomplete")

	// ErrNoDevice is returned by NewContext when neither WithDevice nor
	// WithBackend supplies a device.
	ErrNoDevice = errors.New("glim: no device configured")
)

// ShaderStage identifies where in program construction a shader error
// occurred.
type ShaderStage int

const (
	// StageVertex is the vertex shader compilation stage.
	StageVertex ShaderStage = iota
	// StageFragment is the fragment shader compilation stage.
	StageFragment
	// StageLink is the program link stage.
	StageLink
)

// String returns the stage name.
func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageLink:
		return "link"
	default:
		return fmt.Sprintf("ShaderStage(%d)", int(s))
	}
}

// ShaderError reports a shader compile or link failure together with
// the backend's diagnostic log.
type ShaderError struct {
	// Stage is the stage that failed.
	Stage ShaderStage

	// Log is the diagnostic text produced by the backend compiler or
	// linker. May be empty when the backend provides none.
	Log string
}

// Error implements the error interface.
func (e *ShaderError) Error() string {
	if e.Log == "" {
		return fmt.Sprintf("glim: %s shader failed", e.Stage)
	}
	return fmt.Sprintf("glim: %s shader failed: %s", e.Stage, e.Log)
}
