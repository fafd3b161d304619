package glim

import (
	"fmt"
	"sort"
)

// Shader wraps a linked program with its reflected interface and a
// memoizing uniform store.
//
// SetUniform stages values CPU-side; nothing reaches the device until a
// draw using the shader is flushed. At that point only values that
// differ bit-exactly from the last uploaded ones are sent, so setting
// the same matrix every frame costs no device calls after the first.
type Shader struct {
	reg *ResourceRegistry
	key ResourceKey

	attributes []Attribute
	uniforms   map[string]Uniform
	// names holds uniform names ordered by location so snapshots and
	// uploads are deterministic.
	names []string

	// values holds the staged value per uniform; uploaded holds what
	// the device last received.
	values   map[string]UniformValue
	uploaded map[string]UniformValue
}

// NewShader compiles, links and reflects a program from vertex and
// fragment sources. Compile and link failures are reported as
// [*ShaderError].
func NewShader(reg *ResourceRegistry, vertexSrc, fragmentSrc string) (*Shader, error) {
	key, err := reg.CreateShader(vertexSrc, fragmentSrc)
	if err != nil {
		return nil, err
	}
	attrs, uniforms, err := reg.ShaderInterface(key)
	if err != nil {
		return nil, err
	}
	s := &Shader{
		reg:        reg,
		key:        key,
		attributes: attrs,
		uniforms:   make(map[string]Uniform, len(uniforms)),
		values:     make(map[string]UniformValue, len(uniforms)),
		uploaded:   make(map[string]UniformValue, len(uniforms)),
	}
	for _, u := range uniforms {
		s.uniforms[u.Name] = u
		s.names = append(s.names, u.Name)
	}
	sort.Slice(s.names, func(i, j int) bool {
		return s.uniforms[s.names[i]].Location < s.uniforms[s.names[j]].Location
	})
	return s, nil
}

// Key returns the program's registry key.
func (s *Shader) Key() ResourceKey { return s.key }

// Attributes returns the reflected vertex attributes. The slice is
// shared; callers must not modify it.
func (s *Shader) Attributes() []Attribute { return s.attributes }

// Uniforms returns the reflected uniforms ordered by location.
func (s *Shader) Uniforms() []Uniform {
	out := make([]Uniform, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.uniforms[name])
	}
	return out
}

// HasUniform reports whether the program declares the named uniform.
func (s *Shader) HasUniform(name string) bool {
	_, ok := s.uniforms[name]
	return ok
}

// SetUniform stages a uniform value. The name must be declared by the
// program ([ErrUnknownUniform]) and the value's type must match the
// declaration ([ErrUniformType]). The device is not touched; staged
// values are uploaded, memoized, when a draw using this shader is
// flushed.
func (s *Shader) SetUniform(name string, v UniformValue) error {
	u, ok := s.uniforms[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownUniform, name)
	}
	if !v.matches(u.Type) {
		return fmt.Errorf("%w: %q declared %s, got %s",
			ErrUniformType, name, u.Type, v.Type())
	}
	s.values[name] = v
	return nil
}

// uniformUpload pairs a reflected uniform with the value a recorded
// draw wants it to have.
type uniformUpload struct {
	uniform Uniform
	value   UniformValue
}

// snapshot captures the staged value of every declared uniform, in
// location order. A declared uniform with no staged value fails with
// [ErrMissingUniform]; a draw must not reach the device with undefined
// uniform state.
func (s *Shader) snapshot() ([]uniformUpload, error) {
	out := make([]uniformUpload, 0, len(s.names))
	for _, name := range s.names {
		v, ok := s.values[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingUniform, name)
		}
		out = append(out, uniformUpload{uniform: s.uniforms[name], value: v})
	}
	return out, nil
}

// flushUniform uploads one snapshot value unless the device already
// holds it. Reports whether a device call was issued.
func (s *Shader) flushUniform(dev Device, up uniformUpload) (bool, error) {
	if prev, ok := s.uploaded[up.uniform.Name]; ok && prev.Equal(up.value) {
		return false, nil
	}
	if err := dev.SetUniform(up.uniform, up.value); err != nil {
		return false, err
	}
	s.uploaded[up.uniform.Name] = up.value
	return true, nil
}

// InvalidateUniforms forgets what the device holds, forcing the next
// flush to re-upload every uniform. Use after external code has driven
// the device directly.
func (s *Shader) InvalidateUniforms() {
	clear(s.uploaded)
}

// Release destroys the underlying program.
func (s *Shader) Release() error {
	return s.reg.DestroyShader(s.key)
}
