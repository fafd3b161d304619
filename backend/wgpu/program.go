package wgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glim"
)

// uniformSlot locates one uniform inside a program: either a byte
// offset into the uniform block, or a texture declaration for
// samplers.
type uniformSlot struct {
	u       glim.Uniform
	offset  int // byte offset in the block; -1 for samplers
	texture int // index into textures; -1 for block fields
}

// textureDecl is one texture_2d declaration with its sampler binding.
type textureDecl struct {
	name           string
	binding        uint32
	samplerBinding uint32
	unit           int // bound texture unit; -1 until assigned
}

// programObject is one linked program: the compiled module, its
// reflected interface, the bind group layout derived from it, and the
// CPU copy of the uniform block.
type programObject struct {
	module     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	uniformBuf hal.Buffer

	attrs    []glim.Attribute
	uniforms []glim.Uniform
	slots    map[string]*uniformSlot
	textures []*textureDecl

	block      []byte
	blockDirty bool
}

// moduleInterface is the result of scanning a WGSL module.
type moduleInterface struct {
	attrs     []glim.Attribute
	uniforms  []glim.Uniform
	slots     map[string]*uniformSlot
	textures  []*textureDecl
	blockSize int
}

// CreateProgram implements glim.Device. The joined WGSL module is
// scanned for its interface, then compiled to SPIR-V with naga.
// Compile diagnostics are reported as [*glim.ShaderError].
func (d *Device) CreateProgram(vertexSrc, fragmentSrc string) (glim.NativeID, []glim.Attribute, []glim.Uniform, error) {
	src := joinSources(vertexSrc, fragmentSrc)
	iface, err := scanModule(src)
	if err != nil {
		return 0, nil, nil, err
	}

	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return 0, nil, nil, &glim.ShaderError{Stage: glim.StageLink, Log: err.Error()}
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	id := d.alloc()
	module, err := d.dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  fmt.Sprintf("glim_program_%d", id),
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return 0, nil, nil, &glim.ShaderError{Stage: glim.StageLink, Log: err.Error()}
	}

	entries := make([]gputypes.BindGroupLayoutEntry, 0, 1+2*len(iface.textures))
	if iface.blockSize > 0 {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
	}
	for _, t := range iface.textures {
		entries = append(entries,
			gputypes.BindGroupLayoutEntry{
				Binding:    t.binding,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    t.samplerBinding,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		)
	}

	bindLayout, err := d.dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   fmt.Sprintf("glim_bind_layout_%d", id),
		Entries: entries,
	})
	if err != nil {
		d.dev.DestroyShaderModule(module)
		return 0, nil, nil, fmt.Errorf("wgpu: create bind group layout: %w", err)
	}
	pipeLayout, err := d.dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            fmt.Sprintf("glim_pipe_layout_%d", id),
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		d.dev.DestroyBindGroupLayout(bindLayout)
		d.dev.DestroyShaderModule(module)
		return 0, nil, nil, fmt.Errorf("wgpu: create pipeline layout: %w", err)
	}

	var uniformBuf hal.Buffer
	if iface.blockSize > 0 {
		uniformBuf, err = d.dev.CreateBuffer(&hal.BufferDescriptor{
			Label: fmt.Sprintf("glim_uniforms_%d", id),
			Size:  uint64(iface.blockSize),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			d.dev.DestroyPipelineLayout(pipeLayout)
			d.dev.DestroyBindGroupLayout(bindLayout)
			d.dev.DestroyShaderModule(module)
			return 0, nil, nil, fmt.Errorf("wgpu: create uniform buffer: %w", err)
		}
	}

	d.programs[id] = &programObject{
		module:     module,
		bindLayout: bindLayout,
		pipeLayout: pipeLayout,
		uniformBuf: uniformBuf,
		attrs:      iface.attrs,
		uniforms:   iface.uniforms,
		slots:      iface.slots,
		textures:   iface.textures,
		block:      make([]byte, iface.blockSize),
		blockDirty: iface.blockSize > 0,
	}
	return id, iface.attrs, iface.uniforms, nil
}

// DestroyProgram implements glim.Device.
func (d *Device) DestroyProgram(id glim.NativeID) {
	prog, ok := d.programs[id]
	if !ok {
		return
	}
	d.pipelines.dropProgram(id)
	if prog.uniformBuf != nil {
		d.dev.DestroyBuffer(prog.uniformBuf)
	}
	d.dev.DestroyPipelineLayout(prog.pipeLayout)
	d.dev.DestroyBindGroupLayout(prog.bindLayout)
	d.dev.DestroyShaderModule(prog.module)
	delete(d.programs, id)
}

// SetUniform implements glim.Device. Block fields are written into
// the CPU copy of the uniform block and uploaded before the next
// draw. Sampler values assign a texture unit to the declaration.
func (d *Device) SetUniform(u glim.Uniform, v glim.UniformValue) error {
	prog, ok := d.programs[d.st.program]
	if !ok {
		return fmt.Errorf("wgpu: SetUniform with no program bound")
	}
	slot, ok := prog.slots[u.Name]
	if !ok {
		return fmt.Errorf("wgpu: program has no uniform %q", u.Name)
	}
	if slot.texture >= 0 {
		prog.textures[slot.texture].unit = int(v.Ints()[0])
		return nil
	}
	packUniform(prog.block, slot.offset, slot.u.Type, &v)
	prog.blockDirty = true
	return nil
}

// joinSources merges the vertex and fragment sources into one module.
// Identical sources (or an empty fragment source) are taken as an
// already complete module.
func joinSources(vertexSrc, fragmentSrc string) string {
	if fragmentSrc == "" || fragmentSrc == vertexSrc {
		return vertexSrc
	}
	return vertexSrc + "\n" + fragmentSrc
}

var (
	reLineComment  = regexp.MustCompile(`//[^\n]*`)
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reVertexEntry  = regexp.MustCompile(`fn\s+vs_main\s*\(([^)]*)\)`)
	reFragEntry    = regexp.MustCompile(`fn\s+fs_main\s*\(`)
	reAttr         = regexp.MustCompile(`@location\((\d+)\)\s*(\w+)\s*:\s*([\w<>]+)`)
	reUniformVar   = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var<uniform>\s+(\w+)\s*:\s*(\w+)\s*;`)
	reTextureVar   = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var\s+(\w+)\s*:\s*texture_2d<f32>\s*;`)
	reSamplerVar   = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var\s+(\w+)\s*:\s*sampler\s*;`)
	reStructField  = regexp.MustCompile(`(\w+)\s*:\s*(array<\s*[\w<>]+\s*,\s*\d+\s*>|[\w<>]+)`)
)

// scanModule reflects a WGSL module's interface: vertex attributes
// from vs_main's parameters, uniforms from the struct bound as
// var<uniform>, and texture/sampler pairs.
func scanModule(src string) (*moduleInterface, error) {
	clean := reBlockComment.ReplaceAllString(src, " ")
	clean = reLineComment.ReplaceAllString(clean, " ")

	vs := reVertexEntry.FindStringSubmatch(clean)
	if vs == nil {
		return nil, &glim.ShaderError{Stage: glim.StageVertex, Log: "entry point vs_main not found"}
	}
	if !reFragEntry.MatchString(clean) {
		return nil, &glim.ShaderError{Stage: glim.StageFragment, Log: "entry point fs_main not found"}
	}

	m := &moduleInterface{slots: make(map[string]*uniformSlot)}

	for _, match := range reAttr.FindAllStringSubmatch(vs[1], -1) {
		loc, _ := strconv.Atoi(match[1])
		typ, comps, err := attrTypeFromWGSL(match[3])
		if err != nil {
			return nil, &glim.ShaderError{
				Stage: glim.StageVertex,
				Log:   fmt.Sprintf("attribute %s: %v", match[2], err),
			}
		}
		m.attrs = append(m.attrs, glim.Attribute{
			Name: match[2], Location: loc, Type: typ, Components: comps,
		})
	}
	sort.Slice(m.attrs, func(i, j int) bool { return m.attrs[i].Location < m.attrs[j].Location })

	if err := scanUniformBlock(clean, m); err != nil {
		return nil, err
	}
	if err := scanTextures(clean, m); err != nil {
		return nil, err
	}
	return m, nil
}

// scanUniformBlock finds the var<uniform> declaration and lays out its
// struct fields into the uniform block.
func scanUniformBlock(clean string, m *moduleInterface) error {
	uv := reUniformVar.FindStringSubmatch(clean)
	if uv == nil {
		return nil
	}
	if uv[1] != "0" || uv[2] != "0" {
		return &glim.ShaderError{
			Stage: glim.StageLink,
			Log:   fmt.Sprintf("uniform %s must be bound at @group(0) @binding(0)", uv[3]),
		}
	}

	reStruct := regexp.MustCompile(`(?s)struct\s+` + regexp.QuoteMeta(uv[4]) + `\s*\{([^}]*)\}`)
	body := reStruct.FindStringSubmatch(clean)
	if body == nil {
		return &glim.ShaderError{
			Stage: glim.StageLink,
			Log:   fmt.Sprintf("uniform struct %s not found", uv[4]),
		}
	}

	offset := 0
	for _, field := range reStructField.FindAllStringSubmatch(body[1], -1) {
		typ, count, err := uniformTypeFromWGSL(field[2])
		if err != nil {
			return &glim.ShaderError{
				Stage: glim.StageLink,
				Log:   fmt.Sprintf("uniform %s: %v", field[1], err),
			}
		}
		align, size := uniformLayout(typ)
		if count > 1 {
			// Array elements are padded to 16-byte strides.
			align = 16
			size = count * roundUp(size, 16)
		}
		offset = roundUp(offset, align)
		u := glim.Uniform{Name: field[1], Location: len(m.uniforms), Type: typ, Count: count}
		m.uniforms = append(m.uniforms, u)
		m.slots[u.Name] = &uniformSlot{u: u, offset: offset, texture: -1}
		offset += size
	}
	m.blockSize = roundUp(offset, 16)
	return nil
}

// scanTextures pairs texture declarations with their samplers. A
// sampler at binding N+1 belongs to the texture at binding N; left
// over samplers pair in declaration order.
func scanTextures(clean string, m *moduleInterface) error {
	samplers := reSamplerVar.FindAllStringSubmatch(clean, -1)
	next := 0
	for _, match := range reTextureVar.FindAllStringSubmatch(clean, -1) {
		binding, _ := strconv.Atoi(match[2])
		decl := &textureDecl{name: match[3], binding: uint32(binding), unit: -1}

		found := false
		for _, s := range samplers {
			sb, _ := strconv.Atoi(s[2])
			if sb == binding+1 {
				decl.samplerBinding = uint32(sb)
				found = true
				break
			}
		}
		if !found {
			if next >= len(samplers) {
				return &glim.ShaderError{
					Stage: glim.StageLink,
					Log:   fmt.Sprintf("texture %s has no sampler", decl.name),
				}
			}
			sb, _ := strconv.Atoi(samplers[next][2])
			decl.samplerBinding = uint32(sb)
			next++
		}

		u := glim.Uniform{Name: decl.name, Location: len(m.uniforms), Type: glim.UniformSampler, Count: 1}
		m.uniforms = append(m.uniforms, u)
		m.slots[u.Name] = &uniformSlot{u: u, offset: -1, texture: len(m.textures)}
		m.textures = append(m.textures, decl)
	}
	return nil
}

func attrTypeFromWGSL(s string) (glim.AttributeType, int, error) {
	switch s {
	case "f32":
		return glim.AttrFloat, 1, nil
	case "vec2<f32>":
		return glim.AttrFloat, 2, nil
	case "vec3<f32>":
		return glim.AttrFloat, 3, nil
	case "vec4<f32>":
		return glim.AttrFloat, 4, nil
	case "i32", "u32":
		return glim.AttrInt, 1, nil
	case "vec2<i32>", "vec2<u32>":
		return glim.AttrInt, 2, nil
	case "vec3<i32>", "vec3<u32>":
		return glim.AttrInt, 3, nil
	case "vec4<i32>", "vec4<u32>":
		return glim.AttrInt, 4, nil
	default:
		return 0, 0, fmt.Errorf("unsupported attribute type %q", s)
	}
}

func uniformTypeFromWGSL(s string) (glim.UniformType, int, error) {
	if inner, ok := strings.CutPrefix(s, "array<"); ok {
		inner = strings.TrimSuffix(inner, ">")
		elem, countStr, ok := strings.Cut(inner, ",")
		if !ok {
			return 0, 0, fmt.Errorf("runtime-sized array %q not allowed in uniforms", s)
		}
		count, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil || count <= 0 {
			return 0, 0, fmt.Errorf("bad array length in %q", s)
		}
		typ, n, err := uniformTypeFromWGSL(strings.TrimSpace(elem))
		if err != nil || n != 1 {
			return 0, 0, fmt.Errorf("unsupported array element in %q", s)
		}
		return typ, count, nil
	}
	switch s {
	case "f32":
		return glim.UniformFloat, 1, nil
	case "vec2<f32>":
		return glim.UniformVec2, 1, nil
	case "vec3<f32>":
		return glim.UniformVec3, 1, nil
	case "vec4<f32>":
		return glim.UniformVec4, 1, nil
	case "mat2x2<f32>":
		return glim.UniformMat2, 1, nil
	case "mat3x3<f32>":
		return glim.UniformMat3, 1, nil
	case "mat4x4<f32>":
		return glim.UniformMat4, 1, nil
	case "i32", "u32":
		return glim.UniformInt, 1, nil
	case "vec2<i32>", "vec2<u32>":
		return glim.UniformIVec2, 1, nil
	case "vec3<i32>", "vec3<u32>":
		return glim.UniformIVec3, 1, nil
	case "vec4<i32>", "vec4<u32>":
		return glim.UniformIVec4, 1, nil
	default:
		return 0, 0, fmt.Errorf("unsupported uniform type %q", s)
	}
}

// uniformLayout returns the WGSL uniform address space alignment and
// size of a type.
func uniformLayout(t glim.UniformType) (align, size int) {
	switch t {
	case glim.UniformFloat, glim.UniformInt:
		return 4, 4
	case glim.UniformVec2, glim.UniformIVec2:
		return 8, 8
	case glim.UniformVec3, glim.UniformIVec3:
		return 16, 12
	case glim.UniformVec4, glim.UniformIVec4:
		return 16, 16
	case glim.UniformMat2:
		return 8, 16
	case glim.UniformMat3:
		// Three columns at vec4 strides.
		return 16, 48
	case glim.UniformMat4:
		return 16, 64
	default:
		return 16, 16
	}
}

func roundUp(v, align int) int {
	return (v + align - 1) &^ (align - 1)
}

// packUniform serializes a value into the uniform block at offset,
// honoring WGSL matrix column strides. Array uniforms are written one
// element at a time; the value lands in the first element.
func packUniform(block []byte, offset int, t glim.UniformType, v *glim.UniformValue) {
	switch t {
	case glim.UniformMat3:
		f := v.Floats()
		for col := 0; col < 3; col++ {
			for row := 0; row < 3; row++ {
				putFloat(block, offset+col*16+row*4, f[col*3+row])
			}
		}
	case glim.UniformInt, glim.UniformIVec2, glim.UniformIVec3, glim.UniformIVec4:
		for i, n := range v.Ints() {
			binary.LittleEndian.PutUint32(block[offset+i*4:], uint32(n))
		}
	default:
		for i, f := range v.Floats() {
			putFloat(block, offset+i*4, f)
		}
	}
}

func putFloat(block []byte, offset int, f float32) {
	binary.LittleEndian.PutUint32(block[offset:], math.Float32bits(f))
}
