package glim

import (
	"fmt"
	"strconv"
	"strings"
)

// ReflectSource scans GLSL-style vertex and fragment sources and
// returns the program interface they declare: vertex attributes
// ("attribute"/"in" declarations in the vertex source) and uniforms
// from both stages. Locations are assigned in declaration order,
// which is how backends without native reflection number them.
//
// A uniform declared in both stages must agree on its type; a mismatch
// is reported as a link-stage [*ShaderError].
func ReflectSource(vertexSrc, fragmentSrc string) ([]Attribute, []Uniform, error) {
	var attrs []Attribute
	uniformIndex := make(map[string]int)
	var uniforms []Uniform

	for _, stmt := range sourceStatements(vertexSrc) {
		fields := strings.Fields(stmt)
		if len(fields) < 3 {
			continue
		}
		switch fields[0] {
		case "attribute", "in":
			typ, comps, ok := attributeGLSLType(fields[1])
			if !ok {
				return nil, nil, &ShaderError{
					Stage: StageVertex,
					Log:   fmt.Sprintf("unsupported attribute type %q", fields[1]),
				}
			}
			attrs = append(attrs, Attribute{
				Name:       strings.TrimRight(fields[2], ";"),
				Location:   len(attrs),
				Type:       typ,
				Components: comps,
			})
		case "uniform":
			if err := appendUniform(&uniforms, uniformIndex, fields, StageVertex); err != nil {
				return nil, nil, err
			}
		}
	}

	for _, stmt := range sourceStatements(fragmentSrc) {
		fields := strings.Fields(stmt)
		if len(fields) < 3 || fields[0] != "uniform" {
			continue
		}
		if err := appendUniform(&uniforms, uniformIndex, fields, StageFragment); err != nil {
			return nil, nil, err
		}
	}

	return attrs, uniforms, nil
}

// appendUniform parses one "uniform <type> <name>[N];" declaration and
// merges it into the uniform list.
func appendUniform(uniforms *[]Uniform, index map[string]int, fields []string, stage ShaderStage) error {
	typ, ok := uniformGLSLType(fields[1])
	if !ok {
		return &ShaderError{
			Stage: stage,
			Log:   fmt.Sprintf("unsupported uniform type %q", fields[1]),
		}
	}
	name := strings.TrimRight(fields[2], ";")
	count := 1
	if open := strings.IndexByte(name, '['); open >= 0 {
		end := strings.IndexByte(name, ']')
		if end > open {
			if n, err := strconv.Atoi(name[open+1 : end]); err == nil && n > 0 {
				count = n
			}
		}
		name = name[:open]
	}
	if i, seen := index[name]; seen {
		if (*uniforms)[i].Type != typ {
			return &ShaderError{
				Stage: StageLink,
				Log: fmt.Sprintf("uniform %q declared %s and %s",
					name, (*uniforms)[i].Type, typ),
			}
		}
		return nil
	}
	index[name] = len(*uniforms)
	*uniforms = append(*uniforms, Uniform{
		Name:     name,
		Location: len(*uniforms),
		Type:     typ,
		Count:    count,
	})
	return nil
}

// sourceStatements strips comments and preprocessor lines and splits
// the source into semicolon-terminated statements.
func sourceStatements(src string) []string {
	var b strings.Builder
	b.Grow(len(src))
	for i := 0; i < len(src); {
		switch {
		case strings.HasPrefix(src[i:], "//"):
			if nl := strings.IndexByte(src[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				i = len(src)
			}
		case strings.HasPrefix(src[i:], "/*"):
			if end := strings.Index(src[i+2:], "*/"); end >= 0 {
				i += end + 4
			} else {
				i = len(src)
			}
		default:
			b.WriteByte(src[i])
			i++
		}
	}

	var stmts []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, stmt := range strings.Split(line, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt != "" {
				stmts = append(stmts, stmt)
			}
		}
	}
	return stmts
}

// attributeGLSLType maps a GLSL type name to an attribute description.
func attributeGLSLType(name string) (AttributeType, int, bool) {
	switch name {
	case "float":
		return AttrFloat, 1, true
	case "vec2":
		return AttrFloat, 2, true
	case "vec3":
		return AttrFloat, 3, true
	case "vec4":
		return AttrFloat, 4, true
	case "int":
		return AttrInt, 1, true
	case "ivec2":
		return AttrInt, 2, true
	case "ivec3":
		return AttrInt, 3, true
	case "ivec4":
		return AttrInt, 4, true
	default:
		return 0, 0, false
	}
}

// uniformGLSLType maps a GLSL type name to a UniformType.
func uniformGLSLType(name string) (UniformType, bool) {
	switch name {
	case "float":
		return UniformFloat, true
	case "vec2":
		return UniformVec2, true
	case "vec3":
		return UniformVec3, true
	case "vec4":
		return UniformVec4, true
	case "mat2":
		return UniformMat2, true
	case "mat3":
		return UniformMat3, true
	case "mat4":
		return UniformMat4, true
	case "int":
		return UniformInt, true
	case "ivec2":
		return UniformIVec2, true
	case "ivec3":
		return UniformIVec3, true
	case "ivec4":
		return UniformIVec4, true
	case "sampler2D":
		return UniformSampler, true
	default:
		return 0, false
	}
}
