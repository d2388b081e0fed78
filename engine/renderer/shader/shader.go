package shader

import (
	"fmt"

	"github.com/gogpu/naga"
)

// ShaderType identifies a shader stage entry point within a module.
type ShaderType int

const (
	// ShaderTypeVertex is the vertex stage entry point.
	ShaderTypeVertex ShaderType = iota

	// ShaderTypeFragment is the fragment stage entry point.
	ShaderTypeFragment
)

// shader is the implementation of the Shader interface.
// It holds one WGSL module containing both the vertex and fragment entry points.
type shader struct {
	key           string
	source        string
	vertexEntry   string
	fragmentEntry string

	spirv []byte
}

// Shader defines the interface for a WGSL shader module used by a render pipeline. Backends create the
// GPU module either straight from Source or from the SPIR-V returned by SPIRV.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// EntryPoint returns the entry point name for the given stage.
	//
	// Parameters:
	//   - shaderType: the stage to look up
	//
	// Returns:
	//   - string: the entry point name (e.g. "vs_main"), or an empty string for an unknown stage
	EntryPoint(shaderType ShaderType) string

	// SPIRV compiles the source to SPIR-V on first use and caches the result.
	//
	// Returns:
	//   - []byte: the little-endian SPIR-V words
	//   - error: the compiler error, if any
	SPIRV() ([]byte, error)
}

var _ Shader = &shader{}

// NewShader creates a new Shader from WGSL source. The entry points default to vs_main and fs_main.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - source: the WGSL source code
//   - opts: a variadic list of ShaderBuilderOption functions
//
// Returns:
//   - Shader: a new Shader instance with the provided configuration
func NewShader(key, source string, opts ...ShaderBuilderOption) Shader {
	if source == "" {
		panic(fmt.Sprintf("shader: %s must have a source", key))
	}
	s := &shader{
		key:           key,
		source:        source,
		vertexEntry:   "vs_main",
		fragmentEntry: "fs_main",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint(shaderType ShaderType) string {
	switch shaderType {
	case ShaderTypeVertex:
		return s.vertexEntry
	case ShaderTypeFragment:
		return s.fragmentEntry
	default:
		return ""
	}
}

func (s *shader) SPIRV() ([]byte, error) {
	if s.spirv != nil {
		return s.spirv, nil
	}
	code, err := Compile(s.source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", s.key, err)
	}
	s.spirv = code
	return code, nil
}

// Compile compiles WGSL source to SPIR-V.
//
// Parameters:
//   - source: the WGSL source code
//
// Returns:
//   - []byte: the little-endian SPIR-V words
//   - error: an error if the source failed to parse, validate or lower
func Compile(source string) ([]byte, error) {
	code, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}
	return code, nil
}
