package shader

// ShaderBuilderOption is a functional option used to configure a Shader during construction.
type ShaderBuilderOption func(*shader)

// WithEntryPoints overrides the vertex and fragment entry point names.
//
// Parameters:
//   - vertex: the vertex entry point name
//   - fragment: the fragment entry point name
//
// Returns:
//   - ShaderBuilderOption: a function that sets the entry points for this shader
func WithEntryPoints(vertex, fragment string) ShaderBuilderOption {
	return func(s *shader) {
		s.vertexEntry = vertex
		s.fragmentEntry = fragment
	}
}
