package bind_group_provider

import (
	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
)

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBuffer binds a shared buffer. The provider never releases it.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding int, buf backend.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[binding] = buf
		delete(p.owned, binding)
	}
}

// WithOwnedBuffer binds a buffer the provider owns. Release hands it to the free queue.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the owned buffer for the specified binding
func WithOwnedBuffer(binding int, buf backend.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[binding] = buf
		p.owned[binding] = true
	}
}

// WithTexture binds a texture.
func WithTexture(binding int, tex backend.Texture) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.textures[binding] = tex
	}
}

// WithSampler binds a sampler.
func WithSampler(binding int, s backend.Sampler) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.samplers[binding] = s
	}
}

// WithUVRect sets the normalised texture viewport. Defaults to the full texture.
//
// Parameters:
//   - r: the viewport in 0..1 texture coordinates
//
// Returns:
//   - BindGroupProviderOption: a function that sets the viewport
func WithUVRect(r common.Rect) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.uvRect = r
	}
}

// WithAlpha sets the per-set alpha multiplier. Defaults to 1.
func WithAlpha(alpha float32) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.alpha = alpha
	}
}

// WithSetUniforms makes Init create a per-set uniform buffer holding the viewport and alpha at the given binding.
//
// Parameters:
//   - binding: the binding index of the per-set uniform block
//
// Returns:
//   - BindGroupProviderOption: a function that requests the uniform buffer
func WithSetUniforms(binding int) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.uniformBinding = binding
	}
}
