package shader

// UISource draws textured, vertex-coloured UI triangles.
//
// Group 0 layout:
//   - binding 0: frame uniforms (projection, global alpha)
//   - binding 1: set uniforms (uv sub-rectangle of the texture, per-set alpha)
//   - binding 2: texture
//   - binding 3: sampler
const UISource = `
struct FrameUniforms {
    projection: mat4x4<f32>,
    alpha: f32,
    _pad0: f32,
    _pad1: f32,
    _pad2: f32,
};

struct SetUniforms {
    uv_rect: vec4<f32>,
    alpha: f32,
    _pad0: f32,
    _pad1: f32,
    _pad2: f32,
};

@group(0) @binding(0) var<uniform> frame: FrameUniforms;
@group(0) @binding(1) var<uniform> set_uniforms: SetUniforms;
@group(0) @binding(2) var ui_texture: texture_2d<f32>;
@group(0) @binding(3) var ui_sampler: sampler;

struct VertexInput {
    @location(0) pos: vec2<f32>,
    @location(1) uv: vec2<f32>,
    @location(2) color: vec4<f32>,
};

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) color: vec4<f32>,
    @location(1) uv: vec2<f32>,
};

@vertex
fn vs_main(input: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.position = frame.projection * vec4<f32>(input.pos, 0.0, 1.0);
    out.color = input.color;
    out.uv = mix(set_uniforms.uv_rect.xy, set_uniforms.uv_rect.zw, input.uv);
    return out;
}

@fragment
fn fs_main(input: VertexOutput) -> @location(0) vec4<f32> {
    let texel = textureSample(ui_texture, ui_sampler, input.uv);
    let color = input.color * texel;
    return vec4<f32>(color.rgb, color.a * frame.alpha * set_uniforms.alpha);
}
`

// IndexedGraphicsSource expands 8-bit indexed tile graphics through a palette texture into an RGBA target.
// It draws a single full-target triangle.
//
// Group 0 layout:
//   - binding 0: params (tile size, map size in tiles, scroll offset)
//   - binding 1: graphics, 8-bit colour indices packed four per word, tiles stored back to back
//   - binding 2: tile map, one tile index per map cell
//   - binding 3: tile flags per map cell (bit 0 horizontal flip, bit 1 vertical flip, bits 8-15 palette offset)
//   - binding 4: palette texture
const IndexedGraphicsSource = `
struct Params {
    tile_size: vec2<u32>,
    map_size: vec2<u32>,
    scroll: vec2<u32>,
    _pad: vec2<u32>,
};

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> graphics: array<u32>;
@group(0) @binding(2) var<storage, read> tile_map: array<u32>;
@group(0) @binding(3) var<storage, read> tile_flags: array<u32>;
@group(0) @binding(4) var palette: texture_2d<f32>;

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> @builtin(position) vec4<f32> {
    let uv = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
    return vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
}

@fragment
fn fs_main(@builtin(position) frag: vec4<f32>) -> @location(0) vec4<f32> {
    let map_px = params.tile_size * params.map_size;
    let p = (vec2<u32>(frag.xy) + params.scroll) % map_px;
    let cell = p / params.tile_size;
    let cell_index = cell.y * params.map_size.x + cell.x;
    let tile = tile_map[cell_index];
    let flags = tile_flags[cell_index];
    var local = p % params.tile_size;
    if ((flags & 1u) != 0u) {
        local.x = params.tile_size.x - 1u - local.x;
    }
    if ((flags & 2u) != 0u) {
        local.y = params.tile_size.y - 1u - local.y;
    }
    let texel = tile * params.tile_size.x * params.tile_size.y + local.y * params.tile_size.x + local.x;
    let word = graphics[texel / 4u];
    let color_index = (word >> ((texel % 4u) * 8u)) & 0xffu;
    let palette_offset = (flags >> 8u) & 0xffu;
    return textureLoad(palette, vec2<i32>(i32(color_index + palette_offset), 0), 0);
}
`
