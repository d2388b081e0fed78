package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gui/common"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-gui/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gui/engine/texture"
)

// ErrInvalidIndexedGraphics is returned when the inputs of DrawIndexedGraphics do not describe a valid tile map.
var ErrInvalidIndexedGraphics = errors.New("renderer: invalid indexed graphics input")

// IndexedGraphicsDesc describes the tile map DrawIndexedGraphics expands.
type IndexedGraphicsDesc struct {
	// TileWidth and TileHeight are the size of one tile in pixels.
	TileWidth, TileHeight uint32
	// MapWidth and MapHeight are the size of the tile map in tiles.
	MapWidth, MapHeight uint32
	// ScrollX and ScrollY offset the map in pixels. The map wraps around.
	ScrollX, ScrollY uint32
}

// indexedParams is the CPU mirror of the indexed graphics params uniform block.
type indexedParams struct {
	TileSize [2]uint32
	MapSize  [2]uint32
	Scroll   [2]uint32
	_        [2]uint32
}

func (d IndexedGraphicsDesc) validate(graphics []byte, tileMap, tileFlags []uint32) error {
	if d.TileWidth == 0 || d.TileHeight == 0 || d.MapWidth == 0 || d.MapHeight == 0 {
		return fmt.Errorf("tile %dx%d map %dx%d: %w", d.TileWidth, d.TileHeight, d.MapWidth, d.MapHeight, ErrInvalidIndexedGraphics)
	}
	cells := int(d.MapWidth) * int(d.MapHeight)
	if len(tileMap) < cells || len(tileFlags) < cells {
		return fmt.Errorf("%d map cells, %d tile indices, %d tile flags: %w", cells, len(tileMap), len(tileFlags), ErrInvalidIndexedGraphics)
	}
	tileBytes := int(d.TileWidth) * int(d.TileHeight)
	for i, tile := range tileMap[:cells] {
		if (int(tile)+1)*tileBytes > len(graphics) {
			return fmt.Errorf("cell %d references tile %d beyond %d bytes of graphics: %w", i, tile, len(graphics), ErrInvalidIndexedGraphics)
		}
	}
	return nil
}

// drawIndexedGraphics records one pass expanding the tile map into target. Every input goes into a transient
// storage buffer created initialised, so the call is legal anywhere inside the frame outside a pass.
func (r *renderer) drawIndexedGraphics(target texture.Texture, graphics []byte, tileMap, tileFlags []uint32, palette texture.Texture, desc IndexedGraphicsDesc) error {
	switch {
	case target.IsDisposed():
		return fmt.Errorf("target %s: %w", target.Label(), texture.ErrDisposed)
	case target.Kind() != texture.KindOwned || target.GPUTexture().Usage()&backend.TextureUsageRenderTarget == 0:
		return fmt.Errorf("target %s is not an owned render target: %w", target.Label(), ErrInvalidIndexedGraphics)
	case palette.Kind() != texture.KindPalette:
		return fmt.Errorf("%s: %w", palette.Label(), texture.ErrNotPalette)
	case palette.IsDisposed():
		return fmt.Errorf("palette %s: %w", palette.Label(), texture.ErrDisposed)
	}
	if err := desc.validate(graphics, tileMap, tileFlags); err != nil {
		return err
	}

	params := indexedParams{
		TileSize: [2]uint32{desc.TileWidth, desc.TileHeight},
		MapSize:  [2]uint32{desc.MapWidth, desc.MapHeight},
		Scroll:   [2]uint32{desc.ScrollX, desc.ScrollY},
	}
	inputs := []struct {
		binding uint32
		label   string
		data    []byte
		usage   backend.BufferUsage
	}{
		{pipeline.IndexedBindingParams, "params", common.StructToBytes(&params), backend.BufferUsageUniform},
		{pipeline.IndexedBindingGraphics, "graphics", graphics, backend.BufferUsageStorage},
		{pipeline.IndexedBindingTileMap, "tile_map", common.SliceToBytes(tileMap), backend.BufferUsageStorage},
		{pipeline.IndexedBindingTileFlags, "tile_flags", common.SliceToBytes(tileFlags), backend.BufferUsageStorage},
	}

	options := []bind_group_provider.BindGroupProviderOption{
		bind_group_provider.WithTexture(int(pipeline.IndexedBindingPalette), palette.GPUTexture()),
	}
	var created []backend.Buffer
	for _, in := range inputs {
		buf, err := r.backend.CreateBufferInit("indexed_graphics/"+in.label, in.data, in.usage)
		if err != nil {
			for _, c := range created {
				c.Release()
			}
			return fmt.Errorf("indexed graphics %s: %w", in.label, err)
		}
		created = append(created, buf)
		options = append(options, bind_group_provider.WithOwnedBuffer(int(in.binding), buf))
	}

	provider := bind_group_provider.NewBindGroupProvider("indexed_graphics/"+target.Label(), options...)
	defer provider.Release()
	if err := provider.Init(r.backend, pipeline.KeyIndexedGraphics); err != nil {
		return err
	}

	if err := r.backend.BeginPass(backend.PassDescriptor{Label: "indexed_graphics", Target: target.GPUTexture(), Load: backend.LoadOpClear}); err != nil {
		return fmt.Errorf("begin indexed graphics pass: %w", err)
	}
	if err := r.backend.SetPipeline(pipeline.KeyIndexedGraphics); err != nil {
		r.backend.EndPass()
		return err
	}
	r.backend.SetResourceSet(0, provider.ResourceSet())
	r.backend.Draw(3)
	r.backend.EndPass()
	return nil
}
