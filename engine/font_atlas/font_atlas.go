// Package font_atlas rasterises a range of glyphs of a font face into a single RGBA atlas image that the renderer
// uploads as the cache-owned font texture.
package font_atlas

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	// ErrAtlasFull is returned when the glyphs do not fit into the maximum atlas size.
	ErrAtlasFull = errors.New("font_atlas: glyphs do not fit the maximum atlas size")
)

// Glyph locates one rasterised glyph inside the atlas.
type Glyph struct {
	Rune rune
	// UV is the glyph rectangle in normalised atlas coordinates: u0, v0, u1, v1.
	UV [4]float32
	// Bounds is the glyph rectangle relative to the pen position on the baseline, in pixels.
	Bounds image.Rectangle
	// Advance is the horizontal pen advance in pixels.
	Advance float32
}

// atlas is the implementation of the Atlas interface.
type atlas struct {
	img     *image.NRGBA
	glyphs  map[rune]Glyph
	white   [2]float32
	ascent  float32
	descent float32
	height  float32

	ranges   [][2]rune
	padding  int
	maxWidth int
}

// Atlas is a packed glyph image with per-glyph placement.
type Atlas interface {
	// Image returns the atlas pixels. Glyph coverage is stored in alpha over white.
	Image() *image.NRGBA

	// Width returns the width of the atlas in pixels.
	Width() int

	// Height returns the height of the atlas in pixels.
	Height() int

	// Glyph looks up a rasterised glyph.
	//
	// Parameters:
	//   - r: the rune
	//
	// Returns:
	//   - Glyph: the glyph placement
	//   - bool: false if r is outside the rasterised ranges or the face has no glyph for it
	Glyph(r rune) (Glyph, bool)

	// Len returns the number of rasterised glyphs.
	Len() int

	// WhiteUV returns the centre of an opaque white texel, used for untextured shapes.
	WhiteUV() [2]float32

	// Ascent, Descent and LineHeight return the vertical font metrics in pixels.
	Ascent() float32
	Descent() float32
	LineHeight() float32
}

var _ Atlas = &atlas{}

// DefaultFace returns the built-in 7x13 bitmap face.
func DefaultFace() font.Face {
	return basicfont.Face7x13
}

// GoRegularFace returns the Go Regular font at the given size in pixels.
//
// Parameters:
//   - size: the font size in pixels per em
//
// Returns:
//   - font.Face: the face; the caller closes it when the atlas is built
//   - error: a parse error
func GoRegularFace(size float64) (font.Face, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse go regular: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("go regular face: %w", err)
	}
	return face, nil
}

// New rasterises the configured rune ranges of face into an atlas.
//
// Glyphs are packed on shelves, left to right, top to bottom, sorted by rune. A 2x2 white block at the origin
// provides WhiteUV.
//
// Parameters:
//   - face: the font face to rasterise
//   - options: functional options selecting ranges, padding and maximum width
//
// Returns:
//   - Atlas: the atlas
//   - error: ErrAtlasFull if the glyphs need more rows than the maximum width allows
func New(face font.Face, options ...AtlasBuilderOption) (Atlas, error) {
	a := &atlas{
		glyphs:   make(map[rune]Glyph),
		ranges:   [][2]rune{{0x20, 0x7e}},
		padding:  1,
		maxWidth: 512,
	}
	for _, opt := range options {
		opt(a)
	}

	type placed struct {
		r       rune
		dr      image.Rectangle
		mask    image.Image
		maskp   image.Point
		advance fixed.Int26_6
		at      image.Point
	}

	var glyphs []placed
	for _, rg := range a.ranges {
		for r := rg[0]; r <= rg[1]; r++ {
			dr, mask, maskp, advance, ok := face.Glyph(fixed.Point26_6{}, r)
			if !ok {
				continue
			}
			glyphs = append(glyphs, placed{r: r, dr: dr, mask: mask, maskp: maskp, advance: advance})
		}
	}

	// shelf packing, the white block takes the first slot
	pad := a.padding
	x, y, shelf := 2+pad, 0, 2
	width := 2 + pad
	for i := range glyphs {
		w, h := glyphs[i].dr.Dx(), glyphs[i].dr.Dy()
		if w+pad > a.maxWidth {
			return nil, fmt.Errorf("glyph %q is %d pixels wide: %w", glyphs[i].r, w, ErrAtlasFull)
		}
		if x+w > a.maxWidth {
			x = 0
			y += shelf + pad
			shelf = 0
		}
		glyphs[i].at = image.Pt(x, y)
		x += w + pad
		shelf = max(shelf, h)
		width = max(width, x)
	}
	height := y + shelf
	if height > a.maxWidth {
		return nil, fmt.Errorf("%d glyphs need %d rows: %w", len(glyphs), height, ErrAtlasFull)
	}

	a.img = image.NewNRGBA(image.Rect(0, 0, nextPow2(width), nextPow2(height)))
	draw.Draw(a.img, image.Rect(0, 0, 2, 2), image.White, image.Point{}, draw.Src)
	iw, ih := float32(a.img.Bounds().Dx()), float32(a.img.Bounds().Dy())
	a.white = [2]float32{1 / iw, 1 / ih}

	for _, g := range glyphs {
		dst := g.dr.Sub(g.dr.Min).Add(g.at)
		draw.DrawMask(a.img, dst, image.White, image.Point{}, g.mask, g.maskp, draw.Over)
		a.glyphs[g.r] = Glyph{
			Rune: g.r,
			UV: [4]float32{
				float32(dst.Min.X) / iw, float32(dst.Min.Y) / ih,
				float32(dst.Max.X) / iw, float32(dst.Max.Y) / ih,
			},
			Bounds:  g.dr,
			Advance: fixedToFloat32(g.advance),
		}
	}

	m := face.Metrics()
	a.ascent = fixedToFloat32(m.Ascent)
	a.descent = fixedToFloat32(m.Descent)
	a.height = fixedToFloat32(m.Height)
	return a, nil
}

func (a *atlas) Image() *image.NRGBA {
	return a.img
}

func (a *atlas) Width() int {
	return a.img.Bounds().Dx()
}

func (a *atlas) Height() int {
	return a.img.Bounds().Dy()
}

func (a *atlas) Glyph(r rune) (Glyph, bool) {
	g, ok := a.glyphs[r]
	return g, ok
}

func (a *atlas) Len() int {
	return len(a.glyphs)
}

func (a *atlas) WhiteUV() [2]float32 {
	return a.white
}

func (a *atlas) Ascent() float32 {
	return a.ascent
}

func (a *atlas) Descent() float32 {
	return a.descent
}

func (a *atlas) LineHeight() float32 {
	return a.height
}

func fixedToFloat32(v fixed.Int26_6) float32 {
	return float32(v) / 64
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
