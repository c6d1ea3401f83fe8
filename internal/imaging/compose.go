package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/png"
	"math"

	"golang.org/x/image/draw"

	"avatarforge/internal/domain"
)

// Avatar placement inside the composed canvas, as fractions of its side.
const (
	avatarInset = 0.09
	avatarScale = 0.82
)

type frameRef struct {
	avatar, decoration, delay int
}

// timeline picks, for each output frame, which avatar and decoration frames
// are visible. The avatar's timing wins whenever it is animated; decoration
// frames are sampled at each avatar frame's start time and loop.
func timeline(av, deco *sequence) []frameRef {
	switch {
	case av.animated():
		refs := make([]frameRef, len(av.frames))
		t := 0
		for i, d := range av.delays {
			ref := frameRef{avatar: i, delay: d}
			if deco != nil {
				ref.decoration = deco.frameAt(t)
			}
			refs[i] = ref
			t += d
		}
		return refs
	case deco != nil && deco.animated():
		refs := make([]frameRef, len(deco.frames))
		for j, d := range deco.delays {
			refs[j] = frameRef{decoration: j, delay: d}
		}
		return refs
	default:
		return []frameRef{{}}
	}
}

// ComposeDecoration masks the avatar to a circle, places it on the canvas and
// draws the decoration over it. An empty decoration still re-encodes.
func (e *Engine) ComposeDecoration(ctx context.Context, avatar domain.ImageHandle, decoration []byte) (*domain.Artifact, error) {
	av, ok := avatar.(*sequence)
	if !ok || av.FrameCount() == 0 {
		return nil, fmt.Errorf("imaging: foreign or empty avatar handle")
	}
	var deco *sequence
	if len(decoration) > 0 {
		var err error
		if deco, err = decode(decoration, e.limits); err != nil {
			return nil, fmt.Errorf("imaging: decoration: %w", err)
		}
	}

	size := e.outputSize
	inner := int(math.Round(float64(size) * avatarScale))
	offset := int(math.Round(float64(size) * avatarInset))
	innerRect := image.Rect(offset, offset, offset+inner, offset+inner)
	mask := circleMask{d: inner}

	avatars := make(map[int]*image.NRGBA)
	decos := make(map[int]*image.NRGBA)
	refs := timeline(av, deco)
	frames := make([]*image.NRGBA, 0, len(refs))
	delays := make([]int, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, ok := avatars[ref.avatar]
		if !ok {
			a = scaleNRGBA(av.frames[ref.avatar], inner, inner)
			avatars[ref.avatar] = a
		}
		canvas := image.NewNRGBA(image.Rect(0, 0, size, size))
		draw.DrawMask(canvas, innerRect, a, image.Point{}, mask, image.Point{}, draw.Over)
		if deco != nil {
			d, ok := decos[ref.decoration]
			if !ok {
				d = scaleNRGBA(deco.frames[ref.decoration], size, size)
				decos[ref.decoration] = d
			}
			draw.Draw(canvas, canvas.Bounds(), d, image.Point{}, draw.Over)
		}
		frames = append(frames, canvas)
		delays = append(delays, ref.delay)
	}

	art := &domain.Artifact{Width: size, Height: size, Frames: len(frames)}
	var err error
	if len(frames) > 1 {
		art.Animated = true
		art.MIME = string(FormatGIF)
		art.Data, err = encodeGIF(frames, delays)
	} else {
		art.MIME = string(FormatPNG)
		var buf bytes.Buffer
		err = png.Encode(&buf, frames[0])
		art.Data = buf.Bytes()
	}
	if err != nil {
		return nil, fmt.Errorf("imaging: encode artifact: %w", err)
	}
	return art, nil
}

// circleMask is an anti-aliased disc of diameter d anchored at the origin.
type circleMask struct {
	d int
}

func (c circleMask) ColorModel() color.Model { return color.AlphaModel }

func (c circleMask) Bounds() image.Rectangle { return image.Rect(0, 0, c.d, c.d) }

func (c circleMask) At(x, y int) color.Color {
	r := float64(c.d) / 2
	dx := float64(x) + 0.5 - r
	dy := float64(y) + 0.5 - r
	dist := math.Sqrt(dx*dx + dy*dy)
	switch {
	case dist <= r-1:
		return color.Alpha{A: 0xff}
	case dist >= r:
		return color.Alpha{}
	}
	return color.Alpha{A: uint8((r - dist) * 0xff)}
}

// gifPalette reserves index 0 for full transparency.
var gifPalette = append(color.Palette{color.Transparent}, palette.WebSafe...)

const alphaThreshold = 0x80

func encodeGIF(frames []*image.NRGBA, delays []int) ([]byte, error) {
	q := newQuantizer(gifPalette)
	g := &gif.GIF{LoopCount: 0}
	for i, f := range frames {
		g.Image = append(g.Image, q.paletted(f))
		g.Delay = append(g.Delay, delays[i])
		g.Disposal = append(g.Disposal, gif.DisposalBackground)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// quantizer maps colours onto a fixed palette through a 15-bit lookup table.
type quantizer struct {
	pal color.Palette
	lut [1 << 15]int16
}

func newQuantizer(pal color.Palette) *quantizer {
	q := &quantizer{pal: pal}
	for i := range q.lut {
		q.lut[i] = -1
	}
	return q
}

func (q *quantizer) paletted(src *image.NRGBA) *image.Paletted {
	b := src.Bounds()
	dst := image.NewPaletted(b, q.pal)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.NRGBAAt(x, y)
			if c.A < alphaThreshold {
				dst.SetColorIndex(x, y, 0)
				continue
			}
			key := int(c.R>>3)<<10 | int(c.G>>3)<<5 | int(c.B>>3)
			idx := q.lut[key]
			if idx < 0 {
				idx = int16(q.pal.Index(color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}))
				q.lut[key] = idx
			}
			dst.SetColorIndex(x, y, uint8(idx))
		}
	}
	return dst
}
