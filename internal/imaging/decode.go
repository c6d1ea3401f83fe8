package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"avatarforge/internal/domain"
)

// decode turns raw bytes of any accepted format into a composited sequence.
// Header dimensions are checked against lim before any pixel buffer is
// allocated.
func decode(data []byte, lim limits) (*sequence, error) {
	format, err := Sniff(data)
	if err != nil {
		return nil, err
	}
	if err := lim.checkHeader(data); err != nil {
		return nil, fmt.Errorf("imaging: decode %s: %v: %w", format, err, domain.ErrValidation)
	}
	var seq *sequence
	switch format {
	case FormatGIF:
		seq, err = decodeGIF(data, lim)
	case FormatPNG:
		if isAPNG(data) {
			seq, err = decodeAPNG(data, lim)
		} else {
			seq, err = decodeStill(png.Decode, data)
		}
	case FormatJPEG:
		seq, err = decodeStill(jpeg.Decode, data)
	case FormatWEBP:
		// x/image/webp yields the first frame only; animated WEBP becomes a still.
		seq, err = decodeStill(webp.Decode, data)
	}
	if err != nil {
		return nil, fmt.Errorf("imaging: decode %s: %v: %w", format, err, domain.ErrValidation)
	}
	if seq.FrameCount() == 0 {
		return nil, fmt.Errorf("imaging: %s has no frames: %w", format, domain.ErrValidation)
	}
	if b := seq.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("imaging: %s has empty bounds: %w", format, domain.ErrValidation)
	}
	return seq, nil
}

func decodeStill(fn func(r io.Reader) (image.Image, error), data []byte) (*sequence, error) {
	img, err := fn(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	seq := &sequence{}
	seq.append(toNRGBA(img), 0)
	return seq, nil
}

var errTooManyFrames = errors.New("too many frames")

func decodeGIF(data []byte, lim limits) (*sequence, error) {
	cfg, err := gif.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	n, err := countGIFFrames(data)
	if err != nil {
		return nil, err
	}
	// Every frame lies inside the logical screen, so the screen bounds what
	// DecodeAll and the composited copies allocate.
	if err := lim.checkAnimation(cfg.Width, cfg.Height, n); err != nil {
		return nil, err
	}
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(g.Image) == 0 {
		return &sequence{}, nil
	}
	if err := lim.checkAnimation(cfg.Width, cfg.Height, len(g.Image)); err != nil {
		return nil, err
	}
	w, h := g.Config.Width, g.Config.Height
	if w == 0 || h == 0 {
		b := g.Image[0].Bounds()
		w, h = b.Max.X, b.Max.Y
		if err := lim.checkCanvas(w, h); err != nil {
			return nil, err
		}
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))
	seq := &sequence{}
	for i, frame := range g.Image {
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		var saved *image.NRGBA
		if disposal == gif.DisposalPrevious {
			saved = cloneNRGBA(canvas)
		}
		fb := frame.Bounds()
		draw.Draw(canvas, fb, frame, fb.Min, draw.Over)
		delay := 0
		if i < len(g.Delay) {
			delay = g.Delay[i]
		}
		seq.append(cloneNRGBA(canvas), delay)
		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, fb, image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = saved
		}
	}
	return seq, nil
}
