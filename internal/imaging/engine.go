package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"avatarforge/internal/domain"
)

const (
	defaultOutputSize = 288
	defaultMaxSide    = 512
	defaultMaxFrames  = 600
)

// Options tunes the in-process engine.
type Options struct {
	// OutputSize is the side of the composed canvas in pixels.
	OutputSize int
	// MaxSide caps the side of a normalized avatar; larger crops are downscaled.
	MaxSide int
	// MaxFrames rejects inputs with more frames than this.
	MaxFrames int
	// MaxPixels caps width x height of any decoded image, read from its header.
	MaxPixels int
	// MaxTotalPixels caps frames x width x height of a decoded animation.
	MaxTotalPixels int
}

// Engine is the process-wide image engine. It holds no mutable state, so
// concurrent calls are safe.
type Engine struct {
	outputSize int
	maxSide    int
	limits     limits
}

// New builds an Engine, applying defaults to unset options.
func New(opts Options) *Engine {
	e := &Engine{
		outputSize: opts.OutputSize,
		maxSide:    opts.MaxSide,
		limits:     limits{frames: opts.MaxFrames, pixels: opts.MaxPixels, total: opts.MaxTotalPixels},
	}
	if e.outputSize <= 0 {
		e.outputSize = defaultOutputSize
	}
	if e.maxSide <= 0 {
		e.maxSide = defaultMaxSide
	}
	if e.limits.frames <= 0 {
		e.limits.frames = defaultMaxFrames
	}
	if e.limits.pixels <= 0 {
		e.limits.pixels = defaultMaxPixels
	}
	if e.limits.total <= 0 {
		e.limits.total = defaultMaxTotalPixels
	}
	return e
}

// OutputSize returns the side of composed artifacts.
func (e *Engine) OutputSize() int { return e.outputSize }

// CropToSquare decodes raw and returns a centered square crop of every frame.
func (e *Engine) CropToSquare(ctx context.Context, raw []byte) (domain.ImageHandle, error) {
	seq, err := decode(raw, e.limits)
	if err != nil {
		return nil, err
	}
	b := seq.Bounds()
	side := min(b.Dx(), b.Dy())
	crop := image.Rect(0, 0, side, side).Add(image.Pt((b.Dx()-side)/2, (b.Dy()-side)/2))
	target := min(side, e.maxSide)

	out := &sequence{}
	for i, frame := range seq.frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sub := frame.SubImage(crop)
		out.frames = append(out.frames, scaleNRGBA(sub, target, target))
		out.delays = append(out.delays, seq.delays[i])
	}
	return out, nil
}

// EncodeHandle re-encodes a handle produced by this engine: PNG for stills,
// GIF for animations.
func (e *Engine) EncodeHandle(h domain.ImageHandle) ([]byte, error) {
	seq, ok := h.(*sequence)
	if !ok || seq.FrameCount() == 0 {
		return nil, fmt.Errorf("imaging: foreign or empty handle")
	}
	if seq.animated() {
		return encodeGIF(seq.frames, seq.delays)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, seq.frames[0]); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExtractFrames decodes an artifact back into its composited frames.
func (e *Engine) ExtractFrames(data []byte) ([]image.Image, error) {
	seq, err := decode(data, e.limits)
	if err != nil {
		return nil, err
	}
	frames := make([]image.Image, len(seq.frames))
	for i, f := range seq.frames {
		frames[i] = f
	}
	return frames, nil
}

// EncodePNG encodes a single still frame.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
