package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
)

const (
	defaultMaxPixels      = 4096 * 4096
	defaultMaxTotalPixels = 64 << 20
)

// limits bounds what a single decode may allocate. Zero fields disable the
// corresponding check.
type limits struct {
	frames int
	// pixels caps the canvas of one frame.
	pixels int
	// total caps frames x canvas pixels across an animation.
	total int
}

var errTooLarge = errors.New("image dimensions exceed the pixel budget")

// checkCanvas rejects a w x h canvas above the per-frame budget. It runs on
// header values, before anything of that size is allocated.
func (l limits) checkCanvas(w, h int) error {
	if w < 0 || h < 0 {
		return fmt.Errorf("invalid dimensions %dx%d", w, h)
	}
	if l.pixels > 0 && (w > l.pixels || h > l.pixels || w*h > l.pixels) {
		return fmt.Errorf("%dx%d: %w", w, h, errTooLarge)
	}
	return nil
}

// checkAnimation rejects animations whose composited frames would exceed the
// total budget.
func (l limits) checkAnimation(w, h, frames int) error {
	if l.frames > 0 && frames > l.frames {
		return errTooManyFrames
	}
	if l.total > 0 && frames > 0 && w*h > l.total/frames {
		return fmt.Errorf("%d frames of %dx%d: %w", frames, w, h, errTooLarge)
	}
	return nil
}

// checkHeader reads only the container header and applies the canvas budget.
func (l limits) checkHeader(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return l.checkCanvas(cfg.Width, cfg.Height)
}

var errBadGIF = errors.New("malformed gif")

// countGIFFrames walks the GIF block structure without decompressing any
// image data.
func countGIFFrames(data []byte) (int, error) {
	const headerLen = 6 + 7
	if len(data) < headerLen {
		return 0, errBadGIF
	}
	pos := headerLen
	if flags := data[10]; flags&0x80 != 0 {
		pos += 3 << ((flags & 0x07) + 1)
	}
	frames := 0
	skipSubBlocks := func() error {
		for {
			if pos >= len(data) {
				return errBadGIF
			}
			n := int(data[pos])
			pos++
			if n == 0 {
				return nil
			}
			pos += n
		}
	}
	for pos < len(data) {
		switch data[pos] {
		case 0x21:
			pos += 2
			if err := skipSubBlocks(); err != nil {
				return 0, err
			}
		case 0x2c:
			if pos+10 > len(data) {
				return 0, errBadGIF
			}
			flags := data[pos+9]
			pos += 10
			if flags&0x80 != 0 {
				pos += 3 << ((flags & 0x07) + 1)
			}
			pos++ // LZW minimum code size
			if err := skipSubBlocks(); err != nil {
				return 0, err
			}
			frames++
		case 0x3b:
			return frames, nil
		default:
			return 0, errBadGIF
		}
	}
	// A missing trailer is tolerated by image/gif as long as the frames are complete.
	return frames, nil
}
