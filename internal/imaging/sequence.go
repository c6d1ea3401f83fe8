package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// minDelay is the smallest frame delay, in hundredths of a second, that
// browsers honour; shorter delays are rendered at defaultDelay.
const (
	minDelay     = 2
	defaultDelay = 10
)

// sequence is the engine's image handle: fully composited frames that all
// share the same bounds anchored at the origin.
type sequence struct {
	frames []*image.NRGBA
	delays []int
}

func (s *sequence) Bounds() image.Rectangle {
	if s == nil || len(s.frames) == 0 {
		return image.Rectangle{}
	}
	return s.frames[0].Bounds()
}

func (s *sequence) FrameCount() int {
	if s == nil {
		return 0
	}
	return len(s.frames)
}

func (s *sequence) animated() bool {
	return s.FrameCount() > 1
}

func (s *sequence) append(frame *image.NRGBA, delay int) {
	s.frames = append(s.frames, frame)
	s.delays = append(s.delays, normalizeDelay(delay))
}

func (s *sequence) duration() int {
	total := 0
	for _, d := range s.delays {
		total += d
	}
	return total
}

// frameAt returns the index of the frame visible at t hundredths of a second,
// looping the sequence.
func (s *sequence) frameAt(t int) int {
	total := s.duration()
	if total <= 0 || len(s.frames) <= 1 {
		return 0
	}
	t %= total
	for i, d := range s.delays {
		if t < d {
			return i
		}
		t -= d
	}
	return len(s.frames) - 1
}

func normalizeDelay(d int) int {
	if d < minDelay {
		return defaultDelay
	}
	return d
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func scaleNRGBA(src image.Image, w, h int) *image.NRGBA {
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return toNRGBA(src)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
