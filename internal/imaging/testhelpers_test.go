package imaging

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}

func gifBytes(t *testing.T, w, h int, delays []int) []byte {
	t.Helper()
	g := &gif.GIF{}
	for i, d := range delays {
		frame := image.NewPaletted(image.Rect(0, 0, w, h), palette.Plan9)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				frame.SetColorIndex(x, y, uint8(i*17%256))
			}
		}
		g.Image = append(g.Image, frame)
		g.Delay = append(g.Delay, d)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatalf("gif encode: %v", err)
	}
	return buf.Bytes()
}

// apngBytes assembles an animated PNG out of full-size frames.
func apngBytes(t *testing.T, frames []image.Image, delayCS uint16) []byte {
	t.Helper()
	var out bytes.Buffer
	out.Write(sigPNG)
	seq := uint32(0)
	for i, f := range frames {
		chunks, err := readChunks(pngBytes(t, f))
		if err != nil {
			t.Fatalf("read chunks: %v", err)
		}
		if i == 0 {
			writeChunk(&out, "IHDR", chunks[0].data)
			actl := make([]byte, 8)
			binary.BigEndian.PutUint32(actl[0:4], uint32(len(frames)))
			writeChunk(&out, "acTL", actl)
		}
		b := f.Bounds()
		fctl := make([]byte, 26)
		binary.BigEndian.PutUint32(fctl[0:4], seq)
		seq++
		binary.BigEndian.PutUint32(fctl[4:8], uint32(b.Dx()))
		binary.BigEndian.PutUint32(fctl[8:12], uint32(b.Dy()))
		binary.BigEndian.PutUint16(fctl[20:22], delayCS)
		binary.BigEndian.PutUint16(fctl[22:24], 100)
		writeChunk(&out, "fcTL", fctl)
		for _, c := range chunks {
			if c.typ != "IDAT" {
				continue
			}
			if i == 0 {
				writeChunk(&out, "IDAT", c.data)
				continue
			}
			fdat := make([]byte, 4+len(c.data))
			binary.BigEndian.PutUint32(fdat[0:4], seq)
			seq++
			copy(fdat[4:], c.data)
			writeChunk(&out, "fdAT", fdat)
		}
	}
	writeChunk(&out, "IEND", nil)
	return out.Bytes()
}
