package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// APNG dispose and blend operations (fcTL chunk).
const (
	apngDisposeNone       = 0
	apngDisposeBackground = 1
	apngDisposePrevious   = 2

	apngBlendSource = 0
)

type pngChunk struct {
	typ  string
	data []byte
}

type apngFrame struct {
	width, height  int
	xOff, yOff     int
	delayNum       uint16
	delayDen       uint16
	dispose, blend byte
	data           [][]byte
}

var errBadAPNG = errors.New("malformed apng")

func readChunks(data []byte) ([]pngChunk, error) {
	var chunks []pngChunk
	rest := data[len(sigPNG):]
	for len(rest) >= 12 {
		n := int(binary.BigEndian.Uint32(rest[:4]))
		if n < 0 || len(rest) < 12+n {
			return nil, errBadAPNG
		}
		chunks = append(chunks, pngChunk{typ: string(rest[4:8]), data: rest[8 : 8+n]})
		rest = rest[12+n:]
	}
	return chunks, nil
}

// isAPNG reports whether a PNG stream carries an animation control chunk
// ahead of its image data.
func isAPNG(data []byte) bool {
	if !bytes.HasPrefix(data, sigPNG) {
		return false
	}
	chunks, err := readChunks(data)
	if err != nil {
		return false
	}
	for _, c := range chunks {
		switch c.typ {
		case "acTL":
			return true
		case "IDAT":
			return false
		}
	}
	return false
}

// decodeAPNG splits an animated PNG into standalone PNG streams, decodes
// each with image/png and composites them honouring dispose/blend ops.
func decodeAPNG(data []byte, lim limits) (*sequence, error) {
	chunks, err := readChunks(data)
	if err != nil {
		return nil, err
	}
	var (
		ihdr   []byte
		shared []pngChunk
		frames []*apngFrame
		cur    *apngFrame
	)
	for _, c := range chunks {
		switch c.typ {
		case "IHDR":
			ihdr = c.data
		case "acTL", "IEND":
		case "fcTL":
			if len(c.data) < 26 {
				return nil, errBadAPNG
			}
			cur = &apngFrame{
				width:    int(binary.BigEndian.Uint32(c.data[4:8])),
				height:   int(binary.BigEndian.Uint32(c.data[8:12])),
				xOff:     int(binary.BigEndian.Uint32(c.data[12:16])),
				yOff:     int(binary.BigEndian.Uint32(c.data[16:20])),
				delayNum: binary.BigEndian.Uint16(c.data[20:22]),
				delayDen: binary.BigEndian.Uint16(c.data[22:24]),
				dispose:  c.data[24],
				blend:    c.data[25],
			}
			frames = append(frames, cur)
			if lim.frames > 0 && len(frames) > lim.frames {
				return nil, errTooManyFrames
			}
		case "IDAT":
			// IDAT without a preceding fcTL is a default image outside the animation.
			if cur != nil {
				cur.data = append(cur.data, c.data)
			}
		case "fdAT":
			if cur == nil || len(c.data) < 4 {
				return nil, errBadAPNG
			}
			cur.data = append(cur.data, c.data[4:])
		default:
			if len(frames) == 0 {
				shared = append(shared, c)
			}
		}
	}
	if len(ihdr) < 13 || len(frames) == 0 {
		return nil, errBadAPNG
	}
	w := int(binary.BigEndian.Uint32(ihdr[0:4]))
	h := int(binary.BigEndian.Uint32(ihdr[4:8]))
	if err := lim.checkCanvas(w, h); err != nil {
		return nil, err
	}
	if err := lim.checkAnimation(w, h, len(frames)); err != nil {
		return nil, err
	}
	bounds := image.Rect(0, 0, w, h)
	for _, f := range frames {
		if f.width <= 0 || f.height <= 0 || !image.Rect(f.xOff, f.yOff, f.xOff+f.width, f.yOff+f.height).In(bounds) {
			return nil, errBadAPNG
		}
	}
	canvas := image.NewNRGBA(bounds)
	seq := &sequence{}
	for i, f := range frames {
		img, err := png.Decode(bytes.NewReader(f.encode(ihdr, shared)))
		if err != nil {
			return nil, err
		}
		dispose := f.dispose
		if i == 0 && dispose == apngDisposePrevious {
			dispose = apngDisposeBackground
		}
		var saved *image.NRGBA
		if dispose == apngDisposePrevious {
			saved = cloneNRGBA(canvas)
		}
		rect := image.Rect(f.xOff, f.yOff, f.xOff+f.width, f.yOff+f.height)
		op := draw.Over
		if f.blend == apngBlendSource {
			op = draw.Src
		}
		draw.Draw(canvas, rect, img, img.Bounds().Min, op)
		seq.append(cloneNRGBA(canvas), f.delay())
		switch dispose {
		case apngDisposeBackground:
			draw.Draw(canvas, rect, image.Transparent, image.Point{}, draw.Src)
		case apngDisposePrevious:
			canvas = saved
		}
	}
	return seq, nil
}

// delay converts the fcTL fraction of a second into hundredths.
func (f *apngFrame) delay() int {
	den := int(f.delayDen)
	if den == 0 {
		den = 100
	}
	return int(f.delayNum) * 100 / den
}

func (f *apngFrame) encode(ihdr []byte, shared []pngChunk) []byte {
	var buf bytes.Buffer
	buf.Write(sigPNG)
	hdr := append([]byte(nil), ihdr...)
	binary.BigEndian.PutUint32(hdr[0:4], uint32(f.width))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(f.height))
	writeChunk(&buf, "IHDR", hdr)
	for _, c := range shared {
		writeChunk(&buf, c.typ, c.data)
	}
	for _, d := range f.data {
		writeChunk(&buf, "IDAT", d)
	}
	writeChunk(&buf, "IEND", nil)
	return buf.Bytes()
}

func writeChunk(buf *bytes.Buffer, typ string, data []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(data)))
	buf.Write(n[:])
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	buf.WriteString(typ)
	buf.Write(data)
	binary.BigEndian.PutUint32(n[:], crc.Sum32())
	buf.Write(n[:])
}
