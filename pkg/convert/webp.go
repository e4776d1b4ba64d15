package convert

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"

	"golang.org/x/image/riff"
	"golang.org/x/image/webp"
)

// VP8X feature flags
const (
	webpAnimationBit = 1 << 1
	webpAlphaBit     = 1 << 4
)

var (
	fccWEBP = riff.FourCC{'W', 'E', 'B', 'P'}
	fccVP8X = riff.FourCC{'V', 'P', '8', 'X'}
	fccANMF = riff.FourCC{'A', 'N', 'M', 'F'}
	fccALPH = riff.FourCC{'A', 'L', 'P', 'H'}
	fccVP8  = riff.FourCC{'V', 'P', '8', ' '}
	fccVP8L = riff.FourCC{'V', 'P', '8', 'L'}
)

var errNoWebPFrame = errors.New("webp: animation has no frames")

// isAnimatedWebP reports whether data is a WebP container with the animation flag set
func isAnimatedWebP(data []byte) bool {
	return len(data) >= 21 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP" &&
		string(data[12:16]) == "VP8X" &&
		data[20]&webpAnimationBit != 0
}

// decodeAnimatedWebP decodes the first frame of an animated WebP.
// x/image/webp only reads still images, so the frame's bitstream is
// repacked into a still container and decoded from there. A frame
// smaller than the canvas is placed at its offset on a transparent canvas.
func decodeAnimatedWebP(data []byte) (image.Image, error) {
	formType, rr, err := riff.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("webp: %w", err)
	}
	if formType != fccWEBP {
		return nil, errors.New("webp: not a WEBP container")
	}

	var canvas image.Rectangle
	for {
		chunkID, chunkLen, chunkData, err := rr.Next()
		if err == io.EOF {
			return nil, errNoWebPFrame
		}
		if err != nil {
			return nil, fmt.Errorf("webp: %w", err)
		}

		switch chunkID {
		case fccVP8X:
			var buf [10]byte
			if chunkLen != 10 {
				return nil, errors.New("webp: bad VP8X chunk")
			}
			if _, err := io.ReadFull(chunkData, buf[:]); err != nil {
				return nil, fmt.Errorf("webp: %w", err)
			}
			canvas = image.Rect(0, 0, int(u24(buf[4:7]))+1, int(u24(buf[7:10]))+1)

		case fccANMF:
			frame, err := io.ReadAll(chunkData)
			if err != nil {
				return nil, fmt.Errorf("webp: %w", err)
			}
			return decodeFrame(frame, canvas)
		}
	}
}

// decodeFrame decodes one ANMF payload: a 16-byte frame header followed by
// an optional ALPH chunk and a VP8 or VP8L chunk.
func decodeFrame(frame []byte, canvas image.Rectangle) (image.Image, error) {
	if len(frame) < 16 {
		return nil, errors.New("webp: short ANMF chunk")
	}
	offset := image.Pt(int(u24(frame[0:3]))*2, int(u24(frame[3:6]))*2)
	width, height := u24(frame[6:9])+1, u24(frame[9:12])+1

	// Bytes 12:16 (duration and flags) take the list-type slot
	_, fr, err := riff.NewListReader(uint32(len(frame)-12), bytes.NewReader(frame[12:]))
	if err != nil {
		return nil, fmt.Errorf("webp: %w", err)
	}

	var alph []byte
	for {
		chunkID, _, chunkData, err := fr.Next()
		if err == io.EOF {
			return nil, errNoWebPFrame
		}
		if err != nil {
			return nil, fmt.Errorf("webp: %w", err)
		}

		switch chunkID {
		case fccALPH:
			if alph, err = io.ReadAll(chunkData); err != nil {
				return nil, fmt.Errorf("webp: %w", err)
			}

		case fccVP8, fccVP8L:
			bitstream, err := io.ReadAll(chunkData)
			if err != nil {
				return nil, fmt.Errorf("webp: %w", err)
			}
			img, err := webp.Decode(bytes.NewReader(stillWebP(chunkID, bitstream, alph, width, height)))
			if err != nil {
				return nil, err
			}
			return placeOnCanvas(img, offset, canvas), nil
		}
	}
}

// stillWebP builds a non-animated container around a single bitstream.
// Alpha for lossy frames needs the extended (VP8X) layout.
func stillWebP(id riff.FourCC, bitstream, alph []byte, width, height uint32) []byte {
	var body bytes.Buffer
	body.WriteString("WEBP")
	if id == fccVP8 && alph != nil {
		var vp8x [10]byte
		vp8x[0] = webpAlphaBit
		putU24(vp8x[4:7], width-1)
		putU24(vp8x[7:10], height-1)
		writeChunk(&body, fccVP8X, vp8x[:])
		writeChunk(&body, fccALPH, alph)
	}
	writeChunk(&body, id, bitstream)

	var out bytes.Buffer
	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func writeChunk(w *bytes.Buffer, id riff.FourCC, data []byte) {
	w.Write(id[:])
	binary.Write(w, binary.LittleEndian, uint32(len(data)))
	w.Write(data)
	if len(data)%2 == 1 {
		w.WriteByte(0)
	}
}

// placeOnCanvas returns img unchanged when it already fills the canvas
func placeOnCanvas(img image.Image, offset image.Point, canvas image.Rectangle) image.Image {
	r := img.Bounds().Sub(img.Bounds().Min).Add(offset)
	if canvas.Empty() || r == canvas {
		return img
	}
	dst := image.NewNRGBA(canvas)
	draw.Draw(dst, r, img, img.Bounds().Min, draw.Src)
	return dst
}

func u24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func putU24(b []byte, v uint32) {
	b[0], b[1], b[2] = byte(v), byte(v>>8), byte(v>>16)
}
