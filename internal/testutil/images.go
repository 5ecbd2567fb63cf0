package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/bits"
	"testing"
)

const fixtureSize = 16

// palette is the 27 colors with channels in {0, 128, 255}. Any two entries
// are at least 127 apart.
var palette = func() []color.NRGBA {
	levels := []uint8{0, 128, 255}
	var p []color.NRGBA
	for _, r := range levels {
		for _, g := range levels {
			for _, b := range levels {
				p = append(p, color.NRGBA{R: r, G: g, B: b, A: 255})
			}
		}
	}
	return p
}()

// DistinctImage returns the n-th member (0 <= n < 27) of a family of 16x16
// images that never look alike to one another. The brightness layout of
// image n is a Walsh pattern, so two members share about half of their hash
// bits, and the nine region sample pixels get colors no closer than 127.
func DistinctImage(n int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, fixtureSize, fixtureSize))
	mask := uint(n + 1)
	for y := 0; y < fixtureSize; y++ {
		for x := 0; x < fixtureSize; x++ {
			c := color.NRGBA{R: 30, G: 30, B: 30, A: 255}
			if bits.OnesCount(uint(y*fixtureSize+x)&mask)%2 == 1 {
				c = color.NRGBA{R: 220, G: 220, B: 220, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}

	k := 0
	for _, fy := range []int{4, 8, 12} {
		for _, fx := range []int{4, 8, 12} {
			img.SetNRGBA(fx, fy, palette[(n+k)%len(palette)])
			k++
		}
	}
	return img
}

// Brighten returns a copy of img with delta added to every channel
func Brighten(img *image.NRGBA, delta int) *image.NRGBA {
	out := image.NewNRGBA(img.Bounds())
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := int(img.Pix[i+c]) + delta
			if v > 255 {
				v = 255
			}
			if v < 0 {
				v = 0
			}
			out.Pix[i+c] = uint8(v)
		}
		out.Pix[i+3] = img.Pix[i+3]
	}
	return out
}

// Solid returns a w x h image of a single color
func Solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// EncodePNG encodes img as PNG
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// EncodeJPEG encodes img as JPEG at the given quality
func EncodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// DistinctPNG is DistinctImage(n) encoded as PNG
func DistinctPNG(t *testing.T, n int) []byte {
	t.Helper()
	return EncodePNG(t, DistinctImage(n))
}

// HeaderOnlyPNG returns a PNG signature and IHDR chunk declaring a w x h
// 8-bit grayscale image with no pixel data. It is a few dozen bytes however
// large the declared dimensions are.
func HeaderOnlyPNG(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 17)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], w)
	binary.BigEndian.PutUint32(chunk[8:], h)
	chunk[12] = 8 // bit depth, grayscale

	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(chunk)-4))
	buf.Write(n[:])
	buf.Write(chunk)
	binary.BigEndian.PutUint32(n[:], crc32.ChecksumIEEE(chunk))
	buf.Write(n[:])
	return buf.Bytes()
}
