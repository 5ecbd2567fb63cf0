// Package imagesig computes compact perceptual signatures of photos and
// compares them. A signature is a 16x16 average hash of the grayscale image,
// the aspect ratio, and nine RGB samples taken on a 3x3 lattice.
package imagesig

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"math/bits"

	// Registered decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
	"golang.org/x/image/draw"
)

const (
	// HashSize is the side of the downscaled grayscale grid
	HashSize = 16
	// HashBits is the number of bits in a signature hash
	HashBits = HashSize * HashSize

	regionCount = 9
	// maxColorDistance is the normalizer for ColorSimilarity: the L1 bound
	// of an RGB difference, summed over every region.
	maxColorDistance = 255.0 * 3 * regionCount
)

// samplePoints are the fractional coordinates of the region samples
var samplePoints = [3]float64{0.25, 0.5, 0.75}

// ErrDecode is returned when the input is not a decodable image
var ErrDecode = errors.New("imagesig: cannot decode image")

// MaxPixels caps width*height of an image Compute will decode. Headers
// declaring more are rejected before any pixel buffer is allocated.
var MaxPixels int64 = 40_000_000

// RGB is an 8-bit color sample
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Signature is the comparable fingerprint of an image. It is a value type
// and never changes once computed.
type Signature struct {
	Hash        [HashBits / 64]uint64 `json:"hash"`
	AspectRatio float64               `json:"aspect_ratio"`
	Width       int                   `json:"width"`
	Height      int                   `json:"height"`
	Regions     [regionCount]RGB      `json:"regions"`
}

// Compute decodes data and returns its signature
func Compute(data []byte) (*Signature, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return FromImage(img)
}

// FromImage returns the signature of an already decoded image
func FromImage(img image.Image) (*Signature, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}

	sig := &Signature{
		AspectRatio: float64(w) / float64(h),
		Width:       w,
		Height:      h,
	}
	sig.Hash = averageHash(img)

	i := 0
	for _, fy := range samplePoints {
		for _, fx := range samplePoints {
			x := b.Min.X + int(float64(w)*fx)
			y := b.Min.Y + int(float64(h)*fy)
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			sig.Regions[i] = RGB{R: c.R, G: c.G, B: c.B}
			i++
		}
	}
	return sig, nil
}

// averageHash resizes to HashSize x HashSize, converts to luma and sets one
// bit per pixel brighter than the mean
func averageHash(img image.Image) [HashBits / 64]uint64 {
	small := image.NewNRGBA(image.Rect(0, 0, HashSize, HashSize))
	draw.CatmullRom.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var lum [HashBits]uint8
	for i := range lum {
		p := small.Pix[i*4 : i*4+4]
		lum[i] = luma(color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]})
	}

	var sum float64
	for _, p := range lum {
		sum += float64(p)
	}
	mean := sum / HashBits

	var hash [HashBits / 64]uint64
	for i, p := range lum {
		if float64(p) > mean {
			hash[i/64] |= 1 << (i % 64)
		}
	}
	return hash
}

// luma uses the ITU-R 601-2 weights
func luma(c color.NRGBA) uint8 {
	return uint8((299*uint32(c.R) + 587*uint32(c.G) + 114*uint32(c.B) + 500) / 1000)
}

// HashSimilarity returns the percentage of matching hash bits
func HashSimilarity(a, b *Signature) float64 {
	diff := 0
	for i := range a.Hash {
		diff += bits.OnesCount64(a.Hash[i] ^ b.Hash[i])
	}
	return float64(HashBits-diff) / HashBits * 100
}

// ColorSimilarity compares the region samples. 100 means identical samples;
// the result is never negative.
func ColorSimilarity(a, b *Signature) float64 {
	var total float64
	for i := range a.Regions {
		dr := float64(a.Regions[i].R) - float64(b.Regions[i].R)
		dg := float64(a.Regions[i].G) - float64(b.Regions[i].G)
		db := float64(a.Regions[i].B) - float64(b.Regions[i].B)
		total += math.Sqrt(dr*dr + dg*dg + db*db)
	}
	sim := 100 - total/maxColorDistance*100
	if sim < 0 {
		return 0
	}
	return sim
}

// Similarity is the larger of HashSimilarity and ColorSimilarity
func Similarity(a, b *Signature) float64 {
	return math.Max(HashSimilarity(a, b), ColorSimilarity(a, b))
}
