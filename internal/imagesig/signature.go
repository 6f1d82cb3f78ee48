// Package imagesig computes compact perceptual signatures for approximate
// visual matching of listing photos against a reference image. Signatures are
// not cryptographic; two visually similar images should land within a small
// Hamming distance of each other.
package imagesig

import (
	"image"
	"math"
	"math/bits"

	"github.com/marcote/comphawk/internal/domain"
	"golang.org/x/image/draw"
)

// gridSize is the downsample edge; gridSize^2 must equal the hash bit count.
const gridSize = 8

// hashBitCount is the fixed signature length in bits.
const hashBitCount = gridSize * gridSize

// Comparison is the result of comparing two signatures.
type Comparison struct {
	Score         float64 // 1 - distance/bitCount, in [0,1]
	Distance      int     // Hamming distance over the hash bits
	ColorDistance float64 // Euclidean distance between average colors
}

// Compute derives a signature from decoded image bytes: downsample to an 8x8
// grid, convert to greyscale, and threshold each cell against the grid's own
// mean brightness.
func Compute(img image.Image) domain.ImageSignature {
	small := image.NewRGBA(image.Rect(0, 0, gridSize, gridSize))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var grey [hashBitCount]float64
	var sum float64
	var sumR, sumG, sumB uint32

	for y := 0; y < gridSize; y++ {
		for x := 0; x < gridSize; x++ {
			c := small.RGBAAt(x, y)
			sumR += uint32(c.R)
			sumG += uint32(c.G)
			sumB += uint32(c.B)
			// ITU-R BT.601 luma
			lum := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
			grey[y*gridSize+x] = lum
			sum += lum
		}
	}

	mean := sum / hashBitCount
	var hash uint64
	for i, lum := range grey {
		if lum >= mean {
			hash |= 1 << uint(i)
		}
	}

	bounds := img.Bounds()
	return domain.ImageSignature{
		HashBits: hash,
		AvgR:     uint8(sumR / hashBitCount),
		AvgG:     uint8(sumG / hashBitCount),
		AvgB:     uint8(sumB / hashBitCount),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}
}

// Compare scores two signatures. The comparison is symmetric and the score is
// bounded in [0,1], with 1 meaning identical hash bits.
func Compare(a, b domain.ImageSignature) Comparison {
	distance := bits.OnesCount64(a.HashBits ^ b.HashBits)

	dr := float64(a.AvgR) - float64(b.AvgR)
	dg := float64(a.AvgG) - float64(b.AvgG)
	db := float64(a.AvgB) - float64(b.AvgB)

	return Comparison{
		Score:         1 - float64(distance)/float64(hashBitCount),
		Distance:      distance,
		ColorDistance: math.Sqrt(dr*dr + dg*dg + db*db),
	}
}

// Tier buckets a similarity score into a discrete confidence tier. minScore is
// the configured floor below which a comparison counts as no match.
func Tier(score, minScore float64) domain.MatchTier {
	switch {
	case score >= 0.9:
		return domain.TierVerified
	case score >= 0.8:
		return domain.TierLikely
	case score >= minScore:
		return domain.TierWeak
	default:
		return domain.TierNone
	}
}

// Match builds the PatternMatch record persisted on a comp.
func Match(ref, candidate domain.ImageSignature, minScore float64) domain.PatternMatch {
	cmp := Compare(ref, candidate)
	return domain.PatternMatch{
		Score:         cmp.Score,
		Distance:      cmp.Distance,
		ColorDistance: cmp.ColorDistance,
		Tier:          Tier(cmp.Score, minScore),
	}
}
