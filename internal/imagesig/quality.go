package imagesig

import (
	"bytes"
	"image"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"
)

// Crop is one normalized region of a reference image, re-encoded as JPEG.
type Crop struct {
	Label string
	Data  []byte
}

// QualityScore rates a reference photo in [0,1]. It rewards resolution and
// contrast and penalizes frames that are almost entirely blown-out background.
// Tuned against the kinds of phone photos sellers upload.
func QualityScore(img image.Image) float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	// Resolution component: full credit at 800px on the short edge.
	short := w
	if h < short {
		short = h
	}
	resScore := float64(short) / 800.0
	if resScore > 1 {
		resScore = 1
	}

	// Contrast component: luma standard deviation over a downsampled grid.
	const sample = 32
	small := image.NewRGBA(image.Rect(0, 0, sample, sample))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, bounds, draw.Src, nil)

	var lums [sample * sample]float64
	var sum float64
	nearWhite := 0
	for y := 0; y < sample; y++ {
		for x := 0; x < sample; x++ {
			c := small.RGBAAt(x, y)
			lum := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
			lums[y*sample+x] = lum
			sum += lum
			if lum > 240 {
				nearWhite++
			}
		}
	}
	mean := sum / (sample * sample)
	var variance float64
	for _, l := range lums {
		variance += (l - mean) * (l - mean)
	}
	stddev := math.Sqrt(variance / (sample * sample))
	contrastScore := stddev / 64.0
	if contrastScore > 1 {
		contrastScore = 1
	}

	score := 0.4*resScore + 0.6*contrastScore

	// A frame that is nearly all blown-out background has no usable subject.
	if float64(nearWhite)/(sample*sample) > 0.9 {
		score *= 0.25
	}

	return score
}

// Crops generates normalized regions from a reference image: top and bottom
// strips (where set name and numbering usually sit) and a center crop (the
// artwork). Each crop is resized to a fixed width and encoded as JPEG.
func Crops(img image.Image) ([]Crop, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	stripH := h / 5
	if stripH < 40 {
		stripH = 40
	}
	if stripH > h {
		stripH = h
	}

	regions := []struct {
		label string
		rect  image.Rectangle
	}{
		{"top", image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+stripH)},
		{"bottom", image.Rect(bounds.Min.X, bounds.Max.Y-stripH, bounds.Max.X, bounds.Max.Y)},
		{"center", image.Rect(bounds.Min.X+w/4, bounds.Min.Y+h/4, bounds.Max.X-w/4, bounds.Max.Y-h/4)},
	}

	const cropWidth = 400
	crops := make([]Crop, 0, len(regions))
	for _, region := range regions {
		r := region.rect.Intersect(bounds)
		if r.Empty() {
			continue
		}
		scale := float64(cropWidth) / float64(r.Dx())
		outH := int(float64(r.Dy()) * scale)
		if outH < 1 {
			outH = 1
		}
		out := image.NewRGBA(image.Rect(0, 0, cropWidth, outH))
		draw.ApproxBiLinear.Scale(out, out.Bounds(), img, r, draw.Src, nil)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 85}); err != nil {
			return nil, err
		}
		crops = append(crops, Crop{Label: region.label, Data: buf.Bytes()})
	}

	return crops, nil
}
