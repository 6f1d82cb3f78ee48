package imagesig

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// splitImage fills the left half black and the right half white, giving a
// high-contrast frame that is not blown out.
func splitImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{A: 255}
			if x >= w/2 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return img
}

func TestQualityScorePenalizesBlownOutBackground(t *testing.T) {
	sharp := QualityScore(splitImage(800, 800))
	washed := QualityScore(whiteImage(800, 800))

	if sharp <= washed {
		t.Fatalf("high-contrast frame scored %v, blown-out frame %v", sharp, washed)
	}
	if sharp < 0.9 {
		t.Errorf("full-resolution high-contrast frame scored %v, want near 1", sharp)
	}
	// Blown-out: no contrast and the near-white penalty on top.
	if washed > 0.15 {
		t.Errorf("blown-out frame scored %v, want heavy penalty", washed)
	}
}

func TestQualityScoreRewardsResolution(t *testing.T) {
	big := QualityScore(splitImage(800, 800))
	small := QualityScore(splitImage(200, 200))
	if small >= big {
		t.Fatalf("200px frame scored %v, 800px frame %v", small, big)
	}
}

func TestQualityScoreBounds(t *testing.T) {
	for _, img := range []image.Image{
		splitImage(800, 800),
		whiteImage(64, 64),
		image.NewRGBA(image.Rect(0, 0, 1, 1)),
	} {
		s := QualityScore(img)
		if s < 0 || s > 1 {
			t.Errorf("score %v out of [0,1]", s)
		}
	}
	if s := QualityScore(image.NewRGBA(image.Rect(0, 0, 0, 0))); s != 0 {
		t.Errorf("empty image scored %v, want 0", s)
	}
}

func TestCropsGeometry(t *testing.T) {
	crops, err := Crops(splitImage(400, 1000))
	if err != nil {
		t.Fatalf("Crops returned error: %v", err)
	}
	wantLabels := []string{"top", "bottom", "center"}
	if len(crops) != len(wantLabels) {
		t.Fatalf("got %d crops, want %d", len(crops), len(wantLabels))
	}
	wantHeights := map[string]int{"top": 200, "bottom": 200, "center": 1000}
	for i, crop := range crops {
		if crop.Label != wantLabels[i] {
			t.Errorf("crop %d label = %q, want %q", i, crop.Label, wantLabels[i])
		}
		decoded, err := jpeg.Decode(bytes.NewReader(crop.Data))
		if err != nil {
			t.Fatalf("crop %q is not a decodable JPEG: %v", crop.Label, err)
		}
		if w := decoded.Bounds().Dx(); w != 400 {
			t.Errorf("crop %q width = %d, want 400", crop.Label, w)
		}
		if h := decoded.Bounds().Dy(); h != wantHeights[crop.Label] {
			t.Errorf("crop %q height = %d, want %d", crop.Label, h, wantHeights[crop.Label])
		}
	}
}

func TestCropsSmallImage(t *testing.T) {
	crops, err := Crops(splitImage(8, 8))
	if err != nil {
		t.Fatalf("Crops returned error: %v", err)
	}
	if len(crops) != 3 {
		t.Fatalf("got %d crops from tiny image, want 3", len(crops))
	}
	for _, crop := range crops {
		if len(crop.Data) == 0 {
			t.Errorf("crop %q has no data", crop.Label)
		}
	}
}
