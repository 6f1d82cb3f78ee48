package imagesig

import (
	"image"
	"image/color"
	"testing"

	"github.com/marcote/comphawk/internal/domain"
)

func sig(hash uint64, r, g, b uint8) domain.ImageSignature {
	return domain.ImageSignature{HashBits: hash, AvgR: r, AvgG: g, AvgB: b, Width: 100, Height: 100}
}

func TestCompareSymmetric(t *testing.T) {
	pairs := []struct {
		name string
		a, b domain.ImageSignature
	}{
		{"identical", sig(0xFFFF, 10, 20, 30), sig(0xFFFF, 10, 20, 30)},
		{"disjoint", sig(0, 0, 0, 0), sig(^uint64(0), 255, 255, 255)},
		{"partial overlap", sig(0xF0F0F0F0, 100, 50, 25), sig(0x0F0F0F0F, 25, 50, 100)},
	}
	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			ab := Compare(tt.a, tt.b)
			ba := Compare(tt.b, tt.a)
			if ab.Score != ba.Score {
				t.Errorf("score not symmetric: %v vs %v", ab.Score, ba.Score)
			}
			if ab.Distance != ba.Distance {
				t.Errorf("distance not symmetric: %d vs %d", ab.Distance, ba.Distance)
			}
			if ab.ColorDistance != ba.ColorDistance {
				t.Errorf("color distance not symmetric: %v vs %v", ab.ColorDistance, ba.ColorDistance)
			}
		})
	}
}

func TestCompareBounds(t *testing.T) {
	tests := []struct {
		name      string
		a, b      domain.ImageSignature
		wantScore float64
	}{
		{"identical hash scores 1", sig(0xDEADBEEF, 1, 2, 3), sig(0xDEADBEEF, 9, 9, 9), 1},
		{"fully inverted hash scores 0", sig(0, 0, 0, 0), sig(^uint64(0), 0, 0, 0), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.a, tt.b)
			if got.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.Score < 0 || got.Score > 1 {
				t.Errorf("Score %v out of [0,1]", got.Score)
			}
		})
	}
}

func TestTier(t *testing.T) {
	tests := []struct {
		score float64
		want  domain.MatchTier
	}{
		{1.0, domain.TierVerified},
		{0.9, domain.TierVerified},
		{0.89, domain.TierLikely},
		{0.8, domain.TierLikely},
		{0.79, domain.TierWeak},
		{0.7, domain.TierWeak},
		{0.69, domain.TierNone},
		{0, domain.TierNone},
	}
	for _, tt := range tests {
		if got := Tier(tt.score, 0.7); got != tt.want {
			t.Errorf("Tier(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

// tierRank orders tiers so monotonicity can be asserted numerically.
func tierRank(tier domain.MatchTier) int {
	switch tier {
	case domain.TierVerified:
		return 3
	case domain.TierLikely:
		return 2
	case domain.TierWeak:
		return 1
	default:
		return 0
	}
}

func TestTierMonotonic(t *testing.T) {
	scores := []float64{0, 0.1, 0.5, 0.69, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1}
	for i := 1; i < len(scores); i++ {
		lo := tierRank(Tier(scores[i-1], 0.7))
		hi := tierRank(Tier(scores[i], 0.7))
		if hi < lo {
			t.Errorf("tier rank decreased from score %v to %v", scores[i-1], scores[i])
		}
	}
}

func TestComputeDeterministic(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			// left half dark, right half light
			c := color.RGBA{A: 255}
			if x >= 16 {
				c = color.RGBA{R: 240, G: 240, B: 240, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}

	a := Compute(img)
	b := Compute(img)
	if a != b {
		t.Fatalf("Compute is not deterministic: %+v vs %+v", a, b)
	}
	if a.Width != 32 || a.Height != 32 {
		t.Errorf("dimensions = %dx%d, want 32x32", a.Width, a.Height)
	}
	if a.HashBits == 0 || a.HashBits == ^uint64(0) {
		t.Errorf("half-split image produced a degenerate hash %b", a.HashBits)
	}
	if got := Compare(a, b); got.Score != 1 {
		t.Errorf("self comparison score = %v, want 1", got.Score)
	}
}

func TestMatchTierAssignment(t *testing.T) {
	ref := sig(0, 10, 10, 10)
	// 6 differing bits -> score 1 - 6/64 = 0.90625
	verified := sig(0x3F, 10, 10, 10)
	got := Match(ref, verified, 0.7)
	if got.Tier != domain.TierVerified {
		t.Errorf("Tier = %v, want verified (score %v)", got.Tier, got.Score)
	}
	if got.Distance != 6 {
		t.Errorf("Distance = %d, want 6", got.Distance)
	}

	// 40 differing bits -> score 0.375
	far := sig((1<<40)-1, 10, 10, 10)
	got = Match(ref, far, 0.7)
	if got.Tier != domain.TierNone {
		t.Errorf("Tier = %v, want none (score %v)", got.Tier, got.Score)
	}
}
