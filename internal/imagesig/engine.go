package imagesig

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/marcote/comphawk/internal/domain"
	_ "golang.org/x/image/webp"
)

// Engine fetches remote images and turns them into signatures. It is stateless
// from the caller's point of view and safe for concurrent use.
type Engine struct {
	client *resty.Client
}

// NewEngine creates a signature engine with a bounded HTTP client.
func NewEngine() *Engine {
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	client.SetHeader("Accept", "image/*")
	return &Engine{client: client}
}

// FetchImageBytes downloads raw image bytes from a URL.
func (e *Engine) FetchImageBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := e.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("image fetch returned status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// FetchSignature downloads an image and computes its signature.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - url: image URL (jpeg, png, gif, or webp).
// Returns:
//   - *domain.ImageSignature: computed signature.
//   - error: non-nil if fetching or decoding fails.
func (e *Engine) FetchSignature(ctx context.Context, url string) (*domain.ImageSignature, error) {
	data, err := e.FetchImageBytes(ctx, url)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	sig := Compute(img)
	return &sig, nil
}

// DecodeSignature computes a signature from already-fetched bytes.
func DecodeSignature(data []byte) (*domain.ImageSignature, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	sig := Compute(img)
	return &sig, nil
}
