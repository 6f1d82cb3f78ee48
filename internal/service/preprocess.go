package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"time"

	"github.com/marcote/comphawk/internal/domain"
	"github.com/marcote/comphawk/internal/imagesig"
	"github.com/marcote/comphawk/internal/logger"
	"github.com/marcote/comphawk/internal/storage"
)

// ImageFetcher downloads raw image bytes. Satisfied by imagesig.Engine.
type ImageFetcher interface {
	FetchImageBytes(ctx context.Context, url string) ([]byte, error)
}

// ReferenceQueue is the pending-image surface the preprocessor polls.
type ReferenceQueue interface {
	NextPending(ctx context.Context) (*domain.ReferenceImage, error)
	MarkReady(ctx context.Context, id string, qualityScore float64, cropsJSON string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
}

// Preprocessor is the background loop that turns uploaded reference photos
// into scored, cropped inputs for pattern matching. It is independent of the
// dispatch loop and shares only the signature primitives.
type Preprocessor struct {
	refs     ReferenceQueue
	fetcher  ImageFetcher
	store    storage.ObjectStorage
	interval time.Duration
}

func NewPreprocessor(refs ReferenceQueue, fetcher ImageFetcher, store storage.ObjectStorage, interval time.Duration) *Preprocessor {
	return &Preprocessor{refs: refs, fetcher: fetcher, store: store, interval: interval}
}

// Run polls for pending reference images until ctx is cancelled. Images are
// processed one at a time; a drained queue suspends for the poll interval.
func (p *Preprocessor) Run(ctx context.Context) {
	logger.CtxInfo(ctx, "Reference-image preprocessor started")
	for {
		select {
		case <-ctx.Done():
			logger.CtxInfo(ctx, "Reference-image preprocessor stopping")
			return
		default:
		}

		ref, err := p.refs.NextPending(ctx)
		if err != nil {
			logger.CtxError(ctx, "Failed to fetch pending reference image: %v", err)
			p.sleep(ctx)
			continue
		}
		if ref == nil {
			p.sleep(ctx)
			continue
		}

		p.processOne(ctx, ref)
	}
}

func (p *Preprocessor) sleep(ctx context.Context) {
	select {
	case <-time.After(p.interval):
	case <-ctx.Done():
	}
}

func (p *Preprocessor) processOne(ctx context.Context, ref *domain.ReferenceImage) {
	rctx := logger.WithFields(ctx, logger.Fields{logger.FieldCardAssetID: ref.CardAssetID})

	data, err := p.fetcher.FetchImageBytes(rctx, ref.ImageURL)
	if err != nil {
		p.fail(rctx, ref.ID, fmt.Sprintf("failed to fetch reference image: %v", err))
		return
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		p.fail(rctx, ref.ID, fmt.Sprintf("failed to decode reference image: %v", err))
		return
	}

	quality := imagesig.QualityScore(img)

	crops, err := imagesig.Crops(img)
	if err != nil {
		p.fail(rctx, ref.ID, fmt.Sprintf("failed to generate crops: %v", err))
		return
	}

	cropURLs := make([]string, 0, len(crops))
	for _, crop := range crops {
		key := fmt.Sprintf("refs/%s/%s.jpg", ref.ID, crop.Label)
		url, err := storage.UploadBuffer(rctx, p.store, key, crop.Data, "image/jpeg")
		if err != nil {
			logger.CtxWarn(rctx, "Failed to upload crop %s: %v", crop.Label, err)
			continue
		}
		cropURLs = append(cropURLs, url)
	}

	cropsJSON, err := json.Marshal(cropURLs)
	if err != nil {
		p.fail(rctx, ref.ID, fmt.Sprintf("failed to encode crop urls: %v", err))
		return
	}

	if err := p.refs.MarkReady(rctx, ref.ID, quality, string(cropsJSON)); err != nil {
		logger.CtxError(rctx, "Failed to mark reference image ready: %v", err)
		return
	}
	logger.CtxInfo(rctx, "Reference image processed, quality %.2f with %d crops", quality, len(cropURLs))
}

func (p *Preprocessor) fail(ctx context.Context, id, msg string) {
	logger.CtxWarn(ctx, "Reference image failed: %s", msg)
	if err := p.refs.MarkFailed(ctx, id, msg); err != nil {
		logger.CtxError(ctx, "Failed to mark reference image failed: %v", err)
	}
}
