// Package capture turns live pages into hosted evidence screenshots. Every
// path here degrades: a capture or upload failure costs the screenshot URL,
// never the comps that were scraped from the same page.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marcote/comphawk/internal/browser"
	"github.com/marcote/comphawk/internal/logger"
	"github.com/marcote/comphawk/internal/storage"
)

// Config holds screenshot capture settings.
type Config struct {
	JPEGQuality int
	RetryDelay  time.Duration
}

// Capturer produces and uploads evidence screenshots.
type Capturer struct {
	store storage.ObjectStorage
	cfg   Config
}

// NewCapturer creates a Capturer backed by the given object store.
func NewCapturer(store storage.ObjectStorage, cfg Config) *Capturer {
	return &Capturer{store: store, cfg: cfg}
}

// CaptureWithRetry takes a JPEG screenshot of the session's current page.
// On the first failure it reloads the page, waits, and tries once more.
// Returns nil when both attempts fail; callers treat nil as "no screenshot".
func (c *Capturer) CaptureWithRetry(ctx context.Context, sess browser.Session) []byte {
	data, err := sess.Screenshot(c.cfg.JPEGQuality)
	if err == nil {
		return data
	}
	logger.CtxWarn(ctx, "Screenshot failed, reloading page for one retry: %v", err)

	if err := sess.Reload(); err != nil {
		logger.CtxWarn(ctx, "Page reload before screenshot retry failed: %v", err)
		return nil
	}
	select {
	case <-time.After(c.cfg.RetryDelay):
	case <-ctx.Done():
		return nil
	}

	data, err = sess.Screenshot(c.cfg.JPEGQuality)
	if err != nil {
		logger.CtxWarn(ctx, "Screenshot retry failed: %v", err)
		return nil
	}
	return data
}

// UploadScreenshot stores JPEG bytes under a unique key and returns the public
// URL. An empty byte slice or a failed upload yields "", never an error: a
// missing screenshot URL is a permitted degraded state.
func (c *Capturer) UploadScreenshot(ctx context.Context, jobID, label string, data []byte) string {
	if len(data) == 0 {
		return ""
	}
	key := fmt.Sprintf("evidence/%s/%s-%s.jpg", jobID, label, uuid.New().String()[:8])
	url, err := storage.UploadBuffer(ctx, c.store, key, data, "image/jpeg")
	if err != nil {
		logger.CtxWarn(ctx, "Failed to upload screenshot %s: %v", key, err)
		return ""
	}
	return url
}

// CapturePage is the common capture-then-upload sequence used for both search
// pages and listing detail pages.
func (c *Capturer) CapturePage(ctx context.Context, sess browser.Session, jobID, label string) string {
	data := c.CaptureWithRetry(ctx, sess)
	if data == nil {
		return ""
	}
	return c.UploadScreenshot(ctx, jobID, label, data)
}
