// Package browser owns the automation surface. A Session wraps exactly one
// page, is passed into exactly one strategy invocation, and is explicitly
// released by its owner; there is no ambient browser handle.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/marcote/comphawk/internal/logger"
	"github.com/ysmood/gson"
)

// TileQuery describes how to pull listing tiles out of a results page. All
// sub-selectors are best effort; missing pieces yield empty fields, never
// errors.
type TileQuery struct {
	Root  string // tile container selector
	Title string // selector for the listing title, relative to the tile
	Link  string // selector for the detail link
	Price string // selector for the price text
	Date  string // selector for the sold/listed date text
	Thumb string // selector for the thumbnail img
}

// Tile is one extracted listing tile.
type Tile struct {
	Title     string
	Href      string
	PriceText string
	DateText  string
	ThumbURL  string
}

// Session is the capability a scraper strategy works against. Implementations
// must tolerate missing content (returning zero values) and classify hard
// automation faults via ErrorKind.
type Session interface {
	Navigate(url string) error
	WaitVisible(selector string, timeout time.Duration) bool
	Tiles(q TileQuery) ([]Tile, error)
	Text(selector string) (string, bool)
	Attr(selector, attr string) (string, bool)
	Click(selector string) error
	ScrollBy(pixels int) error
	Reload() error
	Screenshot(quality int) ([]byte, error)
	URL() string
	Release()
}

// Config holds browser-level settings.
type Config struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	NavTimeout     time.Duration
}

// Manager owns the shared browser process and hands out isolated sessions.
type Manager struct {
	browser *rod.Browser
	cfg     Config
	log     *logger.Logger
}

// NewManager launches the browser and connects to it.
// Parameters:
//   - cfg: browser configuration (headless, viewport, timeouts).
//   - log: logger instance.
// Returns:
//   - *Manager: connected manager.
//   - error: non-nil if the browser cannot be launched.
func NewManager(cfg Config, log *logger.Logger) (*Manager, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-dev-shm-usage")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Manager{browser: b, cfg: cfg, log: log}, nil
}

// Close shuts the browser process down.
func (m *Manager) Close() {
	if m.browser != nil {
		_ = m.browser.Close()
	}
}

// NewSession opens a fresh page bound to ctx. The returned session is owned by
// the caller and must be released exactly once.
func (m *Manager) NewSession(ctx context.Context) (Session, error) {
	page, err := m.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, classify(err)
	}
	page = page.Context(ctx)

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.ViewportWidth,
		Height:            m.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
		Mobile:            false,
	})
	if err != nil {
		_ = page.Close()
		return nil, classify(err)
	}

	return &rodSession{page: page, cfg: m.cfg, log: m.log}, nil
}

type rodSession struct {
	page *rod.Page
	cfg  Config
	log  *logger.Logger
}

func (s *rodSession) Navigate(url string) error {
	p := s.page.Timeout(s.cfg.NavTimeout)
	if err := p.Navigate(url); err != nil {
		return classify(err)
	}
	if err := p.WaitLoad(); err != nil {
		return classify(err)
	}
	return nil
}

// WaitVisible waits for a content-ready marker. A timeout is tolerated as
// "no items", not surfaced as an error.
func (s *rodSession) WaitVisible(selector string, timeout time.Duration) bool {
	el, err := s.page.Timeout(timeout).Element(selector)
	if err != nil {
		return false
	}
	if err := el.WaitVisible(); err != nil {
		return false
	}
	return true
}

func (s *rodSession) Tiles(q TileQuery) ([]Tile, error) {
	els, err := s.page.Elements(q.Root)
	if err != nil {
		return nil, classify(err)
	}

	tiles := make([]Tile, 0, len(els))
	for _, el := range els {
		tiles = append(tiles, Tile{
			Title:     elementText(el, q.Title),
			Href:      elementAttr(el, q.Link, "href"),
			PriceText: elementText(el, q.Price),
			DateText:  elementText(el, q.Date),
			ThumbURL:  elementAttr(el, q.Thumb, "src"),
		})
	}
	return tiles, nil
}

// elementText extracts trimmed text from a sub-element, empty when absent.
func elementText(el *rod.Element, selector string) string {
	if selector == "" {
		return ""
	}
	has, sub, err := el.Has(selector)
	if err != nil || !has {
		return ""
	}
	text, err := sub.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// elementAttr extracts an attribute from a sub-element, empty when absent.
func elementAttr(el *rod.Element, selector, attr string) string {
	if selector == "" {
		return ""
	}
	has, sub, err := el.Has(selector)
	if err != nil || !has {
		return ""
	}
	val, err := sub.Attribute(attr)
	if err != nil || val == nil {
		return ""
	}
	return strings.TrimSpace(*val)
}

func (s *rodSession) Text(selector string) (string, bool) {
	has, el, err := s.page.Has(selector)
	if err != nil || !has {
		return "", false
	}
	text, err := el.Text()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(text), true
}

func (s *rodSession) Attr(selector, attr string) (string, bool) {
	has, el, err := s.page.Has(selector)
	if err != nil || !has {
		return "", false
	}
	val, err := el.Attribute(attr)
	if err != nil || val == nil {
		return "", false
	}
	return strings.TrimSpace(*val), true
}

func (s *rodSession) Click(selector string) error {
	el, err := s.page.Timeout(5 * time.Second).Element(selector)
	if err != nil {
		return classify(err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify(err)
	}
	return nil
}

func (s *rodSession) ScrollBy(pixels int) error {
	if err := s.page.Mouse.Scroll(0, float64(pixels), 1); err != nil {
		return classify(err)
	}
	return nil
}

func (s *rodSession) Reload() error {
	if err := s.page.Reload(); err != nil {
		return classify(err)
	}
	if err := s.page.Timeout(s.cfg.NavTimeout).WaitLoad(); err != nil {
		return classify(err)
	}
	return nil
}

func (s *rodSession) Screenshot(quality int) ([]byte, error) {
	data, err := s.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(quality),
	})
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

func (s *rodSession) URL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Release closes the page. It must never panic or propagate errors; a failed
// close is logged and swallowed so the orchestrator's cleanup path stays safe.
func (s *rodSession) Release() {
	defer func() {
		if r := recover(); r != nil && s.log != nil {
			s.log.WithField("panic", r).Warn("Recovered while releasing browser session")
		}
	}()
	if err := s.page.Close(); err != nil && s.log != nil {
		s.log.WithError(err).Warn("Failed to close browser page")
	}
}
