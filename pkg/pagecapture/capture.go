// Package pagecapture renders public product pages in headless Chrome.
package pagecapture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"food-explorer/pkg/models"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	BaseURL   = "https://world.openfoodfacts.org"
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// PNGQuality is the screenshot quality at which chromedp encodes PNG.
// Any lower value yields JPEG.
const PNGQuality = 100

var ErrInvalidCode = errors.New("barcode must contain at least one digit")

type Capturer struct {
	BaseURL string
	Timeout time.Duration
	Width   int
	Height  int
	// Quality below PNGQuality switches the output to JPEG.
	Quality int

	log *zap.Logger
}

func New(baseURL string, log *zap.Logger) *Capturer {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Capturer{
		BaseURL: baseURL,
		Timeout: 45 * time.Second,
		Width:   1920,
		Height:  1080,
		Quality: PNGQuality,
		log:     log,
	}
}

// ProductURL is the public page of a product, e.g. {base}/product/3017620422003.
func (c *Capturer) ProductURL(code string) (string, error) {
	digits := models.NormalizeBarcode(code)
	if digits == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	return url.JoinPath(c.BaseURL, "product", digits)
}

// ContentType is the media type of the bytes Capture returns.
func (c *Capturer) ContentType() string {
	if c.Quality >= PNGQuality {
		return "image/png"
	}
	return "image/jpeg"
}

// Ext is the file extension matching ContentType.
func (c *Capturer) Ext() string {
	if c.Quality >= PNGQuality {
		return ".png"
	}
	return ".jpg"
}

// Capture returns a full-page screenshot of the product page, PNG unless
// Quality was lowered.
func (c *Capturer) Capture(ctx context.Context, code string) ([]byte, error) {
	pageURL, err := c.ProductURL(code)
	if err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(UserAgent),
		chromedp.WindowSize(c.Width, c.Height),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	captureCtx, cancelCapture := context.WithTimeout(browserCtx, c.Timeout)
	defer cancelCapture()

	c.log.Info("Capturing product page", zap.String("url", pageURL))

	var buf []byte
	err = chromedp.Run(captureCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.FullScreenshot(&buf, min(c.Quality, PNGQuality)),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp failed: %w", err)
	}
	return buf, nil
}
