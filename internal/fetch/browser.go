package fetch

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
)

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// renderSettle is how long a page gets to finish its client-side rendering
// after the body is visible. Sidearm templates populate schedules via JS.
const renderSettle = 1500 * time.Millisecond

// BrowserFetcher retrieves JS-rendered pages through a headless Chrome
// allocator. Each Fetch opens its own tab; the allocator itself is the
// heavyweight resource, owned for one batch and recycled by the orchestrator
// through its factory to bound memory growth.
type BrowserFetcher struct {
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewBrowserFetcher starts a headless Chrome allocator.
func NewBrowserFetcher() (*BrowserFetcher, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(browserUserAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &BrowserFetcher{allocCtx: allocCtx, cancel: cancel}, nil
}

// Fetch navigates a fresh tab to the target and returns the rendered HTML.
// Navigation timeouts and empty renders are transient; a URL the browser
// cannot even parse is permanent.
func (b *BrowserFetcher) Fetch(ctx context.Context, t Target) (string, error) {
	if _, err := url.ParseRequestURI(t.URL); err != nil {
		return "", Permanent(fmt.Errorf("malformed url %q: %w", t.URL, err))
	}

	browserCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	defer cancelTab()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelTimeout context.CancelFunc
		browserCtx, cancelTimeout = context.WithDeadline(browserCtx, deadline)
		defer cancelTimeout()
	}

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(t.URL),
		chromedp.WaitVisible(`body`, chromedp.ByQuery),
		chromedp.Sleep(renderSettle),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp error: %w", err)
	}
	if html == "" {
		return "", fmt.Errorf("empty render for %s", t.URL)
	}
	return html, nil
}

// Close tears down the allocator and its Chrome process.
func (b *BrowserFetcher) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	return nil
}
