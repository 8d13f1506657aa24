// Package browserless drives a remote headless-Chrome service (browserless
// or any DevTools-compatible endpoint) for pages that only render client-side.
package browserless

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// Client navigates pages on the remote browser and extracts structured data
// from the rendered DOM.
type Client interface {
	// Extract navigates to pageURL, waits until waitSelector is visible, then
	// evaluates script in the page and unmarshals its result into out.
	Extract(ctx context.Context, pageURL, waitSelector, script string, out any) error
}

// Option configures the client.
type Option func(*chromeClient)

// WithTimeout bounds a single Extract call. Default 60s.
func WithTimeout(d time.Duration) Option {
	return func(c *chromeClient) { c.timeout = d }
}

// WithUserAgent overrides the browser user agent.
func WithUserAgent(ua string) Option {
	return func(c *chromeClient) { c.userAgent = ua }
}

type chromeClient struct {
	wsURL     string
	timeout   time.Duration
	userAgent string
}

// NewClient creates a client for the given DevTools websocket URL, e.g.
// "ws://browserless:3000?token=...".
func NewClient(wsURL string, opts ...Option) Client {
	c := &chromeClient{
		wsURL:   wsURL,
		timeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *chromeClient) Extract(ctx context.Context, pageURL, waitSelector, script string, out any) error {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, c.wsURL)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	runCtx, cancelRun := context.WithTimeout(taskCtx, c.timeout)
	defer cancelRun()

	tasks := chromedp.Tasks{
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(waitSelector, chromedp.ByQuery),
		chromedp.Evaluate(script, out),
	}
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return eris.Wrapf(err, "browserless: extract %s", pageURL)
	}
	return nil
}
