// internal/chrome/chrome.go
package chrome

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/ubitops/ubmail-minder/internal/browser"
)

const (
	defaultNavigationTimeout = 60 * time.Second
	defaultActionTimeout     = 10 * time.Second
)

// DefaultLogger builds the logger shared by the cmd binaries.
func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Options configures the browser process.
type Options struct {
	ExecPath          string // empty: chromedp locates an installed browser
	Headless          bool
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
}

// Session drives one Chrome instance through chromedp and implements
// browser.Session.
type Session struct {
	ctx        context.Context
	navTimeout time.Duration
	actTimeout time.Duration
}

var _ browser.Session = (*Session)(nil)

// New launches the browser and returns the session plus a cleanup func the
// caller must run on every exit path.
func New(ctx context.Context, opts Options) (*Session, func(), error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	cleanup := func() {
		cancelBrowser()
		cancelAlloc()
	}

	// Start the process now so a missing binary fails here, not mid-flow.
	if err := chromedp.Run(browserCtx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("launch browser: %w", err)
	}

	sess := &Session{
		ctx:        browserCtx,
		navTimeout: opts.NavigationTimeout,
		actTimeout: opts.ActionTimeout,
	}
	if sess.navTimeout <= 0 {
		sess.navTimeout = defaultNavigationTimeout
	}
	if sess.actTimeout <= 0 {
		sess.actTimeout = defaultActionTimeout
	}
	return sess, cleanup, nil
}

// run executes actions on the browser context, bounded by timeout and by the
// caller's context. chromedp actions only accept contexts from their own
// tree, so caller cancellation is bridged in via context.AfterFunc.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(s.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Session) by(loc browser.Locator) chromedp.QueryOption {
	if loc.By == browser.ByID {
		return chromedp.ByID
	}
	return chromedp.BySearch
}

func (s *Session) nodes(ctx context.Context, loc browser.Locator, timeout time.Duration, extra ...chromedp.QueryOption) ([]*cdp.Node, error) {
	opts := append([]chromedp.QueryOption{s.by(loc)}, extra...)
	var nodes []*cdp.Node
	err := s.run(ctx, timeout, chromedp.Nodes(loc.Expr, &nodes, opts...))
	return nodes, err
}

// Navigate opens url and waits for the page load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Find waits up to timeout for a rendered element matching loc.
func (s *Session) Find(ctx context.Context, loc browser.Locator, timeout time.Duration) (browser.Element, error) {
	nodes, err := s.nodes(ctx, loc, timeout, chromedp.NodeVisible)
	switch {
	case err == nil:
		return &element{node: nodes[0]}, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, &browser.NotFoundError{Locator: loc, Timeout: timeout}
	default:
		return nil, fmt.Errorf("find %s: %w", loc, err)
	}
}

// TryFind probes for loc, reporting absence as a plain false.
func (s *Session) TryFind(ctx context.Context, loc browser.Locator, timeout time.Duration) (browser.Element, bool, error) {
	el, err := s.Find(ctx, loc, timeout)
	if err != nil {
		var notFound *browser.NotFoundError
		if errors.As(err, &notFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return el, true, nil
}

// FindAll waits up to timeout for at least one match, then returns every
// current match. Nothing rendering in time yields an empty slice, not an
// error: an empty unread list is a normal outcome.
func (s *Session) FindAll(ctx context.Context, loc browser.Locator, timeout time.Duration) ([]browser.Element, error) {
	nodes, err := s.nodes(ctx, loc, timeout)
	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("find all %s: %w", loc, err)
	}
	els := make([]browser.Element, len(nodes))
	for i, n := range nodes {
		els[i] = &element{node: n}
	}
	return els, nil
}

// Screenshot writes a full-viewport capture to path for post-mortem
// debugging of headless runs.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, s.actTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write screenshot %s: %w", path, err)
	}
	return nil
}
