package browser

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/sync/semaphore"
)

const (
	defaultViewportWidth  = 1920
	defaultViewportHeight = 1080
	acceptLanguage        = "en-US,en;q=0.9"
)

// stealthScript masks the most common automation fingerprints before any page script runs.
const stealthScript = `() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
	window.chrome = window.chrome || { runtime: {} };
}`

type Options struct {
	Bin               string
	Headless          bool
	NoSandbox         bool
	Stealth           bool
	PoolSize          int
	UserAgent         string
	NavigationTimeout time.Duration
	SettleMin         time.Duration
	SettleMax         time.Duration
	ViewportWidth     int
	ViewportHeight    int
}

var _ Launcher = (*Fetcher)(nil)

// Fetcher starts one sandboxed browser process per session, bounded by PoolSize.
type Fetcher struct {
	opts Options
	sem  *semaphore.Weighted
}

func NewFetcher(opts Options) *Fetcher {
	opts.PoolSize = max(opts.PoolSize, 1)
	opts.NavigationTimeout = cmp.Or(opts.NavigationTimeout, 60*time.Second)
	opts.ViewportWidth = cmp.Or(opts.ViewportWidth, defaultViewportWidth)
	opts.ViewportHeight = cmp.Or(opts.ViewportHeight, defaultViewportHeight)
	if opts.SettleMax < opts.SettleMin {
		opts.SettleMax = opts.SettleMin
	}

	return &Fetcher{
		opts: opts,
		sem:  semaphore.NewWeighted(int64(opts.PoolSize)),
	}
}

func (f *Fetcher) NewSession(ctx context.Context) (Session, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire browser slot: %w", err)
	}

	session, err := f.launch()
	if err != nil {
		f.sem.Release(1)
		return nil, err
	}

	return session, nil
}

func (f *Fetcher) launch() (*rodSession, error) {
	bin := f.opts.Bin
	if bin == "" {
		path, ok := launcher.LookPath()
		if !ok {
			return nil, fmt.Errorf("%w: no Chrome or Chromium executable found", ErrLaunch)
		}
		bin = path
	}

	l := launcher.New().
		Bin(bin).
		Headless(f.opts.Headless).
		NoSandbox(f.opts.NoSandbox).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled").
		Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", f.opts.ViewportWidth, f.opts.ViewportHeight))

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("%w: failed to connect: %v", ErrLaunch, err)
	}

	s := &rodSession{
		fetcher:  f,
		launcher: l,
		browser:  b,
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.teardown()
		return nil, fmt.Errorf("%w: failed to open page: %v", ErrLaunch, err)
	}
	s.page = page

	if err := s.preparePage(); err != nil {
		s.teardown()
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	slog.Debug("Browser session started", "bin", bin, "headless", f.opts.Headless)

	return s, nil
}

func (f *Fetcher) settleDelay() time.Duration {
	spread := f.opts.SettleMax - f.opts.SettleMin
	if spread <= 0 {
		return f.opts.SettleMin
	}
	return f.opts.SettleMin + time.Duration(rand.Int64N(int64(spread)))
}

type rodSession struct {
	fetcher  *Fetcher
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	closeOnce sync.Once
	closeErr  error
}

func (s *rodSession) preparePage() error {
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             s.fetcher.opts.ViewportWidth,
		Height:            s.fetcher.opts.ViewportHeight,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}).Call(s.page); err != nil {
		return fmt.Errorf("failed to set viewport: %w", err)
	}

	if s.fetcher.opts.UserAgent != "" {
		if err := (proto.NetworkSetUserAgentOverride{
			UserAgent:      s.fetcher.opts.UserAgent,
			AcceptLanguage: acceptLanguage,
		}).Call(s.page); err != nil {
			return fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	if s.fetcher.opts.Stealth {
		if _, err := s.page.EvalOnNewDocument(stealthScript); err != nil {
			return fmt.Errorf("failed to install stealth script: %w", err)
		}
	}

	return nil
}

func (s *rodSession) Load(ctx context.Context, url string, opts LoadOptions) (*Document, error) {
	timeout := cmp.Or(opts.Timeout, s.fetcher.opts.NavigationTimeout)

	p := s.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	var err error
	switch cmp.Or(opts.Wait, WaitLoad) {
	case WaitLoad:
		err = p.WaitLoad()
	case WaitStable:
		err = p.WaitStable(time.Second)
	case WaitNone:
	}
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	if delay := s.fetcher.settleDelay(); delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &FetchError{URL: url, Err: ctx.Err()}
		case <-time.After(delay):
		}
	}

	doc, err := s.Snapshot(ctx)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	return doc, nil
}

func (s *rodSession) Snapshot(ctx context.Context) (*Document, error) {
	p := s.page.Context(ctx)

	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read DOM: %w", err)
	}

	info, err := p.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to read page info: %w", err)
	}

	doc, err := NewDocument(info.URL, html)
	if err != nil {
		return nil, err
	}
	if info.Title != "" {
		doc.Title = info.Title
	}

	return doc, nil
}

func (s *rodSession) Evaluate(ctx context.Context, js string) (string, error) {
	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return "", fmt.Errorf("failed to evaluate script: %w", err)
	}
	if res == nil || res.Value.Nil() {
		return "", nil
	}
	return res.Value.String(), nil
}

func (s *rodSession) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := s.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return data, nil
}

// Close tears down the page, the browser connection and the OS process. Safe to call repeatedly.
func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.teardown()
		s.fetcher.sem.Release(1)

		slog.Debug("Browser session closed")
	})
	return s.closeErr
}

func (s *rodSession) teardown() error {
	var err error
	if s.page != nil {
		_ = s.page.Close()
	}
	if s.browser != nil {
		err = s.browser.Close()
	}
	s.launcher.Kill()
	s.launcher.Cleanup()
	return err
}
