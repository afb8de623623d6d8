// Package rod drives a real Chromium page through the DevTools protocol and
// exposes it as the tour engine's document and navigator.
package rod

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// LaunchOptions configures how the browser is obtained.
type LaunchOptions struct {
	// ControlURL connects to an already running browser instead of launching one.
	ControlURL string
	Headless   bool
	// Bin overrides the browser binary. Empty uses rod's managed browser.
	Bin string
}

// Browser owns a DevTools connection.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	logger   *slog.Logger
}

// Launch starts (or connects to) a browser.
func Launch(ctx context.Context, opts LaunchOptions, logger *slog.Logger) (*Browser, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	b := &Browser{logger: logger}
	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless).Leakless(false)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		b.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		if b.launcher != nil {
			b.launcher.Kill()
		}
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	b.browser = browser
	logger.Debug("browser connected", "control_url", controlURL)
	return b, nil
}

// Open creates a tab at url, waits for it to load and instruments it.
func (b *Browser) Open(ctx context.Context, url string, opts ...Option) (*Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("load %s: %w", url, err)
	}
	return NewPage(ctx, page, append([]Option{WithLogger(b.logger)}, opts...)...)
}

// Close disconnects and, when this process launched the browser, kills it.
func (b *Browser) Close() error {
	err := b.browser.Close()
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return err
}
