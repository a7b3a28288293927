// Package browser drives a headless Chrome session for association sites
// whose team menus are rendered client-side.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/logger"
)

// settle approximates a quiet network after the load event.
const settle = 1500 * time.Millisecond

var chromePaths = []string{
	"/usr/bin/chromium-browser",
	"/usr/bin/chromium",
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
}

// Launcher starts sessions with shared settings.
type Launcher struct {
	cfg       config.DiscoveryConfig
	userAgent string
	logger    *logger.Logger
}

// NewLauncher builds a Launcher.
func NewLauncher(cfg config.DiscoveryConfig, userAgent string, log *logger.Logger) *Launcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Launcher{cfg: cfg, userAgent: userAgent, logger: log}
}

// Session is one Chrome process with a single tab.
type Session struct {
	ctx        context.Context
	cancels    []context.CancelFunc
	profileDir string
	logger     *logger.Logger
}

// Launch starts Chrome with a throwaway profile. The session lives until
// Close or until ctx is done, bounded by the headless timeout.
func (l *Launcher) Launch(ctx context.Context) (*Session, error) {
	// a private profile lets concurrent sessions avoid Chrome's SingletonLock
	profileDir, err := os.MkdirTemp("", "rinkcal-chrome-*")
	if err != nil {
		return nil, fmt.Errorf("create chrome profile: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("user-data-dir", profileDir),
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if l.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.userAgent))
	}
	if path := l.chromePath(); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
		if strings.Contains(path, "chromium") {
			opts = append(opts,
				chromedp.Flag("disable-dev-shm-usage", true),
				chromedp.Flag("disable-software-rasterizer", true),
				chromedp.Flag("disable-gpu-sandbox", true),
			)
		}
	}
	if l.cfg.HeadlessNoSandbox {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}

	s := &Session{profileDir: profileDir, logger: l.logger}
	timeout := l.cfg.HeadlessTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// the whole menu walk shares one budget of several headless timeouts
	taskCtx, taskCancel := context.WithTimeout(ctx, 4*timeout)
	allocCtx, allocCancel := chromedp.NewExecAllocator(taskCtx, opts...)
	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx,
		chromedp.WithBrowserOption(chromedp.WithDialTimeout(timeout)),
		chromedp.WithLogf(func(format string, args ...interface{}) {
			l.logger.Debug("[chromedp] "+format, args...)
		}),
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			l.logger.Debug("[chromedp error] "+format, args...)
		}),
	)
	s.ctx = chromeCtx
	s.cancels = []context.CancelFunc{chromeCancel, allocCancel, taskCancel}

	// the first Run starts the browser process
	if err := chromedp.Run(chromeCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return s, nil
}

func (l *Launcher) chromePath() string {
	if l.cfg.ChromePath != "" {
		return l.cfg.ChromePath
	}
	for _, p := range chromePaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Open navigates to rawURL and waits for the page to settle, up to timeout.
func (s *Session) Open(rawURL string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	// raw CDP navigate avoids chromedp.Navigate's separate load timeout
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, _, errorText, err := page.Navigate(rawURL).Do(ctx)
			if err != nil {
				return err
			}
			if errorText != "" {
				return fmt.Errorf("navigation error: %s", errorText)
			}
			return nil
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settle),
	)
	if err != nil {
		return fmt.Errorf("open %s: %w", rawURL, err)
	}
	return nil
}

// ClickLinkContaining clicks the first anchor whose upper-cased text contains
// any of needles. It reports whether an anchor was clicked.
func (s *Session) ClickLinkContaining(needles []string, wait time.Duration) (bool, error) {
	arg, err := json.Marshal(needles)
	if err != nil {
		return false, err
	}
	script := fmt.Sprintf(`(() => {
		const needles = %s;
		const link = Array.from(document.querySelectorAll('a')).find(a => {
			const text = (a.textContent || '').toUpperCase();
			return needles.some(n => text.includes(n));
		});
		if (!link) return false;
		link.click();
		return true;
	})()`, arg)
	return s.click(script, wait)
}

// ClickLinkWithText clicks the first anchor whose trimmed text equals text.
func (s *Session) ClickLinkWithText(text string, wait time.Duration) (bool, error) {
	arg, err := json.Marshal(text)
	if err != nil {
		return false, err
	}
	script := fmt.Sprintf(`(() => {
		const want = %s;
		const link = Array.from(document.querySelectorAll('a')).find(a => (a.textContent || '').trim() === want);
		if (!link) return false;
		link.click();
		return true;
	})()`, arg)
	return s.click(script, wait)
}

func (s *Session) click(script string, wait time.Duration) (bool, error) {
	var clicked bool
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, fmt.Errorf("click: %w", err)
	}
	if clicked && wait > 0 {
		if err := chromedp.Run(s.ctx, chromedp.Sleep(wait)); err != nil {
			return true, err
		}
	}
	return clicked, nil
}

// HTML returns the current rendered document.
func (s *Session) HTML() (string, error) {
	var body string
	if err := chromedp.Run(s.ctx, chromedp.OuterHTML("html", &body, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read rendered html: %w", err)
	}
	return body, nil
}

// Close shuts Chrome down and removes the profile.
func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	if s.profileDir != "" {
		if err := os.RemoveAll(s.profileDir); err != nil {
			s.logger.Debug("Failed to remove chrome profile %s: %v", s.profileDir, err)
		}
	}
}
