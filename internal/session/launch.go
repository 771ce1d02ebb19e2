package session

import (
	"context"
	"fmt"
	"os"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// Options configures how a browser session is started
type Options struct {
	// RemoteURL is the DevTools WebSocket URL of an already running Chrome.
	// Empty launches a local browser.
	RemoteURL  string
	Bin        string // Chrome binary, looked up on PATH when empty
	Headless   bool
	NoSandbox  bool
	Stealth    bool // create pages through go-rod/stealth
	ProfileDir string

	// Xvfb starts a virtual display for headful runs inside containers
	Xvfb        bool
	XvfbDisplay string

	Width  int
	Height int

	Logger *zap.Logger
}

func (o *Options) defaults() {
	if o.XvfbDisplay == "" {
		o.XvfbDisplay = ":99"
	}
	if o.Width <= 0 {
		o.Width = 1024
	}
	if o.Height <= 0 {
		o.Height = 768
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Launch starts (or connects to) Chrome and opens a blank page ready to be
// driven. The returned session must be released with Quit.
func Launch(ctx context.Context, opts Options) (*Rod, error) {
	opts.defaults()
	log := opts.Logger

	s := &Rod{log: log}

	if opts.Xvfb && !opts.Headless && opts.RemoteURL == "" {
		cmd, err := startXvfb(opts.XvfbDisplay, opts.Width, opts.Height, log)
		if err != nil {
			return nil, fmt.Errorf("session: xvfb: %w", err)
		}
		s.xvfb = cmd
	}

	controlURL := opts.RemoteURL
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless).NoSandbox(opts.NoSandbox)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		} else if path, ok := launcher.LookPath(); ok {
			l = l.Bin(path)
		}
		if opts.Xvfb && !opts.Headless {
			l = l.Env(append(os.Environ(), "DISPLAY="+opts.XvfbDisplay)...)
		}
		if opts.ProfileDir != "" {
			l = l.UserDataDir(opts.ProfileDir)
		}

		l = l.Set("disable-dev-shm-usage").
			Set("disable-gpu").
			Set("disable-software-rasterizer").
			Set("disable-blink-features", "AutomationControlled")
		if opts.NoSandbox {
			l = l.Set("disable-setuid-sandbox")
		}

		u, err := l.Context(ctx).Launch()
		if err != nil {
			s.stopXvfb()
			return nil, fmt.Errorf("session: launch: %w", err)
		}
		controlURL = u
		s.lnch = l
		log.Info("session: launched local chrome", zap.String("url", u), zap.Bool("headless", opts.Headless))
	} else {
		log.Info("session: connecting to remote chrome", zap.String("url", controlURL))
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("session: connect: %w", err)
	}
	s.browser = b

	var page *rod.Page
	var err error
	if opts.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("session: create page: %w", err)
	}
	s.setPage(page)

	if err := s.SetWindowSize(ctx, opts.Width, opts.Height); err != nil {
		log.Warn("session: set window size failed", zap.Error(err))
	}

	return s, nil
}

func (s *Rod) cleanup() {
	s.stopDialogs()
	if s.root != nil {
		_ = s.root.Close()
		s.root = nil
		s.cur = nil
	}
	if s.browser != nil {
		_ = s.browser.Close()
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
	s.stopXvfb()
}

func (s *Rod) stopXvfb() {
	if s.xvfb == nil {
		return
	}
	stopXvfb(s.xvfb, s.log)
	s.xvfb = nil
}
