// Package browserdriver implements the BrowserDriver capability, treated
// as an external collaborator: WithPage yields an isolated,
// stealth-patched, fingerprint-applied page to a callback and always tears
// it down afterward. It is adapted from scraper.Scraper
// (scraper/scraper.go launch flags, scraper/page.go's doScrapeRod step
// ordering, scraper/hijack.go's resource-blocking router).
package browserdriver

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/pageharvest/pageharvest/apperr"
	"github.com/pageharvest/pageharvest/models"
)

// Config controls browser launch and pool sizing.
type Config struct {
	Headless   bool
	NoSandbox  bool
	BrowserBin string
	MaxPages   int
}

// Options carries per-attempt navigation settings derived from the
// fingerprint bundle and request.
type Options struct {
	TimezoneID string
	Locale     string
}

// Driver owns the headless browser process and its reusable page pool.
type Driver struct {
	browser  *rod.Browser
	pagePool rod.Pool[rod.Page]
	maxPages int
}

// New launches a headless Chrome with stealth posture
// (disabled automation flags, no first-run, no default apps) and prepares
// a bounded page pool.
func New(cfg Config) (*Driver, error) {
	l := launcher.New().Headless(cfg.Headless).NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, apperr.New(apperr.Browser, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, apperr.New(apperr.Browser, "failed to connect to browser", err)
	}

	maxPages := cfg.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}

	return &Driver{
		browser:  browser,
		pagePool: rod.NewPagePool(maxPages),
		maxPages: maxPages,
	}, nil
}

// Close drains the page pool and kills the browser process.
func (d *Driver) Close() {
	slog.Info("browserdriver shutting down: draining page pool")
	d.pagePool.Cleanup(func(p *rod.Page) { _ = p.Close() })
	slog.Info("browserdriver shutting down: closing browser")
	d.browser.MustClose()
}

// WithPage acquires an isolated page, applies the fingerprint bundle
// (User-Agent/Accept-Language headers, timezone, locale) and stealth
// patches, optionally installs tracker/heavy-resource blocking, invokes fn,
// and always tears the page down on every return path — mirroring
// scraper/page.go's doScrapeRod ordering (stealth + hijack before
// navigation, context binding, about:blank + pool-return in defer).
func (d *Driver) WithPage(ctx context.Context, bundle models.FingerprintBundle, opts Options, fn func(ctx context.Context, page *rod.Page) error) error {
	page, err := d.pagePool.Get(func() (*rod.Page, error) {
		return d.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return apperr.New(apperr.Browser, "failed to acquire page from pool", err)
	}
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("browserdriver: cleanup navigate to about:blank failed", "error", navErr)
		}
		d.pagePool.Put(page)
	}()

	// Stealth injection must happen before navigation to mask
	// navigator.webdriver and related automation fingerprints.
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("browserdriver: stealth injection failed, proceeding without it", "error", err)
	}

	if err := applyBundle(page, bundle); err != nil {
		slog.Warn("browserdriver: failed to apply fingerprint bundle", "error", err)
	}

	if opts.TimezoneID != "" {
		if err := proto.EmulationSetTimezoneOverride{TimezoneID: opts.TimezoneID}.Call(page); err != nil {
			slog.Warn("browserdriver: failed to set timezone override", "error", err)
		}
	}
	if opts.Locale != "" {
		if err := proto.EmulationSetLocaleOverride{Locale: opts.Locale}.Call(page); err != nil {
			slog.Warn("browserdriver: failed to set locale override", "error", err)
		}
	}

	var router *rod.HijackRouter
	if bundle.BlockTrackers || bundle.BlockHeavyResources {
		router = d.setupHijack(page, bundle)
	}
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)
	return fn(ctx, p)
}

func applyBundle(page *rod.Page, bundle models.FingerprintBundle) error {
	if len(bundle.Headers) == 0 {
		return nil
	}
	headers := make(proto.NetworkHeaders, len(bundle.Headers))
	for k, v := range bundle.Headers {
		headers[k] = gson.New(v)
	}
	return proto.NetworkSetExtraHTTPHeaders{Headers: headers}.Call(page)
}

// blockedResourceTypes maps the heavy-resource-blocking flag to the
// concrete CDP resource types to intercept (images, fonts, media, CSS —
// everything that slows first paint but isn't needed for text extraction).
var blockedResourceTypes = []proto.NetworkResourceType{
	proto.NetworkResourceTypeImage,
	proto.NetworkResourceTypeStylesheet,
	proto.NetworkResourceTypeFont,
	proto.NetworkResourceTypeMedia,
}

// trackerHostSuffixes is the lazily-initialized tracker-blocker singleton's
// data: a small built-in list of known tracker/analytics domains. It is
// populated once under sync.Once so initialization failure — none
// possible here — would fail the first dependent request, not startup.
var trackerHostSuffixes = []string{
	"google-analytics.com",
	"googletagmanager.com",
	"doubleclick.net",
	"facebook.net",
	"hotjar.com",
	"segment.io",
	"mixpanel.com",
	"amplitude.com",
}

// trackerBlockSet lazily builds the lookup set from trackerHostSuffixes
// exactly once, regardless of how many Drivers exist in the process — the
// tracker list is process-global data, not per-driver state.
var (
	trackerBlockSetOnce sync.Once
	trackerBlockSet     map[string]struct{}
)

func trackerSet() map[string]struct{} {
	trackerBlockSetOnce.Do(func() {
		set := make(map[string]struct{}, len(trackerHostSuffixes))
		for _, h := range trackerHostSuffixes {
			set[h] = struct{}{}
		}
		trackerBlockSet = set
	})
	return trackerBlockSet
}

func (d *Driver) setupHijack(page *rod.Page, bundle models.FingerprintBundle) *rod.HijackRouter {
	blockedTypes := make(map[proto.NetworkResourceType]struct{})
	if bundle.BlockHeavyResources {
		for _, rt := range blockedResourceTypes {
			blockedTypes[rt] = struct{}{}
		}
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, blocked := blockedTypes[ctx.Request.Type()]; blocked {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		if bundle.BlockTrackers && isTrackerRequest(ctx.Request.URL()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}

func isTrackerRequest(u *url.URL) bool {
	if u == nil {
		return false
	}
	host := u.Hostname()
	set := trackerSet()
	for suffix := range set {
		if host == suffix || (len(host) > len(suffix) && host[len(host)-len(suffix)-1:] == "."+suffix) {
			return true
		}
	}
	return false
}

// ReadBody reads the page's rendered HTML, enforcing a maximum body size.
func ReadBody(page *rod.Page, maxBytes int) (string, error) {
	html, err := page.HTML()
	if err != nil {
		return "", apperr.New(apperr.Browser, "failed to extract page HTML", err)
	}
	if maxBytes > 0 && len(html) > maxBytes {
		return "", apperr.New(apperr.ResponseTooLarge, fmt.Sprintf("response body of %d bytes exceeds cap of %d", len(html), maxBytes), nil)
	}
	return html, nil
}

// NavTimeout returns the effective navigation deadline: the smaller of the
// per-request task timeout and the server's configured navigation timeout.
func NavTimeout(taskTimeout, navTimeout time.Duration) time.Duration {
	if taskTimeout > 0 && taskTimeout < navTimeout {
		return taskTimeout
	}
	return navTimeout
}
