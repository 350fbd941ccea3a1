// Package scrapeengine orchestrates a single scrape attempt across the
// static/browser mode split, fingerprint application, anti-bot rotation
// retry, and Markdown post-processing. It is grounded in scraper/page.go's
// doScrapeRod ordering, generalized from one hardcoded pipeline into mode
// dispatch over the extractor/browserdriver capability interfaces.
package scrapeengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-rod/rod"

	"github.com/pageharvest/pageharvest/apperr"
	"github.com/pageharvest/pageharvest/browserdriver"
	"github.com/pageharvest/pageharvest/extractor"
	"github.com/pageharvest/pageharvest/fingerprint"
	"github.com/pageharvest/pageharvest/markdown"
	"github.com/pageharvest/pageharvest/models"
	"github.com/pageharvest/pageharvest/pool"
)

// MaxRetries bounds the browser-mode anti-bot rotation loop.
const MaxRetries = 3

// Config carries server-wide scrape defaults. BlockTrackers/
// BlockHeavyResources server defaults live on FingerprintDefaults itself
// (fingerprint.Generate applies them directly), so they aren't duplicated
// here.
type Config struct {
	DefaultMode            models.Mode
	NavTimeout             time.Duration
	MaxBodyBytes           int
	FingerprintDefaults    fingerprint.Defaults
	RotateOnAntiBotDefault bool
}

// Engine orchestrates scrape attempts.
type Engine struct {
	genericPool *pool.Pool
	browserPool *pool.Pool
	driver      *browserdriver.Driver
	extractor   *extractor.Extractor
	md          *markdown.Converter
	cfg         Config
}

// New builds an Engine. driver may be nil if the deployment never serves
// browser-mode requests; attempting browser mode against a nil driver fails
// with apperr.Browser.
func New(genericPool, browserPool *pool.Pool, driver *browserdriver.Driver, ext *extractor.Extractor, md *markdown.Converter, cfg Config) *Engine {
	return &Engine{
		genericPool: genericPool,
		browserPool: browserPool,
		driver:      driver,
		extractor:   ext,
		md:          md,
		cfg:         cfg,
	}
}

// Scrape runs the full scrape operation: admission, fingerprinting,
// mode dispatch, and post-processing. A positive req.TaskTimeoutSecs
// bounds all of it, admission wait included.
func (e *Engine) Scrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error) {
	if req.TaskTimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TaskTimeoutSecs)*time.Second)
		defer cancel()
	}

	mode := req.Mode
	if mode == "" {
		mode = e.cfg.DefaultMode
	}

	p := e.genericPool
	if mode == models.ModeBrowser {
		p = e.browserPool
	}

	return pool.Run(ctx, p, func(ctx context.Context) (*models.ScrapeResult, error) {
		return e.scrapeAdmitted(ctx, req, mode)
	})
}

func (e *Engine) scrapeAdmitted(ctx context.Context, req *models.ScrapeRequest, mode models.Mode) (*models.ScrapeResult, error) {
	bundle := fingerprint.Generate(req.Fingerprint, e.cfg.FingerprintDefaults)

	var article extractor.Article
	var err error

	switch mode {
	case models.ModeBrowser:
		article, err = e.scrapeBrowser(ctx, req, bundle)
	default:
		article, err = e.extractor.FromURL(ctx, req.URL, bundle.Headers)
		if err != nil {
			err = classifyErr(err, "static fetch failed", apperr.Internal)
		}
	}
	if err != nil {
		return nil, err
	}

	return e.postProcess(req, article)
}

// scrapeBrowser runs the ≤MaxRetries anti-bot rotation loop: acquire a page, navigate, extract; on an error that
// fingerprint.ShouldRotate classifies as anti-bot, regenerate the bundle and
// retry, otherwise rethrow.
func (e *Engine) scrapeBrowser(ctx context.Context, req *models.ScrapeRequest, bundle models.FingerprintBundle) (extractor.Article, error) {
	if e.driver == nil {
		return extractor.Article{}, apperr.New(apperr.Browser, "browser mode is not available on this server", nil)
	}

	taskTimeout := time.Duration(req.TaskTimeoutSecs) * time.Second
	navTimeout := browserdriver.NavTimeout(taskTimeout, e.cfg.NavTimeout)

	var lastErr error
	for attempt := 1; attempt <= MaxRetries; attempt++ {
		var html string
		var navErr error

		navCtx, cancel := context.WithTimeout(ctx, navTimeout)
		err := e.driver.WithPage(navCtx, bundle, browserdriver.Options{
			TimezoneID: bundle.Timezone,
			Locale:     bundle.NavLang,
		}, func(ctx context.Context, page *rod.Page) error {
			if err := page.Navigate(req.URL); err != nil {
				navErr = err
				return err
			}
			_ = page.WaitDOMStable(300*time.Millisecond, 0.1)

			if status, ok := navigationStatus(page); ok && status >= 400 {
				navErr = &statusError{status: status, msg: fmt.Sprintf("navigation returned HTTP %d", status)}
				return navErr
			}

			body, readErr := browserdriver.ReadBody(page, e.cfg.MaxBodyBytes)
			if readErr != nil {
				navErr = readErr
				return readErr
			}
			html = body
			return nil
		})
		cancel()

		if err == nil {
			article, extractErr := e.extractor.FromHTML(html, req.URL)
			if extractErr == nil {
				return article, nil
			}
			navErr = extractErr
		}
		if navErr == nil {
			navErr = err
		}

		lastErr = classifyErr(navErr, "browser scrape failed", apperr.Browser)

		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return extractor.Article{}, classifyErr(ctx.Err(), "browser scrape cancelled", apperr.Browser)
		}

		if attempt < MaxRetries && fingerprint.ShouldRotate(navErr, req.Fingerprint, e.cfg.RotateOnAntiBotDefault) {
			bundle = fingerprint.Generate(req.Fingerprint, e.cfg.FingerprintDefaults)
			continue
		}
		return extractor.Article{}, lastErr
	}
	return extractor.Article{}, lastErr
}

// postProcess converts (or preserves) the article body and computes
// derived metadata.
func (e *Engine) postProcess(req *models.ScrapeRequest, article extractor.Article) (*models.ScrapeResult, error) {
	body := article.Content
	if !req.RawBody {
		converted, err := e.md.Convert(article.Content, req.URL)
		if err != nil {
			return nil, apperr.New(apperr.ContentExtraction, "markdown conversion failed", err)
		}
		body = converted
	}

	trimmed := strings.TrimSpace(body)
	readTime := 0
	if trimmed != "" {
		words := len(strings.Fields(trimmed))
		readTime = int(math.Ceil(float64(words) / 200.0))
	}

	return &models.ScrapeResult{
		URL:         req.URL,
		Title:       article.Title,
		Description: article.Description,
		Date:        article.Date,
		Author:      article.Author,
		Body:        body,
		Meta: models.ResultMeta{
			Lang:        article.Lang,
			ReadTimeMin: readTime,
			RawBody:     req.RawBody,
		},
	}, nil
}

// navigationStatus reads the HTTP status of the just-completed navigation
// via the Navigation Timing API, mirroring best-effort
// approach of avoiding CDP network-event listeners (which conflict with
// HijackRequests on newer Chromium).
func navigationStatus(page *rod.Page) (int, bool) {
	res, err := page.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`)
	if err != nil {
		return 0, false
	}
	status := res.Value.Int()
	return status, status > 0
}

// statusError lets fingerprint.ShouldRotate apply its 403/429 rule to
// browser-mode navigation failures that carry an HTTP status but no Go error
// chain (rod's Navigate doesn't fail on 4xx/5xx responses by itself).
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string   { return e.msg }
func (e *statusError) StatusCode() int { return e.status }

// classifyErr wraps err into an *apperr.Error, preferring its existing Kind
// if it already is one (e.g. from browserdriver/extractor), mapping context
// errors to Timeout/Cancelled, and otherwise falling back to fallback.
func classifyErr(err error, msg string, fallback apperr.Kind) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.New(apperr.Timeout, msg, err)
	case errors.Is(err, context.Canceled):
		return apperr.New(apperr.Cancelled, "request cancelled", err)
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperr.New(fallback, msg, err)
}
