// Package fingerprint builds the per-attempt header/UA/locale/timezone
// bundle a scrape attempt presents to the target site, and classifies
// errors as anti-bot so the scrape engine knows when to rotate and retry.
// It is a pure package: no network, no browser, no clock.
package fingerprint

import (
	"math/rand"
	"strings"

	"github.com/pageharvest/pageharvest/models"
)

// Defaults is the server-wide fallback used when a request omits a field
// and the generator itself produces nothing for it.
type Defaults struct {
	Generate            bool
	UserAgent           string
	Locale              string
	TimezoneID          string
	BlockTrackers       bool
	BlockHeavyResources bool
}

// profile is one realistic browser/OS/device combination the generator can
// draw from. Reimagines hardcoded stealth-launch posture
// (scraper/scraper.go's fixed Chrome flags) as selectable data, since the
// actual browser process is launched elsewhere (package browserdriver).
type profile struct {
	browser string
	os      string
	device  string
	ua      string
	locale  string
}

var catalog = []profile{
	{"chrome", "windows", "desktop", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36", "en-US"},
	{"chrome", "macos", "desktop", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36", "en-US"},
	{"chrome", "linux", "desktop", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36", "en-US"},
	{"firefox", "windows", "desktop", "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:126.0) Gecko/20100101 Firefox/126.0", "en-US"},
	{"firefox", "macos", "desktop", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15) Gecko/20100101 Firefox/126.0", "en-US"},
	{"safari", "macos", "desktop", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15", "en-US"},
	{"chrome", "android", "mobile", "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36", "en-US"},
	{"safari", "ios", "mobile", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1", "en-US"},
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// candidates returns the catalog entries matching the requested
// constraints. Unknown/unmatched values in a filter list are silently
// ignored rather than causing an empty result — if filtering by a
// constraint would eliminate every profile, that constraint is dropped,
// guaranteeing "at least one valid combination" per spec.
func candidates(cfg *models.FingerprintConfig) []profile {
	out := catalog
	if cfg != nil && len(cfg.Browsers) > 0 {
		filtered := filterBy(out, func(p profile) bool { return contains(cfg.Browsers, p.browser) })
		if len(filtered) > 0 {
			out = filtered
		}
	}
	if cfg != nil && len(cfg.OperatingSystems) > 0 {
		filtered := filterBy(out, func(p profile) bool { return contains(cfg.OperatingSystems, p.os) })
		if len(filtered) > 0 {
			out = filtered
		}
	}
	if cfg != nil && len(cfg.Devices) > 0 {
		filtered := filterBy(out, func(p profile) bool { return contains(cfg.Devices, p.device) })
		if len(filtered) > 0 {
			out = filtered
		}
	}
	return out
}

func filterBy(in []profile, keep func(profile) bool) []profile {
	var out []profile
	for _, p := range in {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// Generate builds a FingerprintBundle for one scrape attempt.
//
// Precedence:
//   - userAgent: cfg.UserAgent literal ("auto" means "use the generator") >
//     generator output > server default.
//   - locale: cfg.Locale literal ("auto" means "keep generator output") >
//     generator output > server default.
//   - timezone: cfg.TimezoneID > server default; the generator never
//     produces a timezone.
func Generate(cfg *models.FingerprintConfig, def Defaults) models.FingerprintBundle {
	if !cfg.GenerateEnabled(def.Generate) {
		return models.FingerprintBundle{}
	}

	var cfgUserAgent, cfgLocale, cfgTimezoneID string
	if cfg != nil {
		cfgUserAgent, cfgLocale, cfgTimezoneID = cfg.UserAgent, cfg.Locale, cfg.TimezoneID
	}

	pick := catalog[rand.Intn(len(catalog))]
	if pool := candidates(cfg); len(pool) > 0 {
		pick = pool[rand.Intn(len(pool))]
	}

	ua := pick.ua
	if cfgUserAgent != "" && !strings.EqualFold(cfgUserAgent, "auto") {
		ua = cfgUserAgent
	} else if ua == "" {
		ua = def.UserAgent
	}

	locale := pick.locale
	if cfgLocale != "" && !strings.EqualFold(cfgLocale, "auto") {
		locale = cfgLocale
	} else if locale == "" {
		locale = def.Locale
	}

	timezone := def.TimezoneID
	if cfgTimezoneID != "" {
		timezone = cfgTimezoneID
	}

	return models.FingerprintBundle{
		Headers: map[string]string{
			"User-Agent":      ua,
			"Accept-Language": acceptLanguage(locale),
		},
		NavLang:             locale,
		Timezone:            timezone,
		BlockTrackers:       cfg.BlockTrackersEnabled(def.BlockTrackers),
		BlockHeavyResources: cfg.BlockHeavyResourcesEnabled(def.BlockHeavyResources),
	}
}

func acceptLanguage(locale string) string {
	if locale == "" {
		return "en-US,en;q=0.9"
	}
	base := locale
	if i := strings.Index(locale, "-"); i > 0 {
		base = locale[:i]
	}
	if strings.EqualFold(base, locale) {
		return locale + ";q=0.9"
	}
	return locale + "," + base + ";q=0.9"
}

// antiBotSubstrings is the fixed set of case-insensitive anti-bot markers.
var antiBotSubstrings = []string{
	"captcha",
	"bot detection",
	"access denied",
	"forbidden",
	"rate limit",
	"security check",
	"cloudflare",
	"recaptcha",
}

// StatusError is satisfied by errors that carry an HTTP status code, so
// ShouldRotate can check it without depending on apperr (keeping this
// package dependency-free beyond models).
type StatusError interface {
	error
	StatusCode() int
}

// ShouldRotate decides whether the scrape engine should discard the
// current fingerprint bundle, generate a new one, and retry. rotateDefault
// is the server's DEFAULT_FINGERPRINT_ROTATE_ON_ANTI_BOT setting, used
// when the request doesn't specify one.
func ShouldRotate(err error, cfg *models.FingerprintConfig, rotateDefault bool) bool {
	if err == nil {
		return false
	}
	if !cfg.RotateEnabled(rotateDefault) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, s := range antiBotSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}

	if se, ok := err.(StatusError); ok {
		code := se.StatusCode()
		return code == 403 || code == 429
	}
	return false
}
