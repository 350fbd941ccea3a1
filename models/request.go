package models

// Mode selects how a page is fetched.
type Mode string

const (
	ModeStatic  Mode = "static"
	ModeBrowser Mode = "browser"
)

// ScrapeRequest is the payload for POST /page. It also forms the template
// merged per-item inside a BatchRequest (see BatchItem.Merge).
type ScrapeRequest struct {
	// URL is the target page. Required, absolute, SSRF-validated.
	URL string `json:"url" validate:"required,url"`

	// Mode selects the fetch strategy. Default: server DEFAULT_MODE.
	Mode Mode `json:"mode,omitempty" validate:"omitempty,oneof=static browser"`

	// TaskTimeoutSecs, when set, bounds the whole operation. Must be >= 1.
	// The value is used as given: it is not clamped to any server-side
	// maximum, and when it is unset the operation has no overall deadline.
	TaskTimeoutSecs int `json:"task_timeout_secs,omitempty" validate:"omitempty,min=1"`

	// RawBody, when true, skips Markdown conversion and keeps the
	// extractor's raw content as-is (used by the raw-page-retrieval mode).
	RawBody bool `json:"raw_body,omitempty"`

	// Fingerprint configures the anti-bot fingerprint bundle for this request.
	Fingerprint *FingerprintConfig `json:"fingerprint,omitempty"`
}

// FingerprintConfig controls fingerprint generation for a single request.
type FingerprintConfig struct {
	// Generate toggles bundle generation. false -> empty bundle. Default: true.
	Generate *bool `json:"generate,omitempty"`

	// UserAgent is "auto" (keep generator output) or a literal UA string.
	UserAgent string `json:"user_agent,omitempty"`

	// Locale is "auto" or a literal locale (e.g. "en-US").
	Locale string `json:"locale,omitempty"`

	// TimezoneID overrides the timezone; never generated.
	TimezoneID string `json:"timezone_id,omitempty"`

	// RotateOnAntiBot toggles fingerprint rotation on anti-bot errors. Default: true.
	RotateOnAntiBot *bool `json:"rotate_on_anti_bot,omitempty"`

	// Browsers/OperatingSystems/Devices constrain the generator's output.
	// Unknown values are silently ignored.
	Browsers         []string `json:"browsers,omitempty"`
	OperatingSystems []string `json:"operating_systems,omitempty"`
	Devices          []string `json:"devices,omitempty"`

	// BlockTrackers/BlockHeavyResources control browser-mode network hijacking.
	BlockTrackers       *bool `json:"block_trackers,omitempty"`
	BlockHeavyResources *bool `json:"block_heavy_resources,omitempty"`
}

// GenerateEnabled reports whether bundle generation should run, falling
// back to serverDefault (DEFAULT_FINGERPRINT_GENERATE) when unset.
func (c *FingerprintConfig) GenerateEnabled(serverDefault bool) bool {
	if c == nil || c.Generate == nil {
		return serverDefault
	}
	return *c.Generate
}

// RotateEnabled reports whether rotation on anti-bot errors is allowed,
// falling back to serverDefault (DEFAULT_FINGERPRINT_ROTATE_ON_ANTI_BOT)
// when the request doesn't say.
func (c *FingerprintConfig) RotateEnabled(serverDefault bool) bool {
	if c == nil || c.RotateOnAntiBot == nil {
		return serverDefault
	}
	return *c.RotateOnAntiBot
}

func (c *FingerprintConfig) blockFlag(get func(*FingerprintConfig) *bool, def bool) bool {
	if c == nil {
		return def
	}
	if v := get(c); v != nil {
		return *v
	}
	return def
}

// BlockTrackersEnabled reports the effective tracker-blocking flag given a server default.
func (c *FingerprintConfig) BlockTrackersEnabled(serverDefault bool) bool {
	return c.blockFlag(func(c *FingerprintConfig) *bool { return c.BlockTrackers }, serverDefault)
}

// BlockHeavyResourcesEnabled reports the effective heavy-resource-blocking flag.
func (c *FingerprintConfig) BlockHeavyResourcesEnabled(serverDefault bool) bool {
	return c.blockFlag(func(c *FingerprintConfig) *bool { return c.BlockHeavyResources }, serverDefault)
}
