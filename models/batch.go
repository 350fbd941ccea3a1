package models

import "time"

// BatchStatus is a BatchJob's position in the state machine described in
// SPEC_FULL.md §4.4.1: queued -> running -> {succeeded|failed|partial}.
type BatchStatus string

const (
	BatchQueued    BatchStatus = "queued"
	BatchRunning   BatchStatus = "running"
	BatchSucceeded BatchStatus = "succeeded"
	BatchFailed    BatchStatus = "failed"
	BatchPartial   BatchStatus = "partial"
)

// Terminal reports whether the status is one that sets CompletedAt.
func (s BatchStatus) Terminal() bool {
	switch s {
	case BatchSucceeded, BatchFailed, BatchPartial:
		return true
	default:
		return false
	}
}

// BatchItem is a single URL entry in a BatchRequest, with per-item overrides
// layered onto BatchRequest.CommonSettings.
type BatchItem struct {
	URL               string `json:"url" validate:"required,url"`
	ModeOverride      Mode   `json:"mode_override,omitempty" validate:"omitempty,oneof=static browser"`
	RawBodyOverride   *bool  `json:"raw_body_override,omitempty"`
}

// Merge builds the effective ScrapeRequest for this item: common settings
// overlaid by item-specific overrides, with the item URL always winning.
func (it BatchItem) Merge(common *ScrapeRequest) *ScrapeRequest {
	req := &ScrapeRequest{}
	if common != nil {
		*req = *common
	}
	req.URL = it.URL
	if it.ModeOverride != "" {
		req.Mode = it.ModeOverride
	}
	if it.RawBodyOverride != nil {
		req.RawBody = *it.RawBodyOverride
	}
	return req
}

// ScheduleConfig controls batch item pacing.
type ScheduleConfig struct {
	MinDelayMs int   `json:"min_delay_ms" validate:"min=0"`
	MaxDelayMs int   `json:"max_delay_ms" validate:"min=0,gtefield=MinDelayMs"`
	Jitter     *bool `json:"jitter,omitempty"`
}

// JitterEnabled reports the effective jitter flag (default true).
func (s ScheduleConfig) JitterEnabled() bool {
	if s.Jitter == nil {
		return true
	}
	return *s.Jitter
}

// WebhookConfig describes where and how to deliver the terminal BatchJob payload.
type WebhookConfig struct {
	URL         string            `json:"url" validate:"required,url"`
	Headers     map[string]string `json:"headers,omitempty"`
	MaxAttempts int               `json:"max_attempts,omitempty" validate:"omitempty,min=1"`
	BackoffMs   int               `json:"backoff_ms,omitempty" validate:"omitempty,min=100"`
}

// BatchRequest is the payload for POST /batch.
type BatchRequest struct {
	Items          []BatchItem     `json:"items" validate:"required,min=1,dive"`
	CommonSettings *ScrapeRequest  `json:"common_settings,omitempty" validate:"-"`
	Schedule       ScheduleConfig  `json:"schedule"`
	Webhook        *WebhookConfig  `json:"webhook,omitempty"`
}

// ItemResult is one batch item's outcome, appended to BatchJob.Results in
// completion order (not index order).
type ItemResult struct {
	URL    string         `json:"url"`
	Status ItemStatus     `json:"status"`
	Data   *ScrapeResult  `json:"data,omitempty"`
	Error  *ErrorDetail   `json:"error,omitempty"`
}

// ItemStatus is an ItemResult's outcome.
type ItemStatus string

const (
	ItemSucceeded ItemStatus = "succeeded"
	ItemFailed    ItemStatus = "failed"
)

// StatusMeta is the observable terminal-state summary attached to a BatchJob.
type StatusMeta struct {
	Succeeded      int              `json:"succeeded"`
	Failed         int              `json:"failed"`
	CompletedCount *int             `json:"completed_count,omitempty"`
	Error          *StatusMetaError `json:"error,omitempty"`
}

// StatusMetaError attributes the first failure of an all-failed batch.
type StatusMetaError struct {
	Kind    string `json:"kind"` // "pre_start" or "first_item"
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// BatchJob is the full server-side record of an async batch. The Batch Job
// Manager is the single writer; reads (status endpoint, webhook payload)
// take a locked snapshot.
type BatchJob struct {
	ID              string       `json:"id"`
	Status          BatchStatus  `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
	Total           int          `json:"total"`
	Processed       int          `json:"processed"`
	Succeeded       int          `json:"succeeded"`
	Failed          int          `json:"failed"`
	Results         []ItemResult `json:"results,omitempty"`
	Request         BatchRequest `json:"-"`
	CancelRequested bool         `json:"-"`
	AcceptResults   bool         `json:"-"`
	Finalized       bool         `json:"-"`
	StartedAny      bool         `json:"-"`
	FirstError      error        `json:"-"`
	StatusMeta      StatusMeta   `json:"status_meta"`
}

// BatchStatusProjection is the response for GET /batch/:id. It excludes
// Results, which are only exposed via the webhook payload.
type BatchStatusProjection struct {
	JobID       string      `json:"job_id"`
	Status      BatchStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	Total       int         `json:"total"`
	Processed   int         `json:"processed"`
	Succeeded   int         `json:"succeeded"`
	Failed      int         `json:"failed"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	StatusMeta  StatusMeta  `json:"status_meta"`
}

// WebhookPayload is the JSON body delivered to WebhookConfig.URL: the full
// BatchJob projection including Results.
type WebhookPayload struct {
	JobID       string       `json:"job_id"`
	Status      BatchStatus  `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Total       int          `json:"total"`
	Processed   int          `json:"processed"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	StatusMeta  StatusMeta   `json:"status_meta"`
	Results     []ItemResult `json:"results"`
}
