// Package batch implements the batch job manager: create a job, run its
// items through a pool of cooperative workers with scheduled pacing,
// track a monotonic state machine to a terminal status, and expose a
// read-only projection for polling. It is adapted from
// api/handler/batch.go (sync.Map job store + semaphore-bounded
// sync.WaitGroup fan-out), generalized from a single fixed-concurrency
// fan-out into a full queued/running/terminal state machine with
// per-worker pacing, statusMeta attribution, and shutdown finalization.
package batch

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/pageharvest/pageharvest/apperr"
	"github.com/pageharvest/pageharvest/models"
	"github.com/pageharvest/pageharvest/validate"
)

// ScrapeRunner is the capability the worker loop delegates each item to.
// scrapeengine.Engine satisfies this.
type ScrapeRunner interface {
	Scrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error)
}

// WebhookSender is the capability the Manager hands terminal payloads to.
// webhookdispatch.Dispatcher satisfies this.
type WebhookSender interface {
	Send(ctx context.Context, cfg *models.WebhookConfig, payload models.WebhookPayload) error
}

// Config carries server-wide batch defaults.
type Config struct {
	// Concurrency is the server-wide per-job worker count.
	Concurrency int
}

// Manager owns every batch job's lifecycle.
type Manager struct {
	engine  ScrapeRunner
	webhook WebhookSender
	clock   clock.Clock
	cfg     Config

	mu   sync.Mutex
	jobs map[string]*models.BatchJob

	// wg tracks in-flight worker loops so Shutdown can wait for them to
	// observe cancellation before delivering webhooks.
	wg sync.WaitGroup
}

// New builds a Manager. clk may be nil to use the real wall clock.
func New(engine ScrapeRunner, webhook WebhookSender, clk clock.Clock, cfg Config) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Manager{
		engine:  engine,
		webhook: webhook,
		clock:   clk,
		cfg:     cfg,
		jobs:    make(map[string]*models.BatchJob),
	}
}

// Create validates req, stores a new job in state "queued", and launches
// its worker loop in the background. It returns the
// fresh job id immediately; the worker loop's transition to "running"
// happens asynchronously so the first observable status is "queued".
func (m *Manager) Create(req models.BatchRequest) (string, error) {
	if violations, err := validate.Struct(req); err != nil {
		return "", apperr.New(apperr.Validation, "invalid batch request", err).WithDetails(joinViolations(violations))
	}

	job := &models.BatchJob{
		ID:            uuid.NewString(),
		Status:        models.BatchQueued,
		CreatedAt:     m.clock.Now(),
		Total:         len(req.Items),
		Request:       req,
		AcceptResults: true,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.wg.Add(1)
	go m.runJob(job.ID)

	return job.ID, nil
}

// GetStatus returns the polling projection for id.
func (m *Manager) GetStatus(id string) (models.BatchStatusProjection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return models.BatchStatusProjection{}, apperr.New(apperr.NotFound, "batch job not found", nil)
	}
	return projection(job), nil
}

func projection(job *models.BatchJob) models.BatchStatusProjection {
	return models.BatchStatusProjection{
		JobID:       job.ID,
		Status:      job.Status,
		CreatedAt:   job.CreatedAt,
		Total:       job.Total,
		Processed:   job.Processed,
		Succeeded:   job.Succeeded,
		Failed:      job.Failed,
		CompletedAt: job.CompletedAt,
		StatusMeta:  job.StatusMeta,
	}
}

// CleanupOlderThan removes every job (of any status) with
// now-createdAt >= ttl and returns the count removed.
func (m *Manager) CleanupOlderThan(ttl time.Duration) int {
	cutoff := m.clock.Now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, job := range m.jobs {
		if !job.CreatedAt.After(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

// Recover reports zero: an in-memory Manager has nothing persisted
// across a restart to recover into "failed".
func (m *Manager) Recover() int {
	return 0
}

// Shutdown marks every non-terminal job "partial" and delivers any
// configured webhooks, awaiting every delivery (success or permanent
// failure) before returning.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	var toNotify []*models.BatchJob
	for _, job := range m.jobs {
		if job.Status.Terminal() {
			continue
		}
		job.CancelRequested = true
		job.AcceptResults = false
		now := m.clock.Now()
		completed := job.Processed
		job.Status = models.BatchPartial
		job.CompletedAt = &now
		job.StatusMeta = models.StatusMeta{
			Succeeded:      job.Succeeded,
			Failed:         job.Failed,
			CompletedCount: &completed,
		}
		job.Finalized = true
		toNotify = append(toNotify, cloneJob(job))
	}
	m.mu.Unlock()

	// Wait for every worker loop to observe cancelRequested and return;
	// their own finalize() calls will see Finalized already true and
	// no-op, so this is purely about letting in-flight scrapes unwind.
	m.wg.Wait()

	var wg sync.WaitGroup
	for _, job := range toNotify {
		webhookCfg := job.Request.Webhook
		if webhookCfg == nil {
			continue
		}
		wg.Add(1)
		go func(j *models.BatchJob) {
			defer wg.Done()
			if err := m.webhook.Send(context.Background(), webhookCfg, webhookPayload(j)); err != nil {
				slog.Warn("batch: shutdown webhook delivery failed", "job_id", j.ID, "error", err)
			}
		}(job)
	}
	wg.Wait()
}

func cloneJob(job *models.BatchJob) *models.BatchJob {
	cp := *job
	return &cp
}

// runJob transitions the job to "running" and drives its worker pool to
// completion.
func (m *Manager) runJob(jobID string) {
	defer m.wg.Done()

	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return
	}
	job.Status = models.BatchRunning
	req := job.Request
	m.mu.Unlock()

	concurrency := m.cfg.Concurrency
	minDelay := req.Schedule.MinDelayMs
	maxDelay := req.Schedule.MaxDelayMs
	jitter := req.Schedule.JitterEnabled()

	var nextIndex atomic.Int64
	var workers sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		workers.Add(1)
		go func(workerNum int) {
			defer workers.Done()
			for {
				if m.cancelRequested(jobID) {
					return
				}
				i := int(nextIndex.Add(1)) - 1
				if i >= len(req.Items) {
					return
				}
				if i >= concurrency {
					m.sleepDelay(minDelay, maxDelay, jitter)
				}
				m.processItem(jobID, req, req.Items[i])
			}
		}(w)
	}
	workers.Wait()

	m.finalize(jobID)
}

func (m *Manager) cancelRequested(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	return ok && job.CancelRequested
}

func (m *Manager) sleepDelay(minMs, maxMs int, jitter bool) {
	d := delay(minMs, maxMs, jitter)
	if d <= 0 {
		return
	}
	timer := m.clock.Timer(d)
	defer timer.Stop()
	<-timer.C
}

// delay computes one inter-item pacing delay: uniform in [min, max], then
// ±10% multiplicative jitter if enabled (so a jittered delay stays within
// [0.9*min, 1.1*max]), rounded to the millisecond.
func delay(minMs, maxMs int, jitter bool) time.Duration {
	if maxMs < minMs {
		maxMs = minMs
	}
	base := minMs
	if maxMs > minMs {
		base = minMs + rand.Intn(maxMs-minMs+1)
	}
	d := float64(base)
	if jitter {
		noise := (rand.Float64()*2 - 1) * 0.1
		d = d * (1 + noise)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d+0.5) * time.Millisecond
}

// processItem scrapes one batch item and records its outcome, marking
// startedAny before dispatch so failed-before-first-attempt attribution
// stays accurate even under shutdown races.
func (m *Manager) processItem(jobID string, req models.BatchRequest, item models.BatchItem) {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok || !job.AcceptResults {
		m.mu.Unlock()
		return
	}
	job.StartedAny = true
	m.mu.Unlock()

	scrapeReq := item.Merge(req.CommonSettings)
	result, err := m.engine.Scrape(context.Background(), scrapeReq)

	m.recordResult(jobID, item.URL, result, err)
}

func (m *Manager) recordResult(jobID, url string, result *models.ScrapeResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || !job.AcceptResults {
		return
	}

	item := models.ItemResult{URL: url}
	if err != nil {
		if job.FirstError == nil {
			job.FirstError = err
		}
		item.Status = models.ItemFailed
		item.Error = errorDetail(err)
		job.Failed++
	} else {
		item.Status = models.ItemSucceeded
		item.Data = result
		job.Succeeded++
	}
	job.Results = append(job.Results, item)
	job.Processed++
}

// finalize computes the job's terminal status and statusMeta, then
// delivers its webhook if one is configured. A job already finalized by the shutdown path is left alone.
func (m *Manager) finalize(jobID string) {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok || job.Finalized {
		m.mu.Unlock()
		return
	}

	switch {
	case job.Failed == 0:
		job.Status = models.BatchSucceeded
	case job.Succeeded == 0:
		job.Status = models.BatchFailed
	default:
		job.Status = models.BatchPartial
	}

	now := m.clock.Now()
	job.CompletedAt = &now
	job.Finalized = true
	job.StatusMeta = statusMeta(job)
	payload := webhookPayload(job)
	webhookCfg := job.Request.Webhook
	m.mu.Unlock()

	if webhookCfg == nil {
		return
	}
	if err := m.webhook.Send(context.Background(), webhookCfg, payload); err != nil {
		slog.Warn("batch: webhook delivery failed", "job_id", jobID, "error", err)
	}
}

func statusMeta(job *models.BatchJob) models.StatusMeta {
	meta := models.StatusMeta{Succeeded: job.Succeeded, Failed: job.Failed}

	if job.Status == models.BatchPartial {
		completed := job.Succeeded + job.Failed
		meta.CompletedCount = &completed
	}

	if job.Status == models.BatchFailed && job.Succeeded == 0 {
		kind := "first_item"
		if !job.StartedAny {
			kind = "pre_start"
		}
		message := "batch failed: no items succeeded"
		details := ""
		if job.FirstError != nil {
			ae := apperr.As(job.FirstError)
			message = ae.Message
			details = ae.Details
			if details == "" && ae.Err != nil {
				details = ae.Err.Error()
			}
		}
		meta.Error = &models.StatusMetaError{Kind: kind, Message: message, Details: details}
	}

	return meta
}

func webhookPayload(job *models.BatchJob) models.WebhookPayload {
	return models.WebhookPayload{
		JobID:       job.ID,
		Status:      job.Status,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
		Total:       job.Total,
		Processed:   job.Processed,
		Succeeded:   job.Succeeded,
		Failed:      job.Failed,
		StatusMeta:  job.StatusMeta,
		Results:     job.Results,
	}
}

func errorDetail(err error) *models.ErrorDetail {
	ae := apperr.As(err)
	return &models.ErrorDetail{
		Code:    apperr.HTTPStatus(ae.Kind),
		Message: ae.Message,
		Details: ae.Details,
	}
}

func joinViolations(violations []string) string {
	out := ""
	for i, v := range violations {
		if i > 0 {
			out += "; "
		}
		out += v
	}
	return out
}
