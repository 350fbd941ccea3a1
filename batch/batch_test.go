package batch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageharvest/pageharvest/apperr"
	"github.com/pageharvest/pageharvest/models"
)

type fakeEngine struct {
	mu      sync.Mutex
	results map[string]*models.ScrapeResult
	errs    map[string]error
	calls   []string
	reqs    []models.ScrapeRequest
	block   chan struct{}
}

func (f *fakeEngine) Scrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.URL)
	f.reqs = append(f.reqs, *req)
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[req.URL]; ok {
		return nil, err
	}
	if res, ok := f.results[req.URL]; ok {
		return res, nil
	}
	return &models.ScrapeResult{URL: req.URL}, nil
}

type fakeWebhook struct {
	mu   sync.Mutex
	sent []models.WebhookPayload
	err  error
}

func (f *fakeWebhook) Send(ctx context.Context, cfg *models.WebhookConfig, payload models.WebhookPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return f.err
}

func (f *fakeWebhook) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func waitTerminal(t *testing.T, m *Manager, id string, timeout time.Duration) models.BatchStatusProjection {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		proj, err := m.GetStatus(id)
		require.NoError(t, err)
		if proj.Status.Terminal() {
			return proj
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch job %s did not reach terminal state in time, last status=%s", id, proj.Status)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func zeroSchedule() models.ScheduleConfig {
	return models.ScheduleConfig{MinDelayMs: 0, MaxDelayMs: 0}
}

func TestCreate_HappyPathBothSucceed(t *testing.T) {
	engine := &fakeEngine{}
	webhook := &fakeWebhook{}
	m := New(engine, webhook, nil, Config{Concurrency: 2})

	req := models.BatchRequest{
		Items:    []models.BatchItem{{URL: "http://x/1"}, {URL: "http://x/2"}},
		Schedule: zeroSchedule(),
	}
	id, err := m.Create(req)
	require.NoError(t, err)

	proj := waitTerminal(t, m, id, time.Second)
	assert.Equal(t, models.BatchSucceeded, proj.Status)
	assert.Equal(t, 2, proj.Total)
	assert.Equal(t, 2, proj.Processed)
	assert.Equal(t, 2, proj.Succeeded)
	assert.Equal(t, 0, proj.Failed)
	require.NotNil(t, proj.CompletedAt)
}

func TestCreate_PartialOnMixedResults(t *testing.T) {
	engine := &fakeEngine{errs: map[string]error{"http://x/1": apperr.New(apperr.ContentExtraction, "boom", nil)}}
	webhook := &fakeWebhook{}
	m := New(engine, webhook, nil, Config{Concurrency: 1})

	req := models.BatchRequest{
		Items:    []models.BatchItem{{URL: "http://x/1"}, {URL: "http://x/2"}},
		Schedule: zeroSchedule(),
	}
	id, err := m.Create(req)
	require.NoError(t, err)

	proj := waitTerminal(t, m, id, time.Second)
	assert.Equal(t, models.BatchPartial, proj.Status)
	assert.Equal(t, 1, proj.Succeeded)
	assert.Equal(t, 1, proj.Failed)
	require.NotNil(t, proj.StatusMeta.CompletedCount)
	assert.Equal(t, 2, *proj.StatusMeta.CompletedCount)
}

func TestCreate_AllFailFirstItemAttribution(t *testing.T) {
	boom := apperr.New(apperr.ContentExtraction, "Failed to extract content from page", nil).WithDetails("Boom")
	engine := &fakeEngine{errs: map[string]error{
		"http://x/1": boom,
		"http://x/2": apperr.New(apperr.ContentExtraction, "Failed to extract content from page", nil).WithDetails("Boom"),
	}}
	webhook := &fakeWebhook{}
	m := New(engine, webhook, nil, Config{Concurrency: 1})

	req := models.BatchRequest{
		Items:    []models.BatchItem{{URL: "http://x/1"}, {URL: "http://x/2"}},
		Schedule: zeroSchedule(),
	}
	id, err := m.Create(req)
	require.NoError(t, err)

	proj := waitTerminal(t, m, id, time.Second)
	assert.Equal(t, models.BatchFailed, proj.Status)
	require.NotNil(t, proj.StatusMeta.Error)
	assert.Equal(t, "first_item", proj.StatusMeta.Error.Kind)
	assert.Equal(t, "Failed to extract content from page", proj.StatusMeta.Error.Message)
	assert.Equal(t, "Boom", proj.StatusMeta.Error.Details)
}

func TestCreate_MergesItemOverridesOntoCommonSettings(t *testing.T) {
	engine := &fakeEngine{}
	webhook := &fakeWebhook{}
	m := New(engine, webhook, nil, Config{Concurrency: 1})

	rawBodyOverride := true
	req := models.BatchRequest{
		Items: []models.BatchItem{
			{URL: "http://x/1", ModeOverride: models.ModeBrowser, RawBodyOverride: &rawBodyOverride},
		},
		CommonSettings: &models.ScrapeRequest{Mode: models.ModeStatic, TaskTimeoutSecs: 30},
		Schedule:       zeroSchedule(),
	}
	id, err := m.Create(req)
	require.NoError(t, err)
	waitTerminal(t, m, id, time.Second)

	require.Len(t, engine.calls, 1)
	assert.Equal(t, "http://x/1", engine.calls[0])
	require.Len(t, engine.reqs, 1)
	assert.Equal(t, models.ModeBrowser, engine.reqs[0].Mode)
	assert.True(t, engine.reqs[0].RawBody)
	assert.Equal(t, 30, engine.reqs[0].TaskTimeoutSecs)
}

func TestCreate_InvalidRequestRejected(t *testing.T) {
	engine := &fakeEngine{}
	webhook := &fakeWebhook{}
	m := New(engine, webhook, nil, Config{Concurrency: 1})

	_, err := m.Create(models.BatchRequest{Items: nil})
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestGetStatus_NotFound(t *testing.T) {
	m := New(&fakeEngine{}, &fakeWebhook{}, nil, Config{Concurrency: 1})
	_, err := m.GetStatus("does-not-exist")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestCreate_DeliversWebhookOnceOnCompletion(t *testing.T) {
	engine := &fakeEngine{}
	webhook := &fakeWebhook{}
	m := New(engine, webhook, nil, Config{Concurrency: 1})

	req := models.BatchRequest{
		Items:    []models.BatchItem{{URL: "http://x/1"}},
		Schedule: zeroSchedule(),
		Webhook:  &models.WebhookConfig{URL: "http://hook.example", MaxAttempts: 1},
	}
	id, err := m.Create(req)
	require.NoError(t, err)
	waitTerminal(t, m, id, time.Second)

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, webhook.count())
}

func TestShutdown_MarksInFlightJobPartialAndDiscardsInFlightResult(t *testing.T) {
	block := make(chan struct{})
	engine := &fakeEngine{block: block}
	webhook := &fakeWebhook{}
	m := New(engine, webhook, nil, Config{Concurrency: 1})

	req := models.BatchRequest{
		Items:    []models.BatchItem{{URL: "http://x/1"}, {URL: "http://x/2"}},
		Schedule: zeroSchedule(),
		Webhook:  &models.WebhookConfig{URL: "http://hook.example", MaxAttempts: 1},
	}
	id, err := m.Create(req)
	require.NoError(t, err)

	// Wait until the worker has actually claimed item 1 and is blocked
	// inside the fake engine.
	deadline := time.Now().Add(time.Second)
	for {
		engine.mu.Lock()
		n := len(engine.calls)
		engine.mu.Unlock()
		if n >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("engine was never called")
		}
		time.Sleep(time.Millisecond)
	}

	shutdownDone := make(chan struct{})
	go func() {
		m.Shutdown()
		close(shutdownDone)
	}()

	// Give Shutdown a moment to mark the job partial before the in-flight
	// item completes.
	time.Sleep(10 * time.Millisecond)
	close(block)

	select {
	case <-shutdownDone:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not return in time")
	}

	proj, err := m.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, models.BatchPartial, proj.Status)
	assert.Equal(t, 0, proj.Processed, "in-flight item's result must be discarded once acceptResults is false")
	require.NotNil(t, proj.StatusMeta.CompletedCount)
	assert.Equal(t, 0, *proj.StatusMeta.CompletedCount)
	assert.Equal(t, 1, webhook.count())
}

func TestShutdown_Idempotent(t *testing.T) {
	m := New(&fakeEngine{}, &fakeWebhook{}, nil, Config{Concurrency: 1})
	m.Shutdown()
	m.Shutdown()
}

func TestDelay_RespectsBoundsWithoutJitter(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := delay(10, 20, false)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 20*time.Millisecond)
	}
}

func TestDelay_JitterStaysWithinTolerance(t *testing.T) {
	const eps = 2 * time.Millisecond
	for i := 0; i < 200; i++ {
		d := delay(100, 200, true)
		assert.GreaterOrEqual(t, d, time.Duration(float64(90*time.Millisecond))-eps)
		assert.LessOrEqual(t, d, time.Duration(float64(220*time.Millisecond))+eps)
	}
}
