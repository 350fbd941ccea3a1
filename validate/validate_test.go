package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageharvest/pageharvest/models"
)

func TestStruct_ValidRequestHasNoViolations(t *testing.T) {
	req := models.ScrapeRequest{URL: "https://example.com"}
	violations, err := Struct(req)
	assert.NoError(t, err)
	assert.Empty(t, violations)
}

func TestStruct_MissingURLIsRequired(t *testing.T) {
	req := models.ScrapeRequest{}
	violations, err := Struct(req)
	require.Error(t, err)
	require.NotEmpty(t, violations)
	assert.Contains(t, violations[0], "required")
}

func TestStruct_InvalidModeFailsOneOf(t *testing.T) {
	req := models.ScrapeRequest{URL: "https://example.com", Mode: "carrier-pigeon"}
	_, err := Struct(req)
	assert.Error(t, err)
}

func TestStruct_ScheduleMaxDelayMustBeGTEMinDelay(t *testing.T) {
	batchReq := models.BatchRequest{
		Items:    []models.BatchItem{{URL: "https://example.com"}},
		Schedule: models.ScheduleConfig{MinDelayMs: 500, MaxDelayMs: 100},
	}
	_, err := Struct(batchReq)
	assert.Error(t, err)
}

func TestStruct_EmptyBatchItemsFailsMin(t *testing.T) {
	batchReq := models.BatchRequest{Items: []models.BatchItem{}}
	_, err := Struct(batchReq)
	assert.Error(t, err)
}
