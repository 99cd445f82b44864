package results_test

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/JaimeStill/pulse/internal/results"
)

func TestNormalize(t *testing.T) {
	cmd := results.RecordCommand{
		Keywords:       []string{" Bug", "bug", "", "crash "},
		Topics:         []string{"UX", "billing", "ux"},
		PainPoints:     []string{"  slow login ", "", "crashes on save"},
		SentimentLabel: " Positive ",
	}
	cmd.Normalize()

	assert.Equal(t, []string{"bug", "crash"}, cmd.Keywords)
	assert.Equal(t, []string{"billing", "ux"}, cmd.Topics)
	assert.Equal(t, []string{"slow login", "crashes on save"}, cmd.PainPoints)
	assert.Equal(t, results.Positive, cmd.SentimentLabel)
}

func TestValidate(t *testing.T) {
	valid := func() results.RecordCommand {
		return results.RecordCommand{
			DocumentID:     uuid.New(),
			SentimentScore: 0.4,
			SentimentLabel: results.Positive,
			Confidence:     0.9,
		}
	}

	nilCluster := uuid.Nil
	tests := []struct {
		name   string
		mutate func(*results.RecordCommand)
		field  string
	}{
		{"missing document", func(c *results.RecordCommand) { c.DocumentID = uuid.Nil }, "document_id"},
		{"score above range", func(c *results.RecordCommand) { c.SentimentScore = 1.01 }, "sentiment_score"},
		{"score below range", func(c *results.RecordCommand) { c.SentimentScore = -1.5 }, "sentiment_score"},
		{"score NaN", func(c *results.RecordCommand) { c.SentimentScore = math.NaN() }, "sentiment_score"},
		{"confidence negative", func(c *results.RecordCommand) { c.Confidence = -0.1 }, "confidence"},
		{"confidence above one", func(c *results.RecordCommand) { c.Confidence = 2 }, "confidence"},
		{"unknown label", func(c *results.RecordCommand) { c.SentimentLabel = "angry" }, "sentiment_label"},
		{"nil cluster uuid", func(c *results.RecordCommand) { c.ClusterID = &nilCluster }, "cluster_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := valid()
			tt.mutate(&cmd)

			err := cmd.Validate()
			assert.ErrorIs(t, err, results.ErrValidation)

			var verr *results.ValidationError
			if assert.True(t, errors.As(err, &verr)) {
				assert.Equal(t, tt.field, verr.Field)
			}
		})
	}

	cmd := valid()
	cmd.SentimentScore, cmd.Confidence = -1, 0
	assert.NoError(t, cmd.Validate(), "range bounds are inclusive")
}

func TestMapHTTPStatus(t *testing.T) {
	assert.Equal(t, 422, results.MapHTTPStatus(&results.ValidationError{Field: "x", Reason: "y"}))
	assert.Equal(t, 422, results.MapHTTPStatus(results.ErrUnknownDocument))
	assert.Equal(t, 404, results.MapHTTPStatus(results.ErrNotFound))
	assert.Equal(t, 503, results.MapHTTPStatus(results.ErrStorage))
	assert.Equal(t, 500, results.MapHTTPStatus(errors.New("boom")))
}
