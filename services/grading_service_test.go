package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/itsm0000/al-muallim-bot/models"
)

const validReply = `{
  "score": 7.5,
  "max_score": 10,
  "feedback": "حل جيد مع خطأ في الوحدات",
  "annotations": [
    {"coords": [100, 50, 150, 200], "color": "correct", "note": "صحيح"},
    {"coords": [10, 300, 90, 360], "color": "mistake", "note": "وحدة خاطئة"}
  ]
}`

// newTestGrader builds the service around a fake model call and a recording
// sleep, so retry behavior is observable without real delays.
func newTestGrader(gen generateFunc) (*gradingServiceImpl, *[]time.Duration) {
	slept := &[]time.Duration{}
	return &gradingServiceImpl{
		cfg: GradingConfig{
			MaxScore: 10,
			Retry:    RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond},
		},
		generate: gen,
		sleep:    func(d time.Duration) { *slept = append(*slept, d) },
	}, slept
}

func TestGradeSuccess(t *testing.T) {
	calls := 0
	g, slept := newTestGrader(func(ctx context.Context, req models.GradingRequest, followUp string) (string, error) {
		calls++
		return validReply, nil
	})

	result, err := g.Grade(context.Background(), models.GradingRequest{})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
	assert.Equal(t, 7.5, result.Score)
	assert.Equal(t, 10.0, result.MaxScore)
	require.Len(t, result.Annotations, 2)
	assert.Equal(t, [4]int{100, 50, 150, 200}, result.Annotations[0].Coords)
	assert.Equal(t, models.LabelCorrect, result.Annotations[0].Color)
}

func TestGradeAcceptsFencedReply(t *testing.T) {
	g, _ := newTestGrader(func(ctx context.Context, req models.GradingRequest, followUp string) (string, error) {
		return "```json\n" + validReply + "\n```", nil
	})

	result, err := g.Grade(context.Background(), models.GradingRequest{})
	require.NoError(t, err)
	assert.Equal(t, 7.5, result.Score)
}

func TestGradeSchemaViolationGetsOneCorrectiveRetry(t *testing.T) {
	var followUps []string
	calls := 0
	g, _ := newTestGrader(func(ctx context.Context, req models.GradingRequest, followUp string) (string, error) {
		calls++
		followUps = append(followUps, followUp)
		if calls == 1 {
			return `{"score": 5}`, nil
		}
		return validReply, nil
	})

	result, err := g.Grade(context.Background(), models.GradingRequest{})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Empty(t, followUps[0])
	assert.Contains(t, followUps[1], "max_score", "corrective retry must restate the schema")
	assert.Equal(t, 7.5, result.Score)
}

func TestGradeSecondSchemaViolationEscalates(t *testing.T) {
	calls := 0
	g, _ := newTestGrader(func(ctx context.Context, req models.GradingRequest, followUp string) (string, error) {
		calls++
		return "هذه ليست JSON", nil
	})

	_, err := g.Grade(context.Background(), models.GradingRequest{})
	require.Error(t, err)

	assert.Equal(t, 2, calls, "schema violations get exactly one corrective retry")
	assert.Equal(t, ReasonMalformedResponse, FailureReason(err))
}

func TestGradeRefusalNeverRetries(t *testing.T) {
	calls := 0
	g, slept := newTestGrader(func(ctx context.Context, req models.GradingRequest, followUp string) (string, error) {
		calls++
		return "", fmt.Errorf("%w: prompt blocked (SAFETY)", errModelRefused)
	})

	_, err := g.Grade(context.Background(), models.GradingRequest{})
	require.Error(t, err)

	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
	assert.Equal(t, ReasonRefused, FailureReason(err))
}

func TestGradeTransientRetriesThenEscalates(t *testing.T) {
	calls := 0
	g, slept := newTestGrader(func(ctx context.Context, req models.GradingRequest, followUp string) (string, error) {
		calls++
		return "", genai.APIError{Code: 503, Message: "service unavailable"}
	})

	_, err := g.Grade(context.Background(), models.GradingRequest{})
	require.Error(t, err)

	assert.Equal(t, 3, calls, "MaxRetries=2 means three attempts total")
	assert.Len(t, *slept, 2)
	assert.Equal(t, ReasonTransient, FailureReason(err))
}

func TestGradeNonRetryableErrorFailsFast(t *testing.T) {
	calls := 0
	g, slept := newTestGrader(func(ctx context.Context, req models.GradingRequest, followUp string) (string, error) {
		calls++
		return "", genai.APIError{Code: 400, Message: "invalid request"}
	})

	_, err := g.Grade(context.Background(), models.GradingRequest{})
	require.Error(t, err)

	assert.Equal(t, 1, calls, "a permanently failing request is never retried")
	assert.Empty(t, *slept)
	assert.Equal(t, ReasonFailed, FailureReason(err))
}

func TestGradeTransientThenSuccess(t *testing.T) {
	calls := 0
	g, _ := newTestGrader(func(ctx context.Context, req models.GradingRequest, followUp string) (string, error) {
		calls++
		if calls == 1 {
			return "", genai.APIError{Code: 429, Message: "rate limited"}
		}
		return validReply, nil
	})

	result, err := g.Grade(context.Background(), models.GradingRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 7.5, result.Score)
}

func TestGradeExhaustedTimeoutsReportTimeout(t *testing.T) {
	g, _ := newTestGrader(func(ctx context.Context, req models.GradingRequest, followUp string) (string, error) {
		return "", context.DeadlineExceeded
	})

	_, err := g.Grade(context.Background(), models.GradingRequest{})
	require.Error(t, err)
	assert.Equal(t, ReasonTimeout, FailureReason(err))
}

func TestGradeDeadParentContextIsTimeout(t *testing.T) {
	calls := 0
	g, _ := newTestGrader(func(ctx context.Context, req models.GradingRequest, followUp string) (string, error) {
		calls++
		return validReply, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Grade(ctx, models.GradingRequest{})
	require.Error(t, err)
	assert.Equal(t, 0, calls)
	assert.Equal(t, ReasonTimeout, FailureReason(err))
}

func TestParseGradingResultViolations(t *testing.T) {
	cases := map[string]string{
		"empty reply":         ``,
		"not json":            `نص حر`,
		"missing score":       `{"max_score": 10, "feedback": "x", "annotations": []}`,
		"missing max_score":   `{"score": 5, "feedback": "x", "annotations": []}`,
		"missing feedback":    `{"score": 5, "max_score": 10, "annotations": []}`,
		"missing annotations": `{"score": 5, "max_score": 10, "feedback": "x"}`,
		"wrong scale":         `{"score": 5, "max_score": 20, "feedback": "x", "annotations": []}`,
		"score above max":     `{"score": 11, "max_score": 10, "feedback": "x", "annotations": []}`,
		"negative score":      `{"score": -1, "max_score": 10, "feedback": "x", "annotations": []}`,
		"three coords":        `{"score": 5, "max_score": 10, "feedback": "x", "annotations": [{"coords": [1,2,3], "color": "correct", "note": "n"}]}`,
		"unknown color":       `{"score": 5, "max_score": 10, "feedback": "x", "annotations": [{"coords": [1,2,3,4], "color": "green", "note": "n"}]}`,
		"missing note":        `{"score": 5, "max_score": 10, "feedback": "x", "annotations": [{"coords": [1,2,3,4], "color": "correct"}]}`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseGradingResult(reply, 10)
			require.Error(t, err)
		})
	}
}

func TestParseGradingResultRoundsCoords(t *testing.T) {
	reply := `{"score": 5, "max_score": 10, "feedback": "x",
		"annotations": [{"coords": [10.6, 19.4, 100.5, 200.0], "color": "partial", "note": "n"}]}`

	result, err := parseGradingResult(reply, 10)
	require.NoError(t, err)
	assert.Equal(t, [4]int{11, 19, 101, 200}, result.Annotations[0].Coords)
}

func TestParseGradingResultEmptyAnnotationsAllowed(t *testing.T) {
	result, err := parseGradingResult(`{"score": 0, "max_score": 10, "feedback": "لم يجب الطالب", "annotations": []}`, 10)
	require.NoError(t, err)
	assert.Empty(t, result.Annotations)
	assert.Equal(t, 0.0, result.Score)
}
