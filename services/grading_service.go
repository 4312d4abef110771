package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/itsm0000/al-muallim-bot/models"
	"github.com/itsm0000/al-muallim-bot/util"
)

// GradingService sends one assembled GradingRequest to the reasoning model and
// returns a schema-validated result or a *GradingError.
type GradingService interface {
	Grade(ctx context.Context, req models.GradingRequest) (models.GradingResult, error)
}

// GradingConfig carries the model call configuration explicitly instead of
// reading ambient globals, so two services with different budgets can coexist.
type GradingConfig struct {
	Model          string
	Temperature    float32
	ThinkingBudget int32
	AttemptTimeout time.Duration
	MaxScore       int
	Retry          RetryPolicy
}

// generateFunc performs one raw model call and returns the reply text.
// Swapped for a fake in tests.
type generateFunc func(ctx context.Context, req models.GradingRequest, followUp string) (string, error)

type gradingServiceImpl struct {
	cfg      GradingConfig
	generate generateFunc
	sleep    func(time.Duration)
}

// NewGradingService builds the Gemini-backed grader. The model is configured
// for low-variance output (fixed low temperature, JSON response MIME type) and
// a high thinking budget, since grading handwritten physics needs multi-step
// reasoning.
func NewGradingService(client *genai.Client, cfg GradingConfig) GradingService {
	return &gradingServiceImpl{
		cfg: cfg,
		generate: func(ctx context.Context, req models.GradingRequest, followUp string) (string, error) {
			return generateWithGemini(ctx, client, cfg, req, followUp)
		},
		sleep: time.Sleep,
	}
}

// Grade runs the bounded retry loop. Transient failures (network, rate limit,
// per-attempt timeout) retry with exponential backoff up to the policy budget;
// a schema violation gets exactly one corrective retry; refusals and
// non-retryable call errors never retry. Retries are strictly sequential.
// A dead parent context always surfaces as reason timeout.
func (g *gradingServiceImpl) Grade(ctx context.Context, req models.GradingRequest) (models.GradingResult, error) {
	var (
		followUp      string
		schemaRetried bool
		retries       int
		lastErr       error
	)

	for {
		if err := ctx.Err(); err != nil {
			return models.GradingResult{}, gradingFailed(ReasonTimeout, err)
		}

		raw, err := g.attempt(ctx, req, followUp)
		if err == nil {
			result, verr := parseGradingResult(raw, g.cfg.MaxScore)
			if verr == nil {
				log.Info().
					Float64("score", result.Score).
					Int("annotations", len(result.Annotations)).
					Msg("SERVICE: grading complete")
				return result, nil
			}
			if !schemaRetried {
				schemaRetried = true
				followUp = correctiveInstruction(verr)
				log.Warn().Err(verr).Msg("SERVICE: schema violation, sending corrective retry")
				continue
			}
			return models.GradingResult{}, gradingFailed(ReasonMalformedResponse, verr)
		}

		if errors.Is(err, errModelRefused) {
			return models.GradingResult{}, gradingFailed(ReasonRefused, err)
		}
		if ctx.Err() != nil {
			return models.GradingResult{}, gradingFailed(ReasonTimeout, ctx.Err())
		}

		lastErr = err
		if !isTransient(err) {
			return models.GradingResult{}, gradingFailed(ReasonFailed, lastErr)
		}
		if retries >= g.cfg.Retry.MaxRetries {
			reason := ReasonTransient
			if isTimeout(lastErr) {
				reason = ReasonTimeout
			}
			return models.GradingResult{}, gradingFailed(reason, lastErr)
		}
		retries++
		delay := g.cfg.Retry.Backoff(retries)
		log.Warn().Err(err).Int("retry", retries).Dur("backoff", delay).Msg("SERVICE: model call failed, retrying")
		g.sleep(delay)
	}
}

func (g *gradingServiceImpl) attempt(ctx context.Context, req models.GradingRequest, followUp string) (string, error) {
	if g.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.AttemptTimeout)
		defer cancel()
	}
	return g.generate(ctx, req, followUp)
}

func generateWithGemini(ctx context.Context, client *genai.Client, cfg GradingConfig, req models.GradingRequest, followUp string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(req.Instructions),
		genai.NewPartFromBytes(req.QuestionImage, util.SniffMime(req.QuestionImage)),
		genai.NewPartFromText(answerBridgeText),
		genai.NewPartFromBytes(req.AnswerImage, util.SniffMime(req.AnswerImage)),
	}
	if followUp != "" {
		parts = append(parts, genai.NewPartFromText(followUp))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(cfg.Temperature),
		ResponseMIMEType: "application/json",
		ThinkingConfig:   &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(cfg.ThinkingBudget)},
	}

	resp, err := client.Models.GenerateContent(ctx, cfg.Model, contents, config)
	if err != nil {
		return "", err
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", errModelRefused, resp.PromptFeedback.BlockReason)
	}
	for _, c := range resp.Candidates {
		if c.FinishReason == genai.FinishReasonSafety || c.FinishReason == genai.FinishReasonProhibitedContent {
			return "", fmt.Errorf("%w: finish reason %s", errModelRefused, c.FinishReason)
		}
	}
	return resp.Text(), nil
}

// --------------------------- response validation ---------------------------

// raw mirrors of the output schema with pointer fields, so a missing field is
// distinguishable from a zero value. Nothing here is ever defaulted: an absent
// score or max_score is a violation, not a 0 or a guessed denominator.
type rawAnnotation struct {
	Coords *[]json.Number `json:"coords"`
	Color  *string        `json:"color"`
	Note   *string        `json:"note"`
}

type rawResult struct {
	Score       *json.Number     `json:"score"`
	MaxScore    *json.Number     `json:"max_score"`
	Feedback    *string          `json:"feedback"`
	Annotations *[]rawAnnotation `json:"annotations"`
}

func parseGradingResult(text string, wantMaxScore int) (models.GradingResult, error) {
	text = util.StripCodeFences(strings.TrimSpace(text))
	if text == "" {
		return models.GradingResult{}, fmt.Errorf("%w: empty response", errSchemaViolation)
	}

	var raw rawResult
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return models.GradingResult{}, fmt.Errorf("%w: %v", errSchemaViolation, err)
	}

	switch {
	case raw.Score == nil:
		return models.GradingResult{}, fmt.Errorf("%w: missing field score", errSchemaViolation)
	case raw.MaxScore == nil:
		return models.GradingResult{}, fmt.Errorf("%w: missing field max_score", errSchemaViolation)
	case raw.Feedback == nil:
		return models.GradingResult{}, fmt.Errorf("%w: missing field feedback", errSchemaViolation)
	case raw.Annotations == nil:
		return models.GradingResult{}, fmt.Errorf("%w: missing field annotations", errSchemaViolation)
	}

	score, err := raw.Score.Float64()
	if err != nil {
		return models.GradingResult{}, fmt.Errorf("%w: score is not numeric", errSchemaViolation)
	}
	maxScore, err := raw.MaxScore.Float64()
	if err != nil {
		return models.GradingResult{}, fmt.Errorf("%w: max_score is not numeric", errSchemaViolation)
	}
	if maxScore <= 0 || (wantMaxScore > 0 && maxScore != float64(wantMaxScore)) {
		return models.GradingResult{}, fmt.Errorf("%w: max_score %v does not match the declared scale %d", errSchemaViolation, maxScore, wantMaxScore)
	}
	if score < 0 || score > maxScore {
		return models.GradingResult{}, fmt.Errorf("%w: score %v outside [0, %v]", errSchemaViolation, score, maxScore)
	}

	annotations := make([]models.Annotation, 0, len(*raw.Annotations))
	for i, ra := range *raw.Annotations {
		a, err := validateAnnotation(ra)
		if err != nil {
			return models.GradingResult{}, fmt.Errorf("annotation %d: %w", i, err)
		}
		annotations = append(annotations, a)
	}

	return models.GradingResult{
		Score:       score,
		MaxScore:    maxScore,
		Feedback:    *raw.Feedback,
		Annotations: annotations,
	}, nil
}

func validateAnnotation(ra rawAnnotation) (models.Annotation, error) {
	switch {
	case ra.Coords == nil:
		return models.Annotation{}, fmt.Errorf("%w: missing field coords", errSchemaViolation)
	case ra.Color == nil:
		return models.Annotation{}, fmt.Errorf("%w: missing field color", errSchemaViolation)
	case ra.Note == nil:
		return models.Annotation{}, fmt.Errorf("%w: missing field note", errSchemaViolation)
	}
	if len(*ra.Coords) != 4 {
		return models.Annotation{}, fmt.Errorf("%w: coords must have exactly 4 elements, got %d", errSchemaViolation, len(*ra.Coords))
	}

	var coords [4]int
	for i, n := range *ra.Coords {
		f, err := n.Float64()
		if err != nil {
			return models.Annotation{}, fmt.Errorf("%w: coordinate %d is not numeric", errSchemaViolation, i)
		}
		coords[i] = int(math.Round(f))
	}

	label := models.Label(*ra.Color)
	if !label.Valid() {
		return models.Annotation{}, fmt.Errorf("%w: unknown color %q", errSchemaViolation, *ra.Color)
	}

	return models.Annotation{Coords: coords, Color: label, Note: *ra.Note}, nil
}

// --------------------------- error classification ---------------------------

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isTransient reports whether a failed attempt is worth retrying: rate limits,
// backend 5xx responses, network faults and per-attempt timeouts. Anything else
// (e.g. an invalid request) fails the same way every time.
func isTransient(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	var ne net.Error
	return errors.As(err, &ne) || isTimeout(err)
}
