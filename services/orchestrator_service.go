package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/itsm0000/al-muallim-bot/models"
)

// Orchestrator runs the whole grading pipeline for one submission: curriculum
// excerpts (best-effort) -> prompt -> model call -> annotation. Either a full
// GradingOutcome comes back or a typed *GradingError; callers never see a
// partially populated result.
type Orchestrator interface {
	Run(ctx context.Context, questionImage, answerImage []byte, subjectHint string) (*models.GradingOutcome, error)
}

type orchestratorImpl struct {
	curriculum      CurriculumService
	prompts         *PromptBuilder
	grader          GradingService
	annotator       AnnotatorService
	maxContextChars int
}

func NewOrchestrator(curriculum CurriculumService, prompts *PromptBuilder, grader GradingService, annotator AnnotatorService, maxContextChars int) Orchestrator {
	return &orchestratorImpl{
		curriculum:      curriculum,
		prompts:         prompts,
		grader:          grader,
		annotator:       annotator,
		maxContextChars: maxContextChars,
	}
}

func (o *orchestratorImpl) Run(ctx context.Context, questionImage, answerImage []byte, subjectHint string) (*models.GradingOutcome, error) {
	excerpts := o.curriculum.RelevantExcerpts(subjectHint, o.maxContextChars)
	if len(excerpts) == 0 {
		log.Warn().Str("subject_hint", subjectHint).Msg("SERVICE: no curriculum match, grading ungrounded")
	}

	req := o.prompts.Build(questionImage, answerImage, excerpts)

	result, err := o.grader.Grade(ctx, req)
	if err != nil {
		return nil, err
	}

	annotated, dropped, err := o.annotator.Annotate(answerImage, result.Annotations)
	if err != nil {
		return nil, gradingFailed(ReasonBadImage, err)
	}
	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Msg("SERVICE: annotations outside image bounds were dropped")
	}

	return &models.GradingOutcome{
		Result:             result,
		AnnotatedImage:     annotated,
		DroppedAnnotations: dropped,
	}, nil
}
