package controller

import (
	"encoding/base64"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/itsm0000/al-muallim-bot/models"
	"github.com/itsm0000/al-muallim-bot/services"
	"github.com/itsm0000/al-muallim-bot/store"
)

// GradingController handles the HTTP side of the grading pipeline. It depends
// on the Orchestrator to run the actual pipeline. The store is optional; with
// one attached, successful gradings land in the grading log.
type GradingController struct {
	orchestrator services.Orchestrator
	store        *store.Store
}

func NewGradingController(orchestrator services.Orchestrator, st *store.Store) *GradingController {
	return &GradingController{orchestrator: orchestrator, store: st}
}

// Grade is the Gin handler for POST /api/v1/grade. It expects a multipart
// form with a "question" file, an "answer" file and an optional "subject"
// field, and returns the full grading outcome as JSON.
func (c *GradingController) Grade(ctx *gin.Context) {
	question, err := readFormImage(ctx, "question")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "يرجى إرفاق صورة السؤال"})
		return
	}
	answer, err := readFormImage(ctx, "answer")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "يرجى إرفاق صورة الإجابة"})
		return
	}
	subject := ctx.PostForm("subject")

	outcome, err := c.orchestrator.Run(ctx.Request.Context(), question, answer, subject)
	if err != nil {
		status, message := gradingErrorResponse(err)
		ctx.JSON(status, gin.H{"error": message, "reason": string(services.FailureReason(err))})
		return
	}

	c.logGrading(ctx, outcome)

	ctx.JSON(http.StatusOK, models.GradeResponse{
		Score:              outcome.Result.Score,
		MaxScore:           outcome.Result.MaxScore,
		Feedback:           outcome.Result.Feedback,
		Annotations:        outcome.Result.Annotations,
		DroppedAnnotations: outcome.DroppedAnnotations,
		AnnotatedImage:     base64.StdEncoding.EncodeToString(outcome.AnnotatedImage),
	})
}

// logGrading records the result for reporting when a store is attached and
// the request named a teacher. Failures here never affect the response.
func (c *GradingController) logGrading(ctx *gin.Context, outcome *models.GradingOutcome) {
	if c.store == nil {
		return
	}
	teacherID, err := strconv.ParseInt(ctx.PostForm("teacher_id"), 10, 64)
	if err != nil {
		return
	}
	entry := store.GradingLogEntry{
		TeacherID:   teacherID,
		StudentName: ctx.PostForm("student_name"),
		Score:       outcome.Result.Score,
		MaxScore:    outcome.Result.MaxScore,
	}
	if id, err := strconv.ParseInt(ctx.PostForm("student_id"), 10, 64); err == nil {
		entry.StudentID = &id
	}
	if err := c.store.InsertGradingLog(ctx.Request.Context(), entry); err != nil {
		log.Error().Err(err).Int64("teacher_id", teacherID).Msg("CONTROLLER: writing grading log failed")
	}
}

func readFormImage(ctx *gin.Context, field string) ([]byte, error) {
	header, err := ctx.FormFile(field)
	if err != nil {
		return nil, err
	}
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// gradingErrorResponse maps a pipeline failure to an HTTP status and an
// Arabic message the dashboard can show as-is.
func gradingErrorResponse(err error) (int, string) {
	reason := services.FailureReason(err)
	log.Error().Err(err).Str("reason", string(reason)).Msg("CONTROLLER: grading failed")

	switch reason {
	case services.ReasonTimeout:
		return http.StatusGatewayTimeout, "انتهت مهلة التصحيح، حاول مرة أخرى"
	case services.ReasonRefused:
		return http.StatusUnprocessableEntity, "رفض النموذج تصحيح هذه الصورة، تأكد من محتواها"
	case services.ReasonMalformedResponse:
		return http.StatusBadGateway, "تعذر فهم رد النموذج، حاول مرة أخرى"
	case services.ReasonBadImage:
		return http.StatusBadRequest, "تعذر قراءة الصورة المرسلة، أرسل صورة بصيغة JPEG أو PNG"
	case services.ReasonFailed:
		return http.StatusBadGateway, "تعذر إكمال التصحيح لهذا الطلب"
	default:
		return http.StatusBadGateway, "حدث خطأ مؤقت أثناء التصحيح، حاول مرة أخرى بعد قليل"
	}
}
