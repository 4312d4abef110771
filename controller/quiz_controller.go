package controller

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/itsm0000/al-muallim-bot/models"
	"github.com/itsm0000/al-muallim-bot/store"
)

// QuizStore is the slice of the store the quiz endpoints need.
type QuizStore interface {
	TeacherByID(ctx context.Context, id int64) (*store.Teacher, error)
	SaveQuiz(ctx context.Context, teacherID int64, imagePath string) (*store.Quiz, error)
	ActiveQuiz(ctx context.Context, teacherID int64) (*store.Quiz, error)
}

// QuizController lets a teacher upload the current quiz sheet and fetch the
// one that is active. Uploaded images land on disk under a per-teacher
// directory; the database keeps the path.
type QuizController struct {
	store      QuizStore
	quizzesDir string
}

func NewQuizController(st QuizStore, quizzesDir string) *QuizController {
	return &QuizController{store: st, quizzesDir: quizzesDir}
}

// Upload is the Gin handler for POST /api/v1/teachers/:id/quiz. The uploaded
// sheet becomes the teacher's active quiz; any previous one is deactivated.
func (c *QuizController) Upload(ctx *gin.Context) {
	teacherID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid teacher id"})
		return
	}

	// Look the teacher up before anything lands on disk.
	if _, err := c.store.TeacherByID(ctx.Request.Context(), teacherID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "لا يوجد معلم بهذا المعرف"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store quiz image"})
		return
	}

	header, err := ctx.FormFile("image")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "يرجى إرفاق صورة الاختبار"})
		return
	}

	dir := filepath.Join(c.quizzesDir, strconv.FormatInt(teacherID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store quiz image"})
		return
	}
	dest := filepath.Join(dir, uuid.NewString()+filepath.Ext(header.Filename))
	if err := ctx.SaveUploadedFile(header, dest); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store quiz image"})
		return
	}

	quiz, err := c.store.SaveQuiz(ctx.Request.Context(), teacherID, dest)
	if err != nil {
		log.Error().Err(err).Int64("teacher_id", teacherID).Msg("CONTROLLER: saving quiz failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store quiz image"})
		return
	}

	ctx.JSON(http.StatusCreated, quizResponse(quiz))
}

// Current is the Gin handler for GET /api/v1/teachers/:id/quiz.
func (c *QuizController) Current(ctx *gin.Context) {
	teacherID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid teacher id"})
		return
	}

	if _, err := c.store.TeacherByID(ctx.Request.Context(), teacherID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "لا يوجد معلم بهذا المعرف"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load quiz"})
		return
	}

	quiz, err := c.store.ActiveQuiz(ctx.Request.Context(), teacherID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "لا يوجد اختبار نشط لهذا المعلم"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load quiz"})
		return
	}

	ctx.JSON(http.StatusOK, quizResponse(quiz))
}

func quizResponse(q *store.Quiz) models.QuizResponse {
	return models.QuizResponse{
		ID:        q.ID,
		TeacherID: q.TeacherID,
		ImagePath: q.ImagePath,
		IsActive:  q.IsActive,
		CreatedAt: q.CreatedAt,
	}
}
