package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/itsm0000/al-muallim-bot/models"
	"github.com/itsm0000/al-muallim-bot/services"
)

// AuthController handles the phone login endpoints for the dashboard.
type AuthController struct {
	auth services.AuthService
}

func NewAuthController(auth services.AuthService) *AuthController {
	return &AuthController{auth: auth}
}

// SendCode is the Gin handler for POST /api/v1/auth/send-code.
func (c *AuthController) SendCode(ctx *gin.Context) {
	var req models.SendCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := c.auth.SendCode(ctx.Request.Context(), req.Phone); err != nil {
		ctx.JSON(http.StatusInternalServerError, models.SendCodeResponse{
			Success: false,
			Message: "تعذر إرسال رمز التحقق، حاول مرة أخرى",
		})
		return
	}

	ctx.JSON(http.StatusOK, models.SendCodeResponse{
		Success: true,
		Message: "تم إرسال رمز التحقق",
	})
}

// VerifyCode is the Gin handler for POST /api/v1/auth/verify-code.
func (c *AuthController) VerifyCode(ctx *gin.Context) {
	var req models.VerifyCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	teacher, token, err := c.auth.Verify(ctx.Request.Context(), req.Phone, req.Code, req.FirstName)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCode):
			ctx.JSON(http.StatusUnauthorized, models.VerifyCodeResponse{
				Success: false, Message: "رمز التحقق غير صحيح",
			})
		case errors.Is(err, services.ErrCodeExpired):
			ctx.JSON(http.StatusUnauthorized, models.VerifyCodeResponse{
				Success: false, Message: "انتهت صلاحية رمز التحقق، اطلب رمزاً جديداً",
			})
		default:
			ctx.JSON(http.StatusInternalServerError, models.VerifyCodeResponse{
				Success: false, Message: "حدث خطأ أثناء تسجيل الدخول",
			})
		}
		return
	}

	ctx.JSON(http.StatusOK, models.VerifyCodeResponse{
		Success:   true,
		Message:   "تم تسجيل الدخول بنجاح",
		TeacherID: teacher.ID,
		Token:     token,
		FirstName: teacher.FirstName,
	})
}
