package models

// SendCodeRequest starts the phone login flow.
type SendCodeRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// VerifyCodeRequest completes the phone login flow.
type VerifyCodeRequest struct {
	Phone     string `json:"phone" binding:"required"`
	Code      string `json:"code" binding:"required"`
	FirstName string `json:"first_name,omitempty"`
}
