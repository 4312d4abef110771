package models

import "time"

// SendCodeResponse reports whether the verification code was issued.
type SendCodeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// VerifyCodeResponse carries the session token on successful login.
type VerifyCodeResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	TeacherID int64  `json:"teacher_id,omitempty"`
	Token     string `json:"token,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// GradeResponse is the dashboard's view of a GradingOutcome. The annotated
// image is base64-encoded so the whole outcome travels as one JSON document.
type GradeResponse struct {
	Score              float64      `json:"score"`
	MaxScore           float64      `json:"max_score"`
	Feedback           string       `json:"feedback"`
	Annotations        []Annotation `json:"annotations"`
	DroppedAnnotations int          `json:"dropped_annotations"`
	AnnotatedImage     string       `json:"annotated_image"`
}

// QuizResponse describes one stored quiz image.
type QuizResponse struct {
	ID        int64     `json:"id"`
	TeacherID int64     `json:"teacher_id"`
	ImagePath string    `json:"image_path"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
