package store

import "time"

// Teacher is an account linked to a phone number and, once the bot has seen
// them, a Telegram id.
type Teacher struct {
	ID         int64
	Phone      string
	TelegramID *int64
	FirstName  string
	IsActive   bool
	CreatedAt  time.Time
	LastLogin  *time.Time
}

// Quiz is one uploaded question-sheet image. At most one quiz is active per
// teacher at a time.
type Quiz struct {
	ID        int64
	TeacherID int64
	ImagePath string
	IsActive  bool
	CreatedAt time.Time
}

// GradingLogEntry records one completed grading for reporting. StudentID is
// nil when the submission did not name a student.
type GradingLogEntry struct {
	TeacherID   int64
	StudentID   *int64
	StudentName string
	Score       float64
	MaxScore    float64
}
