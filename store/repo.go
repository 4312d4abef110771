package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ---------------------------------------------------------------- teachers

// UpsertTeacher creates the teacher on first login and refreshes name and
// last_login on subsequent ones.
func (s *Store) UpsertTeacher(ctx context.Context, phone, firstName string, loginAt time.Time) (*Teacher, error) {
	const query = `
	INSERT INTO teachers (phone, first_name, last_login)
	VALUES ($1, NULLIF($2, ''), $3)
	ON CONFLICT (phone) DO UPDATE
		SET first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), teachers.first_name),
		    last_login = EXCLUDED.last_login
	RETURNING id, phone, telegram_id, COALESCE(first_name, ''), is_active, created_at, last_login;`

	var t Teacher
	row := s.pool.QueryRow(ctx, query, phone, firstName, loginAt)
	if err := row.Scan(&t.ID, &t.Phone, &t.TelegramID, &t.FirstName, &t.IsActive, &t.CreatedAt, &t.LastLogin); err != nil {
		return nil, fmt.Errorf("upsert teacher: %w", err)
	}
	return &t, nil
}

func (s *Store) TeacherByID(ctx context.Context, id int64) (*Teacher, error) {
	const query = `
	SELECT id, phone, telegram_id, COALESCE(first_name, ''), is_active, created_at, last_login
	FROM teachers WHERE id = $1;`

	var t Teacher
	row := s.pool.QueryRow(ctx, query, id)
	if err := row.Scan(&t.ID, &t.Phone, &t.TelegramID, &t.FirstName, &t.IsActive, &t.CreatedAt, &t.LastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	return &t, nil
}

// LinkTelegram associates a Telegram chat with an existing teacher account.
func (s *Store) LinkTelegram(ctx context.Context, teacherID, telegramID int64) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE teachers SET telegram_id = $2 WHERE id = $1;`, teacherID, telegramID); err != nil {
		return fmt.Errorf("link telegram: %w", err)
	}
	return nil
}

// ------------------------------------------------------------ pending auth

// SavePendingCode stores (or replaces) the hashed login code for a phone.
func (s *Store) SavePendingCode(ctx context.Context, phone, codeHash string, at time.Time) error {
	const query = `
	INSERT INTO pending_auth (phone, code_hash, created_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (phone) DO UPDATE SET code_hash = EXCLUDED.code_hash, created_at = EXCLUDED.created_at;`

	if _, err := s.pool.Exec(ctx, query, phone, codeHash, at); err != nil {
		return fmt.Errorf("save pending code: %w", err)
	}
	return nil
}

// ConsumePendingCode returns and deletes the pending code for a phone, making
// codes single-use.
func (s *Store) ConsumePendingCode(ctx context.Context, phone string) (string, time.Time, error) {
	const query = `
	DELETE FROM pending_auth WHERE phone = $1 RETURNING code_hash, created_at;`

	var (
		hash string
		at   time.Time
	)
	if err := s.pool.QueryRow(ctx, query, phone).Scan(&hash, &at); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, ErrNotFound
		}
		return "", time.Time{}, fmt.Errorf("consume pending code: %w", err)
	}
	return hash, at, nil
}

// ---------------------------------------------------------------- quizzes

// SaveQuiz records a new uploaded quiz and deactivates the teacher's previous
// active one in the same transaction.
func (s *Store) SaveQuiz(ctx context.Context, teacherID int64, imagePath string) (*Quiz, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("save quiz: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE quizzes SET is_active = FALSE WHERE teacher_id = $1 AND is_active;`, teacherID); err != nil {
		return nil, fmt.Errorf("deactivate old quizzes: %w", err)
	}

	var q Quiz
	row := tx.QueryRow(ctx, `
	INSERT INTO quizzes (teacher_id, image_path)
	VALUES ($1, $2)
	RETURNING id, teacher_id, image_path, is_active, created_at;`, teacherID, imagePath)
	if err := row.Scan(&q.ID, &q.TeacherID, &q.ImagePath, &q.IsActive, &q.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert quiz: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("save quiz: %w", err)
	}
	return &q, nil
}

// ActiveQuiz returns the teacher's current quiz, or ErrNotFound.
func (s *Store) ActiveQuiz(ctx context.Context, teacherID int64) (*Quiz, error) {
	const query = `
	SELECT id, teacher_id, image_path, is_active, created_at
	FROM quizzes WHERE teacher_id = $1 AND is_active
	ORDER BY created_at DESC LIMIT 1;`

	var q Quiz
	row := s.pool.QueryRow(ctx, query, teacherID)
	if err := row.Scan(&q.ID, &q.TeacherID, &q.ImagePath, &q.IsActive, &q.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get active quiz: %w", err)
	}
	return &q, nil
}

// ------------------------------------------------------------- grading log

func (s *Store) InsertGradingLog(ctx context.Context, e GradingLogEntry) error {
	const query = `
	INSERT INTO grading_log (teacher_id, student_id, student_name, score, max_score)
	VALUES ($1, $2, NULLIF($3, ''), $4, $5);`

	if _, err := s.pool.Exec(ctx, query, e.TeacherID, e.StudentID, e.StudentName, e.Score, e.MaxScore); err != nil {
		return fmt.Errorf("insert grading log: %w", err)
	}
	return nil
}
