package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/itsm0000/al-muallim-bot/store"
)

// CodeSender delivers a one-time login code to a teacher's phone. The bot is
// the usual deliverer; tests and local runs use a logging stub.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// AuthStore is the slice of the store the auth flow needs.
type AuthStore interface {
	SavePendingCode(ctx context.Context, phone, codeHash string, at time.Time) error
	ConsumePendingCode(ctx context.Context, phone string) (string, time.Time, error)
	UpsertTeacher(ctx context.Context, phone, firstName string, loginAt time.Time) (*store.Teacher, error)
}

// AuthService implements the phone-number/one-time-code login bridge for the
// dashboard. Codes are hashed at rest, single-use and short-lived.
type AuthService interface {
	SendCode(ctx context.Context, phone string) error
	Verify(ctx context.Context, phone, code, firstName string) (*store.Teacher, string, error)
}

type authServiceImpl struct {
	store  AuthStore
	sender CodeSender
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthService(st AuthStore, sender CodeSender, ttl time.Duration) AuthService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &authServiceImpl{store: st, sender: sender, ttl: ttl, now: time.Now}
}

func (a *authServiceImpl) SendCode(ctx context.Context, phone string) error {
	phone = normalizePhone(phone)
	if phone == "+" {
		return errors.New("phone number is empty")
	}

	code, err := randomCode()
	if err != nil {
		return fmt.Errorf("generating code: %w", err)
	}
	if err := a.store.SavePendingCode(ctx, phone, hashCode(code), a.now()); err != nil {
		return err
	}
	if err := a.sender.SendCode(ctx, phone, code); err != nil {
		return fmt.Errorf("delivering code: %w", err)
	}

	log.Info().Str("phone", phone).Msg("SERVICE: login code issued")
	return nil
}

// Verify checks the code, upserts the teacher account and returns it together
// with a fresh session token.
func (a *authServiceImpl) Verify(ctx context.Context, phone, code, firstName string) (*store.Teacher, string, error) {
	phone = normalizePhone(phone)

	hash, issuedAt, err := a.store.ConsumePendingCode(ctx, phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrInvalidCode
		}
		return nil, "", err
	}
	if a.now().Sub(issuedAt) > a.ttl {
		return nil, "", ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(hash), []byte(hashCode(strings.TrimSpace(code)))) != 1 {
		return nil, "", ErrInvalidCode
	}

	teacher, err := a.store.UpsertTeacher(ctx, phone, firstName, a.now())
	if err != nil {
		return nil, "", err
	}

	log.Info().Int64("teacher_id", teacher.ID).Msg("SERVICE: teacher logged in")
	return teacher, uuid.NewString(), nil
}

func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return phone
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// LoggedCodeSender writes codes to the log instead of delivering them.
// Useful for local runs without the bot wired up.
type LoggedCodeSender struct{}

func (LoggedCodeSender) SendCode(_ context.Context, phone, code string) error {
	log.Info().Str("phone", phone).Str("code", code).Msg("SERVICE: login code (log delivery)")
	return nil
}
