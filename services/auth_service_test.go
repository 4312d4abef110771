package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsm0000/al-muallim-bot/store"
)

type fakeAuthStore struct {
	codes    map[string]pendingCode
	teachers map[string]*store.Teacher
	nextID   int64
}

type pendingCode struct {
	hash string
	at   time.Time
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{codes: map[string]pendingCode{}, teachers: map[string]*store.Teacher{}}
}

func (f *fakeAuthStore) SavePendingCode(_ context.Context, phone, codeHash string, at time.Time) error {
	f.codes[phone] = pendingCode{hash: codeHash, at: at}
	return nil
}

func (f *fakeAuthStore) ConsumePendingCode(_ context.Context, phone string) (string, time.Time, error) {
	pc, ok := f.codes[phone]
	if !ok {
		return "", time.Time{}, store.ErrNotFound
	}
	delete(f.codes, phone)
	return pc.hash, pc.at, nil
}

func (f *fakeAuthStore) UpsertTeacher(_ context.Context, phone, firstName string, _ time.Time) (*store.Teacher, error) {
	if t, ok := f.teachers[phone]; ok {
		return t, nil
	}
	f.nextID++
	t := &store.Teacher{ID: f.nextID, Phone: phone, FirstName: firstName}
	f.teachers[phone] = t
	return t, nil
}

type capturingSender struct {
	phone, code string
}

func (c *capturingSender) SendCode(_ context.Context, phone, code string) error {
	c.phone, c.code = phone, code
	return nil
}

func TestSendCodeStoresHashNotCode(t *testing.T) {
	st := newFakeAuthStore()
	sender := &capturingSender{}
	auth := NewAuthService(st, sender, 5*time.Minute)

	require.NoError(t, auth.SendCode(context.Background(), "966500000001"))

	assert.Equal(t, "+966500000001", sender.phone, "missing plus prefix is added")
	assert.Len(t, sender.code, 6)

	stored := st.codes["+966500000001"]
	assert.NotEqual(t, sender.code, stored.hash, "codes are hashed at rest")
	assert.Equal(t, hashCode(sender.code), stored.hash)
}

func TestVerifyHappyPath(t *testing.T) {
	st := newFakeAuthStore()
	sender := &capturingSender{}
	auth := NewAuthService(st, sender, 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, auth.SendCode(ctx, "+966500000001"))

	teacher, token, err := auth.Verify(ctx, "+966500000001", sender.code, "سارة")
	require.NoError(t, err)

	assert.Equal(t, "+966500000001", teacher.Phone)
	assert.Equal(t, "سارة", teacher.FirstName)
	assert.NotEmpty(t, token)
}

func TestVerifyWrongCode(t *testing.T) {
	st := newFakeAuthStore()
	sender := &capturingSender{}
	auth := NewAuthService(st, sender, 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, auth.SendCode(ctx, "+966500000001"))

	wrong := "000000"
	if sender.code == wrong {
		wrong = "000001"
	}
	_, _, err := auth.Verify(ctx, "+966500000001", wrong, "")
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerifyCodeIsSingleUse(t *testing.T) {
	st := newFakeAuthStore()
	sender := &capturingSender{}
	auth := NewAuthService(st, sender, 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, auth.SendCode(ctx, "+966500000001"))

	_, _, err := auth.Verify(ctx, "+966500000001", sender.code, "")
	require.NoError(t, err)

	_, _, err = auth.Verify(ctx, "+966500000001", sender.code, "")
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerifyExpiredCode(t *testing.T) {
	st := newFakeAuthStore()
	sender := &capturingSender{}
	svc := NewAuthService(st, sender, 5*time.Minute).(*authServiceImpl)
	ctx := context.Background()

	now := time.Now()
	svc.now = func() time.Time { return now }
	require.NoError(t, svc.SendCode(ctx, "+966500000001"))

	svc.now = func() time.Time { return now.Add(6 * time.Minute) }
	_, _, err := svc.Verify(ctx, "+966500000001", sender.code, "")
	require.ErrorIs(t, err, ErrCodeExpired)
}

func TestVerifyUnknownPhone(t *testing.T) {
	auth := NewAuthService(newFakeAuthStore(), &capturingSender{}, 5*time.Minute)

	_, _, err := auth.Verify(context.Background(), "+966599999999", "123456", "")
	require.ErrorIs(t, err, ErrInvalidCode)
}
