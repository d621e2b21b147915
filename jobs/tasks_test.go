package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	to      string
	subject string
	body    string
	err     error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	f.to = to
	f.subject = subject
	f.body = body
	return f.err
}

type fakePurger struct {
	removed int64
	err     error
}

func (f *fakePurger) PurgeExpiredResetTokens(context.Context) (int64, error) {
	return f.removed, f.err
}

func testHandlers(mailer Mailer, purger ResetTokenPurger) *Handlers {
	return &Handlers{
		Mailer: mailer,
		Purger: purger,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestHandleSendEmailDeliversPayload(t *testing.T) {
	mailer := &fakeMailer{}
	h := testHandlers(mailer, nil)

	task, err := NewSendEmailTask(SendEmailPayload{
		To:      "ana@uni.example",
		Subject: "Código de redefinição de senha",
		Body:    "123456",
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleSendEmail(context.Background(), task))
	require.Equal(t, "ana@uni.example", mailer.to)
	require.Equal(t, "Código de redefinição de senha", mailer.subject)
	require.Equal(t, "123456", mailer.body)
}

func TestHandleSendEmailSkipsRetryOnBadPayload(t *testing.T) {
	h := testHandlers(&fakeMailer{}, nil)

	task := asynq.NewTask(TaskTypeSendEmail, []byte("not-json"))
	err := h.HandleSendEmail(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleResetCleanup(t *testing.T) {
	h := testHandlers(nil, &fakePurger{removed: 3})
	require.NoError(t, h.HandleResetCleanup(context.Background(), NewResetCleanupTask()))

	boom := errors.New("db down")
	h = testHandlers(nil, &fakePurger{err: boom})
	require.ErrorIs(t, h.HandleResetCleanup(context.Background(), NewResetCleanupTask()), boom)
}
