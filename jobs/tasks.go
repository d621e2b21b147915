package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/campuslink/campuslink/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeResetCleanup purges expired password-reset codes.
	TaskTypeResetCleanup = "auth:reset-cleanup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewResetCleanupTask constructs the cleanup task registered with the
// scheduler.
func NewResetCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeResetCleanup, nil)
}

// Mailer delivers a single email message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ResetTokenPurger removes expired password-reset codes.
type ResetTokenPurger interface {
	PurgeExpiredResetTokens(ctx context.Context) (int64, error)
}

// Handlers bundles the task handlers with their dependencies.
type Handlers struct {
	Mailer  Mailer
	Purger  ResetTokenPurger
	Metrics *jobmetrics.Metrics
	Logger  *slog.Logger
}

// HandleSendEmail processes TaskTypeSendEmail tasks.
func (h *Handlers) HandleSendEmail(ctx context.Context, t *asynq.Task) error {
	tracker := h.Metrics.Track(TaskTypeSendEmail)
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	err := h.Mailer.Send(ctx, payload.To, payload.Subject, payload.Body)
	if err != nil {
		h.Logger.Error("send email", slog.String("to", payload.To), slog.Any("error", err))
	}
	return tracker.End(err)
}

// HandleResetCleanup processes TaskTypeResetCleanup tasks.
func (h *Handlers) HandleResetCleanup(ctx context.Context, _ *asynq.Task) error {
	tracker := h.Metrics.Track(TaskTypeResetCleanup)
	removed, err := h.Purger.PurgeExpiredResetTokens(ctx)
	if err == nil && removed > 0 {
		h.Logger.Info("purged reset codes", slog.Int64("removed", removed))
	}
	return tracker.End(err)
}
