package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeLowStockScan is the task type for the low-stock notification scan.
	TaskTypeLowStockScan = "inventory:low_stock_scan"
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

// NewLowStockScanTask constructs the scan task. The payload is empty; the
// scan always covers every warehouse.
func NewLowStockScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeLowStockScan, nil)
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	Addr   string
	From   string
	Logger *slog.Logger
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")
	return smtp.SendMail(m.Addr, nil, m.From, []string{to}, []byte(msg))
}

// LogMailer logs instead of sending; used when no SMTP relay is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.Logger.Info("mail suppressed, no SMTP relay configured",
		slog.String("to", to),
		slog.String("subject", subject))
	return nil
}

// NewSendEmailHandler returns the handler for TaskTypeSendEmail tasks.
func NewSendEmailHandler(mailer Mailer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := mailer.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
			logger.Error("send email",
				slog.String("to", payload.To),
				slog.Any("error", err))
			return err
		}
		return nil
	}
}
