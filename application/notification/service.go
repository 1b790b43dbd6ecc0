package notification

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"vid2audio/domain/notification"
)

// Bell is written before the completion notice so terminals can alert the user
const Bell = "\a"

// Service announces finished runs on the console and, when recipients are configured, by email
type Service struct {
	out        io.Writer
	sender     notification.EmailSender
	recipients []notification.Recipient
	senderName string
	logger     *slog.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithEmail sends a run summary to recipients through sender
func WithEmail(sender notification.EmailSender, recipients []notification.Recipient, senderName string) ServiceOption {
	return func(s *Service) {
		s.sender = sender
		s.recipients = recipients
		s.senderName = senderName
	}
}

// WithLogger sets the logger that receives delivery warnings
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a new notification service
func NewService(out io.Writer, opts ...ServiceOption) *Service {
	if out == nil {
		out = io.Discard
	}
	s := &Service{
		out:    out,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify announces a finished run. The console notice is shown when at least one file
// converted. Email delivery failures are logged and returned but never affect the run.
func (s *Service) Notify(ctx context.Context, report notification.RunReport) error {
	if report.Succeeded > 0 {
		fmt.Fprintf(s.out, "%s%s\n", Bell, report.SummaryLine())
	}

	if s.sender == nil || len(s.recipients) == 0 || report.Total() == 0 {
		return nil
	}

	req := &notification.EmailRequest{
		To:         s.recipients,
		Report:     report,
		SenderName: s.senderName,
	}
	if err := s.sender.Send(ctx, req); err != nil {
		s.logger.Warn("run summary email not sent", "run_id", report.RunID, "error", err)
		return err
	}

	s.logger.Debug("run summary email sent", "run_id", report.RunID, "recipients", len(s.recipients))
	return nil
}
