// Package notifications sends outbound email: tracking confirmations to
// customers and failure alerts to the operator mailbox.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gomail "gopkg.in/gomail.v2"

	"garpconnect/internal/config"
	"garpconnect/internal/logging"
	"garpconnect/internal/services"
	"garpconnect/internal/shipment"
)

// TrackingEmail describes a customer-facing shipment confirmation.
type TrackingEmail struct {
	To             string
	OrderNo        string
	TrackingNumber string
	Carrier        shipment.Carrier
	CustomMessage  string
}

// FailureAlert describes an operator alert for a file that landed in
// the error directory.
type FailureAlert struct {
	FileName  string
	Reason    string
	ErrorKind string
	Timestamp time.Time
}

// Service defines the email surface exposed to the pipeline.
type Service interface {
	SendTrackingEmail(ctx context.Context, email TrackingEmail) error
	SendFailureAlert(ctx context.Context, alert FailureAlert) error
	TestEmail(ctx context.Context, to string) error
}

// NewService builds an SMTP-backed service when email is enabled, and a
// noop implementation otherwise.
func NewService(cfg config.SMTP, logger *slog.Logger) Service {
	if !cfg.Enabled || strings.TrimSpace(cfg.Host) == "" {
		return noopService{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	svc := &smtpService{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "notifications"),
	}
	svc.send = newDialer(cfg).DialAndSend
	return svc
}

// newDialer configures transport security from use_starttls: true keeps
// gomail's STARTTLS upgrade after the plain handshake, false dials an
// implicit TLS (SMTPS) connection.
func newDialer(cfg config.SMTP) *gomail.Dialer {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.SSL = !cfg.StartTLS
	return dialer
}

// NewWithSender builds an SMTP service with a custom delivery function.
// Used by tests to capture outgoing messages.
func NewWithSender(cfg config.SMTP, logger *slog.Logger, send func(...*gomail.Message) error) Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &smtpService{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "notifications"),
		send:   send,
	}
}

type smtpService struct {
	cfg    config.SMTP
	logger *slog.Logger
	send   func(...*gomail.Message) error
}

func (s *smtpService) SendTrackingEmail(ctx context.Context, email TrackingEmail) error {
	if strings.TrimSpace(email.To) == "" {
		s.logger.Warn("no recipient address, skipping tracking email",
			logging.String(logging.FieldOrderNo, email.OrderNo))
		return nil
	}
	if strings.TrimSpace(email.TrackingNumber) == "" {
		s.logger.Warn("no tracking number, skipping tracking email",
			logging.String(logging.FieldOrderNo, email.OrderNo))
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.cfg.FromAddress, s.cfg.FromName)
	msg.SetHeader("To", email.To)
	msg.SetHeader("Subject", fmt.Sprintf("Din order %s har skickats!", email.OrderNo))
	msg.SetBody("text/html", trackingBody(s.cfg.FromName, email))

	if err := s.deliver(ctx, msg); err != nil {
		return services.Wrap(services.ErrTransient, "notifications", "send tracking email",
			fmt.Sprintf("deliver to %s", email.To), err)
	}

	s.logger.Info("tracking email sent",
		logging.String(logging.FieldOrderNo, email.OrderNo),
		logging.String("to", email.To))
	return nil
}

func (s *smtpService) SendFailureAlert(ctx context.Context, alert FailureAlert) error {
	to := strings.TrimSpace(s.cfg.OperatorEmail)
	if to == "" {
		s.logger.Debug("no operator email configured, skipping failure alert",
			logging.String(logging.FieldFile, alert.FileName))
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.cfg.FromAddress, s.cfg.FromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf("Fraktfil misslyckades: %s", alert.FileName))
	msg.SetBody("text/plain", failureBody(alert))

	if err := s.deliver(ctx, msg); err != nil {
		return services.Wrap(services.ErrTransient, "notifications", "send failure alert",
			fmt.Sprintf("deliver to %s", to), err)
	}

	s.logger.Info("failure alert sent",
		logging.String(logging.FieldFile, alert.FileName),
		logging.String("to", to))
	return nil
}

func (s *smtpService) TestEmail(ctx context.Context, to string) error {
	if strings.TrimSpace(to) == "" {
		to = s.cfg.OperatorEmail
	}
	if strings.TrimSpace(to) == "" {
		return services.Wrap(services.ErrConfiguration, "notifications", "test email", "no recipient configured", nil)
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.cfg.FromAddress, s.cfg.FromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Testmail")
	msg.SetBody("text/plain", "SMTP-konfigurationen fungerar.\n")

	if err := s.deliver(ctx, msg); err != nil {
		return services.Wrap(services.ErrTransient, "notifications", "test email",
			fmt.Sprintf("deliver to %s", to), err)
	}
	return nil
}

// deliver runs the blocking SMTP dial in a goroutine so context
// cancellation is honored.
func (s *smtpService) deliver(ctx context.Context, msg *gomail.Message) error {
	done := make(chan error, 1)
	go func() {
		done <- s.send(msg)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func trackingBody(fromName string, email TrackingEmail) string {
	carrierName := email.Carrier.Name()
	trackingURL := email.Carrier.TrackingURL(email.TrackingNumber)

	custom := ""
	if email.CustomMessage != "" {
		custom = fmt.Sprintf("<p>%s</p>\n", email.CustomMessage)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <style>
    body { font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; }
    .header { background: #2c3e50; color: white; padding: 20px; text-align: center; }
    .content { padding: 20px; }
    .tracking-box { background: #f8f9fa; border: 1px solid #dee2e6; border-radius: 8px; padding: 15px; margin: 20px 0; text-align: center; }
    .tracking-number { font-size: 18px; font-weight: bold; color: #2c3e50; }
    .btn { display: inline-block; background: #e74c3c; color: white; text-decoration: none; padding: 12px 24px; border-radius: 5px; margin: 10px 0; }
    .footer { color: #999; font-size: 12px; text-align: center; padding: 20px; }
  </style>
</head>
<body>
  <div class="header">
    <h1>%s</h1>
  </div>
  <div class="content">
    <h2>Din order %s har skickats!</h2>
    <p>Vi har skickat din order med %s.</p>

    <div class="tracking-box">
      <p>Spårningsnummer:</p>
      <p class="tracking-number">%s</p>
      <a href="%s" class="btn">Spåra din leverans</a>
    </div>

    %s
    <p>Vänliga hälsningar,<br>%s</p>
  </div>
  <div class="footer">
    <p>Detta mail skickades automatiskt. Svara inte på detta mail.</p>
  </div>
</body>
</html>`, fromName, email.OrderNo, carrierName, email.TrackingNumber, trackingURL, custom, fromName)
}

func failureBody(alert FailureAlert) string {
	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return fmt.Sprintf("Tid: %s\nFil: %s\nFeltyp: %s\nFel: %s\n\nFilen ligger i Error-katalogen tillsammans med en .error.txt-fil.\n",
		ts.Format("2006-01-02 15:04:05"), alert.FileName, alert.ErrorKind, alert.Reason)
}

type noopService struct{}

func (noopService) SendTrackingEmail(context.Context, TrackingEmail) error { return nil }
func (noopService) SendFailureAlert(context.Context, FailureAlert) error  { return nil }
func (noopService) TestEmail(context.Context, string) error {
	return services.Wrap(services.ErrConfiguration, "notifications", "test email", "smtp is disabled", nil)
}
