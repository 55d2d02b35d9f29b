package notification

import (
	"fmt"
	"html"
	"log/slog"
	"net/smtp"
	"time"
)

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	// CodeTTL is quoted in the message body.
	CodeTTL time.Duration
}

type EmailService struct {
	config EmailConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config, send: smtp.SendMail}
}

// SendOTPEmail mails a verification code to a new account.
func (s *EmailService) SendOTPEmail(to, name, code string) error {
	subject := "Your DailyHome verification code"
	body := fmt.Sprintf(`<html><body>
		<h2>Welcome to DailyHome, %s</h2>
		<p>Your verification code is:</p>
		<p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p>
		<p>This code will expire in %s.</p>
		<p>If you did not create an account, please ignore this email.</p>
	</body></html>`, html.EscapeString(name), html.EscapeString(code), formatTTL(s.config.CodeTTL))
	return s.sendEmail(to, subject, body)
}

func (s *EmailService) sendEmail(to, subject, body string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	if err := s.send(addr, auth, s.config.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func formatTTL(ttl time.Duration) string {
	if ttl <= 0 {
		return "a few minutes"
	}
	if ttl%time.Minute == 0 {
		n := int(ttl / time.Minute)
		if n == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", n)
	}
	return ttl.String()
}

// LogSender writes verification codes to the log instead of mailing them.
// It stands in for EmailService when SMTP is not configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendOTPEmail(to, name, code string) error {
	s.logger.Warn("smtp not configured, verification code logged", "to", to, "name", name, "otp", code)
	return nil
}
