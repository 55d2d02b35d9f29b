package notification

import (
	"bytes"
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"
	"time"
)

type sentMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func TestEmailService_SendOTPEmail(t *testing.T) {
	var got sentMail
	svc := NewEmailService(EmailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		User:     "mailer",
		Password: "pw",
		From:     "noreply@example.com",
		FromName: "DailyHome",
		CodeTTL:  3 * time.Minute,
	})
	svc.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		got = sentMail{addr: addr, auth: a, from: from, to: to, msg: string(msg)}
		return nil
	}

	if err := svc.SendOTPEmail("alice@example.com", "<Alice>", "1234"); err != nil {
		t.Fatalf("SendOTPEmail() error = %v", err)
	}

	if got.addr != "smtp.example.com:587" {
		t.Errorf("addr = %q, want %q", got.addr, "smtp.example.com:587")
	}
	if got.auth == nil {
		t.Error("auth = nil, want plain auth when a user is configured")
	}
	if got.from != "noreply@example.com" || len(got.to) != 1 || got.to[0] != "alice@example.com" {
		t.Errorf("envelope = %q -> %v", got.from, got.to)
	}

	for _, want := range []string{
		"From: DailyHome <noreply@example.com>\r\n",
		"To: alice@example.com\r\n",
		"<strong>1234</strong>",
		"&lt;Alice&gt;",
		"3 minutes",
	} {
		if !strings.Contains(got.msg, want) {
			t.Errorf("message does not contain %q", want)
		}
	}
}

func TestEmailService_SendFailure(t *testing.T) {
	svc := NewEmailService(EmailConfig{Host: "smtp.example.com", Port: 25, From: "noreply@example.com"})
	svc.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	if err := svc.SendOTPEmail("bob@example.com", "Bob", "0000"); err == nil {
		t.Error("SendOTPEmail() error = nil, want the transport error")
	}
}

func TestFormatTTL(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want string
	}{
		{ttl: 0, want: "a few minutes"},
		{ttl: time.Minute, want: "1 minute"},
		{ttl: 10 * time.Minute, want: "10 minutes"},
		{ttl: 90 * time.Second, want: "1m30s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatTTL(tt.ttl); got != tt.want {
				t.Errorf("formatTTL(%v) = %q, want %q", tt.ttl, got, tt.want)
			}
		})
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	sender := NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)))

	if err := sender.SendOTPEmail("carol@example.com", "Carol", "4321"); err != nil {
		t.Fatalf("SendOTPEmail() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"otp":"4321"`) {
		t.Errorf("log = %s, want the code", buf.String())
	}
}
