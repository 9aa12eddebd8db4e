package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("email is not configured")

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	BaseURL  string
	Timeout  time.Duration
}

// Mailer sends transactional mail for the signup flow.
type Mailer interface {
	SendVerification(ctx context.Context, to, token string) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type smtpMailer struct {
	cfg  Config
	send sendFunc
}

func NewSMTPMailer(cfg Config) Mailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &smtpMailer{cfg: cfg, send: smtp.SendMail}
}

// VerificationLink builds the link embedded in the verification mail.
func VerificationLink(baseURL, token string) string {
	return fmt.Sprintf("%s/verify?token=%s", strings.TrimRight(baseURL, "/"), token)
}

func (m *smtpMailer) SendVerification(ctx context.Context, to, token string) error {
	if m.cfg.Host == "" || m.cfg.From == "" {
		return ErrNotConfigured
	}

	link := VerificationLink(m.cfg.BaseURL, token)
	body := fmt.Sprintf("Confirm your email to join the bounty campaign:\n\n%s\n\nThis link expires in 24 hours. If you did not sign up, you can ignore this email.", link)

	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: Verify your email",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprint(m.cfg.Port))

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.send(addr, auth, m.cfg.From, []string{to}, []byte(msg))
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send verification mail: %w", ctx.Err())
	}
}
