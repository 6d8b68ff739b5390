// Package email sends account mail and manages the short-lived codes for
// verification and password resets.
package email

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"net/smtp"
	"strconv"
	"time"

	"github.com/eludris/eludris/internal/logger"
	"github.com/eludris/eludris/pkg/cache"
	"github.com/eludris/eludris/pkg/config"
	"github.com/eludris/eludris/pkg/models"
)

const (
	verificationTTL = 7 * 24 * time.Hour
	resetTTL        = 24 * time.Hour
)

// Mailer delivers a single message. The SMTP transport is behind this
// interface so tests can capture outgoing mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends through a configured relay.
type SMTPMailer struct {
	cfg config.EmailConfig
}

// NewSMTPMailer builds a mailer from the instance email configuration.
func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers one plain-text message through the relay.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	port := m.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Relay, port)

	var auth smtp.Auth
	if m.cfg.Credentials != nil {
		auth = smtp.PlainAuth("", m.cfg.Credentials.Username, m.cfg.Credentials.Password, m.cfg.Relay)
	}

	msg := fmt.Sprintf(
		"From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		m.cfg.Name, m.cfg.Address, to, subject, body)

	if err := smtp.SendMail(addr, auth, m.cfg.Address, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to relay %s: %w", addr, err)
	}
	return nil
}

// Service runs the verification and password reset flows.
type Service struct {
	mailer   Mailer
	cache    *cache.Cache
	subjects map[string]string
	instance string
}

// NewService wires a mail service. A nil mailer disables the flows; the
// callers answer MISDIRECTED in that case.
func NewService(mailer Mailer, c *cache.Cache, subjects map[string]string, instance string) *Service {
	return &Service{mailer: mailer, cache: c, subjects: subjects, instance: instance}
}

// Enabled reports whether the instance can send mail.
func (s *Service) Enabled() bool { return s != nil && s.mailer != nil }

func (s *Service) subject(key, fallback string) string {
	if v, ok := s.subjects[key]; ok && v != "" {
		return v
	}
	return fallback
}

// code returns a random six digit string.
func code() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func verificationKey(userID uint64) string {
	return "verification:" + strconv.FormatUint(userID, 10)
}

func resetKey(email string) string {
	return "password-reset:" + email
}

// SendVerification issues a verification code to a freshly registered or
// re-emailed account.
func (s *Service) SendVerification(ctx context.Context, userID uint64, to string) error {
	c, err := code()
	if err != nil {
		return models.ErrServer("Failed to generate verification code")
	}
	if err := s.cache.SetString(ctx, verificationKey(userID), c, verificationTTL); err != nil {
		return models.ErrServer("Failed to store verification code")
	}
	body := fmt.Sprintf(
		"Welcome to %s!\n\nYour verification code is %s.\n\nIt expires in 7 days.\n", s.instance, c)
	if err := s.mailer.Send(ctx, to, s.subject("verify", "Verify your account"), body); err != nil {
		logger.Error("failed to send verification mail", "user_id", userID, "error", err)
		return models.ErrServer("Failed to send verification email")
	}
	return nil
}

// CheckVerification validates and consumes a verification code.
func (s *Service) CheckVerification(ctx context.Context, userID uint64, supplied string) error {
	stored, ok, err := s.cache.GetString(ctx, verificationKey(userID))
	if err != nil || !ok {
		return models.ErrValidation("code", "Invalid verification code")
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) != 1 {
		return models.ErrValidation("code", "Invalid verification code")
	}
	if err := s.cache.Delete(ctx, verificationKey(userID)); err != nil {
		logger.Warn("failed to drop used verification code", "user_id", userID, "error", err)
	}
	return nil
}

// SendPasswordReset issues a reset code keyed by email. Callers must not
// reveal whether the address exists.
func (s *Service) SendPasswordReset(ctx context.Context, to string) error {
	c, err := code()
	if err != nil {
		return models.ErrServer("Failed to generate reset code")
	}
	if err := s.cache.SetString(ctx, resetKey(to), c, resetTTL); err != nil {
		return models.ErrServer("Failed to store reset code")
	}
	body := fmt.Sprintf(
		"A password reset was requested for your %s account.\n\nYour reset code is %s.\n\nIt expires in 24 hours. If you did not request this, ignore this email.\n",
		s.instance, c)
	if err := s.mailer.Send(ctx, to, s.subject("reset", "Reset your password"), body); err != nil {
		logger.Error("failed to send reset mail", "error", err)
		return models.ErrServer("Failed to send reset email")
	}
	return nil
}

// CheckPasswordReset validates and consumes a reset code.
func (s *Service) CheckPasswordReset(ctx context.Context, email, supplied string) error {
	stored, ok, err := s.cache.GetString(ctx, resetKey(email))
	if err != nil || !ok {
		return models.ErrValidation("code", "Invalid reset code")
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) != 1 {
		return models.ErrValidation("code", "Invalid reset code")
	}
	if err := s.cache.Delete(ctx, resetKey(email)); err != nil {
		logger.Warn("failed to drop used reset code", "error", err)
	}
	return nil
}
