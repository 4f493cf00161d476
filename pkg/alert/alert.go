// Package alert notifies operators when the embedding backend degrades.
package alert

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/soundprediction/embedkit/pkg/config"
)

// Alerter defines an interface for sending alerts
type Alerter interface {
	Alert(subject, message string) error
}

// New returns an EmailAlerter when alerting is enabled and a LogAlerter
// otherwise.
func New(cfg config.AlertConfig, logger *slog.Logger) Alerter {
	if cfg.Enabled && cfg.SMTPHost != "" && len(cfg.To) > 0 {
		return NewEmailAlerter(cfg)
	}
	return NewLogAlerter(logger)
}

// sendMailFunc matches smtp.SendMail.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailAlerter implements Alerter using SMTP
type EmailAlerter struct {
	cfg      config.AlertConfig
	sendMail sendMailFunc
}

// NewEmailAlerter creates a new email alerter
func NewEmailAlerter(cfg config.AlertConfig) *EmailAlerter {
	return &EmailAlerter{
		cfg:      cfg,
		sendMail: smtp.SendMail,
	}
}

// Alert sends an email with the given subject and message
func (a *EmailAlerter) Alert(subject, message string) error {
	if !a.cfg.Enabled {
		return nil
	}

	var auth smtp.Auth
	if a.cfg.Username != "" {
		auth = smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.SMTPHost)
	}

	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", a.cfg.From, strings.Join(a.cfg.To, ","), subject, message))

	addr := fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)

	if err := a.sendMail(addr, auth, a.cfg.From, a.cfg.To, msg); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}

// LogAlerter writes alerts to a logger at error level.
type LogAlerter struct {
	logger *slog.Logger
}

// NewLogAlerter creates a LogAlerter. A nil logger uses slog.Default.
func NewLogAlerter(logger *slog.Logger) *LogAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAlerter{logger: logger}
}

func (l *LogAlerter) Alert(subject, message string) error {
	l.logger.Error(subject, "alert", message)
	return nil
}

// NoOpAlerter is a dummy alerter for when alerting is disabled
type NoOpAlerter struct{}

func (n *NoOpAlerter) Alert(subject, message string) error {
	return nil
}
