package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"

	"travel-monitor/config"
	"travel-monitor/utils"
)

// EmailNotifier sends multipart (text + HTML) mail over SMTP with STARTTLS.
type EmailNotifier struct {
	cfg     config.Email
	company string
	logger  *utils.Logger
	send    func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewEmailNotifier builds a notifier for the routes file's email block.
// SMTP credentials from the environment win over the file.
func NewEmailNotifier(cfg config.Email, company string, env *config.Config, logger *utils.Logger) *EmailNotifier {
	if env != nil {
		if env.SMTPUser != "" {
			cfg.SMTPUser = env.SMTPUser
		}
		if env.SMTPPassword != "" {
			cfg.SMTPPass = env.SMTPPassword
		}
	}
	return &EmailNotifier{
		cfg:     cfg,
		company: company,
		logger:  logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

func (n *EmailNotifier) Name() string { return "email" }

// Notify mails msg to every recipient. A disabled or unconfigured notifier
// does nothing.
func (n *EmailNotifier) Notify(ctx context.Context, msg Message) error {
	if !n.cfg.Enabled {
		return nil
	}
	if !n.cfg.Configured() {
		n.logger.Debug("  [email] SMTP not configured")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = n.cfg.From
	if n.company != "" {
		e.From = fmt.Sprintf("%s Travel Monitor <%s>", n.company, n.cfg.From)
	}
	e.To = n.cfg.Recipients
	e.Subject = msg.Subject
	if n.company != "" {
		e.Subject = fmt.Sprintf("[%s] %s", n.company, msg.Subject)
	}
	e.Text = []byte(msg.Text)
	if msg.HTML != "" {
		e.HTML = []byte(msg.HTML)
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)
	auth := smtp.PlainAuth("", n.cfg.SMTPUser, n.cfg.SMTPPass, n.cfg.SMTPHost)
	if err := n.send(e, addr, auth); err != nil {
		return fmt.Errorf("send to %s: %w", addr, err)
	}
	n.logger.Info("  [email] Sent to %s", strings.Join(n.cfg.Recipients, ", "))
	return nil
}
