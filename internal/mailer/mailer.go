package mailer

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"text/template"

	"github.com/rs/zerolog"

	"festreg/internal/notify"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type message struct {
	subject string
	body    *template.Template
}

var templates = map[notify.Template]message{
	notify.TemplateRegistrationPending: {
		subject: "Registration received: {{.event_name}}",
		body: template.Must(template.New("pending").Option("missingkey=zero").Parse(
			"Hello!\n\nYour registration {{.registration_number}} for \"{{.event_name}}\" on {{.event_date}} at {{.event_time}} is waiting for payment.\n" +
				"Amount due: {{.amount}}. Submit your bank transfer reference to complete it.\n")),
	},
	notify.TemplateRegistrationConfirmed: {
		subject: "Registration confirmed: {{.event_name}}",
		body: template.Must(template.New("confirmed").Option("missingkey=zero").Parse(
			"Hello!\n\nYour registration {{.registration_number}} for \"{{.event_name}}\" on {{.event_date}} at {{.event_time}} is confirmed.\nSee you there!\n")),
	},
	notify.TemplatePaymentApproved: {
		subject: "Payment approved: {{.event_name}}",
		body: template.Must(template.New("approved").Option("missingkey=zero").Parse(
			"Hello {{.name}}!\n\nYour payment of {{.amount}} (UTR {{.utr_number}}) for registration {{.registration_number}} has been verified.\n" +
				"Your place at \"{{.event_name}}\" is confirmed.\n")),
	},
	notify.TemplatePaymentRejected: {
		subject: "Payment rejected: {{.event_name}}",
		body: template.Must(template.New("rejected").Option("missingkey=zero").Parse(
			"Hello {{.name}}!\n\nWe could not verify your payment (UTR {{.utr_number}}) for registration {{.registration_number}}.\n" +
				"Reason: {{.reason}}\n\nThe registration has been removed and your place released. You may register again.\n")),
	},
	notify.TemplateAccountCreated: {
		subject: "Your festival account",
		body: template.Must(template.New("account").Option("missingkey=zero").Parse(
			"Hello {{.name}}!\n\nAn account was created for you and you are registered for \"{{.event_name}}\" on {{.event_date}} at {{.event_time}}.\n\n" +
				"Login: {{.email}}\nTemporary password: {{.password}}\nParticipant code: {{.code}}\n\nPlease change your password after the first login.\n")),
	},
	notify.TemplateTeamRegistration: {
		subject: "You were added to a team: {{.event_name}}",
		body: template.Must(template.New("team").Option("missingkey=zero").Parse(
			"Hello {{.name}}!\n\n{{.leader_name}} registered you{{if .team_name}} in team \"{{.team_name}}\"{{end}} for \"{{.event_name}}\" on {{.event_date}} at {{.event_time}}.\n")),
	},
}

// Mailer delivers notifications over SMTP.
type Mailer struct {
	cfg  Config
	log  *zerolog.Logger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func New(cfg Config, log *zerolog.Logger) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Mailer{cfg: cfg, log: log, send: smtp.SendMail}
}

// Render builds the subject and body for a notification.
func Render(n notify.Notification) (subject, body string, err error) {
	m, ok := templates[n.Template]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", n.Template)
	}
	subj, err := template.New("subject").Option("missingkey=zero").Parse(m.subject)
	if err != nil {
		return "", "", err
	}
	var sb, bb bytes.Buffer
	if err := subj.Execute(&sb, n.Data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := m.body.Execute(&bb, n.Data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return sb.String(), bb.String(), nil
}

func (m *Mailer) Send(ctx context.Context, n notify.Notification) error {
	subject, body, err := Render(n)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.cfg.From, n.To, subject, body,
	)

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(addr, auth, m.cfg.From, []string{n.To}, []byte(msg)); err != nil {
		m.log.Warn().Err(err).Str("to", n.To).Str("template", string(n.Template)).Msg("failed to send e-mail")
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Str("to", n.To).Str("template", string(n.Template)).Msg("e-mail sent")
	return nil
}
