// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/punchsync/internal/config"
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/metrics"
)

// MailRelayNotifier posts notifications to an HTTP mail relay which sends
// them as HTML email.
type MailRelayNotifier struct {
	cfg    config.NotifyConfig
	client *http.Client
}

// mailRequest is the relay's request body.
type mailRequest struct {
	EmailHost         string `json:"email_host"`
	EmailHostUser     string `json:"email_host_user"`
	EmailHostPassword string `json:"email_host_password"`
	Entity            string `json:"entity"`
	Subject           string `json:"subject"`
	Message           string `json:"message"`
	Destinataires     string `json:"destinateurs"`
}

// NewMailRelayNotifier creates the notifier. It is safe to build with an
// unconfigured endpoint; Notify then logs and skips.
func NewMailRelayNotifier(cfg config.NotifyConfig) *MailRelayNotifier {
	return &MailRelayNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name implements Notifier.
func (n *MailRelayNotifier) Name() string { return "mail" }

// Notify implements Notifier. A missing endpoint or recipient list is not
// an error: the notification is skipped with a warning.
func (n *MailRelayNotifier) Notify(ctx context.Context, subject, message string) error {
	log := logging.Ctx(ctx)

	if !n.cfg.MailConfigured() {
		log.Warn().Str("subject", subject).Msg("No mail relay configured, notification skipped")
		metrics.RecordNotification(n.Name(), resultSkipped)
		return nil
	}
	recipients := cleanRecipients(n.cfg.Recipients)
	if len(recipients) == 0 {
		log.Warn().Str("subject", subject).Msg("No mail recipients configured, notification skipped")
		metrics.RecordNotification(n.Name(), resultSkipped)
		return nil
	}

	if !strings.HasPrefix(strings.TrimSpace(message), "<") {
		html, err := FormatHTML(subject, message)
		if err != nil {
			metrics.RecordNotification(n.Name(), resultFailed)
			return fmt.Errorf("failed to render mail body: %w", err)
		}
		message = html
	}

	body, err := json.Marshal(mailRequest{
		EmailHost:         n.cfg.EmailHost,
		EmailHostUser:     n.cfg.EmailHostUser,
		EmailHostPassword: n.cfg.EmailHostPassword,
		Entity:            n.cfg.Entity,
		Subject:           subject,
		Message:           message,
		Destinataires:     strings.Join(recipients, ","),
	})
	if err != nil {
		metrics.RecordNotification(n.Name(), resultFailed)
		return fmt.Errorf("failed to marshal mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.MailEndpoint, bytes.NewReader(body))
	if err != nil {
		metrics.RecordNotification(n.Name(), resultFailed)
		return fmt.Errorf("failed to create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug().Str("endpoint", n.cfg.MailEndpoint).Strs("recipients", recipients).Msg("Sending mail notification")

	resp, err := n.client.Do(req)
	if err != nil {
		metrics.RecordNotification(n.Name(), resultFailed)
		return fmt.Errorf("failed to reach mail relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.RecordNotification(n.Name(), resultFailed)
		return fmt.Errorf("mail relay returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	metrics.RecordNotification(n.Name(), resultSent)
	log.Info().Int("recipients", len(recipients)).Msg("Mail notification sent")
	return nil
}

func cleanRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Alert levels chosen from the subject and message wording.
type alertLevel struct {
	Color string
	Icon  string
	Label string
}

var (
	levelAlert   = alertLevel{Color: "#dc3545", Icon: "⚠️", Label: "ALERT"}
	levelWarning = alertLevel{Color: "#ffc107", Icon: "⚡", Label: "WARNING"}
	levelInfo    = alertLevel{Color: "#28a745", Icon: "✓", Label: "INFO"}
)

var (
	alertSubjectWords   = []string{"failed", "failure", "error", "critical", "échec", "erreur"}
	alertMessageWords   = []string{"failed", "échec"}
	warningSubjectWords = []string{"warning", "attention"}
)

func classify(subject, message string) alertLevel {
	s, m := strings.ToLower(subject), strings.ToLower(message)
	for _, w := range alertSubjectWords {
		if strings.Contains(s, w) {
			return levelAlert
		}
	}
	for _, w := range alertMessageWords {
		if strings.Contains(m, w) {
			return levelAlert
		}
	}
	for _, w := range warningSubjectWords {
		if strings.Contains(s, w) {
			return levelWarning
		}
	}
	return levelInfo
}

// mailRow is one line of the message body. Lines of the form "key: value"
// are rendered as two cells.
type mailRow struct {
	Key   string
	Value string
}

func messageRows(message string) []mailRow {
	var rows []mailRow
	for _, line := range strings.Split(strings.TrimSpace(message), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if key, value, ok := strings.Cut(line, ":"); ok && !strings.HasPrefix(line, "http") {
			rows = append(rows, mailRow{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)})
			continue
		}
		rows = append(rows, mailRow{Value: line})
	}
	return rows
}

var mailTemplate = template.Must(template.New("mail").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f4f4f4;">
<table width="100%" cellpadding="0" cellspacing="0" style="background-color: #f4f4f4; padding: 20px;">
<tr><td align="center">
<table width="600" cellpadding="0" cellspacing="0" style="background-color: #ffffff; border-radius: 8px;">
<tr><td style="background-color: {{.Level.Color}}; padding: 20px; text-align: center; border-radius: 8px 8px 0 0;">
<h1 style="margin: 0; color: #ffffff; font-size: 24px;">{{.Level.Icon}} {{.Level.Label}}</h1>
</td></tr>
<tr><td style="padding: 20px; background-color: #f8f9fa;">
<h2 style="margin: 0; color: #333; font-size: 18px; text-align: center;">{{.Subject}}</h2>
</td></tr>
<tr><td style="padding: 20px;">
<table width="100%" cellpadding="0" cellspacing="0">
{{- range .Rows}}
{{- if .Key}}
<tr><td style="padding: 8px; font-weight: bold; color: #555;">{{.Key}}:</td><td style="padding: 8px; color: #333;">{{.Value}}</td></tr>
{{- else}}
<tr><td colspan="2" style="padding: 8px; color: #333;">{{.Value}}</td></tr>
{{- end}}
{{- end}}
</table>
</td></tr>
<tr><td style="padding: 20px; background-color: #f8f9fa; text-align: center; border-radius: 0 0 8px 8px; border-top: 1px solid #e9ecef;">
<p style="margin: 0; color: #6c757d; font-size: 12px;">ZKTeco attendance synchronization<br>Automated message, do not reply</p>
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>
`))

// FormatHTML renders a plain-text notification as an HTML email. The
// header colour reflects the alert level and "key: value" lines become
// table rows. All text is HTML-escaped.
func FormatHTML(subject, message string) (string, error) {
	var buf bytes.Buffer
	err := mailTemplate.Execute(&buf, struct {
		Level   alertLevel
		Subject string
		Rows    []mailRow
	}{
		Level:   classify(subject, message),
		Subject: subject,
		Rows:    messageRows(message),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
