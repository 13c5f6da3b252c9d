package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pricehound/internal/config"

	"gopkg.in/gomail.v2"
)

// EmailNotifier delivers run reports over SMTP.
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier creates a new email notifier.
func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// SendRunReport sends an ingestion run summary.
// Missing SMTP configuration or recipient skips delivery without error.
func (n *EmailNotifier) SendRunReport(ctx context.Context, report *RunReport, toEmail string) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		n.logger.Warn("email config missing, skip run report")
		return nil
	}
	if strings.TrimSpace(toEmail) == "" {
		n.logger.Warn("email recipient empty, skip run report")
		return nil
	}

	subject := "[PriceHound] ingestion run finished"
	if report.Err != nil {
		subject = "[PriceHound] ingestion run failed"
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", n.buildHTMLBody(report))

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("run report sent", slog.String("to", toEmail))
	return nil
}

func (n *EmailNotifier) buildHTMLBody(report *RunReport) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<h3>Ingestion run at %s</h3>", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	b.WriteString("<table border=\"0\" cellpadding=\"4\">")
	row := func(k string, v any) {
		b.WriteString(fmt.Sprintf("<tr><td><b>%s</b></td><td>%v</td></tr>", k, v))
	}
	row("Duration", report.Duration.Round(time.Millisecond))
	row("Sources", fmt.Sprintf("%d (%d failed)", report.Sources, report.Failed))
	row("Rows parsed", report.RowsParsed)
	row("Rows kept", report.RowsKept)
	row("Rows rejected", report.Rejected)
	row("Offers demoted", report.Demoted)
	if report.Err != nil {
		row("Error", report.Err.Error())
	}
	b.WriteString("</table></body></html>")
	return b.String()
}
