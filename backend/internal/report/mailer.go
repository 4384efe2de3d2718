package report

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"school_admin/backend/internal/shared"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// CardAttachmentName is the file name report cards are mailed under.
const CardAttachmentName = "Boleta_de_Calificaciones.pdf"

// Mailer delivers report cards and password reset codes through SendGrid.
// Without an API key it logs messages instead of sending them.
type Mailer struct {
	key    string
	from   *sgmail.Email
	logger *zap.Logger
	api    func(context.Context, rest.Request) (*rest.Response, error)
}

// NewMailer creates a Mailer from the email configuration
func NewMailer(cfg shared.EmailConfig, logger *zap.Logger) *Mailer {
	return &Mailer{
		key:    cfg.SendgridAPIKey,
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		logger: logger,
		api:    sendgrid.MakeRequestWithContext,
	}
}

// Enabled reports whether messages actually leave the process.
func (m *Mailer) Enabled() bool {
	return m.key != "" && m.from.Address != ""
}

// SendCardRequest is the body of a report-card email.
type SendCardRequest struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"notblank"`
	Body    string `json:"body" validate:"notblank"`
	PDFData string `json:"pdfData" validate:"notblank"`
}

// Send validates req, decodes its base64 PDF and mails it as a report card.
func (m *Mailer) Send(ctx context.Context, req *SendCardRequest) error {
	if err := shared.InvalidArgument(req); err != nil {
		return err
	}
	pdf, err := decodePDF(req.PDFData)
	if err != nil {
		return status.Error(codes.InvalidArgument, "pdfData no es un PDF en base64 válido")
	}
	if err := m.SendReportCard(ctx, req.To, req.Subject, req.Body, pdf); err != nil {
		m.logger.Error("report card delivery failed", zap.String("to", req.To), zap.Error(err))
		return status.Error(codes.Internal, "error al enviar el correo")
	}
	return nil
}

// SendReportCard mails an HTML body with the PDF attached.
func (m *Mailer) SendReportCard(ctx context.Context, to, subject, htmlBody string, pdf []byte) error {
	msg := m.message(to, subject, htmlBody)

	att := sgmail.NewAttachment()
	att.SetContent(base64.StdEncoding.EncodeToString(pdf))
	att.SetType("application/pdf")
	att.SetFilename(CardAttachmentName)
	att.SetDisposition("attachment")
	msg.AddAttachment(att)

	m.logger.Info("sending report card",
		zap.String("to", to),
		zap.String("attachment_size", humanize.Bytes(uint64(len(pdf)))))
	return m.deliver(ctx, msg)
}

// SendPasswordReset mails a password reset code that stays valid for ttl.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, code string, ttl time.Duration) error {
	body := fmt.Sprintf("<p>Tu código es <strong>%s</strong>.</p><p>Expira en %s.</p>", code, spanishDuration(ttl))
	return m.deliver(ctx, m.message(to, "Recuperación de contraseña", body))
}

// spanishDuration renders d in whole hours when it divides evenly and in
// minutes otherwise, rounding partial minutes up.
func spanishDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return plural(int(d/time.Hour), "hora", "horas")
	}
	mins := int((d + time.Minute - 1) / time.Minute)
	if mins < 1 {
		mins = 1
	}
	return plural(mins, "minuto", "minutos")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

func (m *Mailer) message(to, subject, htmlBody string) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.AddTos(sgmail.NewEmail("", to))
	p.Subject = subject

	msg := sgmail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.AddPersonalizations(p)
	msg.AddContent(sgmail.NewContent("text/html", htmlBody))
	return msg
}

func (m *Mailer) deliver(ctx context.Context, msg *sgmail.SGMailV3) error {
	body := sgmail.GetRequestBody(msg)
	if !m.Enabled() {
		m.logger.Warn("email delivery disabled; message not sent",
			zap.String("size", humanize.Bytes(uint64(len(body)))))
		m.logger.Debug("unsent email", zap.ByteString("body", body))
		return nil
	}

	req := sendgrid.GetRequest(m.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = body

	res, err := m.api(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// decodePDF accepts raw base64 or a data URL and checks the PDF signature.
func decodePDF(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if i := strings.Index(data, ","); strings.HasPrefix(data, "data:") && i >= 0 {
		data = data[i+1:]
	}
	pdf, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(string(pdf), "%PDF") {
		return nil, fmt.Errorf("missing PDF header")
	}
	return pdf, nil
}
