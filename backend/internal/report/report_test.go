package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"school_admin/backend/internal/attendance"
	"school_admin/backend/internal/gradebook"
	"school_admin/backend/internal/shared"
)

func v(f float64) *float64 { return &f }

func sampleGroup() *shared.Group {
	return &shared.Group{
		ID:   "g1",
		Name: "3º B",
		Students: []shared.Student{
			{ID: "s1", FirstName: "Lucía", LastNamePaternal: "Muñoz", LastNameMaternal: "Peña"},
			{ID: "s2", FirstName: "Iván", LastNamePaternal: "Ortega"},
		},
	}
}

func sampleReport() gradebook.Report {
	return gradebook.Report{
		"s1": {
			"Matemáticas": {v(8), v(9), nil},
			"Historia":    {v(6), nil, nil},
		},
		"s2": {
			"Matemáticas": {v(0), nil, nil},
		},
	}
}

var generatedAt = time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)

func TestBuildCard(t *testing.T) {
	group := sampleGroup()
	card := BuildCard(gradebook.Aggregator{}, group.Students[0], group.Name, sampleReport())

	require.Len(t, card.Rows, 2)
	assert.Equal(t, "Historia", card.Rows[0].Subject)
	assert.Equal(t, 6.0, *card.Rows[0].Final)
	assert.Equal(t, 8.5, *card.Rows[1].Final)
	assert.Equal(t, 7.0, *card.Overall[0])
	assert.Equal(t, 9.0, *card.Overall[1])
	assert.Nil(t, card.Overall[2])
	assert.Equal(t, 8.0, *card.Final)

	t.Run("student without grades", func(t *testing.T) {
		card := BuildCard(gradebook.Aggregator{}, group.Students[1], group.Name, sampleReport())
		require.Len(t, card.Rows, 2)
		assert.Nil(t, card.Rows[0].Final)
		assert.Nil(t, card.Rows[1].Final)
		assert.Nil(t, card.Final)
	})

	t.Run("zero counts under strict policy", func(t *testing.T) {
		card := BuildCard(gradebook.Aggregator{Policy: gradebook.ZeroIsScore}, group.Students[1], group.Name, sampleReport())
		require.NotNil(t, card.Final)
		assert.Equal(t, 0.0, *card.Final)
	})
}

func TestFormatGrade(t *testing.T) {
	assert.Equal(t, "-", formatGrade(nil))
	assert.Equal(t, "7.3", formatGrade(v(7.26)))
	assert.Equal(t, "10.0", formatGrade(v(10)))
}

func TestAbbreviate(t *testing.T) {
	assert.Equal(t, "Arte", abbreviate("Arte", 20))
	assert.Equal(t, "Matem.", abbreviate("Matemáticas", 11))
	assert.Equal(t, "Matemáticas", abbreviate("Matemáticas", 2))
}

func TestRenderPDFs(t *testing.T) {
	group := sampleGroup()
	rep := sampleReport()

	t.Run("card", func(t *testing.T) {
		card := BuildCard(gradebook.Aggregator{}, group.Students[0], group.Name, rep)
		pdf, err := RenderCardPDF(card, generatedAt)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	})

	t.Run("empty card", func(t *testing.T) {
		pdf, err := RenderCardPDF(Card{Student: group.Students[1], GroupName: group.Name}, generatedAt)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	})

	t.Run("group", func(t *testing.T) {
		pdf, err := RenderGroupPDF(gradebook.Aggregator{}, group, rep, generatedAt)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	})

	t.Run("attendance", func(t *testing.T) {
		record := &shared.AttendanceRecord{
			Subject: "Historia",
			Entries: map[string]attendance.Mark{
				"s1-b1-d1": {Status: attendance.Present},
				"s1-b1-d2": {Status: attendance.Absent},
			},
		}
		pdf, err := RenderAttendancePDF(group, record, generatedAt)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	})
}

// ============================================================================
// Mailer
// ============================================================================

type capturedRequest struct {
	req   rest.Request
	calls int
}

func testMailer(code int, capture *capturedRequest) *Mailer {
	m := NewMailer(shared.EmailConfig{SendgridAPIKey: "SG.test", FromAddress: "escuela@ejemplo.mx", FromName: "Escuela"}, zap.NewNop())
	m.api = func(_ context.Context, req rest.Request) (*rest.Response, error) {
		capture.req = req
		capture.calls++
		return &rest.Response{StatusCode: code, Body: `{"errors":[]}`}, nil
	}
	return m
}

func TestSendReportCard(t *testing.T) {
	var captured capturedRequest
	m := testMailer(http.StatusAccepted, &captured)

	pdf := []byte("%PDF-1.3 test")
	require.NoError(t, m.SendReportCard(context.Background(), "padre@ejemplo.mx", "Boleta", "<p>Adjunto</p>", pdf))
	require.Equal(t, 1, captured.calls)
	assert.Equal(t, http.MethodPost, string(captured.req.Method))

	var body struct {
		Personalizations []struct {
			To      []struct{ Email string } `json:"to"`
			Subject string                   `json:"subject"`
		} `json:"personalizations"`
		Attachments []struct {
			Content  string `json:"content"`
			Filename string `json:"filename"`
			Type     string `json:"type"`
		} `json:"attachments"`
	}
	require.NoError(t, json.Unmarshal(captured.req.Body, &body))
	require.Len(t, body.Personalizations, 1)
	assert.Equal(t, "padre@ejemplo.mx", body.Personalizations[0].To[0].Email)
	assert.Equal(t, "Boleta", body.Personalizations[0].Subject)
	require.Len(t, body.Attachments, 1)
	assert.Equal(t, CardAttachmentName, body.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", body.Attachments[0].Type)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pdf), body.Attachments[0].Content)
}

func TestSendPasswordReset(t *testing.T) {
	var captured capturedRequest
	m := testMailer(http.StatusAccepted, &captured)

	require.NoError(t, m.SendPasswordReset(context.Background(), "ana@escuela.mx", "a1b2c3d4", 30*time.Minute))
	assert.Contains(t, string(captured.req.Body), "Tu código es")
	assert.Contains(t, string(captured.req.Body), "a1b2c3d4")
	assert.Contains(t, string(captured.req.Body), "Expira en 30 minutos")
	assert.NotContains(t, string(captured.req.Body), "15 minutos")
}

func TestSpanishDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{15 * time.Minute, "15 minutos"},
		{time.Minute, "1 minuto"},
		{90 * time.Second, "2 minutos"},
		{10 * time.Second, "1 minuto"},
		{time.Hour, "1 hora"},
		{2 * time.Hour, "2 horas"},
		{90 * time.Minute, "90 minutos"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, spanishDuration(tt.in), tt.in.String())
	}
}

func TestMailerErrors(t *testing.T) {
	t.Run("provider rejects", func(t *testing.T) {
		var captured capturedRequest
		m := testMailer(http.StatusUnauthorized, &captured)
		assert.Error(t, m.SendPasswordReset(context.Background(), "ana@escuela.mx", "code", 15*time.Minute))
	})

	t.Run("transport error", func(t *testing.T) {
		m := testMailer(http.StatusAccepted, &capturedRequest{})
		m.api = func(context.Context, rest.Request) (*rest.Response, error) {
			return nil, errors.New("dial tcp: timeout")
		}
		assert.Error(t, m.SendPasswordReset(context.Background(), "ana@escuela.mx", "code", 15*time.Minute))
	})

	t.Run("disabled mailer logs instead", func(t *testing.T) {
		m := NewMailer(shared.EmailConfig{}, zap.NewNop())
		called := false
		m.api = func(context.Context, rest.Request) (*rest.Response, error) {
			called = true
			return nil, nil
		}
		assert.False(t, m.Enabled())
		assert.NoError(t, m.SendPasswordReset(context.Background(), "ana@escuela.mx", "code", 15*time.Minute))
		assert.False(t, called)
	})
}

func TestSend(t *testing.T) {
	var captured capturedRequest
	m := testMailer(http.StatusAccepted, &captured)
	encoded := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 boleta"))

	t.Run("raw base64", func(t *testing.T) {
		err := m.Send(context.Background(), &SendCardRequest{To: "padre@ejemplo.mx", Subject: "Boleta", Body: "Hola", PDFData: encoded})
		assert.NoError(t, err)
	})

	t.Run("data url", func(t *testing.T) {
		err := m.Send(context.Background(), &SendCardRequest{
			To: "padre@ejemplo.mx", Subject: "Boleta", Body: "Hola",
			PDFData: "data:application/pdf;base64," + encoded,
		})
		assert.NoError(t, err)
	})

	t.Run("missing fields", func(t *testing.T) {
		err := m.Send(context.Background(), &SendCardRequest{To: "padre@ejemplo.mx"})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("not a pdf", func(t *testing.T) {
		err := m.Send(context.Background(), &SendCardRequest{
			To: "padre@ejemplo.mx", Subject: "Boleta", Body: "Hola",
			PDFData: base64.StdEncoding.EncodeToString([]byte("hello")),
		})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("delivery failure", func(t *testing.T) {
		failing := testMailer(http.StatusInternalServerError, &capturedRequest{})
		err := failing.Send(context.Background(), &SendCardRequest{To: "padre@ejemplo.mx", Subject: "Boleta", Body: "Hola", PDFData: encoded})
		assert.Equal(t, codes.Internal, status.Code(err))
	})
}
