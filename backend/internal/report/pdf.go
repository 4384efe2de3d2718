package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"school_admin/backend/internal/attendance"
	"school_admin/backend/internal/gradebook"
	"school_admin/backend/internal/shared"
)

const (
	fontFamily = "Arial"
	dateLayout = "02/01/2006 15:04"
)

// document wraps a gofpdf page set with a UTF-8 → cp1252 translator so
// accented Spanish text renders with the core fonts.
type document struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func newDocument(orientation string) *document {
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 15)
	return &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (d *document) header(title, subtitle string) {
	d.pdf.SetFont(fontFamily, "B", 16)
	d.pdf.CellFormat(0, 9, d.tr(title), "", 1, "C", false, 0, "")
	if subtitle != "" {
		d.pdf.SetFont(fontFamily, "", 11)
		d.pdf.CellFormat(0, 6, d.tr(subtitle), "", 1, "C", false, 0, "")
	}
	d.pdf.SetDrawColor(40, 145, 108)
	d.pdf.SetLineWidth(0.5)
	left, _, right, _ := d.pdf.GetMargins()
	width, _ := d.pdf.GetPageSize()
	d.pdf.Line(left, d.pdf.GetY()+2, width-right, d.pdf.GetY()+2)
	d.pdf.Ln(6)
	d.pdf.SetLineWidth(0.2)
	d.pdf.SetDrawColor(0, 0, 0)
}

func (d *document) headRow(widths []float64, labels []string) {
	d.pdf.SetFont(fontFamily, "B", 8)
	d.pdf.SetFillColor(40, 145, 108)
	d.pdf.SetTextColor(255, 255, 255)
	for i, label := range labels {
		d.pdf.CellFormat(widths[i], 7, d.tr(label), "1", 0, "C", true, 0, "")
	}
	d.pdf.Ln(-1)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.SetFont(fontFamily, "", 8)
	d.pdf.SetFillColor(245, 245, 245)
}

// row writes one table line. The first textCols cells are left aligned.
func (d *document) row(widths []float64, cells []string, fill bool, textCols int) {
	for i, c := range cells {
		align := "C"
		if i < textCols {
			align = "L"
		}
		d.pdf.CellFormat(widths[i], 6, d.tr(c), "1", 0, align, fill, 0, "")
	}
	d.pdf.Ln(-1)
}

func (d *document) footer(generatedAt time.Time) {
	d.pdf.Ln(6)
	d.pdf.SetFont(fontFamily, "I", 8)
	d.pdf.SetTextColor(100, 100, 100)
	d.pdf.CellFormat(0, 5, d.tr("Documento generado el "+generatedAt.Format(dateLayout)), "", 1, "L", false, 0, "")
	d.pdf.SetTextColor(0, 0, 0)
}

func (d *document) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// ============================================================================
// Report card
// ============================================================================

// RenderCardPDF renders an individual report card.
func RenderCardPDF(card Card, generatedAt time.Time) ([]byte, error) {
	d := newDocument("P")
	d.pdf.AddPage()
	d.header("BOLETA DE CALIFICACIONES", "Grupo "+card.GroupName)

	d.pdf.SetFont(fontFamily, "", 10)
	d.pdf.CellFormat(25, 6, "Alumno:", "", 0, "L", false, 0, "")
	d.pdf.SetFont(fontFamily, "B", 10)
	d.pdf.CellFormat(0, 6, d.tr(card.Student.FullName()), "", 1, "L", false, 0, "")
	d.pdf.Ln(4)

	widths := []float64{80, 25, 25, 25, 35}
	d.headRow(widths, []string{"ASIGNATURA", "BIM. 1", "BIM. 2", "BIM. 3", "FINAL"})
	for i, r := range card.Rows {
		d.row(widths, []string{
			r.Subject,
			formatGrade(r.Bimesters[0]),
			formatGrade(r.Bimesters[1]),
			formatGrade(r.Bimesters[2]),
			formatGrade(r.Final),
		}, i%2 == 1, 1)
	}
	if len(card.Rows) == 0 {
		d.pdf.SetFont(fontFamily, "I", 9)
		d.pdf.CellFormat(0, 8, "Sin calificaciones registradas.", "", 1, "L", false, 0, "")
	}

	d.pdf.SetFont(fontFamily, "B", 8)
	d.row(widths, []string{
		"PROMEDIO",
		formatGrade(card.Overall[0]),
		formatGrade(card.Overall[1]),
		formatGrade(card.Overall[2]),
		formatGrade(card.Final),
	}, false, 1)

	d.footer(generatedAt)
	return d.bytes()
}

// ============================================================================
// Consolidated group sheet
// ============================================================================

// RenderGroupPDF renders the consolidated grades of a whole group: one final
// average per subject plus the overall bimester and final averages.
func RenderGroupPDF(agg gradebook.Aggregator, group *shared.Group, rep gradebook.Report, generatedAt time.Time) ([]byte, error) {
	d := newDocument("L")
	d.pdf.AddPage()
	d.header("CALIFICACIONES CONSOLIDADAS", "Grupo "+group.Name)

	subjects := rep.Subjects()
	const (
		numWidth     = 8.0
		nameWidth    = 60.0
		overallWidth = 15.0
		usable       = 277.0
	)
	subjectWidth := 0.0
	if len(subjects) > 0 {
		subjectWidth = (usable - numWidth - nameWidth - 4*overallWidth) / float64(len(subjects))
	}

	widths := []float64{numWidth, nameWidth}
	labels := []string{"#", "ALUMNO"}
	for _, s := range subjects {
		widths = append(widths, subjectWidth)
		labels = append(labels, abbreviate(s, subjectWidth))
	}
	widths = append(widths, overallWidth, overallWidth, overallWidth, overallWidth)
	labels = append(labels, "PROM. 1", "PROM. 2", "PROM. 3", "FINAL")
	d.headRow(widths, labels)

	for i, st := range group.Students {
		card := BuildCard(agg, st, group.Name, rep)
		cells := []string{fmt.Sprintf("%d", i+1), st.FullName()}
		for _, r := range card.Rows {
			cells = append(cells, formatGrade(r.Final))
		}
		cells = append(cells,
			formatGrade(card.Overall[0]),
			formatGrade(card.Overall[1]),
			formatGrade(card.Overall[2]),
			formatGrade(card.Final))
		d.row(widths, cells, i%2 == 1, 2)
	}

	d.footer(generatedAt)
	return d.bytes()
}

// abbreviate shortens a column label to roughly fit width millimetres at 8pt.
func abbreviate(label string, width float64) string {
	limit := int(width / 1.8)
	runes := []rune(label)
	if limit < 3 || len(runes) <= limit {
		return label
	}
	return string(runes[:limit-1]) + "."
}

// ============================================================================
// Attendance sheet
// ============================================================================

// RenderAttendancePDF renders present/absent totals per student and bimester.
func RenderAttendancePDF(group *shared.Group, record *shared.AttendanceRecord, generatedAt time.Time) ([]byte, error) {
	d := newDocument("P")
	d.pdf.AddPage()
	d.header("REPORTE DE ASISTENCIA", fmt.Sprintf("Grupo %s · %s", group.Name, record.Subject))

	sheet := record.Sheet()
	widths := []float64{8, 62}
	labels := []string{"#", "ALUMNO"}
	for bim := 1; bim <= attendance.NumBimesters; bim++ {
		widths = append(widths, 14, 14)
		labels = append(labels, fmt.Sprintf("B%d P", bim), fmt.Sprintf("B%d F", bim))
	}
	widths = append(widths, 18, 18)
	labels = append(labels, "TOTAL P", "TOTAL F")
	d.headRow(widths, labels)

	for i, st := range group.Students {
		cells := []string{fmt.Sprintf("%d", i+1), st.FullName()}
		var total attendance.Tally
		for bim := 1; bim <= attendance.NumBimesters; bim++ {
			t := sheet.Tally(st.ID, bim)
			total.Present += t.Present
			total.Absent += t.Absent
			cells = append(cells, fmt.Sprintf("%d", t.Present), fmt.Sprintf("%d", t.Absent))
		}
		cells = append(cells, fmt.Sprintf("%d", total.Present), fmt.Sprintf("%d", total.Absent))
		d.row(widths, cells, i%2 == 1, 2)
	}

	d.pdf.Ln(3)
	d.pdf.SetFont(fontFamily, "", 8)
	d.pdf.CellFormat(0, 5, d.tr(fmt.Sprintf("Días por bimestre: %d / %d / %d",
		sheet.DaysIn(1), sheet.DaysIn(2), sheet.DaysIn(3))), "", 1, "L", false, 0, "")

	d.footer(generatedAt)
	return d.bytes()
}
