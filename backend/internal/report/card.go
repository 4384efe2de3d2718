// Package report renders grade and attendance documents as PDFs and mails
// report cards.
package report

import (
	"fmt"

	"school_admin/backend/internal/gradebook"
	"school_admin/backend/internal/shared"
)

// CardRow is one subject line of a report card.
type CardRow struct {
	Subject   string
	Bimesters gradebook.BimesterAverages
	Final     *float64
}

// Card is the individual report card of one student.
type Card struct {
	Student   shared.Student
	GroupName string
	Rows      []CardRow
	Overall   gradebook.BimesterAverages
	Final     *float64
}

// BuildCard extracts one student's rows from a consolidated report. Subjects
// are listed in report order; a subject the student has no entry for still
// gets an empty row.
func BuildCard(agg gradebook.Aggregator, student shared.Student, groupName string, rep gradebook.Report) Card {
	card := Card{Student: student, GroupName: groupName}
	bySubject := rep[student.ID]

	for _, subject := range rep.Subjects() {
		row := CardRow{Subject: subject, Bimesters: bySubject[subject]}
		if avg, ok := agg.RowAverage(row.Bimesters); ok {
			row.Final = rounded(avg)
		}
		card.Rows = append(card.Rows, row)
	}

	for bim := 1; bim <= gradebook.NumBimesters; bim++ {
		if avg, ok := agg.OverallBimesterAverage(rep, student.ID, bim); ok {
			card.Overall[bim-1] = rounded(avg)
		}
	}
	if avg, ok := agg.OverallFinalAverage(rep, student.ID); ok {
		card.Final = rounded(avg)
	}
	return card
}

func rounded(v float64) *float64 {
	r := gradebook.Round(v, 1)
	return &r
}

// formatGrade renders a display value, "-" for no data.
func formatGrade(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}
