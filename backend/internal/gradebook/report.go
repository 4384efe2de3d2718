package gradebook

import "sort"

// BimesterAverages holds one display value per bimester. nil means no data.
type BimesterAverages [NumBimesters]*float64

// Report maps studentId → subject → [b1, b2, b3].
type Report map[string]map[string]BimesterAverages

// ConsolidatedReport computes the legacy-policy report for a roster.
func ConsolidatedReport(studentIDs []string, subjects []SubjectGrades) Report {
	return Aggregator{Policy: ZeroMeansMissing}.ConsolidatedReport(studentIDs, subjects)
}

// ConsolidatedReport computes, for every student and every subject that has
// criteria, the three bimester averages rounded to one decimal. Subjects
// without criteria are left out; every roster student gets an entry even when
// no subject reports anything for them.
func (a Aggregator) ConsolidatedReport(studentIDs []string, subjects []SubjectGrades) Report {
	report := make(Report, len(studentIDs))
	for _, id := range studentIDs {
		report[id] = make(map[string]BimesterAverages)
	}

	for _, sg := range subjects {
		if len(sg.Criteria) == 0 {
			continue
		}
		for _, id := range studentIDs {
			var avgs BimesterAverages
			for bim := 1; bim <= NumBimesters; bim++ {
				if _, recorded := sg.Book[id][BimesterKey(bim)]; !recorded {
					continue
				}
				avg, ok := a.BimesterResult(sg.Book, sg.Criteria, id, bim)
				if !ok {
					continue
				}
				v := Round(avg, 1)
				avgs[bim-1] = &v
			}
			report[id][sg.Subject] = avgs
		}
	}
	return report
}

// Subjects returns every subject present in the report, sorted.
func (r Report) Subjects() []string {
	seen := make(map[string]struct{})
	for _, bySubject := range r {
		for subject := range bySubject {
			seen[subject] = struct{}{}
		}
	}
	subjects := make([]string, 0, len(seen))
	for s := range seen {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects
}

// counts reports whether a display value takes part in an average.
func (a Aggregator) counts(v *float64) bool {
	if v == nil {
		return false
	}
	return a.Policy == ZeroIsScore || *v > 0
}

// RowAverage averages the bimester values of one subject row that carry data.
func (a Aggregator) RowAverage(avgs BimesterAverages) (float64, bool) {
	var sum float64
	var n int
	for _, v := range avgs {
		if a.counts(v) {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// OverallBimesterAverage averages one bimester across all of a student's subjects.
func (a Aggregator) OverallBimesterAverage(r Report, studentID string, bimester int) (float64, bool) {
	if bimester < 1 || bimester > NumBimesters {
		return 0, false
	}
	var sum float64
	var n int
	for _, avgs := range r[studentID] {
		if v := avgs[bimester-1]; a.counts(v) {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// OverallFinalAverage averages the overall bimester averages that carry data.
func (a Aggregator) OverallFinalAverage(r Report, studentID string) (float64, bool) {
	var sum float64
	var n int
	for bim := 1; bim <= NumBimesters; bim++ {
		if avg, ok := a.OverallBimesterAverage(r, studentID, bim); ok {
			sum += avg
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
