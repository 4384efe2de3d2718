// Package gradebook turns raw per-task scores into criterion, bimester and
// subject averages. Everything here is pure computation over records that
// have already been fetched; nothing returns an error; missing data degrades
// to 0 (or to "no value" in the consolidated report).
package gradebook

import (
	"math"
	"strconv"
	"time"
)

const (
	// NumBimesters is the number of grading periods in a school year.
	NumBimesters = 3

	MinScore = 0.0
	MaxScore = 10.0
)

// Criterion is a named, percentage-weighted component of a subject's grade.
type Criterion struct {
	Name       string  `bson:"name" json:"name" validate:"notblank"`
	Percentage float64 `bson:"percentage" json:"percentage" validate:"gte=0,lte=100"`
}

// ScoreEntry is one graded task. A nil *ScoreEntry is an erased cell.
type ScoreEntry struct {
	Score      float64   `bson:"score" json:"score"`
	RecordedAt time.Time `bson:"recorded_at" json:"recorded_at"`
}

type (
	// Tasks maps a task index ("0", "1", ...) to its score.
	Tasks map[string]*ScoreEntry
	// CriterionScores maps a criterion name to its tasks.
	CriterionScores map[string]Tasks
	// Bimesters maps a bimester ("1".."3") to the criterion scores recorded in it.
	Bimesters map[string]CriterionScores
	// Book maps a student id to everything recorded for that student in one subject.
	Book map[string]Bimesters
)

// SubjectGrades is the slice of a stored grade record the aggregator needs.
type SubjectGrades struct {
	Subject  string
	Criteria []Criterion
	Book     Book
}

// Policy decides whether a zero average means "no data".
type Policy int

const (
	// ZeroMeansMissing treats any average of exactly 0 as "no data". This is the
	// behaviour report cards have always had: a real 0 disappears.
	ZeroMeansMissing Policy = iota
	// ZeroIsScore only treats the absence of any recorded score as "no data".
	ZeroIsScore
)

// BimesterKey formats a bimester number as a map key.
func BimesterKey(bimester int) string {
	return strconv.Itoa(bimester)
}

// criterionScores returns the valid scores of one criterion in one bimester.
func (b Book) criterionScores(studentID string, bimester int, criterion string) []float64 {
	tasks := b[studentID][BimesterKey(bimester)][criterion]
	scores := make([]float64, 0, len(tasks))
	for _, entry := range tasks {
		if entry == nil || math.IsNaN(entry.Score) || math.IsInf(entry.Score, 0) {
			continue
		}
		scores = append(scores, entry.Score)
	}
	return scores
}

// HasScores reports whether any valid score exists for the student in the bimester.
func (b Book) HasScores(studentID string, bimester int) bool {
	for criterion := range b[studentID][BimesterKey(bimester)] {
		if len(b.criterionScores(studentID, bimester, criterion)) > 0 {
			return true
		}
	}
	return false
}

// CriterionAverage is the mean of all valid scores recorded under the criterion
// for the student in the bimester, or 0 when there are none.
func CriterionAverage(book Book, studentID string, bimester int, criterion string) float64 {
	scores := book.criterionScores(studentID, bimester, criterion)
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// BimesterAverage is the weighted sum over all criteria of
// CriterionAverage × percentage/100. A criterion with no scores contributes 0.
// Percentages are not checked here; a set that does not total 100 skews the result.
func BimesterAverage(book Book, criteria []Criterion, studentID string, bimester int) float64 {
	var avg float64
	for _, c := range criteria {
		avg += CriterionAverage(book, studentID, bimester, c.Name) * (c.Percentage / 100)
	}
	return avg
}

// SubjectFinalAverage averages the bimester averages that are strictly greater than 0.
func SubjectFinalAverage(book Book, criteria []Criterion, studentID string) float64 {
	avg, _ := Aggregator{Policy: ZeroMeansMissing}.FinalAverage(book, criteria, studentID)
	return avg
}

// CriteriaTotal sums the percentages of a criteria set.
func CriteriaTotal(criteria []Criterion) float64 {
	var total float64
	for _, c := range criteria {
		total += c.Percentage
	}
	return total
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// ============================================================================
// Policy-aware aggregation
// ============================================================================

// Aggregator computes averages under a zero-handling policy.
type Aggregator struct {
	Policy Policy
}

// BimesterResult returns the bimester average and whether it counts as data.
func (a Aggregator) BimesterResult(book Book, criteria []Criterion, studentID string, bimester int) (float64, bool) {
	avg := BimesterAverage(book, criteria, studentID, bimester)
	switch a.Policy {
	case ZeroIsScore:
		return avg, book.HasScores(studentID, bimester)
	default:
		return avg, avg > 0
	}
}

// FinalAverage is the mean of the bimester averages that count as data.
func (a Aggregator) FinalAverage(book Book, criteria []Criterion, studentID string) (float64, bool) {
	var sum float64
	var n int
	for bim := 1; bim <= NumBimesters; bim++ {
		if avg, ok := a.BimesterResult(book, criteria, studentID, bim); ok {
			sum += avg
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
