package gradebook

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValidateCriteria rejects blank or duplicated criterion names and
// percentages outside [0, 100]. The 100% total is not enforced here.
func ValidateCriteria(criteria []Criterion) error {
	seen := make(map[string]bool, len(criteria))
	for _, c := range criteria {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("criterion name is required")
		}
		if seen[name] {
			return fmt.Errorf("duplicate criterion %q", name)
		}
		seen[name] = true
		if c.Percentage < 0 || c.Percentage > 100 || math.IsNaN(c.Percentage) {
			return fmt.Errorf("criterion %q: percentage must be between 0 and 100", name)
		}
	}
	return nil
}

// Normalize drops erased (nil) task cells and empty maps, and validates what
// is left: bimesters 1..3, task indexes ≥ 0, scores in [0, 10]. Bimester and
// task keys are rewritten in canonical form ("01" becomes "1"); two keys that
// collapse to the same one are rejected.
func Normalize(book Book) (Book, error) {
	out := make(Book, len(book))
	for studentID, bimesters := range book {
		if strings.TrimSpace(studentID) == "" {
			return nil, fmt.Errorf("student id is required")
		}
		for rawBim, criteria := range bimesters {
			bim, err := strconv.Atoi(rawBim)
			if err != nil || bim < 1 || bim > NumBimesters {
				return nil, fmt.Errorf("student %s: invalid bimester %q", studentID, rawBim)
			}
			bimKey := BimesterKey(bim)
			for criterion, tasks := range criteria {
				for rawTask, entry := range tasks {
					idx, err := strconv.Atoi(rawTask)
					if err != nil || idx < 0 {
						return nil, fmt.Errorf("student %s: invalid task index %q", studentID, rawTask)
					}
					if entry == nil {
						continue
					}
					taskKey := strconv.Itoa(idx)
					if math.IsNaN(entry.Score) || entry.Score < MinScore || entry.Score > MaxScore {
						return nil, fmt.Errorf("student %s: score %v out of range [0,10]", studentID, entry.Score)
					}
					if out[studentID] == nil {
						out[studentID] = make(Bimesters)
					}
					if out[studentID][bimKey] == nil {
						out[studentID][bimKey] = make(CriterionScores)
					}
					if out[studentID][bimKey][criterion] == nil {
						out[studentID][bimKey][criterion] = make(Tasks)
					}
					if _, dup := out[studentID][bimKey][criterion][taskKey]; dup {
						return nil, fmt.Errorf("student %s: task %s of %q given twice", studentID, taskKey, criterion)
					}
					e := *entry
					out[studentID][bimKey][criterion][taskKey] = &e
				}
			}
		}
	}
	return out, nil
}
