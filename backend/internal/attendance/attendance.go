// Package attendance encodes daily attendance marks as a sparse flat map
// keyed by "studentId-bB-dD" and computes rollups over it.
package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultDays is the day ceiling of a bimester nobody has extended yet.
	DefaultDays = 30
	// DefaultIncrement is how many days ExtendDays adds when asked for 0.
	DefaultIncrement = 5
	// MaxDays bounds a bimester's day ceiling.
	MaxDays = 100

	NumBimesters = 3
)

// Status is the mark recorded for one student on one day.
type Status string

const (
	Unmarked Status = ""
	Present  Status = "P"
	Absent   Status = "F"
)

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	return s == Unmarked || s == Present || s == Absent
}

// CycleMark advances one step: unmarked → P → F → unmarked.
// Unknown values restart the cycle at P.
func CycleMark(s Status) Status {
	switch s {
	case Unmarked:
		return Present
	case Present:
		return Absent
	default:
		return Unmarked
	}
}

// Key formats the map key for one (student, bimester, day) triple.
func Key(studentID string, bimester, day int) string {
	return fmt.Sprintf("%s-b%d-d%d", studentID, bimester, day)
}

// ParseKey decodes a key built by Key. Student ids may themselves contain '-',
// so the bimester and day suffixes are read from the right. Keys Key would not
// produce, such as "s1-b01-d002", are rejected.
func ParseKey(key string) (studentID string, bimester, day int, err error) {
	dIdx := strings.LastIndex(key, "-d")
	if dIdx < 0 {
		return "", 0, 0, fmt.Errorf("attendance key %q: missing day", key)
	}
	day, err = strconv.Atoi(key[dIdx+2:])
	if err != nil || day < 1 {
		return "", 0, 0, fmt.Errorf("attendance key %q: invalid day", key)
	}

	rest := key[:dIdx]
	bIdx := strings.LastIndex(rest, "-b")
	if bIdx < 0 {
		return "", 0, 0, fmt.Errorf("attendance key %q: missing bimester", key)
	}
	bimester, err = strconv.Atoi(rest[bIdx+2:])
	if err != nil || bimester < 1 || bimester > NumBimesters {
		return "", 0, 0, fmt.Errorf("attendance key %q: invalid bimester", key)
	}

	studentID = rest[:bIdx]
	if studentID == "" {
		return "", 0, 0, fmt.Errorf("attendance key %q: missing student id", key)
	}
	if Key(studentID, bimester, day) != key {
		return "", 0, 0, fmt.Errorf("attendance key %q: not in canonical form", key)
	}
	return studentID, bimester, day, nil
}

// Mark is one stored entry. Its date is the day the mark was last changed.
type Mark struct {
	Status Status    `bson:"status" json:"status"`
	Date   time.Time `bson:"date" json:"date"`
}

// Tally counts the marks of one student in one bimester.
type Tally struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
}

// Sheet is the mutable attendance state of one (group, teacher, subject) record.
type Sheet struct {
	Entries map[string]Mark
	Days    map[string]int
}

// NewSheet wraps the given maps, allocating the ones that are nil.
func NewSheet(entries map[string]Mark, days map[string]int) *Sheet {
	if entries == nil {
		entries = make(map[string]Mark)
	}
	if days == nil {
		days = make(map[string]int)
	}
	return &Sheet{Entries: entries, Days: days}
}

// Status returns the current mark; a missing key is Unmarked.
func (s *Sheet) Status(studentID string, bimester, day int) Status {
	return s.Entries[Key(studentID, bimester, day)].Status
}

// Toggle advances the mark for one day and returns the new status.
// Returning to Unmarked deletes the key.
func (s *Sheet) Toggle(studentID string, bimester, day int, now time.Time) Status {
	key := Key(studentID, bimester, day)
	next := CycleMark(s.Entries[key].Status)
	if next == Unmarked {
		delete(s.Entries, key)
		return next
	}
	s.Entries[key] = Mark{Status: next, Date: now}
	return next
}

// DaysIn is the day ceiling configured for the bimester, DefaultDays when
// unset, never more than MaxDays.
func (s *Sheet) DaysIn(bimester int) int {
	if n, ok := s.Days[strconv.Itoa(bimester)]; ok && n > 0 {
		return min(n, MaxDays)
	}
	return DefaultDays
}

// Tally counts P and F marks over days 1..DaysIn(bimester). Marks beyond the
// ceiling are kept in the map but never counted.
func (s *Sheet) Tally(studentID string, bimester int) Tally {
	var t Tally
	for day := 1; day <= s.DaysIn(bimester); day++ {
		switch s.Status(studentID, bimester, day) {
		case Present:
			t.Present++
		case Absent:
			t.Absent++
		}
	}
	return t
}

// ErrTooManyDays is returned when a bimester would exceed MaxDays.
var ErrTooManyDays = fmt.Errorf("a bimester cannot have more than %d days", MaxDays)

// ExtendDays raises the bimester's ceiling by increment (DefaultIncrement when
// 0) and returns the new ceiling. Negative increments change nothing.
func (s *Sheet) ExtendDays(bimester, increment int) (int, error) {
	current := s.DaysIn(bimester)
	if increment == 0 {
		increment = DefaultIncrement
	}
	if increment < 0 {
		return current, nil
	}
	if increment > MaxDays-current {
		return current, ErrTooManyDays
	}
	s.Days[strconv.Itoa(bimester)] = current + increment
	return current + increment, nil
}

// Validate checks that every entry decodes and carries P or F, and that every
// configured day count belongs to a known bimester and lies in [0, MaxDays].
// A count of 0 means the bimester still runs on DefaultDays.
func (s *Sheet) Validate() error {
	for key, mark := range s.Entries {
		if _, _, _, err := ParseKey(key); err != nil {
			return err
		}
		if mark.Status != Present && mark.Status != Absent {
			return fmt.Errorf("attendance key %q: invalid status %q", key, mark.Status)
		}
	}
	for bim, n := range s.Days {
		b, err := strconv.Atoi(bim)
		if err != nil || b < 1 || b > NumBimesters || strconv.Itoa(b) != bim {
			return fmt.Errorf("invalid bimester %q in day counts", bim)
		}
		if n < 0 {
			return fmt.Errorf("bimester %s: day count cannot be negative", bim)
		}
		if n > MaxDays {
			return fmt.Errorf("bimester %s: %w", bim, ErrTooManyDays)
		}
	}
	return nil
}
