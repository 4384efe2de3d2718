// ============================================================================
// backend/internal/shared/models.go
// Shared data models and structs for MongoDB documents
// ============================================================================

package shared

import (
	"slices"
	"strings"
	"time"

	"school_admin/backend/internal/access"
	"school_admin/backend/internal/attendance"
	"school_admin/backend/internal/gradebook"
)

// ============================================================================
// User Models
// ============================================================================

// User is an account: an admin or a teacher.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Age          int       `bson:"age" json:"age"`
	Sex          string    `bson:"sex" json:"sex"`
	Phone        string    `bson:"phone" json:"phone"`
	Email        string    `bson:"email" json:"email"`
	PhotoURL     string    `bson:"photo_url,omitempty" json:"photo_url"`
	Role         string    `bson:"role" json:"role"`
	PasswordHash string    `bson:"password_hash" json:"-"` // Never expose in JSON
	Subjects     []string  `bson:"subjects" json:"subjects"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Principal returns the access identity of the user.
func (u *User) Principal() *access.Principal {
	return &access.Principal{ID: u.ID, Role: u.Role}
}

// Photo returns the stored photo URL or the default placeholder.
func (u *User) Photo() string {
	if u.PhotoURL == "" {
		return DefaultPhotoURL
	}
	return u.PhotoURL
}

// ============================================================================
// Group Models
// ============================================================================

// Student is one entry of a group's roster.
type Student struct {
	ID               string `bson:"_id" json:"id"`
	FirstName        string `bson:"first_name" json:"first_name" validate:"notblank"`
	LastNamePaternal string `bson:"last_name_paternal" json:"last_name_paternal" validate:"notblank"`
	LastNameMaternal string `bson:"last_name_maternal" json:"last_name_maternal"`
}

// FullName formats the student as "Paternal Maternal, First".
func (s Student) FullName() string {
	last := strings.TrimSpace(s.LastNamePaternal + " " + s.LastNameMaternal)
	return last + ", " + s.FirstName
}

// TeacherAssignment pairs a teacher with a subject they teach in a group.
type TeacherAssignment struct {
	TeacherID string `bson:"teacher_id" json:"teacher_id"`
	Subject   string `bson:"subject" json:"subject"`
}

// Group is a class of students plus the teachers assigned to it.
type Group struct {
	ID                 string              `bson:"_id" json:"id"`
	Name               string              `bson:"name" json:"name"`
	Students           []Student           `bson:"students" json:"students"`
	TeacherAssignments []TeacherAssignment `bson:"teacher_assignments" json:"teacher_assignments"`
	CreatedAt          time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// StudentIDs returns the roster ids in roster order.
func (g *Group) StudentIDs() []string {
	ids := make([]string, 0, len(g.Students))
	for _, s := range g.Students {
		ids = append(ids, s.ID)
	}
	return ids
}

// FindStudent looks a student up by id.
func (g *Group) FindStudent(id string) (Student, bool) {
	for _, s := range g.Students {
		if s.ID == id {
			return s, true
		}
	}
	return Student{}, false
}

// TeacherIDs returns every teacher assigned to the group, without duplicates.
func (g *Group) TeacherIDs() []string {
	var ids []string
	for _, a := range g.TeacherAssignments {
		if !slices.Contains(ids, a.TeacherID) {
			ids = append(ids, a.TeacherID)
		}
	}
	return ids
}

// AssigneesFor returns the teachers assigned to one subject of the group.
func (g *Group) AssigneesFor(subject string) []string {
	var ids []string
	for _, a := range g.TeacherAssignments {
		if a.Subject == subject && !slices.Contains(ids, a.TeacherID) {
			ids = append(ids, a.TeacherID)
		}
	}
	return ids
}

// GroupWithTeachers is a group plus the public profile of its assigned teachers.
type GroupWithTeachers struct {
	Group    `bson:",inline"`
	Teachers []TeacherSummary `json:"teachers"`
}

// TeacherSummary is the subset of a teacher shown alongside a group.
type TeacherSummary struct {
	ID       string `bson:"_id" json:"id"`
	Name     string `bson:"name" json:"name"`
	Email    string `bson:"email" json:"email"`
	PhotoURL string `bson:"photo_url,omitempty" json:"photo_url"`
}

// ============================================================================
// Grade Models
// ============================================================================

// GradeRecord holds every score of one subject in one group.
type GradeRecord struct {
	ID        string                `bson:"_id" json:"id"`
	GroupID   string                `bson:"group_id" json:"group_id"`
	Subject   string                `bson:"subject" json:"subject"`
	Criteria  []gradebook.Criterion `bson:"criteria" json:"criteria"`
	Grades    gradebook.Book        `bson:"grades" json:"grades"`
	UpdatedAt time.Time             `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// SubjectGrades adapts the record for the aggregator.
func (r *GradeRecord) SubjectGrades() gradebook.SubjectGrades {
	return gradebook.SubjectGrades{Subject: r.Subject, Criteria: r.Criteria, Book: r.Grades}
}

// GradeRecordWithGroup adds the group name for admin listings.
type GradeRecordWithGroup struct {
	GradeRecord `bson:",inline"`
	GroupName   string `bson:"group_name,omitempty" json:"group_name"`
}

// ============================================================================
// Attendance Models
// ============================================================================

// AttendanceRecord holds one teacher's attendance sheet for one subject of a group.
type AttendanceRecord struct {
	ID              string                     `bson:"_id" json:"id"`
	GroupID         string                     `bson:"group_id" json:"group_id"`
	TeacherID       string                     `bson:"teacher_id" json:"teacher_id"`
	Subject         string                     `bson:"subject" json:"subject"`
	Entries         map[string]attendance.Mark `bson:"entries" json:"entries"`
	DaysPerBimester map[string]int             `bson:"days_per_bimester" json:"days_per_bimester"`
	UpdatedAt       time.Time                  `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Sheet exposes the record's maps to the attendance codec. Changes made
// through the sheet are visible on the record.
func (r *AttendanceRecord) Sheet() *attendance.Sheet {
	sheet := attendance.NewSheet(r.Entries, r.DaysPerBimester)
	r.Entries, r.DaysPerBimester = sheet.Entries, sheet.Days
	return sheet
}

// ============================================================================
// Schedule Models
// ============================================================================

// Schedule is the timetable of one school year.
type Schedule struct {
	ID        string                 `bson:"_id" json:"id"`
	Year      string                 `bson:"year" json:"year"`
	CellData  map[string]interface{} `bson:"cell_data" json:"cell_data"`
	Legend    map[string]interface{} `bson:"legend" json:"legend"`
	ImageURL  string                 `bson:"image_url,omitempty" json:"image_url"`
	UpdatedAt time.Time              `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// ============================================================================
// Constants
// ============================================================================

const (
	// User roles
	RoleAdmin   = access.RoleAdmin
	RoleTeacher = access.RoleTeacher

	// Sex values accepted on accounts
	SexMale   = "Masculino"
	SexFemale = "Femenino"
	SexOther  = "Otro"

	MinUserAge        = 18
	MinPasswordLength = 6

	DefaultPhotoURL = "/uploads/fotos/default.png"

	// NewStudentPrefix marks roster entries the client created locally.
	NewStudentPrefix = "new-"
)
