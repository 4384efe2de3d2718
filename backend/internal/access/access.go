// Package access holds the single role policy every handler consults before
// touching a resource.
package access

import "slices"

const (
	RoleAdmin   = "admin"
	RoleTeacher = "profesor"
)

// Principal is the authenticated caller, as carried by the JWT.
type Principal struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// IsAdmin reports whether the caller has the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Kind names a family of resources.
type Kind string

const (
	Users      Kind = "users"   // accounts: register, list, subjects, delete
	Profile    Kind = "profile" // the caller's own account
	Groups     Kind = "groups"
	Grades     Kind = "grades"
	Attendance Kind = "attendance"
	Schedules  Kind = "schedules"
	Reports    Kind = "reports" // rendered PDFs and report-card email
)

// Action is what the caller wants to do with the resource.
type Action string

const (
	Read   Action = "read"
	Write  Action = "write"
	Delete Action = "delete"
	Send   Action = "send"
)

// Resource identifies what is being accessed. OwnerID is the account a
// profile or attendance record belongs to; Assignees are the teachers
// assigned to the group (or group subject) in question.
type Resource struct {
	Kind      Kind
	OwnerID   string
	Assignees []string
}

// On is shorthand for a resource with no ownership information.
func On(kind Kind) Resource {
	return Resource{Kind: kind}
}

// CanAccess reports whether user may perform action on resource.
// Admins may do everything; anonymous callers nothing.
func CanAccess(user *Principal, resource Resource, action Action) bool {
	if user == nil || user.ID == "" {
		return false
	}
	switch user.Role {
	case RoleAdmin:
		return true
	case RoleTeacher:
		return teacherCan(user, resource, action)
	default:
		return false
	}
}

func teacherCan(user *Principal, r Resource, action Action) bool {
	switch r.Kind {
	case Profile:
		return r.OwnerID == user.ID && (action == Read || action == Write)
	case Groups:
		return action == Read && slices.Contains(r.Assignees, user.ID)
	case Grades:
		return (action == Read || action == Write) && slices.Contains(r.Assignees, user.ID)
	case Attendance:
		return (action == Read || action == Write) && r.OwnerID == user.ID
	case Schedules:
		return action == Read
	case Reports:
		return action == Send
	default:
		return false
	}
}
