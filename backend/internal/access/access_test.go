package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanAccess(t *testing.T) {
	admin := &Principal{ID: "a1", Role: RoleAdmin}
	teacher := &Principal{ID: "t1", Role: RoleTeacher}
	other := &Principal{ID: "t2", Role: RoleTeacher}

	own := []string{"t1"}

	tests := []struct {
		name     string
		user     *Principal
		resource Resource
		action   Action
		want     bool
	}{
		{"anonymous", nil, On(Schedules), Read, false},
		{"empty principal", &Principal{}, On(Schedules), Read, false},
		{"unknown role", &Principal{ID: "x", Role: "alumno"}, On(Schedules), Read, false},

		{"admin deletes users", admin, On(Users), Delete, true},
		{"admin reads others' attendance", admin, Resource{Kind: Attendance, OwnerID: "t1"}, Read, true},
		{"admin deletes grades", admin, On(Grades), Delete, true},

		{"teacher cannot manage users", teacher, On(Users), Write, false},
		{"teacher reads own profile", teacher, Resource{Kind: Profile, OwnerID: "t1"}, Read, true},
		{"teacher edits own profile", teacher, Resource{Kind: Profile, OwnerID: "t1"}, Write, true},
		{"teacher cannot edit someone else", teacher, Resource{Kind: Profile, OwnerID: "t2"}, Write, false},

		{"teacher reads assigned group", teacher, Resource{Kind: Groups, Assignees: own}, Read, true},
		{"teacher cannot read foreign group", other, Resource{Kind: Groups, Assignees: own}, Read, false},
		{"teacher cannot write groups", teacher, Resource{Kind: Groups, Assignees: own}, Write, false},

		{"teacher writes assigned grades", teacher, Resource{Kind: Grades, Assignees: own}, Write, true},
		{"teacher cannot write foreign grades", other, Resource{Kind: Grades, Assignees: own}, Write, false},
		{"teacher cannot delete grades", teacher, Resource{Kind: Grades, Assignees: own}, Delete, false},

		{"teacher writes own attendance", teacher, Resource{Kind: Attendance, OwnerID: "t1"}, Write, true},
		{"teacher cannot read foreign attendance", teacher, Resource{Kind: Attendance, OwnerID: "t2"}, Read, false},

		{"teacher reads schedules", teacher, On(Schedules), Read, true},
		{"teacher cannot write schedules", teacher, On(Schedules), Write, false},

		{"teacher sends report cards", teacher, On(Reports), Send, true},
		{"teacher cannot render group reports", teacher, On(Reports), Read, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccess(tt.user, tt.resource, tt.action))
		})
	}
}

func TestIsAdmin(t *testing.T) {
	var nobody *Principal
	assert.False(t, nobody.IsAdmin())
	assert.True(t, (&Principal{ID: "a", Role: RoleAdmin}).IsAdmin())
	assert.False(t, (&Principal{ID: "t", Role: RoleTeacher}).IsAdmin())
}
