package handlers

import (
	"context"

	"school_admin/backend/internal/access"
	"school_admin/backend/internal/attendancesvc"
	"school_admin/backend/internal/auth"
	"school_admin/backend/internal/grade"
	"school_admin/backend/internal/gradebook"
	"school_admin/backend/internal/group"
	"school_admin/backend/internal/report"
	"school_admin/backend/internal/schedule"
	"school_admin/backend/internal/shared"
)

// The handlers depend on these narrow views of the services so they can be
// exercised with fakes.

type AuthService interface {
	Login(ctx context.Context, req *auth.LoginRequest) (*auth.LoginResponse, error)
	Register(ctx context.Context, req *auth.RegisterRequest) (*shared.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req *auth.ResetPasswordRequest) error
	GetProfile(ctx context.Context, caller *access.Principal) (*shared.User, error)
	UpdateProfile(ctx context.Context, caller *access.Principal, req *auth.UpdateProfileRequest) (*shared.User, error)
}

type TeacherService interface {
	List(ctx context.Context) ([]shared.User, error)
	Get(ctx context.Context, id string) (*shared.User, error)
	UpdateSubjects(ctx context.Context, id string, subjects []string) ([]string, error)
	Delete(ctx context.Context, id string) error
}

type GroupService interface {
	Create(ctx context.Context, req *group.SaveGroupRequest) (*shared.Group, error)
	List(ctx context.Context) ([]shared.GroupWithTeachers, error)
	Mine(ctx context.Context, caller *access.Principal) ([]shared.GroupWithTeachers, error)
	Update(ctx context.Context, id string, req *group.UpdateGroupRequest) (*shared.Group, error)
	AssignTeachers(ctx context.Context, id string, req *group.AssignTeachersRequest) (*shared.Group, error)
	Delete(ctx context.Context, id string) (*group.DeleteResult, error)
	Consolidated(ctx context.Context, id string) (gradebook.Report, *shared.Group, error)
	Aggregator() gradebook.Aggregator
}

type GradeService interface {
	Get(ctx context.Context, caller *access.Principal, groupID, subject string) (*shared.GradeRecord, error)
	Save(ctx context.Context, caller *access.Principal, groupID, subject string, req *grade.SaveRequest) (*grade.SaveResult, error)
	Delete(ctx context.Context, groupID, subject string) error
	ListAll(ctx context.Context) ([]shared.GradeRecordWithGroup, error)
}

type AttendanceService interface {
	Get(ctx context.Context, caller *access.Principal, q attendancesvc.Query) (*shared.AttendanceRecord, error)
	Put(ctx context.Context, caller *access.Principal, req *attendancesvc.PutRequest) (*shared.AttendanceRecord, error)
	Toggle(ctx context.Context, caller *access.Principal, req *attendancesvc.ToggleRequest) (*attendancesvc.ToggleResult, error)
	Extend(ctx context.Context, caller *access.Principal, req *attendancesvc.ExtendRequest) (*attendancesvc.ExtendResult, error)
	Tally(ctx context.Context, caller *access.Principal, q attendancesvc.Query, bimester int) (*attendancesvc.TallyResult, error)
	Sheet(ctx context.Context, caller *access.Principal, q attendancesvc.Query) (*shared.Group, *shared.AttendanceRecord, error)
}

type ScheduleService interface {
	Save(ctx context.Context, req *schedule.SaveRequest) (*shared.Schedule, error)
	Get(ctx context.Context, year string) (*shared.Schedule, error)
	List(ctx context.Context) ([]schedule.Summary, error)
	Delete(ctx context.Context, year string) error
}

type CardSender interface {
	Send(ctx context.Context, req *report.SendCardRequest) error
}
