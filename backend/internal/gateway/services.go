package gateway

import (
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"school_admin/backend/internal/access"
	"school_admin/backend/internal/attendancesvc"
	"school_admin/backend/internal/auth"
	"school_admin/backend/internal/gateway/handlers"
	"school_admin/backend/internal/grade"
	"school_admin/backend/internal/group"
	"school_admin/backend/internal/report"
	"school_admin/backend/internal/resettoken"
	"school_admin/backend/internal/schedule"
	"school_admin/backend/internal/shared"
	"school_admin/backend/internal/teacher"
)

// TokenValidator resolves a bearer token to the caller it was issued for.
type TokenValidator interface {
	ValidateToken(token string) (*access.Principal, error)
}

// Services holds everything the router hands to its handlers.
// This struct is built once in main.go.
type Services struct {
	Tokens     TokenValidator
	Auth       handlers.AuthService
	Teachers   handlers.TeacherService
	Groups     handlers.GroupService
	Grades     handlers.GradeService
	Attendance handlers.AttendanceService
	Schedules  handlers.ScheduleService
	Mailer     handlers.CardSender
}

// NewServices builds the Mongo-backed services sharing one database handle.
func NewServices(db *mongo.Database, cfg *shared.ServiceConfig, resets *resettoken.Store, logger *zap.Logger) *Services {
	mailer := report.NewMailer(cfg.Email, logger.Named("mailer"))
	if !mailer.Enabled() {
		logger.Warn("SENDGRID_API_KEY not set; emails will only be logged")
	}

	authSvc := auth.NewService(db, cfg, resets, mailer, logger.Named("auth"))

	return &Services{
		Tokens:     authSvc,
		Auth:       authSvc,
		Teachers:   teacher.NewService(db, cfg, logger.Named("teacher")),
		Groups:     group.NewService(db, cfg, logger.Named("group")),
		Grades:     grade.NewService(db, cfg, logger.Named("grade")),
		Attendance: attendancesvc.NewService(db, cfg, logger.Named("attendance")),
		Schedules:  schedule.NewService(db, cfg, logger.Named("schedule")),
		Mailer:     mailer,
	}
}
