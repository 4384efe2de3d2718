package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"school_admin/backend/internal/access"
	"school_admin/backend/internal/gateway/handlers"
	"school_admin/backend/internal/gateway/util"
	"school_admin/backend/internal/shared"
)

// SetupRoutes configures the Chi router, middleware, and route handlers.
func SetupRoutes(svcs *Services, cfg *shared.ServiceConfig, logger *zap.Logger) *chi.Mux {
	util.SetLogger(logger)
	r := chi.NewRouter()

	// 1. Global Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSONError(w, http.StatusNotFound, "ruta no encontrada")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSONError(w, http.StatusMethodNotAllowed, "método no permitido")
	})

	// 2. Initialize Handlers
	authHandler := &handlers.AuthHandler{Auth: svcs.Auth}
	teacherHandler := &handlers.TeacherHandler{Teachers: svcs.Teachers}
	groupHandler := &handlers.GroupHandler{Groups: svcs.Groups}
	gradeHandler := &handlers.GradeHandler{Grades: svcs.Grades}
	attendanceHandler := &handlers.AttendanceHandler{Attendance: svcs.Attendance}
	scheduleHandler := &handlers.ScheduleHandler{Schedules: svcs.Schedules}
	mailHandler := &handlers.MailHandler{Mailer: svcs.Mailer}

	// --- Public Routes ---
	r.Post("/auth/login", authHandler.Login)
	r.Post("/auth/forgot-password", authHandler.ForgotPassword)
	r.Post("/auth/reset-password", authHandler.ResetPassword)

	// --- Protected Routes (Require Valid Token) ---
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(svcs.Tokens))

		r.With(Require(access.Users, access.Write)).Post("/auth/register", authHandler.Register)

		r.Route("/profesores", func(r chi.Router) {
			// before /{id}
			r.Get("/mi-perfil", authHandler.GetProfile)
			r.Put("/mi-perfil", authHandler.UpdateProfile)

			r.With(Require(access.Users, access.Read)).Get("/", teacherHandler.ListTeachers)
			r.With(Require(access.Users, access.Read)).Get("/{id}", teacherHandler.GetTeacher)
			r.With(Require(access.Users, access.Write)).Put("/{id}/asignaturas", teacherHandler.UpdateSubjects)
			r.With(Require(access.Users, access.Delete)).Delete("/{id}", teacherHandler.DeleteTeacher)
		})

		r.Route("/grupos", func(r chi.Router) {
			r.Get("/mis-grupos", groupHandler.MyGroups)

			r.With(Require(access.Groups, access.Write)).Post("/", groupHandler.CreateGroup)
			r.With(Require(access.Groups, access.Read)).Get("/", groupHandler.ListGroups)
			r.With(Require(access.Groups, access.Write)).Put("/{id}", groupHandler.UpdateGroup)
			r.With(Require(access.Groups, access.Write)).Put("/{id}/asignar-profesores", groupHandler.AssignTeachers)
			r.With(Require(access.Groups, access.Delete)).Delete("/{id}", groupHandler.DeleteGroup)
			r.With(Require(access.Groups, access.Read)).Get("/{id}/calificaciones-admin", groupHandler.ConsolidatedGrades)
			r.With(Require(access.Reports, access.Read)).Get("/{id}/reporte.pdf", groupHandler.GroupReportPDF)
			r.With(Require(access.Reports, access.Read)).Get("/{id}/alumnos/{studentId}/boleta.pdf", groupHandler.StudentCardPDF)
		})

		// Ownership of a single record is checked by the service.
		r.Route("/calificaciones", func(r chi.Router) {
			r.Get("/", gradeHandler.GetGrades)
			r.Post("/", gradeHandler.SaveGrades)
			r.With(Require(access.Grades, access.Delete)).Delete("/", gradeHandler.DeleteGrades)
			r.With(Require(access.Grades, access.Read)).Get("/all", gradeHandler.ListAllGrades)
		})

		r.Route("/attendance", func(r chi.Router) {
			r.Get("/", attendanceHandler.GetAttendance)
			r.Put("/", attendanceHandler.PutAttendance)
			r.Post("/toggle", attendanceHandler.ToggleMark)
			r.Post("/extend", attendanceHandler.ExtendDays)
			r.Get("/tally", attendanceHandler.Tally)
			r.Get("/reporte.pdf", attendanceHandler.AttendancePDF)
		})

		r.Route("/horario", func(r chi.Router) {
			r.With(Require(access.Schedules, access.Write)).Post("/", scheduleHandler.SaveSchedule)
			r.With(Require(access.Schedules, access.Read)).Get("/", scheduleHandler.ListSchedules)
			r.With(Require(access.Schedules, access.Read)).Get("/{anio}", scheduleHandler.GetSchedule)
			r.With(Require(access.Schedules, access.Delete)).Delete("/{anio}", scheduleHandler.DeleteSchedule)
		})

		r.With(Require(access.Reports, access.Send)).Post("/api/enviar-boleta", mailHandler.SendReportCard)
	})

	return r
}

// AuthMiddleware validates the bearer token and stores the caller in the
// request context.
func AuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Extract Token
			tokenStr, err := util.ExtractToken(r)
			if err != nil {
				util.WriteJSONError(w, http.StatusUnauthorized, "se requiere token de autorización")
				return
			}

			// 2. Validate
			user, err := tokens.ValidateToken(tokenStr)
			if err != nil {
				util.HandleServiceError(w, err)
				return
			}

			// 3. Inject User into Context
			next.ServeHTTP(w, r.WithContext(util.WithUser(r.Context(), user)))
		})
	}
}

// Require rejects callers the role policy does not allow to perform action
// on any resource of the given kind.
func Require(kind access.Kind, action access.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := util.UserFrom(r)
			if user == nil {
				util.WriteJSONError(w, http.StatusUnauthorized, "no autenticado")
				return
			}
			if !access.CanAccess(user, access.On(kind), action) {
				util.WriteJSONError(w, http.StatusForbidden, "no tienes permiso para esta operación")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request through zap.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
