package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"school_admin/backend/internal/access"
	"school_admin/backend/internal/attendancesvc"
	"school_admin/backend/internal/auth"
	"school_admin/backend/internal/gateway/handlers"
	"school_admin/backend/internal/gradebook"
	"school_admin/backend/internal/report"
	"school_admin/backend/internal/schedule"
	"school_admin/backend/internal/shared"
)

// ============================================================================
// Fakes
// ============================================================================

type validatorFunc func(string) (*access.Principal, error)

func (f validatorFunc) ValidateToken(token string) (*access.Principal, error) { return f(token) }

var (
	adminUser   = &access.Principal{ID: "a1", Role: access.RoleAdmin}
	teacherUser = &access.Principal{ID: "t1", Role: access.RoleTeacher}
)

func tokens() TokenValidator {
	return validatorFunc(func(token string) (*access.Principal, error) {
		switch token {
		case "admin-token":
			return adminUser, nil
		case "teacher-token":
			return teacherUser, nil
		}
		return nil, status.Error(codes.Unauthenticated, "token inválido o expirado")
	})
}

type fakeAuth struct{ handlers.AuthService }

func (fakeAuth) Login(_ context.Context, req *auth.LoginRequest) (*auth.LoginResponse, error) {
	if req.Password != "secreto" {
		return nil, status.Error(codes.Unauthenticated, "credenciales inválidas")
	}
	return &auth.LoginResponse{Token: "admin-token", User: &shared.User{ID: "a1", Role: access.RoleAdmin}}, nil
}

type fakeGroups struct {
	handlers.GroupService
	group  *shared.Group
	rep    gradebook.Report
	caller *access.Principal
}

func (f *fakeGroups) List(context.Context) ([]shared.GroupWithTeachers, error) {
	return []shared.GroupWithTeachers{{Group: *f.group}}, nil
}

func (f *fakeGroups) Mine(_ context.Context, caller *access.Principal) ([]shared.GroupWithTeachers, error) {
	f.caller = caller
	return []shared.GroupWithTeachers{{Group: *f.group}}, nil
}

func (f *fakeGroups) Consolidated(_ context.Context, id string) (gradebook.Report, *shared.Group, error) {
	if id != f.group.ID {
		return nil, nil, status.Error(codes.NotFound, "grupo no encontrado")
	}
	return f.rep, f.group, nil
}

func (f *fakeGroups) Aggregator() gradebook.Aggregator { return gradebook.Aggregator{} }

type fakeGrades struct {
	handlers.GradeService
	err              error
	groupID, subject string
}

func (f *fakeGrades) Get(_ context.Context, _ *access.Principal, groupID, subject string) (*shared.GradeRecord, error) {
	f.groupID, f.subject = groupID, subject
	if f.err != nil {
		return nil, f.err
	}
	return &shared.GradeRecord{GroupID: groupID, Subject: subject}, nil
}

func (f *fakeGrades) ListAll(context.Context) ([]shared.GradeRecordWithGroup, error) {
	return nil, nil
}

type fakeAttendance struct {
	handlers.AttendanceService
	query    attendancesvc.Query
	bimester int
}

func (f *fakeAttendance) Get(_ context.Context, _ *access.Principal, q attendancesvc.Query) (*shared.AttendanceRecord, error) {
	f.query = q
	return nil, nil
}

func (f *fakeAttendance) Tally(_ context.Context, _ *access.Principal, q attendancesvc.Query, bimester int) (*attendancesvc.TallyResult, error) {
	f.query, f.bimester = q, bimester
	return &attendancesvc.TallyResult{Bimester: bimester, Days: 30}, nil
}

type fakeSchedules struct{ handlers.ScheduleService }

func (fakeSchedules) List(context.Context) ([]schedule.Summary, error) {
	return []schedule.Summary{{Year: "2024-2025"}}, nil
}

type fakeMailer struct{ sent *report.SendCardRequest }

func (f *fakeMailer) Send(_ context.Context, req *report.SendCardRequest) error {
	f.sent = req
	return nil
}

// ============================================================================
// Test environment
// ============================================================================

type testEnv struct {
	router     http.Handler
	groups     *fakeGroups
	grades     *fakeGrades
	attendance *fakeAttendance
	mailer     *fakeMailer
}

func setupTestEnv() *testEnv {
	v := 8.5
	env := &testEnv{
		groups: &fakeGroups{
			group: &shared.Group{
				ID:       "g1",
				Name:     "1A",
				Students: []shared.Student{{ID: "s1", FirstName: "Ana", LastNamePaternal: "López"}},
			},
			rep: gradebook.Report{"s1": {"Matemáticas": {&v, nil, nil}}},
		},
		grades:     &fakeGrades{},
		attendance: &fakeAttendance{},
		mailer:     &fakeMailer{},
	}

	svcs := &Services{
		Tokens:     tokens(),
		Auth:       fakeAuth{},
		Groups:     env.groups,
		Grades:     env.grades,
		Attendance: env.attendance,
		Schedules:  fakeSchedules{},
		Mailer:     env.mailer,
	}
	cfg := &shared.ServiceConfig{CORS: shared.CORSConfig{
		AllowedOrigins: []string{"http://localhost:5173"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}}
	env.router = SetupRoutes(svcs, cfg, zap.NewNop())
	return env
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (env *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	var resp envelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	}
	return rr, resp
}

// ============================================================================
// Tests
// ============================================================================

func TestRoutes_Login(t *testing.T) {
	env := setupTestEnv()

	t.Run("Success", func(t *testing.T) {
		rr, resp := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"identifier": "admin@escuela.mx", "password": "secreto"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.True(t, resp.Success)

		var data auth.LoginResponse
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		assert.Equal(t, "admin-token", data.Token)
	})

	t.Run("Wrong Password", func(t *testing.T) {
		rr, resp := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"identifier": "admin@escuela.mx", "password": "x"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, resp.Success)
		assert.Equal(t, "credenciales inválidas", resp.Message)
	})
}

func TestRoutes_Authentication(t *testing.T) {
	env := setupTestEnv()

	rr, resp := env.do(t, http.MethodGet, "/grupos", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, resp.Success)

	rr, _ = env.do(t, http.MethodGet, "/grupos", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, _ = env.do(t, http.MethodGet, "/grupos", "admin-token", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRoutes_RolePolicy(t *testing.T) {
	env := setupTestEnv()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"teacher lists all groups", http.MethodGet, "/grupos", "teacher-token", http.StatusForbidden},
		{"teacher lists own groups", http.MethodGet, "/grupos/mis-grupos", "teacher-token", http.StatusOK},
		{"teacher consolidated grades", http.MethodGet, "/grupos/g1/calificaciones-admin", "teacher-token", http.StatusForbidden},
		{"admin consolidated grades", http.MethodGet, "/grupos/g1/calificaciones-admin", "admin-token", http.StatusOK},
		{"teacher lists teachers", http.MethodGet, "/profesores", "teacher-token", http.StatusForbidden},
		{"teacher registers account", http.MethodPost, "/auth/register", "teacher-token", http.StatusForbidden},
		{"teacher all grades", http.MethodGet, "/calificaciones/all", "teacher-token", http.StatusForbidden},
		{"admin all grades", http.MethodGet, "/calificaciones/all", "admin-token", http.StatusOK},
		{"teacher deletes grades", http.MethodDelete, "/calificaciones?grupoId=g1&asignatura=Historia", "teacher-token", http.StatusForbidden},
		{"teacher reads schedules", http.MethodGet, "/horario", "teacher-token", http.StatusOK},
		{"teacher saves schedule", http.MethodPost, "/horario", "teacher-token", http.StatusForbidden},
		{"teacher group PDF", http.MethodGet, "/grupos/g1/reporte.pdf", "teacher-token", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, _ := env.do(t, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}

	assert.Equal(t, teacherUser, env.groups.caller)
}

func TestRoutes_Grades(t *testing.T) {
	env := setupTestEnv()

	rr, resp := env.do(t, http.MethodGet, "/calificaciones?grupoId=g1&asignatura=Historia", "teacher-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "g1", env.grades.groupID)
	assert.Equal(t, "Historia", env.grades.subject)

	env.grades.err = status.Error(codes.PermissionDenied, "no estás asignado a esta asignatura")
	rr, resp = env.do(t, http.MethodGet, "/calificaciones?grupoId=g1&asignatura=Historia", "teacher-token", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "no estás asignado a esta asignatura", resp.Message)

	env.grades.err = status.Error(codes.NotFound, "grupo no encontrado")
	rr, _ = env.do(t, http.MethodGet, "/calificaciones?grupoId=x&asignatura=Historia", "admin-token", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRoutes_Attendance(t *testing.T) {
	env := setupTestEnv()

	t.Run("Missing Sheet", func(t *testing.T) {
		rr, resp := env.do(t, http.MethodGet, "/attendance?groupId=g1&asignatura=Historia&profesorId=t9", "admin-token", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, resp.Success)
		assert.Empty(t, resp.Data)
		assert.Equal(t, attendancesvc.Query{GroupID: "g1", Subject: "Historia", TeacherID: "t9"}, env.attendance.query)
	})

	t.Run("Tally", func(t *testing.T) {
		rr, _ := env.do(t, http.MethodGet, "/attendance/tally?groupId=g1&asignatura=Historia&bimestre=2", "teacher-token", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 2, env.attendance.bimester)
	})

	t.Run("Tally Bad Bimester", func(t *testing.T) {
		rr, resp := env.do(t, http.MethodGet, "/attendance/tally?groupId=g1&asignatura=Historia&bimestre=dos", "teacher-token", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.False(t, resp.Success)
	})
}

func TestRoutes_PDFs(t *testing.T) {
	env := setupTestEnv()

	rr, _ := env.do(t, http.MethodGet, "/grupos/g1/reporte.pdf", "admin-token", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF")))

	rr, _ = env.do(t, http.MethodGet, "/grupos/g1/alumnos/s1/boleta.pdf", "admin-token", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Disposition"), report.CardAttachmentName)

	rr, _ = env.do(t, http.MethodGet, "/grupos/g1/alumnos/s9/boleta.pdf", "admin-token", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = env.do(t, http.MethodGet, "/grupos/g9/reporte.pdf", "admin-token", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRoutes_SendReportCard(t *testing.T) {
	env := setupTestEnv()

	body := map[string]string{"to": "tutor@example.com", "subject": "Boleta", "pdfData": "JVBERi0="}
	rr, resp := env.do(t, http.MethodPost, "/api/enviar-boleta", "teacher-token", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, resp.Success)
	require.NotNil(t, env.mailer.sent)
	assert.Equal(t, "tutor@example.com", env.mailer.sent.To)
}

func TestRoutes_Fallbacks(t *testing.T) {
	env := setupTestEnv()

	t.Run("Unknown Route", func(t *testing.T) {
		rr, resp := env.do(t, http.MethodGet, "/nada", "", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.False(t, resp.Success)
	})

	t.Run("Malformed Body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{"))
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("CORS Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/grupos", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, req)
		assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
	})
}
