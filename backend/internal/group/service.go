// Package group manages class groups: rosters, teacher assignments and the
// consolidated grade view built from every subject recorded for a group.
package group

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"school_admin/backend/internal/access"
	"school_admin/backend/internal/gradebook"
	"school_admin/backend/internal/shared"
)

// Service manages groups.
type Service struct {
	config        *shared.ServiceConfig
	groupsCol     *mongo.Collection
	usersCol      *mongo.Collection
	gradesCol     *mongo.Collection
	attendanceCol *mongo.Collection
	aggregator    gradebook.Aggregator
	logger        *zap.Logger
}

// NewService creates a new group Service
func NewService(db *mongo.Database, config *shared.ServiceConfig, logger *zap.Logger) *Service {
	return &Service{
		config:        config,
		groupsCol:     db.Collection(shared.GroupsCollection),
		usersCol:      db.Collection(shared.UsersCollection),
		gradesCol:     db.Collection(shared.GradesCollection),
		attendanceCol: db.Collection(shared.AttendanceCollection),
		aggregator:    gradebook.Aggregator{Policy: config.GradePolicy()},
		logger:        logger,
	}
}

// ============================================================================
// Request types
// ============================================================================

type SaveGroupRequest struct {
	Name     string           `json:"name" validate:"notblank"`
	Students []shared.Student `json:"students" validate:"dive"`
}

type UpdateGroupRequest struct {
	Name     string           `json:"name"`
	Students []shared.Student `json:"students" validate:"dive"`
}

type AssignTeachersRequest struct {
	Assignments []shared.TeacherAssignment `json:"assignments"`
}

// DeleteResult reports what a cascading group delete removed.
type DeleteResult struct {
	GradeRecords      int64 `json:"grade_records"`
	AttendanceRecords int64 `json:"attendance_records"`
}

// ============================================================================
// CRUD
// ============================================================================

// Create inserts a new group with a unique name.
func (s *Service) Create(ctx context.Context, req *SaveGroupRequest) (*shared.Group, error) {
	if err := shared.InvalidArgument(req); err != nil {
		return nil, err
	}
	students, err := normalizeRoster(req.Students)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	name := strings.TrimSpace(req.Name)
	if err := s.ensureNameFree(queryCtx, "", name); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	group := shared.Group{
		ID:                 shared.GenerateID(),
		Name:               name,
		Students:           students,
		TeacherAssignments: []shared.TeacherAssignment{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := s.groupsCol.InsertOne(queryCtx, group); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, status.Error(codes.AlreadyExists, "ya existe un grupo con ese nombre")
		}
		s.logger.Error("create group failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "error en el servidor al crear el grupo")
	}

	s.logger.Info("group created", zap.String("group_id", group.ID), zap.Int("students", len(students)))
	return &group, nil
}

// Get returns one group.
func (s *Service) Get(ctx context.Context, id string) (*shared.Group, error) {
	if strings.TrimSpace(id) == "" {
		return nil, status.Error(codes.InvalidArgument, "id de grupo requerido")
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	var group shared.Group
	if err := s.groupsCol.FindOne(queryCtx, bson.M{"_id": id}).Decode(&group); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, status.Error(codes.NotFound, "grupo no encontrado")
		}
		return nil, status.Error(codes.Internal, "error al obtener el grupo")
	}
	return &group, nil
}

// List returns every group with its assigned teachers.
func (s *Service) List(ctx context.Context) ([]shared.GroupWithTeachers, error) {
	return s.find(ctx, bson.M{})
}

// Mine returns the groups the caller teaches in.
func (s *Service) Mine(ctx context.Context, caller *access.Principal) ([]shared.GroupWithTeachers, error) {
	if caller == nil || caller.ID == "" {
		return nil, status.Error(codes.Unauthenticated, "id de profesor no válido o faltante en el token")
	}
	return s.find(ctx, bson.M{"teacher_assignments.teacher_id": caller.ID})
}

// Update renames a group and/or replaces its roster.
func (s *Service) Update(ctx context.Context, id string, req *UpdateGroupRequest) (*shared.Group, error) {
	if err := shared.InvalidArgument(req); err != nil {
		return nil, err
	}
	group, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	set := bson.M{"updated_at": time.Now().UTC()}
	if name := strings.TrimSpace(req.Name); name != "" && name != group.Name {
		if err := s.ensureNameFree(queryCtx, id, name); err != nil {
			return nil, err
		}
		set["name"] = name
		group.Name = name
	}
	if req.Students != nil {
		students, err := normalizeRoster(req.Students)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		set["students"] = students
		group.Students = students
	}

	if _, err := s.groupsCol.UpdateOne(queryCtx, bson.M{"_id": id}, bson.M{"$set": set}); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, status.Error(codes.AlreadyExists, "ya existe un grupo con ese nombre")
		}
		return nil, status.Error(codes.Internal, "error al actualizar el grupo")
	}
	return group, nil
}

// AssignTeachers replaces the group's teacher assignments. Entries without a
// subject, pointing at accounts that are not teachers, or repeated are dropped.
func (s *Service) AssignTeachers(ctx context.Context, id string, req *AssignTeachersRequest) (*shared.Group, error) {
	group, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	known, err := s.teacherIDs(queryCtx, req.Assignments)
	if err != nil {
		return nil, err
	}
	assignments := filterAssignments(req.Assignments, known)

	_, err = s.groupsCol.UpdateOne(queryCtx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"teacher_assignments": assignments, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "error al asignar profesores")
	}

	group.TeacherAssignments = assignments
	s.logger.Info("teachers assigned", zap.String("group_id", id), zap.Int("assignments", len(assignments)))
	return group, nil
}

// Delete removes a group together with its grade and attendance records.
func (s *Service) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	if strings.TrimSpace(id) == "" {
		return nil, status.Error(codes.InvalidArgument, "id de grupo no válido")
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	res, err := s.groupsCol.DeleteOne(queryCtx, bson.M{"_id": id})
	if err != nil {
		return nil, status.Error(codes.Internal, "error al eliminar el grupo")
	}
	if res.DeletedCount == 0 {
		return nil, status.Error(codes.NotFound, "grupo no encontrado")
	}

	result := &DeleteResult{}
	grades, err := s.gradesCol.DeleteMany(queryCtx, bson.M{"group_id": id})
	if err != nil {
		s.logger.Error("group deleted but grade records remain", zap.String("group_id", id), zap.Error(err))
		return nil, status.Error(codes.Internal, "grupo eliminado; error al eliminar sus calificaciones")
	}
	result.GradeRecords = grades.DeletedCount

	att, err := s.attendanceCol.DeleteMany(queryCtx, bson.M{"group_id": id})
	if err != nil {
		s.logger.Error("group deleted but attendance records remain", zap.String("group_id", id), zap.Error(err))
		return nil, status.Error(codes.Internal, "grupo eliminado; error al eliminar su asistencia")
	}
	result.AttendanceRecords = att.DeletedCount

	s.logger.Info("group deleted",
		zap.String("group_id", id),
		zap.Int64("grade_records", result.GradeRecords),
		zap.Int64("attendance_records", result.AttendanceRecords))
	return result, nil
}

// ============================================================================
// Consolidated grades
// ============================================================================

// Consolidated computes studentId → subject → [b1, b2, b3] for the group.
// It also returns the group and its grade records for callers that render them.
func (s *Service) Consolidated(ctx context.Context, id string) (gradebook.Report, *shared.Group, error) {
	group, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	cursor, err := s.gradesCol.Find(queryCtx, bson.M{"group_id": id}, options.Find().SetSort(bson.D{{Key: "subject", Value: 1}}))
	if err != nil {
		return nil, nil, status.Error(codes.Internal, "falla al procesar las calificaciones")
	}
	defer cursor.Close(queryCtx)

	var records []shared.GradeRecord
	if err := cursor.All(queryCtx, &records); err != nil {
		return nil, nil, status.Error(codes.Internal, "falla al procesar las calificaciones")
	}

	subjects := make([]gradebook.SubjectGrades, 0, len(records))
	for i := range records {
		subjects = append(subjects, records[i].SubjectGrades())
	}
	return s.aggregator.ConsolidatedReport(group.StudentIDs(), subjects), group, nil
}

// Aggregator exposes the averaging policy the service reports with.
func (s *Service) Aggregator() gradebook.Aggregator {
	return s.aggregator
}

// ============================================================================
// Internal Helpers
// ============================================================================

func (s *Service) find(ctx context.Context, filter bson.M) ([]shared.GroupWithTeachers, error) {
	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	cursor, err := s.groupsCol.Find(queryCtx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, status.Error(codes.Internal, "error al obtener los grupos")
	}
	defer cursor.Close(queryCtx)

	var groups []shared.Group
	if err := cursor.All(queryCtx, &groups); err != nil {
		return nil, status.Error(codes.Internal, "error al obtener los grupos")
	}

	teachers, err := s.teacherSummaries(queryCtx, groups)
	if err != nil {
		return nil, err
	}

	out := make([]shared.GroupWithTeachers, 0, len(groups))
	for _, g := range groups {
		gw := shared.GroupWithTeachers{Group: g, Teachers: []shared.TeacherSummary{}}
		for _, tid := range g.TeacherIDs() {
			if t, ok := teachers[tid]; ok {
				gw.Teachers = append(gw.Teachers, t)
			}
		}
		out = append(out, gw)
	}
	return out, nil
}

// teacherSummaries loads name/email/photo for every teacher the groups reference.
func (s *Service) teacherSummaries(ctx context.Context, groups []shared.Group) (map[string]shared.TeacherSummary, error) {
	var ids []string
	for i := range groups {
		ids = append(ids, groups[i].TeacherIDs()...)
	}
	summaries := make(map[string]shared.TeacherSummary)
	if len(ids) == 0 {
		return summaries, nil
	}

	opts := options.Find().SetProjection(bson.M{"name": 1, "email": 1, "photo_url": 1})
	cursor, err := s.usersCol.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, status.Error(codes.Internal, "error al obtener profesores")
	}
	defer cursor.Close(ctx)

	var found []shared.TeacherSummary
	if err := cursor.All(ctx, &found); err != nil {
		return nil, status.Error(codes.Internal, "error al obtener profesores")
	}
	for _, t := range found {
		summaries[t.ID] = t
	}
	return summaries, nil
}

// teacherIDs returns which of the referenced accounts are existing teachers.
func (s *Service) teacherIDs(ctx context.Context, assignments []shared.TeacherAssignment) (map[string]bool, error) {
	var ids []string
	for _, a := range assignments {
		if id := strings.TrimSpace(a.TeacherID); id != "" {
			ids = append(ids, id)
		}
	}
	known := make(map[string]bool)
	if len(ids) == 0 {
		return known, nil
	}

	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := s.usersCol.Find(ctx, bson.M{"_id": bson.M{"$in": ids}, "role": shared.RoleTeacher}, opts)
	if err != nil {
		return nil, status.Error(codes.Internal, "error al validar profesores")
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, status.Error(codes.Internal, "error al validar profesores")
	}
	for _, doc := range docs {
		known[doc.ID] = true
	}
	return known, nil
}

func (s *Service) ensureNameFree(ctx context.Context, selfID, name string) error {
	filter := bson.M{"name": name}
	if selfID != "" {
		filter["_id"] = bson.M{"$ne": selfID}
	}
	count, err := s.groupsCol.CountDocuments(ctx, filter)
	if err != nil {
		return status.Error(codes.Internal, "database error")
	}
	if count > 0 {
		return status.Error(codes.AlreadyExists, "ya existe un grupo con ese nombre")
	}
	return nil
}

// normalizeRoster trims names, gives fresh ids to students the client created
// locally, and rejects repeated ids.
func normalizeRoster(students []shared.Student) ([]shared.Student, error) {
	out := make([]shared.Student, 0, len(students))
	seen := make(map[string]bool, len(students))
	for _, st := range students {
		st.FirstName = strings.TrimSpace(st.FirstName)
		st.LastNamePaternal = strings.TrimSpace(st.LastNamePaternal)
		st.LastNameMaternal = strings.TrimSpace(st.LastNameMaternal)

		id := strings.TrimSpace(st.ID)
		if id == "" || strings.HasPrefix(id, shared.NewStudentPrefix) {
			id = shared.GenerateID()
		}
		if seen[id] {
			return nil, fmt.Errorf("alumno repetido en el grupo: %s", id)
		}
		seen[id] = true
		st.ID = id
		out = append(out, st)
	}
	return out, nil
}

// filterAssignments keeps assignments to known teachers with a subject, once each.
func filterAssignments(in []shared.TeacherAssignment, known map[string]bool) []shared.TeacherAssignment {
	out := make([]shared.TeacherAssignment, 0, len(in))
	seen := make(map[shared.TeacherAssignment]bool, len(in))
	for _, a := range in {
		a.TeacherID = strings.TrimSpace(a.TeacherID)
		a.Subject = strings.TrimSpace(a.Subject)
		if a.Subject == "" || !known[a.TeacherID] || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
