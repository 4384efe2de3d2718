// Package attendancesvc stores attendance sheets, one per (group, teacher,
// subject), and applies codec operations to them server-side.
package attendancesvc

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"school_admin/backend/internal/access"
	"school_admin/backend/internal/attendance"
	"school_admin/backend/internal/shared"
)

// Service manages attendance records.
type Service struct {
	config        *shared.ServiceConfig
	attendanceCol *mongo.Collection
	groupsCol     *mongo.Collection
	logger        *zap.Logger
	now           func() time.Time
}

// NewService creates a new attendance Service
func NewService(db *mongo.Database, config *shared.ServiceConfig, logger *zap.Logger) *Service {
	return &Service{
		config:        config,
		attendanceCol: db.Collection(shared.AttendanceCollection),
		groupsCol:     db.Collection(shared.GroupsCollection),
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ============================================================================
// Request types
// ============================================================================

// Query selects one sheet. TeacherID is only honoured for admins; everyone
// else always reads their own sheet.
type Query struct {
	GroupID   string `json:"groupId" validate:"notblank"`
	Subject   string `json:"asignatura" validate:"notblank"`
	TeacherID string `json:"profesorId"`
}

type PutRequest struct {
	GroupID         string                     `json:"groupId" validate:"notblank"`
	Subject         string                     `json:"asignatura" validate:"notblank"`
	Entries         map[string]attendance.Mark `json:"entries"`
	DaysPerBimester map[string]int             `json:"days_per_bimester"`
}

type ToggleRequest struct {
	GroupID   string `json:"groupId" validate:"notblank"`
	Subject   string `json:"asignatura" validate:"notblank"`
	StudentID string `json:"studentId" validate:"notblank"`
	Bimester  int    `json:"bimestre" validate:"bimester"`
	Day       int    `json:"dia" validate:"gte=1"`
}

type ToggleResult struct {
	Key    string            `json:"key"`
	Status attendance.Status `json:"status"`
}

type ExtendRequest struct {
	GroupID   string `json:"groupId" validate:"notblank"`
	Subject   string `json:"asignatura" validate:"notblank"`
	Bimester  int    `json:"bimestre" validate:"bimester"`
	Increment int    `json:"incremento" validate:"gte=0"`
}

type ExtendResult struct {
	Bimester int `json:"bimestre"`
	Days     int `json:"days"`
}

// StudentTally is one roster row of a bimester tally.
type StudentTally struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	attendance.Tally
}

// TallyResult is the per-student attendance of one bimester.
type TallyResult struct {
	Bimester int            `json:"bimestre"`
	Days     int            `json:"days"`
	Students []StudentTally `json:"students"`
}

// ============================================================================
// Operations
// ============================================================================

// Get returns the selected sheet, or nil when it has never been saved.
func (s *Service) Get(ctx context.Context, caller *access.Principal, q Query) (*shared.AttendanceRecord, error) {
	owner, err := s.resolveOwner(caller, &q, access.Read)
	if err != nil {
		return nil, err
	}
	record, err := s.load(ctx, q.GroupID, owner, q.Subject)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Put replaces the caller's sheet for (group, subject).
func (s *Service) Put(ctx context.Context, caller *access.Principal, req *PutRequest) (*shared.AttendanceRecord, error) {
	if caller == nil || caller.ID == "" {
		return nil, status.Error(codes.Unauthenticated, "autenticación requerida")
	}
	if err := shared.InvalidArgument(req); err != nil {
		return nil, err
	}

	record := &shared.AttendanceRecord{
		GroupID:         strings.TrimSpace(req.GroupID),
		TeacherID:       caller.ID,
		Subject:         strings.TrimSpace(req.Subject),
		Entries:         req.Entries,
		DaysPerBimester: req.DaysPerBimester,
	}
	if err := record.Sheet().Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return s.store(ctx, record)
}

// Toggle cycles one mark of the caller's sheet and stores the result.
func (s *Service) Toggle(ctx context.Context, caller *access.Principal, req *ToggleRequest) (*ToggleResult, error) {
	if caller == nil || caller.ID == "" {
		return nil, status.Error(codes.Unauthenticated, "autenticación requerida")
	}
	if err := shared.InvalidArgument(req); err != nil {
		return nil, err
	}

	record, err := s.loadOrNew(ctx, req.GroupID, caller.ID, req.Subject)
	if err != nil {
		return nil, err
	}
	sheet := record.Sheet()
	if req.Day > sheet.DaysIn(req.Bimester) {
		return nil, status.Errorf(codes.InvalidArgument, "el día %d excede los %d días del bimestre", req.Day, sheet.DaysIn(req.Bimester))
	}

	next := sheet.Toggle(req.StudentID, req.Bimester, req.Day, s.now())
	if _, err := s.store(ctx, record); err != nil {
		return nil, err
	}
	return &ToggleResult{Key: attendance.Key(req.StudentID, req.Bimester, req.Day), Status: next}, nil
}

// Extend raises the day ceiling of one bimester of the caller's sheet.
func (s *Service) Extend(ctx context.Context, caller *access.Principal, req *ExtendRequest) (*ExtendResult, error) {
	if caller == nil || caller.ID == "" {
		return nil, status.Error(codes.Unauthenticated, "autenticación requerida")
	}
	if err := shared.InvalidArgument(req); err != nil {
		return nil, err
	}

	record, err := s.loadOrNew(ctx, req.GroupID, caller.ID, req.Subject)
	if err != nil {
		return nil, err
	}
	days, err := record.Sheet().ExtendDays(req.Bimester, req.Increment)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "un bimestre no puede tener más de %d días", attendance.MaxDays)
	}
	if _, err := s.store(ctx, record); err != nil {
		return nil, err
	}
	return &ExtendResult{Bimester: req.Bimester, Days: days}, nil
}

// Tally counts present and absent marks for every student of the group's
// roster in one bimester of the selected sheet.
func (s *Service) Tally(ctx context.Context, caller *access.Principal, q Query, bimester int) (*TallyResult, error) {
	if bimester < 1 || bimester > attendance.NumBimesters {
		return nil, status.Error(codes.InvalidArgument, "bimestre debe estar entre 1 y 3")
	}
	owner, err := s.resolveOwner(caller, &q, access.Read)
	if err != nil {
		return nil, err
	}
	record, err := s.load(ctx, q.GroupID, owner, q.Subject)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = &shared.AttendanceRecord{}
	}
	group, err := s.roster(ctx, q.GroupID)
	if err != nil {
		return nil, err
	}

	sheet := record.Sheet()
	result := &TallyResult{Bimester: bimester, Days: sheet.DaysIn(bimester), Students: []StudentTally{}}
	for _, st := range group.Students {
		result.Students = append(result.Students, StudentTally{
			StudentID: st.ID,
			Name:      st.FullName(),
			Tally:     sheet.Tally(st.ID, bimester),
		})
	}
	return result, nil
}

// Sheet returns the group and the selected record (possibly empty), for exports.
func (s *Service) Sheet(ctx context.Context, caller *access.Principal, q Query) (*shared.Group, *shared.AttendanceRecord, error) {
	owner, err := s.resolveOwner(caller, &q, access.Read)
	if err != nil {
		return nil, nil, err
	}
	record, err := s.load(ctx, q.GroupID, owner, q.Subject)
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		record = &shared.AttendanceRecord{GroupID: q.GroupID, TeacherID: owner, Subject: q.Subject}
	}
	group, err := s.roster(ctx, q.GroupID)
	if err != nil {
		return nil, nil, err
	}
	return group, record, nil
}

// ============================================================================
// Internal Helpers
// ============================================================================

// resolveOwner validates q and returns whose sheet the caller is reading.
func (s *Service) resolveOwner(caller *access.Principal, q *Query, action access.Action) (string, error) {
	if caller == nil || caller.ID == "" {
		return "", status.Error(codes.Unauthenticated, "autenticación requerida")
	}
	q.GroupID = strings.TrimSpace(q.GroupID)
	q.Subject = strings.TrimSpace(q.Subject)
	if err := shared.InvalidArgument(q); err != nil {
		return "", err
	}

	owner := caller.ID
	if caller.IsAdmin() && strings.TrimSpace(q.TeacherID) != "" {
		owner = strings.TrimSpace(q.TeacherID)
	}
	if !access.CanAccess(caller, access.Resource{Kind: access.Attendance, OwnerID: owner}, action) {
		return "", status.Error(codes.PermissionDenied, "no puedes consultar esta lista de asistencia")
	}
	return owner, nil
}

func recordFilter(groupID, teacherID, subject string) bson.M {
	return bson.M{
		"group_id":   strings.TrimSpace(groupID),
		"teacher_id": teacherID,
		"subject":    strings.TrimSpace(subject),
	}
}

// load returns nil without error when the record does not exist.
func (s *Service) load(ctx context.Context, groupID, teacherID, subject string) (*shared.AttendanceRecord, error) {
	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	var record shared.AttendanceRecord
	if err := s.attendanceCol.FindOne(queryCtx, recordFilter(groupID, teacherID, subject)).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		s.logger.Error("load attendance failed", zap.String("group_id", groupID), zap.Error(err))
		return nil, status.Error(codes.Internal, "error al obtener la asistencia")
	}
	return &record, nil
}

func (s *Service) loadOrNew(ctx context.Context, groupID, teacherID, subject string) (*shared.AttendanceRecord, error) {
	record, err := s.load(ctx, groupID, teacherID, subject)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = &shared.AttendanceRecord{
			GroupID:   strings.TrimSpace(groupID),
			TeacherID: teacherID,
			Subject:   strings.TrimSpace(subject),
		}
	}
	return record, nil
}

// store upserts the full sheet of the record.
func (s *Service) store(ctx context.Context, record *shared.AttendanceRecord) (*shared.AttendanceRecord, error) {
	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	sheet := record.Sheet()
	update := bson.M{
		"$set": bson.M{
			"entries":           sheet.Entries,
			"days_per_bimester": sheet.Days,
			"updated_at":        s.now(),
		},
		"$setOnInsert": bson.M{"_id": shared.GenerateID()},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved shared.AttendanceRecord
	err := s.attendanceCol.FindOneAndUpdate(queryCtx,
		recordFilter(record.GroupID, record.TeacherID, record.Subject), update, opts).Decode(&saved)
	if err != nil {
		s.logger.Error("save attendance failed",
			zap.String("group_id", record.GroupID),
			zap.String("teacher_id", record.TeacherID),
			zap.Error(err))
		return nil, status.Error(codes.Internal, "error al guardar la asistencia")
	}
	return &saved, nil
}

func (s *Service) roster(ctx context.Context, groupID string) (*shared.Group, error) {
	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	var group shared.Group
	opts := options.FindOne().SetProjection(bson.M{"name": 1, "students": 1})
	if err := s.groupsCol.FindOne(queryCtx, bson.M{"_id": groupID}, opts).Decode(&group); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, status.Error(codes.NotFound, "grupo no encontrado")
		}
		return nil, status.Error(codes.Internal, "error al obtener el grupo")
	}
	return &group, nil
}
