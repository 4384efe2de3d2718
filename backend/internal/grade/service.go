// Package grade stores the grade record of each (group, subject) pair.
package grade

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
	"school_admin/backend/internal/gradebook"
	"school_admin/backend/internal/shared"
)

// Service manages grade records.
type Service struct {
	config    *shared.ServiceConfig
	gradesCol *mongo.Collection
	groupsCol *mongo.Collection
	logger    *zap.Logger
}

// NewService creates a new grade Service
func NewService(db *mongo.Database, config *shared.ServiceConfig, logger *zap.Logger) *Service {
	return &Service{
		config:    config,
		gradesCol: db.Collection(shared.GradesCollection),
		groupsCol: db.Collection(shared.GroupsCollection),
		logger:    logger,
	}
}

// SaveRequest replaces the criteria and scores of one record.
type SaveRequest struct {
	Criteria []gradebook.Criterion `json:"criteria" validate:"dive"`
	Grades   gradebook.Book        `json:"grades"`
}

// SaveResult is the stored record plus non-fatal warnings about it.
type SaveResult struct {
	Record   *shared.GradeRecord `json:"record"`
	Warnings []string            `json:"warnings,omitempty"`
}

// WarningCriteriaTotal is reported when the criteria do not add up to 100%.
const WarningCriteriaTotal = "criteria_total"

// Get returns the record for (groupID, subject). A pair that has never been
// saved yields an empty record rather than an error.
func (s *Service) Get(ctx context.Context, caller *access.Principal, groupID, subject string) (*shared.GradeRecord, error) {
	groupID, subject, err := cleanKey(groupID, subject)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, groupID, subject, access.Read); err != nil {
		return nil, err
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	var record shared.GradeRecord
	err = s.gradesCol.FindOne(queryCtx, bson.M{"group_id": groupID, "subject": subject}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return emptyRecord(groupID, subject), nil
		}
		s.logger.Error("get grades failed", zap.String("group_id", groupID), zap.Error(err))
		return nil, status.Error(codes.Internal, "error al obtener calificaciones")
	}
	if record.Criteria == nil {
		record.Criteria = []gradebook.Criterion{}
	}
	if record.Grades == nil {
		record.Grades = gradebook.Book{}
	}
	return &record, nil
}

// Save upserts the record for (groupID, subject), replacing criteria and grades.
func (s *Service) Save(ctx context.Context, caller *access.Principal, groupID, subject string, req *SaveRequest) (*SaveResult, error) {
	groupID, subject, err := cleanKey(groupID, subject)
	if err != nil {
		return nil, err
	}
	if err := shared.InvalidArgument(req); err != nil {
		return nil, err
	}
	if err := gradebook.ValidateCriteria(req.Criteria); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	book, err := gradebook.Normalize(req.Grades)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.authorize(ctx, caller, groupID, subject, access.Write); err != nil {
		return nil, err
	}

	criteria := req.Criteria
	if criteria == nil {
		criteria = []gradebook.Criterion{}
	}
	now := time.Now().UTC()

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	filter := bson.M{"group_id": groupID, "subject": subject}
	update := bson.M{
		"$set":         bson.M{"criteria": criteria, "grades": book, "updated_at": now},
		"$setOnInsert": bson.M{"_id": shared.GenerateID()},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var record shared.GradeRecord
	if err := s.gradesCol.FindOneAndUpdate(queryCtx, filter, update, opts).Decode(&record); err != nil {
		s.logger.Error("save grades failed", zap.String("group_id", groupID), zap.String("subject", subject), zap.Error(err))
		return nil, status.Error(codes.Internal, "error al guardar calificaciones")
	}

	result := &SaveResult{Record: &record}
	if total := gradebook.CriteriaTotal(criteria); len(criteria) > 0 && gradebook.Round(total, 2) != 100 {
		result.Warnings = append(result.Warnings, WarningCriteriaTotal)
		s.logger.Warn("criteria do not total 100",
			zap.String("group_id", groupID),
			zap.String("subject", subject),
			zap.Float64("total", total))
	}
	return result, nil
}

// Delete removes the record for (groupID, subject).
func (s *Service) Delete(ctx context.Context, groupID, subject string) error {
	groupID, subject, err := cleanKey(groupID, subject)
	if err != nil {
		return err
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	res, err := s.gradesCol.DeleteOne(queryCtx, bson.M{"group_id": groupID, "subject": subject})
	if err != nil {
		return status.Error(codes.Internal, "error al eliminar calificaciones")
	}
	if res.DeletedCount == 0 {
		return status.Error(codes.NotFound, "no se encontraron calificaciones para eliminar")
	}

	s.logger.Info("grade record deleted", zap.String("group_id", groupID), zap.String("subject", subject))
	return nil
}

// ListAll returns every record with the name of its group.
func (s *Service) ListAll(ctx context.Context) ([]shared.GradeRecordWithGroup, error) {
	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         shared.GroupsCollection,
			"localField":   "group_id",
			"foreignField": "_id",
			"as":           "group",
		}}},
		{{Key: "$addFields", Value: bson.M{"group_name": bson.M{"$first": "$group.name"}}}},
		{{Key: "$project", Value: bson.M{"group": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "group_name", Value: 1}, {Key: "subject", Value: 1}}}},
	}

	cursor, err := s.gradesCol.Aggregate(queryCtx, pipeline)
	if err != nil {
		s.logger.Error("list grades failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "error al obtener calificaciones")
	}
	defer cursor.Close(queryCtx)

	records := []shared.GradeRecordWithGroup{}
	if err := cursor.All(queryCtx, &records); err != nil {
		return nil, status.Error(codes.Internal, "error al obtener calificaciones")
	}
	return records, nil
}

// ============================================================================
// Internal Helpers
// ============================================================================

// authorize lets admins through and requires teachers to be assigned to the
// subject in the group.
func (s *Service) authorize(ctx context.Context, caller *access.Principal, groupID, subject string, action access.Action) error {
	if caller == nil || caller.ID == "" {
		return status.Error(codes.Unauthenticated, "autenticación requerida")
	}
	if caller.IsAdmin() {
		return nil
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	var group shared.Group
	opts := options.FindOne().SetProjection(bson.M{"teacher_assignments": 1})
	if err := s.groupsCol.FindOne(queryCtx, bson.M{"_id": groupID}, opts).Decode(&group); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return status.Error(codes.NotFound, "grupo no encontrado")
		}
		return status.Error(codes.Internal, "error al verificar el grupo")
	}

	resource := access.Resource{Kind: access.Grades, Assignees: group.AssigneesFor(subject)}
	if !access.CanAccess(caller, resource, action) {
		return status.Error(codes.PermissionDenied, "no tienes asignada esta materia en el grupo")
	}
	return nil
}

func cleanKey(groupID, subject string) (string, string, error) {
	groupID = strings.TrimSpace(groupID)
	subject = strings.TrimSpace(subject)
	if groupID == "" || subject == "" {
		return "", "", status.Error(codes.InvalidArgument, "grupoId y asignatura son requeridos")
	}
	return groupID, subject, nil
}

func emptyRecord(groupID, subject string) *shared.GradeRecord {
	return &shared.GradeRecord{
		GroupID:  groupID,
		Subject:  subject,
		Criteria: []gradebook.Criterion{},
		Grades:   gradebook.Book{},
	}
}
