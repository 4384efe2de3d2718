// Package teacher is the admin-facing management of teacher accounts.
package teacher

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

	"school_admin/backend/internal/shared"
)

// Service manages teacher accounts.
type Service struct {
	config    *shared.ServiceConfig
	usersCol  *mongo.Collection
	groupsCol *mongo.Collection
	logger    *zap.Logger
}

// NewService creates a new teacher Service
func NewService(db *mongo.Database, config *shared.ServiceConfig, logger *zap.Logger) *Service {
	return &Service{
		config:    config,
		usersCol:  db.Collection(shared.UsersCollection),
		groupsCol: db.Collection(shared.GroupsCollection),
		logger:    logger,
	}
}

// List returns every teacher ordered by name.
func (s *Service) List(ctx context.Context) ([]shared.User, error) {
	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.usersCol.Find(queryCtx, bson.M{"role": shared.RoleTeacher}, opts)
	if err != nil {
		s.logger.Error("list teachers failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "error al obtener profesores")
	}
	defer cursor.Close(queryCtx)

	teachers := []shared.User{}
	if err := cursor.All(queryCtx, &teachers); err != nil {
		return nil, status.Error(codes.Internal, "error al obtener profesores")
	}
	return teachers, nil
}

// Get returns one teacher.
func (s *Service) Get(ctx context.Context, id string) (*shared.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, status.Error(codes.InvalidArgument, "id requerido")
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	var user shared.User
	err := s.usersCol.FindOne(queryCtx, bson.M{"_id": id, "role": shared.RoleTeacher}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, status.Error(codes.NotFound, "profesor no encontrado")
		}
		return nil, status.Error(codes.Internal, "error al obtener el profesor")
	}
	return &user, nil
}

// UpdateSubjects replaces the list of subjects a teacher can teach.
// Blank and repeated names are dropped.
func (s *Service) UpdateSubjects(ctx context.Context, id string, subjects []string) ([]string, error) {
	if strings.TrimSpace(id) == "" {
		return nil, status.Error(codes.InvalidArgument, "id requerido")
	}
	cleaned := cleanSubjects(subjects)

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	res, err := s.usersCol.UpdateOne(queryCtx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"subjects": cleaned, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "error al actualizar asignaturas")
	}
	if res.MatchedCount == 0 {
		return nil, status.Error(codes.NotFound, "profesor no encontrado")
	}
	return cleaned, nil
}

// Delete removes a teacher and drops them from every group assignment.
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return status.Error(codes.InvalidArgument, "id requerido")
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	res, err := s.usersCol.DeleteOne(queryCtx, bson.M{"_id": id, "role": shared.RoleTeacher})
	if err != nil {
		return status.Error(codes.Internal, "error al eliminar profesor")
	}
	if res.DeletedCount == 0 {
		return status.Error(codes.NotFound, "profesor no encontrado")
	}

	if _, err := s.groupsCol.UpdateMany(queryCtx,
		bson.M{"teacher_assignments.teacher_id": id},
		bson.M{"$pull": bson.M{"teacher_assignments": bson.M{"teacher_id": id}}},
	); err != nil {
		s.logger.Warn("teacher removed but group assignments kept", zap.String("teacher_id", id), zap.Error(err))
	}

	s.logger.Info("teacher deleted", zap.String("teacher_id", id))
	return nil
}

func cleanSubjects(subjects []string) []string {
	seen := make(map[string]bool, len(subjects))
	out := make([]string, 0, len(subjects))
	for _, subj := range subjects {
		subj = strings.TrimSpace(subj)
		if subj == "" || seen[subj] {
			continue
		}
		seen[subj] = true
		out = append(out, subj)
	}
	return out
}
