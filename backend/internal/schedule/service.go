// Package schedule stores one timetable per school year.
package schedule

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

// Service manages schedules.
type Service struct {
	config       *shared.ServiceConfig
	schedulesCol *mongo.Collection
	logger       *zap.Logger
}

// NewService creates a new schedule Service
func NewService(db *mongo.Database, config *shared.ServiceConfig, logger *zap.Logger) *Service {
	return &Service{
		config:       config,
		schedulesCol: db.Collection(shared.SchedulesCollection),
		logger:       logger,
	}
}

type SaveRequest struct {
	Year     string                 `json:"anio" validate:"notblank"`
	CellData map[string]interface{} `json:"cell_data"`
	Legend   map[string]interface{} `json:"legend"`
	ImageURL string                 `json:"image_url"`
}

// Summary is one row of the schedule listing.
type Summary struct {
	Year     string `bson:"year" json:"anio"`
	ImageURL string `bson:"image_url,omitempty" json:"image_url"`
}

// Save upserts the schedule of req.Year.
func (s *Service) Save(ctx context.Context, req *SaveRequest) (*shared.Schedule, error) {
	if err := shared.InvalidArgument(req); err != nil {
		return nil, err
	}
	year := strings.TrimSpace(req.Year)

	cellData := req.CellData
	if cellData == nil {
		cellData = map[string]interface{}{}
	}
	legend := req.Legend
	if legend == nil {
		legend = map[string]interface{}{}
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"cell_data":  cellData,
			"legend":     legend,
			"image_url":  strings.TrimSpace(req.ImageURL),
			"updated_at": time.Now().UTC(),
		},
		"$setOnInsert": bson.M{"_id": shared.GenerateID()},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var sched shared.Schedule
	if err := s.schedulesCol.FindOneAndUpdate(queryCtx, bson.M{"year": year}, update, opts).Decode(&sched); err != nil {
		s.logger.Error("save schedule failed", zap.String("year", year), zap.Error(err))
		return nil, status.Error(codes.Internal, "error al guardar el horario")
	}

	s.logger.Info("schedule saved", zap.String("year", year))
	return &sched, nil
}

// Get returns the schedule of a year. A year with nothing saved yields an
// empty schedule.
func (s *Service) Get(ctx context.Context, year string) (*shared.Schedule, error) {
	year = strings.TrimSpace(year)
	if year == "" {
		return nil, status.Error(codes.InvalidArgument, "año requerido")
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	var sched shared.Schedule
	if err := s.schedulesCol.FindOne(queryCtx, bson.M{"year": year}).Decode(&sched); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &shared.Schedule{
				Year:     year,
				CellData: map[string]interface{}{},
				Legend:   map[string]interface{}{},
			}, nil
		}
		return nil, status.Error(codes.Internal, "error al obtener el horario")
	}
	return &sched, nil
}

// List returns every saved year, newest first.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "year", Value: -1}}).
		SetProjection(bson.M{"year": 1, "image_url": 1})
	cursor, err := s.schedulesCol.Find(queryCtx, bson.M{}, opts)
	if err != nil {
		return nil, status.Error(codes.Internal, "error al obtener los horarios")
	}
	defer cursor.Close(queryCtx)

	summaries := []Summary{}
	if err := cursor.All(queryCtx, &summaries); err != nil {
		return nil, status.Error(codes.Internal, "error al obtener los horarios")
	}
	return summaries, nil
}

// Delete removes the schedule of a year.
func (s *Service) Delete(ctx context.Context, year string) error {
	year = strings.TrimSpace(year)
	if year == "" {
		return status.Error(codes.InvalidArgument, "año requerido")
	}

	queryCtx, cancel := shared.QueryContext(ctx, s.config.RequestTimeout)
	defer cancel()

	res, err := s.schedulesCol.DeleteOne(queryCtx, bson.M{"year": year})
	if err != nil {
		return status.Error(codes.Internal, "error al eliminar el horario")
	}
	if res.DeletedCount == 0 {
		return status.Error(codes.NotFound, "horario no encontrado")
	}

	s.logger.Info("schedule deleted", zap.String("year", year))
	return nil
}
