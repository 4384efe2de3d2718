package main

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"school_admin/backend/internal/access"
	"school_admin/backend/internal/attendance"
	"school_admin/backend/internal/gradebook"
	"school_admin/backend/internal/shared"
)

// Fixed ids so the seeded data can be referenced from the frontend while developing.
const (
	AdminID    = "admin-001"
	TeacherID1 = "profesor-001"
	TeacherID2 = "profesor-002"
	GroupID    = "grupo-1a"

	CommonPassword = "password"
	SchoolYear     = "2024-2025"

	SubjectMath    = "Matemáticas"
	SubjectHistory = "Historia"
)

func main() {
	if err := shared.LoadEnv(".env"); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := shared.LoadServiceConfig(shared.ServiceSeeder)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := shared.NewServiceLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB, logger)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer shared.DisconnectMongoDB(client)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Drop everything to ensure a clean start
	if err := db.Drop(ctx); err != nil {
		logger.Fatal("failed to drop database", zap.Error(err))
	}
	if err := shared.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal("failed to create indexes", zap.Error(err))
	}
	logger.Info("database cleared")

	s := &seeder{db: db, cost: cfg.Security.BCryptCost, now: time.Now(), logger: logger}
	s.users(ctx)
	group := s.group(ctx)
	s.grades(ctx, group)
	s.attendance(ctx, group)
	s.schedule(ctx)

	logger.Info("all data seeding completed")
}

type seeder struct {
	db     *mongo.Database
	cost   int
	now    time.Time
	logger *zap.Logger
}

func (s *seeder) upsert(ctx context.Context, col string, filter, doc interface{}) {
	_, err := s.db.Collection(col).ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		s.logger.Fatal("seeding failed", zap.String("collection", col), zap.Error(err))
	}
}

func (s *seeder) users(ctx context.Context) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(CommonPassword), s.cost)
	if err != nil {
		s.logger.Fatal("hashing seed password", zap.Error(err))
	}

	users := []shared.User{
		{ID: AdminID, Name: "Dirección Escolar", Email: "admin@escuela.mx", Phone: "5550000001", Role: access.RoleAdmin},
		{ID: TeacherID1, Name: "Laura Méndez", Email: "laura@escuela.mx", Phone: "5550000002", Role: access.RoleTeacher, Sex: "F", Age: 38, Subjects: []string{SubjectMath}},
		{ID: TeacherID2, Name: "Jorge Ruiz", Email: "jorge@escuela.mx", Phone: "5550000003", Role: access.RoleTeacher, Sex: "M", Age: 45, Subjects: []string{SubjectHistory}},
	}

	for _, u := range users {
		u.PasswordHash = string(hashedBytes)
		u.CreatedAt = s.now
		s.upsert(ctx, shared.UsersCollection, bson.M{"_id": u.ID}, u)
		s.logger.Info("seeded user", zap.String("role", u.Role), zap.String("email", u.Email))
	}
}

func (s *seeder) group(ctx context.Context) *shared.Group {
	group := &shared.Group{
		ID:   GroupID,
		Name: "1A",
		Students: []shared.Student{
			{ID: "alumno-001", FirstName: "Ana", LastNamePaternal: "López", LastNameMaternal: "García"},
			{ID: "alumno-002", FirstName: "Luis", LastNamePaternal: "Pérez", LastNameMaternal: "Gil"},
			{ID: "alumno-003", FirstName: "María", LastNamePaternal: "Torres"},
		},
		TeacherAssignments: []shared.TeacherAssignment{
			{TeacherID: TeacherID1, Subject: SubjectMath},
			{TeacherID: TeacherID2, Subject: SubjectHistory},
		},
		CreatedAt: s.now,
	}
	s.upsert(ctx, shared.GroupsCollection, bson.M{"_id": group.ID}, group)
	s.logger.Info("seeded group", zap.String("name", group.Name), zap.Int("students", len(group.Students)))
	return group
}

func (s *seeder) grades(ctx context.Context, group *shared.Group) {
	criteria := []gradebook.Criterion{
		{Name: "Examen", Percentage: 50},
		{Name: "Tareas", Percentage: 30},
		{Name: "Participación", Percentage: 20},
	}

	for i, subject := range []string{SubjectMath, SubjectHistory} {
		book := gradebook.Book{}
		for j, student := range group.Students {
			base := 6 + float64((i+j)%4)
			book[student.ID] = gradebook.Bimesters{
				gradebook.BimesterKey(1): {
					"Examen":        {"0": s.score(base + 1)},
					"Tareas":        {"0": s.score(base), "1": s.score(base + 0.5)},
					"Participación": {"0": s.score(base + 1.5)},
				},
			}
		}

		record := shared.GradeRecord{
			ID:        shared.GenerateID(),
			GroupID:   group.ID,
			Subject:   subject,
			Criteria:  criteria,
			Grades:    book,
			UpdatedAt: s.now,
		}
		s.upsert(ctx, shared.GradesCollection, bson.M{"group_id": group.ID, "subject": subject}, record)
		s.logger.Info("seeded grades", zap.String("subject", subject))
	}
}

func (s *seeder) score(v float64) *gradebook.ScoreEntry {
	if v > gradebook.MaxScore {
		v = gradebook.MaxScore
	}
	return &gradebook.ScoreEntry{Score: v, RecordedAt: s.now}
}

func (s *seeder) attendance(ctx context.Context, group *shared.Group) {
	sheet := attendance.NewSheet(nil, nil)
	for day := 1; day <= 10; day++ {
		for j, student := range group.Students {
			// one toggle marks present, two marks absent
			toggles := 1
			if (day+j)%7 == 0 {
				toggles = 2
			}
			for t := 0; t < toggles; t++ {
				sheet.Toggle(student.ID, 1, day, s.now)
			}
		}
	}

	record := shared.AttendanceRecord{
		ID:              shared.GenerateID(),
		GroupID:         group.ID,
		TeacherID:       TeacherID1,
		Subject:         SubjectMath,
		Entries:         sheet.Entries,
		DaysPerBimester: sheet.Days,
		UpdatedAt:       s.now,
	}
	s.upsert(ctx, shared.AttendanceCollection,
		bson.M{"group_id": group.ID, "teacher_id": TeacherID1, "subject": SubjectMath}, record)
	s.logger.Info("seeded attendance", zap.Int("marks", len(sheet.Entries)))
}

func (s *seeder) schedule(ctx context.Context) {
	sched := shared.Schedule{
		ID:   shared.GenerateID(),
		Year: SchoolYear,
		CellData: map[string]interface{}{
			"lunes-1":  map[string]interface{}{"text": SubjectMath, "color": "#c8e6c9"},
			"martes-1": map[string]interface{}{"text": SubjectHistory, "color": "#ffe0b2"},
		},
		Legend: map[string]interface{}{
			"#c8e6c9": SubjectMath,
			"#ffe0b2": SubjectHistory,
		},
		UpdatedAt: s.now,
	}
	s.upsert(ctx, shared.SchedulesCollection, bson.M{"year": sched.Year}, sched)
	s.logger.Info("seeded schedule", zap.String("year", sched.Year))
}
