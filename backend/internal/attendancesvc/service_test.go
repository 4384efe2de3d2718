package attendancesvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"school_admin/backend/internal/access"
	"school_admin/backend/internal/attendance"
	"school_admin/backend/internal/shared"
)

const (
	attendanceNS = "escuela.attendance"
	groupsNS     = "escuela.groups"
)

var (
	admin   = &access.Principal{ID: "a1", Role: access.RoleAdmin}
	teacher = &access.Principal{ID: "t1", Role: access.RoleTeacher}
)

func newTestService(mt *mtest.T) *Service {
	svc := NewService(mt.DB, &shared.ServiceConfig{RequestTimeout: 5 * time.Second}, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }
	return svc
}

func mark(s string) bson.D {
	return bson.D{{Key: "status", Value: s}, {Key: "date", Value: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}}
}

func sheetDoc(entries bson.D, days bson.D) bson.D {
	return bson.D{
		{Key: "_id", Value: "a-1"},
		{Key: "group_id", Value: "g1"},
		{Key: "teacher_id", Value: "t1"},
		{Key: "subject", Value: "Historia"},
		{Key: "entries", Value: entries},
		{Key: "days_per_bimester", Value: days},
	}
}

func found(doc bson.D) bson.D {
	return mtest.CreateCursorResponse(0, attendanceNS, mtest.FirstBatch, doc)
}

func missing() bson.D {
	return mtest.CreateCursorResponse(0, attendanceNS, mtest.FirstBatch)
}

func saved(doc bson.D) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: doc})
}

func rosterDoc() bson.D {
	return mtest.CreateCursorResponse(0, groupsNS, mtest.FirstBatch, bson.D{
		{Key: "_id", Value: "g1"},
		{Key: "name", Value: "1A"},
		{Key: "students", Value: bson.A{
			bson.D{{Key: "_id", Value: "s1"}, {Key: "first_name", Value: "Luis"}, {Key: "last_name_paternal", Value: "Pérez"}, {Key: "last_name_maternal", Value: "Gil"}},
			bson.D{{Key: "_id", Value: "s2"}, {Key: "first_name", Value: "Eva"}, {Key: "last_name_paternal", Value: "Ruiz"}},
		}},
	})
}

func TestGet(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("absent sheet is nil", func(mt *mtest.T) {
		svc := newTestService(mt)
		mt.AddMockResponses(missing())

		rec, err := svc.Get(context.Background(), teacher, Query{GroupID: "g1", Subject: "Historia"})
		require.NoError(mt.T, err)
		assert.Nil(mt.T, rec)
	})

	mt.Run("teacher reads own sheet", func(mt *mtest.T) {
		t := mt.T
		svc := newTestService(mt)
		mt.AddMockResponses(found(sheetDoc(bson.D{{Key: "s1-b1-d1", Value: mark("P")}}, bson.D{})))

		rec, err := svc.Get(context.Background(), teacher, Query{GroupID: "g1", Subject: "Historia", TeacherID: "t2"})
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "t1", rec.TeacherID)
		assert.Equal(t, attendance.Present, rec.Entries["s1-b1-d1"].Status)
	})

	mt.Run("missing subject", func(mt *mtest.T) {
		svc := newTestService(mt)
		_, err := svc.Get(context.Background(), teacher, Query{GroupID: "g1"})
		assert.Equal(mt.T, codes.InvalidArgument, status.Code(err))
	})

	mt.Run("anonymous", func(mt *mtest.T) {
		svc := newTestService(mt)
		_, err := svc.Get(context.Background(), nil, Query{GroupID: "g1", Subject: "Historia"})
		assert.Equal(mt.T, codes.Unauthenticated, status.Code(err))
	})
}

func TestResolveOwner(t *testing.T) {
	svc := &Service{}

	owner, err := svc.resolveOwner(admin, &Query{GroupID: "g1", Subject: "Historia", TeacherID: " t2 "}, access.Read)
	require.NoError(t, err)
	assert.Equal(t, "t2", owner)

	owner, err = svc.resolveOwner(admin, &Query{GroupID: "g1", Subject: "Historia"}, access.Read)
	require.NoError(t, err)
	assert.Equal(t, "a1", owner)

	owner, err = svc.resolveOwner(teacher, &Query{GroupID: "g1", Subject: "Historia", TeacherID: "t2"}, access.Read)
	require.NoError(t, err)
	assert.Equal(t, "t1", owner)
}

func TestPut(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("stores valid sheet", func(mt *mtest.T) {
		svc := newTestService(mt)
		mt.AddMockResponses(saved(sheetDoc(bson.D{{Key: "s1-b2-d4", Value: mark("F")}}, bson.D{{Key: "2", Value: 35}})))

		rec, err := svc.Put(context.Background(), teacher, &PutRequest{
			GroupID:         "g1",
			Subject:         "Historia",
			Entries:         map[string]attendance.Mark{"s1-b2-d4": {Status: attendance.Absent}},
			DaysPerBimester: map[string]int{"2": 35, "1": 0},
		})
		require.NoError(mt.T, err)
		assert.Equal(mt.T, 35, rec.DaysPerBimester["2"])
	})

	mt.Run("rejects malformed key", func(mt *mtest.T) {
		svc := newTestService(mt)
		_, err := svc.Put(context.Background(), teacher, &PutRequest{
			GroupID: "g1",
			Subject: "Historia",
			Entries: map[string]attendance.Mark{"s1-b4-d1": {Status: attendance.Present}},
		})
		assert.Equal(mt.T, codes.InvalidArgument, status.Code(err))
	})

	mt.Run("rejects oversized day count", func(mt *mtest.T) {
		svc := newTestService(mt)
		_, err := svc.Put(context.Background(), teacher, &PutRequest{
			GroupID:         "g1",
			Subject:         "Historia",
			DaysPerBimester: map[string]int{"1": 2_000_000_000},
		})
		assert.Equal(mt.T, codes.InvalidArgument, status.Code(err))
	})

	mt.Run("rejects padded key", func(mt *mtest.T) {
		svc := newTestService(mt)
		_, err := svc.Put(context.Background(), teacher, &PutRequest{
			GroupID: "g1",
			Subject: "Historia",
			Entries: map[string]attendance.Mark{"s1-b01-d002": {Status: attendance.Present}},
		})
		assert.Equal(mt.T, codes.InvalidArgument, status.Code(err))
	})

	mt.Run("rejects unknown status", func(mt *mtest.T) {
		svc := newTestService(mt)
		_, err := svc.Put(context.Background(), teacher, &PutRequest{
			GroupID: "g1",
			Subject: "Historia",
			Entries: map[string]attendance.Mark{"s1-b1-d1": {Status: "X"}},
		})
		assert.Equal(mt.T, codes.InvalidArgument, status.Code(err))
	})
}

func TestToggle(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("unmarked becomes present", func(mt *mtest.T) {
		t := mt.T
		svc := newTestService(mt)
		mt.AddMockResponses(missing(), saved(sheetDoc(bson.D{{Key: "s1-b1-d3", Value: mark("P")}}, bson.D{})))

		res, err := svc.Toggle(context.Background(), teacher, &ToggleRequest{
			GroupID: "g1", Subject: "Historia", StudentID: "s1", Bimester: 1, Day: 3,
		})
		require.NoError(t, err)
		assert.Equal(t, &ToggleResult{Key: "s1-b1-d3", Status: attendance.Present}, res)
	})

	mt.Run("absent returns to unmarked", func(mt *mtest.T) {
		svc := newTestService(mt)
		mt.AddMockResponses(found(sheetDoc(bson.D{{Key: "s1-b1-d3", Value: mark("F")}}, bson.D{})), saved(sheetDoc(bson.D{}, bson.D{})))

		res, err := svc.Toggle(context.Background(), teacher, &ToggleRequest{
			GroupID: "g1", Subject: "Historia", StudentID: "s1", Bimester: 1, Day: 3,
		})
		require.NoError(mt.T, err)
		assert.Equal(mt.T, attendance.Unmarked, res.Status)
	})

	mt.Run("day past ceiling", func(mt *mtest.T) {
		svc := newTestService(mt)
		mt.AddMockResponses(missing())

		_, err := svc.Toggle(context.Background(), teacher, &ToggleRequest{
			GroupID: "g1", Subject: "Historia", StudentID: "s1", Bimester: 1, Day: 31,
		})
		assert.Equal(mt.T, codes.InvalidArgument, status.Code(err))
	})

	mt.Run("bad bimester", func(mt *mtest.T) {
		svc := newTestService(mt)
		_, err := svc.Toggle(context.Background(), teacher, &ToggleRequest{
			GroupID: "g1", Subject: "Historia", StudentID: "s1", Bimester: 4, Day: 1,
		})
		assert.Equal(mt.T, codes.InvalidArgument, status.Code(err))
	})
}

func TestExtend(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("default increment", func(mt *mtest.T) {
		svc := newTestService(mt)
		mt.AddMockResponses(missing(), saved(sheetDoc(bson.D{}, bson.D{{Key: "2", Value: 35}})))

		res, err := svc.Extend(context.Background(), teacher, &ExtendRequest{GroupID: "g1", Subject: "Historia", Bimester: 2})
		require.NoError(mt.T, err)
		assert.Equal(mt.T, &ExtendResult{Bimester: 2, Days: 35}, res)
	})

	mt.Run("grows from stored ceiling", func(mt *mtest.T) {
		svc := newTestService(mt)
		mt.AddMockResponses(found(sheetDoc(bson.D{}, bson.D{{Key: "2", Value: 35}})), saved(sheetDoc(bson.D{}, bson.D{{Key: "2", Value: 45}})))

		res, err := svc.Extend(context.Background(), teacher, &ExtendRequest{GroupID: "g1", Subject: "Historia", Bimester: 2, Increment: 10})
		require.NoError(mt.T, err)
		assert.Equal(mt.T, 45, res.Days)
	})

	mt.Run("ceiling reached", func(mt *mtest.T) {
		svc := newTestService(mt)
		mt.AddMockResponses(found(sheetDoc(bson.D{}, bson.D{{Key: "2", Value: attendance.MaxDays}})))

		_, err := svc.Extend(context.Background(), teacher, &ExtendRequest{GroupID: "g1", Subject: "Historia", Bimester: 2, Increment: 1})
		assert.Equal(mt.T, codes.InvalidArgument, status.Code(err))
	})

	mt.Run("negative increment rejected", func(mt *mtest.T) {
		svc := newTestService(mt)
		_, err := svc.Extend(context.Background(), teacher, &ExtendRequest{GroupID: "g1", Subject: "Historia", Bimester: 2, Increment: -5})
		assert.Equal(mt.T, codes.InvalidArgument, status.Code(err))
	})
}

func TestTally(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("counts within ceiling", func(mt *mtest.T) {
		t := mt.T
		svc := newTestService(mt)
		entries := bson.D{
			{Key: "s1-b1-d1", Value: mark("P")},
			{Key: "s1-b1-d2", Value: mark("F")},
			{Key: "s1-b1-d3", Value: mark("P")},
			{Key: "s1-b1-d5", Value: mark("P")},
			{Key: "s1-b1-d12", Value: mark("P")},
			{Key: "s2-b2-d1", Value: mark("F")},
		}
		mt.AddMockResponses(found(sheetDoc(entries, bson.D{{Key: "1", Value: 10}})), rosterDoc())

		res, err := svc.Tally(context.Background(), admin, Query{GroupID: "g1", Subject: "Historia", TeacherID: "t1"}, 1)
		require.NoError(t, err)
		assert.Equal(t, 10, res.Days)
		require.Len(t, res.Students, 2)
		assert.Equal(t, "Pérez Gil, Luis", res.Students[0].Name)
		assert.Equal(t, attendance.Tally{Present: 3, Absent: 1}, res.Students[0].Tally)
		assert.Equal(t, attendance.Tally{}, res.Students[1].Tally)
	})

	mt.Run("no sheet yet", func(mt *mtest.T) {
		svc := newTestService(mt)
		mt.AddMockResponses(missing(), rosterDoc())

		res, err := svc.Tally(context.Background(), teacher, Query{GroupID: "g1", Subject: "Historia"}, 3)
		require.NoError(mt.T, err)
		assert.Equal(mt.T, attendance.DefaultDays, res.Days)
		assert.Len(mt.T, res.Students, 2)
	})

	mt.Run("bad bimester", func(mt *mtest.T) {
		svc := newTestService(mt)
		_, err := svc.Tally(context.Background(), teacher, Query{GroupID: "g1", Subject: "Historia"}, 0)
		assert.Equal(mt.T, codes.InvalidArgument, status.Code(err))
	})
}
