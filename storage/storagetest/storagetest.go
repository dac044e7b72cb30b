// Package storagetest provides an in-memory SQLite storage for tests.
package storagetest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"studentfiles/models"
	"studentfiles/storage"
)

// New returns a migrated storage backed by a private in-memory database.
func New(t testing.TB) *storage.SQLStorage {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	store, err := storage.NewSQLiteStorage(dsn)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Mongo returns a migrated storage in a throwaway database on the server at
// MONGO_URI. The test is skipped when MONGO_URI is unset.
func Mongo(t testing.TB) *storage.MongoStorage {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	database := "studentfiles_test_" + strings.ReplaceAll(uuid.NewString()[:13], "-", "")
	store, err := storage.NewMongoStorage(ctx, uri, database)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() {
		dropCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = store.Drop(dropCtx)
		_ = store.Close()
	})
	return store
}

// Teacher inserts a teacher with a unique link code.
func Teacher(t testing.TB, store storage.Storage, mutate ...func(*models.Teacher)) *models.Teacher {
	t.Helper()
	teacher := &models.Teacher{
		Name:       "أ. سارة",
		SchoolName: "مدرسة النور",
		Email:      uuid.NewString()[:8] + "@school.test",
		LinkCode:   uuid.NewString()[:8],
	}
	for _, m := range mutate {
		m(teacher)
	}
	require.NoError(t, store.CreateTeacher(context.Background(), teacher))
	return teacher
}

// Student inserts an active student for teacherID.
func Student(t testing.TB, store storage.Storage, teacherID uint, civilID, name string) *models.Student {
	t.Helper()
	student := &models.Student{
		CivilID:     civilID,
		StudentName: name,
		Grade:       "الخامس",
		ClassNumber: 2,
		Subject:     "رياضيات",
		TeacherID:   teacherID,
	}
	require.NoError(t, store.CreateStudent(context.Background(), student))
	return student
}
