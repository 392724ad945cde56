package course_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/rollcall/internal/config"
	"github.com/rollcall/rollcall/internal/course"
	"github.com/rollcall/rollcall/internal/storage"
)

func setupTestService(t *testing.T) *course.Service {
	t.Helper()

	cfg := &config.Config{
		DBPath: filepath.Join(t.TempDir(), "test.sqlite3"),
	}
	db, err := storage.NewDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return course.NewService(db)
}

func TestCreateAndExists(t *testing.T) {
	svc := setupTestService(t)

	exists, err := svc.Exists("CS101")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, svc.Create("CS101"))

	exists, err = svc.Exists("CS101")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateIsIdempotent(t *testing.T) {
	svc := setupTestService(t)

	require.NoError(t, svc.Create("CS101"))
	require.NoError(t, svc.Create("CS101"))

	courses, err := svc.List()
	require.NoError(t, err)
	assert.Len(t, courses, 1)
}

func TestCreateRejectsEmptyCRN(t *testing.T) {
	svc := setupTestService(t)
	assert.Error(t, svc.Create(""))
}

func TestListReturnsAllCourses(t *testing.T) {
	svc := setupTestService(t)

	require.NoError(t, svc.Create("CS101"))
	require.NoError(t, svc.Create("CS202"))

	courses, err := svc.List()
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "CS101", courses[0].CRN)
	assert.Equal(t, "CS202", courses[1].CRN)
	assert.False(t, courses[0].CreatedAt.IsZero())
}
