package face_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/rollcall/internal/config"
	"github.com/rollcall/rollcall/internal/course"
	"github.com/rollcall/rollcall/internal/face"
	"github.com/rollcall/rollcall/internal/storage"
	"github.com/rollcall/rollcall/internal/vector"
)

func setupGuardTest(t *testing.T) (*face.Guard, *vector.Store) {
	t.Helper()

	cfg := &config.Config{
		DBPath: filepath.Join(t.TempDir(), "test.sqlite3"),
	}
	db, err := storage.NewDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, course.NewService(db).Create("CS101"))
	return face.NewGuard(face.NewMatcher(0.6)), vector.NewStore(db, "CS101")
}

func TestGuardRegistersNewIdentity(t *testing.T) {
	guard, store := setupGuardTest(t)

	result, err := guard.Register(store, "alice", []float32{0, 0})
	require.NoError(t, err)
	assert.Equal(t, face.RegistrationOK, result.Status)

	rec, err := store.Get("alice")
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestGuardRejectsDuplicateLabel(t *testing.T) {
	guard, store := setupGuardTest(t)

	_, err := guard.Register(store, "alice", []float32{0, 0})
	require.NoError(t, err)

	// Any vector under an existing label is rejected, even a distant one.
	result, err := guard.Register(store, "alice", []float32{9, 9})
	require.NoError(t, err)
	assert.Equal(t, face.RegistrationDuplicateLabel, result.Status)

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGuardRejectsAlreadyEnrolledFace(t *testing.T) {
	guard, store := setupGuardTest(t)

	_, err := guard.Register(store, "alice", []float32{0, 0})
	require.NoError(t, err)

	// bob's vector is at distance 0.2 from alice's stored vector.
	result, err := guard.Register(store, "bob", []float32{0.2, 0})
	require.NoError(t, err)
	assert.Equal(t, face.RegistrationAlreadyEnrolled, result.Status)
	assert.Equal(t, "alice", result.ExistingLabel)

	// No write happened on rejection.
	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGuardChecksLabelBeforeFace(t *testing.T) {
	guard, store := setupGuardTest(t)

	_, err := guard.Register(store, "alice", []float32{0, 0})
	require.NoError(t, err)

	// Re-registering the same label with a matching face reports the label
	// collision, which is checked first.
	result, err := guard.Register(store, "alice", []float32{0.1, 0})
	require.NoError(t, err)
	assert.Equal(t, face.RegistrationDuplicateLabel, result.Status)
}

func TestGuardRejectsMissingFace(t *testing.T) {
	guard, store := setupGuardTest(t)

	result, err := guard.Register(store, "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, face.RegistrationNoFace, result.Status)

	n, err := store.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGuardAllowsDistinctFaces(t *testing.T) {
	guard, store := setupGuardTest(t)

	_, err := guard.Register(store, "alice", []float32{0, 0})
	require.NoError(t, err)

	result, err := guard.Register(store, "bob", []float32{2, 0})
	require.NoError(t, err)
	assert.Equal(t, face.RegistrationOK, result.Status)

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
