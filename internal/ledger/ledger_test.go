package ledger_test

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/rollcall/internal/config"
	"github.com/rollcall/rollcall/internal/course"
	"github.com/rollcall/rollcall/internal/ledger"
	"github.com/rollcall/rollcall/internal/storage"
)

func setupTestLedger(t *testing.T) (*ledger.Ledger, *storage.DB) {
	t.Helper()

	cfg := &config.Config{
		DBPath: filepath.Join(t.TempDir(), "test.sqlite3"),
	}
	db, err := storage.NewDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, course.NewService(db).Create("CS101"))
	return ledger.New(db), db
}

func TestAppendAndReadBack(t *testing.T) {
	l, _ := setupTestLedger(t)
	ts := time.Date(2026, 9, 1, 10, 30, 0, 0, time.Local)

	id, err := l.Append("CS101", "alice", "", "Present", ledger.ChannelFace, ts)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	events, err := l.Events("CS101")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Identity)
	assert.Equal(t, "Present", events[0].Action)
	assert.Equal(t, ledger.ChannelFace, events[0].Channel)
	assert.True(t, ts.Equal(events[0].Timestamp))
}

func TestEventsArrivalOrder(t *testing.T) {
	l, _ := setupTestLedger(t)

	// Timestamps deliberately out of order: the ledger orders by arrival,
	// not by timestamp.
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.Local)
	_, err := l.Append("CS101", "bob", "", "Present", ledger.ChannelFace, base.Add(time.Hour))
	require.NoError(t, err)
	_, err = l.Append("CS101", "alice", "", "Present", ledger.ChannelFace, base)
	require.NoError(t, err)

	events, err := l.Events("CS101")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "bob", events[0].Identity)
	assert.Equal(t, "alice", events[1].Identity)
}

func TestExportLineLayout(t *testing.T) {
	l, _ := setupTestLedger(t)
	ts := time.Date(2026, 9, 1, 10, 30, 0, 0, time.Local)

	_, err := l.Append("CS101", "alice", "", "Present", ledger.ChannelFace, ts)
	require.NoError(t, err)
	_, err = l.Append("CS101", "carol", "c@x.edu", "Present", ledger.ChannelQR, ts)
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, l.Export(&sb, "CS101"))

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2026-09-01 10:30:00, alice, Present", lines[0])
	assert.Equal(t, "2026-09-01 10:30:00, carol, c@x.edu, Present", lines[1])
}

func TestLedgerIsScopedByCourse(t *testing.T) {
	l, db := setupTestLedger(t)
	require.NoError(t, course.NewService(db).Create("CS202"))

	_, err := l.Append("CS101", "alice", "", "Present", ledger.ChannelFace, time.Now())
	require.NoError(t, err)

	n, err := l.Count("CS202")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = l.Count("CS101")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLedgerIsAppendOnly(t *testing.T) {
	l, db := setupTestLedger(t)

	_, err := l.Append("CS101", "alice", "", "Present", ledger.ChannelFace, time.Now())
	require.NoError(t, err)

	// Mutation and deletion are blocked at the database layer.
	_, err = db.GetConnection().Exec(`UPDATE attendance_events SET identity = 'mallory'`)
	assert.Error(t, err)

	_, err = db.GetConnection().Exec(`DELETE FROM attendance_events`)
	assert.Error(t, err)

	events, err := l.Events("CS101")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Identity)
}

func TestLedgerPerformsNoDeduplication(t *testing.T) {
	l, _ := setupTestLedger(t)
	ts := time.Now()

	// Idempotence is the state machine's responsibility, not the ledger's.
	for i := 0; i < 3; i++ {
		_, err := l.Append("CS101", "alice", "", "Present", ledger.ChannelFace, ts)
		require.NoError(t, err)
	}

	n, err := l.Count("CS101")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
