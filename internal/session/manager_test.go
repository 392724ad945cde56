package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/rollcall/internal/ledger"
	"github.com/rollcall/rollcall/internal/session"
)

func TestStartRequiresKnownCourse(t *testing.T) {
	m := setupManager(t)

	_, err := m.Start("NOPE", ledger.ChannelFace, session.PushSource{})
	assert.ErrorIs(t, err, session.ErrUnknownCourse)
}

func TestStartRejectsUnknownChannel(t *testing.T) {
	m := setupManager(t)

	_, err := m.Start("CS101", ledger.Channel("carrier-pigeon"), session.PushSource{})
	assert.Error(t, err)
}

func TestGetResolvesActiveSession(t *testing.T) {
	m := setupManager(t)

	c, err := m.Start("CS101", ledger.ChannelFace, session.PushSource{})
	require.NoError(t, err)

	got, err := m.Get(c.ID())
	require.NoError(t, err)
	assert.Same(t, c, got)

	_, err = m.Get("no-such-handle")
	assert.ErrorIs(t, err, session.ErrUnknownSession)
}

func TestEndReleasesAndForgets(t *testing.T) {
	m := setupManager(t)

	src := &queueSource{}
	c, err := m.Start("CS101", ledger.ChannelFace, src)
	require.NoError(t, err)

	require.NoError(t, m.End(c.ID()))
	assert.True(t, src.closed)

	_, err = m.Get(c.ID())
	assert.ErrorIs(t, err, session.ErrUnknownSession)

	err = m.End(c.ID())
	assert.ErrorIs(t, err, session.ErrUnknownSession)
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	m := setupManager(t)
	require.NoError(t, m.Courses().Create("CS202"))

	a, err := m.Start("CS101", ledger.ChannelFace, session.PushSource{})
	require.NoError(t, err)
	b, err := m.Start("CS202", ledger.ChannelFace, session.PushSource{})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())

	// Identities enrolled in one course are invisible to the other.
	_, err = a.RegisterIdentity("alice", aliceFrame)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := b.SubmitFrame(aliceFrame)
		require.NoError(t, err)
	}
	match, err := b.AttemptLogin()
	require.NoError(t, err)
	assert.NotEqual(t, "alice", match.Label)
}
