package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rollcall/rollcall/internal/config"
	"github.com/rollcall/rollcall/internal/course"
	"github.com/rollcall/rollcall/internal/face"
	"github.com/rollcall/rollcall/internal/ledger"
	"github.com/rollcall/rollcall/internal/qr"
	"github.com/rollcall/rollcall/internal/storage"
	"github.com/rollcall/rollcall/internal/vector"
)

// ErrUnknownCourse reports a session start against a course that was never
// created.
var ErrUnknownCourse = errors.New("unknown course")

// ErrUnknownSession reports a handle that does not name an active session.
var ErrUnknownSession = errors.New("unknown session")

// Manager composes the per-course stores into check-in sessions and tracks
// the active ones by handle.
type Manager struct {
	mu sync.Mutex

	db      *storage.DB
	cfg     *config.Config
	logger  *zap.Logger
	courses *course.Service
	ledger  *ledger.Ledger
	encoder face.Encoder

	sessions map[string]*Controller
}

// NewManager creates a session manager over the shared database.
func NewManager(db *storage.DB, cfg *config.Config, logger *zap.Logger, encoder face.Encoder) *Manager {
	return &Manager{
		db:       db,
		cfg:      cfg,
		logger:   logger,
		courses:  course.NewService(db),
		ledger:   ledger.New(db),
		encoder:  encoder,
		sessions: make(map[string]*Controller),
	}
}

// Courses exposes the course service for collaborators.
func (m *Manager) Courses() *course.Service {
	return m.courses
}

// Ledger exposes the attendance ledger for collaborators.
func (m *Manager) Ledger() *ledger.Ledger {
	return m.ledger
}

// Start opens a new session for a course on one check-in channel, taking
// exclusive ownership of the frame source.
func (m *Manager) Start(crn string, channel ledger.Channel, src FrameSource) (*Controller, error) {
	if channel != ledger.ChannelFace && channel != ledger.ChannelQR {
		return nil, fmt.Errorf("unsupported check-in channel %q", channel)
	}

	exists, err := m.courses.Exists(crn)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCourse, crn)
	}

	matcher := face.NewMatcher(m.cfg.Threshold)
	c := &Controller{
		id:        uuid.New().String(),
		crn:       crn,
		channel:   channel,
		logger:    m.logger,
		src:       src,
		frameSkip: m.cfg.FrameSkip,
		tick:      time.Duration(m.cfg.TickIntervalMS) * time.Millisecond,
		encoder:   m.encoder,
		agg:       face.NewAggregator(m.encoder, m.cfg.WindowCapacity),
		matcher:   matcher,
		guard:     face.NewGuard(matcher),
		vectors:   vector.NewStore(m.db, crn),
		pipeline:  qr.NewPipeline(),
		artifacts: qr.NewArtifactStore(m.db, crn),
		ledger:    m.ledger,
	}

	m.mu.Lock()
	m.sessions[c.id] = c
	m.mu.Unlock()

	m.logger.Info("session started",
		zap.String("session_id", c.id),
		zap.String("crn", crn),
		zap.String("channel", string(channel)))
	return c, nil
}

// Get resolves an active session by handle.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return c, nil
}

// End releases a session's device and forgets its handle.
func (m *Manager) End(id string) error {
	m.mu.Lock()
	c, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	m.logger.Info("session ended", zap.String("session_id", id))
	return c.End()
}

// CloseAll ends every active session. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Controller)
	m.mu.Unlock()

	for id, c := range sessions {
		if err := c.End(); err != nil {
			m.logger.Warn("failed to end session", zap.String("session_id", id), zap.Error(err))
		}
	}
}
