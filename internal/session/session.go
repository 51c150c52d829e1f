package session

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/soniclabs/native-recorder/internal/appstats"
	"github.com/soniclabs/native-recorder/internal/engine"
	"github.com/soniclabs/native-recorder/internal/token"
)

// DefaultAccount is the sentinel account used when the caller supplies none.
const DefaultAccount = "0"

// DefaultOutputRoot is the record directory root used when none is set.
const DefaultOutputRoot = "rec"

// Config describes one recording session. Values are treated as immutable:
// New derives an effective config with defaults applied and never mutates
// the caller's value.
type Config struct {
	// Credentials for the token service. Never logged.
	AppID       string
	Certificate string

	// Channel is the target channel identifier. Required.
	Channel string

	// Account identifies the recording participant. Defaults to
	// DefaultAccount.
	Account string

	// OutputRoot is the directory recordings are nested under. Defaults to
	// DefaultOutputRoot.
	OutputRoot string

	// DirMode and FileMode set the permissions of the record directory and
	// the engine hand-off file. Zero values mean 0700 and 0600.
	DirMode  os.FileMode
	FileMode os.FileMode

	// PathTemplate names the per-session directory below OutputRoot.
	// Defaults to DefaultPathTemplate.
	PathTemplate PathTemplate

	// Driver selects the registered engine driver. Required.
	Driver string

	// BinaryDir points at the vendor's loadable module directory, passed
	// through to the engine unchanged.
	BinaryDir string

	// LogLevel is a verbosity hint forwarded to the engine.
	LogLevel engine.LogLevel

	// JoinTimeout, when non-zero, arms an advisory timer on Start: expiry
	// is logged and counted but the join outcome is still decided by the
	// engine's callback. Setting JoinTimeoutFatal makes expiry settle the
	// join as failed instead; a late engine callback is then ignored.
	JoinTimeout      time.Duration
	JoinTimeoutFatal bool

	// Tokens mints the join token. Required.
	Tokens token.Builder

	// Now is the clock used to capture the session start time. Defaults to
	// time.Now; overridable in tests.
	Now func() time.Time
}

// withDefaults returns a copy of cfg with defaults filled in.
func (cfg Config) withDefaults() Config {
	if cfg.Account == "" {
		cfg.Account = DefaultAccount
	}

	if cfg.OutputRoot == "" {
		cfg.OutputRoot = DefaultOutputRoot
	}

	if cfg.PathTemplate == nil {
		cfg.PathTemplate = DefaultPathTemplate
	}

	if cfg.DirMode == 0 {
		cfg.DirMode = 0700
	}

	if cfg.FileMode == 0 {
		cfg.FileMode = 0600
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return cfg
}

func (cfg Config) validate() error {
	switch {
	case cfg.Channel == "":
		return &ConfigurationError{Field: "channel", Reason: "must not be empty"}
	case cfg.AppID == "":
		return &ConfigurationError{Field: "appId", Reason: "must not be empty"}
	case cfg.Certificate == "":
		return &ConfigurationError{Field: "certificate", Reason: "must not be empty"}
	case cfg.Driver == "":
		return &ConfigurationError{Field: "driver", Reason: "must not be empty"}
	case cfg.Tokens == nil:
		return &ConfigurationError{Field: "tokens", Reason: "builder is required"}
	}

	return nil
}

// State is the join lifecycle of a session.
type State int32

const (
	StateIdle State = iota
	StateJoining
	StateJoined
	StateFailed
	StateLeft
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateFailed:
		return "failed"
	case StateLeft:
		return "left"
	default:
		return "unknown"
	}
}

// Session drives one native engine handle through a join/record/leave
// lifecycle and fans its callbacks out to subscribers. Control calls must be
// issued in order (Start, then SetMixLayout, then Stop); they are not safe
// for concurrent use with each other.
type Session struct {
	cfg        Config
	startedAt  time.Time
	recordPath string
	cfgPath    string
	eng        engine.Engine

	state    atomic.Int32
	joinDone chan struct{}
	joinErr  error

	stopOnce sync.Once
	stopErr  error

	subMu   sync.RWMutex
	subs    map[int]engine.Handler
	nextSub int

	statsMu   sync.Mutex
	lastStats *engine.RecordingStats
}

// New validates cfg, prepares the on-disk session layout and opens the
// engine handle. The record directory is created and the engine hand-off
// file written before the engine is touched; the engine's callbacks are
// subscribed before New returns, so no join callback can be missed.
func New(cfg Config) (*Session, error) {
	eff := cfg.withDefaults()

	if err := eff.validate(); err != nil {
		return nil, err
	}

	startedAt := eff.Now()
	recordPath, err := ResolvePath(eff.OutputRoot, eff.PathTemplate, eff.Channel, startedAt)

	if err != nil {
		return nil, &SessionCreationError{Op: "resolve", Path: eff.OutputRoot, Err: err}
	}

	cfgPath, err := writeEngineCfg(recordPath, eff.DirMode, eff.FileMode)

	if err != nil {
		return nil, err
	}

	eng, err := engine.Open(eff.Driver, eff.BinaryDir)

	if err != nil {
		return nil, errors.Wrapf(err, "failed to open engine driver %s", eff.Driver)
	}

	s := &Session{
		cfg:        eff,
		startedAt:  startedAt,
		recordPath: recordPath,
		cfgPath:    cfgPath,
		eng:        eng,
		joinDone:   make(chan struct{}),
		subs:       make(map[int]engine.Handler),
	}

	if eff.LogLevel != engine.LogLevelDefault {
		if err := eng.SetLogLevel(eff.LogLevel); err != nil {
			log.WithField("session", eff.Channel).Warnf("failed to set engine log level: %v", err)
		}
	}

	eng.Subscribe(s.dispatch)
	appstats.Sessions.Inc()

	log.WithField("session", eff.Channel).
		Debugf("Session created, recording to %s", recordPath)

	return s, nil
}

// Channel returns the target channel identifier.
func (s *Session) Channel() string { return s.cfg.Channel }

// RecordPath returns the absolute record directory, fixed at construction.
func (s *Session) RecordPath() string { return s.recordPath }

// StartedAt returns the session start time captured at construction.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// State returns the current join lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// JoinError returns the error the join settled with, or nil while the join is
// pending or after a successful join.
func (s *Session) JoinError() error {
	select {
	case <-s.joinDone:
		return s.joinErr
	default:
		return nil
	}
}

// Subscribe registers a handler for every relayed engine event and returns
// its unsubscribe function. Handlers run on the engine's callback goroutine
// and must not block; hand off to a queue if processing is slow. There is no
// replay: a handler attached late misses prior events.
func (s *Session) Subscribe(h engine.Handler) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = h
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Start mints the join token, submits the join request and blocks until the
// engine settles the outcome. It returns nil once joined, a *JoinError with
// the native codes on failure, or ctx's error if the caller gives up waiting
// (the join itself cannot be cancelled once submitted).
func (s *Session) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateJoining)) {
		return &InvalidStateError{Op: "start", State: s.State()}
	}

	tok, err := s.cfg.Tokens.BuildToken(
		s.cfg.AppID, s.cfg.Certificate, s.cfg.Channel, s.cfg.Account,
		token.RoleSubscriber, 0,
	)

	if err != nil {
		err = errors.Wrap(err, "failed to build join token")
		s.settle(StateFailed, err)
		return err
	}

	if s.cfg.JoinTimeout > 0 {
		timer := time.AfterFunc(s.cfg.JoinTimeout, s.onJoinTimeout)
		defer timer.Stop()
	}

	err = s.eng.JoinChannel(engine.JoinRequest{
		AppID:     s.cfg.AppID,
		Token:     tok,
		Channel:   s.cfg.Channel,
		Account:   s.cfg.Account,
		BinaryDir: s.cfg.BinaryDir,
		CfgPath:   s.cfgPath,
	})

	if err != nil {
		err = errors.Wrap(err, "failed to submit join request")
		s.settle(StateFailed, err)
		return err
	}

	log.WithField("session", s.cfg.Channel).Debug("Join submitted, waiting for engine callback")

	select {
	case <-s.joinDone:
		return s.joinErr

	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) onJoinTimeout() {
	if s.State() != StateJoining {
		return
	}

	appstats.OnJoinTimeout()

	if s.cfg.JoinTimeoutFatal {
		log.WithField("session", s.cfg.Channel).
			Errorf("No join callback within %s, failing session", s.cfg.JoinTimeout)
		s.settle(StateFailed, &JoinTimeoutError{After: s.cfg.JoinTimeout})
		return
	}

	log.WithField("session", s.cfg.Channel).
		Warnf("No join callback within %s, still waiting", s.cfg.JoinTimeout)
}

// settle moves a pending join to its terminal state exactly once. The losing
// caller's outcome is discarded.
func (s *Session) settle(terminal State, err error) bool {
	if !s.state.CompareAndSwap(int32(StateJoining), int32(terminal)) {
		return false
	}

	s.joinErr = err
	close(s.joinDone)
	appstats.OnJoinResult(terminal == StateJoined)

	return true
}

// dispatch is the single handler installed on the engine. It arbitrates the
// pending join and relays every event to the subscriber set unchanged.
func (s *Session) dispatch(ev engine.Event) {
	if ev == nil || ev.Kind() == "" {
		log.WithField("session", s.cfg.Channel).Warn("Dropping engine event of unknown kind")
		return
	}

	switch e := ev.(type) {
	case engine.JoinSuccess:
		if s.settle(StateJoined, nil) {
			log.WithField("session", s.cfg.Channel).
				Infof("Joined channel %s as uid %s", e.Channel, e.UID)
		}

	case engine.EngineError:
		if s.settle(StateFailed, &JoinError{Code: e.Code, Status: e.Status}) {
			log.WithField("session", s.cfg.Channel).
				Errorf("Join failed: error=%d status=%d", e.Code, e.Status)
		}

	case engine.RecordingStats:
		s.statsMu.Lock()
		stats := e
		s.lastStats = &stats
		s.statsMu.Unlock()
	}

	appstats.OnEventRelayed(string(ev.Kind()))
	s.relay(ev)
}

func (s *Session) relay(ev engine.Event) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, h := range s.subs {
		h(ev)
	}
}

// SetMixLayout forwards a layout descriptor to the engine. It is only valid
// once the session has joined; earlier calls are rejected without touching
// the engine.
func (s *Session) SetMixLayout(layout engine.MixLayout) error {
	if st := s.State(); st != StateJoined {
		return &InvalidStateError{Op: "setMixLayout", State: st}
	}

	return s.eng.SetMixLayout(layout)
}

// Stop leaves the channel and releases the engine handle, in that order.
// Leave must precede release or in-flight callbacks may be lost. Stop is
// idempotent; a join still pending when Stop is called is settled as failed.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		s.settle(StateFailed, &InvalidStateError{Op: "join", State: StateLeft})

		if err := s.eng.LeaveChannel(); err != nil {
			s.stopErr = errors.Wrap(err, "failed to leave channel")
		}

		if err := s.eng.Release(); err != nil && s.stopErr == nil {
			s.stopErr = errors.Wrap(err, "failed to release engine")
		}

		s.state.Store(int32(StateLeft))
		appstats.Sessions.Dec()

		log.WithField("session", s.cfg.Channel).Info("Session stopped")
	})

	return s.stopErr
}

// LastRecordingStats returns the most recent aggregate stats reported by the
// engine, or nil if none arrived yet.
func (s *Session) LastRecordingStats() *engine.RecordingStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	if s.lastStats == nil {
		return nil
	}

	stats := *s.lastStats
	return &stats
}
