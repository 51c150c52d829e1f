package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/AlekSi/pointer"
	log "github.com/sirupsen/logrus"

	"github.com/soniclabs/native-recorder/internal/appstats"
	"github.com/soniclabs/native-recorder/internal/config"
	"github.com/soniclabs/native-recorder/internal/engine"
	"github.com/soniclabs/native-recorder/internal/pubsub"
	"github.com/soniclabs/native-recorder/internal/pubsub/events"
	"github.com/soniclabs/native-recorder/internal/session"
	"github.com/soniclabs/native-recorder/internal/token"
)

// Server dispatches pubsub commands to engine sessions and relays every
// session event back to the publish channel.
type Server struct {
	cfg      *config.Config
	pubsub   pubsub.PubSub
	tokens   token.Builder
	sessions sync.Map
	wg       sync.WaitGroup
}

// managedSession ties a session to its event relay subscription.
type managedSession struct {
	id          string
	sess        *session.Session
	unsubscribe func()
}

func NewServer(cfg *config.Config, ps pubsub.PubSub) *Server {
	return &Server{
		cfg:    cfg,
		pubsub: ps,
		tokens: tokenBuilder(cfg.Token),
	}
}

// tokenBuilder selects the token source configured for this deployment.
// Tokens are minted by the vendor's signing service; this process either
// receives one pre-minted (static) or runs against an engine with
// certificate checks disabled (insecure).
func tokenBuilder(cfg config.Token) token.Builder {
	if cfg.Static != "" {
		return token.StaticBuilder{Token: cfg.Static}
	}

	if cfg.AllowInsecure {
		return token.Insecure{}
	}

	return nil
}

func (s *Server) HandlePubSub(ctx context.Context, msg []byte) {
	log.Trace(string(msg))
	event := events.Decode(msg)

	if !event.IsValid() {
		appstats.OnInvalidRequest()
		return
	}

	appstats.OnServerRequest(event.Id)

	switch event.Id {
	case events.StartRecordingKey:
		s.handleStartRecording(event.StartRecording())

	case events.StopRecordingKey:
		s.handleStopRecording(event.StopRecording(), "stopped")

	case events.SetMixLayoutKey:
		s.handleSetMixLayout(event.SetMixLayout())

	case events.GetRecorderStatusKey:
		s.PublishPubSub(events.NewRecorderStatus(s.cfg.App.Version, s.cfg.App.InstanceId))
	}
}

func (s *Server) handleStartRecording(e *events.StartRecording) {
	if e == nil {
		return
	}

	if err := e.Validate(); err != nil {
		log.WithField("session", e.SessionId).Error(err)
		s.PublishPubSub(e.Fail(err))
		return
	}

	if _, ok := s.sessions.Load(e.SessionId); ok {
		err := fmt.Errorf("session %s already exists", e.SessionId)
		log.Error(err)
		s.PublishPubSub(e.Fail(err))
		return
	}

	if s.tokens == nil {
		err := fmt.Errorf("no token source configured")
		log.WithField("session", e.SessionId).Error(err)
		s.PublishPubSub(e.Fail(err))
		return
	}

	joinTimeout := s.cfg.Engine.JoinTimeout

	if e.JoinTimeoutSeconds > 0 {
		joinTimeout = time.Duration(e.JoinTimeoutSeconds) * time.Second
	}

	sess, err := session.New(session.Config{
		AppID:            s.cfg.Token.AppId,
		Certificate:      s.cfg.Token.Certificate,
		Channel:          e.Channel,
		Account:          e.Account,
		OutputRoot:       s.cfg.Recorder.Directory,
		DirMode:          parseFileMode(s.cfg.Recorder.DirFileMode, 0700),
		FileMode:         parseFileMode(s.cfg.Recorder.FileMode, 0600),
		Driver:           s.cfg.Engine.Driver,
		BinaryDir:        s.cfg.Engine.BinaryDir,
		LogLevel:         engine.LogLevel(s.cfg.Engine.LogLevel),
		JoinTimeout:      joinTimeout,
		JoinTimeoutFatal: s.cfg.Engine.JoinTimeoutFatal,
		Tokens:           s.tokens,
	})

	if err != nil {
		log.WithField("session", e.SessionId).Error(err)
		appstats.OnSessionError("create")
		s.PublishPubSub(e.Fail(err))
		return
	}

	sessionId := e.SessionId
	unsubscribe := sess.Subscribe(func(ev engine.Event) {
		s.PublishPubSub(events.NewSessionEvent(sessionId, ev))
	})

	s.sessions.Store(sessionId, &managedSession{
		id:          sessionId,
		sess:        sess,
		unsubscribe: unsubscribe,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := sess.Start(context.Background()); err != nil {
			log.WithField("session", sessionId).Error(err)
			appstats.OnSessionError("join")
			s.PublishPubSub(e.Fail(err))
			s.stopSession(sessionId, "join failed")
			return
		}

		s.PublishPubSub(e.Success(sess.RecordPath()))
	}()
}

func (s *Server) handleStopRecording(e *events.StopRecording, reason string) {
	if e == nil {
		return
	}

	if s.stopSession(e.SessionId, reason) {
		s.PublishPubSub(e.Stopped(reason))
	}
}

func (s *Server) handleSetMixLayout(e *events.SetMixLayout) {
	if e == nil {
		return
	}

	v, ok := s.sessions.Load(e.SessionId)

	if !ok {
		s.PublishPubSub(e.Response(fmt.Errorf("session %s not found", e.SessionId)))
		return
	}

	err := v.(*managedSession).sess.SetMixLayout(e.Layout)

	if err != nil {
		log.WithField("session", e.SessionId).Error(err)
	}

	s.PublishPubSub(e.Response(err))
}

// stopSession tears one session down: unsubscribes the relay, stops the
// engine, writes the summary file and drops the session from the map.
func (s *Server) stopSession(id string, reason string) bool {
	v, ok := s.sessions.LoadAndDelete(id)

	if !ok {
		return false
	}

	m := v.(*managedSession)
	m.unsubscribe()

	if err := m.sess.Stop(); err != nil {
		log.WithField("session", id).Errorf("failed to stop session: %v", err)
		appstats.OnSessionError("stop")
	}

	if s.cfg.Recorder.WriteSummaryFile {
		s.writeSummary(m, reason)
	}

	return true
}

// parseFileMode interprets an octal mode string from the configuration,
// falling back when it does not parse.
func parseFileMode(mode string, fallback os.FileMode) os.FileMode {
	parsed, err := strconv.ParseUint(mode, 0, 32)

	if err != nil {
		log.Warnf("Invalid file mode %q, using %#o", mode, fallback)
		return fallback
	}

	return os.FileMode(parsed)
}

func (s *Server) writeSummary(m *managedSession, reason string) {
	fileMode := parseFileMode(s.cfg.Recorder.FileMode, 0600)

	summary := &appstats.SessionSummary{
		Channel:        m.sess.Channel(),
		RecordPath:     m.sess.RecordPath(),
		State:          m.sess.State().String(),
		StopReason:     reason,
		StartedAtUTC:   m.sess.StartedAt().UTC(),
		StoppedAtUTC:   time.Now().UTC(),
		RecordingStats: m.sess.LastRecordingStats(),
	}

	if err := m.sess.JoinError(); err != nil {
		summary.JoinError = pointer.ToString(err.Error())
	}

	writer := appstats.NewSummaryWriter(fileMode)

	if err := writer.WriteSummary(m.sess.RecordPath(), summary); err != nil {
		log.WithField("session", m.id).Errorf("failed to write session summary: %v", err)
	}
}

func (s *Server) PublishPubSub(msg interface{}) {
	j, _ := json.Marshal(msg)
	s.pubsub.Publish(s.cfg.PubSub.Channels.Publish, j)
	appstats.OnServerResponse(responseKey(msg))
}

func responseKey(msg interface{}) string {
	switch msg.(type) {
	case *events.StartRecordingResponse:
		return events.StartRecordingResponseKey
	case *events.RecordingStopped:
		return events.RecordingStoppedKey
	case *events.SetMixLayoutResponse:
		return events.SetMixLayoutResponseKey
	case *events.RecorderStatus:
		return events.RecorderStatusKey
	case *events.SessionEvent:
		return events.SessionEventKey
	default:
		return "unknown"
	}
}

func (s *Server) OnStart() error {
	log.Info("Application started. Version=", s.cfg.App.Version, " InstanceId=", s.cfg.App.InstanceId)
	s.PublishPubSub(events.NewRecorderStatus(s.cfg.App.Version, s.cfg.App.InstanceId))
	return nil
}

// Close stops every live session and waits for pending joins to settle their
// responses.
func (s *Server) Close() error {
	s.sessions.Range(func(key, _ interface{}) bool {
		s.stopSession(key.(string), "shutdown")
		return true
	})

	s.wg.Wait()

	return nil
}
