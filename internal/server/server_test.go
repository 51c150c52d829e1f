package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniclabs/native-recorder/internal/appstats"
	"github.com/soniclabs/native-recorder/internal/config"
	"github.com/soniclabs/native-recorder/internal/engine"
	"github.com/soniclabs/native-recorder/internal/pubsub"
	"github.com/soniclabs/native-recorder/internal/pubsub/events"
)

// Mock PubSub
type mockPubSub struct {
	publishChan chan []byte
}

func (p *mockPubSub) Publish(channel string, msg []byte) {
	p.publishChan <- msg
}
func (p *mockPubSub) Subscribe(channel string, handler pubsub.PubSubHandler, onStart func() error) error {
	return nil
}
func (p *mockPubSub) Check() error { return nil }
func (p *mockPubSub) Close() error { return nil }

var _ pubsub.PubSub = (*mockPubSub)(nil)

// Mock engine, handed out by the test driver
type mockEngine struct {
	mu           sync.Mutex
	handler      engine.Handler
	joins        []engine.JoinRequest
	layouts      []engine.MixLayout
	leaveCalls   int
	releaseCalls int
}

func (m *mockEngine) SetLogLevel(engine.LogLevel) error { return nil }

func (m *mockEngine) Subscribe(h engine.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

func (m *mockEngine) JoinChannel(req engine.JoinRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joins = append(m.joins, req)
	return nil
}

func (m *mockEngine) SetMixLayout(layout engine.MixLayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layouts = append(m.layouts, layout)
	return nil
}

func (m *mockEngine) LeaveChannel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveCalls++
	return nil
}

func (m *mockEngine) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseCalls++
	return nil
}

func (m *mockEngine) emit(ev engine.Event) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()

	if h != nil {
		h(ev)
	}
}

func (m *mockEngine) joinCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.joins)
}

var _ engine.Engine = (*mockEngine)(nil)

var (
	mockMu     sync.Mutex
	nextEngine *mockEngine
)

func init() {
	engine.Register("mock", func(string) (engine.Engine, error) {
		mockMu.Lock()
		defer mockMu.Unlock()
		if nextEngine == nil {
			return &mockEngine{}, nil
		}
		return nextEngine, nil
	})
}

func installMock(t *testing.T) *mockEngine {
	t.Helper()

	m := &mockEngine{}
	mockMu.Lock()
	nextEngine = m
	mockMu.Unlock()

	t.Cleanup(func() {
		mockMu.Lock()
		nextEngine = nil
		mockMu.Unlock()
	})

	return m
}

func testServerConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		App: config.App{Version: "test", InstanceId: "instance-1"},
		Engine: config.Engine{
			Driver: "mock",
		},
		Recorder: config.Recorder{
			Directory:        t.TempDir(),
			FileMode:         "0600",
			WriteSummaryFile: true,
		},
		Token: config.Token{
			AppId:       "A",
			Certificate: "C",
			Static:      "tok",
		},
	}

	return cfg
}

func receiveResponse(t *testing.T, ps *mockPubSub, into interface{}) {
	t.Helper()

	select {
	case msg := <-ps.publishChan:
		require.NoError(t, json.Unmarshal(msg, into))
	case <-time.After(time.Second):
		t.Fatal("Did not receive a response from the server")
	}
}

// receiveMessages collects n published messages keyed by id. Event relays and
// command responses are published from different goroutines, so their
// relative order is not fixed.
func receiveMessages(t *testing.T, ps *mockPubSub, n int) map[string]json.RawMessage {
	t.Helper()

	deadline := time.After(time.Second)
	got := make(map[string]json.RawMessage, n)

	for i := 0; i < n; i++ {
		select {
		case msg := <-ps.publishChan:
			var probe struct {
				Id string `json:"id"`
			}
			require.NoError(t, json.Unmarshal(msg, &probe))
			got[probe.Id] = msg
		case <-deadline:
			t.Fatalf("Received %d of %d expected messages", i, n)
		}
	}

	return got
}

func unmarshalMessage(t *testing.T, got map[string]json.RawMessage, id string, into interface{}) {
	t.Helper()

	msg, ok := got[id]
	require.Truef(t, ok, "no %s message received", id)
	require.NoError(t, json.Unmarshal(msg, into))
}

func TestStartStopRecordingFlow(t *testing.T) {
	eng := installMock(t)
	cfg := testServerConfig(t)
	ps := &mockPubSub{publishChan: make(chan []byte, 32)}
	server := NewServer(cfg, ps)
	ctx := context.Background()

	server.HandlePubSub(ctx, []byte(`{
		"id": "startRecording",
		"recordingSessionId": "s1",
		"channel": "room1",
		"account": "uid42"
	}`))

	require.Eventually(t, func() bool { return eng.joinCount() == 1 }, time.Second, time.Millisecond)
	eng.emit(engine.JoinSuccess{Channel: "room1", UID: "uid42"})

	got := receiveMessages(t, ps, 2)

	var relay events.SessionEvent
	unmarshalMessage(t, got, events.SessionEventKey, &relay)
	assert.Equal(t, "s1", relay.SessionId)
	assert.Equal(t, string(engine.KindJoinSuccess), relay.Kind)

	var response events.StartRecordingResponse
	unmarshalMessage(t, got, events.StartRecordingResponseKey, &response)
	assert.Equal(t, events.StartRecordingResponseKey, response.Id)
	assert.Equal(t, "s1", response.SessionId)
	assert.Equal(t, "ok", response.Status)
	require.NotNil(t, response.RecordPath)
	assert.Contains(t, *response.RecordPath, "room1")

	// engine hand-off file exists where the response says
	_, err := os.Stat(filepath.Join(*response.RecordPath, "cfg.json"))
	assert.NoError(t, err)

	server.HandlePubSub(ctx, []byte(`{"id": "stopRecording", "recordingSessionId": "s1"}`))

	var stopped events.RecordingStopped
	receiveResponse(t, ps, &stopped)
	assert.Equal(t, events.RecordingStoppedKey, stopped.Id)
	assert.Equal(t, "s1", stopped.SessionId)
	assert.Equal(t, "stopped", stopped.Reason)

	eng.mu.Lock()
	assert.Equal(t, 1, eng.leaveCalls)
	assert.Equal(t, 1, eng.releaseCalls)
	eng.mu.Unlock()

	// summary written next to the engine config
	_, err = os.Stat(filepath.Join(*response.RecordPath, appstats.SummaryFileName))
	assert.NoError(t, err)
}

func TestStartRecording_JoinFailure(t *testing.T) {
	eng := installMock(t)
	cfg := testServerConfig(t)
	ps := &mockPubSub{publishChan: make(chan []byte, 32)}
	server := NewServer(cfg, ps)

	server.HandlePubSub(context.Background(), []byte(`{
		"id": "startRecording",
		"recordingSessionId": "s1",
		"channel": "room1"
	}`))

	require.Eventually(t, func() bool { return eng.joinCount() == 1 }, time.Second, time.Millisecond)
	eng.emit(engine.EngineError{Code: 5, Status: 101})

	got := receiveMessages(t, ps, 2)

	var relay events.SessionEvent
	unmarshalMessage(t, got, events.SessionEventKey, &relay)
	assert.Equal(t, string(engine.KindEngineError), relay.Kind)

	var response events.StartRecordingResponse
	unmarshalMessage(t, got, events.StartRecordingResponseKey, &response)
	assert.Equal(t, "failed", response.Status)
	require.NotNil(t, response.Error)
	assert.Contains(t, *response.Error, "error=5 status=101")

	// failed sessions are torn down and removed
	require.Eventually(t, func() bool {
		_, ok := server.sessions.Load("s1")
		return !ok
	}, time.Second, time.Millisecond)
}

func TestDuplicateStartSession(t *testing.T) {
	cfg := testServerConfig(t)
	ps := &mockPubSub{publishChan: make(chan []byte, 10)}
	server := NewServer(cfg, ps)
	sessionID := "test-duplicate-start"

	server.sessions.Store(sessionID, &managedSession{id: sessionID})

	startEventJSON := []byte(fmt.Sprintf(`{
		"id": "startRecording",
		"recordingSessionId": "%s",
		"channel": "room1"
	}`, sessionID))

	server.HandlePubSub(context.Background(), startEventJSON)

	var response events.StartRecordingResponse
	receiveResponse(t, ps, &response)
	assert.Equal(t, "startRecordingResponse", response.Id)
	assert.Equal(t, sessionID, response.SessionId)
	assert.Equal(t, "failed", response.Status)
	require.NotNil(t, response.Error)
	assert.Contains(t, *response.Error, "already exists")
}

func TestStartRecording_NoTokenSource(t *testing.T) {
	cfg := testServerConfig(t)
	cfg.Token = config.Token{AppId: "A", Certificate: "C"}
	ps := &mockPubSub{publishChan: make(chan []byte, 10)}
	server := NewServer(cfg, ps)

	server.HandlePubSub(context.Background(), []byte(`{
		"id": "startRecording",
		"recordingSessionId": "s1",
		"channel": "room1"
	}`))

	var response events.StartRecordingResponse
	receiveResponse(t, ps, &response)
	assert.Equal(t, "failed", response.Status)
	require.NotNil(t, response.Error)
	assert.Contains(t, *response.Error, "no token source configured")
}

func TestSetMixLayout_UnknownSession(t *testing.T) {
	cfg := testServerConfig(t)
	ps := &mockPubSub{publishChan: make(chan []byte, 10)}
	server := NewServer(cfg, ps)

	server.HandlePubSub(context.Background(), []byte(`{
		"id": "setMixLayout",
		"recordingSessionId": "nope",
		"layout": {"canvasWidth": 640, "canvasHeight": 480}
	}`))

	var response events.SetMixLayoutResponse
	receiveResponse(t, ps, &response)
	assert.Equal(t, "failed", response.Status)
	require.NotNil(t, response.Error)
	assert.Contains(t, *response.Error, "not found")
}

func TestGetRecorderStatus(t *testing.T) {
	cfg := testServerConfig(t)
	ps := &mockPubSub{publishChan: make(chan []byte, 10)}
	server := NewServer(cfg, ps)

	server.HandlePubSub(context.Background(), []byte(`{"id": "getRecorderStatus"}`))

	var status events.RecorderStatus
	receiveResponse(t, ps, &status)
	assert.Equal(t, events.RecorderStatusKey, status.Id)
	assert.Equal(t, "test", status.Version)
	assert.Equal(t, "instance-1", status.InstanceId)
}
