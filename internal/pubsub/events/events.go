package events

import (
	"fmt"
	"time"

	"github.com/AlekSi/pointer"

	"github.com/soniclabs/native-recorder/internal/engine"
)

const (
	StartRecordingKey         = "startRecording"
	StartRecordingResponseKey = "startRecordingResponse"
	StopRecordingKey          = "stopRecording"
	RecordingStoppedKey       = "recordingStopped"
	SetMixLayoutKey           = "setMixLayout"
	SetMixLayoutResponseKey   = "setMixLayoutResponse"
	GetRecorderStatusKey      = "getRecorderStatus"
	RecorderStatusKey         = "recorderStatus"
	SessionEventKey           = "sessionEvent"
)

// Event is a decoded pubsub command. Data holds the typed command, or nil
// when the message was malformed or of an unknown id.
type Event struct {
	Id   string
	Data interface{}
}

func (e *Event) IsValid() bool {
	return e.Id != "" && e.Data != nil
}

func (e *Event) StartRecording() *StartRecording {
	if v, ok := e.Data.(*StartRecording); ok {
		return v
	}
	return nil
}

func (e *Event) StopRecording() *StopRecording {
	if v, ok := e.Data.(*StopRecording); ok {
		return v
	}
	return nil
}

func (e *Event) SetMixLayout() *SetMixLayout {
	if v, ok := e.Data.(*SetMixLayout); ok {
		return v
	}
	return nil
}

/*
startRecording (controller -> recorder)
```JSON5
{
	id: 'startRecording',
	recordingSessionId: <String>, // requester-defined - error out if collision.
	channel: <String>,            // target channel identifier
	account: <String | undefined>,
	joinTimeoutSeconds: <Number | undefined>, // overrides the configured default
}
```
*/

type StartRecording struct {
	Id                 string `json:"id,omitempty"`
	SessionId          string `json:"recordingSessionId,omitempty"`
	Channel            string `json:"channel,omitempty"`
	Account            string `json:"account,omitempty"`
	JoinTimeoutSeconds int    `json:"joinTimeoutSeconds,omitempty"`
}

func (e *StartRecording) Validate() error {
	if e.SessionId == "" || e.Channel == "" {
		return fmt.Errorf("missing required fields: recordingSessionId, channel")
	}

	return nil
}

func (e *StartRecording) Success(recordPath string) *StartRecordingResponse {
	return &StartRecordingResponse{
		Id:         StartRecordingResponseKey,
		SessionId:  e.SessionId,
		Status:     "ok",
		RecordPath: pointer.ToString(recordPath),
	}
}

func (e *StartRecording) Fail(err error) *StartRecordingResponse {
	return &StartRecordingResponse{
		Id:        StartRecordingResponseKey,
		SessionId: e.SessionId,
		Status:    "failed",
		Error:     pointer.ToString(fmt.Sprintf("%s", err)),
	}
}

/*
startRecordingResponse (recorder -> controller)
```JSON5
{
	id: 'startRecordingResponse',
	recordingSessionId: <String>,
	status: 'ok' | 'failed',
	error: undefined | <String>,
	recordPath: <String | undefined>, // absolute recording directory
}
```
*/

type StartRecordingResponse struct {
	Id         string  `json:"id,omitempty"`
	SessionId  string  `json:"recordingSessionId,omitempty"`
	Status     string  `json:"status,omitempty"`
	Error      *string `json:"error,omitempty"`
	RecordPath *string `json:"recordPath,omitempty"`
}

/*
stopRecording (controller -> recorder)
```JSON5
{
	id: 'stopRecording',
	recordingSessionId: <String>,
}
```
*/

type StopRecording struct {
	Id        string `json:"id,omitempty"`
	SessionId string `json:"recordingSessionId,omitempty"`
}

func (e *StopRecording) Stopped(reason string) *RecordingStopped {
	return &RecordingStopped{
		Id:           RecordingStoppedKey,
		SessionId:    e.SessionId,
		Reason:       reason,
		TimestampUTC: time.Now().UTC(),
	}
}

/*
recordingStopped (recorder -> controller)
```JSON5
{
	id: 'recordingStopped',
	recordingSessionId: <String>,
	reason: <String>,
	timestampUTC: <String>, // stop time, UTC, wall clock
}
```
*/

type RecordingStopped struct {
	Id           string    `json:"id,omitempty"`
	SessionId    string    `json:"recordingSessionId,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	TimestampUTC time.Time `json:"timestampUTC,omitempty"`
}

/*
setMixLayout (controller -> recorder)
```JSON5
{
	id: 'setMixLayout',
	recordingSessionId: <String>,
	layout: { canvasWidth, canvasHeight, mixedVideoLayout, ... },
}
```
*/

type SetMixLayout struct {
	Id        string           `json:"id,omitempty"`
	SessionId string           `json:"recordingSessionId,omitempty"`
	Layout    engine.MixLayout `json:"layout,omitempty"`
}

func (e *SetMixLayout) Response(err error) *SetMixLayoutResponse {
	r := &SetMixLayoutResponse{
		Id:        SetMixLayoutResponseKey,
		SessionId: e.SessionId,
		Status:    "ok",
	}

	if err != nil {
		r.Status = "failed"
		r.Error = pointer.ToString(fmt.Sprintf("%s", err))
	}

	return r
}

type SetMixLayoutResponse struct {
	Id        string  `json:"id,omitempty"`
	SessionId string  `json:"recordingSessionId,omitempty"`
	Status    string  `json:"status,omitempty"`
	Error     *string `json:"error,omitempty"`
}

/*
getRecorderStatus (controller -> recorder)
```JSON5
{ id: 'getRecorderStatus' }
```
*/

type GetRecorderStatus struct {
	Id string `json:"id,omitempty"`
}

type RecorderStatus struct {
	Id         string `json:"id,omitempty"`
	Version    string `json:"version,omitempty"`
	InstanceId string `json:"instanceId,omitempty"`
}

func NewRecorderStatus(version string, instanceId string) *RecorderStatus {
	return &RecorderStatus{
		Id:         RecorderStatusKey,
		Version:    version,
		InstanceId: instanceId,
	}
}

/*
sessionEvent (recorder -> controller): relay of one native engine callback.
The kind string and payload fields are the engine's own, passed through
unchanged.
*/

type SessionEvent struct {
	Id        string      `json:"id,omitempty"`
	SessionId string      `json:"recordingSessionId,omitempty"`
	Kind      string      `json:"kind,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

func NewSessionEvent(sessionId string, ev engine.Event) *SessionEvent {
	return &SessionEvent{
		Id:        SessionEventKey,
		SessionId: sessionId,
		Kind:      string(ev.Kind()),
		Payload:   ev,
	}
}
