package engine

// Kind identifies a native callback family.
type Kind string

const (
	KindJoinSuccess             Kind = "joinChannelSuccess"
	KindEngineError             Kind = "error"
	KindLeave                   Kind = "leaveChannel"
	KindUserJoined              Kind = "userJoined"
	KindUserLeft                Kind = "userLeft"
	KindActiveSpeaker           Kind = "activeSpeaker"
	KindConnectionLost          Kind = "connectionLost"
	KindConnectionInterrupted   Kind = "connectionInterrupted"
	KindConnectionStateChanged  Kind = "connectionStateChanged"
	KindRejoinSuccess           Kind = "rejoinChannelSuccess"
	KindReceivingStreamChanged  Kind = "receivingStreamStatusChanged"
	KindFirstRemoteVideoDecoded Kind = "firstRemoteVideoDecoded"
	KindFirstRemoteAudioFrame   Kind = "firstRemoteAudioFrame"
	KindRemoteVideoStreamState  Kind = "remoteVideoStreamStateChanged"
	KindRemoteAudioStreamState  Kind = "remoteAudioStreamStateChanged"
	KindRemoteVideoStats        Kind = "remoteVideoStats"
	KindRemoteAudioStats        Kind = "remoteAudioStats"
	KindRecordingStats          Kind = "recordingStats"
	KindAudioVolumeIndication   Kind = "audioVolumeIndication"
	KindLocalUserRegistered     Kind = "localUserRegistered"
	KindUserInfoUpdated         Kind = "userInfoUpdated"
)

// Event is one normalized native callback. Concrete types form a closed set
// of tagged records, one per callback kind; payload fields are carried
// verbatim from the native layer, never reinterpreted.
type Event interface {
	Kind() Kind
}

// JoinSuccess reports that the engine attached to the channel.
type JoinSuccess struct {
	Channel string
	UID     string
}

// EngineError reports a native failure. During a pending join it settles the
// join as failed; afterwards it is relayed as a plain event. Code and Status
// are the vendor's values, passed through intact.
type EngineError struct {
	Code   int
	Status int
}

// Leave reports that the engine detached from the channel.
type Leave struct {
	Reason int
}

type UserJoined struct {
	UID string
}

type UserLeft struct {
	UID    string
	Reason int
}

type ActiveSpeaker struct {
	UID string
}

type ConnectionLost struct {
	Channel string
}

type ConnectionInterrupted struct {
	Channel string
}

type ConnectionStateChanged struct {
	State  int
	Reason int
}

type RejoinSuccess struct {
	Channel string
	UID     string
}

// ReceivingStreamChanged reports whether the engine is currently receiving
// audio and video from the channel.
type ReceivingStreamChanged struct {
	ReceivingAudio bool
	ReceivingVideo bool
}

type FirstRemoteVideoDecoded struct {
	UID     string
	Width   int
	Height  int
	Elapsed int
}

type FirstRemoteAudioFrame struct {
	UID     string
	Elapsed int
}

type RemoteVideoStreamState struct {
	UID    string
	State  int
	Reason int
}

type RemoteAudioStreamState struct {
	UID    string
	State  int
	Reason int
}

// RemoteVideoStats is the periodic per-user video report.
type RemoteVideoStats struct {
	UID                    string
	Delay                  int
	Width                  int
	Height                 int
	ReceivedBitrate        int
	DecoderOutputFrameRate int
	RxStreamType           int
}

// RemoteAudioStats is the periodic per-user audio report.
type RemoteAudioStats struct {
	UID                   string
	Quality               int
	NetworkTransportDelay int
	JitterBufferDelay     int
	AudioLossRate         int
}

// RecordingStats is the aggregate report for the whole recording.
type RecordingStats struct {
	Duration        int
	RxBytes         int
	RxKBitRate      int
	RxAudioKBitRate int
	RxVideoKBitRate int
	UserCount       int
}

type SpeakerVolume struct {
	UID    string
	Volume int
}

type AudioVolumeIndication struct {
	Speakers []SpeakerVolume
}

type LocalUserRegistered struct {
	UID     string
	Account string
}

type UserInfoUpdated struct {
	UID     string
	Account string
}

func (JoinSuccess) Kind() Kind             { return KindJoinSuccess }
func (EngineError) Kind() Kind             { return KindEngineError }
func (Leave) Kind() Kind                   { return KindLeave }
func (UserJoined) Kind() Kind              { return KindUserJoined }
func (UserLeft) Kind() Kind                { return KindUserLeft }
func (ActiveSpeaker) Kind() Kind           { return KindActiveSpeaker }
func (ConnectionLost) Kind() Kind          { return KindConnectionLost }
func (ConnectionInterrupted) Kind() Kind   { return KindConnectionInterrupted }
func (ConnectionStateChanged) Kind() Kind  { return KindConnectionStateChanged }
func (RejoinSuccess) Kind() Kind           { return KindRejoinSuccess }
func (ReceivingStreamChanged) Kind() Kind  { return KindReceivingStreamChanged }
func (FirstRemoteVideoDecoded) Kind() Kind { return KindFirstRemoteVideoDecoded }
func (FirstRemoteAudioFrame) Kind() Kind   { return KindFirstRemoteAudioFrame }
func (RemoteVideoStreamState) Kind() Kind  { return KindRemoteVideoStreamState }
func (RemoteAudioStreamState) Kind() Kind  { return KindRemoteAudioStreamState }
func (RemoteVideoStats) Kind() Kind        { return KindRemoteVideoStats }
func (RemoteAudioStats) Kind() Kind        { return KindRemoteAudioStats }
func (RecordingStats) Kind() Kind          { return KindRecordingStats }
func (AudioVolumeIndication) Kind() Kind   { return KindAudioVolumeIndication }
func (LocalUserRegistered) Kind() Kind     { return KindLocalUserRegistered }
func (UserInfoUpdated) Kind() Kind         { return KindUserInfoUpdated }
