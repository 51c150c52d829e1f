package appstats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/soniclabs/native-recorder/internal/engine"
)

// SummaryFileName is written into the record directory when a session stops.
const SummaryFileName = "session-summary.json"

// SessionSummary is the per-session report persisted next to the recording.
type SessionSummary struct {
	Channel        string                 `json:"channel"`
	RecordPath     string                 `json:"recordPath"`
	State          string                 `json:"state"`
	StopReason     string                 `json:"stopReason,omitempty"`
	StartedAtUTC   time.Time              `json:"startedAtUTC"`
	StoppedAtUTC   time.Time              `json:"stoppedAtUTC"`
	JoinError      *string                `json:"joinError,omitempty"`
	RecordingStats *engine.RecordingStats `json:"recordingStats,omitempty"`
}

type SummaryWriter struct {
	fileMode os.FileMode
}

func NewSummaryWriter(fileMode os.FileMode) *SummaryWriter {
	return &SummaryWriter{fileMode: fileMode}
}

// WriteSummary persists the summary into the session's record directory.
func (w *SummaryWriter) WriteSummary(recordPath string, summary *SessionSummary) error {
	summaryPath := filepath.Join(recordPath, SummaryFileName)

	jsonData, err := json.MarshalIndent(summary, "", "  ")

	if err != nil {
		return errors.Wrap(err, "JSON marshalling failed")
	}

	if err := os.WriteFile(summaryPath, jsonData, w.fileMode); err != nil {
		return errors.Wrap(err, "failed to write session summary")
	}

	log.WithField("path", summaryPath).
		WithField("summary", string(jsonData)).
		Tracef("Wrote session summary to file")

	return nil
}
