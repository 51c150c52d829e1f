package appstats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AlekSi/pointer"

	"github.com/soniclabs/native-recorder/internal/engine"
)

func TestSummaryWriter(t *testing.T) {
	tmpDir := t.TempDir()
	writer := NewSummaryWriter(0600)

	testSummary := &SessionSummary{
		Channel:      "test-channel",
		RecordPath:   tmpDir,
		State:        "left",
		StartedAtUTC: time.Now().UTC(),
		StoppedAtUTC: time.Now().UTC().Add(time.Minute),
		RecordingStats: &engine.RecordingStats{
			Duration:  60,
			RxBytes:   1 << 20,
			UserCount: 2,
		},
	}

	t.Run("WriteSummary_Success", func(t *testing.T) {
		if err := writer.WriteSummary(tmpDir, testSummary); err != nil {
			t.Errorf("WriteSummary failed: %v", err)
		}

		summaryPath := filepath.Join(tmpDir, SummaryFileName)
		content, err := os.ReadFile(summaryPath)
		if err != nil {
			t.Fatalf("Failed to read summary file: %v", err)
		}

		var readSummary SessionSummary
		if err := json.Unmarshal(content, &readSummary); err != nil {
			t.Errorf("Failed to unmarshal summary file: %v", err)
		}

		if readSummary.Channel != testSummary.Channel {
			t.Errorf("Channel mismatch: got %s, want %s",
				readSummary.Channel, testSummary.Channel)
		}

		if readSummary.RecordingStats == nil ||
			readSummary.RecordingStats.Duration != testSummary.RecordingStats.Duration {
			t.Errorf("RecordingStats mismatch: got %+v, want %+v",
				readSummary.RecordingStats, testSummary.RecordingStats)
		}

		if readSummary.JoinError != nil {
			t.Errorf("JoinError should be omitted, got %s", *readSummary.JoinError)
		}
	})

	t.Run("WriteSummary_JoinError", func(t *testing.T) {
		failed := &SessionSummary{
			Channel:   "test-channel",
			State:     "failed",
			JoinError: pointer.ToString("engine join failed: error=5 status=101"),
		}

		if err := writer.WriteSummary(tmpDir, failed); err != nil {
			t.Errorf("WriteSummary failed: %v", err)
		}

		content, err := os.ReadFile(filepath.Join(tmpDir, SummaryFileName))
		if err != nil {
			t.Fatalf("Failed to read summary file: %v", err)
		}

		var readSummary SessionSummary
		if err := json.Unmarshal(content, &readSummary); err != nil {
			t.Errorf("Failed to unmarshal summary file: %v", err)
		}

		if readSummary.JoinError == nil || *readSummary.JoinError != *failed.JoinError {
			t.Errorf("JoinError mismatch: got %v, want %v",
				readSummary.JoinError, failed.JoinError)
		}
	})

	t.Run("WriteSummary_InvalidPath", func(t *testing.T) {
		invalidPath := filepath.Join(tmpDir, "nonexistent", "dir")
		if err := writer.WriteSummary(invalidPath, testSummary); err == nil {
			t.Error("Expected error for invalid path, got nil")
		}
	})
}
