package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// EngineCfgFile is the fixed hand-off filename read by the native engine.
const EngineCfgFile = "cfg.json"

// PathTemplate derives the session's relative record path from the channel
// name and the session start time. The returned value is used as nested
// filesystem segments under the output root.
type PathTemplate func(channel string, ts time.Time) string

// DefaultPathTemplate nests a date segment under the output root and names
// the leaf "<HH:MM:SS> <channel>". Distinct channels or start instants never
// collide; two sessions for the same channel within the same second will,
// which is an accepted limitation.
func DefaultPathTemplate(channel string, ts time.Time) string {
	return filepath.Join(ts.Format("2006-01-02"), ts.Format("15:04:05")+" "+channel)
}

// ResolvePath computes the absolute record directory for a session. It is a
// pure function of its arguments: resolving twice for the same start time
// yields the same path.
func ResolvePath(outputRoot string, template PathTemplate, channel string, ts time.Time) (string, error) {
	if template == nil {
		template = DefaultPathTemplate
	}

	abs, err := filepath.Abs(filepath.Join(outputRoot, template(channel, ts)))

	if err != nil {
		return "", errors.Wrap(err, "failed to resolve record path")
	}

	return abs, nil
}

// engineCfg is the hand-off object consumed by the native engine. Its single
// key is a frozen external contract and must not be renamed.
type engineCfg struct {
	RecordingDir string `json:"Recording_Dir"`
}

// writeEngineCfg creates the record directory (including parents) and writes
// the engine hand-off file inside it, returning the file's path. Any failure
// is fatal to session construction; the engine is never started against a
// missing or partial config.
func writeEngineCfg(recordPath string, dirMode, fileMode os.FileMode) (string, error) {
	if err := os.MkdirAll(recordPath, dirMode); err != nil {
		return "", &SessionCreationError{Op: "mkdir", Path: recordPath, Err: err}
	}

	cfgPath := filepath.Join(recordPath, EngineCfgFile)
	data, err := json.Marshal(engineCfg{RecordingDir: recordPath})

	if err != nil {
		return "", &SessionCreationError{Op: "encode", Path: cfgPath, Err: err}
	}

	if err := os.WriteFile(cfgPath, data, fileMode); err != nil {
		return "", &SessionCreationError{Op: "write", Path: cfgPath, Err: err}
	}

	return cfgPath, nil
}
