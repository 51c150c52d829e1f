package app

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/soniclabs/native-recorder/internal"
)

func configureLog() {
	var out io.Writer = os.Stdout

	if cfg.Log.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
		})
	}

	log.SetOutput(out)

	if isTty() && cfg.Log.File == "" {
		log.SetFormatter(&log.TextFormatter{
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				filename := path.Base(f.File)
				return fmt.Sprintf("%s:%d", filename, f.Line),
					fmt.Sprintf("> %s()", strings.Replace(f.Function, internal.ModName, ".", 1))
			},
			FullTimestamp: true,
		})
	} else {
		log.SetFormatter(&log.JSONFormatter{CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return fmt.Sprintf("%s()", strings.Replace(f.Function, internal.ModName, ".", 1)),
				fmt.Sprintf("%s:%d", f.File, f.Line)
		}})
	}

	level, err := log.ParseLevel(cfg.Log.Level)

	if err != nil {
		level = log.InfoLevel
	}

	log.SetLevel(level)
	log.SetReportCaller(level >= log.DebugLevel)
}

func isTty() bool {
	if fileInfo, _ := os.Stdout.Stat(); (fileInfo.Mode() & os.ModeCharDevice) != 0 {
		return true
	}
	return false
}
