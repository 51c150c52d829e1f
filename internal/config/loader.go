package config

import (
	"fmt"
	"path"
	"strings"

	"github.com/crazy-max/gonfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Load populates cfg from an optional YAML file and then overlays
// APP_NAME_*-prefixed environment variables on top. A missing file is fine;
// a file that fails to decode is fatal.
func (cfg *Config) Load(app, configFile string) {
	cfg.loadFile(app, configFile)
	cfg.loadEnv(app)
}

func (cfg *Config) loadFile(app, configFile string) {
	if configFile == "" {
		configFile = app + ".yml"
	} else {
		configFile = path.Clean(configFile)
	}

	loader := gonfig.NewFileLoader(gonfig.FileLoaderConfig{
		Filename: configFile,
		Finder: gonfig.Finder{
			BasePaths: []string{
				fmt.Sprintf("/etc/%s/%s", app, app),
				fmt.Sprintf("$HOME/.config/%s", app),
				fmt.Sprintf("./%s", app),
			},
			Extensions: []string{"yaml", "yml"},
		},
	})

	found, err := loader.Load(cfg)

	switch {
	case err != nil:
		log.Fatal(errors.Wrapf(err, "failed to decode configuration from file %s", loader.GetFilename()))
	case !found:
		log.Debugf("no configuration file found: %s", loader.GetFilename())
	default:
		log.Printf("configuration loaded from file: %s", loader.GetFilename())
	}
}

func (cfg *Config) loadEnv(app string) {
	prefix := strings.ReplaceAll(app, " ", "_")
	prefix = strings.ToUpper(strings.ReplaceAll(prefix, "-", "_")) + "_"

	loader := gonfig.NewEnvLoader(gonfig.EnvLoaderConfig{Prefix: prefix})

	found, err := loader.Load(cfg)

	switch {
	case err != nil:
		log.Fatal(errors.Wrap(err, "failed to decode configuration from environment variables"))
	case !found:
		log.Debugf("no %s* environment variables defined", prefix)
	default:
		log.Printf("configuration loaded from %d environment variables", len(loader.GetVars()))
	}
}
