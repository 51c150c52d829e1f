package config

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

type App struct {
	Name       string
	Version    string
	GitHash    string
	LongName   string
	InstanceId string
}

type Config struct {
	App        App        `yaml:"-"`
	Engine     Engine     `yaml:"engine,omitempty"`
	Recorder   Recorder   `yaml:"recorder,omitempty"`
	Token      Token      `yaml:"token,omitempty"`
	PubSub     PubSub     `yaml:"pubsub,omitempty"`
	Prometheus Prometheus `yaml:"prometheus,omitempty"`
	Log        LogConfig  `yaml:"log"`
}

func (cfg *Config) GetDefaults() *Config {
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets the default values
func (cfg *Config) SetDefaults() {
	if cfg.App.Name == "" {
		var err error
		if cfg.App.Name, err = os.Executable(); err != nil {
			log.Error(err)
			cfg.App.Name = "unknown"
		}
	}

	cfg.Engine.Driver = "native"
	cfg.Engine.JoinTimeout = 5 * time.Second
	cfg.Engine.JoinTimeoutFatal = false
	cfg.Recorder.Directory = "rec"
	cfg.Recorder.DirFileMode = "0700"
	cfg.Recorder.FileMode = "0600"
	cfg.Recorder.WriteSummaryFile = true
	cfg.PubSub.Channels = Channels{
		Subscribe: "to-" + cfg.App.Name,
		Publish:   "from-" + cfg.App.Name,
	}
	cfg.PubSub.Adapter = "redis"
	cfg.PubSub.Adapters = make(map[string]interface{})
	cfg.PubSub.Adapters["redis"] = &Redis{
		Address:  ":6379",
		Network:  "tcp",
		Password: "",
	}
	cfg.Prometheus = Prometheus{
		Enable:        false,
		ListenAddress: "127.0.0.1:3200",
	}
}

// Engine selects and tunes the native engine driver.
type Engine struct {
	Driver           string        `yaml:"driver,omitempty"`
	BinaryDir        string        `yaml:"binaryDir,omitempty"`
	LogLevel         int           `yaml:"logLevel,omitempty"`
	JoinTimeout      time.Duration `yaml:"joinTimeout,omitempty"`
	JoinTimeoutFatal bool          `yaml:"joinTimeoutFatal,omitempty"`
}

type Recorder struct {
	Directory        string `yaml:"directory,omitempty"`
	DirFileMode      string `yaml:"dirFileMode,omitempty"`
	FileMode         string `yaml:"fileMode,omitempty"`
	WriteSummaryFile bool   `yaml:"writeSummaryFile,omitempty"`
}

// Token holds the token service credentials. AppId and Certificate are
// secrets and are never logged. Static carries a pre-minted token for
// deployments where tokens are built out of process; AllowInsecure permits
// empty tokens against engines with certificate checks disabled.
type Token struct {
	AppId         string `yaml:"appId,omitempty"`
	Certificate   string `yaml:"certificate,omitempty"`
	Static        string `yaml:"static,omitempty"`
	AllowInsecure bool   `yaml:"allowInsecure,omitempty"`
}

type Redis struct {
	Address  string `yaml:"address,omitempty"`
	Network  string `yaml:"network,omitempty"`
	Password string `yaml:"password,omitempty"`
}

type PubSub struct {
	Channels Channels `yaml:"channels,omitempty"`
	Adapter  string   `yaml:"adapter,omitempty"`
	Adapters map[string]interface{}
}

type Channels struct {
	Subscribe string `yaml:"subscribe,omitempty"`
	Publish   string `yaml:"publish,omitempty"`
}

type Prometheus struct {
	Enable        bool   `yaml:"enable,omitempty"`
	ListenAddress string `yaml:"listenAddress,omitempty"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"maxSizeMb,omitempty"`
	MaxBackups int    `yaml:"maxBackups,omitempty"`
	MaxAgeDays int    `yaml:"maxAgeDays,omitempty"`
}
