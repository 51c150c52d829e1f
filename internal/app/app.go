package app

import (
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/soniclabs/native-recorder/internal"
	"github.com/soniclabs/native-recorder/internal/appstats"
	"github.com/soniclabs/native-recorder/internal/config"
	"github.com/soniclabs/native-recorder/internal/engine"
	"github.com/soniclabs/native-recorder/internal/pubsub"
	"github.com/soniclabs/native-recorder/internal/server"
)

var (
	app config.App

	flags struct {
		config  string
		dump    string
		help    bool
		version bool
	}

	cfg *config.Config
	ps  pubsub.PubSub
	sv  *server.Server
)

func Main() {
	_ = godotenv.Load()

	app.Name = internal.AppName
	app.Version = internal.AppVersion
	app.LongName = fmt.Sprintf("%s %s", app.Name, app.Version)
	app.InstanceId = uuid.New().String()

	flag.StringVarP(&flags.config, "config", "c", flags.config, "load configuration file")
	flag.StringVar(&flags.dump, "dump", "", "print config value (e.g. 'recorder.directory')")
	flag.BoolVarP(&flags.help, "help", "h", flags.help, "print help")
	flag.BoolVarP(&flags.version, "version", "v", flags.version, "print version")
	flag.Parse()

	if flags.help {
		fmt.Printf("%s\n\n", app.LongName)
		flag.PrintDefaults()
		shutdown(0)
	}

	if flags.version {
		fmt.Println(app.LongName)
		shutdown(0)
	}

	if flags.dump != "" {
		log.SetLevel(log.FatalLevel)
		cfg = initConfig()
		loadConfig()
		dumpConfig()
	}

	Init()
	Run()

	select {}
}

func Init() {
	cfg = initConfig()
	log.Infof("Starting %s PID: %d", app.Name, os.Getpid())
	loadConfig()
	configureLog()
	sigintHandler()
	sighupHandler()
}

func Run() {
	appstats.Init()
	appstats.ServePromMetrics(cfg.Prometheus)

	if !slices.Contains(engine.Drivers(), cfg.Engine.Driver) {
		log.Warnf("engine driver %q is not registered (registered: %v), startRecording commands will fail",
			cfg.Engine.Driver, engine.Drivers())
	}

	ps = pubsub.NewPubSub(cfg.PubSub)

	if err := ps.Check(); err != nil {
		log.Fatalf("failed to connect to pubsub: %v", err)
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warnf("failed to notify readiness to systemd: %v", err)
	}

	sv = server.NewServer(cfg, ps)

	go func() {
		if err := ps.Subscribe(cfg.PubSub.Channels.Subscribe, sv.HandlePubSub, sv.OnStart); err != nil {
			log.Fatalf("failed to subscribe to pubsub %s: %s", cfg.PubSub.Channels.Subscribe, err)
		}
	}()
}

func shutdown(code int) {
	if sv != nil {
		if err := sv.Close(); err != nil {
			log.Errorf("failed to close server: %s", err)
		}
	}

	if ps != nil {
		if err := ps.Close(); err != nil {
			log.Errorf("failed to close pubsub: %s", err)
		}
	}

	os.Exit(code)
}

func sighupHandler() {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for {
			<-sighup
			log.Debug("reloading config...")
			loadConfig()
			configureLog()
		}
	}()
}

func sigintHandler() {
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigint
		shutdown(0)
	}()
}
